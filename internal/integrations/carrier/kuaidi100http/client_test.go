package kuaidi100http

import (
	"context"
	"crypto/md5"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestQueryTracking_OK(t *testing.T) {
	var gotForm map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/poll/query.do", r.URL.Path)
		require.NoError(t, r.ParseForm())
		gotForm = map[string]string{
			"customer": r.PostFormValue("customer"),
			"sign":     r.PostFormValue("sign"),
			"param":    r.PostFormValue("param"),
		}
		_, _ = w.Write([]byte(`{
			"message": "ok",
			"state": "3",
			"status": "200",
			"com": "shunfeng",
			"nu": "SF123456789012",
			"data": [
				{"ftime": "2024-01-16 10:30:00", "context": "delivered", "areaName": "Shanghai"},
				{"ftime": "2024-01-15 08:00:00", "context": "accepted", "areaName": "Shenzhen"}
			]
		}`))
	}))
	defer srv.Close()

	c := New(srv.URL, "test-key", "test-customer")
	reply, err := c.QueryTracking(context.Background(), "SF123456789012", "shunfeng")
	require.NoError(t, err)

	require.Equal(t, "shunfeng", reply.CarrierCode)
	require.Equal(t, "SF Express", reply.CarrierName)
	require.Equal(t, "3", reply.StateCode)
	require.Len(t, reply.Events, 2)
	require.Equal(t, "delivered", reply.Events[0].Description)
	require.Equal(t, "Shanghai", reply.Events[0].Location)
	require.Equal(t, time.Date(2024, 1, 16, 10, 30, 0, 0, time.UTC), reply.Events[0].Time)

	require.Equal(t, "test-customer", gotForm["customer"])

	var param map[string]string
	require.NoError(t, json.Unmarshal([]byte(gotForm["param"]), &param))
	require.Equal(t, "shunfeng", param["com"])
	require.Equal(t, "SF123456789012", param["num"])

	wantSign := strings.ToUpper(fmt.Sprintf("%x", md5.Sum([]byte(gotForm["param"]+"test-key"+"test-customer"))))
	require.Equal(t, wantSign, gotForm["sign"])
}

func TestQueryTracking_EmptyHintBecomesAuto(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		var param map[string]string
		require.NoError(t, json.Unmarshal([]byte(r.PostFormValue("param")), &param))
		require.Equal(t, "auto", param["com"])
		_, _ = w.Write([]byte(`{"state":"0","com":"yuantong"}`))
	}))
	defer srv.Close()

	reply, err := New(srv.URL, "k", "c").QueryTracking(context.Background(), "YT7700123456789", "")
	require.NoError(t, err)
	require.Equal(t, "YTO Express", reply.CarrierName)
}

func TestQueryTracking_ReturnCodeError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"returnCode":"408","message":"查询无结果"}`))
	}))
	defer srv.Close()

	_, err := New(srv.URL, "k", "c").QueryTracking(context.Background(), "SF123456789012", "shunfeng")
	require.Error(t, err)
	require.Contains(t, err.Error(), "returnCode=408")
}

func TestQueryTracking_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := New(srv.URL, "k", "c").QueryTracking(context.Background(), "SF123456789012", "shunfeng")
	require.Error(t, err)
	require.Contains(t, err.Error(), "http 502")
}

func TestQueryTracking_RetriesOnceOnTransportError(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			// Рвём соединение без ответа: транспортная ошибка клиента.
			hj, ok := w.(http.Hijacker)
			require.True(t, ok)
			conn, _, err := hj.Hijack()
			require.NoError(t, err)
			_ = conn.Close()
			return
		}
		_, _ = w.Write([]byte(`{"state":"0","com":"shunfeng"}`))
	}))
	defer srv.Close()

	reply, err := New(srv.URL, "k", "c").QueryTracking(context.Background(), "SF123456789012", "shunfeng")
	require.NoError(t, err)
	require.Equal(t, "0", reply.StateCode)
	require.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestQueryTracking_BadEventTimeZeroed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"state":"0","com":"shunfeng","data":[{"ftime":"yesterday","context":"x"}]}`))
	}))
	defer srv.Close()

	reply, err := New(srv.URL, "k", "c").QueryTracking(context.Background(), "SF123456789012", "shunfeng")
	require.NoError(t, err)
	require.Len(t, reply.Events, 1)
	require.True(t, reply.Events[0].Time.IsZero())
}
