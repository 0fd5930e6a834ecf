package kuaidi100http

import (
	"context"
	"crypto/md5"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/BearBump/ManifestBox/internal/integrations/carrier"
	"github.com/BearBump/ManifestBox/internal/models"
	"github.com/pkg/errors"
)

type Client struct {
	baseURL  string
	key      string
	customer string
	httpc    *http.Client
}

func New(baseURL, key, customer string) *Client {
	if baseURL == "" {
		baseURL = "https://poll.kuaidi100.com"
	}
	return &Client{
		baseURL:  baseURL,
		key:      key,
		customer: customer,
		httpc: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

type kuaidi100Resp struct {
	Message    string `json:"message"`
	State      string `json:"state"`
	Status     string `json:"status"`
	Condition  string `json:"condition"`
	IsCheck    string `json:"ischeck"`
	Com        string `json:"com"`
	Nu         string `json:"nu"`
	ReturnCode string `json:"returnCode"`
	Data       []struct {
		FTime    string `json:"ftime"`
		Context  string `json:"context"`
		AreaName string `json:"areaName"`
	} `json:"data"`
}

func (c *Client) QueryTracking(ctx context.Context, trackNumber, carrierHint string) (carrier.Reply, error) {
	if carrierHint == "" {
		carrierHint = "auto"
	}

	param, err := json.Marshal(map[string]string{
		"com": carrierHint,
		"num": trackNumber,
	})
	if err != nil {
		return carrier.Reply{}, errors.Wrap(err, "marshal param")
	}

	// Подпись API: upper(md5(param + key + customer)).
	sign := strings.ToUpper(fmt.Sprintf("%x", md5.Sum(append(append([]byte{}, param...), []byte(c.key+c.customer)...))))

	form := url.Values{}
	form.Set("customer", c.customer)
	form.Set("sign", sign)
	form.Set("param", string(param))

	// API периодически отдаёт транзиентные сетевые ошибки, один повтор.
	var resp *http.Response
	for attempt := 0; attempt < 2; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/poll/query.do", strings.NewReader(form.Encode()))
		if err != nil {
			return carrier.Reply{}, errors.Wrap(err, "new request")
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

		resp, err = c.httpc.Do(req)
		if err == nil {
			break
		}
		if attempt == 1 || ctx.Err() != nil {
			return carrier.Reply{}, errors.Wrap(err, "do request")
		}
		time.Sleep(200 * time.Millisecond)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		return carrier.Reply{}, fmt.Errorf("carrier api http %d", resp.StatusCode)
	}

	var r kuaidi100Resp
	if err := json.NewDecoder(resp.Body).Decode(&r); err != nil {
		return carrier.Reply{}, errors.Wrap(err, "decode")
	}

	if r.ReturnCode != "" && r.ReturnCode != "200" {
		msg := r.Message
		if msg == "" {
			msg = "query failed"
		}
		return carrier.Reply{}, fmt.Errorf("carrier api returnCode=%s: %s", r.ReturnCode, msg)
	}

	events := make([]models.TrackingEvent, 0, len(r.Data))
	for _, d := range r.Data {
		// Формат времени API: "2024-01-02 15:04:05".
		t, err := time.ParseInLocation("2006-01-02 15:04:05", d.FTime, time.UTC)
		if err != nil {
			t = time.Time{}
		}
		events = append(events, models.TrackingEvent{
			Time:        t,
			Location:    d.AreaName,
			Description: d.Context,
		})
	}

	return carrier.Reply{
		CarrierCode: r.Com,
		CarrierName: carrierName(r.Com),
		StateCode:   r.State,
		Events:      events,
	}, nil
}

// Ходовые перевозчики; неизвестный код возвращаем как есть.
var carrierNames = map[string]string{
	"shunfeng":         "SF Express",
	"ems":              "EMS",
	"yuantong":         "YTO Express",
	"shentong":         "STO Express",
	"zhongtong":        "ZTO Express",
	"yunda":            "Yunda Express",
	"jd":               "JD Logistics",
	"youzhengguonei":   "China Post",
	"youzhengguoji":    "China Post International",
}

func carrierName(code string) string {
	if name, ok := carrierNames[code]; ok {
		return name
	}
	return code
}
