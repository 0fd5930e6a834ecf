package fake

import (
	"context"
	"fmt"
	"hash/fnv"
	"time"

	"github.com/BearBump/ManifestBox/internal/integrations/carrier"
	"github.com/BearBump/ManifestBox/internal/models"
)

// FakeClient — детерминированная заглушка перевозчика для локальной
// разработки и тестов: state-код выводится из хеша номера.
type FakeClient struct{}

func New() *FakeClient { return &FakeClient{} }

// Коды отдаются в пропорции, похожей на реальные выгрузки: большинство в
// пути, часть вручена, немного проблемных.
var stateCodes = []string{"0", "0", "0", "1", "5", "3", "3", "2", "6", "0"}

func (f *FakeClient) QueryTracking(ctx context.Context, trackNumber, carrierHint string) (carrier.Reply, error) {
	now := time.Now().UTC()

	h := fnv.New32a()
	_, _ = h.Write([]byte(carrierHint))
	_, _ = h.Write([]byte("|"))
	_, _ = h.Write([]byte(trackNumber))
	v := h.Sum32()

	state := stateCodes[v%uint32(len(stateCodes))]

	code := carrierHint
	if code == "" || code == "auto" {
		code = "shunfeng"
	}

	return carrier.Reply{
		CarrierCode: code,
		CarrierName: "Fake Carrier",
		StateCode:   state,
		Events: []models.TrackingEvent{
			{
				Time:        now.Add(-24 * time.Hour),
				Location:    "Shenzhen",
				Description: "parcel accepted by carrier",
			},
			{
				Time:        now,
				Location:    "Shanghai",
				Description: fmt.Sprintf("fake carrier update, state %s", state),
			},
		},
	}, nil
}
