package carrier

import (
	"context"

	"github.com/BearBump/ManifestBox/internal/models"
)

// Reply — сырой ответ внешнего сервиса отслеживания. Нормализация
// state-кода в человекочитаемый ярлык — забота резолвера.
type Reply struct {
	CarrierCode string
	CarrierName string
	StateCode   string
	Events      []models.TrackingEvent
}

type Client interface {
	QueryTracking(ctx context.Context, trackNumber, carrierHint string) (Reply, error)
}
