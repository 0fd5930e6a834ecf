package resolver

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/BearBump/ManifestBox/internal/cache"
	"github.com/BearBump/ManifestBox/internal/integrations/carrier"
	"github.com/BearBump/ManifestBox/internal/models"
	"github.com/BearBump/ManifestBox/internal/sanitize"
)

const maxBatchSize = 100

type Repository interface {
	GetByTrackingNumber(ctx context.Context, trackingNumber string) (*models.Manifest, error)
	CountManifests(ctx context.Context) (int64, error)
	CountWithPackage(ctx context.Context) (int64, error)
}

type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int64, window time.Duration) (bool, int64, error)
}

// Service разрешает трек-номер клиента в номер для запроса к перевозчику:
// если манифест связывает его с групповым номером, перевозчика
// спрашиваем по групповому.
type Service struct {
	repo    Repository
	carrier carrier.Client
	cache   cache.BytesCache
	rl      RateLimiter

	snapshotTTL   time.Duration
	ratePerMinute int64
}

func New(repo Repository, c carrier.Client) *Service {
	return &Service{repo: repo, carrier: c}
}

// WithSnapshotCache включает кэш снапшотов манифестов.
func (s *Service) WithSnapshotCache(bc cache.BytesCache, ttl time.Duration) *Service {
	s.cache = bc
	s.snapshotTTL = ttl
	return s
}

// WithRateLimiter ограничивает частоту обращений к API перевозчика.
func (s *Service) WithRateLimiter(rl RateLimiter, perMinute int64) *Service {
	s.rl = rl
	s.ratePerMinute = perMinute
	return s
}

// Resolve никогда не возвращает error: любой сбой (невалидный номер,
// недоступный перевозчик, лимит запросов) — это данные в Resolution.
func (s *Service) Resolve(ctx context.Context, trackingNumber, carrierHint string) models.Resolution {
	res := models.Resolution{
		OriginalNumber: trackingNumber,
		QueryType:      models.QueryTypeOriginal,
	}

	cleaned, reasons := sanitize.CleanTrackingNumber(trackingNumber)
	if len(reasons) > 0 {
		res.Error = "invalid tracking number: " + strings.Join(reasons, "; ")
		return res
	}
	res.CleanedNumber = cleaned
	res.QueryNumber = cleaned

	// Привязка к групповому номеру ищется в манифестах; ошибка БД деградирует
	// до "манифест не найден", запрос к перевозчику всё равно уходит.
	if m, err := s.lookupManifest(ctx, cleaned); err != nil {
		slog.Warn("manifest lookup failed, resolving without manifest",
			"trackingNumber", cleaned, "error", err.Error())
	} else if m != nil {
		res.Manifest = m
		if m.HasPackageNumber() {
			res.QueryNumber = *m.PackageNumber
			res.QueryType = models.QueryTypePackage
			res.HasPackageAssociation = true
		}
	}

	if s.rl != nil && s.ratePerMinute > 0 {
		key := "rl:carrier:" + carrierKey(carrierHint)
		ok, _, err := s.rl.Allow(ctx, key, s.ratePerMinute, time.Minute)
		if err != nil {
			// Недоступный redis не должен блокировать запросы.
			slog.Warn("rate limiter unavailable", "error", err.Error())
		} else if !ok {
			res.Error = "carrier query rate limit exceeded, try again later"
			return res
		}
	}

	reply, err := s.carrier.QueryTracking(ctx, res.QueryNumber, carrierHint)
	if err != nil {
		res.Error = fmt.Sprintf("carrier query failed: %v", err)
		return res
	}

	res.Tracking = &models.TrackingInfo{
		CarrierCode: reply.CarrierCode,
		CarrierName: reply.CarrierName,
		StateCode:   reply.StateCode,
		StateLabel:  StateLabel(reply.StateCode),
		Events:      reply.Events,
	}
	res.Success = true
	return res
}

// ResolveBatch разрешает до 100 номеров за вызов. Порядок ответа
// совпадает с порядком запроса.
func (s *Service) ResolveBatch(ctx context.Context, trackingNumbers []string, carrierHint string) ([]models.Resolution, error) {
	if len(trackingNumbers) == 0 {
		return []models.Resolution{}, nil
	}
	if len(trackingNumbers) > maxBatchSize {
		return nil, errors.Errorf("too many tracking numbers (max %d)", maxBatchSize)
	}

	out := make([]models.Resolution, 0, len(trackingNumbers))
	for _, tn := range trackingNumbers {
		out = append(out, s.Resolve(ctx, tn, carrierHint))
	}
	return out, nil
}

// InvalidateSnapshot сбрасывает кэшированный манифест после commit-батча.
func (s *Service) InvalidateSnapshot(ctx context.Context, trackingNumber string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Del(ctx, snapshotKey(trackingNumber)); err != nil {
		slog.Warn("snapshot invalidation failed",
			"trackingNumber", trackingNumber, "error", err.Error())
	}
}

type Stats struct {
	TotalManifests  int64   `json:"totalManifests"`
	WithPackage     int64   `json:"withPackageNumber"`
	AssociationRate float64 `json:"packageAssociationRate"`
}

func (s *Service) Stats(ctx context.Context) (Stats, error) {
	total, err := s.repo.CountManifests(ctx)
	if err != nil {
		return Stats{}, errors.Wrap(err, "count manifests")
	}
	withPkg, err := s.repo.CountWithPackage(ctx)
	if err != nil {
		return Stats{}, errors.Wrap(err, "count manifests with package")
	}

	st := Stats{TotalManifests: total, WithPackage: withPkg}
	if total > 0 {
		st.AssociationRate = float64(withPkg) / float64(total)
	}
	return st, nil
}

func (s *Service) lookupManifest(ctx context.Context, trackingNumber string) (*models.Manifest, error) {
	key := snapshotKey(trackingNumber)

	if s.cache != nil && s.snapshotTTL > 0 {
		if b, ok, err := s.cache.Get(ctx, key); err == nil && ok {
			var m models.Manifest
			if json.Unmarshal(b, &m) == nil {
				return &m, nil
			}
		}
	}

	m, err := s.repo.GetByTrackingNumber(ctx, trackingNumber)
	if err != nil {
		return nil, err
	}
	if m != nil && s.cache != nil && s.snapshotTTL > 0 {
		if b, err := json.Marshal(m); err == nil {
			_ = s.cache.Set(ctx, key, b, s.snapshotTTL)
		}
	}
	return m, nil
}

func snapshotKey(trackingNumber string) string {
	return "manifest:" + trackingNumber + ":snapshot"
}

func carrierKey(hint string) string {
	if hint == "" {
		return "auto"
	}
	return strings.ToLower(hint)
}
