package pgmanifest

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/BearBump/ManifestBox/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"
)

type UpsertResult struct {
	Inserted int
	Updated  int
	Skipped  int
	Errors   []string
}

const manifestColumns = `
  id, tracking_number, manifest_date,
  transport_code, customer_code, goods_code,
  package_number, length, width, height, weight, special_fee,
  created_at, updated_at`

// UpsertManifests пишет весь батч в одной транзакции: insert по новому ключу,
// полный overwrite изменяемых полей по существующему. (xmax = 0) отличает
// вставку от обновления. Ошибка отдельной записи не роняет батч; ошибка
// commit откатывает всё и переклассифицирует весь батч в errors/skipped,
// чтобы validRows = inserted + updated + skipped оставалось истинным.
func (s *Storage) UpsertManifests(ctx context.Context, items []models.ManifestInput) (UpsertResult, error) {
	var res UpsertResult
	if len(items) == 0 {
		return res, nil
	}

	now := time.Now().UTC()

	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return res, errors.Wrap(err, "begin tx")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	for _, it := range items {
		if reason := missingRequired(it); reason != "" {
			res.Skipped++
			res.Errors = append(res.Errors, fmt.Sprintf("record %q skipped: %s", it.TrackingNumber, reason))
			continue
		}

		var inserted bool
		err := tx.QueryRow(ctx, `
INSERT INTO cargo_manifests (
  tracking_number, manifest_date,
  transport_code, customer_code, goods_code,
  package_number, length, width, height, weight, special_fee,
  created_at, updated_at
)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$12)
ON CONFLICT (tracking_number)
DO UPDATE SET
  manifest_date = EXCLUDED.manifest_date,
  transport_code = EXCLUDED.transport_code,
  customer_code = EXCLUDED.customer_code,
  goods_code = EXCLUDED.goods_code,
  package_number = EXCLUDED.package_number,
  length = EXCLUDED.length,
  width = EXCLUDED.width,
  height = EXCLUDED.height,
  weight = EXCLUDED.weight,
  special_fee = EXCLUDED.special_fee,
  updated_at = EXCLUDED.updated_at
RETURNING (xmax = 0)
`, it.TrackingNumber, it.ManifestDate,
			it.TransportCode, it.CustomerCode, it.GoodsCode,
			it.PackageNumber, it.Length, it.Width, it.Height, it.Weight, it.SpecialFee,
			now).Scan(&inserted)
		if err != nil {
			res.Skipped++
			res.Errors = append(res.Errors, fmt.Sprintf("record %q failed: %v", it.TrackingNumber, err))
			slog.Error("upsert manifest", "tracking_number", it.TrackingNumber, "error", err.Error())
			continue
		}
		if inserted {
			res.Inserted++
		} else {
			res.Updated++
		}
	}

	if err := tx.Commit(ctx); err != nil {
		voided := res.Inserted + res.Updated
		res.Skipped += voided
		res.Inserted, res.Updated = 0, 0
		res.Errors = append(res.Errors, fmt.Sprintf("batch commit failed, %d records rolled back: %v", voided, err))
		return res, errors.Wrap(err, "commit tx")
	}

	return res, nil
}

func missingRequired(it models.ManifestInput) string {
	switch {
	case it.TrackingNumber == "":
		return "tracking_number is empty"
	case it.ManifestDate.IsZero():
		return "manifest_date is empty"
	case it.TransportCode == "":
		return "transport_code is empty"
	case it.CustomerCode == "":
		return "customer_code is empty"
	case it.GoodsCode == "":
		return "goods_code is empty"
	}
	return ""
}

// GetByTrackingNumber возвращает (nil, nil), если записи нет.
func (s *Storage) GetByTrackingNumber(ctx context.Context, trackingNumber string) (*models.Manifest, error) {
	row := s.db.QueryRow(ctx, `
SELECT`+manifestColumns+`
FROM cargo_manifests
WHERE tracking_number = $1
`, trackingNumber)

	m, err := scanManifest(row)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "select manifest")
	}
	return m, nil
}

func (s *Storage) ListManifests(ctx context.Context, limit, offset int) ([]*models.Manifest, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}

	rows, err := s.db.Query(ctx, `
SELECT`+manifestColumns+`
FROM cargo_manifests
ORDER BY updated_at DESC
LIMIT $1 OFFSET $2
`, limit, offset)
	if err != nil {
		return nil, errors.Wrap(err, "select manifests")
	}
	defer rows.Close()

	var out []*models.Manifest
	for rows.Next() {
		m, err := scanManifest(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scan manifest")
		}
		out = append(out, m)
	}
	if rows.Err() != nil {
		return nil, errors.Wrap(rows.Err(), "rows")
	}
	return out, nil
}

func (s *Storage) DeleteManifest(ctx context.Context, trackingNumber string) (bool, error) {
	tag, err := s.db.Exec(ctx, `DELETE FROM cargo_manifests WHERE tracking_number = $1`, trackingNumber)
	if err != nil {
		return false, errors.Wrap(err, "delete manifest")
	}
	return tag.RowsAffected() > 0, nil
}

func (s *Storage) CountManifests(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.QueryRow(ctx, `SELECT count(*) FROM cargo_manifests`).Scan(&n)
	return n, errors.Wrap(err, "count manifests")
}

func (s *Storage) CountWithPackage(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.QueryRow(ctx, `
SELECT count(*) FROM cargo_manifests
WHERE package_number IS NOT NULL AND package_number <> ''
`).Scan(&n)
	return n, errors.Wrap(err, "count manifests with package")
}

func scanManifest(row pgx.Row) (*models.Manifest, error) {
	var m models.Manifest
	var packageNumber *string
	var length, width, height, weight, specialFee *float64
	if err := row.Scan(
		&m.ID, &m.TrackingNumber, &m.ManifestDate,
		&m.TransportCode, &m.CustomerCode, &m.GoodsCode,
		&packageNumber, &length, &width, &height, &weight, &specialFee,
		&m.CreatedAt, &m.UpdatedAt,
	); err != nil {
		return nil, err
	}
	m.PackageNumber = packageNumber
	m.Length = length
	m.Width = width
	m.Height = height
	m.Weight = weight
	m.SpecialFee = specialFee
	return &m, nil
}
