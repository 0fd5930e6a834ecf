package pgmanifest

import (
	"context"

	"github.com/pkg/errors"
)

func (s *Storage) initSchema(ctx context.Context) error {
	stmts := []string{
		`
CREATE TABLE IF NOT EXISTS cargo_manifests (
  id BIGSERIAL PRIMARY KEY,
  tracking_number TEXT NOT NULL UNIQUE,
  manifest_date DATE NOT NULL,
  transport_code TEXT NOT NULL,
  customer_code TEXT NOT NULL,
  goods_code TEXT NOT NULL,
  package_number TEXT NULL,
  length NUMERIC(10,2) NULL,
  width NUMERIC(10,2) NULL,
  height NUMERIC(10,2) NULL,
  weight NUMERIC(10,3) NULL,
  special_fee NUMERIC(10,2) NULL,
  created_at TIMESTAMPTZ NOT NULL,
  updated_at TIMESTAMPTZ NOT NULL
)`,
		// Резолвер ищет группировочные номера, индекс только по непустым.
		`CREATE INDEX IF NOT EXISTS idx_cargo_manifests_package_number
ON cargo_manifests(package_number) WHERE package_number IS NOT NULL`,
		`CREATE INDEX IF NOT EXISTS idx_cargo_manifests_manifest_date ON cargo_manifests(manifest_date)`,
	}

	for _, q := range stmts {
		if _, err := s.db.Exec(ctx, q); err != nil {
			return errors.Wrap(err, "init schema")
		}
	}
	return nil
}
