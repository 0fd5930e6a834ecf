package ingestion

import (
	"fmt"

	"github.com/BearBump/ManifestBox/internal/models"
)

// VerifyStatistics — чистая перекрёстная проверка счётчиков после загрузки.
// results и committedCount опциональны: results=nil пропускает сверку с
// вердиктами, committedCount<0 подставляет ValidRows.
func VerifyStatistics(stats models.Statistics, results []models.RowResult, committedCount int) (bool, []string) {
	var violations []string

	if stats.TotalRows != stats.ValidRows+stats.InvalidRows {
		violations = append(violations, fmt.Sprintf(
			"totalRows(%d) != validRows(%d) + invalidRows(%d)",
			stats.TotalRows, stats.ValidRows, stats.InvalidRows))
	}

	if results != nil {
		if stats.TotalRows != len(results) {
			violations = append(violations, fmt.Sprintf(
				"totalRows(%d) != validation results count(%d)", stats.TotalRows, len(results)))
		}
		valid := 0
		for _, r := range results {
			if r.Valid {
				valid++
			}
		}
		if stats.ValidRows != valid {
			violations = append(violations, fmt.Sprintf(
				"validRows(%d) != valid results count(%d)", stats.ValidRows, valid))
		}
	}

	if stats.Inserted > 0 || stats.Updated > 0 || stats.Skipped > 0 {
		expected := committedCount
		if expected < 0 {
			expected = stats.ValidRows
		}
		stored := stats.Inserted + stats.Updated + stats.Skipped
		if stored != expected {
			violations = append(violations, fmt.Sprintf(
				"inserted(%d) + updated(%d) + skipped(%d) = %d != expected committed(%d)",
				stats.Inserted, stats.Updated, stats.Skipped, stored, expected))
		}
	}

	for _, c := range []struct {
		name string
		n    int
	}{
		{"totalRows", stats.TotalRows},
		{"validRows", stats.ValidRows},
		{"invalidRows", stats.InvalidRows},
		{"inserted", stats.Inserted},
		{"updated", stats.Updated},
		{"skipped", stats.Skipped},
	} {
		if c.n < 0 {
			violations = append(violations, fmt.Sprintf("%s must not be negative: %d", c.name, c.n))
		}
	}

	if stats.ValidRows > stats.TotalRows {
		violations = append(violations, fmt.Sprintf(
			"validRows(%d) > totalRows(%d)", stats.ValidRows, stats.TotalRows))
	}
	if stats.InvalidRows > stats.TotalRows {
		violations = append(violations, fmt.Sprintf(
			"invalidRows(%d) > totalRows(%d)", stats.InvalidRows, stats.TotalRows))
	}

	return len(violations) == 0, violations
}
