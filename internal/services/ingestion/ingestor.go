package ingestion

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/BearBump/ManifestBox/internal/broker/messages"
	"github.com/BearBump/ManifestBox/internal/models"
	"github.com/BearBump/ManifestBox/internal/storage/pgmanifest"
)

type Mode string

const (
	ModePreview Mode = "preview"
	ModeCommit  Mode = "commit"
)

// Превью возвращает не больше этого числа строк; статистика всё равно
// считается по всем строкам.
const previewSampleSize = 20

const MaxFileSizeBytes = 10 << 20

type Repository interface {
	UpsertManifests(ctx context.Context, items []models.ManifestInput) (pgmanifest.UpsertResult, error)
}

type Producer interface {
	PublishManifestCommitted(ctx context.Context, topic string, msg messages.ManifestCommitted) error
}

type Ingestor struct {
	repo      Repository
	validator *Validator

	producer Producer
	topic    string
}

func New(repo Repository) *Ingestor {
	return &Ingestor{repo: repo, validator: NewValidator()}
}

// WithProducer включает публикацию manifest.committed после commit-батча.
func (g *Ingestor) WithProducer(p Producer, topic string) *Ingestor {
	g.producer = p
	g.topic = topic
	return g
}

// Ingest прогоняет файл через пайплайн decode -> normalize -> validate ->
// (commit: upsert). Структурные ошибки терминальны и возвращаются без
// статистики; построчные ошибки копятся и никогда не прерывают батч.
func (g *Ingestor) Ingest(ctx context.Context, content []byte, filename string, mode Mode) models.IngestResult {
	start := time.Now()
	res := models.IngestResult{Errors: []string{}}

	if len(content) > MaxFileSizeBytes {
		res.Errors = append(res.Errors, fmt.Sprintf("file exceeds %d MB limit", MaxFileSizeBytes>>20))
		return res
	}
	if !supportedExtension(filename) {
		res.Errors = append(res.Errors, fmt.Sprintf("unsupported file format: %s", filename))
		return res
	}

	table, err := decodeFile(content, filename)
	if err != nil {
		res.Errors = append(res.Errors, fmt.Sprintf("file decode failed: %v", err))
		return res
	}
	if len(table.Rows) == 0 {
		res.Errors = append(res.Errors, "file has no data rows")
		return res
	}

	table = normalizeColumns(table)

	if colErrs := g.validator.ValidateColumns(table); len(colErrs) > 0 {
		res.Errors = append(res.Errors, colErrs...)
		return res
	}

	g.validator.ResetDuplicates()

	// Номера строк как в Excel: заголовок — строка 1, данные со строки 2.
	results := make([]models.RowResult, 0, len(table.Rows))
	for i, row := range table.Rows {
		results = append(results, g.validator.ValidateRow(rowMap(table.Header, row), i+2))
	}

	stats := models.Statistics{TotalRows: len(results)}
	for _, r := range results {
		if r.Valid {
			stats.ValidRows++
		} else {
			stats.InvalidRows++
		}
	}

	switch mode {
	case ModePreview:
		res.Statistics = stats
		res.Success = true
		n := len(results)
		if n > previewSampleSize {
			n = previewSampleSize
		}
		res.Preview = results[:n]
	case ModeCommit:
		res = g.commit(ctx, filename, results, stats)
	default:
		res.Errors = append(res.Errors, fmt.Sprintf("unknown ingest mode: %q", mode))
		return res
	}

	if ok, violations := VerifyStatistics(res.Statistics, results, -1); !ok {
		// Не должно случаться; громкий лог вместо падения.
		slog.Error("ingest statistics inconsistent", "file", filename, "violations", strings.Join(violations, "; "))
	}

	slog.Info("ingest finished",
		"file", filename,
		"mode", string(mode),
		"total", res.Statistics.TotalRows,
		"valid", res.Statistics.ValidRows,
		"invalid", res.Statistics.InvalidRows,
		"duration", time.Since(start).String(),
	)
	return res
}

func (g *Ingestor) commit(ctx context.Context, filename string, results []models.RowResult, stats models.Statistics) models.IngestResult {
	res := models.IngestResult{Errors: []string{}}

	// Сборка кандидата может упасть позже валидатора (поздняя коэрция
	// типов): такая строка задним числом помечается невалидной.
	candidates := make([]models.ManifestInput, 0, stats.ValidRows)
	for i := range results {
		if !results[i].Valid {
			continue
		}
		input, err := buildInput(results[i].Data)
		if err != nil {
			results[i].Valid = false
			results[i].Errors = append(results[i].Errors,
				fmt.Sprintf("row %d record build failed: %v", results[i].RowNumber, err))
			stats.ValidRows--
			stats.InvalidRows++
			continue
		}
		candidates = append(candidates, input)
	}

	if len(candidates) > 0 {
		out, err := g.repo.UpsertManifests(ctx, candidates)
		stats.Inserted = out.Inserted
		stats.Updated = out.Updated
		stats.Skipped = out.Skipped
		res.Errors = append(res.Errors, out.Errors...)
		if err != nil {
			slog.Error("manifest batch commit failed", "file", filename, "error", err.Error())
			res.Statistics = stats
			return res
		}
		g.publishCommitted(ctx, filename, candidates, out)
	}

	res.Statistics = stats
	res.Success = true
	return res
}

func (g *Ingestor) publishCommitted(ctx context.Context, filename string, candidates []models.ManifestInput, out pgmanifest.UpsertResult) {
	if g.producer == nil || g.topic == "" {
		return
	}

	numbers := make([]string, 0, len(candidates))
	for _, c := range candidates {
		numbers = append(numbers, c.TrackingNumber)
	}
	msg := messages.ManifestCommitted{
		FileName:        filename,
		TrackingNumbers: numbers,
		Inserted:        out.Inserted,
		Updated:         out.Updated,
		Skipped:         out.Skipped,
		CommittedAt:     time.Now().UTC(),
	}
	// Уведомление — best effort: загрузка уже зафиксирована в БД.
	if err := g.producer.PublishManifestCommitted(ctx, g.topic, msg); err != nil {
		slog.Warn("publish manifest.committed failed", "file", filename, "error", err.Error())
	}
}

func buildInput(data map[string]string) (models.ManifestInput, error) {
	date, err := ParseManifestDate(data[FieldManifestDate])
	if err != nil {
		return models.ManifestInput{}, err
	}

	input := models.ManifestInput{
		TrackingNumber: data[FieldTrackingNumber],
		ManifestDate:   date,
		TransportCode:  data[FieldTransportCode],
		CustomerCode:   data[FieldCustomerCode],
		GoodsCode:      data[FieldGoodsCode],
	}
	if pn := data[FieldPackageNumber]; pn != "" {
		input.PackageNumber = &pn
	}

	for _, f := range []struct {
		name string
		dst  **float64
	}{
		{FieldLength, &input.Length},
		{FieldWidth, &input.Width},
		{FieldHeight, &input.Height},
		{FieldWeight, &input.Weight},
		{FieldSpecialFee, &input.SpecialFee},
	} {
		raw := data[f.name]
		if raw == "" {
			continue
		}
		n, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return models.ManifestInput{}, fmt.Errorf("%s: %w", f.name, err)
		}
		v := n
		*f.dst = &v
	}

	return input, nil
}
