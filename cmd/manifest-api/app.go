package main

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/BearBump/ManifestBox/internal/broker/messages"
	"github.com/BearBump/ManifestBox/internal/models"
	"github.com/BearBump/ManifestBox/internal/services/ingestion"
	"github.com/BearBump/ManifestBox/internal/services/resolver"
)

type manifestAPIOpts struct {
	httpAddr string

	topic         string
	consumerGroup string

	onListen func(httpAddr string)
}

type kafkaConsumer interface {
	Consume(ctx context.Context, handler func(msg messages.ManifestCommitted) error) error
}

type manifestStore interface {
	ListManifests(ctx context.Context, limit, offset int) ([]*models.Manifest, error)
	DeleteManifest(ctx context.Context, trackingNumber string) (bool, error)
}

func runManifestAPI(ctx context.Context, opts manifestAPIOpts, ing *ingestion.Ingestor, res *resolver.Service, st manifestStore, consumer kafkaConsumer) error {
	httpLis, err := net.Listen("tcp", opts.httpAddr)
	if err != nil {
		return err
	}
	if opts.onListen != nil {
		opts.onListen(httpLis.Addr().String())
	}

	r := chi.NewRouter()
	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Post("/manifests/upload", handleUpload(ing))
	r.Get("/manifests", handleList(st))
	r.Delete("/manifests/{number}", handleDelete(st, res))
	r.Get("/manifests/stats", handleStats(res))
	r.Get("/tracking/{number}", handleResolve(res))
	r.Post("/tracking/batch", handleResolveBatch(res))

	if consumer != nil {
		go func() {
			slog.Info("kafka consumer started", "topic", opts.topic, "group", opts.consumerGroup)
			err := consumer.Consume(ctx, func(msg messages.ManifestCommitted) error {
				// После commit-батча снапшоты загруженных номеров протухли.
				for _, tn := range msg.TrackingNumbers {
					res.InvalidateSnapshot(ctx, tn)
				}
				slog.Info("manifest snapshots invalidated",
					"file", msg.FileName, "count", len(msg.TrackingNumbers))
				return nil
			})
			if err != nil && ctx.Err() == nil {
				slog.Error("kafka consumer stopped", "error", err.Error())
			}
		}()
	}

	srv := &http.Server{Handler: r}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	slog.Info("HTTP server listening", "addr", httpLis.Addr().String())
	if err := srv.Serve(httpLis); err != http.ErrServerClosed {
		return err
	}
	return ctx.Err()
}

func handleUpload(ing *ingestion.Ingestor) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, ingestion.MaxFileSizeBytes+1<<20)
		if err := r.ParseMultipartForm(ingestion.MaxFileSizeBytes); err != nil {
			writeError(w, http.StatusBadRequest, "invalid multipart form: "+err.Error())
			return
		}

		file, header, err := r.FormFile("file")
		if err != nil {
			writeError(w, http.StatusBadRequest, "file field is required")
			return
		}
		defer file.Close()

		content, err := io.ReadAll(io.LimitReader(file, ingestion.MaxFileSizeBytes+1))
		if err != nil {
			writeError(w, http.StatusBadRequest, "failed to read file: "+err.Error())
			return
		}

		mode := ingestion.Mode(r.FormValue("mode"))
		if mode == "" {
			mode = ingestion.ModePreview
		}
		if mode != ingestion.ModePreview && mode != ingestion.ModeCommit {
			writeError(w, http.StatusBadRequest, "mode must be preview or commit")
			return
		}

		out := ing.Ingest(r.Context(), content, header.Filename, mode)
		status := http.StatusOK
		if !out.Success && out.Statistics.TotalRows == 0 {
			// Структурная ошибка: файл не дошёл до построчной валидации.
			status = http.StatusBadRequest
		}
		writeJSON(w, status, out)
	}
}

func handleResolve(res *resolver.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		number := chi.URLParam(r, "number")
		hint := r.URL.Query().Get("carrier")
		writeJSON(w, http.StatusOK, res.Resolve(r.Context(), number, hint))
	}
}

func handleResolveBatch(res *resolver.Service) http.HandlerFunc {
	type request struct {
		TrackingNumbers []string `json:"trackingNumbers"`
		Carrier         string   `json:"carrier"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		var req request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
			return
		}

		out, err := res.ResolveBatch(r.Context(), req.TrackingNumbers, req.Carrier)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"resolutions": out})
	}
}

func handleList(st manifestStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		limit, _ := strconv.Atoi(q.Get("limit"))
		offset, _ := strconv.Atoi(q.Get("offset"))

		list, err := st.ListManifests(r.Context(), limit, offset)
		if err != nil {
			slog.Error("list manifests failed", "error", err.Error())
			writeError(w, http.StatusInternalServerError, "list unavailable")
			return
		}
		if list == nil {
			list = []*models.Manifest{}
		}
		writeJSON(w, http.StatusOK, map[string]any{"manifests": list})
	}
}

func handleDelete(st manifestStore, res *resolver.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		number := chi.URLParam(r, "number")
		deleted, err := st.DeleteManifest(r.Context(), number)
		if err != nil {
			slog.Error("delete manifest failed", "trackingNumber", number, "error", err.Error())
			writeError(w, http.StatusInternalServerError, "delete failed")
			return
		}
		if !deleted {
			writeError(w, http.StatusNotFound, "manifest not found")
			return
		}
		res.InvalidateSnapshot(r.Context(), number)
		writeJSON(w, http.StatusOK, map[string]bool{"deleted": true})
	}
}

func handleStats(res *resolver.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		st, err := res.Stats(r.Context())
		if err != nil {
			slog.Error("stats query failed", "error", err.Error())
			writeError(w, http.StatusInternalServerError, "stats unavailable")
			return
		}
		writeJSON(w, http.StatusOK, st)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
