// Package httpapi exposes the Scrivano REST API: job submission, status and
// transcript retrieval, document export, progress streaming over WebSocket,
// and the operational endpoints (config, health, metrics).
package httpapi

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/MrWong99/scrivano/internal/config"
	"github.com/MrWong99/scrivano/internal/export"
	"github.com/MrWong99/scrivano/internal/health"
	"github.com/MrWong99/scrivano/internal/job"
	"github.com/MrWong99/scrivano/internal/observe"
	"github.com/MrWong99/scrivano/internal/preflight"
	"github.com/MrWong99/scrivano/internal/progress"
)

// maxRequestBytes caps the request body of an upload. It leaves headroom over
// the largest provider upload limit (300 MB) for multipart framing.
const maxRequestBytes = 320 << 20

// Options bundles the dependencies of a [Server]. All fields except Metrics
// and Health are required.
type Options struct {
	// BaseContext is the server lifetime context handed to submitted jobs.
	BaseContext context.Context

	// Config returns the current configuration. Backed by the config watcher
	// so hot-reloaded defaults take effect on the next request.
	Config func() *config.Config

	// Registry creates transcription providers by engine name.
	Registry *config.Registry

	// Store tracks jobs.
	Store *job.Store

	// Runner processes submitted jobs.
	Runner *job.Runner

	// Hub distributes progress events to WebSocket subscribers.
	Hub *progress.Hub

	// UploadDir is where uploaded audio is staged. Empty means the OS temp
	// directory.
	UploadDir string

	// Metrics receives instrumentation. Defaults to observe.DefaultMetrics().
	Metrics *observe.Metrics

	// Health serves the readiness and liveness endpoints. When nil a handler
	// without checkers is used.
	Health *health.Handler
}

// Server is the HTTP layer of the transcription service.
type Server struct {
	baseCtx   context.Context
	cfg       func() *config.Config
	registry  *config.Registry
	store     *job.Store
	runner    *job.Runner
	hub       *progress.Hub
	uploadDir string
	metrics   *observe.Metrics
	health    *health.Handler
}

// New creates a Server from its dependencies.
func New(o Options) *Server {
	if o.BaseContext == nil {
		o.BaseContext = context.Background()
	}
	if o.Metrics == nil {
		o.Metrics = observe.DefaultMetrics()
	}
	if o.Health == nil {
		o.Health = health.New()
	}
	return &Server{
		baseCtx:   o.BaseContext,
		cfg:       o.Config,
		registry:  o.Registry,
		store:     o.Store,
		runner:    o.Runner,
		hub:       o.Hub,
		uploadDir: o.UploadDir,
		metrics:   o.Metrics,
		health:    o.Health,
	}
}

// Handler returns the fully routed handler, wrapped in the observability
// middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/transcribe", s.handleTranscribe)
	mux.HandleFunc("GET /api/transcriptions", s.handleList)
	mux.HandleFunc("GET /api/transcription/{id}", s.handleGet)
	mux.HandleFunc("DELETE /api/transcription/{id}", s.handleDelete)
	mux.HandleFunc("GET /api/transcription/{id}/export/{format}", s.handleExport)
	mux.HandleFunc("GET /api/transcription/{id}/events", s.handleEvents)
	mux.HandleFunc("GET /api/config", s.handleConfig)

	s.health.Register(mux)
	mux.HandleFunc("GET /api/health", s.health.Healthz)
	mux.Handle("GET /metrics", promhttp.Handler())

	return observe.Middleware(s.metrics)(mux)
}

// handleConfig reports the non-sensitive runtime settings a client needs to
// build an upload form. Credentials are never included.
func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	cfg := s.cfg()

	var engines []string
	if cfg.Providers.AzureSpeech.Configured() {
		engines = append(engines, string(config.EngineAzureSpeech))
	}
	if cfg.Providers.OpenAI.Configured() {
		engines = append(engines, string(config.EngineOpenAI))
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"engines":          engines,
		"default_engine":   string(cfg.DefaultEngine()),
		"default_language": cfg.DefaultLanguage(),
		"export_formats":   export.Formats(),
		"accepted_formats": preflight.AcceptedFormats(),
		"max_upload_bytes": int64(maxRequestBytes),
		"ffmpeg_available": preflight.FFmpegAvailable(),
		"max_speakers":     cfg.Transcription.MaxSpeakers,
		"phrase_list":      cfg.Transcription.UsePhraseList,
	})
}

// ---- helpers ----

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
