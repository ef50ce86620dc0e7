package job

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/metric"
	"golang.org/x/sync/semaphore"

	"github.com/MrWong99/scrivano/internal/observe"
	"github.com/MrWong99/scrivano/internal/preflight"
	"github.com/MrWong99/scrivano/internal/progress"
	"github.com/MrWong99/scrivano/internal/resilience"
	"github.com/MrWong99/scrivano/internal/transcript"
	"github.com/MrWong99/scrivano/pkg/provider/transcribe"
)

// RunnerConfig holds tuning knobs for a [Runner]. Zero-value fields are
// replaced with sensible defaults.
type RunnerConfig struct {
	// MaxConcurrent is the number of jobs processed simultaneously.
	// Default: 2.
	MaxConcurrent int64

	// ProviderTimeout bounds a single provider API call. Default: 10m.
	ProviderTimeout time.Duration

	// ConvertTimeout bounds a single ffmpeg run. Default: 5m.
	ConvertTimeout time.Duration

	// Phrases is the vocabulary hint list forwarded to providers. Nil when
	// the phrase list is disabled.
	Phrases []string

	// Metrics receives instrumentation. Defaults to observe.DefaultMetrics().
	Metrics *observe.Metrics
}

// Runner processes queued jobs on a bounded worker pool. Every exit path,
// panics included, funnels into the store's Complete or Fail so a job can
// never stick in processing.
type Runner struct {
	store    *Store
	hub      *progress.Hub
	metrics  *observe.Metrics
	preparer *preflight.Preparer

	sem             *semaphore.Weighted
	providerTimeout time.Duration
	phrases         []string

	mu       sync.Mutex
	breakers map[string]*resilience.CircuitBreaker

	wg sync.WaitGroup
}

// NewRunner creates a Runner over the given store and progress hub.
func NewRunner(store *Store, hub *progress.Hub, cfg RunnerConfig) *Runner {
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 2
	}
	if cfg.ProviderTimeout <= 0 {
		cfg.ProviderTimeout = 10 * time.Minute
	}
	if cfg.ConvertTimeout <= 0 {
		cfg.ConvertTimeout = 5 * time.Minute
	}
	if cfg.Metrics == nil {
		cfg.Metrics = observe.DefaultMetrics()
	}
	return &Runner{
		store:           store,
		hub:             hub,
		metrics:         cfg.Metrics,
		preparer:        &preflight.Preparer{ConvertTimeout: cfg.ConvertTimeout},
		sem:             semaphore.NewWeighted(cfg.MaxConcurrent),
		providerTimeout: cfg.ProviderTimeout,
		phrases:         cfg.Phrases,
	}
}

// Submit schedules the job for background processing and returns immediately.
// ctx is the server's base context; when it is cancelled before or during
// processing the job fails with a "cancelled" reason.
func (r *Runner) Submit(ctx context.Context, j Job, provider transcribe.Provider) {
	r.metrics.ActiveJobs.Add(ctx, 1)
	r.wg.Add(1)

	go func() {
		defer r.wg.Done()
		defer r.metrics.ActiveJobs.Add(context.WithoutCancel(ctx), -1)

		if err := r.sem.Acquire(ctx, 1); err != nil {
			r.fail(j, "cancelled before processing started")
			return
		}
		defer r.sem.Release(1)

		r.process(ctx, j, provider)
	}()
}

// Wait blocks until all submitted jobs have reached a terminal state. Called
// during graceful shutdown after the base context is cancelled.
func (r *Runner) Wait() {
	r.wg.Wait()
}

// process runs the full pipeline for one job: preflight, provider call,
// normalization.
func (r *Runner) process(ctx context.Context, j Job, provider transcribe.Provider) {
	start := time.Now()
	status := string(StatusFailed)
	defer func() {
		if rec := recover(); rec != nil {
			slog.Error("job processing panicked", "job_id", j.ID, "panic", rec)
			r.fail(j, fmt.Sprintf("internal error: %v", rec))
		}
		r.metrics.TranscriptionDuration.Record(context.WithoutCancel(ctx), time.Since(start).Seconds(),
			metric.WithAttributes(observe.Attr("provider", provider.Name()), observe.Attr("status", status)))
	}()

	if err := r.store.Begin(j.ID); err != nil {
		// The job was deleted while queued; nothing left to do.
		slog.Debug("skipping job", "job_id", j.ID, "reason", err)
		return
	}
	slog.Info("processing job", "job_id", j.ID, "provider", provider.Name(), "file", j.Filename)

	limits := provider.Limits()
	ext := strings.ToLower(filepath.Ext(j.UploadPath))
	if !limits.Native(ext) {
		r.hub.Publish(j.ID, "converting")
	}

	convStart := time.Now()
	prepared, err := r.preparer.Prepare(ctx, j.UploadPath, limits)
	if err != nil {
		r.fail(j, failureReason(ctx, err))
		return
	}
	defer prepared.Cleanup()
	if prepared.Converted {
		r.metrics.ConversionDuration.Record(ctx, time.Since(convStart).Seconds())
	}

	req := transcribe.Request{
		Path:     prepared.Path,
		Language: j.Language,
		Phrases:  r.phrases,
		OnProgress: func(stage string) {
			r.hub.Publish(j.ID, stage)
		},
	}

	callStart := time.Now()
	var res transcribe.Result
	callErr := r.breaker(provider.Name()).Execute(func() error {
		tctx, cancel := context.WithTimeout(ctx, r.providerTimeout)
		defer cancel()
		var terr error
		res, terr = provider.Transcribe(tctx, req)
		return terr
	})
	r.metrics.ProviderDuration.Record(context.WithoutCancel(ctx), time.Since(callStart).Seconds(),
		metric.WithAttributes(observe.Attr("provider", provider.Name()), observe.Attr("status", callStatus(callErr))))
	if callErr != nil {
		r.metrics.RecordProviderError(context.WithoutCancel(ctx), provider.Name(), errorKind(callErr))
		r.metrics.RecordProviderRequest(context.WithoutCancel(ctx), provider.Name(), "error")
		r.fail(j, failureReason(ctx, callErr))
		return
	}
	r.metrics.RecordProviderRequest(ctx, provider.Name(), "ok")

	r.hub.Publish(j.ID, "normalizing")

	// Some providers omit the duration; probe it as a best effort.
	if res.Duration == 0 {
		if d, err := preflight.Duration(ctx, prepared.Path); err == nil {
			res.Duration = d
		}
	}

	tr, err := transcript.New(res, j.Language)
	if err != nil {
		r.fail(j, failureReason(ctx, err))
		return
	}

	if err := r.store.Complete(j.ID, tr); err != nil {
		slog.Warn("could not complete job", "job_id", j.ID, "error", err)
		return
	}
	status = string(StatusCompleted)
	r.metrics.RecordJobFinished(context.WithoutCancel(ctx), status)
	r.hub.PublishTerminal(j.ID, string(StatusCompleted), "")
	slog.Info("job completed", "job_id", j.ID, "segments", len(tr.Segments), "duration_s", tr.Duration)
}

// fail records the terminal failure in the store and the progress hub. A lost
// Complete/Fail race is logged and otherwise ignored.
func (r *Runner) fail(j Job, reason string) {
	if err := r.store.Fail(j.ID, reason); err != nil {
		slog.Warn("could not fail job", "job_id", j.ID, "error", err)
		return
	}
	r.metrics.RecordJobFinished(context.Background(), string(StatusFailed))
	r.hub.PublishTerminal(j.ID, string(StatusFailed), reason)
	slog.Warn("job failed", "job_id", j.ID, "reason", reason)
}

// breaker returns the circuit breaker guarding the named provider, creating
// it on first use.
func (r *Runner) breaker(name string) *resilience.CircuitBreaker {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.breakers == nil {
		r.breakers = map[string]*resilience.CircuitBreaker{}
	}
	cb, ok := r.breakers[name]
	if !ok {
		cb = resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{Name: name})
		r.breakers[name] = cb
	}
	return cb
}

// failureReason turns a pipeline error into the human-readable message stored
// on the job. Cancellation of the server context takes precedence.
func failureReason(ctx context.Context, err error) string {
	if ctx.Err() != nil {
		return "cancelled"
	}
	switch {
	case errors.Is(err, transcribe.ErrTimeout):
		return "transcription provider timed out"
	case errors.Is(err, transcribe.ErrMalformedResponse):
		return "transcription provider returned an unusable response"
	case errors.Is(err, resilience.ErrCircuitOpen):
		return "transcription provider temporarily unavailable"
	case errors.Is(err, preflight.ErrFFmpegMissing):
		return "audio conversion unavailable: ffmpeg not installed"
	case errors.Is(err, preflight.ErrPayloadTooLarge):
		return "audio exceeds the provider upload limit"
	case errors.Is(err, preflight.ErrUnsupportedFormat):
		return "unsupported audio format"
	}
	var cerr *preflight.ConversionError
	if errors.As(err, &cerr) {
		return cerr.Error()
	}
	var perr *transcribe.ProviderError
	if errors.As(err, &perr) {
		return perr.Error()
	}
	return err.Error()
}

// errorKind classifies a provider error for the error counter.
func errorKind(err error) string {
	switch {
	case errors.Is(err, transcribe.ErrTimeout):
		return "timeout"
	case errors.Is(err, transcribe.ErrMalformedResponse):
		return "malformed_response"
	case errors.Is(err, resilience.ErrCircuitOpen):
		return "circuit_open"
	default:
		return "api"
	}
}

// callStatus maps a provider call outcome to a metric attribute value.
func callStatus(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
