// Command scrivano is the main entry point for the Scrivano transcription server.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/MrWong99/scrivano/internal/config"
	"github.com/MrWong99/scrivano/internal/health"
	"github.com/MrWong99/scrivano/internal/httpapi"
	"github.com/MrWong99/scrivano/internal/job"
	"github.com/MrWong99/scrivano/internal/observe"
	"github.com/MrWong99/scrivano/internal/phrases"
	"github.com/MrWong99/scrivano/internal/preflight"
	"github.com/MrWong99/scrivano/internal/progress"
	"github.com/MrWong99/scrivano/pkg/provider/transcribe"
	"github.com/MrWong99/scrivano/pkg/provider/transcribe/azurespeech"
	openaitx "github.com/MrWong99/scrivano/pkg/provider/transcribe/openai"
)

// logLevel is shared between the logger and the config reload callback so a
// hot-reloaded log level takes effect without a restart.
var logLevel slog.LevelVar

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	flag.Parse()

	// ── Load configuration with hot reload ────────────────────────────────────
	watcher, err := config.NewWatcher(*configPath, onConfigChange)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "scrivano: config file %q not found — copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "scrivano: %v\n", err)
		}
		return 1
	}
	defer watcher.Stop()
	cfg := watcher.Current()

	// ── Logger ────────────────────────────────────────────────────────────────
	logLevel.Set(slogLevel(cfg.Server.LogLevel))
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: &logLevel})))

	slog.Info("scrivano starting",
		"config", *configPath,
		"listen_addr", listenAddr(cfg),
		"log_level", cfg.Server.LogLevel,
	)

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Telemetry ─────────────────────────────────────────────────────────────
	shutdownOtel, err := observe.InitProvider(ctx, observe.ProviderConfig{ServiceName: "scrivano"})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}

	// ── Provider registry ─────────────────────────────────────────────────────
	reg := config.NewRegistry()
	registerEngines(reg)

	// ── Upload staging directory ──────────────────────────────────────────────
	if cfg.Uploads.Dir != "" {
		if err := os.MkdirAll(cfg.Uploads.Dir, 0o755); err != nil {
			slog.Error("failed to create upload directory", "dir", cfg.Uploads.Dir, "err", err)
			return 1
		}
	}
	if !preflight.FFmpegAvailable() {
		slog.Warn("ffmpeg not found on PATH — only provider-native audio formats will be accepted")
	}

	// ── Job pipeline ──────────────────────────────────────────────────────────
	var phraseList []string
	if cfg.Transcription.UsePhraseList {
		phraseList = phrases.List()
	}

	store := job.NewStore()
	hub := progress.NewHub()
	runner := job.NewRunner(store, hub, job.RunnerConfig{
		MaxConcurrent:   int64(cfg.Limits.MaxConcurrentJobs),
		ProviderTimeout: cfg.Limits.ProviderTimeout(),
		ConvertTimeout:  cfg.Limits.ConvertTimeout(),
		Phrases:         phraseList,
	})

	// ── HTTP server ───────────────────────────────────────────────────────────
	checks := health.New(
		health.ProvidersConfigured(func() bool {
			c := watcher.Current()
			return c.Providers.AzureSpeech.Configured() || c.Providers.OpenAI.Configured()
		}),
		health.FFmpeg(preflight.FFmpegAvailable),
	)

	api := httpapi.New(httpapi.Options{
		BaseContext: ctx,
		Config:      watcher.Current,
		Registry:    reg,
		Store:       store,
		Runner:      runner,
		Hub:         hub,
		UploadDir:   cfg.Uploads.Dir,
		Health:      checks,
	})

	srv := &http.Server{
		Addr:              listenAddr(cfg),
		Handler:           api.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		var serveErr error
		if tls := cfg.Server.TLS; tls != nil {
			slog.Info("server ready (https)", "addr", srv.Addr)
			serveErr = srv.ListenAndServeTLS(tls.CertFile, tls.KeyFile)
		} else {
			slog.Info("server ready (http)", "addr", srv.Addr)
			serveErr = srv.ListenAndServe()
		}
		if !errors.Is(serveErr, http.ErrServerClosed) {
			errCh <- serveErr
		}
	}()

	select {
	case <-ctx.Done():
		slog.Info("shutdown signal received, stopping…")
	case err := <-errCh:
		slog.Error("server error", "err", err)
		return 1
	}

	// ── Graceful shutdown ─────────────────────────────────────────────────────
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Warn("http shutdown error", "err", err)
	}

	// In-flight jobs see the cancelled base context and fail fast; wait for
	// them to reach a terminal state.
	runner.Wait()

	if err := shutdownOtel(shutdownCtx); err != nil {
		slog.Warn("telemetry shutdown error", "err", err)
	}
	slog.Info("goodbye")
	return 0
}

// registerEngines wires the built-in transcription provider factories into reg.
func registerEngines(reg *config.Registry) {
	reg.RegisterTranscriber(config.EngineAzureSpeech, func(cfg *config.Config) (transcribe.Provider, error) {
		pc := cfg.Providers.AzureSpeech
		if !pc.Configured() {
			return nil, errors.New("azure_speech credentials not configured")
		}
		var opts []azurespeech.Option
		if pc.Endpoint != "" {
			opts = append(opts, azurespeech.WithEndpoint(pc.Endpoint))
		}
		if n := cfg.Transcription.MaxSpeakers; n > 0 {
			opts = append(opts, azurespeech.WithMaxSpeakers(n))
		}
		return azurespeech.New(pc.Key, pc.Region, opts...)
	})

	reg.RegisterTranscriber(config.EngineOpenAI, func(cfg *config.Config) (transcribe.Provider, error) {
		pc := cfg.Providers.OpenAI
		if !pc.Configured() {
			return nil, errors.New("openai credentials not configured")
		}
		var opts []openaitx.Option
		if pc.BaseURL != "" {
			opts = append(opts, openaitx.WithBaseURL(pc.BaseURL))
		}
		if pc.Deployment != "" {
			opts = append(opts, openaitx.WithModel(pc.Deployment))
		}
		return openaitx.New(pc.APIKey, opts...)
	})
}

// onConfigChange reacts to a hot-reloaded configuration. Only a subset of
// settings can change at runtime; the rest takes effect after a restart.
func onConfigChange(old, new *config.Config) {
	d := config.Diff(old, new)
	if !d.Changed() {
		return
	}
	if d.LogLevelChanged {
		logLevel.Set(slogLevel(d.NewLogLevel))
		slog.Info("log level changed", "level", d.NewLogLevel)
	}
	if d.DefaultLanguageChanged {
		slog.Info("default language changed", "language", d.NewDefaultLanguage)
	}
	if d.DefaultEngineChanged {
		slog.Info("default engine changed", "engine", d.NewDefaultEngine)
	}
	if d.MaxSpeakersChanged {
		slog.Info("max speakers changed", "max_speakers", d.NewMaxSpeakers)
	}
	if d.PhraseListChanged {
		slog.Warn("phrase list toggle changed — restart required to apply", "enabled", d.PhraseListEnabled)
	}
}

func listenAddr(cfg *config.Config) string {
	if cfg.Server.ListenAddr == "" {
		return ":8080"
	}
	return cfg.Server.ListenAddr
}

func slogLevel(level config.LogLevel) slog.Level {
	switch level {
	case config.LogDebug:
		return slog.LevelDebug
	case config.LogWarn:
		return slog.LevelWarn
	case config.LogError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
