package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"
)

// Load reads the YAML configuration file at path and returns a validated [Config].
// It is a convenience wrapper around [LoadFromReader] and [Validate].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r and validates the result.
// Useful in tests where configs are constructed from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}
	if cfg.Server.TLS != nil {
		if cfg.Server.TLS.CertFile == "" || cfg.Server.TLS.KeyFile == "" {
			errs = append(errs, errors.New("server.tls requires both cert_file and key_file"))
		}
	}

	// Providers — at least one engine must be usable.
	azureOK := cfg.Providers.AzureSpeech.Configured()
	openaiOK := cfg.Providers.OpenAI.Configured()
	if !azureOK && !openaiOK {
		errs = append(errs, errors.New("providers: no transcription engine configured; set providers.azure_speech or providers.openai"))
	}
	if cfg.Providers.AzureSpeech.Key != "" && cfg.Providers.AzureSpeech.Region == "" && cfg.Providers.AzureSpeech.Endpoint == "" {
		errs = append(errs, errors.New("providers.azure_speech: region or endpoint is required when key is set"))
	}

	// Limits
	if cfg.Limits.MaxConcurrentJobs < 0 {
		errs = append(errs, fmt.Errorf("limits.max_concurrent_jobs %d must not be negative", cfg.Limits.MaxConcurrentJobs))
	}
	if cfg.Limits.ProviderTimeoutSeconds < 0 {
		errs = append(errs, fmt.Errorf("limits.provider_timeout_seconds %d must not be negative", cfg.Limits.ProviderTimeoutSeconds))
	}
	if cfg.Limits.ConvertTimeoutSeconds < 0 {
		errs = append(errs, fmt.Errorf("limits.convert_timeout_seconds %d must not be negative", cfg.Limits.ConvertTimeoutSeconds))
	}

	// Transcription defaults
	if cfg.Transcription.DefaultEngine != "" {
		if !cfg.Transcription.DefaultEngine.IsValid() {
			errs = append(errs, fmt.Errorf("transcription.default_engine %q is invalid; valid values: azure-speech, openai", cfg.Transcription.DefaultEngine))
		} else if !engineConfigured(cfg, cfg.Transcription.DefaultEngine) {
			errs = append(errs, fmt.Errorf("transcription.default_engine %q has no credentials configured", cfg.Transcription.DefaultEngine))
		}
	}
	if cfg.Transcription.MaxSpeakers < 0 {
		errs = append(errs, fmt.Errorf("transcription.max_speakers %d must not be negative", cfg.Transcription.MaxSpeakers))
	}

	// Only one engine configured is fine, just worth knowing at startup.
	if azureOK != openaiOK {
		slog.Info("single transcription engine configured",
			"azure_speech", azureOK,
			"openai", openaiOK,
		)
	}

	return errors.Join(errs...)
}

// engineConfigured reports whether the named engine has usable credentials.
func engineConfigured(cfg *Config, e Engine) bool {
	switch e {
	case EngineAzureSpeech:
		return cfg.Providers.AzureSpeech.Configured()
	case EngineOpenAI:
		return cfg.Providers.OpenAI.Configured()
	}
	return false
}

// DefaultEngine returns the configured default engine, falling back to the
// first engine with credentials.
func (c *Config) DefaultEngine() Engine {
	if c.Transcription.DefaultEngine != "" {
		return c.Transcription.DefaultEngine
	}
	if c.Providers.AzureSpeech.Configured() {
		return EngineAzureSpeech
	}
	return EngineOpenAI
}

// DefaultLanguage returns the configured default language code.
func (c *Config) DefaultLanguage() string {
	if c.Transcription.DefaultLanguage != "" {
		return c.Transcription.DefaultLanguage
	}
	return "nl"
}
