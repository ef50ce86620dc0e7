// Package config provides the configuration schema, loader, provider
// registry, and hot-reload watcher for the Scrivano transcription service.
package config

import "time"

// LogLevel controls log verbosity for the Scrivano server.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Engine selects a transcription provider.
type Engine string

const (
	// EngineAzureSpeech uses the Azure Speech Fast Transcription batch API.
	EngineAzureSpeech Engine = "azure-speech"

	// EngineOpenAI uses an OpenAI-compatible diarizing transcription model.
	EngineOpenAI Engine = "openai"
)

// IsValid reports whether e is a recognised engine.
func (e Engine) IsValid() bool {
	return e == EngineAzureSpeech || e == EngineOpenAI
}

// Engines lists the selectable engine names for the config endpoint.
func Engines() []string {
	return []string{string(EngineAzureSpeech), string(EngineOpenAI)}
}

// Config is the root configuration structure for Scrivano.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader].
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Providers     ProvidersConfig     `yaml:"providers"`
	Limits        LimitsConfig        `yaml:"limits"`
	Uploads       UploadsConfig       `yaml:"uploads"`
	Transcription TranscriptionConfig `yaml:"transcription"`
}

// ServerConfig holds network and logging settings for the Scrivano server.
type ServerConfig struct {
	// ListenAddr is the TCP address the server listens on (e.g., ":8080").
	ListenAddr string `yaml:"listen_addr"`

	// LogLevel controls verbosity.
	LogLevel LogLevel `yaml:"log_level"`

	// TLS configures TLS for the server. When nil, the server runs plain HTTP.
	TLS *TLSConfig `yaml:"tls"`
}

// TLSConfig holds TLS certificate paths for enabling HTTPS.
type TLSConfig struct {
	// CertFile is the path to the PEM-encoded TLS certificate.
	CertFile string `yaml:"cert_file"`

	// KeyFile is the path to the PEM-encoded TLS private key.
	KeyFile string `yaml:"key_file"`
}

// ProvidersConfig holds the credentials for each transcription engine. An
// engine with an empty credential block is unavailable at runtime.
type ProvidersConfig struct {
	AzureSpeech AzureSpeechConfig `yaml:"azure_speech"`
	OpenAI      OpenAIConfig      `yaml:"openai"`
}

// AzureSpeechConfig configures the Azure Speech Fast Transcription engine.
type AzureSpeechConfig struct {
	// Key is the Azure subscription key.
	Key string `yaml:"key"`

	// Region is the Azure region (e.g., "westeurope"). Ignored when Endpoint
	// is set.
	Region string `yaml:"region"`

	// Endpoint overrides the endpoint derived from Region. Useful for
	// sovereign clouds.
	Endpoint string `yaml:"endpoint"`
}

// Configured reports whether the engine has usable credentials.
func (c AzureSpeechConfig) Configured() bool {
	return c.Key != "" && (c.Region != "" || c.Endpoint != "")
}

// OpenAIConfig configures the OpenAI-compatible transcription engine.
type OpenAIConfig struct {
	// APIKey is the authentication key for the API.
	APIKey string `yaml:"api_key"`

	// BaseURL overrides the default API endpoint. Point it at an Azure OpenAI
	// deployment to use that instead.
	BaseURL string `yaml:"base_url"`

	// Deployment is the transcription model or deployment name. Empty selects
	// the provider default.
	Deployment string `yaml:"deployment"`
}

// Configured reports whether the engine has usable credentials.
func (c OpenAIConfig) Configured() bool {
	return c.APIKey != ""
}

// LimitsConfig bounds resource usage of job processing.
type LimitsConfig struct {
	// MaxConcurrentJobs is the worker pool size. Default: 2.
	MaxConcurrentJobs int `yaml:"max_concurrent_jobs"`

	// ProviderTimeoutSeconds bounds a single provider API call. Default: 600.
	ProviderTimeoutSeconds int `yaml:"provider_timeout_seconds"`

	// ConvertTimeoutSeconds bounds a single ffmpeg run. Default: 300.
	ConvertTimeoutSeconds int `yaml:"convert_timeout_seconds"`
}

// ProviderTimeout returns the provider call deadline as a duration.
func (l LimitsConfig) ProviderTimeout() time.Duration {
	if l.ProviderTimeoutSeconds <= 0 {
		return 10 * time.Minute
	}
	return time.Duration(l.ProviderTimeoutSeconds) * time.Second
}

// ConvertTimeout returns the ffmpeg deadline as a duration.
func (l LimitsConfig) ConvertTimeout() time.Duration {
	if l.ConvertTimeoutSeconds <= 0 {
		return 5 * time.Minute
	}
	return time.Duration(l.ConvertTimeoutSeconds) * time.Second
}

// UploadsConfig controls where uploaded audio is staged.
type UploadsConfig struct {
	// Dir is the directory uploads are written to before processing.
	// Empty means the OS temp directory.
	Dir string `yaml:"dir"`
}

// TranscriptionConfig holds recognition defaults.
type TranscriptionConfig struct {
	// DefaultLanguage is the short language code used when a request does not
	// specify one. Default: "nl".
	DefaultLanguage string `yaml:"default_language"`

	// DefaultEngine is the engine used when a request does not specify one.
	// Default: azure-speech.
	DefaultEngine Engine `yaml:"default_engine"`

	// MaxSpeakers is the diarization speaker ceiling. Default: 10.
	MaxSpeakers int `yaml:"max_speakers"`

	// UsePhraseList enables the built-in vocabulary hint list. Disabled by
	// default.
	UsePhraseList bool `yaml:"use_phrase_list"`
}
