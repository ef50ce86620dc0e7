package config_test

import (
	"strings"
	"testing"

	"github.com/MrWong99/scrivano/internal/config"
)

const validYAML = `
server:
  listen_addr: ":8080"
  log_level: info
providers:
  azure_speech:
    key: azure-key
    region: westeurope
  openai:
    api_key: openai-key
    deployment: gpt-4o-transcribe-diarize
limits:
  max_concurrent_jobs: 4
  provider_timeout_seconds: 300
  convert_timeout_seconds: 120
uploads:
  dir: /var/lib/scrivano/uploads
transcription:
  default_language: nl
  default_engine: azure-speech
  max_speakers: 6
  use_phrase_list: true
`

func TestLoadFromReader_ValidConfig(t *testing.T) {
	t.Parallel()

	cfg, err := config.LoadFromReader(strings.NewReader(validYAML))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Server.ListenAddr != ":8080" {
		t.Errorf("listen_addr: got %q", cfg.Server.ListenAddr)
	}
	if !cfg.Providers.AzureSpeech.Configured() || !cfg.Providers.OpenAI.Configured() {
		t.Error("expected both engines to be configured")
	}
	if cfg.Limits.MaxConcurrentJobs != 4 {
		t.Errorf("max_concurrent_jobs: got %d", cfg.Limits.MaxConcurrentJobs)
	}
	if got := cfg.Limits.ProviderTimeout().Seconds(); got != 300 {
		t.Errorf("provider timeout: got %vs", got)
	}
	if cfg.Transcription.DefaultEngine != config.EngineAzureSpeech {
		t.Errorf("default_engine: got %q", cfg.Transcription.DefaultEngine)
	}
	if !cfg.Transcription.UsePhraseList {
		t.Error("expected phrase list to be enabled")
	}
}

func TestLoadFromReader_UnknownFieldRejected(t *testing.T) {
	t.Parallel()

	yaml := `
server:
  listen_addr: ":8080"
  bogus_field: true
providers:
  openai:
    api_key: key
`
	if _, err := config.LoadFromReader(strings.NewReader(yaml)); err == nil {
		t.Fatal("expected error for unknown field, got nil")
	}
}

func TestLoad_MissingFile(t *testing.T) {
	t.Parallel()
	if _, err := config.Load("/nonexistent/config.yaml"); err == nil {
		t.Fatal("expected error for missing file, got nil")
	}
}

func TestValidate_Failures(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		yaml string
		want string
	}{
		{
			name: "invalid log level",
			yaml: `
server:
  log_level: loud
providers:
  openai:
    api_key: key
`,
			want: "server.log_level",
		},
		{
			name: "no engine configured",
			yaml: `
server:
  log_level: info
`,
			want: "no transcription engine",
		},
		{
			name: "azure key without region",
			yaml: `
providers:
  azure_speech:
    key: some-key
`,
			want: "region or endpoint",
		},
		{
			name: "invalid default engine",
			yaml: `
providers:
  openai:
    api_key: key
transcription:
  default_engine: whisper
`,
			want: "default_engine",
		},
		{
			name: "default engine without credentials",
			yaml: `
providers:
  openai:
    api_key: key
transcription:
  default_engine: azure-speech
`,
			want: "no credentials",
		},
		{
			name: "negative worker count",
			yaml: `
providers:
  openai:
    api_key: key
limits:
  max_concurrent_jobs: -1
`,
			want: "max_concurrent_jobs",
		},
		{
			name: "tls without key file",
			yaml: `
server:
  tls:
    cert_file: /etc/certs/tls.crt
providers:
  openai:
    api_key: key
`,
			want: "cert_file and key_file",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			_, err := config.LoadFromReader(strings.NewReader(tc.yaml))
			if err == nil {
				t.Fatal("expected validation error, got nil")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected error containing %q, got %v", tc.want, err)
			}
		})
	}
}

func TestValidate_CollectsAllErrors(t *testing.T) {
	t.Parallel()

	yaml := `
server:
  log_level: loud
limits:
  max_concurrent_jobs: -1
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected validation errors, got nil")
	}
	msg := err.Error()
	for _, want := range []string{"server.log_level", "no transcription engine", "max_concurrent_jobs"} {
		if !strings.Contains(msg, want) {
			t.Errorf("expected joined error to mention %q, got %v", want, msg)
		}
	}
}
