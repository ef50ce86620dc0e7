// Package openai provides a transcribe.Provider backed by an OpenAI-compatible
// transcription model with built-in diarization (gpt-4o-transcribe-diarize).
//
// The model accepts a single multipart upload capped at 25 MB and answers with
// a verbose JSON payload carrying timed segments and speaker labels. It is a
// good fit for short recordings where the generative model's punctuation and
// formatting beat the batch engine; longer files belong to azurespeech.
package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/MrWong99/scrivano/pkg/provider/transcribe"
)

// maxUploadBytes is the transcription endpoint's per-file limit (25 MB).
const maxUploadBytes = 25 << 20

// defaultModel is the diarizing transcription model used when none is
// configured.
const defaultModel = "gpt-4o-transcribe-diarize"

// nativeFormats lists the containers the transcription endpoint accepts.
var nativeFormats = []string{
	".mp3", ".mp4", ".m4a", ".wav", ".webm", ".mpeg", ".mpga",
}

// Compile-time assertion that Provider implements transcribe.Provider.
var _ transcribe.Provider = (*Provider)(nil)

// config holds optional configuration for the provider.
type config struct {
	baseURL    string
	model      string
	httpClient *http.Client
}

// Option is a functional option for Provider.
type Option func(*config)

// WithBaseURL overrides the default OpenAI API base URL. Point it at an Azure
// OpenAI deployment endpoint or a local test server.
func WithBaseURL(url string) Option {
	return func(c *config) {
		c.baseURL = url
	}
}

// WithModel overrides the transcription model or deployment name.
func WithModel(model string) Option {
	return func(c *config) {
		if model != "" {
			c.model = model
		}
	}
}

// WithHTTPClient replaces the HTTP client. The default client carries no
// timeout of its own; calls are bounded by the caller's context.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *config) {
		c.httpClient = hc
	}
}

// Provider implements transcribe.Provider using the OpenAI audio API.
type Provider struct {
	client oai.Client
	model  string
}

// New constructs a new transcription Provider.
func New(apiKey string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, errors.New("openai: apiKey must not be empty")
	}

	cfg := &config{model: defaultModel}
	for _, o := range opts {
		o(cfg)
	}

	reqOpts := []option.RequestOption{
		option.WithAPIKey(apiKey),
	}
	if cfg.baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(cfg.baseURL))
	}
	if cfg.httpClient != nil {
		reqOpts = append(reqOpts, option.WithHTTPClient(cfg.httpClient))
	}

	return &Provider{client: oai.NewClient(reqOpts...), model: cfg.model}, nil
}

// Name implements transcribe.Provider.
func (p *Provider) Name() string { return "openai" }

// Limits implements transcribe.Provider.
func (p *Provider) Limits() transcribe.Limits {
	return transcribe.Limits{
		MaxUploadBytes: maxUploadBytes,
		NativeFormats:  nativeFormats,
	}
}

// verboseResponse mirrors the verbose_json payload. The SDK's typed
// Transcription drops the per-segment speaker labels the diarizing model
// emits, so the body is decoded into this struct instead.
type verboseResponse struct {
	Duration float64          `json:"duration"`
	Text     string           `json:"text"`
	Segments []verboseSegment `json:"segments"`
}

type verboseSegment struct {
	Speaker string  `json:"speaker"`
	Start   float64 `json:"start"`
	End     float64 `json:"end"`
	Text    string  `json:"text"`
}

// Transcribe implements transcribe.Provider.
func (p *Provider) Transcribe(ctx context.Context, req transcribe.Request) (transcribe.Result, error) {
	f, err := os.Open(req.Path)
	if err != nil {
		return transcribe.Result{}, fmt.Errorf("openai: open audio: %w", err)
	}
	defer f.Close()

	params := oai.AudioTranscriptionNewParams{
		File:                   f,
		Model:                  oai.AudioModel(p.model),
		ResponseFormat:         oai.AudioResponseFormatVerboseJSON,
		TimestampGranularities: []string{"segment"},
	}
	if req.Language != "" {
		params.Language = oai.String(req.Language)
	}
	// The endpoint has no phrase-list concept; vocabulary hints travel in the
	// prompt instead.
	if len(req.Phrases) > 0 {
		params.Prompt = oai.String(strings.Join(req.Phrases, ", "))
	}

	if req.OnProgress != nil {
		req.OnProgress("transcribing")
	}

	var raw verboseResponse
	_, err = p.client.Audio.Transcriptions.New(ctx, params, option.WithResponseBodyInto(&raw))
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return transcribe.Result{}, fmt.Errorf("openai: %w: %v", transcribe.ErrTimeout, err)
		}
		var apiErr *oai.Error
		if errors.As(err, &apiErr) {
			return transcribe.Result{}, &transcribe.ProviderError{
				Provider:   p.Name(),
				StatusCode: apiErr.StatusCode,
				Message:    apiErr.Message,
			}
		}
		return transcribe.Result{}, &transcribe.ProviderError{Provider: p.Name(), Message: err.Error()}
	}

	return toResult(raw)
}

// toResult converts the verbose payload into the provider-neutral Result.
func toResult(raw verboseResponse) (transcribe.Result, error) {
	res := transcribe.Result{
		FullText: strings.TrimSpace(raw.Text),
		Duration: raw.Duration,
	}
	for _, seg := range raw.Segments {
		text := strings.TrimSpace(seg.Text)
		if text == "" {
			continue
		}
		res.Segments = append(res.Segments, transcribe.RawSegment{
			Speaker: seg.Speaker,
			Start:   seg.Start,
			End:     seg.End,
			Text:    text,
		})
	}
	if len(res.Segments) == 0 && res.FullText == "" && raw.Duration == 0 {
		return transcribe.Result{}, fmt.Errorf("openai: %w: no segments or text", transcribe.ErrMalformedResponse)
	}
	return res, nil
}
