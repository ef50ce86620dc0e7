// Package azurespeech provides a transcribe.Provider backed by the Azure
// Speech Fast Transcription REST API.
//
// Fast Transcription accepts a direct multipart file upload (no blob storage
// round trip), supports files up to 2 hours / 300 MB, performs speaker
// diarization server-side, and answers synchronously — typically in about a
// quarter of the audio duration. Diarization and language coverage are the
// widest of the supported engines, which makes this the default choice for
// long recordings.
//
// Usage:
//
//	p, err := azurespeech.New(key, "westeurope",
//	    azurespeech.WithMaxSpeakers(10),
//	)
//	res, err := p.Transcribe(ctx, transcribe.Request{Path: "hearing.wav", Language: "nl"})
package azurespeech

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/MrWong99/scrivano/pkg/provider/transcribe"
)

// apiVersion is the Fast Transcription API version. 2025-10-15 carries the
// improved diarization model.
const apiVersion = "2025-10-15"

// maxUploadBytes is the Fast Transcription per-file limit (300 MB).
const maxUploadBytes = 300 << 20

// defaultMaxSpeakers is the diarization speaker ceiling sent when the caller
// does not override it. Ten covers typical meeting and hearing recordings.
const defaultMaxSpeakers = 10

// nativeFormats lists the audio containers Fast Transcription accepts
// directly, per the batch-transcription audio data documentation.
var nativeFormats = []string{
	".wav", ".mp3", ".ogg", ".opus", ".flac", ".wma", ".aac", ".webm", ".amr", ".speex",
}

// localeOverrides maps short language codes to Azure Speech locales where the
// naive code-CODE doubling would be wrong.
var localeOverrides = map[string]string{
	"nl": "nl-NL",
	"en": "en-US",
	"de": "de-DE",
	"fr": "fr-FR",
	"es": "es-ES",
	"it": "it-IT",
}

// contentTypes maps file extensions to the Content-Type announced for the
// audio part. Unknown extensions fall back to audio/wav.
var contentTypes = map[string]string{
	".wav":  "audio/wav",
	".mp3":  "audio/mpeg",
	".ogg":  "audio/ogg",
	".opus": "audio/ogg",
	".flac": "audio/flac",
	".wma":  "audio/x-ms-wma",
	".aac":  "audio/aac",
	".webm": "audio/webm",
	".amr":  "audio/amr",
}

// Compile-time assertion that Provider implements transcribe.Provider.
var _ transcribe.Provider = (*Provider)(nil)

// Option is a functional option for configuring a Provider.
type Option func(*Provider)

// WithMaxSpeakers sets the diarization speaker ceiling sent in the request
// definition. Defaults to 10.
func WithMaxSpeakers(n int) Option {
	return func(p *Provider) {
		if n > 0 {
			p.maxSpeakers = n
		}
	}
}

// WithEndpoint overrides the API endpoint derived from the region. Useful for
// sovereign clouds and for pointing tests at a local server.
func WithEndpoint(endpoint string) Option {
	return func(p *Provider) {
		p.endpoint = strings.TrimSuffix(endpoint, "/")
	}
}

// WithHTTPClient replaces the HTTP client. The default client carries no
// timeout of its own; calls are bounded by the caller's context.
func WithHTTPClient(c *http.Client) Option {
	return func(p *Provider) {
		p.httpClient = c
	}
}

// Provider implements transcribe.Provider against the Fast Transcription API.
type Provider struct {
	key         string
	endpoint    string
	maxSpeakers int
	httpClient  *http.Client
}

// New creates a Provider for the given subscription key and region
// (e.g., "westeurope"). Both must be non-empty unless WithEndpoint is used.
func New(key, region string, opts ...Option) (*Provider, error) {
	if key == "" {
		return nil, errors.New("azurespeech: subscription key must not be empty")
	}
	p := &Provider{
		key:         key,
		maxSpeakers: defaultMaxSpeakers,
		httpClient:  &http.Client{},
	}
	if region != "" {
		p.endpoint = fmt.Sprintf("https://%s.api.cognitive.microsoft.com", region)
	}
	for _, o := range opts {
		o(p)
	}
	if p.endpoint == "" {
		return nil, errors.New("azurespeech: either region or WithEndpoint is required")
	}
	return p, nil
}

// Name implements transcribe.Provider.
func (p *Provider) Name() string { return "azure-speech" }

// Limits implements transcribe.Provider.
func (p *Provider) Limits() transcribe.Limits {
	return transcribe.Limits{
		MaxUploadBytes: maxUploadBytes,
		NativeFormats:  nativeFormats,
	}
}

// definition is the JSON "definition" form field controlling recognition.
type definition struct {
	Locales             []string        `json:"locales"`
	Diarization         diarizationSpec `json:"diarization"`
	ProfanityFilterMode string          `json:"profanityFilterMode"`
	PhraseList          *phraseList     `json:"phraseList,omitempty"`
}

type diarizationSpec struct {
	MaxSpeakers int  `json:"maxSpeakers"`
	Enabled     bool `json:"enabled"`
}

type phraseList struct {
	Phrases []string `json:"phrases"`
}

// response mirrors the subset of the Fast Transcription payload we consume.
type response struct {
	DurationMilliseconds int64            `json:"durationMilliseconds"`
	CombinedPhrases      []combinedPhrase `json:"combinedPhrases"`
	Phrases              []phrase         `json:"phrases"`
}

type combinedPhrase struct {
	Text string `json:"text"`
}

type phrase struct {
	Text                 string `json:"text"`
	OffsetMilliseconds   int64  `json:"offsetMilliseconds"`
	DurationMilliseconds int64  `json:"durationMilliseconds"`
	Speaker              *int   `json:"speaker"`
}

// Transcribe implements transcribe.Provider. It streams the audio file as a
// multipart upload alongside the JSON definition and parses the synchronous
// response into raw segments.
func (p *Provider) Transcribe(ctx context.Context, req transcribe.Request) (transcribe.Result, error) {
	f, err := os.Open(req.Path)
	if err != nil {
		return transcribe.Result{}, fmt.Errorf("azurespeech: open audio: %w", err)
	}
	defer f.Close()

	def := definition{
		Locales:             []string{locale(req.Language)},
		Diarization:         diarizationSpec{MaxSpeakers: p.maxSpeakers, Enabled: true},
		ProfanityFilterMode: "None",
	}
	if len(req.Phrases) > 0 {
		def.PhraseList = &phraseList{Phrases: req.Phrases}
	}
	defJSON, err := json.Marshal(def)
	if err != nil {
		return transcribe.Result{}, fmt.Errorf("azurespeech: marshal definition: %w", err)
	}

	progress(req, "uploading")

	// The whole body is buffered before sending; Fast Transcription caps
	// uploads at 300 MB which the preflight layer enforces beforehand.
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	fw, err := mw.CreateFormFile("audio", filepath.Base(req.Path))
	if err != nil {
		return transcribe.Result{}, fmt.Errorf("azurespeech: create form file: %w", err)
	}
	if _, err := io.Copy(fw, f); err != nil {
		return transcribe.Result{}, fmt.Errorf("azurespeech: read audio: %w", err)
	}
	if err := mw.WriteField("definition", string(defJSON)); err != nil {
		return transcribe.Result{}, fmt.Errorf("azurespeech: write definition field: %w", err)
	}
	if err := mw.Close(); err != nil {
		return transcribe.Result{}, fmt.Errorf("azurespeech: close multipart writer: %w", err)
	}

	url := fmt.Sprintf("%s/speechtotext/transcriptions:transcribe?api-version=%s", p.endpoint, apiVersion)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &body)
	if err != nil {
		return transcribe.Result{}, fmt.Errorf("azurespeech: create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", mw.FormDataContentType())
	httpReq.Header.Set("Ocp-Apim-Subscription-Key", p.key)
	// Announced for diagnostics only; the service sniffs the actual container.
	httpReq.Header.Set("X-Audio-Content-Type", contentType(req.Path))

	progress(req, "transcribing")

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return transcribe.Result{}, fmt.Errorf("azurespeech: %w: %v", transcribe.ErrTimeout, err)
		}
		return transcribe.Result{}, &transcribe.ProviderError{Provider: p.Name(), Message: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return transcribe.Result{}, &transcribe.ProviderError{
			Provider:   p.Name(),
			StatusCode: resp.StatusCode,
			Message:    strings.TrimSpace(string(snippet)),
		}
	}

	var parsed response
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return transcribe.Result{}, fmt.Errorf("azurespeech: %w: %v", transcribe.ErrMalformedResponse, err)
	}

	return toResult(parsed)
}

// toResult converts the Fast Transcription payload into the provider-neutral
// Result. A payload with neither phrases nor combined text is malformed.
func toResult(r response) (transcribe.Result, error) {
	res := transcribe.Result{
		Duration: float64(r.DurationMilliseconds) / 1000.0,
	}

	parts := make([]string, 0, len(r.CombinedPhrases))
	for _, cp := range r.CombinedPhrases {
		if cp.Text != "" {
			parts = append(parts, cp.Text)
		}
	}
	res.FullText = strings.Join(parts, " ")

	for _, ph := range r.Phrases {
		text := strings.TrimSpace(ph.Text)
		if text == "" {
			continue
		}
		speaker := ""
		if ph.Speaker != nil {
			speaker = fmt.Sprintf("%d", *ph.Speaker)
		}
		res.Segments = append(res.Segments, transcribe.RawSegment{
			Speaker: speaker,
			Start:   float64(ph.OffsetMilliseconds) / 1000.0,
			End:     float64(ph.OffsetMilliseconds+ph.DurationMilliseconds) / 1000.0,
			Text:    text,
		})
	}

	if len(res.Segments) == 0 && res.FullText == "" && r.DurationMilliseconds == 0 {
		return transcribe.Result{}, fmt.Errorf("azurespeech: %w: no phrases or combined text", transcribe.ErrMalformedResponse)
	}
	return res, nil
}

// locale converts a short language code to the Azure Speech locale form.
// Unknown codes fall back to code-CODE doubling ("pt" → "pt-PT").
func locale(lang string) string {
	if lang == "" {
		return localeOverrides["nl"]
	}
	if l, ok := localeOverrides[lang]; ok {
		return l
	}
	return lang + "-" + strings.ToUpper(lang)
}

// contentType returns the announced content type for the file extension.
func contentType(path string) string {
	if ct, ok := contentTypes[strings.ToLower(filepath.Ext(path))]; ok {
		return ct
	}
	return "audio/wav"
}

// progress invokes the request's OnProgress callback when set.
func progress(req transcribe.Request, stage string) {
	if req.OnProgress != nil {
		req.OnProgress(stage)
	}
}
