package azurespeech_test

import (
	"encoding/json"
	"errors"
	"mime"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/MrWong99/scrivano/pkg/provider/transcribe"
	"github.com/MrWong99/scrivano/pkg/provider/transcribe/azurespeech"
)

// ---- helpers ----------------------------------------------------------------

// fakeResponse is the canned Fast Transcription payload served by the mock
// server: two speakers, three phrases, 9.5 s of audio.
var fakeResponse = map[string]any{
	"durationMilliseconds": 9500,
	"combinedPhrases": []map[string]any{
		{"text": "Goedemorgen allemaal. Dank u voorzitter. Wij beginnen."},
	},
	"phrases": []map[string]any{
		{"text": "Goedemorgen allemaal.", "offsetMilliseconds": 0, "durationMilliseconds": 2000, "speaker": 1},
		{"text": "Dank u voorzitter.", "offsetMilliseconds": 2500, "durationMilliseconds": 1800, "speaker": 0},
		{"text": "Wij beginnen.", "offsetMilliseconds": 5000, "durationMilliseconds": 1500, "speaker": 1},
	},
}

// capturedRequest holds the pieces of the incoming request the tests assert on.
type capturedRequest struct {
	key        string
	definition map[string]any
	audioName  string
	audioBytes int
}

// newMockServer serves the Fast Transcription endpoint, capturing the request
// into *got and answering with body (or status when non-200).
func newMockServer(t *testing.T, status int, body any, got *capturedRequest) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/speechtotext/transcriptions:transcribe" {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		if got != nil {
			got.key = r.Header.Get("Ocp-Apim-Subscription-Key")
			mt, params, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
			if err != nil || mt != "multipart/form-data" {
				http.Error(w, "bad content type", http.StatusBadRequest)
				return
			}
			if err := r.ParseMultipartForm(32 << 20); err != nil {
				http.Error(w, "bad multipart: "+err.Error(), http.StatusBadRequest)
				return
			}
			_ = params
			if def := r.FormValue("definition"); def != "" {
				_ = json.Unmarshal([]byte(def), &got.definition)
			}
			if f, hdr, err := r.FormFile("audio"); err == nil {
				got.audioName = hdr.Filename
				buf := make([]byte, 1<<20)
				n, _ := f.Read(buf)
				got.audioBytes = n
				f.Close()
			}
		}
		if status != http.StatusOK {
			http.Error(w, "boom", status)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(body)
	}))
}

// writeAudioFixture creates a small fake audio file and returns its path.
func writeAudioFixture(t *testing.T, name string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte("RIFF fake audio payload"), 0o600); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	return path
}

func newProvider(t *testing.T, endpoint string, opts ...azurespeech.Option) *azurespeech.Provider {
	t.Helper()
	opts = append(opts, azurespeech.WithEndpoint(endpoint))
	p, err := azurespeech.New("test-key", "", opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return p
}

// ---- construction -------------------------------------------------------------

func TestNew_EmptyKey_ReturnsError(t *testing.T) {
	t.Parallel()
	_, err := azurespeech.New("", "westeurope")
	if err == nil {
		t.Fatal("expected error for empty key, got nil")
	}
}

func TestNew_NoRegionNoEndpoint_ReturnsError(t *testing.T) {
	t.Parallel()
	_, err := azurespeech.New("key", "")
	if err == nil {
		t.Fatal("expected error when neither region nor endpoint is set, got nil")
	}
}

func TestLimits(t *testing.T) {
	t.Parallel()
	p, err := azurespeech.New("key", "westeurope")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	l := p.Limits()
	if l.MaxUploadBytes != 300<<20 {
		t.Fatalf("MaxUploadBytes: expected %d, got %d", 300<<20, l.MaxUploadBytes)
	}
	if !l.Native(".wav") || !l.Native(".wma") {
		t.Fatal("expected .wav and .wma to be native formats")
	}
	if l.Native(".avi") {
		t.Fatal("expected .avi to not be a native format")
	}
}

// ---- transcription -----------------------------------------------------------

func TestTranscribe_ParsesPhrases(t *testing.T) {
	t.Parallel()

	var got capturedRequest
	srv := newMockServer(t, http.StatusOK, fakeResponse, &got)
	defer srv.Close()

	p := newProvider(t, srv.URL)
	res, err := p.Transcribe(t.Context(), transcribe.Request{
		Path:     writeAudioFixture(t, "hearing.wav"),
		Language: "nl",
	})
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}

	if len(res.Segments) != 3 {
		t.Fatalf("expected 3 segments, got %d", len(res.Segments))
	}
	first := res.Segments[0]
	if first.Speaker != "1" || first.Start != 0 || first.End != 2.0 {
		t.Fatalf("unexpected first segment: %+v", first)
	}
	if res.Duration != 9.5 {
		t.Fatalf("expected duration 9.5, got %v", res.Duration)
	}
	if res.FullText == "" {
		t.Fatal("expected non-empty full text")
	}
}

func TestTranscribe_SendsDefinitionAndAuth(t *testing.T) {
	t.Parallel()

	var got capturedRequest
	srv := newMockServer(t, http.StatusOK, fakeResponse, &got)
	defer srv.Close()

	p := newProvider(t, srv.URL, azurespeech.WithMaxSpeakers(4))
	_, err := p.Transcribe(t.Context(), transcribe.Request{
		Path:     writeAudioFixture(t, "hearing.mp3"),
		Language: "nl",
		Phrases:  []string{"Raad van State", "appellant"},
	})
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}

	if got.key != "test-key" {
		t.Fatalf("expected subscription key header, got %q", got.key)
	}
	if got.audioName != "hearing.mp3" || got.audioBytes == 0 {
		t.Fatalf("audio part not uploaded correctly: name=%q bytes=%d", got.audioName, got.audioBytes)
	}

	locales, _ := got.definition["locales"].([]any)
	if len(locales) != 1 || locales[0] != "nl-NL" {
		t.Fatalf("expected locales [nl-NL], got %v", locales)
	}
	diar, _ := got.definition["diarization"].(map[string]any)
	if diar["enabled"] != true || diar["maxSpeakers"] != float64(4) {
		t.Fatalf("unexpected diarization spec: %v", diar)
	}
	pl, _ := got.definition["phraseList"].(map[string]any)
	phrases, _ := pl["phrases"].([]any)
	if len(phrases) != 2 {
		t.Fatalf("expected 2 boost phrases, got %v", phrases)
	}
}

func TestTranscribe_OmitsPhraseListWhenEmpty(t *testing.T) {
	t.Parallel()

	var got capturedRequest
	srv := newMockServer(t, http.StatusOK, fakeResponse, &got)
	defer srv.Close()

	p := newProvider(t, srv.URL)
	if _, err := p.Transcribe(t.Context(), transcribe.Request{
		Path: writeAudioFixture(t, "a.wav"),
	}); err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if _, present := got.definition["phraseList"]; present {
		t.Fatal("expected phraseList to be omitted when no phrases are given")
	}
}

func TestTranscribe_APIError_ReturnsProviderError(t *testing.T) {
	t.Parallel()

	srv := newMockServer(t, http.StatusTooManyRequests, nil, nil)
	defer srv.Close()

	p := newProvider(t, srv.URL)
	_, err := p.Transcribe(t.Context(), transcribe.Request{
		Path: writeAudioFixture(t, "a.wav"),
	})

	var perr *transcribe.ProviderError
	if !errors.As(err, &perr) {
		t.Fatalf("expected *transcribe.ProviderError, got %v", err)
	}
	if perr.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("expected status 429, got %d", perr.StatusCode)
	}
	if perr.Provider != "azure-speech" {
		t.Fatalf("expected provider azure-speech, got %q", perr.Provider)
	}
}

func TestTranscribe_EmptyPayload_ReturnsMalformedResponse(t *testing.T) {
	t.Parallel()

	srv := newMockServer(t, http.StatusOK, map[string]any{}, nil)
	defer srv.Close()

	p := newProvider(t, srv.URL)
	_, err := p.Transcribe(t.Context(), transcribe.Request{
		Path: writeAudioFixture(t, "a.wav"),
	})
	if !errors.Is(err, transcribe.ErrMalformedResponse) {
		t.Fatalf("expected ErrMalformedResponse, got %v", err)
	}
}

func TestTranscribe_MissingFile_ReturnsError(t *testing.T) {
	t.Parallel()

	srv := newMockServer(t, http.StatusOK, fakeResponse, nil)
	defer srv.Close()

	p := newProvider(t, srv.URL)
	_, err := p.Transcribe(t.Context(), transcribe.Request{Path: "/does/not/exist.wav"})
	if err == nil {
		t.Fatal("expected error for missing audio file, got nil")
	}
}

func TestTranscribe_ReportsProgress(t *testing.T) {
	t.Parallel()

	srv := newMockServer(t, http.StatusOK, fakeResponse, nil)
	defer srv.Close()

	var stages []string
	p := newProvider(t, srv.URL)
	_, err := p.Transcribe(t.Context(), transcribe.Request{
		Path:       writeAudioFixture(t, "a.wav"),
		OnProgress: func(stage string) { stages = append(stages, stage) },
	})
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if len(stages) < 2 {
		t.Fatalf("expected at least uploading+transcribing stages, got %v", stages)
	}
}

func TestTranscribe_SpeakerlessPhrases_HaveEmptyLabel(t *testing.T) {
	t.Parallel()

	body := map[string]any{
		"durationMilliseconds": 1000,
		"phrases": []map[string]any{
			{"text": "hello", "offsetMilliseconds": 0, "durationMilliseconds": 900},
		},
	}
	srv := newMockServer(t, http.StatusOK, body, nil)
	defer srv.Close()

	p := newProvider(t, srv.URL)
	res, err := p.Transcribe(t.Context(), transcribe.Request{
		Path: writeAudioFixture(t, "a.wav"),
	})
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if len(res.Segments) != 1 || res.Segments[0].Speaker != "" {
		t.Fatalf("expected one segment with empty speaker label, got %+v", res.Segments)
	}
}
