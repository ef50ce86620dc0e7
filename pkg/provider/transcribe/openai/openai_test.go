package openai_test

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/MrWong99/scrivano/pkg/provider/transcribe"
	"github.com/MrWong99/scrivano/pkg/provider/transcribe/openai"
)

// ---- helpers ----------------------------------------------------------------

// fakeVerbose is the canned verbose_json payload served by the mock server.
var fakeVerbose = map[string]any{
	"duration": 7.2,
	"text":     "Good morning everyone. Thank you chair.",
	"segments": []map[string]any{
		{"speaker": "A", "start": 0.0, "end": 3.1, "text": "Good morning everyone."},
		{"speaker": "B", "start": 3.5, "end": 7.2, "text": "Thank you chair."},
	},
}

// capturedRequest holds the pieces of the incoming request the tests assert on.
type capturedRequest struct {
	auth     string
	model    string
	language string
	prompt   string
	format   string
	fileName string
}

// newMockServer serves the audio transcription endpoint, capturing the request
// into *got and answering with body (or an error payload when non-200).
func newMockServer(t *testing.T, status int, body any, got *capturedRequest) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || !strings.HasSuffix(r.URL.Path, "/audio/transcriptions") {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		if err := r.ParseMultipartForm(32 << 20); err != nil {
			http.Error(w, "bad multipart: "+err.Error(), http.StatusBadRequest)
			return
		}
		if got != nil {
			got.auth = r.Header.Get("Authorization")
			got.model = r.FormValue("model")
			got.language = r.FormValue("language")
			got.prompt = r.FormValue("prompt")
			got.format = r.FormValue("response_format")
			if _, hdr, err := r.FormFile("file"); err == nil {
				got.fileName = hdr.Filename
			}
		}
		if status != http.StatusOK {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(status)
			_ = json.NewEncoder(w).Encode(map[string]any{
				"error": map[string]any{"message": "boom", "type": "server_error"},
			})
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
	if err := os.WriteFile(path, []byte("ID3 fake audio payload"), 0o600); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	return path
}

func newProvider(t *testing.T, baseURL string, opts ...openai.Option) *openai.Provider {
	t.Helper()
	opts = append(opts, openai.WithBaseURL(baseURL))
	p, err := openai.New("test-key", opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return p
}

// ---- construction -------------------------------------------------------------

func TestNew_EmptyKey_ReturnsError(t *testing.T) {
	t.Parallel()
	_, err := openai.New("")
	if err == nil {
		t.Fatal("expected error for empty key, got nil")
	}
}

func TestLimits(t *testing.T) {
	t.Parallel()
	p, err := openai.New("key")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	l := p.Limits()
	if l.MaxUploadBytes != 25<<20 {
		t.Fatalf("MaxUploadBytes: expected %d, got %d", 25<<20, l.MaxUploadBytes)
	}
	if !l.Native(".m4a") || !l.Native(".mp3") {
		t.Fatal("expected .m4a and .mp3 to be native formats")
	}
	if l.Native(".flac") {
		t.Fatal("expected .flac to not be a native format")
	}
}

// ---- transcription -----------------------------------------------------------

func TestTranscribe_ParsesSegments(t *testing.T) {
	t.Parallel()

	var got capturedRequest
	srv := newMockServer(t, http.StatusOK, fakeVerbose, &got)
	defer srv.Close()

	p := newProvider(t, srv.URL)
	res, err := p.Transcribe(t.Context(), transcribe.Request{
		Path:     writeAudioFixture(t, "interview.mp3"),
		Language: "en",
	})
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}

	if len(res.Segments) != 2 {
		t.Fatalf("expected 2 segments, got %d", len(res.Segments))
	}
	first := res.Segments[0]
	if first.Speaker != "A" || first.Start != 0 || first.End != 3.1 {
		t.Fatalf("unexpected first segment: %+v", first)
	}
	if res.Duration != 7.2 {
		t.Fatalf("expected duration 7.2, got %v", res.Duration)
	}
	if res.FullText != "Good morning everyone. Thank you chair." {
		t.Fatalf("unexpected full text: %q", res.FullText)
	}
}

func TestTranscribe_SendsModelLanguageAndAuth(t *testing.T) {
	t.Parallel()

	var got capturedRequest
	srv := newMockServer(t, http.StatusOK, fakeVerbose, &got)
	defer srv.Close()

	p := newProvider(t, srv.URL, openai.WithModel("my-deployment"))
	_, err := p.Transcribe(t.Context(), transcribe.Request{
		Path:     writeAudioFixture(t, "interview.m4a"),
		Language: "nl",
		Phrases:  []string{"Raad van State", "appellant"},
	})
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}

	if got.auth != "Bearer test-key" {
		t.Fatalf("expected bearer auth, got %q", got.auth)
	}
	if got.model != "my-deployment" {
		t.Fatalf("expected model my-deployment, got %q", got.model)
	}
	if got.language != "nl" {
		t.Fatalf("expected language nl, got %q", got.language)
	}
	if got.format != "verbose_json" {
		t.Fatalf("expected verbose_json response format, got %q", got.format)
	}
	if !strings.Contains(got.prompt, "Raad van State") {
		t.Fatalf("expected vocabulary hints in prompt, got %q", got.prompt)
	}
	if got.fileName != "interview.m4a" {
		t.Fatalf("expected file part interview.m4a, got %q", got.fileName)
	}
}

func TestTranscribe_APIError_ReturnsProviderError(t *testing.T) {
	t.Parallel()

	srv := newMockServer(t, http.StatusBadGateway, nil, nil)
	defer srv.Close()

	p := newProvider(t, srv.URL)
	_, err := p.Transcribe(t.Context(), transcribe.Request{
		Path: writeAudioFixture(t, "a.mp3"),
	})

	var perr *transcribe.ProviderError
	if !errors.As(err, &perr) {
		t.Fatalf("expected *transcribe.ProviderError, got %v", err)
	}
	if perr.StatusCode != http.StatusBadGateway {
		t.Fatalf("expected status 502, got %d", perr.StatusCode)
	}
	if perr.Provider != "openai" {
		t.Fatalf("expected provider openai, got %q", perr.Provider)
	}
}

func TestTranscribe_EmptyPayload_ReturnsMalformedResponse(t *testing.T) {
	t.Parallel()

	srv := newMockServer(t, http.StatusOK, map[string]any{}, nil)
	defer srv.Close()

	p := newProvider(t, srv.URL)
	_, err := p.Transcribe(t.Context(), transcribe.Request{
		Path: writeAudioFixture(t, "a.mp3"),
	})
	if !errors.Is(err, transcribe.ErrMalformedResponse) {
		t.Fatalf("expected ErrMalformedResponse, got %v", err)
	}
}

func TestTranscribe_MissingFile_ReturnsError(t *testing.T) {
	t.Parallel()

	srv := newMockServer(t, http.StatusOK, fakeVerbose, nil)
	defer srv.Close()

	p := newProvider(t, srv.URL)
	_, err := p.Transcribe(t.Context(), transcribe.Request{Path: "/does/not/exist.mp3"})
	if err == nil {
		t.Fatal("expected error for missing audio file, got nil")
	}
}

func TestTranscribe_BlankSegments_AreDropped(t *testing.T) {
	t.Parallel()

	body := map[string]any{
		"duration": 2.0,
		"text":     "hello",
		"segments": []map[string]any{
			{"speaker": "A", "start": 0.0, "end": 1.0, "text": "   "},
			{"speaker": "A", "start": 1.0, "end": 2.0, "text": "hello"},
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
	if len(res.Segments) != 1 || res.Segments[0].Text != "hello" {
		t.Fatalf("expected the blank segment to be dropped, got %+v", res.Segments)
	}
}
