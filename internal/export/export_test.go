package export_test

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/MrWong99/scrivano/internal/export"
	"github.com/MrWong99/scrivano/internal/transcript"
)

var testMeta = export.Metadata{
	Filename:  "hearing.wav",
	CreatedAt: time.Date(2026, 3, 14, 10, 30, 0, 0, time.UTC),
	Language:  "nl",
}

func testTranscript() *transcript.Transcript {
	return &transcript.Transcript{
		Segments: []transcript.Segment{
			{Speaker: "Speaker 1", Start: 0, End: 2, Text: "Goedemorgen allemaal."},
			{Speaker: "Speaker 1", Start: 2, End: 4, Text: "Wij beginnen de zitting."},
			{Speaker: "Speaker 2", Start: 4, End: 6, Text: "Dank u, voorzitter."},
		},
		FullText: "Goedemorgen allemaal. Wij beginnen de zitting. Dank u, voorzitter.",
		Duration: 6,
		Language: "nl",
	}
}

func TestParseFormat(t *testing.T) {
	t.Parallel()

	if f, err := export.ParseFormat("word"); err != nil || f != export.FormatWord {
		t.Fatalf("expected word format, got %v %v", f, err)
	}
	if f, err := export.ParseFormat("pdf"); err != nil || f != export.FormatPDF {
		t.Fatalf("expected pdf format, got %v %v", f, err)
	}
	if _, err := export.ParseFormat("odt"); !errors.Is(err, export.ErrUnknownFormat) {
		t.Fatalf("expected ErrUnknownFormat, got %v", err)
	}
}

func TestFormat_ContentTypeAndExtension(t *testing.T) {
	t.Parallel()

	if ct := export.FormatPDF.ContentType(); ct != "application/pdf" {
		t.Fatalf("unexpected pdf content type %q", ct)
	}
	if ext := export.FormatWord.Extension(); ext != ".docx" {
		t.Fatalf("unexpected word extension %q", ext)
	}
}

func TestWord_ProducesValidArchive(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	if err := export.Word(&buf, testTranscript(), testMeta); err != nil {
		t.Fatalf("Word: %v", err)
	}
	// OOXML documents are zip archives.
	if buf.Len() < 4 || !bytes.HasPrefix(buf.Bytes(), []byte("PK")) {
		t.Fatalf("expected a zip archive, got %d bytes starting with %q", buf.Len(), buf.Bytes()[:min(4, buf.Len())])
	}
}

func TestPDF_ProducesValidDocument(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	if err := export.PDF(&buf, testTranscript(), testMeta); err != nil {
		t.Fatalf("PDF: %v", err)
	}
	if !bytes.HasPrefix(buf.Bytes(), []byte("%PDF")) {
		t.Fatalf("expected a PDF header, got %q", buf.Bytes()[:min(8, buf.Len())])
	}
}

func TestRender_EmptyTranscript_IsValid(t *testing.T) {
	t.Parallel()

	empty := &transcript.Transcript{Language: "nl"}
	for _, f := range []export.Format{export.FormatWord, export.FormatPDF} {
		t.Run(string(f), func(t *testing.T) {
			t.Parallel()
			var buf bytes.Buffer
			if err := export.Render(f, &buf, empty, testMeta); err != nil {
				t.Fatalf("Render(%s): %v", f, err)
			}
			if buf.Len() == 0 {
				t.Fatal("expected a non-empty document for an empty transcript")
			}
		})
	}
}

func TestRender_UnknownFormat(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	err := export.Render(export.Format("odt"), &buf, testTranscript(), testMeta)
	if !errors.Is(err, export.ErrUnknownFormat) {
		t.Fatalf("expected ErrUnknownFormat, got %v", err)
	}
}

func TestPDF_WriterFailure_ReturnsRenderError(t *testing.T) {
	t.Parallel()

	err := export.PDF(failingWriter{}, testTranscript(), testMeta)
	var rerr *export.RenderError
	if !errors.As(err, &rerr) {
		t.Fatalf("expected *RenderError, got %v", err)
	}
	if rerr.Format != export.FormatPDF {
		t.Fatalf("expected pdf format in error, got %s", rerr.Format)
	}
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) {
	return 0, errors.New("disk full")
}
