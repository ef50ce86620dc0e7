// Package export renders completed transcripts as downloadable documents.
//
// Two formats are supported: Word (OOXML via fumiama/go-docx) and PDF (via
// go-pdf/fpdf). Both produce the same structure: a centered title, a metadata
// block (file, date, language), and the transcript body as speaker turns with
// a bold speaker label per paragraph. An empty transcript renders a valid
// document with header and footer and no body.
package export

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/MrWong99/scrivano/internal/transcript"
)

// ErrUnknownFormat is returned when the requested export format is not
// supported.
var ErrUnknownFormat = errors.New("export: unknown format")

// RenderError wraps a document library or writer failure.
type RenderError struct {
	Format Format
	Err    error
}

// Error implements the error interface.
func (e *RenderError) Error() string {
	return fmt.Sprintf("export: rendering %s document failed: %v", e.Format, e.Err)
}

// Unwrap returns the underlying error.
func (e *RenderError) Unwrap() error { return e.Err }

// Format identifies a document output format.
type Format string

const (
	FormatWord Format = "word"
	FormatPDF  Format = "pdf"
)

// ParseFormat maps a URL path value to a Format.
func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case FormatWord:
		return FormatWord, nil
	case FormatPDF:
		return FormatPDF, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownFormat, s)
}

// ContentType returns the MIME type served for the format.
func (f Format) ContentType() string {
	switch f {
	case FormatWord:
		return "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	case FormatPDF:
		return "application/pdf"
	}
	return "application/octet-stream"
}

// Extension returns the file extension (with leading dot) for the format.
func (f Format) Extension() string {
	switch f {
	case FormatWord:
		return ".docx"
	case FormatPDF:
		return ".pdf"
	}
	return ""
}

// Formats lists the supported format names for the config endpoint.
func Formats() []string {
	return []string{string(FormatWord), string(FormatPDF)}
}

// Metadata is the document header information.
type Metadata struct {
	// Filename is the original upload name shown in the header.
	Filename string

	// CreatedAt is the job submission time.
	CreatedAt time.Time

	// Language is the short language code of the transcript.
	Language string
}

// Document header labels. The service renders documents in English regardless
// of the transcript language.
const (
	labelTitle    = "Transcript"
	labelFile     = "File: "
	labelDate     = "Date: "
	labelLanguage = "Language: "
	labelContent  = "Content"
	footerText    = "Generated by Scrivano"
	dateLayout    = "02-01-2006 15:04"
)

// Render writes tr as a document of the given format to w.
//
// Errors: [ErrUnknownFormat] (wrapped) for an unsupported format,
// *[RenderError] on library or writer failure.
func Render(f Format, w io.Writer, tr *transcript.Transcript, meta Metadata) error {
	switch f {
	case FormatWord:
		return Word(w, tr, meta)
	case FormatPDF:
		return PDF(w, tr, meta)
	}
	return fmt.Errorf("%w: %q", ErrUnknownFormat, f)
}
