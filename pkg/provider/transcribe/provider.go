// Package transcribe defines the Provider interface for batch
// speech-transcription backends.
//
// A transcription provider wraps a cloud speech-to-text service with built-in
// speaker diarization (e.g., Azure Speech Fast Transcription or an
// OpenAI-compatible transcription model) and exposes one uniform contract:
// submit a complete audio file, block until the service answers, and return
// the recognized segments with raw speaker labels and timing.
//
// Raw speaker labels are provider-specific and not comparable across
// providers or even across calls; callers that need stable labels must remap
// them (see the transcript package).
//
// Implementations must be safe for concurrent use. One Provider instance may
// serve many simultaneous Transcribe calls.
package transcribe

import (
	"context"
	"errors"
	"fmt"
)

// ErrTimeout is returned (possibly wrapped) when a provider call exceeds its
// configured deadline. Callers should treat it as a terminal failure for the
// job; retrying is deliberately left to the operator.
var ErrTimeout = errors.New("transcribe: provider call timed out")

// ErrMalformedResponse is returned (possibly wrapped) when the provider
// answered successfully at the HTTP level but the payload is missing required
// fields (text or timing) and cannot be normalized.
var ErrMalformedResponse = errors.New("transcribe: malformed provider response")

// ProviderError describes a failed provider API call. It carries enough
// context for a human-readable job failure message without leaking the full
// response body into logs.
type ProviderError struct {
	// Provider is the short engine identifier (e.g., "azure-speech").
	Provider string

	// StatusCode is the HTTP status returned by the provider, or 0 when the
	// call failed before a response was received.
	StatusCode int

	// Message is a short description, typically a snippet of the error body.
	Message string
}

// Error implements the error interface.
func (e *ProviderError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("transcribe: %s returned HTTP %d: %s", e.Provider, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("transcribe: %s call failed: %s", e.Provider, e.Message)
}

// RawSegment is one recognized phrase exactly as the provider reported it.
// Speaker is the provider's own label (an index, a GUID, whatever the service
// emits); Start and End are offsets in seconds from the beginning of the
// audio.
type RawSegment struct {
	Speaker string
	Start   float64
	End     float64
	Text    string
}

// Request describes a single transcription submission.
type Request struct {
	// Path is the filesystem location of the audio file to submit. The file
	// must already be in a format the provider accepts natively (see Limits);
	// format conversion is the caller's responsibility.
	Path string

	// Language is the short language code for recognition (e.g., "nl", "en").
	// Providers map it to their own locale convention. An empty string selects
	// the provider's default.
	Language string

	// Phrases is an optional vocabulary hint list that boosts recognition
	// probability for domain-specific terms. Providers without phrase-list
	// support ignore it.
	Phrases []string

	// OnProgress, when non-nil, receives coarse human-readable stage updates
	// ("uploading", "transcribing", ...). Implementations call it from the
	// goroutine running Transcribe; it must not block.
	OnProgress func(stage string)
}

// Result is the provider's answer for one audio file.
type Result struct {
	// Segments are the recognized phrases in the order the provider returned
	// them. May be empty for silent audio.
	Segments []RawSegment

	// FullText is the complete transcript without speaker attribution.
	FullText string

	// Duration is the audio duration in seconds as reported by the provider,
	// or 0 when the provider does not report it.
	Duration float64
}

// Limits describes a provider's upload constraints. The preflight layer uses
// them to reject oversized files before any network call and to decide
// whether an uploaded format needs conversion.
type Limits struct {
	// MaxUploadBytes is the largest audio file the provider accepts.
	MaxUploadBytes int64

	// NativeFormats lists the file extensions (lowercase, with leading dot)
	// the provider accepts without conversion.
	NativeFormats []string
}

// Native reports whether ext (lowercase, with leading dot) is accepted by
// the provider without conversion.
func (l Limits) Native(ext string) bool {
	for _, f := range l.NativeFormats {
		if f == ext {
			return true
		}
	}
	return false
}

// Provider is the abstraction over any batch transcription backend.
type Provider interface {
	// Name returns the short engine identifier used in configuration, logs,
	// and metrics (e.g., "azure-speech", "openai").
	Name() string

	// Limits returns the provider's upload constraints.
	Limits() Limits

	// Transcribe submits the audio described by req and blocks until the
	// provider returns or ctx is done. The call makes no retry attempts.
	//
	// Errors: [ErrTimeout] (wrapped) on deadline, [ErrMalformedResponse]
	// (wrapped) on an unparseable payload, and *[ProviderError] for API
	// failures.
	Transcribe(ctx context.Context, req Request) (Result, error)
}
