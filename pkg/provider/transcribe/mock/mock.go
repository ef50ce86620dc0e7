// Package mock provides a test double for the transcribe.Provider interface.
//
// Use Provider to verify that the caller submits the expected Request and to
// feed controlled Results or errors back. The zero value is usable; it
// reports a generous Limits set and returns an empty Result.
//
// Example:
//
//	p := &mock.Provider{
//	    Result: transcribe.Result{
//	        Segments: []transcribe.RawSegment{{Speaker: "0", Text: "hello"}},
//	    },
//	}
//	res, err := p.Transcribe(ctx, req)
package mock

import (
	"context"
	"sync"

	"github.com/MrWong99/scrivano/pkg/provider/transcribe"
)

// TranscribeCall records a single invocation of Provider.Transcribe.
type TranscribeCall struct {
	// Ctx is the context passed to Transcribe.
	Ctx context.Context
	// Req is the Request passed to Transcribe.
	Req transcribe.Request
}

// Provider is a mock implementation of transcribe.Provider.
type Provider struct {
	mu sync.Mutex

	// ProviderName is returned by Name. Defaults to "mock".
	ProviderName string

	// ProviderLimits is returned by Limits. When zero, a default of 512 MiB
	// with .wav and .mp3 native formats is used.
	ProviderLimits transcribe.Limits

	// Result is returned by Transcribe when Err and TranscribeFn are nil.
	Result transcribe.Result

	// Err, if non-nil, is returned as the error from Transcribe.
	Err error

	// TranscribeFn, if non-nil, is called instead of the Result/Err logic.
	// Useful for blocking until a signal in concurrency tests.
	TranscribeFn func(ctx context.Context, req transcribe.Request) (transcribe.Result, error)

	// TranscribeCalls records every call to Transcribe.
	TranscribeCalls []TranscribeCall
}

// Name implements transcribe.Provider.
func (p *Provider) Name() string {
	if p.ProviderName == "" {
		return "mock"
	}
	return p.ProviderName
}

// Limits implements transcribe.Provider.
func (p *Provider) Limits() transcribe.Limits {
	if p.ProviderLimits.MaxUploadBytes == 0 && len(p.ProviderLimits.NativeFormats) == 0 {
		return transcribe.Limits{
			MaxUploadBytes: 512 << 20,
			NativeFormats:  []string{".wav", ".mp3"},
		}
	}
	return p.ProviderLimits
}

// Transcribe records the call and returns the scripted outcome.
func (p *Provider) Transcribe(ctx context.Context, req transcribe.Request) (transcribe.Result, error) {
	p.mu.Lock()
	p.TranscribeCalls = append(p.TranscribeCalls, TranscribeCall{Ctx: ctx, Req: req})
	fn := p.TranscribeFn
	res, err := p.Result, p.Err
	p.mu.Unlock()

	if fn != nil {
		return fn(ctx, req)
	}
	if err != nil {
		return transcribe.Result{}, err
	}
	return res, nil
}

// CallCount returns the number of Transcribe calls. Thread-safe.
func (p *Provider) CallCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.TranscribeCalls)
}

// Reset clears all recorded calls. Thread-safe.
func (p *Provider) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.TranscribeCalls = nil
}

// Ensure Provider implements transcribe.Provider at compile time.
var _ transcribe.Provider = (*Provider)(nil)
