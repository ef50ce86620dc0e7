package config

import (
	"errors"
	"fmt"
	"sync"

	"github.com/MrWong99/scrivano/pkg/provider/transcribe"
)

// ErrProviderNotRegistered is returned by [Registry.CreateTranscriber] when no
// factory has been registered under the requested engine name.
var ErrProviderNotRegistered = errors.New("config: provider not registered")

// TranscriberFactory builds a transcription provider from the loaded config.
type TranscriberFactory func(cfg *Config) (transcribe.Provider, error)

// Registry maps engine names to their constructor functions. It is safe for
// concurrent use.
type Registry struct {
	mu          sync.RWMutex
	transcriber map[Engine]TranscriberFactory
}

// NewRegistry returns an empty, ready-to-use [Registry].
func NewRegistry() *Registry {
	return &Registry{
		transcriber: make(map[Engine]TranscriberFactory),
	}
}

// RegisterTranscriber registers a transcription provider factory under the
// engine name. Subsequent calls with the same name overwrite the previous
// registration.
func (r *Registry) RegisterTranscriber(engine Engine, factory TranscriberFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.transcriber[engine] = factory
}

// CreateTranscriber instantiates the provider registered under the engine
// name. Returns [ErrProviderNotRegistered] if no factory has been registered
// for that name.
func (r *Registry) CreateTranscriber(engine Engine, cfg *Config) (transcribe.Provider, error) {
	r.mu.RLock()
	factory, ok := r.transcriber[engine]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrProviderNotRegistered, engine)
	}
	return factory(cfg)
}

// Engines returns the registered engine names.
func (r *Registry) Engines() []Engine {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Engine, 0, len(r.transcriber))
	for e := range r.transcriber {
		out = append(out, e)
	}
	return out
}
