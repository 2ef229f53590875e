package config

import (
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/MrWong99/rapvox/pkg/audio"
	"github.com/MrWong99/rapvox/pkg/provider/stt"
)

// ErrProviderNotRegistered is returned by Create* methods when no factory has
// been registered under the requested provider name.
var ErrProviderNotRegistered = errors.New("config: provider not registered")

// Registry maps provider names to their constructor functions for each
// provider type. It is safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	stt     map[string]func(ProviderEntry) (stt.Provider, error)
	capture map[string]func(AudioConfig) (audio.Capture, error)
}

// NewRegistry returns an empty, ready-to-use [Registry].
func NewRegistry() *Registry {
	return &Registry{
		stt:     make(map[string]func(ProviderEntry) (stt.Provider, error)),
		capture: make(map[string]func(AudioConfig) (audio.Capture, error)),
	}
}

// RegisterSTT registers a recognizer provider factory under name.
// Subsequent calls with the same name overwrite the previous registration.
func (r *Registry) RegisterSTT(name string, factory func(ProviderEntry) (stt.Provider, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stt[name] = factory
}

// RegisterCapture registers an audio capture factory under name.
func (r *Registry) RegisterCapture(name string, factory func(AudioConfig) (audio.Capture, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.capture[name] = factory
}

// CreateSTT instantiates a recognizer provider using the factory registered
// under entry.Name. Returns [ErrProviderNotRegistered] if no factory has been
// registered for that name.
func (r *Registry) CreateSTT(entry ProviderEntry) (stt.Provider, error) {
	r.mu.RLock()
	factory, ok := r.stt[entry.Name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: stt/%q", ErrProviderNotRegistered, entry.Name)
	}
	return factory(entry)
}

// CreateCapture instantiates a capture backend using the factory registered
// under cfg.Source.
func (r *Registry) CreateCapture(cfg AudioConfig) (audio.Capture, error) {
	r.mu.RLock()
	factory, ok := r.capture[cfg.Source]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: audio/%q", ErrProviderNotRegistered, cfg.Source)
	}
	return factory(cfg)
}

// Names returns the sorted registered names per kind ("stt", "audio").
func (r *Registry) Names() map[string][]string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := map[string][]string{"stt": nil, "audio": nil}
	for n := range r.stt {
		out["stt"] = append(out["stt"], n)
	}
	for n := range r.capture {
		out["audio"] = append(out["audio"], n)
	}
	slices.Sort(out["stt"])
	slices.Sort(out["audio"])
	return out
}
