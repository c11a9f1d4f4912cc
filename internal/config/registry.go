package config

import (
	"errors"
	"fmt"
	"sync"

	"github.com/MrWong99/voxtype/internal/polish"
	"github.com/MrWong99/voxtype/pkg/provider/stt"
	"github.com/MrWong99/voxtype/pkg/provider/vad"
)

// ErrProviderNotRegistered is returned by Create* methods when no factory has
// been registered under the requested provider name.
var ErrProviderNotRegistered = errors.New("config: provider not registered")

// Registry maps provider names to their constructor functions for each
// provider type. It is safe for concurrent use.
type Registry struct {
	mu     sync.RWMutex
	stt    map[string]func(ProviderEntry) (stt.Transcriber, error)
	vad    map[string]func(ProviderEntry) (vad.Engine, error)
	polish map[string]func(ProviderEntry) (polish.Polisher, error)
}

// NewRegistry returns an empty, ready-to-use [Registry].
func NewRegistry() *Registry {
	return &Registry{
		stt:    make(map[string]func(ProviderEntry) (stt.Transcriber, error)),
		vad:    make(map[string]func(ProviderEntry) (vad.Engine, error)),
		polish: make(map[string]func(ProviderEntry) (polish.Polisher, error)),
	}
}

// RegisterSTT registers a transcription backend factory under name.
// Subsequent calls with the same name overwrite the previous registration.
func (r *Registry) RegisterSTT(name string, factory func(ProviderEntry) (stt.Transcriber, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stt[name] = factory
}

// RegisterVAD registers a voice activity engine factory under name.
func (r *Registry) RegisterVAD(name string, factory func(ProviderEntry) (vad.Engine, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.vad[name] = factory
}

// RegisterPolish registers a polish provider factory under name.
func (r *Registry) RegisterPolish(name string, factory func(ProviderEntry) (polish.Polisher, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.polish[name] = factory
}

// CreateSTT instantiates a transcription backend using the factory registered
// under entry.Name. Returns [ErrProviderNotRegistered] if no factory has been
// registered for that name.
func (r *Registry) CreateSTT(entry ProviderEntry) (stt.Transcriber, error) {
	r.mu.RLock()
	factory, ok := r.stt[entry.Name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: stt/%q", ErrProviderNotRegistered, entry.Name)
	}
	return factory(entry)
}

// CreateVAD instantiates a voice activity engine using the factory registered
// under entry.Name.
func (r *Registry) CreateVAD(entry ProviderEntry) (vad.Engine, error) {
	r.mu.RLock()
	factory, ok := r.vad[entry.Name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: vad/%q", ErrProviderNotRegistered, entry.Name)
	}
	return factory(entry)
}

// CreatePolish instantiates a polish provider using the factory registered
// under entry.Name.
func (r *Registry) CreatePolish(entry ProviderEntry) (polish.Polisher, error) {
	r.mu.RLock()
	factory, ok := r.polish[entry.Name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: polish/%q", ErrProviderNotRegistered, entry.Name)
	}
	return factory(entry)
}
