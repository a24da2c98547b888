package config

import (
	"errors"
	"fmt"
	"sync"

	"github.com/Naqued/speechlink/pkg/provider/localtts"
	"github.com/Naqued/speechlink/pkg/provider/microute"
	"github.com/Naqued/speechlink/pkg/provider/synth"
)

// ErrProviderNotRegistered is returned by Create* methods when no factory has
// been registered under the requested component name.
var ErrProviderNotRegistered = errors.New("config: provider not registered")

// Registry maps component names to their constructor functions for each
// pluggable kind. It is safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	remote  map[string]func(ProviderEntry) (synth.Provider, error)
	local   map[string]func(ProviderEntry) (localtts.Engine, error)
	routing map[string]func(ProviderEntry) (microute.Capability, error)
}

// NewRegistry returns an empty, ready-to-use [Registry].
func NewRegistry() *Registry {
	return &Registry{
		remote:  make(map[string]func(ProviderEntry) (synth.Provider, error)),
		local:   make(map[string]func(ProviderEntry) (localtts.Engine, error)),
		routing: make(map[string]func(ProviderEntry) (microute.Capability, error)),
	}
}

// RegisterRemote registers a remote synthesis provider factory under name.
// Subsequent calls with the same name overwrite the previous registration.
func (r *Registry) RegisterRemote(name string, factory func(ProviderEntry) (synth.Provider, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.remote[name] = factory
}

// RegisterLocal registers a local fallback engine factory under name.
func (r *Registry) RegisterLocal(name string, factory func(ProviderEntry) (localtts.Engine, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.local[name] = factory
}

// RegisterRouting registers a microphone routing capability factory under name.
func (r *Registry) RegisterRouting(name string, factory func(ProviderEntry) (microute.Capability, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.routing[name] = factory
}

// CreateRemote instantiates a remote synthesis provider using the factory
// registered under entry.Name. Returns [ErrProviderNotRegistered] if no
// factory has been registered for that name.
func (r *Registry) CreateRemote(entry ProviderEntry) (synth.Provider, error) {
	r.mu.RLock()
	factory, ok := r.remote[entry.Name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: remote/%q", ErrProviderNotRegistered, entry.Name)
	}
	return factory(entry)
}

// CreateLocal instantiates a local fallback engine using the factory
// registered under entry.Name.
func (r *Registry) CreateLocal(entry ProviderEntry) (localtts.Engine, error) {
	r.mu.RLock()
	factory, ok := r.local[entry.Name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: local/%q", ErrProviderNotRegistered, entry.Name)
	}
	return factory(entry)
}

// CreateRouting instantiates a routing capability using the factory
// registered under entry.Name.
func (r *Registry) CreateRouting(entry ProviderEntry) (microute.Capability, error) {
	r.mu.RLock()
	factory, ok := r.routing[entry.Name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: routing/%q", ErrProviderNotRegistered, entry.Name)
	}
	return factory(entry)
}
