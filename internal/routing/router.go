// Package routing manages the audio-routing toggle: when enabled, synthesised
// speech is written into the virtual microphone instead of the speakers, so
// call applications pick it up as microphone input. The toggle is gated on a
// permission check and persisted across restarts.
package routing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/Naqued/speechlink/internal/kvstore"
	"github.com/Naqued/speechlink/pkg/provider/microute"
)

// storeKey is the kvstore key holding the persisted toggle state.
const storeKey = "routing.enabled"

var (
	// ErrUnavailable is returned when the host has no virtual-microphone
	// capability.
	ErrUnavailable = errors.New("routing: virtual microphone unavailable on this host")

	// ErrPermissionDenied is returned when the permission check rejects
	// enabling the toggle.
	ErrPermissionDenied = errors.New("routing: microphone permission denied")

	// ErrDisabled is returned by RouteToMicrophone while the toggle is off.
	ErrDisabled = errors.New("routing: audio routing is disabled")
)

// PermissionFunc checks whether the engine may take over the microphone.
// Returning a non-nil error blocks enabling the toggle.
type PermissionFunc func(ctx context.Context) error

// Option is a functional option for configuring the Router.
type Option func(*Router)

// WithPermissionCheck sets the permission gate consulted when enabling
// routing. Without one, enabling is always permitted.
func WithPermissionCheck(fn PermissionFunc) Option {
	return func(r *Router) {
		r.checkPerm = fn
	}
}

// Router owns the routing toggle and delegates file routing to the platform
// capability. Create it with [New].
type Router struct {
	capability microute.Capability
	store      kvstore.Store
	checkPerm  PermissionFunc

	mu      sync.Mutex
	enabled bool
}

// New creates a Router and restores the persisted toggle state. A restored
// "enabled" toggle is kept even if the capability probe fails right now; the
// probe is repeated on each routing attempt.
func New(ctx context.Context, capability microute.Capability, store kvstore.Store, opts ...Option) *Router {
	r := &Router{capability: capability, store: store}
	for _, o := range opts {
		o(r)
	}

	if raw, err := store.Get(ctx, storeKey); err == nil {
		r.enabled = string(raw) == "true"
	} else if !errors.Is(err, kvstore.ErrNotFound) {
		slog.Warn("failed to restore routing toggle", "error", err)
	}
	return r
}

// Enabled reports the current toggle state.
func (r *Router) Enabled() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.enabled
}

// SetEnabled flips the routing toggle. Enabling requires the permission check
// to pass and the capability to probe successfully; disabling always succeeds
// and stops any in-flight routing. The new state is persisted.
func (r *Router) SetEnabled(ctx context.Context, enabled bool) error {
	if enabled {
		if r.capability == nil {
			return ErrUnavailable
		}
		if r.checkPerm != nil {
			if err := r.checkPerm(ctx); err != nil {
				return fmt.Errorf("%w: %v", ErrPermissionDenied, err)
			}
		}
		if !r.capability.Probe(ctx) {
			return ErrUnavailable
		}
	}

	r.mu.Lock()
	r.enabled = enabled
	r.mu.Unlock()

	if !enabled && r.capability != nil {
		if err := r.capability.Stop(); err != nil {
			slog.Warn("failed to stop routing while disabling", "error", err)
		}
	}

	value := "false"
	if enabled {
		value = "true"
	}
	if err := r.store.Set(ctx, storeKey, []byte(value)); err != nil {
		return fmt.Errorf("routing: persist toggle: %w", err)
	}
	return nil
}

// RouteToMicrophone plays the audio file into the virtual microphone,
// blocking until it is fully consumed or ctx is cancelled. The toggle must be
// enabled.
func (r *Router) RouteToMicrophone(ctx context.Context, path string) error {
	r.mu.Lock()
	enabled := r.enabled
	r.mu.Unlock()

	if !enabled {
		return ErrDisabled
	}
	if r.capability == nil {
		return ErrUnavailable
	}
	if err := r.capability.RouteFile(ctx, path); err != nil {
		return fmt.Errorf("routing: route to microphone: %w", err)
	}
	return nil
}

// StopRouting interrupts any in-flight routing without touching the toggle.
// Idempotent.
func (r *Router) StopRouting() error {
	if r.capability == nil {
		return nil
	}
	return r.capability.Stop()
}
