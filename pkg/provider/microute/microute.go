// Package microute defines the Capability interface for routing synthesised
// audio into a virtual microphone device, so other applications (calls,
// meetings) receive the engine's speech as microphone input.
//
// Routing is an optional platform capability. Hosts without a supporting
// audio server simply report it unavailable; the engine then falls back to
// speaker playback.
package microute

import "context"

// Capability is the abstraction over a platform virtual-microphone backend.
type Capability interface {
	// Probe reports whether the host can route audio to a virtual
	// microphone right now. It is cheap and safe to call repeatedly.
	Probe(ctx context.Context) bool

	// RouteFile plays the audio file into the virtual microphone. The call
	// blocks until the file has been fully written or ctx is cancelled. At
	// most one routing operation runs at a time; implementations may reject
	// or queue concurrent calls.
	RouteFile(ctx context.Context, path string) error

	// Stop interrupts any in-flight routing operation and tears down the
	// virtual device. Idempotent.
	Stop() error
}
