// Package audio defines the interfaces and types for audio output within the
// SpeechLink speech engine.
//
// The two primary abstractions are:
//
//   - [Sink] — plays a decoded audio file on the platform output device and
//     returns a [Playback].
//   - [Playback] — represents one in-flight playback, giving callers a
//     completion signal and a way to stop early.
//
// Implementations of these interfaces are provided by platform-specific
// adapter packages (e.g., audio/speaker for the local output device). The
// interfaces are intentionally narrow to keep the audio resource manager
// decoupled from platform details.
//
// This package lives under pkg/ because external code (third-party output
// adapters) is expected to implement [Sink] and [Playback].
package audio

import "context"

// Playback represents one in-flight playback started by [Sink.Play].
//
// Implementations must be safe for concurrent use.
type Playback interface {
	// Done returns a channel that is closed when playback finishes, whether
	// it ran to completion, was stopped, or failed mid-stream. The channel is
	// closed exactly once.
	Done() <-chan struct{}

	// Err returns the playback failure, if any, once Done is closed. It
	// returns nil for a completed or stopped playback.
	Err() error

	// Stop interrupts playback. It is safe to call Stop more than once and
	// after completion; subsequent calls are no-ops and return nil.
	Stop() error
}

// Sink is the entry point for a platform audio output device.
//
// Implementations must be safe for concurrent use, but callers are expected
// to keep at most one playback active at a time — starting a second playback
// while one is running gives platform-defined mixing behaviour.
type Sink interface {
	// Play starts playing the audio file at path. The supplied ctx governs
	// the whole playback: cancelling it stops the playback as if
	// [Playback.Stop] had been called.
	//
	// Returns an error if playback cannot be started (unsupported format,
	// missing device, …).
	Play(ctx context.Context, path string, format Format) (Playback, error)
}
