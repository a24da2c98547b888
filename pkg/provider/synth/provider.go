// Package synth defines the Provider interface for remote speech synthesis
// backends.
//
// A synthesis provider wraps a remote service (the SpeechLink backend's
// multi-provider endpoint, or a vendor API addressed directly) and presents a
// uniform request/response interface: text in, one opaque audio payload out.
// The orchestrator treats the payload as bytes plus a content type; decoding
// is the audio resource manager's concern.
//
// Implementations must be safe for concurrent use.
package synth

import (
	"context"

	"github.com/Naqued/speechlink/pkg/types"
)

// Request describes one synthesis call to a remote provider.
type Request struct {
	// Text is the utterance to synthesise. Callers validate it is non-empty.
	Text string

	// VoiceID optionally selects a provider voice. When empty, the provider
	// (or the backend proxying it) applies the user's default.
	VoiceID string

	// Provider optionally pins the vendor used by a multi-provider backend.
	Provider types.Provider

	// Options holds the numeric synthesis knobs. Zero values mean defaults.
	Options types.SynthesisOptions
}

// Result is one synthesised audio payload.
type Result struct {
	// Audio is the opaque encoded audio payload.
	Audio []byte

	// ContentType is the MIME type reported by the provider (e.g.
	// "audio/mpeg"). May be empty; callers should sniff the payload then.
	ContentType string
}

// Provider is the abstraction over any remote synthesis backend.
//
// Implementations must be safe for concurrent use. Multiple synthesis
// requests may run in parallel (e.g., a preview racing a live utterance).
type Provider interface {
	// Synthesize renders req.Text to audio and returns the whole payload.
	// The call blocks until the payload is complete or ctx is cancelled;
	// the orchestrator bounds it with its fallback deadline.
	//
	// Returns a non-nil error if the payload cannot be produced. An empty
	// payload with a nil error is invalid.
	Synthesize(ctx context.Context, req Request) (*Result, error)
}
