// Package localtts defines the Engine interface for on-device speech
// synthesis. The local engine is the fallback path when remote synthesis is
// slow or unavailable: it speaks directly through the OS audio stack rather
// than returning an audio payload, and reports progress through a small event
// stream so the orchestrator can track utterance boundaries.
package localtts

import (
	"context"

	"github.com/Naqued/speechlink/pkg/types"
)

// EventKind identifies a lifecycle event emitted by a local utterance.
type EventKind string

const (
	// EventStarted signals that the engine began speaking the utterance.
	EventStarted EventKind = "started"
	// EventDone signals that the utterance completed normally.
	EventDone EventKind = "done"
	// EventError signals that the utterance failed; Err carries the cause.
	EventError EventKind = "error"
)

// Event is one lifecycle notification for a local utterance.
type Event struct {
	Kind EventKind
	// Err is set when Kind is EventError.
	Err error
}

// Utterance describes one text to speak locally.
type Utterance struct {
	// Text is the content to speak. Callers validate it is non-empty.
	Text string

	// Language is a BCP-47 tag hint (e.g. "en-US"). Engines map it to the
	// closest installed voice; empty means the engine default.
	Language string

	// Options holds the numeric synthesis knobs. Engines apply what they
	// support and ignore the rest.
	Options types.SynthesisOptions
}

// Engine is the abstraction over any on-device speech synthesiser.
//
// Implementations must be safe for concurrent use, though the orchestrator
// serialises utterances so at most one is active at a time.
type Engine interface {
	// Speak starts the utterance and returns a channel of lifecycle events.
	// The channel always emits EventStarted first and is closed after a
	// terminal EventDone or EventError. Cancelling ctx interrupts the
	// utterance; the channel then terminates with EventDone.
	Speak(ctx context.Context, u Utterance) (<-chan Event, error)

	// Available reports whether the engine can speak on this host. It is
	// cheap and safe to call repeatedly.
	Available() bool
}
