// Package mock provides a test double for the localtts.Engine interface.
//
// Use Engine to script the event sequence a local utterance emits:
//
//	e := &mock.Engine{}
//	ch, _ := e.Speak(ctx, localtts.Utterance{Text: "hi"})
//	e.Active().Finish(nil) // emits done and closes the channel
package mock

import (
	"context"
	"sync"

	"github.com/Naqued/speechlink/pkg/provider/localtts"
)

// SpeakCall records a single invocation of Speak.
type SpeakCall struct {
	// Ctx is the context passed to Speak.
	Ctx context.Context
	// Utterance is the utterance passed to Speak.
	Utterance localtts.Utterance
}

// Engine is a mock implementation of localtts.Engine.
type Engine struct {
	mu sync.Mutex

	// SpeakErr, if non-nil, is returned from Speak instead of starting an
	// utterance.
	SpeakErr error

	// Unavailable makes Available report false.
	Unavailable bool

	// AutoFinish, when true, completes each utterance immediately after the
	// started event.
	AutoFinish bool

	// SpeakCalls records every call to Speak in order.
	SpeakCalls []SpeakCall

	active *ActiveUtterance
}

// Speak records the call and returns a channel fed by the active utterance.
func (e *Engine) Speak(ctx context.Context, u localtts.Utterance) (<-chan localtts.Event, error) {
	e.mu.Lock()
	e.SpeakCalls = append(e.SpeakCalls, SpeakCall{Ctx: ctx, Utterance: u})
	if e.SpeakErr != nil {
		err := e.SpeakErr
		e.mu.Unlock()
		return nil, err
	}

	a := &ActiveUtterance{events: make(chan localtts.Event, 3)}
	a.events <- localtts.Event{Kind: localtts.EventStarted}
	e.active = a
	auto := e.AutoFinish
	e.mu.Unlock()

	if auto {
		a.Finish(nil)
	}
	return a.events, nil
}

// Available reports the configured availability.
func (e *Engine) Available() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return !e.Unavailable
}

// Active returns the utterance started by the most recent Speak call, or nil.
func (e *Engine) Active() *ActiveUtterance {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.active
}

// Reset clears all recorded calls. Thread-safe.
func (e *Engine) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.SpeakCalls = nil
	e.active = nil
}

// ActiveUtterance drives the event channel of one mock utterance.
type ActiveUtterance struct {
	events chan localtts.Event

	mu       sync.Mutex
	finished bool
}

// Finish emits the terminal event (done on nil err, error otherwise) and
// closes the channel. Safe to call more than once.
func (a *ActiveUtterance) Finish(err error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.finished {
		return
	}
	a.finished = true
	if err != nil {
		a.events <- localtts.Event{Kind: localtts.EventError, Err: err}
	} else {
		a.events <- localtts.Event{Kind: localtts.EventDone}
	}
	close(a.events)
}

// Ensure Engine implements localtts.Engine at compile time.
var _ localtts.Engine = (*Engine)(nil)
