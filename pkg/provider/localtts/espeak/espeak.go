// Package espeak provides a localtts.Engine backed by the espeak-ng (or
// espeak) command-line synthesiser. It shells out per utterance, so the engine
// works wherever the binary is installed and needs no native bindings.
package espeak

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"sync"

	"github.com/Naqued/speechlink/pkg/provider/localtts"
	"github.com/Naqued/speechlink/pkg/types"
)

// binaries lists the accepted binary names in probe order.
var binaries = []string{"espeak-ng", "espeak"}

const (
	// defaultWPM is the espeak default speaking rate in words per minute.
	// Speed multipliers from synthesis options scale this base.
	defaultWPM = 175

	// defaultPitch is the espeak pitch midpoint on its 0-99 scale.
	defaultPitch = 50
)

// ErrNotInstalled is returned by [New] when no espeak binary is on PATH.
var ErrNotInstalled = errors.New("espeak: no espeak binary found")

// Engine speaks utterances through the espeak command-line tool. Create it
// with [New].
type Engine struct {
	binary string

	mu        sync.Mutex
	available bool
}

// Compile-time interface assertion.
var _ localtts.Engine = (*Engine)(nil)

// New probes PATH for an espeak binary. Returns [ErrNotInstalled] if none is
// found.
func New() (*Engine, error) {
	for _, b := range binaries {
		if path, err := exec.LookPath(b); err == nil {
			return &Engine{binary: path, available: true}, nil
		}
	}
	return nil, ErrNotInstalled
}

// Available reports whether the engine's binary was found at construction and
// has not failed to launch since.
func (e *Engine) Available() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.available
}

// Speak launches espeak for the utterance and reports its lifecycle on the
// returned channel.
func (e *Engine) Speak(ctx context.Context, u localtts.Utterance) (<-chan localtts.Event, error) {
	if u.Text == "" {
		return nil, errors.New("espeak: text must not be empty")
	}

	cmd := exec.CommandContext(ctx, e.binary, buildArgs(u)...)
	if err := cmd.Start(); err != nil {
		e.mu.Lock()
		e.available = false
		e.mu.Unlock()
		return nil, fmt.Errorf("espeak: start: %w", err)
	}

	events := make(chan localtts.Event, 3)
	events <- localtts.Event{Kind: localtts.EventStarted}

	go func() {
		defer close(events)
		err := cmd.Wait()
		if err != nil && ctx.Err() == nil {
			events <- localtts.Event{Kind: localtts.EventError, Err: fmt.Errorf("espeak: %w", err)}
			return
		}
		// Interruption via ctx counts as a normal stop.
		events <- localtts.Event{Kind: localtts.EventDone}
	}()

	return events, nil
}

// buildArgs maps an utterance onto espeak command-line flags.
func buildArgs(u localtts.Utterance) []string {
	args := []string{}
	if u.Language != "" {
		args = append(args, "-v", u.Language)
	}
	if wpm := speedToWPM(u.Options); wpm != defaultWPM {
		args = append(args, "-s", strconv.Itoa(wpm))
	}
	if p := pitchToScale(u.Options); p != defaultPitch {
		args = append(args, "-p", strconv.Itoa(p))
	}
	return append(args, u.Text)
}

// speedToWPM converts the engine's speed multiplier to espeak words per
// minute. A zero multiplier means the default rate.
func speedToWPM(o types.SynthesisOptions) int {
	if o.Speed <= 0 {
		return defaultWPM
	}
	return int(float64(defaultWPM) * o.Speed)
}

// pitchToScale converts the engine's pitch multiplier to espeak's 0-99 scale,
// with 1.0 mapping to the midpoint.
func pitchToScale(o types.SynthesisOptions) int {
	if o.Pitch <= 0 {
		return defaultPitch
	}
	p := int(float64(defaultPitch) * o.Pitch)
	if p > 99 {
		p = 99
	}
	return p
}
