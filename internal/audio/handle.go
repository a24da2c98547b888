package audio

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/Naqued/speechlink/pkg/audio"
)

// State is the lifecycle phase of a [Handle].
type State string

const (
	// StateIdle means the payload is on disk but playback has not started.
	StateIdle State = "idle"
	// StatePlaying means the sink is actively playing the file.
	StatePlaying State = "playing"
	// StateStopped means playback ended (completed, failed, or stopped).
	StateStopped State = "stopped"
	// StateDisposed means the backing file is gone and the handle is dead.
	StateDisposed State = "disposed"
)

// ErrDisposed is returned when an operation is attempted on a disposed handle.
var ErrDisposed = errors.New("audio: handle is disposed")

// Handle is one temp-file-backed audio payload with an exclusive playback
// slot. Handles are created by [Manager.Load] and move strictly forward
// through idle → playing → stopped → disposed.
type Handle struct {
	id     string
	path   string
	format audio.Format
	sink   audio.Sink

	mu       sync.Mutex
	state    State
	playback audio.Playback
}

// ID returns the handle's unique identifier.
func (h *Handle) ID() string { return h.id }

// Path returns the backing file path. Valid until the handle is disposed.
func (h *Handle) Path() string { return h.path }

// Format returns the detected audio format.
func (h *Handle) Format() audio.Format { return h.format }

// State returns the current lifecycle state.
func (h *Handle) State() State {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}

// Play starts playback through the sink. It can be called once per handle;
// a second call or a call on a stopped/disposed handle is an error.
func (h *Handle) Play(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	switch h.state {
	case StateDisposed:
		return ErrDisposed
	case StatePlaying, StateStopped:
		return fmt.Errorf("audio: handle %s already %s", h.id, h.state)
	}

	pb, err := h.sink.Play(ctx, h.path, h.format)
	if err != nil {
		h.state = StateStopped
		return fmt.Errorf("audio: start playback: %w", err)
	}
	h.playback = pb
	h.state = StatePlaying
	return nil
}

// Wait blocks until playback completes, is stopped, or ctx is cancelled, and
// returns the playback error if any. Waiting on a handle that never played
// returns immediately.
func (h *Handle) Wait(ctx context.Context) error {
	h.mu.Lock()
	pb := h.playback
	h.mu.Unlock()

	if pb == nil {
		return nil
	}

	select {
	case <-pb.Done():
	case <-ctx.Done():
		return ctx.Err()
	}

	h.mu.Lock()
	if h.state == StatePlaying {
		h.state = StateStopped
	}
	h.mu.Unlock()

	return pb.Err()
}

// Stop interrupts playback if it is running. Idempotent: stopping an idle,
// stopped, or disposed handle is a no-op.
func (h *Handle) Stop() error {
	h.mu.Lock()
	pb := h.playback
	if h.state == StatePlaying || h.state == StateIdle {
		h.state = StateStopped
	}
	h.mu.Unlock()

	if pb == nil {
		return nil
	}
	return pb.Stop()
}

// Dispose stops playback and removes the backing file. Idempotent.
func (h *Handle) Dispose() error {
	h.mu.Lock()
	if h.state == StateDisposed {
		h.mu.Unlock()
		return nil
	}
	pb := h.playback
	path := h.path
	h.state = StateDisposed
	h.mu.Unlock()

	var stopErr error
	if pb != nil {
		stopErr = pb.Stop()
	}

	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("audio: remove %s: %w", path, err)
	}
	return stopErr
}
