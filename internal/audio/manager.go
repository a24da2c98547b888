// Package audio implements the engine's playback resource management. At most
// one audio handle is live at any time: loading a new payload disposes the
// previous handle first, so temp files and player processes can never pile up
// behind rapid consecutive utterances.
package audio

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/Naqued/speechlink/pkg/audio"
	"github.com/google/uuid"
)

// DecodeError reports a payload the engine could not identify as playable
// audio. It is permanent for the given payload.
type DecodeError struct {
	ContentType string
}

func (e *DecodeError) Error() string {
	if e.ContentType != "" {
		return fmt.Sprintf("audio: undecodable payload (content type %q)", e.ContentType)
	}
	return "audio: undecodable payload"
}

// Manager owns the lifecycle of audio handles. Create it with [NewManager].
type Manager struct {
	sink audio.Sink

	mu      sync.Mutex
	current *Handle
}

// NewManager creates a Manager that plays through the given sink.
func NewManager(sink audio.Sink) *Manager {
	return &Manager{sink: sink}
}

// Load materialises an audio payload as a temp-file-backed [Handle]. Any
// previously loaded handle is disposed first, enforcing the single-handle
// invariant. The payload format is taken from contentType when recognised and
// sniffed from the bytes otherwise; an unidentifiable payload yields a
// [DecodeError].
func (m *Manager) Load(ctx context.Context, data []byte, contentType string) (*Handle, error) {
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	format := audio.FormatFromContentType(contentType)
	if format == audio.FormatUnknown {
		format = audio.DetectFormat(data)
	}
	if format == audio.FormatUnknown {
		return nil, &DecodeError{ContentType: contentType}
	}

	f, err := os.CreateTemp("", "speechlink-*"+format.Extension())
	if err != nil {
		return nil, fmt.Errorf("audio: create temp file: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(f.Name())
		return nil, fmt.Errorf("audio: write temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return nil, fmt.Errorf("audio: close temp file: %w", err)
	}

	h := &Handle{
		id:     uuid.NewString(),
		path:   f.Name(),
		format: format,
		sink:   m.sink,
		state:  StateIdle,
	}

	m.mu.Lock()
	prev := m.current
	m.current = h
	m.mu.Unlock()

	if prev != nil {
		if err := prev.Dispose(); err != nil {
			slog.Warn("failed to dispose previous audio handle",
				"handle_id", prev.ID(), "error", err)
		}
	}
	return h, nil
}

// Current returns the live handle, or nil when none is loaded.
func (m *Manager) Current() *Handle {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// StopAll stops and disposes the live handle, if any. Idempotent.
func (m *Manager) StopAll() error {
	m.mu.Lock()
	h := m.current
	m.current = nil
	m.mu.Unlock()

	if h == nil {
		return nil
	}
	return h.Dispose()
}
