// Package mock provides test doubles for the audio.Sink and audio.Playback
// interfaces.
//
// Use Sink to verify which files and formats are played, and Playback to
// drive completion from a test:
//
//	s := &mock.Sink{}
//	pb, _ := s.Play(ctx, "/tmp/a.wav", audio.FormatWAV)
//	s.Playbacks[0].Finish(nil) // simulate playback completing
package mock

import (
	"context"
	"sync"

	"github.com/Naqued/speechlink/pkg/audio"
)

// PlayCall records a single invocation of Play.
type PlayCall struct {
	// Ctx is the context passed to Play.
	Ctx context.Context
	// Path is the file path passed to Play.
	Path string
	// Format is the audio format passed to Play.
	Format audio.Format
}

// Sink is a mock implementation of audio.Sink.
type Sink struct {
	mu sync.Mutex

	// PlayErr, if non-nil, is returned from Play instead of starting a playback.
	PlayErr error

	// AutoFinish, when true, completes each playback immediately.
	AutoFinish bool

	// PlayCalls records every call to Play in order.
	PlayCalls []PlayCall

	// Playbacks holds the playbacks returned from Play, in call order.
	Playbacks []*Playback
}

// Play records the call and returns a new controllable [Playback].
func (s *Sink) Play(ctx context.Context, path string, format audio.Format) (audio.Playback, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.PlayCalls = append(s.PlayCalls, PlayCall{Ctx: ctx, Path: path, Format: format})
	if s.PlayErr != nil {
		return nil, s.PlayErr
	}

	p := &Playback{done: make(chan struct{})}
	s.Playbacks = append(s.Playbacks, p)
	if s.AutoFinish {
		p.Finish(nil)
	}
	return p, nil
}

// Reset clears all recorded calls and playbacks. Thread-safe.
func (s *Sink) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.PlayCalls = nil
	s.Playbacks = nil
}

// Playback is a controllable audio.Playback. Call [Playback.Finish] from the
// test to simulate the platform player completing or failing.
type Playback struct {
	done chan struct{}

	mu       sync.Mutex
	finished bool
	stopped  bool
	err      error
}

// Finish completes the playback with the given error. Safe to call more than
// once; only the first call has effect.
func (p *Playback) Finish(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.finished {
		return
	}
	p.finished = true
	p.err = err
	close(p.done)
}

// Stopped reports whether Stop has been called.
func (p *Playback) Stopped() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stopped
}

func (p *Playback) Done() <-chan struct{} { return p.done }

func (p *Playback) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.err
}

// Stop marks the playback stopped and completes it without error.
func (p *Playback) Stop() error {
	p.mu.Lock()
	p.stopped = true
	p.mu.Unlock()
	p.Finish(nil)
	return nil
}

// Compile-time interface assertions.
var (
	_ audio.Sink     = (*Sink)(nil)
	_ audio.Playback = (*Playback)(nil)
)
