// Package speaker provides a [audio.Sink] backed by the platform's
// command-line audio player. It probes a fixed list of well-known players
// (paplay, aplay, ffplay, afplay) at construction time and shells out to the
// first one found, so the engine has no native audio dependencies.
package speaker

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"sync"

	"github.com/Naqued/speechlink/pkg/audio"
)

// ErrNoPlayer is returned by [New] when no supported audio player binary is
// present on PATH.
var ErrNoPlayer = errors.New("speaker: no supported audio player found")

// candidate describes one player binary and how to invoke it for a file.
type candidate struct {
	binary string
	args   func(path string, format audio.Format) []string
	// formats lists the container formats the player accepts; nil means all.
	formats []audio.Format
}

var candidates = []candidate{
	{
		binary: "paplay",
		args:   func(path string, _ audio.Format) []string { return []string{path} },
		// paplay decodes WAV and OGG but not MP3.
		formats: []audio.Format{audio.FormatWAV, audio.FormatOGG},
	},
	{
		binary:  "aplay",
		args:    func(path string, _ audio.Format) []string { return []string{"-q", path} },
		formats: []audio.Format{audio.FormatWAV},
	},
	{
		binary: "ffplay",
		args: func(path string, _ audio.Format) []string {
			return []string{"-nodisp", "-autoexit", "-loglevel", "quiet", path}
		},
	},
	{
		binary: "afplay",
		args:   func(path string, _ audio.Format) []string { return []string{path} },
	},
}

// Sink plays audio files through a command-line player. Create it with [New].
type Sink struct {
	players []candidate
}

// Compile-time interface assertion.
var _ audio.Sink = (*Sink)(nil)

// New probes PATH for supported player binaries and returns a [Sink] that
// uses them. Returns [ErrNoPlayer] if none is available.
func New() (*Sink, error) {
	var found []candidate
	for _, c := range candidates {
		if _, err := exec.LookPath(c.binary); err == nil {
			found = append(found, c)
		}
	}
	if len(found) == 0 {
		return nil, ErrNoPlayer
	}
	return &Sink{players: found}, nil
}

// Play starts the first probed player that supports format and returns a
// [audio.Playback] tracking the child process.
func (s *Sink) Play(ctx context.Context, path string, format audio.Format) (audio.Playback, error) {
	c, ok := s.playerFor(format)
	if !ok {
		return nil, fmt.Errorf("speaker: no player available for format %q", format)
	}

	cmd := exec.CommandContext(ctx, c.binary, c.args(path, format)...)
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("speaker: start %s: %w", c.binary, err)
	}

	p := &playback{cmd: cmd, done: make(chan struct{})}
	go p.wait()
	return p, nil
}

// playerFor returns the first probed player accepting format.
func (s *Sink) playerFor(format audio.Format) (candidate, bool) {
	for _, c := range s.players {
		if c.formats == nil {
			return c, true
		}
		for _, f := range c.formats {
			if f == format {
				return c, true
			}
		}
	}
	return candidate{}, false
}

// playback tracks one child player process.
type playback struct {
	cmd  *exec.Cmd
	done chan struct{}

	mu      sync.Mutex
	stopped bool
	err     error
}

func (p *playback) wait() {
	err := p.cmd.Wait()

	p.mu.Lock()
	// A kill initiated by Stop (or ctx cancellation) is a clean stop, not a
	// playback failure.
	if err != nil && !p.stopped && !errors.Is(err, context.Canceled) {
		p.err = err
	}
	p.mu.Unlock()

	close(p.done)
}

func (p *playback) Done() <-chan struct{} { return p.done }

func (p *playback) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.err
}

func (p *playback) Stop() error {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return nil
	}
	p.stopped = true
	p.mu.Unlock()

	select {
	case <-p.done:
		return nil
	default:
	}
	if p.cmd.Process != nil {
		_ = p.cmd.Process.Kill()
	}
	return nil
}
