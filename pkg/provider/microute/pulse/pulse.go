// Package pulse implements the microute.Capability against a PulseAudio (or
// PipeWire with the pulse shim) sound server. It creates a null sink whose
// monitor acts as the virtual microphone and plays audio into it with paplay.
package pulse

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"sync"

	"github.com/Naqued/speechlink/pkg/provider/microute"
)

const (
	// sinkName is the null sink created for routing. Its monitor source
	// (<sinkName>.monitor) is what call applications select as microphone.
	sinkName = "speechlink_mic"

	sinkDescription = "SpeechLink_Virtual_Microphone"
)

// Capability routes audio into a PulseAudio null sink. Create it with [New].
type Capability struct {
	pactl  string
	paplay string

	mu       sync.Mutex
	moduleID string
	cancel   context.CancelFunc
}

// Compile-time interface assertion.
var _ microute.Capability = (*Capability)(nil)

// New probes PATH for the pactl and paplay binaries. It does not contact the
// sound server; Probe does that.
func New() (*Capability, error) {
	pactl, err := exec.LookPath("pactl")
	if err != nil {
		return nil, errors.New("pulse: pactl not found")
	}
	paplay, err := exec.LookPath("paplay")
	if err != nil {
		return nil, errors.New("pulse: paplay not found")
	}
	return &Capability{pactl: pactl, paplay: paplay}, nil
}

// Probe reports whether a PulseAudio server is reachable.
func (c *Capability) Probe(ctx context.Context) bool {
	return exec.CommandContext(ctx, c.pactl, "info").Run() == nil
}

// RouteFile ensures the virtual sink exists and plays the file into it,
// blocking until the file is consumed or ctx is cancelled.
func (c *Capability) RouteFile(ctx context.Context, path string) error {
	if err := c.ensureSink(ctx); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	c.mu.Lock()
	c.cancel = cancel
	c.mu.Unlock()
	defer cancel()

	cmd := exec.CommandContext(ctx, c.paplay, "--device="+sinkName, path)
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			// Interrupted by Stop or caller cancellation.
			return nil
		}
		return fmt.Errorf("pulse: route file: %w", err)
	}
	return nil
}

// Stop interrupts any in-flight routing and unloads the virtual sink.
func (c *Capability) Stop() error {
	c.mu.Lock()
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	moduleID := c.moduleID
	c.moduleID = ""
	c.mu.Unlock()

	if moduleID == "" {
		return nil
	}
	if err := exec.Command(c.pactl, "unload-module", moduleID).Run(); err != nil {
		return fmt.Errorf("pulse: unload module %s: %w", moduleID, err)
	}
	return nil
}

// ensureSink loads the null sink module if it is not already loaded.
func (c *Capability) ensureSink(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.moduleID != "" {
		return nil
	}

	out, err := exec.CommandContext(ctx, c.pactl, "load-module", "module-null-sink",
		"sink_name="+sinkName,
		"sink_properties=device.description="+sinkDescription,
	).Output()
	if err != nil {
		return fmt.Errorf("pulse: load null sink: %w", err)
	}
	c.moduleID = strings.TrimSpace(string(out))
	return nil
}
