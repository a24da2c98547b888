// Package mock provides a test double for the microute.Capability interface.
package mock

import (
	"context"
	"sync"

	"github.com/Naqued/speechlink/pkg/provider/microute"
)

// RouteFileCall records a single invocation of RouteFile.
type RouteFileCall struct {
	// Ctx is the context passed to RouteFile.
	Ctx context.Context
	// Path is the file path passed to RouteFile.
	Path string
}

// Capability is a mock implementation of microute.Capability.
type Capability struct {
	mu sync.Mutex

	// Unavailable makes Probe report false.
	Unavailable bool

	// RouteErr, if non-nil, is returned from RouteFile.
	RouteErr error

	// Block, when non-nil, makes RouteFile wait until the channel is closed
	// or the context is cancelled.
	Block chan struct{}

	// RouteFileCalls records every call to RouteFile in order.
	RouteFileCalls []RouteFileCall

	// StopCalls counts invocations of Stop.
	StopCalls int
}

// Probe reports the configured availability.
func (c *Capability) Probe(context.Context) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.Unavailable
}

// RouteFile records the call and returns the configured error, optionally
// blocking first.
func (c *Capability) RouteFile(ctx context.Context, path string) error {
	c.mu.Lock()
	c.RouteFileCalls = append(c.RouteFileCalls, RouteFileCall{Ctx: ctx, Path: path})
	block := c.Block
	err := c.RouteErr
	c.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return nil
		}
	}
	return err
}

// Stop records the call.
func (c *Capability) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.StopCalls++
	return nil
}

// Reset clears all recorded calls. Thread-safe.
func (c *Capability) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.RouteFileCalls = nil
	c.StopCalls = 0
}

// Compile-time interface assertion.
var _ microute.Capability = (*Capability)(nil)
