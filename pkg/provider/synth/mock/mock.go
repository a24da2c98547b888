// Package mock provides a test double for the synth.Provider interface.
//
// Use Provider to feed a controlled audio payload to consumers and to verify
// what request reached the remote backend:
//
//	p := &mock.Provider{
//	    Result: &synth.Result{Audio: []byte("mp3"), ContentType: "audio/mpeg"},
//	}
//	res, _ := p.Synthesize(ctx, synth.Request{Text: "hi"})
package mock

import (
	"context"
	"sync"

	"github.com/Naqued/speechlink/pkg/provider/synth"
)

// SynthesizeCall records a single invocation of Synthesize.
type SynthesizeCall struct {
	// Ctx is the context passed to Synthesize.
	Ctx context.Context
	// Request is the request passed to Synthesize.
	Request synth.Request
}

// Provider is a mock implementation of synth.Provider.
type Provider struct {
	mu sync.Mutex

	// --- Configurable responses ---

	// Result is returned by Synthesize when Err and Hook are nil.
	Result *synth.Result

	// Err, if non-nil, is returned as the error from Synthesize.
	Err error

	// Hook, if non-nil, replaces the canned Result/Err behaviour entirely.
	// Useful for blocking until a context is cancelled or adding delays.
	Hook func(ctx context.Context, req synth.Request) (*synth.Result, error)

	// --- Call records ---

	// SynthesizeCalls records every call to Synthesize in order.
	SynthesizeCalls []SynthesizeCall
}

// Synthesize records the call and returns the configured response.
func (p *Provider) Synthesize(ctx context.Context, req synth.Request) (*synth.Result, error) {
	p.mu.Lock()
	p.SynthesizeCalls = append(p.SynthesizeCalls, SynthesizeCall{Ctx: ctx, Request: req})
	hook := p.Hook
	result := p.Result
	err := p.Err
	p.mu.Unlock()

	if hook != nil {
		return hook(ctx, req)
	}
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Calls returns a snapshot of the recorded calls. Thread-safe.
func (p *Provider) Calls() []SynthesizeCall {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]SynthesizeCall, len(p.SynthesizeCalls))
	copy(out, p.SynthesizeCalls)
	return out
}

// Reset clears all recorded calls. Thread-safe.
func (p *Provider) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.SynthesizeCalls = nil
}

// Ensure Provider implements synth.Provider at compile time.
var _ synth.Provider = (*Provider)(nil)
