// Package orchestrator implements the speech pipeline's decision core. One
// utterance is in flight at a time: a new speak request preempts the current
// one, remote synthesis races a fallback deadline, and the winning payload is
// either played on the speakers or routed into the virtual microphone.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/Naqued/speechlink/internal/audio"
	"github.com/Naqued/speechlink/internal/observe"
	"github.com/Naqued/speechlink/internal/resilience"
	"github.com/Naqued/speechlink/internal/routing"
	"github.com/Naqued/speechlink/pkg/provider/localtts"
	"github.com/Naqued/speechlink/pkg/provider/synth"
	"github.com/Naqued/speechlink/pkg/types"
)

// DefaultFallbackDeadline bounds how long remote synthesis may take before
// the local engine takes over.
const DefaultFallbackDeadline = 4 * time.Second

var (
	// ErrEmptyText is returned for a speak request without text.
	ErrEmptyText = errors.New("orchestrator: text must not be empty")

	// ErrTextTooLong is returned when the text exceeds the request limit.
	ErrTextTooLong = fmt.Errorf("orchestrator: text exceeds %d characters", types.MaxRequestTextLen)

	// ErrNoFallback is returned when remote synthesis fails and no local
	// engine is available to take over.
	ErrNoFallback = errors.New("orchestrator: remote synthesis failed and no local engine is available")
)

// State is the orchestrator's externally visible phase.
type State string

const (
	// StateIdle means no utterance is in flight.
	StateIdle State = "idle"
	// StateSynthesizing means the remote race is running.
	StateSynthesizing State = "synthesizing"
	// StatePlaying means remote audio is playing on the speakers.
	StatePlaying State = "playing"
	// StateRouting means remote audio is streaming into the virtual mic.
	StateRouting State = "routing"
	// StateSpeakingLocal means the local fallback engine is speaking.
	StateSpeakingLocal State = "speaking_local"
)

// Path identifies which pipeline produced the audible speech.
type Path string

const (
	// PathRemote means the remote provider's payload was used.
	PathRemote Path = "remote"
	// PathLocal means the local fallback engine spoke.
	PathLocal Path = "local"
)

// Option is a functional option for configuring the Orchestrator.
type Option func(*Orchestrator)

// WithFallbackDeadline overrides the remote-versus-local race deadline.
// Zero or negative disables the deadline entirely.
func WithFallbackDeadline(d time.Duration) Option {
	return func(o *Orchestrator) {
		o.fallbackDeadline = d
	}
}

// WithCircuitBreaker sets the breaker guarding remote synthesis.
func WithCircuitBreaker(cb *resilience.CircuitBreaker) Option {
	return func(o *Orchestrator) {
		o.breaker = cb
	}
}

// WithMetrics sets the metrics instance. Defaults to the package-level one.
func WithMetrics(m *observe.Metrics) Option {
	return func(o *Orchestrator) {
		o.metrics = m
	}
}

// WithPreferenceSource supplies the user's configured voice preference. When
// set, a request that names no voice and a preference that names no voice
// skip the remote race entirely and speak through the local engine. Without
// a source the remote call is always attempted and the server applies its
// own defaults.
func WithPreferenceSource(fn func() types.VoicePreference) Option {
	return func(o *Orchestrator) {
		o.preference = fn
	}
}

// Orchestrator coordinates remote synthesis, local fallback, playback, and
// routing. Create it with [New].
type Orchestrator struct {
	remote     synth.Provider
	local      localtts.Engine
	audio      *audio.Manager
	router     *routing.Router
	breaker    *resilience.CircuitBreaker
	metrics    *observe.Metrics
	preference func() types.VoicePreference

	fallbackDeadline time.Duration

	// speakMu serialises whole utterances; stateMu guards the small fields.
	speakMu sync.Mutex

	stateMu      sync.Mutex
	state        State
	cancelActive context.CancelFunc
}

// New creates an Orchestrator. remote and audioMgr are required; local may be
// nil (no fallback path) and router may be nil (no routing path).
func New(remote synth.Provider, local localtts.Engine, audioMgr *audio.Manager, router *routing.Router, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		remote:           remote,
		local:            local,
		audio:            audioMgr,
		router:           router,
		fallbackDeadline: DefaultFallbackDeadline,
		state:            StateIdle,
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.breaker == nil {
		o.breaker = resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{Name: "remote-synthesis"})
	}
	if o.metrics == nil {
		o.metrics = observe.DefaultMetrics()
	}
	return o
}

// SetFallbackDeadline changes the race deadline for subsequent utterances.
// The active utterance, if any, keeps the deadline it started with.
func (o *Orchestrator) SetFallbackDeadline(d time.Duration) {
	o.stateMu.Lock()
	o.fallbackDeadline = d
	o.stateMu.Unlock()
}

// State returns the current phase.
func (o *Orchestrator) State() State {
	o.stateMu.Lock()
	defer o.stateMu.Unlock()
	return o.state
}

// Speak runs one utterance end to end and blocks until it finishes, is
// stopped, or fails. A concurrent Speak preempts the active utterance: the
// old one is stopped, then the new one takes the slot. Returns the path that
// produced the speech.
func (o *Orchestrator) Speak(ctx context.Context, req types.SpeechRequest) (Path, error) {
	if err := validate(req); err != nil {
		return "", err
	}

	// Preempt whatever is in flight, then take the utterance slot.
	o.interrupt()
	o.speakMu.Lock()
	defer o.speakMu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	o.stateMu.Lock()
	o.cancelActive = cancel
	o.state = StateSynthesizing
	deadline := o.fallbackDeadline
	o.stateMu.Unlock()
	defer o.setIdle()

	start := time.Now()
	log := observe.Logger(ctx)

	// With no voice named anywhere there is nothing for the remote side to
	// synthesise with; speak locally without burning the race deadline.
	if req.VoiceID == "" && o.preference != nil && o.preference().VoiceID == "" {
		log.Info("no voice configured, speaking locally")
		err := o.speakLocally(ctx, req)
		o.recordSpeak(ctx, PathLocal, err)
		return PathLocal, err
	}

	result, outcome, raceErr := resilience.RaceRemote(ctx, deadline,
		func(ctx context.Context) (*synth.Result, error) {
			var res *synth.Result
			err := o.breaker.Execute(ctx, func(ctx context.Context) error {
				var synthErr error
				res, synthErr = o.remote.Synthesize(ctx, synth.Request{
					Text:     req.Text,
					VoiceID:  req.VoiceID,
					Provider: req.Provider,
					Options:  req.Options,
				})
				return synthErr
			})
			return res, err
		})
	o.metrics.RecordRaceOutcome(ctx, string(outcome))

	switch outcome {
	case resilience.OutcomeRemote:
		o.metrics.SynthesisDuration.Record(ctx, time.Since(start).Seconds())
		err := o.deliverRemote(ctx, result)
		o.recordSpeak(ctx, PathRemote, err)
		return PathRemote, err

	case resilience.OutcomeDeadline:
		log.Info("remote synthesis missed the fallback deadline, speaking locally",
			"deadline", deadline)
		err := o.speakLocally(ctx, req)
		o.recordSpeak(ctx, PathLocal, err)
		return PathLocal, err

	default: // OutcomeRemoteError
		if ctx.Err() != nil {
			// Preempted or caller cancelled; not a provider failure.
			return "", ctx.Err()
		}
		log.Warn("remote synthesis failed, speaking locally", "error", raceErr)
		o.metrics.RecordProviderError(ctx, string(req.Provider), "synthesis")
		err := o.speakLocally(ctx, req)
		if err != nil {
			err = errors.Join(raceErr, err)
		}
		o.recordSpeak(ctx, PathLocal, err)
		return PathLocal, err
	}
}

// Stop interrupts the active utterance, if any. Idempotent: stopping an idle
// orchestrator is a no-op.
func (o *Orchestrator) Stop() error {
	o.interrupt()

	var errs []error
	if err := o.audio.StopAll(); err != nil {
		errs = append(errs, err)
	}
	if o.router != nil {
		if err := o.router.StopRouting(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// deliverRemote loads the payload into an audio handle and either routes it
// to the virtual microphone or plays it on the speakers.
func (o *Orchestrator) deliverRemote(ctx context.Context, result *synth.Result) error {
	handle, err := o.audio.Load(ctx, result.Audio, result.ContentType)
	if err != nil {
		return err
	}

	if o.router != nil && o.router.Enabled() {
		o.setState(StateRouting)
		return o.router.RouteToMicrophone(ctx, handle.Path())
	}

	o.setState(StatePlaying)
	o.metrics.ActivePlaybacks.Add(ctx, 1)
	defer o.metrics.ActivePlaybacks.Add(ctx, -1)

	playStart := time.Now()
	if err := handle.Play(ctx); err != nil {
		return err
	}
	err = handle.Wait(ctx)
	o.metrics.PlaybackDuration.Record(ctx, time.Since(playStart).Seconds())
	if errors.Is(err, context.Canceled) {
		// A stopped playback is a clean end, not a failure.
		return nil
	}
	return err
}

// speakLocally runs the fallback engine and blocks until its terminal event.
// The engine's intermediate events stay internal: callers only ever see the
// final error, never the local engine's own lifecycle.
func (o *Orchestrator) speakLocally(ctx context.Context, req types.SpeechRequest) error {
	if o.local == nil || !o.local.Available() {
		return ErrNoFallback
	}

	o.setState(StateSpeakingLocal)
	start := time.Now()

	events, err := o.local.Speak(ctx, localtts.Utterance{
		Text:     req.Text,
		Language: req.Language,
		Options:  req.Options,
	})
	if err != nil {
		return fmt.Errorf("orchestrator: local fallback: %w", err)
	}

	for ev := range events {
		switch ev.Kind {
		case localtts.EventDone:
			o.metrics.LocalSpeechDuration.Record(ctx, time.Since(start).Seconds())
			return nil
		case localtts.EventError:
			return fmt.Errorf("orchestrator: local fallback: %w", ev.Err)
		}
	}
	// Channel closed without a terminal event; treat as done.
	o.metrics.LocalSpeechDuration.Record(ctx, time.Since(start).Seconds())
	return nil
}

// interrupt cancels the active utterance's context, if any.
func (o *Orchestrator) interrupt() {
	o.stateMu.Lock()
	cancel := o.cancelActive
	o.stateMu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// setIdle clears the active cancel func and returns the state to idle. Runs
// while the utterance slot is still held, so the cancel func is always ours.
func (o *Orchestrator) setIdle() {
	o.stateMu.Lock()
	defer o.stateMu.Unlock()
	o.cancelActive = nil
	o.state = StateIdle
}

func (o *Orchestrator) setState(s State) {
	o.stateMu.Lock()
	o.state = s
	o.stateMu.Unlock()
}

func (o *Orchestrator) recordSpeak(ctx context.Context, path Path, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	o.metrics.RecordSpeakRequest(ctx, string(path), status)
}

// validate rejects malformed speak requests before any provider call.
func validate(req types.SpeechRequest) error {
	if req.Text == "" {
		return ErrEmptyText
	}
	if utf8.RuneCountInString(req.Text) > types.MaxRequestTextLen {
		return ErrTextTooLong
	}
	if req.Provider != "" && !req.Provider.IsValid() {
		return fmt.Errorf("orchestrator: unknown provider %q", req.Provider)
	}
	return nil
}
