package orchestrator

import (
	"context"
	"errors"
	"testing"
	"time"

	intaudio "github.com/Naqued/speechlink/internal/audio"
	"github.com/Naqued/speechlink/internal/kvstore"
	"github.com/Naqued/speechlink/internal/routing"
	audiomock "github.com/Naqued/speechlink/pkg/audio/mock"
	ltsmock "github.com/Naqued/speechlink/pkg/provider/localtts/mock"
	routemock "github.com/Naqued/speechlink/pkg/provider/microute/mock"
	"github.com/Naqued/speechlink/pkg/provider/synth"
	synthmock "github.com/Naqued/speechlink/pkg/provider/synth/mock"
	"github.com/Naqued/speechlink/pkg/types"
)

type fixture struct {
	remote *synthmock.Provider
	local  *ltsmock.Engine
	sink   *audiomock.Sink
	route  *routemock.Capability
	router *routing.Router
	orch   *Orchestrator
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	f := &fixture{
		remote: &synthmock.Provider{
			Result: &synth.Result{Audio: []byte("mp3"), ContentType: "audio/mpeg"},
		},
		local: &ltsmock.Engine{AutoFinish: true},
		sink:  &audiomock.Sink{AutoFinish: true},
		route: &routemock.Capability{},
	}
	f.router = routing.New(context.Background(), f.route, kvstore.NewMemStore())
	mgr := intaudio.NewManager(f.sink)
	f.orch = New(f.remote, f.local, mgr, f.router, opts...)
	t.Cleanup(func() { _ = f.orch.Stop() })
	return f
}

func speakReq(text string) types.SpeechRequest {
	return types.SpeechRequest{Text: text, VoiceID: "v1", Provider: types.ProviderElevenLabs}
}

func TestSpeak_RemoteWinsAndPlays(t *testing.T) {
	f := newFixture(t)

	path, err := f.orch.Speak(context.Background(), speakReq("hello"))
	if err != nil {
		t.Fatalf("Speak: %v", err)
	}
	if path != PathRemote {
		t.Errorf("path = %q, want remote", path)
	}
	if len(f.sink.PlayCalls) != 1 {
		t.Errorf("sink plays = %d, want 1", len(f.sink.PlayCalls))
	}
	if len(f.local.SpeakCalls) != 0 {
		t.Error("local engine must not be used when remote wins")
	}
	if f.orch.State() != StateIdle {
		t.Errorf("state = %q, want idle after completion", f.orch.State())
	}
}

func TestSpeak_DeadlineTriggersLocalFallback(t *testing.T) {
	f := newFixture(t, WithFallbackDeadline(10*time.Millisecond))
	f.remote.Hook = func(ctx context.Context, _ synth.Request) (*synth.Result, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}

	path, err := f.orch.Speak(context.Background(), speakReq("hello"))
	if err != nil {
		t.Fatalf("Speak: %v", err)
	}
	if path != PathLocal {
		t.Errorf("path = %q, want local", path)
	}
	if len(f.local.SpeakCalls) != 1 {
		t.Errorf("local speaks = %d, want 1", len(f.local.SpeakCalls))
	}
	if len(f.sink.PlayCalls) != 0 {
		t.Error("nothing should play on the sink when the deadline wins")
	}
}

func TestSpeak_RemoteErrorTriggersLocalFallback(t *testing.T) {
	f := newFixture(t)
	f.remote.Err = errors.New("backend down")

	path, err := f.orch.Speak(context.Background(), speakReq("hello"))
	if err != nil {
		t.Fatalf("Speak: %v", err)
	}
	if path != PathLocal {
		t.Errorf("path = %q, want local", path)
	}
}

func TestSpeak_NoVoiceConfiguredSkipsRemote(t *testing.T) {
	f := newFixture(t, WithPreferenceSource(func() types.VoicePreference {
		return types.DefaultVoicePreference() // no voice selected
	}))

	path, err := f.orch.Speak(context.Background(), types.SpeechRequest{Text: "hello"})
	if err != nil {
		t.Fatalf("Speak: %v", err)
	}
	if path != PathLocal {
		t.Errorf("path = %q, want local", path)
	}
	if len(f.remote.Calls()) != 0 {
		t.Error("remote must not be called when no voice is configured anywhere")
	}
	if len(f.local.SpeakCalls) != 1 {
		t.Errorf("local speaks = %d, want 1", len(f.local.SpeakCalls))
	}
}

func TestSpeak_ConfiguredVoiceStillRacesRemote(t *testing.T) {
	f := newFixture(t, WithPreferenceSource(func() types.VoicePreference {
		return types.VoicePreference{Provider: types.ProviderElevenLabs, VoiceID: "configured"}
	}))

	// The request names no voice, but a configured preference exists: the
	// remote call is attempted and the server applies the default.
	path, err := f.orch.Speak(context.Background(), types.SpeechRequest{Text: "hello"})
	if err != nil {
		t.Fatalf("Speak: %v", err)
	}
	if path != PathRemote {
		t.Errorf("path = %q, want remote", path)
	}
	if len(f.remote.Calls()) != 1 {
		t.Errorf("remote calls = %d, want 1", len(f.remote.Calls()))
	}
}

func TestSpeak_NoFallbackAvailable(t *testing.T) {
	f := newFixture(t)
	f.remote.Err = errors.New("backend down")
	f.local.Unavailable = true

	_, err := f.orch.Speak(context.Background(), speakReq("hello"))
	if !errors.Is(err, ErrNoFallback) {
		t.Fatalf("err = %v, want ErrNoFallback", err)
	}
}

func TestSpeak_LocalFallbackErrorSurfaces(t *testing.T) {
	f := newFixture(t, WithFallbackDeadline(10*time.Millisecond))
	f.remote.Hook = func(ctx context.Context, _ synth.Request) (*synth.Result, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	f.local.AutoFinish = false
	f.local.SpeakErr = errors.New("espeak missing")

	_, err := f.orch.Speak(context.Background(), speakReq("hello"))
	if err == nil {
		t.Fatal("expected local fallback error")
	}
}

func TestSpeak_Validation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.orch.Speak(ctx, types.SpeechRequest{}); !errors.Is(err, ErrEmptyText) {
		t.Errorf("empty text err = %v, want ErrEmptyText", err)
	}

	long := make([]rune, types.MaxRequestTextLen+1)
	for i := range long {
		long[i] = 'a'
	}
	if _, err := f.orch.Speak(ctx, types.SpeechRequest{Text: string(long)}); !errors.Is(err, ErrTextTooLong) {
		t.Errorf("long text err = %v, want ErrTextTooLong", err)
	}

	if _, err := f.orch.Speak(ctx, types.SpeechRequest{Text: "hi", Provider: "nope"}); err == nil {
		t.Error("unknown provider should be rejected")
	}

	if len(f.remote.Calls()) != 0 {
		t.Error("invalid requests must not reach the provider")
	}
}

func TestSpeak_RoutesWhenRoutingEnabled(t *testing.T) {
	f := newFixture(t)
	if err := f.router.SetEnabled(context.Background(), true); err != nil {
		t.Fatalf("enable routing: %v", err)
	}

	path, err := f.orch.Speak(context.Background(), speakReq("hello"))
	if err != nil {
		t.Fatalf("Speak: %v", err)
	}
	if path != PathRemote {
		t.Errorf("path = %q, want remote", path)
	}
	if len(f.route.RouteFileCalls) != 1 {
		t.Errorf("route calls = %d, want 1", len(f.route.RouteFileCalls))
	}
	if len(f.sink.PlayCalls) != 0 {
		t.Error("audio must not hit the speakers while routing is enabled")
	}
}

func TestStop_InterruptsPlayback(t *testing.T) {
	f := newFixture(t)
	f.sink.AutoFinish = false

	done := make(chan struct{})
	var speakErr error
	go func() {
		defer close(done)
		_, speakErr = f.orch.Speak(context.Background(), speakReq("hello"))
	}()

	// Wait for playback to start, then stop it.
	deadline := time.After(2 * time.Second)
	for f.orch.State() != StatePlaying {
		select {
		case <-deadline:
			t.Fatal("playback never started")
		case <-time.After(time.Millisecond):
		}
	}
	if err := f.orch.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Speak did not return after Stop")
	}
	if speakErr != nil && !errors.Is(speakErr, context.Canceled) {
		t.Errorf("Speak after Stop err = %v", speakErr)
	}
}

func TestStop_Idempotent(t *testing.T) {
	f := newFixture(t)

	if err := f.orch.Stop(); err != nil {
		t.Fatalf("Stop on idle: %v", err)
	}
	if err := f.orch.Stop(); err != nil {
		t.Fatalf("second Stop: %v", err)
	}
}

func TestSpeak_PreemptsActiveUtterance(t *testing.T) {
	f := newFixture(t)
	f.sink.AutoFinish = false

	first := make(chan struct{})
	go func() {
		defer close(first)
		_, _ = f.orch.Speak(context.Background(), speakReq("first"))
	}()

	deadline := time.After(2 * time.Second)
	for f.orch.State() != StatePlaying {
		select {
		case <-deadline:
			t.Fatal("first utterance never started playing")
		case <-time.After(time.Millisecond):
		}
	}

	f.sink.AutoFinish = true
	path, err := f.orch.Speak(context.Background(), speakReq("second"))
	if err != nil {
		t.Fatalf("second Speak: %v", err)
	}
	if path != PathRemote {
		t.Errorf("path = %q, want remote", path)
	}

	select {
	case <-first:
	case <-time.After(2 * time.Second):
		t.Fatal("first Speak did not return after preemption")
	}
}
