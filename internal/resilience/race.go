package resilience

import (
	"context"
	"fmt"
	"time"
)

// Outcome identifies which side of a remote-versus-deadline race won.
type Outcome string

const (
	// OutcomeRemote means remote synthesis delivered before the deadline.
	OutcomeRemote Outcome = "remote"

	// OutcomeDeadline means the fallback deadline elapsed first; the remote
	// attempt was cancelled and the caller should use the local path.
	OutcomeDeadline Outcome = "deadline"

	// OutcomeRemoteError means the remote attempt failed before the
	// deadline; the caller should use the local path immediately.
	OutcomeRemoteError Outcome = "remote_error"
)

// raceResult carries one remote attempt's outcome across the goroutine
// boundary.
type raceResult[T any] struct {
	value T
	err   error
}

// RaceRemote runs the remote function against a fallback deadline,
// winner-take-all. Exactly one of three things happens:
//
//   - remote returns a value before the deadline: (value, OutcomeRemote, nil)
//   - remote returns an error before the deadline: (zero, OutcomeRemoteError, err)
//   - the deadline fires first: the remote context is cancelled and RaceRemote
//     returns (zero, OutcomeDeadline, nil) without waiting for remote to
//     observe the cancellation.
//
// If ctx is cancelled before any of the above, RaceRemote returns ctx.Err().
// A deadline of zero or less disables the timer, leaving remote to win or
// fail on its own.
func RaceRemote[T any](ctx context.Context, deadline time.Duration, remote func(context.Context) (T, error)) (T, Outcome, error) {
	var zero T

	remoteCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	results := make(chan raceResult[T], 1)
	go func() {
		v, err := remote(remoteCtx)
		results <- raceResult[T]{value: v, err: err}
	}()

	var timeout <-chan time.Time
	if deadline > 0 {
		timer := time.NewTimer(deadline)
		defer timer.Stop()
		timeout = timer.C
	}

	select {
	case r := <-results:
		if r.err != nil {
			return zero, OutcomeRemoteError, fmt.Errorf("remote synthesis: %w", r.err)
		}
		return r.value, OutcomeRemote, nil

	case <-timeout:
		cancel()
		return zero, OutcomeDeadline, nil

	case <-ctx.Done():
		return zero, OutcomeRemoteError, ctx.Err()
	}
}
