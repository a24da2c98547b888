package health

import (
	"context"
	"errors"

	"github.com/Naqued/speechlink/internal/kvstore"
	"github.com/Naqued/speechlink/pkg/provider/localtts"
)

// KVStoreChecker probes the persistence layer with a read of a known key.
// [kvstore.ErrNotFound] counts as healthy; only transport failures fail the
// check.
func KVStoreChecker(store kvstore.Store) Checker {
	return Checker{
		Name: "kvstore",
		Check: func(ctx context.Context) error {
			_, err := store.Get(ctx, "health.probe")
			if err != nil && !errors.Is(err, kvstore.ErrNotFound) {
				return err
			}
			return nil
		},
	}
}

// BackendChecker probes the SpeechLink backend through any cheap read. fetch
// is typically a settings or catalog call bound to the client.
func BackendChecker(fetch func(ctx context.Context) error) Checker {
	return Checker{
		Name:  "backend",
		Check: fetch,
	}
}

// LocalEngineChecker reports whether the local fallback engine can speak.
// A missing engine degrades speech quality but the service still works, so
// wire this into readiness only when local fallback is mandatory.
func LocalEngineChecker(engine localtts.Engine) Checker {
	return Checker{
		Name: "local_engine",
		Check: func(context.Context) error {
			if engine == nil || !engine.Available() {
				return errors.New("local speech engine unavailable")
			}
			return nil
		},
	}
}
