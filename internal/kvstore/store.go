// Package kvstore provides the engine's local persistence layer: a small
// namespaced key-value store used for cached preferences, favorite snapshots,
// and the routing toggle. Values are opaque byte slices; callers serialise
// their own types (typically JSON).
//
// Three backends are provided: an in-memory store for tests and ephemeral
// runs, a PostgreSQL store for durable deployments, and a Redis store for
// shared caches.
package kvstore

import (
	"context"
	"errors"
)

// ErrNotFound is returned by [Store.Get] when no value exists for the key.
var ErrNotFound = errors.New("kvstore: key not found")

// Store is a namespaced key-value store.
//
// Implementations must be safe for concurrent use.
type Store interface {
	// Get returns the value for key. Returns [ErrNotFound] if absent.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores value under key, replacing any existing value.
	Set(ctx context.Context, key string, value []byte) error

	// Delete removes key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error

	// Close releases backend resources. The store must not be used after.
	Close() error
}
