package cache

import (
	"context"
	"io"
)

// PresenceCache records short-lived facts that have no source of truth to
// fall back on, such as which requests have already been answered. Entries
// are written explicitly and expire on their own.
type PresenceCache[K comparable, V any] interface {
	// Set stores value for key, replacing any earlier entry.
	Set(ctx context.Context, key K, value V) error
	// Fetch returns the entry for key, or an error wrapping ErrNotFound.
	Fetch(ctx context.Context, key K) (V, error)
	Delete(ctx context.Context, key K) error
	io.Closer
}
