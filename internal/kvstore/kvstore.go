// Package kvstore persists room descriptors and bounded chat/whiteboard
// history. Apart from the rate limiter's counters (internal/ratelimit), it
// is the only component that talks to Redis; every other package depends
// on the Store interface so it can be faked in tests and so
// the rest of the system degrades gracefully when Redis is unavailable.
package kvstore

import "context"

// Store is the persistence contract the room registry, router, and HTTP
// surface depend on (§4.B). MemoryStore (in-process, not durable) is the
// "no durable storage configured" mode per §7 Persistence failure: callers
// must not treat a Store error as fatal to fan-out.
type Store interface {
	// Get returns the raw value stored at key, or ("", false, nil) if absent.
	Get(ctx context.Context, key string) (string, bool, error)
	// Set stores value at key with no expiration.
	Set(ctx context.Context, key, value string) error
	// Delete removes key.
	Delete(ctx context.Context, key string) error
	// PushTrim prepends value to the list at key and trims it to maxLen
	// entries, implementing the bounded-history invariant (§5: chat 100,
	// whiteboard 1000).
	PushTrim(ctx context.Context, key, value string, maxLen int64) error
	// LRange returns up to count of the newest entries in the list at key,
	// oldest-first (§9 Open Question: limit yields newest-N, oldest-first).
	LRange(ctx context.Context, key string, count int64) ([]string, error)
	// Ping verifies connectivity for readiness probes.
	Ping(ctx context.Context) error
	// Close releases the underlying connection.
	Close() error
}
