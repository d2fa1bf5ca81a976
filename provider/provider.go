// Package provider defines the byte store behind recordcache.CacheStore.
//
// Implementations MUST be byte-for-byte transparent: Get returns exactly the
// []byte previously passed to Set for a key. The keyspace "rc:<namespace>:" is
// owned by the cache store; foreign writes under it are treated as corruption
// and deleted on read.
package provider

import (
	"context"
	"time"
)

// Provider is a minimal byte store with TTLs. Must be safe for concurrent use.
type Provider interface {
	// Get returns (value, true, nil) on hit; (nil, false, nil) on miss.
	// If an IO/remote error happens, return (nil, false, err).
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores value with the given TTL (<= 0 means no expiry where supported).
	// Returns ok=false when the store rejected the write under pressure.
	Set(ctx context.Context, key string, value []byte, cost int64, ttl time.Duration) (ok bool, err error)

	// Del removes a key. Deleting a missing key is not an error.
	Del(ctx context.Context, key string) error

	// Close releases resources.
	Close(ctx context.Context) error
}

// PrefixDeleter is implemented by shared providers whose keys may have been
// written by other processes; the cache store uses it to empty a namespace.
type PrefixDeleter interface {
	DelPrefix(ctx context.Context, prefix string) (int, error)
}

// Named is implemented by providers that report an implementation name.
type Named interface {
	Name() string
}
