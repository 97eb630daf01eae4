// Package store persists scan results, registry responses, and computed
// dependency graphs in a key/value cache.
//
// The cache is the only mutable shared resource in a refresh; every backend
// serializes writes internally. TTL decisions are the caller's concern: Get
// returns the raw value together with its storage timestamp, and the
// orchestrator compares that against its freshness policy. A read error is
// expected to degrade to a cache miss and a write error must not fail the
// caller, so both are surfaced as warnings upstream.
//
// Backends: SQLite (default, single local file), Redis, MongoDB, and an
// in-memory map for tests.
package store

import (
	"context"
	"time"
)

// Entry is a cached value with the time it was stored.
type Entry struct {
	Value    []byte
	StoredAt time.Time
}

// Store is the persistence interface consumed by the refresh orchestrator.
type Store interface {
	// Initialize creates the backing schema if absent.
	Initialize(ctx context.Context) error
	// Get returns the entry for key. ok is false on a miss.
	Get(ctx context.Context, key string) (e Entry, ok bool, err error)
	// Put stores value under key as a single atomic upsert,
	// resetting the stored-at timestamp.
	Put(ctx context.Context, key string, value []byte) error
	// Invalidate removes every key with the given prefix.
	Invalidate(ctx context.Context, prefix string) error
	// Close releases the backing connection.
	Close() error
}
