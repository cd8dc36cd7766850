// Package cache provides the identity cache that sits in front of the
// storage layer. It maps an asset's UUID to the single in-memory value
// for that UUID, so repeated loads of the same id return the identical
// value rather than a fresh copy from storage.
//
// Two implementations are provided. Weak backs a persistent storage
// backend: it is a capacity-bounded LRU, so it cannot grow without
// bound but still accelerates repeated lookups of recently loaded
// assets. Strong backs an in-memory-only backend, where the cache is
// the only copy of the data and must never evict anything still
// reachable by id.
package cache

import "github.com/google/uuid"

// Cache is the identity-cache contract shared by both implementations.
// All methods are safe for concurrent use and never block on I/O.
type Cache[T any] interface {
	// Get returns the cached value for id, if present.
	Get(id uuid.UUID) (T, bool)
	// Put stores v under id, replacing any previous entry.
	Put(id uuid.UUID, v T)
	// Forget drops the entry for id, if any.
	Forget(id uuid.UUID)
	// Clear drops every entry.
	Clear()
}
