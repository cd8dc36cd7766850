package cache

import (
	"sync"

	"github.com/google/uuid"
)

// Strong is an identity cache that holds every entry for as long as it
// lives in the map: nothing is ever evicted by the garbage collector.
// It backs in-memory storage backends, where the cache is not a
// convenience layer in front of a database but the only copy of the
// data that exists, so it must behave like a plain persistent map.
type Strong[T any] struct {
	mu sync.Mutex
	m  map[uuid.UUID]T
}

// NewStrong returns an empty strong identity cache.
func NewStrong[T any]() *Strong[T] {
	return &Strong[T]{m: make(map[uuid.UUID]T)}
}

func (c *Strong[T]) Get(id uuid.UUID) (T, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.m[id]
	return v, ok
}

func (c *Strong[T]) Put(id uuid.UUID, v T) {
	c.mu.Lock()
	c.m[id] = v
	c.mu.Unlock()
}

func (c *Strong[T]) Forget(id uuid.UUID) {
	c.mu.Lock()
	delete(c.m, id)
	c.mu.Unlock()
}

func (c *Strong[T]) Clear() {
	c.mu.Lock()
	c.m = make(map[uuid.UUID]T)
	c.mu.Unlock()
}
