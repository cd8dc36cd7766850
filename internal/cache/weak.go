package cache

import (
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/google/uuid"
)

// defaultCapacity bounds how many entries a Weak cache holds before it
// starts evicting the least recently used one. Every read path through
// internal/store returns assets by value, so a literal weak.Pointer
// never has an external strong reference to key off: the moment Put
// returns, its target is unreachable and collectible, and a lookup
// racing the GC is not a cache. A bounded LRU is the substitute
// spec.md's design notes call for here — eviction triggered by
// capacity rather than by a client releasing its handle.
const defaultCapacity = 4096

// Weak is an identity cache that backs a persistent storage backend.
// Despite the name it is not built on the standard library's weak
// package; it is a capacity-bounded LRU, so repeated lookups of a
// recently loaded asset short-circuit a round trip to storage without
// pinning every asset ever loaded in memory forever. lru.Cache is
// already safe for concurrent use, so Weak adds no locking of its own.
type Weak[T any] struct {
	c *lru.Cache[uuid.UUID, T]
}

// NewWeak returns an empty identity cache bounded to defaultCapacity
// entries.
func NewWeak[T any]() *Weak[T] {
	c, err := lru.New[uuid.UUID, T](defaultCapacity)
	if err != nil {
		// Only returns an error for a non-positive size, which
		// defaultCapacity never is.
		panic(err)
	}
	return &Weak[T]{c: c}
}

func (c *Weak[T]) Get(id uuid.UUID) (T, bool) {
	return c.c.Get(id)
}

func (c *Weak[T]) Put(id uuid.UUID, v T) {
	c.c.Add(id, v)
}

func (c *Weak[T]) Forget(id uuid.UUID) {
	c.c.Remove(id)
}

func (c *Weak[T]) Clear() {
	c.c.Purge()
}
