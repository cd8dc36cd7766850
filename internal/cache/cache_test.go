package cache

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStrongPutGet(t *testing.T) {
	c := NewStrong[string]()
	id := uuid.New()

	_, ok := c.Get(id)
	assert.False(t, ok)

	c.Put(id, "hello")
	v, ok := c.Get(id)
	require.True(t, ok)
	assert.Equal(t, "hello", v)

	c.Forget(id)
	_, ok = c.Get(id)
	assert.False(t, ok)
}

func TestStrongClear(t *testing.T) {
	c := NewStrong[int]()
	a, b := uuid.New(), uuid.New()
	c.Put(a, 1)
	c.Put(b, 2)
	c.Clear()
	_, ok := c.Get(a)
	assert.False(t, ok)
	_, ok = c.Get(b)
	assert.False(t, ok)
}

func TestWeakPutGet(t *testing.T) {
	c := NewWeak[string]()
	id := uuid.New()
	c.Put(id, "hello")

	v, ok := c.Get(id)
	require.True(t, ok)
	assert.Equal(t, "hello", v)
}

func TestWeakEvictsLeastRecentlyUsedPastCapacity(t *testing.T) {
	c := NewWeak[int]()
	ids := make([]uuid.UUID, defaultCapacity+1)
	for i := range ids {
		ids[i] = uuid.New()
		c.Put(ids[i], i)
	}

	_, ok := c.Get(ids[0])
	assert.False(t, ok, "oldest entry should have been evicted once capacity was exceeded")

	_, ok = c.Get(ids[len(ids)-1])
	assert.True(t, ok, "most recently added entry should still be cached")
}

func TestWeakForgetAndClear(t *testing.T) {
	c := NewWeak[int]()
	id := uuid.New()
	c.Put(id, 42)
	c.Forget(id)
	_, ok := c.Get(id)
	assert.False(t, ok)

	c.Put(id, 43)
	c.Clear()
	_, ok = c.Get(id)
	assert.False(t, ok)
}
