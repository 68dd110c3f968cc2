package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStoreSetGetRoundTrip(t *testing.T) {
	store := NewMemoryStore(0)
	ctx := context.Background()

	_, found, err := store.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, store.Set(ctx, "k1", []byte("v1"), 0))
	value, found, err := store.Get(ctx, "k1")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, []byte("v1"), value)
}

func TestMemoryStoreExpiresLazily(t *testing.T) {
	store := NewMemoryStore(0)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "k1", []byte("v1"), time.Millisecond))
	time.Sleep(5 * time.Millisecond)

	_, found, err := store.Get(ctx, "k1")
	require.NoError(t, err)
	assert.False(t, found)

	store.mu.RLock()
	_, stillPresent := store.entries["k1"]
	store.mu.RUnlock()
	assert.False(t, stillPresent, "expired entry should be evicted on Get")
}

func TestMemoryStoreUsesDefaultTTL(t *testing.T) {
	store := NewMemoryStore(time.Millisecond)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "k1", []byte("v1"), 0))
	time.Sleep(5 * time.Millisecond)

	_, found, err := store.Get(ctx, "k1")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestNewStoreDispatchesByType(t *testing.T) {
	store, err := NewStore(Config{Type: TypeMemory})
	require.NoError(t, err)
	_, ok := store.(*MemoryStore)
	assert.True(t, ok)

	store, err = NewStore(Config{})
	require.NoError(t, err)
	_, ok = store.(*MemoryStore)
	assert.True(t, ok, "unset Type should default to memory")
}
