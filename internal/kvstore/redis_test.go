package kvstore

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	store, err := NewRedisStore(mr.Addr(), "")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	return store, mr
}

func TestRedisStore_GetSetRoundTrip(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	_, found, err := store.Get(ctx, "room:123")
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, store.Set(ctx, "room:123", `{"id":"123"}`))

	val, found, err := store.Get(ctx, "room:123")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, `{"id":"123"}`, val)
}

func TestRedisStore_Delete(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "k", "v"))
	require.NoError(t, store.Delete(ctx, "k"))

	_, found, err := store.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestRedisStore_PushTrimEnforcesBound(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		require.NoError(t, store.PushTrim(ctx, "chat:room1", itoa(i), 3))
	}

	got, err := store.LRange(ctx, "chat:room1", 10)
	require.NoError(t, err)
	require.Len(t, got, 3)
	// Newest 3 pushes were "2","3","4"; oldest-first order.
	assert.Equal(t, []string{"2", "3", "4"}, got)
}

func TestRedisStore_LRangeOldestFirst(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.PushTrim(ctx, "wb:room1", "a", 1000))
	require.NoError(t, store.PushTrim(ctx, "wb:room1", "b", 1000))
	require.NoError(t, store.PushTrim(ctx, "wb:room1", "c", 1000))

	got, err := store.LRange(ctx, "wb:room1", 2)
	require.NoError(t, err)
	// Newest 2 are "b" and "c"; oldest-first means "b" then "c".
	assert.Equal(t, []string{"b", "c"}, got)
}

func TestRedisStore_Ping(t *testing.T) {
	store, _ := newTestStore(t)
	assert.NoError(t, store.Ping(context.Background()))
}

func TestRedisStore_PingFailsAfterServerStops(t *testing.T) {
	store, mr := newTestStore(t)
	mr.Close()

	assert.Error(t, store.Ping(context.Background()))
}

func itoa(i int) string {
	digits := "0123456789"
	if i < 10 {
		return string(digits[i])
	}
	return string(digits[i/10]) + string(digits[i%10])
}
