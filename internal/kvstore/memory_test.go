package kvstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_GetSet(t *testing.T) {
	m := NewMemoryStore()
	ctx := context.Background()

	_, found, err := m.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, m.Set(ctx, "k", "v"))
	val, found, err := m.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "v", val)
}

func TestMemoryStore_PushTrimAndRange(t *testing.T) {
	m := NewMemoryStore()
	ctx := context.Background()

	for _, v := range []string{"a", "b", "c", "d"} {
		require.NoError(t, m.PushTrim(ctx, "list", v, 2))
	}

	got, err := m.LRange(ctx, "list", 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"c", "d"}, got)
}

func TestMemoryStore_Delete(t *testing.T) {
	m := NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, m.Set(ctx, "k", "v"))
	require.NoError(t, m.Delete(ctx, "k"))
	_, found, _ := m.Get(ctx, "k")
	assert.False(t, found)
}

func TestMemoryStore_PingAlwaysHealthy(t *testing.T) {
	m := NewMemoryStore()
	assert.NoError(t, m.Ping(context.Background()))
}
