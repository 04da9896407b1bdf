package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestMemoryStoreSetGet(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()

	_, ok, err := s.Get(ctx, "missing")
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, s.Set(ctx, "k", []byte("v1"), 0))
	b, ok, err := s.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []byte("v1"), b)

	// Entries are replaced wholesale, never merged.
	require.NoError(t, s.Set(ctx, "k", []byte("v2"), 0))
	b, ok, _ = s.Get(ctx, "k")
	require.True(t, ok)
	require.Equal(t, []byte("v2"), b)
}

func TestMemoryStoreTTL(t *testing.T) {
	base := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	now := base
	s := NewMemoryWithClock(func() time.Time { return now })
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "k", []byte("v"), 10*time.Minute))

	now = base.Add(9*time.Minute + 59*time.Second)
	_, ok, _ := s.Get(ctx, "k")
	require.True(t, ok, "value must be present before the TTL elapses")

	now = base.Add(10 * time.Minute)
	_, ok, _ = s.Get(ctx, "k")
	require.False(t, ok, "value must be gone once the TTL elapses")
}

func TestMemoryStoreInvalidatePattern(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "t1:sankhya:token", []byte("a"), 0))
	require.NoError(t, s.Set(ctx, "t1:sankhya:contract", []byte("b"), 0))
	require.NoError(t, s.Set(ctx, "t2:sankhya:token", []byte("c"), 0))

	n, err := s.InvalidatePattern(ctx, "t1:")
	require.NoError(t, err)
	require.Equal(t, 2, n)

	_, ok, _ := s.Get(ctx, "t2:sankhya:token")
	require.True(t, ok, "other tenants' keys must survive")
}

func TestMemoryStoreDelete(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "k", []byte("v"), 0))
	require.NoError(t, s.Delete(ctx, "k"))
	_, ok, _ := s.Get(ctx, "k")
	require.False(t, ok)
}
