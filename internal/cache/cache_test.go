package cache

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/TeioDM/Site-de-Registro-de-Atividades/internal/domain"
)

func TestMemoryLeaderboardExpiresAndInvalidates(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	cache := NewMemoryLeaderboard(time.Minute)
	cache.now = func() time.Time { return now }

	_, ok, err := cache.Load(ctx)
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, cache.Store(ctx, []domain.LeaderboardEntry{{ID: "a", TotalPoints: 5}}))
	beforeHits := testutil.ToFloat64(lookupCounter.WithLabelValues("hit"))
	entries, ok, err := cache.Load(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "a", entries[0].ID)
	require.InDelta(t, beforeHits+1, testutil.ToFloat64(lookupCounter.WithLabelValues("hit")), 0.0001)

	now = now.Add(2 * time.Minute)
	_, ok, _ = cache.Load(ctx)
	require.False(t, ok, "snapshot should expire after the ttl")

	require.NoError(t, cache.Store(ctx, []domain.LeaderboardEntry{{ID: "b"}}))
	require.NoError(t, cache.Invalidate(ctx))
	_, ok, _ = cache.Load(ctx)
	require.False(t, ok)
}

func TestMemoryLeaderboardStoresEmptySnapshot(t *testing.T) {
	ctx := context.Background()
	cache := NewMemoryLeaderboard(time.Minute)
	require.NoError(t, cache.Store(ctx, []domain.LeaderboardEntry{}))
	entries, ok, err := cache.Load(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	require.Empty(t, entries)
}
