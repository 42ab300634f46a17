package clickhouse

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bitr-backend/internal/domain"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestAnalyticsStore_DailyStatsRoundTrip(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewAnalyticsStore(conn)
	ctx := context.Background()

	computed := time.Date(2026, 3, 2, 1, 0, 0, 0, time.UTC)
	err := store.InsertDailyStats(ctx, []*domain.DailyStat{
		{Day: day(2026, 3, 1), PoolsCreated: 4, BetsPlaced: 31, BetVolume: 1250.5, UniqueBettors: 18, ComputedAt: computed},
		{Day: day(2026, 3, 2), PoolsCreated: 1, BetsPlaced: 6, BetVolume: 90, UniqueBettors: 5, ComputedAt: computed},
	})
	require.NoError(t, err)

	got, err := store.DailyStats(ctx, day(2026, 3, 1), day(2026, 3, 2))
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, uint64(4), got[0].PoolsCreated)
	assert.Equal(t, uint64(31), got[0].BetsPlaced)
	assert.InDelta(t, 1250.5, got[0].BetVolume, 1e-9)
	assert.Equal(t, uint64(18), got[0].UniqueBettors)
	assert.Equal(t, uint64(5), got[1].UniqueBettors)
}

func TestAnalyticsStore_RecomputeReplacesDay(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewAnalyticsStore(conn)
	ctx := context.Background()

	first := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	err := store.InsertDailyStats(ctx, []*domain.DailyStat{
		{Day: day(2026, 3, 1), PoolsCreated: 2, BetsPlaced: 10, BetVolume: 100, UniqueBettors: 7, ComputedAt: first},
	})
	require.NoError(t, err)

	// A later rebuild of the same day supersedes the earlier row.
	err = store.InsertDailyStats(ctx, []*domain.DailyStat{
		{Day: day(2026, 3, 1), PoolsCreated: 3, BetsPlaced: 14, BetVolume: 140, UniqueBettors: 9, ComputedAt: first.Add(time.Hour)},
	})
	require.NoError(t, err)

	got, err := store.DailyStats(ctx, day(2026, 3, 1), day(2026, 3, 1))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, uint64(3), got[0].PoolsCreated)
	assert.Equal(t, uint64(14), got[0].BetsPlaced)
	assert.Equal(t, uint64(9), got[0].UniqueBettors)
}

func TestAnalyticsStore_CategoryStatsRoundTrip(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewAnalyticsStore(conn)
	ctx := context.Background()

	computed := time.Date(2026, 3, 2, 1, 0, 0, 0, time.UTC)
	err := store.InsertCategoryStats(ctx, []*domain.CategoryStat{
		{Day: day(2026, 3, 1), Category: "football", PoolsCreated: 3, BetsPlaced: 20, BetVolume: 800, ComputedAt: computed},
		{Day: day(2026, 3, 1), Category: "crypto", PoolsCreated: 1, BetsPlaced: 11, BetVolume: 450.5, ComputedAt: computed},
	})
	require.NoError(t, err)

	got, err := store.CategoryStats(ctx, day(2026, 3, 1))
	require.NoError(t, err)
	require.Len(t, got, 2)
	// Ordered by category.
	assert.Equal(t, "crypto", got[0].Category)
	assert.Equal(t, uint64(11), got[0].BetsPlaced)
	assert.Equal(t, "football", got[1].Category)
	assert.Equal(t, uint64(3), got[1].PoolsCreated)
}

func TestAnalyticsStore_HourlyActivityRoundTrip(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewAnalyticsStore(conn)
	ctx := context.Background()

	computed := time.Date(2026, 3, 1, 15, 5, 0, 0, time.UTC)
	hours := []*domain.HourlyActivity{
		{Hour: time.Date(2026, 3, 1, 13, 0, 0, 0, time.UTC), EventsIndexed: 40, BetsPlaced: 12, SlipsPlaced: 3, ComputedAt: computed},
		{Hour: time.Date(2026, 3, 1, 14, 0, 0, 0, time.UTC), EventsIndexed: 25, BetsPlaced: 8, SlipsPlaced: 0, ComputedAt: computed},
	}
	require.NoError(t, store.InsertHourlyActivity(ctx, hours))

	got, err := store.HourlyActivity(ctx,
		time.Date(2026, 3, 1, 13, 0, 0, 0, time.UTC),
		time.Date(2026, 3, 1, 14, 0, 0, 0, time.UTC),
	)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, uint64(40), got[0].EventsIndexed)
	assert.Equal(t, uint64(12), got[0].BetsPlaced)
	assert.Equal(t, uint64(25), got[1].EventsIndexed)
	assert.Equal(t, uint64(0), got[1].SlipsPlaced)
}

func TestAnalyticsStore_EmptyBatchIsNoop(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewAnalyticsStore(conn)
	ctx := context.Background()

	require.NoError(t, store.InsertDailyStats(ctx, nil))
	require.NoError(t, store.InsertCategoryStats(ctx, nil))
	require.NoError(t, store.InsertHourlyActivity(ctx, nil))
}
