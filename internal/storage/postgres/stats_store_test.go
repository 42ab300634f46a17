package postgres

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bitr-backend/internal/domain"
)

// statsDay is the aggregation day used across these tests, UTC midnight.
var statsDay = time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

func statsPool(poolID uint64, category string) *domain.Pool {
	return &domain.Pool{
		PoolID:                poolID,
		Creator:               domain.NormalizeAddress("0x00000000000000000000000000000000000000c1"),
		Category:              category,
		CreatorStake:          big.NewInt(0),
		TotalCreatorSideStake: big.NewInt(0),
		TotalBettorStake:      big.NewInt(0),
		MaxBettorStake:        big.NewInt(0),
		MaxBetPerUser:         big.NewInt(0),
		Status:                domain.PoolActive,
		ReadAt:                statsDay.Unix(),
	}
}

// tokens converts whole tokens to wei.
func tokens(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil))
}

func seedStatsData(t *testing.T, ctx context.Context, pool *Pool) {
	t.Helper()

	pools := NewPoolStore(pool)
	require.NoError(t, pools.Upsert(ctx, statsPool(1, "football")))
	require.NoError(t, pools.Upsert(ctx, statsPool(2, "crypto")))

	bets := NewBetStore(pool)
	day := statsDay.Unix()
	rows := []*domain.Bet{
		{PoolID: 1, Bettor: domain.NormalizeAddress("0xb1"), Amount: tokens(100), IsForOutcome: true, TxHash: "0xb1a", CreatedAt: day + 3600},
		{PoolID: 1, Bettor: domain.NormalizeAddress("0xb2"), Amount: tokens(50), IsForOutcome: false, TxHash: "0xb2a", CreatedAt: day + 7200},
		{PoolID: 2, Bettor: domain.NormalizeAddress("0xb1"), Amount: tokens(25), IsForOutcome: true, TxHash: "0xb1b", CreatedAt: day + 7300},
		// Outside the aggregation day: previous evening.
		{PoolID: 2, Bettor: domain.NormalizeAddress("0xb3"), Amount: tokens(999), IsForOutcome: true, TxHash: "0xb3a", CreatedAt: day - 100},
	}
	for _, b := range rows {
		require.NoError(t, bets.Upsert(ctx, b))
	}

	events := NewEventStore(pool)
	archive := []*domain.StrategicEvent{
		{TxHash: "0xp1", LogIndex: 0, EventName: "PoolCreated", Contract: "PoolCore", BlockNumber: 10, ArgsJSON: []byte(`{"category":"football"}`), RecordedAt: day + 3700},
		{TxHash: "0xp2", LogIndex: 0, EventName: "PoolCreated", Contract: "PoolCore", BlockNumber: 11, ArgsJSON: []byte(`{"category":"crypto"}`), RecordedAt: day + 7300},
		{TxHash: "0xb1a", LogIndex: 1, EventName: "BetPlaced", Contract: "PoolCore", BlockNumber: 12, ArgsJSON: []byte(`{}`), RecordedAt: day + 3600},
		{TxHash: "0xb2a", LogIndex: 1, EventName: "BetPlaced", Contract: "PoolCore", BlockNumber: 13, ArgsJSON: []byte(`{}`), RecordedAt: day + 7200},
		{TxHash: "0xs1", LogIndex: 0, EventName: "SlipPlaced", Contract: "Oddyssey", BlockNumber: 14, ArgsJSON: []byte(`{}`), RecordedAt: day + 7250},
		// Outside the day.
		{TxHash: "0xp0", LogIndex: 0, EventName: "PoolCreated", Contract: "PoolCore", BlockNumber: 9, ArgsJSON: []byte(`{"category":"football"}`), RecordedAt: day - 50},
	}
	require.NoError(t, events.CommitRange(ctx, archive, nil))
}

func TestStatsStore_DailyStats(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	seedStatsData(t, ctx, pool)

	store := NewStatsStore(pool)
	st, err := store.DailyStats(ctx, statsDay.Add(13*time.Hour)) // any time within the day
	require.NoError(t, err)

	assert.Equal(t, statsDay, st.Day)
	assert.Equal(t, uint64(2), st.PoolsCreated)
	assert.Equal(t, uint64(3), st.BetsPlaced)
	assert.InDelta(t, 175.0, st.BetVolume, 1e-9)
	assert.Equal(t, uint64(2), st.UniqueBettors)
	assert.False(t, st.ComputedAt.IsZero())
}

func TestStatsStore_CategoryStats(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	seedStatsData(t, ctx, pool)

	store := NewStatsStore(pool)
	stats, err := store.CategoryStats(ctx, statsDay)
	require.NoError(t, err)
	require.Len(t, stats, 2)

	// Sorted by category: crypto, football.
	assert.Equal(t, "crypto", stats[0].Category)
	assert.Equal(t, uint64(1), stats[0].PoolsCreated)
	assert.Equal(t, uint64(1), stats[0].BetsPlaced)
	assert.InDelta(t, 25.0, stats[0].BetVolume, 1e-9)

	assert.Equal(t, "football", stats[1].Category)
	assert.Equal(t, uint64(1), stats[1].PoolsCreated)
	assert.Equal(t, uint64(2), stats[1].BetsPlaced)
	assert.InDelta(t, 150.0, stats[1].BetVolume, 1e-9)
}

func TestStatsStore_HourlyActivity(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	seedStatsData(t, ctx, pool)

	store := NewStatsStore(pool)
	hours, err := store.HourlyActivity(ctx, statsDay)
	require.NoError(t, err)
	require.Len(t, hours, 2)

	// Hour 1: one PoolCreated, one BetPlaced.
	assert.Equal(t, statsDay.Add(time.Hour), hours[0].Hour)
	assert.Equal(t, uint64(2), hours[0].EventsIndexed)
	assert.Equal(t, uint64(1), hours[0].BetsPlaced)
	assert.Equal(t, uint64(0), hours[0].SlipsPlaced)

	// Hour 2: PoolCreated + BetPlaced + SlipPlaced.
	assert.Equal(t, statsDay.Add(2*time.Hour), hours[1].Hour)
	assert.Equal(t, uint64(3), hours[1].EventsIndexed)
	assert.Equal(t, uint64(1), hours[1].BetsPlaced)
	assert.Equal(t, uint64(1), hours[1].SlipsPlaced)
}

func TestStatsStore_EmptyDay(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewStatsStore(pool)

	st, err := store.DailyStats(ctx, statsDay)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), st.PoolsCreated)
	assert.Equal(t, uint64(0), st.BetsPlaced)
	assert.Equal(t, 0.0, st.BetVolume)

	cats, err := store.CategoryStats(ctx, statsDay)
	require.NoError(t, err)
	assert.Empty(t, cats)

	hours, err := store.HourlyActivity(ctx, statsDay)
	require.NoError(t, err)
	assert.Empty(t, hours)
}
