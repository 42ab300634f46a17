package postgres

import (
	"context"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bitr-backend/internal/domain"
	"bitr-backend/internal/storage"
)

func testPool(id uint64, readAt int64) *domain.Pool {
	return &domain.Pool{
		PoolID:                id,
		Creator:               domain.NormalizeAddress("0xAbC0000000000000000000000000000000000001"),
		PredictedOutcome:      "Home",
		Odds:                  1500,
		CreatorStake:          big.NewInt(1_000_000),
		TotalCreatorSideStake: big.NewInt(1_000_000),
		TotalBettorStake:      big.NewInt(0),
		MaxBettorStake:        big.NewInt(10_000_000),
		MaxBetPerUser:         big.NewInt(1_000_000),
		EventStartTime:        1000,
		EventEndTime:          2000,
		BettingEndTime:        900,
		League:                "Premier League",
		Category:              "football",
		HomeTeam:              "Arsenal",
		AwayTeam:              "Chelsea",
		MarketID:              "fixture_1001",
		OracleType:            domain.OracleGuided,
		MarketType:            domain.MarketMoneyline,
		Status:                domain.PoolActive,
		ReadAt:                readAt,
	}
}

func TestPoolStore_UpsertAndGet(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewPoolStore(pool)

	p := testPool(1, 100)
	require.NoError(t, store.Upsert(ctx, p))

	got, err := store.GetByID(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, p.Creator, got.Creator)
	assert.Equal(t, "Home", got.PredictedOutcome)
	assert.Equal(t, int64(1500), got.Odds)
	assert.Equal(t, domain.MarketMoneyline, got.MarketType)
	assert.Equal(t, domain.PoolActive, got.Status)
	assert.Zero(t, p.CreatorStake.Cmp(got.CreatorStake))
}

func TestPoolStore_GetMissing(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	_, err := NewPoolStore(pool).GetByID(context.Background(), 999)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestPoolStore_StakePrecision256Bit(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewPoolStore(pool)

	// 2^255: beyond any 64-bit type, must round-trip exactly.
	huge := new(big.Int).Lsh(big.NewInt(1), 255)
	p := testPool(7, 100)
	p.CreatorStake = huge
	p.TotalCreatorSideStake = huge
	p.MaxBettorStake = new(big.Int).Add(huge, big.NewInt(1))
	require.NoError(t, store.Upsert(ctx, p))

	got, err := store.GetByID(ctx, 7)
	require.NoError(t, err)
	assert.Zero(t, huge.Cmp(got.CreatorStake))
	assert.Zero(t, huge.Cmp(got.TotalCreatorSideStake))
	assert.Equal(t, "1", new(big.Int).Sub(got.MaxBettorStake, huge).String())
}

func TestPoolStore_StaleSnapshotLoses(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewPoolStore(pool)

	fresh := testPool(2, 200)
	fresh.PredictedOutcome = "Away"
	require.NoError(t, store.Upsert(ctx, fresh))

	stale := testPool(2, 100)
	stale.PredictedOutcome = "Home"
	require.NoError(t, store.Upsert(ctx, stale))

	got, err := store.GetByID(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, "Away", got.PredictedOutcome, "older read must not overwrite newer")
}

func TestPoolStore_SettledNeverRevertsToActive(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewPoolStore(pool)

	require.NoError(t, store.Upsert(ctx, testPool(3, 100)))
	require.NoError(t, store.MarkSettled(ctx, 3, "Home", 5000))

	// A later full-sync snapshot still reading "active" must not reopen.
	replay := testPool(3, 300)
	require.NoError(t, store.Upsert(ctx, replay))

	got, err := store.GetByID(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, domain.PoolSettled, got.Status)
	assert.Equal(t, "Home", got.Result)
}

func TestPoolStore_AddBettorStake(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewPoolStore(pool)

	require.NoError(t, store.Upsert(ctx, testPool(4, 100)))
	require.NoError(t, store.AddBettorStake(ctx, 4, big.NewInt(500)))
	require.NoError(t, store.AddBettorStake(ctx, 4, big.NewInt(700)))

	got, err := store.GetByID(ctx, 4)
	require.NoError(t, err)
	assert.Equal(t, "1200", got.TotalBettorStake.String())

	// Settled pools stop accumulating.
	require.NoError(t, store.MarkSettled(ctx, 4, "Home", 5000))
	require.NoError(t, store.AddBettorStake(ctx, 4, big.NewInt(100)))
	got, err = store.GetByID(ctx, 4)
	require.NoError(t, err)
	assert.Equal(t, "1200", got.TotalBettorStake.String())
}

func TestPoolStore_GuidedDue(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewPoolStore(pool)
	subs := NewSubmissionStore(pool)

	due := testPool(10, 100)
	due.EventEndTime = 1000
	require.NoError(t, store.Upsert(ctx, due))

	notYet := testPool(11, 100)
	notYet.EventEndTime = 99999
	notYet.MarketID = "fixture_2002"
	require.NoError(t, store.Upsert(ctx, notYet))

	submitted := testPool(12, 100)
	submitted.EventEndTime = 1000
	submitted.MarketID = "fixture_3003"
	require.NoError(t, store.Upsert(ctx, submitted))
	require.NoError(t, subs.Upsert(ctx, &domain.OracleSubmission{
		MarketID: "fixture_3003", Outcome: "Home",
		OracleType: domain.OracleGuided, SubmittedAt: 2000,
	}))

	got, err := store.GuidedDue(ctx, "football", 5000)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, uint64(10), got[0].PoolID)
}
