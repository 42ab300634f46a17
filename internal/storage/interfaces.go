package storage

import (
	"context"
	"math/big"
	"time"

	"bitr-backend/internal/domain"
)

// PoolStore provides access to oracle.pools.
type PoolStore interface {
	// Upsert writes a pool snapshot. Existing rows are overwritten
	// field-by-field only when the snapshot's ReadAt is newer, and
	// settled rows never move backward to active.
	Upsert(ctx context.Context, p *domain.Pool) error

	// GetByID retrieves a pool. Returns ErrNotFound if absent.
	GetByID(ctx context.Context, poolID uint64) (*domain.Pool, error)

	// MaxPoolID returns the highest mirrored pool id, or ok=false when
	// no pools exist yet.
	MaxPoolID(ctx context.Context) (uint64, bool, error)

	// ActiveIDs returns ids of pools with status=active, ascending.
	ActiveIDs(ctx context.Context) ([]uint64, error)

	// GuidedDue returns active guided pools of the given category whose
	// event_end_time has passed and which have no oracle submission yet.
	GuidedDue(ctx context.Context, category string, now int64) ([]*domain.Pool, error)

	// UnsettledPast returns pools still active whose event_end_time is
	// older than now-buffer, candidates for automatic settlement.
	UnsettledPast(ctx context.Context, now, bufferSeconds int64) ([]*domain.Pool, error)

	// MarkSettled finalizes a pool's status, result, and timestamp.
	MarkSettled(ctx context.Context, poolID uint64, result string, settledAt int64) error

	// MarkRefunded sets status=refunded.
	MarkRefunded(ctx context.Context, poolID uint64) error

	// AddBettorStake bumps total_bettor_stake by amount for active pools.
	AddBettorStake(ctx context.Context, poolID uint64, amount *big.Int) error

	// AddCreatorSideStake bumps total_creator_side_stake by amount.
	AddCreatorSideStake(ctx context.Context, poolID uint64, amount *big.Int) error
}

// BetStore provides access to oracle.bets.
type BetStore interface {
	// Upsert writes a bet keyed by (pool_id, bettor, tx_hash).
	// Re-inserting the same key is a no-op.
	Upsert(ctx context.Context, b *domain.Bet) error

	// GetByPool retrieves all bets for a pool ordered by block, tx.
	GetByPool(ctx context.Context, poolID uint64) ([]*domain.Bet, error)

	// SumByPool returns the sum of bet amounts for a pool.
	SumByPool(ctx context.Context, poolID uint64) (*big.Int, error)
}

// LiquidityStore provides access to oracle.pool_liquidity_providers.
type LiquidityStore interface {
	// Upsert writes a provision keyed by (pool_id, provider, tx_hash).
	Upsert(ctx context.Context, lp *domain.LiquidityProvision) error

	// GetByPool retrieves all provisions for a pool.
	GetByPool(ctx context.Context, poolID uint64) ([]*domain.LiquidityProvision, error)
}

// FixtureStore provides access to oracle.fixtures and oracle.fixture_odds.
type FixtureStore interface {
	// UpsertFixtures writes fixtures keyed by fixture_id.
	UpsertFixtures(ctx context.Context, fixtures []*domain.Fixture) error

	// GetByID retrieves a fixture. Returns ErrNotFound if absent.
	GetByID(ctx context.Context, fixtureID string) (*domain.Fixture, error)

	// UpsertOdds writes odds rows keyed by
	// (fixture_id, market_id, bookmaker_id, label, total).
	UpsertOdds(ctx context.Context, odds []*domain.OddsRow) error
}

// ResultStore provides access to oracle.fixture_results.
type ResultStore interface {
	// Upsert writes a result keyed by fixture_id.
	Upsert(ctx context.Context, r *domain.FixtureResult) error

	// GetByFixtureID retrieves a result. Returns ErrNotFound if absent.
	GetByFixtureID(ctx context.Context, fixtureID string) (*domain.FixtureResult, error)
}

// CryptoStore provides access to the oracle.crypto_* tables.
type CryptoStore interface {
	// InsertMarket adds a prediction market. Returns ErrDuplicateKey on
	// an existing market_id.
	InsertMarket(ctx context.Context, m *domain.CryptoMarket) error

	// UnresolvedDue returns unresolved markets with end_time <= now.
	UnresolvedDue(ctx context.Context, now int64) ([]*domain.CryptoMarket, error)

	// MarkResolved finalizes a market. Resolved rows are never mutated.
	MarkResolved(ctx context.Context, marketID string, finalPrice float64, result string) error

	// InsertSnapshot appends one ticker observation.
	InsertSnapshot(ctx context.Context, s *domain.PriceSnapshot) error

	// InsertSnapshots appends a batch of ticker observations.
	InsertSnapshots(ctx context.Context, snaps []*domain.PriceSnapshot) error

	// LatestSnapshot returns the most recent snapshot for a symbol.
	// Returns ErrNotFound when no snapshot exists.
	LatestSnapshot(ctx context.Context, symbol string) (*domain.PriceSnapshot, error)

	// InsertResolutionLog appends one resolver attempt record.
	InsertResolutionLog(ctx context.Context, l *domain.ResolutionLog) error
}

// SlipStore provides access to oracle.oddyssey_slips.
type SlipStore interface {
	// Upsert writes a slip keyed by slip_id.
	Upsert(ctx context.Context, s *domain.OddysseySlip) error

	// GetByID retrieves a slip. Returns ErrNotFound if absent.
	GetByID(ctx context.Context, slipID uint64) (*domain.OddysseySlip, error)

	// MarkEvaluated records a slip's evaluation.
	MarkEvaluated(ctx context.Context, slipID uint64, correctCount int) error

	// MarkClaimed records a prize claim.
	MarkClaimed(ctx context.Context, slipID uint64) error
}

// UserStore provides access to core.users and core.reputation_actions.
type UserStore interface {
	// GetByAddress retrieves a user. Returns ErrNotFound if absent.
	GetByAddress(ctx context.Context, addr domain.Address) (*domain.User, error)

	// ApplyAction ensures the user row exists, appends the action to the
	// ledger, and moves reputation by Delta clamped to
	// [MinReputation, MaxReputation]. last_active is refreshed.
	// Actions with a tx_hash are idempotent on (tx_hash, action,
	// address): a replay applies nothing and returns false.
	ApplyAction(ctx context.Context, a *domain.ReputationAction) (applied bool, err error)

	// DirtyUsers returns up to limit users whose reputation needs an
	// on-chain push (reputation > 0 and never synced or active since
	// last sync).
	DirtyUsers(ctx context.Context, limit int) ([]*domain.User, error)

	// MarkSynced sets last_synced_at for the given addresses.
	MarkSynced(ctx context.Context, addrs []domain.Address, syncedAt int64) error

	// DecayCandidates returns users whose last_synced_at (when a sync
	// has ever happened) or last_active is older than its cutoff.
	DecayCandidates(ctx context.Context, syncCutoff, activityCutoff int64) ([]*domain.User, error)

	// RecordDecay moves reputation by delta (negative) floored at
	// MinReputation and appends the DECAY ledger row, without touching
	// last_active so inactive users keep decaying.
	RecordDecay(ctx context.Context, addr domain.Address, delta int, occurredAt int64) error

	// BumpCounter increments one of the user counters
	// ("total_bets", "total_pools", "pools_won").
	BumpCounter(ctx context.Context, addr domain.Address, counter string) error
}

// EventStore provides access to analytics.strategic_events and
// oracle.indexed_blocks.
type EventStore interface {
	// CommitRange atomically writes a batch of strategic events and the
	// range's high-water marker. Duplicate events (same tx_hash,
	// log_index, event_name) are ignored.
	CommitRange(ctx context.Context, events []*domain.StrategicEvent, marker *domain.IndexedBlock) error

	// LastIndexed returns the highest committed marker across all
	// categories, or ok=false on a fresh database.
	LastIndexed(ctx context.Context) (*domain.IndexedBlock, bool, error)

	// GetMarker returns the marker for one category.
	GetMarker(ctx context.Context, category string) (*domain.IndexedBlock, error)

	// RewindTo deletes strategic events above the ancestor block and
	// resets the category marker, used by reorg handling.
	RewindTo(ctx context.Context, category string, ancestor uint64, ancestorHash string) error

	// CountEvents returns the number of archived strategic events.
	CountEvents(ctx context.Context) (int64, error)
}

// SubmissionStore provides access to public.oracle_submissions.
type SubmissionStore interface {
	// Upsert records an outcome submission keyed by market_id.
	Upsert(ctx context.Context, s *domain.OracleSubmission) error

	// Exists reports whether a submission is recorded for market_id.
	Exists(ctx context.Context, marketID string) (bool, error)
}

// AirdropStore provides access to the airdrop.* activity tables.
type AirdropStore interface {
	// InsertFaucetClaim appends one faucet claim, deduped by tx_hash.
	InsertFaucetClaim(ctx context.Context, e *domain.FaucetClaimedEvent) error

	// InsertTransfer appends one BITR transfer, deduped by (tx_hash, log_index).
	InsertTransfer(ctx context.Context, e *domain.TransferEvent) error

	// InsertStakingActivity appends one staking action
	// ("staked" | "unstaked" | "rewards_claimed"), deduped by (tx_hash, log_index).
	InsertStakingActivity(ctx context.Context, kind string, user domain.Address, amount *big.Int, meta domain.EventMeta) error
}

// StatsSource computes rollups from the authoritative Postgres mirror.
// day is truncated to UTC midnight; each call covers [day, day+24h).
type StatsSource interface {
	// DailyStats aggregates platform-wide pool/bet activity for one day.
	DailyStats(ctx context.Context, day time.Time) (*domain.DailyStat, error)

	// CategoryStats aggregates per-category activity for one day.
	CategoryStats(ctx context.Context, day time.Time) ([]*domain.CategoryStat, error)

	// HourlyActivity aggregates indexed-event counts per hour for one day.
	HourlyActivity(ctx context.Context, day time.Time) ([]*domain.HourlyActivity, error)
}

// AnalyticsStore writes rollups to the ClickHouse analytics tables.
// Rows replace earlier rows with the same dimensions, so rebuilding a
// day is idempotent.
type AnalyticsStore interface {
	InsertDailyStats(ctx context.Context, stats []*domain.DailyStat) error
	InsertCategoryStats(ctx context.Context, stats []*domain.CategoryStat) error
	InsertHourlyActivity(ctx context.Context, rows []*domain.HourlyActivity) error
}
