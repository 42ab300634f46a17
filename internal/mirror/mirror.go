// Package mirror keeps oracle.pools, oracle.bets and
// oracle.pool_liquidity_providers as faithful projections of on-chain
// state. Two paths feed it: event-driven writes from the indexer, and a
// periodic full sync that backfills missing pools and reconciles
// drifted aggregates. The chain is authoritative; on divergence the
// store row is overwritten.
package mirror

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"bitr-backend/internal/chain"
	"bitr-backend/internal/domain"
	"bitr-backend/internal/storage"
)

const syncBatchSize = 20

// Metrics is the mirror's counter surface; nil disables reporting.
type Metrics interface {
	PoolMirrored()
	BetMirrored()
	MirrorDrift(poolID uint64)
}

// Options collects the mirror's dependencies.
type Options struct {
	Contracts *chain.Contracts
	Pools     storage.PoolStore
	Bets      storage.BetStore
	Liquidity storage.LiquidityStore
	Logger    *log.Logger
	Metrics   Metrics
}

// Mirror reconciles pool and bet tables with the chain.
type Mirror struct {
	contracts *chain.Contracts
	pools     storage.PoolStore
	bets      storage.BetStore
	liquidity storage.LiquidityStore
	logger    *log.Logger
	metrics   Metrics
	now       func() time.Time
}

func New(opts Options) (*Mirror, error) {
	if opts.Contracts == nil || opts.Pools == nil || opts.Bets == nil || opts.Liquidity == nil {
		return nil, fmt.Errorf("mirror: contracts and stores are required")
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	return &Mirror{
		contracts: opts.Contracts,
		pools:     opts.Pools,
		bets:      opts.Bets,
		liquidity: opts.Liquidity,
		logger:    opts.Logger,
		metrics:   opts.Metrics,
		now:       time.Now,
	}, nil
}

// HandleEvent is the indexer hand-off. Unrecognized events are ignored
// so the mirror can be registered broadly.
func (m *Mirror) HandleEvent(ctx context.Context, ev domain.ChainEvent) error {
	switch e := ev.(type) {
	case *domain.PoolCreatedEvent:
		return m.refreshPool(ctx, e.PoolID)
	case *domain.BetPlacedEvent:
		return m.applyBet(ctx, e)
	case *domain.LiquidityAddedEvent:
		return m.applyLiquidity(ctx, e)
	case *domain.PoolSettledEvent:
		return m.pools.MarkSettled(ctx, e.PoolID, e.Outcome, e.SettledAt)
	case *domain.PoolRefundedEvent:
		return m.pools.MarkRefunded(ctx, e.PoolID)
	}
	return nil
}

// refreshPool reads the full pool struct back from the contract and
// upserts it. Reading back is cheaper and more complete than
// reconstructing the row from sparse event topics.
func (m *Mirror) refreshPool(ctx context.Context, poolID uint64) error {
	pool, err := m.contracts.GetPool(ctx, poolID)
	if err != nil {
		return fmt.Errorf("read pool %d: %w", poolID, err)
	}
	if err := m.pools.Upsert(ctx, pool); err != nil {
		return fmt.Errorf("upsert pool %d: %w", poolID, err)
	}
	if m.metrics != nil {
		m.metrics.PoolMirrored()
	}
	return nil
}

func (m *Mirror) applyBet(ctx context.Context, e *domain.BetPlacedEvent) error {
	bet := &domain.Bet{
		PoolID:       e.PoolID,
		Bettor:       e.Bettor,
		Amount:       e.Amount,
		IsForOutcome: e.IsForOutcome,
		BlockNumber:  e.Meta().BlockNumber,
		TxHash:       e.Meta().TxHash,
		CreatedAt:    m.now().Unix(),
	}
	if err := m.bets.Upsert(ctx, bet); err != nil {
		return fmt.Errorf("upsert bet %s: %w", bet.TxHash, err)
	}
	// aggregate bump; the periodic sync corrects any divergence from
	// replayed events
	if err := m.pools.AddBettorStake(ctx, e.PoolID, e.Amount); err != nil {
		return fmt.Errorf("bump pool %d bettor stake: %w", e.PoolID, err)
	}
	if m.metrics != nil {
		m.metrics.BetMirrored()
	}
	return nil
}

func (m *Mirror) applyLiquidity(ctx context.Context, e *domain.LiquidityAddedEvent) error {
	lp := &domain.LiquidityProvision{
		PoolID:      e.PoolID,
		Provider:    e.Provider,
		Amount:      e.Amount,
		BlockNumber: e.Meta().BlockNumber,
		TxHash:      e.Meta().TxHash,
		CreatedAt:   m.now().Unix(),
	}
	if err := m.liquidity.Upsert(ctx, lp); err != nil {
		return fmt.Errorf("upsert liquidity %s: %w", lp.TxHash, err)
	}
	return m.pools.AddCreatorSideStake(ctx, e.PoolID, e.Amount)
}

// Sync is the periodic full reconciliation: backfill every pool id the
// store has never seen, then refresh all active pools so aggregates
// converge with the chain. Individual pool failures are logged and
// skipped; one bad pool never stalls the cycle.
func (m *Mirror) Sync(ctx context.Context) error {
	count, err := m.contracts.PoolCount(ctx)
	if err != nil {
		return fmt.Errorf("read pool count: %w", err)
	}
	if count == 0 {
		return nil
	}

	maxID, seeded, err := m.pools.MaxPoolID(ctx)
	if err != nil {
		return fmt.Errorf("read max pool id: %w", err)
	}

	var missing []uint64
	start := uint64(0)
	if seeded {
		start = maxID + 1
	}
	for id := start; id < count; id++ {
		missing = append(missing, id)
	}
	if len(missing) > 0 {
		m.logger.Printf("mirror: backfilling %d missing pools (chain count %d)", len(missing), count)
		m.refreshBatches(ctx, missing)
	}

	active, err := m.pools.ActiveIDs(ctx)
	if err != nil {
		return fmt.Errorf("list active pools: %w", err)
	}
	m.refreshBatches(ctx, active)
	return nil
}

// refreshBatches refreshes ids in batches; when a batch hits an error,
// it falls back to per-id retries so one bad read does not discard the
// rest of the batch.
func (m *Mirror) refreshBatches(ctx context.Context, ids []uint64) {
	for startIdx := 0; startIdx < len(ids); startIdx += syncBatchSize {
		end := startIdx + syncBatchSize
		if end > len(ids) {
			end = len(ids)
		}
		batch := ids[startIdx:end]
		if err := m.refreshAll(ctx, batch); err != nil {
			if ctx.Err() != nil {
				return
			}
			for _, id := range batch {
				if err := m.refreshPool(ctx, id); err != nil {
					if ctx.Err() != nil {
						return
					}
					m.logger.Printf("mirror: refresh pool %d: %v", id, err)
				}
			}
		}
	}
}

func (m *Mirror) refreshAll(ctx context.Context, ids []uint64) error {
	for _, id := range ids {
		if err := m.refreshPool(ctx, id); err != nil {
			return err
		}
	}
	return nil
}

// Verify compares a stored pool with the chain and reports drift on the
// bettor-stake aggregate. Used by tests and the status endpoint.
func (m *Mirror) Verify(ctx context.Context, poolID uint64) (bool, error) {
	stored, err := m.pools.GetByID(ctx, poolID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	onchain, err := m.contracts.GetPool(ctx, poolID)
	if err != nil {
		return false, err
	}
	match := stored.TotalBettorStake.Cmp(onchain.TotalBettorStake) == 0 &&
		stored.Status == onchain.Status
	if !match && m.metrics != nil {
		m.metrics.MirrorDrift(poolID)
	}
	return match, nil
}
