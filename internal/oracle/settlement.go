package oracle

import (
	"context"
	"fmt"
	"log"
	"time"

	"bitr-backend/internal/chain"
	"bitr-backend/internal/storage"
)

// DefaultArbitrationBuffer is how long after event end a pool must wait
// before automatic settlement, leaving room for dispute windows.
const DefaultArbitrationBuffer = time.Hour

// Settler drives pool settlement once outcomes are on the oracle. The
// resolver only guarantees the outcome exists; this job turns it into
// settled pools.
type Settler struct {
	pools     storage.PoolStore
	contracts *chain.Contracts
	sender    *chain.TxSender
	buffer    time.Duration
	logger    *log.Logger
	now       func() time.Time
}

// SettlerOptions collects the settlement job's dependencies.
type SettlerOptions struct {
	Pools             storage.PoolStore
	Contracts         *chain.Contracts
	Sender            *chain.TxSender
	ArbitrationBuffer time.Duration
	Logger            *log.Logger
}

func NewSettler(opts SettlerOptions) (*Settler, error) {
	if opts.Pools == nil || opts.Contracts == nil || opts.Sender == nil {
		return nil, fmt.Errorf("oracle: pools, contracts and sender are required")
	}
	if opts.ArbitrationBuffer <= 0 {
		opts.ArbitrationBuffer = DefaultArbitrationBuffer
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	return &Settler{
		pools:     opts.Pools,
		contracts: opts.Contracts,
		sender:    opts.Sender,
		buffer:    opts.ArbitrationBuffer,
		logger:    opts.Logger,
		now:       time.Now,
	}, nil
}

// Run settles every pool past its arbitration window. Per-pool errors
// are logged and skipped; the next run retries them.
func (s *Settler) Run(ctx context.Context) error {
	due, err := s.pools.UnsettledPast(ctx, s.now().Unix(), int64(s.buffer.Seconds()))
	if err != nil {
		return fmt.Errorf("list unsettled pools: %w", err)
	}
	for _, pool := range due {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := s.settle(ctx, pool.PoolID, pool.MarketID); err != nil {
			s.logger.Printf("oracle: settle pool %d: %v", pool.PoolID, err)
		}
	}
	return nil
}

// settle tries automatic settlement first and falls back to a manual
// settlePool with the oracle's stored result when the automatic path
// reverts. Pools whose outcome is not on the oracle yet are skipped.
func (s *Settler) settle(ctx context.Context, poolID uint64, marketID string) error {
	settled, err := s.contracts.IsPoolSettled(ctx, poolID)
	if err != nil {
		return fmt.Errorf("read settlement state: %w", err)
	}
	if settled {
		// mirror catches the PoolSettled event; nothing to do here
		return nil
	}

	isSet, result, err := s.contracts.GetOutcome(ctx, marketID)
	if err != nil {
		return fmt.Errorf("read oracle outcome: %w", err)
	}
	if !isSet {
		return nil // resolver has not submitted yet
	}

	_, autoErr := s.contracts.SettlePoolAutomatically(ctx, s.sender, poolID)
	if autoErr == nil {
		s.logger.Printf("oracle: pool %d settled automatically", poolID)
		return nil
	}
	s.logger.Printf("oracle: automatic settlement of pool %d failed, trying manual: %v", poolID, autoErr)

	if _, err := s.contracts.SettlePool(ctx, s.sender, poolID, string(result)); err != nil {
		return fmt.Errorf("manual settlement: %w", err)
	}
	s.logger.Printf("oracle: pool %d settled manually with outcome %q", poolID, result)
	return nil
}
