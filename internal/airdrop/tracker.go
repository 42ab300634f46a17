// Package airdrop records the activity trail used for airdrop
// eligibility: faucet claims, BITR transfers and staking actions. Rows
// are append-only and deduped by transaction, so indexer replays are
// harmless.
package airdrop

import (
	"context"
	"fmt"
	"log"

	"bitr-backend/internal/domain"
	"bitr-backend/internal/storage"
)

// Tracker is the indexer handler feeding the airdrop.* tables.
type Tracker struct {
	store  storage.AirdropStore
	logger *log.Logger
}

// Options collects the tracker's dependencies.
type Options struct {
	Store  storage.AirdropStore
	Logger *log.Logger
}

func New(opts Options) (*Tracker, error) {
	if opts.Store == nil {
		return nil, fmt.Errorf("airdrop: store is required")
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	return &Tracker{store: opts.Store, logger: opts.Logger}, nil
}

// HandleEvent is the indexer hand-off. Unrecognized events are ignored
// so the tracker can share a subscription with other handlers.
func (t *Tracker) HandleEvent(ctx context.Context, ev domain.ChainEvent) error {
	switch e := ev.(type) {
	case *domain.FaucetClaimedEvent:
		if err := t.store.InsertFaucetClaim(ctx, e); err != nil {
			return fmt.Errorf("record faucet claim %s: %w", e.TxHash, err)
		}
	case *domain.TransferEvent:
		if err := t.store.InsertTransfer(ctx, e); err != nil {
			return fmt.Errorf("record transfer %s/%d: %w", e.TxHash, e.LogIndex, err)
		}
	case *domain.StakedEvent:
		if err := t.store.InsertStakingActivity(ctx, "staked", e.User, e.Amount, e.EventMeta); err != nil {
			return fmt.Errorf("record stake %s/%d: %w", e.TxHash, e.LogIndex, err)
		}
	case *domain.UnstakedEvent:
		if err := t.store.InsertStakingActivity(ctx, "unstaked", e.User, e.Amount, e.EventMeta); err != nil {
			return fmt.Errorf("record unstake %s/%d: %w", e.TxHash, e.LogIndex, err)
		}
	case *domain.RewardsClaimedEvent:
		if err := t.store.InsertStakingActivity(ctx, "rewards_claimed", e.User, e.Amount, e.EventMeta); err != nil {
			return fmt.Errorf("record rewards claim %s/%d: %w", e.TxHash, e.LogIndex, err)
		}
	}
	return nil
}
