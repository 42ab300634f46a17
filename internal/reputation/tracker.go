// Package reputation maintains user reputation scores: event-driven
// accrual from chain activity, scheduled decay for stale accounts, and
// a periodic push of dirty scores to the reputation contract.
package reputation

import (
	"context"
	"fmt"
	"log"
	"time"

	"bitr-backend/internal/domain"
	"bitr-backend/internal/storage"
)

// Action deltas. The current score is the capped running sum of these.
var actionDeltas = map[domain.ReputationActionType]int{
	domain.ActionPoolCreated:           8,
	domain.ActionBetPlaced:             2,
	domain.ActionOddysseyParticipation: 1,
	domain.ActionOddysseyQualifying:    3,
	domain.ActionOddysseyExcellent:     5,
	domain.ActionOddysseyOutstanding:   8,
	domain.ActionOddysseyPerfect:       15,
}

// oddysseyTier maps a slip score to the highest matched reputation
// tier. Scores below 7 earn nothing beyond participation.
func oddysseyTier(score int) (domain.ReputationActionType, bool) {
	switch {
	case score >= 10:
		return domain.ActionOddysseyPerfect, true
	case score >= 9:
		return domain.ActionOddysseyOutstanding, true
	case score >= 8:
		return domain.ActionOddysseyExcellent, true
	case score >= 7:
		return domain.ActionOddysseyQualifying, true
	}
	return "", false
}

// Tracker is the inbound side: an indexer handler that turns chain
// events into reputation actions and slip bookkeeping.
type Tracker struct {
	users  storage.UserStore
	slips  storage.SlipStore
	logger *log.Logger
	now    func() time.Time
}

// TrackerOptions collects the tracker's dependencies.
type TrackerOptions struct {
	Users  storage.UserStore
	Slips  storage.SlipStore
	Logger *log.Logger
}

func NewTracker(opts TrackerOptions) (*Tracker, error) {
	if opts.Users == nil || opts.Slips == nil {
		return nil, fmt.Errorf("reputation: user and slip stores are required")
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	return &Tracker{
		users:  opts.Users,
		slips:  opts.Slips,
		logger: opts.Logger,
		now:    time.Now,
	}, nil
}

// HandleEvent is the indexer hand-off. Events outside the reputation
// vocabulary are ignored.
func (t *Tracker) HandleEvent(ctx context.Context, ev domain.ChainEvent) error {
	switch e := ev.(type) {
	case *domain.PoolCreatedEvent:
		applied, err := t.apply(ctx, e.Creator, domain.ActionPoolCreated, &e.PoolID, nil, e.Meta())
		if err != nil || !applied {
			return err
		}
		return t.users.BumpCounter(ctx, e.Creator, "total_pools")

	case *domain.BetPlacedEvent:
		applied, err := t.apply(ctx, e.Bettor, domain.ActionBetPlaced, &e.PoolID, nil, e.Meta())
		if err != nil || !applied {
			return err
		}
		return t.users.BumpCounter(ctx, e.Bettor, "total_bets")

	case *domain.SlipPlacedEvent:
		if err := t.slips.Upsert(ctx, &domain.OddysseySlip{
			SlipID:   e.SlipID,
			Player:   e.Player,
			CycleID:  e.CycleID,
			PlacedAt: t.eventTime(e.Meta()),
		}); err != nil {
			return fmt.Errorf("upsert slip %d: %w", e.SlipID, err)
		}
		_, err := t.apply(ctx, e.Player, domain.ActionOddysseyParticipation, nil, &e.SlipID, e.Meta())
		return err

	case *domain.SlipEvaluatedEvent:
		return t.handleSlipEvaluated(ctx, e)

	case *domain.PrizeClaimedEvent:
		if err := t.slips.MarkClaimed(ctx, e.SlipID); err != nil {
			return fmt.Errorf("mark slip %d claimed: %w", e.SlipID, err)
		}
		return nil
	}
	return nil
}

func (t *Tracker) handleSlipEvaluated(ctx context.Context, e *domain.SlipEvaluatedEvent) error {
	if err := t.slips.MarkEvaluated(ctx, e.SlipID, e.Score); err != nil {
		return fmt.Errorf("mark slip %d evaluated: %w", e.SlipID, err)
	}
	tier, ok := oddysseyTier(e.Score)
	if !ok {
		return nil
	}
	slip, err := t.slips.GetByID(ctx, e.SlipID)
	if err != nil {
		return fmt.Errorf("load slip %d: %w", e.SlipID, err)
	}
	_, err = t.apply(ctx, slip.Player, tier, nil, &e.SlipID, e.Meta())
	return err
}

// apply records one reputation action. The store dedupes on the event's
// tx hash, so a re-delivered range reports applied=false and the caller
// skips its side effects.
func (t *Tracker) apply(ctx context.Context, addr domain.Address, action domain.ReputationActionType, poolID, slipID *uint64, meta domain.EventMeta) (bool, error) {
	delta, ok := actionDeltas[action]
	if !ok {
		return false, fmt.Errorf("no delta defined for action %s", action)
	}
	occurredAt := t.eventTime(meta)
	applied, err := t.users.ApplyAction(ctx, &domain.ReputationAction{
		Address:     addr,
		Action:      action,
		Delta:       delta,
		PoolID:      poolID,
		SlipID:      slipID,
		BlockNumber: meta.BlockNumber,
		TxHash:      meta.TxHash,
		OccurredAt:  occurredAt,
	})
	if err != nil {
		return false, fmt.Errorf("apply %s for %s: %w", action, addr, err)
	}
	return applied, nil
}

// eventTime prefers the block timestamp, falling back to wall clock
// when the indexer did not fetch headers.
func (t *Tracker) eventTime(meta domain.EventMeta) int64 {
	if meta.Timestamp > 0 {
		return meta.Timestamp
	}
	return t.now().Unix()
}
