package reputation

import (
	"context"
	"fmt"
	"log"
	"time"

	"bitr-backend/internal/domain"
	"bitr-backend/internal/storage"
)

// Decay tuning.
const (
	staleSyncAfter     = 7 * 24 * time.Hour
	staleActivityAfter = 30 * 24 * time.Hour
	syncDecayRate      = 0.05
	activityDecayRate  = 0.10
	maxDecayAmount     = 50 // per-cycle drop cap for the sync-staleness step
)

// Decayer erodes the reputation of stale accounts. Runs daily.
type Decayer struct {
	users  storage.UserStore
	logger *log.Logger
	now    func() time.Time
}

// DecayerOptions collects the decay job's dependencies.
type DecayerOptions struct {
	Users  storage.UserStore
	Logger *log.Logger
}

func NewDecayer(opts DecayerOptions) (*Decayer, error) {
	if opts.Users == nil {
		return nil, fmt.Errorf("reputation: user store is required")
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	return &Decayer{users: opts.Users, logger: opts.Logger, now: time.Now}, nil
}

// Run applies one decay cycle. Sync staleness costs 5% (capped at 50),
// full inactivity an additional 10% (cap doubled); both floor at
// MinReputation. Per-user errors are logged and skipped.
func (d *Decayer) Run(ctx context.Context) error {
	now := d.now()
	syncCutoff := now.Add(-staleSyncAfter).Unix()
	activityCutoff := now.Add(-staleActivityAfter).Unix()

	candidates, err := d.users.DecayCandidates(ctx, syncCutoff, activityCutoff)
	if err != nil {
		return fmt.Errorf("list decay candidates: %w", err)
	}

	decayed := 0
	for _, u := range candidates {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		delta := decayDelta(u, syncCutoff, activityCutoff)
		if delta == 0 {
			continue
		}
		if err := d.users.RecordDecay(ctx, u.Address, delta, now.Unix()); err != nil {
			d.logger.Printf("reputation: decay %s: %v", u.Address, err)
			continue
		}
		decayed++
	}
	if decayed > 0 {
		d.logger.Printf("reputation: decayed %d stale users", decayed)
	}
	return nil
}

// decayDelta computes one cycle's total drop for a user, negative or
// zero. Each step's drop is bounded by its cap and by the floor, and
// the inactivity step compounds on the score the first step leaves.
// A user who was never synced (LastSyncedAt == 0) has no sync to go
// stale; only the inactivity step can touch them.
func decayDelta(u *domain.User, syncCutoff, activityCutoff int64) int {
	rep := u.Reputation

	if u.LastSyncedAt > 0 && u.LastSyncedAt < syncCutoff {
		drop := minInt(int(float64(rep)*syncDecayRate), maxDecayAmount)
		rep = maxInt(rep-drop, domain.MinReputation)
	}
	if u.LastActive < activityCutoff {
		drop := minInt(int(float64(rep)*activityDecayRate), 2*maxDecayAmount)
		rep = maxInt(rep-drop, domain.MinReputation)
	}
	return rep - u.Reputation
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
