package oracle

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"bitr-backend/internal/domain"
	"bitr-backend/internal/providers/sportmonks"
	"bitr-backend/internal/storage"
)

const categoryFootball = "football"

// FixtureSource supplies live fixture details, normally the SportMonks
// client.
type FixtureSource interface {
	FixtureByID(ctx context.Context, fixtureID string) (*sportmonks.FixtureDetail, error)
}

// FootballResolver settles guided football pools from final match
// scores. Each run enumerates due pools, computes the 90-minute result
// and hands the outcome to the submitter. Items fail independently;
// one broken fixture never stalls the rest of the batch.
type FootballResolver struct {
	pools     storage.PoolStore
	results   storage.ResultStore
	fixtures  FixtureSource
	submitter *Submitter
	infer     bool
	logger    *log.Logger
	now       func() time.Time
}

// FootballOptions collects the football resolver's dependencies.
type FootballOptions struct {
	Pools     storage.PoolStore
	Results   storage.ResultStore
	Fixtures  FixtureSource
	Submitter *Submitter
	// InferMissingHalf enables estimating one missing half score on
	// finished fixtures. Off by default: guessing a score is worse
	// than waiting a tick for the provider to backfill it.
	InferMissingHalf bool
	Logger           *log.Logger
}

func NewFootballResolver(opts FootballOptions) (*FootballResolver, error) {
	if opts.Pools == nil || opts.Results == nil || opts.Fixtures == nil || opts.Submitter == nil {
		return nil, fmt.Errorf("oracle: pools, results, fixtures and submitter are required")
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	return &FootballResolver{
		pools:     opts.Pools,
		results:   opts.Results,
		fixtures:  opts.Fixtures,
		submitter: opts.Submitter,
		infer:     opts.InferMissingHalf,
		logger:    opts.Logger,
		now:       time.Now,
	}, nil
}

// Resolve runs one resolution pass over all due football pools.
func (r *FootballResolver) Resolve(ctx context.Context) error {
	due, err := r.pools.GuidedDue(ctx, categoryFootball, r.now().Unix())
	if err != nil {
		return fmt.Errorf("list due football pools: %w", err)
	}
	for _, pool := range due {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := r.resolvePool(ctx, pool.PoolID, pool.MarketID); err != nil {
			r.logger.Printf("oracle: football pool %d (%s): %v", pool.PoolID, pool.MarketID, err)
			continue
		}
	}
	return nil
}

func (r *FootballResolver) resolvePool(ctx context.Context, poolID uint64, marketID string) error {
	result, err := r.ensureResult(ctx, marketID)
	if err != nil {
		return err
	}
	if result == nil {
		return nil // not finished yet, try next tick
	}

	pool, err := r.pools.GetByID(ctx, poolID)
	if err != nil {
		return fmt.Errorf("load pool: %w", err)
	}
	outcome, err := OutcomeForPool(pool, result)
	if err != nil {
		return err
	}
	return r.submitter.Submit(ctx, marketID, outcome, categoryFootball)
}

// ensureResult returns the stored result for the fixture, computing and
// persisting it from live provider data on first sight. Returns nil
// without error when the fixture has not finished.
func (r *FootballResolver) ensureResult(ctx context.Context, fixtureID string) (*domain.FixtureResult, error) {
	if stored, err := r.results.GetByFixtureID(ctx, fixtureID); err == nil {
		return stored, nil
	} else if !errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("load result: %w", err)
	}

	detail, err := r.fixtures.FixtureByID(ctx, fixtureID)
	if err != nil {
		return nil, fmt.Errorf("fetch fixture: %w", err)
	}
	if !detail.Fixture.Status.Finished() {
		return nil, nil
	}

	computed, err := BuildResult(fixtureID, detail.Fixture.Status, detail.Scores, r.infer, r.now().Unix(), r.logger)
	if err != nil {
		return nil, err
	}
	if err := r.results.Upsert(ctx, computed); err != nil {
		return nil, fmt.Errorf("store result: %w", err)
	}
	return computed, nil
}
