// Package analytics rebuilds the ClickHouse rollup tables from the
// mirrored Postgres data. Rollups are derived, never authoritative:
// every run recomputes its window from scratch, so a missed run or a
// late reorg rewind heals on the next pass.
package analytics

import (
	"context"
	"fmt"
	"log"
	"time"

	"bitr-backend/internal/domain"
	"bitr-backend/internal/storage"
)

// DefaultWindowDays is how many days each run recomputes, counting
// backwards from today. Two days covers events that land around
// midnight and anything a reorg rewind touched recently.
const DefaultWindowDays = 2

// Rollup recomputes daily, category and hourly rollups.
type Rollup struct {
	source storage.StatsSource
	sink   storage.AnalyticsStore
	window int
	logger *log.Logger
	now    func() time.Time
}

// RollupOptions collects the rollup job's dependencies.
type RollupOptions struct {
	Source     storage.StatsSource
	Sink       storage.AnalyticsStore
	WindowDays int
	Logger     *log.Logger
}

func NewRollup(opts RollupOptions) (*Rollup, error) {
	if opts.Source == nil || opts.Sink == nil {
		return nil, fmt.Errorf("analytics: source and sink are required")
	}
	if opts.WindowDays <= 0 {
		opts.WindowDays = DefaultWindowDays
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	return &Rollup{
		source: opts.Source,
		sink:   opts.Sink,
		window: opts.WindowDays,
		logger: opts.Logger,
		now:    time.Now,
	}, nil
}

// Run recomputes the window ending today. Per-day errors abort the run:
// a failing source or sink affects every day equally, so there is no
// point grinding through the rest of the window.
func (r *Rollup) Run(ctx context.Context) error {
	now := r.now().UTC()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	for i := r.window - 1; i >= 0; i-- {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		day := today.AddDate(0, 0, -i)
		if err := r.rebuildDay(ctx, day); err != nil {
			return fmt.Errorf("rebuild %s: %w", day.Format("2006-01-02"), err)
		}
	}
	return nil
}

func (r *Rollup) rebuildDay(ctx context.Context, day time.Time) error {
	daily, err := r.source.DailyStats(ctx, day)
	if err != nil {
		return fmt.Errorf("daily stats: %w", err)
	}
	if err := r.sink.InsertDailyStats(ctx, []*domain.DailyStat{daily}); err != nil {
		return fmt.Errorf("write daily stats: %w", err)
	}

	categories, err := r.source.CategoryStats(ctx, day)
	if err != nil {
		return fmt.Errorf("category stats: %w", err)
	}
	if err := r.sink.InsertCategoryStats(ctx, categories); err != nil {
		return fmt.Errorf("write category stats: %w", err)
	}

	hours, err := r.source.HourlyActivity(ctx, day)
	if err != nil {
		return fmt.Errorf("hourly activity: %w", err)
	}
	if err := r.sink.InsertHourlyActivity(ctx, hours); err != nil {
		return fmt.Errorf("write hourly activity: %w", err)
	}

	r.logger.Printf("analytics: rebuilt %s (%d categories, %d active hours)",
		day.Format("2006-01-02"), len(categories), len(hours))
	return nil
}
