package oracle

import (
	"context"
	"fmt"
	"log"
	"time"

	"bitr-backend/internal/domain"
	"bitr-backend/internal/providers/sportmonks"
	"bitr-backend/internal/storage"
)

// DefaultRefreshWindowDays is how many days ahead the fixture refresher
// pulls, today included.
const DefaultRefreshWindowDays = 7

// FixtureCalendar supplies day listings, normally the SportMonks client.
type FixtureCalendar interface {
	FixturesByDate(ctx context.Context, day time.Time) ([]sportmonks.FixtureDetail, error)
}

// FixtureRefresher keeps oracle.fixtures and oracle.fixture_odds warm so
// pool creation and resolution never block on provider calls.
type FixtureRefresher struct {
	source   FixtureCalendar
	fixtures storage.FixtureStore
	window   int
	logger   *log.Logger
	now      func() time.Time
}

// RefresherOptions collects the refresher's dependencies.
type RefresherOptions struct {
	Source     FixtureCalendar
	Fixtures   storage.FixtureStore
	WindowDays int
	Logger     *log.Logger
}

func NewFixtureRefresher(opts RefresherOptions) (*FixtureRefresher, error) {
	if opts.Source == nil || opts.Fixtures == nil {
		return nil, fmt.Errorf("oracle: fixture source and store are required")
	}
	if opts.WindowDays <= 0 {
		opts.WindowDays = DefaultRefreshWindowDays
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	return &FixtureRefresher{
		source:   opts.Source,
		fixtures: opts.Fixtures,
		window:   opts.WindowDays,
		logger:   opts.Logger,
		now:      time.Now,
	}, nil
}

// Run refreshes the fixture window. Per-day provider failures are
// logged and skipped so one bad day does not starve the rest.
func (r *FixtureRefresher) Run(ctx context.Context) error {
	today := r.now().UTC()
	var refreshed int
	for i := 0; i < r.window; i++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		day := today.AddDate(0, 0, i)
		n, err := r.refreshDay(ctx, day)
		if err != nil {
			r.logger.Printf("oracle: refresh fixtures for %s: %v", day.Format("2006-01-02"), err)
			continue
		}
		refreshed += n
	}
	r.logger.Printf("oracle: refreshed %d fixtures over %d days", refreshed, r.window)
	return nil
}

func (r *FixtureRefresher) refreshDay(ctx context.Context, day time.Time) (int, error) {
	details, err := r.source.FixturesByDate(ctx, day)
	if err != nil {
		return 0, err
	}
	if len(details) == 0 {
		return 0, nil
	}

	fixtures := make([]*domain.Fixture, 0, len(details))
	var odds []*domain.OddsRow
	for i := range details {
		fx := details[i].Fixture
		fixtures = append(fixtures, &fx)
		for j := range details[i].Odds {
			odds = append(odds, &details[i].Odds[j])
		}
	}
	if err := r.fixtures.UpsertFixtures(ctx, fixtures); err != nil {
		return 0, fmt.Errorf("upsert fixtures: %w", err)
	}
	if len(odds) > 0 {
		if err := r.fixtures.UpsertOdds(ctx, odds); err != nil {
			return 0, fmt.Errorf("upsert odds: %w", err)
		}
	}
	return len(fixtures), nil
}
