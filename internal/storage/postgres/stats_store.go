package postgres

import (
	"context"
	"fmt"
	"sort"
	"time"

	"bitr-backend/internal/domain"
	"bitr-backend/internal/storage"
)

// StatsStore implements storage.StatsSource by aggregating the mirrored
// Postgres tables. Bet volumes are reported in whole tokens (wei / 1e18).
type StatsStore struct {
	pool *Pool
	now  func() time.Time
}

// NewStatsStore creates a new StatsStore.
func NewStatsStore(pool *Pool) *StatsStore {
	return &StatsStore{pool: pool, now: time.Now}
}

// Compile-time interface check.
var _ storage.StatsSource = (*StatsStore)(nil)

// dayBounds returns the [start, end) epoch-second window for day, in UTC.
func dayBounds(day time.Time) (int64, int64) {
	d := day.UTC()
	start := time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, time.UTC)
	return start.Unix(), start.Add(24 * time.Hour).Unix()
}

// DailyStats aggregates platform-wide pool/bet activity for one day.
func (s *StatsStore) DailyStats(ctx context.Context, day time.Time) (*domain.DailyStat, error) {
	start, end := dayBounds(day)

	var poolsCreated uint64
	err := s.pool.QueryRow(ctx, `
		SELECT count(*) FROM analytics.strategic_events
		WHERE event_name = 'PoolCreated' AND recorded_at >= $1 AND recorded_at < $2
	`, start, end).Scan(&poolsCreated)
	if err != nil {
		return nil, fmt.Errorf("count pools created: %w", err)
	}

	var betsPlaced, uniqueBettors uint64
	var betVolume float64
	err = s.pool.QueryRow(ctx, `
		SELECT count(*), COALESCE(sum(amount), 0)::float8 / 1e18, count(DISTINCT bettor)
		FROM oracle.bets
		WHERE created_at >= $1 AND created_at < $2
	`, start, end).Scan(&betsPlaced, &betVolume, &uniqueBettors)
	if err != nil {
		return nil, fmt.Errorf("aggregate bets: %w", err)
	}

	startUTC := time.Unix(start, 0).UTC()
	return &domain.DailyStat{
		Day:           startUTC,
		PoolsCreated:  poolsCreated,
		BetsPlaced:    betsPlaced,
		BetVolume:     betVolume,
		UniqueBettors: uniqueBettors,
		ComputedAt:    s.now().UTC().Truncate(time.Second),
	}, nil
}

// CategoryStats aggregates per-category activity for one day. Pool
// creations come from the strategic event archive (the event args carry
// the category); bet counts and volume come from the bets mirror joined
// to its pool's category.
func (s *StatsStore) CategoryStats(ctx context.Context, day time.Time) ([]*domain.CategoryStat, error) {
	start, end := dayBounds(day)
	startUTC := time.Unix(start, 0).UTC()
	computedAt := s.now().UTC().Truncate(time.Second)

	byCategory := make(map[string]*domain.CategoryStat)
	get := func(category string) *domain.CategoryStat {
		if st, ok := byCategory[category]; ok {
			return st
		}
		st := &domain.CategoryStat{Day: startUTC, Category: category, ComputedAt: computedAt}
		byCategory[category] = st
		return st
	}

	rows, err := s.pool.Query(ctx, `
		SELECT COALESCE(args->>'category', ''), count(*)
		FROM analytics.strategic_events
		WHERE event_name = 'PoolCreated' AND recorded_at >= $1 AND recorded_at < $2
		GROUP BY 1
	`, start, end)
	if err != nil {
		return nil, fmt.Errorf("count pools by category: %w", err)
	}
	for rows.Next() {
		var category string
		var count uint64
		if err := rows.Scan(&category, &count); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan category pool count: %w", err)
		}
		get(category).PoolsCreated = count
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate category pool counts: %w", err)
	}

	rows, err = s.pool.Query(ctx, `
		SELECT p.category, count(*), COALESCE(sum(b.amount), 0)::float8 / 1e18
		FROM oracle.bets b
		JOIN oracle.pools p ON p.pool_id = b.pool_id
		WHERE b.created_at >= $1 AND b.created_at < $2
		GROUP BY 1
	`, start, end)
	if err != nil {
		return nil, fmt.Errorf("aggregate bets by category: %w", err)
	}
	for rows.Next() {
		var category string
		var count uint64
		var volume float64
		if err := rows.Scan(&category, &count, &volume); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan category bet row: %w", err)
		}
		st := get(category)
		st.BetsPlaced = count
		st.BetVolume = volume
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate category bet rows: %w", err)
	}

	stats := make([]*domain.CategoryStat, 0, len(byCategory))
	for _, st := range byCategory {
		stats = append(stats, st)
	}
	sort.Slice(stats, func(i, j int) bool { return stats[i].Category < stats[j].Category })
	return stats, nil
}

// HourlyActivity aggregates indexed-event counts per hour for one day.
func (s *StatsStore) HourlyActivity(ctx context.Context, day time.Time) ([]*domain.HourlyActivity, error) {
	start, end := dayBounds(day)
	computedAt := s.now().UTC().Truncate(time.Second)

	rows, err := s.pool.Query(ctx, `
		SELECT (recorded_at / 3600) * 3600,
		       count(*),
		       count(*) FILTER (WHERE event_name = 'BetPlaced'),
		       count(*) FILTER (WHERE event_name = 'SlipPlaced')
		FROM analytics.strategic_events
		WHERE recorded_at >= $1 AND recorded_at < $2
		GROUP BY 1
		ORDER BY 1
	`, start, end)
	if err != nil {
		return nil, fmt.Errorf("aggregate hourly activity: %w", err)
	}
	defer rows.Close()

	var out []*domain.HourlyActivity
	for rows.Next() {
		var hour int64
		var events, bets, slips uint64
		if err := rows.Scan(&hour, &events, &bets, &slips); err != nil {
			return nil, fmt.Errorf("scan hourly activity row: %w", err)
		}
		out = append(out, &domain.HourlyActivity{
			Hour:          time.Unix(hour, 0).UTC(),
			EventsIndexed: events,
			BetsPlaced:    bets,
			SlipsPlaced:   slips,
			ComputedAt:    computedAt,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate hourly activity rows: %w", err)
	}
	return out, nil
}
