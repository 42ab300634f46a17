package clickhouse

import (
	"context"
	"fmt"
	"time"

	"bitr-backend/internal/domain"
	"bitr-backend/internal/storage"
)

// AnalyticsStore implements storage.AnalyticsStore using ClickHouse.
// All three tables are ReplacingMergeTree keyed on their rollup
// dimensions, so re-inserting a recomputed day replaces the old rows.
type AnalyticsStore struct {
	conn *Conn
}

// NewAnalyticsStore creates a new AnalyticsStore.
func NewAnalyticsStore(conn *Conn) *AnalyticsStore {
	return &AnalyticsStore{conn: conn}
}

// Compile-time interface check.
var _ storage.AnalyticsStore = (*AnalyticsStore)(nil)

// InsertDailyStats writes daily rollup rows.
func (s *AnalyticsStore) InsertDailyStats(ctx context.Context, stats []*domain.DailyStat) error {
	if len(stats) == 0 {
		return nil
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO daily_stats (
			day, pools_created, bets_placed, bet_volume, unique_bettors, computed_at
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, st := range stats {
		err = batch.Append(
			st.Day, st.PoolsCreated, st.BetsPlaced,
			st.BetVolume, st.UniqueBettors, st.ComputedAt,
		)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}

	return nil
}

// InsertCategoryStats writes per-category rollup rows.
func (s *AnalyticsStore) InsertCategoryStats(ctx context.Context, stats []*domain.CategoryStat) error {
	if len(stats) == 0 {
		return nil
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO category_stats (
			day, category, pools_created, bets_placed, bet_volume, computed_at
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, st := range stats {
		err = batch.Append(
			st.Day, st.Category, st.PoolsCreated,
			st.BetsPlaced, st.BetVolume, st.ComputedAt,
		)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}

	return nil
}

// InsertHourlyActivity writes hourly activity rows.
func (s *AnalyticsStore) InsertHourlyActivity(ctx context.Context, rows []*domain.HourlyActivity) error {
	if len(rows) == 0 {
		return nil
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO hourly_activity (
			hour, events_indexed, bets_placed, slips_placed, computed_at
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, r := range rows {
		err = batch.Append(
			r.Hour, r.EventsIndexed, r.BetsPlaced, r.SlipsPlaced, r.ComputedAt,
		)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}

	return nil
}

// DailyStats reads back daily rollups in [from, to], newest version per
// day, ordered by day ascending. Used by the status endpoint and tests.
func (s *AnalyticsStore) DailyStats(ctx context.Context, from, to time.Time) ([]*domain.DailyStat, error) {
	rows, err := s.conn.Query(ctx, `
		SELECT day, pools_created, bets_placed, bet_volume, unique_bettors, computed_at
		FROM daily_stats FINAL
		WHERE day >= ? AND day <= ?
		ORDER BY day ASC
	`, from, to)
	if err != nil {
		return nil, fmt.Errorf("query daily stats: %w", err)
	}
	defer rows.Close()

	var out []*domain.DailyStat
	for rows.Next() {
		var st domain.DailyStat
		err := rows.Scan(
			&st.Day, &st.PoolsCreated, &st.BetsPlaced,
			&st.BetVolume, &st.UniqueBettors, &st.ComputedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan daily stat row: %w", err)
		}
		out = append(out, &st)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate daily stat rows: %w", err)
	}

	return out, nil
}

// CategoryStats reads back category rollups for one day, newest version
// per category, ordered by category.
func (s *AnalyticsStore) CategoryStats(ctx context.Context, day time.Time) ([]*domain.CategoryStat, error) {
	rows, err := s.conn.Query(ctx, `
		SELECT day, category, pools_created, bets_placed, bet_volume, computed_at
		FROM category_stats FINAL
		WHERE day = ?
		ORDER BY category ASC
	`, day)
	if err != nil {
		return nil, fmt.Errorf("query category stats: %w", err)
	}
	defer rows.Close()

	var out []*domain.CategoryStat
	for rows.Next() {
		var st domain.CategoryStat
		err := rows.Scan(
			&st.Day, &st.Category, &st.PoolsCreated,
			&st.BetsPlaced, &st.BetVolume, &st.ComputedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan category stat row: %w", err)
		}
		out = append(out, &st)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate category stat rows: %w", err)
	}

	return out, nil
}

// HourlyActivity reads back hourly rows in [from, to], newest version
// per hour, ordered by hour ascending.
func (s *AnalyticsStore) HourlyActivity(ctx context.Context, from, to time.Time) ([]*domain.HourlyActivity, error) {
	rows, err := s.conn.Query(ctx, `
		SELECT hour, events_indexed, bets_placed, slips_placed, computed_at
		FROM hourly_activity FINAL
		WHERE hour >= ? AND hour <= ?
		ORDER BY hour ASC
	`, from, to)
	if err != nil {
		return nil, fmt.Errorf("query hourly activity: %w", err)
	}
	defer rows.Close()

	var out []*domain.HourlyActivity
	for rows.Next() {
		var r domain.HourlyActivity
		err := rows.Scan(
			&r.Hour, &r.EventsIndexed, &r.BetsPlaced, &r.SlipsPlaced, &r.ComputedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan hourly activity row: %w", err)
		}
		out = append(out, &r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate hourly activity rows: %w", err)
	}

	return out, nil
}
