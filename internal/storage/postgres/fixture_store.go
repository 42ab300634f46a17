package postgres

import (
	"context"
	"fmt"

	"bitr-backend/internal/domain"
	"bitr-backend/internal/storage"
)

// FixtureStore implements storage.FixtureStore using PostgreSQL.
type FixtureStore struct {
	pool *Pool
}

// NewFixtureStore creates a new FixtureStore.
func NewFixtureStore(pool *Pool) *FixtureStore {
	return &FixtureStore{pool: pool}
}

// Compile-time interface check.
var _ storage.FixtureStore = (*FixtureStore)(nil)

// UpsertFixtures writes fixtures keyed by fixture_id in one transaction.
func (s *FixtureStore) UpsertFixtures(ctx context.Context, fixtures []*domain.Fixture) error {
	if len(fixtures) == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO oracle.fixtures (
			fixture_id, home_team_id, away_team_id, home_team, away_team,
			league, league_id, country, kickoff_time, status,
			venue, referee, home_image_url, away_image_url, league_image, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		ON CONFLICT (fixture_id) DO UPDATE SET
			home_team = EXCLUDED.home_team,
			away_team = EXCLUDED.away_team,
			league = EXCLUDED.league,
			country = EXCLUDED.country,
			kickoff_time = EXCLUDED.kickoff_time,
			status = EXCLUDED.status,
			venue = EXCLUDED.venue,
			referee = EXCLUDED.referee,
			home_image_url = EXCLUDED.home_image_url,
			away_image_url = EXCLUDED.away_image_url,
			league_image = EXCLUDED.league_image,
			updated_at = EXCLUDED.updated_at
	`

	for _, f := range fixtures {
		_, err := tx.Exec(ctx, query,
			f.FixtureID, f.HomeTeamID, f.AwayTeamID, f.HomeTeam, f.AwayTeam,
			f.League, f.LeagueID, f.Country, f.KickoffTime, string(f.Status),
			f.Venue, f.Referee, f.HomeImageURL, f.AwayImageURL, f.LeagueImage, f.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("upsert fixture %s: %w", f.FixtureID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// GetByID retrieves a fixture. Returns storage.ErrNotFound if absent.
func (s *FixtureStore) GetByID(ctx context.Context, fixtureID string) (*domain.Fixture, error) {
	query := `
		SELECT fixture_id, home_team_id, away_team_id, home_team, away_team,
		       league, league_id, country, kickoff_time, status,
		       venue, referee, home_image_url, away_image_url, league_image, updated_at
		FROM oracle.fixtures
		WHERE fixture_id = $1
	`

	var (
		f      domain.Fixture
		status string
	)
	err := s.pool.QueryRow(ctx, query, fixtureID).Scan(
		&f.FixtureID, &f.HomeTeamID, &f.AwayTeamID, &f.HomeTeam, &f.AwayTeam,
		&f.League, &f.LeagueID, &f.Country, &f.KickoffTime, &status,
		&f.Venue, &f.Referee, &f.HomeImageURL, &f.AwayImageURL, &f.LeagueImage, &f.UpdatedAt,
	)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get fixture %s: %w", fixtureID, err)
	}
	f.Status = domain.FixtureStatus(status)
	return &f, nil
}

// UpsertOdds writes odds rows in one transaction.
func (s *FixtureStore) UpsertOdds(ctx context.Context, odds []*domain.OddsRow) error {
	if len(odds) == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO oracle.fixture_odds (
			fixture_id, market_id, bookmaker_id, label, total, price, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (fixture_id, market_id, bookmaker_id, label, total) DO UPDATE SET
			price = EXCLUDED.price,
			updated_at = EXCLUDED.updated_at
	`

	for _, o := range odds {
		_, err := tx.Exec(ctx, query,
			o.FixtureID, o.MarketID, o.BookmakerID, o.Label, o.Total, o.Price, o.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("upsert odds %s/%d/%s: %w", o.FixtureID, o.MarketID, o.Label, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}
