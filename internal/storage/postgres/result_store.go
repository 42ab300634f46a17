package postgres

import (
	"context"
	"fmt"

	"bitr-backend/internal/domain"
	"bitr-backend/internal/storage"
)

// ResultStore implements storage.ResultStore using PostgreSQL.
type ResultStore struct {
	pool *Pool
}

// NewResultStore creates a new ResultStore.
func NewResultStore(pool *Pool) *ResultStore {
	return &ResultStore{pool: pool}
}

// Compile-time interface check.
var _ storage.ResultStore = (*ResultStore)(nil)

// Upsert writes one fixture result keyed by fixture_id.
func (s *ResultStore) Upsert(ctx context.Context, r *domain.FixtureResult) error {
	query := `
		INSERT INTO oracle.fixture_results (
			fixture_id, status, home_score, away_score, ht_home_score, ht_away_score,
			full_score, outcome_1x2, outcome_ou05, outcome_ou15, outcome_ou25,
			outcome_ou35, outcome_ou45, outcome_btts, outcome_ht_1x2, outcome_ht_ou15,
			outcome_dc_1x, outcome_dc_12, outcome_dc_x2, correct_score, exact_total,
			asian_handicap, resolved_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16,
			$17, $18, $19, $20, $21, $22, $23
		)
		ON CONFLICT (fixture_id) DO UPDATE SET
			status = EXCLUDED.status,
			home_score = EXCLUDED.home_score,
			away_score = EXCLUDED.away_score,
			ht_home_score = EXCLUDED.ht_home_score,
			ht_away_score = EXCLUDED.ht_away_score,
			full_score = EXCLUDED.full_score,
			outcome_1x2 = EXCLUDED.outcome_1x2,
			outcome_ou05 = EXCLUDED.outcome_ou05,
			outcome_ou15 = EXCLUDED.outcome_ou15,
			outcome_ou25 = EXCLUDED.outcome_ou25,
			outcome_ou35 = EXCLUDED.outcome_ou35,
			outcome_ou45 = EXCLUDED.outcome_ou45,
			outcome_btts = EXCLUDED.outcome_btts,
			outcome_ht_1x2 = EXCLUDED.outcome_ht_1x2,
			outcome_ht_ou15 = EXCLUDED.outcome_ht_ou15,
			outcome_dc_1x = EXCLUDED.outcome_dc_1x,
			outcome_dc_12 = EXCLUDED.outcome_dc_12,
			outcome_dc_x2 = EXCLUDED.outcome_dc_x2,
			correct_score = EXCLUDED.correct_score,
			exact_total = EXCLUDED.exact_total,
			asian_handicap = EXCLUDED.asian_handicap,
			resolved_at = EXCLUDED.resolved_at
	`

	_, err := s.pool.Exec(ctx, query,
		r.FixtureID, string(r.Status), r.HomeScore, r.AwayScore, r.HTHomeScore, r.HTAwayScore,
		r.FullScore, r.Outcome1X2, r.OutcomeOU05, r.OutcomeOU15, r.OutcomeOU25,
		r.OutcomeOU35, r.OutcomeOU45, r.OutcomeBTTS, r.OutcomeHT1X2, r.OutcomeHTOU15,
		r.OutcomeDC1X, r.OutcomeDC12, r.OutcomeDCX2, r.CorrectScore, r.ExactTotal,
		r.AsianHandicap, r.ResolvedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert result %s: %w", r.FixtureID, err)
	}
	return nil
}

// GetByFixtureID retrieves a result. Returns storage.ErrNotFound if absent.
func (s *ResultStore) GetByFixtureID(ctx context.Context, fixtureID string) (*domain.FixtureResult, error) {
	query := `
		SELECT fixture_id, status, home_score, away_score, ht_home_score, ht_away_score,
		       full_score, outcome_1x2, outcome_ou05, outcome_ou15, outcome_ou25,
		       outcome_ou35, outcome_ou45, outcome_btts, outcome_ht_1x2, outcome_ht_ou15,
		       outcome_dc_1x, outcome_dc_12, outcome_dc_x2, correct_score, exact_total,
		       asian_handicap, resolved_at
		FROM oracle.fixture_results
		WHERE fixture_id = $1
	`

	var (
		r      domain.FixtureResult
		status string
	)
	err := s.pool.QueryRow(ctx, query, fixtureID).Scan(
		&r.FixtureID, &status, &r.HomeScore, &r.AwayScore, &r.HTHomeScore, &r.HTAwayScore,
		&r.FullScore, &r.Outcome1X2, &r.OutcomeOU05, &r.OutcomeOU15, &r.OutcomeOU25,
		&r.OutcomeOU35, &r.OutcomeOU45, &r.OutcomeBTTS, &r.OutcomeHT1X2, &r.OutcomeHTOU15,
		&r.OutcomeDC1X, &r.OutcomeDC12, &r.OutcomeDCX2, &r.CorrectScore, &r.ExactTotal,
		&r.AsianHandicap, &r.ResolvedAt,
	)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get result %s: %w", fixtureID, err)
	}
	r.Status = domain.FixtureStatus(status)
	return &r, nil
}
