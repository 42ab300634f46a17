package postgres

import (
	"context"
	"fmt"

	"bitr-backend/internal/domain"
	"bitr-backend/internal/storage"
)

// SubmissionStore implements storage.SubmissionStore using PostgreSQL.
type SubmissionStore struct {
	pool *Pool
}

// NewSubmissionStore creates a new SubmissionStore.
func NewSubmissionStore(pool *Pool) *SubmissionStore {
	return &SubmissionStore{pool: pool}
}

// Compile-time interface check.
var _ storage.SubmissionStore = (*SubmissionStore)(nil)

// Upsert records an outcome submission keyed by market_id. A re-submission
// for the same market updates the outcome and timestamp.
func (s *SubmissionStore) Upsert(ctx context.Context, sub *domain.OracleSubmission) error {
	query := `
		INSERT INTO public.oracle_submissions (market_id, outcome, oracle_type, tx_hash, submitted_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (market_id) DO UPDATE SET
			outcome = EXCLUDED.outcome,
			oracle_type = EXCLUDED.oracle_type,
			tx_hash = EXCLUDED.tx_hash,
			submitted_at = EXCLUDED.submitted_at
	`

	_, err := s.pool.Exec(ctx, query,
		sub.MarketID, sub.Outcome, string(sub.OracleType), sub.TxHash, sub.SubmittedAt)
	if err != nil {
		return fmt.Errorf("upsert submission %s: %w", sub.MarketID, err)
	}
	return nil
}

// Exists reports whether a submission is recorded for market_id.
func (s *SubmissionStore) Exists(ctx context.Context, marketID string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM public.oracle_submissions WHERE market_id = $1)`,
		marketID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("submission exists %s: %w", marketID, err)
	}
	return exists, nil
}
