package postgres

import (
	"context"
	"fmt"

	"bitr-backend/internal/domain"
	"bitr-backend/internal/storage"
)

// SlipStore implements storage.SlipStore using PostgreSQL.
type SlipStore struct {
	pool *Pool
}

// NewSlipStore creates a new SlipStore.
func NewSlipStore(pool *Pool) *SlipStore {
	return &SlipStore{pool: pool}
}

// Compile-time interface check.
var _ storage.SlipStore = (*SlipStore)(nil)

// Upsert writes a slip keyed by slip_id. Evaluation and claim flags are
// never cleared by a replayed SlipPlaced event.
func (s *SlipStore) Upsert(ctx context.Context, slip *domain.OddysseySlip) error {
	predictions := slip.PredictionsJSON
	if len(predictions) == 0 {
		predictions = []byte("[]")
	}

	query := `
		INSERT INTO oracle.oddyssey_slips (
			slip_id, player, cycle_id, placed_at, predictions,
			is_evaluated, correct_count, final_score, leaderboard_rank, prize_claimed
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (slip_id) DO UPDATE SET
			player = EXCLUDED.player,
			cycle_id = EXCLUDED.cycle_id,
			placed_at = EXCLUDED.placed_at
	`

	_, err := s.pool.Exec(ctx, query,
		slip.SlipID, string(slip.Player), slip.CycleID, slip.PlacedAt, predictions,
		slip.IsEvaluated, slip.CorrectCount, slip.FinalScore, slip.LeaderboardRank, slip.PrizeClaimed,
	)
	if err != nil {
		return fmt.Errorf("upsert slip %d: %w", slip.SlipID, err)
	}
	return nil
}

// GetByID retrieves a slip. Returns storage.ErrNotFound if absent.
func (s *SlipStore) GetByID(ctx context.Context, slipID uint64) (*domain.OddysseySlip, error) {
	query := `
		SELECT slip_id, player, cycle_id, placed_at, predictions,
		       is_evaluated, correct_count, final_score, leaderboard_rank, prize_claimed
		FROM oracle.oddyssey_slips
		WHERE slip_id = $1
	`

	var (
		slip   domain.OddysseySlip
		player string
	)
	err := s.pool.QueryRow(ctx, query, slipID).Scan(
		&slip.SlipID, &player, &slip.CycleID, &slip.PlacedAt, &slip.PredictionsJSON,
		&slip.IsEvaluated, &slip.CorrectCount, &slip.FinalScore, &slip.LeaderboardRank, &slip.PrizeClaimed,
	)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get slip %d: %w", slipID, err)
	}
	slip.Player = domain.Address(player)
	return &slip, nil
}

// MarkEvaluated records a slip evaluation. Idempotent.
func (s *SlipStore) MarkEvaluated(ctx context.Context, slipID uint64, correctCount int) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE oracle.oddyssey_slips
		SET is_evaluated = TRUE, correct_count = $2
		WHERE slip_id = $1
	`, slipID, correctCount)
	if err != nil {
		return fmt.Errorf("mark slip %d evaluated: %w", slipID, err)
	}
	return nil
}

// MarkClaimed records a prize claim. Idempotent.
func (s *SlipStore) MarkClaimed(ctx context.Context, slipID uint64) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE oracle.oddyssey_slips SET prize_claimed = TRUE WHERE slip_id = $1
	`, slipID)
	if err != nil {
		return fmt.Errorf("mark slip %d claimed: %w", slipID, err)
	}
	return nil
}
