package postgres

import (
	"context"
	"fmt"
	"math/big"

	"bitr-backend/internal/domain"
	"bitr-backend/internal/storage"
)

// BetStore implements storage.BetStore using PostgreSQL.
type BetStore struct {
	pool *Pool
}

// NewBetStore creates a new BetStore.
func NewBetStore(pool *Pool) *BetStore {
	return &BetStore{pool: pool}
}

// Compile-time interface check.
var _ storage.BetStore = (*BetStore)(nil)

// Upsert writes a bet. Replaying the same (pool_id, bettor, tx_hash) is a
// no-op so the indexer can re-deliver ranges freely.
func (s *BetStore) Upsert(ctx context.Context, b *domain.Bet) error {
	query := `
		INSERT INTO oracle.bets (
			pool_id, bettor, tx_hash, amount, is_for_outcome, block_number, created_at
		) VALUES ($1, $2, $3, $4::numeric, $5, $6, $7)
		ON CONFLICT (pool_id, bettor, tx_hash) DO NOTHING
	`

	_, err := s.pool.Exec(ctx, query,
		b.PoolID, string(b.Bettor), b.TxHash, numericArg(b.Amount),
		b.IsForOutcome, b.BlockNumber, b.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert bet %s: %w", b.TxHash, err)
	}
	return nil
}

// GetByPool retrieves all bets for a pool ordered by block then tx hash.
func (s *BetStore) GetByPool(ctx context.Context, poolID uint64) ([]*domain.Bet, error) {
	query := `
		SELECT pool_id, bettor, tx_hash, amount::text, is_for_outcome, block_number, created_at
		FROM oracle.bets
		WHERE pool_id = $1
		ORDER BY block_number ASC, tx_hash ASC
	`

	rows, err := s.pool.Query(ctx, query, poolID)
	if err != nil {
		return nil, fmt.Errorf("get bets for pool %d: %w", poolID, err)
	}
	defer rows.Close()

	var bets []*domain.Bet
	for rows.Next() {
		var (
			b      domain.Bet
			id     int64
			bettor string
			amount string
		)
		if err := rows.Scan(&id, &bettor, &b.TxHash, &amount, &b.IsForOutcome, &b.BlockNumber, &b.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan bet: %w", err)
		}
		b.PoolID = uint64(id)
		b.Bettor = domain.Address(bettor)
		if b.Amount, err = parseNumeric(amount); err != nil {
			return nil, fmt.Errorf("bet %s amount: %w", b.TxHash, err)
		}
		bets = append(bets, &b)
	}
	return bets, rows.Err()
}

// SumByPool returns the total bet amount for a pool.
func (s *BetStore) SumByPool(ctx context.Context, poolID uint64) (*big.Int, error) {
	var sum string
	err := s.pool.QueryRow(ctx,
		`SELECT COALESCE(SUM(amount), 0)::text FROM oracle.bets WHERE pool_id = $1`,
		poolID,
	).Scan(&sum)
	if err != nil {
		return nil, fmt.Errorf("sum bets for pool %d: %w", poolID, err)
	}
	return parseNumeric(sum)
}
