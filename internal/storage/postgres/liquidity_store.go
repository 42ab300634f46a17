package postgres

import (
	"context"
	"fmt"

	"bitr-backend/internal/domain"
	"bitr-backend/internal/storage"
)

// LiquidityStore implements storage.LiquidityStore using PostgreSQL.
type LiquidityStore struct {
	pool *Pool
}

// NewLiquidityStore creates a new LiquidityStore.
func NewLiquidityStore(pool *Pool) *LiquidityStore {
	return &LiquidityStore{pool: pool}
}

// Compile-time interface check.
var _ storage.LiquidityStore = (*LiquidityStore)(nil)

// Upsert writes a provision keyed by (pool_id, provider, tx_hash).
func (s *LiquidityStore) Upsert(ctx context.Context, lp *domain.LiquidityProvision) error {
	query := `
		INSERT INTO oracle.pool_liquidity_providers (
			pool_id, provider, tx_hash, amount, block_number, created_at
		) VALUES ($1, $2, $3, $4::numeric, $5, $6)
		ON CONFLICT (pool_id, provider, tx_hash) DO NOTHING
	`

	_, err := s.pool.Exec(ctx, query,
		lp.PoolID, string(lp.Provider), lp.TxHash, numericArg(lp.Amount),
		lp.BlockNumber, lp.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert liquidity provision %s: %w", lp.TxHash, err)
	}
	return nil
}

// GetByPool retrieves all provisions for a pool.
func (s *LiquidityStore) GetByPool(ctx context.Context, poolID uint64) ([]*domain.LiquidityProvision, error) {
	query := `
		SELECT pool_id, provider, tx_hash, amount::text, block_number, created_at
		FROM oracle.pool_liquidity_providers
		WHERE pool_id = $1
		ORDER BY block_number ASC, tx_hash ASC
	`

	rows, err := s.pool.Query(ctx, query, poolID)
	if err != nil {
		return nil, fmt.Errorf("get provisions for pool %d: %w", poolID, err)
	}
	defer rows.Close()

	var provisions []*domain.LiquidityProvision
	for rows.Next() {
		var (
			lp       domain.LiquidityProvision
			id       int64
			provider string
			amount   string
		)
		if err := rows.Scan(&id, &provider, &lp.TxHash, &amount, &lp.BlockNumber, &lp.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan provision: %w", err)
		}
		lp.PoolID = uint64(id)
		lp.Provider = domain.Address(provider)
		if lp.Amount, err = parseNumeric(amount); err != nil {
			return nil, fmt.Errorf("provision %s amount: %w", lp.TxHash, err)
		}
		provisions = append(provisions, &lp)
	}
	return provisions, rows.Err()
}
