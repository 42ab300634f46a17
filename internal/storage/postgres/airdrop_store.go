package postgres

import (
	"context"
	"fmt"
	"math/big"

	"bitr-backend/internal/domain"
	"bitr-backend/internal/storage"
)

// AirdropStore implements storage.AirdropStore using PostgreSQL.
type AirdropStore struct {
	pool *Pool
}

// NewAirdropStore creates a new AirdropStore.
func NewAirdropStore(pool *Pool) *AirdropStore {
	return &AirdropStore{pool: pool}
}

// Compile-time interface check.
var _ storage.AirdropStore = (*AirdropStore)(nil)

// InsertFaucetClaim appends one faucet claim, deduped by tx_hash.
func (s *AirdropStore) InsertFaucetClaim(ctx context.Context, e *domain.FaucetClaimedEvent) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO airdrop.faucet_claims (tx_hash, address, amount, claimed_at)
		VALUES ($1, $2, $3::numeric, $4)
		ON CONFLICT (tx_hash) DO NOTHING
	`, e.TxHash, string(e.User), numericArg(e.Amount), e.ClaimedAt)
	if err != nil {
		return fmt.Errorf("insert faucet claim %s: %w", e.TxHash, err)
	}
	return nil
}

// InsertTransfer appends one BITR transfer, deduped by (tx_hash, log_index).
func (s *AirdropStore) InsertTransfer(ctx context.Context, e *domain.TransferEvent) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO airdrop.bitr_activities (tx_hash, log_index, from_address, to_address, amount, block_number)
		VALUES ($1, $2, $3, $4, $5::numeric, $6)
		ON CONFLICT (tx_hash, log_index) DO NOTHING
	`, e.TxHash, int(e.LogIndex), string(e.From), string(e.To), numericArg(e.Value), e.BlockNumber)
	if err != nil {
		return fmt.Errorf("insert transfer %s/%d: %w", e.TxHash, e.LogIndex, err)
	}
	return nil
}

// InsertStakingActivity appends one staking action, deduped by (tx_hash, log_index).
func (s *AirdropStore) InsertStakingActivity(ctx context.Context, kind string, user domain.Address, amount *big.Int, meta domain.EventMeta) error {
	switch kind {
	case "staked", "unstaked", "rewards_claimed":
	default:
		return fmt.Errorf("%w: unknown staking activity %q", storage.ErrInvalidInput, kind)
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO airdrop.staking_activities (tx_hash, log_index, kind, address, amount, block_number)
		VALUES ($1, $2, $3, $4, $5::numeric, $6)
		ON CONFLICT (tx_hash, log_index) DO NOTHING
	`, meta.TxHash, int(meta.LogIndex), kind, string(user), numericArg(amount), meta.BlockNumber)
	if err != nil {
		return fmt.Errorf("insert staking activity %s/%d: %w", meta.TxHash, meta.LogIndex, err)
	}
	return nil
}
