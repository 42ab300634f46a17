package postgres

import (
	"context"
	"fmt"

	"bitr-backend/internal/domain"
	"bitr-backend/internal/storage"
)

// UserStore implements storage.UserStore using PostgreSQL.
type UserStore struct {
	pool *Pool
}

// NewUserStore creates a new UserStore.
func NewUserStore(pool *Pool) *UserStore {
	return &UserStore{pool: pool}
}

// Compile-time interface check.
var _ storage.UserStore = (*UserStore)(nil)

const userColumns = `address, reputation, total_bets, total_pools, pools_won, last_active, last_synced_at, created_at`

// GetByAddress retrieves a user. Returns storage.ErrNotFound if absent.
func (s *UserStore) GetByAddress(ctx context.Context, addr domain.Address) (*domain.User, error) {
	var (
		u       domain.User
		address string
	)
	err := s.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM core.users WHERE address = $1`, string(addr),
	).Scan(&address, &u.Reputation, &u.TotalBets, &u.TotalPools, &u.PoolsWon,
		&u.LastActive, &u.LastSyncedAt, &u.CreatedAt)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get user %s: %w", addr, err)
	}
	u.Address = domain.Address(address)
	return &u, nil
}

// ApplyAction appends one ledger row and moves the user's reputation by
// Delta clamped to [MinReputation, MaxReputation], creating the user row
// on first contact. The ledger insert and the score move share one
// transaction, and the clamp happens in SQL so concurrent increments
// commute. Actions carrying a tx_hash are keyed on (tx_hash, action,
// address): a re-delivered chain event inserts nothing, moves nothing,
// and reports applied=false.
func (s *UserStore) ApplyAction(ctx context.Context, a *domain.ReputationAction) (bool, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `
		INSERT INTO core.reputation_actions (address, action, delta, pool_id, slip_id, block_number, tx_hash, occurred_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (tx_hash, action, address) WHERE tx_hash <> '' DO NOTHING
	`, string(a.Address), string(a.Action), a.Delta, a.PoolID, a.SlipID,
		a.BlockNumber, a.TxHash, a.OccurredAt)
	if err != nil {
		return false, fmt.Errorf("append reputation action for %s: %w", a.Address, err)
	}
	if tag.RowsAffected() == 0 {
		return false, nil
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO core.users (address, reputation, last_active, created_at)
		VALUES ($1, $2, $3, $3)
		ON CONFLICT (address) DO UPDATE SET
			reputation = GREATEST(LEAST(core.users.reputation + $4, $5), $6),
			last_active = GREATEST(core.users.last_active, $3)
	`, string(a.Address), clamp(domain.DefaultReputation+a.Delta), a.OccurredAt,
		a.Delta, domain.MaxReputation, domain.MinReputation)
	if err != nil {
		return false, fmt.Errorf("apply reputation delta for %s: %w", a.Address, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("commit tx: %w", err)
	}
	return true, nil
}

// DirtyUsers returns up to limit users needing an on-chain reputation push.
func (s *UserStore) DirtyUsers(ctx context.Context, limit int) ([]*domain.User, error) {
	query := `
		SELECT ` + userColumns + `
		FROM core.users
		WHERE reputation > 0
		  AND (last_synced_at = 0 OR last_active > last_synced_at)
		ORDER BY last_active DESC
		LIMIT $1
	`

	rows, err := s.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("dirty users: %w", err)
	}
	defer rows.Close()

	return scanUsers(rows)
}

// MarkSynced sets last_synced_at for the given addresses.
func (s *UserStore) MarkSynced(ctx context.Context, addrs []domain.Address, syncedAt int64) error {
	if len(addrs) == 0 {
		return nil
	}

	strs := make([]string, len(addrs))
	for i, a := range addrs {
		strs[i] = string(a)
	}

	_, err := s.pool.Exec(ctx,
		`UPDATE core.users SET last_synced_at = $2 WHERE address = ANY($1)`,
		strs, syncedAt)
	if err != nil {
		return fmt.Errorf("mark %d users synced: %w", len(addrs), err)
	}
	return nil
}

// DecayCandidates returns users stale by sync time or activity time.
// A never-synced user (last_synced_at = 0) is not sync-stale; only a
// sync that actually happened can go stale.
func (s *UserStore) DecayCandidates(ctx context.Context, syncCutoff, activityCutoff int64) ([]*domain.User, error) {
	query := `
		SELECT ` + userColumns + `
		FROM core.users
		WHERE reputation > $3
		  AND ((last_synced_at > 0 AND last_synced_at < $1) OR last_active < $2)
		ORDER BY address ASC
	`

	rows, err := s.pool.Query(ctx, query, syncCutoff, activityCutoff, domain.MinReputation)
	if err != nil {
		return nil, fmt.Errorf("decay candidates: %w", err)
	}
	defer rows.Close()

	return scanUsers(rows)
}

// RecordDecay applies one decay step: the score move and the ledger row
// commit together, and last_active is left alone so the user stays a
// decay candidate until they act again.
func (s *UserStore) RecordDecay(ctx context.Context, addr domain.Address, delta int, occurredAt int64) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx,
		`UPDATE core.users SET reputation = GREATEST(reputation + $2, $3) WHERE address = $1`,
		string(addr), delta, domain.MinReputation)
	if err != nil {
		return fmt.Errorf("decay reputation for %s: %w", addr, err)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO core.reputation_actions (address, action, delta, block_number, tx_hash, occurred_at)
		VALUES ($1, $2, $3, 0, '', $4)
	`, string(addr), string(domain.ActionReputationDecay), delta, occurredAt)
	if err != nil {
		return fmt.Errorf("append decay action for %s: %w", addr, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// BumpCounter increments one of the user activity counters.
func (s *UserStore) BumpCounter(ctx context.Context, addr domain.Address, counter string) error {
	var query string
	switch counter {
	case "total_bets":
		query = `UPDATE core.users SET total_bets = total_bets + 1 WHERE address = $1`
	case "total_pools":
		query = `UPDATE core.users SET total_pools = total_pools + 1 WHERE address = $1`
	case "pools_won":
		query = `UPDATE core.users SET pools_won = pools_won + 1 WHERE address = $1`
	default:
		return fmt.Errorf("%w: unknown counter %q", storage.ErrInvalidInput, counter)
	}

	if _, err := s.pool.Exec(ctx, query, string(addr)); err != nil {
		return fmt.Errorf("bump %s for %s: %w", counter, addr, err)
	}
	return nil
}

// scanUsers reads all user rows from a result set.
func scanUsers(rows interface {
	Next() bool
	Scan(...any) error
	Err() error
}) ([]*domain.User, error) {
	var users []*domain.User
	for rows.Next() {
		var (
			u       domain.User
			address string
		)
		if err := rows.Scan(&address, &u.Reputation, &u.TotalBets, &u.TotalPools,
			&u.PoolsWon, &u.LastActive, &u.LastSyncedAt, &u.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		u.Address = domain.Address(address)
		users = append(users, &u)
	}
	return users, rows.Err()
}

// clamp bounds a reputation value to [MinReputation, MaxReputation].
func clamp(v int) int {
	if v > domain.MaxReputation {
		return domain.MaxReputation
	}
	if v < domain.MinReputation {
		return domain.MinReputation
	}
	return v
}
