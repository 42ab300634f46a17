package postgres

import (
	"context"
	"fmt"

	"bitr-backend/internal/domain"
	"bitr-backend/internal/storage"
)

// EventStore implements storage.EventStore using PostgreSQL.
type EventStore struct {
	pool *Pool
}

// NewEventStore creates a new EventStore.
func NewEventStore(pool *Pool) *EventStore {
	return &EventStore{pool: pool}
}

// Compile-time interface check.
var _ storage.EventStore = (*EventStore)(nil)

// CommitRange writes a batch of strategic events and the range marker in
// one transaction. Duplicate events are ignored, which makes range replay
// safe: replaying any committed range produces the same rows.
func (s *EventStore) CommitRange(ctx context.Context, events []*domain.StrategicEvent, marker *domain.IndexedBlock) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	eventQuery := `
		INSERT INTO analytics.strategic_events (
			tx_hash, log_index, event_name, contract, block_number, args, recorded_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (tx_hash, log_index, event_name) DO NOTHING
	`

	for _, e := range events {
		args := e.ArgsJSON
		if len(args) == 0 {
			args = []byte("{}")
		}
		_, err := tx.Exec(ctx, eventQuery,
			e.TxHash, int(e.LogIndex), e.EventName, e.Contract, e.BlockNumber, args, e.RecordedAt,
		)
		if err != nil {
			return fmt.Errorf("insert strategic event %s/%d: %w", e.TxHash, e.LogIndex, err)
		}
	}

	if marker != nil {
		_, err := tx.Exec(ctx, `
			INSERT INTO oracle.indexed_blocks (category, block_number, block_hash, indexed_at)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (category) DO UPDATE SET
				block_number = EXCLUDED.block_number,
				block_hash = EXCLUDED.block_hash,
				indexed_at = EXCLUDED.indexed_at
			WHERE oracle.indexed_blocks.block_number <= EXCLUDED.block_number
		`, marker.Category, marker.BlockNumber, marker.BlockHash, marker.IndexedAt)
		if err != nil {
			return fmt.Errorf("upsert marker %s: %w", marker.Category, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// LastIndexed returns the highest committed marker across categories.
func (s *EventStore) LastIndexed(ctx context.Context) (*domain.IndexedBlock, bool, error) {
	var m domain.IndexedBlock
	err := s.pool.QueryRow(ctx, `
		SELECT category, block_number, block_hash, indexed_at
		FROM oracle.indexed_blocks
		ORDER BY block_number DESC
		LIMIT 1
	`).Scan(&m.Category, &m.BlockNumber, &m.BlockHash, &m.IndexedAt)
	if err != nil {
		if isNotFoundError(err) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("last indexed block: %w", err)
	}
	return &m, true, nil
}

// GetMarker returns the marker for one category.
func (s *EventStore) GetMarker(ctx context.Context, category string) (*domain.IndexedBlock, error) {
	var m domain.IndexedBlock
	err := s.pool.QueryRow(ctx, `
		SELECT category, block_number, block_hash, indexed_at
		FROM oracle.indexed_blocks
		WHERE category = $1
	`, category).Scan(&m.Category, &m.BlockNumber, &m.BlockHash, &m.IndexedAt)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get marker %s: %w", category, err)
	}
	return &m, nil
}

// RewindTo deletes archived events above the reorg ancestor and resets the
// category marker. Both happen in one transaction so a crash mid-rewind
// cannot leave orphaned events above the marker.
func (s *EventStore) RewindTo(ctx context.Context, category string, ancestor uint64, ancestorHash string) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx,
		`DELETE FROM analytics.strategic_events WHERE block_number > $1`, ancestor); err != nil {
		return fmt.Errorf("delete events above block %d: %w", ancestor, err)
	}

	if _, err := tx.Exec(ctx, `
		UPDATE oracle.indexed_blocks
		SET block_number = $2, block_hash = $3
		WHERE category = $1
	`, category, ancestor, ancestorHash); err != nil {
		return fmt.Errorf("rewind marker %s to %d: %w", category, ancestor, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// CountEvents returns the number of archived strategic events.
func (s *EventStore) CountEvents(ctx context.Context) (int64, error) {
	var n int64
	if err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM analytics.strategic_events`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count strategic events: %w", err)
	}
	return n, nil
}
