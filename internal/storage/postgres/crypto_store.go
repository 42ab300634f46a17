package postgres

import (
	"context"
	"fmt"

	"bitr-backend/internal/domain"
	"bitr-backend/internal/storage"
)

// CryptoStore implements storage.CryptoStore using PostgreSQL.
type CryptoStore struct {
	pool *Pool
}

// NewCryptoStore creates a new CryptoStore.
func NewCryptoStore(pool *Pool) *CryptoStore {
	return &CryptoStore{pool: pool}
}

// Compile-time interface check.
var _ storage.CryptoStore = (*CryptoStore)(nil)

// InsertMarket adds a prediction market. Returns storage.ErrDuplicateKey
// on an existing market_id.
func (s *CryptoStore) InsertMarket(ctx context.Context, m *domain.CryptoMarket) error {
	query := `
		INSERT INTO oracle.crypto_prediction_markets (
			market_id, coin_id, symbol, target_price, direction, timeframe,
			start_price, start_time, end_time, resolved, final_price, result
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`

	_, err := s.pool.Exec(ctx, query,
		m.MarketID, m.CoinID, m.Symbol, m.TargetPrice, string(m.Direction), string(m.Timeframe),
		m.StartPrice, m.StartTime, m.EndTime, m.Resolved, m.FinalPrice, m.Result,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert crypto market %s: %w", m.MarketID, err)
	}
	return nil
}

// UnresolvedDue returns unresolved markets whose end_time has passed.
func (s *CryptoStore) UnresolvedDue(ctx context.Context, now int64) ([]*domain.CryptoMarket, error) {
	query := `
		SELECT market_id, coin_id, symbol, target_price, direction, timeframe,
		       start_price, start_time, end_time, resolved, final_price, result
		FROM oracle.crypto_prediction_markets
		WHERE resolved = FALSE AND end_time <= $1
		ORDER BY end_time ASC
	`

	rows, err := s.pool.Query(ctx, query, now)
	if err != nil {
		return nil, fmt.Errorf("unresolved crypto markets: %w", err)
	}
	defer rows.Close()

	var markets []*domain.CryptoMarket
	for rows.Next() {
		var (
			m         domain.CryptoMarket
			direction string
			timeframe string
		)
		if err := rows.Scan(
			&m.MarketID, &m.CoinID, &m.Symbol, &m.TargetPrice, &direction, &timeframe,
			&m.StartPrice, &m.StartTime, &m.EndTime, &m.Resolved, &m.FinalPrice, &m.Result,
		); err != nil {
			return nil, fmt.Errorf("scan crypto market: %w", err)
		}
		m.Direction = domain.PriceDirection(direction)
		m.Timeframe = domain.CryptoTimeframe(timeframe)
		markets = append(markets, &m)
	}
	return markets, rows.Err()
}

// MarkResolved finalizes a market. Already-resolved rows are untouched.
func (s *CryptoStore) MarkResolved(ctx context.Context, marketID string, finalPrice float64, result string) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE oracle.crypto_prediction_markets
		SET resolved = TRUE, final_price = $2, result = $3
		WHERE market_id = $1 AND resolved = FALSE
	`, marketID, finalPrice, result)
	if err != nil {
		return fmt.Errorf("resolve crypto market %s: %w", marketID, err)
	}
	return nil
}

// InsertSnapshot appends one ticker observation.
func (s *CryptoStore) InsertSnapshot(ctx context.Context, snap *domain.PriceSnapshot) error {
	return s.InsertSnapshots(ctx, []*domain.PriceSnapshot{snap})
}

// InsertSnapshots appends a batch of ticker observations atomically.
func (s *CryptoStore) InsertSnapshots(ctx context.Context, snaps []*domain.PriceSnapshot) error {
	if len(snaps) == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO oracle.crypto_price_snapshots (
			coin_id, symbol, price_usd, market_cap, volume_24h,
			percent_change_1h, percent_change_24h, percent_change_7d, recorded_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	for _, snap := range snaps {
		_, err := tx.Exec(ctx, query,
			snap.CoinID, snap.Symbol, snap.PriceUSD, snap.MarketCap, snap.Volume24H,
			snap.PercentChange1H, snap.PercentChange24H, snap.PercentChange7D, snap.RecordedAt,
		)
		if err != nil {
			return fmt.Errorf("insert snapshot %s: %w", snap.CoinID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// LatestSnapshot returns the most recent snapshot for a symbol
// (case-insensitive). Returns storage.ErrNotFound when none exists.
func (s *CryptoStore) LatestSnapshot(ctx context.Context, symbol string) (*domain.PriceSnapshot, error) {
	query := `
		SELECT coin_id, symbol, price_usd, market_cap, volume_24h,
		       percent_change_1h, percent_change_24h, percent_change_7d, recorded_at
		FROM oracle.crypto_price_snapshots
		WHERE UPPER(symbol) = UPPER($1)
		ORDER BY recorded_at DESC
		LIMIT 1
	`

	var snap domain.PriceSnapshot
	err := s.pool.QueryRow(ctx, query, symbol).Scan(
		&snap.CoinID, &snap.Symbol, &snap.PriceUSD, &snap.MarketCap, &snap.Volume24H,
		&snap.PercentChange1H, &snap.PercentChange24H, &snap.PercentChange7D, &snap.RecordedAt,
	)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("latest snapshot %s: %w", symbol, err)
	}
	return &snap, nil
}

// InsertResolutionLog appends one resolver attempt record.
func (s *CryptoStore) InsertResolutionLog(ctx context.Context, l *domain.ResolutionLog) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO oracle.crypto_resolution_logs (market_id, domain, outcome, success, error_text, attempted_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, l.MarketID, l.Domain, l.Outcome, l.Success, l.ErrorText, l.AttemptedAt)
	if err != nil {
		return fmt.Errorf("insert resolution log %s: %w", l.MarketID, err)
	}
	return nil
}
