package postgres

import (
	"context"
	"fmt"
	"math/big"

	"github.com/jackc/pgx/v5"

	"bitr-backend/internal/domain"
	"bitr-backend/internal/storage"
)

// PoolStore implements storage.PoolStore using PostgreSQL.
type PoolStore struct {
	pool *Pool
}

// NewPoolStore creates a new PoolStore.
func NewPoolStore(pool *Pool) *PoolStore {
	return &PoolStore{pool: pool}
}

// Compile-time interface check.
var _ storage.PoolStore = (*PoolStore)(nil)

const poolColumns = `
	pool_id, creator, predicted_outcome, odds,
	creator_stake::text, total_creator_side_stake::text, total_bettor_stake::text,
	max_bettor_stake::text, max_bet_per_user::text,
	event_start_time, event_end_time, betting_end_time,
	league, category, region, home_team, away_team, title,
	market_id, oracle_type, market_type, status, result, result_timestamp,
	flags, read_at
`

// Upsert writes a pool snapshot. Stale snapshots (older read_at) lose, and
// a settled or refunded row never reverts to active: event-driven writes and
// the periodic sync race on the same pool_id.
func (s *PoolStore) Upsert(ctx context.Context, p *domain.Pool) error {
	query := `
		INSERT INTO oracle.pools (
			pool_id, creator, predicted_outcome, odds,
			creator_stake, total_creator_side_stake, total_bettor_stake,
			max_bettor_stake, max_bet_per_user,
			event_start_time, event_end_time, betting_end_time,
			league, category, region, home_team, away_team, title,
			market_id, oracle_type, market_type, status, result, result_timestamp,
			flags, read_at
		) VALUES (
			$1, $2, $3, $4, $5::numeric, $6::numeric, $7::numeric, $8::numeric, $9::numeric,
			$10, $11, $12, $13, $14, $15, $16, $17, $18,
			$19, $20, $21, $22, $23, $24, $25, $26
		)
		ON CONFLICT (pool_id) DO UPDATE SET
			creator = EXCLUDED.creator,
			predicted_outcome = EXCLUDED.predicted_outcome,
			odds = EXCLUDED.odds,
			creator_stake = EXCLUDED.creator_stake,
			total_creator_side_stake = EXCLUDED.total_creator_side_stake,
			total_bettor_stake = EXCLUDED.total_bettor_stake,
			max_bettor_stake = EXCLUDED.max_bettor_stake,
			max_bet_per_user = EXCLUDED.max_bet_per_user,
			event_start_time = EXCLUDED.event_start_time,
			event_end_time = EXCLUDED.event_end_time,
			betting_end_time = EXCLUDED.betting_end_time,
			league = EXCLUDED.league,
			category = EXCLUDED.category,
			region = EXCLUDED.region,
			home_team = EXCLUDED.home_team,
			away_team = EXCLUDED.away_team,
			title = EXCLUDED.title,
			market_id = EXCLUDED.market_id,
			oracle_type = EXCLUDED.oracle_type,
			market_type = EXCLUDED.market_type,
			status = EXCLUDED.status,
			result = EXCLUDED.result,
			result_timestamp = EXCLUDED.result_timestamp,
			flags = EXCLUDED.flags,
			read_at = EXCLUDED.read_at
		WHERE oracle.pools.read_at <= EXCLUDED.read_at
		  AND NOT (oracle.pools.status IN ('settled', 'refunded') AND EXCLUDED.status = 'active')
	`

	_, err := s.pool.Exec(ctx, query,
		p.PoolID, string(p.Creator), p.PredictedOutcome, p.Odds,
		numericArg(p.CreatorStake), numericArg(p.TotalCreatorSideStake),
		numericArg(p.TotalBettorStake), numericArg(p.MaxBettorStake), numericArg(p.MaxBetPerUser),
		p.EventStartTime, p.EventEndTime, p.BettingEndTime,
		p.League, p.Category, p.Region, p.HomeTeam, p.AwayTeam, p.Title,
		p.MarketID, string(p.OracleType), p.MarketType.String(), string(p.Status),
		p.Result, p.ResultTimestamp, p.Flags, p.ReadAt,
	)
	if err != nil {
		return fmt.Errorf("upsert pool %d: %w", p.PoolID, err)
	}
	return nil
}

// GetByID retrieves a pool by id. Returns storage.ErrNotFound if absent.
func (s *PoolStore) GetByID(ctx context.Context, poolID uint64) (*domain.Pool, error) {
	query := `SELECT ` + poolColumns + ` FROM oracle.pools WHERE pool_id = $1`

	row := s.pool.QueryRow(ctx, query, poolID)
	p, err := scanPool(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get pool %d: %w", poolID, err)
	}
	return p, nil
}

// MaxPoolID returns the highest mirrored pool id.
func (s *PoolStore) MaxPoolID(ctx context.Context) (uint64, bool, error) {
	var max *int64
	err := s.pool.QueryRow(ctx, `SELECT MAX(pool_id) FROM oracle.pools`).Scan(&max)
	if err != nil {
		return 0, false, fmt.Errorf("max pool id: %w", err)
	}
	if max == nil {
		return 0, false, nil
	}
	return uint64(*max), true, nil
}

// ActiveIDs returns ids of active pools in ascending order.
func (s *PoolStore) ActiveIDs(ctx context.Context) ([]uint64, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT pool_id FROM oracle.pools WHERE status = 'active' ORDER BY pool_id ASC`)
	if err != nil {
		return nil, fmt.Errorf("active pool ids: %w", err)
	}
	defer rows.Close()

	var ids []uint64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan pool id: %w", err)
		}
		ids = append(ids, uint64(id))
	}
	return ids, rows.Err()
}

// GuidedDue returns active guided pools of a category past their event end
// with no recorded oracle submission.
func (s *PoolStore) GuidedDue(ctx context.Context, category string, now int64) ([]*domain.Pool, error) {
	query := `
		SELECT ` + poolColumns + `
		FROM oracle.pools p
		WHERE p.category = $1
		  AND p.oracle_type = 'guided'
		  AND p.status = 'active'
		  AND p.event_end_time <= $2
		  AND p.event_end_time > 0
		  AND NOT EXISTS (
			SELECT 1 FROM public.oracle_submissions os WHERE os.market_id = p.market_id
		  )
		ORDER BY p.event_end_time ASC
	`

	rows, err := s.pool.Query(ctx, query, category, now)
	if err != nil {
		return nil, fmt.Errorf("guided due pools: %w", err)
	}
	defer rows.Close()

	return scanPools(rows)
}

// UnsettledPast returns active pools whose event end is older than
// now-bufferSeconds, candidates for automatic settlement.
func (s *PoolStore) UnsettledPast(ctx context.Context, now, bufferSeconds int64) ([]*domain.Pool, error) {
	query := `
		SELECT ` + poolColumns + `
		FROM oracle.pools
		WHERE status = 'active'
		  AND event_end_time > 0
		  AND event_end_time <= $1
		ORDER BY event_end_time ASC
	`

	rows, err := s.pool.Query(ctx, query, now-bufferSeconds)
	if err != nil {
		return nil, fmt.Errorf("unsettled pools: %w", err)
	}
	defer rows.Close()

	return scanPools(rows)
}

// MarkSettled finalizes a pool. Aggregates stop moving once settled.
func (s *PoolStore) MarkSettled(ctx context.Context, poolID uint64, result string, settledAt int64) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE oracle.pools
		SET status = 'settled', result = $2, result_timestamp = $3
		WHERE pool_id = $1 AND status <> 'settled'
	`, poolID, result, settledAt)
	if err != nil {
		return fmt.Errorf("mark pool %d settled: %w", poolID, err)
	}
	return nil
}

// MarkRefunded sets a pool's status to refunded.
func (s *PoolStore) MarkRefunded(ctx context.Context, poolID uint64) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE oracle.pools SET status = 'refunded'
		WHERE pool_id = $1 AND status = 'active'
	`, poolID)
	if err != nil {
		return fmt.Errorf("mark pool %d refunded: %w", poolID, err)
	}
	return nil
}

// AddBettorStake bumps total_bettor_stake for an active pool.
func (s *PoolStore) AddBettorStake(ctx context.Context, poolID uint64, amount *big.Int) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE oracle.pools
		SET total_bettor_stake = total_bettor_stake + $2::numeric
		WHERE pool_id = $1 AND status = 'active'
	`, poolID, numericArg(amount))
	if err != nil {
		return fmt.Errorf("add bettor stake to pool %d: %w", poolID, err)
	}
	return nil
}

// AddCreatorSideStake bumps total_creator_side_stake for an active pool.
func (s *PoolStore) AddCreatorSideStake(ctx context.Context, poolID uint64, amount *big.Int) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE oracle.pools
		SET total_creator_side_stake = total_creator_side_stake + $2::numeric
		WHERE pool_id = $1 AND status = 'active'
	`, poolID, numericArg(amount))
	if err != nil {
		return fmt.Errorf("add creator stake to pool %d: %w", poolID, err)
	}
	return nil
}

// scanPool reads one pool row.
func scanPool(row pgx.Row) (*domain.Pool, error) {
	var (
		p          domain.Pool
		poolID     int64
		creator    string
		oracleType string
		marketType string
		status     string
		stakes     [5]string
		flags      int16
	)

	err := row.Scan(
		&poolID, &creator, &p.PredictedOutcome, &p.Odds,
		&stakes[0], &stakes[1], &stakes[2], &stakes[3], &stakes[4],
		&p.EventStartTime, &p.EventEndTime, &p.BettingEndTime,
		&p.League, &p.Category, &p.Region, &p.HomeTeam, &p.AwayTeam, &p.Title,
		&p.MarketID, &oracleType, &marketType, &status, &p.Result, &p.ResultTimestamp,
		&flags, &p.ReadAt,
	)
	if err != nil {
		return nil, err
	}

	p.PoolID = uint64(poolID)
	p.Creator = domain.Address(creator)
	p.OracleType = domain.OracleType(oracleType)
	p.MarketType = parseMarketType(marketType)
	p.Status = domain.PoolStatus(status)
	p.Flags = uint8(flags)

	for i, dst := range []**big.Int{
		&p.CreatorStake, &p.TotalCreatorSideStake, &p.TotalBettorStake,
		&p.MaxBettorStake, &p.MaxBetPerUser,
	} {
		v, err := parseNumeric(stakes[i])
		if err != nil {
			return nil, fmt.Errorf("pool %d stake column %d: %w", poolID, i, err)
		}
		*dst = v
	}

	return &p, nil
}

// scanPools reads all pool rows from a result set.
func scanPools(rows pgx.Rows) ([]*domain.Pool, error) {
	var pools []*domain.Pool
	for rows.Next() {
		p, err := scanPool(rows)
		if err != nil {
			return nil, fmt.Errorf("scan pool: %w", err)
		}
		pools = append(pools, p)
	}
	return pools, rows.Err()
}

// parseMarketType maps stored labels back to the enum. Unknown labels
// collapse to CUSTOM.
func parseMarketType(s string) domain.MarketType {
	for mt := domain.MarketMoneyline; mt <= domain.MarketCustom; mt++ {
		if mt.String() == s {
			return mt
		}
	}
	return domain.MarketCustom
}
