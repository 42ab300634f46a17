package oracle

import (
	"context"
	"fmt"
	"log"
	"time"

	"bitr-backend/internal/domain"
	"bitr-backend/internal/storage"
)

// TickerSource supplies bulk ticker listings, normally the Coinpaprika
// client.
type TickerSource interface {
	Tickers(ctx context.Context) ([]domain.PriceSnapshot, error)
}

// SnapshotSweeper periodically records ticker prices so resolvers read
// fresh snapshots instead of hitting the provider per pool.
type SnapshotSweeper struct {
	source  TickerSource
	markets storage.CryptoStore
	logger  *log.Logger
	now     func() time.Time
}

// SweeperOptions collects the sweeper's dependencies.
type SweeperOptions struct {
	Source  TickerSource
	Markets storage.CryptoStore
	Logger  *log.Logger
}

func NewSnapshotSweeper(opts SweeperOptions) (*SnapshotSweeper, error) {
	if opts.Source == nil || opts.Markets == nil {
		return nil, fmt.Errorf("oracle: ticker source and crypto store are required")
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	return &SnapshotSweeper{
		source:  opts.Source,
		markets: opts.Markets,
		logger:  opts.Logger,
		now:     time.Now,
	}, nil
}

// Run pulls one ticker sweep and appends it to the snapshot table.
func (s *SnapshotSweeper) Run(ctx context.Context) error {
	ticks, err := s.source.Tickers(ctx)
	if err != nil {
		return fmt.Errorf("fetch tickers: %w", err)
	}
	if len(ticks) == 0 {
		return nil
	}

	recordedAt := s.now().Unix()
	snaps := make([]*domain.PriceSnapshot, 0, len(ticks))
	for i := range ticks {
		snap := ticks[i]
		if snap.RecordedAt == 0 {
			snap.RecordedAt = recordedAt
		}
		snaps = append(snaps, &snap)
	}

	if err := s.markets.InsertSnapshots(ctx, snaps); err != nil {
		return fmt.Errorf("insert snapshots: %w", err)
	}
	s.logger.Printf("oracle: recorded %d price snapshots", len(snaps))
	return nil
}
