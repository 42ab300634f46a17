package oracle

import (
	"context"
	"errors"
	"fmt"
	"log"
	"regexp"
	"strconv"
	"strings"
	"time"

	"bitr-backend/internal/domain"
	"bitr-backend/internal/storage"
)

const categoryCrypto = "crypto"

// snapshotMaxAge bounds how stale a stored ticker snapshot may be
// before the resolver falls back to a live provider read.
const snapshotMaxAge = 10 * time.Minute

// PriceSource supplies live ticker reads, normally the Coinpaprika
// client.
type PriceSource interface {
	Ticker(ctx context.Context, coinID string) (*domain.PriceSnapshot, error)
}

// thresholdPattern matches predictions like "SOL above $195" or
// "btc below $62,500.50".
var thresholdPattern = regexp.MustCompile(`(?i)^\s*([a-z0-9]+)\s+(above|below)\s+\$?([\d,]+(?:\.\d+)?)\s*$`)

// threshold is one parsed price prediction.
type threshold struct {
	Symbol    string
	Direction domain.PriceDirection
	Price     float64
	priceText string // original formatting, echoed back in the outcome label
}

// parseThreshold extracts a price threshold from a pool's prediction,
// falling back to the home-team field, which carries the same text for
// crypto pools created through the UI.
func parseThreshold(pool *domain.Pool) (threshold, error) {
	for _, candidate := range []string{pool.PredictedOutcome, pool.HomeTeam, pool.Title} {
		m := thresholdPattern.FindStringSubmatch(candidate)
		if m == nil {
			continue
		}
		price, err := strconv.ParseFloat(strings.ReplaceAll(m[3], ",", ""), 64)
		if err != nil {
			continue
		}
		return threshold{
			Symbol:    strings.ToUpper(m[1]),
			Direction: domain.PriceDirection(strings.ToLower(m[2])),
			Price:     price,
			priceText: m[3],
		}, nil
	}
	return threshold{}, fmt.Errorf("pool %d: no price threshold in %q", pool.PoolID, pool.PredictedOutcome)
}

// label renders the outcome for an observed price in the prediction's
// own vocabulary: "SOL above $195" or "SOL below $195".
func (t threshold) label(price float64) string {
	side := "below"
	if price >= t.Price {
		side = "above"
	}
	return fmt.Sprintf("%s %s $%s", t.Symbol, side, t.priceText)
}

// CryptoResolver settles the two crypto streams: standalone prediction
// markets resolved in the database, and guided pools resolved on-chain
// through the submitter.
type CryptoResolver struct {
	markets   storage.CryptoStore
	pools     storage.PoolStore
	prices    PriceSource
	submitter *Submitter
	logger    *log.Logger
	now       func() time.Time
}

// CryptoOptions collects the crypto resolver's dependencies.
type CryptoOptions struct {
	Markets   storage.CryptoStore
	Pools     storage.PoolStore
	Prices    PriceSource
	Submitter *Submitter
	Logger    *log.Logger
}

func NewCryptoResolver(opts CryptoOptions) (*CryptoResolver, error) {
	if opts.Markets == nil || opts.Pools == nil || opts.Prices == nil || opts.Submitter == nil {
		return nil, fmt.Errorf("oracle: markets, pools, prices and submitter are required")
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	return &CryptoResolver{
		markets:   opts.Markets,
		pools:     opts.Pools,
		prices:    opts.Prices,
		submitter: opts.Submitter,
		logger:    opts.Logger,
		now:       time.Now,
	}, nil
}

// Resolve runs one pass over both crypto streams.
func (r *CryptoResolver) Resolve(ctx context.Context) error {
	if err := r.resolveMarkets(ctx); err != nil {
		return err
	}
	return r.resolvePools(ctx)
}

// resolveMarkets finalizes database prediction markets whose horizon
// has passed. YES/NO per the market's direction against the latest
// observed price.
func (r *CryptoResolver) resolveMarkets(ctx context.Context) error {
	due, err := r.markets.UnresolvedDue(ctx, r.now().Unix())
	if err != nil {
		return fmt.Errorf("list due crypto markets: %w", err)
	}
	for _, m := range due {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		price, err := r.currentPrice(ctx, m.Symbol, m.CoinID)
		if err != nil {
			r.logger.Printf("oracle: crypto market %s: %v", m.MarketID, err)
			continue
		}
		result := "NO"
		if m.Satisfied(price) {
			result = "YES"
		}
		if err := r.markets.MarkResolved(ctx, m.MarketID, price, result); err != nil {
			r.logger.Printf("oracle: resolve crypto market %s: %v", m.MarketID, err)
		}
	}
	return nil
}

// resolvePools settles guided crypto pools on-chain.
func (r *CryptoResolver) resolvePools(ctx context.Context) error {
	due, err := r.pools.GuidedDue(ctx, categoryCrypto, r.now().Unix())
	if err != nil {
		return fmt.Errorf("list due crypto pools: %w", err)
	}
	for _, pool := range due {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := r.resolvePool(ctx, pool); err != nil {
			r.logger.Printf("oracle: crypto pool %d (%s): %v", pool.PoolID, pool.MarketID, err)
		}
	}
	return nil
}

func (r *CryptoResolver) resolvePool(ctx context.Context, pool *domain.Pool) error {
	t, err := parseThreshold(pool)
	if err != nil {
		return err
	}
	price, err := r.currentPrice(ctx, t.Symbol, "")
	if err != nil {
		return err
	}
	return r.submitter.Submit(ctx, pool.MarketID, t.label(price), categoryCrypto)
}

// currentPrice prefers a fresh stored snapshot over a provider call;
// the snapshot job keeps tickers warm, so the live path is the
// exception rather than the rule.
func (r *CryptoResolver) currentPrice(ctx context.Context, symbol, coinID string) (float64, error) {
	snap, err := r.markets.LatestSnapshot(ctx, symbol)
	if err == nil && r.now().Unix()-snap.RecordedAt <= int64(snapshotMaxAge.Seconds()) {
		return snap.PriceUSD, nil
	}
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return 0, fmt.Errorf("load snapshot for %s: %w", symbol, err)
	}

	if coinID == "" && snap != nil {
		coinID = snap.CoinID
	}
	if coinID == "" {
		return 0, fmt.Errorf("no snapshot and no coin id for %s", symbol)
	}
	live, err := r.prices.Ticker(ctx, coinID)
	if err != nil {
		return 0, fmt.Errorf("fetch ticker %s: %w", coinID, err)
	}
	if err := r.markets.InsertSnapshot(ctx, live); err != nil {
		r.logger.Printf("oracle: store snapshot for %s: %v", symbol, err)
	}
	return live.PriceUSD, nil
}
