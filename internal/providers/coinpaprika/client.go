// Package coinpaprika fetches crypto ticker prices. The resolver uses it
// both for periodic snapshots and for on-demand spot prices when a
// market is due.
package coinpaprika

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"bitr-backend/internal/domain"
)

const (
	DefaultBaseURL = "https://api.coinpaprika.com/v1"

	// tickersLimit caps the list endpoint; the API serves at most 500
	// per request and the platform only tracks majors anyway.
	tickersLimit = 500

	maxAttempts   = 3
	retryBaseWait = 500 * time.Millisecond
)

// Options configures a Client; zero values take defaults.
type Options struct {
	BaseURL    string
	HTTPClient *http.Client
	Logger     *log.Logger
}

// Client is the price provider HTTP client. No authentication; the free
// tier is rate-limited, which surfaces as 429 and is retried.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *log.Logger
}

func NewClient(opts Options) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: 15 * time.Second}
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	return &Client{baseURL: opts.BaseURL, httpClient: opts.HTTPClient, logger: opts.Logger}
}

// apiTicker is the subset of the ticker payload the platform consumes.
type apiTicker struct {
	ID          string `json:"id"`
	Symbol      string `json:"symbol"`
	LastUpdated string `json:"last_updated"`
	Quotes      struct {
		USD struct {
			Price            float64 `json:"price"`
			MarketCap        float64 `json:"market_cap"`
			Volume24H        float64 `json:"volume_24h"`
			PercentChange1H  float64 `json:"percent_change_1h"`
			PercentChange24H float64 `json:"percent_change_24h"`
			PercentChange7D  float64 `json:"percent_change_7d"`
		} `json:"USD"`
	} `json:"quotes"`
}

func (t apiTicker) snapshot(now int64) domain.PriceSnapshot {
	return domain.PriceSnapshot{
		CoinID:           t.ID,
		Symbol:           strings.ToUpper(t.Symbol),
		PriceUSD:         t.Quotes.USD.Price,
		MarketCap:        t.Quotes.USD.MarketCap,
		Volume24H:        t.Quotes.USD.Volume24H,
		PercentChange1H:  t.Quotes.USD.PercentChange1H,
		PercentChange24H: t.Quotes.USD.PercentChange24H,
		PercentChange7D:  t.Quotes.USD.PercentChange7D,
		RecordedAt:       now,
	}
}

func (c *Client) get(ctx context.Context, path string, query url.Values, out any) error {
	full := c.baseURL + path
	if len(query) > 0 {
		full += "?" + query.Encode()
	}

	var lastErr error
	wait := retryBaseWait
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		err := c.getOnce(ctx, full, out)
		if err == nil {
			return nil
		}
		lastErr = err
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if !retryable(err) {
			return err
		}
		c.logger.Printf("coinpaprika: GET %s attempt %d/%d failed: %v", path, attempt, maxAttempts, err)
		if attempt < maxAttempts {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(wait):
			}
			wait *= 2
		}
	}
	return fmt.Errorf("coinpaprika: GET %s: %w", path, lastErr)
}

type httpError struct {
	status int
	err    error
}

func (e *httpError) Error() string {
	if e.err != nil {
		return e.err.Error()
	}
	return fmt.Sprintf("status %d", e.status)
}

func retryable(err error) bool {
	he, ok := err.(*httpError)
	if !ok {
		return false
	}
	return he.status == 0 || he.status >= 500 || he.status == http.StatusTooManyRequests
}

func (c *Client) getOnce(ctx context.Context, full string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, full, nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &httpError{err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return &httpError{err: err}
	}
	if resp.StatusCode != http.StatusOK {
		return &httpError{status: resp.StatusCode}
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// Tickers lists current prices for up to 500 coins, newest quotes first
// per the API's default ordering.
func (c *Client) Tickers(ctx context.Context) ([]domain.PriceSnapshot, error) {
	var tickers []apiTicker
	query := url.Values{"limit": {fmt.Sprint(tickersLimit)}}
	if err := c.get(ctx, "/tickers", query, &tickers); err != nil {
		return nil, err
	}
	now := time.Now().Unix()
	out := make([]domain.PriceSnapshot, 0, len(tickers))
	for _, t := range tickers {
		out = append(out, t.snapshot(now))
	}
	return out, nil
}

// Ticker fetches one coin's current quote by coinpaprika id
// (e.g. "btc-bitcoin").
func (c *Client) Ticker(ctx context.Context, coinID string) (*domain.PriceSnapshot, error) {
	var ticker apiTicker
	if err := c.get(ctx, "/tickers/"+url.PathEscape(coinID), nil, &ticker); err != nil {
		return nil, err
	}
	snap := ticker.snapshot(time.Now().Unix())
	return &snap, nil
}
