package coinpaprika

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(Options{BaseURL: srv.URL, Logger: log.New(logWriter{t}, "", 0)})
}

func TestTickersMapsQuotes(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/tickers", r.URL.Path)
		assert.Equal(t, "500", r.URL.Query().Get("limit"))
		fmt.Fprint(w, `[
			{"id": "btc-bitcoin", "symbol": "btc",
			 "quotes": {"USD": {"price": 64123.55, "market_cap": 1.2e12,
							    "volume_24h": 3.1e10, "percent_change_24h": -2.4}}},
			{"id": "sol-solana", "symbol": "SOL",
			 "quotes": {"USD": {"price": 195.01}}}
		]`)
	})

	snaps, err := testClient(t, handler).Tickers(context.Background())
	require.NoError(t, err)
	require.Len(t, snaps, 2)

	assert.Equal(t, "btc-bitcoin", snaps[0].CoinID)
	assert.Equal(t, "BTC", snaps[0].Symbol, "symbols are upper-cased")
	assert.Equal(t, 64123.55, snaps[0].PriceUSD)
	assert.Equal(t, -2.4, snaps[0].PercentChange24H)
	assert.Positive(t, snaps[0].RecordedAt)

	assert.Equal(t, "SOL", snaps[1].Symbol)
	assert.Equal(t, 195.01, snaps[1].PriceUSD)
}

func TestTickerByID(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/tickers/sol-solana", r.URL.Path)
		fmt.Fprint(w, `{"id": "sol-solana", "symbol": "SOL",
			"quotes": {"USD": {"price": 194.80}}}`)
	})

	snap, err := testClient(t, handler).Ticker(context.Background(), "sol-solana")
	require.NoError(t, err)
	assert.Equal(t, 194.80, snap.PriceUSD)
}

func TestRetryOnRateLimit(t *testing.T) {
	var hits atomic.Int32
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		fmt.Fprint(w, `{"id": "btc-bitcoin", "symbol": "BTC", "quotes": {"USD": {"price": 1.0}}}`)
	})

	_, err := testClient(t, handler).Ticker(context.Background(), "btc-bitcoin")
	require.NoError(t, err)
	assert.Equal(t, int32(2), hits.Load())
}

func TestNotFoundIsPermanent(t *testing.T) {
	var hits atomic.Int32
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusNotFound)
	})

	_, err := testClient(t, handler).Ticker(context.Background(), "nope-coin")
	require.Error(t, err)
	assert.Equal(t, int32(1), hits.Load())
}

type logWriter struct{ t *testing.T }

func (w logWriter) Write(p []byte) (int, error) {
	w.t.Log(string(p))
	return len(p), nil
}
