package sportmonks

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bitr-backend/internal/domain"
)

func testClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, err := NewClient(Options{
		BaseURL:  srv.URL,
		APIToken: "test-token",
		Logger:   log.New(logWriter{t}, "", 0),
	})
	require.NoError(t, err)
	return c
}

func TestFixturesByDateWalksPagination(t *testing.T) {
	var tokens atomic.Int32
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("api_token") == "test-token" {
			tokens.Add(1)
		}
		switch r.URL.Query().Get("page") {
		case "1":
			fmt.Fprint(w, `{
				"data": [
					{"id": 111, "starting_at_timestamp": 1725100000,
					 "league": {"id": 8, "name": "Premier League", "country": {"name": "England"}},
					 "participants": [
						{"id": 1, "name": "Arsenal", "meta": {"location": "home"}},
						{"id": 2, "name": "Chelsea", "meta": {"location": "away"}}],
					 "state": {"short_name": "NS"}},
					{"id": 112, "starting_at_timestamp": 1725100000,
					 "league": {"id": 9, "name": "Premier League 2 U21"},
					 "participants": [
						{"id": 3, "name": "Arsenal U21", "meta": {"location": "home"}},
						{"id": 4, "name": "Chelsea U21", "meta": {"location": "away"}}],
					 "state": {"short_name": "NS"}}
				],
				"pagination": {"current_page": 1, "has_more": true}
			}`)
		default:
			fmt.Fprint(w, `{
				"data": [
					{"id": 113, "starting_at_timestamp": 1725110000,
					 "league": {"id": 8, "name": "Premier League"},
					 "participants": [
						{"id": 5, "name": "Everton", "meta": {"location": "home"}},
						{"id": 6, "name": "Fulham", "meta": {"location": "away"}}],
					 "state": {"short_name": "FT"}}
				],
				"pagination": {"current_page": 2, "has_more": false}
			}`)
		}
	})

	details, err := testClient(t, handler).FixturesByDate(context.Background(),
		time.Date(2024, 9, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	// two pages fetched; youth fixture filtered out
	require.Len(t, details, 2)
	assert.Equal(t, "111", details[0].Fixture.FixtureID)
	assert.Equal(t, "Arsenal", details[0].Fixture.HomeTeam)
	assert.Equal(t, "England", details[0].Fixture.Country)
	assert.Equal(t, domain.StatusNotStarted, details[0].Fixture.Status)
	assert.Equal(t, "113", details[1].Fixture.FixtureID)
	assert.Equal(t, domain.StatusFullTime, details[1].Fixture.Status)
	assert.Equal(t, int32(2), tokens.Load(), "every page carries the api token")
}

func TestFixtureByIDMapsScores(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{
			"data": {"id": 555, "starting_at_timestamp": 1725100000,
				"league": {"id": 8, "name": "FA Cup"},
				"participants": [
					{"id": 1, "name": "Wrexham", "meta": {"location": "home"}},
					{"id": 2, "name": "Port Vale", "meta": {"location": "away"}}],
				"state": {"short_name": "AET"},
				"scores": [
					{"description": "CURRENT", "score": {"goals": 3, "participant": "home"}},
					{"description": "CURRENT", "score": {"goals": 2, "participant": "away"}},
					{"description": "1ST_HALF", "score": {"goals": 1, "participant": "home"}},
					{"description": "1ST_HALF", "score": {"goals": 1, "participant": "away"}},
					{"description": "2ND_HALF", "score": {"goals": 1, "participant": "home"}},
					{"description": "2ND_HALF", "score": {"goals": 1, "participant": "away"}}
				]}
		}`)
	})

	detail, err := testClient(t, handler).FixtureByID(context.Background(), "555")
	require.NoError(t, err)

	assert.Equal(t, domain.StatusExtraTime, detail.Fixture.Status)
	assert.Equal(t, domain.ScorePair{Home: 3, Away: 2}, detail.Scores[domain.ScoreCurrent])
	assert.Equal(t, domain.ScorePair{Home: 1, Away: 1}, detail.Scores[domain.ScoreFirstHalf])
	assert.Equal(t, domain.ScorePair{Home: 1, Away: 1}, detail.Scores[domain.ScoreSecondHalf])
}

func TestFixtureOddsBookmakerPreference(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{
			"data": [
				{"market_id": 1, "bookmaker_id": 39, "label": "Home", "value": "1.95"},
				{"market_id": 1, "bookmaker_id": 39, "label": "Away", "value": "3.80"},
				{"market_id": 1, "bookmaker_id": 99, "label": "Home", "value": "2.00"},
				{"market_id": 80, "bookmaker_id": 99, "label": "Over", "total": "2.5", "value": "1.85"},
				{"market_id": 80, "bookmaker_id": 99, "label": "Under", "total": "2.5", "value": "1.95"},
				{"market_id": 80, "bookmaker_id": 99, "label": "Over", "total": "3.5", "value": "2.6e0"},
				{"market_id": 999, "bookmaker_id": 2, "label": "Whatever", "value": "1.50"}
			]
		}`)
	})

	rows, err := testClient(t, handler).FixtureOdds(context.Background(), "777")
	require.NoError(t, err)

	byMarket := map[int][]domain.OddsRow{}
	for _, row := range rows {
		assert.Equal(t, "777", row.FixtureID)
		byMarket[row.MarketID] = append(byMarket[row.MarketID], row)
	}

	// market 1: preferred bookmaker 39 beats 99
	require.Len(t, byMarket[1], 2)
	assert.Equal(t, 39, byMarket[1][0].BookmakerID)

	// market 80: only 99 offers it, scientific-notation row dropped
	require.Len(t, byMarket[80], 2)
	assert.Equal(t, "2.5", byMarket[80][0].Total)

	// market 999 is not an interesting market
	assert.Empty(t, byMarket[999])
}

func TestGetRetriesOnServerError(t *testing.T) {
	var hits atomic.Int32
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		fmt.Fprint(w, `{"data": {"id": 1, "starting_at_timestamp": 1, "state": {"short_name": "NS"}}}`)
	})

	_, err := testClient(t, handler).FixtureByID(context.Background(), "1")
	require.NoError(t, err)
	assert.Equal(t, int32(3), hits.Load())
}

func TestGetDoesNotRetryClientError(t *testing.T) {
	var hits atomic.Int32
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusForbidden)
	})

	_, err := testClient(t, handler).FixtureByID(context.Background(), "1")
	require.Error(t, err)
	assert.Equal(t, int32(1), hits.Load())
}

func TestIsExcluded(t *testing.T) {
	assert.True(t, isExcluded("Premier League Women"))
	assert.True(t, isExcluded("Bundesliga U19"))
	assert.True(t, isExcluded("Real Madrid B Team"))
	assert.False(t, isExcluded("Premier League"))
	assert.False(t, isExcluded("Borussia Dortmund"))
}

type logWriter struct{ t *testing.T }

func (w logWriter) Write(p []byte) (int, error) {
	w.t.Log(string(p))
	return len(p), nil
}
