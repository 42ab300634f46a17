// Package sportmonks talks to the sports data API: fixture schedules,
// bookmaker odds, and finished-match scores. Payloads are mapped into
// the domain model before anything downstream sees them.
package sportmonks

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"bitr-backend/internal/domain"
)

const (
	// DefaultBaseURL is the v3 football API root.
	DefaultBaseURL = "https://api.sportmonks.com/v3/football"

	// fixtureIncludes pulls everything the mirror and resolver need in
	// one call.
	fixtureIncludes = "league;participants;odds.bookmaker;referees;venue;scores;events;state"

	maxAttempts   = 3
	retryBaseWait = 500 * time.Millisecond
)

// Options configures a Client; zero values take defaults.
type Options struct {
	BaseURL    string
	APIToken   string
	HTTPClient *http.Client
	Logger     *log.Logger

	// PreferredBookmakers is the bookmaker id preference order for odds
	// selection. The first bookmaker with rows for a market wins.
	PreferredBookmakers []int
}

// Client is the fixtures/odds/results HTTP client.
type Client struct {
	baseURL    string
	apiToken   string
	httpClient *http.Client
	logger     *log.Logger
	bookmakers []int
}

// NewClient builds a provider client. The API token is mandatory.
func NewClient(opts Options) (*Client, error) {
	if opts.APIToken == "" {
		return nil, fmt.Errorf("sportmonks: api token required")
	}
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	if len(opts.PreferredBookmakers) == 0 {
		opts.PreferredBookmakers = []int{2, 28, 39, 35}
	}
	return &Client{
		baseURL:    opts.BaseURL,
		apiToken:   opts.APIToken,
		httpClient: opts.HTTPClient,
		logger:     opts.Logger,
		bookmakers: opts.PreferredBookmakers,
	}, nil
}

// get fetches one API page with retry on transient failures.
func (c *Client) get(ctx context.Context, path string, query url.Values) (*apiEnvelope, error) {
	if query == nil {
		query = url.Values{}
	}
	query.Set("api_token", c.apiToken)
	full := c.baseURL + path + "?" + query.Encode()

	var lastErr error
	wait := retryBaseWait
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		env, err := c.getOnce(ctx, full)
		if err == nil {
			return env, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if !isTransient(err) {
			return nil, err
		}
		c.logger.Printf("sportmonks: GET %s attempt %d/%d failed: %v", path, attempt, maxAttempts, err)
		if attempt < maxAttempts {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(wait):
			}
			wait *= 2
		}
	}
	return nil, fmt.Errorf("sportmonks: GET %s: %w", path, lastErr)
}

func (c *Client) getOnce(ctx context.Context, full string) (*apiEnvelope, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, full, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &transientError{err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 32<<20))
	if err != nil {
		return nil, &transientError{err}
	}
	if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
		return nil, &transientError{fmt.Errorf("status %d", resp.StatusCode)}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d: %s", resp.StatusCode, truncate(body, 200))
	}

	var env apiEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &env, nil
}

// FixturesByDate lists all fixtures scheduled on one UTC day, walking
// pagination.has_more. Youth, reserve and women's competitions are
// filtered out.
func (c *Client) FixturesByDate(ctx context.Context, day time.Time) ([]FixtureDetail, error) {
	var out []FixtureDetail
	page := 1
	for {
		query := url.Values{
			"include": {fixtureIncludes},
			"page":    {strconv.Itoa(page)},
		}
		env, err := c.get(ctx, "/fixtures/date/"+day.UTC().Format("2006-01-02"), query)
		if err != nil {
			return nil, err
		}

		var fixtures []apiFixture
		if err := json.Unmarshal(env.Data, &fixtures); err != nil {
			return nil, fmt.Errorf("sportmonks: decode fixtures page %d: %w", page, err)
		}
		for _, fx := range fixtures {
			detail := mapFixture(fx, c.bookmakers, c.logger)
			if isExcluded(detail.Fixture.League) ||
				isExcluded(detail.Fixture.HomeTeam) ||
				isExcluded(detail.Fixture.AwayTeam) {
				continue
			}
			out = append(out, detail)
		}

		if env.Pagination == nil || !env.Pagination.HasMore {
			return out, nil
		}
		page++
	}
}

// FixtureByID fetches one fixture with odds, scores and events.
func (c *Client) FixtureByID(ctx context.Context, fixtureID string) (*FixtureDetail, error) {
	env, err := c.get(ctx, "/fixtures/"+fixtureID, url.Values{"include": {fixtureIncludes}})
	if err != nil {
		return nil, err
	}
	var fx apiFixture
	if err := json.Unmarshal(env.Data, &fx); err != nil {
		return nil, fmt.Errorf("sportmonks: decode fixture %s: %w", fixtureID, err)
	}
	detail := mapFixture(fx, c.bookmakers, c.logger)
	return &detail, nil
}

// FixtureOdds fetches just the odds for one fixture.
func (c *Client) FixtureOdds(ctx context.Context, fixtureID string) ([]domain.OddsRow, error) {
	env, err := c.get(ctx, "/fixtures/"+fixtureID+"/odds", url.Values{"include": {"bookmaker"}})
	if err != nil {
		return nil, err
	}
	var odds []apiOdd
	if err := json.Unmarshal(env.Data, &odds); err != nil {
		return nil, fmt.Errorf("sportmonks: decode odds for %s: %w", fixtureID, err)
	}
	return mapOdds(fixtureID, odds, c.bookmakers, c.logger), nil
}

type transientError struct{ err error }

func (e *transientError) Error() string { return e.err.Error() }
func (e *transientError) Unwrap() error { return e.err }

func isTransient(err error) bool {
	_, ok := err.(*transientError)
	return ok
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
