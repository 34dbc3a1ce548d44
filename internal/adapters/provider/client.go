// Package provider implements the sports data provider client over its HTTP API.
package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/matchday/sportsync/config"
	"github.com/matchday/sportsync/internal/core"
	"github.com/matchday/sportsync/internal/domain/model"
)

const (
	defaultTimeout = 30 * time.Second
	// retryLimit bounds retries for transient failures (network errors, 5xx,
	// 429). 4xx responses other than 429 fail immediately.
	retryLimit = 2
	// maxErrorBody bounds how much of an error response is kept for messages.
	maxErrorBody = 512
)

// Client talks to the sports data provider REST API and normalizes its
// responses into the domain DTO shapes.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	logger  *slog.Logger
}

// ClientOptions bundles dependencies for NewClient.
type ClientOptions struct {
	Config config.ProviderConfig
	Logger *slog.Logger
	// HTTPClient overrides the default client, mainly for tests.
	HTTPClient *http.Client
}

// NewClient creates a provider client from configuration.
func NewClient(opts ClientOptions) (*Client, error) {
	baseURL := strings.TrimRight(opts.Config.BaseURL, "/")
	if baseURL == "" {
		return nil, errors.New("provider base URL is required")
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.Config.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		baseURL: baseURL,
		apiKey:  opts.Config.APIKey,
		http:    httpClient,
		logger:  logger.With("component", "provider_client"),
	}, nil
}

// envelope is the provider's standard response wrapper.
type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error string          `json:"error,omitempty"`
}

// FetchLeagues returns the provider's league catalog.
func (c *Client) FetchLeagues(ctx context.Context) ([]model.LeagueDTO, error) {
	var out []model.LeagueDTO
	if err := c.getJSON(ctx, "/v1/leagues", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// FetchFixturesBetween returns fixtures with kickoff inside the window.
func (c *Client) FetchFixturesBetween(ctx context.Context, window core.FixtureWindow) ([]model.FixtureDTO, error) {
	q := windowQuery(window)

	var out []model.FixtureDTO
	if err := c.getJSON(ctx, "/v1/fixtures", q, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// FetchLiveFixtures returns fixtures currently in play.
func (c *Client) FetchLiveFixtures(ctx context.Context, leagueIDs []int64) ([]model.FixtureDTO, error) {
	q := url.Values{}
	if len(leagueIDs) > 0 {
		q.Set("league_ids", joinIDs(leagueIDs))
	}

	var out []model.FixtureDTO
	if err := c.getJSON(ctx, "/v1/fixtures/live", q, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// FetchFixturesByIDs returns the current provider state of specific fixtures.
// Fixtures the provider no longer knows are simply absent from the result.
func (c *Client) FetchFixturesByIDs(ctx context.Context, externalIDs []int64) ([]model.FixtureDTO, error) {
	if len(externalIDs) == 0 {
		return nil, nil
	}
	q := url.Values{}
	q.Set("ids", joinIDs(externalIDs))

	var out []model.FixtureDTO
	if err := c.getJSON(ctx, "/v1/fixtures", q, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// FetchOddsBetween returns market prices for fixtures kicking off inside the
// window.
func (c *Client) FetchOddsBetween(ctx context.Context, window core.FixtureWindow) ([]model.OddDTO, error) {
	q := windowQuery(window)

	var out []model.OddDTO
	if err := c.getJSON(ctx, "/v1/odds", q, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// getJSON performs a GET with retries and decodes the enveloped response.
func (c *Client) getJSON(ctx context.Context, path string, query url.Values, out any) error {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var lastErr error
	for attempt := 0; attempt <= retryLimit; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(attempt) * 500 * time.Millisecond
			timer := time.NewTimer(backoff)
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
			c.logger.WarnContext(ctx, "retrying provider request",
				"path", path, "attempt", attempt, "error", lastErr)
		}

		retryable, err := c.doOnce(ctx, endpoint, out)
		if err == nil {
			return nil
		}
		lastErr = err
		if !retryable {
			break
		}
	}
	return fmt.Errorf("provider GET %s: %w", path, lastErr)
}

// doOnce performs a single request attempt. The bool reports whether the
// failure is worth retrying.
func (c *Client) doOnce(ctx context.Context, endpoint string, out any) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return false, err
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return ctx.Err() == nil, err
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		retryable := resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests
		return retryable, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return false, fmt.Errorf("decode response: %w", err)
	}
	if env.Error != "" {
		return false, fmt.Errorf("provider error: %s", env.Error)
	}
	if len(env.Data) == 0 {
		return false, nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return false, fmt.Errorf("decode payload: %w", err)
	}
	return false, nil
}

func windowQuery(window core.FixtureWindow) url.Values {
	q := url.Values{}
	q.Set("from", window.From.UTC().Format(time.RFC3339))
	q.Set("to", window.To.UTC().Format(time.RFC3339))
	if len(window.LeagueIDs) > 0 {
		q.Set("league_ids", joinIDs(window.LeagueIDs))
	}
	return q
}

func joinIDs(ids []int64) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.FormatInt(id, 10)
	}
	return strings.Join(parts, ",")
}
