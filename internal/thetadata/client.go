package thetadata

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/time/rate"

	"options-flow-lab/internal/domain"
)

// Default configuration values.
const (
	DefaultTimeout     = 15 * time.Second
	DefaultMaxRetries  = 3
	DefaultRetryDelay  = 1 * time.Second
	DefaultMaxDelay    = 10 * time.Second
	DefaultBackoffMult = 2.0
	DefaultRateLimit   = 10 // requests per second
)

// ErrNotConfigured is returned when no upstream endpoint is configured.
// Callers translate it into a degraded-but-alive response rather than
// treating it as a transient fault.
var ErrNotConfigured = errors.New("thetadata endpoint not configured")

// Client fetches historical options data over the ThetaData REST API.
type Client struct {
	baseURL     string
	client      *http.Client
	maxRetries  int
	retryDelay  time.Duration
	maxDelay    time.Duration
	backoffMult float64
	limiter     *rate.Limiter
}

// ClientOption configures Client.
type ClientOption func(*Client)

// WithTimeout sets HTTP client timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.client.Timeout = d
	}
}

// WithMaxRetries sets maximum retry attempts.
func WithMaxRetries(n int) ClientOption {
	return func(c *Client) {
		c.maxRetries = n
	}
}

// WithRetryDelay sets initial retry delay.
func WithRetryDelay(d time.Duration) ClientOption {
	return func(c *Client) {
		c.retryDelay = d
	}
}

// WithRateLimit caps outbound requests per second.
func WithRateLimit(rps float64) ClientOption {
	return func(c *Client) {
		c.limiter = rate.NewLimiter(rate.Limit(rps), 1)
	}
}

// WithHTTPClient sets custom http.Client.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *Client) {
		c.client = client
	}
}

// NewClient creates a new ThetaData client. An empty baseURL produces a
// client whose calls all fail with ErrNotConfigured.
func NewClient(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL:     baseURL,
		client:      &http.Client{Timeout: DefaultTimeout},
		maxRetries:  DefaultMaxRetries,
		retryDelay:  DefaultRetryDelay,
		maxDelay:    DefaultMaxDelay,
		backoffMult: DefaultBackoffMult,
		limiter:     rate.NewLimiter(rate.Limit(DefaultRateLimit), 1),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Configured reports whether an upstream endpoint is set.
func (c *Client) Configured() bool {
	return c.baseURL != ""
}

// HistoricalTrades fetches all option trades for (symbol, day). When limit is
// positive and the upstream returned exactly limit rows, truncated is true:
// the response may be an incomplete prefix of the day.
func (c *Client) HistoricalTrades(ctx context.Context, symbol, day string, limit int) (trades []*domain.RawTrade, truncated bool, err error) {
	params := url.Values{}
	params.Set("root", symbol)
	params.Set("date", day)
	if limit > 0 {
		params.Set("limit", fmt.Sprintf("%d", limit))
	}

	body, err := c.get(ctx, "/hist/option/trade", params)
	if err != nil {
		return nil, false, err
	}

	trades, err = normalizeTrades(body, symbol)
	if err != nil {
		return nil, false, fmt.Errorf("normalize trades: %w", err)
	}

	truncated = limit > 0 && len(trades) >= limit
	return trades, truncated, nil
}

// BulkOpenInterest fetches open interest for every contract of a symbol on a
// day. Returns a map keyed by contract.
func (c *Client) BulkOpenInterest(ctx context.Context, symbol, day string) (map[domain.ContractKey]int64, error) {
	params := url.Values{}
	params.Set("root", symbol)
	params.Set("date", day)

	body, err := c.get(ctx, "/bulk_hist/option/open_interest", params)
	if err != nil {
		return nil, err
	}

	oi, err := normalizeOpenInterest(body, symbol)
	if err != nil {
		return nil, fmt.Errorf("normalize open interest: %w", err)
	}
	return oi, nil
}

// ContractOpenInterest fetches open interest for a single contract on a day.
// Returns nil without error when the upstream has no row for the contract.
func (c *Client) ContractOpenInterest(ctx context.Context, key domain.ContractKey, day string) (*int64, error) {
	params := url.Values{}
	params.Set("root", key.Symbol)
	params.Set("exp", key.Expiration)
	params.Set("strike", fmt.Sprintf("%g", key.Strike))
	params.Set("right", key.Right)
	params.Set("date", day)

	body, err := c.get(ctx, "/hist/option/open_interest", params)
	if err != nil {
		return nil, err
	}

	oi, err := normalizeOpenInterest(body, key.Symbol)
	if err != nil {
		return nil, fmt.Errorf("normalize open interest: %w", err)
	}
	if v, ok := oi[key]; ok {
		return &v, nil
	}
	return nil, nil
}

// SpotPrice fetches the underlying spot price for (symbol, day). Returns nil
// without error when the upstream has no quote.
func (c *Client) SpotPrice(ctx context.Context, symbol, day string) (*float64, error) {
	params := url.Values{}
	params.Set("root", symbol)
	params.Set("date", day)

	body, err := c.get(ctx, "/hist/stock/eod", params)
	if err != nil {
		return nil, err
	}

	spot, err := normalizeSpot(body)
	if err != nil {
		return nil, fmt.Errorf("normalize spot: %w", err)
	}
	return spot, nil
}

// get performs a GET with rate limiting, retries and exponential backoff.
func (c *Client) get(ctx context.Context, path string, params url.Values) ([]byte, error) {
	if !c.Configured() {
		return nil, ErrNotConfigured
	}

	endpoint := c.baseURL + path
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}

	delay := c.retryDelay
	var lastErr error

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
			// Exponential backoff
			delay = time.Duration(float64(delay) * c.backoffMult)
			if delay > c.maxDelay {
				delay = c.maxDelay
			}
		}

		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return nil, fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.client.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("http request: %w", err)
			continue
		}

		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = fmt.Errorf("read response: %w", err)
			continue
		}

		// Handle rate limiting
		if resp.StatusCode == http.StatusTooManyRequests {
			lastErr = fmt.Errorf("rate limited (429)")
			continue
		}

		// 404 means no data for the request, not a fault
		if resp.StatusCode == http.StatusNotFound {
			return nil, nil
		}

		if resp.StatusCode != http.StatusOK {
			lastErr = fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(body))
			continue
		}

		return body, nil
	}

	return nil, fmt.Errorf("max retries exceeded: %w", lastErr)
}
