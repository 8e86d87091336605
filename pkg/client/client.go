package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/time/rate"
)

// DefaultBaseURL is the production API gateway.
const DefaultBaseURL = "https://api.axur.com/gateway/1.0/api"

// DefaultTimeout is the fixed per-request timeout.
const DefaultTimeout = 30 * time.Second

// MaxPageSize is the largest page the tickets API will serve.
const MaxPageSize = 200

const (
	defaultMaxPages = 10_000
	defaultTimezone = "-03:00"
	maxBodyBytes    = 32 << 20
)

// Observer is an optional callback invoked after every HTTP round trip.
// status is 0 when no response was received.
type Observer func(path string, status int, elapsed time.Duration)

// Client talks to the ticketing API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	token      string
	timeout    time.Duration
	pageSize   int
	maxPages   int
	timezone   string
	limiter    *rate.Limiter
	cache      Cache
	cacheTTL   time.Duration
	observer   Observer
}

// Option is a functional option for configuring a Client.
type Option func(*Client) error

// WithHTTPClient sets a custom http.Client. A bearer token configured with
// WithBearerToken is layered on top of its transport.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) error {
		c.httpClient = hc
		return nil
	}
}

// WithBearerToken attaches the API key to every request.
func WithBearerToken(token string) Option {
	return func(c *Client) error {
		c.token = token
		return nil
	}
}

// WithTimeout overrides the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) error {
		if d <= 0 {
			return fmt.Errorf("timeout must be positive, got %s", d)
		}
		c.timeout = d
		return nil
	}
}

// WithPageSize sets the page size used by FetchAll. It must be between 1 and
// MaxPageSize.
func WithPageSize(n int) Option {
	return func(c *Client) error {
		if n < 1 || n > MaxPageSize {
			return fmt.Errorf("page size must be in [1, %d], got %d", MaxPageSize, n)
		}
		c.pageSize = n
		return nil
	}
}

// WithMaxPages caps the number of pages FetchAll will request. 0 disables the cap.
func WithMaxPages(n int) Option {
	return func(c *Client) error {
		if n < 0 {
			return fmt.Errorf("max pages must not be negative, got %d", n)
		}
		c.maxPages = n
		return nil
	}
}

// WithTimezone sets the timezone offset sent to the stats endpoints.
func WithTimezone(tz string) Option {
	return func(c *Client) error {
		c.timezone = tz
		return nil
	}
}

// WithRateLimit paces outgoing requests with a token bucket. Requests wait
// for a token; nothing is retried.
func WithRateLimit(rps float64, burst int) Option {
	return func(c *Client) error {
		if rps <= 0 {
			return nil
		}
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
		return nil
	}
}

// WithCache enables response caching keyed by the full request URL.
func WithCache(cache Cache, ttl time.Duration) Option {
	return func(c *Client) error {
		if cache == nil || ttl <= 0 {
			return nil
		}
		c.cache = cache
		c.cacheTTL = ttl
		return nil
	}
}

// WithObserver registers a callback for request metrics.
func WithObserver(fn Observer) Option {
	return func(c *Client) error {
		c.observer = fn
		return nil
	}
}

// New creates a Client for baseURL.
//
//	c, err := client.New(client.DefaultBaseURL,
//	    client.WithBearerToken(apiKey),
//	    client.WithPageSize(100),
//	)
func New(baseURL string, opts ...Option) (*Client, error) {
	if strings.TrimSpace(baseURL) == "" {
		return nil, errors.New("base URL is required")
	}
	c := &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		timeout:  DefaultTimeout,
		pageSize: MaxPageSize,
		maxPages: defaultMaxPages,
		timezone: defaultTimezone,
	}
	for _, o := range opts {
		if err := o(c); err != nil {
			return nil, err
		}
	}

	if c.httpClient == nil {
		c.httpClient = &http.Client{Timeout: c.timeout}
	} else {
		hc := *c.httpClient
		if hc.Timeout == 0 {
			hc.Timeout = c.timeout
		}
		c.httpClient = &hc
	}
	if c.token != "" {
		c.httpClient.Transport = &oauth2.Transport{
			Base:   c.httpClient.Transport,
			Source: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: c.token, TokenType: "Bearer"}),
		}
	}
	return c, nil
}

// MustNew is like New but panics on error. Useful in tests and program init.
func MustNew(baseURL string, opts ...Option) *Client {
	c, err := New(baseURL, opts...)
	if err != nil {
		panic(err)
	}
	return c
}

// PageSize returns the configured page size.
func (c *Client) PageSize() int { return c.pageSize }

// Get issues an authenticated GET against path with the given query
// parameters and returns the raw JSON body.
func (c *Client) Get(ctx context.Context, path string, params Params) (json.RawMessage, error) {
	target := c.baseURL + "/" + strings.TrimLeft(path, "/")
	if q := params.Encode(); q != "" {
		target += "?" + q
	}

	if c.cache != nil {
		if body, ok := c.cache.Get(ctx, target); ok {
			return body, nil
		}
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, &NetworkError{Op: "GET " + path, Err: err}
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	status, body, err := c.do(req, path)
	if c.observer != nil {
		c.observer(path, status, time.Since(start))
	}
	if err != nil {
		return nil, err
	}

	if !json.Valid(body) {
		return nil, &ParseError{Path: path, Err: errors.New("response body is not valid JSON")}
	}

	if c.cache != nil {
		c.cache.Set(ctx, target, body, c.cacheTTL)
	}
	return body, nil
}

// getJSON is Get followed by a decode into out.
func (c *Client) getJSON(ctx context.Context, path string, params Params, out any) error {
	body, err := c.Get(ctx, path, params)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return &ParseError{Path: path, Err: err}
	}
	return nil
}

// do executes req and translates the outcome into the package's error
// taxonomy. The returned status is 0 when no response arrived.
func (c *Client) do(req *http.Request, path string) (int, []byte, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, &NetworkError{Op: "GET " + path, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return resp.StatusCode, nil, &NetworkError{Op: "read " + path, Err: err}
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		return resp.StatusCode, nil, &RateLimitedError{
			Path:       path,
			RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After"), time.Now()),
		}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return resp.StatusCode, nil, &APIError{
			Path:       path,
			Status:     resp.StatusCode,
			BodyPrefix: bodyPrefix(body),
		}
	}
	return resp.StatusCode, body, nil
}
