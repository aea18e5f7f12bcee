package marketplace

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"marketscout/internal/cache"
	"marketscout/internal/config"
	"marketscout/internal/ratelimit"
	"marketscout/internal/services"
)

const (
	defaultTimeout        = 15 * time.Second
	defaultRetryBaseDelay = 500 * time.Millisecond
	defaultRetryMaxDelay  = 8 * time.Second
	maxBodyBytes          = 8 << 20
)

// Config captures endpoints and limits for the catalog adapter.
type Config struct {
	SearchURL   string
	LookupURL   string
	SuggestURL  string
	ReviewsURL  string
	Country     string
	ResultLimit int
	MaxRetries  int
	UserAgent   string
	Timeout     time.Duration
}

// ConfigFrom maps the [marketplace] section into a client Config.
func ConfigFrom(cfg *config.Config) Config {
	if cfg == nil {
		return Config{}
	}
	m := cfg.Marketplace
	return Config{
		SearchURL:   m.SearchURL,
		LookupURL:   m.LookupURL,
		SuggestURL:  m.SuggestURL,
		ReviewsURL:  m.ReviewsURL,
		Country:     m.Country,
		ResultLimit: m.ResultLimit,
		MaxRetries:  m.MaxRetries,
		UserAgent:   m.UserAgent,
		Timeout:     time.Duration(m.TimeoutSeconds) * time.Second,
	}
}

// Client talks to the catalog endpoints.
type Client struct {
	cfg        Config
	httpClient *http.Client
	limiter    *ratelimit.Limiter
	cache      cache.Cache

	retryBaseDelay time.Duration
	retryMaxDelay  time.Duration
	sleeper        func(time.Duration)
}

// Option customizes the client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithLimiter gates every network attempt on limiter.
func WithLimiter(limiter *ratelimit.Limiter) Option {
	return func(c *Client) {
		c.limiter = limiter
	}
}

// WithCache stores successful response bodies in store.
func WithCache(store cache.Cache) Option {
	return func(c *Client) {
		c.cache = store
	}
}

// WithRetryBackoff overrides the retry backoff delays.
func WithRetryBackoff(baseDelay, maxDelay time.Duration) Option {
	return func(c *Client) {
		c.retryBaseDelay = baseDelay
		c.retryMaxDelay = maxDelay
	}
}

// WithSleeper overrides how retry sleeps are performed (useful for tests).
func WithSleeper(sleeper func(time.Duration)) Option {
	return func(c *Client) {
		c.sleeper = sleeper
	}
}

// NewClient constructs a catalog client.
func NewClient(cfg Config, opts ...Option) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.ResultLimit <= 0 {
		cfg.ResultLimit = 10
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	cfg.Country = strings.ToLower(strings.TrimSpace(cfg.Country))
	if cfg.Country == "" {
		cfg.Country = "us"
	}
	client := &Client{
		cfg:            cfg,
		httpClient:     &http.Client{Timeout: cfg.Timeout},
		retryBaseDelay: defaultRetryBaseDelay,
		retryMaxDelay:  defaultRetryMaxDelay,
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

// NewFromConfig builds a client from configuration.
func NewFromConfig(cfg *config.Config, opts ...Option) *Client {
	return NewClient(ConfigFrom(cfg), opts...)
}

// Country returns the default storefront used when callers pass none.
func (c *Client) Country() string {
	return c.cfg.Country
}

func (c *Client) country(value string) string {
	value = strings.ToLower(strings.TrimSpace(value))
	if value == "" {
		return c.cfg.Country
	}
	return value
}

type statusError struct {
	StatusCode int
	Body       string
	RetryAfter time.Duration
}

func (e *statusError) Error() string {
	body := strings.TrimSpace(e.Body)
	if len(body) > 160 {
		body = body[:160] + "..."
	}
	return fmt.Sprintf("http %d: %s", e.StatusCode, body)
}

// get fetches endpoint, consulting the cache first. op names the call in errors.
func (c *Client) get(ctx context.Context, op, endpoint string) ([]byte, error) {
	if c.cache != nil {
		if body, ok, err := c.cache.Get(ctx, endpoint); err == nil && ok {
			return body, nil
		}
	}

	attempts := c.cfg.MaxRetries + 1
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, services.Wrap(services.ErrTimeout, "marketplace", op, "rate limiter", err)
		}
		body, err := c.fetchOnce(ctx, endpoint)
		if err == nil {
			if c.cache != nil {
				_ = c.cache.Set(ctx, endpoint, body)
			}
			return body, nil
		}
		lastErr = err
		delay, retry := c.retryDelay(ctx, err, attempt, attempts)
		if !retry {
			break
		}
		if err := c.sleep(ctx, delay); err != nil {
			lastErr = err
			break
		}
	}
	return nil, classify(op, lastErr)
}

func (c *Client) fetchOnce(ctx context.Context, endpoint string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}
	if c.cfg.UserAgent != "" {
		req.Header.Set("User-Agent", c.cfg.UserAgent)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		retryAfter, _ := parseRetryAfter(resp.Header.Get("Retry-After"))
		return nil, &statusError{StatusCode: resp.StatusCode, Body: string(body), RetryAfter: retryAfter}
	}
	return body, nil
}

func classify(op string, err error) error {
	if err == nil {
		err = errors.New("unknown failure")
	}
	var statusErr *statusError
	switch {
	case errors.Is(err, context.Canceled):
		return fmt.Errorf("marketplace %s: %w", op, err)
	case errors.Is(err, context.DeadlineExceeded), isTimeout(err):
		return services.Wrap(services.ErrTimeout, "marketplace", op, "request timed out", err)
	case errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusNotFound:
		return services.Wrap(services.ErrNotFound, "marketplace", op, "not found", err)
	default:
		return services.Wrap(services.ErrExternalTool, "marketplace", op, "request failed", err)
	}
}

func isTimeout(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func (c *Client) retryDelay(ctx context.Context, err error, attempt, maxAttempts int) (time.Duration, bool) {
	if attempt >= maxAttempts || err == nil || ctx.Err() != nil {
		return 0, false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return 0, false
	}
	var statusErr *statusError
	if errors.As(err, &statusErr) {
		switch {
		case statusErr.StatusCode == http.StatusRequestTimeout,
			statusErr.StatusCode == http.StatusTooManyRequests,
			statusErr.StatusCode >= http.StatusInternalServerError:
			if statusErr.RetryAfter > 0 {
				return min(statusErr.RetryAfter, c.retryMaxDelay), true
			}
			return c.backoffDelay(attempt), true
		default:
			return 0, false
		}
	}
	if isTimeout(err) {
		return c.backoffDelay(attempt), true
	}
	return 0, false
}

func (c *Client) backoffDelay(attempt int) time.Duration {
	delay := c.retryBaseDelay
	if delay <= 0 {
		return 0
	}
	for i := 1; i < attempt; i++ {
		if delay > c.retryMaxDelay/2 {
			return c.retryMaxDelay
		}
		delay *= 2
	}
	return min(delay, c.retryMaxDelay)
}

func (c *Client) sleep(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}
	if c.sleeper != nil {
		c.sleeper(delay)
		return ctx.Err()
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func parseRetryAfter(value string) (time.Duration, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, false
	}
	if seconds, err := strconv.Atoi(value); err == nil && seconds >= 0 {
		return time.Duration(seconds) * time.Second, true
	}
	if when, err := http.ParseTime(value); err == nil {
		if delay := time.Until(when); delay > 0 {
			return delay, true
		}
	}
	return 0, false
}
