// Package marketplace implements the resilient HTTP transport and the typed
// endpoint surface of the destination marketplace API.
package marketplace

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/andrzw/marketsync/internal/core/domain"
	"github.com/andrzw/marketsync/internal/sync/metrics"
)

// TokenProvider supplies a currently valid access token. Refresh mechanics
// belong to the implementation; the transport never stores tokens.
type TokenProvider interface {
	AccessToken(ctx context.Context) (string, error)
}

// RetryConfig bounds the 429 retry loop.
type RetryConfig struct {
	MaxAttempts  int
	InitialDelay time.Duration
}

// DefaultRetryConfig provides sensible defaults.
var DefaultRetryConfig = RetryConfig{
	MaxAttempts:  4,
	InitialDelay: 500 * time.Millisecond,
}

// Config holds transport settings for one destination.
type Config struct {
	BaseURL        string        `yaml:"base_url"`
	Timeout        time.Duration `yaml:"timeout"`
	MaxAttempts    int           `yaml:"max_attempts"`
	RequestsPerSec float64       `yaml:"requests_per_sec"`
}

// Client performs outbound calls against one marketplace destination with
// auth, JSON codec, rate limiting and bounded retry on throttling.
type Client struct {
	baseURL string
	http    *http.Client
	tokens  TokenProvider
	limiter *rate.Limiter
	retry   RetryConfig
}

// NewClient creates a transport for the given destination.
func NewClient(cfg Config, tokens TokenProvider) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	retryCfg := DefaultRetryConfig
	if cfg.MaxAttempts > 0 {
		retryCfg.MaxAttempts = cfg.MaxAttempts
	}

	limit := rate.Inf
	if cfg.RequestsPerSec > 0 {
		limit = rate.Limit(cfg.RequestsPerSec)
	}

	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		http: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		tokens:  tokens,
		limiter: rate.NewLimiter(limit, 1),
		retry:   retryCfg,
	}
}

// Do performs one call with retry on 429 and returns the raw response body.
// 404 maps to domain.ErrNotFound so call sites that tolerate absence can
// branch without parsing errors; any other non-2xx fails immediately with a
// TransportError.
func (c *Client) Do(ctx context.Context, method, endpoint string, body any) ([]byte, error) {
	var payload []byte
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request for %s: %w", endpoint, err)
		}
		payload = data
	}

	var lastErr error
	for attempt := 0; attempt < c.retry.MaxAttempts; attempt++ {
		if attempt > 0 {
			metrics.APIRetriesTotal.Inc()
			delay := c.backoff(attempt)
			slog.Debug("rate limited, backing off",
				"endpoint", endpoint, "attempt", attempt, "delay", delay)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
		}

		respBody, status, err := c.doOnce(ctx, method, endpoint, payload)
		if err != nil {
			return nil, err
		}

		metrics.APICallsTotal.WithLabelValues(method, metricEndpoint(endpoint), strconv.Itoa(status)).Inc()

		switch {
		case status >= 200 && status < 300:
			return respBody, nil
		case status == http.StatusNotFound:
			return nil, fmt.Errorf("%s %s: %w", method, endpoint, domain.ErrNotFound)
		case status == http.StatusTooManyRequests:
			lastErr = &domain.TransportError{Status: status, Endpoint: endpoint, Body: string(respBody)}
			continue
		default:
			return nil, &domain.TransportError{Status: status, Endpoint: endpoint, Body: string(respBody)}
		}
	}

	return nil, fmt.Errorf("%s %s after %d attempts: %w (%v)",
		method, endpoint, c.retry.MaxAttempts, domain.ErrRateLimitExceeded, lastErr)
}

func (c *Client) doOnce(ctx context.Context, method, endpoint string, payload []byte) ([]byte, int, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, 0, err
	}

	token, err := c.tokens.AccessToken(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("obtain access token: %w", err)
	}

	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+endpoint, reader)
	if err != nil {
		return nil, 0, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("%s %s: %w", method, endpoint, err)
	}
	defer resp.Body.Close()

	metrics.APILatency.WithLabelValues(method, metricEndpoint(endpoint)).Observe(time.Since(start).Seconds())

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, fmt.Errorf("read response from %s: %w", endpoint, err)
	}
	return respBody, resp.StatusCode, nil
}

// backoff returns the deterministic delay before retry n: 2^n * initial.
func (c *Client) backoff(attempt int) time.Duration {
	return time.Duration(1<<uint(attempt)) * c.retry.InitialDelay
}

// metricEndpoint strips the query string so free-text parameters (product
// names in suggest calls) never fan out the metric label space.
func metricEndpoint(endpoint string) string {
	if i := strings.IndexByte(endpoint, '?'); i >= 0 {
		return endpoint[:i]
	}
	return endpoint
}

// DoJSON performs a call and decodes the response into T. Decode failures
// surface as a DeserializationError, distinct from transport failures.
func DoJSON[T any](ctx context.Context, c *Client, method, endpoint string, body any) (T, error) {
	var out T

	respBody, err := c.Do(ctx, method, endpoint, body)
	if err != nil {
		return out, err
	}
	if len(respBody) == 0 {
		return out, nil
	}

	if err := json.Unmarshal(respBody, &out); err != nil {
		return out, &domain.DeserializationError{Endpoint: endpoint, Err: err}
	}
	return out, nil
}

// GetOrZero performs a GET that tolerates absence: a 404 yields the zero
// value with no error.
func GetOrZero[T any](ctx context.Context, c *Client, endpoint string) (T, error) {
	out, err := DoJSON[T](ctx, c, http.MethodGet, endpoint, nil)
	if errors.Is(err, domain.ErrNotFound) {
		var zero T
		return zero, nil
	}
	return out, err
}
