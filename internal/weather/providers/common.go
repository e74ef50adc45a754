package providers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"time"

	"github.com/sony/gobreaker"

	"github.com/i474232898/forecast-aggregation/internal/observability"
)

// BackoffConfig controls exponential backoff behaviour.
type BackoffConfig struct {
	MaxRetries      int
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// DefaultBackoff is used by every feed unless overridden.
var DefaultBackoff = BackoffConfig{
	MaxRetries:      3,
	InitialInterval: 500 * time.Millisecond,
	MaxInterval:     5 * time.Second,
}

// maxBodyBytes caps how much of a feed response is read.
const maxBodyBytes = 8 << 20

var (
	errRateLimited   = errors.New("rate limited")
	errServerError   = errors.New("server error")
	errUnexpected    = errors.New("unexpected status code")
	errCircuitOpen   = errors.New("circuit breaker open")
	errNoHTTPClient  = errors.New("http client not configured")
	errInvalidConfig = errors.New("invalid backoff configuration")
)

// resilientClient wraps an http.Client with retries, exponential backoff and
// a circuit breaker. One instance per upstream.
type resilientClient struct {
	name    string
	client  *http.Client
	backoff BackoffConfig
	circuit *gobreaker.CircuitBreaker
	metrics *observability.Metrics
}

func newResilientClient(name string, client *http.Client, backoff BackoffConfig, metrics *observability.Metrics) *resilientClient {
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 5,
		Interval:    1 * time.Minute,
		Timeout:     2 * time.Minute,
	})
	if metrics == nil {
		metrics = observability.NewMetricsForTesting()
	}
	return &resilientClient{
		name:    name,
		client:  client,
		backoff: backoff,
		circuit: cb,
		metrics: metrics,
	}
}

// do executes the request built by buildRequest and returns the response body
// of the first 2xx answer.
func (c *resilientClient) do(ctx context.Context, buildRequest func(ctx context.Context) (*http.Request, error)) ([]byte, error) {
	start := time.Now()
	body, err := c.doWithRetry(ctx, buildRequest)
	c.metrics.FeedRequestDuration.WithLabelValues(c.name).Observe(time.Since(start).Seconds())
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	c.metrics.FeedRequests.WithLabelValues(c.name, outcome).Inc()
	return body, err
}

func (c *resilientClient) doWithRetry(ctx context.Context, buildRequest func(ctx context.Context) (*http.Request, error)) ([]byte, error) {
	if c.client == nil {
		return nil, errNoHTTPClient
	}
	if c.backoff.MaxRetries < 0 || c.backoff.InitialInterval <= 0 {
		return nil, errInvalidConfig
	}

	for attempt := 0; ; attempt++ {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		req, err := buildRequest(ctx)
		if err != nil {
			return nil, err
		}

		result, err := c.circuit.Execute(func() (interface{}, error) {
			return c.roundTrip(req)
		})
		if err == nil {
			return result.([]byte), nil
		}

		// If circuit is open, propagate immediately.
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("%s: %w: %v", c.name, errCircuitOpen, err)
		}
		// Client errors other than 429 will not improve on retry.
		if errors.Is(err, errUnexpected) {
			return nil, fmt.Errorf("%s: %w", c.name, err)
		}
		if attempt >= c.backoff.MaxRetries {
			return nil, fmt.Errorf("%s: %w", c.name, err)
		}

		delay := c.backoff.InitialInterval * time.Duration(math.Pow(2, float64(attempt)))
		if delay > c.backoff.MaxInterval && c.backoff.MaxInterval > 0 {
			delay = c.backoff.MaxInterval
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
}

func (c *resilientClient) roundTrip(req *http.Request) ([]byte, error) {
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	// Handle rate limiting and server errors explicitly.
	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, errRateLimited
	}
	if resp.StatusCode >= 500 {
		return nil, fmt.Errorf("%w: %d", errServerError, resp.StatusCode)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: %d", errUnexpected, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	return body, nil
}
