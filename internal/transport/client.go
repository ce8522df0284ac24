// Package transport is the HTTP core shared by every venue adapter: one
// resty.Client wrapped with exponential-backoff retry, a per-instance
// circuit breaker, and uniform status/body error classification. Adapters
// never call resty directly — they go through Client.Do so retry, breaker,
// and error-taxonomy behavior is identical across venues.
package transport

import (
	"context"
	"log/slog"
	"math/rand"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"

	"github.com/perpx/unified/pkg/unified"
)

// Config configures one Client instance. BaseURL and Venue are required;
// everything else falls back to spec defaults.
type Config struct {
	BaseURL string
	Venue   string
	Timeout time.Duration // default 10s

	Retry   RetryConfig
	Breaker BreakerConfig

	// ErrorMapper lets the venue recognize its own error body shapes before
	// DefaultErrorMapper is tried.
	ErrorMapper ErrorMapper

	Logger *slog.Logger
}

// Client is the shared HTTP transport. One Client is constructed per
// adapter instance; its circuit breaker and retry policy apply uniformly
// to every request issued through it, never per-endpoint.
type Client struct {
	http    *resty.Client
	breaker *breaker
	retry   RetryConfig
	mapper  ErrorMapper
	venue   string
	logger  *slog.Logger

	rng *rand.Rand
}

// New builds a Client from cfg.
func New(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "transport", "venue", cfg.Venue)

	httpClient := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(timeout).
		SetRetryCount(0). // retry is driven by retry.go, not resty's own loop
		SetHeader("Content-Type", "application/json")

	return &Client{
		http:    httpClient,
		breaker: newBreaker(cfg.Breaker),
		retry:   cfg.Retry.withDefaults(),
		mapper:  cfg.ErrorMapper,
		venue:   cfg.Venue,
		logger:  logger,
		rng:     rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Request is one outgoing call, built by an adapter from a
// unified.SignedRequest after auth has decorated it.
type Request struct {
	Method  string
	Path    string
	Headers map[string]string
	Query   map[string]string
	Body    []byte
	Result  any // destination for JSON-decoded response body, may be nil
}

// Do executes req, applying the circuit breaker first, then the retry loop,
// classifying any failure per errors.go. A CircuitOpen error never counts
// against the breaker's own failure count — it short-circuits before a
// request is ever attempted.
func (c *Client) Do(ctx context.Context, req Request) (*resty.Response, error) {
	correlationID := uuid.New().String()
	if req.Headers == nil {
		req.Headers = make(map[string]string, 1)
	}
	req.Headers["X-Request-Id"] = correlationID

	var lastErr error

	for attempt := 1; attempt <= c.retry.MaxAttempts; attempt++ {
		if err := c.breaker.allow(); err != nil {
			return nil, attachCorrelation(err, correlationID)
		}

		resp, err := c.attempt(ctx, req)
		if err == nil {
			c.breaker.recordSuccess()
			return resp, nil
		}

		lastErr = attachCorrelation(err, correlationID)
		c.breaker.recordFailure()

		if !c.retryable(err) || attempt == c.retry.MaxAttempts {
			break
		}

		delay := backoffDelay(c.retry, attempt, c.rng)
		if uerr, ok := lastErr.(*unified.Error); ok && uerr.Category == unified.CategoryRateLimit && uerr.RetryAfter != nil {
			delay = time.Duration(*uerr.RetryAfter) * time.Second
		}
		c.logger.Debug("retrying request", "path", req.Path, "attempt", attempt, "delay", delay, "cause", err, "correlation_id", correlationID)

		select {
		case <-ctx.Done():
			return nil, unified.Wrap(unified.CategoryCanceled, c.venue, ctx.Err()).WithCorrelationID(correlationID)
		case <-time.After(delay):
		}
	}

	return nil, lastErr
}

// attachCorrelation stamps id onto err if it's a *unified.Error, so callers
// can log or report the same id that went out on the X-Request-Id header.
func attachCorrelation(err error, id string) error {
	if uerr, ok := err.(*unified.Error); ok {
		return uerr.WithCorrelationID(id)
	}
	return err
}

func (c *Client) attempt(ctx context.Context, req Request) (*resty.Response, error) {
	r := c.http.R().SetContext(ctx)
	if req.Headers != nil {
		r.SetHeaders(req.Headers)
	}
	if req.Query != nil {
		r.SetQueryParams(req.Query)
	}
	if req.Body != nil {
		r.SetBody(req.Body)
	}
	if req.Result != nil {
		r.SetResult(req.Result)
	}

	resp, err := r.Execute(req.Method, req.Path)
	if err != nil {
		return nil, unified.Wrap(unified.CategoryNetwork, c.venue, err)
	}

	status := resp.StatusCode()
	if status >= http.StatusOK && status < http.StatusMultipleChoices {
		return resp, nil
	}

	category := classify(status, resp.Body(), c.mapper)
	uerr := unified.New(category, c.venue, resp.String()).WithCode(httpStatusText(status))
	if category == unified.CategoryRateLimit {
		if seconds, ok := parseRetryAfter(resp.Header().Get("Retry-After")); ok {
			uerr = uerr.WithRetryAfter(seconds)
		}
	}
	return resp, uerr
}

func (c *Client) retryable(err error) bool {
	var uerr *unified.Error
	if e, ok := err.(*unified.Error); ok {
		uerr = e
	} else {
		return false
	}
	return uerr.Category.Retryable()
}

func httpStatusText(status int) string {
	return http.StatusText(status)
}

// parseRetryAfter interprets the Retry-After header as an integer number of
// seconds; venues that return an HTTP-date instead are not handled here,
// since every venue in this module's scope uses the delta-seconds form.
func parseRetryAfter(value string) (int, bool) {
	if value == "" {
		return 0, false
	}
	n := 0
	for _, r := range value {
		if r < '0' || r > '9' {
			return 0, false
		}
		n = n*10 + int(r-'0')
	}
	return n, true
}

// Get is a convenience wrapper over Do for GET requests.
func (c *Client) Get(ctx context.Context, path string, query map[string]string, result any) error {
	_, err := c.Do(ctx, Request{Method: http.MethodGet, Path: path, Query: query, Result: result})
	return err
}

// Post is a convenience wrapper over Do for POST requests carrying a signed
// body and headers.
func (c *Client) Post(ctx context.Context, signed unified.SignedRequest, result any) error {
	_, err := c.Do(ctx, Request{Method: http.MethodPost, Path: signed.Path, Headers: signed.Headers, Body: signed.Body, Result: result})
	return err
}

// Put is a convenience wrapper over Do for PUT requests carrying a signed
// body and headers.
func (c *Client) Put(ctx context.Context, signed unified.SignedRequest, result any) error {
	_, err := c.Do(ctx, Request{Method: http.MethodPut, Path: signed.Path, Headers: signed.Headers, Body: signed.Body, Result: result})
	return err
}

// Delete is a convenience wrapper over Do for DELETE requests carrying a
// signed body and headers.
func (c *Client) Delete(ctx context.Context, signed unified.SignedRequest, result any) error {
	_, err := c.Do(ctx, Request{Method: http.MethodDelete, Path: signed.Path, Headers: signed.Headers, Body: signed.Body, Result: result})
	return err
}

// BreakerState reports the circuit breaker's current state, for adapters
// that want to surface it (e.g. in a health check) without tripping it.
func (c *Client) BreakerState() string {
	switch c.breaker.snapshot() {
	case breakerOpen:
		return "open"
	case breakerHalfOpen:
		return "half_open"
	default:
		return "closed"
	}
}
