// Package client calls the PGFN lookup service on behalf of the automation.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"pgfnsync/internal/platform/config"
	"pgfnsync/internal/registry/metrics"
	"pgfnsync/internal/registry/models"
	"pgfnsync/internal/upstream"
	"pgfnsync/pkg/domain"
	dErrors "pgfnsync/pkg/domain-errors"
	"pgfnsync/pkg/platform/circuit"
	"pgfnsync/pkg/platform/retry"
)

const upstreamName = "pgfn"

// maxBodyBytes caps how much of a response is read.
const maxBodyBytes = 1 << 20

// Client looks up tax-debt records with a bounded retry policy behind a
// circuit breaker.
type Client struct {
	baseURL       string
	httpClient    *http.Client
	timeout       time.Duration
	healthTimeout time.Duration
	userAgent     string
	policy        retry.Policy
	breaker       *circuit.Breaker
	logger        *slog.Logger
	metrics       *metrics.ClientMetrics
}

type Option func(*Client)

func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

func WithMetrics(m *metrics.ClientMetrics) Option {
	return func(c *Client) { c.metrics = m }
}

// WithHTTPClient replaces the default transport. Per-call timeouts still apply.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithSleep overrides the wait between retry attempts.
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(c *Client) { c.policy.Sleep = sleep }
}

// New builds a client from cfg. BreakerFailures of zero disables the breaker.
func New(cfg config.RegistryConfig, opts ...Option) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("registry base URL is required")
	}
	if _, err := url.Parse(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("parse registry base URL: %w", err)
	}

	c := &Client{
		baseURL:       cfg.BaseURL,
		httpClient:    &http.Client{},
		timeout:       cfg.Timeout,
		healthTimeout: cfg.HealthTimeout,
		userAgent:     cfg.UserAgent,
		logger:        slog.Default(),
		policy: retry.Policy{
			MaxAttempts: cfg.MaxRetries,
			Backoff:     retry.Linear(cfg.RetryBackoff),
			Retryable:   upstream.IsRetryable,
		},
	}
	for _, opt := range opts {
		opt(c)
	}

	c.policy.OnRetry = func(attempt int, wait time.Duration, err error) {
		c.metrics.IncrementRetries()
		c.logger.Warn("registry lookup attempt failed",
			"attempt", attempt,
			"max_attempts", cfg.MaxRetries,
			"retry_in_ms", wait.Milliseconds(),
			"error", err,
		)
	}

	if cfg.BreakerFailures > 0 {
		c.breaker = circuit.New(upstreamName,
			circuit.WithFailureThreshold(cfg.BreakerFailures),
			circuit.WithOpenTimeout(cfg.BreakerOpenFor),
			circuit.WithStateChange(func(name string, from, to circuit.State) {
				c.metrics.SetBreakerState(breakerGauge(to))
				c.logger.Warn("registry circuit breaker state changed",
					"breaker", name, "from", from, "to", to)
			}),
		)
	}
	return c, nil
}

// Lookup fetches the record for taxpayerID, retrying transient failures.
// Non-retryable failures (4xx, malformed bodies) are returned after one attempt
// and do not count against the breaker.
func (c *Client) Lookup(ctx context.Context, taxpayerID string) (*models.LookupResult, error) {
	clean := domain.CleanTaxpayerID(taxpayerID)
	if clean == "" {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "taxpayer id has no digits")
	}

	start := time.Now()
	var result *models.LookupResult
	var permanent error

	run := func() error {
		err := c.policy.Do(ctx, func(ctx context.Context) error {
			r, err := c.lookupOnce(ctx, clean)
			if err != nil {
				return err
			}
			result = r
			return nil
		})
		if err != nil && !upstream.IsRetryable(err) {
			permanent = err
			return nil
		}
		return err
	}

	var err error
	if c.breaker != nil {
		err = c.breaker.Execute(run)
		if errors.Is(err, circuit.ErrOpen) {
			err = upstream.New(upstream.CategoryOutage, upstreamName, "lookup", "circuit breaker open", err)
		}
	} else {
		err = run()
	}
	if err == nil {
		err = permanent
	}

	if err != nil {
		c.metrics.ObserveLookup("error", start)
		return nil, err
	}
	result.Duration = time.Since(start)
	c.metrics.ObserveLookup("success", start)
	c.logger.DebugContext(ctx, "registry lookup succeeded",
		"taxpayer_id", clean,
		"has_record", result.HasRecord(),
		"duration_ms", result.Duration.Milliseconds(),
	)
	return result, nil
}

func (c *Client) lookupOnce(ctx context.Context, clean string) (*models.LookupResult, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	endpoint := c.baseURL + "/api/cnpj/" + url.PathEscape(clean)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, upstream.New(upstream.CategoryInternal, upstreamName, "lookup", "build request", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, upstream.FromTransport(upstreamName, "lookup", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, upstream.FromTransport(upstreamName, "lookup", err)
	}
	return parseLookupResponse(clean, resp.StatusCode, body)
}

// parseLookupResponse turns a lookup service reply into a result. A reply with
// success=false is treated as a transient service failure.
func parseLookupResponse(clean string, status int, body []byte) (*models.LookupResult, error) {
	if status < 200 || status > 299 {
		var payload models.LookupResponse
		msg := ""
		if json.Unmarshal(body, &payload) == nil {
			msg = payload.Error
		}
		return nil, upstream.FromStatus(upstreamName, "lookup", status, msg)
	}

	var payload models.LookupResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, upstream.New(upstream.CategoryBadData, upstreamName, "lookup", "malformed response body", err)
	}
	if !payload.Success {
		msg := payload.Error
		if msg == "" {
			msg = "unknown error"
		}
		return nil, upstream.New(upstream.CategoryOutage, upstreamName, "lookup", "service reported success=false: "+msg, nil)
	}

	result := &models.LookupResult{
		TaxpayerID: clean,
		Record:     payload.Record,
	}
	if payload.Company != nil {
		result.EntityName = payload.Company.Name
	}
	return result, nil
}

// Health reports whether the lookup service answers GET /health with 200.
func (c *Client) Health(ctx context.Context) error {
	if c.healthTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.healthTimeout)
		defer cancel()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return upstream.New(upstream.CategoryInternal, upstreamName, "health", "build request", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return upstream.FromTransport(upstreamName, "health", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes))
	if resp.StatusCode != http.StatusOK {
		return upstream.FromStatus(upstreamName, "health", resp.StatusCode, "")
	}
	return nil
}

func breakerGauge(s circuit.State) float64 {
	switch s {
	case circuit.StateOpen:
		return 1
	case circuit.StateHalfOpen:
		return 0.5
	default:
		return 0
	}
}
