// Package fetcher performs gated JSON calls against the external providers.
//
// Every call goes through the process-wide gate, applies a per-attempt
// timeout, and retries transient failures a bounded number of times.
// Header values support ${ENV_VAR} expansion so credentials stay out of
// config files.
package fetcher

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"domainscout/research/internal/gate"
	"domainscout/research/internal/metrics"
)

// Verdict classifies a failed provider call.
type Verdict string

const (
	// VerdictTransient covers timeouts, connection errors, and 5xx after
	// the retry budget is spent.
	VerdictTransient Verdict = "transient"
	// VerdictRateLimited means the provider kept answering 429.
	VerdictRateLimited Verdict = "rate_limited"
	// VerdictMalformed means the payload was not decodable JSON.
	VerdictMalformed Verdict = "malformed"
	// VerdictRejected covers non-retryable HTTP statuses (4xx other than 429).
	VerdictRejected Verdict = "rejected"
)

// Error is a classified provider-call failure.
type Error struct {
	Provider string
	Verdict  Verdict
	Err      error
}

func (e *Error) Error() string {
	return fmt.Sprintf("fetcher: %s: %s: %v", e.Provider, e.Verdict, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// VerdictOf extracts the verdict from err, or "" if err is not a fetcher error.
func VerdictOf(err error) Verdict {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Verdict
	}
	return ""
}

// IsRateLimited reports whether err is a rate-limited provider failure.
func IsRateLimited(err error) bool { return VerdictOf(err) == VerdictRateLimited }

// IsMalformed reports whether err is a malformed-payload failure.
func IsMalformed(err error) bool { return VerdictOf(err) == VerdictMalformed }

// Config tunes the client.
type Config struct {
	// Timeout bounds each attempt. Default: 30s.
	Timeout time.Duration `yaml:"timeout"`
	// MaxBytes caps the response body. Default: 10MB.
	MaxBytes int64 `yaml:"max_bytes"`
	// MaxRetries is how many times a transient or throttled attempt is
	// redone before the call fails. Default: 3.
	MaxRetries int `yaml:"max_retries"`
	// RetryBase is the backoff base after a 429: base, 2*base, 4*base...
	// Transient errors retry without sleeping; requeueing on the gate is
	// the only delay. Default: 2s.
	RetryBase time.Duration `yaml:"retry_base"`
	UserAgent string        `yaml:"user_agent"`
}

func (c *Config) defaults() {
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	if c.MaxBytes <= 0 {
		c.MaxBytes = 10 * 1024 * 1024
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = 3
	}
	if c.RetryBase <= 0 {
		c.RetryBase = 2 * time.Second
	}
	if c.UserAgent == "" {
		c.UserAgent = "domainscout/1.0"
	}
}

// Client is safe for concurrent use by every pipeline run.
type Client struct {
	http    *http.Client
	gate    *gate.Gate
	config  Config
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// New creates a Client. g must be the process-wide gate. m may be nil.
func New(g *gate.Gate, cfg Config, m *metrics.Metrics, logger *slog.Logger) *Client {
	cfg.defaults()
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		http:    &http.Client{Timeout: cfg.Timeout},
		gate:    g,
		config:  cfg,
		metrics: m,
		logger:  logger,
	}
}

// DoJSON performs one gated provider call and decodes the JSON response.
// provider is a short label ("serp", "whois") used in logs and metrics.
// Header values are ${ENV_VAR}-expanded. body may be nil.
func (c *Client) DoJSON(ctx context.Context, provider, method, url string, headers map[string]string, body []byte) (any, error) {
	var lastErr error
	for attempt := 0; attempt <= c.config.MaxRetries; attempt++ {
		raw, err := c.attempt(ctx, provider, method, url, headers, body)
		if err == nil {
			return raw, nil
		}
		lastErr = err

		var fe *Error
		if !errors.As(err, &fe) {
			return nil, err // context ended while queueing
		}
		switch fe.Verdict {
		case VerdictMalformed, VerdictRejected:
			return nil, c.fail(fe)
		case VerdictRateLimited:
			c.gate.Penalize()
			if attempt < c.config.MaxRetries {
				delay := c.config.RetryBase << attempt
				c.logger.Debug("provider throttled, backing off",
					"provider", provider, "delay", delay, "attempt", attempt+1)
				select {
				case <-ctx.Done():
					return nil, ctx.Err()
				case <-time.After(delay):
				}
			}
		case VerdictTransient:
			c.logger.Debug("provider call failed, retrying",
				"provider", provider, "error", fe.Err, "attempt", attempt+1)
		}
	}
	var fe *Error
	errors.As(lastErr, &fe)
	return nil, c.fail(fe)
}

func (c *Client) fail(fe *Error) error {
	if c.metrics != nil {
		c.metrics.ProviderFailures.WithLabelValues(fe.Provider, string(fe.Verdict)).Inc()
	}
	return fe
}

// attempt performs a single gated HTTP round trip.
func (c *Client) attempt(ctx context.Context, provider, method, url string, headers map[string]string, body []byte) (any, error) {
	if err := c.gate.Acquire(ctx); err != nil {
		return nil, err
	}
	defer c.gate.Release()

	if c.metrics != nil {
		c.metrics.ProviderCalls.WithLabelValues(provider).Inc()
		c.metrics.CallsInFlight.Inc()
		defer c.metrics.CallsInFlight.Dec()
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, &Error{Provider: provider, Verdict: VerdictRejected, Err: err}
	}
	req.Header.Set("User-Agent", c.config.UserAgent)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, os.Expand(v, os.Getenv))
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &Error{Provider: provider, Verdict: VerdictTransient, Err: err}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, &Error{Provider: provider, Verdict: VerdictRateLimited, Err: fmt.Errorf("http 429")}
	case resp.StatusCode >= 500:
		return nil, &Error{Provider: provider, Verdict: VerdictTransient, Err: fmt.Errorf("http %d", resp.StatusCode)}
	case resp.StatusCode >= 400:
		return nil, &Error{Provider: provider, Verdict: VerdictRejected, Err: fmt.Errorf("http %d", resp.StatusCode)}
	}

	payload, err := io.ReadAll(io.LimitReader(resp.Body, c.config.MaxBytes))
	if err != nil {
		return nil, &Error{Provider: provider, Verdict: VerdictTransient, Err: fmt.Errorf("read body: %w", err)}
	}

	var raw any
	if err := json.Unmarshal(payload, &raw); err != nil {
		return nil, &Error{Provider: provider, Verdict: VerdictMalformed, Err: fmt.Errorf("json decode: %w", err)}
	}
	return raw, nil
}
