// Package client provides the signed Threat Stack HTTP client with retry,
// rate limiting, response caching, and error normalization.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/opswatch/threatstack-client/pkg/cache"
	"github.com/opswatch/threatstack-client/pkg/hawk"
	"github.com/opswatch/threatstack-client/pkg/ratelimit"
)

// DefaultBaseURL is the Threat Stack v2 API base.
const DefaultBaseURL = "https://api.threatstack.com"

const contentTypeJSON = "application/json"

// Prometheus metrics for API requests.
var (
	tsRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ts_requests_total",
		Help: "Total API requests by endpoint and outcome",
	}, []string{"endpoint", "status"})

	tsRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "ts_request_duration_seconds",
		Help:    "API request duration in seconds by endpoint",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10},
	}, []string{"endpoint"})

	tsErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ts_errors_total",
		Help: "Total transient API errors (non-JSON body or connection failure)",
	})
)

// Client issues Hawk-signed requests against the Threat Stack API.
type Client struct {
	httpClient *http.Client
	signer     *hawk.Signer
	cache      *cache.Manager
	limiter    *ratelimit.Tracker
	config     Config
	logger     zerolog.Logger
}

// Config holds the client configuration.
type Config struct {
	// BaseURL of the API; DefaultBaseURL when empty.
	BaseURL string

	// Credentials for Hawk signing (API_ID / API_KEY / sha256).
	Credentials hawk.Credentials

	// OrgID is bound into every signature's ext field.
	OrgID string

	// Redis enables the GET response cache and the shared 429 gate when
	// non-nil. Scripts run fine without it.
	Redis *redis.Client

	// CacheTTL for cached GET responses; caching is off when <= 0.
	CacheTTL time.Duration

	// Retry policy applied around every request.
	Retry RetryConfig

	// Timeout per HTTP request.
	Timeout time.Duration
}

// DefaultConfig returns a safe default configuration for one organization.
func DefaultConfig(creds hawk.Credentials, orgID string) Config {
	return Config{
		BaseURL:     DefaultBaseURL,
		Credentials: creds,
		OrgID:       orgID,
		Retry:       DefaultRetryConfig(),
		Timeout:     30 * time.Second,
	}
}

// New creates a client. Credential validation happens here, before any I/O.
func New(cfg Config) (*Client, error) {
	signer, err := hawk.NewSigner(cfg.Credentials)
	if err != nil {
		return nil, err
	}

	if cfg.OrgID == "" {
		return nil, fmt.Errorf("organization id is required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	logger := log.With().Str("component", "ts-client").Logger()

	c := &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		signer:     signer,
		config:     cfg,
		logger:     logger,
	}
	if cfg.Redis != nil {
		c.cache = cache.NewManager(cfg.Redis)
		c.limiter = ratelimit.NewTracker(cfg.Redis, logger)
	}
	return c, nil
}

// Get issues a signed GET and returns the raw JSON body.
func (c *Client) Get(ctx context.Context, path string, query url.Values) (json.RawMessage, error) {
	return c.do(ctx, http.MethodGet, path, query, nil)
}

// Put issues a signed PUT with a JSON body and returns the raw JSON body.
// The request body participates in the Hawk payload hash.
func (c *Client) Put(ctx context.Context, path string, body any) (json.RawMessage, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request body: %w", err)
	}
	return c.do(ctx, http.MethodPut, path, nil, data)
}

// do runs one logical request through cache, rate limiting, and retry.
// Every attempt is signed freshly: the Hawk MAC embeds the timestamp, so a
// reused header would go stale between attempts.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body []byte) (json.RawMessage, error) {
	fullURL := strings.TrimRight(c.config.BaseURL, "/") + path
	if len(query) > 0 {
		fullURL += "?" + query.Encode()
	}

	start := time.Now()
	defer func() {
		tsRequestDuration.WithLabelValues(path).Observe(time.Since(start).Seconds())
	}()

	cacheable := method == http.MethodGet && c.cache != nil && c.config.CacheTTL > 0
	cacheKey := cache.Key{OrgID: c.config.OrgID, Path: path, Query: query}

	if cacheable {
		entry, err := c.cache.Get(ctx, cacheKey)
		if err == nil {
			c.logger.Debug().Str("endpoint", path).Msg("Cache hit")
			tsRequestsTotal.WithLabelValues(path, "cached").Inc()
			return json.RawMessage(entry.Data), nil
		}
		if err != cache.ErrCacheMiss {
			c.logger.Warn().Err(err).Str("endpoint", path).Msg("Cache get error")
		}
	}

	var result json.RawMessage
	err := Retry(ctx, c.config.Retry, func() error {
		raw, err := c.attempt(ctx, method, path, fullURL, body)
		if err != nil {
			return err
		}
		result = raw
		return nil
	})
	if err != nil {
		return nil, err
	}

	if cacheable {
		entry := cache.NewEntry(result, c.config.CacheTTL)
		if err := c.cache.Set(ctx, cacheKey, entry); err != nil {
			c.logger.Warn().Err(err).Str("endpoint", path).Msg("Failed to cache response")
		}
	}
	return result, nil
}

// attempt performs one signed HTTP exchange. Success is any body that
// parses as JSON, regardless of HTTP status; a non-JSON body is normalized
// into a TransientError whose message carries the body text when present,
// else the status line.
func (c *Client) attempt(ctx context.Context, method, path, fullURL string, body []byte) (json.RawMessage, error) {
	if c.limiter != nil {
		allowed, err := c.limiter.ShouldAllowRequest(ctx)
		if err != nil {
			c.logger.Warn().Err(err).Msg("Rate limit check failed, proceeding")
		} else if !allowed {
			tsRequestsTotal.WithLabelValues(path, "rate_limited").Inc()
			return nil, &TransientError{Message: "request blocked: shared rate limit active"}
		}
	}

	header, err := c.signer.Header(fullURL, method, body, contentTypeJSON, c.config.OrgID)
	if err != nil {
		return nil, err
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, fullURL, reader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", header)
	req.Header.Set("Content-Type", contentTypeJSON)

	c.logger.Debug().
		Str("endpoint", path).
		Str("method", method).
		Msg("Executing API request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		tsErrorsTotal.Inc()
		tsRequestsTotal.WithLabelValues(path, "network_error").Inc()
		return nil, &TransientError{Message: "request failed", Err: err}
	}
	defer resp.Body.Close()

	if c.limiter != nil {
		if err := c.limiter.UpdateFromResponse(ctx, resp.StatusCode, resp.Header); err != nil {
			c.logger.Warn().Err(err).Msg("Failed to update rate limit state")
		}
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		tsErrorsTotal.Inc()
		tsRequestsTotal.WithLabelValues(path, "read_error").Inc()
		return nil, &TransientError{StatusCode: resp.StatusCode, Message: "read response body", Err: err}
	}

	if !json.Valid(data) {
		tsErrorsTotal.Inc()
		tsRequestsTotal.WithLabelValues(path, "invalid_body").Inc()

		msg := strings.TrimSpace(string(data))
		if msg == "" {
			msg = resp.Status
		}
		c.logger.Warn().
			Str("endpoint", path).
			Int("status", resp.StatusCode).
			Msg("Did not get valid JSON in response")
		return nil, &TransientError{StatusCode: resp.StatusCode, Message: msg}
	}

	tsRequestsTotal.WithLabelValues(path, fmt.Sprintf("%d", resp.StatusCode)).Inc()
	return json.RawMessage(data), nil
}

// SetHTTPClient sets a custom HTTP client (for testing).
func (c *Client) SetHTTPClient(client *http.Client) {
	c.httpClient = client
}

// Signer returns the underlying signer (for testing header round trips).
func (c *Client) Signer() *hawk.Signer {
	return c.signer
}
