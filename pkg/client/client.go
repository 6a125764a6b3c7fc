// Package client provides the Kaspa REST API HTTP client: transaction count
// lookups and bounded single-page transaction fetches with field selection
// and previous-outpoint resolution.
//
// The client performs exactly one outbound request per call and surfaces
// every failure (transport, non-2xx status, malformed payload) to the caller
// instead of retrying; retrieval-level failure bookkeeping lives in
// pkg/pagination.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/kaspaforpowershell/kaspa-txhistory/pkg/cache"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

// Prometheus metrics for API client operations.
var (
	apiRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "kaspa_api_requests_total",
		Help: "Total Kaspa API requests by endpoint and status",
	}, []string{"endpoint", "status"})

	apiRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "kaspa_api_request_duration_seconds",
		Help:    "Kaspa API request duration in seconds by endpoint",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10},
	}, []string{"endpoint"})

	apiErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "kaspa_api_errors_total",
		Help: "Total Kaspa API errors by class",
	}, []string{"class"})
)

const (
	// DefaultBaseURL is the public Kaspa REST API.
	DefaultBaseURL = "https://api.kaspa.org"

	// MaxPageSize is the API's hard per-call page size ceiling.
	MaxPageSize = 500
)

// Client is the Kaspa REST API client.
type Client struct {
	httpClient *http.Client
	baseURL    string
	userAgent  string
	limiter    *rate.Limiter
	cache      *cache.Manager
	logger     zerolog.Logger
}

// Config holds the client configuration.
type Config struct {
	// BaseURL of the REST API (default: DefaultBaseURL).
	BaseURL string

	// User-Agent header sent with every request.
	// Format: "AppName/Version (contact@example.com)"
	UserAgent string

	// Cache is an optional Redis-backed response cache; nil disables caching.
	Cache *cache.Manager

	// RequestsPerSecond enables fixed client-side request pacing when > 0.
	RequestsPerSecond float64

	// Timeout per HTTP request. Zero means no timeout; a hung request then
	// stalls its round until the caller's context is cancelled.
	Timeout time.Duration

	// HTTPClient overrides the underlying HTTP client (for testing).
	HTTPClient *http.Client
}

// DefaultConfig returns a safe default configuration.
func DefaultConfig(userAgent string) Config {
	return Config{
		BaseURL:   DefaultBaseURL,
		UserAgent: userAgent,
	}
}

// New creates a new Kaspa API client.
func New(cfg Config) (*Client, error) {
	if cfg.UserAgent == "" {
		return nil, fmt.Errorf("user-agent is required")
	}

	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{
			Timeout: cfg.Timeout,
		}
	}

	var limiter *rate.Limiter
	if cfg.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}

	logger := log.With().Str("component", "kaspa-client").Logger()

	return &Client{
		httpClient: httpClient,
		baseURL:    cfg.BaseURL,
		userAgent:  cfg.UserAgent,
		limiter:    limiter,
		cache:      cfg.Cache,
		logger:     logger,
	}, nil
}

// CountTransactions returns the total number of transactions known for an
// address.
func (c *Client) CountTransactions(ctx context.Context, address string) (uint64, error) {
	if address == "" {
		return 0, fmt.Errorf("address is required")
	}

	endpoint := "/addresses/" + url.PathEscape(address) + "/transactions-count"

	body, err := c.get(ctx, endpoint, nil)
	if err != nil {
		return 0, err
	}

	var count countResponse
	if err := json.Unmarshal(body, &count); err != nil {
		apiErrorsTotal.WithLabelValues(string(ErrorClassMalformed)).Inc()
		return 0, &APIError{
			ErrorClass: ErrorClassMalformed,
			Endpoint:   endpoint,
			Message:    "decode transaction count",
			Err:        err,
		}
	}

	return count.Total, nil
}

// FetchTransactionPage performs one bounded call against the paged listing
// endpoint and returns the transactions of that page in upstream order.
func (c *Client) FetchTransactionPage(ctx context.Context, req PageRequest) ([]TransactionRecord, error) {
	if req.Address == "" {
		return nil, fmt.Errorf("address is required")
	}
	if req.Limit <= 0 || req.Limit > MaxPageSize {
		return nil, fmt.Errorf("limit must be 1..%d (got %d)", MaxPageSize, req.Limit)
	}

	endpoint := "/addresses/" + url.PathEscape(req.Address) + "/full-transactions"

	query := url.Values{}
	query.Set("limit", strconv.Itoa(req.Limit))
	query.Set("offset", strconv.FormatUint(req.Offset, 10))
	query.Set("resolve_previous_outpoints", req.ResolvePreviousOutpoints.QueryValue())
	if !req.Fields.IsAll() {
		query.Set("fields", req.Fields.QueryValue())
	}

	body, err := c.get(ctx, endpoint, query)
	if err != nil {
		return nil, err
	}

	var records []TransactionRecord
	if err := json.Unmarshal(body, &records); err != nil {
		apiErrorsTotal.WithLabelValues(string(ErrorClassMalformed)).Inc()
		return nil, &APIError{
			ErrorClass: ErrorClassMalformed,
			Endpoint:   endpoint,
			Message:    "decode transaction list",
			Err:        err,
		}
	}

	return records, nil
}

// get executes one GET request and returns the raw response body.
func (c *Client) get(ctx context.Context, endpoint string, query url.Values) ([]byte, error) {
	startTime := time.Now()
	defer func() {
		apiRequestDuration.WithLabelValues(endpoint).Observe(time.Since(startTime).Seconds())
	}()

	// Serve from cache when configured
	var cacheKey cache.Key
	if c.cache != nil {
		cacheKey = cache.Key{Endpoint: endpoint, QueryParams: query}
		data, err := c.cache.Get(ctx, cacheKey)
		if err == nil {
			c.logger.Debug().Str("endpoint", endpoint).Msg("Cache hit")
			return data, nil
		}
		if err != cache.ErrCacheMiss {
			c.logger.Warn().Err(err).Str("endpoint", endpoint).Msg("Cache get error")
		}
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter wait: %w", err)
		}
	}

	requestURL := c.baseURL + endpoint
	if len(query) > 0 {
		requestURL += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	c.logger.Debug().
		Str("endpoint", endpoint).
		Str("query", query.Encode()).
		Msg("Executing API request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		apiErrorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
		apiRequestsTotal.WithLabelValues(endpoint, "network_error").Inc()
		return nil, &APIError{
			ErrorClass: ErrorClassNetwork,
			Endpoint:   endpoint,
			Message:    "request failed",
			Err:        err,
		}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		apiErrorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
		apiRequestsTotal.WithLabelValues(endpoint, "network_error").Inc()
		return nil, &APIError{
			ErrorClass: ErrorClassNetwork,
			Endpoint:   endpoint,
			Message:    "read response body",
			Err:        err,
		}
	}

	apiRequestsTotal.WithLabelValues(endpoint, strconv.Itoa(resp.StatusCode)).Inc()

	if resp.StatusCode != http.StatusOK {
		errClass := classifyStatus(resp.StatusCode)
		apiErrorsTotal.WithLabelValues(string(errClass)).Inc()
		return nil, &APIError{
			StatusCode: resp.StatusCode,
			ErrorClass: errClass,
			Endpoint:   endpoint,
			Message:    resp.Status,
		}
	}

	if c.cache != nil {
		if err := c.cache.Set(ctx, cacheKey, body); err != nil {
			c.logger.Warn().Err(err).Str("endpoint", endpoint).Msg("Failed to cache response")
		}
	}

	return body, nil
}

// BaseURL returns the configured API base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// SetHTTPClient sets a custom HTTP client (for testing).
func (c *Client) SetHTTPClient(client *http.Client) {
	c.httpClient = client
}
