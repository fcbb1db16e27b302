// Package client provides the HTTP fetch path for the DonorsChoose listing
// API: one GET per page, JSON decoding and classified errors.
//
// Failures are never retried and never turned into an empty page.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/Sternrassler/donorschoose-client/pkg/query"
	"github.com/Sternrassler/donorschoose-client/pkg/results"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Prometheus metrics for listing API requests.
var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dc_requests_total",
		Help: "Total listing API requests by status",
	}, []string{"status"})

	requestDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "dc_request_duration_seconds",
		Help:    "Listing API request duration in seconds",
		Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10},
	})

	errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dc_errors_total",
		Help: "Total listing API errors by class",
	}, []string{"class"})
)

// maxErrorBody caps how much of an error response is kept for the message.
const maxErrorBody = 512

// Client fetches listing pages over HTTP.
type Client struct {
	httpClient *http.Client
	config     Config
	logger     zerolog.Logger
}

// Config holds the client configuration.
type Config struct {
	// UserAgent header sent with every request (required).
	UserAgent string

	// Timeout bounds a single request, including reading the body.
	Timeout time.Duration
}

// DefaultConfig returns a default configuration.
func DefaultConfig(userAgent string) Config {
	return Config{
		UserAgent: userAgent,
		Timeout:   30 * time.Second,
	}
}

// New creates a new listing API client.
func New(cfg Config) (*Client, error) {
	if cfg.UserAgent == "" {
		return nil, fmt.Errorf("user-agent is required")
	}
	if cfg.Timeout < 0 {
		return nil, fmt.Errorf("timeout must not be negative (got %s)", cfg.Timeout)
	}

	return &Client{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		config: cfg,
		logger: log.With().Str("component", "listing-client").Logger(),
	}, nil
}

// Do executes a request with the client's headers, logging and metrics.
// Network failures come back as *APIError; any HTTP status is returned to
// the caller as a response.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	startTime := time.Now()
	defer func() {
		requestDuration.Observe(time.Since(startTime).Seconds())
	}()

	req.Header.Set("User-Agent", c.config.UserAgent)
	req.Header.Set("Accept", "application/json")

	c.logger.Debug().
		Str("url", redactURL(req.URL)).
		Str("method", req.Method).
		Msg("Executing listing request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		redactError(err)
		c.logger.Error().Err(err).Str("url", redactURL(req.URL)).Msg("HTTP request failed")
		errorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
		requestsTotal.WithLabelValues("network_error").Inc()
		return nil, &APIError{
			ErrorClass: ErrorClassNetwork,
			Message:    "request failed",
			Err:        err,
		}
	}

	requestsTotal.WithLabelValues(strconv.Itoa(resp.StatusCode)).Inc()
	return resp, nil
}

// FetchPage GETs one listing page and decodes it.
func (c *Client) FetchPage(ctx context.Context, r *query.Request) (*results.Page, error) {
	if r == nil {
		return nil, fmt.Errorf("request descriptor is required")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if class := classifyStatus(resp.StatusCode); class != "" {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		errorsTotal.WithLabelValues(string(class)).Inc()

		c.logger.Warn().
			Int("status", resp.StatusCode).
			Str("error_class", string(class)).
			Int("index", r.Start).
			Msg("Listing request error")

		return nil, &APIError{
			StatusCode: resp.StatusCode,
			ErrorClass: class,
			Message:    statusMessage(resp, body),
		}
	}

	var page results.Page
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		return nil, c.decodeError(resp.StatusCode, "invalid JSON body", err)
	}
	if page.Proposals == nil {
		return nil, c.decodeError(resp.StatusCode, "response has no proposals member", nil)
	}

	c.logger.Debug().
		Int("index", r.Start).
		Int("proposals", len(page.Proposals)).
		Int("total", page.TotalProposals.Int()).
		Msg("Listing page decoded")

	return &page, nil
}

// Close releases idle connections.
func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

// SetHTTPClient sets a custom HTTP client (for testing).
func (c *Client) SetHTTPClient(client *http.Client) {
	c.httpClient = client
}

func (c *Client) decodeError(status int, msg string, err error) error {
	errorsTotal.WithLabelValues(string(ErrorClassDecode)).Inc()
	c.logger.Warn().Err(err).Int("status", status).Msg("Listing response not decodable")
	return &APIError{
		StatusCode: status,
		ErrorClass: ErrorClassDecode,
		Message:    msg,
		Err:        err,
	}
}

func statusMessage(resp *http.Response, body []byte) string {
	if len(body) == 0 {
		return resp.Status
	}
	return resp.Status + ": " + string(body)
}

// apiKeyParam is the query parameter carrying the credential.
const apiKeyParam = "APIKey"

// redactURL hides the API key in logged URLs. Parameter order is kept as sent.
func redactURL(u *url.URL) string {
	if u == nil {
		return ""
	}
	if u.RawQuery == "" {
		return u.String()
	}
	parts := strings.Split(u.RawQuery, "&")
	changed := false
	for i, part := range parts {
		name, _, _ := strings.Cut(part, "=")
		if name == apiKeyParam {
			parts[i] = apiKeyParam + "=REDACTED"
			changed = true
		}
	}
	if !changed {
		return u.String()
	}
	redacted := *u
	redacted.RawQuery = strings.Join(parts, "&")
	return redacted.String()
}

// redactError rewrites the URL carried by a *url.Error in place so the key
// never reaches logs or callers.
func redactError(err error) {
	var ue *url.Error
	if !errors.As(err, &ue) {
		return
	}
	u, perr := url.Parse(ue.URL)
	if perr != nil {
		ue.URL = ""
		return
	}
	ue.URL = redactURL(u)
}
