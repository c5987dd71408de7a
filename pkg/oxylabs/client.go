package oxylabs

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

const (
	SourceProduct     = "amazon_product"
	SourceBestSellers = "amazon_bestsellers"

	DefaultBaseURL = "https://realtime.oxylabs.io"
)

// Client represents an Oxylabs realtime API client
type Client struct {
	httpClient *http.Client
	username   string
	password   string
	baseURL    string
	domain     string
	limiter    *rate.Limiter
}

// Option customizes a Client
type Option func(*Client)

// WithHTTPClient swaps the underlying http.Client, used by tests
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// New creates a new Oxylabs client limited to requestsPerMinute
func New(username, password, baseURL, domain string, requestsPerMinute int, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if domain == "" {
		domain = "com"
	}

	limit := rate.Inf
	if requestsPerMinute > 0 {
		limit = rate.Every(time.Minute / time.Duration(requestsPerMinute))
	}

	c := &Client{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		username:   username,
		password:   password,
		baseURL:    strings.TrimRight(baseURL, "/"),
		domain:     domain,
		limiter:    rate.NewLimiter(limit, 1),
	}
	for _, opt := range opts {
		opt(c)
	}

	log.Info().
		Int("requests_per_minute", requestsPerMinute).
		Str("base_url", c.baseURL).
		Str("domain", domain).
		Msg("Initializing Oxylabs API client")

	return c
}

// query is the request body accepted by /v1/queries
type query struct {
	Source    string `json:"source"`
	Domain    string `json:"domain"`
	Query     string `json:"query"`
	StartPage int    `json:"start_page,omitempty"`
	Pages     int    `json:"pages,omitempty"`
	Parse     bool   `json:"parse"`
}

// post sends one realtime query and returns the raw response body
func (c *Client) post(ctx context.Context, q query) ([]byte, error) {
	if c.username == "" || c.password == "" {
		return nil, ErrMissingCredentials
	}

	requestID := uuid.NewString()
	startTime := time.Now()
	url := c.baseURL + "/v1/queries"

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("waiting for rate limit: %w", err)
	}
	waitDuration := time.Since(startTime)

	body, err := json.Marshal(q)
	if err != nil {
		return nil, fmt.Errorf("error encoding query: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", err)
	}
	req.SetBasicAuth(c.username, c.password)
	req.Header.Set("Content-Type", "application/json")

	log.Debug().
		Str("request_id", requestID).
		Str("source", q.Source).
		Str("query", q.Query).
		Int("start_page", q.StartPage).
		Dur("wait_duration", waitDuration).
		Msg("Executing Oxylabs request")

	execStart := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		log.Error().
			Str("request_id", requestID).
			Err(err).
			Str("source", q.Source).
			Dur("exec_duration", time.Since(execStart)).
			Msg("Error executing request")
		return nil, fmt.Errorf("error making request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("error reading response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := parseAPIError(resp.StatusCode, respBody)
		log.Error().
			Str("request_id", requestID).
			Err(apiErr).
			Str("source", q.Source).
			Str("query", q.Query).
			Int("status_code", resp.StatusCode).
			Dur("total_duration", time.Since(startTime)).
			Msg("API returned error response")
		return nil, apiErr
	}

	log.Debug().
		Str("request_id", requestID).
		Str("source", q.Source).
		Int("status_code", resp.StatusCode).
		Int("response_size", len(respBody)).
		Dur("exec_duration", time.Since(execStart)).
		Dur("total_duration", time.Since(startTime)).
		Msg("API request completed successfully")

	return respBody, nil
}

// parseAPIError extracts error information from the API response
func parseAPIError(statusCode int, respBody []byte) error {
	var errResp struct {
		Message string `json:"message"`
	}

	if err := json.Unmarshal(respBody, &errResp); err == nil && errResp.Message != "" {
		return &APIError{StatusCode: statusCode, Message: errResp.Message}
	}

	return &APIError{StatusCode: statusCode, Message: http.StatusText(statusCode)}
}
