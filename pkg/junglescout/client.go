package junglescout

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

const (
	DefaultBaseURL = "https://api.junglescout.com"

	// MaxASINsPerRequest is the provider's per-call limit
	MaxASINsPerRequest = 10
)

var (
	ErrMissingAPIKey = errors.New("jungle scout API key is not configured")
	ErrTooManyASINs  = fmt.Errorf("at most %d asins per request", MaxASINsPerRequest)
)

// APIError is a non-2xx answer from the products endpoint
type APIError struct {
	StatusCode int
	Title      string
	Detail     string
}

func (e *APIError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("jungle scout API error: status %d: %s", e.StatusCode, e.Title)
	}
	return fmt.Sprintf("jungle scout API error: status %d: %s - %s", e.StatusCode, e.Title, e.Detail)
}

// Client represents a Jungle Scout API client
type Client struct {
	httpClient  *http.Client
	apiKey      string
	baseURL     string
	marketplace string
	limiter     *rate.Limiter
}

// Option customizes a Client
type Option func(*Client)

// WithHTTPClient swaps the underlying http.Client, used by tests
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// New creates a new Jungle Scout client limited to requestsPerMinute
func New(apiKey, baseURL, marketplace string, requestsPerMinute int, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if marketplace == "" {
		marketplace = "us"
	}

	limit := rate.Inf
	if requestsPerMinute > 0 {
		limit = rate.Every(time.Minute / time.Duration(requestsPerMinute))
	}

	c := &Client{
		httpClient:  &http.Client{Timeout: 30 * time.Second},
		apiKey:      apiKey,
		baseURL:     strings.TrimRight(baseURL, "/"),
		marketplace: marketplace,
		limiter:     rate.NewLimiter(limit, 1),
	}
	for _, opt := range opts {
		opt(c)
	}

	log.Info().
		Int("requests_per_minute", requestsPerMinute).
		Str("base_url", c.baseURL).
		Str("marketplace", marketplace).
		Msg("Initializing Jungle Scout API client")

	return c
}

// request performs a rate limited GET against the API
func (c *Client) request(ctx context.Context, endpoint string, params url.Values) ([]byte, error) {
	if c.apiKey == "" {
		return nil, ErrMissingAPIKey
	}

	requestID := uuid.NewString()
	startTime := time.Now()

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("waiting for rate limit: %w", err)
	}
	waitDuration := time.Since(startTime)

	u := c.baseURL + endpoint + "?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	log.Debug().
		Str("request_id", requestID).
		Str("url", u).
		Dur("wait_duration", waitDuration).
		Msg("Executing Jungle Scout request")

	execStart := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		log.Error().
			Str("request_id", requestID).
			Err(err).
			Str("url", u).
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
			Str("url", u).
			Int("status_code", resp.StatusCode).
			Dur("total_duration", time.Since(startTime)).
			Msg("API returned error response")
		return nil, apiErr
	}

	log.Debug().
		Str("request_id", requestID).
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
		Errors []struct {
			Title  string `json:"title"`
			Detail string `json:"detail"`
		} `json:"errors"`
	}

	if err := json.Unmarshal(respBody, &errResp); err == nil && len(errResp.Errors) > 0 {
		return &APIError{
			StatusCode: statusCode,
			Title:      errResp.Errors[0].Title,
			Detail:     errResp.Errors[0].Detail,
		}
	}

	return &APIError{StatusCode: statusCode, Title: http.StatusText(statusCode)}
}
