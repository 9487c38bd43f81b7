package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// ErrorResponse is the error body shape returned by the rental backend.
type ErrorResponse struct {
	Message string            `json:"message"`
	Error   string            `json:"error"`
	Errors  map[string]string `json:"errors"`
}

func (r ErrorResponse) text() string {
	if r.Message != "" {
		return r.Message
	}
	return r.Error
}

// Client is a thin HTTP client for the rental REST API.
// It handles Bearer token authentication, JSON marshaling, request ids,
// failure classification, and retry with exponential backoff on HTTP 429.
type Client struct {
	baseURL    string
	httpClient *http.Client
	maxRetries int
	log        zerolog.Logger
}

// NewClient creates a new API client. baseURL is the API root
// (e.g., https://rentals.example.com/api).
func NewClient(baseURL string, timeout time.Duration, maxRetries int, log zerolog.Logger) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
		maxRetries: maxRetries,
		log:        log.With().Str("component", "backend").Logger(),
	}
}

// Get performs an HTTP GET request and unmarshals the JSON response.
func (c *Client) Get(
	ctx context.Context,
	path string,
	token string,
	result interface{},
) error {
	return c.do(ctx, http.MethodGet, path, token, nil, result)
}

// Post performs an HTTP POST request with a JSON body and unmarshals
// the JSON response.
func (c *Client) Post(
	ctx context.Context,
	path string,
	token string,
	body interface{},
	result interface{},
) error {
	return c.do(ctx, http.MethodPost, path, token, body, result)
}

// do builds the request, attaches auth, retries on 429, and maps
// non-2xx responses to typed errors.
func (c *Client) do(
	ctx context.Context,
	method string,
	path string,
	token string,
	body interface{},
	result interface{},
) error {
	url := c.baseURL + path

	var payload []byte
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshaling request body: %w", err)
		}
		payload = data
	}

	requestID := uuid.NewString()
	log := c.log.With().
		Str("request_id", requestID).
		Str("method", method).
		Str("path", path).
		Logger()

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		var bodyReader io.Reader
		if payload != nil {
			bodyReader = bytes.NewReader(payload)
		}

		req, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
		if err != nil {
			return fmt.Errorf("creating request: %w", err)
		}

		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		req.Header.Set("Accept", "application/json")
		req.Header.Set("X-Request-Id", requestID)
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		start := time.Now()
		resp, err := c.httpClient.Do(req)
		if err != nil {
			log.Debug().Err(err).Msg("request failed")
			return fmt.Errorf("executing request %s %s: %w", method, path, err)
		}

		respBody, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()
		if readErr != nil {
			return fmt.Errorf("reading response body: %w", readErr)
		}

		log.Debug().
			Int("status", resp.StatusCode).
			Dur("elapsed", time.Since(start)).
			Int("attempt", attempt).
			Msg("request completed")

		if resp.StatusCode == http.StatusTooManyRequests {
			waitDuration := retryAfterDuration(resp, attempt)
			lastErr = &StatusError{
				StatusCode: resp.StatusCode,
				Method:     method,
				Path:       path,
				Body:       string(respBody),
			}

			if attempt == c.maxRetries {
				break
			}

			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(waitDuration):
				continue
			}
		}

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return classifyResponse(method, path, resp.StatusCode, respBody)
		}

		// No content to parse (e.g. 204).
		if result == nil || resp.StatusCode == http.StatusNoContent || len(respBody) == 0 {
			return nil
		}

		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf(
				"unmarshaling response from %s %s: %w: %v",
				method, path, ErrMalformedResponse, err,
			)
		}

		return nil
	}

	return fmt.Errorf(
		"max retries (%d) exceeded: %w", c.maxRetries, lastErr,
	)
}

// classifyResponse maps a non-2xx response into AuthError,
// ValidationError, or StatusError.
func classifyResponse(method, path string, status int, body []byte) error {
	var apiErr ErrorResponse
	parsed := json.Unmarshal(body, &apiErr) == nil
	msg := strings.TrimSpace(string(body))
	if parsed && apiErr.text() != "" {
		msg = apiErr.text()
	}

	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return &AuthError{StatusCode: status, Message: msg}
	case isInvalidTokenMessage(msg):
		return &AuthError{StatusCode: status, Message: msg}
	case status == http.StatusBadRequest || status == http.StatusUnprocessableEntity:
		vErr := &ValidationError{StatusCode: status, Message: msg}
		if parsed {
			vErr.Fields = apiErr.Errors
		}
		return vErr
	default:
		return &StatusError{
			StatusCode: status,
			Method:     method,
			Path:       path,
			Body:       msg,
		}
	}
}

// retryAfterDuration reads the Retry-After header and computes a wait
// duration. Falls back to exponential backoff if the header is missing.
func retryAfterDuration(resp *http.Response, attempt int) time.Duration {
	if header := resp.Header.Get("Retry-After"); header != "" {
		if seconds, err := strconv.Atoi(header); err == nil {
			return time.Duration(seconds) * time.Second
		}
	}

	// Exponential backoff: 1s, 2s, 4s, ...
	backoff := time.Duration(1<<uint(attempt)) * time.Second
	if backoff > 30*time.Second {
		backoff = 30 * time.Second
	}
	return backoff
}
