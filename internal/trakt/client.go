// Package trakt is a minimal client for the Trakt.tv API v2 covering the
// calls the daemon needs: device-flow authorization, token refresh, the
// current watch activity of a user, and community ratings.
package trakt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/patrickmn/go-cache"
)

// DefaultBaseURL is the public Trakt API endpoint.
const DefaultBaseURL = "https://api.trakt.tv"

const apiVersion = "2"

// ErrUnauthorized is returned when the access token is rejected.
var ErrUnauthorized = errors.New("unauthorized")

// ErrGrantRevoked is returned when a refresh token is no longer valid and
// the user must re-authorize via the device flow.
var ErrGrantRevoked = errors.New("grant revoked")

// Device-flow poll outcomes. ErrAuthorizationPending and ErrSlowDown keep
// the flow alive; the rest terminate it.
var (
	ErrAuthorizationPending = errors.New("authorization pending")
	ErrSlowDown             = errors.New("polling too quickly")
	ErrInvalidCode          = errors.New("invalid device code")
	ErrCodeAlreadyUsed      = errors.New("device code already approved")
	ErrCodeExpired          = errors.New("device code expired")
	ErrAccessDenied         = errors.New("authorization denied")
)

// RateLimitError reports a 429 response. RetryAfter is zero when the
// server did not say how long to wait.
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("rate limited, retry after %s", e.RetryAfter)
	}
	return "rate limited"
}

// ratingRetryCooldown is how long a failed ratings lookup is remembered
// before the next attempt. Successful lookups are kept for the process
// lifetime.
const ratingRetryCooldown = 10 * time.Minute

// ///////////////////////////////////////////////

// Client talks to the Trakt API. All methods are safe for concurrent use.
type Client struct {
	baseURL      string
	clientID     string
	clientSecret string
	http         *retryablehttp.Client
	ratings      *cache.Cache
}

// NewClient returns a client for the given application credentials.
// baseURL overrides the public API endpoint and is empty outside tests.
func NewClient(clientID, clientSecret, baseURL string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL:      baseURL,
		clientID:     clientID,
		clientSecret: clientSecret,
		http:         newHTTPClient(),
		ratings:      cache.New(cache.NoExpiration, 0),
	}
}

func newHTTPClient() *retryablehttp.Client {
	c := retryablehttp.NewClient()
	c.HTTPClient.Timeout = 10 * time.Second
	c.RetryMax = 2
	c.RetryWaitMin = 500 * time.Millisecond
	c.RetryWaitMax = 2 * time.Second
	c.Logger = nil
	c.CheckRetry = checkRetry
	return c
}

// checkRetry retries transport failures and 5xx responses. Every 4xx
// carries device-flow or auth semantics and must reach the caller as-is,
// including 429.
func checkRetry(ctx context.Context, resp *http.Response, err error) (bool, error) {
	if ctx.Err() != nil {
		return false, ctx.Err()
	}
	if err != nil {
		return true, nil
	}
	if resp != nil && resp.StatusCode >= 500 {
		return true, nil
	}
	return false, nil
}

// do issues a request and returns the response without consuming the body.
// body is JSON-encoded when non-nil. token adds a Bearer header.
func (c *Client) do(ctx context.Context, method, path, token string, body any) (*http.Response, error) {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encoding %s body: %w", path, err)
		}
	}
	req, err := retryablehttp.NewRequestWithContext(ctx, method, c.baseURL+path, payload)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("trakt-api-version", apiVersion)
	req.Header.Set("trakt-api-key", c.clientID)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	return resp, nil
}

func decodeBody(resp *http.Response, v any) error {
	defer drain(resp.Body)
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

// drain consumes any leftover body so the connection can be reused.
func drain(body io.ReadCloser) {
	_, _ = io.Copy(io.Discard, io.LimitReader(body, 1<<16))
	body.Close()
}

// retryAfter parses a Retry-After header given in seconds.
func retryAfter(resp *http.Response) time.Duration {
	raw := resp.Header.Get("Retry-After")
	if raw == "" {
		return 0
	}
	secs, err := strconv.Atoi(raw)
	if err != nil || secs < 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}
