package trakt

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// redirectURI is the out-of-band value Trakt expects from device-flow apps.
const redirectURI = "urn:ietf:wg:oauth:2.0:oob"

// DeviceCode is the server's answer to a device-flow start. UserCode is
// what the user types at VerificationURL; DeviceCode is polled with.
type DeviceCode struct {
	DeviceCode      string `json:"device_code"`
	UserCode        string `json:"user_code"`
	VerificationURL string `json:"verification_url"`
	ExpiresIn       int    `json:"expires_in"`
	Interval        int    `json:"interval"`
}

// TokenGrant is an issued OAuth token pair. CreatedAt and ExpiresIn are
// unix seconds and a duration in seconds, as sent by Trakt.
type TokenGrant struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
	RefreshToken string `json:"refresh_token"`
	Scope        string `json:"scope"`
	CreatedAt    int64  `json:"created_at"`
}

// ExpiryTime returns the absolute expiry of the grant. now is used when
// the server omitted created_at.
func (g *TokenGrant) ExpiryTime(now time.Time) time.Time {
	created := now
	if g.CreatedAt > 0 {
		created = time.Unix(g.CreatedAt, 0)
	}
	return created.Add(time.Duration(g.ExpiresIn) * time.Second).UTC()
}

// ///////////////////////////////////////////////

// StartDeviceFlow requests a new device and user code pair.
func (c *Client) StartDeviceFlow(ctx context.Context) (*DeviceCode, error) {
	body := map[string]string{"client_id": c.clientID}
	resp, err := c.do(ctx, http.MethodPost, "/oauth/device/code", "", body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		drain(resp.Body)
		return nil, fmt.Errorf("device code request: unexpected status %d", resp.StatusCode)
	}
	var code DeviceCode
	if err := decodeBody(resp, &code); err != nil {
		return nil, err
	}
	if code.Interval <= 0 {
		code.Interval = 5
	}
	return &code, nil
}

// PollDeviceToken asks once whether the user has approved the device code.
// While the flow is still in progress it returns ErrAuthorizationPending
// or ErrSlowDown; terminal failures return one of the device-flow
// sentinels.
func (c *Client) PollDeviceToken(ctx context.Context, deviceCode string) (*TokenGrant, error) {
	body := map[string]string{
		"code":          deviceCode,
		"client_id":     c.clientID,
		"client_secret": c.clientSecret,
	}
	resp, err := c.do(ctx, http.MethodPost, "/oauth/device/token", "", body)
	if err != nil {
		return nil, err
	}
	switch resp.StatusCode {
	case http.StatusOK:
		var grant TokenGrant
		if err := decodeBody(resp, &grant); err != nil {
			return nil, err
		}
		return &grant, nil
	case http.StatusBadRequest:
		drain(resp.Body)
		return nil, ErrAuthorizationPending
	case http.StatusNotFound:
		drain(resp.Body)
		return nil, ErrInvalidCode
	case http.StatusConflict:
		drain(resp.Body)
		return nil, ErrCodeAlreadyUsed
	case http.StatusGone:
		drain(resp.Body)
		return nil, ErrCodeExpired
	case http.StatusTeapot:
		drain(resp.Body)
		return nil, ErrAccessDenied
	case http.StatusTooManyRequests:
		drain(resp.Body)
		return nil, ErrSlowDown
	default:
		drain(resp.Body)
		return nil, fmt.Errorf("device token poll: unexpected status %d", resp.StatusCode)
	}
}

// Authorize runs the whole device flow: it starts it, hands the code to
// onCode for display, then polls at the server-suggested interval until
// the user approves, the code expires, or ctx is cancelled. A slow-down
// answer widens the interval by five seconds.
func (c *Client) Authorize(ctx context.Context, onCode func(*DeviceCode)) (*TokenGrant, error) {
	code, err := c.StartDeviceFlow(ctx)
	if err != nil {
		return nil, err
	}
	if onCode != nil {
		onCode(code)
	}

	interval := time.Duration(code.Interval) * time.Second
	deadline := time.Now().Add(time.Duration(code.ExpiresIn) * time.Second)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case now := <-ticker.C:
			if now.After(deadline) {
				return nil, ErrCodeExpired
			}
			grant, err := c.PollDeviceToken(ctx, code.DeviceCode)
			switch {
			case err == nil:
				return grant, nil
			case errors.Is(err, ErrAuthorizationPending):
				continue
			case errors.Is(err, ErrSlowDown):
				interval += 5 * time.Second
				ticker.Reset(interval)
			default:
				return nil, err
			}
		}
	}
}

// RefreshToken exchanges a refresh token for a fresh grant. A rejected
// refresh token returns ErrGrantRevoked and requires a new device flow.
func (c *Client) RefreshToken(ctx context.Context, refreshToken string) (*TokenGrant, error) {
	body := map[string]string{
		"refresh_token": refreshToken,
		"client_id":     c.clientID,
		"client_secret": c.clientSecret,
		"redirect_uri":  redirectURI,
		"grant_type":    "refresh_token",
	}
	resp, err := c.do(ctx, http.MethodPost, "/oauth/token", "", body)
	if err != nil {
		return nil, err
	}
	switch resp.StatusCode {
	case http.StatusOK:
		var grant TokenGrant
		if err := decodeBody(resp, &grant); err != nil {
			return nil, err
		}
		return &grant, nil
	case http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden:
		drain(resp.Body)
		return nil, ErrGrantRevoked
	default:
		drain(resp.Body)
		return nil, fmt.Errorf("token refresh: unexpected status %d", resp.StatusCode)
	}
}
