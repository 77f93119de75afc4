package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"log/slog"

	"github.com/jonboulle/clockwork"
	"tools.zach/dev/traktcord/internal/control"
	"tools.zach/dev/traktcord/internal/credentials"
	"tools.zach/dev/traktcord/internal/trakt"
)

// refreshMargin is how close to expiry the access token may get before
// a refresh is forced.
const refreshMargin = 60 * time.Second

// deviceFlow tracks an in-progress device authorization. Token polling
// runs on its own ticker at the provider-suggested interval, never on
// the watch-status cadence.
type deviceFlow struct {
	code     *trakt.DeviceCode
	interval time.Duration
	deadline time.Time
	ticker   clockwork.Ticker
}

// ///////////////////////////////////////////////
// Credential Lifecycle
// ///////////////////////////////////////////////

// ensureAuth returns usable credentials or nil when this cycle cannot
// poll: setup incomplete, device authorization pending, or a refresh
// problem. Watch polling stays suppressed until authentication is
// restored.
func (e *Engine) ensureAuth(ctx context.Context, now time.Time) *credentials.Credentials {
	if e.flow != nil {
		return nil
	}

	if e.creds == nil {
		c, err := e.store.Load()
		if err != nil {
			if errors.Is(err, credentials.ErrNotConfigured) {
				e.enterNeedsSetup(now)
			} else {
				slog.Error("failed to load credentials", "error", err)
			}
			return nil
		}
		e.creds = c
		e.trakt = trakt.NewClient(c.ClientID, c.ClientSecret, e.traktBaseURL)
		e.setupLogged = false
		slog.Info("credentials loaded")
	}

	if !e.creds.HasToken() && e.creds.RefreshToken == "" {
		e.startDeviceFlow(ctx, now)
		return nil
	}

	if e.creds.NeedsRefresh(now, refreshMargin) && !e.refresh(ctx, now) {
		return nil
	}
	return e.creds
}

// enterNeedsSetup logs the first-run instructions once and mirrors the
// state so external consumers can surface it. The store is re-checked
// every cycle, so filling in the file needs no restart.
func (e *Engine) enterNeedsSetup(now time.Time) {
	if !e.setupLogged {
		slog.Warn("no trakt api credentials configured",
			"file", e.store.Path(),
			"hint", "create an API app at https://trakt.tv/oauth/applications and fill in client_id and client_secret")
		e.setupLogged = true
	}
	e.setStatus(control.Status{
		State:     control.StateNeedsSetup,
		Detail:    "add trakt api keys to " + e.store.Path(),
		UpdatedAt: now,
	})
}

// refresh exchanges the refresh token for a fresh grant. Returns true
// when the cycle may proceed with e.creds.
func (e *Engine) refresh(ctx context.Context, now time.Time) bool {
	if e.creds.RefreshToken == "" {
		e.startDeviceFlow(ctx, now)
		return false
	}

	grant, err := e.trakt.RefreshToken(ctx, e.creds.RefreshToken)
	if err != nil {
		if errors.Is(err, trakt.ErrGrantRevoked) {
			slog.Warn("refresh token revoked, device authorization required")
			e.creds.AccessToken = ""
			e.creds.RefreshToken = ""
			e.creds.ExpiresAt = time.Time{}
			if saveErr := e.store.Save(e.creds); saveErr != nil {
				slog.Error("failed to persist credentials", "error", saveErr)
			}
			e.startDeviceFlow(ctx, now)
			return false
		}
		if now.Before(e.creds.ExpiresAt) {
			// Inside the safety margin but not expired; ride out the
			// current token and retry next cycle.
			slog.Warn("token refresh failed, keeping current token", "error", err)
			return true
		}
		e.transientFailure(now, "token refresh failed", err)
		return false
	}

	e.storeGrant(grant, now)
	slog.Info("access token refreshed", "expires_at", e.creds.ExpiresAt)
	return true
}

// storeGrant applies a token grant to the credentials and persists them.
func (e *Engine) storeGrant(g *trakt.TokenGrant, now time.Time) {
	e.creds.AccessToken = g.AccessToken
	e.creds.RefreshToken = g.RefreshToken
	e.creds.ExpiresAt = g.ExpiryTime(now)
	if err := e.store.Save(e.creds); err != nil {
		slog.Error("failed to persist credentials", "error", err)
	}
}

// ///////////////////////////////////////////////
// Device Flow
// ///////////////////////////////////////////////

// startDeviceFlow requests a device code and begins polling for the
// grant. The user-facing code and URL go to the log and the status file.
func (e *Engine) startDeviceFlow(ctx context.Context, now time.Time) {
	dc, err := e.trakt.StartDeviceFlow(ctx)
	if err != nil {
		e.transientFailure(now, "device authorization request failed", err)
		return
	}

	interval := time.Duration(dc.Interval) * time.Second
	e.flow = &deviceFlow{
		code:     dc,
		interval: interval,
		deadline: now.Add(time.Duration(dc.ExpiresIn) * time.Second),
		ticker:   e.clock.NewTicker(interval),
	}

	slog.Info("device authorization required", "url", dc.VerificationURL, "code", dc.UserCode)
	e.setStatus(control.Status{
		State:     control.StateAuthorizing,
		Detail:    fmt.Sprintf("enter code %s at %s", dc.UserCode, dc.VerificationURL),
		UpdatedAt: now,
	})
}

// pollDeviceFlow runs one token poll. Pending keeps waiting; slow-down
// widens the interval; a dead code requests a fresh one; a grant stores
// the credentials and runs a cycle immediately.
func (e *Engine) pollDeviceFlow(ctx context.Context) {
	now := e.clock.Now()

	if now.After(e.flow.deadline) {
		slog.Warn("device code expired before authorization, requesting a new one")
		e.stopDeviceFlow()
		e.startDeviceFlow(ctx, now)
		return
	}

	grant, err := e.trakt.PollDeviceToken(ctx, e.flow.code.DeviceCode)
	switch {
	case err == nil:
		e.stopDeviceFlow()
		e.storeGrant(grant, now)
		slog.Info("device authorized", "expires_at", e.creds.ExpiresAt)
		e.Step(ctx)

	case errors.Is(err, trakt.ErrAuthorizationPending):
		// Keep waiting.

	case errors.Is(err, trakt.ErrSlowDown):
		e.flow.interval += 5 * time.Second
		e.flow.ticker.Reset(e.flow.interval)
		slog.Debug("token polling slowed down", "interval", e.flow.interval)

	case errors.Is(err, trakt.ErrCodeExpired),
		errors.Is(err, trakt.ErrInvalidCode),
		errors.Is(err, trakt.ErrCodeAlreadyUsed),
		errors.Is(err, trakt.ErrAccessDenied):
		slog.Warn("device authorization failed, requesting a new code", "error", err)
		e.stopDeviceFlow()
		e.startDeviceFlow(ctx, now)

	default:
		// Transient; the ticker keeps polling.
		slog.Warn("device token poll failed", "error", err)
	}
}

// stopDeviceFlow tears down the in-progress authorization, if any.
func (e *Engine) stopDeviceFlow() {
	if e.flow == nil {
		return
	}
	e.flow.ticker.Stop()
	e.flow = nil
}
