// Package engine drives the synchronization loop: it polls Trakt for
// the account's current watch activity, resolves artwork and ratings,
// feeds the presence state machine, and publishes the resulting
// activity to Discord.
//
// A single goroutine owns the loop. Auth, fetch, and publish problems
// are classified per cycle — transient failures back off exponentially,
// rate limits honor the server's hint, and auth failures route through
// token refresh or a fresh device authorization. No single cycle's
// failure stops the loop.
package engine

import (
	"context"
	"errors"
	"sync"
	"time"

	"log/slog"

	"github.com/cenkalti/backoff/v4"
	"github.com/jonboulle/clockwork"
	"tools.zach/dev/traktcord/internal/config"
	"tools.zach/dev/traktcord/internal/control"
	"tools.zach/dev/traktcord/internal/credentials"
	"tools.zach/dev/traktcord/internal/discord"
	"tools.zach/dev/traktcord/internal/paths"
	"tools.zach/dev/traktcord/internal/presence"
	"tools.zach/dev/traktcord/internal/tmdb"
	"tools.zach/dev/traktcord/internal/trakt"
)

// ///////////////////////////////////////////////
// Presence Sink
// ///////////////////////////////////////////////

// Presence is the slice of the Discord client the engine drives.
// *discord.Client satisfies it; tests substitute a recorder.
type Presence interface {
	Connect() error
	Close() error
	Disconnect()
	Connected() bool
	AppID() string
	SetAppID(appID string)
	SetActivity(activity *discord.Activity) error
	ClearActivity() error
}

// ///////////////////////////////////////////////
// Engine
// ///////////////////////////////////////////////

// Deps are the engine's collaborators, built by main and faked in tests.
type Deps struct {
	// Store persists the Trakt credentials.
	Store *credentials.Store
	// TMDB resolves artwork and localized titles; may be disabled.
	TMDB *tmdb.Client
	// Presence publishes to Discord.
	Presence Presence
	// Clock defaults to the real clock when nil.
	Clock clockwork.Clock
	// TraktBaseURL overrides the public API endpoint; empty uses the default.
	TraktBaseURL string
}

// Engine owns the synchronization loop state. All fields except status
// are touched only from the loop goroutine.
type Engine struct {
	cfg   *config.Config
	dirs  paths.DataDir
	store *credentials.Store
	tmdb  *tmdb.Client
	pres  Presence
	clock clockwork.Clock

	traktBaseURL string
	trakt        *trakt.Client
	creds        *credentials.Credentials

	machine *presence.Machine
	flow    *deviceFlow

	// backoff paces retries after transient failures; retryAt gates the
	// next fetch after a failure or a rate-limit hint.
	backoff *backoff.ExponentialBackOff
	retryAt time.Time

	// paused suspends publishing (user command); polling continues.
	paused bool
	// setupLogged dedups the needs-setup instructions in the log.
	setupLogged bool

	// lastConnAttempt rate-limits Discord connection attempts.
	lastConnAttempt time.Time

	// mu guards status for concurrent Status() readers.
	mu     sync.Mutex
	status control.Status
}

// New assembles an engine. The Trakt client is created lazily once
// credentials are available, since the API keys live in the store.
func New(cfg *config.Config, dirs paths.DataDir, deps Deps) *Engine {
	clk := deps.Clock
	if clk == nil {
		clk = clockwork.NewRealClock()
	}
	return &Engine{
		cfg:          cfg,
		dirs:         dirs,
		store:        deps.Store,
		tmdb:         deps.TMDB,
		pres:         deps.Presence,
		clock:        clk,
		traktBaseURL: deps.TraktBaseURL,
		machine: presence.NewMachine(
			cfg.Behavior.ProgressThresholdPercent,
			cfg.Behavior.RefreshEveryCycles,
			cfg.Behavior.OnRemotePause,
		),
		backoff: newBackoff(cfg.PollInterval(), clk),
	}
}

// newBackoff builds the transient-failure pacer: base delay is one poll
// interval, doubling up to a five-minute cap, deterministic so retry
// spacing never shrinks mid-outage.
func newBackoff(base time.Duration, clk clockwork.Clock) *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = base
	b.RandomizationFactor = 0
	b.Multiplier = 2
	b.MaxInterval = 5 * time.Minute
	b.MaxElapsedTime = 0
	b.Clock = clk
	b.Reset()
	return b
}

// Status returns the latest daemon status snapshot. Safe to call from
// any goroutine.
func (e *Engine) Status() control.Status {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.status
}

// ///////////////////////////////////////////////
// Run Loop
// ///////////////////////////////////////////////

// Run drives Step on the poll ticker until ctx is cancelled or a quit
// command arrives. Device-flow token polling runs on its own ticker at
// the provider-suggested interval. On the way out the in-flight cycle
// finishes and any published presence is cleared.
func (e *Engine) Run(ctx context.Context, commands <-chan control.Command) error {
	ticker := e.clock.NewTicker(e.cfg.PollInterval())
	defer ticker.Stop()
	defer e.stopDeviceFlow()

	e.Step(ctx)

	for {
		// A nil channel blocks forever, so the flow arm only fires while
		// a device authorization is in progress.
		var flowPoll <-chan time.Time
		if e.flow != nil {
			flowPoll = e.flow.ticker.Chan()
		}

		select {
		case <-ctx.Done():
			e.shutdown()
			return ctx.Err()

		case cmd := <-commands:
			if e.handleCommand(ctx, cmd) {
				e.shutdown()
				return nil
			}

		case <-ticker.Chan():
			e.Step(ctx)

		case <-flowPoll:
			e.pollDeviceFlow(ctx)
		}
	}
}

// handleCommand applies a control-file command. Returns true when the
// daemon should exit.
func (e *Engine) handleCommand(ctx context.Context, cmd control.Command) bool {
	now := e.clock.Now()
	switch cmd {
	case control.CmdPause:
		if e.paused {
			return false
		}
		slog.Info("publishing paused by user")
		e.paused = true
		e.dispatch(now, e.machine.Suspend())
		e.recordStatus(now, nil)

	case control.CmdResume:
		if !e.paused {
			return false
		}
		slog.Info("publishing resumed by user")
		e.paused = false
		e.machine.Resume()
		e.Step(ctx)

	case control.CmdQuit:
		slog.Info("quit command received")
		return true
	}
	return false
}

// shutdown clears any published presence and marks the status file.
func (e *Engine) shutdown() {
	e.machine.Reset()
	if err := e.pres.Close(); err != nil {
		slog.Debug("presence close", "error", err)
	}
	e.setStatus(control.Status{State: control.StateStopped, UpdatedAt: e.clock.Now()})
}

// ///////////////////////////////////////////////
// Step
// ///////////////////////////////////////////////

// Step runs one synchronization cycle: ensure valid credentials, fetch
// the watch activity, resolve artwork and ratings, advance the state
// machine, act on its directive, and mirror the outcome into the status
// file.
func (e *Engine) Step(ctx context.Context) {
	now := e.clock.Now()

	if !e.retryAt.IsZero() && now.Before(e.retryAt) {
		return
	}

	creds := e.ensureAuth(ctx, now)
	if creds == nil {
		return
	}

	w, err := e.trakt.Watching(ctx, e.cfg.Trakt.Username, creds.AccessToken)
	if err != nil {
		e.fetchFailed(now, err)
		return
	}
	e.backoff.Reset()
	e.retryAt = time.Time{}

	snap := presence.FromWatching(w, now)
	if snap != nil && e.hiddenByPrivacy(snap) {
		slog.Debug("title hidden by privacy filter")
		snap = nil
	}
	if snap != nil {
		e.enrich(ctx, snap)
	}

	e.dispatch(now, e.machine.Advance(snap, now))
	e.recordStatus(now, snap)
}

// fetchFailed classifies a watch-poll error and schedules the retry.
func (e *Engine) fetchFailed(now time.Time, err error) {
	var rl *trakt.RateLimitError
	switch {
	case errors.Is(err, trakt.ErrUnauthorized):
		// Token rejected mid-life. Zeroing the expiry forces the refresh
		// path on the next cycle; revocation escalates from there.
		slog.Warn("watch poll unauthorized, forcing token refresh")
		e.creds.ExpiresAt = time.Time{}
		e.setStatus(control.Status{State: control.StateUnauthenticated, Detail: "access token rejected, refreshing", UpdatedAt: now})

	case errors.As(err, &rl):
		delay := rl.RetryAfter
		if delay <= 0 {
			delay = e.cfg.PollInterval()
		}
		e.retryAt = now.Add(delay)
		slog.Warn("rate limited by trakt", "retry_after", delay)
		e.setStatus(control.Status{State: control.StateError, Detail: "rate limited by trakt", UpdatedAt: now})

	default:
		e.transientFailure(now, "watch poll failed", err)
	}
}

// transientFailure advances the backoff and records the failure.
func (e *Engine) transientFailure(now time.Time, msg string, err error) {
	delay := e.backoff.NextBackOff()
	e.retryAt = now.Add(delay)
	slog.Warn(msg, "error", err, "retry_in", delay)
	e.setStatus(control.Status{State: control.StateError, Detail: msg, UpdatedAt: now})
}

// hiddenByPrivacy reports whether any of the snapshot's titles match a
// configured hide pattern. Patterns match the titles Trakt reports, not
// localized ones.
func (e *Engine) hiddenByPrivacy(s *presence.Snapshot) bool {
	if e.cfg.TitleHidden(s.Title) {
		return true
	}
	return s.ShowTitle != "" && e.cfg.TitleHidden(s.ShowTitle)
}

// enrich fills in the rating, poster, and localized titles. Every
// lookup is cached, so steady-state polls cost no extra requests.
func (e *Engine) enrich(ctx context.Context, s *presence.Snapshot) {
	if s.Kind == presence.KindMovie {
		s.Rating = e.trakt.MovieRating(ctx, s.Slug)
		if e.tmdb.Enabled() && s.TMDB > 0 {
			s.PosterURL = e.tmdb.MoviePoster(ctx, s.TMDB)
			s.Title = e.tmdb.MovieTitle(ctx, s.TMDB, s.Title)
		}
		return
	}
	if e.tmdb.Enabled() && s.TMDB > 0 {
		s.PosterURL = e.tmdb.SeasonPoster(ctx, s.TMDB, s.Season)
		s.ShowTitle = e.tmdb.ShowTitle(ctx, s.TMDB, s.ShowTitle)
		s.Title = e.tmdb.EpisodeTitle(ctx, s.TMDB, s.Season, s.Number, s.Title)
	}
}

// ///////////////////////////////////////////////
// Publishing
// ///////////////////////////////////////////////

// dispatch acts on a state machine decision.
func (e *Engine) dispatch(now time.Time, d presence.Decision) {
	switch d.Directive {
	case presence.DirectivePublish:
		e.publish(now, d.Kind, d.Activity)
	case presence.DirectiveClear:
		e.clear()
	}
}

// publish pushes an activity to Discord, reconnecting under the other
// application ID when the media kind switched. A failed write resets
// the machine so the next cycle republishes once Discord is back.
func (e *Engine) publish(now time.Time, kind string, act *discord.Activity) {
	appID := e.cfg.AppIDFor(kind)
	if e.pres.AppID() != appID {
		slog.Info("media kind changed, switching Discord application", "app_id", appID)
		e.pres.Close()
		e.pres.SetAppID(appID)
		e.lastConnAttempt = time.Time{}
	}

	if !e.pres.Connected() && !e.connectPresence(now) {
		e.machine.Reset()
		return
	}

	if err := e.pres.SetActivity(act); err != nil {
		slog.Warn("failed to set activity", "error", err)
		e.pres.Disconnect()
		e.machine.Reset()
		return
	}
	slog.Debug("presence updated", "details", act.Details, "state", act.State)
}

// clear removes the published activity. A dead connection means the
// card is already gone.
func (e *Engine) clear() {
	if !e.pres.Connected() {
		return
	}
	if err := e.pres.ClearActivity(); err != nil {
		slog.Warn("failed to clear activity", "error", err)
		e.pres.Disconnect()
		return
	}
	slog.Debug("presence cleared")
}

// connectPresence attempts one Discord connection, spaced at least the
// configured reconnect interval apart.
func (e *Engine) connectPresence(now time.Time) bool {
	if !e.lastConnAttempt.IsZero() && now.Sub(e.lastConnAttempt) < e.cfg.ReconnectInterval() {
		return false
	}
	e.lastConnAttempt = now
	if err := e.pres.Connect(); err != nil {
		slog.Warn("failed to connect to Discord", "error", err)
		return false
	}
	slog.Info("connected to Discord", "app_id", e.pres.AppID())
	return true
}

// ///////////////////////////////////////////////
// Status
// ///////////////////////////////////////////////

// recordStatus mirrors the cycle outcome into the status snapshot.
func (e *Engine) recordStatus(now time.Time, snap *presence.Snapshot) {
	st := control.Status{UpdatedAt: now}
	switch {
	case e.paused:
		st.State = control.StatePaused
	case snap == nil:
		st.State = control.StateIdle
	default:
		st.State = control.StateWatching
	}
	if snap != nil {
		st.Title, st.Detail = presence.Describe(snap)
		st.Progress = snap.Progress()
	}
	e.setStatus(st)
}

// setStatus stores the snapshot and rewrites the status file when it
// changed (UpdatedAt aside).
func (e *Engine) setStatus(st control.Status) {
	e.mu.Lock()
	same := e.status.Same(st)
	if !same {
		e.status = st
	}
	e.mu.Unlock()

	if same {
		return
	}
	if err := control.WriteStatus(e.dirs.Status(), st); err != nil {
		slog.Warn("failed to write status file", "error", err)
	}
}
