// Package config provides configuration loading and defaults for the traktcord daemon.
//
// Configuration is loaded from a TOML file in the user's data directory.
// The package covers the Trakt account, Discord application IDs, TMDB
// artwork settings, polling behavior, privacy filters, and logging, with
// sensible defaults for everything but the account itself.
//
// Trakt API keys and OAuth tokens are not configuration — they live in
// the credentials file owned by the credentials package.
package config

//go:generate go run ../../cmd/genconfig

import (
	"bytes"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/bmatcuk/doublestar/v4"
	"tools.zach/dev/traktcord/internal/atomicfile"
	"tools.zach/dev/traktcord/internal/migrate"
	"tools.zach/dev/traktcord/internal/paths"
)

// Default Discord application IDs. Movies and shows are separate Discord
// apps so each can carry its own name and asset set; the daemon reconnects
// under the other ID when the media kind switches.
const (
	DefaultMovieAppID = "1118213089721110528"
	DefaultShowAppID  = "1118213231358320640"
)

// ///////////////////////////////////////////////
// Configuration Types
// ///////////////////////////////////////////////

// Config represents the top-level application configuration.
type Config struct {
	// Version is the config schema version used for migrations.
	Version int `toml:"version"`
	// Trakt holds the Trakt account settings.
	Trakt TraktConfig `toml:"trakt"`
	// Discord holds Discord application settings.
	Discord DiscordConfig `toml:"discord"`
	// TMDB holds artwork lookup settings.
	TMDB TMDBConfig `toml:"tmdb"`
	// Behavior holds polling and presence behavior settings.
	Behavior BehaviorConfig `toml:"behavior"`
	// Privacy holds title-hiding settings.
	Privacy PrivacyConfig `toml:"privacy"`
	// Log holds logging settings.
	Log LogConfig `toml:"log"`
}

// TraktConfig holds the Trakt account settings.
type TraktConfig struct {
	// Username is the Trakt account whose watch activity is polled.
	Username string `toml:"username"`
}

// DiscordConfig holds Discord application settings.
type DiscordConfig struct {
	// MovieAppID is the Discord application ID used while watching movies.
	MovieAppID string `toml:"movie_app_id"`
	// ShowAppID is the Discord application ID used while watching shows.
	ShowAppID string `toml:"show_app_id"`
}

// TMDBConfig holds artwork lookup settings.
type TMDBConfig struct {
	// APIKey is the TMDB API key. Empty disables artwork lookups and the
	// presence card falls back to the static movie/show assets.
	APIKey string `toml:"api_key"`
	// Language requests localized titles from TMDB (e.g. "de", "pt-BR").
	// Empty keeps the titles Trakt reports.
	Language string `toml:"language,omitempty"`
}

// BehaviorConfig holds polling and presence behavior settings.
type BehaviorConfig struct {
	// PollIntervalSeconds is how often watch activity is polled.
	PollIntervalSeconds int `toml:"poll_interval_seconds"`
	// ReconnectIntervalSeconds is the minimum gap between Discord
	// connection attempts.
	ReconnectIntervalSeconds int `toml:"reconnect_interval_seconds"`
	// OnRemotePause controls what a Trakt-side pause does: "clear" hides
	// the presence, "show" keeps it up.
	OnRemotePause string `toml:"on_remote_pause"`
	// ProgressThresholdPercent is the minimum progress movement before an
	// unchanged title republishes.
	ProgressThresholdPercent float64 `toml:"progress_threshold_percent"`
	// RefreshEveryCycles forces a republish after this many unchanged
	// polls so Discord's timer never drifts far.
	RefreshEveryCycles int `toml:"refresh_every_cycles"`
}

// PrivacyConfig holds title-hiding settings.
type PrivacyConfig struct {
	// HideTitles lists glob patterns (case-insensitive) for titles that
	// must never appear in the presence card.
	HideTitles []string `toml:"hide_titles"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	// Level is the minimum log level (trace, debug, info, warn, error).
	Level string `toml:"level"`
	// MaxSizeMB is the maximum log file size in megabytes before rotation.
	MaxSizeMB int `toml:"max_size_mb"`
}

// ///////////////////////////////////////////////
// Default Configuration
// ///////////////////////////////////////////////

// DefaultConfig returns a Config populated with sensible defaults.
// The Trakt username is the one field without a usable default.
func DefaultConfig() *Config {
	return &Config{
		Version: migrate.Config.CurrentVersion,
		Trakt:   TraktConfig{},
		Discord: DiscordConfig{
			MovieAppID: DefaultMovieAppID,
			ShowAppID:  DefaultShowAppID,
		},
		TMDB: TMDBConfig{},
		Behavior: BehaviorConfig{
			PollIntervalSeconds:      15,
			ReconnectIntervalSeconds: 15,
			OnRemotePause:            "clear",
			ProgressThresholdPercent: 1,
			RefreshEveryCycles:       4,
		},
		Privacy: PrivacyConfig{
			HideTitles: []string{},
		},
		Log: LogConfig{
			Level:     "info",
			MaxSizeMB: 10,
		},
	}
}

// ///////////////////////////////////////////////
// Example Configuration
// ///////////////////////////////////////////////

// ExampleConfig returns a Config suitable for generating config.default.toml.
// The username gets a placeholder so the generated file shows the shape.
func ExampleConfig() *Config {
	cfg := DefaultConfig()
	cfg.Trakt.Username = "your-trakt-username"
	return cfg
}

// ///////////////////////////////////////////////
// PeekVersion
// ///////////////////////////////////////////////

// PeekVersion reads just the version field from raw TOML bytes.
// Returns 1 if the version field is missing or zero.
func PeekVersion(data []byte) int {
	var v struct {
		Version int `toml:"version"`
	}
	if err := toml.Unmarshal(data, &v); err != nil {
		return 1
	}
	if v.Version == 0 {
		return 1
	}
	return v.Version
}

// ///////////////////////////////////////////////
// Loading and Saving
// ///////////////////////////////////////////////

// Load reads and parses the configuration file from dataDir/config.toml.
// If the file doesn't exist, returns DefaultConfig.
func Load(dataDir string) (*Config, error) {
	path := filepath.Join(dataDir, paths.ConfigFile)

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultConfig(), nil
		}
		return nil, fmt.Errorf("read config file: %w", err)
	}

	version := PeekVersion(data)

	// Apply migrations if needed, backing up the original first.
	migrated := version != migrate.Config.CurrentVersion
	if migrated {
		if backupErr := os.WriteFile(path+".bak", data, 0o644); backupErr != nil {
			slog.Warn("failed to write config backup", "error", backupErr)
		}
		var migrateErr error
		data, _, migrateErr = migrate.Config.Run(data, version)
		if migrateErr != nil {
			return nil, fmt.Errorf("migrate config: %w", migrateErr)
		}
	}

	cfg := DefaultConfig()
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.Version = migrate.Config.CurrentVersion

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	// Re-save after migration so the file matches the current schema.
	if migrated {
		if err := cfg.Save(path); err != nil {
			slog.Warn("failed to save migrated config", "error", err)
		}
	}

	return cfg, nil
}

// Save writes the config to disk as TOML using atomic file write.
func (c *Config) Save(path string) error {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(c); err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	return atomicfile.Write(path, buf.Bytes(), 0o644)
}

// ///////////////////////////////////////////////
// Validation
// ///////////////////////////////////////////////

// usernameRe matches Trakt usernames as they appear in API URL paths.
var usernameRe = regexp.MustCompile(`^[A-Za-z0-9._-]+$`)

// appIDRe matches Discord application IDs (snowflakes).
var appIDRe = regexp.MustCompile(`^[0-9]{15,21}$`)

// languageRe matches TMDB language tags ("de", "pt-BR").
var languageRe = regexp.MustCompile(`^[a-z]{2}(-[A-Z]{2})?$`)

// validLogLevels is the set of accepted log level strings.
var validLogLevels = map[string]bool{
	"trace": true, "debug": true, "info": true, "warn": true, "error": true,
}

// Validate checks that all configuration values are within acceptable ranges.
// An empty username passes — the daemon runs in a needs-setup state until
// the account is configured.
func (c *Config) Validate() error {
	if c.Trakt.Username != "" && !usernameRe.MatchString(c.Trakt.Username) {
		return fmt.Errorf("invalid trakt.username %q: letters, digits, '.', '_', '-' only", c.Trakt.Username)
	}

	if !appIDRe.MatchString(c.Discord.MovieAppID) {
		return fmt.Errorf("invalid discord.movie_app_id %q: must be a numeric application ID", c.Discord.MovieAppID)
	}
	if !appIDRe.MatchString(c.Discord.ShowAppID) {
		return fmt.Errorf("invalid discord.show_app_id %q: must be a numeric application ID", c.Discord.ShowAppID)
	}

	if c.TMDB.Language != "" && !languageRe.MatchString(c.TMDB.Language) {
		return fmt.Errorf("invalid tmdb.language %q: use a tag like \"de\" or \"pt-BR\"", c.TMDB.Language)
	}

	if c.Behavior.PollIntervalSeconds <= 0 {
		return fmt.Errorf("poll_interval_seconds must be > 0, got %d", c.Behavior.PollIntervalSeconds)
	}

	if c.Behavior.ReconnectIntervalSeconds <= 0 {
		return fmt.Errorf("reconnect_interval_seconds must be > 0, got %d", c.Behavior.ReconnectIntervalSeconds)
	}

	switch c.Behavior.OnRemotePause {
	case "clear", "show":
	default:
		return fmt.Errorf("invalid on_remote_pause %q: must be clear or show", c.Behavior.OnRemotePause)
	}

	if c.Behavior.ProgressThresholdPercent < 0 || c.Behavior.ProgressThresholdPercent > 100 {
		return fmt.Errorf("progress_threshold_percent must be in [0,100], got %g", c.Behavior.ProgressThresholdPercent)
	}

	if c.Behavior.RefreshEveryCycles < 1 {
		return fmt.Errorf("refresh_every_cycles must be >= 1, got %d", c.Behavior.RefreshEveryCycles)
	}

	for _, pattern := range c.Privacy.HideTitles {
		if !doublestar.ValidatePattern(pattern) {
			return fmt.Errorf("invalid hide_titles pattern %q", pattern)
		}
	}

	if !validLogLevels[strings.ToLower(c.Log.Level)] {
		return fmt.Errorf("invalid log.level %q: must be trace, debug, info, warn, or error", c.Log.Level)
	}

	if c.Log.MaxSizeMB <= 0 {
		return fmt.Errorf("log.max_size_mb must be > 0, got %d", c.Log.MaxSizeMB)
	}

	return nil
}

// ///////////////////////////////////////////////
// Interval Helpers
// ///////////////////////////////////////////////

// PollInterval returns the watch-activity polling interval.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Behavior.PollIntervalSeconds) * time.Second
}

// ReconnectInterval returns the minimum gap between Discord connection attempts.
func (c *Config) ReconnectInterval() time.Duration {
	return time.Duration(c.Behavior.ReconnectIntervalSeconds) * time.Second
}

// ///////////////////////////////////////////////
// Privacy Helpers
// ///////////////////////////////////////////////

// TitleHidden reports whether title matches any configured hide_titles
// pattern. Matching is case-insensitive; invalid patterns are skipped
// (Validate rejects them at load, but patterns can also arrive via tests).
func (c *Config) TitleHidden(title string) bool {
	lower := strings.ToLower(title)
	for _, pattern := range c.Privacy.HideTitles {
		matched, err := doublestar.Match(strings.ToLower(pattern), lower)
		if err != nil {
			slog.Warn("invalid glob pattern", "pattern", pattern, "error", err)
			continue
		}
		if matched {
			return true
		}
	}
	return false
}

// AppIDFor returns the Discord application ID for a media kind.
// Unknown kinds fall back to the movie application.
func (c *Config) AppIDFor(kind string) string {
	if kind == "episode" {
		return c.Discord.ShowAppID
	}
	return c.Discord.MovieAppID
}
