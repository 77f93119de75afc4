// Package main implements the Traktcord daemon, which polls Trakt watch
// activity and publishes Discord Rich Presence updates.
package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime/debug"
	"strconv"
	"strings"

	rootpkg "tools.zach/dev/traktcord"
	"tools.zach/dev/traktcord/internal/config"
	"tools.zach/dev/traktcord/internal/control"
	"tools.zach/dev/traktcord/internal/credentials"
	"tools.zach/dev/traktcord/internal/discord"
	"tools.zach/dev/traktcord/internal/engine"
	"tools.zach/dev/traktcord/internal/logger"
	"tools.zach/dev/traktcord/internal/migrate"
	"tools.zach/dev/traktcord/internal/paths"
	"tools.zach/dev/traktcord/internal/tmdb"
	"tools.zach/dev/traktcord/internal/update"
)

// ///////////////////////////////////////////////
// Version
// ///////////////////////////////////////////////

// version is set at build time via ldflags:
//
//	go build -ldflags "-X main.version=$(go run ./cmd/buildver)" ./cmd/traktcord
//
// When ldflags are not set (bare go build), resolveVersion reads the VCS info
// that Go embeds automatically, so dev builds get a useful version string
// without needing git at runtime.
var version = "dev"

// resolveVersion returns the build version string. If [version] was set via
// ldflags at build time it is returned as-is; otherwise VCS revision and dirty
// state embedded by the Go toolchain are used to construct a "dev+<hash>" tag.
func resolveVersion() string {
	if version != "dev" {
		return version
	}
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return version
	}
	var revision string
	var dirty bool
	for _, s := range info.Settings {
		switch s.Key {
		case "vcs.revision":
			revision = s.Value
		case "vcs.modified":
			dirty = s.Value == "true"
		}
	}
	if revision == "" {
		return version
	}
	hash := revision[:min(7, len(revision))]
	if dirty {
		return "dev+" + hash + ".dirty"
	}
	return "dev+" + hash
}

// ///////////////////////////////////////////////
// PID Management
// ///////////////////////////////////////////////

// pidToken generates a random 16-character hex token used to prove ownership
// of the PID file, so [removePID] only deletes the file if this instance wrote it.
func pidToken() string {
	b := make([]byte, 8)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}

// writePID creates or opens the PID file at [DataPaths.PID], acquires an
// advisory file lock, and writes "PID:TOKEN" content. The returned file handle
// must be kept open for the lifetime of the daemon to hold the lock; pass it to
// [removePID] on shutdown.
func writePID(dirs DataPaths, token string) (*os.File, error) {
	f, err := os.OpenFile(dirs.PID(), os.O_CREATE|os.O_RDWR, 0o600)
	if err != nil {
		return nil, fmt.Errorf("open PID file: %w", err)
	}
	if err := lockFile(f); err != nil {
		f.Close()
		return nil, fmt.Errorf("lock PID file: %w", err)
	}
	if err := f.Truncate(0); err != nil {
		_ = unlockFile(f)
		f.Close()
		return nil, fmt.Errorf("truncate PID file: %w", err)
	}
	content := fmt.Sprintf("%d:%s", os.Getpid(), token)
	if _, err := f.WriteString(content); err != nil {
		_ = unlockFile(f)
		f.Close()
		return nil, fmt.Errorf("write PID file: %w", err)
	}
	return f, nil
}

// removePID releases the advisory lock, closes the file handle, and removes the
// PID file only if the stored token matches, preventing accidental removal of a
// file owned by a different daemon instance.
func removePID(dirs DataPaths, token string, f *os.File) {
	if f != nil {
		_ = unlockFile(f)
		f.Close()
	}
	data, err := os.ReadFile(dirs.PID())
	if err != nil {
		return
	}
	parts := strings.SplitN(string(data), ":", 2)
	if len(parts) == 2 && parts[1] == token {
		os.Remove(dirs.PID())
	}
}

// checkStalePID checks whether another daemon instance is running. It attempts
// to acquire the advisory lock on the PID file; if the lock fails, another
// instance holds it. If the lock succeeds, any previous instance is dead and
// the stale file is cleaned up.
func checkStalePID(dirs DataPaths) (alive bool, pid int) {
	f, err := os.OpenFile(dirs.PID(), os.O_RDWR, 0o600)
	if err != nil {
		return false, 0
	}

	if lockErr := lockFile(f); lockErr != nil {
		data, _ := os.ReadFile(dirs.PID())
		f.Close()
		parts := strings.SplitN(string(data), ":", 2)
		if len(parts) >= 1 {
			if p, convErr := strconv.Atoi(parts[0]); convErr == nil {
				return true, p
			}
		}
		return true, 0
	}

	// Lock acquired -- previous instance is dead. Clean up stale file.
	_ = unlockFile(f)
	f.Close()
	os.Remove(dirs.PID())
	return false, 0
}

// ///////////////////////////////////////////////
// Legacy Import
// ///////////////////////////////////////////////

// mergeLegacy copies values recovered from a predecessor credentials.ini into
// cfg wherever the user has not already configured them. The Discord app ID is
// only taken while both IDs still hold the stock defaults, since the
// predecessor used a single application for movies and shows alike. Reports
// whether cfg changed.
func mergeLegacy(cfg *config.Config, legacy *migrate.LegacyConfig) bool {
	changed := false
	if cfg.Trakt.Username == "" && legacy.Username != "" {
		cfg.Trakt.Username = legacy.Username
		changed = true
	}
	if legacy.DiscordAppID != "" &&
		cfg.Discord.MovieAppID == config.DefaultMovieAppID &&
		cfg.Discord.ShowAppID == config.DefaultShowAppID {
		cfg.Discord.MovieAppID = legacy.DiscordAppID
		cfg.Discord.ShowAppID = legacy.DiscordAppID
		changed = true
	}
	if cfg.TMDB.APIKey == "" && legacy.TMDBKey != "" {
		cfg.TMDB.APIKey = legacy.TMDBKey
		changed = true
	}
	return changed
}

// importLegacy migrates a predecessor credentials.ini when one is present:
// API keys and tokens land in the credentials store, config-shaped values are
// merged into cfg, and the INI is renamed out of the way so the import runs
// only once. Failures are logged and skipped; the daemon still starts.
func importLegacy(cfg *config.Config, dirs DataPaths) {
	if !migrate.HasLegacyINI(dirs.Root) {
		return
	}
	legacy, err := migrate.ImportLegacyINI(dirs.Root)
	if err != nil {
		slog.Warn("legacy credentials.ini import failed", "error", err)
		return
	}
	if mergeLegacy(cfg, legacy) {
		if saveErr := cfg.Save(dirs.Config()); saveErr != nil {
			slog.Warn("failed to save migrated config", "error", saveErr)
		}
	}
	if bakErr := migrate.BackupLegacyINI(dirs.Root); bakErr != nil {
		slog.Warn("failed to back up credentials.ini", "error", bakErr)
		return
	}
	slog.Info("imported legacy credentials.ini", "backup", dirs.LegacyINI()+".bak")
}

// ///////////////////////////////////////////////
// Default Data Directory
// ///////////////////////////////////////////////

// defaultDataDir returns the platform default directory for Traktcord data,
// typically ~/.config/traktcord. Falls back to ./.traktcord if the home
// directory cannot be determined.
func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".traktcord")
	}
	return filepath.Join(home, paths.DataDirRel)
}

// ///////////////////////////////////////////////
// One-Shot Commands
// ///////////////////////////////////////////////

// runControl delivers a pause/resume/quit command to a running daemon via the
// control file. Exits non-zero when the command is unknown or no daemon is
// running.
func runControl(dirs DataPaths, raw string) {
	cmd, ok := control.ParseCommand(raw)
	if !ok {
		fmt.Fprintf(os.Stderr, "unknown control command %q (want pause, resume or quit)\n", raw)
		os.Exit(2)
	}
	alive, pid := checkStalePID(dirs)
	if !alive {
		fmt.Fprintln(os.Stderr, "no running daemon found")
		os.Exit(1)
	}
	if err := control.Send(dirs.Control(), cmd); err != nil {
		fmt.Fprintf(os.Stderr, "send %s: %v\n", cmd, err)
		os.Exit(1)
	}
	fmt.Printf("sent %s to daemon (pid %d)\n", cmd, pid)
}

// runLogs prints the last n lines of the daemon log.
func runLogs(dirs DataPaths, n int) {
	tail, err := logger.ReadTail(dirs.Log(), n)
	if err != nil {
		fmt.Fprintf(os.Stderr, "read log: %v\n", err)
		os.Exit(1)
	}
	fmt.Print(tail)
}

// ///////////////////////////////////////////////
// Main
// ///////////////////////////////////////////////

func main() {
	dataDir := flag.String("data-dir", defaultDataDir(), "Data directory for config, credentials, and logs")
	showVersion := flag.Bool("version", false, "Print the version and exit")
	controlCmd := flag.String("control", "", "Send a command to a running daemon (pause, resume, quit) and exit")
	logLines := flag.Int("logs", 0, "Print the last N log lines and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(resolveVersion())
		return
	}

	dirs := DataPaths{Root: *dataDir}

	if *controlCmd != "" {
		runControl(dirs, *controlCmd)
		return
	}
	if *logLines > 0 {
		runLogs(dirs, *logLines)
		return
	}

	if err := os.MkdirAll(dirs.Root, 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: create data dir: %v\n", err)
		os.Exit(1)
	}

	if alive, pid := checkStalePID(dirs); alive {
		fmt.Fprintf(os.Stderr, "daemon already running (pid %d)\n", pid)
		os.Exit(1)
	}

	if _, err := os.Stat(dirs.Config()); os.IsNotExist(err) {
		if writeErr := os.WriteFile(dirs.Config(), rootpkg.DefaultConfigTOML, 0o644); writeErr != nil {
			fmt.Fprintf(os.Stderr, "warning: failed to write default config: %v\n", writeErr)
		}
	}

	cfg, err := config.Load(dirs.Root)
	if err != nil {
		fmt.Fprintf(os.Stderr, "fatal: load config: %v\n", err)
		os.Exit(1)
	}

	logLevel := logger.ParseLevel(cfg.Log.Level)
	log, logCloser, err := logger.NewLogger(dirs.Log(), logLevel, cfg.Log.MaxSizeMB)
	if err != nil {
		fmt.Fprintf(os.Stderr, "fatal: init logger: %v\n", err)
		os.Exit(1)
	}
	defer logCloser.Close()
	slog.SetDefault(log)

	ver := resolveVersion()
	slog.Info("traktcord starting", "version", ver, "data_dir", dirs.Root)

	importLegacy(cfg, dirs)

	store := credentials.NewStore(dirs.Root)
	if wrote, tmplErr := store.WriteTemplate(); tmplErr != nil {
		slog.Warn("failed to write credentials template", "error", tmplErr)
	} else if wrote {
		slog.Info("wrote credentials template, fill in your Trakt API keys", "path", store.Path())
	}

	go func() {
		defer func() {
			if r := recover(); r != nil {
				slog.Error("update check panic", "error", r)
			}
		}()
		update.Check(ver)
	}()

	token := pidToken()
	pidFile, err := writePID(dirs, token)
	if err != nil {
		logger.Fail(log, "failed to write PID file", "error", err)
		os.Exit(1)
	}
	defer removePID(dirs, token, pidFile)

	watcher, err := control.NewWatcher(dirs.Control())
	if err != nil {
		logger.Fail(log, "failed to watch control file", "error", err)
		os.Exit(1)
	}
	defer watcher.Close()
	if watcher.Polling() {
		slog.Info("using polling mode for control file watching")
	}

	eng := engine.New(cfg, dirs, engine.Deps{
		Store:    store,
		TMDB:     tmdb.NewClient(cfg.TMDB.APIKey, cfg.TMDB.Language, ""),
		Presence: discord.NewClient(cfg.Discord.MovieAppID),
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		sig := <-signalChannel()
		slog.Info("received shutdown signal", "signal", sig.String())
		cancel()
	}()

	if runErr := eng.Run(ctx, watcher.Commands()); runErr != nil && !errors.Is(runErr, context.Canceled) {
		logger.Fail(log, "daemon loop failed", "error", runErr)
		return
	}
	slog.Info("traktcord stopped")
}
