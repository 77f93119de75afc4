package main

import (
	"fmt"
	"os"
	"strings"
	"testing"

	"tools.zach/dev/traktcord/internal/config"
	"tools.zach/dev/traktcord/internal/migrate"
)

// ///////////////////////////////////////////////
// resolveVersion Tests
// ///////////////////////////////////////////////

func TestResolveVersionWithLdflags(t *testing.T) {
	// When version is set to something other than "dev", it should be returned as-is.
	original := version
	defer func() { version = original }()

	version = "1.2.3"
	got := resolveVersion()
	if got != "1.2.3" {
		t.Errorf("resolveVersion() = %q, want %q", got, "1.2.3")
	}
}

func TestResolveVersionDev(t *testing.T) {
	// When version is "dev", resolveVersion falls through to debug.ReadBuildInfo.
	// In test binaries, ReadBuildInfo may or may not return VCS info.
	// We just verify it returns a non-empty string.
	original := version
	defer func() { version = original }()

	version = "dev"
	got := resolveVersion()
	if got == "" {
		t.Error("resolveVersion() returned empty string")
	}
	// It should either be "dev" (no VCS info) or "dev+<hash>" or "dev+<hash>.dirty".
	if !strings.HasPrefix(got, "dev") {
		t.Errorf("resolveVersion() = %q, expected to start with 'dev'", got)
	}
}

// ///////////////////////////////////////////////
// defaultDataDir Tests
// ///////////////////////////////////////////////

func TestDefaultDataDir(t *testing.T) {
	dir := defaultDataDir()
	if dir == "" {
		t.Fatal("defaultDataDir() returned empty string")
	}
	// Both the home-relative path and the ./.traktcord fallback end the same
	// way; filepath.Join normalizes separators for the current OS.
	if !strings.HasSuffix(dir, "traktcord") {
		t.Errorf("defaultDataDir() = %q, want path ending in %q", dir, "traktcord")
	}
}

// ///////////////////////////////////////////////
// mergeLegacy Tests
// ///////////////////////////////////////////////

func TestMergeLegacy_FillsEmptyFields(t *testing.T) {
	cfg := config.DefaultConfig()
	legacy := &migrate.LegacyConfig{
		Username:     "zach",
		DiscordAppID: "999999999999999999",
		TMDBKey:      "legacy-tmdb-key",
	}

	if !mergeLegacy(cfg, legacy) {
		t.Fatal("mergeLegacy() = false, want true")
	}
	if cfg.Trakt.Username != "zach" {
		t.Errorf("Username = %q, want %q", cfg.Trakt.Username, "zach")
	}
	// The predecessor had a single application, so both IDs take it.
	if cfg.Discord.MovieAppID != "999999999999999999" || cfg.Discord.ShowAppID != "999999999999999999" {
		t.Errorf("app IDs = %q/%q, want legacy ID for both",
			cfg.Discord.MovieAppID, cfg.Discord.ShowAppID)
	}
	if cfg.TMDB.APIKey != "legacy-tmdb-key" {
		t.Errorf("TMDB.APIKey = %q, want %q", cfg.TMDB.APIKey, "legacy-tmdb-key")
	}
}

func TestMergeLegacy_PreservesUserValues(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Trakt.Username = "configured-user"
	cfg.Discord.MovieAppID = "111111111111111111"
	cfg.TMDB.APIKey = "configured-key"

	legacy := &migrate.LegacyConfig{
		Username:     "legacy-user",
		DiscordAppID: "999999999999999999",
		TMDBKey:      "legacy-key",
	}

	if mergeLegacy(cfg, legacy) {
		t.Error("mergeLegacy() = true, want false when everything is configured")
	}
	if cfg.Trakt.Username != "configured-user" {
		t.Errorf("Username overwritten: %q", cfg.Trakt.Username)
	}
	if cfg.Discord.MovieAppID != "111111111111111111" {
		t.Errorf("MovieAppID overwritten: %q", cfg.Discord.MovieAppID)
	}
	if cfg.TMDB.APIKey != "configured-key" {
		t.Errorf("TMDB.APIKey overwritten: %q", cfg.TMDB.APIKey)
	}
}

func TestMergeLegacy_AppIDNeedsBothDefaults(t *testing.T) {
	// One customized app ID means the user has moved past the predecessor's
	// single-application setup; the legacy ID must not clobber either field.
	cfg := config.DefaultConfig()
	cfg.Discord.ShowAppID = "111111111111111111"

	legacy := &migrate.LegacyConfig{
		Username:     "zach",
		DiscordAppID: "999999999999999999",
	}

	if !mergeLegacy(cfg, legacy) {
		t.Fatal("mergeLegacy() = false, want true (username still merged)")
	}
	if cfg.Discord.MovieAppID != config.DefaultMovieAppID {
		t.Errorf("MovieAppID = %q, want default kept", cfg.Discord.MovieAppID)
	}
	if cfg.Discord.ShowAppID != "111111111111111111" {
		t.Errorf("ShowAppID = %q, want custom kept", cfg.Discord.ShowAppID)
	}
}

func TestMergeLegacy_EmptyLegacyNoChange(t *testing.T) {
	cfg := config.DefaultConfig()
	if mergeLegacy(cfg, &migrate.LegacyConfig{}) {
		t.Error("mergeLegacy() = true for an empty legacy config")
	}
}

// ///////////////////////////////////////////////
// pidToken Tests
// ///////////////////////////////////////////////

func TestPidToken_Unique(t *testing.T) {
	a := pidToken()
	b := pidToken()
	if a == b {
		t.Errorf("pidToken() returned the same value twice: %q", a)
	}
}

func TestPidToken_Length(t *testing.T) {
	tok := pidToken()
	if len(tok) != 16 {
		t.Errorf("pidToken() length = %d, want 16", len(tok))
	}
}

// ///////////////////////////////////////////////
// writePID / removePID Tests
// ///////////////////////////////////////////////

func TestWritePID_CreatesFile(t *testing.T) {
	dp := DataPaths{Root: t.TempDir()}
	token := pidToken()

	f, err := writePID(dp, token)
	if err != nil {
		t.Fatalf("writePID() error: %v", err)
	}
	defer func() {
		_ = unlockFile(f)
		f.Close()
	}()

	if _, err := os.Stat(dp.PID()); os.IsNotExist(err) {
		t.Fatal("PID file was not created")
	}
}

func TestWritePID_FileContainsPID(t *testing.T) {
	dp := DataPaths{Root: t.TempDir()}
	token := pidToken()

	f, err := writePID(dp, token)
	if err != nil {
		t.Fatalf("writePID() error: %v", err)
	}
	defer func() {
		_ = unlockFile(f)
		f.Close()
	}()

	// Read through the open handle — on Windows the lock prevents os.ReadFile.
	if _, err := f.Seek(0, 0); err != nil {
		t.Fatalf("Seek() error: %v", err)
	}
	data := make([]byte, 256)
	n, err := f.Read(data)
	if err != nil {
		t.Fatalf("Read() error: %v", err)
	}

	expected := fmt.Sprintf("%d:%s", os.Getpid(), token)
	if string(data[:n]) != expected {
		t.Errorf("PID file content = %q, want %q", string(data[:n]), expected)
	}
}

func TestRemovePID_MatchingToken(t *testing.T) {
	dp := DataPaths{Root: t.TempDir()}
	token := pidToken()

	f, err := writePID(dp, token)
	if err != nil {
		t.Fatalf("writePID() error: %v", err)
	}

	removePID(dp, token, f)

	if _, err := os.Stat(dp.PID()); !os.IsNotExist(err) {
		t.Error("PID file should have been removed with matching token")
	}
}

func TestRemovePID_MismatchedToken(t *testing.T) {
	dp := DataPaths{Root: t.TempDir()}
	token := pidToken()

	f, err := writePID(dp, token)
	if err != nil {
		t.Fatalf("writePID() error: %v", err)
	}

	removePID(dp, "wrong-token", f)

	if _, err := os.Stat(dp.PID()); os.IsNotExist(err) {
		t.Error("PID file should NOT have been removed with mismatched token")
	}

	// Clean up the file that was intentionally kept.
	os.Remove(dp.PID())
}

func TestRemovePID_NilFile(t *testing.T) {
	dp := DataPaths{Root: t.TempDir()}

	// Should not panic with a nil file handle.
	removePID(dp, "any-token", nil)
}

// ///////////////////////////////////////////////
// checkStalePID Tests
// ///////////////////////////////////////////////

func TestCheckStalePID_NoFile(t *testing.T) {
	dp := DataPaths{Root: t.TempDir()}

	alive, pid := checkStalePID(dp)
	if alive {
		t.Error("checkStalePID() returned alive=true with no PID file")
	}
	if pid != 0 {
		t.Errorf("checkStalePID() pid = %d, want 0", pid)
	}
}

func TestCheckStalePID_StalePID(t *testing.T) {
	dp := DataPaths{Root: t.TempDir()}

	// Write a PID file without holding a lock — simulates a dead process.
	if err := os.WriteFile(dp.PID(), []byte("99999:staletoken"), 0o600); err != nil {
		t.Fatalf("WriteFile() error: %v", err)
	}

	alive, pid := checkStalePID(dp)
	if alive {
		t.Error("checkStalePID() returned alive=true for stale PID")
	}
	if pid != 0 {
		t.Errorf("checkStalePID() pid = %d, want 0 for stale", pid)
	}

	// Stale PID file should have been cleaned up.
	if _, err := os.Stat(dp.PID()); !os.IsNotExist(err) {
		t.Error("stale PID file should have been removed")
	}
}
