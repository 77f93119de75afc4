// legacy.go imports the predecessor client's credentials.ini. The
// predecessor kept everything — account, API keys, OAuth tokens,
// Discord app ID, TMDB key — in one INI file; traktcord splits that
// into config.toml and a 0600 credentials.toml.

package migrate

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/ini.v1"
	"tools.zach/dev/traktcord/internal/credentials"
	"tools.zach/dev/traktcord/internal/paths"
)

// LegacyConfig carries the non-secret values from a predecessor
// credentials.ini that belong in config.toml.
type LegacyConfig struct {
	// Username is the Trakt account name ([Trakt API] traktUser).
	Username string
	// DiscordAppID is the single app ID the predecessor used for all
	// media ([Discord] discordClientID).
	DiscordAppID string
	// TMDBKey is the artwork API key ([TMDB API] tmdbToken).
	TMDBKey string
}

// HasLegacyINI reports whether dataDir contains a predecessor credentials.ini.
func HasLegacyINI(dataDir string) bool {
	_, err := os.Stat(filepath.Join(dataDir, paths.LegacyINIFile))
	return err == nil
}

// ImportLegacyINI reads dataDir/credentials.ini, persists its API keys
// and OAuth tokens through the credentials store, and returns the values
// that belong in config.toml. The INI file is left in place; call
// [BackupLegacyINI] once the config has been updated, so a crash midway
// re-runs the import instead of losing it.
func ImportLegacyINI(dataDir string) (*LegacyConfig, error) {
	path := filepath.Join(dataDir, paths.LegacyINIFile)
	f, err := ini.Load(path)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", paths.LegacyINIFile, err)
	}

	trakt := f.Section("Trakt API")
	creds := &credentials.Credentials{
		ClientID:     trakt.Key("traktClientID").String(),
		ClientSecret: trakt.Key("traktClientSecret").String(),
		AccessToken:  trakt.Key("OAuthAccessToken").String(),
		RefreshToken: trakt.Key("OAuthRefreshToken").String(),
	}
	if creds.ClientID == "" {
		return nil, fmt.Errorf("%s has no traktClientID", paths.LegacyINIFile)
	}

	// The predecessor stored the expiry as unix seconds. Absent or
	// unparseable imports as already expired, forcing a refresh on
	// first use.
	if raw := trakt.Key("OAuthRefreshTokenExpiresAt").String(); raw != "" {
		if secs, parseErr := strconv.ParseInt(raw, 10, 64); parseErr == nil {
			creds.ExpiresAt = time.Unix(secs, 0).UTC()
		}
	}

	if err := credentials.NewStore(dataDir).Save(creds); err != nil {
		return nil, fmt.Errorf("save imported credentials: %w", err)
	}

	return &LegacyConfig{
		Username:     trakt.Key("traktUser").String(),
		DiscordAppID: f.Section("Discord").Key("discordClientID").String(),
		TMDBKey:      f.Section("TMDB API").Key("tmdbToken").String(),
	}, nil
}

// BackupLegacyINI renames credentials.ini to credentials.ini.bak so the
// import never runs twice.
func BackupLegacyINI(dataDir string) error {
	path := filepath.Join(dataDir, paths.LegacyINIFile)
	return os.Rename(path, path+".bak")
}
