// Package credentials persists the Trakt API application keys and OAuth
// tokens for the traktcord daemon.
//
// The file is TOML with a single [trakt] table, written with 0600
// permissions — everything in it is secret. The application keys
// (client_id, client_secret) are supplied by the user once; the token
// fields are owned by the authenticator and rewritten after every grant
// or refresh.
package credentials

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
	"tools.zach/dev/traktcord/internal/atomicfile"
	"tools.zach/dev/traktcord/internal/paths"
)

// ErrNotConfigured reports that no usable credentials exist yet: the
// file is missing or the API application keys are blank. Distinct from
// I/O failures so the caller can route to first-run setup.
var ErrNotConfigured = errors.New("credentials not configured")

// ///////////////////////////////////////////////
// Types
// ///////////////////////////////////////////////

// Credentials holds the Trakt API application keys and OAuth tokens.
type Credentials struct {
	// ClientID is the Trakt API application's client ID.
	ClientID string `toml:"client_id"`
	// ClientSecret is the Trakt API application's client secret.
	ClientSecret string `toml:"client_secret"`
	// AccessToken is the OAuth bearer token for API calls.
	AccessToken string `toml:"access_token,omitempty"`
	// RefreshToken exchanges for a new access token when it expires.
	RefreshToken string `toml:"refresh_token,omitempty"`
	// ExpiresAt is when AccessToken stops being accepted.
	ExpiresAt time.Time `toml:"expires_at,omitempty"`
}

// credentialsFile is the on-disk shape: a single [trakt] table.
type credentialsFile struct {
	Trakt Credentials `toml:"trakt"`
}

// HasToken reports whether an access token is present.
func (c *Credentials) HasToken() bool {
	return c.AccessToken != ""
}

// NeedsRefresh reports whether the access token is missing or will
// expire within margin of now.
func (c *Credentials) NeedsRefresh(now time.Time, margin time.Duration) bool {
	if !c.HasToken() {
		return true
	}
	return !now.Add(margin).Before(c.ExpiresAt)
}

// ///////////////////////////////////////////////
// Store
// ///////////////////////////////////////////////

// Store reads and writes the credentials file in a data directory.
type Store struct {
	path string
}

// NewStore returns a Store bound to dataDir's credentials file.
func NewStore(dataDir string) *Store {
	return &Store{path: filepath.Join(dataDir, paths.CredentialsFile)}
}

// Path returns the credentials file path.
func (s *Store) Path() string {
	return s.path
}

// Load reads the credentials file. A missing file or blank application
// keys yield [ErrNotConfigured]; anything else that goes wrong is an
// ordinary error.
func (s *Store) Load() (*Credentials, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotConfigured
		}
		return nil, fmt.Errorf("read credentials file: %w", err)
	}

	var f credentialsFile
	if err := toml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse credentials file: %w", err)
	}

	c := f.Trakt
	if c.ClientID == "" || c.ClientSecret == "" {
		return nil, fmt.Errorf("%w: client_id and client_secret must be set in %s", ErrNotConfigured, s.path)
	}
	return &c, nil
}

// Save writes the credentials atomically with 0600 permissions.
func (s *Store) Save(c *Credentials) error {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(credentialsFile{Trakt: *c}); err != nil {
		return fmt.Errorf("encoding credentials: %w", err)
	}
	return atomicfile.Write(s.path, buf.Bytes(), 0o600)
}

// templateContent is written on first run for the user to fill in.
const templateContent = `# Trakt API credentials for traktcord. Keep this file private.
#
# Create an API application at https://trakt.tv/oauth/applications
# (redirect URI urn:ietf:wg:oauth:2.0:oob works) and fill in both keys,
# then restart the daemon to start device authorization. Token fields
# are managed by the daemon — leave them alone.

[trakt]
client_id = ""
client_secret = ""
`

// WriteTemplate creates a commented skeleton credentials file if none
// exists. Reports whether a file was written.
func (s *Store) WriteTemplate() (bool, error) {
	if _, err := os.Stat(s.path); err == nil {
		return false, nil
	} else if !os.IsNotExist(err) {
		return false, fmt.Errorf("stat credentials file: %w", err)
	}
	if err := atomicfile.Write(s.path, []byte(templateContent), 0o600); err != nil {
		return false, fmt.Errorf("write credentials template: %w", err)
	}
	return true, nil
}
