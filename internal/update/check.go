// Package update implements the daemon's best-effort release check. At
// startup Traktcord compares its own build version against the published
// release manifest and logs when a newer build exists. Failures never
// affect the sync loop; they degrade to a debug log line.
package update

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"tools.zach/dev/traktcord/internal/paths"
	"tools.zach/dev/traktcord/internal/remote"
)

const fetchTimeout = 5 * time.Second

// maxManifestSize bounds the manifest download. The file is a couple hundred
// bytes in practice.
const maxManifestSize = 64 << 10

// ///////////////////////////////////////////////
// Public API
// ///////////////////////////////////////////////

// Check logs when the release manifest advertises a version newer than
// current. Safe to run concurrently with the rest of the daemon.
func Check(current string) {
	url := remote.RawURL(paths.ReleaseManifest)
	if url == "" {
		slog.Debug("release check skipped, no remote configured")
		return
	}
	checkAgainst(url, current)
}

// ///////////////////////////////////////////////
// Internal helpers
// ///////////////////////////////////////////////

// checkAgainst is the body of Check with the manifest location fixed.
func checkAgainst(url, current string) {
	latest, err := fetchLatest(url)
	if err != nil {
		slog.Debug("release check failed", "error", err)
		return
	}
	if latest == "" || latest == current {
		return
	}
	cur, okCur := parseVersion(current)
	rel, okRel := parseVersion(latest)
	if okCur && okRel && cur.less(rel) {
		slog.Info("newer release available", "current", current, "latest", latest)
	}
}

// fetchLatest downloads the release manifest and returns the version recorded
// under its root "." key, which tracks the latest stable release.
func fetchLatest(url string) (string, error) {
	client := &http.Client{Timeout: fetchTimeout}
	resp, err := client.Get(url)
	if err != nil {
		return "", fmt.Errorf("GET %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("GET %s: status %d", url, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxManifestSize))
	if err != nil {
		return "", fmt.Errorf("reading manifest: %w", err)
	}

	var manifest map[string]string
	if err := json.Unmarshal(body, &manifest); err != nil {
		return "", fmt.Errorf("parsing manifest: %w", err)
	}
	return manifest["."], nil
}

// ///////////////////////////////////////////////
// Version comparison
// ///////////////////////////////////////////////

// version is a parsed SemVer triple. pre marks a pre-release suffix, which
// sorts before the plain release of the same triple.
type version struct {
	major, minor, patch int
	pre                 bool
}

// parseVersion parses forms like "1.2.3", "v1.2.3" and "0.1.0-dev+abc1234".
// Build metadata after "+" is ignored and does not count as a pre-release.
// ok is false for anything that is not three dot-separated numeric parts.
func parseVersion(s string) (version, bool) {
	s = strings.TrimPrefix(s, "v")

	// Strip build metadata first so a "-" inside it is not mistaken for a
	// pre-release marker.
	if i := strings.IndexByte(s, '+'); i >= 0 {
		s = s[:i]
	}
	var v version
	if i := strings.IndexByte(s, '-'); i >= 0 {
		v.pre = true
		s = s[:i]
	}

	parts := strings.Split(s, ".")
	if len(parts) != 3 {
		return version{}, false
	}
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 {
			return version{}, false
		}
		switch i {
		case 0:
			v.major = n
		case 1:
			v.minor = n
		case 2:
			v.patch = n
		}
	}
	return v, true
}

// less orders versions by the numeric triple, with a pre-release sorting
// before the release it precedes.
func (v version) less(o version) bool {
	if v.major != o.major {
		return v.major < o.major
	}
	if v.minor != o.minor {
		return v.minor < o.minor
	}
	if v.patch != o.patch {
		return v.patch < o.patch
	}
	return v.pre && !o.pre
}
