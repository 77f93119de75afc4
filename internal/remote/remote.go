// Package remote resolves the GitHub location Traktcord releases are
// published under and builds raw-content URLs from it.
//
// Release builds pin the location through ldflags. Development builds fall
// back to the origin remote of the surrounding git checkout, so a plain
// `go build` still points the release check at the right repository.
package remote

import (
	"context"
	"log/slog"
	"os/exec"
	"regexp"
	"sync"
	"time"
)

// Injected at build time:
//
//	-X tools.zach/dev/traktcord/internal/remote.ldOwner=...
//	-X tools.zach/dev/traktcord/internal/remote.ldRepo=...
var (
	ldOwner string
	ldRepo  string
)

// origin is a resolved GitHub location. The zero value means neither ldflags
// nor a git checkout could supply one.
type origin struct {
	owner string
	repo  string
}

var (
	resolveOnce sync.Once
	resolved    origin
)

// githubRemoteRe pulls owner and repo out of HTTPS (github.com/owner/repo)
// and SSH (github.com:owner/repo) remote URLs alike.
var githubRemoteRe = regexp.MustCompile(`github\.com[:/]([^/]+)/([^/.]+)`)

// resolve determines the origin once per process, preferring ldflags over
// the local checkout.
func resolve() origin {
	resolveOnce.Do(func() {
		if ldOwner != "" && ldRepo != "" {
			resolved = origin{owner: ldOwner, repo: ldRepo}
			return
		}
		resolved = gitOrigin()
	})
	return resolved
}

// gitOrigin derives the location from the checkout's origin remote. Returns
// the zero origin when git is unavailable or the remote is not on GitHub.
func gitOrigin() origin {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	out, err := exec.CommandContext(ctx, "git", "remote", "get-url", "origin").Output()
	if err != nil {
		slog.Debug("remote location unresolved, no ldflags and no git origin", "error", err)
		return origin{}
	}
	m := githubRemoteRe.FindStringSubmatch(string(out))
	if len(m) != 3 {
		return origin{}
	}
	return origin{owner: m[1], repo: m[2]}
}

// Owner returns the GitHub repository owner, or "" when unresolved.
func Owner() string { return resolve().owner }

// Repo returns the GitHub repository name, or "" when unresolved.
func Repo() string { return resolve().repo }

// RawURL builds the raw.githubusercontent.com URL for path on the main
// branch. Returns "" when the location is unresolved.
func RawURL(path string) string {
	o := resolve()
	if o.owner == "" || o.repo == "" {
		return ""
	}
	return "https://raw.githubusercontent.com/" + o.owner + "/" + o.repo + "/main/" + path
}
