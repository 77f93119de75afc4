// Package main prints the SemVer build version baked into Traktcord binaries
// through ldflags. It replaces the usual git describe + sed pipeline so
// release builds produce the same string on Windows and Unix.
//
// Output depends on the state of the checkout:
//
//	No tags, clean:     0.0.0-dev+4be9acc
//	No tags, dirty:     0.0.0-dev+4be9acc.dirty
//	On tag v0.2.0:      0.2.0
//	Dirty tag:          0.2.0-dirty
//	2 past v0.2.0:      0.2.0-dev.2+g4be9acc
//	Same but dirty:     0.2.0-dev.2+g4be9acc.dirty
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"strings"
)

func main() {
	fmt.Print(buildVersion())
}

// describeRe splits a git describe result into tag, commits-past-tag and
// abbreviated hash. Tags containing dashes stay inside the first group.
var describeRe = regexp.MustCompile(`^(.+)-(\d+)-(g[0-9a-f]+)$`)

// buildVersion assembles the version string from git state. Checkouts without
// any v-prefixed tag fall back to the manifest base version plus commit hash.
func buildVersion() string {
	dirty := isDirty()

	if desc, ok := git("describe", "--tags", "--match", "v*"); ok {
		return fromDescribe(desc, dirty)
	}

	hash, ok := git("rev-parse", "--short=7", "HEAD")
	if !ok {
		return baseVersion() + "-dev"
	}
	v := baseVersion() + "-dev+" + hash
	if dirty {
		v += ".dirty"
	}
	return v
}

// fromDescribe converts a git describe result such as "v0.2.0-2-g4be9acc"
// into "0.2.0-dev.2+g4be9acc". Local changes append ".dirty" to the build
// metadata, or "-dirty" when the checkout sits exactly on a tag.
func fromDescribe(desc string, dirty bool) string {
	desc = strings.TrimPrefix(desc, "v")

	if m := describeRe.FindStringSubmatch(desc); m != nil {
		meta := m[3]
		if dirty {
			meta += ".dirty"
		}
		return fmt.Sprintf("%s-dev.%s+%s", m[1], m[2], meta)
	}

	// Exactly on a tag.
	if dirty {
		return desc + "-dirty"
	}
	return desc
}

// git runs a git subcommand and returns its trimmed stdout.
func git(args ...string) (string, bool) {
	out, err := exec.Command("git", args...).Output()
	if err != nil {
		return "", false
	}
	return strings.TrimSpace(string(out)), true
}

// isDirty reports whether the working tree has uncommitted changes.
func isDirty() bool {
	out, ok := git("status", "--porcelain")
	return ok && out != ""
}

// baseVersion reads the root version from the release manifest in the current
// directory. Missing or malformed manifests fall back to "0.0.0".
func baseVersion() string {
	data, err := os.ReadFile(".release-manifest.json")
	if err != nil {
		return "0.0.0"
	}
	var manifest map[string]string
	if err := json.Unmarshal(data, &manifest); err != nil {
		return "0.0.0"
	}
	if v := manifest["."]; v != "" {
		return v
	}
	return "0.0.0"
}
