package main

import (
	"os"
	"testing"
)

// chdir switches the working directory to dir and restores the previous
// one when the test finishes; stands in for t.Chdir, which needs Go 1.24.
func chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		if err := os.Chdir(prev); err != nil {
			t.Errorf("restoring working directory: %v", err)
		}
	})
}

// ///////////////////////////////////////////////
// fromDescribe Tests
// ///////////////////////////////////////////////

func TestFromDescribe(t *testing.T) {
	tests := []struct {
		name  string
		desc  string
		dirty bool
		want  string
	}{
		{"exact tag", "v0.1.0", false, "0.1.0"},
		{"exact tag dirty", "v0.1.0", true, "0.1.0-dirty"},
		{"major release", "v1.0.0", false, "1.0.0"},
		{"prerelease tag", "v2.0.0-beta.1", false, "2.0.0-beta.1"},
		{"prerelease tag dirty", "v2.0.0-beta.1", true, "2.0.0-beta.1-dirty"},
		{"commits past tag", "v0.1.0-3-g1234567", false, "0.1.0-dev.3+g1234567"},
		{"commits past tag dirty", "v0.1.0-3-g1234567", true, "0.1.0-dev.3+g1234567.dirty"},
		{"one past tag", "v1.0.0-1-gabcdef0", false, "1.0.0-dev.1+gabcdef0"},
		{"many past tag", "v2.5.0-42-g9999999", false, "2.5.0-dev.42+g9999999"},
		{"past prerelease tag", "v2.0.0-beta.1-2-g4be9acc", false, "2.0.0-beta.1-dev.2+g4be9acc"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := fromDescribe(tt.desc, tt.dirty)
			if got != tt.want {
				t.Errorf("fromDescribe(%q, %v) = %q, want %q", tt.desc, tt.dirty, got, tt.want)
			}
		})
	}
}

// ///////////////////////////////////////////////
// baseVersion Tests
// ///////////////////////////////////////////////

func TestBaseVersionMissingManifest(t *testing.T) {
	chdir(t, t.TempDir())

	if got := baseVersion(); got != "0.0.0" {
		t.Errorf("baseVersion() = %q, want fallback 0.0.0", got)
	}
}

func TestBaseVersionReadsManifest(t *testing.T) {
	chdir(t, t.TempDir())
	if err := os.WriteFile(".release-manifest.json", []byte(`{".": "0.3.0"}`), 0o644); err != nil {
		t.Fatal(err)
	}

	if got := baseVersion(); got != "0.3.0" {
		t.Errorf("baseVersion() = %q, want %q", got, "0.3.0")
	}
}

func TestBaseVersionMalformedManifest(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"invalid json", "not json"},
		{"no root key", `{"docs": "1.0.0"}`},
		{"empty root value", `{".": ""}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chdir(t, t.TempDir())
			if err := os.WriteFile(".release-manifest.json", []byte(tt.body), 0o644); err != nil {
				t.Fatal(err)
			}

			if got := baseVersion(); got != "0.0.0" {
				t.Errorf("baseVersion() = %q, want fallback 0.0.0", got)
			}
		})
	}
}

// ///////////////////////////////////////////////
// buildVersion Tests
// ///////////////////////////////////////////////

func TestBuildVersionNeverEmpty(t *testing.T) {
	// Every git state, including no git at all, must still yield a version.
	if got := buildVersion(); got == "" {
		t.Error("buildVersion() returned empty string")
	}
}
