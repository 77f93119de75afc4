package main

import (
	"strings"
	"testing"

	"tools.zach/dev/traktcord/internal/config"
)

// ///////////////////////////////////////////////
// displayName Tests
// ///////////////////////////////////////////////

func TestDisplayName(t *testing.T) {
	tests := []struct {
		name    string
		section string
		want    string
	}{
		{"single segment", "behavior", "Behavior"},
		{"last of two", "tmdb.images", "Images"},
		{"last of three", "tmdb.images.poster", "Poster"},
		{"already capitalized", "Privacy", "Privacy"},
		{"single char", "a", "A"},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := displayName(tt.section); got != tt.want {
				t.Errorf("displayName(%q) = %q, want %q", tt.section, got, tt.want)
			}
		})
	}
}

// ///////////////////////////////////////////////
// generator Tests
// ///////////////////////////////////////////////

func TestFlushOmittedWithoutSection(t *testing.T) {
	// Top-level keys have no section prefix, so there is nothing to flush.
	g := &generator{emitted: map[string]bool{}}
	g.flushOmitted()
	if len(g.out) != 0 {
		t.Errorf("flushOmitted with no open section produced %d lines, want 0", len(g.out))
	}
}

func TestRender(t *testing.T) {
	text, err := render()
	if err != nil {
		t.Fatalf("render: %v", err)
	}

	if !strings.HasPrefix(text, "# ///////////////////////////////////////////////\n# Traktcord Configuration") {
		t.Error("output does not start with the file banner")
	}
	if !strings.HasSuffix(text, "\n") {
		t.Error("output does not end with a newline")
	}

	for _, section := range []string{"trakt", "discord", "tmdb", "behavior", "privacy", "log"} {
		if !strings.Contains(text, "["+section+"]") {
			t.Errorf("output is missing the [%s] section", section)
		}
	}
}

func TestRenderCoversAllDocs(t *testing.T) {
	text, err := render()
	if err != nil {
		t.Fatalf("render: %v", err)
	}

	// Every documented option must surface in the generated file, either on
	// its encoded line or as a commented-out omitted entry.
	for path, doc := range config.ConfigDocs {
		if doc.Comment != "" {
			first := strings.SplitN(doc.Comment, "\n", 2)[0]
			if !strings.Contains(text, "# "+first) {
				t.Errorf("comment for %q missing from output", path)
			}
		}
		for _, alt := range doc.Alternatives {
			if !strings.Contains(text, "# "+alt) {
				t.Errorf("alternative %q for %q missing from output", alt, path)
			}
		}
	}
}
