// Package main implements the genconfig tool that regenerates
// config.default.toml from config.ExampleConfig and the ConfigDocs notes.
//
// It is invoked by go generate via the directive in internal/config/config.go.
package main

import (
	"bytes"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
	"tools.zach/dev/traktcord/internal/config"
)

func main() {
	text, err := render()
	if err != nil {
		fmt.Fprintf(os.Stderr, "genconfig: %v\n", err)
		os.Exit(1)
	}

	// go generate runs from internal/config/, so the repo root sits two
	// levels up. configdata.go embeds the file from there.
	outPath := "../../config.default.toml"
	if err := os.WriteFile(outPath, []byte(text), 0o644); err != nil {
		fmt.Fprintf(os.Stderr, "write %s: %v\n", outPath, err)
		os.Exit(1)
	}
	fmt.Printf("wrote config.default.toml\n")
}

// render produces the complete annotated config.default.toml text.
func render() (string, error) {
	var raw bytes.Buffer
	if err := toml.NewEncoder(&raw).Encode(config.ExampleConfig()); err != nil {
		return "", fmt.Errorf("marshal: %w", err)
	}

	g := &generator{emitted: map[string]bool{}}
	g.header()
	for _, line := range strings.Split(raw.String(), "\n") {
		g.line(line)
	}
	g.flushOmitted()

	return strings.TrimRight(strings.Join(g.out, "\n"), "\n") + "\n", nil
}

// generator walks the encoder output line by line, stripping indentation and
// splicing in the comments and alternatives from config.ConfigDocs.
type generator struct {
	out     []string
	section []string        // current TOML section path
	emitted map[string]bool // doc keys already written
}

func (g *generator) header() {
	g.out = append(g.out,
		"# ///////////////////////////////////////////////",
		"# Traktcord Configuration",
		"# ///////////////////////////////////////////////",
		"",
	)
}

// line dispatches a single line of encoder output.
func (g *generator) line(line string) {
	trimmed := strings.TrimSpace(line)

	// The encoder's blank lines are dropped; spacing is ours to manage.
	if trimmed == "" {
		return
	}
	if strings.HasPrefix(trimmed, "[") && !strings.HasPrefix(trimmed, "[[") {
		g.sectionHeader(trimmed)
		return
	}
	if !strings.Contains(trimmed, "=") || strings.HasPrefix(trimmed, "#") {
		g.out = append(g.out, trimmed)
		return
	}
	g.keyValue(trimmed)
}

// sectionHeader opens a new [section], emitting a banner and any
// section-level comment. Omitted fields of the previous section are flushed
// first so they land under their own banner.
func (g *generator) sectionHeader(trimmed string) {
	g.flushOmitted()

	section := strings.Trim(trimmed, "[] ")
	g.section = strings.Split(section, ".")

	g.out = append(g.out, "", fmt.Sprintf("# ///// %s /////", displayName(section)), "")
	if doc, ok := config.ConfigDocs[section]; ok && doc.Comment != "" {
		g.comment(doc.Comment)
	}
	g.out = append(g.out, trimmed)
}

// keyValue writes one key = value line with its documentation around it.
func (g *generator) keyValue(trimmed string) {
	key := strings.TrimSpace(strings.SplitN(trimmed, "=", 2)[0])
	path := key
	if len(g.section) > 0 {
		path = strings.Join(g.section, ".") + "." + key
	}
	g.emitted[path] = true

	doc, ok := config.ConfigDocs[path]
	if !ok {
		g.out = append(g.out, trimmed)
		return
	}
	if doc.Comment != "" {
		g.comment(doc.Comment)
	}
	g.out = append(g.out, trimmed)
	for _, alt := range doc.Alternatives {
		g.out = append(g.out, "# "+alt)
	}
}

// comment splits a multi-line doc comment into prefixed lines.
func (g *generator) comment(text string) {
	for _, cl := range strings.Split(text, "\n") {
		g.out = append(g.out, "# "+cl)
	}
}

// flushOmitted appends commented-out entries for documented keys of the
// current section that the encoder skipped, typically omitempty fields at
// their zero value. Every documented option ends up in the generated file
// this way. Keys are sorted for deterministic output.
func (g *generator) flushOmitted() {
	if len(g.section) == 0 {
		return
	}
	prefix := strings.Join(g.section, ".") + "."

	var omitted []string
	for path := range config.ConfigDocs {
		rest, ok := strings.CutPrefix(path, prefix)
		if !ok || strings.Contains(rest, ".") || g.emitted[path] {
			continue
		}
		omitted = append(omitted, path)
	}
	sort.Strings(omitted)

	for _, path := range omitted {
		doc := config.ConfigDocs[path]
		g.out = append(g.out, "")
		if doc.Comment != "" {
			g.comment(doc.Comment)
		}
		for _, alt := range doc.Alternatives {
			g.out = append(g.out, "# "+alt)
		}
		g.emitted[path] = true
	}
}

// displayName turns the last segment of a dotted section path into a
// capitalized banner label, so "tmdb.images" becomes "Images".
func displayName(section string) string {
	parts := strings.Split(section, ".")
	last := parts[len(parts)-1]
	if last == "" {
		return ""
	}
	return strings.ToUpper(last[:1]) + last[1:]
}
