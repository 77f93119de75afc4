package config

// ///////////////////////////////////////////////
// Documentation Types
// ///////////////////////////////////////////////

// FieldDoc holds documentation and alternative examples for a single config field.
// The genconfig tool uses [FieldDoc] values to annotate the generated config.default.toml.
type FieldDoc struct {
	// Comment is shown as a header comment above the field in the example config.
	Comment string

	// Alternatives are shown as commented-out lines below the active value.
	Alternatives []string
}

// ///////////////////////////////////////////////
// Field Documentation Map
// ///////////////////////////////////////////////

// ConfigDocs maps TOML field paths (dot-separated, e.g. "behavior.on_remote_pause")
// to their [FieldDoc] entries. The genconfig tool uses this map to annotate the
// generated config.default.toml with inline comments and alternative examples.
var ConfigDocs = map[string]FieldDoc{
	// ── Root ──────────────────────────────────────────────────────
	"version": {
		Comment: "Config schema version — do not edit.",
	},

	// ── Trakt ────────────────────────────────────────────────────
	"trakt.username": {
		Comment: "Trakt account whose watch activity drives the presence.\nAPI keys and OAuth tokens live in credentials.toml, not here.",
	},

	// ── Discord ──────────────────────────────────────────────────
	"discord.movie_app_id": {
		Comment: "Discord application IDs for Rich Presence. Movies and shows use\nseparate apps so the card can say \"Watching a movie\" vs \"Watching\na show\" and carry different assets. Override with your own apps\nif you want custom images.",
	},
	"discord.show_app_id": {},

	// ── TMDB ─────────────────────────────────────────────────────
	"tmdb.api_key": {
		Comment: "TMDB API key for poster artwork. Leave empty to skip artwork —\nthe card falls back to the static movie/show assets.",
	},
	"tmdb.language": {
		Comment: "Request localized titles from TMDB (e.g. \"de\", \"pt-BR\").\nEmpty keeps the titles Trakt reports.",
		Alternatives: []string{
			`language = "de"`,
			`language = "pt-BR"`,
		},
	},

	// ── Behavior ─────────────────────────────────────────────────
	"behavior.poll_interval_seconds": {
		Comment: "How often to poll Trakt for watch activity (seconds).",
	},
	"behavior.reconnect_interval_seconds": {
		Comment: "Minimum gap between Discord connection attempts (seconds).",
	},
	"behavior.on_remote_pause": {
		Comment: "What to do when playback is paused on the media server.\nOptions: \"clear\", \"show\"\n  clear: hide the presence until playback resumes\n  show:  keep the card up while paused",
		Alternatives: []string{
			`on_remote_pause = "show"`,
		},
	},
	"behavior.progress_threshold_percent": {
		Comment: "Minimum progress movement (percent) before an unchanged title\nrepublishes its card.",
	},
	"behavior.refresh_every_cycles": {
		Comment: "Force a republish after this many unchanged polls so the Discord\ntimer never drifts far from reality.",
	},

	// ── Privacy ──────────────────────────────────────────────────
	"privacy.hide_titles": {
		Comment: "Titles that must never appear in the presence card.\nGlob patterns, matched case-insensitively against the title\n(and the show title for episodes).",
		Alternatives: []string{
			`hide_titles = [`,
			`  "* guilty pleasure *",`,
			`  "Keeping Up With *",`,
			`]`,
		},
	},

	// ── Log ──────────────────────────────────────────────────────
	"log": {
		Comment: "Logging configuration",
	},
	"log.level": {
		Comment: "Minimum log level. Options: \"trace\", \"debug\", \"info\", \"warn\", \"error\"",
		Alternatives: []string{
			`level = "debug"`,
			`level = "warn"`,
		},
	},
	"log.max_size_mb": {
		Comment: "Maximum log file size in megabytes before rotation.",
	},
}
