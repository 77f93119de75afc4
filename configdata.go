// Package traktcord holds the assets compiled into the Traktcord binary.
//
// The root package exists only to carry the go:embed of config.default.toml.
// The daemon copies [DefaultConfigTOML] into the data directory on first run
// so a fresh install starts from a fully annotated config file.
package traktcord

import _ "embed"

// DefaultConfigTOML is the annotated default configuration, regenerated by
// go generate from the config package's docs.
//
//go:embed config.default.toml
var DefaultConfigTOML []byte
