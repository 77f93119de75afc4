// Package paths centralizes file and directory names used across the project.
// All data directory file names are defined here as the single source of truth.
package paths

import "path/filepath"

// ///////////////////////////////////////////////
// Constants
// ///////////////////////////////////////////////

// Data directory file names.
const (
	PIDFile         = "daemon.pid"
	ConfigFile      = "config.toml"
	CredentialsFile = "credentials.toml"
	LegacyINIFile   = "credentials.ini"
	LogFile         = "daemon.log"
	ControlFile     = "control"
	StatusFile      = "status.json"
)

const (
	BinaryName = "traktcord"
	DataDirRel = ".config/traktcord" // relative to $HOME
)

// Remote-fetched file paths (relative to repo root).
const (
	ReleaseManifest = ".release-manifest.json"
)

// ///////////////////////////////////////////////
// DataDir
// ///////////////////////////////////////////////

// DataDir provides path construction methods rooted at a data directory.
type DataDir struct {
	Root string
}

// PID returns the full path to the PID file.
func (d DataDir) PID() string { return filepath.Join(d.Root, PIDFile) }

// Config returns the full path to the config file.
func (d DataDir) Config() string { return filepath.Join(d.Root, ConfigFile) }

// Credentials returns the full path to the credentials file.
func (d DataDir) Credentials() string { return filepath.Join(d.Root, CredentialsFile) }

// LegacyINI returns the full path to a predecessor credentials.ini file.
func (d DataDir) LegacyINI() string { return filepath.Join(d.Root, LegacyINIFile) }

// Log returns the full path to the log file.
func (d DataDir) Log() string { return filepath.Join(d.Root, LogFile) }

// Control returns the full path to the control command file.
func (d DataDir) Control() string { return filepath.Join(d.Root, ControlFile) }

// Status returns the full path to the status snapshot file.
func (d DataDir) Status() string { return filepath.Join(d.Root, StatusFile) }
