package control

import (
	"time"

	"tools.zach/dev/traktcord/internal/atomicfile"
)

// Daemon states as written to the status file.
const (
	StateNeedsSetup      = "needs-setup"
	StateAuthorizing     = "authorizing"
	StateUnauthenticated = "unauthenticated"
	StateWatching        = "watching"
	StateIdle            = "idle"
	StatePaused          = "paused"
	StateError           = "error"
	StateStopped         = "stopped"
)

// Status is the daemon state snapshot mirrored into status.json so
// external consumers (tray widgets, scripts) can read it without talking
// to the daemon.
type Status struct {
	// State is one of the State* constants.
	State string `json:"state"`
	// Title is the watched title, when something is playing.
	Title string `json:"title,omitempty"`
	// Detail carries the second line: episode position, rating, a user
	// action hint, or an error summary depending on State.
	Detail string `json:"detail,omitempty"`
	// Progress is the playback position in percent, when known.
	Progress float64 `json:"progress,omitempty"`
	// UpdatedAt is when this snapshot was written.
	UpdatedAt time.Time `json:"updated_at"`
}

// Same reports whether two snapshots are equal apart from UpdatedAt.
// Used to skip rewriting an unchanged status file every poll.
func (s Status) Same(o Status) bool {
	s.UpdatedAt = time.Time{}
	o.UpdatedAt = time.Time{}
	return s == o
}

// WriteStatus writes the status snapshot atomically.
func WriteStatus(path string, st Status) error {
	return atomicfile.WriteJSON(path, st, 0o644)
}
