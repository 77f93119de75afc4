// Package presence turns watch-status snapshots into Discord Rich
// Presence decisions. The [Machine] tracks the current playback session
// so repeated polls of the same item keep their original start time, and
// emits a publish, a clear, or nothing for each poll.
package presence

import (
	"math"
	"time"

	"tools.zach/dev/traktcord/internal/discord"
)

// State is the publishing state of the machine.
type State int

const (
	// Idle means no presence is published.
	Idle State = iota
	// Publishing means a presence card is live.
	Publishing
)

func (s State) String() string {
	if s == Publishing {
		return "publishing"
	}
	return "idle"
}

// Directive is what the caller should do with the Discord connection
// after a poll.
type Directive int

const (
	// DirectiveNone means leave the published state alone.
	DirectiveNone Directive = iota
	// DirectivePublish means send the decision's activity.
	DirectivePublish
	// DirectiveClear means remove the published activity.
	DirectiveClear
)

// Decision is the outcome of one poll. Kind and Activity are set only
// for DirectivePublish.
type Decision struct {
	Directive Directive
	Kind      string
	Activity  *discord.Activity
}

// ///////////////////////////////////////////////
// Machine
// ///////////////////////////////////////////////

// Machine decides when presence is published, updated, and cleared. It
// is driven from a single goroutine and holds no locks.
type Machine struct {
	// threshold is the minimum progress movement, in percent, that
	// justifies republishing inside a session.
	threshold float64
	// refreshEvery republishes after this many quiet polls, keeping the
	// card alive across Discord restarts.
	refreshEvery int
	// showOnPause keeps the card up when the remote player pauses
	// instead of clearing it.
	showOnPause bool

	state        State
	identity     string
	sessionStart time.Time
	sessionEnd   time.Time
	lastProgress float64
	quietPolls   int
	suspended    bool
}

// NewMachine returns a machine. thresholdPercent and refreshEvery follow
// the behavior config; onRemotePause is "clear" or "show".
func NewMachine(thresholdPercent float64, refreshEvery int, onRemotePause string) *Machine {
	if refreshEvery < 1 {
		refreshEvery = 1
	}
	return &Machine{
		threshold:    thresholdPercent,
		refreshEvery: refreshEvery,
		showOnPause:  onRemotePause == "show",
	}
}

// State returns the current publishing state.
func (m *Machine) State() State {
	return m.state
}

// Suspended reports whether publishing is suspended by a user pause.
func (m *Machine) Suspended() bool {
	return m.suspended
}

// SessionStart returns the start time of the current session, zero when
// idle.
func (m *Machine) SessionStart() time.Time {
	return m.sessionStart
}

// Advance feeds the machine one poll. snap is nil when nothing is
// playing. The returned decision is final: the machine already assumes
// the caller carries it out.
func (m *Machine) Advance(snap *Snapshot, now time.Time) Decision {
	if m.suspended {
		return Decision{Directive: DirectiveNone}
	}
	if snap == nil || (snap.Paused && !m.showOnPause) {
		return m.clearIfPublishing()
	}

	identity := snap.Identity()
	if m.state != Publishing || identity != m.identity {
		// New session. Anchor the start so elapsed time survives later
		// polls without jitter.
		m.state = Publishing
		m.identity = identity
		m.sessionStart = now.Add(-snap.Elapsed)
		m.sessionEnd = time.Time{}
		if snap.Runtime > 0 {
			m.sessionEnd = m.sessionStart.Add(snap.Runtime)
		}
		m.lastProgress = snap.Progress()
		m.quietPolls = 0
		return Decision{
			Directive: DirectivePublish,
			Kind:      snap.Kind,
			Activity:  buildActivity(snap, m.sessionStart, m.sessionEnd),
		}
	}

	// Same session: republish only when progress moved enough or the
	// card is due a keep-alive refresh.
	m.quietPolls++
	progress := snap.Progress()
	if math.Abs(progress-m.lastProgress) < m.threshold && m.quietPolls < m.refreshEvery {
		return Decision{Directive: DirectiveNone}
	}
	m.lastProgress = progress
	m.quietPolls = 0
	return Decision{
		Directive: DirectivePublish,
		Kind:      snap.Kind,
		Activity:  buildActivity(snap, m.sessionStart, m.sessionEnd),
	}
}

// Suspend pauses publishing on user request. Polling continues; the
// machine stays silent until Resume.
func (m *Machine) Suspend() Decision {
	if m.suspended {
		return Decision{Directive: DirectiveNone}
	}
	m.suspended = true
	return m.clearIfPublishing()
}

// Resume lifts a user pause. The next Advance re-evaluates from the
// latest snapshot as if from idle.
func (m *Machine) Resume() {
	m.suspended = false
}

// Reset drops any session without emitting a decision. Used when the
// publisher already knows the card is gone, such as after a shutdown
// clear.
func (m *Machine) Reset() {
	m.clearIfPublishing()
}

func (m *Machine) clearIfPublishing() Decision {
	if m.state != Publishing {
		return Decision{Directive: DirectiveNone}
	}
	m.state = Idle
	m.identity = ""
	m.sessionStart = time.Time{}
	m.sessionEnd = time.Time{}
	m.lastProgress = 0
	m.quietPolls = 0
	return Decision{Directive: DirectiveClear}
}
