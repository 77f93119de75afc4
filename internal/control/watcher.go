// Package control is the daemon's on-disk command and status surface.
//
// A running daemon watches a control file for single-line commands
// (pause, resume, quit) written by a second invocation of the binary,
// and mirrors its current state into a status file for tray-like
// consumers. Both files live in the data directory.
package control

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
)

// ///////////////////////////////////////////////
// Commands
// ///////////////////////////////////////////////

// Command is a control-file instruction for a running daemon.
type Command string

const (
	// CmdPause suspends presence publishing; polling continues.
	CmdPause Command = "pause"
	// CmdResume lifts a pause and re-evaluates immediately.
	CmdResume Command = "resume"
	// CmdQuit shuts the daemon down cleanly.
	CmdQuit Command = "quit"
)

// ParseCommand maps a control-file line to a Command.
func ParseCommand(s string) (Command, bool) {
	switch Command(strings.ToLower(strings.TrimSpace(s))) {
	case CmdPause:
		return CmdPause, true
	case CmdResume:
		return CmdResume, true
	case CmdQuit:
		return CmdQuit, true
	}
	return "", false
}

// Send writes a command into the control file of a (presumably) running
// daemon. The daemon consumes and truncates the file.
func Send(path string, cmd Command) error {
	if err := os.WriteFile(path, []byte(string(cmd)+"\n"), 0o644); err != nil {
		return fmt.Errorf("write control file: %w", err)
	}
	return nil
}

// ///////////////////////////////////////////////
// Watcher
// ///////////////////////////////////////////////

// Watcher monitors the control file and delivers parsed commands.
// Detection uses fsnotify on the containing directory (the file usually
// does not exist until the first command) with a polling fallback.
type Watcher struct {
	// path is the absolute path of the control file.
	path string
	// commands delivers parsed commands. Buffered so a short burst does
	// not stall the watcher goroutine.
	commands chan Command
	// done is closed by [Watcher.Close] to signal goroutines to exit.
	done chan struct{}
	// fsw is the underlying fsnotify watcher; nil when polling.
	fsw *fsnotify.Watcher
	// once ensures [Watcher.Close] is idempotent.
	once sync.Once
	// polling is true when the watcher has fallen back to stat-based polling.
	polling atomic.Bool
	// pollInterval is the duration between stat calls in polling mode.
	pollInterval time.Duration
}

// NewWatcher creates a Watcher for the given control file path. The
// containing directory must exist. Any command already sitting in the
// file is consumed on the first change; stale pre-start commands are
// discarded here instead.
func NewWatcher(controlPath string) (*Watcher, error) {
	w := &Watcher{
		path:         controlPath,
		commands:     make(chan Command, 4),
		done:         make(chan struct{}),
		pollInterval: 2 * time.Second,
	}

	// A command written before the daemon started is stale; drop it so
	// e.g. an old "quit" does not kill the fresh instance.
	w.discardStale()

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		slog.Info("fsnotify unavailable, falling back to polling", "error", err)
		w.polling.Store(true)
		go w.poll()
		return w, nil
	}

	w.fsw = fsw
	if err := fsw.Add(filepath.Dir(controlPath)); err != nil {
		slog.Info("cannot watch control directory, falling back to polling", "path", controlPath, "error", err)
		fsw.Close()
		w.fsw = nil
		w.polling.Store(true)
		go w.poll()
		return w, nil
	}

	go w.watch()
	return w, nil
}

// Commands returns the channel on which parsed commands arrive.
func (w *Watcher) Commands() <-chan Command {
	return w.commands
}

// Polling reports whether the watcher is using polling instead of fsnotify.
func (w *Watcher) Polling() bool {
	return w.polling.Load()
}

// Close stops the watcher and releases resources.
func (w *Watcher) Close() error {
	var err error
	w.once.Do(func() {
		close(w.done)
		if w.fsw != nil {
			if closeErr := w.fsw.Close(); closeErr != nil {
				err = fmt.Errorf("closing fsnotify watcher: %w", closeErr)
			}
		}
	})
	return err
}

// discardStale truncates any leftover control file content.
func (w *Watcher) discardStale() {
	info, err := os.Stat(w.path)
	if err != nil || info.Size() == 0 {
		return
	}
	if err := os.Truncate(w.path, 0); err == nil {
		slog.Debug("discarded stale control command")
	}
}

// watch loops over fsnotify events on the control directory, consuming
// the control file whenever it is written or created.
func (w *Watcher) watch() {
	for {
		select {
		case <-w.done:
			return
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if (event.Has(fsnotify.Write) || event.Has(fsnotify.Create)) && filepath.Base(event.Name) == filepath.Base(w.path) {
				w.consume()
			}
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			slog.Info("fsnotify error, switching to polling", "error", err)
			w.fsw.Close()
			w.fsw = nil
			w.polling.Store(true)
			go w.poll()
			return
		}
	}
}

// poll periodically stats the control file and consumes it when the
// modification time advances. Runs as a fallback when fsnotify is
// unavailable.
func (w *Watcher) poll() {
	var lastMod time.Time
	if info, err := os.Stat(w.path); err == nil {
		lastMod = info.ModTime()
	}

	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-w.done:
			return
		case <-ticker.C:
			info, err := os.Stat(w.path)
			if err != nil {
				continue
			}
			if info.ModTime().After(lastMod) {
				lastMod = info.ModTime()
				w.consume()
			}
		}
	}
}

// consume reads the control file, truncates it, and delivers the parsed
// command. An empty file (our own truncation echoing back through the
// watcher) is a no-op; unrecognized content is logged and dropped.
func (w *Watcher) consume() {
	data, err := os.ReadFile(w.path)
	if err != nil {
		return
	}
	line := strings.TrimSpace(string(data))
	if line == "" {
		return
	}

	if err := os.Truncate(w.path, 0); err != nil {
		slog.Warn("failed to truncate control file", "error", err)
	}

	cmd, ok := ParseCommand(line)
	if !ok {
		slog.Warn("ignoring unknown control command", "command", line)
		return
	}

	select {
	case w.commands <- cmd:
	default:
		slog.Warn("control command dropped, channel full", "command", cmd)
	}
}
