// Shutdown signals on Unix-likes.
//
// SIGINT covers interactive Ctrl+C; SIGTERM is what systemd, launchd and
// container runtimes send for a graceful stop.

//go:build !windows

package main

import (
	"os"
	"os/signal"
	"syscall"
)

// ///////////////////////////////////////////////
// Signal Handling
// ///////////////////////////////////////////////

// signalChannel returns a channel delivering SIGINT and SIGTERM. The buffer
// of 1 keeps a signal from being lost while the receiver is busy.
func signalChannel() <-chan os.Signal {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, os.Interrupt, syscall.SIGTERM)
	return ch
}
