// Shutdown signals on Windows.
//
// Windows has no SIGTERM. The Go runtime maps CTRL_C_EVENT,
// CTRL_BREAK_EVENT and console-close to [os.Interrupt], which is the only
// signal registered here.

//go:build windows

package main

import (
	"os"
	"os/signal"
)

// ///////////////////////////////////////////////
// Signal Handling
// ///////////////////////////////////////////////

// signalChannel returns a channel delivering os.Interrupt. The buffer of 1
// keeps a signal from being lost while the receiver is busy.
func signalChannel() <-chan os.Signal {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, os.Interrupt)
	return ch
}
