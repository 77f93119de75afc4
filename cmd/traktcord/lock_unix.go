// PID file locking for Unix-likes via flock(2).
//
// Compiled on every non-Windows platform. The daemon holds an exclusive
// advisory lock on the PID file for its whole lifetime, so a second
// instance fails its non-blocking acquire instead of clobbering the file.

//go:build !windows

package main

import (
	"fmt"
	"os"
	"syscall"
)

// ///////////////////////////////////////////////
// File Locking
// ///////////////////////////////////////////////

// lockFile takes the exclusive advisory lock on f without blocking. When
// another process holds the lock the error is immediate (EWOULDBLOCK),
// which callers read as "daemon already running".
func lockFile(f *os.File) error {
	if err := syscall.Flock(int(f.Fd()), syscall.LOCK_EX|syscall.LOCK_NB); err != nil {
		return fmt.Errorf("lock file %s: %w", f.Name(), err)
	}
	return nil
}

// unlockFile drops the advisory lock ahead of closing the descriptor, which
// would also release it.
func unlockFile(f *os.File) error {
	if err := syscall.Flock(int(f.Fd()), syscall.LOCK_UN); err != nil {
		return fmt.Errorf("unlock file %s: %w", f.Name(), err)
	}
	return nil
}
