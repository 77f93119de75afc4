// conn_windows.go finds the Discord client on Windows. Discord listens on
// named pipes \\.\pipe\discord-ipc-0 through -9, one per running client,
// dialed here with go-winio.

//go:build windows

package discord

import (
	"fmt"
	"net"

	"github.com/Microsoft/go-winio"
)

// ///////////////////////////////////////////////
// Connection
// ///////////////////////////////////////////////

// connectToDiscord walks the pipe slots in order and returns the first that
// accepts. A busy or absent slot just falls through to the next.
func connectToDiscord() (net.Conn, error) {
	for i := 0; i < maxIPCSlots; i++ {
		conn, err := winio.DialPipe(fmt.Sprintf(`\\.\pipe\discord-ipc-%d`, i), nil)
		if err == nil {
			return conn, nil
		}
	}
	return nil, ErrIPCNotAvailable
}
