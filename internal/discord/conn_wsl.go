// conn_wsl.go handles the WSL case, where Discord runs on the Windows
// host and its IPC endpoint is a named pipe that WSL2 cannot reach as a
// Unix socket. A relay bridges the gap:
//
//	socat UNIX-LISTEN:/tmp/discord-ipc-0,fork EXEC:"npiperelay.exe -ep -s //./pipe/discord-ipc-0"
//
// This file contributes the socket paths such a relay would create.
// Without a relay the paths simply do not exist and discovery falls
// through to ErrIPCNotAvailable.

//go:build linux

package discord

import (
	"fmt"
	"os"
	"strings"
)

// isWSL reports whether the current process is running inside WSL.
func isWSL() bool {
	data, err := os.ReadFile("/proc/version")
	if err != nil {
		return false
	}
	return strings.Contains(strings.ToLower(string(data)), "microsoft")
}

// wslSocketPaths returns the socket locations a socat/npiperelay bridge
// would typically use. Empty outside WSL.
func wslSocketPaths() []string {
	if !isWSL() {
		return nil
	}

	var paths []string
	for i := 0; i < maxIPCSlots; i++ {
		paths = append(paths, fmt.Sprintf("/tmp/discord-ipc-%d", i))
	}
	if dir := os.Getenv("XDG_RUNTIME_DIR"); dir != "" {
		for i := 0; i < maxIPCSlots; i++ {
			paths = append(paths, fmt.Sprintf("%s/discord-ipc-%d", dir, i))
		}
	}
	return paths
}
