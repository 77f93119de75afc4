// conn_unix.go implements Discord IPC socket discovery for Unix-like
// systems (Linux, macOS, FreeBSD). Discord may run as a regular install,
// a Snap, or a Flatpak, and as the stable, Canary, or PTB build; each
// combination gets its own socket location.

//go:build !windows

package discord

import (
	"fmt"
	"net"
	"os"
	"strconv"
)

// ///////////////////////////////////////////////
// Connection
// ///////////////////////////////////////////////

// connectToDiscord dials each candidate socket path in preference order
// and returns the first connection that succeeds.
func connectToDiscord() (net.Conn, error) {
	for _, path := range socketCandidates() {
		conn, err := net.Dial("unix", path)
		if err == nil {
			return conn, nil
		}
	}

	if isWSL() {
		return nil, fmt.Errorf("%w: running under WSL - set up a relay with socat + npiperelay.exe (see project docs)", ErrIPCNotAvailable)
	}
	return nil, ErrIPCNotAvailable
}

// socketCandidates builds the list of socket paths to probe. Dialing a
// missing path is cheap, so overlap between groups is fine.
func socketCandidates() []string {
	var paths []string

	// Socket name prefixes for the Discord build variants.
	variants := []string{"discord-ipc", "discordcanary-ipc", "discordptb-ipc"}

	// XDG_RUNTIME_DIR is the preferred runtime directory on most systems.
	if dir := os.Getenv("XDG_RUNTIME_DIR"); dir != "" {
		for _, v := range variants {
			for i := 0; i < maxIPCSlots; i++ {
				paths = append(paths, fmt.Sprintf("%s/%s-%d", dir, v, i))
			}
		}
	}

	// /tmp fallback for systems without XDG_RUNTIME_DIR.
	for _, v := range variants {
		for i := 0; i < maxIPCSlots; i++ {
			paths = append(paths, fmt.Sprintf("/tmp/%s-%d", v, i))
		}
	}

	// Snap-packaged Discord confines its sockets to a per-snap directory.
	uid := strconv.Itoa(os.Getuid())
	for _, sd := range []string{"snap.discord", "snap.discord-canary", "snap.discord-ptb"} {
		for i := 0; i < maxIPCSlots; i++ {
			paths = append(paths, fmt.Sprintf("/run/user/%s/%s/discord-ipc-%d", uid, sd, i))
		}
	}

	// Flatpak-packaged Discord uses an app-scoped directory.
	flatpakApps := []string{
		"com.discordapp.Discord",
		"com.discordapp.DiscordCanary",
		"com.discordapp.DiscordPTB",
	}
	for _, app := range flatpakApps {
		for i := 0; i < maxIPCSlots; i++ {
			paths = append(paths, fmt.Sprintf("/run/user/%s/app/%s/discord-ipc-%d", uid, app, i))
		}
	}

	// Under WSL a socat/npiperelay bridge may expose the Windows pipe as
	// a Unix socket in one of the standard locations.
	return append(paths, wslSocketPaths()...)
}
