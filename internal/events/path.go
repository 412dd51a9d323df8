package events

import (
	"fmt"
	"os"
	"path/filepath"
)

// SocketPath returns override when set, else the default socket location:
// $XDG_RUNTIME_DIR/pane-relay/events.sock, or a per-user directory under
// the system temp dir.
func SocketPath(override string) string {
	if override != "" {
		return override
	}
	if dir := os.Getenv("XDG_RUNTIME_DIR"); dir != "" {
		return filepath.Join(dir, "pane-relay", "events.sock")
	}
	return filepath.Join(os.TempDir(), fmt.Sprintf("pane-relay-%d", os.Getuid()), "events.sock")
}
