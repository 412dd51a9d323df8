package model

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Pane represents a terminal multiplexer pane.
type Pane struct {
	// Target is the fully qualified pane identifier (e.g., "session:0.0").
	Target string `json:"target"`
	// Session is the session name.
	Session string `json:"session"`
	// Window is the window index.
	Window int `json:"window"`
	// Pane is the pane index.
	Pane int `json:"pane"`
	// PID is the pane's shell process ID.
	PID int `json:"pid"`
	// Command is the current command running in the pane (e.g., "node", "bash").
	Command string `json:"command"`
	// Path is the pane's current working directory.
	Path string `json:"path,omitempty"`
	// Width and Height are the pane size in cells.
	Width  int `json:"width,omitempty"`
	Height int `json:"height,omitempty"`
	// Active is true for the selected pane of the selected window.
	Active bool `json:"active,omitempty"`
}

// Activity states reported for a pane.
const (
	StateUnknown = "unknown"
	StateActive  = "active"
	StateIdle    = "idle"
)

// PaneStatus is what a viewer shows for one pane: where it is, which
// branch it is on, and whether its agent has been active recently.
type PaneStatus struct {
	Target  string `json:"target"`
	Session string `json:"session"`
	Command string `json:"command"`
	Path    string `json:"path,omitempty"`
	// Active mirrors Pane.Active: the pane currently has the session's focus.
	Active bool `json:"active,omitempty"`

	// RepoRoot and Branch are empty when the pane is not inside a git
	// repository or the lookup failed.
	RepoRoot string `json:"repo_root,omitempty"`
	Branch   string `json:"branch,omitempty"`
	// HasPR is true when an open pull request exists for Branch.
	HasPR bool `json:"has_pr"`

	// State is StateActive, StateIdle, StateUnknown, or the agent state
	// reported by a hook (e.g., "waiting_input").
	State string `json:"state"`
	// LastActivity is the time of the last accepted activity event.
	LastActivity *time.Time `json:"last_activity,omitempty"`

	// Error is set when the pane could not be inspected.
	Error string `json:"error,omitempty"`
}

// ParseTarget parses a tmux target string "session:window.pane" into a Pane.
func ParseTarget(target string) (Pane, error) {
	colonIdx := strings.LastIndex(target, ":")
	if colonIdx < 0 {
		return Pane{}, fmt.Errorf("invalid target %q: missing ':'", target)
	}

	session := target[:colonIdx]
	rest := target[colonIdx+1:]

	dotIdx := strings.LastIndex(rest, ".")
	if dotIdx < 0 {
		return Pane{}, fmt.Errorf("invalid target %q: missing '.'", target)
	}

	window, err := strconv.Atoi(rest[:dotIdx])
	if err != nil {
		return Pane{}, fmt.Errorf("invalid window index in %q: %w", target, err)
	}

	pane, err := strconv.Atoi(rest[dotIdx+1:])
	if err != nil {
		return Pane{}, fmt.Errorf("invalid pane index in %q: %w", target, err)
	}

	return Pane{
		Target:  target,
		Session: session,
		Window:  window,
		Pane:    pane,
	}, nil
}

// SplitLines splits captured pane content into screen lines, dropping the
// trailing newline tmux appends.
func SplitLines(content string) []string {
	content = strings.TrimSuffix(content, "\n")
	if content == "" {
		return []string{}
	}
	return strings.Split(content, "\n")
}
