package mux

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
)

// Detect picks the multiplexer for the current environment.
func Detect() (Multiplexer, error) {
	return detect(os.Getenv, tmuxServerRunning)
}

func detect(getenv func(string) string, serverRunning func() bool) (Multiplexer, error) {
	switch {
	case getenv("TMUX") != "":
		return NewTmux(), nil
	case getenv("ZELLIJ") != "":
		return nil, errors.New("zellij panes cannot be mirrored; run pane-relay against a tmux server")
	case serverRunning():
		return NewTmux(), nil
	}
	return nil, errors.New("no tmux server found (start tmux or set --mux)")
}

// tmuxServerRunning reports whether a tmux binary is installed and answers
// list-sessions.
func tmuxServerRunning() bool {
	path, err := exec.LookPath("tmux")
	if err != nil {
		return false
	}
	return exec.Command(path, "list-sessions").Run() == nil
}

// FromName returns the multiplexer called name. An empty name detects it.
func FromName(name string) (Multiplexer, error) {
	switch name {
	case "":
		return Detect()
	case "tmux":
		return NewTmux(), nil
	default:
		return nil, fmt.Errorf("unknown multiplexer %q (supported: tmux)", name)
	}
}
