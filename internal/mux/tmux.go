package mux

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"strconv"
	"strings"

	"github.com/timvw/pane-relay/internal/model"
)

// paneFields is the list-panes format, one tab separated field each. The
// working directory comes last so a path containing a tab stays intact.
var paneFields = []string{
	"#{session_name}:#{window_index}.#{pane_index}",
	"#{pane_pid}",
	"#{pane_current_command}",
	"#{pane_width}",
	"#{pane_height}",
	"#{pane_active}",
	"#{window_active}",
	"#{pane_current_path}",
}

// Tmux talks to the tmux server through the tmux binary.
type Tmux struct {
	// exec runs tmux with args and returns stdout. Replaced in tests.
	exec func(ctx context.Context, args ...string) (string, error)
	// attached is true when running inside a tmux client, so SelectPane
	// can also switch that client's session.
	attached bool
}

// NewTmux returns a Tmux using the tmux binary on PATH.
func NewTmux() *Tmux {
	return &Tmux{exec: runTmux, attached: os.Getenv("TMUX") != ""}
}

func (t *Tmux) Name() string { return "tmux" }

// ListPanes lists the panes of all sessions matching filter.
func (t *Tmux) ListPanes(ctx context.Context, filter string) ([]model.Pane, error) {
	var re *regexp.Regexp
	if filter != "" {
		var err error
		if re, err = regexp.Compile(filter); err != nil {
			return nil, fmt.Errorf("invalid filter pattern %q: %w", filter, err)
		}
	}

	out, err := t.exec(ctx, "list-panes", "-a", "-F", strings.Join(paneFields, "\t"))
	if err != nil {
		return nil, fmt.Errorf("tmux list-panes: %w", err)
	}

	var panes []model.Pane
	for _, line := range strings.Split(out, "\n") {
		p, ok := parsePaneLine(line)
		if !ok {
			continue
		}
		if re != nil && !re.MatchString(p.Session) {
			continue
		}
		panes = append(panes, p)
	}
	return panes, nil
}

// parsePaneLine parses one line of list-panes output. Lines with a
// malformed target are skipped; missing trailing fields stay zero.
func parsePaneLine(line string) (model.Pane, bool) {
	fields := strings.SplitN(strings.TrimRight(line, "\r"), "\t", len(paneFields))
	if len(fields) < 3 {
		return model.Pane{}, false
	}
	p, err := model.ParseTarget(fields[0])
	if err != nil {
		return model.Pane{}, false
	}
	field := func(i int) string {
		if i < len(fields) {
			return fields[i]
		}
		return ""
	}
	p.PID, _ = strconv.Atoi(field(1))
	p.Command = field(2)
	p.Width, _ = strconv.Atoi(field(3))
	p.Height, _ = strconv.Atoi(field(4))
	p.Active = field(5) == "1" && field(6) == "1"
	p.Path = field(7)
	return p, true
}

// CapturePane captures the visible screen of target (-p to stdout, -J to
// join wrapped lines).
func (t *Tmux) CapturePane(ctx context.Context, target string) (string, error) {
	if _, err := model.ParseTarget(target); err != nil {
		return "", err
	}
	out, err := t.exec(ctx, "capture-pane", "-t", target, "-p", "-J")
	if err != nil {
		return "", fmt.Errorf("tmux capture-pane -t %s: %w", target, err)
	}
	return out, nil
}

// SelectPane selects target's window and pane. Inside a tmux client the
// client is switched to target's session as well.
func (t *Tmux) SelectPane(ctx context.Context, target string) error {
	p, err := model.ParseTarget(target)
	if err != nil {
		return err
	}
	steps := [][]string{
		{"select-window", "-t", fmt.Sprintf("%s:%d", p.Session, p.Window)},
		{"select-pane", "-t", target},
	}
	if t.attached {
		steps = append(steps, []string{"switch-client", "-t", target})
	}
	for _, args := range steps {
		if _, err := t.exec(ctx, args...); err != nil {
			return fmt.Errorf("tmux %s -t %s: %w", args[0], args[2], err)
		}
	}
	return nil
}

// runTmux runs the tmux binary. A non-zero exit carries tmux's stderr.
func runTmux(ctx context.Context, args ...string) (string, error) {
	out, err := exec.CommandContext(ctx, "tmux", args...).Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return "", fmt.Errorf("%w: %s", err, strings.TrimSpace(string(exitErr.Stderr)))
		}
		return "", err
	}
	return string(out), nil
}
