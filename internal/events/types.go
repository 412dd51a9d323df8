// Package events carries pane focus and activity notifications from shell
// and agent hooks to a running pane-relay: the datagram format, the socket
// that receives it and the store of the latest activity per pane.
package events

import (
	"errors"
	"fmt"
	"time"

	"github.com/timvw/pane-relay/internal/activity"
	"github.com/timvw/pane-relay/internal/model"
)

// Event kinds.
const (
	// KindFocus: the user moved focus to the pane.
	KindFocus = "focus"
	// KindActivity: the pane's agent did something.
	KindActivity = "activity"
)

// Agent states a hook may attach to an activity event.
const (
	StateWaitingInput    = "waiting_input"
	StateWaitingApproval = "waiting_approval"
	StateRunning         = "running"
	StateCompleted       = "completed"
	StateError           = "error"
	StateIdle            = "idle"
)

var knownStates = map[string]bool{
	StateWaitingInput:    true,
	StateWaitingApproval: true,
	StateRunning:         true,
	StateCompleted:       true,
	StateError:           true,
	StateIdle:            true,
}

// Event is one focus or activity notification for a pane.
//
// TS is the raw string the hook sent: RFC 3339, or ISO-8601 without a zone
// read as UTC. An empty or unparseable TS is still a valid event; an
// activity event without a usable TS is never treated as a focus echo.
type Event struct {
	Kind      string `json:"kind"`
	Target    string `json:"target"`
	TS        string `json:"ts,omitempty"`
	Assistant string `json:"assistant,omitempty"`
	State     string `json:"state,omitempty"`
	Message   string `json:"message,omitempty"`
}

// NewFocus returns a focus event for target stamped at now.
func NewFocus(target string, now time.Time) Event {
	return Event{Kind: KindFocus, Target: target, TS: formatTS(now)}
}

// NewActivity returns an activity event for target stamped at now. state
// may be empty.
func NewActivity(target, state string, now time.Time) Event {
	return Event{Kind: KindActivity, Target: target, TS: formatTS(now), State: state}
}

func formatTS(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// Validate checks the kind, the target and, for activity events, the state.
func (e Event) Validate() error {
	if _, err := model.ParseTarget(e.Target); err != nil {
		return err
	}
	switch e.Kind {
	case KindFocus:
		if e.State != "" {
			return errors.New("focus events carry no state")
		}
	case KindActivity:
		if e.State != "" && !knownStates[e.State] {
			return fmt.Errorf("invalid state %q", e.State)
		}
	default:
		return fmt.Errorf("invalid kind %q", e.Kind)
	}
	return nil
}

// Time parses TS. It returns false when TS is empty or malformed.
func (e Event) Time() (time.Time, bool) {
	if e.TS == "" {
		return time.Time{}, false
	}
	t, err := activity.ParseTimestamp(e.TS)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// IsAttentionState reports whether the agent is blocked on the user.
func IsAttentionState(state string) bool {
	return state == StateWaitingInput || state == StateWaitingApproval
}
