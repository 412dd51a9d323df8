// Package mux is the transport to the terminal multiplexer: it lists panes,
// captures their screens and moves focus between them. Nothing here looks
// at what the captured text means.
package mux

import (
	"context"

	"github.com/timvw/pane-relay/internal/model"
)

// Multiplexer is a terminal multiplexer whose panes can be mirrored.
type Multiplexer interface {
	Name() string

	// ListPanes returns every pane whose session name matches the filter
	// regex. An empty filter matches all sessions.
	ListPanes(ctx context.Context, filter string) ([]model.Pane, error)

	// CapturePane returns the visible screen of a pane, wrapped lines
	// joined, one screen row per line.
	CapturePane(ctx context.Context, target string) (string, error)

	// SelectPane makes target the active pane of its window and session.
	SelectPane(ctx context.Context, target string) error
}
