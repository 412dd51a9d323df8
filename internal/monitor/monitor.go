// Package monitor ties the engines together: it polls the multiplexer,
// resolves per-pane repository state through the lookup caches, folds
// hook events through the focus suppressor, and turns screen captures into
// viewer updates.
package monitor

import (
	"context"
	"fmt"
	"os"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/timvw/pane-relay/internal/activity"
	"github.com/timvw/pane-relay/internal/batch"
	"github.com/timvw/pane-relay/internal/config"
	"github.com/timvw/pane-relay/internal/events"
	"github.com/timvw/pane-relay/internal/lookup"
	"github.com/timvw/pane-relay/internal/model"
	"github.com/timvw/pane-relay/internal/mux"
	ppotel "github.com/timvw/pane-relay/internal/otel"
	"github.com/timvw/pane-relay/internal/screen"
)

var tracer = otel.Tracer("pane-relay")

// DefaultActiveWindow is how long after its last activity a pane counts as active.
const DefaultActiveWindow = 30 * time.Second

// Lookups resolves repository state for a directory. *lookup.Resolver
// implements it.
type Lookups interface {
	Repo(ctx context.Context, dir string) lookup.Repo
	HasPR(ctx context.Context, root, branch string) bool
}

// Monitor holds the per-process state shared by the poll loop, the event
// collector and screen sync requests.
type Monitor struct {
	Mux             mux.Multiplexer
	Lookups         Lookups // nil skips branch and PR lookups
	Suppressor      *activity.Suppressor
	Activity        *events.Store
	Screens         *screen.Publisher
	Filter          string
	ExcludeSessions []string
	SelfTarget      string // pane running this process, skipped during polls
	Parallel        int
	ActiveWindow    time.Duration
	Metrics         *ppotel.Metrics // nil-safe
	Now             func() time.Time
}

// PollResult is the outcome of one poll: a status per pane, the screen
// updates for panes whose content changed, and the targets whose agent
// is waiting on the user.
type PollResult struct {
	Statuses  []model.PaneStatus
	Updates   []screen.Update
	Attention []string
}

func (m *Monitor) now() time.Time {
	if m.Now != nil {
		return m.Now()
	}
	return time.Now()
}

// Panes lists the panes this monitor covers.
func (m *Monitor) Panes(ctx context.Context) ([]model.Pane, error) {
	panes, err := m.Mux.ListPanes(ctx, m.Filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list panes: %w", err)
	}

	// Fresh slice to avoid aliasing the multiplexer's backing array.
	filtered := make([]model.Pane, 0, len(panes))
	for _, p := range panes {
		if m.SelfTarget != "" && p.Target == m.SelfTarget {
			continue
		}
		if len(m.ExcludeSessions) > 0 && config.MatchesExcludeList(p.Session, m.ExcludeSessions) {
			continue
		}
		filtered = append(filtered, p)
	}
	return filtered, nil
}

// Statuses resolves the status of every pane without capturing screens.
func (m *Monitor) Statuses(ctx context.Context) ([]model.PaneStatus, error) {
	ctx, span := tracer.Start(ctx, "statuses", trace.WithAttributes(attribute.String("filter", m.Filter)))
	defer span.End()

	panes, err := m.Panes(ctx)
	if err != nil {
		return nil, err
	}
	results := batch.MapSettled(ctx, panes, m.Parallel, func(ctx context.Context, p model.Pane, _ int) (model.PaneStatus, error) {
		return m.status(ctx, p), nil
	})
	statuses := make([]model.PaneStatus, len(results))
	for i, r := range results {
		statuses[i] = settledStatus(panes[i], r)
	}
	recordBatch(ctx, m.Metrics, results)
	span.SetAttributes(attribute.Int("panes.total", len(statuses)))
	return statuses, nil
}

type paneResult struct {
	status model.PaneStatus
	update screen.Update
	change bool
}

// Poll lists panes, resolves their status and captures their screens.
// A pane that fails to capture still gets a status, with Error set.
// Publisher state for panes that disappeared is dropped.
func (m *Monitor) Poll(ctx context.Context) (*PollResult, error) {
	ctx, span := tracer.Start(ctx, "poll", trace.WithAttributes(attribute.String("filter", m.Filter)))
	defer span.End()

	panes, err := m.Panes(ctx)
	if err != nil {
		return nil, err
	}
	m.forgetVanished(panes)

	results := batch.MapSettled(ctx, panes, m.Parallel, func(ctx context.Context, p model.Pane, _ int) (paneResult, error) {
		st := m.status(ctx, p)
		u, changed, err := m.Sync(ctx, p.Target)
		if err != nil {
			return paneResult{}, err
		}
		return paneResult{status: st, update: u, change: changed}, nil
	})
	recordBatch(ctx, m.Metrics, results)

	res := &PollResult{Statuses: make([]model.PaneStatus, len(panes))}
	for i, r := range results {
		if !r.Fulfilled() {
			fmt.Fprintf(os.Stderr, "warning: pane %s: %v\n", panes[i].Target, r.Err)
			res.Statuses[i] = baseStatus(panes[i])
			res.Statuses[i].Error = r.Err.Error()
			continue
		}
		res.Statuses[i] = r.Value.status
		if r.Value.change {
			res.Updates = append(res.Updates, r.Value.update)
		}
	}

	if m.Activity != nil {
		for _, r := range m.Activity.SnapshotAttention(m.now()) {
			res.Attention = append(res.Attention, r.Event.Target)
		}
	}

	span.SetAttributes(
		attribute.Int("panes.total", len(panes)),
		attribute.Int("screens.changed", len(res.Updates)),
		attribute.Int("panes.attention", len(res.Attention)),
	)
	return res, nil
}

// forgetVanished drops screen and activity state of panes no longer listed.
func (m *Monitor) forgetVanished(panes []model.Pane) {
	live := make(map[string]bool, len(panes))
	for _, p := range panes {
		live[p.Target] = true
	}
	if m.Screens != nil {
		for _, target := range m.Screens.Targets() {
			if !live[target] {
				m.Screens.Forget(target)
			}
		}
	}
	if m.Activity != nil {
		for _, target := range m.Activity.Targets() {
			if !live[target] {
				m.Activity.Forget(target)
			}
		}
	}
}

func baseStatus(p model.Pane) model.PaneStatus {
	return model.PaneStatus{
		Target:  p.Target,
		Session: p.Session,
		Command: p.Command,
		Path:    p.Path,
		Active:  p.Active,
		State:   model.StateUnknown,
	}
}

func settledStatus(p model.Pane, r batch.Settled[model.PaneStatus]) model.PaneStatus {
	if r.Fulfilled() {
		return r.Value
	}
	st := baseStatus(p)
	st.Error = r.Err.Error()
	return st
}

func (m *Monitor) status(ctx context.Context, p model.Pane) model.PaneStatus {
	ctx, span := tracer.Start(ctx, "pane_status",
		trace.WithAttributes(
			attribute.String("pane.target", p.Target),
			attribute.String("pane.session", p.Session),
			attribute.String("pane.command", p.Command),
		))
	defer span.End()

	st := baseStatus(p)
	if m.Lookups != nil && p.Path != "" {
		repo := m.Lookups.Repo(ctx, p.Path)
		st.RepoRoot = repo.Root
		st.Branch = repo.Branch
		st.HasPR = m.Lookups.HasPR(ctx, repo.Root, repo.Branch)
	}

	if m.Activity != nil {
		now := m.now()
		if rec, ok := m.Activity.Latest(p.Target, now); ok {
			at := rec.At()
			st.LastActivity = &at
			switch {
			case rec.Event.State != "":
				st.State = rec.Event.State
			case now.Sub(at) <= m.activeWindow():
				st.State = model.StateActive
			default:
				st.State = model.StateIdle
			}
		}
	}

	span.SetAttributes(
		attribute.String("pane.branch", st.Branch),
		attribute.Bool("pane.has_pr", st.HasPR),
		attribute.String("pane.state", st.State),
	)
	return st
}

func (m *Monitor) activeWindow() time.Duration {
	if m.ActiveWindow > 0 {
		return m.ActiveWindow
	}
	return DefaultActiveWindow
}

func recordBatch[R any](ctx context.Context, metrics *ppotel.Metrics, results []batch.Settled[R]) {
	fulfilled := 0
	for _, r := range results {
		if r.Fulfilled() {
			fulfilled++
		}
	}
	metrics.RecordBatch(ctx, fulfilled, len(results)-fulfilled)
}
