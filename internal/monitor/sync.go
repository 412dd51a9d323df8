package monitor

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/timvw/pane-relay/internal/batch"
	"github.com/timvw/pane-relay/internal/events"
	"github.com/timvw/pane-relay/internal/model"
	"github.com/timvw/pane-relay/internal/screen"
)

func (m *Monitor) capture(ctx context.Context, target string) ([]string, error) {
	content, err := m.Mux.CapturePane(ctx, target)
	if err != nil {
		return nil, fmt.Errorf("capture failed: %w", err)
	}
	return model.SplitLines(content), nil
}

// Sync captures target and returns the update a viewer needs to catch up.
// It returns false when the screen has not changed since the last sync.
func (m *Monitor) Sync(ctx context.Context, target string) (screen.Update, bool, error) {
	ctx, span := tracer.Start(ctx, "screen_sync", trace.WithAttributes(attribute.String("pane.target", target)))
	defer span.End()

	lines, err := m.capture(ctx, target)
	if err != nil {
		return screen.Update{}, false, err
	}
	u, changed := m.Screens.Next(target, lines)
	if !changed {
		m.Metrics.RecordScreenUpdate(ctx, "noop")
		return screen.Update{}, false, nil
	}
	m.Metrics.RecordScreenUpdate(ctx, string(u.Kind))
	span.SetAttributes(
		attribute.String("update.kind", string(u.Kind)),
		attribute.Int("update.deltas", len(u.Deltas)),
		attribute.Int("update.net_lines", screen.NetChange(u.Deltas)),
	)
	return u, true, nil
}

// Resync captures target and returns a full-buffer update. Only resyncs
// caused by a rejected update count as delta rejections.
func (m *Monitor) Resync(ctx context.Context, target string, cause screen.ResyncCause) (screen.Update, error) {
	lines, err := m.capture(ctx, target)
	if err != nil {
		return screen.Update{}, err
	}
	if cause == screen.ResyncRejected {
		m.Metrics.RecordDeltaRejection(ctx)
	}
	m.Metrics.RecordScreenUpdate(ctx, string(screen.KindFull))
	return m.Screens.Full(target, lines), nil
}

// SyncAll captures every target and returns a full update per target, in
// input order. The first capture failure cancels the remaining captures
// and is returned; nothing is published then, so no target's Seq moves.
func (m *Monitor) SyncAll(ctx context.Context, targets []string) ([]screen.Update, error) {
	ctx, span := tracer.Start(ctx, "sync_all", trace.WithAttributes(attribute.Int("targets", len(targets))))
	defer span.End()

	captures, err := batch.Map(ctx, targets, m.Parallel, func(ctx context.Context, target string, _ int) ([]string, error) {
		lines, err := m.capture(ctx, target)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", target, err)
		}
		return lines, nil
	})
	if err != nil {
		m.Metrics.RecordBatch(ctx, 0, 1)
		return nil, err
	}

	updates := make([]screen.Update, len(targets))
	for i, target := range targets {
		updates[i] = m.Screens.Full(target, captures[i])
		m.Metrics.RecordScreenUpdate(ctx, string(screen.KindFull))
	}
	m.Metrics.RecordBatch(ctx, len(updates), 0)
	return updates, nil
}

// HandleEvent applies a hook event. Focus events arm the suppressor;
// activity events are recorded unless they are the echo of a recent focus.
// It reports whether the event was recorded or applied.
func (m *Monitor) HandleEvent(e events.Event) bool {
	switch e.Kind {
	case events.KindFocus:
		m.Suppressor.MarkPaneFocus(e.Target)
		return true
	case events.KindActivity:
		if m.Suppressor.ShouldSuppressActivity(e.Target, e.TS) {
			m.Metrics.RecordSuppressed(context.Background())
			return false
		}
		m.Activity.Upsert(e, m.now())
		return true
	default:
		return false
	}
}
