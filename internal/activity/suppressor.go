// Package activity filters pane activity signals that are caused by the
// user focusing a pane rather than by the agent doing new work.
//
// Focusing a pane makes most agent TUIs redraw, which an observer reports
// as fresh activity. The Suppressor remembers when each pane was last
// focused and treats activity stamped within a short window after that
// moment as noise.
package activity

import (
	"sync"
	"time"
)

const (
	// SuppressWindow is how long after a focus event activity is ignored.
	SuppressWindow = 2000 * time.Millisecond
	// StaleWindow is how long a focus record is trusted before it is dropped.
	StaleWindow = 15000 * time.Millisecond
)

// Option configures a Suppressor.
type Option func(*Suppressor)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Suppressor) { s.now = now }
}

// WithWindows overrides the suppress and stale windows.
func WithWindows(suppress, stale time.Duration) Option {
	return func(s *Suppressor) {
		s.suppress = suppress
		s.stale = stale
	}
}

// Suppressor tracks the last focus time per pane.
// It is safe for concurrent use.
type Suppressor struct {
	mu        sync.Mutex
	lastFocus map[string]time.Time

	now      func() time.Time
	suppress time.Duration
	stale    time.Duration
}

// New creates a Suppressor with the default windows.
func New(opts ...Option) *Suppressor {
	s := &Suppressor{
		lastFocus: make(map[string]time.Time),
		now:       time.Now,
		suppress:  SuppressWindow,
		stale:     StaleWindow,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// MarkPaneFocus records that paneID was focused now. Empty ids are ignored.
func (s *Suppressor) MarkPaneFocus(paneID string) {
	if paneID == "" {
		return
	}
	s.mu.Lock()
	s.lastFocus[paneID] = s.now()
	s.mu.Unlock()
}

// ShouldSuppressActivity reports whether activity stamped with the given
// ISO-8601 timestamp should be ignored for paneID. Missing or unparseable
// input never suppresses.
func (s *Suppressor) ShouldSuppressActivity(paneID, activityTimestamp string) bool {
	if paneID == "" || activityTimestamp == "" {
		return false
	}
	at, err := ParseTimestamp(activityTimestamp)
	if err != nil {
		return false
	}
	return s.ShouldSuppressAt(paneID, at)
}

// ShouldSuppressAt is ShouldSuppressActivity for an already parsed time.
//
// Activity strictly before the focus moment is never suppressed: it was
// produced before the user looked and may arrive late.
func (s *Suppressor) ShouldSuppressAt(paneID string, at time.Time) bool {
	if paneID == "" || at.IsZero() {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	focus, ok := s.lastFocus[paneID]
	if !ok {
		return false
	}
	if s.now().Sub(focus) > s.stale {
		delete(s.lastFocus, paneID)
		return false
	}
	return !at.Before(focus) && !at.After(focus.Add(s.suppress))
}

// Tracked returns the number of panes with a focus record.
func (s *Suppressor) Tracked() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.lastFocus)
}

// localISO is ISO-8601 without a zone designator.
const localISO = "2006-01-02T15:04:05.999999999"

// ParseTimestamp parses an ISO-8601 timestamp as emitted by agent hooks:
// RFC 3339 with optional fractional seconds, or the same without a zone,
// which is read as UTC.
func ParseTimestamp(ts string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, ts)
	if err == nil {
		return t, nil
	}
	if local, lerr := time.Parse(localISO, ts); lerr == nil {
		return local, nil
	}
	return time.Time{}, err
}
