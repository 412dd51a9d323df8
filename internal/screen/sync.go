package screen

import (
	"sort"
	"sync"
)

// UpdateKind distinguishes full-buffer updates from delta batches.
type UpdateKind string

const (
	KindFull  UpdateKind = "full"
	KindDelta UpdateKind = "delta"
)

// ResyncCause says why a viewer asked for a full buffer.
type ResyncCause string

const (
	// ResyncRejected follows an update the viewer's mirror could not apply.
	ResyncRejected ResyncCause = "rejected"
	// ResyncRequested is a user-initiated refresh.
	ResyncRequested ResyncCause = "requested"
)

// Update is one message to a viewer for one pane. Seq increases by one per
// update for a target; a viewer that sees a gap must ask for a full resync.
type Update struct {
	Target string     `json:"target"`
	Seq    uint64     `json:"seq"`
	Kind   UpdateKind `json:"kind"`
	Full   []string   `json:"full,omitempty"`
	Deltas []Delta    `json:"deltas,omitempty"`
}

// Publisher remembers the last buffer sent for each pane and turns new
// captures into updates. It is safe for concurrent use.
type Publisher struct {
	mu    sync.Mutex
	panes map[string]*published
}

type published struct {
	seq   uint64
	lines []string
}

// NewPublisher creates an empty Publisher.
func NewPublisher() *Publisher {
	return &Publisher{panes: make(map[string]*published)}
}

// Next records lines as the current buffer of target and returns the update
// a viewer needs. The first capture of a target produces a full update.
// It returns false when nothing changed since the previous capture.
func (p *Publisher) Next(target string, lines []string) (Update, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	st, ok := p.panes[target]
	if !ok {
		st = &published{}
		p.panes[target] = st
		return st.full(target, lines), true
	}

	deltas := Compute(st.lines, lines)
	if len(deltas) == 0 {
		return Update{}, false
	}
	st.seq++
	st.lines = cloneLines(lines)
	return Update{Target: target, Seq: st.seq, Kind: KindDelta, Deltas: deltas}, true
}

// Resync returns a full update carrying the last recorded buffer of target,
// for viewers that lost track. It returns false for unknown targets.
func (p *Publisher) Resync(target string) (Update, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	st, ok := p.panes[target]
	if !ok {
		return Update{}, false
	}
	return st.full(target, st.lines), true
}

// Full records lines as the current buffer of target and returns a full
// update regardless of what was sent before.
func (p *Publisher) Full(target string, lines []string) Update {
	p.mu.Lock()
	defer p.mu.Unlock()

	st, ok := p.panes[target]
	if !ok {
		st = &published{}
		p.panes[target] = st
	}
	return st.full(target, lines)
}

// Targets returns the known targets in sorted order.
func (p *Publisher) Targets() []string {
	p.mu.Lock()
	defer p.mu.Unlock()

	targets := make([]string, 0, len(p.panes))
	for t := range p.panes {
		targets = append(targets, t)
	}
	sort.Strings(targets)
	return targets
}

// Forget drops the state of a pane that no longer exists.
func (p *Publisher) Forget(target string) {
	p.mu.Lock()
	delete(p.panes, target)
	p.mu.Unlock()
}

func (st *published) full(target string, lines []string) Update {
	st.seq++
	st.lines = cloneLines(lines)
	return Update{Target: target, Seq: st.seq, Kind: KindFull, Full: cloneLines(lines)}
}

// Mirror is a viewer's copy of one pane's buffer.
// It is not safe for concurrent use.
type Mirror struct {
	seq    uint64
	lines  []string
	synced bool
}

// Apply folds u into the mirror. It returns false, leaving the buffer
// untouched, when u cannot be applied: a delta update before any full
// update, a gap in Seq, or an out-of-range delta. The mirror then rejects
// further deltas until a full update arrives.
func (m *Mirror) Apply(u Update) bool {
	if u.Kind == KindFull {
		m.lines = cloneLines(u.Full)
		m.seq = u.Seq
		m.synced = true
		return true
	}
	if !m.synced || u.Seq != m.seq+1 {
		m.synced = false
		return false
	}
	res := Apply(m.lines, u.Deltas)
	if !res.OK {
		m.synced = false
		return false
	}
	m.lines = res.Lines
	m.seq = u.Seq
	return true
}

// Lines returns the current buffer. Callers must not modify it.
func (m *Mirror) Lines() []string { return m.lines }

// Seq returns the sequence number of the last applied update.
func (m *Mirror) Seq() uint64 { return m.seq }

// Synced reports whether the mirror can accept delta updates.
func (m *Mirror) Synced() bool { return m.synced }

func cloneLines(lines []string) []string {
	out := make([]string, len(lines))
	copy(out, lines)
	return out
}
