// Package viewer implements the watch TUI: a live, diff-highlighted mirror
// of one pane kept in sync through screen updates.
package viewer

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/mattn/go-runewidth"
	"github.com/muesli/reflow/truncate"

	"github.com/timvw/pane-relay/internal/diffmask"
	"github.com/timvw/pane-relay/internal/screen"
)

// Source produces screen updates for a pane. *monitor.Monitor implements it.
type Source interface {
	Sync(ctx context.Context, target string) (screen.Update, bool, error)
	Resync(ctx context.Context, target string, cause screen.ResyncCause) (screen.Update, error)
}

// Watch runs the watch TUI for one pane.
type Watch struct {
	Source          Source
	Target          string
	RefreshInterval time.Duration // 0 disables auto-refresh
	Theme           Theme

	// Focus is called on start and when the user presses f. It may be nil.
	Focus func(target string) error
}

type syncMsg struct {
	update  screen.Update
	changed bool
	err     error
}

type focusMsg struct{ err error }

type tickMsg struct{}

// watchModel implements tea.Model
type watchModel struct {
	source          Source
	ctx             context.Context
	target          string
	refreshInterval time.Duration
	focus           func(string) error

	mirror   screen.Mirror
	renderer *diffmask.TerminalRenderer
	styles   styles
	viewport viewport.Model
	follow   bool // keep the viewport pinned to the bottom

	syncing   bool
	resyncing bool
	rejected  int
	updates   int
	message   string

	width  int
	height int
}

// headerLines and footerLines surround the viewport.
const (
	headerLines = 2
	footerLines = 2
)

func (w *Watch) newModel(ctx context.Context) *watchModel {
	return &watchModel{
		source:          w.Source,
		ctx:             ctx,
		target:          w.Target,
		refreshInterval: w.RefreshInterval,
		focus:           w.Focus,
		renderer:        diffmask.NewTerminalRenderer(w.Theme.Palette()),
		styles:          newStyles(w.Theme),
		viewport:        viewport.New(80, 20),
		follow:          true,
	}
}

// Run starts the TUI and blocks until the user quits.
func (w *Watch) Run(ctx context.Context) error {
	p := tea.NewProgram(w.newModel(ctx), tea.WithAltScreen(), tea.WithMouseCellMotion())
	_, err := p.Run()
	return err
}

func (m *watchModel) Init() tea.Cmd {
	m.syncing = true
	return tea.Batch(m.doFocus(), m.doSync())
}

func (m *watchModel) scheduleTick() tea.Cmd {
	if m.refreshInterval <= 0 {
		return nil
	}
	return tea.Tick(m.refreshInterval, func(time.Time) tea.Msg {
		return tickMsg{}
	})
}

func (m *watchModel) doSync() tea.Cmd {
	source, ctx, target := m.source, m.ctx, m.target
	return func() tea.Msg {
		u, changed, err := source.Sync(ctx, target)
		return syncMsg{update: u, changed: changed, err: err}
	}
}

func (m *watchModel) doResync(cause screen.ResyncCause) tea.Cmd {
	source, ctx, target := m.source, m.ctx, m.target
	return func() tea.Msg {
		u, err := source.Resync(ctx, target, cause)
		return syncMsg{update: u, changed: err == nil, err: err}
	}
}

func (m *watchModel) doFocus() tea.Cmd {
	if m.focus == nil {
		return nil
	}
	focus, target := m.focus, m.target
	return func() tea.Msg {
		return focusMsg{err: focus(target)}
	}
}

func (m *watchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.viewport.Width = msg.Width
		m.viewport.Height = max(1, msg.Height-headerLines-footerLines)
		m.refreshContent()
		return m, nil

	case syncMsg:
		return m.handleSync(msg)

	case focusMsg:
		if msg.err != nil {
			m.message = fmt.Sprintf("focus: %v", msg.err)
		}
		return m, nil

	case tickMsg:
		if m.syncing {
			return m, m.scheduleTick()
		}
		m.syncing = true
		return m, m.doSync()
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

func (m *watchModel) handleSync(msg syncMsg) (tea.Model, tea.Cmd) {
	m.syncing = false
	m.resyncing = false
	if msg.err != nil {
		m.message = fmt.Sprintf("sync error: %v", msg.err)
		return m, m.scheduleTick()
	}
	if msg.changed {
		if !m.mirror.Apply(msg.update) {
			// Lost track of the pane: ask for the whole buffer.
			m.rejected++
			m.resyncing = true
			m.syncing = true
			return m, m.doResync(screen.ResyncRejected)
		}
		m.updates++
		m.message = ""
		m.refreshContent()
	}
	return m, m.scheduleTick()
}

func (m *watchModel) refreshContent() {
	lines := m.renderer.Render(m.mirror.Lines())
	if m.width > 0 {
		// Pane lines wider than the window are clipped, not wrapped, so
		// screen rows stay aligned with the mirror.
		for i, l := range lines {
			lines[i] = truncate.String(l, uint(m.width))
		}
	}
	m.viewport.SetContent(strings.Join(lines, "\n"))
	if m.follow {
		m.viewport.GotoBottom()
	}
}

func (m *watchModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c", "esc":
		return m, tea.Quit
	case "f":
		return m, m.doFocus()
	case "r":
		if m.syncing {
			return m, nil
		}
		m.syncing = true
		m.resyncing = true
		return m, m.doResync(screen.ResyncRequested)
	case "G", "end":
		m.follow = true
		m.viewport.GotoBottom()
		return m, nil
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	m.follow = m.viewport.AtBottom()
	return m, cmd
}

func (m *watchModel) View() string {
	var b strings.Builder

	title := "pane-relay watch " + m.target
	if m.width > 0 {
		title = runewidth.Truncate(title, max(10, m.width-12), "…")
	}
	b.WriteString(m.styles.title.Render(title))
	b.WriteString("  ")
	b.WriteString(m.syncState())
	b.WriteString("\n")
	b.WriteString(m.styles.header.Render(strings.Repeat("─", max(0, m.width))))
	b.WriteString("\n")

	b.WriteString(m.viewport.View())
	b.WriteString("\n")

	status := fmt.Sprintf("seq %d · %d updates · %d resyncs", m.mirror.Seq(), m.updates, m.rejected)
	if m.message != "" {
		status += " · " + m.styles.err.Render(m.message)
	}
	b.WriteString(m.styles.status.Render(status))
	b.WriteString("\n")
	b.WriteString(m.hints())
	return b.String()
}

func (m *watchModel) syncState() string {
	switch {
	case m.resyncing:
		return m.styles.resync.Render("resyncing")
	case m.mirror.Synced():
		return m.styles.synced.Render("synced")
	default:
		return m.styles.status.Render("waiting")
	}
}

func (m *watchModel) hints() string {
	pairs := [][2]string{{"f", "focus"}, {"r", "resync"}, {"G", "follow"}, {"q", "quit"}}
	parts := make([]string, len(pairs))
	for i, p := range pairs {
		parts[i] = m.styles.hintKey.Render(p[0]) + " " + m.styles.hintDesc.Render(p[1])
	}
	return strings.Join(parts, "  ")
}
