package diffmask

import "github.com/charmbracelet/lipgloss"

// Palette holds the colors used to highlight diff lines in a terminal.
type Palette struct {
	Add     lipgloss.Color
	Remove  lipgloss.Color
	Context lipgloss.Color
}

// TerminalRenderer renders styled lines with ANSI colors.
type TerminalRenderer struct {
	styles map[Style]lipgloss.Style
}

// NewTerminalRenderer builds a renderer from a palette.
func NewTerminalRenderer(p Palette) *TerminalRenderer {
	return &TerminalRenderer{
		styles: map[Style]lipgloss.Style{
			StyleAdd:     lipgloss.NewStyle().Foreground(p.Add),
			StyleRemove:  lipgloss.NewStyle().Foreground(p.Remove),
			StyleContext: lipgloss.NewStyle().Foreground(p.Context),
		},
	}
}

// Render highlights the diff blocks in lines.
func (r *TerminalRenderer) Render(lines []string) []string {
	styled := Render(lines)
	out := make([]string, len(styled))
	for i, l := range styled {
		out[i] = r.RenderLine(l)
	}
	return out
}

// RenderLine renders one styled line. Unstyled lines are returned as is.
func (r *TerminalRenderer) RenderLine(l Line) string {
	st, ok := r.styles[l.Style]
	if !ok {
		return l.Text
	}
	return st.Render(l.Text)
}
