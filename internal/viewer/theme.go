package viewer

import (
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"

	"github.com/timvw/pane-relay/internal/diffmask"
)

// Theme defines the colors used by the watch view.
type Theme struct {
	Primary   lipgloss.Color // title
	Error     lipgloss.Color // errors, removed lines
	Warning   lipgloss.Color // resync in progress
	Success   lipgloss.Color // synced, added lines
	Text      lipgloss.Color
	TextMuted lipgloss.Color // status bar, hints, diff context
	Border    lipgloss.Color
}

// DarkTheme is the default theme.
func DarkTheme() Theme {
	return Theme{
		Primary:   lipgloss.Color("#fab283"),
		Error:     lipgloss.Color("#e06c75"),
		Warning:   lipgloss.Color("#f5a742"),
		Success:   lipgloss.Color("#7fd88f"),
		Text:      lipgloss.Color("#eeeeee"),
		TextMuted: lipgloss.Color("#808080"),
		Border:    lipgloss.Color("#484848"),
	}
}

// LightTheme is for bright terminal backgrounds.
func LightTheme() Theme {
	return Theme{
		Primary:   lipgloss.Color("#b35c00"),
		Error:     lipgloss.Color("#cf222e"),
		Warning:   lipgloss.Color("#bf8700"),
		Success:   lipgloss.Color("#116329"),
		Text:      lipgloss.Color("#1f2328"),
		TextMuted: lipgloss.Color("#656d76"),
		Border:    lipgloss.Color("#d0d7de"),
	}
}

// hasDarkBackground queries the terminal. Replaced in tests.
var hasDarkBackground = func() bool {
	return termenv.NewOutput(os.Stdout).HasDarkBackground()
}

// ThemeByName returns a theme by name. "auto" picks dark or light from the
// terminal background. Unknown names get dark.
func ThemeByName(name string) Theme {
	switch name {
	case "light":
		return LightTheme()
	case "auto":
		if hasDarkBackground() {
			return DarkTheme()
		}
		return LightTheme()
	default:
		return DarkTheme()
	}
}

// Palette returns the diff highlight colors for this theme.
func (t Theme) Palette() diffmask.Palette {
	return diffmask.Palette{
		Add:     t.Success,
		Remove:  t.Error,
		Context: t.TextMuted,
	}
}

type styles struct {
	title    lipgloss.Style
	header   lipgloss.Style
	synced   lipgloss.Style
	resync   lipgloss.Style
	err      lipgloss.Style
	status   lipgloss.Style
	hintKey  lipgloss.Style
	hintDesc lipgloss.Style
}

func newStyles(t Theme) styles {
	return styles{
		title:    lipgloss.NewStyle().Bold(true).Foreground(t.Primary),
		header:   lipgloss.NewStyle().Foreground(t.Border),
		synced:   lipgloss.NewStyle().Foreground(t.Success),
		resync:   lipgloss.NewStyle().Foreground(t.Warning),
		err:      lipgloss.NewStyle().Foreground(t.Error),
		status:   lipgloss.NewStyle().Foreground(t.TextMuted),
		hintKey:  lipgloss.NewStyle().Foreground(t.Text),
		hintDesc: lipgloss.NewStyle().Foreground(t.TextMuted),
	}
}
