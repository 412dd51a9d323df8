// Package diffmask finds the code-diff blocks that coding agents print in
// their terminal (numbered lines with +/- change markers) and renders them
// with addition/removal highlighting.
//
// A diff block looks like:
//
//	  12 -  old := compute()
//	         continued old text
//	  ...
//	  12 +  new := compute(ctx)
//	  13    unchanged context
package diffmask

import (
	"html"
	"regexp"
	"strings"

	"github.com/charmbracelet/x/ansi"
)

var (
	// numbered line with a change marker: "  12 -old", "3 + new"
	markerRe = regexp.MustCompile(`^\s*\d+ +([+-])`)
	// numbered line without a marker
	contextRe = regexp.MustCompile(`^\s*\d+(\s|$)`)
	// hunk separator
	separatorRe = regexp.MustCompile(`^\s*\.\.\.\s*$`)
	// wrapped continuation of the previous line
	continuationRe = regexp.MustCompile(`^\s{2,}\S`)
)

type lineKind int

const (
	kindOther lineKind = iota
	kindMarker
	kindContext
	kindSeparator
	kindContinuation
)

// classify returns the kind of a line and, for markers, the marker byte.
func classify(line string) (lineKind, byte) {
	plain := ansi.Strip(line)
	if m := markerRe.FindStringSubmatch(plain); m != nil {
		return kindMarker, m[1][0]
	}
	if contextRe.MatchString(plain) {
		return kindContext, 0
	}
	if separatorRe.MatchString(plain) {
		return kindSeparator, 0
	}
	if continuationRe.MatchString(plain) {
		return kindContinuation, 0
	}
	return kindOther, 0
}

// BuildMask returns one bool per line, true for lines inside a diff block.
//
// A block is a maximal run of marker, numbered context, separator and
// continuation lines. Continuation lines never open a block but may follow
// any block line, context and separators included. Only blocks containing
// at least one marker line are masked.
func BuildMask(lines []string) []bool {
	mask := make([]bool, len(lines))

	i := 0
	for i < len(lines) {
		kind, _ := classify(lines[i])
		if kind == kindOther || kind == kindContinuation {
			i++
			continue
		}

		start := i
		hasMarker := false
		for i < len(lines) {
			k, _ := classify(lines[i])
			if k == kindOther {
				break
			}
			if k == kindMarker {
				hasMarker = true
			}
			i++
		}

		if hasMarker {
			for j := start; j < i; j++ {
				mask[j] = true
			}
		}
	}

	return mask
}

// Style is the highlight class of a rendered line.
type Style string

const (
	StyleNone    Style = ""
	StyleAdd     Style = "diff-add"
	StyleRemove  Style = "diff-remove"
	StyleContext Style = "diff-context"
)

// Line is a terminal line with its highlight style.
type Line struct {
	Text  string
	Style Style
}

// HTML returns the escaped text, wrapped in a span carrying the style
// class when the line is highlighted.
func (l Line) HTML() string {
	escaped := html.EscapeString(l.Text)
	if l.Style == StyleNone {
		return escaped
	}
	return `<span class="` + string(l.Style) + `">` + escaped + `</span>`
}

// ApplyMask assigns a style to every line. Marker lines set the style of
// their run; other masked lines inherit it (StyleContext before the first
// marker). Unmasked lines get StyleNone and end the run.
//
// mask shorter than lines leaves the extra lines unmasked.
func ApplyMask(lines []string, mask []bool) []Line {
	out := make([]Line, len(lines))
	current := StyleNone
	for i, line := range lines {
		masked := i < len(mask) && mask[i]
		current = nextStyle(current, line, masked)
		out[i] = Line{Text: line, Style: current}
	}
	return out
}

// nextStyle is the fold step of ApplyMask.
func nextStyle(current Style, line string, masked bool) Style {
	if !masked {
		return StyleNone
	}
	if kind, marker := classify(line); kind == kindMarker {
		if marker == '+' {
			return StyleAdd
		}
		return StyleRemove
	}
	if current == StyleNone {
		return StyleContext
	}
	return current
}

// Render builds the mask for lines and applies it.
func Render(lines []string) []Line {
	return ApplyMask(lines, BuildMask(lines))
}

// RenderHTML renders lines as escaped HTML, one string per line.
func RenderHTML(lines []string) []string {
	rendered := Render(lines)
	out := make([]string, len(rendered))
	for i, l := range rendered {
		out[i] = l.HTML()
	}
	return out
}

// RenderClaudeDiffLine renders a single line on its own: a marker line is
// highlighted, anything else is escaped and passed through.
func RenderClaudeDiffLine(line string) string {
	line = strings.TrimRight(line, "\r\n")
	return Render([]string{line})[0].HTML()
}
