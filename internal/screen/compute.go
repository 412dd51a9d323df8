package screen

import (
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// Compute returns deltas that turn prev into next when passed to Apply.
// Unchanged runs of lines are not transmitted; adjacent deletions and
// insertions are merged into one delta.
func Compute(prev, next []string) []Delta {
	dmp := diffmatchpatch.New()

	a, b, lineArray := dmp.DiffLinesToChars(joinLines(prev), joinLines(next))
	diffs := dmp.DiffCharsToLines(dmp.DiffMain(a, b, false), lineArray)

	var (
		out []Delta
		cur *Delta
		pos int // index into prev
	)
	flush := func() {
		if cur != nil {
			out = append(out, *cur)
			cur = nil
		}
	}
	open := func() {
		if cur == nil {
			cur = &Delta{Start: pos, InsertLines: []string{}}
		}
	}

	for _, d := range diffs {
		lines := splitLines(d.Text)
		switch d.Type {
		case diffmatchpatch.DiffEqual:
			flush()
			pos += len(lines)
		case diffmatchpatch.DiffDelete:
			open()
			cur.DeleteCount += len(lines)
			pos += len(lines)
		case diffmatchpatch.DiffInsert:
			open()
			cur.InsertLines = append(cur.InsertLines, lines...)
		}
	}
	flush()

	return out
}

// joinLines terminates every line with "\n" so each line is one diff token,
// including empty trailing lines.
func joinLines(lines []string) string {
	if len(lines) == 0 {
		return ""
	}
	return strings.Join(lines, "\n") + "\n"
}

func splitLines(text string) []string {
	if text == "" {
		return nil
	}
	return strings.Split(strings.TrimSuffix(text, "\n"), "\n")
}
