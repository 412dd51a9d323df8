// Package screen keeps viewers' copies of a pane's terminal buffer in sync
// by shipping line-range edits instead of whole buffers.
package screen

// Delta replaces DeleteCount lines starting at Start with InsertLines.
//
// Within a batch, Start is relative to the buffer as it was before the
// batch: Apply shifts it by the net line change of every earlier delta.
type Delta struct {
	Start       int      `json:"start"`
	DeleteCount int      `json:"deleteCount"`
	InsertLines []string `json:"insertLines"`
}

// Result is the outcome of Apply.
type Result struct {
	// OK is false when a delta was out of range; Lines is then the
	// unmodified input.
	OK    bool
	Lines []string
	// Failed is the index of the rejected delta, or -1.
	Failed int
}

// Apply applies deltas to lines in order. The batch is all-or-nothing: if
// any delta is out of range, none is applied and the input is returned as
// is. lines is never modified.
func Apply(lines []string, deltas []Delta) Result {
	buf := make([]string, len(lines))
	copy(buf, lines)

	offset := 0
	for i, d := range deltas {
		// offset is bounded by the buffer length, so a wrapped sum still
		// lands outside [0, len(buf)].
		start := d.Start + offset
		if start < 0 || start > len(buf) || d.DeleteCount < 0 || d.DeleteCount > len(buf)-start {
			return Result{OK: false, Lines: lines, Failed: i}
		}
		buf = splice(buf, start, d.DeleteCount, d.InsertLines)
		offset += len(d.InsertLines) - d.DeleteCount
	}
	return Result{OK: true, Lines: buf, Failed: -1}
}

// splice returns buf with del lines at start replaced by ins.
func splice(buf []string, start, del int, ins []string) []string {
	out := make([]string, 0, len(buf)-del+len(ins))
	out = append(out, buf[:start]...)
	out = append(out, ins...)
	return append(out, buf[start+del:]...)
}

// NetChange returns the line count difference the deltas produce when
// applied successfully.
func NetChange(deltas []Delta) int {
	n := 0
	for _, d := range deltas {
		n += len(d.InsertLines) - d.DeleteCount
	}
	return n
}
