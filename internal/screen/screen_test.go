package screen

import (
	"encoding/json"
	"math"
	"reflect"
	"strings"
	"testing"
)

func TestApply_SingleReplace(t *testing.T) {
	got := Apply([]string{"a", "b", "c"}, []Delta{{Start: 1, DeleteCount: 1, InsertLines: []string{"x"}}})
	if !got.OK {
		t.Fatalf("OK: got false, want true (failed at %d)", got.Failed)
	}
	want := []string{"a", "x", "c"}
	if !reflect.DeepEqual(got.Lines, want) {
		t.Errorf("Lines: got %q, want %q", got.Lines, want)
	}
	if got.Failed != -1 {
		t.Errorf("Failed: got %d, want -1", got.Failed)
	}
}

func TestApply_OutOfRangeLeavesInputUntouched(t *testing.T) {
	input := []string{"a", "b"}
	got := Apply(input, []Delta{{Start: 3, DeleteCount: 1, InsertLines: []string{"x"}}})
	if got.OK {
		t.Fatal("OK: got true, want false")
	}
	if !reflect.DeepEqual(got.Lines, []string{"a", "b"}) {
		t.Errorf("Lines: got %q, want %q", got.Lines, []string{"a", "b"})
	}
	if !reflect.DeepEqual(input, []string{"a", "b"}) {
		t.Errorf("input mutated: %q", input)
	}
	if got.Failed != 0 {
		t.Errorf("Failed: got %d, want 0", got.Failed)
	}
}

func TestApply_AllOrNothing(t *testing.T) {
	input := []string{"a", "b", "c"}
	deltas := []Delta{
		{Start: 0, DeleteCount: 1, InsertLines: []string{"A"}},
		{Start: 1, DeleteCount: 5},
	}
	got := Apply(input, deltas)
	if got.OK {
		t.Fatal("OK: got true, want false")
	}
	if got.Failed != 1 {
		t.Errorf("Failed: got %d, want 1", got.Failed)
	}
	if !reflect.DeepEqual(got.Lines, []string{"a", "b", "c"}) {
		t.Errorf("Lines after rejected batch: got %q", got.Lines)
	}
	if input[0] != "a" {
		t.Errorf("input mutated by the first delta: %q", input)
	}
}

func TestApply_CumulativeOffset(t *testing.T) {
	// The second delta's Start refers to pre-batch positions; the first
	// delta grew the buffer by one line, so it lands one line later.
	input := []string{"l0", "l1", "l2", "l3"}
	deltas := []Delta{
		{Start: 0, DeleteCount: 1, InsertLines: []string{"n0a", "n0b"}},
		{Start: 2, DeleteCount: 1, InsertLines: []string{"n2"}},
	}
	got := Apply(input, deltas)
	if !got.OK {
		t.Fatalf("OK: got false (failed at %d)", got.Failed)
	}
	want := []string{"n0a", "n0b", "l1", "n2", "l3"}
	if !reflect.DeepEqual(got.Lines, want) {
		t.Errorf("Lines: got %q, want %q", got.Lines, want)
	}
}

func TestApply_Validation(t *testing.T) {
	tests := []struct {
		name  string
		delta Delta
		ok    bool
	}{
		{"append at end", Delta{Start: 2, InsertLines: []string{"z"}}, true},
		{"start past end", Delta{Start: 3}, false},
		{"negative start", Delta{Start: -1}, false},
		{"negative delete count", Delta{Start: 0, DeleteCount: -1}, false},
		{"delete past end", Delta{Start: 1, DeleteCount: 2}, false},
		{"delete everything", Delta{Start: 0, DeleteCount: 2}, true},
		{"no-op", Delta{Start: 1}, true},
		{"huge delete count", Delta{Start: 1, DeleteCount: math.MaxInt}, false},
		{"huge delete count at start", Delta{Start: 0, DeleteCount: math.MaxInt}, false},
		{"min delete count", Delta{Start: 0, DeleteCount: math.MinInt}, false},
		{"max start", Delta{Start: math.MaxInt, DeleteCount: 1}, false},
		{"min start", Delta{Start: math.MinInt, DeleteCount: 1}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			input := []string{"a", "b"}
			got := Apply(input, []Delta{tt.delta})
			if got.OK != tt.ok {
				t.Errorf("OK: got %v, want %v", got.OK, tt.ok)
			}
			if !tt.ok && (got.Failed != 0 || !reflect.DeepEqual(got.Lines, input)) {
				t.Errorf("rejected delta: got failed %d, lines %q", got.Failed, got.Lines)
			}
		})
	}
}

func TestApply_ExtremeStartAfterOffset(t *testing.T) {
	input := []string{"a", "b"}
	deltas := []Delta{
		{Start: 0, InsertLines: []string{"x", "y"}},
		{Start: math.MaxInt, DeleteCount: 1},
	}
	got := Apply(input, deltas)
	if got.OK || got.Failed != 1 {
		t.Fatalf("got OK %v failed %d, want rejection at 1", got.OK, got.Failed)
	}
	if !reflect.DeepEqual(got.Lines, input) {
		t.Errorf("lines: got %q, want %q", got.Lines, input)
	}

	deltas = []Delta{
		{Start: 0, DeleteCount: 2},
		{Start: math.MinInt, DeleteCount: 0},
	}
	if got := Apply(input, deltas); got.OK || got.Failed != 1 {
		t.Errorf("min start after shrink: got OK %v failed %d", got.OK, got.Failed)
	}
}

func TestApply_LengthInvariant(t *testing.T) {
	input := []string{"a", "b", "c", "d", "e"}
	deltas := []Delta{
		{Start: 0, DeleteCount: 2, InsertLines: []string{"x"}},
		{Start: 3, DeleteCount: 0, InsertLines: []string{"y", "z", "w"}},
		{Start: 4, DeleteCount: 1},
	}
	got := Apply(input, deltas)
	if !got.OK {
		t.Fatalf("OK: got false (failed at %d)", got.Failed)
	}
	if want := len(input) + NetChange(deltas); len(got.Lines) != want {
		t.Errorf("len: got %d, want %d", len(got.Lines), want)
	}
}

func TestApply_EmptyBatch(t *testing.T) {
	got := Apply([]string{"a"}, nil)
	if !got.OK || !reflect.DeepEqual(got.Lines, []string{"a"}) {
		t.Errorf("got %+v, want OK with unchanged lines", got)
	}
}

func TestCompute_RoundTrip(t *testing.T) {
	tests := []struct {
		name       string
		prev, next []string
	}{
		{"identical", []string{"a", "b"}, []string{"a", "b"}},
		{"from empty", nil, []string{"a", "b"}},
		{"to empty", []string{"a", "b"}, nil},
		{"replace middle", []string{"a", "b", "c"}, []string{"a", "x", "c"}},
		{"append", []string{"a"}, []string{"a", "b", "c"}},
		{"scroll", []string{"1", "2", "3", "4"}, []string{"2", "3", "4", "5"}},
		{"blank lines", []string{"", "a", ""}, []string{"", "", "a", "b", ""}},
		{"many edits", []string{"h", "a", "b", "c", "d", "e", "f"}, []string{"h", "A", "b", "d", "E", "E2", "f", "g"}},
		{"duplicates", []string{"x", "x", "y", "x"}, []string{"x", "y", "x", "x"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			deltas := Compute(tt.prev, tt.next)
			got := Apply(tt.prev, deltas)
			if !got.OK {
				t.Fatalf("Apply(Compute): rejected delta %d of %+v", got.Failed, deltas)
			}
			want := tt.next
			if want == nil {
				want = []string{}
			}
			if !reflect.DeepEqual(got.Lines, want) {
				t.Errorf("round trip: got %q, want %q (deltas %+v)", got.Lines, want, deltas)
			}
		})
	}
}

func TestCompute_IdenticalIsEmpty(t *testing.T) {
	if d := Compute([]string{"a", "b"}, []string{"a", "b"}); len(d) != 0 {
		t.Errorf("deltas for identical buffers: got %+v, want none", d)
	}
}

func TestCompute_SkipsUnchangedLines(t *testing.T) {
	prev := make([]string, 50)
	for i := range prev {
		prev[i] = strings.Repeat("=", i)
	}
	next := append([]string(nil), prev...)
	next[40] = "changed"

	deltas := Compute(prev, next)
	if len(deltas) != 1 {
		t.Fatalf("deltas: got %d, want 1: %+v", len(deltas), deltas)
	}
	want := Delta{Start: 40, DeleteCount: 1, InsertLines: []string{"changed"}}
	if !reflect.DeepEqual(deltas[0], want) {
		t.Errorf("delta: got %+v, want %+v", deltas[0], want)
	}
}

func TestDelta_WireShape(t *testing.T) {
	data, err := json.Marshal(Delta{Start: 2, DeleteCount: 1, InsertLines: []string{"x"}})
	if err != nil {
		t.Fatal(err)
	}
	want := `{"start":2,"deleteCount":1,"insertLines":["x"]}`
	if string(data) != want {
		t.Errorf("json: got %s, want %s", data, want)
	}
}

func TestPublisher_FirstCaptureIsFull(t *testing.T) {
	p := NewPublisher()
	u, changed := p.Next("s:0.0", []string{"a"})
	if !changed {
		t.Fatal("changed: got false, want true")
	}
	if u.Kind != KindFull || u.Seq != 1 {
		t.Errorf("update: got kind %q seq %d, want full seq 1", u.Kind, u.Seq)
	}
}

func TestPublisher_UnchangedIsSkipped(t *testing.T) {
	p := NewPublisher()
	p.Next("s:0.0", []string{"a"})
	if _, changed := p.Next("s:0.0", []string{"a"}); changed {
		t.Error("changed for identical capture: got true, want false")
	}
	u, changed := p.Next("s:0.0", []string{"a", "b"})
	if !changed {
		t.Fatal("changed: got false, want true")
	}
	if u.Kind != KindDelta || u.Seq != 2 {
		t.Errorf("update: got kind %q seq %d, want delta seq 2", u.Kind, u.Seq)
	}
}

func TestPublisherAndMirror_StayInSync(t *testing.T) {
	p := NewPublisher()
	var m Mirror

	frames := [][]string{
		{"$ claude", ""},
		{"$ claude", "> working", ""},
		{"$ claude", "> working", "  1 -old", "  1 +new", ""},
		{"> done"},
	}
	for i, f := range frames {
		u, changed := p.Next("s:0.0", f)
		if !changed {
			continue
		}
		if !m.Apply(u) {
			t.Fatalf("frame %d: mirror rejected update %+v", i, u)
		}
		if !reflect.DeepEqual(m.Lines(), f) {
			t.Fatalf("frame %d: mirror %q, want %q", i, m.Lines(), f)
		}
	}
}

func TestMirror_RejectsGapUntilResync(t *testing.T) {
	p := NewPublisher()
	var m Mirror

	u1, _ := p.Next("s:0.0", []string{"a"})
	m.Apply(u1)
	p.Next("s:0.0", []string{"a", "b"}) // lost in transit
	u3, _ := p.Next("s:0.0", []string{"a", "b", "c"})

	if m.Apply(u3) {
		t.Fatal("Apply after gap: got true, want false")
	}
	if m.Synced() {
		t.Error("Synced after gap: got true, want false")
	}
	if !reflect.DeepEqual(m.Lines(), []string{"a"}) {
		t.Errorf("Lines after rejected update: got %q", m.Lines())
	}

	full, ok := p.Resync("s:0.0")
	if !ok {
		t.Fatal("Resync: unknown target")
	}
	if !m.Apply(full) {
		t.Fatal("Apply full: got false")
	}
	if !reflect.DeepEqual(m.Lines(), []string{"a", "b", "c"}) {
		t.Errorf("Lines after resync: got %q", m.Lines())
	}

	u5, _ := p.Next("s:0.0", []string{"a", "b", "c", "d"})
	if !m.Apply(u5) {
		t.Error("delta after resync: got false, want true")
	}
}

func TestMirror_DeltaBeforeFullRejected(t *testing.T) {
	var m Mirror
	if m.Apply(Update{Seq: 1, Kind: KindDelta, Deltas: []Delta{{Start: 0, InsertLines: []string{"x"}}}}) {
		t.Error("delta before full: got true, want false")
	}
}

func TestMirror_MalformedDeltaKeepsBuffer(t *testing.T) {
	var m Mirror
	m.Apply(Update{Seq: 1, Kind: KindFull, Full: []string{"a", "b"}})
	bad := Update{Seq: 2, Kind: KindDelta, Deltas: []Delta{{Start: 5, DeleteCount: 1}}}
	if m.Apply(bad) {
		t.Fatal("malformed delta: got true, want false")
	}
	if !reflect.DeepEqual(m.Lines(), []string{"a", "b"}) || m.Seq() != 1 {
		t.Errorf("mirror changed by malformed delta: %q seq %d", m.Lines(), m.Seq())
	}
}

func TestMirror_HostileWireUpdate(t *testing.T) {
	payloads := []string{
		`{"target":"s:0.0","seq":2,"kind":"delta","deltas":[{"start":1,"deleteCount":9223372036854775807,"insertLines":[]}]}`,
		`{"target":"s:0.0","seq":2,"kind":"delta","deltas":[{"start":9223372036854775807,"deleteCount":1,"insertLines":["x"]}]}`,
		`{"target":"s:0.0","seq":2,"kind":"delta","deltas":[{"start":0,"deleteCount":-9223372036854775808,"insertLines":null}]}`,
		`{"target":"s:0.0","seq":2,"kind":"delta","deltas":[{"start":0,"deleteCount":0,"insertLines":["x"]},{"start":-9223372036854775808,"deleteCount":1}]}`,
	}
	for _, p := range payloads {
		var u Update
		if err := json.Unmarshal([]byte(p), &u); err != nil {
			t.Fatalf("decode %s: %v", p, err)
		}
		var m Mirror
		m.Apply(Update{Seq: 1, Kind: KindFull, Full: []string{"a", "b"}})
		if m.Apply(u) {
			t.Errorf("%s: got true, want false", p)
		}
		if !reflect.DeepEqual(m.Lines(), []string{"a", "b"}) || m.Synced() {
			t.Errorf("%s: mirror %q synced %v", p, m.Lines(), m.Synced())
		}
	}
}

func TestPublisher_ForgetRestartsWithFull(t *testing.T) {
	p := NewPublisher()
	p.Next("s:0.0", []string{"a"})
	p.Forget("s:0.0")
	if _, ok := p.Resync("s:0.0"); ok {
		t.Error("Resync after Forget: got true, want false")
	}
	u, _ := p.Next("s:0.0", []string{"a"})
	if u.Kind != KindFull {
		t.Errorf("kind after Forget: got %q, want full", u.Kind)
	}
}

func TestPublisher_FullThenDelta(t *testing.T) {
	p := NewPublisher()
	var m Mirror

	u := p.Full("s:0.0", []string{"a"})
	if u.Kind != KindFull || u.Seq != 1 {
		t.Fatalf("Full: got kind %q seq %d", u.Kind, u.Seq)
	}
	m.Apply(u)

	u = p.Full("s:0.0", []string{"a", "b"})
	if u.Seq != 2 || !m.Apply(u) {
		t.Fatalf("second Full: seq %d, applied %v", u.Seq, m.Synced())
	}

	u, ok := p.Next("s:0.0", []string{"a", "b", "c"})
	if !ok || u.Kind != KindDelta || u.Seq != 3 {
		t.Fatalf("Next after Full: got %+v, %v", u, ok)
	}
	if !m.Apply(u) || !reflect.DeepEqual(m.Lines(), []string{"a", "b", "c"}) {
		t.Errorf("mirror: got %q", m.Lines())
	}
}

func TestPublisher_Targets(t *testing.T) {
	p := NewPublisher()
	p.Next("b:0.0", []string{"x"})
	p.Full("a:1.0", []string{"y"})
	if got, want := p.Targets(), []string{"a:1.0", "b:0.0"}; !reflect.DeepEqual(got, want) {
		t.Errorf("Targets: got %q, want %q", got, want)
	}
	p.Forget("a:1.0")
	if got, want := p.Targets(), []string{"b:0.0"}; !reflect.DeepEqual(got, want) {
		t.Errorf("Targets after Forget: got %q, want %q", got, want)
	}
}
