package events

import (
	"testing"
	"time"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		event   Event
		wantErr bool
	}{
		{name: "focus", event: Event{Kind: KindFocus, Target: "s:0.1"}},
		{name: "activity with state", event: Event{Kind: KindActivity, Target: "s:0.1", State: StateRunning, TS: "2026-02-27T12:00:00Z"}},
		{name: "activity without ts", event: Event{Kind: KindActivity, Target: "s:0.1"}},
		{name: "unknown kind", event: Event{Kind: "blur", Target: "s:0.1"}, wantErr: true},
		{name: "missing kind", event: Event{Target: "s:0.1"}, wantErr: true},
		{name: "invalid state", event: Event{Kind: KindActivity, Target: "s:0.1", State: "blocked-ish"}, wantErr: true},
		{name: "invalid target", event: Event{Kind: KindFocus, Target: "not-a-target"}, wantErr: true},
		{name: "empty window", event: Event{Kind: KindFocus, Target: "s:.1"}, wantErr: true},
		{name: "focus with state", event: Event{Kind: KindFocus, Target: "s:0.1", State: StateIdle}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.event.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate(%+v): error = %v, wantErr = %v", tt.event, err, tt.wantErr)
			}
		})
	}
}

func TestEventTime(t *testing.T) {
	e := Event{TS: "2026-02-27T12:00:00.5Z"}
	got, ok := e.Time()
	if !ok {
		t.Fatal("expected parseable timestamp")
	}
	want := time.Date(2026, 2, 27, 12, 0, 0, 5e8, time.UTC)
	if !got.Equal(want) {
		t.Errorf("Time: got %v, want %v", got, want)
	}

	if got, ok := (Event{TS: "2026-02-27T12:00:00"}).Time(); !ok || !got.Equal(want.Add(-5e8)) {
		t.Errorf("zone-less Time: got %v, %v", got, ok)
	}

	for _, ts := range []string{"", "yesterday", "1700000000"} {
		if _, ok := (Event{TS: ts}).Time(); ok {
			t.Errorf("Time(%q): expected not ok", ts)
		}
	}
}

func TestIsAttentionState(t *testing.T) {
	if !IsAttentionState(StateWaitingInput) {
		t.Fatalf("waiting_input should be attention state")
	}
	if !IsAttentionState(StateWaitingApproval) {
		t.Fatalf("waiting_approval should be attention state")
	}
	if IsAttentionState(StateRunning) {
		t.Fatalf("running should not be attention state")
	}
}

func TestConstructors(t *testing.T) {
	now := time.Date(2026, 2, 27, 13, 0, 0, 0, time.FixedZone("CET", 3600))

	f := NewFocus("s:0.1", now)
	if f.Kind != KindFocus || f.TS != "2026-02-27T12:00:00Z" {
		t.Errorf("NewFocus: got %+v", f)
	}
	if err := f.Validate(); err != nil {
		t.Errorf("NewFocus: %v", err)
	}

	a := NewActivity("s:0.1", StateRunning, now)
	if got, ok := a.Time(); !ok || !got.Equal(now) {
		t.Errorf("NewActivity time: got %v, %v", got, ok)
	}
	if a.State != StateRunning {
		t.Errorf("NewActivity state: got %q", a.State)
	}
}
