package events

import (
	"sort"
	"sync"
	"time"
)

// Record is an accepted activity event and the time it arrived.
type Record struct {
	Event    Event
	Received time.Time
}

// At is the event's own timestamp, or Received when it has none.
func (r Record) At() time.Time {
	if t, ok := r.Event.Time(); ok {
		return t
	}
	return r.Received
}

// Store keeps the latest accepted activity per pane. Entries older than
// the TTL (by receive time) are dropped on read.
type Store struct {
	mu   sync.RWMutex
	ttl  time.Duration
	data map[string]Record
}

func NewStore(ttl time.Duration) *Store {
	return &Store{ttl: ttl, data: make(map[string]Record)}
}

func (s *Store) Upsert(e Event, received time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[e.Target] = Record{Event: e, Received: received}
}

// Latest returns the most recent record for target, if still live.
func (s *Store) Latest(target string, now time.Time) (Record, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.data[target]
	if !ok || s.expired(r, now) {
		return Record{}, false
	}
	return r, true
}

// Forget drops the record for target, e.g. when its pane closed.
func (s *Store) Forget(target string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, target)
}

// Targets returns the targets with a record, live or not, sorted.
func (s *Store) Targets() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	targets := make([]string, 0, len(s.data))
	for t := range s.data {
		targets = append(targets, t)
	}
	sort.Strings(targets)
	return targets
}

// SnapshotAttention returns the live records whose agent is waiting on
// the user, sorted by target. Expired records are dropped.
func (s *Store) SnapshotAttention(now time.Time) []Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	for target, r := range s.data {
		if s.expired(r, now) {
			delete(s.data, target)
		}
	}
	var result []Record
	for _, r := range s.data {
		if IsAttentionState(r.Event.State) {
			result = append(result, r)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Event.Target < result[j].Event.Target
	})
	return result
}

func (s *Store) expired(r Record, now time.Time) bool {
	return s.ttl > 0 && now.Sub(r.Received) > s.ttl
}
