package tracing

import (
	"sort"
	"sync"

	"github.com/lockstep-sim/saturn/sim/timing"
)

// IntervalStats summarizes the base cycles between consecutive firings of
// one event.
type IntervalStats struct {
	Count uint64
	Min   uint64
	Max   uint64
	Total uint64
}

// Average returns the mean interval, or 0 with no interval observed.
func (s IntervalStats) Average() float64 {
	if s.Count == 0 {
		return 0
	}

	return float64(s.Total) / float64(s.Count)
}

type intervalState struct {
	fired  bool
	last   uint64
	stats  IntervalStats
	firings uint64
}

// IntervalTracer measures how far apart the firings of each event are.
type IntervalTracer struct {
	lock   sync.Mutex
	events map[timing.UserID]*intervalState
}

// NewIntervalTracer creates a new IntervalTracer.
func NewIntervalTracer() *IntervalTracer {
	return &IntervalTracer{
		events: make(map[timing.UserID]*intervalState),
	}
}

// RecordEvent adds the firing to the statistics of its event.
func (t *IntervalTracer) RecordEvent(evt timing.FiredEvent) {
	t.lock.Lock()
	defer t.lock.Unlock()

	s, ok := t.events[evt.UserID]
	if !ok {
		s = &intervalState{}
		t.events[evt.UserID] = s
	}

	s.firings++

	if s.fired {
		d := evt.Now - s.last

		if s.stats.Count == 0 || d < s.stats.Min {
			s.stats.Min = d
		}

		if d > s.stats.Max {
			s.stats.Max = d
		}

		s.stats.Total += d
		s.stats.Count++
	}

	s.fired = true
	s.last = evt.Now
}

// Firings returns how many times an event fired.
func (t *IntervalTracer) Firings(id timing.UserID) uint64 {
	t.lock.Lock()
	defer t.lock.Unlock()

	if s, ok := t.events[id]; ok {
		return s.firings
	}

	return 0
}

// Stats returns the interval statistics of an event.
func (t *IntervalTracer) Stats(id timing.UserID) IntervalStats {
	t.lock.Lock()
	defer t.lock.Unlock()

	if s, ok := t.events[id]; ok {
		return s.stats
	}

	return IntervalStats{}
}

// UserIDs returns the events seen so far, in ascending order.
func (t *IntervalTracer) UserIDs() []timing.UserID {
	t.lock.Lock()
	defer t.lock.Unlock()

	ids := make([]timing.UserID, 0, len(t.events))
	for id := range t.events {
		ids = append(ids, id)
	}

	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	return ids
}
