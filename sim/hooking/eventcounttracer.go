package hooking

import (
	"sort"
	"sync"
)

// A LabelFunc names a hook item. Items it returns false for are ignored.
type LabelFunc func(item any) (string, bool)

// EventCountTracer counts how many times each labelled item passes a hook
// position. It is safe to read the counts from another goroutine while the
// hookable object keeps invoking it.
type EventCountTracer struct {
	pos   *HookPos
	label LabelFunc

	lock   sync.Mutex
	names  []string
	counts map[string]uint64
}

// NewEventCountTracer creates a tracer that counts items seen at pos.
func NewEventCountTracer(pos *HookPos, label LabelFunc) *EventCountTracer {
	return &EventCountTracer{
		pos:    pos,
		label:  label,
		counts: make(map[string]uint64),
	}
}

// Func counts the item if the hook fires at the traced position.
func (t *EventCountTracer) Func(ctx HookCtx) {
	if ctx.Pos != t.pos {
		return
	}

	name, ok := t.label(ctx.Item)
	if !ok {
		return
	}

	t.lock.Lock()
	defer t.lock.Unlock()

	if _, seen := t.counts[name]; !seen {
		t.names = append(t.names, name)
	}

	t.counts[name]++
}

// Names returns the labels seen so far, in order of first appearance.
func (t *EventCountTracer) Names() []string {
	t.lock.Lock()
	defer t.lock.Unlock()

	names := make([]string, len(t.names))
	copy(names, t.names)

	return names
}

// Count returns the number of items counted under the label.
func (t *EventCountTracer) Count(name string) uint64 {
	t.lock.Lock()
	defer t.lock.Unlock()

	return t.counts[name]
}

// Counts returns a copy of all counters, keyed by label.
func (t *EventCountTracer) Counts() map[string]uint64 {
	t.lock.Lock()
	defer t.lock.Unlock()

	counts := make(map[string]uint64, len(t.counts))
	for k, v := range t.counts {
		counts[k] = v
	}

	return counts
}

// SortedNames returns the labels sorted by descending count, ties broken by
// name.
func (t *EventCountTracer) SortedNames() []string {
	counts := t.Counts()

	names := make([]string, 0, len(counts))
	for name := range counts {
		names = append(names, name)
	}

	sort.Slice(names, func(i, j int) bool {
		if counts[names[i]] != counts[names[j]] {
			return counts[names[i]] > counts[names[j]]
		}

		return names[i] < names[j]
	})

	return names
}

// Reset drops every counter.
func (t *EventCountTracer) Reset() {
	t.lock.Lock()
	defer t.lock.Unlock()

	t.names = nil
	t.counts = make(map[string]uint64)
}
