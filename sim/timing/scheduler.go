package timing

import (
	"fmt"
	"math"

	"github.com/lockstep-sim/saturn/sim/hooking"
)

const noEvent = -1

// Scheduler fires events at absolute deadlines measured against a single
// base cycle counter.
//
// Counting down a timer per event, or searching every deadline whenever the
// run loop asks how far it may go, both cost O(n) on the hot path. The
// Scheduler instead keeps each event's deadline as an absolute target in the
// event's own clock domain and caches the nearest deadline converted to base
// cycles. The run loop reads the cache through RemainingCount, runs that many
// cycles unimpeded and calls Advance, which fires whatever became due.
//
// The event table has a fixed capacity. Components register their events once
// at construction time and keep the returned EventID for their lifetime. The
// table is never shrunk; Reset only clears deadlines.
//
// The Scheduler is not safe for concurrent use. Everything that touches it
// runs on the emulation goroutine.
type Scheduler struct {
	hooking.HookableBase

	currCount uint64
	nextCount uint64
	nextEvent int

	events    [MaxEvents]event
	userIDs   [MaxEvents]UserID
	numEvents int
	eventIDs  map[UserID]EventID

	// The event whose handler is running, its deadline in the event's current
	// clock and whether the handler scheduled or cancelled it.
	firing       int
	firingTarget uint64
	rearmed      bool
}

// NewScheduler creates an empty scheduler.
func NewScheduler() *Scheduler {
	s := &Scheduler{
		eventIDs: make(map[UserID]EventID),
		firing:   noEvent,
	}

	s.Reset()

	return s
}

// Reset clears the base counter and unschedules every event. Registrations,
// handlers and clock ratios are kept.
func (s *Scheduler) Reset() {
	s.currCount = 0
	for i := range s.events {
		s.events[i].target = NoDeadline
	}

	s.recalcSchedule()
}

// RegisterEvent adds an event to the table and returns its ID. The event runs
// on the base clock and is not scheduled. Registering a user ID twice, a nil
// handler or more than MaxEvents events panics.
func (s *Scheduler) RegisterEvent(userID UserID, handler Handler) EventID {
	if _, exists := s.eventIDs[userID]; exists {
		panic(fmt.Sprintf("timing: user ID %d already registered", userID))
	}

	if s.numEvents >= MaxEvents {
		panic(fmt.Sprintf(
			"timing: event table exhausted registering user ID %d", userID))
	}

	if handler == nil {
		panic(fmt.Sprintf("timing: nil handler for user ID %d", userID))
	}

	id := EventID(s.numEvents)
	s.numEvents++

	s.eventIDs[userID] = id
	s.userIDs[id] = userID
	s.events[id] = event{
		target:  NoDeadline,
		clock:   OneToOne(),
		handler: handler,
	}

	return id
}

// SetEventHandler replaces the handler of a registered event without touching
// its schedule.
func (s *Scheduler) SetEventHandler(id EventID, handler Handler) {
	s.mustBeRegistered(id)

	if handler == nil {
		panic(fmt.Sprintf("timing: nil handler for event %d", id))
	}

	s.events[id].handler = handler
}

// EventHandler returns the handler of a registered event.
func (s *Scheduler) EventHandler(id EventID) Handler {
	s.mustBeRegistered(id)

	return s.events[id].handler
}

// NumEvents returns how many events have been registered.
func (s *Scheduler) NumEvents() int {
	return s.numEvents
}

// UserIDOf returns the user ID an event was registered with.
func (s *Scheduler) UserIDOf(id EventID) UserID {
	s.mustBeRegistered(id)

	return s.userIDs[id]
}

// EventIDOf looks up the event registered under a user ID.
func (s *Scheduler) EventIDOf(userID UserID) (EventID, bool) {
	id, ok := s.eventIDs[userID]

	return id, ok
}

// SetClockRatio changes the clock domain of an event.
//
// A pending deadline keeps the same number of local cycles remaining, counted
// from the event's position under the new ratio. If the deadline had already
// been reached, or the event is the cached nearest one, the whole table is
// rescanned so the cache never holds a stale deadline.
func (s *Scheduler) SetClockRatio(id EventID, num, den uint64) {
	s.mustBeRegistered(id)

	clock := NewRationalClock(num, den)
	e := &s.events[id]

	oldLocal := e.localCount(s.currCount)
	newLocal := clock.ToLocal(s.currCount)
	rebase := func(target uint64) uint64 {
		return addSigned(newLocal, int64(target-oldLocal))
	}

	if int(id) == s.firing {
		s.firingTarget = rebase(s.firingTarget)
	}

	if e.target == NoDeadline {
		e.clock = clock
		return
	}

	remaining := int64(e.target - oldLocal)
	e.target = rebase(e.target)
	e.clock = clock

	if remaining <= 0 || int(id) == s.nextEvent {
		s.recalcSchedule()
		return
	}

	s.offerDeadline(id, e)
}

// ClockRatio returns the clock domain of an event.
func (s *Scheduler) ClockRatio(id EventID) RationalClock {
	s.mustBeRegistered(id)

	return s.events[id].clock
}

// CurrentCount returns the base cycle counter.
func (s *Scheduler) CurrentCount() uint64 {
	return s.currCount
}

// NextCount returns the base cycle count of the nearest deadline, or
// NoDeadline if nothing is scheduled.
func (s *Scheduler) NextCount() uint64 {
	return s.nextCount
}

// RemainingCount returns the number of base cycles until the nearest
// deadline. A negative result means an event is late, which happens when the
// run loop overshoots. With nothing scheduled it returns math.MaxInt64.
func (s *Scheduler) RemainingCount() int64 {
	if s.nextCount == NoDeadline {
		return math.MaxInt64
	}

	if s.nextCount >= s.currCount {
		diff := s.nextCount - s.currCount
		if diff > math.MaxInt64 {
			return math.MaxInt64
		}

		return int64(diff)
	}

	diff := s.currCount - s.nextCount
	if diff > math.MaxInt64 {
		return math.MinInt64
	}

	return -int64(diff)
}

// ScheduleFromNow schedules an event interval local cycles after the event's
// current position.
func (s *Scheduler) ScheduleFromNow(id EventID, interval uint64) {
	s.mustBeRegistered(id)

	e := &s.events[id]
	s.scheduleEvent(id, saturatingAdd(e.localCount(s.currCount), interval))
}

// ScheduleAt schedules an event at an absolute target in its own clock.
func (s *Scheduler) ScheduleAt(id EventID, target uint64) {
	s.mustBeRegistered(id)

	s.scheduleEvent(id, target)
}

// GetScheduleTarget returns the local target of an event, or NoDeadline.
func (s *Scheduler) GetScheduleTarget(id EventID) uint64 {
	s.mustBeRegistered(id)

	return s.events[id].target
}

// Cancel unschedules an event. A cancelled event never fires, even if its
// deadline has already passed.
func (s *Scheduler) Cancel(id EventID) {
	s.mustBeRegistered(id)

	s.events[id].target = NoDeadline

	if int(id) == s.firing {
		s.rearmed = true
	}

	if int(id) == s.nextEvent {
		s.recalcSchedule()
	}
}

// IsScheduled tells whether an event is scheduled and has not reached its
// deadline yet.
func (s *Scheduler) IsScheduled(id EventID) bool {
	s.mustBeRegistered(id)

	e := &s.events[id]
	if e.target == NoDeadline {
		return false
	}

	return e.localCount(s.currCount) < e.target
}

// Advance moves the base counter forward and fires every event that became
// due.
func (s *Scheduler) Advance(count uint64) {
	s.currCount += count
	if s.currCount >= s.nextCount {
		s.execute()
	}
}

func (s *Scheduler) scheduleEvent(id EventID, target uint64) {
	e := &s.events[id]
	e.target = target

	if int(id) == s.firing {
		s.rearmed = true
	}

	if int(id) == s.nextEvent {
		if target != NoDeadline && e.baseTarget() <= s.nextCount {
			s.nextCount = e.baseTarget()
			return
		}

		s.recalcSchedule()

		return
	}

	if target == NoDeadline {
		return
	}

	s.offerDeadline(id, e)
}

// offerDeadline makes e the cached nearest event if it is due first. Equal
// deadlines go to the lower slot so firing order does not depend on the order
// events were scheduled in.
func (s *Scheduler) offerDeadline(id EventID, e *event) {
	baseTarget := e.baseTarget()
	if baseTarget < s.nextCount ||
		(baseTarget == s.nextCount && int(id) < s.nextEvent) {
		s.nextCount = baseTarget
		s.nextEvent = int(id)
	}
}

func (s *Scheduler) execute() {
	for s.nextEvent != noEvent && s.currCount >= s.nextCount {
		id := EventID(s.nextEvent)
		e := &s.events[id]

		// The base deadline is rounded up, so reaching it implies the local
		// target was reached. The check only matters when a callback moved
		// the event under our feet.
		if e.target != NoDeadline && e.localCount(s.currCount) >= e.target {
			s.fire(id, e)
		}

		s.recalcSchedule()
	}
}

func (s *Scheduler) fire(id EventID, e *event) {
	target := e.target
	ctx := EventContext{id: id, now: s.currCount}

	hooked := s.NumHooks() > 0
	if hooked {
		s.InvokeHook(hooking.HookCtx{
			Domain: s,
			Pos:    HookPosBeforeEvent,
			Item:   s.firedEvent(id, target, NoDeadline),
		})
	}

	s.firing = int(id)
	s.firingTarget = target
	s.rearmed = false

	e.handler.OnDue(&ctx)

	s.firing = noEvent

	switch {
	case ctx.reschedule:
		e.target = saturatingAdd(s.firingTarget, ctx.interval)
	case s.rearmed:
		// The handler scheduled or cancelled its own event.
	default:
		e.target = NoDeadline
	}

	if hooked {
		s.InvokeHook(hooking.HookCtx{
			Domain: s,
			Pos:    HookPosAfterEvent,
			Item:   s.firedEvent(id, target, e.target),
		})
	}
}

func (s *Scheduler) firedEvent(id EventID, target, next uint64) FiredEvent {
	return FiredEvent{
		ID:         id,
		UserID:     s.userIDs[id],
		Target:     target,
		Now:        s.currCount,
		NextTarget: next,
	}
}

func (s *Scheduler) recalcSchedule() {
	s.nextCount = NoDeadline
	s.nextEvent = noEvent

	for i := 0; i < s.numEvents; i++ {
		e := &s.events[i]
		if e.target == NoDeadline {
			continue
		}

		baseTarget := e.baseTarget()
		if baseTarget < s.nextCount {
			s.nextCount = baseTarget
			s.nextEvent = i
		}
	}
}

func (s *Scheduler) mustBeRegistered(id EventID) {
	if int(id) >= s.numEvents {
		panic(fmt.Sprintf("timing: event %d is not registered", id))
	}
}

func saturatingAdd(a, b uint64) uint64 {
	sum := a + b
	if sum < a || sum == NoDeadline {
		return NoDeadline - 1
	}

	return sum
}

func addSigned(a uint64, delta int64) uint64 {
	if delta >= 0 {
		return saturatingAdd(a, uint64(delta))
	}

	magnitude := uint64(-delta)
	if magnitude > a {
		return 0
	}

	return a - magnitude
}
