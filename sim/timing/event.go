package timing

import (
	"fmt"
	"math"

	"github.com/lockstep-sim/saturn/sim/hooking"
)

// EventID identifies a registered event slot. IDs are handed out in
// registration order and never reused for the lifetime of the scheduler.
type EventID uint32

// UserID identifies an event across builds for save states.
type UserID uint32

const (
	// MaxEvents is the capacity of the event table.
	MaxEvents = 64

	// InvalidEvent is an EventID that never refers to a registered event.
	InvalidEvent = ^EventID(0)

	// NoDeadline is the target of an event that is not scheduled.
	NoDeadline uint64 = math.MaxUint64
)

// HookPosBeforeEvent is a hook position that triggers before an event
// callback runs.
var HookPosBeforeEvent = &hooking.HookPos{Name: "BeforeEvent"}

// HookPosAfterEvent is a hook position that triggers after an event callback
// returns and its new target has been applied.
var HookPosAfterEvent = &hooking.HookPos{Name: "AfterEvent"}

// A Handler reacts to an event reaching its deadline. The handler captures
// whatever component it needs; the scheduler never sees the component.
type Handler interface {
	OnDue(ctx *EventContext)
}

// HandlerFunc adapts a function into a Handler.
type HandlerFunc func(ctx *EventContext)

// OnDue calls f(ctx).
func (f HandlerFunc) OnDue(ctx *EventContext) {
	f(ctx)
}

// EventContext is handed to a handler each time its event fires. Events are
// one-shot unless the handler calls Reschedule.
type EventContext struct {
	id         EventID
	now        uint64
	reschedule bool
	interval   uint64
}

// Reschedule asks for the event to fire again interval local cycles after the
// deadline that just fired, keeping periodic events in phase even when the
// callback runs late. A zero interval would leave the event due forever and
// panics.
func (c *EventContext) Reschedule(interval uint64) {
	if interval == 0 {
		panic(fmt.Sprintf("timing: zero reschedule interval for event %d", c.id))
	}

	c.reschedule = true
	c.interval = interval
}

// ID returns the firing event.
func (c *EventContext) ID() EventID {
	return c.id
}

// Now returns the base cycle count at which the event is being fired.
func (c *EventContext) Now() uint64 {
	return c.now
}

// FiredEvent is the hook item describing one firing.
type FiredEvent struct {
	ID     EventID
	UserID UserID

	// Target is the local deadline that fired.
	Target uint64

	// Now is the base cycle count when the event fired.
	Now uint64

	// NextTarget is the new local deadline, or NoDeadline. It is only
	// meaningful at HookPosAfterEvent.
	NextTarget uint64
}

type event struct {
	target  uint64
	clock   RationalClock
	handler Handler
}

// baseTarget is the target re-expressed in base cycles, rounded up.
func (e *event) baseTarget() uint64 {
	return e.clock.ToBase(e.target)
}

// localCount is the base count re-expressed in the event's clock.
func (e *event) localCount(base uint64) uint64 {
	return e.clock.ToLocal(base)
}
