// Package tracing collects records of scheduler event firings.
package tracing

import "github.com/lockstep-sim/saturn/sim/timing"

// A Tracer receives every event firing of the scheduler it traces, after the
// event's new deadline has been applied.
type Tracer interface {
	RecordEvent(evt timing.FiredEvent)
}

// NameFunc turns an event user ID into a readable name.
type NameFunc func(timing.UserID) string
