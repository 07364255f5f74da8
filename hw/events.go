// Package hw lists the schedulable events of the machine.
//
// User IDs are written into save states, so existing values must never be
// renumbered. Add new events at the end.
package hw

import (
	"fmt"

	"github.com/lockstep-sim/saturn/sim/timing"
)

// User IDs of every event registered with the scheduler.
const (
	EventVDPPhase timing.UserID = iota + 1
	EventSCSPSample
	EventSMPCCommand
	EventSCUTimer1
)

var eventNames = map[timing.UserID]string{
	EventVDPPhase:    "vdp.phase",
	EventSCSPSample:  "scsp.sample",
	EventSMPCCommand: "smpc.command",
	EventSCUTimer1:   "scu.timer1",
}

// EventName returns a readable name for a user ID.
func EventName(id timing.UserID) string {
	if name, ok := eventNames[id]; ok {
		return name
	}

	return fmt.Sprintf("event.%d", id)
}
