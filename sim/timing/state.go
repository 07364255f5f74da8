package timing

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownUserID is returned when a state names an event that is not
	// registered with the scheduler.
	ErrUnknownUserID = errors.New("timing: unknown event user ID")

	// ErrDuplicateUserID is returned when a state names an event twice.
	ErrDuplicateUserID = errors.New("timing: duplicate event user ID")

	// ErrInvalidClockRatio is returned when a state carries a zero clock
	// numerator or denominator.
	ErrInvalidClockRatio = errors.New("timing: invalid clock ratio")
)

// State is a snapshot of the scheduler. Events are identified by user ID so a
// snapshot survives changes to registration order.
type State struct {
	CurrCount uint64       `json:"curr_count"`
	Events    []EventState `json:"events"`
}

// EventState is the snapshot of a single event.
type EventState struct {
	UserID   UserID `json:"user_id"`
	Target   uint64 `json:"target"`
	ClockNum uint64 `json:"clock_num"`
	ClockDen uint64 `json:"clock_den"`
}

// SaveState writes every registered event into state, in registration order.
func (s *Scheduler) SaveState(state *State) {
	state.CurrCount = s.currCount
	state.Events = state.Events[:0]

	for i := 0; i < s.numEvents; i++ {
		e := &s.events[i]
		state.Events = append(state.Events, EventState{
			UserID:   s.userIDs[i],
			Target:   e.target,
			ClockNum: e.clock.Num,
			ClockDen: e.clock.Den,
		})
	}
}

// ValidateState checks that state can be loaded into this scheduler.
func (s *Scheduler) ValidateState(state *State) error {
	seen := make(map[UserID]struct{}, len(state.Events))

	for _, es := range state.Events {
		if _, ok := s.eventIDs[es.UserID]; !ok {
			return fmt.Errorf("%w: %d", ErrUnknownUserID, es.UserID)
		}

		if _, dup := seen[es.UserID]; dup {
			return fmt.Errorf("%w: %d", ErrDuplicateUserID, es.UserID)
		}

		seen[es.UserID] = struct{}{}

		if es.ClockNum == 0 || es.ClockDen == 0 {
			return fmt.Errorf("%w: %d/%d for user ID %d",
				ErrInvalidClockRatio, es.ClockNum, es.ClockDen, es.UserID)
		}
	}

	return nil
}

// LoadState restores a snapshot. The state must have passed ValidateState.
// Registered events that the snapshot does not mention end up unscheduled.
// Handlers are not part of the snapshot and stay as registered.
func (s *Scheduler) LoadState(state *State) {
	for i := 0; i < s.numEvents; i++ {
		s.events[i].target = NoDeadline
	}

	s.currCount = state.CurrCount

	for _, es := range state.Events {
		id, ok := s.eventIDs[es.UserID]
		if !ok {
			panic(fmt.Sprintf(
				"timing: loading state for unknown user ID %d", es.UserID))
		}

		e := &s.events[id]
		e.target = es.Target
		e.clock = NewRationalClock(es.ClockNum, es.ClockDen)
	}

	s.recalcSchedule()
}
