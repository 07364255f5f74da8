package scu

import "fmt"

// State is the saved state of the SCU. The timer 1 deadline lives in the
// scheduler state.
type State struct {
	Status        uint32     `json:"status"`
	Mask          uint32     `json:"mask"`
	TimersEnabled bool       `json:"timers_enabled"`
	Timer0Counter uint16     `json:"timer0_counter"`
	Timer0Compare uint16     `json:"timer0_compare"`
	Timer1Reload  uint16     `json:"timer1_reload"`
	Timer1Mode    Timer1Mode `json:"timer1_mode"`
	Cycles        uint64     `json:"cycles"`
}

// SaveState writes the SCU state.
func (s *SCU) SaveState(state *State) {
	*state = State{
		Status:        s.status,
		Mask:          s.mask,
		TimersEnabled: s.timersEnabled,
		Timer0Counter: s.timer0Counter,
		Timer0Compare: s.timer0Compare,
		Timer1Reload:  s.timer1Reload,
		Timer1Mode:    s.timer1Mode,
		Cycles:        s.cycles,
	}
}

// ValidateState checks that the state can be loaded.
func (s *SCU) ValidateState(state *State) error {
	if state.Timer1Mode > Timer1OnTimer0Match {
		return fmt.Errorf("%w: timer 1 mode %d", ErrInvalidTimer, state.Timer1Mode)
	}

	if state.Timer1Reload > 0x1FF {
		return fmt.Errorf("%w: timer 1 reload %#x", ErrInvalidTimer, state.Timer1Reload)
	}

	return nil
}

// LoadState restores a validated state and drives the CPU interrupt line to
// match it.
func (s *SCU) LoadState(state *State) {
	s.status = state.Status
	s.mask = state.Mask & AllMasked
	s.timersEnabled = state.TimersEnabled
	s.timer0Counter = state.Timer0Counter
	s.timer0Compare = state.Timer0Compare
	s.timer1Reload = state.Timer1Reload
	s.timer1Mode = state.Timer1Mode
	s.cycles = state.Cycles

	s.updateInterruptLevel()
}
