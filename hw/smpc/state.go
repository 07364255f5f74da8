package smpc

import "fmt"

// State is the saved state of the SMPC. The completion deadline lives in the
// scheduler state.
type State struct {
	Busy     bool    `json:"busy"`
	Pending  Command `json:"pending"`
	Executed uint64  `json:"executed"`
}

// SaveState writes the SMPC state.
func (s *SMPC) SaveState(state *State) {
	*state = State{
		Busy:     s.busy,
		Pending:  s.pending,
		Executed: s.executed,
	}
}

// ValidateState checks that a pending command is one the SMPC knows.
func (s *SMPC) ValidateState(state *State) error {
	if !state.Busy {
		return nil
	}

	if _, ok := commands[state.Pending]; !ok {
		return fmt.Errorf("%w: pending 0x%02X", ErrUnknownCommand, uint8(state.Pending))
	}

	return nil
}

// LoadState restores a validated state.
func (s *SMPC) LoadState(state *State) {
	s.busy = state.Busy
	s.pending = state.Pending
	s.executed = state.Executed
}
