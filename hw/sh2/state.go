package sh2

import "fmt"

// State is the saved state of a CPU.
type State struct {
	Instructions uint64 `json:"instructions"`
	Cycles       uint64 `json:"cycles"`
	Interrupts   uint64 `json:"interrupts"`
	Mask         uint8  `json:"mask"`
	ExtLevel     uint8  `json:"ext_level"`
	ExtVector    uint8  `json:"ext_vector"`
}

// SaveState writes the CPU state.
func (c *CPU) SaveState(state *State) {
	*state = State{
		Instructions: c.instructions,
		Cycles:       c.cycles,
		Interrupts:   c.interrupts,
		Mask:         c.mask,
		ExtLevel:     c.extLevel,
		ExtVector:    c.extVector,
	}
}

// ValidateState checks that the state can be loaded.
func (c *CPU) ValidateState(state *State) error {
	if state.Mask > MaxLevel {
		return fmt.Errorf("%w: %s mask %d", ErrInvalidLevel, c.name, state.Mask)
	}

	if state.ExtLevel > MaxLevel {
		return fmt.Errorf("%w: %s external level %d",
			ErrInvalidLevel, c.name, state.ExtLevel)
	}

	return nil
}

// LoadState restores a validated state.
func (c *CPU) LoadState(state *State) {
	c.instructions = state.Instructions
	c.cycles = state.Cycles
	c.interrupts = state.Interrupts
	c.mask = state.Mask
	c.extLevel = state.ExtLevel
	c.extVector = state.ExtVector
}
