package vdp

import (
	"fmt"

	"github.com/lockstep-sim/saturn/hw"
)

// State is the saved state of the VDP. The phase deadline lives in the
// scheduler state.
type State struct {
	ClockSpeed hw.ClockSpeed    `json:"clock_speed"`
	Standard   hw.VideoStandard `json:"standard"`
	HPhase     HorizontalPhase  `json:"h_phase"`
	VPhase     VerticalPhase    `json:"v_phase"`
	Line       uint16           `json:"line"`
	FrameCount uint64           `json:"frame_count"`
	Cycles     uint64           `json:"cycles"`
}

// SaveState writes the VDP state.
func (v *VDP) SaveState(state *State) {
	*state = State{
		ClockSpeed: v.clockSpeed,
		Standard:   v.standard,
		HPhase:     v.hphase,
		VPhase:     v.vphase,
		Line:       v.lineNum,
		FrameCount: v.frameCount,
		Cycles:     v.cycles,
	}
}

// ValidateState checks that the state can be loaded.
func (v *VDP) ValidateState(state *State) error {
	if _, ok := lineTimings[state.ClockSpeed]; !ok {
		return fmt.Errorf("%w: clock speed %s", ErrInvalidPhase, state.ClockSpeed)
	}

	ft, ok := frameTimings[state.Standard]
	if !ok {
		return fmt.Errorf("%w: video standard %s", ErrInvalidPhase, state.Standard)
	}

	if state.HPhase > HBlank || state.VPhase > VLastLine {
		return fmt.Errorf("%w: phase %d/%d",
			ErrInvalidPhase, state.HPhase, state.VPhase)
	}

	if state.Line >= ft.totalLines {
		return fmt.Errorf("%w: line %d of %d",
			ErrInvalidPhase, state.Line, ft.totalLines)
	}

	return nil
}

// LoadState restores a validated state.
func (v *VDP) LoadState(state *State) {
	v.clockSpeed = state.ClockSpeed
	v.standard = state.Standard
	v.updateTiming()

	v.hphase = state.HPhase
	v.vphase = state.VPhase
	v.lineNum = state.Line
	v.frameCount = state.FrameCount
	v.cycles = state.Cycles
}
