package machine

import (
	"errors"
	"fmt"

	"github.com/lockstep-sim/saturn/hw/scsp"
	"github.com/lockstep-sim/saturn/hw/scu"
	"github.com/lockstep-sim/saturn/hw/sh2"
	"github.com/lockstep-sim/saturn/hw/smpc"
	"github.com/lockstep-sim/saturn/hw/vdp"
	"github.com/lockstep-sim/saturn/sim/stateful"
	"github.com/lockstep-sim/saturn/sim/timing"
)

// ErrInvalidConfiguration is returned when a state carries a clock speed or
// video standard the machine does not support.
var ErrInvalidConfiguration = errors.New("machine: invalid configuration")

// State is the saved state of a whole machine.
type State struct {
	ClockSpeed       ClockSpeed    `json:"clock_speed"`
	VideoStandard    VideoStandard `json:"video_standard"`
	SecondaryEnabled bool          `json:"secondary_enabled"`
	Spillover        Spillover     `json:"spillover"`

	Scheduler timing.State `json:"scheduler"`
	Primary   sh2.State    `json:"primary"`
	Secondary sh2.State    `json:"secondary"`
	Aux       sh2.State    `json:"aux"`
	SCU       scu.State    `json:"scu"`
	VDP       vdp.State    `json:"vdp"`
	SCSP      scsp.State   `json:"scsp"`
	SMPC      smpc.State   `json:"smpc"`
}

// SaveState writes the machine state.
func (m *Machine) SaveState(state *State) {
	state.ClockSpeed = m.clockSpeed
	state.VideoStandard = m.videoStandard
	state.SecondaryEnabled = m.interleaver.SecondaryEnabled()
	state.Spillover = m.interleaver.Spillover()

	m.scheduler.SaveState(&state.Scheduler)
	m.primary.SaveState(&state.Primary)
	m.secondary.SaveState(&state.Secondary)
	m.aux.SaveState(&state.Aux)
	m.scu.SaveState(&state.SCU)
	m.vdp.SaveState(&state.VDP)
	m.scsp.SaveState(&state.SCSP)
	m.smpc.SaveState(&state.SMPC)
}

// ValidateState checks every part of the state. Nothing is modified.
func (m *Machine) ValidateState(state *State) error {
	return stateful.ValidateAll(
		func() error { return validateConfiguration(state) },
		func() error { return m.scheduler.ValidateState(&state.Scheduler) },
		func() error { return m.primary.ValidateState(&state.Primary) },
		func() error { return m.secondary.ValidateState(&state.Secondary) },
		func() error { return m.aux.ValidateState(&state.Aux) },
		func() error { return m.scu.ValidateState(&state.SCU) },
		func() error { return m.vdp.ValidateState(&state.VDP) },
		func() error { return m.scsp.ValidateState(&state.SCSP) },
		func() error { return m.smpc.ValidateState(&state.SMPC) },
	)
}

func validateConfiguration(state *State) error {
	speeds, ok := masterClocks[state.VideoStandard]
	if !ok {
		return fmt.Errorf("%w: video standard %s",
			ErrInvalidConfiguration, state.VideoStandard)
	}

	if _, ok := speeds[state.ClockSpeed]; !ok {
		return fmt.Errorf("%w: clock speed %s",
			ErrInvalidConfiguration, state.ClockSpeed)
	}

	ratios := ComputeClockRatios(state.ClockSpeed, state.VideoStandard)
	if state.Spillover.AuxRemainder >= ratios.CDBlock.Den {
		return fmt.Errorf("%w: auxiliary remainder %d out of range",
			ErrInvalidConfiguration, state.Spillover.AuxRemainder)
	}

	return nil
}

// LoadState restores a state that passed ValidateState.
func (m *Machine) LoadState(state *State) {
	m.clockSpeed = state.ClockSpeed
	m.videoStandard = state.VideoStandard
	m.UpdateClockRatios()

	// Event targets and ratios come from the scheduler state, so it is
	// loaded after the clock callbacks have run.
	m.scheduler.LoadState(&state.Scheduler)
	m.primary.LoadState(&state.Primary)
	m.secondary.LoadState(&state.Secondary)
	m.aux.LoadState(&state.Aux)
	m.scu.LoadState(&state.SCU)
	m.vdp.LoadState(&state.VDP)
	m.scsp.LoadState(&state.SCSP)
	m.smpc.LoadState(&state.SMPC)

	m.interleaver.EnableSecondary(state.SecondaryEnabled)
	m.interleaver.SetSpillover(state.Spillover)
}
