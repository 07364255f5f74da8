// Package machine assembles the devices around one scheduler and drives them
// with the interleaving run loop.
package machine

import (
	"github.com/rs/zerolog"

	"github.com/lockstep-sim/saturn/hw"
	"github.com/lockstep-sim/saturn/hw/scsp"
	"github.com/lockstep-sim/saturn/hw/scu"
	"github.com/lockstep-sim/saturn/hw/sh2"
	"github.com/lockstep-sim/saturn/hw/smpc"
	"github.com/lockstep-sim/saturn/hw/vdp"
	"github.com/lockstep-sim/saturn/sim/timing"
)

// Machine is a complete system. It is not safe for concurrent use.
type Machine struct {
	logger zerolog.Logger

	scheduler *timing.Scheduler
	breaks    *DebugBreakManager

	primary   *sh2.CPU
	secondary *sh2.CPU
	aux       *sh2.CPU
	scu       *scu.SCU
	vdp       *vdp.VDP
	scsp      *scsp.SCSP
	smpc      *smpc.SMPC

	interleaver *Interleaver

	clockSpeed     ClockSpeed
	videoStandard  VideoStandard
	ratios         ClockRatios
	clockCallbacks []ClockSpeedChangeFunc
}

// Run advances the machine up to the next scheduled event. It returns false
// if a debug break stopped it.
func (m *Machine) Run() bool {
	return m.interleaver.Run()
}

// RunFrame runs until the start of the last line of the next frame. It
// returns false if a debug break stopped it.
func (m *Machine) RunFrame() bool {
	return m.interleaver.RunFrame()
}

// StepPrimary runs one primary CPU instruction.
func (m *Machine) StepPrimary() uint64 {
	return m.interleaver.StepPrimary()
}

// StepSecondary runs one secondary CPU instruction. It does nothing while the
// secondary CPU is disabled.
func (m *Machine) StepSecondary() uint64 {
	return m.interleaver.StepSecondary()
}

// Reset puts the machine in its power-on state. A soft reset keeps the
// scheduler counter running.
func (m *Machine) Reset(hard bool) {
	m.logger.Debug().Bool("hard", hard).Msg("reset")

	m.SetClockSpeed(hw.ClockSpeed320)

	if hard {
		m.scheduler.Reset()
	}

	m.primary.Reset(hard)
	m.secondary.Reset(hard)
	m.aux.Reset(hard)
	m.scu.Reset(hard)
	m.vdp.Reset(hard)
	m.scsp.Reset(hard)
	m.smpc.Reset(hard)

	m.interleaver.Reset()
}

// ClockSpeed returns the current clock speed.
func (m *Machine) ClockSpeed() ClockSpeed {
	return m.clockSpeed
}

// SetClockSpeed switches the master clock frequency.
func (m *Machine) SetClockSpeed(speed ClockSpeed) {
	m.clockSpeed = speed
	m.UpdateClockRatios()
}

// VideoStandard returns the current video standard.
func (m *Machine) VideoStandard() VideoStandard {
	return m.videoStandard
}

// SetVideoStandard switches the video standard, which also changes the
// master clock frequency.
func (m *Machine) SetVideoStandard(standard VideoStandard) {
	m.videoStandard = standard
	m.vdp.SetVideoStandard(standard)
	m.UpdateClockRatios()
}

// ClockRatios returns the ratios in effect.
func (m *Machine) ClockRatios() ClockRatios {
	return m.ratios
}

// UpdateClockRatios recomputes the clock ratios and notifies every
// registered callback.
func (m *Machine) UpdateClockRatios() {
	m.ratios = ComputeClockRatios(m.clockSpeed, m.videoStandard)

	m.logger.Debug().
		Stringer("clock_speed", m.clockSpeed).
		Stringer("standard", m.videoStandard).
		Uint64("master_hz", uint64(m.ratios.MasterClock)).
		Msg("clock ratios updated")

	for _, f := range m.clockCallbacks {
		f(m.ratios)
	}
}

// AddClockSpeedChangeCallback registers f to run on every clock change.
func (m *Machine) AddClockSpeedChangeCallback(f ClockSpeedChangeFunc) {
	m.clockCallbacks = append(m.clockCallbacks, f)
}

// EnableDebugTracing switches between the normal and the debug run
// strategies. Breakpoints only take effect with debug tracing on.
func (m *Machine) EnableDebugTracing(enabled bool) {
	m.interleaver.SetDebugTracing(enabled)
	m.primary.SetDebugTracing(enabled)
	m.secondary.SetDebugTracing(enabled)
}

// DebugTracing tells whether debug tracing is on.
func (m *Machine) DebugTracing() bool {
	return m.interleaver.DebugTracing()
}

// Scheduler returns the scheduler every device shares.
func (m *Machine) Scheduler() *timing.Scheduler {
	return m.scheduler
}

// DebugBreaks returns the debug break manager.
func (m *Machine) DebugBreaks() *DebugBreakManager {
	return m.breaks
}

// Interleaver returns the run loop.
func (m *Machine) Interleaver() *Interleaver {
	return m.interleaver
}

// Primary returns the primary CPU.
func (m *Machine) Primary() *sh2.CPU {
	return m.primary
}

// Secondary returns the secondary CPU.
func (m *Machine) Secondary() *sh2.CPU {
	return m.secondary
}

// Aux returns the CD block CPU.
func (m *Machine) Aux() *sh2.CPU {
	return m.aux
}

// SCU returns the system control unit.
func (m *Machine) SCU() *scu.SCU {
	return m.scu
}

// VDP returns the video unit.
func (m *Machine) VDP() *vdp.VDP {
	return m.vdp
}

// SCSP returns the sound unit.
func (m *Machine) SCSP() *scsp.SCSP {
	return m.scsp
}

// SMPC returns the system manager.
func (m *Machine) SMPC() *smpc.SMPC {
	return m.smpc
}
