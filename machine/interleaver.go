package machine

import (
	"math"
	"math/bits"

	"github.com/lockstep-sim/saturn/sim/timing"
)

// SyncMaxStep is the longest stretch, in master cycles, that one CPU runs
// before the other catches up.
const SyncMaxStep = 32

// A CPU consumes cycles.
type CPU interface {
	// Advance runs from current until target is reached and returns the
	// cycle count reached, which may overshoot target or, when a debug break
	// is raised, fall short of it.
	Advance(target, current uint64) uint64

	// Step runs a single instruction and returns the cycles it took.
	Step() uint64
}

// A Controller catches up with the primary CPU.
type Controller interface {
	Advance(cycles uint64)
}

// Video is the display unit. Its last line marks frame boundaries.
type Video interface {
	Advance(cycles uint64)
	InLastLinePhase() bool
}

// Components are the parts an Interleaver drives. Secondary and Aux may be
// nil.
type Components struct {
	Scheduler  *timing.Scheduler
	Breaks     *DebugBreakManager
	Primary    CPU
	Secondary  CPU
	Aux        CPU
	Controller Controller
	Video      Video
}

// Spillover is how far each CPU has run ahead of the scheduler, in its own
// cycles. AuxRemainder is the fraction of an auxiliary cycle not yet handed
// out, scaled by the auxiliary clock denominator.
type Spillover struct {
	Primary      uint64 `json:"primary"`
	Secondary    uint64 `json:"secondary"`
	Aux          uint64 `json:"aux"`
	AuxRemainder uint64 `json:"aux_remainder"`
}

// Interleaver runs the CPUs in lockstep with the scheduler.
//
// The scheduler position is the system time. The primary CPU and, when
// enabled, the secondary CPU may end a run a few cycles past it; their lead
// is kept as spillover and counts towards the next run. The system time only
// moves to where both CPUs have arrived, so the leads are never negative.
// The controller follows the primary CPU. The video unit and the auxiliary
// CPU follow the system time.
type Interleaver struct {
	scheduler  *timing.Scheduler
	breaks     *DebugBreakManager
	primary    CPU
	secondary  CPU
	aux        CPU
	controller Controller
	video      Video

	secondaryEnabled bool
	debugTracing     bool
	maxGranularity   bool
	auxClock         timing.RationalClock

	spill Spillover

	runFn func() bool
}

// NewInterleaver creates an Interleaver with the secondary CPU disabled.
func NewInterleaver(c Components) *Interleaver {
	if c.Scheduler == nil || c.Primary == nil ||
		c.Controller == nil || c.Video == nil {
		panic("machine: interleaver requires a scheduler, a primary CPU, " +
			"a controller and a video unit")
	}

	breaks := c.Breaks
	if breaks == nil {
		breaks = &DebugBreakManager{}
	}

	i := &Interleaver{
		scheduler:  c.Scheduler,
		breaks:     breaks,
		primary:    c.Primary,
		secondary:  c.Secondary,
		aux:        c.Aux,
		controller: c.Controller,
		video:      c.Video,
		auxClock:   timing.OneToOne(),
	}

	i.SetDebugTracing(false)

	return i
}

// Run advances the machine up to the next scheduler deadline, or by a single
// cycle in maximum granularity mode. It returns false if the run stopped on a
// debug break.
func (i *Interleaver) Run() bool {
	return i.runFn()
}

// RunFrame runs until the video unit enters the last line of the next frame.
// It returns false if a debug break interrupted it.
func (i *Interleaver) RunFrame() bool {
	for i.video.InLastLinePhase() {
		if !i.runFn() {
			return false
		}
	}

	for !i.video.InLastLinePhase() {
		if !i.runFn() {
			return false
		}
	}

	return true
}

// SetDebugTracing selects the run strategy. The debug strategy polls for
// debug breaks between sub-slices.
func (i *Interleaver) SetDebugTracing(enabled bool) {
	i.debugTracing = enabled

	if enabled {
		i.runFn = i.runDebug
	} else {
		i.runFn = i.runNormal
	}
}

// DebugTracing tells whether the debug strategy is selected.
func (i *Interleaver) DebugTracing() bool {
	return i.debugTracing
}

// SetMaxTimingGranularity makes every run advance a single cycle.
func (i *Interleaver) SetMaxTimingGranularity(enabled bool) {
	i.maxGranularity = enabled
}

// EnableSecondary turns the secondary CPU on or off. Its lead is dropped
// either way, as the CPU restarts from the current system time.
func (i *Interleaver) EnableSecondary(enabled bool) {
	if enabled && i.secondary == nil {
		panic("machine: no secondary CPU to enable")
	}

	i.secondaryEnabled = enabled
	i.spill.Secondary = 0
}

// SecondaryEnabled tells whether the secondary CPU runs.
func (i *Interleaver) SecondaryEnabled() bool {
	return i.secondaryEnabled
}

// SetAuxClock sets the clock ratio of the auxiliary CPU. The pending
// fraction of a cycle belongs to the old ratio and is dropped.
func (i *Interleaver) SetAuxClock(ratio timing.RationalClock) {
	if !ratio.IsValid() {
		panic("machine: invalid auxiliary clock ratio " + ratio.String())
	}

	i.auxClock = ratio
	i.spill.AuxRemainder = 0
}

// AuxClock returns the clock ratio of the auxiliary CPU.
func (i *Interleaver) AuxClock() timing.RationalClock {
	return i.auxClock
}

// Spillover returns the CPU leads.
func (i *Interleaver) Spillover() Spillover {
	return i.spill
}

// SetSpillover restores the CPU leads.
func (i *Interleaver) SetSpillover(s Spillover) {
	i.spill = s
}

// Reset disables the secondary CPU and clears the leads.
func (i *Interleaver) Reset() {
	i.secondaryEnabled = false
	i.spill = Spillover{}
}

func (i *Interleaver) runNormal() bool {
	return i.run(false)
}

func (i *Interleaver) runDebug() bool {
	return i.run(true)
}

func (i *Interleaver) sliceCycles() uint64 {
	if i.maxGranularity {
		return 1
	}

	remaining := i.scheduler.RemainingCount()
	switch {
	case remaining == math.MaxInt64:
		// Nothing is scheduled.
		return SyncMaxStep
	case remaining < 0:
		return 0
	default:
		return uint64(remaining)
	}
}

func (i *Interleaver) run(debug bool) bool {
	cycles := i.sliceCycles()

	exec := i.spill.Primary
	i.spill.Primary = 0

	elapsed := exec
	if i.secondaryEnabled {
		slave := i.spill.Secondary
		i.spill.Secondary = 0

		for {
			prev := exec
			exec = i.primary.Advance(min(exec+SyncMaxStep, cycles), exec)
			slave = i.secondary.Advance(exec, slave)
			i.controller.Advance(exec - prev)

			if debug && i.breaks.IsRaised() {
				break
			}

			if exec >= cycles {
				break
			}
		}

		elapsed = min(exec, slave)
		i.spill.Secondary = slave - elapsed
	} else {
		for {
			prev := exec
			exec = i.primary.Advance(min(exec+SyncMaxStep, cycles), exec)
			i.controller.Advance(exec - prev)

			if debug && i.breaks.IsRaised() {
				break
			}

			if exec >= cycles {
				break
			}
		}

		elapsed = exec
	}

	i.spill.Primary = exec - elapsed
	i.advanceSystem(elapsed)

	if debug && i.breaks.Lower() {
		return false
	}

	return true
}

// StepPrimary runs one primary CPU instruction and brings the rest of the
// machine along. It returns the cycles the instruction took.
func (i *Interleaver) StepPrimary() uint64 {
	cycles := i.primary.Step()
	i.controller.Advance(cycles)

	lead := i.spill.Primary + cycles
	elapsed := lead

	if i.secondaryEnabled {
		slave := i.secondary.Advance(lead, i.spill.Secondary)
		elapsed = min(lead, slave)
		i.spill.Secondary = slave - elapsed
	}

	i.spill.Primary = lead - elapsed
	i.advanceSystem(elapsed)

	return cycles
}

// StepSecondary runs one secondary CPU instruction and brings the rest of
// the machine along. It returns the cycles the instruction took, or 0 if the
// secondary CPU is disabled.
func (i *Interleaver) StepSecondary() uint64 {
	if !i.secondaryEnabled {
		return 0
	}

	cycles := i.secondary.Step()
	lead := i.spill.Secondary + cycles

	master := i.primary.Advance(lead, i.spill.Primary)
	i.controller.Advance(master - i.spill.Primary)

	elapsed := min(master, lead)
	i.spill.Primary = master - elapsed
	i.spill.Secondary = lead - elapsed
	i.advanceSystem(elapsed)

	return cycles
}

// advanceSystem moves the system time forward. Everything that follows the
// system time catches up before the scheduler fires what became due.
func (i *Interleaver) advanceSystem(elapsed uint64) {
	i.video.Advance(elapsed)

	if i.aux != nil {
		i.advanceAux(elapsed)
	}

	i.scheduler.Advance(elapsed)
}

func (i *Interleaver) advanceAux(elapsed uint64) {
	hi, lo := bits.Mul64(elapsed, i.auxClock.Num)
	lo, carry := bits.Add64(lo, i.spill.AuxRemainder, 0)
	hi += carry

	if hi >= i.auxClock.Den {
		panic("machine: auxiliary cycle count overflow")
	}

	target, rem := bits.Div64(hi, lo, i.auxClock.Den)
	i.spill.AuxRemainder = rem

	if target == 0 {
		return
	}

	reached := i.aux.Advance(target, i.spill.Aux)
	if reached < target {
		reached = target
	}

	i.spill.Aux = reached - target
}
