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

// Builder can build machines.
type Builder struct {
	clockSpeed     ClockSpeed
	videoStandard  VideoStandard
	debugTracing   bool
	maxGranularity bool
	instrCycles    uint64
	logger         zerolog.Logger
}

// MakeBuilder creates a builder for an NTSC machine at the 320 clock speed.
func MakeBuilder() Builder {
	return Builder{
		clockSpeed:    hw.ClockSpeed320,
		videoStandard: hw.NTSC,
		instrCycles:   1,
		logger:        zerolog.Nop(),
	}
}

// WithClockSpeed sets the clock speed the machine starts with.
func (b Builder) WithClockSpeed(speed ClockSpeed) Builder {
	b.clockSpeed = speed
	return b
}

// WithVideoStandard sets the video standard.
func (b Builder) WithVideoStandard(standard VideoStandard) Builder {
	b.videoStandard = standard
	return b
}

// WithDebugTracing makes the machine honor breakpoints and debug breaks.
func (b Builder) WithDebugTracing() Builder {
	b.debugTracing = true
	return b
}

// WithMaxTimingGranularity makes every run advance a single cycle.
func (b Builder) WithMaxTimingGranularity() Builder {
	b.maxGranularity = true
	return b
}

// WithInstructionCycles sets the cost of one instruction on every CPU.
func (b Builder) WithInstructionCycles(cycles uint64) Builder {
	b.instrCycles = cycles
	return b
}

// WithLogger sets the logger.
func (b Builder) WithLogger(logger zerolog.Logger) Builder {
	b.logger = logger
	return b
}

// Build creates a machine in its power-on state.
func (b Builder) Build() *Machine {
	m := &Machine{
		logger:        b.logger.With().Str("component", "machine").Logger(),
		scheduler:     timing.NewScheduler(),
		clockSpeed:    hw.ClockSpeed320,
		videoStandard: b.videoStandard,
	}

	m.breaks = NewDebugBreakManager(m.logger)

	cpu := sh2.MakeBuilder().
		WithInstructionCycles(b.instrCycles).
		WithBreakRaiser(m.breaks).
		WithLogger(b.logger)
	m.primary = cpu.WithName("MSH2").Build()
	m.secondary = cpu.WithName("SSH2").Build()
	m.aux = cpu.WithName("SH1").Build()

	m.scu = scu.New(m.scheduler, m.primary, b.logger)
	m.primary.SetInterruptAckHandler(m.scu.Acknowledge)

	m.vdp = vdp.New(m.scheduler, m.scu, b.logger)
	m.vdp.SetVideoStandard(b.videoStandard)
	m.scsp = scsp.New(m.scheduler, m.scu, b.logger)
	m.smpc = smpc.New(m.scheduler, m, b.logger)

	m.interleaver = NewInterleaver(Components{
		Scheduler:  m.scheduler,
		Breaks:     m.breaks,
		Primary:    m.primary,
		Secondary:  m.secondary,
		Aux:        m.aux,
		Controller: m.scu,
		Video:      m.vdp,
	})
	m.interleaver.SetMaxTimingGranularity(b.maxGranularity)

	m.AddClockSpeedChangeCallback(func(r ClockRatios) {
		m.scsp.OnClockSpeedChange(r.SCSP)
	})
	m.AddClockSpeedChangeCallback(func(r ClockRatios) {
		m.smpc.OnClockSpeedChange(r.SMPC)
	})
	m.AddClockSpeedChangeCallback(func(r ClockRatios) {
		m.interleaver.SetAuxClock(r.CDBlock)
	})
	m.AddClockSpeedChangeCallback(func(ClockRatios) {
		m.vdp.SetClockSpeed(m.clockSpeed)
	})

	m.Reset(true)

	if b.clockSpeed != hw.ClockSpeed320 {
		m.SetClockSpeed(b.clockSpeed)
	}

	m.EnableDebugTracing(b.debugTracing)

	return m
}
