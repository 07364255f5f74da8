// Package scsp models the sample clock of the sound processor and the
// timeslice it hands to the sound CPU.
package scsp

import (
	"github.com/rs/zerolog"

	"github.com/lockstep-sim/saturn/hw"
	"github.com/lockstep-sim/saturn/sim/timing"
)

const (
	// Frequency is the sound processor clock.
	Frequency = 22579200 * timing.Hz

	// CyclesPerSample is the number of sound clock cycles per output sample.
	CyclesPerSample = 512

	// SoundCPUCyclesPerSample is the timeslice the sound CPU runs per sample.
	SoundCPUCyclesPerSample = 256
)

// Interrupts receives the interrupt requests of the sound processor.
type Interrupts interface {
	TriggerSoundRequest()
}

// SCSP produces one sample per CyclesPerSample sound clock cycles. Its event
// runs in the sound clock domain, so the deadline survives master clock
// changes.
type SCSP struct {
	scheduler   *timing.Scheduler
	sampleEvent timing.EventID
	interrupts  Interrupts
	logger      zerolog.Logger

	samples        uint64
	soundCPUOn     bool
	soundCPUCycles uint64

	timerAEnabled bool
	timerAStart   uint8
	timerACounter uint8
}

// New creates an SCSP and registers its sample event.
func New(
	scheduler *timing.Scheduler,
	interrupts Interrupts,
	logger zerolog.Logger,
) *SCSP {
	s := &SCSP{
		scheduler:  scheduler,
		interrupts: interrupts,
		logger:     logger.With().Str("component", "SCSP").Logger(),
	}

	s.sampleEvent = scheduler.RegisterEvent(hw.EventSCSPSample,
		timing.HandlerFunc(s.onSample))

	s.Reset(true)

	return s
}

// Reset stops the sound CPU and restarts the sample clock.
func (s *SCSP) Reset(hard bool) {
	s.soundCPUOn = false
	s.timerAEnabled = false
	s.timerAStart = 0
	s.timerACounter = 0

	if hard {
		s.samples = 0
		s.soundCPUCycles = 0
	}

	s.scheduler.ScheduleFromNow(s.sampleEvent, CyclesPerSample)
}

// OnClockSpeedChange moves the sample event to the new sound clock ratio.
func (s *SCSP) OnClockSpeedChange(ratio timing.RationalClock) {
	s.scheduler.SetClockRatio(s.sampleEvent, ratio.Num, ratio.Den)
}

// SetSoundCPUEnabled starts or stops the sound CPU.
func (s *SCSP) SetSoundCPUEnabled(enabled bool) {
	if enabled == s.soundCPUOn {
		return
	}

	s.soundCPUOn = enabled
	s.logger.Debug().Bool("enabled", enabled).Msg("sound CPU")
}

// SoundCPUEnabled tells whether the sound CPU runs.
func (s *SCSP) SoundCPUEnabled() bool {
	return s.soundCPUOn
}

// SoundCPUCycles returns the cycles the sound CPU has run.
func (s *SCSP) SoundCPUCycles() uint64 {
	return s.soundCPUCycles
}

// Samples returns the number of samples produced.
func (s *SCSP) Samples() uint64 {
	return s.samples
}

// ConfigureTimerA sets timer A, which counts samples up from start and
// raises a sound request when it wraps.
func (s *SCSP) ConfigureTimerA(enabled bool, start uint8) {
	s.timerAEnabled = enabled
	s.timerAStart = start
	s.timerACounter = start
}

func (s *SCSP) onSample(ctx *timing.EventContext) {
	s.samples++

	if s.soundCPUOn {
		s.soundCPUCycles += SoundCPUCyclesPerSample
	}

	if s.timerAEnabled {
		s.timerACounter++
		if s.timerACounter == 0 {
			s.timerACounter = s.timerAStart
			s.interrupts.TriggerSoundRequest()
		}
	}

	ctx.Reschedule(CyclesPerSample)
}
