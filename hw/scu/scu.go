// Package scu models the interrupt and timer side of the system control
// unit.
package scu

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/lockstep-sim/saturn/hw"
	"github.com/lockstep-sim/saturn/sim/timing"
)

// Interrupt identifies an interrupt source. Its value is the bit position in
// the status and mask registers.
type Interrupt uint8

// Interrupt sources, in status register order.
const (
	VBlankIn Interrupt = iota
	VBlankOut
	HBlankIn
	Timer0
	Timer1
	DSPEnd
	SoundRequest
	SystemManager
	Pad
	Level2DMAEnd
	Level1DMAEnd
	Level0DMAEnd
	DMAIllegal
	SpriteDrawEnd

	numInterrupts
)

// AllMasked is the mask register value after reset.
const AllMasked uint32 = 0xBFFF

type source struct {
	name   string
	level  uint8
	vector uint8
}

var sources = [numInterrupts]source{
	VBlankIn:      {"VBlank-IN", 0xF, 0x40},
	VBlankOut:     {"VBlank-OUT", 0xE, 0x41},
	HBlankIn:      {"HBlank-IN", 0xD, 0x42},
	Timer0:        {"Timer 0", 0xC, 0x43},
	Timer1:        {"Timer 1", 0xB, 0x44},
	DSPEnd:        {"DSP End", 0xA, 0x45},
	SoundRequest:  {"Sound Request", 0x9, 0x46},
	SystemManager: {"System Manager", 0x8, 0x47},
	Pad:           {"PAD Interrupt", 0x8, 0x48},
	Level2DMAEnd:  {"Level 2 DMA End", 0x6, 0x49},
	Level1DMAEnd:  {"Level 1 DMA End", 0x6, 0x4A},
	Level0DMAEnd:  {"Level 0 DMA End", 0x5, 0x4B},
	DMAIllegal:    {"DMA Illegal", 0x3, 0x4C},
	SpriteDrawEnd: {"Sprite Draw End", 0x2, 0x4D},
}

func (i Interrupt) String() string {
	if i >= numInterrupts {
		return fmt.Sprintf("Interrupt(%d)", uint8(i))
	}

	return sources[i].name
}

// Level returns the CPU interrupt level of the source.
func (i Interrupt) Level() uint8 {
	return sources[i].level
}

// Vector returns the interrupt vector of the source.
func (i Interrupt) Vector() uint8 {
	return sources[i].vector
}

// ErrInvalidTimer is returned when a state carries timer settings the SCU
// does not support.
var ErrInvalidTimer = errors.New("scu: invalid timer state")

// An InterruptLine is the external interrupt input of the primary CPU.
type InterruptLine interface {
	SetExternalInterrupt(level, vector uint8)
}

// Timer1Mode selects when timer 1 starts counting.
type Timer1Mode uint8

// Timer 1 modes.
const (
	Timer1EveryLine Timer1Mode = iota
	Timer1OnTimer0Match
)

// SCU routes interrupts to the primary CPU and runs the two line timers.
type SCU struct {
	scheduler   *timing.Scheduler
	timer1Event timing.EventID
	cpu         InterruptLine
	logger      zerolog.Logger

	status uint32
	mask   uint32

	timersEnabled bool
	timer0Counter uint16
	timer0Compare uint16
	timer1Reload  uint16
	timer1Mode    Timer1Mode

	cycles uint64
}

// New creates an SCU and registers its timer event.
func New(
	scheduler *timing.Scheduler,
	cpu InterruptLine,
	logger zerolog.Logger,
) *SCU {
	s := &SCU{
		scheduler: scheduler,
		cpu:       cpu,
		logger:    logger.With().Str("component", "SCU").Logger(),
	}

	s.timer1Event = scheduler.RegisterEvent(hw.EventSCUTimer1,
		timing.HandlerFunc(s.onTimer1))

	s.Reset(true)

	return s
}

// Reset restores the power-on register values. Soft and hard resets behave
// the same on the interrupt side.
func (s *SCU) Reset(hard bool) {
	s.status = 0
	s.mask = AllMasked
	s.timersEnabled = false
	s.timer0Counter = 0
	s.timer0Compare = 0
	s.timer1Reload = 0
	s.timer1Mode = Timer1EveryLine

	if hard {
		s.cycles = 0
	}

	s.scheduler.Cancel(s.timer1Event)
	s.updateInterruptLevel()
}

// Advance catches the SCU up with the primary CPU. DMA transfers and the DSP
// are not modeled, so only the elapsed cycles are kept.
func (s *SCU) Advance(cycles uint64) {
	s.cycles += cycles
}

// Cycles returns the number of cycles the SCU has been advanced by.
func (s *SCU) Cycles() uint64 {
	return s.cycles
}

// Raise sets the status bit of an interrupt source.
func (s *SCU) Raise(i Interrupt) {
	if i >= numInterrupts {
		panic(fmt.Sprintf("scu: unknown interrupt %d", i))
	}

	s.status |= 1 << i
	s.updateInterruptLevel()
}

// Acknowledge is called by the CPU when it accepts the interrupt with the
// given vector. The matching status bit is cleared.
func (s *SCU) Acknowledge(vector uint8) {
	for i := Interrupt(0); i < numInterrupts; i++ {
		if sources[i].vector == vector {
			s.status &^= 1 << i
			break
		}
	}

	s.updateInterruptLevel()
}

// SetMask writes the interrupt mask register. A set bit masks the source.
func (s *SCU) SetMask(mask uint32) {
	s.mask = mask & AllMasked
	s.updateInterruptLevel()
}

// Mask returns the interrupt mask register.
func (s *SCU) Mask() uint32 {
	return s.mask
}

// Status returns the interrupt status register.
func (s *SCU) Status() uint32 {
	return s.status
}

// Pending returns the highest priority unmasked interrupt.
func (s *SCU) Pending() (Interrupt, bool) {
	pending := s.status &^ s.mask

	best := numInterrupts
	for i := Interrupt(0); i < numInterrupts; i++ {
		if pending&(1<<i) == 0 {
			continue
		}

		if best == numInterrupts || sources[i].level > sources[best].level {
			best = i
		}
	}

	return best, best != numInterrupts
}

func (s *SCU) updateInterruptLevel() {
	if i, ok := s.Pending(); ok {
		s.cpu.SetExternalInterrupt(i.Level(), i.Vector())
		return
	}

	s.cpu.SetExternalInterrupt(0, 0)
}

// TriggerVBlankIn signals the start of the vertical blanking period.
func (s *SCU) TriggerVBlankIn() {
	s.Raise(VBlankIn)
}

// TriggerVBlankOut signals the end of the vertical blanking period. Timer 0
// restarts its line count here.
func (s *SCU) TriggerVBlankOut() {
	s.timer0Counter = 0
	s.Raise(VBlankOut)
}

// TriggerHBlankIn signals the start of a horizontal blanking period and
// drives the line timers.
func (s *SCU) TriggerHBlankIn() {
	s.Raise(HBlankIn)

	if !s.timersEnabled {
		return
	}

	s.timer0Counter++
	matched := s.timer0Counter == s.timer0Compare
	if matched {
		s.Raise(Timer0)
	}

	if s.timer1Mode == Timer1EveryLine || matched {
		s.scheduler.ScheduleFromNow(s.timer1Event, uint64(s.timer1Reload))
	}
}

// TriggerSoundRequest signals a request from the sound CPU.
func (s *SCU) TriggerSoundRequest() {
	s.Raise(SoundRequest)
}

// TriggerSystemManager signals a system manager interrupt.
func (s *SCU) TriggerSystemManager() {
	s.Raise(SystemManager)
}

// ConfigureTimers sets the timer registers.
func (s *SCU) ConfigureTimers(
	enabled bool,
	timer0Compare, timer1Reload uint16,
	mode Timer1Mode,
) {
	s.timersEnabled = enabled
	s.timer0Compare = timer0Compare
	s.timer1Reload = timer1Reload & 0x1FF
	s.timer1Mode = mode

	if !enabled {
		s.scheduler.Cancel(s.timer1Event)
	}

	s.logger.Debug().
		Bool("enabled", enabled).
		Uint16("timer0_compare", timer0Compare).
		Uint16("timer1_reload", s.timer1Reload).
		Msg("timers configured")
}

// Timer0Counter returns the number of lines counted by timer 0.
func (s *SCU) Timer0Counter() uint16 {
	return s.timer0Counter
}

func (s *SCU) onTimer1(*timing.EventContext) {
	s.Raise(Timer1)
}
