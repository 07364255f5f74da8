// Package vdp models the display timing of the video unit. Pixels are not
// rendered; only the horizontal and vertical phases advance, raising the
// blanking signals the rest of the machine synchronizes to.
package vdp

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/lockstep-sim/saturn/hw"
	"github.com/lockstep-sim/saturn/sim/timing"
)

// HorizontalPhase is the position within a line.
type HorizontalPhase uint8

// Horizontal phases.
const (
	HActive HorizontalPhase = iota
	HBlank
)

// VerticalPhase is the position within a frame.
type VerticalPhase uint8

// Vertical phases.
const (
	VActive VerticalPhase = iota
	VBlank
	VLastLine
)

// ErrInvalidPhase is returned when a state carries an unknown phase or a line
// outside the frame.
var ErrInvalidPhase = errors.New("vdp: invalid display phase")

// Signals receives the blanking signals.
type Signals interface {
	TriggerHBlankIn()
	TriggerVBlankIn()
	TriggerVBlankOut()
}

type lineTiming struct {
	active uint64
	hblank uint64
}

var lineTimings = map[hw.ClockSpeed]lineTiming{
	hw.ClockSpeed320: {active: 1280, hblank: 428},
	hw.ClockSpeed352: {active: 1408, hblank: 412},
}

type frameTiming struct {
	activeLines uint16
	totalLines  uint16
}

func (f frameTiming) phaseOf(line uint16) VerticalPhase {
	switch {
	case line < f.activeLines:
		return VActive
	case line == f.totalLines-1:
		return VLastLine
	default:
		return VBlank
	}
}

var frameTimings = map[hw.VideoStandard]frameTiming{
	hw.NTSC: {activeLines: 224, totalLines: 263},
	hw.PAL:  {activeLines: 240, totalLines: 313},
}

// VDP drives the display phases from a single scheduler event.
type VDP struct {
	scheduler  *timing.Scheduler
	phaseEvent timing.EventID
	signals    Signals
	logger     zerolog.Logger

	clockSpeed hw.ClockSpeed
	standard   hw.VideoStandard
	line       lineTiming
	frame      frameTiming

	hphase     HorizontalPhase
	vphase     VerticalPhase
	lineNum    uint16
	frameCount uint64
	cycles     uint64
}

// New creates a VDP and registers its phase event.
func New(
	scheduler *timing.Scheduler,
	signals Signals,
	logger zerolog.Logger,
) *VDP {
	v := &VDP{
		scheduler:  scheduler,
		signals:    signals,
		logger:     logger.With().Str("component", "VDP").Logger(),
		clockSpeed: hw.ClockSpeed320,
		standard:   hw.NTSC,
	}

	v.phaseEvent = scheduler.RegisterEvent(hw.EventVDPPhase,
		timing.HandlerFunc(v.onPhase))

	v.Reset(true)

	return v
}

// Reset starts a new frame at the first active line.
func (v *VDP) Reset(hard bool) {
	v.updateTiming()

	v.hphase = HActive
	v.vphase = VActive
	v.lineNum = 0

	if hard {
		v.frameCount = 0
		v.cycles = 0
	}

	v.scheduler.ScheduleFromNow(v.phaseEvent, v.line.active)
}

// Advance catches the renderer up. Rendering is not modeled, so only the
// elapsed cycles are kept.
func (v *VDP) Advance(cycles uint64) {
	v.cycles += cycles
}

// Cycles returns the number of cycles the VDP has been advanced by.
func (v *VDP) Cycles() uint64 {
	return v.cycles
}

// InLastLinePhase tells whether the beam is on the last line of the frame.
func (v *VDP) InLastLinePhase() bool {
	return v.vphase == VLastLine
}

// HorizontalPhase returns the position within the current line.
func (v *VDP) HorizontalPhase() HorizontalPhase {
	return v.hphase
}

// VerticalPhase returns the position within the current frame.
func (v *VDP) VerticalPhase() VerticalPhase {
	return v.vphase
}

// Line returns the current line number.
func (v *VDP) Line() uint16 {
	return v.lineNum
}

// FrameCount returns the number of completed frames.
func (v *VDP) FrameCount() uint64 {
	return v.frameCount
}

// CyclesPerLine returns the length of a line in base cycles.
func (v *VDP) CyclesPerLine() uint64 {
	return v.line.active + v.line.hblank
}

// LinesPerFrame returns the number of lines in a frame.
func (v *VDP) LinesPerFrame() uint16 {
	return v.frame.totalLines
}

// SetClockSpeed changes the line length. The phase in progress keeps its
// deadline; the new length applies from the next phase.
func (v *VDP) SetClockSpeed(c hw.ClockSpeed) {
	v.clockSpeed = c
	v.updateTiming()
}

// SetVideoStandard changes the number of lines per frame. A line beyond the
// new frame becomes its last line, and the vertical phase follows the line
// under the new frame layout.
func (v *VDP) SetVideoStandard(s hw.VideoStandard) {
	v.standard = s
	v.updateTiming()

	if v.lineNum >= v.frame.totalLines {
		v.lineNum = v.frame.totalLines - 1
	}

	v.vphase = v.frame.phaseOf(v.lineNum)
}

func (v *VDP) updateTiming() {
	lt, ok := lineTimings[v.clockSpeed]
	if !ok {
		panic(fmt.Sprintf("vdp: unsupported clock speed %s", v.clockSpeed))
	}

	ft, ok := frameTimings[v.standard]
	if !ok {
		panic(fmt.Sprintf("vdp: unsupported video standard %s", v.standard))
	}

	v.line = lt
	v.frame = ft

	v.logger.Debug().
		Stringer("clock_speed", v.clockSpeed).
		Stringer("standard", v.standard).
		Uint64("cycles_per_line", v.CyclesPerLine()).
		Uint16("lines", v.frame.totalLines).
		Msg("display timing updated")
}

func (v *VDP) onPhase(ctx *timing.EventContext) {
	switch v.hphase {
	case HActive:
		v.hphase = HBlank
		v.signals.TriggerHBlankIn()
		ctx.Reschedule(v.line.hblank)
	case HBlank:
		v.hphase = HActive
		v.beginLine(v.lineNum + 1)
		ctx.Reschedule(v.line.active)
	}
}

func (v *VDP) beginLine(n uint16) {
	if n >= v.frame.totalLines {
		n = 0
	}

	v.lineNum = n

	switch n {
	case 0:
		v.vphase = VActive
		v.frameCount++
		v.signals.TriggerVBlankOut()
	case v.frame.activeLines:
		v.vphase = VBlank
		v.signals.TriggerVBlankIn()
	case v.frame.totalLines - 1:
		v.vphase = VLastLine
	}
}
