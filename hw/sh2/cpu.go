// Package sh2 models the cycle consumption of an SH-2 class CPU.
//
// Instruction semantics are not modeled. A CPU retires one instruction per
// fixed number of cycles, takes external interrupts above its mask level and
// stops on instruction-count breakpoints when debug tracing is enabled. That
// is enough for the run loop to interleave several CPUs against the scheduler
// with the same bookkeeping a full core would need.
package sh2

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog"
)

// MaxLevel is the highest interrupt level.
const MaxLevel = 15

// ErrInvalidLevel is returned when a state carries an interrupt level or
// mask outside 0..MaxLevel.
var ErrInvalidLevel = errors.New("sh2: invalid interrupt level")

// A BreakRaiser receives debug break requests.
type BreakRaiser interface {
	Raise(reason string)
}

// InterruptAckFunc is called when the CPU accepts an external interrupt.
type InterruptAckFunc func(vector uint8)

// CPU is the cycle model of one processor.
type CPU struct {
	name string

	instrCycles     uint64
	interruptCycles uint64

	instructions uint64
	cycles       uint64
	interrupts   uint64

	mask      uint8
	extLevel  uint8
	extVector uint8
	onAck     InterruptAckFunc

	debugTracing bool
	breakpoints  map[uint64]struct{}
	breaker      BreakRaiser

	logger zerolog.Logger
}

// Name returns the name of the CPU.
func (c *CPU) Name() string {
	return c.name
}

// Advance runs instructions from current until the cycle count reaches
// target and returns the count actually reached, which may overshoot by part
// of an instruction. With debug tracing enabled a breakpoint stops it early.
func (c *CPU) Advance(target, current uint64) uint64 {
	for current < target {
		current += c.execute()

		if c.debugTracing && c.hitBreakpoint() {
			break
		}
	}

	return current
}

// Step runs a single instruction and returns the cycles it took.
func (c *CPU) Step() uint64 {
	cycles := c.execute()

	if c.debugTracing {
		c.hitBreakpoint()
	}

	return cycles
}

func (c *CPU) execute() uint64 {
	var cycles uint64

	if c.extLevel > c.mask {
		cycles += c.acceptInterrupt()
	}

	cycles += c.instrCycles
	c.instructions++
	c.cycles += cycles

	return cycles
}

func (c *CPU) acceptInterrupt() uint64 {
	vector := c.extVector
	c.interrupts++

	// Handlers are not modeled, so the mask stays put. The source is expected
	// to drop the line once acknowledged.
	if c.onAck != nil {
		c.onAck(vector)
	}

	return c.interruptCycles
}

func (c *CPU) hitBreakpoint() bool {
	if _, ok := c.breakpoints[c.instructions]; !ok {
		return false
	}

	reason := fmt.Sprintf("%s breakpoint at instruction %d",
		c.name, c.instructions)
	c.logger.Info().
		Uint64("instruction", c.instructions).
		Msg("breakpoint hit")

	if c.breaker != nil {
		c.breaker.Raise(reason)
	}

	return true
}

// SetExternalInterrupt drives the external interrupt line. Level 0 means no
// interrupt is requested.
func (c *CPU) SetExternalInterrupt(level, vector uint8) {
	if level > MaxLevel {
		panic(fmt.Sprintf("sh2: interrupt level %d out of range", level))
	}

	c.extLevel = level
	c.extVector = vector
}

// ExternalInterrupt returns the current level and vector of the external
// interrupt line.
func (c *CPU) ExternalInterrupt() (level, vector uint8) {
	return c.extLevel, c.extVector
}

// SetInterruptAckHandler sets the function called when an external interrupt
// is accepted.
func (c *CPU) SetInterruptAckHandler(f InterruptAckFunc) {
	c.onAck = f
}

// SetInterruptMask sets the level at or below which interrupts are ignored.
func (c *CPU) SetInterruptMask(mask uint8) {
	if mask > MaxLevel {
		panic(fmt.Sprintf("sh2: interrupt mask %d out of range", mask))
	}

	c.mask = mask
}

// InterruptMask returns the interrupt mask level.
func (c *CPU) InterruptMask() uint8 {
	return c.mask
}

// SetDebugTracing turns breakpoint checks on or off.
func (c *CPU) SetDebugTracing(enabled bool) {
	c.debugTracing = enabled
}

// AddBreakpoint stops the CPU after it retires the given number of
// instructions.
func (c *CPU) AddBreakpoint(instruction uint64) {
	c.breakpoints[instruction] = struct{}{}
}

// RemoveBreakpoint removes a breakpoint.
func (c *CPU) RemoveBreakpoint(instruction uint64) {
	delete(c.breakpoints, instruction)
}

// ClearBreakpoints removes all breakpoints.
func (c *CPU) ClearBreakpoints() {
	clear(c.breakpoints)
}

// Instructions returns the number of retired instructions.
func (c *CPU) Instructions() uint64 {
	return c.instructions
}

// Cycles returns the number of cycles consumed.
func (c *CPU) Cycles() uint64 {
	return c.cycles
}

// InterruptsTaken returns the number of external interrupts accepted.
func (c *CPU) InterruptsTaken() uint64 {
	return c.interrupts
}

// Reset puts the CPU in its power-on state. A hard reset also clears the
// statistics.
func (c *CPU) Reset(hard bool) {
	c.mask = MaxLevel
	c.extLevel = 0
	c.extVector = 0

	if hard {
		c.instructions = 0
		c.cycles = 0
		c.interrupts = 0
	}
}
