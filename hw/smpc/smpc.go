// Package smpc models the command timing of the system manager and the
// machine-wide operations its commands perform.
package smpc

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/lockstep-sim/saturn/hw"
	"github.com/lockstep-sim/saturn/sim/timing"
)

// Frequency is the system manager clock.
const Frequency = 4 * timing.MHz

// Command is a system manager command code.
type Command uint8

// Supported commands.
const (
	SSHON    Command = 0x02
	SSHOFF   Command = 0x03
	SNDON    Command = 0x06
	SNDOFF   Command = 0x07
	SYSRES   Command = 0x0D
	CKCHG352 Command = 0x0E
	CKCHG320 Command = 0x0F
)

type commandInfo struct {
	name   string
	cycles uint64
}

var commands = map[Command]commandInfo{
	SSHON:    {"SSHON", 120},
	SSHOFF:   {"SSHOFF", 120},
	SNDON:    {"SNDON", 120},
	SNDOFF:   {"SNDOFF", 120},
	SYSRES:   {"SYSRES", 400},
	CKCHG352: {"CKCHG352", 400},
	CKCHG320: {"CKCHG320", 400},
}

func (c Command) String() string {
	if info, ok := commands[c]; ok {
		return info.name
	}

	return fmt.Sprintf("Command(0x%02X)", uint8(c))
}

// ParseCommand looks a command up by name.
func ParseCommand(name string) (Command, error) {
	for c, info := range commands {
		if info.name == name {
			return c, nil
		}
	}

	return 0, fmt.Errorf("%w: %q", ErrUnknownCommand, name)
}

var (
	// ErrBusy is returned when a command is issued while another one is in
	// progress.
	ErrBusy = errors.New("smpc: command in progress")

	// ErrUnknownCommand is returned for unsupported command codes.
	ErrUnknownCommand = errors.New("smpc: unknown command")
)

// Operations are the machine-wide actions commands perform.
type Operations interface {
	EnableAndResetSecondaryCPU()
	DisableSecondaryCPU()
	EnableAndResetSoundCPU()
	DisableSoundCPU()
	SoftResetSystem()
	ClockChangeSoftReset()
	ClockSpeed() hw.ClockSpeed
	SetClockSpeed(speed hw.ClockSpeed)
}

// SMPC executes one command at a time. A command completes a fixed number of
// system manager cycles after it is issued.
type SMPC struct {
	scheduler    *timing.Scheduler
	commandEvent timing.EventID
	ops          Operations
	logger       zerolog.Logger

	busy     bool
	pending  Command
	executed uint64
}

// New creates an SMPC and registers its command event.
func New(
	scheduler *timing.Scheduler,
	ops Operations,
	logger zerolog.Logger,
) *SMPC {
	s := &SMPC{
		scheduler: scheduler,
		ops:       ops,
		logger:    logger.With().Str("component", "SMPC").Logger(),
	}

	s.commandEvent = scheduler.RegisterEvent(hw.EventSMPCCommand,
		timing.HandlerFunc(s.onCommand))

	s.Reset(true)

	return s
}

// Reset drops any command in progress.
func (s *SMPC) Reset(hard bool) {
	s.busy = false
	s.pending = 0

	if hard {
		s.executed = 0
	}

	s.scheduler.Cancel(s.commandEvent)
}

// OnClockSpeedChange moves the command event to the new clock ratio.
func (s *SMPC) OnClockSpeedChange(ratio timing.RationalClock) {
	s.scheduler.SetClockRatio(s.commandEvent, ratio.Num, ratio.Den)
}

// Issue starts a command.
func (s *SMPC) Issue(c Command) error {
	info, ok := commands[c]
	if !ok {
		return fmt.Errorf("%w: 0x%02X", ErrUnknownCommand, uint8(c))
	}

	if s.busy {
		return fmt.Errorf("%w: %s", ErrBusy, s.pending)
	}

	s.busy = true
	s.pending = c
	s.scheduler.ScheduleFromNow(s.commandEvent, info.cycles)

	s.logger.Debug().Stringer("command", c).Msg("command issued")

	return nil
}

// Busy tells whether a command is in progress.
func (s *SMPC) Busy() bool {
	return s.busy
}

// Executed returns the number of completed commands.
func (s *SMPC) Executed() uint64 {
	return s.executed
}

func (s *SMPC) onCommand(*timing.EventContext) {
	c := s.pending
	s.busy = false
	s.pending = 0
	s.executed++

	switch c {
	case SSHON:
		s.ops.EnableAndResetSecondaryCPU()
	case SSHOFF:
		s.ops.DisableSecondaryCPU()
	case SNDON:
		s.ops.EnableAndResetSoundCPU()
	case SNDOFF:
		s.ops.DisableSoundCPU()
	case SYSRES:
		s.ops.SoftResetSystem()
	case CKCHG352:
		s.changeClock(hw.ClockSpeed352)
	case CKCHG320:
		s.changeClock(hw.ClockSpeed320)
	}

	s.logger.Debug().Stringer("command", c).Msg("command completed")
}

// changeClock switches the master clock. The secondary CPU stops and the
// video, sound and system control units are soft reset.
func (s *SMPC) changeClock(speed hw.ClockSpeed) {
	s.ops.DisableSecondaryCPU()
	s.ops.SetClockSpeed(speed)
	s.ops.ClockChangeSoftReset()
}
