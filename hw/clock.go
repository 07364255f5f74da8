package hw

import (
	"fmt"
	"strings"
)

// ClockSpeed is the horizontal resolution mode, which also selects the
// master clock frequency.
type ClockSpeed uint8

// Clock speeds.
const (
	ClockSpeed320 ClockSpeed = iota
	ClockSpeed352
)

func (c ClockSpeed) String() string {
	switch c {
	case ClockSpeed320:
		return "320"
	case ClockSpeed352:
		return "352"
	default:
		return fmt.Sprintf("ClockSpeed(%d)", uint8(c))
	}
}

// ParseClockSpeed parses "320" or "352".
func ParseClockSpeed(s string) (ClockSpeed, error) {
	switch strings.TrimSpace(s) {
	case "320":
		return ClockSpeed320, nil
	case "352":
		return ClockSpeed352, nil
	default:
		return 0, fmt.Errorf("hw: unknown clock speed %q", s)
	}
}

// VideoStandard is the television standard the machine outputs.
type VideoStandard uint8

// Video standards.
const (
	NTSC VideoStandard = iota
	PAL
)

func (v VideoStandard) String() string {
	switch v {
	case NTSC:
		return "NTSC"
	case PAL:
		return "PAL"
	default:
		return fmt.Sprintf("VideoStandard(%d)", uint8(v))
	}
}

// ParseVideoStandard parses "ntsc" or "pal", ignoring case.
func ParseVideoStandard(s string) (VideoStandard, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "ntsc":
		return NTSC, nil
	case "pal":
		return PAL, nil
	default:
		return 0, fmt.Errorf("hw: unknown video standard %q", s)
	}
}
