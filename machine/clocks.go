package machine

import (
	"fmt"

	"github.com/lockstep-sim/saturn/hw"
	"github.com/lockstep-sim/saturn/hw/scsp"
	"github.com/lockstep-sim/saturn/hw/smpc"
	"github.com/lockstep-sim/saturn/sim/timing"
)

// ClockSpeed selects the master clock frequency.
type ClockSpeed = hw.ClockSpeed

// VideoStandard selects the television standard.
type VideoStandard = hw.VideoStandard

// CDBlockFrequency is the clock of the CD block CPU.
const CDBlockFrequency = 20 * timing.MHz

var masterClocks = map[hw.VideoStandard]map[hw.ClockSpeed]timing.FreqInHz{
	hw.NTSC: {
		hw.ClockSpeed320: 26874100 * timing.Hz,
		hw.ClockSpeed352: 28636360 * timing.Hz,
	},
	hw.PAL: {
		hw.ClockSpeed320: 26687500 * timing.Hz,
		hw.ClockSpeed352: 28437500 * timing.Hz,
	},
}

// ClockRatios relates every independently clocked unit to the master clock,
// which is the base clock of the scheduler.
type ClockRatios struct {
	MasterClock timing.FreqInHz
	SCSP        timing.RationalClock
	CDBlock     timing.RationalClock
	SMPC        timing.RationalClock
}

// ComputeClockRatios returns the ratios for a clock speed and video
// standard.
func ComputeClockRatios(speed ClockSpeed, standard VideoStandard) ClockRatios {
	master, ok := masterClocks[standard][speed]
	if !ok {
		panic(fmt.Sprintf("machine: no master clock for %s %s", standard, speed))
	}

	return ClockRatios{
		MasterClock: master,
		SCSP:        timing.RatioOf(scsp.Frequency, master),
		CDBlock:     timing.RatioOf(CDBlockFrequency, master),
		SMPC:        timing.RatioOf(smpc.Frequency, master),
	}
}

// A ClockSpeedChangeFunc is notified whenever the clock ratios change.
type ClockSpeedChangeFunc func(ratios ClockRatios)
