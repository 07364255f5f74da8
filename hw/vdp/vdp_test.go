package vdp

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/rs/zerolog"

	"github.com/lockstep-sim/saturn/hw"
	"github.com/lockstep-sim/saturn/sim/timing"
)

type signalCounter struct {
	hblankIn, vblankIn, vblankOut int
}

func (c *signalCounter) TriggerHBlankIn()  { c.hblankIn++ }
func (c *signalCounter) TriggerVBlankIn()  { c.vblankIn++ }
func (c *signalCounter) TriggerVBlankOut() { c.vblankOut++ }

var _ = Describe("VDP", func() {
	var (
		scheduler *timing.Scheduler
		signals   *signalCounter
		vdp       *VDP
	)

	BeforeEach(func() {
		scheduler = timing.NewScheduler()
		signals = &signalCounter{}
		vdp = New(scheduler, signals, zerolog.Nop())
	})

	It("should start at the first active line", func() {
		Expect(vdp.Line()).To(BeZero())
		Expect(vdp.HorizontalPhase()).To(Equal(HActive))
		Expect(vdp.VerticalPhase()).To(Equal(VActive))
		Expect(vdp.CyclesPerLine()).To(Equal(uint64(1708)))
		Expect(vdp.LinesPerFrame()).To(Equal(uint16(263)))
		Expect(scheduler.RemainingCount()).To(Equal(int64(1280)))
	})

	It("should alternate active and blanking periods", func() {
		scheduler.Advance(1280)
		Expect(vdp.HorizontalPhase()).To(Equal(HBlank))
		Expect(signals.hblankIn).To(Equal(1))

		scheduler.Advance(428)
		Expect(vdp.HorizontalPhase()).To(Equal(HActive))
		Expect(vdp.Line()).To(Equal(uint16(1)))
	})

	It("should enter the last line phase at the end of the frame", func() {
		scheduler.Advance(262*1708 - 1)
		Expect(vdp.InLastLinePhase()).To(BeFalse())
		Expect(vdp.VerticalPhase()).To(Equal(VBlank))

		scheduler.Advance(1)
		Expect(vdp.InLastLinePhase()).To(BeTrue())
		Expect(vdp.Line()).To(Equal(uint16(262)))
	})

	It("should count frames and raise vertical signals", func() {
		scheduler.Advance(263 * 1708)

		Expect(vdp.FrameCount()).To(Equal(uint64(1)))
		Expect(vdp.Line()).To(BeZero())
		Expect(vdp.InLastLinePhase()).To(BeFalse())
		Expect(signals.hblankIn).To(Equal(263))
		Expect(signals.vblankIn).To(Equal(1))
		Expect(signals.vblankOut).To(Equal(1))
	})

	It("should use the longer line at 352 after the current phase", func() {
		vdp.SetClockSpeed(hw.ClockSpeed352)

		scheduler.Advance(1280)
		Expect(scheduler.RemainingCount()).To(Equal(int64(412)))

		scheduler.Advance(412)
		Expect(scheduler.RemainingCount()).To(Equal(int64(1408)))
		Expect(vdp.CyclesPerLine()).To(Equal(uint64(1820)))
	})

	It("should use PAL frame lengths", func() {
		vdp.SetVideoStandard(hw.PAL)

		scheduler.Advance(312 * 1708)
		Expect(vdp.InLastLinePhase()).To(BeTrue())

		scheduler.Advance(1708)
		Expect(vdp.FrameCount()).To(Equal(uint64(1)))
	})

	It("should clamp to the last line when the frame gets shorter", func() {
		vdp.SetVideoStandard(hw.PAL)
		scheduler.Advance(300 * 1708)

		vdp.SetVideoStandard(hw.NTSC)

		Expect(vdp.Line()).To(Equal(uint16(262)))
		Expect(vdp.InLastLinePhase()).To(BeTrue())
	})

	It("should leave the last line phase when the frame gets longer", func() {
		scheduler.Advance(262 * 1708)
		Expect(vdp.InLastLinePhase()).To(BeTrue())

		vdp.SetVideoStandard(hw.PAL)

		Expect(vdp.Line()).To(Equal(uint16(262)))
		Expect(vdp.InLastLinePhase()).To(BeFalse())
		Expect(vdp.VerticalPhase()).To(Equal(VBlank))

		scheduler.Advance(49 * 1708)
		Expect(vdp.Line()).To(Equal(uint16(311)))
		Expect(vdp.InLastLinePhase()).To(BeFalse())

		scheduler.Advance(1708)
		Expect(vdp.Line()).To(Equal(uint16(312)))
		Expect(vdp.InLastLinePhase()).To(BeTrue())

		scheduler.Advance(1708)
		Expect(vdp.Line()).To(BeZero())
		Expect(vdp.FrameCount()).To(Equal(uint64(1)))
	})

	It("should enter blanking when an active line falls past the new area", func() {
		vdp.SetVideoStandard(hw.PAL)
		scheduler.Advance(230 * 1708)
		Expect(vdp.VerticalPhase()).To(Equal(VActive))

		vdp.SetVideoStandard(hw.NTSC)

		Expect(vdp.Line()).To(Equal(uint16(230)))
		Expect(vdp.VerticalPhase()).To(Equal(VBlank))
		Expect(vdp.InLastLinePhase()).To(BeFalse())

		scheduler.Advance(32 * 1708)
		Expect(vdp.InLastLinePhase()).To(BeTrue())
	})

	It("should accumulate catch-up cycles", func() {
		vdp.Advance(10)
		vdp.Advance(5)

		Expect(vdp.Cycles()).To(Equal(uint64(15)))
	})

	Context("state", func() {
		It("should round trip", func() {
			vdp.SetClockSpeed(hw.ClockSpeed352)
			scheduler.Advance(100000)

			var state State
			vdp.SaveState(&state)

			other := New(timing.NewScheduler(), &signalCounter{}, zerolog.Nop())
			Expect(other.ValidateState(&state)).To(Succeed())
			other.LoadState(&state)

			var again State
			other.SaveState(&again)
			Expect(again).To(Equal(state))
			Expect(other.CyclesPerLine()).To(Equal(uint64(1820)))
		})

		It("should reject lines outside the frame", func() {
			state := State{Standard: hw.NTSC, Line: 263}

			Expect(vdp.ValidateState(&state)).To(MatchError(ErrInvalidPhase))
		})

		It("should reject unknown modes", func() {
			Expect(vdp.ValidateState(&State{ClockSpeed: 9})).
				To(MatchError(ErrInvalidPhase))
			Expect(vdp.ValidateState(&State{VPhase: 9})).
				To(MatchError(ErrInvalidPhase))
		})
	})
})
