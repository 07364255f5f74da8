package machine

import (
	"fmt"
	"math/rand"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/mock/gomock"

	"github.com/lockstep-sim/saturn/sim/timing"
)

type fakeCPU struct {
	cost         uint64
	cycles       uint64
	instructions uint64
	breakEvery   uint64
	breaks       *DebugBreakManager
}

func (c *fakeCPU) Advance(target, current uint64) uint64 {
	for current < target {
		current += c.execute()

		if c.hitBreak() {
			break
		}
	}

	return current
}

func (c *fakeCPU) Step() uint64 {
	n := c.execute()
	c.hitBreak()

	return n
}

func (c *fakeCPU) execute() uint64 {
	c.instructions++
	c.cycles += c.cost

	return c.cost
}

func (c *fakeCPU) hitBreak() bool {
	if c.breakEvery == 0 || c.instructions%c.breakEvery != 0 {
		return false
	}

	c.breaks.Raise(fmt.Sprintf("instruction %d", c.instructions))

	return true
}

type fakeController struct {
	cycles uint64
}

func (c *fakeController) Advance(cycles uint64) {
	c.cycles += cycles
}

type fakeVideo struct {
	cycles   uint64
	lastLine func() bool
}

func (v *fakeVideo) Advance(cycles uint64) {
	v.cycles += cycles
}

func (v *fakeVideo) InLastLinePhase() bool {
	return v.lastLine != nil && v.lastLine()
}

var _ = Describe("Interleaver", func() {
	var (
		scheduler  *timing.Scheduler
		breaks     *DebugBreakManager
		primary    *fakeCPU
		secondary  *fakeCPU
		controller *fakeController
		video      *fakeVideo
		fired      []uint64
		event      timing.EventID
		il         *Interleaver
	)

	BeforeEach(func() {
		scheduler = timing.NewScheduler()
		breaks = &DebugBreakManager{}
		primary = &fakeCPU{cost: 3, breaks: breaks}
		secondary = &fakeCPU{cost: 5, breaks: breaks}
		controller = &fakeController{}
		video = &fakeVideo{}
		fired = nil

		event = scheduler.RegisterEvent(1,
			timing.HandlerFunc(func(ctx *timing.EventContext) {
				fired = append(fired, ctx.Now())
				ctx.Reschedule(100)
			}))
		scheduler.ScheduleFromNow(event, 100)

		il = NewInterleaver(Components{
			Scheduler:  scheduler,
			Breaks:     breaks,
			Primary:    primary,
			Secondary:  secondary,
			Controller: controller,
			Video:      video,
		})
	})

	It("should panic without required components", func() {
		Expect(func() { NewInterleaver(Components{}) }).To(Panic())
	})

	It("should panic when enabling a missing secondary CPU", func() {
		il := NewInterleaver(Components{
			Scheduler:  scheduler,
			Primary:    primary,
			Controller: controller,
			Video:      video,
		})

		Expect(func() { il.EnableSecondary(true) }).To(Panic())
	})

	Context("with mocked units", func() {
		var (
			mockCtrl   *gomock.Controller
			controller *MockController
			video      *MockVideo
		)

		BeforeEach(func() {
			mockCtrl = gomock.NewController(GinkgoT())
			controller = NewMockController(mockCtrl)
			video = NewMockVideo(mockCtrl)

			il = NewInterleaver(Components{
				Scheduler:  scheduler,
				Primary:    primary,
				Controller: controller,
				Video:      video,
			})
		})

		AfterEach(func() {
			mockCtrl.Finish()
		})

		It("should run the primary CPU in sub-slices", func() {
			gomock.InOrder(
				controller.EXPECT().Advance(uint64(33)),
				controller.EXPECT().Advance(uint64(33)),
				controller.EXPECT().Advance(uint64(33)),
				controller.EXPECT().Advance(uint64(3)),
				video.EXPECT().Advance(uint64(102)),
			)

			Expect(il.Run()).To(BeTrue())

			Expect(scheduler.CurrentCount()).To(Equal(uint64(102)))
			Expect(fired).To(Equal([]uint64{102}))
			Expect(il.Spillover()).To(Equal(Spillover{}))
		})

		It("should advance a single cycle at maximum granularity", func() {
			il.SetMaxTimingGranularity(true)
			controller.EXPECT().Advance(uint64(3))
			video.EXPECT().Advance(uint64(3))

			il.Run()

			Expect(scheduler.CurrentCount()).To(Equal(uint64(3)))
		})
	})

	It("should keep the secondary CPU lead as spillover", func() {
		il.EnableSecondary(true)

		Expect(il.Run()).To(BeTrue())

		Expect(scheduler.CurrentCount()).To(Equal(uint64(102)))
		Expect(secondary.cycles).To(Equal(uint64(105)))
		Expect(il.Spillover().Secondary).To(Equal(uint64(3)))
		Expect(il.Spillover().Primary).To(BeZero())
		Expect(controller.cycles).To(Equal(uint64(102)))
		Expect(video.cycles).To(Equal(uint64(102)))
	})

	It("should run a full sub-slice when nothing is scheduled", func() {
		scheduler.Cancel(event)
		primary.cost = 1

		il.Run()

		Expect(scheduler.CurrentCount()).To(Equal(uint64(SyncMaxStep)))
	})

	It("should not step a disabled secondary CPU", func() {
		Expect(il.StepSecondary()).To(BeZero())
		Expect(secondary.instructions).To(BeZero())
		Expect(scheduler.CurrentCount()).To(BeZero())
	})

	It("should step the primary CPU and bring the machine along", func() {
		il.EnableSecondary(true)

		Expect(il.StepPrimary()).To(Equal(uint64(3)))

		Expect(secondary.cycles).To(Equal(uint64(5)))
		Expect(scheduler.CurrentCount()).To(Equal(uint64(3)))
		Expect(il.Spillover().Secondary).To(Equal(uint64(2)))
	})

	It("should step the secondary CPU and bring the machine along", func() {
		il.EnableSecondary(true)

		Expect(il.StepSecondary()).To(Equal(uint64(5)))

		Expect(primary.cycles).To(Equal(uint64(6)))
		Expect(scheduler.CurrentCount()).To(Equal(uint64(5)))
		Expect(il.Spillover().Primary).To(Equal(uint64(1)))
		Expect(controller.cycles).To(Equal(uint64(6)))
	})

	It("should stop on a debug break", func() {
		il.SetDebugTracing(true)
		il.EnableSecondary(true)
		secondary.breakEvery = 2

		Expect(il.Run()).To(BeFalse())

		Expect(breaks.IsRaised()).To(BeFalse())
		Expect(primary.cycles).To(Equal(uint64(33)))
		Expect(secondary.cycles).To(Equal(uint64(10)))
		Expect(scheduler.CurrentCount()).To(Equal(uint64(10)))
		Expect(il.Spillover().Primary).To(Equal(uint64(23)))
		Expect(il.Spillover().Secondary).To(BeZero())
	})

	It("should ignore debug breaks without debug tracing", func() {
		breaks.Raise("ignored")

		Expect(il.Run()).To(BeTrue())
		Expect(breaks.IsRaised()).To(BeTrue())
	})

	It("should clear spillover and disable the secondary CPU on reset", func() {
		il.EnableSecondary(true)
		il.Run()

		il.Reset()

		Expect(il.SecondaryEnabled()).To(BeFalse())
		Expect(il.Spillover()).To(Equal(Spillover{}))
	})

	Context("frames", func() {
		var frames int

		BeforeEach(func() {
			primary.cost = 1
			frames = 0
			scheduler.SetEventHandler(event,
				timing.HandlerFunc(func(ctx *timing.EventContext) {
					frames++
					ctx.Reschedule(100)
				}))
			video.lastLine = func() bool { return frames%5 == 4 }
		})

		It("should run to the next last line", func() {
			Expect(il.RunFrame()).To(BeTrue())
			Expect(scheduler.CurrentCount()).To(Equal(uint64(400)))

			Expect(il.RunFrame()).To(BeTrue())
			Expect(scheduler.CurrentCount()).To(Equal(uint64(900)))
		})

		It("should abort on a debug break", func() {
			il.SetDebugTracing(true)
			primary.breakEvery = 150

			Expect(il.RunFrame()).To(BeFalse())
			Expect(scheduler.CurrentCount()).To(Equal(uint64(150)))
		})
	})

	It("should give the same results whether stepping or running", func() {
		primary.cost = 1
		secondary.cost = 1
		il.EnableSecondary(true)

		il.StepPrimary()
		il.StepSecondary()
		for scheduler.CurrentCount() < 300 {
			il.Run()
		}

		stepped := fired
		steppedCycles := primary.cycles

		scheduler.Reset()
		scheduler.ScheduleFromNow(event, 100)
		primary.cycles = 0
		fired = nil
		il.Reset()
		il.EnableSecondary(true)

		for scheduler.CurrentCount() < 300 {
			il.Run()
		}

		Expect(fired).To(Equal(stepped))
		Expect(fired).To(Equal([]uint64{100, 200, 300}))
		Expect(primary.cycles).To(Equal(steppedCycles))
	})

	DescribeTable("bookkeeping under random interleaving",
		func(seed int64, debug bool) {
			r := rand.New(rand.NewSource(seed))
			aux := &fakeCPU{cost: 2}
			primary.cost = uint64(r.Intn(7) + 1)
			secondary.cost = uint64(r.Intn(7) + 1)
			if debug {
				primary.breakEvery = uint64(r.Intn(50) + 20)
				secondary.breakEvery = uint64(r.Intn(50) + 20)
			}

			il = NewInterleaver(Components{
				Scheduler:  scheduler,
				Breaks:     breaks,
				Primary:    primary,
				Secondary:  secondary,
				Aux:        aux,
				Controller: controller,
				Video:      video,
			})
			il.SetAuxClock(timing.NewRationalClock(20, 27))
			il.SetDebugTracing(debug)
			il.EnableSecondary(true)

			for n := 0; n < 2000; n++ {
				switch r.Intn(4) {
				case 0:
					il.StepPrimary()
				case 1:
					il.StepSecondary()
				default:
					il.Run()
				}

				now := scheduler.CurrentCount()
				spill := il.Spillover()

				Expect(primary.cycles).To(Equal(now + spill.Primary))
				Expect(secondary.cycles).To(Equal(now + spill.Secondary))
				Expect(controller.cycles).To(Equal(primary.cycles))
				Expect(video.cycles).To(Equal(now))
				Expect(aux.cycles).To(Equal(now*20/27 + spill.Aux))
			}

			Expect(fired).NotTo(BeEmpty())
		},
		Entry("normal", int64(1), false),
		Entry("normal, other costs", int64(7), false),
		Entry("debug", int64(3), true),
		Entry("debug, other costs", int64(11), true),
	)
})
