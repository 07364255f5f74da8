package timing

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

type stateFixture struct {
	scheduler *Scheduler
	fired     []firing
	a, b, c   EventID
}

func newStateFixture() *stateFixture {
	f := &stateFixture{scheduler: NewScheduler()}
	s := f.scheduler

	record := func(userID UserID, interval uint64) Handler {
		return HandlerFunc(func(ctx *EventContext) {
			f.fired = append(f.fired, firing{userID: userID, now: ctx.Now()})
			if interval > 0 {
				ctx.Reschedule(interval)
			}
		})
	}

	f.a = s.RegisterEvent(100, record(100, 100))
	f.b = s.RegisterEvent(200, record(200, 0))
	f.c = s.RegisterEvent(300, record(300, 7))

	return f
}

func (f *stateFixture) drive(steps []uint64) {
	for _, n := range steps {
		f.scheduler.Advance(n)
	}
}

var _ = Describe("Scheduler state", func() {
	var (
		original *stateFixture
		restored *stateFixture
	)

	BeforeEach(func() {
		original = newStateFixture()
		s := original.scheduler

		s.SetClockRatio(original.b, 3, 5)
		s.SetClockRatio(original.c, 1, 3)
		s.ScheduleFromNow(original.a, 100)
		s.ScheduleFromNow(original.b, 70)
		s.ScheduleFromNow(original.c, 7)
		original.drive([]uint64{13, 29, 50})

		restored = newStateFixture()
	})

	It("should save every registered event in registration order", func() {
		var state State
		original.scheduler.SaveState(&state)

		Expect(state.CurrCount).To(Equal(uint64(92)))
		Expect(state.Events).To(HaveLen(3))
		Expect(state.Events[0].UserID).To(Equal(UserID(100)))
		Expect(state.Events[1]).To(Equal(EventState{
			UserID:   200,
			Target:   70,
			ClockNum: 3,
			ClockDen: 5,
		}))
		Expect(state.Events[2].UserID).To(Equal(UserID(300)))
	})

	It("should reproduce firing behavior after a load", func() {
		var state State
		original.scheduler.SaveState(&state)

		Expect(restored.scheduler.ValidateState(&state)).To(Succeed())
		restored.scheduler.LoadState(&state)

		Expect(restored.scheduler.CurrentCount()).
			To(Equal(original.scheduler.CurrentCount()))
		Expect(restored.scheduler.NextCount()).
			To(Equal(original.scheduler.NextCount()))

		original.fired = nil
		steps := []uint64{1, 5, 17, 64, 3, 200, 0, 41, 999}
		original.drive(steps)
		restored.drive(steps)

		Expect(restored.fired).To(Equal(original.fired))
		Expect(restored.fired).NotTo(BeEmpty())
	})

	It("should recompute the nearest deadline on load", func() {
		restored.scheduler.ScheduleAt(restored.a, 1)

		var state State
		original.scheduler.SaveState(&state)
		restored.scheduler.LoadState(&state)

		Expect(restored.scheduler.NextCount()).
			To(Equal(original.scheduler.NextCount()))
	})

	It("should unschedule events missing from the state", func() {
		restored.scheduler.ScheduleAt(restored.b, 500)

		state := State{
			CurrCount: 10,
			Events: []EventState{
				{UserID: 100, Target: 20, ClockNum: 1, ClockDen: 1},
			},
		}
		Expect(restored.scheduler.ValidateState(&state)).To(Succeed())
		restored.scheduler.LoadState(&state)

		Expect(restored.scheduler.IsScheduled(restored.b)).To(BeFalse())
		Expect(restored.scheduler.NextCount()).To(Equal(uint64(20)))
	})

	It("should reject unknown user IDs", func() {
		state := State{Events: []EventState{
			{UserID: 999, Target: NoDeadline, ClockNum: 1, ClockDen: 1},
		}}

		Expect(restored.scheduler.ValidateState(&state)).
			To(MatchError(ErrUnknownUserID))
	})

	It("should reject duplicated user IDs", func() {
		state := State{Events: []EventState{
			{UserID: 100, Target: 5, ClockNum: 1, ClockDen: 1},
			{UserID: 100, Target: 6, ClockNum: 1, ClockDen: 1},
		}}

		Expect(restored.scheduler.ValidateState(&state)).
			To(MatchError(ErrDuplicateUserID))
	})

	It("should reject zero clock ratios", func() {
		state := State{Events: []EventState{
			{UserID: 300, Target: 5, ClockNum: 1, ClockDen: 0},
		}}

		Expect(restored.scheduler.ValidateState(&state)).
			To(MatchError(ErrInvalidClockRatio))
	})
})
