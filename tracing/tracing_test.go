package tracing

import (
	"database/sql"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/lockstep-sim/saturn/datarecording"
	"github.com/lockstep-sim/saturn/sim/timing"
)

func periodic(interval uint64) timing.Handler {
	return timing.HandlerFunc(func(ctx *timing.EventContext) {
		ctx.Reschedule(interval)
	})
}

// runUntil advances in slices that end on each deadline, as the run loop
// does.
func runUntil(s *timing.Scheduler, end uint64) {
	for s.CurrentCount() < end {
		step := end - s.CurrentCount()
		if r := s.RemainingCount(); r > 0 && uint64(r) < step {
			step = uint64(r)
		}

		s.Advance(step)
	}
}

var _ = Describe("CollectTrace", func() {
	It("should refuse the same tracer twice", func() {
		s := timing.NewScheduler()
		t := NewIntervalTracer()

		CollectTrace(s, t)

		Expect(s.NumHooks()).To(Equal(1))
		Expect(func() { CollectTrace(s, t) }).To(Panic())
	})
})

var _ = Describe("DBTracer", func() {
	var (
		db     *sql.DB
		sched  *timing.Scheduler
		tracer *DBTracer
		evt    timing.EventID
	)

	BeforeEach(func() {
		var err error
		db, err = sql.Open("sqlite3",
			filepath.Join(GinkgoT().TempDir(), "trace.sqlite3"))
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(db.Close)

		tracer, err = NewDBTracer(datarecording.NewWithDB(db),
			func(id timing.UserID) string { return "tick" })
		Expect(err).NotTo(HaveOccurred())

		sched = timing.NewScheduler()
		evt = sched.RegisterEvent(7, periodic(50))
		sched.ScheduleFromNow(evt, 100)
		CollectTrace(sched, tracer)
	})

	count := func() int {
		var n int
		Expect(db.QueryRow("SELECT COUNT(*) FROM " + EventTableName).
			Scan(&n)).To(Succeed())
		return n
	}

	It("should record every firing", func() {
		runUntil(sched, 200)

		Expect(tracer.Recorded()).To(Equal(uint64(3)))
		Expect(tracer.Terminate()).To(Succeed())
		Expect(count()).To(Equal(3))

		var (
			now, target, next uint64
			name              string
		)
		Expect(db.QueryRow(
			"SELECT Now, Target, NextTarget, Name FROM "+EventTableName+
				" WHERE Now = 150",
		).Scan(&now, &target, &next, &name)).To(Succeed())
		Expect(target).To(Equal(uint64(150)))
		Expect(next).To(Equal(uint64(200)))
		Expect(name).To(Equal("tick"))
	})

	It("should not record while stopped", func() {
		tracer.StopTracing()
		runUntil(sched, 100)
		Expect(tracer.IsTracing()).To(BeFalse())

		tracer.StartTracing()
		runUntil(sched, 150)

		Expect(tracer.Terminate()).To(Succeed())
		Expect(count()).To(Equal(1))
	})

	It("should only record inside the time range", func() {
		tracer.SetTimeRange(150, 250)

		runUntil(sched, 300)

		Expect(tracer.Recorded()).To(Equal(uint64(2)))
	})

	It("should fail to create the table twice", func() {
		_, err := NewDBTracer(datarecording.NewWithDB(db), nil)

		Expect(err).To(HaveOccurred())
	})
})

var _ = Describe("IntervalTracer", func() {
	It("should measure the distance between firings", func() {
		sched := timing.NewScheduler()
		tracer := NewIntervalTracer()
		CollectTrace(sched, tracer)

		a := sched.RegisterEvent(1, periodic(50))
		b := sched.RegisterEvent(2, timing.HandlerFunc(func(*timing.EventContext) {}))
		sched.ScheduleFromNow(a, 100)
		sched.ScheduleFromNow(b, 120)

		runUntil(sched, 250)

		Expect(tracer.UserIDs()).To(Equal([]timing.UserID{1, 2}))
		Expect(tracer.Firings(1)).To(Equal(uint64(4)))
		Expect(tracer.Firings(2)).To(Equal(uint64(1)))
		Expect(tracer.Stats(1)).To(Equal(IntervalStats{
			Count: 3, Min: 50, Max: 50, Total: 150,
		}))
		Expect(tracer.Stats(1).Average()).To(BeNumerically("==", 50))
		Expect(tracer.Stats(2).Average()).To(BeZero())
	})

	It("should keep a scaled clock in phase", func() {
		sched := timing.NewScheduler()
		tracer := NewIntervalTracer()
		CollectTrace(sched, tracer)

		a := sched.RegisterEvent(1, periodic(3))
		sched.SetClockRatio(a, 2, 5)
		sched.ScheduleFromNow(a, 3)

		runUntil(sched, 750)

		stats := tracer.Stats(1)
		Expect(tracer.Firings(1)).To(Equal(uint64(100)))
		Expect(stats.Min).To(Equal(uint64(7)))
		Expect(stats.Max).To(Equal(uint64(8)))
		Expect(stats.Average()).To(BeNumerically("~", 7.5, 0.01))
	})
})
