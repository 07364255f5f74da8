package simulation

import (
	"database/sql"
	"net/http"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/lockstep-sim/saturn/hw"
	"github.com/lockstep-sim/saturn/machine"
	"github.com/lockstep-sim/saturn/sim/stateful"
	"github.com/lockstep-sim/saturn/tracing"
)

func mustBuild(b Builder) *Simulation {
	s, err := b.Build()
	Expect(err).NotTo(HaveOccurred())
	DeferCleanup(s.Terminate)

	return s
}

func saveState(s *Simulation) machine.State {
	var state machine.State
	s.Inspect(func() { s.Machine().SaveState(&state) })

	return state
}

var _ = Describe("Simulation", func() {
	var dir string

	BeforeEach(func() {
		dir = GinkgoT().TempDir()
	})

	quiet := func() Builder {
		return MakeBuilder().WithoutMonitoring().WithoutTracing()
	}

	It("should run frames", func() {
		s := mustBuild(quiet())

		Expect(s.RunFrames(2)).To(Succeed())

		Expect(s.Machine().VDP().FrameCount()).To(Equal(uint64(1)))
		Expect(s.GetIntervalTracer().Firings(hw.EventVDPPhase)).
			To(BeNumerically(">", 2*262))
		Expect(s.GetIntervalTracer().Stats(hw.EventSCSPSample).Max).
			To(BeNumerically("<=", 610))
	})

	It("should give each simulation its own ID", func() {
		a := mustBuild(quiet())
		b := mustBuild(quiet())

		Expect(a.ID()).NotTo(Equal(b.ID()))
	})

	It("should record event firings", func() {
		name := filepath.Join(dir, "trace")
		s := mustBuild(MakeBuilder().
			WithoutMonitoring().
			WithOutputFileName(name))

		Expect(s.RunFrames(1)).To(Succeed())
		recorded := s.GetTracer().Recorded()
		Expect(recorded).To(BeNumerically(">", 0))

		s.Terminate()

		db, err := sql.Open("sqlite3", name+".sqlite3")
		Expect(err).NotTo(HaveOccurred())
		defer db.Close()

		var n uint64
		Expect(db.QueryRow(
			"SELECT COUNT(*) FROM " + tracing.EventTableName,
		).Scan(&n)).To(Succeed())
		Expect(n).To(Equal(recorded))
	})

	It("should stop on a debug break", func() {
		s := mustBuild(quiet().WithMachineBuilder(
			machine.MakeBuilder().WithDebugTracing()))

		s.Inspect(func() { s.Machine().Primary().AddBreakpoint(500) })

		err := s.RunFrames(1)
		Expect(err).To(MatchError(ErrDebugBreak))
		Expect(err.Error()).To(ContainSubstring("MSH2"))
	})

	It("should hold frames while paused", func() {
		s := mustBuild(quiet())
		s.Pause()
		Expect(s.IsPaused()).To(BeTrue())

		done := make(chan error, 1)
		go func() { done <- s.RunFrames(1) }()

		Consistently(done, 100*time.Millisecond).ShouldNot(Receive())

		s.Continue()
		Expect(s.IsPaused()).To(BeFalse())
		Eventually(done).Should(Receive(BeNil()))
	})

	Context("save states", func() {
		It("should continue identically after a load", func() {
			path := filepath.Join(dir, "state.json")

			a := mustBuild(quiet())
			Expect(a.RunFrames(1)).To(Succeed())
			Expect(a.Save(path)).To(Succeed())

			b := mustBuild(quiet())
			Expect(b.Load(path)).To(Succeed())
			Expect(saveState(b)).To(Equal(saveState(a)))

			Expect(a.RunFrames(2)).To(Succeed())
			Expect(b.RunFrames(2)).To(Succeed())
			Expect(saveState(b)).To(Equal(saveState(a)))
		})

		It("should reject a broken file", func() {
			path := filepath.Join(dir, "broken.json")
			Expect(os.WriteFile(path, []byte(`{"format":`), 0o600)).To(Succeed())

			s := mustBuild(quiet())
			before := saveState(s)

			Expect(s.Load(path)).To(MatchError(stateful.ErrMalformed))
			Expect(saveState(s)).To(Equal(before))
		})

		It("should fail on a missing file", func() {
			s := mustBuild(quiet())

			Expect(s.Load(filepath.Join(dir, "missing.json"))).NotTo(Succeed())
		})
	})

	It("should serve the monitor", func() {
		s := mustBuild(MakeBuilder().WithoutTracing())

		url := s.GetMonitor().URL()
		Expect(url).NotTo(BeEmpty())

		rsp, err := http.Get(url + "/api/pause")
		Expect(err).NotTo(HaveOccurred())
		rsp.Body.Close()
		Expect(s.IsPaused()).To(BeTrue())

		rsp, err = http.Get(url + "/api/continue")
		Expect(err).NotTo(HaveOccurred())
		rsp.Body.Close()
		Expect(s.IsPaused()).To(BeFalse())
	})

	It("should refuse a monitor port without monitoring", func() {
		Expect(func() {
			MakeBuilder().WithoutMonitoring().WithMonitorPort(3000).Build()
		}).To(Panic())
	})
})
