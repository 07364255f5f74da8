package cmd

import (
	"errors"
	"fmt"

	"github.com/pkg/browser"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/lockstep-sim/saturn/hw"
	"github.com/lockstep-sim/saturn/hw/smpc"
	"github.com/lockstep-sim/saturn/machine"
	"github.com/lockstep-sim/saturn/simulation"
)

type runOptions struct {
	frames       int
	clockSpeed   string
	video        string
	slave        bool
	debugTracing bool
	monitor      bool
	monitorPort  int
	openBrowser  bool
	traceDB      string
	noTrace      bool
	saveState    string
	loadState    string
}

func newRunCmd() *cobra.Command {
	opts := &runOptions{}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the machine for a number of frames.",
		Long: "`run` builds a machine, optionally restores a saved state, " +
			"runs it frame by frame and reports how often each event fired.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			level, _ := cmd.Flags().GetString("log-level")

			logger, err := newLogger(cmd.ErrOrStderr(), level)
			if err != nil {
				return err
			}

			return run(opts, logger)
		},
	}

	f := cmd.Flags()
	f.IntVar(&opts.frames, "frames", 60, "Number of frames to run.")
	f.StringVar(&opts.clockSpeed, "clock-speed", "320",
		"Clock speed to start with: 320 or 352.")
	f.StringVar(&opts.video, "video", "ntsc", "Video standard: ntsc or pal.")
	f.BoolVar(&opts.slave, "slave", false,
		"Start the secondary CPU through the system manager.")
	f.BoolVar(&opts.debugTracing, "debug-tracing", false,
		"Run with the debug strategy, which honors debug breaks.")
	f.BoolVar(&opts.monitor, "monitor", false, "Serve the monitoring web page.")
	f.IntVar(&opts.monitorPort, "monitor-port", 0,
		"Port of the monitoring server. 0 picks a random port.")
	f.BoolVar(&opts.openBrowser, "open-browser", false,
		"Open the monitoring page in a browser.")
	f.StringVar(&opts.traceDB, "trace-db", "",
		"Name of the SQLite file recording event firings.")
	f.BoolVar(&opts.noTrace, "no-trace", false, "Do not record event firings.")
	f.StringVar(&opts.saveState, "save-state", "",
		"File to write the machine state to after the run.")
	f.StringVar(&opts.loadState, "load-state", "",
		"File to restore the machine state from before the run.")

	return cmd
}

func (o *runOptions) builder(logger zerolog.Logger) (simulation.Builder, error) {
	speed, err := hw.ParseClockSpeed(o.clockSpeed)
	if err != nil {
		return simulation.Builder{}, err
	}

	standard, err := hw.ParseVideoStandard(o.video)
	if err != nil {
		return simulation.Builder{}, err
	}

	mb := machine.MakeBuilder().
		WithClockSpeed(speed).
		WithVideoStandard(standard)
	if o.debugTracing {
		mb = mb.WithDebugTracing()
	}

	b := simulation.MakeBuilder().
		WithMachineBuilder(mb).
		WithLogger(logger)

	switch {
	case !o.monitor && (o.monitorPort != 0 || o.openBrowser):
		return b, errors.New("--monitor-port and --open-browser need --monitor")
	case !o.monitor:
		b = b.WithoutMonitoring()
	case o.monitorPort != 0:
		b = b.WithMonitorPort(o.monitorPort)
	}

	switch {
	case o.noTrace && o.traceDB != "":
		return b, errors.New("--trace-db cannot be used with --no-trace")
	case o.noTrace:
		b = b.WithoutTracing()
	case o.traceDB != "":
		b = b.WithOutputFileName(o.traceDB)
	}

	return b, nil
}

func run(o *runOptions, logger zerolog.Logger) error {
	if o.frames < 0 {
		return fmt.Errorf("invalid frame count %d", o.frames)
	}

	b, err := o.builder(logger)
	if err != nil {
		return err
	}

	s, err := b.Build()
	if err != nil {
		return err
	}
	defer s.Terminate()

	if o.loadState != "" {
		if err := s.Load(o.loadState); err != nil {
			return err
		}
	}

	if o.slave {
		if err := startSecondary(s); err != nil {
			return err
		}
	}

	if o.openBrowser {
		if err := browser.OpenURL(s.GetMonitor().URL()); err != nil {
			logger.Warn().Err(err).Msg("cannot open browser")
		}
	}

	runErr := s.RunFrames(o.frames)
	if runErr != nil && !errors.Is(runErr, simulation.ErrDebugBreak) {
		return runErr
	}

	report(s, logger)

	if o.saveState != "" {
		if err := s.Save(o.saveState); err != nil {
			return err
		}
	}

	return runErr
}

func startSecondary(s *simulation.Simulation) error {
	var err error

	s.Inspect(func() {
		m := s.Machine()

		err = m.SMPC().Issue(smpc.SSHON)
		for err == nil && m.SMPC().Busy() {
			m.Run()
		}
	})

	return err
}

func report(s *simulation.Simulation, logger zerolog.Logger) {
	s.Inspect(func() {
		m := s.Machine()

		logger.Info().
			Uint64("cycles", m.Scheduler().CurrentCount()).
			Uint64("frames", m.VDP().FrameCount()).
			Stringer("clock_speed", m.ClockSpeed()).
			Stringer("standard", m.VideoStandard()).
			Bool("secondary", m.Interleaver().SecondaryEnabled()).
			Msg("run completed")
	})

	intervals := s.GetIntervalTracer()
	for _, id := range intervals.UserIDs() {
		stats := intervals.Stats(id)

		logger.Info().
			Str("event", hw.EventName(id)).
			Uint64("fired", intervals.Firings(id)).
			Float64("avg_interval", stats.Average()).
			Uint64("min_interval", stats.Min).
			Uint64("max_interval", stats.Max).
			Msg("event statistics")
	}
}
