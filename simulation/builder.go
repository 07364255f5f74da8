package simulation

import (
	"github.com/rs/xid"
	"github.com/rs/zerolog"

	"github.com/lockstep-sim/saturn/datarecording"
	"github.com/lockstep-sim/saturn/hw"
	"github.com/lockstep-sim/saturn/machine"
	"github.com/lockstep-sim/saturn/monitoring"
	"github.com/lockstep-sim/saturn/sim/timing"
	"github.com/lockstep-sim/saturn/tracing"
)

// Builder can be used to build a simulation.
type Builder struct {
	monitorOn      bool
	monitorPort    int
	tracingOn      bool
	outputFileName string
	machineBuilder machine.Builder
	logger         zerolog.Logger
}

// MakeBuilder creates a new builder.
func MakeBuilder() Builder {
	return Builder{
		monitorOn:      true,
		tracingOn:      true,
		machineBuilder: machine.MakeBuilder(),
		logger:         zerolog.Nop(),
	}
}

// WithoutMonitoring sets the simulation to not use monitoring.
func (b Builder) WithoutMonitoring() Builder {
	b.monitorOn = false
	return b
}

// WithMonitorPort sets the port number for the monitoring server.
func (b Builder) WithMonitorPort(port int) Builder {
	b.monitorPort = port
	return b
}

// WithoutTracing sets the simulation to not record event firings.
func (b Builder) WithoutTracing() Builder {
	b.tracingOn = false
	return b
}

// WithOutputFileName sets the custom output file name for the data recorder.
func (b Builder) WithOutputFileName(filename string) Builder {
	b.outputFileName = filename
	return b
}

// WithMachineBuilder sets how the simulated machine is built.
func (b Builder) WithMachineBuilder(mb machine.Builder) Builder {
	b.machineBuilder = mb
	return b
}

// WithLogger sets the logger of the simulation and of the machine.
func (b Builder) WithLogger(logger zerolog.Logger) Builder {
	b.logger = logger
	return b
}

func (b Builder) parametersMustBeValid() {
	if !b.monitorOn && b.monitorPort != 0 {
		panic("simulation: monitor port cannot be set when monitoring is disabled")
	}

	if !b.tracingOn && b.outputFileName != "" {
		panic("simulation: output file cannot be set when tracing is disabled")
	}
}

// Build builds the simulation.
func (b Builder) Build() (*Simulation, error) {
	b.parametersMustBeValid()

	s := &Simulation{
		id:        xid.New().String(),
		intervals: tracing.NewIntervalTracer(),
	}
	s.logger = b.logger.With().Str("simulation", s.id).Logger()
	s.resumed = make(chan struct{})
	close(s.resumed)

	s.machine = b.machineBuilder.WithLogger(b.logger).Build()
	sched := s.machine.Scheduler()

	tracing.CollectTrace(sched, s.intervals)

	if b.logger.GetLevel() <= zerolog.DebugLevel {
		sched.AcceptHook(timing.NewEventLogger(s.logger, hw.EventName))
	}

	if b.tracingOn {
		if err := s.startTracing(b.outputFileName); err != nil {
			return nil, err
		}
	}

	if b.monitorOn {
		if err := s.startMonitor(b.monitorPort); err != nil {
			s.Terminate()
			return nil, err
		}
	}

	return s, nil
}

func (s *Simulation) startTracing(outputFileName string) error {
	if outputFileName == "" {
		outputFileName = "saturn_sim_" + s.id
	}

	recorder, err := datarecording.New(outputFileName)
	if err != nil {
		return err
	}

	tracer, err := tracing.NewDBTracer(recorder, hw.EventName)
	if err != nil {
		_ = recorder.Close()
		return err
	}

	tracing.CollectTrace(s.machine.Scheduler(), tracer)

	s.dataRecorder = recorder
	s.tracer = tracer

	s.logger.Info().
		Str("path", datarecording.Path(recorder)).
		Msg("recording scheduler events")

	return nil
}

func (s *Simulation) startMonitor(port int) error {
	m := monitoring.NewMonitor().WithLogger(s.logger)
	if port > 0 {
		m.WithPortNumber(port)
	}

	m.RegisterDriver(s)
	m.RegisterScheduler(s.machine.Scheduler(), hw.EventName)
	m.RegisterComponent("Interleaver", s.machine.Interleaver())
	m.RegisterComponent("MSH2", s.machine.Primary())
	m.RegisterComponent("SSH2", s.machine.Secondary())
	m.RegisterComponent("SH1", s.machine.Aux())
	m.RegisterComponent("SCU", s.machine.SCU())
	m.RegisterComponent("VDP", s.machine.VDP())
	m.RegisterComponent("SCSP", s.machine.SCSP())
	m.RegisterComponent("SMPC", s.machine.SMPC())

	if err := m.StartServer(); err != nil {
		return err
	}

	s.monitor = m

	return nil
}
