// Package simulation drives a machine with the services around it: event
// recording, monitoring, and save states.
package simulation

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/lockstep-sim/saturn/datarecording"
	"github.com/lockstep-sim/saturn/machine"
	"github.com/lockstep-sim/saturn/monitoring"
	"github.com/lockstep-sim/saturn/sim/stateful"
	"github.com/lockstep-sim/saturn/tracing"
)

// ErrDebugBreak is returned when a debug break stops a run.
var ErrDebugBreak = errors.New("simulation: debug break")

// A Simulation owns a machine and the services that observe it.
type Simulation struct {
	id     string
	logger zerolog.Logger

	// runLock is held while the machine runs a frame, so inspections land
	// between frames.
	runLock sync.Mutex
	machine *machine.Machine

	pauseLock sync.Mutex
	resumed   chan struct{}

	dataRecorder datarecording.DataRecorder
	tracer       *tracing.DBTracer
	intervals    *tracing.IntervalTracer
	monitor      *monitoring.Monitor
}

// ID returns the unique ID of the simulation.
func (s *Simulation) ID() string {
	return s.id
}

// Machine returns the simulated machine. Use Inspect to access it while
// frames are running on another goroutine.
func (s *Simulation) Machine() *machine.Machine {
	return s.machine
}

// GetDataRecorder returns the data recorder, or nil without tracing.
func (s *Simulation) GetDataRecorder() datarecording.DataRecorder {
	return s.dataRecorder
}

// GetTracer returns the event tracer, or nil without tracing.
func (s *Simulation) GetTracer() *tracing.DBTracer {
	return s.tracer
}

// GetIntervalTracer returns the tracer measuring event intervals.
func (s *Simulation) GetIntervalTracer() *tracing.IntervalTracer {
	return s.intervals
}

// GetMonitor returns the monitor, or nil without monitoring.
func (s *Simulation) GetMonitor() *monitoring.Monitor {
	return s.monitor
}

// RunFrames runs n frames. It blocks while the simulation is paused and
// returns an error wrapping ErrDebugBreak if a debug break stops it.
func (s *Simulation) RunFrames(n int) error {
	var bar *monitoring.ProgressBar
	if s.monitor != nil {
		bar = s.monitor.CreateProgressBar("Frames", uint64(n))
		defer s.monitor.CompleteProgressBar(bar)
	}

	start := time.Now()

	for i := 0; i < n; i++ {
		s.waitIfPaused()

		s.runLock.Lock()
		ok := s.machine.RunFrame()
		s.runLock.Unlock()

		if !ok {
			reason := s.machine.DebugBreaks().Reason()
			s.logger.Info().
				Int("frame", i).
				Str("reason", reason).
				Msg("debug break")

			return fmt.Errorf("%w: %s", ErrDebugBreak, reason)
		}

		if bar != nil {
			bar.IncrementFinished(1)
		}
	}

	s.logger.Debug().
		Int("frames", n).
		Dur("elapsed", time.Since(start)).
		Msg("frames completed")

	return nil
}

// Pause makes RunFrames stop before its next frame.
func (s *Simulation) Pause() {
	s.pauseLock.Lock()
	defer s.pauseLock.Unlock()

	select {
	case <-s.resumed:
		s.resumed = make(chan struct{})
		s.logger.Info().Msg("paused")
	default:
	}
}

// Continue resumes a paused simulation.
func (s *Simulation) Continue() {
	s.pauseLock.Lock()
	defer s.pauseLock.Unlock()

	select {
	case <-s.resumed:
	default:
		close(s.resumed)
		s.logger.Info().Msg("continued")
	}
}

// IsPaused tells whether the simulation is paused.
func (s *Simulation) IsPaused() bool {
	s.pauseLock.Lock()
	defer s.pauseLock.Unlock()

	select {
	case <-s.resumed:
		return false
	default:
		return true
	}
}

func (s *Simulation) waitIfPaused() {
	s.pauseLock.Lock()
	resumed := s.resumed
	s.pauseLock.Unlock()

	<-resumed
}

// Inspect runs f between frames.
func (s *Simulation) Inspect(f func()) {
	s.runLock.Lock()
	defer s.runLock.Unlock()

	f()
}

// Save writes the machine state to a file.
func (s *Simulation) Save(path string) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("simulation: save: %w", err)
	}

	defer func() {
		err = errors.Join(err, f.Close())
	}()

	s.Inspect(func() {
		err = stateful.Write[machine.State](f, stateful.JSONCodec{}, s.machine)
	})

	if err == nil {
		s.logger.Info().Str("path", path).Msg("state saved")
	}

	return err
}

// Load restores the machine state from a file. An invalid state leaves the
// machine untouched.
func (s *Simulation) Load(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("simulation: load: %w", err)
	}
	defer f.Close()

	s.Inspect(func() {
		err = stateful.Read[machine.State](f, stateful.JSONCodec{}, s.machine)
	})

	if err != nil {
		return err
	}

	s.logger.Info().Str("path", path).Msg("state loaded")

	return nil
}

// Terminate stops the monitor and flushes the recorded events.
func (s *Simulation) Terminate() {
	s.Continue()

	if s.monitor != nil {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()

		if err := s.monitor.StopServer(ctx); err != nil {
			s.logger.Warn().Err(err).Msg("stopping monitor")
		}
	}

	if s.tracer != nil {
		if err := s.tracer.Terminate(); err != nil {
			s.logger.Error().Err(err).Msg("flushing event trace")
		}
	}

	if s.dataRecorder != nil {
		if err := s.dataRecorder.Close(); err != nil {
			s.logger.Error().Err(err).Msg("closing data recorder")
		}
	}
}
