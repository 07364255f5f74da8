package tracing

import (
	"sync"

	"github.com/lockstep-sim/saturn/datarecording"
	"github.com/lockstep-sim/saturn/sim/timing"
)

// EventTableName is the table DBTracer writes firings into.
const EventTableName = "scheduler_events"

// eventTableEntry is one row of the event table. A NextTarget of -1 means
// the event was left unscheduled.
type eventTableEntry struct {
	Now        uint64
	EventID    uint32
	UserID     uint32
	Name       string
	Target     uint64
	NextTarget uint64
}

// DBTracer is a tracer that stores event firings into a data recorder.
type DBTracer struct {
	mu      sync.Mutex
	backend datarecording.DataRecorder
	names   NameFunc

	isTracing  bool
	start, end uint64
	recorded   uint64
	err        error
}

// NewDBTracer creates the event table on the backend and returns a tracer
// that is tracing. The names function may be nil.
func NewDBTracer(
	backend datarecording.DataRecorder,
	names NameFunc,
) (*DBTracer, error) {
	if err := backend.CreateTable(EventTableName, eventTableEntry{}); err != nil {
		return nil, err
	}

	t := &DBTracer{
		backend:   backend,
		names:     names,
		isTracing: true,
	}

	return t, nil
}

// SetTimeRange limits recording to firings at base counts in [start, end).
// An end of 0 leaves the range open.
func (t *DBTracer) SetTimeRange(start, end uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.start = start
	t.end = end
}

// StartTracing resumes recording.
func (t *DBTracer) StartTracing() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.isTracing = true
}

// StopTracing pauses recording.
func (t *DBTracer) StopTracing() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.isTracing = false
}

// IsTracing tells whether firings are being recorded.
func (t *DBTracer) IsTracing() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.isTracing
}

// RecordEvent buffers a row for the firing. The first backend error stops
// recording and is reported by Err.
func (t *DBTracer) RecordEvent(evt timing.FiredEvent) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.isTracing || t.err != nil {
		return
	}

	if evt.Now < t.start || (t.end > 0 && evt.Now >= t.end) {
		return
	}

	entry := eventTableEntry{
		Now:        evt.Now,
		EventID:    uint32(evt.ID),
		UserID:     uint32(evt.UserID),
		Target:     evt.Target,
		NextTarget: evt.NextTarget,
	}

	if t.names != nil {
		entry.Name = t.names(evt.UserID)
	}

	if err := t.backend.InsertData(EventTableName, entry); err != nil {
		t.err = err
		return
	}

	t.recorded++
}

// Recorded returns the number of rows handed to the backend.
func (t *DBTracer) Recorded() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.recorded
}

// Err returns the error that stopped recording, if any.
func (t *DBTracer) Err() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.err
}

// Terminate flushes the buffered rows.
func (t *DBTracer) Terminate() error {
	t.mu.Lock()
	err := t.err
	t.mu.Unlock()

	if err != nil {
		return err
	}

	return t.backend.Flush()
}
