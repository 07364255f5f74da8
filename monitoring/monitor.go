// Package monitoring serves a web API to watch and control a running
// simulation.
package monitoring

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"runtime/pprof"
	"strconv"
	"strings"
	"sync"
	"time"

	// Enable profiling
	_ "net/http/pprof"

	"github.com/google/pprof/profile"
	"github.com/gorilla/mux"
	"github.com/rs/xid"
	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/process"
	"github.com/syifan/goseth"

	"github.com/lockstep-sim/saturn/monitoring/web"
	"github.com/lockstep-sim/saturn/sim/hooking"
	"github.com/lockstep-sim/saturn/sim/timing"
)

// ErrServerRunning is returned when the server is started twice.
var ErrServerRunning = errors.New("monitoring: server already running")

// A Driver runs the simulation the monitor watches.
type Driver interface {
	// Pause stops the simulation at the next slice boundary.
	Pause()

	// Continue resumes a paused simulation.
	Continue()

	// Inspect runs f while the simulation is between slices, so f can read
	// simulation state without racing the run loop.
	Inspect(f func())
}

type namedComponent struct {
	name string
	c    any
}

// Monitor can turn a simulation into a server and allows external monitoring
// and control of the simulation.
type Monitor struct {
	logger     zerolog.Logger
	driver     Driver
	scheduler  *timing.Scheduler
	names      func(timing.UserID) string
	counter    *hooking.EventCountTracer
	components []namedComponent
	portNumber int

	progressBarsLock sync.Mutex
	progressBars     []*ProgressBar

	server   *http.Server
	listener net.Listener
}

// NewMonitor creates a new Monitor.
func NewMonitor() *Monitor {
	return &Monitor{logger: zerolog.Nop()}
}

// WithPortNumber sets the port number of the monitor. Ports below 1000 pick
// a random port instead.
func (m *Monitor) WithPortNumber(portNumber int) *Monitor {
	if portNumber < 1000 {
		m.logger.Warn().
			Int("port", portNumber).
			Msg("port not allowed for the monitoring server, using a random port")

		portNumber = 0
	}

	m.portNumber = portNumber

	return m
}

// WithLogger sets the logger.
func (m *Monitor) WithLogger(logger zerolog.Logger) *Monitor {
	m.logger = logger.With().Str("component", "monitor").Logger()
	return m
}

// RegisterDriver registers the driver that runs the simulation.
func (m *Monitor) RegisterDriver(d Driver) {
	m.driver = d
}

// RegisterScheduler registers the scheduler to report on and starts counting
// its event firings. The names function may be nil.
func (m *Monitor) RegisterScheduler(
	s *timing.Scheduler,
	names func(timing.UserID) string,
) {
	m.scheduler = s
	m.names = names
	m.counter = hooking.NewEventCountTracer(timing.HookPosAfterEvent,
		func(item any) (string, bool) {
			evt, ok := item.(timing.FiredEvent)
			if !ok {
				return "", false
			}

			return m.eventName(evt.UserID), true
		})

	s.AcceptHook(m.counter)
}

// RegisterComponent registers a component to be monitored under a name.
func (m *Monitor) RegisterComponent(name string, c any) {
	for _, nc := range m.components {
		if nc.name == name {
			panic(fmt.Sprintf("monitoring: component %s already registered", name))
		}
	}

	m.components = append(m.components, namedComponent{name: name, c: c})
}

// CreateProgressBar creates a new progress bar.
func (m *Monitor) CreateProgressBar(name string, total uint64) *ProgressBar {
	bar := &ProgressBar{
		ID:        xid.New().String(),
		Name:      name,
		StartTime: time.Now(),
		Total:     total,
	}

	m.progressBarsLock.Lock()
	defer m.progressBarsLock.Unlock()

	m.progressBars = append(m.progressBars, bar)

	return bar
}

// CompleteProgressBar removes a bar from the web page.
func (m *Monitor) CompleteProgressBar(pb *ProgressBar) {
	m.progressBarsLock.Lock()
	defer m.progressBarsLock.Unlock()

	bars := make([]*ProgressBar, 0, len(m.progressBars))
	for _, b := range m.progressBars {
		if b != pb {
			bars = append(bars, b)
		}
	}

	m.progressBars = bars
}

// Handler returns the router serving the API and the web pages.
func (m *Monitor) Handler() http.Handler {
	r := mux.NewRouter()

	r.HandleFunc("/api/pause", m.pause)
	r.HandleFunc("/api/continue", m.continueRun)
	r.HandleFunc("/api/now", m.now)
	r.HandleFunc("/api/schedule", m.schedule)
	r.HandleFunc("/api/events", m.events)
	r.HandleFunc("/api/list_components", m.listComponents)
	r.HandleFunc("/api/component/{name}", m.listComponentDetails)
	r.HandleFunc("/api/field/{json}", m.listFieldValue)
	r.HandleFunc("/api/progress", m.listProgressBars)
	r.HandleFunc("/api/resource", m.listResources)
	r.HandleFunc("/api/profile", m.collectProfile)
	r.PathPrefix("/debug/pprof/").Handler(http.DefaultServeMux)
	r.PathPrefix("/").Handler(http.FileServer(web.GetAssets()))

	return r
}

// StartServer starts serving in the background.
func (m *Monitor) StartServer() error {
	if m.server != nil {
		return ErrServerRunning
	}

	listener, err := net.Listen("tcp", ":"+strconv.Itoa(m.portNumber))
	if err != nil {
		return fmt.Errorf("monitoring: listen: %w", err)
	}

	m.listener = listener
	m.server = &http.Server{
		Handler:           m.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	m.logger.Info().Str("url", m.URL()).Msg("monitoring simulation")

	go func() {
		err := m.server.Serve(listener)
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			m.logger.Error().Err(err).Msg("monitoring server stopped")
		}
	}()

	return nil
}

// URL returns the address of the running server, or an empty string.
func (m *Monitor) URL() string {
	if m.listener == nil {
		return ""
	}

	return fmt.Sprintf("http://localhost:%d",
		m.listener.Addr().(*net.TCPAddr).Port)
}

// StopServer shuts the server down.
func (m *Monitor) StopServer(ctx context.Context) error {
	if m.server == nil {
		return nil
	}

	err := m.server.Shutdown(ctx)
	m.server = nil
	m.listener = nil

	return err
}

func (m *Monitor) inspect(f func()) {
	if m.driver == nil {
		f()
		return
	}

	m.driver.Inspect(f)
}

func (m *Monitor) eventName(id timing.UserID) string {
	if m.names != nil {
		return m.names(id)
	}

	return strconv.FormatUint(uint64(id), 10)
}

func (m *Monitor) pause(w http.ResponseWriter, _ *http.Request) {
	if m.driver == nil {
		http.Error(w, "no simulation", http.StatusServiceUnavailable)
		return
	}

	m.driver.Pause()
	w.WriteHeader(http.StatusOK)
}

func (m *Monitor) continueRun(w http.ResponseWriter, _ *http.Request) {
	if m.driver == nil {
		http.Error(w, "no simulation", http.StatusServiceUnavailable)
		return
	}

	m.driver.Continue()
	w.WriteHeader(http.StatusOK)
}

type nowRsp struct {
	Now  uint64  `json:"now"`
	Next *uint64 `json:"next"`
}

func (m *Monitor) now(w http.ResponseWriter, _ *http.Request) {
	if m.scheduler == nil {
		http.Error(w, "no scheduler", http.StatusServiceUnavailable)
		return
	}

	var rsp nowRsp

	m.inspect(func() {
		rsp.Now = m.scheduler.CurrentCount()

		if next := m.scheduler.NextCount(); next != timing.NoDeadline {
			rsp.Next = &next
		}
	})

	writeJSON(w, rsp)
}

type scheduleEntry struct {
	EventID   uint32 `json:"event_id"`
	UserID    uint32 `json:"user_id"`
	Name      string `json:"name"`
	Scheduled bool   `json:"scheduled"`
	Target    uint64 `json:"target"`
	Clock     string `json:"clock"`
}

func (m *Monitor) schedule(w http.ResponseWriter, _ *http.Request) {
	if m.scheduler == nil {
		http.Error(w, "no scheduler", http.StatusServiceUnavailable)
		return
	}

	var entries []scheduleEntry

	m.inspect(func() {
		entries = make([]scheduleEntry, 0, m.scheduler.NumEvents())

		for i := 0; i < m.scheduler.NumEvents(); i++ {
			id := timing.EventID(i)
			userID := m.scheduler.UserIDOf(id)

			e := scheduleEntry{
				EventID:   uint32(id),
				UserID:    uint32(userID),
				Name:      m.eventName(userID),
				Scheduled: m.scheduler.IsScheduled(id),
				Clock:     m.scheduler.ClockRatio(id).String(),
			}

			if e.Scheduled {
				e.Target = m.scheduler.GetScheduleTarget(id)
			}

			entries = append(entries, e)
		}
	})

	writeJSON(w, entries)
}

type eventCount struct {
	Name  string `json:"name"`
	Count uint64 `json:"count"`
}

func (m *Monitor) events(w http.ResponseWriter, _ *http.Request) {
	counts := []eventCount{}

	if m.counter != nil {
		c := m.counter.Counts()
		for _, name := range m.counter.SortedNames() {
			counts = append(counts, eventCount{Name: name, Count: c[name]})
		}
	}

	writeJSON(w, counts)
}

func (m *Monitor) listComponents(w http.ResponseWriter, _ *http.Request) {
	names := make([]string, 0, len(m.components))
	for _, c := range m.components {
		names = append(names, c.name)
	}

	writeJSON(w, names)
}

func (m *Monitor) listComponentDetails(w http.ResponseWriter, r *http.Request) {
	component := m.findComponentOr404(w, mux.Vars(r)["name"])
	if component == nil {
		return
	}

	m.serialize(w, component, nil)
}

type fieldReq struct {
	CompName  string `json:"comp_name,omitempty"`
	FieldName string `json:"field_name,omitempty"`
}

func (m *Monitor) listFieldValue(w http.ResponseWriter, r *http.Request) {
	req := fieldReq{}

	err := json.Unmarshal([]byte(mux.Vars(r)["json"]), &req)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	component := m.findComponentOr404(w, req.CompName)
	if component == nil {
		return
	}

	m.serialize(w, component, strings.Split(req.FieldName, "."))
}

func (m *Monitor) serialize(w http.ResponseWriter, root any, entry []string) {
	buf := bytes.NewBuffer(nil)

	var err error

	m.inspect(func() {
		serializer := goseth.NewSerializer()
		serializer.SetRoot(root)
		serializer.SetMaxDepth(1)

		if entry != nil {
			if err = serializer.SetEntryPoint(entry); err != nil {
				return
			}
		}

		err = serializer.Serialize(buf)
	})

	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_, err = w.Write(buf.Bytes())
	dieOnErr(err)
}

func (m *Monitor) findComponentOr404(w http.ResponseWriter, name string) any {
	for _, c := range m.components {
		if c.name == name {
			return c.c
		}
	}

	http.Error(w, "Component not found", http.StatusNotFound)

	return nil
}

func (m *Monitor) listProgressBars(w http.ResponseWriter, _ *http.Request) {
	m.progressBarsLock.Lock()
	bars := make([]ProgressBarStatus, 0, len(m.progressBars))
	for _, b := range m.progressBars {
		bars = append(bars, b.Status())
	}
	m.progressBarsLock.Unlock()

	writeJSON(w, bars)
}

type resourceRsp struct {
	CPUPercent float64 `json:"cpu_percent"`
	MemorySize uint64  `json:"memory_size"`
}

func (m *Monitor) listResources(w http.ResponseWriter, _ *http.Request) {
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	cpuPercent, err := proc.CPUPercent()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	memory, err := proc.MemoryInfo()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, resourceRsp{
		CPUPercent: cpuPercent,
		MemorySize: memory.RSS,
	})
}

func (m *Monitor) collectProfile(w http.ResponseWriter, _ *http.Request) {
	buf := bytes.NewBuffer(nil)

	if err := pprof.StartCPUProfile(buf); err != nil {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}

	time.Sleep(time.Second)

	pprof.StopCPUProfile()

	prof, err := profile.ParseData(buf.Bytes())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, prof)
}

func writeJSON(w http.ResponseWriter, v any) {
	data, err := json.Marshal(v)
	dieOnErr(err)

	w.Header().Set("Content-Type", "application/json")
	_, err = w.Write(data)
	dieOnErr(err)
}

func dieOnErr(err error) {
	if err != nil {
		panic(err)
	}
}
