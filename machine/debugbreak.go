package machine

import (
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"
)

// DebugBreakManager holds the debug break flag the run loop polls between
// sub-slices. Breaks may be raised from any goroutine.
type DebugBreakManager struct {
	raised atomic.Bool

	mu     sync.Mutex
	reason string

	logger zerolog.Logger
}

// NewDebugBreakManager creates a manager with no break raised.
func NewDebugBreakManager(logger zerolog.Logger) *DebugBreakManager {
	return &DebugBreakManager{logger: logger}
}

// Raise requests a debug break.
func (d *DebugBreakManager) Raise(reason string) {
	d.mu.Lock()
	d.reason = reason
	d.mu.Unlock()

	d.raised.Store(true)
	d.logger.Debug().Str("reason", reason).Msg("debug break raised")
}

// IsRaised tells whether a break is pending.
func (d *DebugBreakManager) IsRaised() bool {
	return d.raised.Load()
}

// Lower clears the break and tells whether one was pending.
func (d *DebugBreakManager) Lower() bool {
	return d.raised.Swap(false)
}

// Reason returns the reason given for the last break.
func (d *DebugBreakManager) Reason() string {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.reason
}
