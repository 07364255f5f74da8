package timing

import (
	"github.com/lockstep-sim/saturn/sim/hooking"
	"github.com/rs/zerolog"
)

// EventLogger is a hook that writes every fired event to a logger at debug
// level.
type EventLogger struct {
	logger zerolog.Logger
	names  func(UserID) string
}

// NewEventLogger returns a new EventLogger. The names function turns user IDs
// into readable names and may be nil.
func NewEventLogger(logger zerolog.Logger, names func(UserID) string) *EventLogger {
	h := new(EventLogger)

	h.logger = logger
	h.names = names

	return h
}

// Func writes the event information into the logger.
func (h *EventLogger) Func(ctx hooking.HookCtx) {
	if ctx.Pos != HookPosBeforeEvent {
		return
	}

	evt, ok := ctx.Item.(FiredEvent)
	if !ok {
		return
	}

	l := h.logger.Debug().
		Uint64("now", evt.Now).
		Uint32("event", uint32(evt.ID)).
		Uint32("user_id", uint32(evt.UserID)).
		Uint64("target", evt.Target)

	if h.names != nil {
		l = l.Str("name", h.names(evt.UserID))
	}

	l.Msg("event fired")
}
