package tracing

import (
	"fmt"
	"reflect"

	"github.com/lockstep-sim/saturn/sim/hooking"
	"github.com/lockstep-sim/saturn/sim/timing"
)

// CollectTrace lets the tracer collect the event firings of a scheduler, or
// of anything else that invokes hooks with timing.FiredEvent items.
func CollectTrace(domain hooking.Hookable, tracer Tracer) {
	for _, hook := range domain.Hooks() {
		hook, ok := hook.(*traceHook)
		if ok && hook.t == tracer {
			panic(fmt.Sprintf("tracing: domain already has tracer %s",
				reflect.TypeOf(tracer)))
		}
	}

	domain.AcceptHook(&traceHook{t: tracer})
}

type traceHook struct {
	t Tracer
}

// Func forwards completed firings to the tracer.
func (h *traceHook) Func(ctx hooking.HookCtx) {
	if ctx.Pos != timing.HookPosAfterEvent {
		return
	}

	evt, ok := ctx.Item.(timing.FiredEvent)
	if !ok {
		return
	}

	h.t.RecordEvent(evt)
}
