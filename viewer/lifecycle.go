package viewer

import (
	"github.com/felixgeelhaar/statekit"

	"github.com/yinliguo/pdf-viewer/observability"
)

// The viewer's coarse lifecycle is a statechart: created → opening → ready,
// with failed for open/configuration errors and destroyed as the single
// terminal state. Page-level render states are deliberately not modeled
// here; they live in Page, where in-flight guards are per-call conditions.

const (
	stateCreated   statekit.StateID = "created"
	stateOpening   statekit.StateID = "opening"
	stateReady     statekit.StateID = "ready"
	stateFailed    statekit.StateID = "failed"
	stateDestroyed statekit.StateID = "destroyed"
)

const (
	lcOpen    = "OPEN"
	lcReady   = "READY"
	lcFail    = "FAIL"
	lcDestroy = "DESTROY"
)

// lifecycleCtx carries the owning viewer into statechart actions.
type lifecycleCtx struct {
	v *Viewer
}

func logLifecycleEvent(ctx **lifecycleCtx, event statekit.Event) {
	if ctx == nil || *ctx == nil || (*ctx).v == nil {
		return
	}
	(*ctx).v.logger.Debug("lifecycle transition", observability.String("event", string(event.Type)))
}

func newLifecycle(v *Viewer) (*statekit.Interpreter[*lifecycleCtx], error) {
	machine, err := statekit.NewMachine[*lifecycleCtx]("viewer").
		WithInitial(stateCreated).
		WithContext(&lifecycleCtx{}).
		WithAction("logEvent", logLifecycleEvent).
		State(stateCreated).
			On(lcOpen).Target(stateOpening).Do("logEvent").
			On(lcFail).Target(stateFailed).Do("logEvent").
			On(lcDestroy).Target(stateDestroyed).Do("logEvent").
			Done().
		State(stateOpening).
			On(lcReady).Target(stateReady).Do("logEvent").
			On(lcFail).Target(stateFailed).Do("logEvent").
			On(lcDestroy).Target(stateDestroyed).Do("logEvent").
			Done().
		State(stateReady).
			On(lcDestroy).Target(stateDestroyed).Do("logEvent").
			Done().
		State(stateFailed).
			On(lcDestroy).Target(stateDestroyed).Do("logEvent").
			Done().
		State(stateDestroyed).
			Final().
			Done().
		Build()
	if err != nil {
		return nil, err
	}
	interp := statekit.NewInterpreter(machine)
	interp.UpdateContext(func(c **lifecycleCtx) {
		*c = &lifecycleCtx{v: v}
	})
	interp.Start()
	return interp, nil
}

// lcTransitions mirrors the machine definition so events invalid for the
// current state can be dropped before Send.
var lcTransitions = map[statekit.StateID][]string{
	stateCreated: {lcOpen, lcFail, lcDestroy},
	stateOpening: {lcReady, lcFail, lcDestroy},
	stateReady:   {lcDestroy},
	stateFailed:  {lcDestroy},
}

// lcSend advances the lifecycle machine. Events invalid for the current
// state are ignored; the machine is advisory, the scheduler state is
// authoritative for correctness.
func (v *Viewer) lcSend(event string) {
	if v.lc == nil || v.lc.Done() {
		return
	}
	cur := statekit.StateID(v.lc.State().Value)
	for _, allowed := range lcTransitions[cur] {
		if allowed == event {
			v.lc.Send(statekit.Event{Type: statekit.EventType(event)})
			return
		}
	}
}

// ready reports whether the viewer reached the ready state and is not
// destroyed.
func (v *Viewer) ready() bool {
	return v.lc != nil && v.lc.Matches(stateReady) && !v.destroyed
}
