package sim

import "github.com/inference-sim/devs-sim/sim/trace"

// TransitionKind names the transition that produced a StateUpdate.
type TransitionKind string

const (
	TransitionInit      TransitionKind = "init"
	TransitionInternal  TransitionKind = "internal"
	TransitionExternal  TransitionKind = "external"
	TransitionConfluent TransitionKind = "confluent"
)

// StateUpdate describes one applied transition of an atomic model.
type StateUpdate[T any] struct {
	Model    string // full name
	Phase    string // phase after the transition
	Kind     TransitionKind
	Time     T
	Elapsed  T      // zero for internal transitions
	Port     string // input port name for external and confluent transitions
	TimeNext T      // scheduled time of the next internal transition
}

// StateListener observes state updates. Listeners run while the model's
// serialization token is held and must not deliver input to that model.
type StateListener[T any] interface {
	OnStateUpdate(u StateUpdate[T])
}

// ListenerFunc adapts a function to StateListener.
type ListenerFunc[T any] func(u StateUpdate[T])

func (f ListenerFunc[T]) OnStateUpdate(u StateUpdate[T]) { f(u) }

// TraceListener records every state update into a trace.SimulationTrace.
type TraceListener[T any] struct {
	trace  *trace.SimulationTrace
	domain TimeDomain[T]
}

// NewTraceListener returns a listener that appends to st, converting times
// with d.
func NewTraceListener[T any](st *trace.SimulationTrace, d TimeDomain[T]) *TraceListener[T] {
	return &TraceListener[T]{trace: st, domain: d}
}

func (l *TraceListener[T]) OnStateUpdate(u StateUpdate[T]) {
	l.trace.RecordTransition(trace.TransitionRecord{
		Model:    u.Model,
		Phase:    u.Phase,
		Kind:     string(u.Kind),
		Clock:    l.domain.Float(u.Time),
		Elapsed:  l.domain.Float(u.Elapsed),
		Port:     u.Port,
		TimeNext: l.domain.Float(u.TimeNext),
	})
}
