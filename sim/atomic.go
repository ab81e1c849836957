package sim

import (
	"sync"

	"github.com/sirupsen/logrus"
)

// Behavior is the user-supplied part of an atomic model: the DEVS transition
// and output functions. The kernel calls them while holding the model's
// serialization token, so they may read and write model state freely but must
// not deliver input to their own model.
type Behavior[T any] interface {
	// InternalTransition fires when the current phase's lifeTime elapses with
	// no intervening input.
	InternalTransition()
	// ExternalTransition handles input arriving strictly before the scheduled
	// internal transition. elapsed is the time spent in the current phase.
	ExternalTransition(elapsed T, port AnyInput[T], value any)
	// Output is λ. It runs immediately before every internal transition,
	// including the internal half of a confluent transition.
	Output() []Message[T]
}

// ConfluentBehavior lets a model override how a tie between an external event
// and its scheduled internal transition is resolved.
type ConfluentBehavior[T any] interface {
	ConfluentTransition(elapsed T, port AnyInput[T], value any)
}

// ConflictStrategy picks the order of the default confluent transition.
type ConflictStrategy int

const (
	// InternalFirst applies InternalTransition, then ExternalTransition with
	// zero elapsed time.
	InternalFirst ConflictStrategy = iota
	// ExternalFirst applies ExternalTransition with the full elapsed time,
	// then InternalTransition.
	ExternalFirst
)

// Atomic is a leaf DEVS model. User models embed *Atomic and pass themselves
// as the Behavior:
//
//	c := &Counter{}
//	c.Atomic = sim.NewAtomic("counter", parent, c, sim.NewPhase("idle", 1.0))
//
// The initial phase is scheduled as soon as the model is constructed.
type Atomic[T any] struct {
	modelBase[T]

	behavior Behavior[T]
	strategy ConflictStrategy

	// token serializes every transition of this model.
	token         sync.Mutex
	phase         *Phase[T]
	timeLastEvent T
	activePort    AnyInput[T]
	conflict      bool
	pending       *Callback[T]
}

// NewAtomic creates an atomic model inside parent. It panics if parent, b or
// initial is nil.
func NewAtomic[T any](name string, parent *Coupled[T], b Behavior[T], initial *Phase[T]) *Atomic[T] {
	if parent == nil {
		panic("sim: NewAtomic requires a parent; use NewRootAtomic for a root model")
	}
	a := newAtomic(name, parent, parent.Scheduler(), b, initial)
	if err := parent.AddModelComponent(a); err != nil {
		panic(err)
	}
	a.start()
	return a
}

// NewRootAtomic creates an atomic model with no parent. Its outputs are only
// visible through output port sinks.
func NewRootAtomic[T any](name string, sched Scheduler[T], b Behavior[T], initial *Phase[T]) *Atomic[T] {
	if sched == nil {
		panic("sim: NewRootAtomic requires a scheduler")
	}
	a := newAtomic(name, nil, sched, b, initial)
	a.start()
	return a
}

func newAtomic[T any](name string, parent *Coupled[T], sched Scheduler[T], b Behavior[T], initial *Phase[T]) *Atomic[T] {
	if b == nil {
		panic("sim: atomic model " + name + " has no behavior")
	}
	if initial == nil {
		panic("sim: atomic model " + name + " has no initial phase")
	}
	a := &Atomic[T]{behavior: b, phase: initial}
	a.init(name, parent, sched, a)
	return a
}

func (a *Atomic[T]) start() {
	a.token.Lock()
	defer a.token.Unlock()
	now := a.sched.CurrentTime()
	a.timeLastEvent = now
	a.arm(now)
	a.notify(TransitionInit, now, a.domain().Zero(), "")
}

func (a *Atomic[T]) IsAtomic() bool { return true }

// SetConflictStrategy selects the order of the default confluent transition.
func (a *Atomic[T]) SetConflictStrategy(s ConflictStrategy) { a.strategy = s }

// The accessors below read transition state without taking the token. Call
// them from the model's own transition functions, or while no event for the
// model is in flight.

// Phase returns the current phase.
func (a *Atomic[T]) Phase() *Phase[T] { return a.phase }

// SetPhase replaces the current phase. Called from transition functions; the
// kernel re-arms the internal transition from the new phase afterwards.
func (a *Atomic[T]) SetPhase(p *Phase[T]) {
	if p == nil {
		panic("sim: SetPhase(nil) on " + a.FullName())
	}
	a.phase = p
}

// TimeAdvance returns the current phase's lifeTime, or the domain's infinity
// when the phase is passive.
func (a *Atomic[T]) TimeAdvance() T { return a.phase.timeAdvance(a.domain()) }

// Passive reports whether the model has no scheduled internal transition.
func (a *Atomic[T]) Passive() bool { return a.domain().IsInfinite(a.TimeAdvance()) }

func (a *Atomic[T]) TimeLastEvent() T { return a.timeLastEvent }

// TimeNext returns the time of the next scheduled internal transition.
func (a *Atomic[T]) TimeNext() T { return a.domain().Add(a.timeLastEvent, a.TimeAdvance()) }

// ActivePort returns the input port currently being serviced, or nil.
func (a *Atomic[T]) ActivePort() AnyInput[T] { return a.activePort }

// Conflict reports whether the last input coincided with the scheduled
// internal transition.
func (a *Atomic[T]) Conflict() bool { return a.conflict }

// AddListener registers l for this model's state updates.
func (a *Atomic[T]) AddListener(l StateListener[T]) { a.addListener(l) }

// arm schedules the next internal transition from now. The token is held.
func (a *Atomic[T]) arm(now T) {
	ta := a.TimeAdvance()
	if a.domain().IsInfinite(ta) {
		return
	}
	// slot is read under the token; a callback dispatched before ScheduleAt
	// returns waits for the assignment.
	slot := new(*Callback[T])
	*slot = a.sched.ScheduleAt(a.domain().Add(now, ta), a, func() { a.fire(slot) })
	a.pending = *slot
}

// disarm cancels the scheduled internal transition, if any. The token is held.
func (a *Atomic[T]) disarm() {
	if a.pending == nil {
		return
	}
	a.sched.Cancel(a.pending)
	a.pending = nil
}

func (a *Atomic[T]) notify(kind TransitionKind, at, elapsed T, port string) {
	listeners := a.Listeners()
	if len(listeners) == 0 {
		return
	}
	u := StateUpdate[T]{
		Model:    a.FullName(),
		Phase:    a.phase.Name(),
		Kind:     kind,
		Time:     at,
		Elapsed:  elapsed,
		Port:     port,
		TimeNext: a.TimeNext(),
	}
	for _, l := range listeners {
		l.OnStateUpdate(u)
	}
}

// fire runs the internal transition whose handle arm stored in slot. Stale
// callbacks, whose transition was pre-empted by input, are ignored.
func (a *Atomic[T]) fire(slot **Callback[T]) {
	out, ok := a.internal(slot)
	if ok {
		a.emit(out)
	}
}

func (a *Atomic[T]) internal(slot **Callback[T]) ([]Message[T], bool) {
	a.token.Lock()
	defer a.token.Unlock()
	if *slot == nil || a.pending != *slot || a.Removed() {
		return nil, false
	}
	a.pending = nil
	now := a.sched.CurrentTime()

	out := a.behavior.Output()
	a.behavior.InternalTransition()

	a.timeLastEvent = now
	a.conflict = false
	a.arm(now)
	a.notify(TransitionInternal, now, a.domain().Zero(), "")
	return out, true
}

// receive implements external-event admission for input arriving on port at
// time at. The token is held for the classification, the transition and the
// re-arming; λ output is delivered after it is released so that couplings
// looping back to this model cannot deadlock.
func (a *Atomic[T]) receive(port AnyInput[T], value any, at T) error {
	out, err := a.admit(port, value, at)
	if err != nil {
		return err
	}
	a.emit(out)
	return nil
}

func (a *Atomic[T]) admit(port AnyInput[T], value any, at T) ([]Message[T], error) {
	a.token.Lock()
	defer a.token.Unlock()
	if a.Removed() {
		return nil, ErrModelRemoved
	}
	a.activePort = port
	defer func() { a.activePort = nil }()

	d := a.domain()
	elapsed := d.Sub(at, a.timeLastEvent)
	ta := a.TimeAdvance()
	if d.Compare(elapsed, ta) == Greater || d.Compare(elapsed, d.Zero()) == Less {
		return nil, a.violation(at, elapsed, ta)
	}

	a.conflict = d.Compare(elapsed, ta) == Equal && d.Compare(elapsed, d.Zero()) == Greater
	// Whatever was scheduled is about to be invalidated by the transition.
	a.disarm()

	var out []Message[T]
	kind := TransitionExternal
	if a.conflict {
		kind = TransitionConfluent
		out = a.behavior.Output()
		a.confluent(at, elapsed, port, value)
	} else {
		a.behavior.ExternalTransition(elapsed, port, value)
	}

	a.timeLastEvent = at
	a.arm(at)
	a.notify(kind, at, elapsed, port.Name())
	return out, nil
}

// confluent resolves a tie. The internal half of the internal-first default
// completes at time at, which TimeLastEvent reports during the external half.
func (a *Atomic[T]) confluent(at, elapsed T, port AnyInput[T], value any) {
	if c, ok := a.behavior.(ConfluentBehavior[T]); ok {
		c.ConfluentTransition(elapsed, port, value)
		return
	}
	if a.strategy == ExternalFirst {
		a.behavior.ExternalTransition(elapsed, port, value)
		a.behavior.InternalTransition()
		return
	}
	a.behavior.InternalTransition()
	a.timeLastEvent = at
	a.behavior.ExternalTransition(a.domain().Zero(), port, value)
}

func (a *Atomic[T]) violation(at, elapsed, ta T) error {
	d := a.domain()
	err := &CausalityError{
		Model:         a.FullName(),
		Time:          d.Float(at),
		TimeLastEvent: d.Float(a.timeLastEvent),
		Elapsed:       d.Float(elapsed),
		TimeAdvance:   d.Float(ta),
	}
	logrus.WithFields(logrus.Fields{
		"model":         err.Model,
		"time":          err.Time,
		"timeLastEvent": err.TimeLastEvent,
		"elapsed":       err.Elapsed,
		"timeAdvance":   err.TimeAdvance,
	}).Error("causality violation: event rejected, model state unchanged")
	if h, ok := a.sched.(Halter); ok {
		h.Halt(err)
	}
	return err
}

// emit delivers λ output through this model's output ports.
func (a *Atomic[T]) emit(out []Message[T]) {
	for _, msg := range out {
		if msg.Port == nil || msg.Port.Model() != Model[T](a) {
			logrus.Errorf("output of %s dropped: port %v does not belong to the model", a.FullName(), msg.Port)
			continue
		}
		if err := msg.Port.SendAny(msg.Value); err != nil {
			logrus.WithFields(logrus.Fields{
				"model": a.FullName(),
				"port":  msg.Port.Name(),
			}).Errorf("output delivery failed: %v", err)
		}
	}
}

func (a *Atomic[T]) detach() {
	a.token.Lock()
	defer a.token.Unlock()
	a.removed.Store(true)
	a.disarm()
}
