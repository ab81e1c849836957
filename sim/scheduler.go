package sim

// Scheduler is what the kernel needs from the event-list engine that owns
// simulated time. Simulator is the reference implementation; hosts can plug in
// their own.
type Scheduler[T any] interface {
	Domain() TimeDomain[T]
	CurrentTime() T
	// ScheduleAt arranges for fn to run when simulated time reaches at. source
	// is the model the callback belongs to and may be nil.
	ScheduleAt(at T, source Model[T], fn func()) *Callback[T]
	// Cancel withdraws a callback by identity. Cancelling a callback that
	// already fired or was already cancelled is a no-op returning false.
	Cancel(cb *Callback[T]) bool
}

// Halter is implemented by schedulers that can stop a run when the kernel
// detects an inconsistency such as a causality violation.
type Halter interface {
	Halt(err error)
}

type callbackState uint8

const (
	callbackPending callbackState = iota
	callbackFired
	callbackCancelled
)

// Callback is a handle to one scheduled invocation. Handles are compared by
// pointer identity. Its state is owned by the Scheduler that created it.
type Callback[T any] struct {
	id     uint64
	at     T
	source string
	fn     func()
	state  callbackState
	index  int // heap position, -1 when not queued
}

// NewCallback creates a pending callback. Scheduler implementations outside
// this package use it together with Fire and MarkCancelled.
func NewCallback[T any](id uint64, at T, source string, fn func()) *Callback[T] {
	return &Callback[T]{id: id, at: at, source: source, fn: fn, index: -1}
}

func (c *Callback[T]) ID() uint64     { return c.id }
func (c *Callback[T]) At() T          { return c.at }
func (c *Callback[T]) Source() string { return c.source }

// Pending reports whether the callback has neither fired nor been cancelled.
func (c *Callback[T]) Pending() bool { return c.state == callbackPending }

// MarkCancelled moves a pending callback to the cancelled state. It returns
// false if the callback had already fired or been cancelled.
func (c *Callback[T]) MarkCancelled() bool {
	if c.state != callbackPending {
		return false
	}
	c.state = callbackCancelled
	return true
}

// Fire marks the callback as fired and runs it. A callback that is not
// pending is not run.
func (c *Callback[T]) Fire() {
	if c.state != callbackPending {
		return
	}
	c.state = callbackFired
	if c.fn != nil {
		c.fn()
	}
}

func sourceName[T any](m Model[T]) string {
	if m == nil {
		return "host"
	}
	return m.FullName()
}
