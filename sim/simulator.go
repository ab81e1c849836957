// sim/simulator.go
package sim

import (
	"container/heap"
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// callbackQueue implements heap.Interface with deterministic ordering:
// exact time → scheduling sequence. The fuzzy Compare is not transitive and
// would let the clock run backwards.
type callbackQueue[T any] struct {
	domain TimeDomain[T]
	items  []*Callback[T]
}

func (q *callbackQueue[T]) Len() int { return len(q.items) }

func (q *callbackQueue[T]) Less(i, j int) bool {
	ci, cj := q.items[i], q.items[j]
	if q.domain.Before(ci.at, cj.at) {
		return true
	}
	if q.domain.Before(cj.at, ci.at) {
		return false
	}
	return ci.id < cj.id
}

func (q *callbackQueue[T]) Swap(i, j int) {
	q.items[i], q.items[j] = q.items[j], q.items[i]
	q.items[i].index = i
	q.items[j].index = j
}

func (q *callbackQueue[T]) Push(x any) {
	cb := x.(*Callback[T])
	cb.index = len(q.items)
	q.items = append(q.items, cb)
}

func (q *callbackQueue[T]) Pop() any {
	old := q.items
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	item.index = -1
	q.items = old[0 : n-1]
	return item
}

// Simulator is the reference event-list scheduler: it owns the simulation
// clock and runs scheduled callbacks in time order. It is safe to schedule and
// cancel from several goroutines; callbacks themselves run on the goroutine
// calling Run or Step.
type Simulator[T any] struct {
	// RunID tags every log line of this run.
	RunID string

	domain    TimeDomain[T]
	mu        sync.Mutex
	clock     T
	queue     callbackQueue[T]
	seq       uint64
	processed int64
	halted    error
}

// NewSimulator creates a simulator whose clock starts at the domain's zero.
func NewSimulator[T any](domain TimeDomain[T]) *Simulator[T] {
	return NewSimulatorAt(domain, domain.Zero())
}

// NewSimulatorAt creates a simulator whose clock starts at start.
func NewSimulatorAt[T any](domain TimeDomain[T], start T) *Simulator[T] {
	s := &Simulator[T]{
		RunID:  uuid.NewString(),
		domain: domain,
		clock:  start,
		queue:  callbackQueue[T]{domain: domain, items: make([]*Callback[T], 0)},
	}
	heap.Init(&s.queue)
	return s
}

func (s *Simulator[T]) Domain() TimeDomain[T] { return s.domain }

func (s *Simulator[T]) CurrentTime() T {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.clock
}

// ScheduleAt queues fn at time at. Requests in the past are clamped to the
// current time and logged.
func (s *Simulator[T]) ScheduleAt(at T, source Model[T], fn func()) *Callback[T] {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pushLocked(s.clampLocked(at, source), source, fn)
}

func (s *Simulator[T]) clampLocked(at T, source Model[T]) T {
	if !s.domain.Before(at, s.clock) {
		return at
	}
	logrus.WithFields(logrus.Fields{
		"run":    s.RunID,
		"source": sourceName(source),
		"at":     s.domain.Float(at),
		"clock":  s.domain.Float(s.clock),
	}).Warn("callback scheduled in the past; clamping to current time")
	return s.clock
}

func (s *Simulator[T]) pushLocked(at T, source Model[T], fn func()) *Callback[T] {
	s.seq++
	cb := NewCallback(s.seq, at, sourceName(source), fn)
	heap.Push(&s.queue, cb)
	return cb
}

func (s *Simulator[T]) Cancel(cb *Callback[T]) bool {
	if cb == nil {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if !cb.MarkCancelled() {
		return false
	}
	if cb.index >= 0 && cb.index < len(s.queue.items) && s.queue.items[cb.index] == cb {
		heap.Remove(&s.queue, cb.index)
	}
	return true
}

// Inject schedules delivery of value to an input port at time at. A time in
// the past is clamped to the current time, and the value is delivered with
// the clamped timestamp. Delivery errors are logged; a causality violation
// also halts the run.
func (s *Simulator[T]) Inject(port AnyInput[T], value any, at T) *Callback[T] {
	s.mu.Lock()
	defer s.mu.Unlock()
	at = s.clampLocked(at, nil)
	return s.pushLocked(at, nil, func() {
		if err := port.ReceiveAny(value, at); err != nil {
			logrus.WithFields(logrus.Fields{
				"run":  s.RunID,
				"port": port.FullName(),
				"at":   s.domain.Float(at),
			}).Errorf("injected input failed: %v", err)
		}
	})
}

// Halt stops Run at the next callback boundary. The first error wins.
func (s *Simulator[T]) Halt(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.halted == nil {
		s.halted = err
	}
}

// Halted returns the error passed to Halt, if any.
func (s *Simulator[T]) Halted() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.halted
}

// Pending returns the number of queued callbacks.
func (s *Simulator[T]) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queue.Len()
}

// Processed returns the number of callbacks executed so far.
func (s *Simulator[T]) Processed() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.processed
}

// NextTime returns the time of the earliest queued callback.
func (s *Simulator[T]) NextTime() (T, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.queue.Len() == 0 {
		var zero T
		return zero, false
	}
	return s.queue.items[0].at, true
}

// Step runs the earliest queued callback. It reports false when the queue is
// empty. A panic raised by the callback is recovered, halts the simulator and
// is returned as an error.
func (s *Simulator[T]) Step() (ran bool, err error) {
	s.mu.Lock()
	if s.queue.Len() == 0 {
		s.mu.Unlock()
		return false, nil
	}
	cb := heap.Pop(&s.queue).(*Callback[T])
	s.clock = cb.at
	cb.state = callbackFired
	s.processed++
	s.mu.Unlock()

	logrus.Debugf("[t=%g] executing callback %d from %s", s.domain.Float(cb.at), cb.id, cb.source)
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("callback %d from %s panicked at t=%g: %v", cb.id, cb.source, s.domain.Float(cb.at), r)
			s.Halt(err)
		}
	}()
	if cb.fn != nil {
		cb.fn()
	}
	return true, nil
}

// Run executes callbacks in time order until the queue drains, the next
// callback lies beyond horizon, ctx is cancelled, or the run is halted.
func (s *Simulator[T]) Run(ctx context.Context, horizon T) error {
	logrus.WithField("run", s.RunID).Infof("[t=%g] simulation started, horizon=%g",
		s.domain.Float(s.CurrentTime()), s.domain.Float(horizon))
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := s.Halted(); err != nil {
			logrus.WithField("run", s.RunID).Errorf("[t=%g] simulation halted: %v", s.domain.Float(s.CurrentTime()), err)
			return err
		}
		next, ok := s.NextTime()
		if !ok || s.domain.Compare(next, horizon) == Greater {
			break
		}
		if _, err := s.Step(); err != nil {
			return err
		}
	}
	if err := s.Halted(); err != nil {
		return err
	}
	logrus.WithField("run", s.RunID).Infof("[t=%g] simulation ended after %d callbacks",
		s.domain.Float(s.CurrentTime()), s.Processed())
	return nil
}
