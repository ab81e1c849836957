package models

import "github.com/inference-sim/devs-sim/sim"

// Counter fires every Period and emits the running count on "count". Any
// value on "reset" zeroes the count without disturbing the period.
type Counter[T any] struct {
	*sim.Atomic[T]

	Reset *sim.InputPort[T, bool]
	Count *sim.OutputPort[T, int]

	period T
	count  int
}

// NewCounter creates a counter inside parent.
func NewCounter[T any](name string, parent *sim.Coupled[T], period T) (*Counter[T], error) {
	c := &Counter[T]{period: period}
	c.Atomic = sim.NewAtomic(name, parent, c, sim.NewPhase("idle", period))
	var err error
	if c.Reset, err = sim.NewInputPort[T, bool](c, "reset"); err != nil {
		return nil, err
	}
	if c.Count, err = sim.NewOutputPort[T, int](c, "count"); err != nil {
		return nil, err
	}
	return c, nil
}

// Value returns the number of firings since the last reset.
func (c *Counter[T]) Value() int { return c.count }

func (c *Counter[T]) InternalTransition() {
	c.count++
	c.Phase().SetLifeTime(c.period)
}

// ExternalTransition keeps the original deadline: the phase lifeTime becomes
// whatever remained of the period.
func (c *Counter[T]) ExternalTransition(elapsed T, _ sim.AnyInput[T], _ any) {
	c.count = 0
	d := c.Scheduler().Domain()
	c.Phase().SetLifeTime(d.Sub(c.TimeAdvance(), elapsed))
}

func (c *Counter[T]) Output() []sim.Message[T] {
	return []sim.Message[T]{c.Count.Message(c.count + 1)}
}

func (c *Counter[T]) Report() Report {
	return Report{Model: c.FullName(), Metrics: []Metric{{Name: "count", Value: float64(c.count)}}}
}
