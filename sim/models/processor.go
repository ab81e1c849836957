package models

import (
	"fmt"

	"github.com/inference-sim/devs-sim/sim"
)

// ProcessorConfig controls service speed.
type ProcessorConfig struct {
	Rate float64 `yaml:"rate"` // work units per time unit; 0 means 1
}

func (c ProcessorConfig) Validate() error {
	if c.Rate < 0 {
		return fmt.Errorf("rate must be non-negative, got %v", c.Rate)
	}
	return nil
}

// Processor is a single FIFO server. Jobs arriving while it is busy wait in
// its queue; each job takes Size/Rate time units and leaves on "out".
type Processor[T any] struct {
	*sim.Atomic[T]

	In  *sim.InputPort[T, Job]
	Out *sim.OutputPort[T, Job]

	rate      float64
	busy      *sim.Phase[T]
	current   *Job
	queue     []Job
	processed int
	maxQueue  int
}

// NewProcessor creates an idle processor inside parent.
func NewProcessor[T any](name string, parent *sim.Coupled[T], cfg ProcessorConfig) (*Processor[T], error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("processor %s: %w", name, err)
	}
	p := &Processor[T]{rate: cfg.Rate}
	if p.rate == 0 {
		p.rate = 1
	}
	var zero T
	p.busy = sim.NewPhase("busy", zero)
	p.Atomic = sim.NewAtomic(name, parent, p, sim.NewPassivePhase[T]("idle"))
	var err error
	if p.In, err = sim.NewInputPort[T, Job](p, "in"); err != nil {
		return nil, err
	}
	if p.Out, err = sim.NewOutputPort[T, Job](p, "out"); err != nil {
		return nil, err
	}
	return p, nil
}

// Processed returns the number of completed jobs.
func (p *Processor[T]) Processed() int { return p.processed }

// QueueLen returns the number of waiting jobs, excluding the one in service.
func (p *Processor[T]) QueueLen() int { return len(p.queue) }

func (p *Processor[T]) serve(j Job) {
	p.current = &j
	p.busy.SetLifeTime(p.Scheduler().Domain().FromFloat(j.Size / p.rate))
	p.SetPhase(p.busy)
}

func (p *Processor[T]) InternalTransition() {
	p.processed++
	p.current = nil
	if len(p.queue) == 0 {
		p.SetPhase(sim.NewPassivePhase[T]("idle"))
		return
	}
	next := p.queue[0]
	p.queue = p.queue[1:]
	p.serve(next)
}

func (p *Processor[T]) ExternalTransition(elapsed T, _ sim.AnyInput[T], v any) {
	j := v.(Job)
	if p.current == nil {
		p.serve(j)
		return
	}
	p.queue = append(p.queue, j)
	p.maxQueue = max(p.maxQueue, len(p.queue))
	d := p.Scheduler().Domain()
	p.busy.SetLifeTime(d.Sub(p.TimeAdvance(), elapsed))
}

func (p *Processor[T]) Output() []sim.Message[T] {
	if p.current == nil {
		return nil
	}
	return []sim.Message[T]{p.Out.Message(*p.current)}
}

func (p *Processor[T]) Report() Report {
	return Report{Model: p.FullName(), Metrics: []Metric{
		{Name: "jobs_processed", Value: float64(p.processed)},
		{Name: "max_queue", Value: float64(p.maxQueue)},
	}}
}
