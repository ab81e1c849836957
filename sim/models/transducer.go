package models

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/inference-sim/devs-sim/sim"
)

// TransducerConfig sets the observation window.
type TransducerConfig struct {
	Observation float64 `yaml:"observation"`
}

func (c TransducerConfig) Validate() error {
	if c.Observation <= 0 || math.IsNaN(c.Observation) {
		return fmt.Errorf("observation must be positive, got %v", c.Observation)
	}
	return nil
}

// Transducer observes jobs entering ("arrived") and leaving ("solved") a
// system for a fixed window, then emits true on "done" and goes passive.
type Transducer[T any] struct {
	*sim.Atomic[T]

	Arrived *sim.InputPort[T, Job]
	Solved  *sim.InputPort[T, Job]
	Done    *sim.OutputPort[T, bool]

	window      float64
	arrivals    map[string]float64
	arrived     int
	turnarounds []float64
	finished    bool
}

// NewTransducer creates a transducer whose window starts now.
func NewTransducer[T any](name string, parent *sim.Coupled[T], cfg TransducerConfig) (*Transducer[T], error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("transducer %s: %w", name, err)
	}
	tr := &Transducer[T]{window: cfg.Observation, arrivals: make(map[string]float64)}
	d := parent.Scheduler().Domain()
	tr.Atomic = sim.NewAtomic(name, parent, tr, sim.NewPhase("observing", d.FromFloat(cfg.Observation)))
	var err error
	if tr.Arrived, err = sim.NewInputPort[T, Job](tr, "arrived"); err != nil {
		return nil, err
	}
	if tr.Solved, err = sim.NewInputPort[T, Job](tr, "solved"); err != nil {
		return nil, err
	}
	if tr.Done, err = sim.NewOutputPort[T, bool](tr, "done"); err != nil {
		return nil, err
	}
	return tr, nil
}

// Finished reports whether the observation window has closed.
func (tr *Transducer[T]) Finished() bool { return tr.finished }

func (tr *Transducer[T]) InternalTransition() {
	tr.finished = true
	tr.SetPhase(sim.NewPassivePhase[T]("done"))
}

func (tr *Transducer[T]) ExternalTransition(elapsed T, port sim.AnyInput[T], v any) {
	d := tr.Scheduler().Domain()
	if !tr.Passive() {
		tr.Phase().SetLifeTime(d.Sub(tr.TimeAdvance(), elapsed))
	}
	if tr.finished {
		return
	}
	now := d.Float(d.Add(tr.TimeLastEvent(), elapsed))
	j := v.(Job)
	switch port.Name() {
	case "arrived":
		tr.arrivals[j.ID] = now
		tr.arrived++
	case "solved":
		if at, ok := tr.arrivals[j.ID]; ok {
			tr.turnarounds = append(tr.turnarounds, now-at)
			delete(tr.arrivals, j.ID)
		}
	}
}

func (tr *Transducer[T]) Output() []sim.Message[T] {
	return []sim.Message[T]{tr.Done.Message(true)}
}

// Throughput is solved jobs per time unit over the window.
func (tr *Transducer[T]) Throughput() float64 {
	return float64(len(tr.turnarounds)) / tr.window
}

// Turnaround returns the mean and standard deviation of time in system for
// solved jobs. The deviation is zero with fewer than two samples.
func (tr *Transducer[T]) Turnaround() (mean, stdev float64) {
	switch len(tr.turnarounds) {
	case 0:
		return 0, 0
	case 1:
		return tr.turnarounds[0], 0
	}
	return stat.MeanStdDev(tr.turnarounds, nil)
}

// TurnaroundQuantile returns the empirical p-quantile of time in system.
func (tr *Transducer[T]) TurnaroundQuantile(p float64) float64 {
	if len(tr.turnarounds) == 0 {
		return 0
	}
	sorted := make([]float64, len(tr.turnarounds))
	copy(sorted, tr.turnarounds)
	sort.Float64s(sorted)
	return stat.Quantile(p, stat.Empirical, sorted, nil)
}

func (tr *Transducer[T]) Report() Report {
	mean, stdev := tr.Turnaround()
	return Report{Model: tr.FullName(), Metrics: []Metric{
		{Name: "jobs_arrived", Value: float64(tr.arrived)},
		{Name: "jobs_solved", Value: float64(len(tr.turnarounds))},
		{Name: "throughput", Value: tr.Throughput()},
		{Name: "turnaround_mean", Value: mean},
		{Name: "turnaround_stdev", Value: stdev},
		{Name: "turnaround_p90", Value: tr.TurnaroundQuantile(0.9)},
	}}
}
