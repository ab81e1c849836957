package models

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/inference-sim/devs-sim/sim"
)

// ValidDistributions is the set of recognized interarrival distributions.
var ValidDistributions = map[string]bool{"": true, "constant": true, "exponential": true}

// GeneratorConfig controls job arrivals and job sizes.
type GeneratorConfig struct {
	Interarrival float64 `yaml:"interarrival"` // mean time between jobs
	Distribution string  `yaml:"distribution"` // constant (default) or exponential
	SizeMean     float64 `yaml:"size_mean"`
	SizeStdev    float64 `yaml:"size_stdev"`
	SizeMin      float64 `yaml:"size_min"`
	SizeMax      float64 `yaml:"size_max"`
	MaxJobs      int     `yaml:"max_jobs"` // 0 means unlimited
}

// Validate checks distribution names and parameter ranges.
func (c GeneratorConfig) Validate() error {
	if c.Interarrival <= 0 || math.IsInf(c.Interarrival, 0) || math.IsNaN(c.Interarrival) {
		return fmt.Errorf("interarrival must be a positive finite number, got %v", c.Interarrival)
	}
	if !ValidDistributions[c.Distribution] {
		return fmt.Errorf("unknown distribution %q", c.Distribution)
	}
	if c.SizeMean <= 0 {
		return fmt.Errorf("size_mean must be positive, got %v", c.SizeMean)
	}
	if c.SizeStdev < 0 {
		return fmt.Errorf("size_stdev must be non-negative, got %v", c.SizeStdev)
	}
	if c.SizeMax > 0 && c.SizeMin > c.SizeMax {
		return fmt.Errorf("size_min %v exceeds size_max %v", c.SizeMin, c.SizeMax)
	}
	if c.MaxJobs < 0 {
		return fmt.Errorf("max_jobs must be non-negative, got %d", c.MaxJobs)
	}
	return nil
}

// Generator emits jobs on "out" until MaxJobs is reached or any value
// arrives on "stop". The first job leaves one interarrival time after
// construction.
type Generator[T any] struct {
	*sim.Atomic[T]

	Stop *sim.InputPort[T, bool]
	Out  *sim.OutputPort[T, Job]

	cfg  GeneratorConfig
	rng  *rand.Rand
	next Job
	sent int
}

// NewGenerator creates a generator inside parent. Its random stream is drawn
// from rng under the generator's full name.
func NewGenerator[T any](name string, parent *sim.Coupled[T], cfg GeneratorConfig, rng *sim.PartitionedRNG) (*Generator[T], error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("generator %s: %w", name, err)
	}
	g := &Generator[T]{
		cfg: cfg,
		rng: rng.ForStream(parent.FullName() + "." + name),
	}
	ia := g.prepare(parent.Scheduler().CurrentTime(), parent.Scheduler().Domain())
	g.Atomic = sim.NewAtomic(name, parent, g, sim.NewPhase("active", ia))
	var err error
	if g.Stop, err = sim.NewInputPort[T, bool](g, "stop"); err != nil {
		return nil, err
	}
	if g.Out, err = sim.NewOutputPort[T, Job](g, "out"); err != nil {
		return nil, err
	}
	return g, nil
}

// Sent returns the number of jobs emitted so far.
func (g *Generator[T]) Sent() int { return g.sent }

// prepare draws the next job and returns the delay until it is emitted.
func (g *Generator[T]) prepare(now T, d sim.TimeDomain[T]) T {
	ia := g.interarrival()
	id, err := uuid.NewRandomFromReader(g.rng)
	if err != nil {
		// rand.Rand never fails to read
		panic(err)
	}
	delay := d.FromFloat(ia)
	g.next = Job{
		ID:        id.String(),
		Size:      g.size(),
		CreatedAt: d.Float(d.Add(now, delay)),
	}
	return delay
}

func (g *Generator[T]) interarrival() float64 {
	if g.cfg.Distribution == "exponential" {
		return g.rng.ExpFloat64() * g.cfg.Interarrival
	}
	return g.cfg.Interarrival
}

// size samples a Gaussian job size clamped to [SizeMin, SizeMax].
func (g *Generator[T]) size() float64 {
	v := g.cfg.SizeMean
	if g.cfg.SizeStdev > 0 {
		v += g.rng.NormFloat64() * g.cfg.SizeStdev
	}
	if g.cfg.SizeMax > 0 {
		v = math.Min(g.cfg.SizeMax, v)
	}
	v = math.Max(g.cfg.SizeMin, v)
	if v <= 0 {
		v = g.cfg.SizeMean
	}
	return v
}

func (g *Generator[T]) InternalTransition() {
	g.sent++
	if g.cfg.MaxJobs > 0 && g.sent >= g.cfg.MaxJobs {
		logrus.Debugf("generator %s: sent %d jobs, stopping", g.FullName(), g.sent)
		g.SetPhase(sim.NewPassivePhase[T]("stopped"))
		return
	}
	s := g.Scheduler()
	g.Phase().SetLifeTime(g.prepare(s.CurrentTime(), s.Domain()))
}

func (g *Generator[T]) ExternalTransition(_ T, _ sim.AnyInput[T], _ any) {
	logrus.Debugf("generator %s: stop received after %d jobs", g.FullName(), g.sent)
	g.SetPhase(sim.NewPassivePhase[T]("stopped"))
}

func (g *Generator[T]) Output() []sim.Message[T] {
	return []sim.Message[T]{g.Out.Message(g.next)}
}

func (g *Generator[T]) Report() Report {
	return Report{Model: g.FullName(), Metrics: []Metric{{Name: "jobs_sent", Value: float64(g.sent)}}}
}
