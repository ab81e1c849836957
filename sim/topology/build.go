package topology

import (
	"fmt"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/inference-sim/devs-sim/sim"
	"github.com/inference-sim/devs-sim/sim/models"
)

// Network is a built topology: the root coupled model plus handles for
// reporting.
type Network struct {
	Root *sim.Coupled[float64]

	reporters []models.Reporter

	mu      sync.Mutex
	emitted map[string]int
}

// Reports collects the end-of-run report of every reporting model, in
// construction order.
func (n *Network) Reports() []models.Report {
	out := make([]models.Report, 0, len(n.reporters))
	for _, r := range n.reporters {
		out = append(out, r.Report())
	}
	return out
}

// Emitted returns how many values left the root model on the named output
// port.
func (n *Network) Emitted(port string) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.emitted[port]
}

func (n *Network) observe(port string) {
	n.mu.Lock()
	n.emitted[port]++
	n.mu.Unlock()
}

// Build validates spec and instantiates it on sched. Random streams for
// stochastic models are drawn from rng. Listeners are attached to the root
// before any child exists, so they also observe initial states.
func Build(spec *Spec, sched sim.Scheduler[float64], rng *sim.PartitionedRNG, listeners ...sim.StateListener[float64]) (*Network, error) {
	if err := spec.Validate(); err != nil {
		return nil, fmt.Errorf("invalid topology: %w", err)
	}
	n := &Network{
		Root:    sim.NewRootCoupled[float64](spec.Name, sched),
		emitted: make(map[string]int),
	}
	for _, l := range listeners {
		n.Root.AddListener(l)
	}
	b := &builder{net: n, rng: rng}
	if err := b.ports(n.Root, &spec.CoupledSpec, true); err != nil {
		return nil, err
	}
	if err := b.coupled(n.Root, &spec.CoupledSpec); err != nil {
		return nil, err
	}
	logrus.Infof("topology %s built: %d top-level models, %d couplings",
		spec.Name, len(n.Root.Children()), len(n.Root.Couplings()))
	for _, loop := range FeedbackLoops(n.Root) {
		logrus.Infof("feedback loop: %s", strings.Join(loop, " -> "))
	}
	return n, nil
}

type builder struct {
	net *Network
	rng *sim.PartitionedRNG
}

// ports creates the declared ports of c. Root outputs are observed so the
// host can report on them.
func (b *builder) ports(c *sim.Coupled[float64], cs *CoupledSpec, root bool) error {
	for _, p := range cs.Inputs {
		if err := newInput(c, p); err != nil {
			return err
		}
	}
	for _, p := range cs.Outputs {
		if err := b.newOutput(c, p, root); err != nil {
			return err
		}
	}
	return nil
}

func newInput(c *sim.Coupled[float64], p PortSpec) error {
	var err error
	switch p.Type {
	case "job":
		_, err = sim.NewInputPort[float64, models.Job](c, p.Name)
	case "int":
		_, err = sim.NewInputPort[float64, int](c, p.Name)
	case "bool":
		_, err = sim.NewInputPort[float64, bool](c, p.Name)
	default:
		err = fmt.Errorf("port %s: unknown type %q", p.Name, p.Type)
	}
	return err
}

func (b *builder) newOutput(c *sim.Coupled[float64], p PortSpec, root bool) error {
	name := p.Name
	switch p.Type {
	case "job":
		out, err := sim.NewOutputPort[float64, models.Job](c, name)
		if err == nil && root {
			out.AddSink(func(j models.Job, at float64) {
				logrus.Debugf("[t=%g] %s.%s: %s", at, c.Name(), name, j)
				b.net.observe(name)
			})
		}
		return err
	case "int":
		out, err := sim.NewOutputPort[float64, int](c, name)
		if err == nil && root {
			out.AddSink(func(v int, at float64) {
				logrus.Debugf("[t=%g] %s.%s: %d", at, c.Name(), name, v)
				b.net.observe(name)
			})
		}
		return err
	case "bool":
		out, err := sim.NewOutputPort[float64, bool](c, name)
		if err == nil && root {
			out.AddSink(func(v bool, at float64) {
				logrus.Debugf("[t=%g] %s.%s: %t", at, c.Name(), name, v)
				b.net.observe(name)
			})
		}
		return err
	}
	return fmt.Errorf("port %s: unknown type %q", name, p.Type)
}

// coupled builds the children of c, then its couplings.
func (b *builder) coupled(c *sim.Coupled[float64], cs *CoupledSpec) error {
	for i := range cs.Models {
		if err := b.model(c, &cs.Models[i]); err != nil {
			return err
		}
	}
	for _, cp := range cs.Couplings {
		from, err := endpoint(c, cp.From, true)
		if err != nil {
			return err
		}
		to, err := endpoint(c, cp.To, false)
		if err != nil {
			return err
		}
		if err := c.Couple(from, to); err != nil {
			return fmt.Errorf("coupling %s -> %s: %w", cp.From, cp.To, err)
		}
	}
	return nil
}

func (b *builder) model(parent *sim.Coupled[float64], m *ModelSpec) error {
	if m.Kind == "coupled" {
		c := sim.NewCoupled(m.Name, parent)
		if err := b.ports(c, &m.CoupledSpec, false); err != nil {
			return err
		}
		return b.coupled(c, &m.CoupledSpec)
	}

	cfg, err := m.params()
	if err != nil {
		return fmt.Errorf("%s: %w", m.Name, err)
	}
	var r models.Reporter
	switch p := cfg.(type) {
	case *CounterParams:
		r, err = models.NewCounter(m.Name, parent, p.Period)
	case *models.GeneratorConfig:
		r, err = models.NewGenerator(m.Name, parent, *p, b.rng)
	case *models.ProcessorConfig:
		r, err = models.NewProcessor(m.Name, parent, *p)
	case *models.TransducerConfig:
		r, err = models.NewTransducer(m.Name, parent, *p)
	case *gptParams:
		var g *models.GPT[float64]
		if g, err = models.NewGPT(m.Name, parent, models.GPTConfig(*p), b.rng); err == nil {
			b.net.reporters = append(b.net.reporters, g.Generator, g.Processor, g.Transducer)
		}
		return err
	default:
		return fmt.Errorf("%s: unsupported kind %q", m.Name, m.Kind)
	}
	if err != nil {
		return err
	}
	b.net.reporters = append(b.net.reporters, r)
	return nil
}

// endpoint resolves a coupling endpoint relative to c. Sources are a child's
// output or c's own input; destinations are a child's input or c's own
// output.
func endpoint(c *sim.Coupled[float64], ep string, source bool) (sim.Port[float64], error) {
	child, port, nested := strings.Cut(ep, ".")
	if !nested {
		if source {
			if p, ok := c.InputPort(ep); ok {
				return p, nil
			}
		} else if p, ok := c.OutputPort(ep); ok {
			return p, nil
		}
		return nil, fmt.Errorf("endpoint %q of %s: %w", ep, c.FullName(), sim.ErrPortNotFound)
	}
	m, ok := c.Child(child)
	if !ok {
		return nil, fmt.Errorf("endpoint %q of %s: %w", ep, c.FullName(), sim.ErrModelNotFound)
	}
	if source {
		if p, ok := m.OutputPort(port); ok {
			return p, nil
		}
	} else if p, ok := m.InputPort(port); ok {
		return p, nil
	}
	return nil, fmt.Errorf("endpoint %q of %s: %w", ep, c.FullName(), sim.ErrPortNotFound)
}
