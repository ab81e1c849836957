package models

import (
	"github.com/inference-sim/devs-sim/sim"
)

// GPTConfig configures the three parts of a GPT frame.
type GPTConfig struct {
	Generator  GeneratorConfig  `yaml:"generator"`
	Processor  ProcessorConfig  `yaml:"processor"`
	Transducer TransducerConfig `yaml:"transducer"`
}

// GPT couples a generator, a processor and a transducer:
//
//	genr.out  -> proc.in, transd.arrived
//	proc.out  -> transd.solved, gpt.out
//	transd.done -> genr.stop
//
// Completed jobs are also visible on the coupled model's "out" port.
type GPT[T any] struct {
	*sim.Coupled[T]

	Out *sim.OutputPort[T, Job]

	Generator  *Generator[T]
	Processor  *Processor[T]
	Transducer *Transducer[T]
}

// NewGPT builds a GPT frame inside parent.
func NewGPT[T any](name string, parent *sim.Coupled[T], cfg GPTConfig, rng *sim.PartitionedRNG) (*GPT[T], error) {
	g := &GPT[T]{Coupled: sim.NewCoupled(name, parent)}
	var err error
	if g.Out, err = sim.NewOutputPort[T, Job](g, "out"); err != nil {
		return nil, err
	}
	if g.Generator, err = NewGenerator("genr", g.Coupled, cfg.Generator, rng); err != nil {
		return nil, err
	}
	if g.Processor, err = NewProcessor("proc", g.Coupled, cfg.Processor); err != nil {
		return nil, err
	}
	if g.Transducer, err = NewTransducer("transd", g.Coupled, cfg.Transducer); err != nil {
		return nil, err
	}
	for _, couple := range []func() error{
		func() error { return sim.AddInternalCoupling(g.Coupled, g.Generator.Out, g.Processor.In) },
		func() error { return sim.AddInternalCoupling(g.Coupled, g.Generator.Out, g.Transducer.Arrived) },
		func() error { return sim.AddInternalCoupling(g.Coupled, g.Processor.Out, g.Transducer.Solved) },
		func() error { return sim.AddInternalCoupling(g.Coupled, g.Transducer.Done, g.Generator.Stop) },
		func() error { return sim.AddExternalOutputCoupling(g.Coupled, g.Processor.Out, g.Out) },
	} {
		if err := couple(); err != nil {
			return nil, err
		}
	}
	return g, nil
}

// Reports returns the reports of the three components.
func (g *GPT[T]) Reports() []Report {
	return []Report{g.Generator.Report(), g.Processor.Report(), g.Transducer.Report()}
}
