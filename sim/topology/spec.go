// Package topology loads model hierarchies from YAML and builds them on the
// sim kernel with float64 time.
package topology

import (
	"fmt"
	"math"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/inference-sim/devs-sim/sim/models"
)

// Spec is a complete simulation description, loadable from a YAML file.
// The root coupled model's ports, children and couplings sit at the top level.
type Spec struct {
	Name    string  `yaml:"name"`
	Seed    int64   `yaml:"seed"`
	Horizon float64 `yaml:"horizon"` // 0 means run until no events remain

	CoupledSpec `yaml:",inline"`
}

// CoupledSpec holds the structure of one coupled model.
type CoupledSpec struct {
	Inputs    []PortSpec     `yaml:"inputs"`
	Outputs   []PortSpec     `yaml:"outputs"`
	Models    []ModelSpec    `yaml:"models"`
	Couplings []CouplingSpec `yaml:"couplings"`
}

// ModelSpec declares one child. Params is decoded according to Kind; the
// embedded CoupledSpec is only meaningful for kind "coupled".
type ModelSpec struct {
	Name   string    `yaml:"name"`
	Kind   string    `yaml:"kind"`
	Params yaml.Node `yaml:"params"`

	CoupledSpec `yaml:",inline"`
}

// PortSpec declares a port of a coupled model.
type PortSpec struct {
	Name string `yaml:"name"`
	Type string `yaml:"type"`
}

// CouplingSpec connects two endpoints. An endpoint is "child.port" for a
// child's port or a bare "port" for the enclosing model's own port.
type CouplingSpec struct {
	From string `yaml:"from"`
	To   string `yaml:"to"`
}

// CounterParams configures a models.Counter.
type CounterParams struct {
	Period float64 `yaml:"period"`
}

func (p CounterParams) Validate() error {
	if p.Period <= 0 || math.IsNaN(p.Period) {
		return fmt.Errorf("period must be positive, got %v", p.Period)
	}
	return nil
}

// ValidKinds is the set of recognized model kinds.
var ValidKinds = map[string]bool{
	"coupled": true, "counter": true, "generator": true,
	"processor": true, "transducer": true, "gpt": true,
}

// ValidPortTypes is the set of recognized payload type names for coupled
// model ports.
var ValidPortTypes = map[string]bool{"job": true, "int": true, "bool": true}

// LoadSpec reads and parses a YAML topology file.
func LoadSpec(path string) (*Spec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading topology: %w", err)
	}
	var spec Spec
	if err := yaml.Unmarshal(data, &spec); err != nil {
		return nil, fmt.Errorf("parsing topology: %w", err)
	}
	return &spec, nil
}

// Validate checks names, kinds, parameters and coupling endpoints. Payload
// compatibility is checked when the topology is built.
func (s *Spec) Validate() error {
	if s.Name == "" {
		return fmt.Errorf("topology name is required")
	}
	if strings.Contains(s.Name, ".") {
		return fmt.Errorf("topology name %q must not contain '.'", s.Name)
	}
	if s.Horizon < 0 || math.IsNaN(s.Horizon) {
		return fmt.Errorf("horizon must be non-negative, got %v", s.Horizon)
	}
	return s.CoupledSpec.validate(s.Name)
}

func (c *CoupledSpec) validate(path string) error {
	ports := make(map[string]bool)
	for _, group := range [][]PortSpec{c.Inputs, c.Outputs} {
		seen := make(map[string]bool)
		for _, p := range group {
			if p.Name == "" || strings.Contains(p.Name, ".") {
				return fmt.Errorf("%s: invalid port name %q", path, p.Name)
			}
			if seen[p.Name] {
				return fmt.Errorf("%s: duplicate port %q", path, p.Name)
			}
			if !ValidPortTypes[p.Type] {
				return fmt.Errorf("%s: port %q has unknown type %q", path, p.Name, p.Type)
			}
			seen[p.Name] = true
			ports[p.Name] = true
		}
	}

	children := make(map[string]bool)
	for i := range c.Models {
		m := &c.Models[i]
		if m.Name == "" || strings.Contains(m.Name, ".") {
			return fmt.Errorf("%s: invalid model name %q", path, m.Name)
		}
		if children[m.Name] {
			return fmt.Errorf("%s: duplicate model %q", path, m.Name)
		}
		children[m.Name] = true
		if err := m.validate(path + "." + m.Name); err != nil {
			return err
		}
	}

	for _, cp := range c.Couplings {
		for _, ep := range []string{cp.From, cp.To} {
			child, port, nested := strings.Cut(ep, ".")
			switch {
			case ep == "":
				return fmt.Errorf("%s: empty coupling endpoint", path)
			case nested && !children[child]:
				return fmt.Errorf("%s: coupling endpoint %q names unknown model %q", path, ep, child)
			case nested && (port == "" || strings.Contains(port, ".")):
				return fmt.Errorf("%s: coupling endpoint %q must be model.port", path, ep)
			case !nested && !ports[ep]:
				return fmt.Errorf("%s: coupling endpoint %q names no declared port", path, ep)
			}
		}
	}
	return nil
}

func (m *ModelSpec) validate(path string) error {
	if !ValidKinds[m.Kind] {
		return fmt.Errorf("%s: unknown kind %q", path, m.Kind)
	}
	if m.Kind == "coupled" {
		return m.CoupledSpec.validate(path)
	}
	if len(m.Inputs)+len(m.Outputs)+len(m.Models)+len(m.Couplings) > 0 {
		return fmt.Errorf("%s: only coupled models declare ports, models and couplings", path)
	}
	cfg, err := m.params()
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	return nil
}

type validator interface{ Validate() error }

type gptParams models.GPTConfig

func (p gptParams) Validate() error {
	if err := p.Generator.Validate(); err != nil {
		return fmt.Errorf("generator: %w", err)
	}
	if err := p.Processor.Validate(); err != nil {
		return fmt.Errorf("processor: %w", err)
	}
	if err := p.Transducer.Validate(); err != nil {
		return fmt.Errorf("transducer: %w", err)
	}
	return nil
}

// params decodes Params into the configuration type of the model's kind.
func (m *ModelSpec) params() (validator, error) {
	var cfg validator
	switch m.Kind {
	case "counter":
		cfg = &CounterParams{}
	case "generator":
		cfg = &models.GeneratorConfig{}
	case "processor":
		cfg = &models.ProcessorConfig{}
	case "transducer":
		cfg = &models.TransducerConfig{}
	case "gpt":
		cfg = &gptParams{}
	default:
		return nil, fmt.Errorf("kind %q has no parameters", m.Kind)
	}
	if m.Params.Kind != 0 {
		if err := m.Params.Decode(cfg); err != nil {
			return nil, fmt.Errorf("decoding params: %w", err)
		}
	}
	return cfg, nil
}
