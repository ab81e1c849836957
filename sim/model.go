package sim

import (
	"sync"
	"sync/atomic"
)

// Model is the common view of atomic and coupled models. It is implemented
// only by *Atomic and *Coupled; user models embed one of them.
type Model[T any] interface {
	Name() string
	// FullName is the dot-separated path from the root model.
	FullName() string
	// Parent returns the owning coupled model, or nil for a root model.
	Parent() *Coupled[T]
	Scheduler() Scheduler[T]
	IsAtomic() bool

	InputPort(name string) (AnyInput[T], bool)
	OutputPort(name string) (AnyOutput[T], bool)
	InputPorts() []AnyInput[T]
	OutputPorts() []AnyOutput[T]
	RemoveInputPort(name string) error
	RemoveOutputPort(name string) error

	// AddListener registers l for state updates of this model and, for a
	// coupled model, of every current and future descendant.
	AddListener(l StateListener[T])

	core() *modelBase[T]
	detach()
}

// modelBase holds what atomic and coupled models share: identity, ports and
// listeners. The parent link is set at construction and never changes.
type modelBase[T any] struct {
	name   string
	parent *Coupled[T]
	sched  Scheduler[T]
	self   Model[T]

	mu          sync.RWMutex
	inputs      map[string]AnyInput[T]
	inputOrder  []string
	outputs     map[string]AnyOutput[T]
	outputOrder []string
	listeners   []StateListener[T]

	removed atomic.Bool
}

func (b *modelBase[T]) init(name string, parent *Coupled[T], sched Scheduler[T], self Model[T]) {
	b.name = name
	b.parent = parent
	b.sched = sched
	b.self = self
	b.inputs = make(map[string]AnyInput[T])
	b.outputs = make(map[string]AnyOutput[T])
}

func (b *modelBase[T]) core() *modelBase[T] { return b }

func (b *modelBase[T]) Name() string            { return b.name }
func (b *modelBase[T]) Parent() *Coupled[T]     { return b.parent }
func (b *modelBase[T]) Scheduler() Scheduler[T] { return b.sched }

func (b *modelBase[T]) FullName() string {
	if b.parent == nil {
		return b.name
	}
	return b.parent.FullName() + "." + b.name
}

// Removed reports whether the model has been detached from its parent.
func (b *modelBase[T]) Removed() bool { return b.removed.Load() }

func (b *modelBase[T]) domain() TimeDomain[T] { return b.sched.Domain() }

func (b *modelBase[T]) InputPort(name string) (AnyInput[T], bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	p, ok := b.inputs[name]
	return p, ok
}

func (b *modelBase[T]) OutputPort(name string) (AnyOutput[T], bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	p, ok := b.outputs[name]
	return p, ok
}

// InputPorts returns the input ports in creation order.
func (b *modelBase[T]) InputPorts() []AnyInput[T] {
	b.mu.RLock()
	defer b.mu.RUnlock()
	ports := make([]AnyInput[T], 0, len(b.inputOrder))
	for _, n := range b.inputOrder {
		ports = append(ports, b.inputs[n])
	}
	return ports
}

// OutputPorts returns the output ports in creation order.
func (b *modelBase[T]) OutputPorts() []AnyOutput[T] {
	b.mu.RLock()
	defer b.mu.RUnlock()
	ports := make([]AnyOutput[T], 0, len(b.outputOrder))
	for _, n := range b.outputOrder {
		ports = append(ports, b.outputs[n])
	}
	return ports
}

func (b *modelBase[T]) addInput(p AnyInput[T]) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, exists := b.inputs[p.Name()]; exists {
		return structural("add-input-port", b.FullName(), p.Name(), ErrDuplicatePort)
	}
	b.inputs[p.Name()] = p
	b.inputOrder = append(b.inputOrder, p.Name())
	return nil
}

func (b *modelBase[T]) addOutput(p AnyOutput[T]) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, exists := b.outputs[p.Name()]; exists {
		return structural("add-output-port", b.FullName(), p.Name(), ErrDuplicatePort)
	}
	b.outputs[p.Name()] = p
	b.outputOrder = append(b.outputOrder, p.Name())
	return nil
}

// RemoveInputPort deletes the named input port and every coupling, in this
// model or its parent, that references it.
func (b *modelBase[T]) RemoveInputPort(name string) error {
	b.mu.Lock()
	p, ok := b.inputs[name]
	if !ok {
		b.mu.Unlock()
		return structural("remove-input-port", b.FullName(), name, ErrPortNotFound)
	}
	delete(b.inputs, name)
	b.inputOrder = removeName(b.inputOrder, name)
	b.mu.Unlock()

	p.core().removed.Store(true)
	b.purgePort(p)
	return nil
}

// RemoveOutputPort deletes the named output port and every coupling, in this
// model or its parent, that references it.
func (b *modelBase[T]) RemoveOutputPort(name string) error {
	b.mu.Lock()
	p, ok := b.outputs[name]
	if !ok {
		b.mu.Unlock()
		return structural("remove-output-port", b.FullName(), name, ErrPortNotFound)
	}
	delete(b.outputs, name)
	b.outputOrder = removeName(b.outputOrder, name)
	b.mu.Unlock()

	p.core().removed.Store(true)
	b.purgePort(p)
	return nil
}

func (b *modelBase[T]) purgePort(p Port[T]) {
	if c, ok := b.self.(*Coupled[T]); ok {
		c.purge(func(q Port[T]) bool { return q == p })
	}
	if b.parent != nil {
		b.parent.purge(func(q Port[T]) bool { return q == p })
	}
}

func (b *modelBase[T]) addListener(l StateListener[T]) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.listeners = append(b.listeners, l)
}

// Listeners returns a copy of the registered listeners.
func (b *modelBase[T]) Listeners() []StateListener[T] {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]StateListener[T], len(b.listeners))
	copy(out, b.listeners)
	return out
}

func removeName(names []string, name string) []string {
	for i, n := range names {
		if n == name {
			return append(names[:i:i], names[i+1:]...)
		}
	}
	return names
}
