package sim

import (
	"fmt"
	"reflect"
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"
)

// Port is the type-erased view of an input or output port.
type Port[T any] interface {
	Name() string
	FullName() string
	Model() Model[T]
	// PayloadType is the Go type carried by the port. Both ends of a
	// coupling must carry the same type.
	PayloadType() reflect.Type
	// OwnerIsAtomic reports whether the owning model is atomic; routing
	// differs between atomic and coupled owners.
	OwnerIsAtomic() bool

	core() *portCore[T]
}

// AnyInput is an input port with its payload type erased.
type AnyInput[T any] interface {
	Port[T]
	// ReceiveAny delivers value at time at after checking it against the
	// payload type.
	ReceiveAny(value any, at T) error
	isInput()
}

// AnyOutput is an output port with its payload type erased.
type AnyOutput[T any] interface {
	Port[T]
	// SendAny emits value after checking it against the payload type.
	SendAny(value any) error
	isOutput()
}

type portCore[T any] struct {
	name    string
	owner   Model[T]
	payload reflect.Type
	removed atomic.Bool
}

func (p *portCore[T]) core() *portCore[T]        { return p }
func (p *portCore[T]) Name() string              { return p.name }
func (p *portCore[T]) Model() Model[T]           { return p.owner }
func (p *portCore[T]) PayloadType() reflect.Type { return p.payload }
func (p *portCore[T]) OwnerIsAtomic() bool       { return p.owner.IsAtomic() }

func (p *portCore[T]) FullName() string {
	return p.owner.FullName() + "." + p.name
}

func (p *portCore[T]) checkPayload(value any) error {
	if value == nil {
		switch p.payload.Kind() {
		case reflect.Interface, reflect.Pointer, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
			return nil
		}
		return fmt.Errorf("port %s: nil value for payload %s: %w", p.FullName(), p.payload, ErrPayloadMismatch)
	}
	if t := reflect.TypeOf(value); !t.AssignableTo(p.payload) {
		return fmt.Errorf("port %s: value of type %s for payload %s: %w", p.FullName(), t, p.payload, ErrPayloadMismatch)
	}
	return nil
}

// InputPort routes values of type V into its owning model.
type InputPort[T, V any] struct {
	portCore[T]
}

// NewInputPort creates and registers an input port on m, which may be a user
// type embedding *Atomic or *Coupled. Names are unique among a model's input
// ports.
func NewInputPort[T, V any](m Model[T], name string) (*InputPort[T, V], error) {
	b := m.core()
	p := &InputPort[T, V]{portCore: portCore[T]{name: name, owner: b.self, payload: reflect.TypeOf((*V)(nil)).Elem()}}
	if err := b.addInput(p); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *InputPort[T, V]) isInput() {}

// Receive delivers value at time at. For an atomic owner this runs the
// external-event admission protocol; for a coupled owner the value is
// forwarded along every external input coupling leaving this port.
func (p *InputPort[T, V]) Receive(value V, at T) error {
	return p.deliver(value, at)
}

func (p *InputPort[T, V]) ReceiveAny(value any, at T) error {
	if err := p.checkPayload(value); err != nil {
		return err
	}
	return p.deliver(value, at)
}

func (p *InputPort[T, V]) deliver(value any, at T) error {
	if p.removed.Load() {
		return fmt.Errorf("receive on %s: %w", p.FullName(), ErrPortNotFound)
	}
	switch owner := p.owner.(type) {
	case *Atomic[T]:
		return owner.receive(p, value, at)
	case *Coupled[T]:
		return owner.route(p, value, at)
	default:
		return fmt.Errorf("receive on %s: unsupported owner %T", p.FullName(), p.owner)
	}
}

// OutputPort emits values of type V from its owning model.
type OutputPort[T, V any] struct {
	portCore[T]

	sinkMu sync.RWMutex
	sinks  []func(value V, at T)
}

// NewOutputPort creates and registers an output port on m. Names are unique
// among a model's output ports.
func NewOutputPort[T, V any](m Model[T], name string) (*OutputPort[T, V], error) {
	b := m.core()
	p := &OutputPort[T, V]{portCore: portCore[T]{name: name, owner: b.self, payload: reflect.TypeOf((*V)(nil)).Elem()}}
	if err := b.addOutput(p); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *OutputPort[T, V]) isOutput() {}

// AddSink registers fn to observe every value emitted on this port. Sinks are
// how a host reads the outputs of a root model.
func (p *OutputPort[T, V]) AddSink(fn func(value V, at T)) {
	p.sinkMu.Lock()
	defer p.sinkMu.Unlock()
	p.sinks = append(p.sinks, fn)
}

// Message wraps value for return from an output function.
func (p *OutputPort[T, V]) Message(value V) Message[T] {
	return Message[T]{Port: p, Value: value}
}

// Send emits value: sinks observe it and the owning model's parent transfers
// it along its couplings.
func (p *OutputPort[T, V]) Send(value V) error {
	return p.emit(value)
}

func (p *OutputPort[T, V]) SendAny(value any) error {
	if err := p.checkPayload(value); err != nil {
		return err
	}
	return p.emit(value)
}

func (p *OutputPort[T, V]) emit(value any) error {
	if p.removed.Load() {
		return fmt.Errorf("send on %s: %w", p.FullName(), ErrPortNotFound)
	}
	p.sinkMu.RLock()
	sinks := p.sinks
	p.sinkMu.RUnlock()
	if len(sinks) > 0 {
		now := p.owner.Scheduler().CurrentTime()
		v, _ := value.(V)
		for _, fn := range sinks {
			fn(v, now)
		}
	}
	parent := p.owner.Parent()
	if parent == nil {
		if len(sinks) == 0 {
			logrus.Debugf("output on root port %s dropped: no sinks", p.FullName())
		}
		return nil
	}
	return parent.transfer(p, value)
}

// Message is one (output port, value) pair produced by an output function.
type Message[T any] struct {
	Port  AnyOutput[T]
	Value any
}
