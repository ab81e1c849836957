package sim

import (
	"fmt"

	"golang.org/x/exp/slices"
)

// CouplingKind distinguishes the three DEVS coupling sets.
type CouplingKind string

const (
	// InternalCoupling connects a child's output to a sibling's input.
	InternalCoupling CouplingKind = "IC"
	// ExternalInputCoupling connects the coupled model's input to a child's input.
	ExternalInputCoupling CouplingKind = "EIC"
	// ExternalOutputCoupling connects a child's output to the coupled model's output.
	ExternalOutputCoupling CouplingKind = "EOC"
)

// Coupling is a read-only view of one coupling entry.
type Coupling[T any] struct {
	Kind CouplingKind
	From Port[T]
	To   Port[T]
}

func (c Coupling[T]) String() string {
	return fmt.Sprintf("%s %s -> %s", c.Kind, c.From.FullName(), c.To.FullName())
}

type internalCoupling[T any] struct {
	from AnyOutput[T]
	to   AnyInput[T]
}

type inputCoupling[T any] struct {
	from AnyInput[T]
	to   AnyInput[T]
}

type outputCoupling[T any] struct {
	from AnyOutput[T]
	to   AnyOutput[T]
}

// AddInternalCoupling couples a child's output port to a sibling's input
// port. The shared type parameter V guarantees matching payloads at compile
// time.
func AddInternalCoupling[T, V any](c *Coupled[T], from *OutputPort[T, V], to *InputPort[T, V]) error {
	return c.addInternal(from, to)
}

// AddExternalInputCoupling couples one of c's input ports to a child's input
// port.
func AddExternalInputCoupling[T, V any](c *Coupled[T], from *InputPort[T, V], to *InputPort[T, V]) error {
	return c.addExternalInput(from, to)
}

// AddExternalOutputCoupling couples a child's output port to one of c's
// output ports.
func AddExternalOutputCoupling[T, V any](c *Coupled[T], from *OutputPort[T, V], to *OutputPort[T, V]) error {
	return c.addExternalOutput(from, to)
}

// RemoveInternalCoupling removes an internal coupling.
func RemoveInternalCoupling[T, V any](c *Coupled[T], from *OutputPort[T, V], to *InputPort[T, V]) error {
	return c.Decouple(from, to)
}

// RemoveExternalInputCoupling removes an external input coupling.
func RemoveExternalInputCoupling[T, V any](c *Coupled[T], from *InputPort[T, V], to *InputPort[T, V]) error {
	return c.Decouple(from, to)
}

// RemoveExternalOutputCoupling removes an external output coupling.
func RemoveExternalOutputCoupling[T, V any](c *Coupled[T], from *OutputPort[T, V], to *OutputPort[T, V]) error {
	return c.Decouple(from, to)
}

// Couple creates the coupling from → to with payload types checked at run
// time. The kind follows from the endpoints: output→input is internal,
// input→input is external input, output→output is external output.
func (c *Coupled[T]) Couple(from, to Port[T]) error {
	switch f := from.(type) {
	case AnyOutput[T]:
		switch t := to.(type) {
		case AnyInput[T]:
			return c.addInternal(f, t)
		case AnyOutput[T]:
			return c.addExternalOutput(f, t)
		}
	case AnyInput[T]:
		if t, ok := to.(AnyInput[T]); ok {
			return c.addExternalInput(f, t)
		}
	}
	return structural("couple", c.FullName(), portName(from)+" -> "+portName(to), ErrDirection)
}

// Decouple removes the coupling from → to, whatever its kind.
func (c *Coupled[T]) Decouple(from, to Port[T]) error {
	c.structMu.Lock()
	defer c.structMu.Unlock()
	if i := slices.IndexFunc(c.ic, func(e internalCoupling[T]) bool { return Port[T](e.from) == from && Port[T](e.to) == to }); i >= 0 {
		c.ic = slices.Delete(c.ic, i, i+1)
		return nil
	}
	if i := slices.IndexFunc(c.eic, func(e inputCoupling[T]) bool { return Port[T](e.from) == from && Port[T](e.to) == to }); i >= 0 {
		c.eic = slices.Delete(c.eic, i, i+1)
		return nil
	}
	if i := slices.IndexFunc(c.eoc, func(e outputCoupling[T]) bool { return Port[T](e.from) == from && Port[T](e.to) == to }); i >= 0 {
		c.eoc = slices.Delete(c.eoc, i, i+1)
		return nil
	}
	return structural("decouple", c.FullName(), portName(from)+" -> "+portName(to), ErrCouplingNotFound)
}

func (c *Coupled[T]) addInternal(from AnyOutput[T], to AnyInput[T]) error {
	const op = "add-internal-coupling"
	if err := c.checkPair(op, from, to); err != nil {
		return err
	}
	if !c.isChildPort(from) {
		return structural(op, c.FullName(), from.FullName(), ErrForeignPort)
	}
	if !c.isChildPort(to) {
		return structural(op, c.FullName(), to.FullName(), ErrForeignPort)
	}
	if from.Model() == to.Model() && from.OwnerIsAtomic() {
		return structural(op, c.FullName(), from.FullName()+" -> "+to.FullName(), ErrSelfCoupling)
	}
	c.structMu.Lock()
	defer c.structMu.Unlock()
	if err := c.recheckLocked(op, from, to, true, true); err != nil {
		return err
	}
	for _, e := range c.ic {
		if e.from == from && e.to == to {
			return structural(op, c.FullName(), from.FullName()+" -> "+to.FullName(), ErrDuplicateCoupling)
		}
	}
	c.ic = append(c.ic, internalCoupling[T]{from: from, to: to})
	return nil
}

func (c *Coupled[T]) addExternalInput(from AnyInput[T], to AnyInput[T]) error {
	const op = "add-external-input-coupling"
	if err := c.checkPair(op, from, to); err != nil {
		return err
	}
	if from.Model() != Model[T](c) {
		return structural(op, c.FullName(), from.FullName(), ErrForeignPort)
	}
	if !c.isChildPort(to) {
		return structural(op, c.FullName(), to.FullName(), ErrForeignPort)
	}
	c.structMu.Lock()
	defer c.structMu.Unlock()
	if err := c.recheckLocked(op, from, to, false, true); err != nil {
		return err
	}
	for _, e := range c.eic {
		if e.from == from && e.to == to {
			return structural(op, c.FullName(), from.FullName()+" -> "+to.FullName(), ErrDuplicateCoupling)
		}
	}
	c.eic = append(c.eic, inputCoupling[T]{from: from, to: to})
	return nil
}

func (c *Coupled[T]) addExternalOutput(from AnyOutput[T], to AnyOutput[T]) error {
	const op = "add-external-output-coupling"
	if err := c.checkPair(op, from, to); err != nil {
		return err
	}
	if !c.isChildPort(from) {
		return structural(op, c.FullName(), from.FullName(), ErrForeignPort)
	}
	if to.Model() != Model[T](c) {
		return structural(op, c.FullName(), to.FullName(), ErrForeignPort)
	}
	c.structMu.Lock()
	defer c.structMu.Unlock()
	if err := c.recheckLocked(op, from, to, true, false); err != nil {
		return err
	}
	for _, e := range c.eoc {
		if e.from == from && e.to == to {
			return structural(op, c.FullName(), from.FullName()+" -> "+to.FullName(), ErrDuplicateCoupling)
		}
	}
	c.eoc = append(c.eoc, outputCoupling[T]{from: from, to: to})
	return nil
}

func (c *Coupled[T]) checkPair(op string, from, to Port[T]) error {
	if from == nil || to == nil {
		return structural(op, c.FullName(), portName(from)+" -> "+portName(to), ErrPortNotFound)
	}
	if from.core().removed.Load() {
		return structural(op, c.FullName(), from.FullName(), ErrPortNotFound)
	}
	if to.core().removed.Load() {
		return structural(op, c.FullName(), to.FullName(), ErrPortNotFound)
	}
	if from.PayloadType() != to.PayloadType() {
		return &StructuralError{
			Op:    op,
			Model: c.FullName(),
			Port:  from.FullName() + " -> " + to.FullName(),
			Err:   fmt.Errorf("%s vs %s: %w", from.PayloadType(), to.PayloadType(), ErrPayloadMismatch),
		}
	}
	return nil
}

// recheckLocked repeats the removal and membership checks once structMu is
// write-locked, so a port or child removed since the first check cannot be
// left behind in a coupling. fromChild and toChild say which endpoints must
// belong to a direct child.
func (c *Coupled[T]) recheckLocked(op string, from, to Port[T], fromChild, toChild bool) error {
	for _, ep := range []struct {
		port  Port[T]
		child bool
	}{{from, fromChild}, {to, toChild}} {
		if ep.port.core().removed.Load() {
			return structural(op, c.FullName(), ep.port.FullName(), ErrPortNotFound)
		}
		if ep.child && !c.hasChildLocked(ep.port.Model()) {
			return structural(op, c.FullName(), ep.port.FullName(), ErrForeignPort)
		}
	}
	return nil
}

// isChildPort reports whether p belongs to a direct child of c.
func (c *Coupled[T]) isChildPort(p Port[T]) bool {
	c.structMu.RLock()
	defer c.structMu.RUnlock()
	return c.hasChildLocked(p.Model())
}

func (c *Coupled[T]) hasChildLocked(owner Model[T]) bool {
	if owner == nil || owner.Parent() != c {
		return false
	}
	return slices.Contains(c.children, owner)
}

func portName[T any](p Port[T]) string {
	if p == nil {
		return "<nil>"
	}
	return p.FullName()
}
