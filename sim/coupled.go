package sim

import (
	"errors"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
	"golang.org/x/exp/slices"
)

// Coupled is a hierarchical DEVS model: a set of children and three coupling
// sets. Structural mutation may run concurrently with event routing; routing
// works on a snapshot of the couplings taken when a value arrives.
type Coupled[T any] struct {
	modelBase[T]

	structMu sync.RWMutex
	children []Model[T]
	ic       []internalCoupling[T]
	eic      []inputCoupling[T]
	eoc      []outputCoupling[T]
}

// NewCoupled creates a coupled model inside parent. It panics if parent is
// nil.
func NewCoupled[T any](name string, parent *Coupled[T]) *Coupled[T] {
	if parent == nil {
		panic("sim: NewCoupled requires a parent; use NewRootCoupled for a root model")
	}
	c := &Coupled[T]{}
	c.init(name, parent, parent.Scheduler(), c)
	if err := parent.AddModelComponent(c); err != nil {
		panic(err)
	}
	return c
}

// NewRootCoupled creates the top of a model hierarchy.
func NewRootCoupled[T any](name string, sched Scheduler[T]) *Coupled[T] {
	if sched == nil {
		panic("sim: NewRootCoupled requires a scheduler")
	}
	c := &Coupled[T]{}
	c.init(name, nil, sched, c)
	return c
}

func (c *Coupled[T]) IsAtomic() bool { return false }

// AddModelComponent registers m as a child. m must have been created with c
// as its parent; the constructors call this already. Listeners registered on
// c are copied to m.
func (c *Coupled[T]) AddModelComponent(m Model[T]) error {
	const op = "add-model-component"
	child := m.core().self
	if child.Parent() != c {
		return structural(op, c.FullName(), "", ErrForeignModel)
	}
	c.structMu.Lock()
	if slices.Contains(c.children, child) {
		c.structMu.Unlock()
		return structural(op, c.FullName(), "", ErrDuplicateModel)
	}
	c.children = append(c.children, child)
	c.structMu.Unlock()

	for _, l := range c.Listeners() {
		child.AddListener(l)
	}
	logrus.Debugf("model %s added to %s", child.FullName(), c.FullName())
	return nil
}

// RemoveModelComponent removes every coupling touching one of m's ports,
// cancels the pending transitions of m and its descendants, and detaches it.
func (c *Coupled[T]) RemoveModelComponent(m Model[T]) error {
	child := m.core().self
	c.structMu.Lock()
	idx := slices.Index(c.children, child)
	if idx < 0 {
		c.structMu.Unlock()
		return structural("remove-model-component", c.FullName(), "", ErrModelNotFound)
	}
	c.purgeLocked(func(p Port[T]) bool { return p.Model() == child })
	c.children = slices.Delete(c.children, idx, idx+1)
	c.structMu.Unlock()

	child.detach()
	logrus.Debugf("model %s removed from %s", child.FullName(), c.FullName())
	return nil
}

// Children returns the direct children in insertion order.
func (c *Coupled[T]) Children() []Model[T] {
	c.structMu.RLock()
	defer c.structMu.RUnlock()
	out := make([]Model[T], len(c.children))
	copy(out, c.children)
	return out
}

// Child returns the direct child with the given name.
func (c *Coupled[T]) Child(name string) (Model[T], bool) {
	c.structMu.RLock()
	defer c.structMu.RUnlock()
	for _, m := range c.children {
		if m.Name() == name {
			return m, true
		}
	}
	return nil, false
}

// Lookup resolves a dot-separated path of child names relative to c. An empty
// path returns c itself.
func (c *Coupled[T]) Lookup(path string) (Model[T], bool) {
	if path == "" {
		return c, true
	}
	var cur Model[T] = c
	for _, name := range strings.Split(path, ".") {
		parent, ok := cur.(*Coupled[T])
		if !ok {
			return nil, false
		}
		if cur, ok = parent.Child(name); !ok {
			return nil, false
		}
	}
	return cur, true
}

// InternalCouplings returns the internal couplings in insertion order.
func (c *Coupled[T]) InternalCouplings() []Coupling[T] {
	c.structMu.RLock()
	defer c.structMu.RUnlock()
	out := make([]Coupling[T], 0, len(c.ic))
	for _, e := range c.ic {
		out = append(out, Coupling[T]{Kind: InternalCoupling, From: e.from, To: e.to})
	}
	return out
}

// ExternalInputCouplings returns the external input couplings in insertion
// order.
func (c *Coupled[T]) ExternalInputCouplings() []Coupling[T] {
	c.structMu.RLock()
	defer c.structMu.RUnlock()
	out := make([]Coupling[T], 0, len(c.eic))
	for _, e := range c.eic {
		out = append(out, Coupling[T]{Kind: ExternalInputCoupling, From: e.from, To: e.to})
	}
	return out
}

// ExternalOutputCouplings returns the external output couplings in insertion
// order.
func (c *Coupled[T]) ExternalOutputCouplings() []Coupling[T] {
	c.structMu.RLock()
	defer c.structMu.RUnlock()
	out := make([]Coupling[T], 0, len(c.eoc))
	for _, e := range c.eoc {
		out = append(out, Coupling[T]{Kind: ExternalOutputCoupling, From: e.from, To: e.to})
	}
	return out
}

// Couplings returns all couplings: internal, then external input, then
// external output.
func (c *Coupled[T]) Couplings() []Coupling[T] {
	out := c.InternalCouplings()
	out = append(out, c.ExternalInputCouplings()...)
	return append(out, c.ExternalOutputCouplings()...)
}

// AddListener registers l on c and on every current descendant. Children
// added later inherit it in AddModelComponent.
func (c *Coupled[T]) AddListener(l StateListener[T]) {
	c.addListener(l)
	for _, child := range c.Children() {
		child.AddListener(l)
	}
}

// transfer fans a child's output out along the internal couplings (to sibling
// inputs, at the current time) and the external output couplings (to c's own
// outputs, which recurse into the parent). A failing coupling is logged and
// does not stop delivery to the others.
func (c *Coupled[T]) transfer(from AnyOutput[T], value any) error {
	c.structMu.RLock()
	var ics []AnyInput[T]
	for _, e := range c.ic {
		if e.from == from {
			ics = append(ics, e.to)
		}
	}
	var eocs []AnyOutput[T]
	for _, e := range c.eoc {
		if e.from == from {
			eocs = append(eocs, e.to)
		}
	}
	c.structMu.RUnlock()

	var errs []error
	if len(ics) > 0 {
		now := c.sched.CurrentTime()
		for _, to := range ics {
			if err := to.ReceiveAny(value, now); err != nil {
				c.deliveryFailed(InternalCoupling, from, to, err)
				errs = append(errs, err)
			}
		}
	}
	for _, to := range eocs {
		if err := to.SendAny(value); err != nil {
			c.deliveryFailed(ExternalOutputCoupling, from, to, err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// route forwards input arriving on one of c's input ports along its external
// input couplings.
func (c *Coupled[T]) route(from AnyInput[T], value any, at T) error {
	c.structMu.RLock()
	var targets []AnyInput[T]
	for _, e := range c.eic {
		if e.from == from {
			targets = append(targets, e.to)
		}
	}
	c.structMu.RUnlock()

	var errs []error
	for _, to := range targets {
		if err := to.ReceiveAny(value, at); err != nil {
			c.deliveryFailed(ExternalInputCoupling, from, to, err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (c *Coupled[T]) deliveryFailed(kind CouplingKind, from, to Port[T], err error) {
	logrus.WithFields(logrus.Fields{
		"model":    c.FullName(),
		"coupling": string(kind),
		"from":     from.FullName(),
		"to":       to.FullName(),
	}).Errorf("delivery failed: %v", err)
}

// purge removes every coupling with an endpoint matching match.
func (c *Coupled[T]) purge(match func(Port[T]) bool) {
	c.structMu.Lock()
	defer c.structMu.Unlock()
	c.purgeLocked(match)
}

func (c *Coupled[T]) purgeLocked(match func(Port[T]) bool) {
	c.ic = slices.DeleteFunc(c.ic, func(e internalCoupling[T]) bool { return match(e.from) || match(e.to) })
	c.eic = slices.DeleteFunc(c.eic, func(e inputCoupling[T]) bool { return match(e.from) || match(e.to) })
	c.eoc = slices.DeleteFunc(c.eoc, func(e outputCoupling[T]) bool { return match(e.from) || match(e.to) })
}

func (c *Coupled[T]) detach() {
	c.removed.Store(true)
	for _, child := range c.Children() {
		child.detach()
	}
}
