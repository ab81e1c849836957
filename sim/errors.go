package sim

import (
	"errors"
	"fmt"
)

// Structural sentinels. Every structural mutation failure wraps exactly one of
// these inside a *StructuralError.
var (
	ErrDuplicatePort     = errors.New("duplicate port name")
	ErrPortNotFound      = errors.New("port not found")
	ErrPayloadMismatch   = errors.New("payload types do not match")
	ErrForeignPort       = errors.New("port does not belong to the coupled model or one of its children")
	ErrDirection         = errors.New("port direction not valid for this coupling")
	ErrSelfCoupling      = errors.New("atomic model coupled to itself")
	ErrDuplicateCoupling = errors.New("coupling already exists")
	ErrCouplingNotFound  = errors.New("coupling not found")
	ErrModelNotFound     = errors.New("model not found")
	ErrDuplicateModel    = errors.New("model already registered")
	ErrForeignModel      = errors.New("model parent is a different coupled model")
)

var (
	// ErrCausalityViolation is wrapped by every *CausalityError.
	ErrCausalityViolation = errors.New("causality violation")
	// ErrModelRemoved is returned when an event reaches a model that has been
	// removed from its parent.
	ErrModelRemoved = errors.New("model removed from simulation")
)

// StructuralError reports a rejected structural mutation (ports, couplings,
// children). It never affects in-flight event processing.
type StructuralError struct {
	Op    string // e.g. "add-internal-coupling"
	Model string // full name of the model being mutated
	Port  string // port involved, if any
	Err   error
}

func (e *StructuralError) Error() string {
	if e.Port != "" {
		return fmt.Sprintf("%s on %s (port %s): %v", e.Op, e.Model, e.Port, e.Err)
	}
	return fmt.Sprintf("%s on %s: %v", e.Op, e.Model, e.Err)
}

func (e *StructuralError) Unwrap() error { return e.Err }

// CausalityError is raised when input reaches an atomic model later than its
// scheduled internal transition, or earlier than its last event. The model's
// state is left untouched and the run should be considered inconsistent.
type CausalityError struct {
	Model         string
	Time          float64
	TimeLastEvent float64
	Elapsed       float64
	TimeAdvance   float64
}

func (e *CausalityError) Error() string {
	return fmt.Sprintf("causality violation in %s at t=%g: elapsed %g exceeds time advance %g (last event t=%g)",
		e.Model, e.Time, e.Elapsed, e.TimeAdvance, e.TimeLastEvent)
}

func (e *CausalityError) Unwrap() error { return ErrCausalityViolation }

func structural(op, model, port string, err error) error {
	return &StructuralError{Op: op, Model: model, Port: port, Err: err}
}
