package sim

import (
	"fmt"
	"math"
	"time"

	"golang.org/x/exp/constraints"
)

// Ordering is the result of comparing two simulation times.
type Ordering int

const (
	Less    Ordering = -1
	Equal   Ordering = 0
	Greater Ordering = 1
)

func (o Ordering) String() string {
	switch o {
	case Less:
		return "less"
	case Equal:
		return "equal"
	case Greater:
		return "greater"
	default:
		return fmt.Sprintf("Ordering(%d)", int(o))
	}
}

// TimeDomain supplies the arithmetic and ordering the kernel needs for a time
// type T. Durations and instants share the same type.
//
// Compare must treat values that differ only by accumulated rounding noise as
// Equal, otherwise an external event arriving at the scheduled internal
// transition instant would be classified as a causality violation or as an
// ordinary external event instead of a confluent one.
type TimeDomain[T any] interface {
	Zero() T
	Infinity() T
	IsInfinite(t T) bool
	// Add returns t advanced by duration d. Adding to or adding an infinite
	// value yields Infinity.
	Add(t, d T) T
	// Sub returns the duration elapsed from b to a.
	Sub(a, b T) T
	// Compare is the fuzzy ordering used to classify elapsed time against
	// a time advance.
	Compare(a, b T) Ordering
	// Before is the exact ordering used to sequence the event list. It must
	// be a strict weak order, which Compare is not.
	Before(a, b T) bool
	// Float returns a float64 view of t, used for logs and traces.
	Float(t T) float64
	// FromFloat converts a float64 duration into T.
	FromFloat(f float64) T
}

// Tolerance bounds the difference under which two floating point times are
// considered equal: |a-b| <= max(Absolute, Relative*max(|a|,|b|)).
type Tolerance struct {
	Relative float64
	Absolute float64
}

var (
	// DefaultFloat64Tolerance absorbs a few ulps of error at any magnitude
	// and sub-picosecond noise around zero.
	DefaultFloat64Tolerance = Tolerance{Relative: 1e-9, Absolute: 1e-12}
	// DefaultFloat32Tolerance is the float32 counterpart.
	DefaultFloat32Tolerance = Tolerance{Relative: 1e-5, Absolute: 1e-6}
)

// FloatTime is a fuzzy-comparing time domain over floating point types.
type FloatTime[F constraints.Float] struct {
	Tol Tolerance
}

// NewFloat64Time returns the default float64 domain.
func NewFloat64Time() FloatTime[float64] {
	return FloatTime[float64]{Tol: DefaultFloat64Tolerance}
}

// NewFloat32Time returns the default float32 domain.
func NewFloat32Time() FloatTime[float32] {
	return FloatTime[float32]{Tol: DefaultFloat32Tolerance}
}

func (FloatTime[F]) Zero() F { return 0 }
func (FloatTime[F]) Infinity() F { return F(math.Inf(1)) }

func (FloatTime[F]) IsInfinite(t F) bool {
	return math.IsInf(float64(t), 1)
}

func (d FloatTime[F]) Add(t, dur F) F {
	if d.IsInfinite(t) || d.IsInfinite(dur) {
		return d.Infinity()
	}
	return t + dur
}

func (d FloatTime[F]) Sub(a, b F) F {
	if d.IsInfinite(a) {
		return d.Infinity()
	}
	return a - b
}

func (d FloatTime[F]) Compare(a, b F) Ordering {
	return compareFloat(float64(a), float64(b), d.Tol)
}

func (FloatTime[F]) Before(a, b F) bool { return a < b }

func (FloatTime[F]) Float(t F) float64 { return float64(t) }
func (FloatTime[F]) FromFloat(f float64) F { return F(f) }

// CompareFloat64 compares two float64 times with DefaultFloat64Tolerance.
func CompareFloat64(a, b float64) Ordering {
	return compareFloat(a, b, DefaultFloat64Tolerance)
}

func compareFloat(a, b float64, tol Tolerance) Ordering {
	diff := math.Abs(a - b)
	if diff == 0 {
		// also catches -0.0 vs +0.0
		return Equal
	}
	aNaN, bNaN := math.IsNaN(a), math.IsNaN(b)
	switch {
	case aNaN && bNaN:
		return Equal
	case aNaN:
		return Greater
	case bNaN:
		return Less
	}
	if math.IsInf(a, 0) || math.IsInf(b, 0) {
		switch {
		case a == b:
			return Equal
		case a < b:
			return Less
		default:
			return Greater
		}
	}
	bound := tol.Relative * math.Max(math.Abs(a), math.Abs(b))
	if diff <= math.Max(tol.Absolute, bound) {
		return Equal
	}
	if a < b {
		return Less
	}
	return Greater
}

// IntegerTime is an exact time domain over signed integer types such as
// int64 ticks or time.Duration. The largest representable value stands for
// +Inf and arithmetic saturates at it.
type IntegerTime[I constraints.Signed] struct {
	Max I
	// Unit is the number of ticks per second used by Float and FromFloat.
	Unit float64
}

// NewIntegerTime returns a domain whose infinity is inf and whose Float view
// divides by unit ticks per second.
func NewIntegerTime[I constraints.Signed](inf I, unit float64) IntegerTime[I] {
	if unit <= 0 {
		unit = 1
	}
	return IntegerTime[I]{Max: inf, Unit: unit}
}

// NewTickTime returns an int64 tick domain with one tick per time unit.
func NewTickTime() IntegerTime[int64] {
	return NewIntegerTime[int64](math.MaxInt64, 1)
}

// NewDurationTime returns a time.Duration domain measured in seconds.
func NewDurationTime() IntegerTime[time.Duration] {
	return NewIntegerTime[time.Duration](time.Duration(math.MaxInt64), float64(time.Second))
}

func (IntegerTime[I]) Zero() I { return 0 }
func (d IntegerTime[I]) Infinity() I { return d.Max }

func (d IntegerTime[I]) IsInfinite(t I) bool { return t >= d.Max }

func (d IntegerTime[I]) Add(t, dur I) I {
	if d.IsInfinite(t) || d.IsInfinite(dur) {
		return d.Max
	}
	if dur > 0 && t > d.Max-dur {
		return d.Max
	}
	return t + dur
}

func (d IntegerTime[I]) Sub(a, b I) I {
	if d.IsInfinite(a) {
		return d.Max
	}
	return a - b
}

func (IntegerTime[I]) Compare(a, b I) Ordering {
	switch {
	case a < b:
		return Less
	case a > b:
		return Greater
	default:
		return Equal
	}
}

func (IntegerTime[I]) Before(a, b I) bool { return a < b }

func (d IntegerTime[I]) Float(t I) float64 {
	if d.IsInfinite(t) {
		return math.Inf(1)
	}
	return float64(t) / d.Unit
}

func (d IntegerTime[I]) FromFloat(f float64) I {
	if math.IsInf(f, 1) || f*d.Unit >= float64(d.Max) {
		return d.Max
	}
	return I(math.Round(f * d.Unit))
}
