package sim

import "fmt"

// Phase is a named state label with a residence duration (its lifeTime).
// A passive phase has an infinite lifeTime: the owning model stays in it until
// external input arrives.
type Phase[T any] struct {
	name     string
	lifeTime T
	passive  bool
}

// NewPhase returns an active phase that lasts lifeTime.
func NewPhase[T any](name string, lifeTime T) *Phase[T] {
	return &Phase[T]{name: name, lifeTime: lifeTime}
}

// NewPassivePhase returns a phase with an infinite lifeTime.
func NewPassivePhase[T any](name string) *Phase[T] {
	return &Phase[T]{name: name, passive: true}
}

func (p *Phase[T]) Name() string { return p.name }

// LifeTime returns the residence duration and false when the phase is passive.
func (p *Phase[T]) LifeTime() (T, bool) {
	return p.lifeTime, !p.passive
}

// SetLifeTime makes the phase active with the given duration.
func (p *Phase[T]) SetLifeTime(d T) {
	p.lifeTime = d
	p.passive = false
}

// SetPassive gives the phase an infinite lifeTime.
func (p *Phase[T]) SetPassive() {
	var zero T
	p.lifeTime = zero
	p.passive = true
}

// timeAdvance resolves the lifeTime in domain d. A finite lifeTime equal to
// the domain's infinity is passive too.
func (p *Phase[T]) timeAdvance(d TimeDomain[T]) T {
	if p.passive || d.IsInfinite(p.lifeTime) {
		return d.Infinity()
	}
	return p.lifeTime
}

func (p *Phase[T]) String() string {
	if p.passive {
		return fmt.Sprintf("%s(passive)", p.name)
	}
	return fmt.Sprintf("%s(%v)", p.name, p.lifeTime)
}
