package sim

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

// relay is a test model: passive until input arrives, then busy for delay,
// after which λ emits everything it holds and it returns to passive.
type relay struct {
	*Atomic[float64]
	in    *InputPort[float64, int]
	out   *OutputPort[float64, int]
	delay float64
	held  []int
	log   []string
}

func newRelay(t *testing.T, name string, parent *Coupled[float64], delay float64) *relay {
	t.Helper()
	r := &relay{delay: delay}
	r.Atomic = NewAtomic[float64](name, parent, r, NewPassivePhase[float64]("passive"))
	var err error
	r.in, err = NewInputPort[float64, int](r, "in")
	require.NoError(t, err)
	r.out, err = NewOutputPort[float64, int](r, "out")
	require.NoError(t, err)
	return r
}

func (r *relay) now() float64 { return r.Scheduler().CurrentTime() }

func (r *relay) InternalTransition() {
	r.log = append(r.log, fmt.Sprintf("int@%g", r.now()))
	r.held = nil
	r.SetPhase(NewPassivePhase[float64]("passive"))
}

func (r *relay) ExternalTransition(e float64, port AnyInput[float64], v any) {
	r.log = append(r.log, fmt.Sprintf("ext@%g e=%g v=%v", r.now(), e, v))
	r.held = append(r.held, v.(int))
	r.SetPhase(NewPhase("busy", r.delay))
}

func (r *relay) Output() []Message[float64] {
	msgs := make([]Message[float64], 0, len(r.held))
	for _, v := range r.held {
		msgs = append(msgs, r.out.Message(v))
	}
	return msgs
}

// confluentRelay overrides the tie resolution and records it.
type confluentRelay struct {
	relay
}

func newConfluentRelay(t *testing.T, name string, parent *Coupled[float64], delay float64) *confluentRelay {
	t.Helper()
	r := &confluentRelay{relay: relay{delay: delay}}
	r.Atomic = NewAtomic[float64](name, parent, r, NewPassivePhase[float64]("passive"))
	var err error
	r.in, err = NewInputPort[float64, int](r, "in")
	require.NoError(t, err)
	r.out, err = NewOutputPort[float64, int](r, "out")
	require.NoError(t, err)
	return r
}

func (r *confluentRelay) ConfluentTransition(e float64, port AnyInput[float64], v any) {
	r.log = append(r.log, fmt.Sprintf("conf@%g e=%g v=%v", r.now(), e, v))
	r.held = []int{v.(int)}
	r.SetPhase(NewPhase("busy", r.delay))
}

// ticker counts autonomous internal transitions with a fixed period.
type ticker struct {
	*Atomic[float64]
	count  int
	period float64
}

func newRootTicker(s Scheduler[float64], period float64) *ticker {
	tk := &ticker{period: period}
	tk.Atomic = NewRootAtomic[float64]("ticker", s, tk, NewPhase("idle", period))
	return tk
}

func (tk *ticker) InternalTransition() {
	tk.count++
	tk.Phase().SetLifeTime(tk.period)
}

func (tk *ticker) ExternalTransition(float64, AnyInput[float64], any) {}

func (tk *ticker) Output() []Message[float64] { return nil }

// newTestRoot returns a float64 simulator and an empty root coupled model.
func newTestRoot() (*Simulator[float64], *Coupled[float64]) {
	s := NewSimulator[float64](NewFloat64Time())
	return s, NewRootCoupled[float64]("root", s)
}

// collect attaches a sink to p and returns the slice it appends to.
func collect[V any](p *OutputPort[float64, V]) *[]V {
	var got []V
	p.AddSink(func(v V, _ float64) { got = append(got, v) })
	return &got
}
