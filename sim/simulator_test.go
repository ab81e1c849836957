package sim

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSimulator_RunsInTimeThenScheduleOrder(t *testing.T) {
	// GIVEN callbacks scheduled out of order, two sharing t=2
	s := NewSimulator[float64](NewFloat64Time())
	var order []string
	s.ScheduleAt(2, nil, func() { order = append(order, "b@2") })
	s.ScheduleAt(1, nil, func() { order = append(order, "a@1") })
	s.ScheduleAt(2, nil, func() { order = append(order, "c@2") })

	// WHEN the simulator runs
	require.NoError(t, s.Run(context.Background(), 10))

	// THEN they run by time, ties broken by scheduling order
	assert.Equal(t, []string{"a@1", "b@2", "c@2"}, order)
	assert.Equal(t, int64(3), s.Processed())
	assert.Equal(t, 2.0, s.CurrentTime())
	assert.NotEmpty(t, s.RunID)
}

func TestSimulator_Cancel(t *testing.T) {
	s := NewSimulator[float64](NewFloat64Time())
	fired := false
	cb := s.ScheduleAt(1, nil, func() { fired = true })
	assert.True(t, cb.Pending())
	assert.Equal(t, "host", cb.Source())

	assert.True(t, s.Cancel(cb))
	assert.False(t, s.Cancel(cb), "second cancel is a no-op")
	assert.False(t, s.Cancel(nil))

	require.NoError(t, s.Run(context.Background(), 10))
	assert.False(t, fired)
	assert.False(t, cb.Pending())
	assert.Equal(t, 0, s.Pending())
}

func TestSimulator_CancelAfterFire(t *testing.T) {
	s := NewSimulator[float64](NewFloat64Time())
	cb := s.ScheduleAt(1, nil, func() {})
	ran, err := s.Step()
	require.NoError(t, err)
	require.True(t, ran)

	assert.False(t, s.Cancel(cb))
}

func TestSimulator_HorizonStopsRun(t *testing.T) {
	// GIVEN callbacks at t=1, t=5 and t=10
	s := NewSimulator[float64](NewFloat64Time())
	var fired []float64
	for _, at := range []float64{1, 5, 10} {
		s.ScheduleAt(at, nil, func() { fired = append(fired, s.CurrentTime()) })
	}

	// WHEN run to horizon 5
	require.NoError(t, s.Run(context.Background(), 5))

	// THEN the callback at the horizon runs, the later one stays queued
	assert.Equal(t, []float64{1, 5}, fired)
	assert.Equal(t, 1, s.Pending())
	next, ok := s.NextTime()
	require.True(t, ok)
	assert.Equal(t, 10.0, next)

	// AND a later run picks it up
	require.NoError(t, s.Run(context.Background(), 20))
	assert.Equal(t, []float64{1, 5, 10}, fired)
}

func TestSimulator_ContextCancellation(t *testing.T) {
	s := NewSimulator[float64](NewFloat64Time())
	ctx, cancel := context.WithCancel(context.Background())
	count := 0
	var tick func()
	tick = func() {
		count++
		if count == 3 {
			cancel()
		}
		s.ScheduleAt(s.CurrentTime()+1, nil, tick)
	}
	s.ScheduleAt(0, nil, tick)

	err := s.Run(ctx, 1e9)

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 3, count)
}

func TestSimulator_PastScheduleIsClamped(t *testing.T) {
	s := NewSimulatorAt[float64](NewFloat64Time(), 10)
	cb := s.ScheduleAt(4, nil, func() {})

	assert.Equal(t, 10.0, cb.At())
}

func TestSimulator_HaltKeepsFirstError(t *testing.T) {
	s := NewSimulator[float64](NewFloat64Time())
	first := errors.New("first")
	s.Halt(first)
	s.Halt(errors.New("second"))
	s.ScheduleAt(1, nil, func() { t.Fatal("must not run after halt") })

	err := s.Run(context.Background(), 10)

	assert.Same(t, first, err)
	assert.Equal(t, 1, s.Pending())
}

func TestSimulator_StepRecoversPanic(t *testing.T) {
	s := NewSimulator[float64](NewFloat64Time())
	s.ScheduleAt(1, nil, func() { panic("boom") })

	ran, err := s.Step()

	assert.True(t, ran)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
	assert.Equal(t, err, s.Halted())
}

func TestSimulator_StepOnEmptyQueue(t *testing.T) {
	s := NewSimulator[float64](NewFloat64Time())
	ran, err := s.Step()
	assert.False(t, ran)
	assert.NoError(t, err)
	_, ok := s.NextTime()
	assert.False(t, ok)
}

func TestSimulator_InjectTypeMismatchIsLoggedNotFatal(t *testing.T) {
	// GIVEN a relay and an injection carrying the wrong payload type
	s, root := newTestRoot()
	r := newRelay(t, "r", root, 1)
	s.Inject(r.in, "not an int", 1)
	s.Inject(r.in, 4, 2)

	// WHEN the simulator runs
	require.NoError(t, s.Run(context.Background(), 10))

	// THEN the bad value is dropped and the good one is processed
	assert.Equal(t, []string{"ext@2 e=2 v=4", "int@3"}, r.log)
}

func TestSimulator_IntegerTicks(t *testing.T) {
	s := NewSimulator[int64](NewTickTime())
	var at []int64
	s.ScheduleAt(3, nil, func() { at = append(at, s.CurrentTime()) })
	s.ScheduleAt(1, nil, func() { at = append(at, s.CurrentTime()) })

	require.NoError(t, s.Run(context.Background(), NewTickTime().Infinity()))

	assert.Equal(t, []int64{1, 3}, at)
}

func TestSimulator_CloseTimesAtLargeMagnitudeRunInExactOrder(t *testing.T) {
	// GIVEN callbacks at 1e7 apart by less than the fuzzy tolerance, queued
	// latest first
	s := NewSimulatorAt[float64](NewFloat64Time(), 1e7)
	var order []float64
	for _, at := range []float64{1e7 + 0.009, 1e7 + 0.004, 1e7 + 0.002, 1e7} {
		s.ScheduleAt(at, nil, func() { order = append(order, s.CurrentTime()) })
	}

	// WHEN the simulator runs
	require.NoError(t, s.Run(context.Background(), 2e7))

	// THEN they run by exact time and the clock never moves backwards
	assert.Equal(t, []float64{1e7, 1e7 + 0.002, 1e7 + 0.004, 1e7 + 0.009}, order)
}

func TestSimulator_CloseInjectionsAtLargeMagnitudeAreNotViolations(t *testing.T) {
	// GIVEN a relay at t=1e7 and two inputs 0.009 apart, the later one injected first
	s := NewSimulatorAt[float64](NewFloat64Time(), 1e7)
	root := NewRootCoupled[float64]("root", s)
	r := newRelay(t, "r", root, 1)
	got := collect(r.out)
	s.Inject(r.in, 1, 1e7+0.009)
	s.Inject(r.in, 2, 1e7)

	// WHEN the simulator runs
	require.NoError(t, s.Run(context.Background(), 2e7))

	// THEN the earlier input is applied first and the run completes
	require.Len(t, r.log, 3)
	assert.Equal(t, "ext@1e+07 e=0 v=2", r.log[0])
	assert.Equal(t, []int{2, 1}, *got)
	assert.NoError(t, s.Halted())
}

func TestSimulator_PastInjectionIsDeliveredAtClampedTime(t *testing.T) {
	// GIVEN a simulator at t=10 and a relay created there
	s := NewSimulatorAt[float64](NewFloat64Time(), 10)
	root := NewRootCoupled[float64]("root", s)
	r := newRelay(t, "r", root, 1)

	// WHEN input is injected at t=4
	cb := s.Inject(r.in, 1, 4)
	require.NoError(t, s.Run(context.Background(), 20))

	// THEN it is delivered at t=10 rather than rejected as a causality violation
	assert.Equal(t, 10.0, cb.At())
	assert.Equal(t, []string{"ext@10 e=0 v=1", "int@11"}, r.log)
	assert.NoError(t, s.Halted())
}
