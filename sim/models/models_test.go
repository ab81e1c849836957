package models

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inference-sim/devs-sim/sim"
	"github.com/inference-sim/devs-sim/sim/internal/testutil"
)

func newRoot() (*sim.Simulator[float64], *sim.Coupled[float64]) {
	s := sim.NewSimulator[float64](sim.NewFloat64Time())
	return s, sim.NewRootCoupled[float64]("root", s)
}

func TestCounter_CountsAndResets(t *testing.T) {
	// GIVEN a counter with period 1 and a reset injected at t=2.5
	s, root := newRoot()
	c, err := NewCounter[float64]("counter", root, 1.0)
	require.NoError(t, err)
	var counts []int
	c.Count.AddSink(func(v int, _ float64) { counts = append(counts, v) })
	s.Inject(c.Reset, true, 2.5)

	// WHEN run to t=3
	require.NoError(t, s.Run(context.Background(), 3.0))

	// THEN it emitted 1, 2, then 1 again after the reset, keeping its period
	assert.Equal(t, []int{1, 2, 1}, counts)
	assert.Equal(t, 1, c.Value())
	assert.Equal(t, 4.0, c.TimeNext())
	v, ok := c.Report().Get("count")
	require.True(t, ok)
	assert.Equal(t, 1.0, v)
}

func TestProcessor_ServesInArrivalOrder(t *testing.T) {
	// GIVEN a processor at rate 2, a 4-unit job at t=0 and a 2-unit job at t=1
	s, root := newRoot()
	p, err := NewProcessor[float64]("proc", root, ProcessorConfig{Rate: 2})
	require.NoError(t, err)
	type done struct {
		id string
		at float64
	}
	var got []done
	p.Out.AddSink(func(j Job, at float64) { got = append(got, done{j.ID, at}) })
	s.Inject(p.In, Job{ID: "a", Size: 4}, 0)
	s.Inject(p.In, Job{ID: "b", Size: 2}, 1)

	// WHEN run
	require.NoError(t, s.Run(context.Background(), 100))

	// THEN b waits for a and both complete after their service times
	assert.Equal(t, []done{{"a", 2}, {"b", 3}}, got)
	assert.Equal(t, 2, p.Processed())
	assert.Equal(t, 0, p.QueueLen())
	assert.True(t, p.Passive())
}

func TestProcessor_RejectsNegativeRate(t *testing.T) {
	_, root := newRoot()
	_, err := NewProcessor[float64]("proc", root, ProcessorConfig{Rate: -1})
	assert.ErrorContains(t, err, "rate must be non-negative")
}

func TestGeneratorConfig_Validate(t *testing.T) {
	valid := GeneratorConfig{Interarrival: 1, SizeMean: 1}
	require.NoError(t, valid.Validate())

	tests := []struct {
		name   string
		mutate func(*GeneratorConfig)
		want   string
	}{
		{"zero interarrival", func(c *GeneratorConfig) { c.Interarrival = 0 }, "interarrival"},
		{"unknown distribution", func(c *GeneratorConfig) { c.Distribution = "pareto" }, "unknown distribution"},
		{"zero size", func(c *GeneratorConfig) { c.SizeMean = 0 }, "size_mean"},
		{"negative stdev", func(c *GeneratorConfig) { c.SizeStdev = -1 }, "size_stdev"},
		{"inverted bounds", func(c *GeneratorConfig) { c.SizeMin, c.SizeMax = 5, 2 }, "size_min"},
		{"negative max jobs", func(c *GeneratorConfig) { c.MaxJobs = -1 }, "max_jobs"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid
			tt.mutate(&cfg)
			assert.ErrorContains(t, cfg.Validate(), tt.want)
		})
	}
}

func TestGenerator_StopsAfterMaxJobs(t *testing.T) {
	s, root := newRoot()
	g, err := NewGenerator[float64]("genr", root, GeneratorConfig{Interarrival: 1.5, SizeMean: 1, MaxJobs: 3}, sim.NewPartitionedRNG(7))
	require.NoError(t, err)
	var created []float64
	g.Out.AddSink(func(j Job, _ float64) { created = append(created, j.CreatedAt) })

	require.NoError(t, s.Run(context.Background(), 100))

	assert.Equal(t, []float64{1.5, 3, 4.5}, created)
	assert.Equal(t, 3, g.Sent())
	assert.Equal(t, "stopped", g.Phase().Name())
}

func TestGenerator_StreamFollowsFullName(t *testing.T) {
	_, root := newRoot()
	rng := sim.NewPartitionedRNG(7)
	g, err := NewGenerator[float64]("genr", root, GeneratorConfig{Interarrival: 1, SizeMean: 1}, rng)
	require.NoError(t, err)

	assert.Same(t, sim.ForModel[float64](rng, g), g.rng)
}

// gptFrame is a saturated frame: a 3-unit job every 2 time units, observed
// for 19 time units.
func gptFrame() GPTConfig {
	return GPTConfig{
		Generator:  GeneratorConfig{Interarrival: 2, SizeMean: 3},
		Processor:  ProcessorConfig{Rate: 1},
		Transducer: TransducerConfig{Observation: 19},
	}
}

func TestGPT_SaturatedFrame(t *testing.T) {
	// GIVEN a GPT frame inside a root model
	s, root := newRoot()
	g, err := NewGPT[float64]("gpt", root, gptFrame(), sim.NewPartitionedRNG(42))
	require.NoError(t, err)
	var completed []Job
	g.Out.AddSink(func(j Job, _ float64) { completed = append(completed, j) })

	// WHEN run well past the observation window
	require.NoError(t, s.Run(context.Background(), 100))

	// THEN the transducer stopped the generator at t=19 after nine arrivals
	assert.True(t, g.Transducer.Finished())
	assert.Equal(t, 9, g.Generator.Sent())
	assert.Equal(t, "stopped", g.Generator.Phase().Name())

	// AND the processor drained every job that was generated
	assert.Equal(t, 9, g.Processor.Processed())
	assert.Len(t, completed, 9)

	// AND job k, arriving at 2k and leaving at 2+3k, spent 2+k in the system
	r := g.Transducer.Report()
	solved, _ := r.Get("jobs_solved")
	assert.Equal(t, 5.0, solved)
	arrived, _ := r.Get("jobs_arrived")
	assert.Equal(t, 9.0, arrived)
	mean, stdev := g.Transducer.Turnaround()
	testutil.AssertFloat64Equal(t, "turnaround mean", 5, mean, 1e-9)
	testutil.AssertFloat64Equal(t, "turnaround stdev", 1.5811388300841898, stdev, 1e-9)
	testutil.AssertFloat64Equal(t, "throughput", 5.0/19.0, g.Transducer.Throughput(), 1e-9)
	maxQueue, _ := g.Processor.Report().Get("max_queue")
	assert.Equal(t, 3.0, maxQueue)
}

func runExponentialGPT(t *testing.T, seed int64) ([]Report, []Job) {
	t.Helper()
	cfg := gptFrame()
	cfg.Generator.Distribution = "exponential"
	cfg.Generator.SizeStdev = 1
	cfg.Generator.SizeMin = 0.5
	cfg.Generator.SizeMax = 6
	cfg.Transducer.Observation = 50

	s, root := newRoot()
	g, err := NewGPT[float64]("gpt", root, cfg, sim.NewPartitionedRNG(sim.NewSimulationKey(seed)))
	require.NoError(t, err)
	var completed []Job
	g.Out.AddSink(func(j Job, _ float64) { completed = append(completed, j) })
	require.NoError(t, s.Run(context.Background(), 500))
	return g.Reports(), completed
}

func TestGPT_DeterministicForSeed(t *testing.T) {
	// GIVEN two runs with the same seed
	r1, jobs1 := runExponentialGPT(t, 42)
	r2, jobs2 := runExponentialGPT(t, 42)

	// THEN reports and completed jobs are identical
	assert.Equal(t, r1, r2)
	assert.Equal(t, jobs1, jobs2)
	require.NotEmpty(t, jobs1)
	for _, j := range jobs1 {
		assert.GreaterOrEqual(t, j.Size, 0.5)
		assert.LessOrEqual(t, j.Size, 6.0)
	}

	// AND a different seed produces different jobs
	_, jobs3 := runExponentialGPT(t, 43)
	require.NotEmpty(t, jobs3)
	assert.NotEqual(t, jobs1[0].ID, jobs3[0].ID)
}
