package cmd

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const countersYAML = `
name: clocks
horizon: 100
outputs:
  - {name: ticks, type: int}
models:
  - name: bank
    kind: coupled
    outputs:
      - {name: out, type: int}
    models:
      - name: fast
        kind: counter
        params: {period: 1}
      - name: slow
        kind: counter
        params: {period: 2.5}
    couplings:
      - {from: fast.count, to: out}
      - {from: slow.count, to: out}
couplings:
  - {from: bank.out, to: ticks}
`

func TestRunSimulation_HorizonOverride_PrintsSummaryAndReports(t *testing.T) {
	// GIVEN a counters topology and a horizon override of 5
	path := writeTempYAML(t, countersYAML)
	h := 5.0
	var buf bytes.Buffer

	// WHEN the simulation runs with transition tracing
	err := runSimulation(context.Background(), path, runOptions{Horizon: &h, TraceLevel: "transitions"}, &buf)

	// THEN the summary, trace summary and model reports are printed
	require.NoError(t, err)
	out := buf.String()
	assert.Contains(t, out, "=== Simulation Summary ===")
	assert.Contains(t, out, "Final clock          : 5\n")
	assert.Contains(t, out, "Emitted on ticks     : 7\n")
	assert.Contains(t, out, "=== Trace Summary ===")
	assert.Contains(t, out, "Transitions          : 9 (dropped 0)")
	assert.Contains(t, out, "clocks.bank.fast")
	assert.Contains(t, out, "=== Model Reports ===")
}

func TestRunSimulation_NoTrace_OmitsTraceSummary(t *testing.T) {
	path := writeTempYAML(t, countersYAML)
	h := 2.0
	var buf bytes.Buffer

	require.NoError(t, runSimulation(context.Background(), path, runOptions{Horizon: &h, TraceLevel: "none"}, &buf))

	assert.NotContains(t, buf.String(), "=== Trace Summary ===")
}

func TestRunSimulation_Errors(t *testing.T) {
	path := writeTempYAML(t, countersYAML)

	err := runSimulation(context.Background(), path, runOptions{TraceLevel: "verbose"}, &bytes.Buffer{})
	assert.ErrorContains(t, err, "unknown trace level")

	err = runSimulation(context.Background(), "/nonexistent.yaml", runOptions{}, &bytes.Buffer{})
	assert.ErrorContains(t, err, "reading topology")

	bad := writeTempYAML(t, "name: x\nmodels:\n  - {name: a, kind: warp}")
	err = runSimulation(context.Background(), bad, runOptions{}, &bytes.Buffer{})
	assert.ErrorContains(t, err, "unknown kind")
}

func TestRunSimulation_CancelledContext(t *testing.T) {
	path := writeTempYAML(t, countersYAML)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := runSimulation(ctx, path, runOptions{}, &bytes.Buffer{})

	assert.ErrorIs(t, err, context.Canceled)
}

func TestValidateTopology(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, validateTopology(writeTempYAML(t, countersYAML), &buf))
	assert.Contains(t, buf.String(), `topology "clocks" is valid (1 top-level models)`)

	err := validateTopology(writeTempYAML(t, "horizon: 3"), &bytes.Buffer{})
	assert.ErrorContains(t, err, "name is required")
}

func TestSetLogLevel_RejectsUnknownLevel(t *testing.T) {
	assert.Error(t, setLogLevel("loud"))
	assert.NoError(t, setLogLevel("warn"))
}

func writeTempYAML(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "topology.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestShippedExamples_AreValid(t *testing.T) {
	for _, name := range []string{"gpt.yaml", "counters.yaml"} {
		t.Run(name, func(t *testing.T) {
			assert.NoError(t, validateTopology(filepath.Join("..", "examples", name), &bytes.Buffer{}))
		})
	}
}

func TestRunSimulation_GPTExample_SeedOverrideIsDeterministic(t *testing.T) {
	path := filepath.Join("..", "examples", "gpt.yaml")
	s := int64(7)
	var a, b bytes.Buffer

	require.NoError(t, runSimulation(context.Background(), path, runOptions{Seed: &s}, &a))
	require.NoError(t, runSimulation(context.Background(), path, runOptions{Seed: &s}, &b))

	reportsOf := func(out string) string {
		i := bytes.Index([]byte(out), []byte("=== Model Reports ==="))
		require.GreaterOrEqual(t, i, 0)
		return out[i:]
	}
	assert.Equal(t, reportsOf(a.String()), reportsOf(b.String()))
	assert.Contains(t, a.String(), "Seed                 : 7\n")
}
