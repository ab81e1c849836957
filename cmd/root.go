package cmd

import (
	"context"
	"fmt"
	"io"
	"math"
	"os"
	"os/signal"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/inference-sim/devs-sim/sim"
	"github.com/inference-sim/devs-sim/sim/models"
	"github.com/inference-sim/devs-sim/sim/topology"
	"github.com/inference-sim/devs-sim/sim/trace"
)

var (
	configPath  string  // Path to the YAML topology
	seed        int64   // Seed for the partitioned RNG; overrides the topology's seed when set
	horizon     float64 // Simulation horizon; overrides the topology's horizon when set
	logLevel    string  // Log verbosity level
	traceLevel  string  // Transition trace level
	traceMaxRec int     // Cap on retained trace records
)

// rootCmd is the base command for the CLI
var rootCmd = &cobra.Command{
	Use:   "devs-sim",
	Short: "Parallel-DEVS simulator for hierarchical model topologies",
}

// runCmd builds the topology from --config and simulates it
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a simulation from a YAML topology",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := setLogLevel(logLevel); err != nil {
			return err
		}
		opts := runOptions{TraceLevel: traceLevel, TraceMaxRecords: traceMaxRec}
		if cmd.Flags().Changed("seed") {
			opts.Seed = &seed
		}
		if cmd.Flags().Changed("horizon") {
			opts.Horizon = &horizon
		}
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()
		return runSimulation(ctx, configPath, opts, cmd.OutOrStdout())
	},
}

// validateCmd loads and validates a topology without running it
var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a YAML topology",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := setLogLevel(logLevel); err != nil {
			return err
		}
		return validateTopology(configPath, cmd.OutOrStdout())
	},
}

func setLogLevel(level string) error {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", level, err)
	}
	logrus.SetLevel(lvl)
	return nil
}

func validateTopology(path string, out io.Writer) error {
	spec, err := topology.LoadSpec(path)
	if err != nil {
		return err
	}
	if err := spec.Validate(); err != nil {
		return fmt.Errorf("invalid topology %s: %w", path, err)
	}
	fmt.Fprintf(out, "topology %q is valid (%d top-level models)\n", spec.Name, len(spec.Models))
	return nil
}

// runOptions carries CLI overrides; nil pointers keep the topology's values.
type runOptions struct {
	Seed            *int64
	Horizon         *float64
	TraceLevel      string
	TraceMaxRecords int
}

func runSimulation(ctx context.Context, path string, opts runOptions, out io.Writer) error {
	if !trace.IsValidTraceLevel(opts.TraceLevel) {
		return fmt.Errorf("unknown trace level %q", opts.TraceLevel)
	}
	spec, err := topology.LoadSpec(path)
	if err != nil {
		return err
	}
	if opts.Seed != nil {
		spec.Seed = *opts.Seed
	}
	if opts.Horizon != nil {
		spec.Horizon = *opts.Horizon
	}

	s := sim.NewSimulator[float64](sim.NewFloat64Time())
	st := trace.NewSimulationTrace(trace.TraceConfig{
		Level:      trace.TraceLevel(opts.TraceLevel),
		MaxRecords: opts.TraceMaxRecords,
	})
	var listeners []sim.StateListener[float64]
	if st.Enabled() {
		listeners = append(listeners, sim.NewTraceListener(st, s.Domain()))
	}
	net, err := topology.Build(spec, s, sim.NewPartitionedRNG(sim.NewSimulationKey(spec.Seed)), listeners...)
	if err != nil {
		return err
	}

	end := spec.Horizon
	if end == 0 {
		end = math.Inf(1)
	}
	logrus.WithField("run", s.RunID).Infof("Starting simulation %s with seed=%d, horizon=%g", spec.Name, spec.Seed, end)
	start := time.Now()
	if err := s.Run(ctx, end); err != nil {
		return fmt.Errorf("simulation %s: %w", spec.Name, err)
	}

	fmt.Fprintln(out, "=== Simulation Summary ===")
	fmt.Fprintf(out, "Topology             : %s\n", spec.Name)
	fmt.Fprintf(out, "Run ID               : %s\n", s.RunID)
	fmt.Fprintf(out, "Seed                 : %d\n", spec.Seed)
	fmt.Fprintf(out, "Final clock          : %g\n", s.CurrentTime())
	fmt.Fprintf(out, "Callbacks processed  : %d\n", s.Processed())
	fmt.Fprintf(out, "Wall time            : %s\n", time.Since(start).Round(time.Millisecond))
	for _, p := range net.Root.OutputPorts() {
		fmt.Fprintf(out, "Emitted on %-10s: %d\n", p.Name(), net.Emitted(p.Name()))
	}
	if st.Enabled() {
		printTraceSummary(out, trace.Summarize(st))
	}
	models.PrintReports(out, net.Reports())
	logrus.Info("Simulation complete.")
	return nil
}

func printTraceSummary(out io.Writer, ts *trace.TraceSummary) {
	fmt.Fprintln(out, "=== Trace Summary ===")
	fmt.Fprintf(out, "Transitions          : %d (dropped %d)\n", ts.TotalTransitions, ts.Dropped)
	for _, kind := range []string{trace.KindInit, trace.KindInternal, trace.KindExternal, trace.KindConfluent} {
		fmt.Fprintf(out, "  %-19s: %d\n", kind, ts.ByKind[kind])
	}
	for _, m := range ts.Models() {
		fmt.Fprintf(out, "  %-40s %6d transitions, final phase %s\n", m, ts.ByModel[m], ts.FinalPhase[m])
	}
}

// Execute runs the CLI root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// init sets up CLI flags and subcommands
func init() {
	for _, c := range []*cobra.Command{runCmd, validateCmd} {
		c.Flags().StringVar(&configPath, "config", "", "Path to the YAML topology")
		c.Flags().StringVar(&logLevel, "log", "warn", "Log level (trace, debug, info, warn, error, fatal, panic)")
		_ = c.MarkFlagRequired("config")
		rootCmd.AddCommand(c)
	}
	runCmd.Flags().Int64Var(&seed, "seed", 42, "Seed for the partitioned RNG (overrides the topology)")
	runCmd.Flags().Float64Var(&horizon, "horizon", 0, "Simulation horizon (overrides the topology; 0 runs until no events remain)")
	runCmd.Flags().StringVar(&traceLevel, "trace", "none", "Transition trace level (none, transitions)")
	runCmd.Flags().IntVar(&traceMaxRec, "trace-max-records", 0, "Cap on retained trace records (0 = unbounded)")
}
