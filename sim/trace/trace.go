package trace

import "sync"

// TraceLevel controls the verbosity of transition tracing.
type TraceLevel string

const (
	// TraceLevelNone disables tracing (zero overhead).
	TraceLevelNone TraceLevel = "none"
	// TraceLevelTransitions captures every applied transition of every atomic model.
	TraceLevelTransitions TraceLevel = "transitions"
)

// validTraceLevels maps accepted trace level strings.
var validTraceLevels = map[TraceLevel]bool{
	TraceLevelNone:        true,
	TraceLevelTransitions: true,
	"":                    true, // empty defaults to none
}

// IsValidTraceLevel returns true if the given level string is a recognized trace level.
func IsValidTraceLevel(level string) bool {
	return validTraceLevels[TraceLevel(level)]
}

// TraceConfig controls trace collection behavior.
type TraceConfig struct {
	Level TraceLevel
	// MaxRecords caps the number of retained transitions; 0 means unbounded.
	// Records past the cap are counted in Dropped.
	MaxRecords int
}

// SimulationTrace collects transition records during a run. Sibling models
// may transition concurrently, so recording is synchronized.
type SimulationTrace struct {
	Config TraceConfig

	mu          sync.Mutex
	transitions []TransitionRecord
	dropped     int
}

// NewSimulationTrace creates a SimulationTrace ready for recording.
func NewSimulationTrace(config TraceConfig) *SimulationTrace {
	return &SimulationTrace{
		Config:      config,
		transitions: make([]TransitionRecord, 0),
	}
}

// Enabled reports whether records are retained at all.
func (st *SimulationTrace) Enabled() bool {
	return st != nil && st.Config.Level == TraceLevelTransitions
}

// RecordTransition appends a transition record.
func (st *SimulationTrace) RecordTransition(record TransitionRecord) {
	if !st.Enabled() {
		return
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.Config.MaxRecords > 0 && len(st.transitions) >= st.Config.MaxRecords {
		st.dropped++
		return
	}
	st.transitions = append(st.transitions, record)
}

// Transitions returns a copy of the recorded transitions in recording order.
func (st *SimulationTrace) Transitions() []TransitionRecord {
	if st == nil {
		return nil
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	out := make([]TransitionRecord, len(st.transitions))
	copy(out, st.transitions)
	return out
}

// Dropped returns the number of records discarded because of MaxRecords.
func (st *SimulationTrace) Dropped() int {
	if st == nil {
		return 0
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.dropped
}
