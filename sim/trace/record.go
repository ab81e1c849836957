// Package trace provides transition-trace recording for DEVS runs.
// This package has no dependencies on sim/; it stores pure data types.
package trace

// Transition kinds as recorded. They mirror sim.TransitionKind.
const (
	KindInit      = "init"
	KindInternal  = "internal"
	KindExternal  = "external"
	KindConfluent = "confluent"
)

// TransitionRecord captures one applied transition of an atomic model.
// Times are float64 views of the simulation's time domain.
type TransitionRecord struct {
	Model    string
	Phase    string // phase after the transition
	Kind     string
	Clock    float64
	Elapsed  float64
	Port     string  // input port for external and confluent transitions
	TimeNext float64 // +Inf when the model became passive
}
