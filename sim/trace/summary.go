package trace

import "sort"

// TraceSummary aggregates statistics from a SimulationTrace.
type TraceSummary struct {
	TotalTransitions int
	ByKind           map[string]int // transition kind → count
	ByModel          map[string]int // model full name → count (init excluded)
	FinalPhase       map[string]string
	FirstClock       float64
	LastClock        float64
	Dropped          int
}

// Summarize computes aggregate statistics from a SimulationTrace.
// Safe for nil or empty traces (returns zero-value fields).
func Summarize(st *SimulationTrace) *TraceSummary {
	summary := &TraceSummary{
		ByKind:     make(map[string]int),
		ByModel:    make(map[string]int),
		FinalPhase: make(map[string]string),
	}
	if st == nil {
		return summary
	}

	records := st.Transitions()
	summary.TotalTransitions = len(records)
	summary.Dropped = st.Dropped()
	for i, r := range records {
		summary.ByKind[r.Kind]++
		if r.Kind != KindInit {
			summary.ByModel[r.Model]++
		}
		summary.FinalPhase[r.Model] = r.Phase
		if i == 0 || r.Clock < summary.FirstClock {
			summary.FirstClock = r.Clock
		}
		if r.Clock > summary.LastClock {
			summary.LastClock = r.Clock
		}
	}
	return summary
}

// Models returns the model names present in the summary, sorted.
func (s *TraceSummary) Models() []string {
	names := make([]string, 0, len(s.FinalPhase))
	for name := range s.FinalPhase {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
