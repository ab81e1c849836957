package models

import (
	"fmt"
	"io"
	"sort"
)

// Metric is one named scalar reported at the end of a run.
type Metric struct {
	Name  string
	Value float64
}

// Report is the end-of-run summary of one model.
type Report struct {
	Model   string
	Metrics []Metric
}

// Reporter is implemented by models that summarize their run.
type Reporter interface {
	Report() Report
}

// Get returns the value of the named metric.
func (r Report) Get(name string) (float64, bool) {
	for _, m := range r.Metrics {
		if m.Name == name {
			return m.Value, true
		}
	}
	return 0, false
}

// PrintReports writes reports sorted by model name.
func PrintReports(w io.Writer, reports []Report) {
	sorted := make([]Report, len(reports))
	copy(sorted, reports)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Model < sorted[j].Model })
	fmt.Fprintln(w, "=== Model Reports ===")
	for _, r := range sorted {
		fmt.Fprintf(w, "%s\n", r.Model)
		for _, m := range r.Metrics {
			fmt.Fprintf(w, "  %-20s: %.4f\n", m.Name, m.Value)
		}
	}
}
