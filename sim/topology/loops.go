package topology

import (
	"sort"

	"gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"

	"github.com/inference-sim/devs-sim/sim"
)

// FeedbackLoops returns every cycle formed by internal couplings, at each
// level of the hierarchy under c. Each loop lists full model names starting
// from the lexically smallest; loops are sorted. A coupled child coupled to
// itself is a one-model loop. Loops are legal; they are reported because
// they are where same-instant ties and confluent transitions concentrate.
func FeedbackLoops[T any](c *sim.Coupled[T]) [][]string {
	var loops [][]string
	collectLoops(c, &loops)
	sort.Slice(loops, func(i, j int) bool { return lessNames(loops[i], loops[j]) })
	return loops
}

func collectLoops[T any](c *sim.Coupled[T], loops *[][]string) {
	children := c.Children()
	ids := make(map[sim.Model[T]]int64, len(children))
	g := simple.NewDirectedGraph()
	for i, m := range children {
		ids[m] = int64(i)
		g.AddNode(simple.Node(i))
	}
	selfLoops := make(map[int64]bool)
	for _, cp := range c.InternalCouplings() {
		from, to := ids[cp.From.Model()], ids[cp.To.Model()]
		if from == to {
			selfLoops[from] = true
			continue
		}
		g.SetEdge(simple.Edge{F: simple.Node(from), T: simple.Node(to)})
	}

	for id := range selfLoops {
		*loops = append(*loops, []string{children[id].FullName()})
	}
	for _, cycle := range topo.DirectedCyclesIn(g) {
		*loops = append(*loops, loopNames(children, cycle))
	}
	for _, m := range children {
		if sub, ok := m.(*sim.Coupled[T]); ok {
			collectLoops(sub, loops)
		}
	}
}

// loopNames converts a cycle, which repeats its first node at the end, into
// full names rotated to start at the smallest.
func loopNames[T any](children []sim.Model[T], cycle []graph.Node) []string {
	if len(cycle) > 1 && cycle[0].ID() == cycle[len(cycle)-1].ID() {
		cycle = cycle[:len(cycle)-1]
	}
	names := make([]string, len(cycle))
	start := 0
	for i, n := range cycle {
		names[i] = children[n.ID()].FullName()
		if names[i] < names[start] {
			start = i
		}
	}
	return append(names[start:], names[:start]...)
}

func lessNames(a, b []string) bool {
	for i := 0; i < len(a) && i < len(b); i++ {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return len(a) < len(b)
}
