package graph

import (
	"fmt"
	"slices"

	"fortio.org/safecast"
)

// Topo is a Kahn topological order over the dependency graph, used by the
// synthesizer to emit construction closures dependencies-first. Batches are
// waves of mutually independent services, each sorted for determinism.
type Topo struct {
	Order   []NodeID
	Batches [][]NodeID
	Cyclic  bool
	Cycles  []NodeID // nodes left inside a cycle
}

// Toposort runs Kahn over reversed edges: a service becomes ready once all
// of its dependencies are ordered.
func Toposort(g *Graph) *Topo {
	n := g.Len()

	// Outgoing edges point at dependencies, so readiness counts them.
	pending := make([]int, n)
	dependents := make([][]NodeID, n)
	for from := range g.Adj {
		pending[from] = len(g.Adj[from])
		for _, to := range g.Adj[from] {
			fromID, err := safecast.Conv[NodeID](from)
			if err != nil {
				panic(fmt.Errorf("node id overflow: %w", err))
			}
			dependents[to] = append(dependents[to], fromID)
		}
	}

	topo := &Topo{Order: make([]NodeID, 0, n)}
	current := make([]NodeID, 0, n)
	for i := 0; i < n; i++ {
		if pending[i] == 0 {
			id, err := safecast.Conv[NodeID](i)
			if err != nil {
				panic(fmt.Errorf("node id overflow: %w", err))
			}
			current = append(current, id)
		}
	}
	slices.Sort(current)

	visited := 0
	for len(current) > 0 {
		batch := make([]NodeID, len(current))
		copy(batch, current)
		topo.Batches = append(topo.Batches, batch)

		next := make([]NodeID, 0)
		for _, id := range batch {
			topo.Order = append(topo.Order, id)
			visited++
			for _, dep := range dependents[id] {
				pending[dep]--
				if pending[dep] == 0 {
					next = append(next, dep)
				}
			}
		}
		slices.Sort(next)
		current = next
	}

	if visited != n {
		topo.Cyclic = true
		for i := 0; i < n; i++ {
			if pending[i] > 0 {
				id, err := safecast.Conv[NodeID](i)
				if err != nil {
					panic(fmt.Errorf("node id overflow: %w", err))
				}
				topo.Cycles = append(topo.Cycles, id)
			}
		}
		slices.Sort(topo.Cycles)
	}
	return topo
}
