// Package graph builds the directed type→required-type graph from selected
// constructor shapes and runs the structural validations: cycle detection,
// captive-dependency (lifetime mismatch) checks, and zero-match resolution
// checks. Edges drive analysis only; registration never depends on them.
package graph

import (
	"fmt"

	"fortio.org/safecast"

	"wireplan/internal/aggregate"
	"wireplan/internal/diag"
	"wireplan/internal/snapshot"
)

// NodeID indexes a registrable service inside one Graph.
type NodeID uint32

// Edge is one dependency derived from a selected-constructor parameter.
type Edge struct {
	From  NodeID
	To    NodeID
	Param snapshot.Param
}

// Graph holds the dependency edges over the merged registrable set.
// Node order mirrors aggregate.Merged.Services, which is already sorted
// by (module, name), so NodeIDs are deterministic.
type Graph struct {
	Merged *aggregate.Merged
	Edges  []Edge
	Adj    [][]NodeID // Adj[from] = sorted []to
	Indeg  []int
	index  map[string]NodeID // concrete name -> id
}

// Build derives one edge per selected-constructor parameter, resolving the
// target against the registrable set by concrete name first, then by
// capability. Parameters with no registrable match are assumed
// framework-provided and reported, not fatally.
func Build(m *aggregate.Merged, r diag.Reporter) *Graph {
	n := len(m.Services)
	g := &Graph{
		Merged: m,
		Adj:    make([][]NodeID, n),
		Indeg:  make([]int, n),
		index:  make(map[string]NodeID, n),
	}
	for i := range m.Services {
		id, err := safecast.Conv[NodeID](i)
		if err != nil {
			panic(fmt.Errorf("node id overflow: %w", err))
		}
		g.index[m.Services[i].Name] = id
	}

	for i := range m.Services {
		from := NodeID(uint32(i)) // #nosec G115 -- bounded by index build above
		svc := &m.Services[i]
		for _, p := range svc.Selection.Params {
			g.addParamEdges(from, svc, p, r)
		}
	}

	for from := range g.Adj {
		seen := make(map[NodeID]struct{}, len(g.Adj[from]))
		deduped := g.Adj[from][:0]
		for _, to := range g.Adj[from] {
			if _, dup := seen[to]; dup {
				continue
			}
			seen[to] = struct{}{}
			deduped = append(deduped, to)
			g.Indeg[to]++
		}
		g.Adj[from] = deduped
	}
	return g
}

func (g *Graph) addParamEdges(from NodeID, svc *aggregate.Service, p snapshot.Param, r diag.Reporter) {
	m := g.Merged
	if p.Type == "" {
		diag.ReportError(r, diag.GraphUnknownParam, svc.Decl.Span,
			fmt.Sprintf("type %q declares a constructor parameter with no type", svc.Name)).Emit()
		return
	}
	switch {
	case p.Collection:
		impls := m.Implementors(p.Type)
		if target, ok := m.ServiceByName(p.Type); ok && len(impls) == 0 {
			impls = []*aggregate.Service{target}
		}
		if len(impls) == 0 {
			diag.ReportInfo(r, diag.GraphZeroMatch, svc.Decl.Span,
				fmt.Sprintf("type %q requests all implementations of %q but none are registrable", svc.Name, p.Type)).Emit()
			return
		}
		for _, impl := range impls {
			to := g.index[impl.Name]
			if to == from {
				// A composite collecting its own capability legitimately
				// receives itself; not a construction cycle.
				continue
			}
			g.link(from, to, p)
		}
	case p.Optional:
		target, ok := m.Resolve(p.Type)
		if !ok {
			diag.ReportInfo(r, diag.GraphZeroMatch, svc.Decl.Span,
				fmt.Sprintf("type %q optionally resolves %q but nothing registrable matches", svc.Name, p.Type)).Emit()
			return
		}
		g.linkResolved(from, svc, target, p, r)
	default:
		target, ok := m.Resolve(p.Type)
		if !ok {
			diag.ReportWarning(r, diag.GraphUnresolved, svc.Decl.Span,
				fmt.Sprintf("type %q requires %q, which nothing registrable provides; assuming it is framework-provided", svc.Name, p.Type)).Emit()
			return
		}
		g.linkResolved(from, svc, target, p, r)
	}
}

// linkResolved adds the edge for a single-target slot. A slot resolving to
// its own service is a one-node construction cycle and gets its own
// diagnostic instead of an edge, keeping cycle reports for multi-node trails.
func (g *Graph) linkResolved(from NodeID, svc *aggregate.Service, target *aggregate.Service, p snapshot.Param, r diag.Reporter) {
	if target.Name == svc.Name {
		diag.ReportError(r, diag.GraphSelfEdge, svc.Decl.Span,
			fmt.Sprintf("type %q requires %q, which resolves to itself", svc.Name, p.Type)).Emit()
		return
	}
	g.link(from, g.index[target.Name], p)
}

func (g *Graph) link(from, to NodeID, p snapshot.Param) {
	g.Edges = append(g.Edges, Edge{From: from, To: to, Param: p})
	g.Adj[from] = append(g.Adj[from], to)
}

// Service returns the service behind a node.
func (g *Graph) Service(id NodeID) *aggregate.Service {
	return &g.Merged.Services[id]
}

// Node returns the node for a concrete service name.
func (g *Graph) Node(name string) (NodeID, bool) {
	id, ok := g.index[name]
	return id, ok
}

func (g *Graph) Len() int {
	return len(g.Merged.Services)
}
