package graph

import (
	"fmt"
	"strings"

	"wireplan/internal/diag"
)

// Validate runs the structural checks over the built graph. Every finding
// is a build-time diagnostic; nothing is deferred to runtime.
func Validate(g *Graph, r diag.Reporter) {
	reportCycles(g, r)
	reportCaptives(g, r)
}

const (
	colorWhite = iota // unvisited
	colorGray         // on the current DFS path
	colorBlack        // fully explored
)

// reportCycles runs a depth-first traversal; any back-edge among registrable
// services is fatal, because at runtime it would only manifest as infinite
// construction recursion. Each cycle is reported once, naming the full path.
func reportCycles(g *Graph, r diag.Reporter) {
	n := g.Len()
	color := make([]int, n)
	trail := make([]NodeID, 0, n)

	var visit func(id NodeID)
	visit = func(id NodeID) {
		color[id] = colorGray
		trail = append(trail, id)
		for _, to := range g.Adj[id] {
			switch color[to] {
			case colorWhite:
				visit(to)
			case colorGray:
				reportCycle(g, trail, to, r)
			}
		}
		trail = trail[:len(trail)-1]
		color[id] = colorBlack
	}

	// Node order is deterministic, so cycle entry points are too.
	for i := 0; i < n; i++ {
		if color[i] == colorWhite {
			visit(NodeID(uint32(i))) // #nosec G115 -- bounded by Len
		}
	}
}

func reportCycle(g *Graph, trail []NodeID, back NodeID, r diag.Reporter) {
	start := 0
	for i, id := range trail {
		if id == back {
			start = i
			break
		}
	}
	names := make([]string, 0, len(trail)-start+1)
	for _, id := range trail[start:] {
		names = append(names, g.Service(id).Name)
	}
	names = append(names, g.Service(back).Name)

	head := g.Service(back)
	diag.ReportError(r, diag.GraphCycle, head.Decl.Span,
		fmt.Sprintf("cyclic injectable dependency: %s", strings.Join(names, " -> "))).Emit()
}

// reportCaptives flags edges from a longer-lived service to a shorter-lived
// one: the dependency would be captured for the longer lifetime, defeating
// its declared scope.
func reportCaptives(g *Graph, r diag.Reporter) {
	for _, e := range g.Edges {
		from := g.Service(e.From)
		to := g.Service(e.To)
		if from.Lifetime.Outlives(to.Lifetime) {
			diag.ReportWarning(r, diag.GraphCaptive, from.Decl.Span,
				fmt.Sprintf("captive dependency: %s %q holds %s %q for its whole lifetime",
					from.Lifetime, from.Name, to.Lifetime, to.Name)).
				WithNote(to.Decl.Span, fmt.Sprintf("%q declared here", to.Name)).Emit()
		}
	}
}
