// Package lifetime derives object lifetimes for injectable candidates from
// constructor shape alone; no runtime information is consulted.
//
// Singleton is the default for every candidate with a viable constructor.
// Scoped and Transient are never inferred: they appear only through an
// explicit lifetime marker, which is treated as input to this engine.
package lifetime

import (
	"fmt"

	"wireplan/internal/diag"
	"wireplan/internal/snapshot"
)

// Tag is the inferred lifetime of a registrable service.
type Tag uint8

const (
	Singleton Tag = iota
	Scoped
	Transient
)

func (t Tag) String() string {
	switch t {
	case Scoped:
		return "scoped"
	case Transient:
		return "transient"
	}
	return "singleton"
}

// Outlives reports whether t is longer-lived than other. Used by the captive
// dependency check: an edge from a longer-lived service to a shorter-lived
// one captures the dependency for the longer lifetime.
func (t Tag) Outlives(other Tag) bool {
	return t < other
}

// Selection is the engine output for one candidate.
type Selection struct {
	Registrable bool
	Tag         Tag
	CtorIndex   int  // index into Decl.Ctors; -1 when Deferred or no params
	Deferred    bool // container-deferred: params supplied by a later phase
	Params      []snapshot.Param
}

// Infer walks the declared constructors of an injectable candidate in
// declaration order and selects the first viable shape.
func Infer(decl *snapshot.TypeDecl, universe *snapshot.Snapshot, r diag.Reporter) Selection {
	// Explicit opt-out always wins, regardless of shape.
	if decl.HasMarker(snapshot.MarkerExclude) {
		return Selection{Registrable: false, CtorIndex: -1}
	}

	// Container-deferred construction: always Singleton, with the declared
	// parameter list instead of an inspected one.
	if m, ok := decl.Marker(snapshot.MarkerDeferred); ok {
		params := make([]snapshot.Param, 0)
		for _, name := range m.Strings("params") {
			params = append(params, snapshot.Param{Type: name})
		}
		if len(params) == 0 {
			diag.ReportWarning(r, diag.LifeDeferredParams, decl.Span,
				fmt.Sprintf("type %q: deferred marker declares no parameters", decl.Name)).Emit()
		}
		return Selection{
			Registrable: true,
			Tag:         explicitTag(decl, r),
			CtorIndex:   -1,
			Deferred:    true,
			Params:      params,
		}
	}

	// No declared constructors at all: implicit zero-argument construction.
	if len(decl.Ctors) == 0 {
		return Selection{Registrable: true, Tag: explicitTag(decl, r), CtorIndex: -1}
	}

	for i := range decl.Ctors {
		ctor := &decl.Ctors[i]
		if ctor.Static {
			continue
		}
		// Zero-parameter constructor immediately qualifies.
		if len(ctor.Params) == 0 {
			return Selection{Registrable: true, Tag: explicitTag(decl, r), CtorIndex: i}
		}
		// A single-parameter self-referential "copy" shape is not injectable.
		if len(ctor.Params) == 1 && ctor.Params[0].Type == decl.Name {
			continue
		}
		if allInjectable(ctor, universe) {
			return Selection{
				Registrable: true,
				Tag:         explicitTag(decl, r),
				CtorIndex:   i,
				Params:      ctor.Params,
			}
		}
	}
	return Selection{Registrable: false, CtorIndex: -1}
}

func allInjectable(ctor *snapshot.Ctor, universe *snapshot.Snapshot) bool {
	for _, p := range ctor.Params {
		if !universe.IsInjectableParam(p) {
			return false
		}
	}
	return true
}

// explicitTag applies the lifetime override marker; absent or invalid values
// keep the Singleton default.
func explicitTag(decl *snapshot.TypeDecl, r diag.Reporter) Tag {
	m, ok := decl.Marker(snapshot.MarkerLifetime)
	if !ok {
		return Singleton
	}
	switch m.Str("value") {
	case "singleton", "":
		return Singleton
	case "scoped":
		return Scoped
	case "transient":
		return Transient
	}
	diag.ReportWarning(r, diag.LifeBadLifetimeValue, decl.Span,
		fmt.Sprintf("type %q: unknown lifetime %q, keeping singleton", decl.Name, m.Str("value"))).Emit()
	return Singleton
}
