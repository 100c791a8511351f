package classify

import (
	"fmt"

	"wireplan/internal/diag"
	"wireplan/internal/snapshot"
)

// Config tunes classification policy.
type Config struct {
	// ExcludedCapabilities lists capability names whose implementors are
	// opted out of InjectableService, as if each carried an exclude marker.
	ExcludedCapabilities map[string]struct{}
}

// Candidate is one declaration with its derived roles.
type Candidate struct {
	Decl  *snapshot.TypeDecl
	Roles RoleSet
}

// InaccessibleMatch records a non-origin declaration that would hold a role
// were it accessible from the synthesis point. Silent loss of registrations
// is worse than a loud failure, so these become build errors downstream.
type InaccessibleMatch struct {
	Type   string
	Module string
	Role   Role
}

// Result is the classifier output for one module.
type Result struct {
	Module       string
	Origin       bool
	Candidates   []Candidate
	Inaccessible []InaccessibleMatch
}

// Candidate returns the classified entry for a qualified type name.
func (r *Result) Candidate(name string) (*Candidate, bool) {
	for i := range r.Candidates {
		if r.Candidates[i].Decl.Name == name {
			return &r.Candidates[i], true
		}
	}
	return nil, false
}

// Module classifies every declaration of mod. origin reports whether mod is
// the module currently being synthesized; universe supplies cross-module
// lookups (capability declarations, interceptor targets).
func Module(mod *snapshot.Module, origin bool, universe *snapshot.Snapshot, cfg Config, r diag.Reporter) *Result {
	res := &Result{Module: mod.Name, Origin: origin}
	for i := range mod.Types {
		decl := &mod.Types[i]
		cand := Candidate{Decl: decl}

		accessible := decl.Access == snapshot.AccessPublic || origin

		if injectable, accessOnly := classifyInjectable(decl, accessible, universe, cfg, r); injectable {
			cand.Roles = cand.Roles.With(RoleInjectable)
		} else if accessOnly {
			res.Inaccessible = append(res.Inaccessible, InaccessibleMatch{
				Type: decl.Name, Module: mod.Name, Role: RoleInjectable,
			})
		}

		if plugin, accessOnly := classifyPlugin(decl, accessible, universe); plugin {
			cand.Roles = cand.Roles.With(RolePlugin)
		} else if accessOnly {
			res.Inaccessible = append(res.Inaccessible, InaccessibleMatch{
				Type: decl.Name, Module: mod.Name, Role: RolePlugin,
			})
		}

		if accessible {
			cand.Roles |= markerRoles(decl, universe)
		}

		res.Candidates = append(res.Candidates, cand)
	}
	return res
}

// classifyInjectable returns (holds role, failed only on accessibility).
func classifyInjectable(decl *snapshot.TypeDecl, accessible bool, universe *snapshot.Snapshot, cfg Config, r diag.Reporter) (bool, bool) {
	structural := decl.Flags&(snapshot.FlagAbstract|
		snapshot.FlagStatic|
		snapshot.FlagOpenGeneric|
		snapshot.FlagNested|
		snapshot.FlagExceptionLike|
		snapshot.FlagAttributeLike|
		snapshot.FlagRecordLike|
		snapshot.FlagValueLike) == 0

	if !structural {
		return false, false
	}
	if decl.HasMarker(snapshot.MarkerExclude) {
		return false, false
	}
	for _, cap := range decl.Implements {
		if _, excluded := cfg.ExcludedCapabilities[cap]; excluded {
			return false, false
		}
	}
	if decl.RequiresInit && !decl.HasMarker(snapshot.MarkerTrustedInit) {
		return false, false
	}
	if !accessible {
		return false, true
	}

	// A factory-wrapped type with genuine runtime parameters is registered
	// through its factory, not as an ordinary service. A factory marker on a
	// type whose every parameter is injectable is low-value: warn and fall
	// back to ordinary classification.
	if decl.HasMarker(snapshot.MarkerFactory) {
		if hasRuntimeParams(decl, universe) {
			return false, false
		}
		diag.ReportWarning(r, diag.ClassRedundantFactory, decl.Span,
			fmt.Sprintf("type %q: factory marker has no runtime-supplied parameters", decl.Name)).Emit()
	}
	return true, false
}

// classifyPlugin returns (holds role, failed only on accessibility).
// Record-like types are allowed here, unlike InjectableService.
func classifyPlugin(decl *snapshot.TypeDecl, accessible bool, universe *snapshot.Snapshot) (bool, bool) {
	if decl.Flags.Has(snapshot.FlagAbstract) || decl.Flags.Has(snapshot.FlagStatic) ||
		decl.Flags.Has(snapshot.FlagOpenGeneric) || decl.Flags.Has(snapshot.FlagValueLike) {
		return false, false
	}
	if !hasZeroArgConstruction(decl) {
		return false, false
	}
	if !hasNonFrameworkContract(decl, universe) {
		return false, false
	}
	if !accessible {
		return false, true
	}
	return true, false
}

// markerRoles derives the purely marker-driven roles.
func markerRoles(decl *snapshot.TypeDecl, universe *snapshot.Snapshot) RoleSet {
	var roles RoleSet
	if decl.HasMarker(snapshot.MarkerDecorator) {
		roles = roles.With(RoleDecorator)
	}
	if decl.HasMarker(snapshot.MarkerInterceptor) {
		roles = roles.With(RoleInterceptor)
	}
	if decl.HasMarker(snapshot.MarkerFactory) && hasRuntimeParams(decl, universe) {
		roles = roles.With(RoleFactory)
	}
	if decl.HasMarker(snapshot.MarkerOptions) && !decl.Flags.Has(snapshot.FlagStatic) {
		roles = roles.With(RoleOptions)
	}
	if decl.HasMarker(snapshot.MarkerHosted) &&
		!decl.Flags.Has(snapshot.FlagAbstract) && !decl.Flags.Has(snapshot.FlagStatic) {
		roles = roles.With(RoleHosted)
	}
	if isIntercepted(decl, universe) {
		roles = roles.With(RoleIntercepted)
	}
	return roles
}

// hasRuntimeParams reports whether some constructor takes at least one
// runtime-supplied (non-injectable) parameter.
func hasRuntimeParams(decl *snapshot.TypeDecl, universe *snapshot.Snapshot) bool {
	for i := range decl.Ctors {
		if decl.Ctors[i].Static {
			continue
		}
		for _, p := range decl.Ctors[i].Params {
			if !universe.IsInjectableParam(p) {
				return true
			}
		}
	}
	return false
}

// hasZeroArgConstruction: a declared zero-parameter constructor, or no
// declared constructors at all.
func hasZeroArgConstruction(decl *snapshot.TypeDecl) bool {
	declared := false
	for i := range decl.Ctors {
		if decl.Ctors[i].Static {
			continue
		}
		declared = true
		if len(decl.Ctors[i].Params) == 0 {
			return true
		}
	}
	return !declared
}

// hasNonFrameworkContract: at least one implemented capability or base type
// that is not framework-provided.
func hasNonFrameworkContract(decl *snapshot.TypeDecl, universe *snapshot.Snapshot) bool {
	for _, name := range decl.Implements {
		if cap, ok := universe.Capability(name); ok && cap.Framework {
			continue
		}
		return true
	}
	for _, name := range decl.Bases {
		if cap, ok := universe.Capability(name); ok && cap.Framework {
			continue
		}
		return true
	}
	return false
}

// isIntercepted: some declaration in the universe carries an interceptor
// marker targeting this type or one of its capabilities.
func isIntercepted(decl *snapshot.TypeDecl, universe *snapshot.Snapshot) bool {
	targets := make(map[string]struct{}, len(decl.Implements)+1)
	targets[decl.Name] = struct{}{}
	for _, cap := range decl.Implements {
		targets[cap] = struct{}{}
	}
	for i := range universe.Modules {
		mod := &universe.Modules[i]
		for j := range mod.Types {
			m, ok := mod.Types[j].Marker(snapshot.MarkerInterceptor)
			if !ok {
				continue
			}
			if _, hit := targets[m.Str("target")]; hit {
				return true
			}
		}
	}
	return false
}
