// Package aggregate merges per-module classification results into the
// registrable set for one synthesis point, enforcing the cross-module
// visibility policy and computing the bootstrap activation order.
package aggregate

import (
	"fmt"
	"sort"

	"wireplan/internal/classify"
	"wireplan/internal/diag"
	"wireplan/internal/lifetime"
	"wireplan/internal/snapshot"
	"wireplan/internal/source"
)

// Service is one registrable InjectableService after merging.
type Service struct {
	Name         string
	Module       string
	Capabilities []string
	Lifetime     lifetime.Tag
	Selection    lifetime.Selection
	Decl         *snapshot.TypeDecl
}

// Plugin is one registrable plugin entry.
type Plugin struct {
	Name         string
	Module       string
	Capabilities []string
	MarkerTypes  []string // names of markers captured on the declaration
	Order        int64
	HasOrder     bool
	Decl         *snapshot.TypeDecl
}

// Factory is one factory-wrapped type after merging: construction takes the
// container-resolved params plus caller-supplied runtime params.
type Factory struct {
	Name         string
	Module       string
	Capabilities []string
	Injectable   []snapshot.Param
	Runtime      []snapshot.Param
	Decl         *snapshot.TypeDecl
}

// Unit is the per-module input: classifier output plus lifetime selections.
type Unit struct {
	Module     *snapshot.Module
	Origin     bool
	Classified *classify.Result
	Selections map[string]lifetime.Selection
}

// Merged is the aggregate registrable set consumed by the graph validator,
// the chain resolver, and the synthesizer.
type Merged struct {
	Origin       string
	Snapshot     *snapshot.Snapshot
	Services     []Service // sorted by (module, name)
	Plugins      []Plugin  // sorted by (order, name)
	Factories    []Factory // sorted by (module, name)
	Roles        map[string]classify.RoleSet
	Activation   []string // upstream modules in bootstrap activation order
	byConcrete   map[string]*Service
	byCapability map[string][]*Service
}

// ServiceByName returns the registrable service with the given concrete name.
func (m *Merged) ServiceByName(name string) (*Service, bool) {
	s, ok := m.byConcrete[name]
	return s, ok
}

// Implementors returns registrable services keyed under capability name,
// in deterministic (module, name) order.
func (m *Merged) Implementors(capability string) []*Service {
	return m.byCapability[capability]
}

// Resolve matches a required type against the registrable set: first as a
// concrete type, then as a capability. A nil return with ok=false means
// nothing registrable matches (the type may still be framework-provided).
func (m *Merged) Resolve(typeName string) (*Service, bool) {
	if s, ok := m.byConcrete[typeName]; ok {
		return s, true
	}
	if impls := m.byCapability[typeName]; len(impls) > 0 {
		return impls[0], true
	}
	return nil, false
}

// ActivationOverride carries explicit ordering from the manifest: named
// first/last buckets that take precedence over per-module declarations.
type ActivationOverride struct {
	First []string
	Last  []string
}

// Merge combines per-module units. Visibility policy:
//
//  1. The origin module contributes public and module-internal candidates.
//  2. Upstream modules contribute public candidates only.
//  3. An upstream module that has not opted into synthesis but contains
//     module-internal candidates that would otherwise qualify is a
//     configuration defect: those registrations would silently vanish.
func Merge(snap *snapshot.Snapshot, units []Unit, override ActivationOverride, r diag.Reporter) *Merged {
	m := &Merged{
		Origin:       snap.Origin,
		Snapshot:     snap,
		Roles:        make(map[string]classify.RoleSet),
		byConcrete:   make(map[string]*Service),
		byCapability: make(map[string][]*Service),
	}

	for _, unit := range units {
		if !unit.Origin && !unit.Module.Synthesized && len(unit.Classified.Inaccessible) > 0 {
			for _, miss := range unit.Classified.Inaccessible {
				diag.ReportError(r, diag.ClassInaccessibleMatch, unit.Module.Span,
					fmt.Sprintf("internal type %q qualifies as %s but is invisible to synthesis",
						miss.Type, miss.Role)).Emit()
			}
			diag.ReportError(r, diag.AggMissingOptIn, unit.Module.Span,
				fmt.Sprintf("module %q is not opted into synthesis; its internal registrations would silently vanish",
					unit.Module.Name)).Emit()
		}

		for i := range unit.Classified.Candidates {
			cand := &unit.Classified.Candidates[i]
			if cand.Roles.Empty() {
				if len(cand.Decl.Markers) > 0 {
					diag.ReportInfo(r, diag.ClassOrphaned, cand.Decl.Span,
						fmt.Sprintf("type %q carries markers but holds no role; nothing consumes it", cand.Decl.Name)).Emit()
				}
				continue
			}
			m.Roles[cand.Decl.Name] = cand.Roles

			if cand.Roles.Has(classify.RoleInjectable) {
				sel, ok := unit.Selections[cand.Decl.Name]
				if ok && sel.Registrable {
					m.Services = append(m.Services, Service{
						Name:         cand.Decl.Name,
						Module:       unit.Module.Name,
						Capabilities: cand.Decl.Implements,
						Lifetime:     sel.Tag,
						Selection:    sel,
						Decl:         cand.Decl,
					})
				}
			}
			if cand.Roles.Has(classify.RolePlugin) {
				m.Plugins = append(m.Plugins, newPlugin(cand, unit.Module.Name))
			}
			if cand.Roles.Has(classify.RoleFactory) {
				m.Factories = append(m.Factories, newFactory(cand, unit.Module.Name, snap))
			}
		}
	}

	sort.Slice(m.Services, func(i, j int) bool {
		if m.Services[i].Module != m.Services[j].Module {
			return m.Services[i].Module < m.Services[j].Module
		}
		return m.Services[i].Name < m.Services[j].Name
	})
	for i := range m.Services {
		s := &m.Services[i]
		m.byConcrete[s.Name] = s
		for _, cap := range s.Capabilities {
			m.byCapability[cap] = append(m.byCapability[cap], s)
		}
	}

	sort.Slice(m.Factories, func(i, j int) bool {
		if m.Factories[i].Module != m.Factories[j].Module {
			return m.Factories[i].Module < m.Factories[j].Module
		}
		return m.Factories[i].Name < m.Factories[j].Name
	})

	sortPlugins(m.Plugins)
	checkPluginOrderGaps(m.Plugins, r)

	m.Activation = activationOrder(snap, override, r)
	return m
}

// newFactory selects the first non-static constructor carrying a
// runtime-supplied parameter and splits its slots into container-resolved
// and runtime-supplied halves, keeping the declared order within each.
func newFactory(cand *classify.Candidate, module string, snap *snapshot.Snapshot) Factory {
	f := Factory{
		Name:         cand.Decl.Name,
		Module:       module,
		Capabilities: cand.Decl.Implements,
		Decl:         cand.Decl,
	}
	for i := range cand.Decl.Ctors {
		ctor := &cand.Decl.Ctors[i]
		if ctor.Static {
			continue
		}
		var inject, rt []snapshot.Param
		for _, p := range ctor.Params {
			if snap.IsInjectableParam(p) {
				inject = append(inject, p)
			} else {
				rt = append(rt, p)
			}
		}
		if len(rt) == 0 {
			continue
		}
		f.Injectable, f.Runtime = inject, rt
		break
	}
	return f
}

func newPlugin(cand *classify.Candidate, module string) Plugin {
	p := Plugin{
		Name:         cand.Decl.Name,
		Module:       module,
		Capabilities: cand.Decl.Implements,
		Decl:         cand.Decl,
	}
	for _, mk := range cand.Decl.Markers {
		p.MarkerTypes = append(p.MarkerTypes, mk.Name)
	}
	sort.Strings(p.MarkerTypes)
	if mk, ok := cand.Decl.Marker(snapshot.MarkerPluginOrder); ok {
		if order, present := mk.Int("order"); present {
			p.Order = order
			p.HasOrder = true
		}
	}
	return p
}

// sortPlugins: explicit order ascending, then name; entries without an
// explicit order sort after all explicitly ordered ones.
func sortPlugins(plugins []Plugin) {
	sort.Slice(plugins, func(i, j int) bool {
		pi, pj := plugins[i], plugins[j]
		if pi.HasOrder != pj.HasOrder {
			return pi.HasOrder
		}
		if pi.HasOrder && pi.Order != pj.Order {
			return pi.Order < pj.Order
		}
		return pi.Name < pj.Name
	})
}

func checkPluginOrderGaps(plugins []Plugin, r diag.Reporter) {
	var prev int64
	var seen bool
	for i := range plugins {
		if !plugins[i].HasOrder {
			break
		}
		if seen && plugins[i].Order > prev+1 {
			span := plugins[i].Decl.Span
			diag.ReportWarning(r, diag.AggOrderGap, span,
				fmt.Sprintf("plugin order jumps from %d to %d at %q; gaps make insert positions ambiguous",
					prev, plugins[i].Order, plugins[i].Name)).Emit()
		}
		prev = plugins[i].Order
		seen = true
	}
}

// activationOrder computes the upstream modules that must be force-activated
// at program start: every synthesized module other than the origin, bucketed
// first/default/last, alphabetical within a bucket. Manifest overrides take
// precedence over per-module buckets; a module claimed by both a first and a
// last position is a fatal conflict.
func activationOrder(snap *snapshot.Snapshot, override ActivationOverride, r diag.Reporter) []string {
	inFirst := make(map[string]int, len(override.First))
	for i, name := range override.First {
		inFirst[name] = i
	}
	inLast := make(map[string]int, len(override.Last))
	for i, name := range override.Last {
		inLast[name] = i
	}
	for name := range inFirst {
		if _, both := inLast[name]; both {
			diag.ReportError(r, diag.AggConflictingOrder, snapSpan(snap),
				fmt.Sprintf("module %q is listed in both first and last activation buckets", name)).Emit()
		}
	}
	known := make(map[string]struct{}, len(snap.Modules))
	for i := range snap.Modules {
		known[snap.Modules[i].Name] = struct{}{}
	}
	for _, name := range append(append([]string{}, override.First...), override.Last...) {
		if _, ok := known[name]; !ok {
			diag.ReportWarning(r, diag.AggUnknownModule, snapSpan(snap),
				fmt.Sprintf("activation override names unknown module %q", name)).Emit()
		}
	}

	var first, middle, last []string
	for i := range snap.Modules {
		mod := &snap.Modules[i]
		if mod.Name == snap.Origin || !mod.Synthesized {
			continue
		}
		_, overrideFirst := inFirst[mod.Name]
		_, overrideLast := inLast[mod.Name]
		switch {
		case overrideFirst && overrideLast:
			// already reported; keep deterministic placement in first
			first = append(first, mod.Name)
		case overrideFirst:
			if mod.Activate == snapshot.ActivateLast {
				reportBucketConflict(mod, "first", r)
			}
			first = append(first, mod.Name)
		case overrideLast:
			if mod.Activate == snapshot.ActivateFirst {
				reportBucketConflict(mod, "last", r)
			}
			last = append(last, mod.Name)
		case mod.Activate == snapshot.ActivateFirst:
			first = append(first, mod.Name)
		case mod.Activate == snapshot.ActivateLast:
			last = append(last, mod.Name)
		default:
			middle = append(middle, mod.Name)
		}
	}
	sort.Strings(first)
	sort.Strings(middle)
	sort.Strings(last)

	out := make([]string, 0, len(first)+len(middle)+len(last))
	out = append(out, first...)
	out = append(out, middle...)
	out = append(out, last...)
	return out
}

func reportBucketConflict(mod *snapshot.Module, overrideBucket string, r diag.Reporter) {
	diag.ReportError(r, diag.AggConflictingOrder, mod.Span,
		fmt.Sprintf("module %q declares activation bucket %q but the manifest places it in %q",
			mod.Name, mod.Activate, overrideBucket)).Emit()
}

func snapSpan(snap *snapshot.Snapshot) source.Span {
	if mod, ok := snap.OriginModule(); ok {
		return mod.Span
	}
	if len(snap.Modules) > 0 {
		return snap.Modules[0].Span
	}
	return source.Span{}
}
