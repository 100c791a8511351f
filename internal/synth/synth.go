// Package synth renders the merged wiring plan into a generated Go source
// file. Output is a pure data artifact: the origin module's own
// wpruntime.ModuleTable, registered from init, carrying the dependencies-first
// eager order and the upstream activation order. Upstream modules feed the
// analysis but emit nothing here; each produces its table from its own
// synthesis run. Rendering is deterministic: the same merged plan produces
// byte-identical output on every run.
package synth

import (
	"bytes"
	"fmt"
	"go/format"
	"strings"

	"wireplan/internal/aggregate"
	"wireplan/internal/chain"
	"wireplan/internal/classify"
	"wireplan/internal/diag"
	"wireplan/internal/graph"
	"wireplan/internal/lifetime"
	"wireplan/internal/snapshot"
	"wireplan/internal/source"
)

const runtimeImport = "wireplan/runtime"

// Options controls rendering.
type Options struct {
	// Package is the Go package name of the generated file.
	// Defaults to "wiregen".
	Package string
	// Snapshot is the content hash of the input, stamped into the header.
	Snapshot snapshot.Digest
	// ToolVersion is stamped into the header.
	ToolVersion string
}

// Artifact is one rendered output file.
type Artifact struct {
	Name string
	Data []byte
}

// Render emits the generated wiring file for a merged plan. The graph and
// its topological order supply the eager construction sequence. Internal
// inconsistencies between the plan and the snapshot abort rendering with a
// diagnostic: they indicate a defect in an earlier stage, never in user input.
func Render(m *aggregate.Merged, plan *chain.Plan, g *graph.Graph, topo *graph.Topo, opts Options, r diag.Reporter) ([]Artifact, error) {
	if opts.Package == "" {
		opts.Package = "wiregen"
	}
	if topo.Cyclic {
		diag.ReportError(r, diag.SynthInternal, source.Span{},
			"synthesis reached with an unresolved dependency cycle").Emit()
		return nil, fmt.Errorf("synth: dependency graph is cyclic")
	}

	em := &emitter{m: m, plan: plan, r: r}
	if err := em.check(); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	em.header(&buf, opts)
	em.tables(&buf, g, topo)

	formatted, err := format.Source(buf.Bytes())
	if err != nil {
		diag.ReportError(r, diag.SynthInternal, source.Span{},
			fmt.Sprintf("generated file does not parse: %v", err)).Emit()
		return nil, fmt.Errorf("synth: format: %w", err)
	}
	return []Artifact{{Name: "wireplan_gen.go", Data: formatted}}, nil
}

type emitter struct {
	m    *aggregate.Merged
	plan *chain.Plan
	r    diag.Reporter
}

// check verifies cross-stage invariants before any output is produced.
func (e *emitter) check() error {
	for i := range e.m.Services {
		svc := &e.m.Services[i]
		if svc.Name == "" || svc.Module == "" {
			diag.ReportError(e.r, diag.SynthInternal, svc.Decl.Span,
				"registrable service with empty name or module").Emit()
			return fmt.Errorf("synth: unnamed registration")
		}
		sel := svc.Selection
		if sel.CtorIndex >= len(svc.Decl.Ctors) {
			diag.ReportError(e.r, diag.SynthInternal, svc.Decl.Span,
				fmt.Sprintf("service %q selects constructor %d of %d", svc.Name, sel.CtorIndex, len(svc.Decl.Ctors))).Emit()
			return fmt.Errorf("synth: constructor index out of range for %s", svc.Name)
		}
	}
	for _, ic := range e.plan.Interceptions {
		if _, ok := e.m.ServiceByName(ic.Type); !ok {
			diag.ReportError(e.r, diag.SynthInternal, source.Span{},
				fmt.Sprintf("interception plan references unknown service %q", ic.Type)).Emit()
			return fmt.Errorf("synth: interception target %s not registrable", ic.Type)
		}
	}
	return nil
}

func (e *emitter) header(buf *bytes.Buffer, opts Options) {
	fmt.Fprintf(buf, "// Code generated by wireplan %s. DO NOT EDIT.\n", opts.ToolVersion)
	fmt.Fprintf(buf, "//\n// snapshot %s\n\n", opts.Snapshot.Short())
	fmt.Fprintf(buf, "package %s\n\n", opts.Package)
	fmt.Fprintf(buf, "import wpruntime %q\n\n", runtimeImport)
}

// tables emits the origin module's table only. Upstream registrations feed
// the graph and chain analysis; their entries belong to the artifact of
// their own module, and registering them here would collide with it at
// link time.
func (e *emitter) tables(buf *bytes.Buffer, g *graph.Graph, topo *graph.Topo) {
	varName := "table" + camelize(e.m.Origin)
	fmt.Fprintf(buf, "func init() {\n\twpruntime.Register(%s)\n}\n\n", varName)
	e.table(buf, e.m.Origin, varName, g, topo)
}

func (e *emitter) table(buf *bytes.Buffer, mod, varName string, g *graph.Graph, topo *graph.Topo) {
	fmt.Fprintf(buf, "var %s = &wpruntime.ModuleTable{\n", varName)
	fmt.Fprintf(buf, "\tModule: %q,\n", mod)

	var regs []*aggregate.Service
	for i := range e.m.Services {
		if e.m.Services[i].Module == mod {
			regs = append(regs, &e.m.Services[i])
		}
	}
	if len(regs) > 0 {
		fmt.Fprintf(buf, "\tRegistrations: []wpruntime.Registration{\n")
		for _, svc := range regs {
			e.registration(buf, svc)
		}
		fmt.Fprintf(buf, "\t},\n")
	}

	var facs []*aggregate.Factory
	for i := range e.m.Factories {
		if e.m.Factories[i].Module == mod {
			facs = append(facs, &e.m.Factories[i])
		}
	}
	if len(facs) > 0 {
		fmt.Fprintf(buf, "\tFactories: []wpruntime.Factory{\n")
		for _, f := range facs {
			e.factory(buf, f)
		}
		fmt.Fprintf(buf, "\t},\n")
	}

	var plugins []*aggregate.Plugin
	for i := range e.m.Plugins {
		if e.m.Plugins[i].Module == mod {
			plugins = append(plugins, &e.m.Plugins[i])
		}
	}
	if len(plugins) > 0 {
		fmt.Fprintf(buf, "\tPlugins: []wpruntime.PluginRegistration{\n")
		for _, p := range plugins {
			e.plugin(buf, p)
		}
		fmt.Fprintf(buf, "\t},\n")
	}

	var ics []chain.Interception
	for _, ic := range e.plan.Interceptions {
		if svc, ok := e.m.ServiceByName(ic.Type); ok && svc.Module == mod {
			ics = append(ics, ic)
		}
	}
	if len(ics) > 0 {
		fmt.Fprintf(buf, "\tInterceptions: []wpruntime.Interception{\n")
		for _, ic := range ics {
			for _, member := range ic.Members {
				fmt.Fprintf(buf, "\t\t{Service: %q, Member: %q", ic.Type, member.Member)
				if names := entryNames(member.Entries); len(names) > 0 {
					fmt.Fprintf(buf, ", Interceptors: %s", stringSlice(names))
				}
				fmt.Fprintf(buf, "},\n")
			}
		}
		fmt.Fprintf(buf, "\t},\n")
	}

	if mod == e.m.Origin {
		if eager := e.eagerOrder(g, topo); len(eager) > 0 {
			fmt.Fprintf(buf, "\tEagerOrder: %s,\n", stringSlice(eager))
		}
		if len(e.m.Activation) > 0 {
			fmt.Fprintf(buf, "\tActivation: %s,\n", stringSlice(e.m.Activation))
		}
	}
	fmt.Fprintf(buf, "}\n\n")
}

func (e *emitter) registration(buf *bytes.Buffer, svc *aggregate.Service) {
	fmt.Fprintf(buf, "\t\t{\n")
	fmt.Fprintf(buf, "\t\t\tService: %q,\n", svc.Name)
	fmt.Fprintf(buf, "\t\t\tModule: %q,\n", svc.Module)
	if len(svc.Capabilities) > 0 {
		fmt.Fprintf(buf, "\t\t\tCapabilities: %s,\n", stringSlice(svc.Capabilities))
	}
	if svc.Lifetime != lifetime.Singleton {
		fmt.Fprintf(buf, "\t\t\tLifetime: %s,\n", lifetimeExpr(svc.Lifetime))
	}
	if len(svc.Selection.Params) > 0 {
		fmt.Fprintf(buf, "\t\t\tParams: []wpruntime.Param{\n")
		for _, p := range svc.Selection.Params {
			fmt.Fprintf(buf, "\t\t\t\t{Service: %q", p.Type)
			if p.Key != "" {
				fmt.Fprintf(buf, ", Key: %q", p.Key)
			}
			if p.Collection {
				fmt.Fprintf(buf, ", Collection: true")
			}
			if p.Optional {
				fmt.Fprintf(buf, ", Optional: true")
			}
			fmt.Fprintf(buf, "},\n")
		}
		fmt.Fprintf(buf, "\t\t\t},\n")
	}
	if wraps := e.decoratorsFor(svc); len(wraps) > 0 {
		fmt.Fprintf(buf, "\t\t\tDecorators: %s,\n", stringSlice(wraps))
	}
	roles := e.m.Roles[svc.Name]
	if roles.Has(classify.RoleOptions) {
		if mk, ok := svc.Decl.Marker(snapshot.MarkerOptions); ok {
			if section := mk.Str("section"); section != "" {
				fmt.Fprintf(buf, "\t\t\tOptions: %q,\n", section)
			}
		}
	}
	if roles.Has(classify.RoleHosted) {
		fmt.Fprintf(buf, "\t\t\tHosted: true,\n")
	}
	if svc.Selection.Deferred {
		deferred := make([]string, 0, len(svc.Selection.Params))
		for _, p := range svc.Selection.Params {
			deferred = append(deferred, p.Type)
		}
		fmt.Fprintf(buf, "\t\t\tDeferred: %s,\n", stringSlice(deferred))
	}
	fmt.Fprintf(buf, "\t\t},\n")
}

func (e *emitter) factory(buf *bytes.Buffer, f *aggregate.Factory) {
	fmt.Fprintf(buf, "\t\t{\n")
	fmt.Fprintf(buf, "\t\t\tService: %q,\n", f.Name)
	fmt.Fprintf(buf, "\t\t\tModule: %q,\n", f.Module)
	if len(f.Capabilities) > 0 {
		fmt.Fprintf(buf, "\t\t\tCapabilities: %s,\n", stringSlice(f.Capabilities))
	}
	if len(f.Injectable) > 0 {
		fmt.Fprintf(buf, "\t\t\tParams: []wpruntime.Param{\n")
		for _, p := range f.Injectable {
			fmt.Fprintf(buf, "\t\t\t\t{Service: %q", p.Type)
			if p.Key != "" {
				fmt.Fprintf(buf, ", Key: %q", p.Key)
			}
			if p.Collection {
				fmt.Fprintf(buf, ", Collection: true")
			}
			if p.Optional {
				fmt.Fprintf(buf, ", Optional: true")
			}
			fmt.Fprintf(buf, "},\n")
		}
		fmt.Fprintf(buf, "\t\t\t},\n")
	}
	if len(f.Runtime) > 0 {
		types := make([]string, len(f.Runtime))
		for i, p := range f.Runtime {
			types[i] = p.Type
		}
		fmt.Fprintf(buf, "\t\t\tRuntime: %s,\n", stringSlice(types))
	}
	fmt.Fprintf(buf, "\t\t},\n")
}

func (e *emitter) plugin(buf *bytes.Buffer, p *aggregate.Plugin) {
	fmt.Fprintf(buf, "\t\t{Plugin: %q, Module: %q", p.Name, p.Module)
	if len(p.MarkerTypes) > 0 {
		fmt.Fprintf(buf, ", Markers: %s", stringSlice(p.MarkerTypes))
	}
	if p.HasOrder {
		fmt.Fprintf(buf, ", Order: %d, HasOrder: true", p.Order)
	}
	fmt.Fprintf(buf, "},\n")
}

// decoratorsFor returns the wrap sequence applying to a service: every
// chain group targeting its concrete name or one of its capabilities,
// innermost first, self-wraps excluded.
func (e *emitter) decoratorsFor(svc *aggregate.Service) []string {
	roles := e.m.Roles[svc.Name]
	if roles.Has(classify.RoleDecorator) || roles.Has(classify.RoleInterceptor) {
		// A decorator implements its target's capability; the chain wraps
		// the decorated service, never the wrappers themselves.
		return nil
	}
	targets := append([]string{svc.Name}, svc.Capabilities...)
	var wraps []string
	for _, group := range e.plan.Decorators {
		for _, t := range targets {
			if group.Target != t {
				continue
			}
			for _, entry := range group.Wraps {
				if entry.Decorating != svc.Name {
					wraps = append(wraps, entry.Decorating)
				}
			}
			break
		}
	}
	return wraps
}

// eagerOrder lists singleton services dependencies-first.
func (e *emitter) eagerOrder(g *graph.Graph, topo *graph.Topo) []string {
	var order []string
	for _, id := range topo.Order {
		svc := g.Service(id)
		if svc.Lifetime == lifetime.Singleton {
			order = append(order, svc.Name)
		}
	}
	return order
}

func entryNames(entries []chain.Entry) []string {
	names := make([]string, len(entries))
	for i, e := range entries {
		names[i] = e.Decorating
	}
	return names
}

func lifetimeExpr(t lifetime.Tag) string {
	switch t {
	case lifetime.Scoped:
		return "wpruntime.Scoped"
	case lifetime.Transient:
		return "wpruntime.Transient"
	}
	return "wpruntime.Singleton"
}

func stringSlice(items []string) string {
	var sb strings.Builder
	sb.WriteString("[]string{")
	for i, item := range items {
		if i > 0 {
			sb.WriteString(", ")
		}
		fmt.Fprintf(&sb, "%q", item)
	}
	sb.WriteString("}")
	return sb.String()
}

func camelize(s string) string {
	var sb strings.Builder
	upper := true
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z':
			if upper {
				sb.WriteRune(r - 'a' + 'A')
			} else {
				sb.WriteRune(r)
			}
			upper = false
		case r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			sb.WriteRune(r)
			upper = false
		default:
			upper = true
		}
	}
	if sb.Len() == 0 {
		return "Module"
	}
	return sb.String()
}
