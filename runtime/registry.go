package wpruntime

import (
	"fmt"
	"sort"
	"sync"
)

// Registry is the frozen, merged view over every registered ModuleTable.
// Lookup order is deterministic: registrations sort by (module, service)
// regardless of table registration order.
type Registry struct {
	tables        []*ModuleTable
	byService     map[string]*Registration
	byCapability  map[string][]*Registration
	byFactory     map[string]*Factory
	interceptions map[string]map[string][]string
	plugins       []PluginRegistration
	eager         []string
	activation    []string
}

// Registration returns the entry for a concrete service name.
func (r *Registry) Registration(service string) (*Registration, bool) {
	reg, ok := r.byService[service]
	return reg, ok
}

// Implementors returns every registration exposing the capability,
// sorted by (module, service).
func (r *Registry) Implementors(capability string) []*Registration {
	return r.byCapability[capability]
}

// Factory returns the factory entry for a factory-wrapped type.
func (r *Registry) Factory(service string) (*Factory, bool) {
	f, ok := r.byFactory[service]
	return f, ok
}

// Interceptors returns the ordered interceptor list for one member of a
// service. The second result is false when the service is not intercepted
// at all; an intercepted service yields true for every member, even those
// with an empty list.
func (r *Registry) Interceptors(service, member string) ([]string, bool) {
	members, ok := r.interceptions[service]
	if !ok {
		return nil, false
	}
	return members[member], true
}

// Plugins returns all plugin registrations: explicitly ordered ones first
// (ascending), then the rest by name.
func (r *Registry) Plugins() []PluginRegistration {
	return r.plugins
}

// EagerOrder returns singleton services in dependencies-first order.
func (r *Registry) EagerOrder() []string {
	return r.eager
}

// Activation returns upstream modules in bootstrap activation order.
func (r *Registry) Activation() []string {
	return r.activation
}

// Tables returns the merged tables sorted by module name.
func (r *Registry) Tables() []*ModuleTable {
	return r.tables
}

func buildRegistry(tables []*ModuleTable) (*Registry, error) {
	sorted := make([]*ModuleTable, len(tables))
	copy(sorted, tables)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Module < sorted[j].Module })

	reg := &Registry{
		tables:        sorted,
		byService:     make(map[string]*Registration),
		byCapability:  make(map[string][]*Registration),
		byFactory:     make(map[string]*Factory),
		interceptions: make(map[string]map[string][]string),
	}
	for _, t := range sorted {
		for i := range t.Registrations {
			entry := &t.Registrations[i]
			if _, dup := reg.byService[entry.Service]; dup {
				return nil, fmt.Errorf("wpruntime: duplicate registration for %s", entry.Service)
			}
			reg.byService[entry.Service] = entry
			for _, cap := range entry.Capabilities {
				reg.byCapability[cap] = append(reg.byCapability[cap], entry)
			}
		}
		for i := range t.Factories {
			f := &t.Factories[i]
			if _, dup := reg.byFactory[f.Service]; dup {
				return nil, fmt.Errorf("wpruntime: duplicate factory for %s", f.Service)
			}
			reg.byFactory[f.Service] = f
		}
		for _, ic := range t.Interceptions {
			members, ok := reg.interceptions[ic.Service]
			if !ok {
				members = make(map[string][]string)
				reg.interceptions[ic.Service] = members
			}
			members[ic.Member] = ic.Interceptors
		}
		reg.plugins = append(reg.plugins, t.Plugins...)
		if len(t.EagerOrder) > 0 {
			if len(reg.eager) > 0 {
				return nil, fmt.Errorf("wpruntime: eager order declared by more than one table (%s)", t.Module)
			}
			reg.eager = t.EagerOrder
		}
		if len(t.Activation) > 0 {
			if len(reg.activation) > 0 {
				return nil, fmt.Errorf("wpruntime: activation order declared by more than one table (%s)", t.Module)
			}
			reg.activation = t.Activation
		}
	}
	for _, impls := range reg.byCapability {
		sort.Slice(impls, func(i, j int) bool {
			if impls[i].Module != impls[j].Module {
				return impls[i].Module < impls[j].Module
			}
			return impls[i].Service < impls[j].Service
		})
	}
	sort.SliceStable(reg.plugins, func(i, j int) bool {
		a, b := reg.plugins[i], reg.plugins[j]
		if a.HasOrder != b.HasOrder {
			return a.HasOrder
		}
		if a.HasOrder && a.Order != b.Order {
			return a.Order < b.Order
		}
		return a.Plugin < b.Plugin
	})
	return reg, nil
}

var global = struct {
	mu     sync.Mutex
	tables []*ModuleTable
	frozen *Registry
}{}

// Register appends a module table to the process-wide set. Generated code
// calls it from init. Registering after Freeze panics: tables must all be
// linked in before the host freezes.
func Register(t *ModuleTable) {
	if t == nil || t.Module == "" {
		panic("wpruntime: Register with nil or unnamed table")
	}
	global.mu.Lock()
	defer global.mu.Unlock()
	if global.frozen != nil {
		panic("wpruntime: Register called after Freeze")
	}
	for _, existing := range global.tables {
		if existing.Module == t.Module {
			panic("wpruntime: duplicate table for module " + t.Module)
		}
	}
	global.tables = append(global.tables, t)
}

// Freeze merges every registered table into an immutable Registry.
// Subsequent calls return the same Registry.
func Freeze() (*Registry, error) {
	global.mu.Lock()
	defer global.mu.Unlock()
	if global.frozen != nil {
		return global.frozen, nil
	}
	reg, err := buildRegistry(global.tables)
	if err != nil {
		return nil, err
	}
	global.frozen = reg
	return reg, nil
}

// Override replaces the process-wide table set for the duration of a test.
// The returned restore func reinstates the previous set and clears any
// frozen registry, so each test observes its own tables.
func Override(tables ...*ModuleTable) (restore func()) {
	global.mu.Lock()
	defer global.mu.Unlock()
	prevTables, prevFrozen := global.tables, global.frozen
	global.tables = tables
	global.frozen = nil
	return func() {
		global.mu.Lock()
		defer global.mu.Unlock()
		global.tables = prevTables
		global.frozen = prevFrozen
	}
}
