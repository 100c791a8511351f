// Package wpruntime holds the data model shared between generated wiring
// tables and the host application. Generated files register one ModuleTable
// per compiled module from init; the host calls Freeze once at startup to
// obtain the merged, immutable Registry.
package wpruntime

// Lifetime mirrors the inferred or declared lifetime of a registration.
type Lifetime uint8

const (
	Singleton Lifetime = iota
	Scoped
	Transient
)

func (l Lifetime) String() string {
	switch l {
	case Singleton:
		return "singleton"
	case Scoped:
		return "scoped"
	case Transient:
		return "transient"
	}
	return "unknown"
}

// Param describes one constructor dependency slot.
type Param struct {
	// Service is the snapshot name of the dependency (capability or concrete).
	Service string
	// Key is the declared parameter name, kept for diagnostics.
	Key string
	// Collection marks a slot that receives every implementor of Service.
	Collection bool
	// Optional marks a slot that tolerates an absent Service.
	Optional bool
}

// Registration is one constructible service in a module table.
type Registration struct {
	Service      string
	Module       string
	Capabilities []string
	Lifetime     Lifetime
	Params       []Param
	// Decorators lists decorating service names, innermost first.
	Decorators []string
	// Options names the configuration section bound to this service, if any.
	Options  string
	Hosted   bool
	Deferred []string
}

// Factory describes a factory-wrapped type. The host constructs it through
// a generated factory that resolves the injectable params from the registry
// and forwards the caller-supplied runtime params in declared order.
type Factory struct {
	Service      string
	Module       string
	Capabilities []string
	// Params are the container-resolved constructor slots.
	Params []Param
	// Runtime lists the runtime-supplied parameter types, in constructor order.
	Runtime []string
}

// Interception binds an ordered interceptor list to one member of a service.
// Every member of an intercepted service has an entry, possibly with an
// empty interceptor list, so call sites forward uniformly.
type Interception struct {
	Service      string
	Member       string
	Interceptors []string
}

// PluginRegistration is one discovered plugin implementation.
type PluginRegistration struct {
	Plugin  string
	Module  string
	Markers []string
	Order   int
	// HasOrder distinguishes an explicit zero order from no order at all.
	HasOrder bool
}

// ModuleTable is the unit generated code registers. Each module's generated
// file contributes exactly one table holding that module's own entries.
type ModuleTable struct {
	Module        string
	Registrations []Registration
	Factories     []Factory
	Plugins       []PluginRegistration
	Interceptions []Interception
	// EagerOrder lists singleton services in dependencies-first construction
	// order. Only the application module's table populates it.
	EagerOrder []string
	// Activation lists upstream modules in bootstrap activation order.
	// Only the application module's table populates it.
	Activation []string
}
