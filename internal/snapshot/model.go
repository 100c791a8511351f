package snapshot

import "wireplan/internal/source"

// Access is the declared accessibility of a type.
type Access uint8

const (
	AccessPublic Access = iota
	AccessInternal
)

func (a Access) String() string {
	if a == AccessInternal {
		return "internal"
	}
	return "public"
}

// TypeFlags encodes structural facts about a declaration.
type TypeFlags uint16

const (
	FlagAbstract TypeFlags = 1 << iota
	FlagStatic
	FlagOpenGeneric
	FlagNested
	FlagExceptionLike
	FlagAttributeLike
	FlagRecordLike
	FlagValueLike
)

func (f TypeFlags) Has(flag TypeFlags) bool {
	return f&flag != 0
}

// Param describes one constructor parameter.
type Param struct {
	Type       string // qualified type name or a builtin spelling
	Key        string // keyed-service key, empty for ordinary lookup
	Collection bool   // "all implementations of Type"
	Optional   bool   // resolve to zero value when absent
}

// Ctor is one declared constructor shape, in declaration order.
type Ctor struct {
	Static bool
	Params []Param
	Span   source.Span
}

// TypeDecl is one candidate declaration captured from a snapshot document.
// Immutable once loaded.
type TypeDecl struct {
	Name         string // qualified: "module.Type"
	Module       string
	Access       Access
	Flags        TypeFlags
	Implements   []string // capability names
	Bases        []string // base type names
	RequiresInit bool     // has mandatory state no constructor initializes
	Markers      []Marker
	Ctors        []Ctor
	Span         source.Span
}

// Marker returns the first marker with the given name.
func (t *TypeDecl) Marker(name string) (*Marker, bool) {
	for i := range t.Markers {
		if t.Markers[i].Name == name {
			return &t.Markers[i], true
		}
	}
	return nil, false
}

func (t *TypeDecl) HasMarker(name string) bool {
	_, ok := t.Marker(name)
	return ok
}

// Capability is a declared interface or abstract contract usable as a
// registration key.
type Capability struct {
	Name      string
	Members   []string // method names, declaration order
	Framework bool     // provided by the runtime framework, not user code
	Span      source.Span
}

// ActivateBucket positions a module in the bootstrap activation order.
type ActivateBucket uint8

const (
	ActivateDefault ActivateBucket = iota
	ActivateFirst
	ActivateLast
)

func (b ActivateBucket) String() string {
	switch b {
	case ActivateFirst:
		return "first"
	case ActivateLast:
		return "last"
	}
	return "default"
}

// Module is one independently compiled unit of the snapshot.
type Module struct {
	Name         string
	Synthesized  bool // has opted into registration synthesis
	Activate     ActivateBucket
	Types        []TypeDecl
	Capabilities []Capability
	Span         source.Span
	Hash         Digest
}

// Type returns the declaration with the given qualified name, if present.
func (m *Module) Type(name string) (*TypeDecl, bool) {
	for i := range m.Types {
		if m.Types[i].Name == name {
			return &m.Types[i], true
		}
	}
	return nil, false
}

// Snapshot is the immutable input to the whole pipeline: the origin module
// plus every referenced upstream module. The same snapshot always produces
// the same discovery result, keyed by Hash.
type Snapshot struct {
	Origin  string
	Modules []Module
	Hash    Digest
}

// Module returns the module with the given name, if present.
func (s *Snapshot) Module(name string) (*Module, bool) {
	for i := range s.Modules {
		if s.Modules[i].Name == name {
			return &s.Modules[i], true
		}
	}
	return nil, false
}

// OriginModule returns the module being synthesized.
func (s *Snapshot) OriginModule() (*Module, bool) {
	return s.Module(s.Origin)
}

// Type looks up a declaration across all modules.
func (s *Snapshot) Type(name string) (*TypeDecl, bool) {
	for i := range s.Modules {
		if t, ok := s.Modules[i].Type(name); ok {
			return t, true
		}
	}
	return nil, false
}

// Capability looks up a declared capability across all modules.
func (s *Snapshot) Capability(name string) (*Capability, bool) {
	for i := range s.Modules {
		for j := range s.Modules[i].Capabilities {
			if s.Modules[i].Capabilities[j].Name == name {
				return &s.Modules[i].Capabilities[j], true
			}
		}
	}
	return nil, false
}
