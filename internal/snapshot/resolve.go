package snapshot

import "strings"

// Builtin spellings that are never injectable: value types, text, and
// similar runtime-supplied data.
var builtinValueSpellings = map[string]struct{}{
	"string": {}, "char": {}, "bool": {}, "byte": {},
	"int": {}, "int16": {}, "int32": {}, "int64": {},
	"uint": {}, "uint16": {}, "uint32": {}, "uint64": {},
	"float": {}, "float32": {}, "float64": {}, "double": {}, "decimal": {},
	"datetime": {}, "timespan": {}, "guid": {}, "uri": {},
}

// IsValueSpelling reports whether name is a builtin value/text spelling.
func IsValueSpelling(name string) bool {
	_, ok := builtinValueSpellings[strings.ToLower(name)]
	return ok
}

// IsDelegateSpelling reports whether name spells a delegate/function type.
func IsDelegateSpelling(name string) bool {
	return strings.HasPrefix(name, "func(") || strings.HasPrefix(name, "delegate ")
}

// IsInjectableParamType decides whether a constructor parameter type can be
// resolved by the container: not a value type, not text, not a delegate, and
// a reference or interface type. Types absent from the snapshot are assumed
// to be framework-provided references; the graph validator reports them
// separately if nothing registrable matches.
func (s *Snapshot) IsInjectableParamType(name string) bool {
	if name == "" || IsValueSpelling(name) || IsDelegateSpelling(name) {
		return false
	}
	if _, ok := s.Capability(name); ok {
		return true
	}
	if decl, ok := s.Type(name); ok {
		return !decl.Flags.Has(FlagValueLike) && !decl.Flags.Has(FlagStatic)
	}
	return true
}

// IsInjectableParam applies IsInjectableParamType to one parameter.
// Collection and optional requests resolve through the container regardless
// of matches, so they count as injectable here.
func (s *Snapshot) IsInjectableParam(p Param) bool {
	if p.Collection || p.Optional {
		return true
	}
	return s.IsInjectableParamType(p.Type)
}
