package snapshot

import "wireplan/internal/source"

// Declarative marker names understood by the pipeline. Markers are an
// order-independent tag table attached to a declaration; arguments are
// typed key-value pairs.
const (
	// MarkerExclude opts a type out of InjectableService registration.
	MarkerExclude = "exclude"
	// MarkerLifetime overrides the inferred lifetime ("scoped" | "transient").
	MarkerLifetime = "lifetime"
	// MarkerDecorator declares a decorator for a target capability.
	// Args: target (string), order (int).
	MarkerDecorator = "decorator"
	// MarkerInterceptor declares an interceptor.
	// Args: target (string), order (int), members (string list, optional —
	// empty means class-level, applying to every capability member).
	MarkerInterceptor = "interceptor"
	// MarkerFactory requests factory wrapping for runtime-supplied parameters.
	MarkerFactory = "factory"
	// MarkerOptions marks a bindable options type. Args: section (string).
	MarkerOptions = "options"
	// MarkerHosted marks a hosted service.
	MarkerHosted = "hosted"
	// MarkerDeferred short-circuits lifetime inference: the type is Singleton
	// and its constructor arguments are supplied by a later synthesis phase.
	// Args: params (string list).
	MarkerDeferred = "deferred"
	// MarkerTrustedInit waives the required-members check.
	MarkerTrustedInit = "trusted-init"
	// MarkerPluginOrder assigns an explicit plugin ordering. Args: order (int).
	MarkerPluginOrder = "plugin-order"
)

// KnownMarker reports whether name is part of the marker vocabulary.
func KnownMarker(name string) bool {
	switch name {
	case MarkerExclude, MarkerLifetime, MarkerDecorator, MarkerInterceptor,
		MarkerFactory, MarkerOptions, MarkerHosted, MarkerDeferred,
		MarkerTrustedInit, MarkerPluginOrder:
		return true
	}
	return false
}

// Marker is one declarative tag with typed arguments.
type Marker struct {
	Name string
	Args map[string]any
	Span source.Span
}

// Str returns a string argument, or "" if absent or mistyped.
func (m *Marker) Str(key string) string {
	if m == nil || m.Args == nil {
		return ""
	}
	s, _ := m.Args[key].(string)
	return s
}

// Int returns an integer argument and whether it was present.
func (m *Marker) Int(key string) (int64, bool) {
	if m == nil || m.Args == nil {
		return 0, false
	}
	switch v := m.Args[key].(type) {
	case int64:
		return v, true
	case int:
		return int64(v), true
	}
	return 0, false
}

// Bool returns a boolean argument, defaulting to false.
func (m *Marker) Bool(key string) bool {
	if m == nil || m.Args == nil {
		return false
	}
	b, _ := m.Args[key].(bool)
	return b
}

// Strings returns a string-list argument.
func (m *Marker) Strings(key string) []string {
	if m == nil || m.Args == nil {
		return nil
	}
	switch v := m.Args[key].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}
