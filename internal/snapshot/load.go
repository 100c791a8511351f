package snapshot

import (
	"fmt"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"

	"wireplan/internal/diag"
	"wireplan/internal/source"
)

// Document schema for one module snapshot (*.wp.toml). One module per
// document; the front end producing these is an external collaborator.
type docModule struct {
	Module       string          `toml:"module"`
	Synthesized  bool            `toml:"synthesized"`
	Activate     string          `toml:"activate"`
	Capabilities []docCapability `toml:"capability"`
	Types        []docType       `toml:"type"`
}

type docCapability struct {
	Name      string   `toml:"name"`
	Members   []string `toml:"members"`
	Framework bool     `toml:"framework"`
}

type docType struct {
	Name         string      `toml:"name"`
	Access       string      `toml:"access"`
	Flags        []string    `toml:"flags"`
	Implements   []string    `toml:"implements"`
	Bases        []string    `toml:"bases"`
	RequiresInit bool        `toml:"requires-init"`
	Markers      []docMarker `toml:"marker"`
	Ctors        []docCtor   `toml:"ctor"`
}

type docMarker struct {
	Name string         `toml:"name"`
	Args map[string]any `toml:"args"`
}

type docCtor struct {
	Static bool       `toml:"static"`
	Params []docParam `toml:"params"`
}

type docParam struct {
	Type       string `toml:"type"`
	Key        string `toml:"key"`
	Collection bool   `toml:"collection"`
	Optional   bool   `toml:"optional"`
}

var flagNames = map[string]TypeFlags{
	"abstract":     FlagAbstract,
	"static":       FlagStatic,
	"open-generic": FlagOpenGeneric,
	"nested":       FlagNested,
	"exception":    FlagExceptionLike,
	"attribute":    FlagAttributeLike,
	"record":       FlagRecordLike,
	"value":        FlagValueLike,
}

// Load parses the given documents into an immutable Snapshot. Structural
// problems become diagnostics; only unreadable documents produce an error.
func Load(fs *source.FileSet, paths []string, origin string, r diag.Reporter) (*Snapshot, error) {
	sorted := make([]string, len(paths))
	copy(sorted, paths)
	sort.Strings(sorted)

	snap := &Snapshot{Origin: origin}
	seenModules := make(map[string]source.Span)
	seenTypes := make(map[string]source.Span)

	for _, path := range sorted {
		id, err := fs.Load(path)
		if err != nil {
			return nil, fmt.Errorf("load snapshot %q: %w", path, err)
		}
		mod, ok := decodeModule(fs, id, r)
		if !ok {
			continue
		}
		if prev, dup := seenModules[mod.Name]; dup {
			diag.ReportError(r, diag.SnapDuplicateModule, mod.Span,
				fmt.Sprintf("duplicate module %q", mod.Name)).
				WithNote(prev, "previous declaration here").Emit()
			continue
		}
		seenModules[mod.Name] = mod.Span
		for i := range mod.Types {
			t := &mod.Types[i]
			if prev, dup := seenTypes[t.Name]; dup {
				diag.ReportError(r, diag.SnapDuplicateType, t.Span,
					fmt.Sprintf("duplicate type %q", t.Name)).
					WithNote(prev, "previous declaration here").Emit()
			} else {
				seenTypes[t.Name] = t.Span
			}
		}
		snap.Modules = append(snap.Modules, mod)
	}

	snap.Hash = snapshotHash(origin, snap.Modules)
	return snap, nil
}

// LoadVirtual builds a snapshot from in-memory documents, keyed by name.
// Used by tests and stdin input.
func LoadVirtual(fs *source.FileSet, docs map[string]string, origin string, r diag.Reporter) *Snapshot {
	names := make([]string, 0, len(docs))
	for name := range docs {
		names = append(names, name)
	}
	sort.Strings(names)

	snap := &Snapshot{Origin: origin}
	seenModules := make(map[string]source.Span)
	for _, name := range names {
		id := fs.AddVirtual(name, []byte(docs[name]))
		mod, ok := decodeModule(fs, id, r)
		if !ok {
			continue
		}
		if prev, dup := seenModules[mod.Name]; dup {
			diag.ReportError(r, diag.SnapDuplicateModule, mod.Span,
				fmt.Sprintf("duplicate module %q", mod.Name)).
				WithNote(prev, "previous declaration here").Emit()
			continue
		}
		seenModules[mod.Name] = mod.Span
		snap.Modules = append(snap.Modules, mod)
	}
	snap.Hash = snapshotHash(origin, snap.Modules)
	return snap
}

func decodeModule(fs *source.FileSet, id source.FileID, r diag.Reporter) (Module, bool) {
	file := fs.Get(id)
	span := fs.FullSpan(id)

	var doc docModule
	meta, err := toml.Decode(string(file.Content), &doc)
	if err != nil {
		diag.ReportError(r, diag.SnapMalformed, span,
			fmt.Sprintf("%s: %v", file.Path, err)).Emit()
		return Module{}, false
	}
	if strings.TrimSpace(doc.Module) == "" {
		diag.ReportError(r, diag.SnapMalformed, span,
			fmt.Sprintf("%s: missing module name", file.Path)).Emit()
		return Module{}, false
	}
	for _, key := range meta.Undecoded() {
		diag.ReportWarning(r, diag.SnapMalformed, span,
			fmt.Sprintf("%s: unknown key %q ignored", file.Path, key.String())).Emit()
	}

	mod := Module{
		Name:        doc.Module,
		Synthesized: doc.Synthesized,
		Activate:    parseActivate(doc.Activate, span, r),
		Span:        span,
		Hash:        Digest(file.Hash),
	}

	for _, c := range doc.Capabilities {
		mod.Capabilities = append(mod.Capabilities, Capability{
			Name:      c.Name,
			Members:   c.Members,
			Framework: c.Framework,
			Span:      span,
		})
	}

	for _, dt := range doc.Types {
		mod.Types = append(mod.Types, decodeType(dt, mod.Name, span, r))
	}
	return mod, true
}

func decodeType(dt docType, module string, span source.Span, r diag.Reporter) TypeDecl {
	t := TypeDecl{
		Name:         dt.Name,
		Module:       module,
		Access:       parseAccess(dt.Access, dt.Name, span, r),
		Implements:   dt.Implements,
		Bases:        dt.Bases,
		RequiresInit: dt.RequiresInit,
		Span:         span,
	}
	for _, name := range dt.Flags {
		flag, ok := flagNames[name]
		if !ok {
			diag.ReportWarning(r, diag.SnapBadFlag, span,
				fmt.Sprintf("type %q: unknown structural flag %q", dt.Name, name)).Emit()
			continue
		}
		t.Flags |= flag
	}
	for _, m := range dt.Markers {
		if !KnownMarker(m.Name) {
			diag.ReportWarning(r, diag.SnapUnknownMarker, span,
				fmt.Sprintf("type %q: unknown marker %q ignored", dt.Name, m.Name)).Emit()
			continue
		}
		checkMarkerArgs(m.Name, dt.Name, m.Args, span, r)
		t.Markers = append(t.Markers, Marker{Name: m.Name, Args: m.Args, Span: span})
	}
	for _, c := range dt.Ctors {
		ctor := Ctor{Static: c.Static, Span: span}
		for _, p := range c.Params {
			ctor.Params = append(ctor.Params, Param{
				Type:       p.Type,
				Key:        p.Key,
				Collection: p.Collection,
				Optional:   p.Optional,
			})
		}
		t.Ctors = append(t.Ctors, ctor)
	}
	return t
}

// checkMarkerArgs warns on mistyped marker arguments. The typed accessors on
// Marker degrade to zero values for mistyped args, so downstream stages would
// otherwise silently ignore the declared value.
func checkMarkerArgs(marker, typeName string, args map[string]any, span source.Span, r diag.Reporter) {
	bad := func(key, want string) {
		diag.ReportWarning(r, diag.SnapBadMarkerArg, span,
			fmt.Sprintf("type %q: marker %q argument %q is not %s; ignoring it", typeName, marker, key, want)).Emit()
	}
	wantString := func(key string) {
		if v, ok := args[key]; ok {
			if _, s := v.(string); !s {
				bad(key, "a string")
			}
		}
	}
	wantInt := func(key string) {
		if v, ok := args[key]; ok {
			switch v.(type) {
			case int64, int:
			default:
				bad(key, "an integer")
			}
		}
	}
	wantStrings := func(key string) {
		v, ok := args[key]
		if !ok {
			return
		}
		switch list := v.(type) {
		case []string:
		case []any:
			for _, item := range list {
				if _, s := item.(string); !s {
					bad(key, "a string list")
					return
				}
			}
		default:
			bad(key, "a string list")
		}
	}
	switch marker {
	case MarkerLifetime:
		wantString("value")
	case MarkerDecorator:
		wantString("target")
		wantInt("order")
	case MarkerInterceptor:
		wantString("target")
		wantInt("order")
		wantStrings("members")
	case MarkerOptions:
		wantString("section")
	case MarkerDeferred:
		wantStrings("params")
	case MarkerPluginOrder:
		wantInt("order")
	}
}

func parseAccess(s, typeName string, span source.Span, r diag.Reporter) Access {
	switch s {
	case "", "public":
		return AccessPublic
	case "internal":
		return AccessInternal
	}
	diag.ReportError(r, diag.SnapBadAccess, span,
		fmt.Sprintf("type %q: unknown accessibility %q", typeName, s)).Emit()
	return AccessInternal
}

func parseActivate(s string, span source.Span, r diag.Reporter) ActivateBucket {
	switch s {
	case "", "default":
		return ActivateDefault
	case "first":
		return ActivateFirst
	case "last":
		return ActivateLast
	}
	diag.ReportError(r, diag.SnapBadActivation, span,
		fmt.Sprintf("unknown activation bucket %q", s)).Emit()
	return ActivateDefault
}
