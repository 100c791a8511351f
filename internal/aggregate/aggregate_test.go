package aggregate

import (
	"strings"
	"testing"

	"wireplan/internal/classify"
	"wireplan/internal/diag"
	"wireplan/internal/lifetime"
	"wireplan/internal/snapshot"
	"wireplan/internal/source"
)

func buildUnits(t *testing.T, docs map[string]string, origin string, bag *diag.Bag) (*snapshot.Snapshot, []Unit) {
	t.Helper()
	r := diag.BagReporter{Bag: bag}
	snap := snapshot.LoadVirtual(source.NewFileSet(), docs, origin, r)
	var units []Unit
	for i := range snap.Modules {
		mod := &snap.Modules[i]
		isOrigin := mod.Name == origin
		res := classify.Module(mod, isOrigin, snap, classify.Config{}, r)
		sels := make(map[string]lifetime.Selection)
		for j := range res.Candidates {
			cand := &res.Candidates[j]
			if cand.Roles.Has(classify.RoleInjectable) {
				sels[cand.Decl.Name] = lifetime.Infer(cand.Decl, snap, r)
			}
		}
		units = append(units, Unit{Module: mod, Origin: isOrigin, Classified: res, Selections: sels})
	}
	return snap, units
}

func TestMissingOptInIsFatal(t *testing.T) {
	bag := diag.NewBag(64)
	snap, units := buildUnits(t, map[string]string{
		"app.wp.toml": "module = \"app\"\nsynthesized = true\n",
		"features-a.wp.toml": `
module = "features.a"

[[capability]]
name = "features.a.IPlugin"

[[type]]
name = "features.a.Hidden"
access = "internal"
implements = ["features.a.IPlugin"]
`,
	}, "app", bag)
	Merge(snap, units, ActivationOverride{}, diag.BagReporter{Bag: bag})

	var optIn, inaccessible bool
	for _, d := range bag.Items() {
		switch d.Code {
		case diag.AggMissingOptIn:
			optIn = true
			if d.Severity != diag.SevError || !strings.Contains(d.Message, "features.a") {
				t.Fatalf("opt-in diagnostic = %+v", d)
			}
		case diag.ClassInaccessibleMatch:
			inaccessible = true
			if d.Severity != diag.SevError || !strings.Contains(d.Message, "features.a.Hidden") {
				t.Fatalf("inaccessible-match diagnostic = %+v", d)
			}
		}
	}
	if !optIn {
		t.Fatal("missing synthesis opt-in not reported")
	}
	if !inaccessible {
		t.Fatal("inaccessible qualifying type not reported")
	}
}

func TestOptedInUpstreamInternalIsQuiet(t *testing.T) {
	bag := diag.NewBag(64)
	snap, units := buildUnits(t, map[string]string{
		"app.wp.toml": "module = \"app\"\nsynthesized = true\n",
		"lib.wp.toml": `
module = "lib"
synthesized = true

[[type]]
name = "lib.Hidden"
access = "internal"
`,
	}, "app", bag)
	m := Merge(snap, units, ActivationOverride{}, diag.BagReporter{Bag: bag})
	for _, d := range bag.Items() {
		if d.Code == diag.AggMissingOptIn || d.Code == diag.ClassInaccessibleMatch {
			t.Fatalf("opted-in module flagged: %q", d.Message)
		}
	}
	// The internal upstream type must also be excluded from the merged set.
	if _, ok := m.ServiceByName("lib.Hidden"); ok {
		t.Fatal("internal upstream type leaked into registrable set")
	}
}

func TestOriginInternalIncludedUpstreamInternalExcluded(t *testing.T) {
	bag := diag.NewBag(64)
	snap, units := buildUnits(t, map[string]string{
		"app.wp.toml": `
module = "app"
synthesized = true

[[type]]
name = "app.CachedService"
access = "internal"
`,
	}, "app", bag)
	m := Merge(snap, units, ActivationOverride{}, diag.BagReporter{Bag: bag})
	if _, ok := m.ServiceByName("app.CachedService"); !ok {
		t.Fatal("origin-module internal type missing from registrable set")
	}
}

func TestFactorySplitsRuntimeParams(t *testing.T) {
	bag := diag.NewBag(64)
	snap, units := buildUnits(t, map[string]string{
		"app.wp.toml": `
module = "app"
synthesized = true

[[capability]]
name = "app.ILogger"

[[type]]
name = "app.Reporter"

[[type.marker]]
name = "factory"

[[type.ctor]]
params = [{ type = "app.ILogger" }, { type = "string", key = "name" }]
`,
	}, "app", bag)
	m := Merge(snap, units, ActivationOverride{}, diag.BagReporter{Bag: bag})

	if len(m.Factories) != 1 {
		t.Fatalf("factories = %+v", m.Factories)
	}
	f := m.Factories[0]
	if f.Name != "app.Reporter" || f.Module != "app" {
		t.Fatalf("factory identity = %+v", f)
	}
	if len(f.Injectable) != 1 || f.Injectable[0].Type != "app.ILogger" {
		t.Fatalf("injectable params = %+v", f.Injectable)
	}
	if len(f.Runtime) != 1 || f.Runtime[0].Type != "string" || f.Runtime[0].Key != "name" {
		t.Fatalf("runtime params = %+v", f.Runtime)
	}
	// The factory-wrapped type never doubles as an ordinary registration.
	if _, ok := m.ServiceByName("app.Reporter"); ok {
		t.Fatal("factory-wrapped type leaked into registrable set")
	}
}

func TestServicesSortedByModuleThenName(t *testing.T) {
	bag := diag.NewBag(64)
	snap, units := buildUnits(t, map[string]string{
		"zz.wp.toml": `
module = "zz"
synthesized = true

[[type]]
name = "zz.Alpha"
`,
		"app.wp.toml": `
module = "app"
synthesized = true

[[type]]
name = "app.Zeta"

[[type]]
name = "app.Alpha"
`,
	}, "app", bag)
	m := Merge(snap, units, ActivationOverride{}, diag.BagReporter{Bag: bag})
	want := []string{"app.Alpha", "app.Zeta", "zz.Alpha"}
	if len(m.Services) != len(want) {
		t.Fatalf("services = %d, want %d", len(m.Services), len(want))
	}
	for i, name := range want {
		if m.Services[i].Name != name {
			t.Fatalf("services[%d] = %q, want %q", i, m.Services[i].Name, name)
		}
	}
}

func TestActivationOrderBucketsAndAlphabetical(t *testing.T) {
	bag := diag.NewBag(64)
	snap, units := buildUnits(t, map[string]string{
		"a.wp.toml": "module = \"alpha\"\nsynthesized = true\n",
		"b.wp.toml": "module = \"beta\"\nsynthesized = true\nactivate = \"last\"\n",
		"c.wp.toml": "module = \"core\"\nsynthesized = true\nactivate = \"first\"\n",
		"d.wp.toml": "module = \"delta\"\nsynthesized = true\n",
		"x.wp.toml": "module = \"app\"\nsynthesized = true\n",
		"n.wp.toml": "module = \"notsynth\"\n",
	}, "app", bag)
	m := Merge(snap, units, ActivationOverride{}, diag.BagReporter{Bag: bag})
	want := []string{"core", "alpha", "delta", "beta"}
	if len(m.Activation) != len(want) {
		t.Fatalf("activation = %v, want %v", m.Activation, want)
	}
	for i := range want {
		if m.Activation[i] != want[i] {
			t.Fatalf("activation = %v, want %v", m.Activation, want)
		}
	}
}

func TestConflictingActivationOverride(t *testing.T) {
	bag := diag.NewBag(64)
	snap, units := buildUnits(t, map[string]string{
		"app.wp.toml": "module = \"app\"\nsynthesized = true\n",
		"lib.wp.toml": "module = \"lib\"\nsynthesized = true\nactivate = \"first\"\n",
	}, "app", bag)
	Merge(snap, units, ActivationOverride{Last: []string{"lib"}}, diag.BagReporter{Bag: bag})
	found := false
	for _, d := range bag.Items() {
		if d.Code == diag.AggConflictingOrder && d.Severity == diag.SevError {
			found = true
		}
	}
	if !found {
		t.Fatal("conflicting activation buckets not reported")
	}
}

func TestPluginOrderGapWarned(t *testing.T) {
	bag := diag.NewBag(64)
	snap, units := buildUnits(t, map[string]string{
		"app.wp.toml": `
module = "app"
synthesized = true

[[capability]]
name = "app.IPlugin"

[[type]]
name = "app.First"
implements = ["app.IPlugin"]

[[type.marker]]
name = "plugin-order"
args = { order = 0 }

[[type]]
name = "app.Third"
implements = ["app.IPlugin"]

[[type.marker]]
name = "plugin-order"
args = { order = 2 }
`,
	}, "app", bag)
	m := Merge(snap, units, ActivationOverride{}, diag.BagReporter{Bag: bag})
	if len(m.Plugins) != 2 || m.Plugins[0].Name != "app.First" {
		t.Fatalf("plugins = %+v", m.Plugins)
	}
	found := false
	for _, d := range bag.Items() {
		if d.Code == diag.AggOrderGap {
			found = true
		}
	}
	if !found {
		t.Fatal("order gap not warned")
	}
}
