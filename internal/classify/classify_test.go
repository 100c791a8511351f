package classify

import (
	"testing"

	"wireplan/internal/diag"
	"wireplan/internal/snapshot"
	"wireplan/internal/source"
)

func loadSnap(t *testing.T, docs map[string]string, origin string) (*snapshot.Snapshot, *diag.Bag) {
	t.Helper()
	bag := diag.NewBag(64)
	snap := snapshot.LoadVirtual(source.NewFileSet(), docs, origin, diag.BagReporter{Bag: bag})
	return snap, bag
}

func classifyOrigin(t *testing.T, doc string) (*Result, *diag.Bag) {
	t.Helper()
	snap, bag := loadSnap(t, map[string]string{"app.wp.toml": doc}, "app")
	mod, ok := snap.OriginModule()
	if !ok {
		t.Fatal("origin module missing")
	}
	return Module(mod, true, snap, Config{}, diag.BagReporter{Bag: bag}), bag
}

func TestConcreteTypeIsInjectable(t *testing.T) {
	res, _ := classifyOrigin(t, `
module = "app"

[[type]]
name = "app.Service"
`)
	cand, ok := res.Candidate("app.Service")
	if !ok || !cand.Roles.Has(RoleInjectable) {
		t.Fatalf("roles = %v", cand.Roles)
	}
}

func TestStructuralExclusions(t *testing.T) {
	tests := []struct {
		name string
		flag string
	}{
		{"abstract", "abstract"},
		{"static", "static"},
		{"open generic", "open-generic"},
		{"nested", "nested"},
		{"exception-like", "exception"},
		{"attribute-like", "attribute"},
		{"record-like", "record"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, _ := classifyOrigin(t, `
module = "app"

[[type]]
name = "app.T"
flags = ["`+tt.flag+`"]
`)
			cand, _ := res.Candidate("app.T")
			if cand.Roles.Has(RoleInjectable) {
				t.Fatalf("%s type classified injectable", tt.name)
			}
		})
	}
}

func TestExcludeMarkerRevokesInjectable(t *testing.T) {
	res, _ := classifyOrigin(t, `
module = "app"

[[type]]
name = "app.T"

[[type.marker]]
name = "exclude"
`)
	cand, _ := res.Candidate("app.T")
	if cand.Roles.Has(RoleInjectable) {
		t.Fatal("excluded type classified injectable")
	}
}

func TestCapabilityLevelExclusion(t *testing.T) {
	snap, bag := loadSnap(t, map[string]string{"app.wp.toml": `
module = "app"

[[type]]
name = "app.T"
implements = ["app.INoRegister"]
`}, "app")
	mod, _ := snap.OriginModule()
	cfg := Config{ExcludedCapabilities: map[string]struct{}{"app.INoRegister": {}}}
	res := Module(mod, true, snap, cfg, diag.BagReporter{Bag: bag})
	cand, _ := res.Candidate("app.T")
	if cand.Roles.Has(RoleInjectable) {
		t.Fatal("capability-excluded type classified injectable")
	}
}

func TestRequiredInitNeedsTrustedInit(t *testing.T) {
	res, _ := classifyOrigin(t, `
module = "app"

[[type]]
name = "app.Bare"
requires-init = true

[[type]]
name = "app.Waived"
requires-init = true

[[type.marker]]
name = "trusted-init"
`)
	bare, _ := res.Candidate("app.Bare")
	if bare.Roles.Has(RoleInjectable) {
		t.Fatal("uninitialized type classified injectable")
	}
	waived, _ := res.Candidate("app.Waived")
	if !waived.Roles.Has(RoleInjectable) {
		t.Fatal("trusted-init escape not honored")
	}
}

func TestRecordLikeAllowedAsPlugin(t *testing.T) {
	res, _ := classifyOrigin(t, `
module = "app"

[[capability]]
name = "app.IPlugin"

[[type]]
name = "app.RecordPlugin"
flags = ["record"]
implements = ["app.IPlugin"]
`)
	cand, _ := res.Candidate("app.RecordPlugin")
	if cand.Roles.Has(RoleInjectable) {
		t.Fatal("record-like classified injectable")
	}
	if !cand.Roles.Has(RolePlugin) {
		t.Fatal("record-like not classified plugin")
	}
}

func TestPluginNeedsNonFrameworkContract(t *testing.T) {
	res, _ := classifyOrigin(t, `
module = "app"

[[capability]]
name = "sys.IDisposable"
framework = true

[[type]]
name = "app.OnlyFramework"
implements = ["sys.IDisposable"]

[[type]]
name = "app.NoContract"
`)
	only, _ := res.Candidate("app.OnlyFramework")
	if only.Roles.Has(RolePlugin) {
		t.Fatal("framework-only implementor classified plugin")
	}
	none, _ := res.Candidate("app.NoContract")
	if none.Roles.Has(RolePlugin) {
		t.Fatal("contract-free type classified plugin")
	}
}

func TestPluginNeedsZeroArgConstruction(t *testing.T) {
	res, _ := classifyOrigin(t, `
module = "app"

[[capability]]
name = "app.IPlugin"

[[type]]
name = "app.NeedsArgs"
implements = ["app.IPlugin"]

[[type.ctor]]
params = [{ type = "app.Dep" }]
`)
	cand, _ := res.Candidate("app.NeedsArgs")
	if cand.Roles.Has(RolePlugin) {
		t.Fatal("plugin without zero-arg constructor accepted")
	}
}

func TestInternalNonOriginRecordedInaccessible(t *testing.T) {
	snap, bag := loadSnap(t, map[string]string{
		"app.wp.toml": "module = \"app\"\nsynthesized = true\n",
		"lib.wp.toml": `
module = "lib"

[[type]]
name = "lib.Hidden"
access = "internal"
`,
	}, "app")
	lib, _ := snap.Module("lib")
	res := Module(lib, false, snap, Config{}, diag.BagReporter{Bag: bag})
	cand, _ := res.Candidate("lib.Hidden")
	if !cand.Roles.Empty() {
		t.Fatalf("internal non-origin type got roles %v", cand.Roles)
	}
	if len(res.Inaccessible) != 1 || res.Inaccessible[0].Type != "lib.Hidden" {
		t.Fatalf("inaccessible = %+v", res.Inaccessible)
	}
}

func TestFactoryMarkerWithRuntimeParam(t *testing.T) {
	res, _ := classifyOrigin(t, `
module = "app"

[[capability]]
name = "app.ILogger"

[[type]]
name = "app.Reporter"

[[type.marker]]
name = "factory"

[[type.ctor]]
params = [{ type = "app.ILogger" }, { type = "string" }]
`)
	cand, _ := res.Candidate("app.Reporter")
	if !cand.Roles.Has(RoleFactory) {
		t.Fatal("factory role missing")
	}
	if cand.Roles.Has(RoleInjectable) {
		t.Fatal("factory-wrapped type also classified injectable")
	}
}

func TestRedundantFactoryMarkerFallsBack(t *testing.T) {
	res, bag := classifyOrigin(t, `
module = "app"

[[capability]]
name = "app.ILogger"

[[type]]
name = "app.Svc"

[[type.marker]]
name = "factory"

[[type.ctor]]
params = [{ type = "app.ILogger" }]
`)
	cand, _ := res.Candidate("app.Svc")
	if cand.Roles.Has(RoleFactory) {
		t.Fatal("factory role assigned without runtime params")
	}
	if !cand.Roles.Has(RoleInjectable) {
		t.Fatal("fallback to injectable missing")
	}
	warned := false
	for _, d := range bag.Items() {
		if d.Code == diag.ClassRedundantFactory {
			warned = true
		}
	}
	if !warned {
		t.Fatal("low-value marker warning missing")
	}
}

func TestInterceptedRoleFromUniverse(t *testing.T) {
	res, _ := classifyOrigin(t, `
module = "app"

[[capability]]
name = "app.IWork"
members = ["Do"]

[[type]]
name = "app.Worker"
implements = ["app.IWork"]

[[type]]
name = "app.Logging"

[[type.marker]]
name = "interceptor"
args = { target = "app.IWork", order = 0 }
`)
	worker, _ := res.Candidate("app.Worker")
	if !worker.Roles.Has(RoleIntercepted) {
		t.Fatal("intercepted role missing on target")
	}
	logging, _ := res.Candidate("app.Logging")
	if !logging.Roles.Has(RoleInterceptor) {
		t.Fatal("interceptor role missing on declaring type")
	}
}
