package lifetime

import (
	"testing"

	"wireplan/internal/diag"
	"wireplan/internal/snapshot"
	"wireplan/internal/source"
)

func inferFor(t *testing.T, doc, typeName string) (Selection, *diag.Bag) {
	t.Helper()
	bag := diag.NewBag(32)
	snap := snapshot.LoadVirtual(source.NewFileSet(),
		map[string]string{"app.wp.toml": doc}, "app", diag.BagReporter{Bag: bag})
	decl, ok := snap.Type(typeName)
	if !ok {
		t.Fatalf("type %q missing", typeName)
	}
	return Infer(decl, snap, diag.BagReporter{Bag: bag}), bag
}

func TestZeroParamCtorYieldsSingleton(t *testing.T) {
	sel, _ := inferFor(t, `
module = "app"

[[type]]
name = "app.Svc"

[[type.ctor]]
params = []
`, "app.Svc")
	if !sel.Registrable || sel.Tag != Singleton {
		t.Fatalf("sel = %+v", sel)
	}
	if sel.CtorIndex != 0 {
		t.Fatalf("CtorIndex = %d", sel.CtorIndex)
	}
}

func TestNoDeclaredCtorsYieldsSingleton(t *testing.T) {
	sel, _ := inferFor(t, `
module = "app"

[[type]]
name = "app.Svc"
`, "app.Svc")
	if !sel.Registrable || sel.Tag != Singleton {
		t.Fatalf("sel = %+v", sel)
	}
}

func TestCopyConstructorExcluded(t *testing.T) {
	sel, _ := inferFor(t, `
module = "app"

[[type]]
name = "app.Svc"

[[type.ctor]]
params = [{ type = "app.Svc" }]
`, "app.Svc")
	if sel.Registrable {
		t.Fatalf("copy-constructor shape selected: %+v", sel)
	}
}

func TestAllInjectableParamsSelected(t *testing.T) {
	sel, _ := inferFor(t, `
module = "app"

[[capability]]
name = "app.ILogger"

[[type]]
name = "app.Dep"

[[type]]
name = "app.Svc"

[[type.ctor]]
params = [{ type = "app.ILogger" }, { type = "app.Dep" }]
`, "app.Svc")
	if !sel.Registrable || sel.Tag != Singleton {
		t.Fatalf("sel = %+v", sel)
	}
	if len(sel.Params) != 2 {
		t.Fatalf("params = %+v", sel.Params)
	}
}

func TestTextParamNotRegistrable(t *testing.T) {
	sel, _ := inferFor(t, `
module = "app"

[[capability]]
name = "app.ILogger"

[[type]]
name = "app.Reporter"

[[type.ctor]]
params = [{ type = "app.ILogger" }, { type = "string" }]
`, "app.Reporter")
	if sel.Registrable {
		t.Fatalf("shape with text parameter selected: %+v", sel)
	}
}

func TestStaticCtorSkipped(t *testing.T) {
	sel, _ := inferFor(t, `
module = "app"

[[type]]
name = "app.Svc"

[[type.ctor]]
static = true
params = [{ type = "string" }]

[[type.ctor]]
params = []
`, "app.Svc")
	if !sel.Registrable || sel.CtorIndex != 1 {
		t.Fatalf("sel = %+v", sel)
	}
}

func TestDeclarationOrderFirstViableWins(t *testing.T) {
	sel, _ := inferFor(t, `
module = "app"

[[capability]]
name = "app.IA"

[[capability]]
name = "app.IB"

[[type]]
name = "app.Svc"

[[type.ctor]]
params = [{ type = "app.IA" }]

[[type.ctor]]
params = [{ type = "app.IB" }]
`, "app.Svc")
	if !sel.Registrable || sel.CtorIndex != 0 {
		t.Fatalf("sel = %+v", sel)
	}
}

func TestDeferredMarkerShortCircuits(t *testing.T) {
	sel, _ := inferFor(t, `
module = "app"

[[type]]
name = "app.Svc"

[[type.marker]]
name = "deferred"
args = { params = ["app.IPipeline", "app.IRegistry"] }

[[type.ctor]]
params = [{ type = "string" }]
`, "app.Svc")
	if !sel.Registrable || !sel.Deferred || sel.Tag != Singleton {
		t.Fatalf("sel = %+v", sel)
	}
	if len(sel.Params) != 2 || sel.Params[0].Type != "app.IPipeline" {
		t.Fatalf("deferred params = %+v", sel.Params)
	}
}

func TestExcludeMarkerRevokes(t *testing.T) {
	sel, _ := inferFor(t, `
module = "app"

[[type]]
name = "app.Svc"

[[type.marker]]
name = "exclude"

[[type.ctor]]
params = []
`, "app.Svc")
	if sel.Registrable {
		t.Fatalf("excluded type registrable: %+v", sel)
	}
}

func TestExplicitLifetimeOverride(t *testing.T) {
	sel, _ := inferFor(t, `
module = "app"

[[type]]
name = "app.Svc"

[[type.marker]]
name = "lifetime"
args = { value = "scoped" }
`, "app.Svc")
	if !sel.Registrable || sel.Tag != Scoped {
		t.Fatalf("sel = %+v", sel)
	}
}

func TestBadLifetimeValueKeepsSingleton(t *testing.T) {
	sel, bag := inferFor(t, `
module = "app"

[[type]]
name = "app.Svc"

[[type.marker]]
name = "lifetime"
args = { value = "eternal" }
`, "app.Svc")
	if sel.Tag != Singleton {
		t.Fatalf("sel = %+v", sel)
	}
	found := false
	for _, d := range bag.Items() {
		if d.Code == diag.LifeBadLifetimeValue {
			found = true
		}
	}
	if !found {
		t.Fatal("bad lifetime value not reported")
	}
}

func TestOutlives(t *testing.T) {
	if !Singleton.Outlives(Scoped) || !Singleton.Outlives(Transient) {
		t.Fatal("singleton should outlive scoped and transient")
	}
	if Scoped.Outlives(Singleton) || Transient.Outlives(Scoped) {
		t.Fatal("shorter lifetime reported as outliving longer")
	}
}
