package wpruntime

import "testing"

func sampleTables() []*ModuleTable {
	return []*ModuleTable{
		{
			Module: "lib",
			Registrations: []Registration{
				{Service: "lib.Cache", Module: "lib", Capabilities: []string{"lib.ICache"}, Lifetime: Singleton},
			},
			Plugins: []PluginRegistration{
				{Plugin: "lib.ZPlugin", Module: "lib"},
				{Plugin: "lib.First", Module: "lib", Order: 0, HasOrder: true},
			},
		},
		{
			Module: "app",
			Registrations: []Registration{
				{Service: "app.Worker", Module: "app", Capabilities: []string{"app.IWork"}, Lifetime: Scoped,
					Params: []Param{{Service: "lib.ICache", Key: "cache"}}},
				{Service: "app.AltWorker", Module: "app", Capabilities: []string{"app.IWork"}, Lifetime: Scoped},
			},
			Factories: []Factory{
				{Service: "app.Reporter", Module: "app",
					Params:  []Param{{Service: "app.ILogger"}},
					Runtime: []string{"string"}},
			},
			Interceptions: []Interception{
				{Service: "app.Worker", Member: "Do", Interceptors: []string{"app.Timing"}},
				{Service: "app.Worker", Member: "Undo", Interceptors: nil},
			},
			EagerOrder: []string{"lib.Cache"},
			Activation: []string{"lib"},
		},
	}
}

func TestFreezeMergesDeterministically(t *testing.T) {
	restore := Override(sampleTables()...)
	defer restore()

	reg, err := Freeze()
	if err != nil {
		t.Fatalf("Freeze: %v", err)
	}
	if _, ok := reg.Registration("app.Worker"); !ok {
		t.Fatalf("app.Worker missing after merge")
	}
	impls := reg.Implementors("app.IWork")
	if len(impls) != 2 || impls[0].Service != "app.AltWorker" || impls[1].Service != "app.Worker" {
		t.Fatalf("implementors not sorted: %+v", impls)
	}
	if got := reg.EagerOrder(); len(got) != 1 || got[0] != "lib.Cache" {
		t.Fatalf("eager order = %v", got)
	}
	if got := reg.Activation(); len(got) != 1 || got[0] != "lib" {
		t.Fatalf("activation = %v", got)
	}
	fac, ok := reg.Factory("app.Reporter")
	if !ok || len(fac.Runtime) != 1 || fac.Runtime[0] != "string" {
		t.Fatalf("factory = %+v ok=%v", fac, ok)
	}
	if _, ok := reg.Factory("app.Worker"); ok {
		t.Fatal("ordinary registration must not expose a factory")
	}

	again, err := Freeze()
	if err != nil {
		t.Fatalf("second Freeze: %v", err)
	}
	if again != reg {
		t.Fatalf("Freeze is not idempotent")
	}
}

func TestPluginOrderingExplicitFirst(t *testing.T) {
	restore := Override(sampleTables()...)
	defer restore()

	reg, err := Freeze()
	if err != nil {
		t.Fatalf("Freeze: %v", err)
	}
	plugins := reg.Plugins()
	if len(plugins) != 2 {
		t.Fatalf("got %d plugins", len(plugins))
	}
	if plugins[0].Plugin != "lib.First" || plugins[1].Plugin != "lib.ZPlugin" {
		t.Fatalf("plugin order = %s, %s", plugins[0].Plugin, plugins[1].Plugin)
	}
}

func TestInterceptorsUniformMembers(t *testing.T) {
	restore := Override(sampleTables()...)
	defer restore()

	reg, err := Freeze()
	if err != nil {
		t.Fatalf("Freeze: %v", err)
	}
	chain, ok := reg.Interceptors("app.Worker", "Do")
	if !ok || len(chain) != 1 || chain[0] != "app.Timing" {
		t.Fatalf("Do chain = %v ok=%v", chain, ok)
	}
	chain, ok = reg.Interceptors("app.Worker", "Undo")
	if !ok {
		t.Fatalf("Undo must report intercepted with empty chain")
	}
	if len(chain) != 0 {
		t.Fatalf("Undo chain = %v", chain)
	}
	if _, ok := reg.Interceptors("app.AltWorker", "Do"); ok {
		t.Fatalf("AltWorker is not intercepted")
	}
}

func TestDuplicateRegistrationRejected(t *testing.T) {
	restore := Override(
		&ModuleTable{Module: "a", Registrations: []Registration{{Service: "x.S", Module: "a"}}},
		&ModuleTable{Module: "b", Registrations: []Registration{{Service: "x.S", Module: "b"}}},
	)
	defer restore()

	if _, err := Freeze(); err == nil {
		t.Fatalf("duplicate service must fail Freeze")
	}
}

func TestDuplicateFactoryRejected(t *testing.T) {
	restore := Override(
		&ModuleTable{Module: "a", Factories: []Factory{{Service: "x.F", Module: "a"}}},
		&ModuleTable{Module: "b", Factories: []Factory{{Service: "x.F", Module: "b"}}},
	)
	defer restore()

	if _, err := Freeze(); err == nil {
		t.Fatalf("duplicate factory must fail Freeze")
	}
}

func TestOverrideIsolatesTables(t *testing.T) {
	restore := Override(&ModuleTable{Module: "only", Registrations: []Registration{{Service: "only.S", Module: "only"}}})
	reg, err := Freeze()
	if err != nil {
		t.Fatalf("Freeze: %v", err)
	}
	if _, ok := reg.Registration("only.S"); !ok {
		t.Fatalf("override table not visible")
	}
	restore()

	restore2 := Override()
	defer restore2()
	reg2, err := Freeze()
	if err != nil {
		t.Fatalf("Freeze after restore: %v", err)
	}
	if _, ok := reg2.Registration("only.S"); ok {
		t.Fatalf("override leaked across restore")
	}
}
