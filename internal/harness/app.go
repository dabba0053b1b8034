package harness

import (
	"fmt"
	"sort"
	"sync"

	"github.com/roach88/nianio/internal/engine"
	"github.com/roach88/nianio/internal/game"
	"github.com/roach88/nianio/internal/ir"
	"github.com/roach88/nianio/internal/schema"
)

// App is an application the harness can drive: a schema, an initial
// state and a transition function.
type App struct {
	Name         string
	Schema       func() (schema.Registry, error)
	InitialState func() ir.Value
	Transition   engine.TransitionFunc
}

// DefaultApp is used when a scenario names none.
const DefaultApp = "game"

var (
	appsMu sync.RWMutex
	apps   = map[string]App{
		"game": {
			Name:         "game",
			Schema:       game.Schema,
			InitialState: game.InitialState,
			Transition:   game.Transition,
		},
	}
)

// RegisterApp makes app available to scenarios. It replaces any app with
// the same name.
func RegisterApp(app App) {
	appsMu.Lock()
	defer appsMu.Unlock()
	apps[app.Name] = app
}

// LookupApp returns the app registered under name.
func LookupApp(name string) (App, error) {
	if name == "" {
		name = DefaultApp
	}
	appsMu.RLock()
	defer appsMu.RUnlock()
	app, ok := apps[name]
	if !ok {
		return App{}, fmt.Errorf("unknown app %q (known: %v)", name, appNamesLocked())
	}
	return app, nil
}

func appNamesLocked() []string {
	names := make([]string, 0, len(apps))
	for n := range apps {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// WorkerNames returns the worker names a registry declares: the cases of
// the cmd and extCmd variants.
func WorkerNames(reg schema.Registry) ([]string, error) {
	seen := map[string]struct{}{}
	for _, root := range []string{schema.CommandType, schema.EffectType} {
		if reg[root] == nil {
			return nil, fmt.Errorf("%s is not declared", root)
		}
		t, err := reg.Resolve(reg[root])
		if err != nil {
			return nil, fmt.Errorf("%s: %w", root, err)
		}
		v, ok := t.(*schema.VariantType)
		if !ok {
			return nil, fmt.Errorf("%s must be a variant of worker names, got %s", root, t.Name())
		}
		for _, name := range v.CaseNames() {
			seen[name] = struct{}{}
		}
	}

	names := make([]string, 0, len(seen))
	for n := range seen {
		names = append(names, n)
	}
	sort.Strings(names)
	return names, nil
}
