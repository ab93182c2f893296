package tool

import (
	"fmt"
	"net/http"
	"sort"
	"sync"
	"time"
)

// BuiltinOptions carries runtime dependencies needed by built-in tool factories.
type BuiltinOptions struct {
	WeatherBaseURL string
	WeatherTimeout time.Duration
	HTTPClient     *http.Client
}

const DefaultBuiltinWebTimeout = 10 * time.Second

type BuiltinFactory func(options BuiltinOptions) (Tool, error)

var builtinCatalog = struct {
	mu        sync.RWMutex
	factories map[string]BuiltinFactory
}{
	factories: map[string]BuiltinFactory{},
}

// RegisterBuiltin registers a built-in tool factory under a tool name.
// Intended to be called in init() from built-in tool files.
func RegisterBuiltin(name string, factory BuiltinFactory) {
	normalized := NormalizeToolName(name)
	if normalized == "" {
		panic("tool: built-in name cannot be empty")
	}
	if factory == nil {
		panic(fmt.Sprintf("tool: built-in factory cannot be nil (%s)", normalized))
	}

	builtinCatalog.mu.Lock()
	defer builtinCatalog.mu.Unlock()

	if _, exists := builtinCatalog.factories[normalized]; exists {
		panic(fmt.Sprintf("tool: built-in already registered: %s", normalized))
	}
	builtinCatalog.factories[normalized] = factory
}

// BuiltinNames returns all registered built-in names in deterministic order.
func BuiltinNames() []string {
	builtinCatalog.mu.RLock()
	defer builtinCatalog.mu.RUnlock()

	names := make([]string, 0, len(builtinCatalog.factories))
	for name := range builtinCatalog.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// InstantiateBuiltins builds definitions for the named built-ins, or for all
// of them when names is empty.
func InstantiateBuiltins(options BuiltinOptions, names ...string) ([]Definition, error) {
	if len(names) == 0 {
		names = BuiltinNames()
	}

	builtinCatalog.mu.RLock()
	defer builtinCatalog.mu.RUnlock()

	defs := make([]Definition, 0, len(names))
	for _, name := range names {
		factory, ok := builtinCatalog.factories[NormalizeToolName(name)]
		if !ok {
			return nil, fmt.Errorf("built-in %q: %w", name, ErrToolNotFound)
		}

		t, err := factory(options)
		if err != nil {
			return nil, fmt.Errorf("instantiate built-in %q: %w", name, err)
		}
		defs = append(defs, FromTool(t))
	}

	return defs, nil
}
