package lifecycle

import (
	"fmt"
	"sort"
	"sync"
)

// Factory builds an explorer from its configuration subtree (as produced
// by viper's AllSettings).
type Factory func(opts map[string]any) (Explorer, error)

var (
	registryMu sync.RWMutex
	registry   = make(map[string]Factory)
)

// Register makes an explorer type discoverable by name at configuration
// time. Registering a duplicate name panics: it is a wiring bug, not a
// runtime condition.
func Register(name string, f Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	if _, exists := registry[name]; exists {
		panic(fmt.Sprintf("lifecycle: explorer %q registered twice", name))
	}
	registry[name] = f
}

// NewExplorer instantiates a registered explorer type by name.
func NewExplorer(name string, opts map[string]any) (Explorer, error) {
	registryMu.RLock()
	f, ok := registry[name]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("lifecycle: unknown explorer type %q (registered: %v)", name, registeredNames())
	}
	return f(opts)
}

func registeredNames() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
