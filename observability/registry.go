package observability

import (
	"fmt"
	"sync"
)

// Factory builds an Observer when a name is looked up.
type Factory func() Observer

var (
	factories = map[string]Factory{
		"noop": func() Observer { return Discard },
		"slog": func() Observer { return NewSlogObserver(nil) },
	}
	mutex sync.RWMutex
)

// Lookup builds the observer registered under name. "noop" and "slog" are
// always available; "slog" follows whatever slog.Default is at lookup time.
func Lookup(name string) (Observer, error) {
	mutex.RLock()
	factory, exists := factories[name]
	mutex.RUnlock()

	if !exists {
		return nil, fmt.Errorf("unknown observer: %s", name)
	}
	return factory(), nil
}

// Register adds or replaces the factory for name.
func Register(name string, factory Factory) {
	mutex.Lock()
	defer mutex.Unlock()

	factories[name] = factory
}
