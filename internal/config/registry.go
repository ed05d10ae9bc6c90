package config

import (
	"fmt"
	"sort"
	"sync"
)

// Registry holds the loaded app presets and is safe for concurrent
// readers.
type Registry struct {
	mu   sync.RWMutex
	apps map[string]*App
}

// NewRegistry creates a registry over a loaded app map.
func NewRegistry(apps map[string]*App) *Registry {
	return &Registry{apps: apps}
}

// Get retrieves an app preset by name.
func (r *Registry) Get(name string) (*App, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	app, exists := r.apps[name]
	if !exists {
		return nil, fmt.Errorf("app '%s' not found in config", name)
	}
	return app, nil
}

// List returns all app names, sorted.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.apps))
	for name := range r.apps {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Count returns the number of configured apps.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.apps)
}
