// Package registry implements the category-indexed component factory map:
// the single indirection every pluggable part of the node (storage, logger,
// service, isolate) is instantiated through.
package registry

import (
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/hiveforge/hived/internal/apperrors"
)

// Category is one of the closed set of pluggable component kinds.
type Category string

const (
	CategoryStorage Category = "storage"
	CategoryLogger  Category = "logger"
	CategoryService Category = "service"
	CategoryIsolate Category = "isolate"
)

// Factory builds one named instance of a category's type from JSON args.
// ctx is always a *appcontext.Context; it is typed any here to avoid an
// import cycle (appcontext embeds a *Registry).
type Factory func(ctx any, name string, args json.RawMessage) (any, error)

type key struct {
	category Category
	typeName string
}

// Registry is the (category, type) -> factory map. Safe for concurrent use.
// Register is expected to happen only during startup, before the registry is
// frozen; Get is called for the lifetime of the process.
type Registry struct {
	mu       sync.RWMutex
	factories map[key]Factory
	frozen    bool
}

// New returns an empty, unfrozen registry.
func New() *Registry {
	return &Registry{factories: make(map[key]Factory)}
}

// Register installs factory under (category, typeName). Fails with a
// Configuration-kind DuplicateType error if the pair is already registered,
// or if the registry has been frozen.
func (r *Registry) Register(category Category, typeName string, factory Factory) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.frozen {
		return apperrors.ConfigurationError("registry is frozen: cannot register %s/%s", category, typeName)
	}
	k := key{category, typeName}
	if _, exists := r.factories[k]; exists {
		return apperrors.ConfigurationError("duplicate type: %s/%s already registered", category, typeName)
	}
	r.factories[k] = factory
	return nil
}

// Freeze prevents any further registration. Called once, at the end of
// context construction, after plugins have loaded.
func (r *Registry) Freeze() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frozen = true
}

// Get looks up the factory for (category, typeName) and invokes it.
func (r *Registry) Get(ctx any, category Category, typeName, name string, args json.RawMessage) (any, error) {
	r.mu.RLock()
	factory, ok := r.factories[key{category, typeName}]
	r.mu.RUnlock()
	if !ok {
		return nil, apperrors.ConfigurationError("unknown type: %s/%s", category, typeName)
	}
	instance, err := factory(ctx, name, args)
	if err != nil {
		return nil, fmt.Errorf("construct %s/%s %q: %w", category, typeName, name, err)
	}
	return instance, nil
}

// IsRegistered reports whether (category, typeName) has a factory.
func (r *Registry) IsRegistered(category Category, typeName string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.factories[key{category, typeName}]
	return ok
}

// Types lists the registered type names for a category, sorted.
func (r *Registry) Types(category Category) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []string
	for k := range r.factories {
		if k.category == category {
			out = append(out, k.typeName)
		}
	}
	sort.Strings(out)
	return out
}
