// Package catalog implements the reconciler: persisting declared apps to
// durable storage and converging the in-memory engine map with it on
// create/delete/recover (§4.8). Grounded closely on original_source's
// src/core.cpp create_engine/delete_engine/recover.
package catalog

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/hiveforge/hived/internal/apperrors"
	"github.com/hiveforge/hived/internal/logging"
	"github.com/hiveforge/hived/internal/storage"
)

const collection = "apps"

// Engine is the opaque running instance contract (§3 Engine handle). The
// reference implementation lives in internal/engine; arbitrary other
// engines remain external collaborators behind this interface.
type Engine interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	Info() (json.RawMessage, error)
}

// Factory constructs a new, not-yet-started Engine for name from manifest.
type Factory func(name string, manifest json.RawMessage) (Engine, error)

// Reconciler owns the in-memory engine map; it is the single source of
// truth for "is this app running" (§9 Ownership of engines).
type Reconciler struct {
	mu      sync.Mutex
	store   storage.Store
	logger  logging.Logger
	newEngine Factory
	engines map[string]Engine
}

// New builds a Reconciler over store, using newEngine to construct engines
// on create and recover.
func New(store storage.Store, logger logging.Logger, newEngine Factory) *Reconciler {
	return &Reconciler{store: store, logger: logger, newEngine: newEngine, engines: make(map[string]Engine)}
}

// CreateEngine implements §4.8's create_engine.
func (r *Reconciler) CreateEngine(ctx context.Context, name string, manifest json.RawMessage, recovering bool) (json.RawMessage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.createEngineLocked(ctx, name, manifest, recovering)
}

func (r *Reconciler) createEngineLocked(ctx context.Context, name string, manifest json.RawMessage, recovering bool) (json.RawMessage, error) {
	if _, exists := r.engines[name]; exists {
		return nil, apperrors.ConfigurationError("the specified app is already active")
	}

	engine, err := r.newEngine(name, manifest)
	if err != nil {
		return nil, apperrors.ConfigurationError("construct engine %q: %v", name, err)
	}
	if err := engine.Start(ctx); err != nil {
		return nil, err
	}

	if !recovering {
		if err := r.store.Put(ctx, collection, name, manifest); err != nil {
			// Storage failure on create: the just-started engine is
			// dropped. Go has no destructor to rely on, so Stop is
			// called explicitly before returning the error (§9).
			if stopErr := engine.Stop(ctx); stopErr != nil && r.logger != nil {
				r.logger.Warn("stop dropped engine after storage failure", "app", name, "err", stopErr.Error())
			}
			return nil, apperrors.StorageError(err, "persist app %q", name)
		}
	}

	r.engines[name] = engine
	return engine.Info()
}

// DeleteEngine implements §4.8's delete_engine.
func (r *Reconciler) DeleteEngine(ctx context.Context, name string) (json.RawMessage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.deleteEngineLocked(ctx, name)
}

func (r *Reconciler) deleteEngineLocked(ctx context.Context, name string) (json.RawMessage, error) {
	engine, exists := r.engines[name]
	if !exists {
		return nil, apperrors.ConfigurationError("the specified app is not active")
	}

	if err := r.store.Remove(ctx, collection, name); err != nil {
		return nil, apperrors.StorageError(err, "remove app %q", name)
	}

	if err := engine.Stop(ctx); err != nil && r.logger != nil {
		r.logger.Warn("stop engine during delete", "app", name, "err", err.Error())
	}
	info, err := engine.Info()
	if err != nil && r.logger != nil {
		r.logger.Warn("engine info during delete", "app", name, "err", err.Error())
	}
	delete(r.engines, name)
	return info, nil
}

// Recover implements §4.8's recover: read all declared apps, diff against
// the in-memory engine map, and converge. Returns a StorageError if the
// initial read of the "apps" collection fails; callers decide whether that
// is fatal (startup) or logged-and-swallowed (SIGHUP reload) per §7.
func (r *Reconciler) Recover(ctx context.Context) error {
	declared, err := r.store.All(ctx, collection)
	if err != nil {
		return apperrors.StorageError(err, "read %q collection", collection)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	active := make(map[string]struct{}, len(r.engines))
	for name := range r.engines {
		active[name] = struct{}{}
	}

	diff := make(map[string]struct{})
	for name := range declared {
		if _, ok := active[name]; !ok {
			diff[name] = struct{}{}
		}
	}
	for name := range active {
		if _, ok := declared[name]; !ok {
			diff[name] = struct{}{}
		}
	}

	for name := range diff {
		if _, running := r.engines[name]; !running {
			if _, err := r.createEngineLocked(ctx, name, declared[name], true); err != nil && r.logger != nil {
				r.logger.Warn("recover: create engine", "app", name, "err", err.Error())
			}
			continue
		}
		if r.logger != nil {
			r.logger.Info("app no longer available in storage", "app", name)
		}
		if _, err := r.deleteEngineLocked(ctx, name); err != nil && r.logger != nil {
			r.logger.Warn("recover: delete engine", "app", name, "err", err.Error())
		}
	}
	return nil
}

// Names returns the currently-running engine names, for the control
// server's info snapshot.
func (r *Reconciler) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, 0, len(r.engines))
	for name := range r.engines {
		names = append(names, name)
	}
	return names
}

// Info returns engine.Info() for every running app, skipping (and logging)
// any engine whose Info() call fails.
func (r *Reconciler) Info() map[string]json.RawMessage {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]json.RawMessage, len(r.engines))
	for name, engine := range r.engines {
		info, err := engine.Info()
		if err != nil {
			if r.logger != nil {
				r.logger.Warn("engine info", "app", name, "err", err.Error())
			}
			continue
		}
		out[name] = info
	}
	return out
}

// Count returns the number of running engines.
func (r *Reconciler) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.engines)
}

// StopAll stops every running engine and clears the in-memory map, without
// touching storage — the declared apps remain persisted so the next
// startup's Recover brings them back. This is the orderly-shutdown half of
// §4.10's "clear the engine map, unloop", distinct from DeleteEngine which
// also removes the app's durable declaration.
func (r *Reconciler) StopAll(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for name, engine := range r.engines {
		if err := engine.Stop(ctx); err != nil && r.logger != nil {
			r.logger.Warn("stop engine during shutdown", "app", name, "err", err.Error())
		}
	}
	r.engines = make(map[string]Engine)
}
