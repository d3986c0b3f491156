// Package appcontext implements the process-wide Context: the one owning
// root object holding the I/O multiplexor, the port allocator, the
// component registry, and the logger. Every other component holds a
// non-owning reference to it, passed explicitly — never ambient.
package appcontext

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/hiveforge/hived/internal/apperrors"
	"github.com/hiveforge/hived/internal/config"
	"github.com/hiveforge/hived/internal/logging"
	"github.com/hiveforge/hived/internal/portpool"
	"github.com/hiveforge/hived/internal/registry"
)

// PluginLoader installs factories into a freshly-built, empty registry
// before it is frozen. Call sites pass the concrete backend packages'
// Register functions (zaplog.Register, memory.Register, ...).
type PluginLoader func(*registry.Registry) error

// Context is the process-wide singleton. One instance per process; shared
// by reference, never copied.
type Context struct {
	mu sync.RWMutex

	io       *IOMultiplexor
	ports    *portpool.Pool
	registry *registry.Registry
	logger   logging.Logger

	cfg       *config.Config
	startedAt time.Time
	route     string
}

// New constructs a Context in the mandated order: I/O multiplexor, port
// allocator, registry (loaded then frozen), and finally the logger —
// instantiated through the registry, or taken directly as presetLogger for
// tests. loggerType names an entry of cfg.Loggers whose type field selects
// the registry type; without such an entry (or with an empty type),
// loggerType itself is used as the registry type name. Exactly one of
// loggerType / presetLogger must be supplied.
func New(cfg *config.Config, loaders []PluginLoader, loggerType string, presetLogger logging.Logger) (*Context, error) {
	if loggerType == "" && presetLogger == nil {
		return nil, apperrors.ConfigurationError("context: require a logger type or a preset logger")
	}

	c := &Context{
		io:        newIOMultiplexor(),
		ports:     portpool.New(cfg.Network.PortLo, cfg.Network.PortHi),
		registry:  registry.New(),
		cfg:       cfg,
		startedAt: time.Now(),
	}

	for _, load := range loaders {
		if err := load(c.registry); err != nil {
			return nil, fmt.Errorf("load plugins: %w", err)
		}
	}
	c.registry.Freeze()

	if presetLogger != nil {
		c.logger = presetLogger
	} else {
		spec, ok := cfg.Loggers[loggerType]
		var args json.RawMessage
		typeName := loggerType
		if ok {
			args = spec.Args
			if spec.Type != "" {
				typeName = spec.Type
			}
		}
		instance, err := c.registry.Get(c, registry.CategoryLogger, typeName, loggerType, args)
		if err != nil {
			return nil, fmt.Errorf("instantiate logger %q: %w", loggerType, err)
		}
		logger, ok := instance.(logging.Logger)
		if !ok {
			return nil, apperrors.ConfigurationError("logger %q did not produce a logging.Logger", loggerType)
		}
		c.logger = logger
	}

	c.route = fmt.Sprintf("%s:%d#%d", cfg.Network.Hostname, cfg.Network.PortLo, c.startedAt.UnixNano())
	return c, nil
}

// IO returns the shared I/O multiplexor.
func (c *Context) IO() *IOMultiplexor { return c.io }

// Ports returns the shared port allocator.
func (c *Context) Ports() *portpool.Pool { return c.ports }

// Registry returns the frozen component registry.
func (c *Context) Registry() *registry.Registry { return c.registry }

// Logger returns the context's one owned logger. Satisfies the
// interface{ Logger() logging.Logger } that factories such as
// loggingsvc.Factory type-assert on the ctx they receive as `any`.
func (c *Context) Logger() logging.Logger {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.logger
}

// Config returns the immutable configuration the context was built from.
func (c *Context) Config() *config.Config { return c.cfg }

// Route returns this process's opaque, unique-per-lifetime route
// identifier, used as a reply address on the worker transport.
func (c *Context) Route() string { return c.route }

// Uptime returns the duration since construction.
func (c *Context) Uptime() time.Duration { return time.Since(c.startedAt) }

// GetStorage resolves a named storage instance via the registry.
func (c *Context) GetStorage(typeName, name string, args json.RawMessage) (any, error) {
	return c.registry.Get(c, registry.CategoryStorage, typeName, name, args)
}

// GetService resolves a named service instance via the registry.
func (c *Context) GetService(typeName, name string, args json.RawMessage) (any, error) {
	return c.registry.Get(c, registry.CategoryService, typeName, name, args)
}

// GetIsolate resolves a named isolate instance via the registry.
func (c *Context) GetIsolate(typeName, name string, args json.RawMessage) (any, error) {
	return c.registry.Get(c, registry.CategoryIsolate, typeName, name, args)
}

// Shutdown tears down owned resources in strict reverse construction
// order: logger last-built means logger is not explicitly closed here
// (loggers have no Close contract), registry is read-only and needs no
// teardown, the port pool holds no external resources, and the I/O
// multiplexor — built first — is shut down last.
func (c *Context) Shutdown() {
	c.io.Shutdown()
}
