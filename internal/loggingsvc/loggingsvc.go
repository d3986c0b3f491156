// Package loggingsvc is the logging service (C11): a reactor bound to the
// logging protocol (§4.6, §4.11) that forwards `emit` messages from remote
// collaborators into the node's own structured logger, keyed by source.
// Grounded on original_source's
// include/cocaine/essentials/services/logging.hpp, whose logging_t is
// itself nothing but a reactor_t with one on_emit slot and a per-source
// log handle cache.
package loggingsvc

import (
	"encoding/json"
	"sync"

	"github.com/hiveforge/hived/internal/apperrors"
	"github.com/hiveforge/hived/internal/logging"
	"github.com/hiveforge/hived/internal/reactor"
	"github.com/hiveforge/hived/internal/registry"
	"github.com/hiveforge/hived/internal/wire"
)

// Level mirrors the priority scale a remote emit call tags its message
// with.
type Level int32

const (
	LevelDebug Level = 0
	LevelInfo  Level = 1
	LevelWarn  Level = 2
	LevelError Level = 3
)

// Service is the logging service: one reactor, one on_emit slot, and a
// cache of per-source child loggers (the Go analogue of logging_t's
// log_map_t).
type Service struct {
	mu      sync.Mutex
	sources map[string]logging.Logger

	base    logging.Logger
	reactor *reactor.Reactor
}

// New builds a logging service forwarding into base.
func New(base logging.Logger) *Service {
	s := &Service{base: base, sources: make(map[string]logging.Logger)}
	s.reactor = reactor.New(wire.LoggingProtocol, base)
	s.reactor.On(wire.MsgEmit, s.onEmit)
	return s
}

func (s *Service) sourceLogger(source string) logging.Logger {
	s.mu.Lock()
	defer s.mu.Unlock()
	if l, ok := s.sources[source]; ok {
		return l
	}
	l := s.base.With("source", source)
	s.sources[source] = l
	return l
}

func (s *Service) onEmit(priority int32, source, message string) (bool, error) {
	logger := s.sourceLogger(source)
	switch Level(priority) {
	case LevelDebug:
		logger.Debug(message)
	case LevelWarn:
		logger.Warn(message)
	case LevelError:
		logger.Error(message)
	default:
		logger.Info(message)
	}
	return true, nil
}

// Dispatch routes one framed `emit` call through the logging reactor.
func (s *Service) Dispatch(frame []byte) ([]byte, error) {
	return s.reactor.Dispatch(frame)
}

// Factory is installed into the registry under (service, "logging"). ctx
// must expose a Logger() logging.Logger method — every *appcontext.Context
// does.
func Factory(ctx any, _ string, _ json.RawMessage) (any, error) {
	provider, ok := ctx.(interface{ Logger() logging.Logger })
	if !ok {
		return nil, apperrors.ConfigurationError("loggingsvc: context does not expose a Logger()")
	}
	return New(provider.Logger()), nil
}

// Register installs the logging service factory into r.
func Register(r *registry.Registry) error {
	return r.Register(registry.CategoryService, "logging", Factory)
}
