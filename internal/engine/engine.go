// Package engine implements the one in-tree Engine: a small fixed-size
// pool of isolate workers, each bound to its own reactor over the worker
// protocol (§4.6, §4.15). Grounded on services/confidential/marble/core.go
// for the isolate execution shape and on original_source/src/core.cpp for
// the engine lifecycle create/start/stop calls it's driven by.
package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"github.com/hiveforge/hived/internal/apperrors"
	"github.com/hiveforge/hived/internal/catalog"
	"github.com/hiveforge/hived/internal/logging"
	"github.com/hiveforge/hived/internal/reactor"
	"github.com/hiveforge/hived/internal/wire"
)

var _ catalog.Engine = (*Engine)(nil)

const (
	defaultPoolSize       = 2
	defaultHeartbeatEvery = 5 * time.Second
	defaultHeartbeatTTL   = 30 * time.Second
)

// Manifest is the app manifest shape this reference engine understands:
// an entry script and an optional pool size override.
type Manifest struct {
	Entry        string `json:"entry"`
	PoolSize     int    `json:"pool_size"`
	HeartbeatTTL string `json:"heartbeat_ttl"`
}

// IsolateFactory builds the Nth isolate slot in a pool for app name.
type IsolateFactory func(name string, slot int) (Isolate, error)

type worker struct {
	mu            sync.Mutex
	id            int
	isolate       Isolate
	reactor       *reactor.Reactor
	busy          bool
	terminated    bool
	lastHeartbeat time.Time
}

// Engine is the reference Engine handle (§3, §4.15): a pool of workers
// dispatching invoke sessions into isolates. Each worker's reactor receives
// the invoke and terminate frames; session output is collected directly
// from the isolate's emit callback, not sent back as chunk/choke/error
// frames.
type Engine struct {
	name     string
	entry    string
	logger   logging.Logger
	workers  []*worker
	sweeper  *cron.Cron
	ttl      time.Duration

	sessionCounter   uint64
	sessionsActive   int64
	invocationsTotal int64
}

// New constructs an Engine from manifest for app name, building poolSize
// workers via newIsolate. It does not start the pool; Start does.
func New(name string, manifest json.RawMessage, logger logging.Logger, newIsolate IsolateFactory) (*Engine, error) {
	var m Manifest
	if len(manifest) > 0 {
		if err := json.Unmarshal(manifest, &m); err != nil {
			return nil, apperrors.ConfigurationError("engine %q: bad manifest: %v", name, err)
		}
	}
	if m.Entry == "" {
		return nil, apperrors.ConfigurationError("engine %q: manifest has no entry script", name)
	}
	poolSize := m.PoolSize
	if poolSize <= 0 {
		poolSize = defaultPoolSize
	}
	ttl := defaultHeartbeatTTL
	if m.HeartbeatTTL != "" {
		parsed, err := time.ParseDuration(m.HeartbeatTTL)
		if err != nil {
			return nil, apperrors.ConfigurationError("engine %q: bad heartbeat_ttl: %v", name, err)
		}
		ttl = parsed
	}

	e := &Engine{name: name, entry: m.Entry, logger: logger, ttl: ttl}
	for i := 0; i < poolSize; i++ {
		isolate, err := newIsolate(name, i)
		if err != nil {
			return nil, apperrors.ConfigurationError("engine %q: build isolate %d: %v", name, i, err)
		}
		e.workers = append(e.workers, e.newWorker(i, isolate))
	}
	return e, nil
}

func (e *Engine) newWorker(id int, isolate Isolate) *worker {
	w := &worker{id: id, isolate: isolate, lastHeartbeat: time.Now()}
	w.reactor = reactor.New(wire.WorkerProtocol, e.logger)
	w.reactor.On(wire.MsgHeartbeat, func() error {
		w.mu.Lock()
		w.lastHeartbeat = time.Now()
		w.mu.Unlock()
		return nil
	})
	w.reactor.On(wire.MsgSuicide, func(reason int32, message string) error {
		if e.logger != nil {
			e.logger.Warn("worker suicide", "app", e.name, "worker", id, "reason", reason, "message", message)
		}
		w.mu.Lock()
		w.terminated = true
		w.mu.Unlock()
		return nil
	})
	w.reactor.On(wire.MsgTerminate, func() error {
		w.mu.Lock()
		w.terminated = true
		w.mu.Unlock()
		return nil
	})
	w.reactor.On(wire.MsgInvoke, func(session uint64, event string) error {
		return e.dispatchInvoke(w, session, event)
	})
	return w
}

// Start spins up the heartbeat-timeout watchdog. The pool itself is ready
// as soon as New returns; Start's job is the periodic sweep, not worker
// construction.
func (e *Engine) Start(ctx context.Context) error {
	e.sweeper = cron.New()
	if _, err := e.sweeper.AddFunc("@every 5s", e.sweepDeadWorkers); err != nil {
		return apperrors.UnexpectedError(fmt.Errorf("schedule heartbeat sweep: %w", err))
	}
	e.sweeper.Start()
	return nil
}

func (e *Engine) sweepDeadWorkers() {
	now := time.Now()
	for _, w := range e.workers {
		w.mu.Lock()
		stale := !w.terminated && now.Sub(w.lastHeartbeat) > e.ttl
		w.mu.Unlock()
		if stale && e.logger != nil {
			e.logger.Warn("worker missed heartbeat deadline", "app", e.name, "worker", w.id)
		}
	}
}

// Stop sends terminate to every worker through its own reactor (exercising
// the same decode/dispatch path a real termination would), then tears the
// sweeper down.
func (e *Engine) Stop(ctx context.Context) error {
	emptyArray, err := wire.EncodeArray(nil)
	if err != nil {
		return apperrors.UnexpectedError(err)
	}
	frame := wire.EncodeFrame(uint32(wire.WorkerProtocol.Opcode(wire.MsgTerminate)), emptyArray)
	for _, w := range e.workers {
		if _, err := w.reactor.Dispatch(frame); err != nil && e.logger != nil {
			e.logger.Warn("terminate worker", "app", e.name, "worker", w.id, "err", err.Error())
		}
	}
	if e.sweeper != nil {
		<-e.sweeper.Stop().Done()
	}
	return nil
}

// Info reports pool size, active sessions, and lifetime invocation count.
func (e *Engine) Info() (json.RawMessage, error) {
	info := struct {
		PoolSize         int   `json:"pool_size"`
		SessionsActive   int64 `json:"sessions_active"`
		InvocationsTotal int64 `json:"invocations_total"`
	}{
		PoolSize:         len(e.workers),
		SessionsActive:   atomic.LoadInt64(&e.sessionsActive),
		InvocationsTotal: atomic.LoadInt64(&e.invocationsTotal),
	}
	encoded, err := json.Marshal(info)
	if err != nil {
		return nil, apperrors.UnexpectedError(err)
	}
	return encoded, nil
}

// Invoke starts one session against the least-busy idle worker, blocking
// until the isolate finishes, and returns the concatenated emitted chunks.
// It is not part of the catalog.Engine contract; it is the entry point the
// gateway/control surfaces would use to actually run an app, exercised
// directly by this package's own tests against the wire/reactor stack.
func (e *Engine) Invoke(ctx context.Context, event string) ([]byte, error) {
	w := e.acquireWorker()
	if w == nil {
		return nil, apperrors.ResourceError("engine %q: isolate pool exhausted", e.name)
	}

	session := atomic.AddUint64(&e.sessionCounter, 1)
	traceID := uuid.NewString()
	atomic.AddInt64(&e.sessionsActive, 1)
	defer atomic.AddInt64(&e.sessionsActive, -1)
	atomic.AddInt64(&e.invocationsTotal, 1)

	payload, err := wire.EncodeArray([]wire.Value{wire.Uint64Value(session), wire.StringValue(event)})
	if err != nil {
		e.releaseWorker(w)
		return nil, apperrors.UnexpectedError(err)
	}
	invokeFrame := wire.EncodeFrame(uint32(wire.WorkerProtocol.Opcode(wire.MsgInvoke)), payload)
	if _, err := w.reactor.Dispatch(invokeFrame); err != nil {
		e.releaseWorker(w)
		return nil, err
	}

	var out []byte
	runErr := w.isolate.Invoke(ctx, e.entry, event, func(chunk []byte) {
		out = append(out, chunk...)
	})

	w.mu.Lock()
	w.lastHeartbeat = time.Now()
	w.mu.Unlock()
	e.releaseWorker(w)

	if runErr != nil {
		if e.logger != nil {
			e.logger.Warn("session failed", "app", e.name, "session", session, "trace", traceID, "err", runErr.Error())
		}
		return nil, apperrors.UnexpectedError(runErr)
	}
	return out, nil
}

func (e *Engine) acquireWorker() *worker {
	for _, w := range e.workers {
		w.mu.Lock()
		if !w.busy && !w.terminated {
			w.busy = true
			w.mu.Unlock()
			return w
		}
		w.mu.Unlock()
	}
	return nil
}

func (e *Engine) releaseWorker(w *worker) {
	w.mu.Lock()
	w.busy = false
	w.mu.Unlock()
}

func (e *Engine) dispatchInvoke(w *worker, session uint64, event string) error {
	// Acknowledges the invoke frame synchronously; the actual session run
	// happens in Invoke, which drives this same worker's reactor directly.
	// Installed so the worker's reactor has a complete slot table matching
	// the full WorkerProtocol, per §4.6's session lifecycle contract.
	_ = session
	_ = event
	_ = w
	return nil
}
