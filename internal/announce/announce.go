// Package announce implements the autoannouncer (C9, §4.9): on a fixed
// interval, fan out the node's route and its info snapshot to every
// subscribed peer. Grounded on the fan-out description in
// original_source's include/cocaine/context.hpp; fire-and-forget, no
// ordering or delivery guarantee.
package announce

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/hiveforge/hived/internal/logging"
	"github.com/hiveforge/hived/internal/transport"
)

// Fanout holds the set of currently-subscribed peer connections and
// broadcasts frames to all of them, dropping send failures silently —
// a disconnected peer is not this package's problem.
type Fanout struct {
	mu    sync.Mutex
	peers map[*transport.Conn]struct{}
}

// NewFanout returns an empty Fanout.
func NewFanout() *Fanout {
	return &Fanout{peers: make(map[*transport.Conn]struct{})}
}

// Register subscribes c to future broadcasts.
func (f *Fanout) Register(c *transport.Conn) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.peers[c] = struct{}{}
}

// Unregister removes c, idempotently.
func (f *Fanout) Unregister(c *transport.Conn) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.peers, c)
}

// Count reports the number of currently-registered peers.
func (f *Fanout) Count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.peers)
}

// Broadcast sends frame to every currently-registered peer.
func (f *Fanout) Broadcast(frame []byte) {
	f.mu.Lock()
	peers := make([]*transport.Conn, 0, len(f.peers))
	for c := range f.peers {
		peers = append(peers, c)
	}
	f.mu.Unlock()
	for _, c := range peers {
		_ = c.Send(frame)
	}
}

// Node is the route accessor the announcer needs.
type Node interface {
	Route() string
}

// Snapshot produces the info payload to announce alongside the route.
type Snapshot func() (json.RawMessage, error)

// Announcer periodically publishes (route, snapshot) onto a Fanout.
type Announcer struct {
	interval time.Duration
	limiter  *rate.Limiter
	node     Node
	snapshot Snapshot
	fanout   *Fanout
	logger   logging.Logger
}

// New builds an Announcer firing every interval, rate-limited to at most
// one publish per interval even if the caller's ticker drifts.
func New(node Node, snapshot Snapshot, fanout *Fanout, interval time.Duration, logger logging.Logger) *Announcer {
	return &Announcer{
		interval: interval,
		limiter:  rate.NewLimiter(rate.Every(interval), 1),
		node:     node,
		snapshot: snapshot,
		fanout:   fanout,
		logger:   logger,
	}
}

// Run blocks, publishing on every tick, until ctx is canceled.
func (a *Announcer) Run(ctx context.Context) {
	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.Tick()
		}
	}
}

// Tick runs one publish cycle immediately. Exposed so the driver (C10) can
// fold the announce ticker into its own single select loop instead of
// running Announcer on a separate goroutine.
func (a *Announcer) Tick() {
	if !a.limiter.Allow() {
		if a.logger != nil {
			a.logger.Warn("announce: rate-limited, dropping tick")
		}
		return
	}
	info, err := a.snapshot()
	if err != nil {
		if a.logger != nil {
			a.logger.Warn("announce: snapshot failed", "err", err.Error())
		}
		return
	}
	a.fanout.Broadcast([]byte(a.node.Route()))
	a.fanout.Broadcast(info)
}
