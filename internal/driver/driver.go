// Package driver implements the signal/loop driver (C10, §4.10, §5): one
// goroutine driving `select` over the control channel, the worker-frame
// channel, a pumper ticker, the signal channel, and the announce ticker —
// the Go realization of the design's single-threaded cooperative event
// loop. Grounded on cmd/coordinator/main.go's signal-handling and
// graceful-shutdown pattern.
package driver

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hiveforge/hived/internal/announce"
	"github.com/hiveforge/hived/internal/catalog"
	"github.com/hiveforge/hived/internal/control"
	"github.com/hiveforge/hived/internal/logging"
)

const pumpInterval = 200 * time.Millisecond

// ControlJob is one inbound control request awaiting a reply. Reply is
// buffered size 1; the driver never blocks sending into it — if nobody
// reads it the reply is simply never collected, matching §4.7's
// drop-on-disconnect policy.
type ControlJob struct {
	Message   []byte
	Signature []byte
	Reply     chan []byte
}

// Driver owns the single event loop tying the control server, the catalog
// reconciler, the autoannouncer, and OS signal handling together.
type Driver struct {
	control  *control.Server
	catalog  *catalog.Reconciler
	announce *announce.Announcer
	logger   logging.Logger

	controlCh        chan ControlJob
	frameCh          chan []byte
	onFrame          func([]byte)
	announceInterval time.Duration
	signals          chan os.Signal
}

// New builds a Driver. announcer may be nil if no announce endpoint is
// configured; onFrame may be nil if nothing feeds the raw worker-frame
// channel (engines drive their own reactors directly and don't need it).
func New(ctl *control.Server, cat *catalog.Reconciler, announcer *announce.Announcer, announceInterval time.Duration, onFrame func([]byte), logger logging.Logger) *Driver {
	return &Driver{
		control:          ctl,
		catalog:          cat,
		announce:         announcer,
		announceInterval: announceInterval,
		onFrame:          onFrame,
		logger:           logger,
		controlCh:        make(chan ControlJob, 64),
		frameCh:          make(chan []byte, 64),
		signals:          make(chan os.Signal, 4),
	}
}

// Submit enqueues a control job for the loop to process. Blocks only if
// the control channel's buffer is full.
func (d *Driver) Submit(job ControlJob) { d.controlCh <- job }

// SubmitFrame enqueues a raw worker frame for the loop to process.
func (d *Driver) SubmitFrame(frame []byte) { d.frameCh <- frame }

// Run drives the loop until ctx is canceled or a terminal signal arrives.
// It always performs an orderly shutdown before returning.
func (d *Driver) Run(ctx context.Context) {
	signal.Notify(d.signals, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT, syscall.SIGHUP)
	defer signal.Stop(d.signals)

	pump := time.NewTicker(pumpInterval)
	defer pump.Stop()

	var announceTick <-chan time.Time
	if d.announce != nil && d.announceInterval > 0 {
		ticker := time.NewTicker(d.announceInterval)
		defer ticker.Stop()
		announceTick = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			d.shutdown(context.Background())
			return
		case sig := <-d.signals:
			if d.handleSignal(ctx, sig) {
				return
			}
		case job := <-d.controlCh:
			d.handleControl(ctx, job)
		case frame := <-d.frameCh:
			if d.onFrame != nil {
				d.onFrame(frame)
			}
		case <-pump.C:
			d.drain(ctx)
		case <-announceTick:
			d.announce.Tick()
		}
	}
}

// handleSignal returns true if the loop should stop.
func (d *Driver) handleSignal(ctx context.Context, sig os.Signal) bool {
	switch sig {
	case syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT:
		d.shutdown(ctx)
		return true
	case syscall.SIGHUP:
		d.reload(ctx)
		return false
	default:
		return false
	}
}

func (d *Driver) handleControl(ctx context.Context, job ControlJob) {
	reply := d.control.Dispatch(ctx, job.Message, job.Signature)
	select {
	case job.Reply <- reply:
	default:
		if d.logger != nil {
			d.logger.Warn("control reply dropped: peer not listening")
		}
	}
}

// drain guards against edge-triggered starvation: it keeps processing
// whatever is already queued on the control and frame channels until
// both report empty, rather than waiting for the next select iteration.
func (d *Driver) drain(ctx context.Context) {
	for {
		select {
		case job := <-d.controlCh:
			d.handleControl(ctx, job)
			continue
		case frame := <-d.frameCh:
			if d.onFrame != nil {
				d.onFrame(frame)
			}
			continue
		default:
			return
		}
	}
}

// reload re-synchronizes the catalog against storage. A StorageError here
// is logged and swallowed, never fatal, per §7's SIGHUP reload policy.
func (d *Driver) reload(ctx context.Context) {
	if err := d.catalog.Recover(ctx); err != nil && d.logger != nil {
		d.logger.Warn("reload failed", "err", err.Error())
	}
}

// shutdown stops every running engine without touching their durable
// declarations, so the next startup's Recover brings them right back.
func (d *Driver) shutdown(ctx context.Context) {
	if d.logger != nil {
		d.logger.Info("shutting down")
	}
	d.catalog.StopAll(ctx)
}
