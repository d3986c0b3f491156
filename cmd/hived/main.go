// Command hived is the node's entry point: load configuration, build the
// context and the catalog, recover previously-declared apps, and run the
// control/worker/admin/gateway surfaces until a terminal signal arrives.
// Grounded on cmd/coordinator/main.go's flag/env/signal/shutdown shape.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/tidwall/gjson"

	"github.com/hiveforge/hived/internal/adminhttp"
	"github.com/hiveforge/hived/internal/announce"
	"github.com/hiveforge/hived/internal/appcontext"
	"github.com/hiveforge/hived/internal/auth"
	"github.com/hiveforge/hived/internal/auth/hmacauth"
	"github.com/hiveforge/hived/internal/catalog"
	"github.com/hiveforge/hived/internal/config"
	"github.com/hiveforge/hived/internal/control"
	"github.com/hiveforge/hived/internal/driver"
	"github.com/hiveforge/hived/internal/engine"
	"github.com/hiveforge/hived/internal/engine/jsisolate"
	"github.com/hiveforge/hived/internal/gateway"
	"github.com/hiveforge/hived/internal/logging"
	"github.com/hiveforge/hived/internal/logging/logruslog"
	"github.com/hiveforge/hived/internal/logging/zaplog"
	"github.com/hiveforge/hived/internal/logging/zerologlog"
	"github.com/hiveforge/hived/internal/loggingsvc"
	"github.com/hiveforge/hived/internal/portpool"
	"github.com/hiveforge/hived/internal/storage"
	"github.com/hiveforge/hived/internal/storage/memory"
	"github.com/hiveforge/hived/internal/storage/postgres"
	"github.com/hiveforge/hived/internal/storage/rediscache"
	"github.com/hiveforge/hived/internal/sysinfo"
	"github.com/hiveforge/hived/internal/transport"
)

const (
	defaultLoggerName  = "default"
	defaultStorageName = "apps"
)

func main() {
	configPath := flag.String("config", "", "path to the node's JSON configuration file (required)")
	announceIntervalFlag := flag.String("announce-interval", "", "override the configured announce interval")
	adminAddrFlag := flag.String("admin-addr", "", "override the configured admin HTTP address")
	gatewayAddrFlag := flag.String("gateway-addr", "", "override the configured gateway HTTP address")
	flag.Parse()

	applyEnvOverride(configPath, "NODE_CONFIG")
	applyEnvOverride(announceIntervalFlag, "NODE_ANNOUNCE_INTERVAL")
	applyEnvOverride(adminAddrFlag, "NODE_ADMIN_ADDR")
	applyEnvOverride(gatewayAddrFlag, "NODE_GATEWAY_ADDR")

	if *configPath == "" {
		log.Fatal("--config is required")
	}

	cfg, err := config.Load(*configPath, "")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if *announceIntervalFlag != "" {
		cfg.AnnounceInterval = *announceIntervalFlag
	}
	if *adminAddrFlag != "" {
		cfg.AdminAddr = *adminAddrFlag
	}
	if *gatewayAddrFlag != "" {
		cfg.GatewayAddr = *gatewayAddrFlag
	}

	loaders := []appcontext.PluginLoader{
		zaplog.Register, zerologlog.Register, logruslog.Register,
		memory.Register, postgres.Register, rediscache.Register,
		jsisolate.Register, loggingsvc.Register,
	}

	loggerName := defaultLoggerName
	if _, ok := cfg.Loggers[loggerName]; !ok {
		loggerName = "zap"
	}
	appCtx, err := appcontext.New(cfg, loaders, loggerName, nil)
	if err != nil {
		log.Fatalf("build context: %v", err)
	}
	defer appCtx.Shutdown()
	logger := appCtx.Logger()

	store, err := resolveAppStorage(appCtx, cfg)
	if err != nil {
		log.Fatalf("resolve app storage: %v", err)
	}

	cat := catalog.New(store, logger, newEngineFactory(appCtx, logger))
	if err := cat.Recover(context.Background()); err != nil {
		log.Fatalf("recover apps: %v", err)
	}

	var authenticator auth.Authenticator
	if secret := os.Getenv("NODE_AUTH_SECRET"); secret != "" {
		authenticator = hmacauth.New([]byte(secret))
	}

	ctl := control.New(cat, authenticator, logger, appCtx)

	logSvcInstance, err := appCtx.GetService("logging", "logging", nil)
	if err != nil {
		log.Fatalf("build logging service: %v", err)
	}
	logSvc, ok := logSvcInstance.(*loggingsvc.Service)
	if !ok {
		log.Fatalf("logging service did not produce a *loggingsvc.Service")
	}

	fanout := announce.NewFanout()
	interval := parseAnnounceInterval(cfg.AnnounceInterval)
	announcer := announce.New(appCtx, func() (json.RawMessage, error) {
		return json.Marshal(map[string]any{
			"route": appCtx.Route(),
			"apps":  cat.Info(),
		})
	}, fanout, interval, logger)

	ready := &adminhttp.Ready{}
	metrics := adminhttp.NewMetrics()
	admin := adminhttp.New(metrics, ready, sysinfo.New())

	drv := driver.New(ctl, cat, announcer, interval, nil, logger)

	controlSrv := transport.NewServer("/control", controlHandler(drv, metrics), logger)
	announceSrv := transport.NewServer("/announce", announceHandler(fanout), logger)
	loggingSrv := transport.NewServer("/logging", loggingHandler(logSvc), logger)
	gw := gateway.New(ctl, nil, &gateway.Options{AllowedOrigins: []string{"*"}, RequestsPerSecond: 20, Burst: 40})

	runCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	workerMux := http.NewServeMux()
	workerMux.Handle("/control", controlSrv)
	workerMux.Handle("/announce", announceSrv)
	workerMux.Handle("/logging", loggingSrv)

	go serve(fmt.Sprintf(":%d", cfg.Network.PortLo), workerMux, logger, "control/worker")
	if cfg.AdminAddr != "" {
		go serve(cfg.AdminAddr, admin, logger, "admin")
	}
	if cfg.GatewayAddr != "" {
		go serve(cfg.GatewayAddr, gw, logger, "gateway")
	}
	go refreshGaugeMetrics(runCtx, metrics, cat, appCtx.Ports(), cfg.Network.PortHi-cfg.Network.PortLo+1)

	ready.Set(true)
	drv.Run(runCtx)
	logger.Info("hived stopped")
}

// refreshGaugeMetrics periodically samples the catalog and port pool into
// the admin surface's gauges; these reflect point-in-time state rather
// than events, so a ticker suits them better than an increment-on-call.
func refreshGaugeMetrics(ctx context.Context, metrics *adminhttp.Metrics, cat *catalog.Reconciler, ports *portpool.Pool, totalPorts int) {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			metrics.CatalogSize.Set(float64(cat.Count()))
			metrics.PortPoolInUse.Set(float64(totalPorts - ports.Available()))
		}
	}
}

// controlHandler adapts one websocket connection into framed control
// requests submitted to the driver's single event loop.
func controlHandler(drv *driver.Driver, metrics *adminhttp.Metrics) transport.Handler {
	return func(c *transport.Conn) {
		defer c.Close()
		for {
			message, err := c.Recv()
			if err != nil {
				return
			}
			var signature []byte
			if version := gjson.GetBytes(message, "version"); version.Exists() && version.Int() >= 3 {
				signature, err = c.Recv()
				if err != nil {
					return
				}
			}
			metrics.ControlRequestsTotal.Inc()
			metrics.RPCFramesTotal.WithLabelValues(gjson.GetBytes(message, "action").String()).Inc()

			reply := make(chan []byte, 1)
			drv.Submit(driver.ControlJob{Message: message, Signature: signature, Reply: reply})
			if err := c.Send(<-reply); err != nil {
				return
			}
		}
	}
}

// loggingHandler lets a worker forward framed emit() calls to the node's
// shared logging reactor over its own route, mirroring how control requests
// are framed on /control.
func loggingHandler(svc *loggingsvc.Service) transport.Handler {
	return func(c *transport.Conn) {
		defer c.Close()
		for {
			frame, err := c.Recv()
			if err != nil {
				return
			}
			reply, err := svc.Dispatch(frame)
			if err != nil {
				return
			}
			if err := c.Send(reply); err != nil {
				return
			}
		}
	}
}

// announceHandler registers each connecting peer into the fanout for the
// lifetime of its socket; peers never send anything meaningful back, so
// the loop just blocks on Recv until the connection drops.
func announceHandler(fanout *announce.Fanout) transport.Handler {
	return func(c *transport.Conn) {
		fanout.Register(c)
		defer fanout.Unregister(c)
		for {
			if _, err := c.Recv(); err != nil {
				return
			}
		}
	}
}

func serve(addr string, handler http.Handler, logger logging.Logger, label string) {
	if err := http.ListenAndServe(addr, handler); err != nil && err != http.ErrServerClosed {
		logger.Error("surface stopped", "surface", label, "addr", addr, "err", err.Error())
	}
}

func applyEnvOverride(flagValue *string, envName string) {
	if v := os.Getenv(envName); v != "" {
		*flagValue = v
	}
}

func parseAnnounceInterval(raw string) time.Duration {
	if raw == "" {
		return 30 * time.Second
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 30 * time.Second
	}
	return d
}

func resolveAppStorage(appCtx *appcontext.Context, cfg *config.Config) (storage.Store, error) {
	spec, ok := cfg.Storages[defaultStorageName]
	if !ok {
		return memory.New(), nil
	}
	instance, err := appCtx.GetStorage(spec.Type, defaultStorageName, spec.Args)
	if err != nil {
		return nil, err
	}
	store, ok := instance.(storage.Store)
	if !ok {
		return nil, fmt.Errorf("storage %q did not produce a storage.Store", spec.Type)
	}
	return store, nil
}

func newEngineFactory(appCtx *appcontext.Context, logger logging.Logger) catalog.Factory {
	return func(name string, manifest json.RawMessage) (catalog.Engine, error) {
		return engine.New(name, manifest, logger, func(appName string, slot int) (engine.Isolate, error) {
			instance, err := appCtx.GetIsolate("goja", fmt.Sprintf("%s-%d", appName, slot), nil)
			if err != nil {
				return nil, err
			}
			isolate, ok := instance.(engine.Isolate)
			if !ok {
				return nil, fmt.Errorf("isolate %q did not satisfy engine.Isolate", appName)
			}
			return isolate, nil
		})
	}
}
