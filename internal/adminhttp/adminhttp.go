// Package adminhttp implements the admin/observability surface (C12,
// §4.12): a read-only HTTP surface, separate from the control socket,
// exposing liveness, readiness, Prometheus metrics, pprof, and host
// inventory. Metrics instrumentation is grounded on
// internal/app/metrics/metrics.go's private-registry convention (no
// request-instrumenting middleware is installed); routing uses the teacher's declared (previously unwired)
// chi dependency.
package adminhttp

import (
	"encoding/json"
	"net/http"
	"net/http/pprof"
	"sync/atomic"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hiveforge/hived/internal/sysinfo"
)

// Metrics holds the node's Prometheus collectors, registered into a
// private registry rather than the global default (mirrors the teacher's
// own Registry convention).
type Metrics struct {
	Registry *prometheus.Registry

	PortPoolInUse        prometheus.Gauge
	CatalogSize          prometheus.Gauge
	ControlRequestsTotal prometheus.Counter
	RPCFramesTotal       *prometheus.CounterVec
}

// NewMetrics builds and registers the node's metric collectors.
func NewMetrics() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		PortPoolInUse: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "hived",
			Subsystem: "ports",
			Name:      "in_use",
			Help:      "Ports currently leased from the pool.",
		}),
		CatalogSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "hived",
			Subsystem: "catalog",
			Name:      "apps_active",
			Help:      "Number of apps with a running engine.",
		}),
		ControlRequestsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "hived",
			Subsystem: "control",
			Name:      "requests_total",
			Help:      "Total number of control protocol requests dispatched.",
		}),
		RPCFramesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hived",
			Subsystem: "rpc",
			Name:      "frames_total",
			Help:      "Total number of worker protocol frames processed, by opcode name.",
		}, []string{"opcode"}),
	}
	m.Registry.MustRegister(
		m.PortPoolInUse,
		m.CatalogSize,
		m.ControlRequestsTotal,
		m.RPCFramesTotal,
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		prometheus.NewGoCollector(),
	)
	return m
}

// Ready reports whether the node has completed its first recover() and is
// ready to serve traffic. Set by the caller once startup recovery
// finishes.
type Ready struct {
	ready atomic.Bool
}

// Set marks the node ready (or not).
func (r *Ready) Set(v bool) { r.ready.Store(v) }

// IsReady reports the current readiness state.
func (r *Ready) IsReady() bool { return r.ready.Load() }

// Server is the admin HTTP surface's router and state.
type Server struct {
	metrics *Metrics
	ready   *Ready
	hosts   *sysinfo.Collector
	router  chi.Router
}

// New builds the admin router. ready may be nil if readiness is always
// true (e.g. embedded tooling with no recover() phase).
func New(metrics *Metrics, ready *Ready, hosts *sysinfo.Collector) *Server {
	s := &Server{metrics: metrics, ready: ready, hosts: hosts}
	r := chi.NewRouter()
	r.Get("/healthz", s.handleHealthz)
	r.Get("/readyz", s.handleReadyz)
	r.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))
	r.Get("/debug/hostinfo", s.handleHostinfo)
	r.HandleFunc("/debug/pprof/*", pprof.Index)
	r.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	r.HandleFunc("/debug/pprof/profile", pprof.Profile)
	r.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	r.HandleFunc("/debug/pprof/trace", pprof.Trace)
	s.router = r
	return s
}

// ServeHTTP makes Server an http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { s.router.ServeHTTP(w, r) }

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleReadyz(w http.ResponseWriter, _ *http.Request) {
	if s.ready != nil && !s.ready.IsReady() {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("not ready"))
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

func (s *Server) handleHostinfo(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(s.hosts.Collect())
}
