// Package gateway implements the optional HTTP-to-control-protocol bridge
// (C13, §4.13): a thin JSON translation layer over the same Dispatch
// function the control server exposes in-process. It never talks to the
// catalog directly and carries no state beyond auth token verification.
// Grounded on golang/cmd/factoryinput/http.go's gin.New + gin.BasicAuth
// setup.
package gateway

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/tidwall/gjson"

	"github.com/hiveforge/hived/internal/control"
)

// Server is the gateway's router and state.
type Server struct {
	control *control.Server
	router  *gin.Engine
}

// Options configures optional gateway middleware. The zero value disables
// CORS and rate limiting, matching the teacher's opt-in middleware wiring.
type Options struct {
	// AllowedOrigins enables CORS for the listed origins; "*" allows any.
	AllowedOrigins []string
	// RequestsPerSecond and Burst enable per-client-IP rate limiting when
	// RequestsPerSecond is greater than zero.
	RequestsPerSecond float64
	Burst             int
}

// New builds a gateway Server dispatching through ctl. accounts, if
// non-empty, gates every route behind HTTP basic auth; a nil/empty map
// leaves the gateway open (suitable when it sits behind another
// authenticating proxy). opts is optional; a nil value disables CORS and
// rate limiting.
func New(ctl *control.Server, accounts gin.Accounts, opts *Options) *Server {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	if opts != nil && len(opts.AllowedOrigins) > 0 {
		router.Use(corsMiddleware(opts.AllowedOrigins))
	}
	if opts != nil && opts.RequestsPerSecond > 0 {
		router.Use(newIPRateLimiter(opts.RequestsPerSecond, opts.Burst).middleware())
	}

	group := router.Group("/")
	if len(accounts) > 0 {
		group.Use(gin.BasicAuth(accounts))
	}

	s := &Server{control: ctl, router: router}
	group.POST("/apps", s.handleCreate)
	group.DELETE("/apps/:name", s.handleDelete)
	group.GET("/apps", s.handleListApps)
	group.GET("/status", s.handleStatus)
	return s
}

// ServeHTTP makes Server an http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { s.router.ServeHTTP(w, r) }

type createRequest struct {
	Name     string          `json:"name"`
	Manifest json.RawMessage `json:"manifest"`
}

func (s *Server) handleCreate(c *gin.Context) {
	var req createRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name and manifest are required"})
		return
	}

	controlReq := mustMarshal(gin.H{
		"version": 2,
		"action":  "create",
		"apps":    gin.H{req.Name: json.RawMessage(req.Manifest)},
	})
	reply := s.control.Dispatch(c.Request.Context(), controlReq, nil)
	forwardAppsResult(c, reply, req.Name)
}

func (s *Server) handleDelete(c *gin.Context) {
	name := c.Param("name")
	controlReq := mustMarshal(gin.H{
		"version": 2,
		"action":  "delete",
		"apps":    []string{name},
	})
	reply := s.control.Dispatch(c.Request.Context(), controlReq, nil)
	forwardAppsResult(c, reply, name)
}

func (s *Server) handleListApps(c *gin.Context) {
	controlReq := mustMarshal(gin.H{"version": 2, "action": "info"})
	reply := s.control.Dispatch(c.Request.Context(), controlReq, nil)
	apps := gjson.GetBytes(reply, "apps")
	c.Data(http.StatusOK, "application/json", []byte(apps.Raw))
}

func (s *Server) handleStatus(c *gin.Context) {
	controlReq := mustMarshal(gin.H{"version": 2, "action": "info"})
	reply := s.control.Dispatch(c.Request.Context(), controlReq, nil)
	c.Data(http.StatusOK, "application/json", reply)
}

// forwardAppsResult extracts result[name] from a create/delete control
// reply — a top-level {name: info} or {name: {"error": ...}} map per §8 —
// and maps an "error" field's presence to the matching HTTP status.
func forwardAppsResult(c *gin.Context, reply []byte, name string) {
	if errMsg := gjson.GetBytes(reply, "error"); errMsg.Exists() {
		c.JSON(http.StatusBadRequest, gin.H{"error": errMsg.String()})
		return
	}
	result := gjson.GetBytes(reply, gjson.Escape(name))
	if !result.Exists() {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "malformed control reply"})
		return
	}
	if errMsg := result.Get("error"); errMsg.Exists() {
		c.JSON(http.StatusBadRequest, gin.H{"error": errMsg.String()})
		return
	}
	c.Data(http.StatusOK, "application/json", []byte(result.Raw))
}

func mustMarshal(v any) []byte {
	b, err := json.Marshal(v)
	if err != nil {
		return []byte(`{}`)
	}
	return b
}
