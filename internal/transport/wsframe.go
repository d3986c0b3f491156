// Package transport implements the worker-facing framed transport: a
// websocket upgrade endpoint routed with gorilla/mux, carrying the binary
// frames produced by the wire package. Grounded on the teacher's own
// realtime websocket client (supabase/client/realtime.go) and its
// gorilla/mux-routed handlers (cmd/gateway/middleware.go).
package transport

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/hiveforge/hived/internal/logging"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// Conn is one worker's binary frame channel, satisfying what the reactor
// needs to receive and reply: a blocking Recv and a non-blocking-ish Send
// (writes are serialized internally since gorilla/websocket forbids
// concurrent writers on one connection).
type Conn struct {
	ws *websocket.Conn
	mu sync.Mutex
}

// Recv blocks for the next binary frame.
func (c *Conn) Recv() ([]byte, error) {
	_, data, err := c.ws.ReadMessage()
	return data, err
}

// Send writes frame as one binary message.
func (c *Conn) Send(frame []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ws.WriteMessage(websocket.BinaryMessage, frame)
}

// Close closes the underlying socket.
func (c *Conn) Close() error { return c.ws.Close() }

// Handler is invoked with each newly-upgraded worker connection; it owns
// the connection for its lifetime and is expected to run the reactor's
// receive loop against it.
type Handler func(*Conn)

// Server routes worker upgrade requests at a configured path to Handler.
type Server struct {
	router  *mux.Router
	handle  Handler
	logger  logging.Logger
}

// NewServer builds a Server that upgrades requests at path and hands the
// resulting Conn to handle.
func NewServer(path string, handle Handler, logger logging.Logger) *Server {
	s := &Server{router: mux.NewRouter(), handle: handle, logger: logger}
	s.router.HandleFunc(path, s.upgrade)
	return s
}

func (s *Server) upgrade(w http.ResponseWriter, r *http.Request) {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		if s.logger != nil {
			s.logger.Warn("websocket upgrade failed", "err", err.Error())
		}
		return
	}
	conn := &Conn{ws: ws}
	go s.handle(conn)
}

// ServeHTTP lets Server be mounted directly as an http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { s.router.ServeHTTP(w, r) }

// ListenAndServe binds addr and serves worker upgrade requests until err or
// the process exits. Mirrors the teacher's http.Server field conventions
// in cmd/coordinator/main.go.
func (s *Server) ListenAndServe(addr string) error {
	srv := &http.Server{
		Addr:         addr,
		Handler:      s,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
	return srv.ListenAndServe()
}
