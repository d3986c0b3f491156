package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hiveforge/hived/internal/catalog"
	"github.com/hiveforge/hived/internal/control"
	"github.com/hiveforge/hived/internal/storage/memory"
)

type stubEngine struct{ name string }

func (e *stubEngine) Start(context.Context) error { return nil }
func (e *stubEngine) Stop(context.Context) error  { return nil }
func (e *stubEngine) Info() (json.RawMessage, error) {
	return json.RawMessage(`{"name":"` + e.name + `"}`), nil
}

type stubNode struct{}

func (stubNode) Route() string         { return "node-1" }
func (stubNode) Uptime() time.Duration { return time.Second }

func newTestGateway(t *testing.T) *Server {
	store := memory.New()
	cat := catalog.New(store, nil, func(name string, manifest json.RawMessage) (catalog.Engine, error) {
		return &stubEngine{name: name}, nil
	})
	ctl := control.New(cat, nil, nil, stubNode{})
	return New(ctl, nil, nil)
}

func TestPostAppsCreatesAndReturnsInfo(t *testing.T) {
	s := newTestGateway(t)
	body := `{"name":"app1","manifest":{"entry":"1+1"}}`
	req := httptest.NewRequest(http.MethodPost, "/apps", strings.NewReader(body))
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "app1")
}

func TestDeleteAppsRemovesApp(t *testing.T) {
	s := newTestGateway(t)
	createReq := httptest.NewRequest(http.MethodPost, "/apps", strings.NewReader(`{"name":"app1","manifest":{"entry":"1"}}`))
	s.ServeHTTP(httptest.NewRecorder(), createReq)

	req := httptest.NewRequest(http.MethodDelete, "/apps/app1", nil)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	listReq := httptest.NewRequest(http.MethodGet, "/apps", nil)
	listRec := httptest.NewRecorder()
	s.ServeHTTP(listRec, listReq)
	assert.JSONEq(t, "{}", listRec.Body.String())
}

func TestGetStatusReturnsFullSnapshot(t *testing.T) {
	s := newTestGateway(t)
	req := httptest.NewRequest(http.MethodGet, "/status", nil)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "route")
	assert.Contains(t, rec.Body.String(), "counters")
}

func TestPostAppsRejectsMissingName(t *testing.T) {
	s := newTestGateway(t)
	req := httptest.NewRequest(http.MethodPost, "/apps", strings.NewReader(`{"manifest":{}}`))
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestBasicAuthRejectsMissingCredentials(t *testing.T) {
	store := memory.New()
	cat := catalog.New(store, nil, func(name string, manifest json.RawMessage) (catalog.Engine, error) {
		return &stubEngine{name: name}, nil
	})
	ctl := control.New(cat, nil, nil, stubNode{})
	s := New(ctl, gin.Accounts{"admin": "secret"}, nil)

	req := httptest.NewRequest(http.MethodGet, "/status", nil)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRateLimitRejectsBurstOverflow(t *testing.T) {
	store := memory.New()
	cat := catalog.New(store, nil, func(name string, manifest json.RawMessage) (catalog.Engine, error) {
		return &stubEngine{name: name}, nil
	})
	ctl := control.New(cat, nil, nil, stubNode{})
	s := New(ctl, nil, &Options{RequestsPerSecond: 1, Burst: 1})

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodGet, "/status", nil)
		req.RemoteAddr = "10.0.0.5:1234"
		rec := httptest.NewRecorder()
		s.ServeHTTP(rec, req)
		if i == 0 {
			require.Equal(t, http.StatusOK, rec.Code)
		} else {
			assert.Equal(t, http.StatusTooManyRequests, rec.Code)
		}
	}
}

func TestCORSSetsAllowOriginHeader(t *testing.T) {
	store := memory.New()
	cat := catalog.New(store, nil, func(name string, manifest json.RawMessage) (catalog.Engine, error) {
		return &stubEngine{name: name}, nil
	})
	ctl := control.New(cat, nil, nil, stubNode{})
	s := New(ctl, nil, &Options{AllowedOrigins: []string{"*"}})

	req := httptest.NewRequest(http.MethodGet, "/status", nil)
	req.Header.Set("Origin", "https://example.com")
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	assert.Equal(t, "https://example.com", rec.Header().Get("Access-Control-Allow-Origin"))
}
