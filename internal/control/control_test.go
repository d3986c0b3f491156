package control

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hiveforge/hived/internal/apperrors"
	"github.com/hiveforge/hived/internal/catalog"
	"github.com/hiveforge/hived/internal/storage/memory"
)

type stubEngine struct{ name string }

func (e *stubEngine) Start(context.Context) error { return nil }
func (e *stubEngine) Stop(context.Context) error  { return nil }
func (e *stubEngine) Info() (json.RawMessage, error) {
	return json.RawMessage(`{"pool_size":1}`), nil
}

type stubNode struct{ route string }

func (n *stubNode) Route() string         { return n.route }
func (n *stubNode) Uptime() time.Duration { return 42 * time.Second }

type stubAuth struct{ err error }

func (a *stubAuth) Authenticate(_, _ []byte, _ string) error { return a.err }

func newTestServer(t *testing.T) *Server {
	t.Helper()
	store := memory.New()
	cat := catalog.New(store, nil, func(name string, manifest json.RawMessage) (catalog.Engine, error) {
		return &stubEngine{name: name}, nil
	})
	return New(cat, &stubAuth{}, nil, &stubNode{route: "node-1"})
}

func TestDispatchRejectsNonObjectRoot(t *testing.T) {
	s := newTestServer(t)
	reply := s.Dispatch(context.Background(), []byte(`[1,2,3]`), nil)
	assert.Contains(t, string(reply), "json root must be an object")
}

func TestDispatchRejectsUnsupportedVersion(t *testing.T) {
	s := newTestServer(t)
	reply := s.Dispatch(context.Background(), []byte(`{"version":99,"action":"info"}`), nil)
	assert.Contains(t, string(reply), "unsupported protocol version")
}

func TestDispatchVersion3RequiresUsername(t *testing.T) {
	s := newTestServer(t)
	reply := s.Dispatch(context.Background(), []byte(`{"version":3,"action":"info"}`), nil)
	assert.Contains(t, string(reply), "username expected")
}

func TestDispatchVersion3AuthenticationFailure(t *testing.T) {
	store := memory.New()
	cat := catalog.New(store, nil, func(name string, manifest json.RawMessage) (catalog.Engine, error) {
		return &stubEngine{name: name}, nil
	})
	s := New(cat, &stubAuth{err: apperrors.AuthorizationError("bad signature")}, nil, &stubNode{})

	reply := s.Dispatch(context.Background(), []byte(`{"version":3,"username":"alice","action":"info"}`), []byte("sig"))
	assert.JSONEq(t, `{"error":"bad signature"}`, string(reply))
}

func TestDispatchCreateThenInfoThenDelete(t *testing.T) {
	s := newTestServer(t)

	createReq := `{"version":2,"action":"create","apps":{"app1":{"entry":"1+1"}}}`
	reply := s.Dispatch(context.Background(), []byte(createReq), nil)
	var createResult map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(reply, &createResult))
	require.Contains(t, createResult, "app1")
	assert.Contains(t, string(createResult["app1"]), "pool_size")

	infoReply := s.Dispatch(context.Background(), []byte(`{"version":2,"action":"info"}`), nil)
	var infoResult struct {
		Route string `json:"route"`
	}
	require.NoError(t, json.Unmarshal(infoReply, &infoResult))
	assert.Equal(t, "node-1", infoResult.Route)

	deleteReq := `{"version":2,"action":"delete","apps":["app1"]}`
	deleteReply := s.Dispatch(context.Background(), []byte(deleteReq), nil)
	var deleteResult map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(deleteReply, &deleteResult))
	require.Contains(t, deleteResult, "app1")
}

func TestDispatchCreateRejectsManifestMissingEntry(t *testing.T) {
	s := newTestServer(t)
	reply := s.Dispatch(context.Background(), []byte(`{"version":2,"action":"create","apps":{"app1":{}}}`), nil)

	var result map[string]struct {
		Error string `json:"error"`
	}
	require.NoError(t, json.Unmarshal(reply, &result))
	assert.Contains(t, result["app1"].Error, "entry")
	assert.NotContains(t, result["app1"].Error, "configuration_error")
}

func TestDispatchCreateDuplicateAppReturnsBareErrorMessage(t *testing.T) {
	s := newTestServer(t)
	createReq := `{"version":2,"action":"create","apps":{"app1":{"entry":"1+1"}}}`
	s.Dispatch(context.Background(), []byte(createReq), nil)

	reply := s.Dispatch(context.Background(), []byte(createReq), nil)
	var result map[string]struct {
		Error string `json:"error"`
	}
	require.NoError(t, json.Unmarshal(reply, &result))
	require.Contains(t, result, "app1")
	assert.Contains(t, result["app1"].Error, "already active")
	assert.NotContains(t, result["app1"].Error, "_error:")
}

func TestDispatchUnsupportedAction(t *testing.T) {
	s := newTestServer(t)
	reply := s.Dispatch(context.Background(), []byte(`{"version":2,"action":"frobnicate"}`), nil)
	assert.Contains(t, string(reply), "unsupported action")
}
