package engine

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubIsolate struct {
	emitted [][]byte
	err     error
}

func (s *stubIsolate) Invoke(_ context.Context, entry, event string, emit func([]byte)) error {
	if s.err != nil {
		return s.err
	}
	emit([]byte(entry + ":" + event))
	return nil
}

func stubFactory() IsolateFactory {
	return func(name string, slot int) (Isolate, error) {
		return &stubIsolate{}, nil
	}
}

func TestNewRequiresEntry(t *testing.T) {
	_, err := New("app1", json.RawMessage(`{}`), nil, stubFactory())
	require.Error(t, err)
}

func TestStartInvokeStopLifecycle(t *testing.T) {
	e, err := New("app1", json.RawMessage(`{"entry":"run","pool_size":1}`), nil, stubFactory())
	require.NoError(t, err)
	require.NoError(t, e.Start(context.Background()))

	out, err := e.Invoke(context.Background(), "tick")
	require.NoError(t, err)
	assert.Equal(t, "run:tick", string(out))

	infoBefore, err := e.Info()
	require.NoError(t, err)
	assert.Contains(t, string(infoBefore), `"invocations_total":1`)
	assert.Contains(t, string(infoBefore), `"pool_size":1`)

	require.NoError(t, e.Stop(context.Background()))
}

func TestInvokePropagatesIsolateFailure(t *testing.T) {
	failing := errTestFailure{}
	e, err := New("app1", json.RawMessage(`{"entry":"run"}`), nil, func(name string, slot int) (Isolate, error) {
		return &stubIsolate{err: failing}, nil
	})
	require.NoError(t, err)
	require.NoError(t, e.Start(context.Background()))
	defer e.Stop(context.Background())

	_, err = e.Invoke(context.Background(), "tick")
	require.Error(t, err)
}

func TestInvokeExhaustsPoolWhenAllWorkersBusy(t *testing.T) {
	block := make(chan struct{})
	release := make(chan struct{})
	e, err := New("app1", json.RawMessage(`{"entry":"run","pool_size":1}`), nil, func(name string, slot int) (Isolate, error) {
		return &blockingIsolate{block: block, release: release}, nil
	})
	require.NoError(t, err)
	require.NoError(t, e.Start(context.Background()))
	defer e.Stop(context.Background())

	done := make(chan struct{})
	go func() {
		_, _ = e.Invoke(context.Background(), "tick")
		close(done)
	}()
	<-block

	_, err = e.Invoke(context.Background(), "tick2")
	require.Error(t, err)

	close(release)
	<-done
}

type blockingIsolate struct {
	block   chan struct{}
	release chan struct{}
}

func (b *blockingIsolate) Invoke(_ context.Context, entry, event string, emit func([]byte)) error {
	close(b.block)
	<-b.release
	emit([]byte("done"))
	return nil
}

type errTestFailure struct{}

func (errTestFailure) Error() string { return "isolate failed" }
