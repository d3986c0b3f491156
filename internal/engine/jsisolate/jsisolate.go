// Package jsisolate is the goja-backed reference isolate: it evaluates one
// app's entry script per session inside a fresh goja runtime. Grounded
// closely on services/confidential/marble/core.go's executeScript —
// timeout-via-Interrupt, console.log capture, and a crypto host object —
// adapted from a one-shot request/response call into the engine's
// invoke/chunk/choke/error session shape.
package jsisolate

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dop251/goja"

	"github.com/hiveforge/hived/internal/apperrors"
	"github.com/hiveforge/hived/internal/registry"
)

const defaultTimeout = 10 * time.Second

// Args configures an Isolate instance; parsed from the isolate component's
// JSON args in the manifest/config.
type Args struct {
	Timeout time.Duration `json:"timeout"`
}

// Isolate runs one session at a time through a fresh goja.Runtime.
type Isolate struct {
	timeout time.Duration
}

// New builds an Isolate with the given script timeout (defaultTimeout if
// zero).
func New(timeout time.Duration) *Isolate {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Isolate{timeout: timeout}
}

// Invoke runs entry as a JS program exposing `event` (the session's event
// string) and an `emit(value)` host function the script calls for each
// chunk of output it wants streamed back. The script's own return value,
// if any, is emitted as a final chunk.
func (i *Isolate) Invoke(ctx context.Context, entry, event string, emit func([]byte)) error {
	vm := goja.New()

	timeout := i.timeout
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining < timeout {
			timeout = remaining
		}
	}
	done := make(chan struct{})
	go func() {
		select {
		case <-time.After(timeout):
			vm.Interrupt("session timeout")
		case <-ctx.Done():
			vm.Interrupt("session canceled")
		case <-done:
		}
	}()
	defer close(done)

	if err := vm.Set("event", event); err != nil {
		return apperrors.UnexpectedError(fmt.Errorf("set event: %w", err))
	}
	if err := vm.Set("emit", func(call goja.FunctionCall) goja.Value {
		if len(call.Arguments) == 0 {
			return goja.Undefined()
		}
		emitValue(emit, call.Arguments[0])
		return goja.Undefined()
	}); err != nil {
		return apperrors.UnexpectedError(fmt.Errorf("set emit: %w", err))
	}

	console := vm.NewObject()
	console.Set("log", func(call goja.FunctionCall) goja.Value { //nolint:errcheck
		for _, arg := range call.Arguments {
			emitValue(emit, arg)
		}
		return goja.Undefined()
	})
	vm.Set("console", console) //nolint:errcheck

	cryptoObj := vm.NewObject()
	cryptoObj.Set("sha256", func(call goja.FunctionCall) goja.Value { //nolint:errcheck
		if len(call.Arguments) == 0 {
			return goja.Undefined()
		}
		sum := sha256.Sum256([]byte(call.Arguments[0].String()))
		return vm.ToValue(fmt.Sprintf("%x", sum))
	})
	cryptoObj.Set("randomBytes", func(call goja.FunctionCall) goja.Value { //nolint:errcheck
		n := 32
		if len(call.Arguments) > 0 {
			n = int(call.Arguments[0].ToInteger())
		}
		if n > 1024 {
			n = 1024
		}
		buf := make([]byte, n)
		if _, err := rand.Read(buf); err != nil {
			return goja.Undefined()
		}
		return vm.ToValue(fmt.Sprintf("%x", buf))
	})
	vm.Set("crypto", cryptoObj) //nolint:errcheck

	result, err := vm.RunString(entry)
	if err != nil {
		return apperrors.UnexpectedError(fmt.Errorf("script error: %w", err))
	}
	if result != nil && result != goja.Undefined() && result != goja.Null() {
		emitValue(emit, result)
	}
	return nil
}

func emitValue(emit func([]byte), v goja.Value) {
	encoded, err := json.Marshal(v.Export())
	if err != nil {
		encoded = []byte(fmt.Sprintf("%q", v.String()))
	}
	emit(encoded)
}

// Factory is installed into the registry under (isolate, "goja").
func Factory(_ any, _ string, args json.RawMessage) (any, error) {
	var a Args
	if len(args) > 0 {
		if err := json.Unmarshal(args, &a); err != nil {
			return nil, apperrors.ConfigurationError("jsisolate: bad args: %v", err)
		}
	}
	return New(a.Timeout), nil
}

// Register installs the goja isolate factory into r.
func Register(r *registry.Registry) error {
	return r.Register(registry.CategoryIsolate, "goja", Factory)
}
