package engine

import "context"

// Isolate is a sandboxed script execution unit: one worker slot in an
// engine's pool evaluates at most one session at a time through it. The
// isolate category's goja-backed implementation lives in
// internal/engine/jsisolate; this interface lets engine stay agnostic of
// how a session's script actually runs.
type Isolate interface {
	// Invoke evaluates entry for one session triggered by event, calling
	// emit for each chunk of output the script produces. It returns when
	// the script finishes (nil error) or fails (non-nil error); ctx
	// cancellation interrupts a running script.
	Invoke(ctx context.Context, entry, event string, emit func([]byte)) error
}
