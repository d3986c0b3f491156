// Package control implements the control server (C7, §4.7): parse a
// framed JSON control request, authenticate protocol version 3 requests,
// and dispatch create/delete/info against the catalog reconciler.
// Grounded on internal/app/httpapi/handler.go's decode/encode/error-reply
// conventions, adapted from REST responses to this protocol's
// single-object reply shape.
package control

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"time"

	"github.com/PaesslerAG/gval"
	"github.com/PaesslerAG/jsonpath"
	"github.com/tidwall/gjson"

	"github.com/hiveforge/hived/internal/apperrors"
	"github.com/hiveforge/hived/internal/auth"
	"github.com/hiveforge/hived/internal/catalog"
	"github.com/hiveforge/hived/internal/logging"
)

// node is the subset of *appcontext.Context the control server needs;
// kept as a small interface here so this package does not have to import
// appcontext directly.
type node interface {
	Route() string
	Uptime() time.Duration
}

// Server is the control protocol's request handler, bound to one catalog
// reconciler.
type Server struct {
	catalog       *catalog.Reconciler
	authenticator auth.Authenticator
	logger        logging.Logger
	node          node

	jobsPending   int64
	jobsProcessed int64
}

// New builds a Server. authenticator may be nil if no version-3 client is
// expected to connect.
func New(cat *catalog.Reconciler, authenticator auth.Authenticator, logger logging.Logger, n node) *Server {
	return &Server{catalog: cat, authenticator: authenticator, logger: logger, node: n}
}

// Dispatch handles one control request end to end and always returns a
// well-formed JSON reply, never an error — failures are encoded into the
// reply body per §4.7's propagation policy.
func (s *Server) Dispatch(ctx context.Context, message, signature []byte) []byte {
	atomic.AddInt64(&s.jobsPending, 1)
	defer func() {
		atomic.AddInt64(&s.jobsPending, -1)
		atomic.AddInt64(&s.jobsProcessed, 1)
	}()

	parsed := gjson.ParseBytes(message)
	if !parsed.IsObject() {
		return errorReply("json root must be an object")
	}

	versionResult := parsed.Get("version")
	if !versionResult.Exists() || versionResult.Type != gjson.Number {
		return errorReply("unsupported protocol version")
	}
	version := uint32(versionResult.Uint())
	if version != 2 && version != 3 {
		return errorReply("unsupported protocol version")
	}
	username := parsed.Get("username").String()

	if version == 3 {
		if username == "" {
			return s.errorFromErr(apperrors.AuthorizationError("username expected"))
		}
		if s.authenticator != nil {
			if err := s.authenticator.Authenticate(message, signature, username); err != nil {
				return s.errorFromErr(err)
			}
		}
	}

	switch parsed.Get("action").String() {
	case "create":
		return s.handleCreate(ctx, parsed)
	case "delete":
		return s.handleDelete(ctx, parsed)
	case "info":
		return s.handleInfo()
	default:
		return errorReply("unsupported action")
	}
}

func (s *Server) handleCreate(ctx context.Context, parsed gjson.Result) []byte {
	apps := parsed.Get("apps")
	if !apps.IsObject() || len(apps.Map()) == 0 {
		return errorReply("apps must be a non-empty object")
	}

	results := make(map[string]any, len(apps.Map()))
	for name, manifest := range apps.Map() {
		if !manifest.IsObject() {
			results[name] = map[string]string{"error": "manifest must be an object"}
			continue
		}
		manifestBytes := []byte(manifest.Raw)
		if err := validateManifest(manifestBytes); err != nil {
			results[name] = errorObject(err)
			continue
		}
		info, err := s.catalog.CreateEngine(ctx, name, manifestBytes, false)
		if err != nil {
			if s.logger != nil {
				s.logger.Warn("create engine failed", "app", name, "err", err.Error())
			}
			results[name] = errorObject(err)
			continue
		}
		results[name] = json.RawMessage(info)
	}
	return mustMarshal(results)
}

func (s *Server) handleDelete(ctx context.Context, parsed gjson.Result) []byte {
	apps := parsed.Get("apps")
	if !apps.IsArray() || len(apps.Array()) == 0 {
		return errorReply("apps must be a non-empty array")
	}

	results := make(map[string]any)
	for _, entry := range apps.Array() {
		name := entry.String()
		info, err := s.catalog.DeleteEngine(ctx, name)
		if err != nil {
			if s.logger != nil {
				s.logger.Warn("delete engine failed", "app", name, "err", err.Error())
			}
			results[name] = errorObject(err)
			continue
		}
		results[name] = json.RawMessage(info)
	}
	return mustMarshal(results)
}

func (s *Server) handleInfo() []byte {
	snapshot := map[string]any{
		"route": s.node.Route(),
		"apps":  s.catalog.Info(),
		"counters": map[string]any{
			"jobs_pending":   atomic.LoadInt64(&s.jobsPending),
			"jobs_processed": atomic.LoadInt64(&s.jobsProcessed),
			"apps_active":    s.catalog.Count(),
		},
		"uptime": s.node.Uptime().Seconds(),
	}
	return mustMarshal(snapshot)
}

// validateManifest requires an `entry` field (a non-empty string) and, if
// present, a `pool_size` within a sane range — grounded on jsonpath+gval
// being given a concrete manifest-validation home rather than dropped.
func validateManifest(raw []byte) error {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return apperrors.ConfigurationError("manifest is not valid json: %v", err)
	}

	entry, err := jsonpath.Get("$.entry", v)
	if err != nil {
		return apperrors.ConfigurationError("manifest missing required field: entry")
	}
	entryStr, ok := entry.(string)
	if !ok || entryStr == "" {
		return apperrors.ConfigurationError("manifest field 'entry' must be a non-empty string")
	}

	if poolSize, err := jsonpath.Get("$.pool_size", v); err == nil {
		result, evalErr := gval.Evaluate("poolSize >= 0 && poolSize <= 64", map[string]any{"poolSize": poolSize})
		if evalErr == nil {
			if ok, _ := result.(bool); !ok {
				return apperrors.ConfigurationError("manifest field 'pool_size' out of range")
			}
		}
	}
	return nil
}

func (s *Server) errorFromErr(err error) []byte {
	return errorReply(apperrors.ClientMessage(err))
}

func errorObject(err error) map[string]string {
	return map[string]string{"error": apperrors.ClientMessage(err)}
}

func errorReply(message string) []byte {
	return mustMarshal(map[string]string{"error": message})
}

func mustMarshal(v any) []byte {
	encoded, err := json.Marshal(v)
	if err != nil {
		return []byte(`{"error":"internal: failed to encode reply"}`)
	}
	return encoded
}
