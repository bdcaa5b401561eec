package logging

import (
	"context"
	"regexp"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type ctxKey int

const (
	sessionKey ctxKey = iota
	requestKey
	toolKey
)

// MCP transports hand out session ids in several shapes; anything outside
// this set is not logged.
var idPattern = regexp.MustCompile(`^[A-Za-z0-9_.:-]{1,128}$`)

// ValidID reports whether id may be stored in a context and logged as is.
func ValidID(id string) bool {
	return idPattern.MatchString(id)
}

func withID(ctx context.Context, key ctxKey, id string) context.Context {
	if !ValidID(id) {
		return ctx
	}
	return context.WithValue(ctx, key, id)
}

func idFrom(ctx context.Context, key ctxKey) string {
	id, _ := ctx.Value(key).(string)
	return id
}

// WithSessionID stores the shell session id. Invalid ids are ignored.
func WithSessionID(ctx context.Context, id string) context.Context {
	return withID(ctx, sessionKey, id)
}

// WithRequestID stores the id of one tool call or HTTP request. Invalid ids
// are ignored.
func WithRequestID(ctx context.Context, id string) context.Context {
	return withID(ctx, requestKey, id)
}

// WithTool stores the MCP tool name.
func WithTool(ctx context.Context, tool string) context.Context {
	return withID(ctx, toolKey, tool)
}

func SessionIDFromContext(ctx context.Context) string { return idFrom(ctx, sessionKey) }
func RequestIDFromContext(ctx context.Context) string { return idFrom(ctx, requestKey) }
func ToolFromContext(ctx context.Context) string      { return idFrom(ctx, toolKey) }

// ContextFields returns the correlation fields held by ctx.
func ContextFields(ctx context.Context) []zap.Field {
	var fields []zap.Field
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		fields = append(fields,
			zap.String("trace_id", sc.TraceID().String()),
			zap.String("span_id", sc.SpanID().String()),
		)
	}
	for _, f := range []struct {
		key  ctxKey
		name string
	}{
		{sessionKey, "session.id"},
		{requestKey, "request.id"},
		{toolKey, "tool.name"},
	} {
		if id := idFrom(ctx, f.key); id != "" {
			fields = append(fields, zap.String(f.name, id))
		}
	}
	return fields
}
