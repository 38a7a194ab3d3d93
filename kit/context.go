// Package kit holds transport-neutral plumbing shared by the HTTP and MCP
// surfaces: request context keys and the MCP tool registration helper.
package kit

import "context"

type contextKey string

const (
	TraceIDKey   contextKey = "kit_trace_id"
	TransportKey contextKey = "kit_transport" // "http", "mcp_stdio"
	SessionIDKey contextKey = "kit_session_id"
)

// Endpoint is a transport-agnostic operation: it takes a decoded request and
// returns a response. Both HTTP handlers and MCP tools terminate in one.
type Endpoint func(ctx context.Context, req any) (any, error)

func WithTraceID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, TraceIDKey, id)
}
func GetTraceID(ctx context.Context) string {
	v, _ := ctx.Value(TraceIDKey).(string)
	return v
}

func WithTransport(ctx context.Context, t string) context.Context {
	return context.WithValue(ctx, TransportKey, t)
}
func GetTransport(ctx context.Context) string {
	if v, ok := ctx.Value(TransportKey).(string); ok {
		return v
	}
	return "http"
}

func WithSessionID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, SessionIDKey, id)
}
func GetSessionID(ctx context.Context) string {
	v, _ := ctx.Value(SessionIDKey).(string)
	return v
}
