package middleware

import (
	"context"
	"net"
	"net/http"

	"travelbook/pkg/model"
)

type contextKey string

const (
	RequestIDKey contextKey = "request_id"
	CallerKey    contextKey = "caller"
	ClientIPKey  contextKey = "client_ip"
)

func RequestIDFromContext(ctx context.Context) string {
	if rid, ok := ctx.Value(RequestIDKey).(string); ok {
		return rid
	}
	return ""
}

func WithCaller(ctx context.Context, caller model.Caller) context.Context {
	return context.WithValue(ctx, CallerKey, caller)
}

// CallerFromContext returns the authenticated caller, or an anonymous one
// when the request carried no valid token.
func CallerFromContext(ctx context.Context) model.Caller {
	if caller, ok := ctx.Value(CallerKey).(model.Caller); ok {
		return caller
	}
	return model.Anonymous()
}

// ClientIP returns the address resolved by ClientAddress, falling back to
// the peer address of the connection.
func ClientIP(r *http.Request) string {
	if ip, ok := r.Context().Value(ClientIPKey).(string); ok && ip != "" {
		return ip
	}
	return remoteHost(r)
}

func remoteHost(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
