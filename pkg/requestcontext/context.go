// Package requestcontext provides HTTP-independent context accessors for
// request-scoped values.
//
// Middleware sets these values; the audit service reads them when stamping
// actor identity and network context onto log entries. Keeping the package
// free of net/http lets services import only what they need.
//
// Usage in services (read values):
//
//	actorID := requestcontext.ActorID(ctx)
//	ip := requestcontext.ClientIP(ctx)
//
// Usage in tests (inject values):
//
//	ctx = requestcontext.WithActorID(ctx, actorID)
//	ctx = requestcontext.WithClientMetadata(ctx, "203.0.113.7", "curl/8.0")
package requestcontext

import (
	"context"

	id "chronicle/pkg/domain"
)

// Context key types (unexported for encapsulation).
type (
	actorIDKey   struct{}
	actorNameKey struct{}
	clientIPKey  struct{}
	userAgentKey struct{}
	requestIDKey struct{}
)

// ActorID retrieves the acting user's id from the context.
// Returns the zero value (nil UUID) for system actions with no actor.
func ActorID(ctx context.Context) id.ActorID {
	if actorID, ok := ctx.Value(actorIDKey{}).(id.ActorID); ok {
		return actorID
	}
	return id.ActorID{}
}

// WithActorID injects an actor id into the context.
func WithActorID(ctx context.Context, actorID id.ActorID) context.Context {
	return context.WithValue(ctx, actorIDKey{}, actorID)
}

// ActorName retrieves the acting user's display name, if middleware set one.
func ActorName(ctx context.Context) string {
	if name, ok := ctx.Value(actorNameKey{}).(string); ok {
		return name
	}
	return ""
}

// WithActorName injects an actor display name into the context.
func WithActorName(ctx context.Context, name string) context.Context {
	return context.WithValue(ctx, actorNameKey{}, name)
}

// ClientIP retrieves the client IP address captured by middleware.
func ClientIP(ctx context.Context) string {
	if ip, ok := ctx.Value(clientIPKey{}).(string); ok {
		return ip
	}
	return ""
}

// UserAgent retrieves the User-Agent captured by middleware.
func UserAgent(ctx context.Context) string {
	if ua, ok := ctx.Value(userAgentKey{}).(string); ok {
		return ua
	}
	return ""
}

// WithClientMetadata injects client IP and User-Agent into a context.
// Useful for service unit tests that don't run the HTTP middleware chain.
func WithClientMetadata(ctx context.Context, clientIP, userAgent string) context.Context {
	ctx = context.WithValue(ctx, clientIPKey{}, clientIP)
	return context.WithValue(ctx, userAgentKey{}, userAgent)
}

// RequestID retrieves the correlation id assigned by middleware.
func RequestID(ctx context.Context) string {
	if rid, ok := ctx.Value(requestIDKey{}).(string); ok {
		return rid
	}
	return ""
}

// WithRequestID injects a correlation id into the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, requestID)
}
