package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"chronicle/internal/audit"
	"chronicle/internal/audit/recorder"
	"chronicle/internal/audit/service"
	"chronicle/internal/jwttoken"
	id "chronicle/pkg/domain"
	"chronicle/pkg/requestcontext"
)

// JWTValidator defines the interface for validating JWT tokens.
type JWTValidator interface {
	ValidateToken(tokenString string) (*jwttoken.Claims, error)
}

// SecurityAuditor records authentication failures on the security stream.
type SecurityAuditor interface {
	LogSecurityEvent(ctx context.Context, actor service.Actor, eventType audit.SecurityEventType, severity audit.Severity, description string) (recorder.Ack, error)
}

// RequireAuth rejects requests without a valid bearer token and stamps actor
// identity from the claims into the request context. Rejections land on the
// audit security stream when an auditor is provided.
func RequireAuth(validator JWTValidator, auditor SecurityAuditor, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			requestID := requestcontext.RequestID(ctx)

			authHeader := r.Header.Get("Authorization")
			token, ok := strings.CutPrefix(authHeader, "Bearer ")
			if !ok {
				logger.WarnContext(ctx, "unauthorized access - missing token",
					"request_id", requestID,
				)
				recordDenied(ctx, auditor, "audit console request without credentials")
				writeUnauthorized(w, "Missing or invalid Authorization header")
				return
			}

			claims, err := validator.ValidateToken(token)
			if err != nil {
				logger.WarnContext(ctx, "unauthorized access - invalid token",
					"error", err,
					"request_id", requestID,
				)
				recordDenied(ctx, auditor, "audit console request with invalid token")
				writeUnauthorized(w, "Invalid or expired token")
				return
			}

			if actorID, err := id.ParseActorID(claims.UserID); err == nil {
				ctx = requestcontext.WithActorID(ctx, actorID)
			}
			if claims.UserName != "" {
				ctx = requestcontext.WithActorName(ctx, claims.UserName)
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func recordDenied(ctx context.Context, auditor SecurityAuditor, description string) {
	if auditor == nil {
		return
	}
	// Ack is advisory; a degraded security append never blocks the 401.
	_, _ = auditor.LogSecurityEvent(ctx, service.ActorFromContext(ctx),
		audit.SecurityPermissionDenied, "", description)
}

func writeUnauthorized(w http.ResponseWriter, description string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"error":"unauthorized","error_description":"` + description + `"}`))
}
