package middleware

import (
	"log/slog"
	"net/http"
	"strings"

	id "farmerid/pkg/domain"
	dErrors "farmerid/pkg/domain-errors"
	"farmerid/pkg/platform/httputil"
	"farmerid/pkg/requestcontext"
)

// SessionTokenValidator resolves a bearer token to the enrollment session it
// was issued for.
type SessionTokenValidator interface {
	ValidateSessionToken(tokenString string) (id.SessionID, error)
}

// RequireSession rejects requests without a valid session token and binds the
// session ID into the request context for downstream handlers.
func RequireSession(validator SessionTokenValidator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			requestID := requestcontext.RequestID(ctx)

			token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || strings.TrimSpace(token) == "" {
				logger.WarnContext(ctx, "unauthorized access - missing token",
					"request_id", requestID,
				)
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "missing or invalid Authorization header"))
				return
			}

			sessionID, err := validator.ValidateSessionToken(token)
			if err != nil {
				logger.WarnContext(ctx, "unauthorized access - invalid token",
					"error", err,
					"request_id", requestID,
				)
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "invalid or expired token"))
				return
			}

			next.ServeHTTP(w, r.WithContext(requestcontext.WithSessionID(ctx, sessionID)))
		})
	}
}
