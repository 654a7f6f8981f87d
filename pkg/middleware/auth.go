package middleware

import (
	"net/http"
	"strings"

	apperrors "travelbook/pkg/errors"
	httputil "travelbook/pkg/http"
	"travelbook/pkg/logger"
	"travelbook/pkg/model"
)

type TokenVerifier interface {
	Verify(raw string) (string, error)
}

// Authenticate attaches the bearer token's subject to the request context.
// Requests without an Authorization header continue as anonymous; a header
// with a bad token is rejected with 401.
func Authenticate(verifier TokenVerifier, log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" {
				next.ServeHTTP(w, r)
				return
			}

			raw, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || strings.TrimSpace(raw) == "" {
				rejectUnauthorized(w, log, r, "malformed authorization header")
				return
			}

			userID, err := verifier.Verify(strings.TrimSpace(raw))
			if err != nil {
				rejectUnauthorized(w, log, r, "invalid or expired token")
				return
			}

			noteCaller(r.Context(), userID)
			ctx := WithCaller(r.Context(), model.Caller{UserID: userID})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func rejectUnauthorized(w http.ResponseWriter, log *logger.Logger, r *http.Request, reason string) {
	log.Warn("Rejected bearer token",
		"request_id", RequestIDFromContext(r.Context()),
		"reason", reason,
		"path", r.URL.Path,
	)
	_ = httputil.WriteError(w, apperrors.Unauthorized(reason))
}
