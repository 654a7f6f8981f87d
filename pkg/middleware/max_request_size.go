package middleware

import (
	"net/http"

	apperrors "travelbook/pkg/errors"
	httputil "travelbook/pkg/http"
)

// MaxRequestSize caps request bodies at limit bytes. Paths starting with an
// exempt prefix enforce their own limit.
func MaxRequestSize(limit int64, exemptPrefixes ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if isExempt(r.URL.Path, exemptPrefixes) {
				next.ServeHTTP(w, r)
				return
			}

			if r.ContentLength > limit {
				_ = httputil.WriteError(w, apperrors.PayloadTooLarge(limit))
				return
			}

			r.Body = http.MaxBytesReader(w, r.Body, limit)
			next.ServeHTTP(w, r)
		})
	}
}
