package middleware

import (
	"context"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	apperrors "travelbook/pkg/errors"
	httputil "travelbook/pkg/http"
	"travelbook/pkg/logger"
)

// Decision is the outcome of one rate limit check.
type Decision struct {
	Allowed    bool
	Limit      int
	Remaining  int
	RetryAfter time.Duration
}

type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int) (Decision, error)
}

// RateRule limits requests whose method matches and whose path starts with
// Prefix. Rules are checked in order and the first match wins.
type RateRule struct {
	Name   string
	Method string
	Prefix string
	Limit  int
}

func (rr RateRule) matches(r *http.Request) bool {
	if rr.Method != "" && rr.Method != r.Method {
		return false
	}
	return strings.HasPrefix(r.URL.Path, rr.Prefix)
}

// RateLimit enforces per-caller limits. Authenticated callers are keyed by
// user id, anonymous ones by client IP. Requests that match no rule use
// the default limit. Limiter errors let the request through.
func RateLimit(limiter RateLimiter, rules []RateRule, defaultLimit int, log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			name, limit := "default", defaultLimit
			for _, rule := range rules {
				if rule.matches(r) {
					name, limit = rule.Name, rule.Limit
					break
				}
			}

			key := rateKey(r, name)
			decision, err := limiter.Allow(r.Context(), key, limit)
			if err != nil {
				log.Warn("Rate limiter unavailable, allowing request",
					"request_id", RequestIDFromContext(r.Context()),
					"key", key,
					"error", err,
				)
				next.ServeHTTP(w, r)
				return
			}

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(decision.Limit))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(max(decision.Remaining, 0)))

			if !decision.Allowed {
				rejectRateLimited(w, log, r, key, decision)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func rateKey(r *http.Request, rule string) string {
	if caller := CallerFromContext(r.Context()); caller.Authenticated() {
		return "rl:" + rule + ":user:" + caller.UserID
	}
	return "rl:" + rule + ":ip:" + ClientIP(r)
}

func rejectRateLimited(w http.ResponseWriter, log *logger.Logger, r *http.Request, key string, decision Decision) {
	secs := int(math.Ceil(decision.RetryAfter.Seconds()))
	if secs < 1 {
		secs = 1
	}

	log.Warn("Rate limit exceeded",
		"request_id", RequestIDFromContext(r.Context()),
		"key", key,
		"path", r.URL.Path,
		"retry_after", secs,
	)

	w.Header().Set("Retry-After", strconv.Itoa(secs))
	_ = httputil.WriteError(w, apperrors.RateLimited(secs))
}
