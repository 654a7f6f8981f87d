package middleware

import (
	"bytes"
	"net/http"
	"strings"
	"sync"
	"time"

	apperrors "travelbook/pkg/errors"
	httputil "travelbook/pkg/http"
)

const maxIdempotencyKeyLength = 255

// IdempotencyStore tracks Idempotency-Key usage. Reserve either returns the
// response recorded for key, claims key for the caller (ok is true), or
// reports that another request holds it (ok is false).
type IdempotencyStore interface {
	Reserve(key string) (cached *CachedResponse, ok bool)
	// Complete records response for key. A nil response releases the
	// reservation so the client may retry.
	Complete(key string, response *CachedResponse)
	Stop()
}

type CachedResponse struct {
	StatusCode int
	Headers    http.Header
	Body       []byte
	CreatedAt  time.Time
}

type idempotencyEntry struct {
	response *CachedResponse
	inFlight bool
}

type InMemoryIdempotencyStore struct {
	mu       sync.Mutex
	entries  map[string]*idempotencyEntry
	ttl      time.Duration
	stopCh   chan struct{}
	stopOnce sync.Once
}

func NewInMemoryIdempotencyStore(ttl time.Duration) *InMemoryIdempotencyStore {
	store := &InMemoryIdempotencyStore{
		entries: make(map[string]*idempotencyEntry),
		ttl:     ttl,
		stopCh:  make(chan struct{}),
	}

	go store.sweep(min(ttl, time.Hour))

	return store
}

func (s *InMemoryIdempotencyStore) Reserve(key string) (*CachedResponse, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, exists := s.entries[key]
	switch {
	case !exists, !entry.inFlight && s.expired(entry.response):
		s.entries[key] = &idempotencyEntry{inFlight: true}
		return nil, true
	case entry.inFlight:
		return nil, false
	default:
		return entry.response, false
	}
}

func (s *InMemoryIdempotencyStore) Complete(key string, response *CachedResponse) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if response == nil {
		delete(s.entries, key)
		return
	}
	response.CreatedAt = time.Now()
	s.entries[key] = &idempotencyEntry{response: response}
}

func (s *InMemoryIdempotencyStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

func (s *InMemoryIdempotencyStore) expired(response *CachedResponse) bool {
	return response == nil || time.Since(response.CreatedAt) > s.ttl
}

func (s *InMemoryIdempotencyStore) sweep(every time.Duration) {
	if every <= 0 {
		every = time.Hour
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.mu.Lock()
			for key, entry := range s.entries {
				if !entry.inFlight && s.expired(entry.response) {
					delete(s.entries, key)
				}
			}
			s.mu.Unlock()
		case <-s.stopCh:
			return
		}
	}
}

func (s *InMemoryIdempotencyStore) Stop() {
	s.stopOnce.Do(func() { close(s.stopCh) })
}

type responseCapture struct {
	http.ResponseWriter
	statusCode int
	body       bytes.Buffer
}

func (rc *responseCapture) WriteHeader(statusCode int) {
	rc.statusCode = statusCode
	rc.ResponseWriter.WriteHeader(statusCode)
}

func (rc *responseCapture) Write(b []byte) (int, error) {
	rc.body.Write(b)
	return rc.ResponseWriter.Write(b)
}

// Idempotency replays the first successful response for a repeated
// Idempotency-Key. A repeat that arrives while the first request is still
// running gets 409, so a double-submitted payment is processed once.
func Idempotency(store IdempotencyStore, headerName string) func(http.Handler) http.Handler {
	if headerName == "" {
		headerName = "Idempotency-Key"
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := strings.TrimSpace(r.Header.Get(headerName))
			if raw == "" || r.Method == http.MethodGet || r.Method == http.MethodHead {
				next.ServeHTTP(w, r)
				return
			}
			if len(raw) > maxIdempotencyKeyLength {
				_ = httputil.WriteError(w, apperrors.InvalidInput(headerName+" is too long"))
				return
			}

			key := scopedIdempotencyKey(r, raw)
			cached, ok := store.Reserve(key)
			if cached != nil {
				replayCachedResponse(w, cached)
				return
			}
			if !ok {
				_ = httputil.WriteError(w, apperrors.Conflict("A request with this "+headerName+" is still being processed"))
				return
			}

			capture := &responseCapture{ResponseWriter: w, statusCode: http.StatusOK}
			completed := false
			defer func() {
				if !completed {
					store.Complete(key, nil)
				}
			}()

			next.ServeHTTP(capture, r)

			store.Complete(key, cacheableResponse(capture, w))
			completed = true
		})
	}
}

// scopedIdempotencyKey binds the client key to the caller and route so two
// users, or two endpoints, never replay each other's responses.
func scopedIdempotencyKey(r *http.Request, key string) string {
	caller := CallerFromContext(r.Context()).UserID
	if caller == "" {
		caller = "ip:" + ClientIP(r)
	}
	return strings.Join([]string{caller, r.Method, r.URL.Path, key}, "|")
}

func replayCachedResponse(w http.ResponseWriter, cached *CachedResponse) {
	for key, values := range cached.Headers {
		for _, value := range values {
			w.Header().Add(key, value)
		}
	}
	w.Header().Set("Idempotent-Replayed", "true")
	w.WriteHeader(cached.StatusCode)
	_, _ = w.Write(cached.Body)
}

// cacheableResponse returns nil for non-2xx responses so that failures can
// be retried with the same key.
func cacheableResponse(capture *responseCapture, w http.ResponseWriter) *CachedResponse {
	if capture.statusCode < 200 || capture.statusCode >= 300 {
		return nil
	}

	headers := w.Header().Clone()
	headers.Del("X-Request-ID")
	headers.Del("X-RateLimit-Remaining")

	return &CachedResponse{
		StatusCode: capture.statusCode,
		Headers:    headers,
		Body:       bytes.Clone(capture.body.Bytes()),
	}
}
