package app

import (
	"context"
	"net/http"
	"time"

	"travelbook/pkg/contracts"
	httputil "travelbook/pkg/http"
	"travelbook/pkg/logger"

	"github.com/julienschmidt/httprouter"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
)

const readinessTimeout = 2 * time.Second

type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

type HealthHandler struct {
	checkers []contracts.HealthChecker
	log      *logger.Logger
}

func NewHealthHandler(checkers []contracts.HealthChecker, log *logger.Logger) *HealthHandler {
	return &HealthHandler{
		checkers: checkers,
		log:      log,
	}
}

func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	if err := httputil.WriteJSON(w, http.StatusOK, HealthResponse{
		Status: "ok",
	}); err != nil {
		h.log.Error("failed to write JSON response", "handler", "Health", "operation", "WriteJSON", "error", err)
	}
}

// Ready probes every dependency and reports 503 when any of them fails.
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
	defer cancel()

	resp := HealthResponse{Status: "ready", Checks: make(map[string]string, len(h.checkers))}
	status := http.StatusOK
	for _, checker := range h.checkers {
		if err := checker.Check(ctx); err != nil {
			h.log.Error("Dependency health check failed",
				"dependency", checker.Name(),
				"error", err,
				"path", r.URL.Path,
			)
			resp.Checks[checker.Name()] = "error"
			resp.Status = "unavailable"
			status = http.StatusServiceUnavailable
			continue
		}
		resp.Checks[checker.Name()] = "ok"
	}

	if err := httputil.WriteJSON(w, status, resp); err != nil {
		h.log.Error("failed to write JSON response", "handler", "Ready", "operation", "WriteJSON", "error", err)
	}
}

func (h *HealthHandler) RegisterRoutes(router *httprouter.Router) {
	router.GET("/health", h.Health)
	router.GET("/ready", h.Ready)
}

type mongoChecker struct {
	client *mongo.Client
}

func MongoChecker(client *mongo.Client) contracts.HealthChecker {
	return mongoChecker{client: client}
}

func (mongoChecker) Name() string { return "database" }

func (c mongoChecker) Check(ctx context.Context) error {
	return c.client.Ping(ctx, nil)
}

type redisChecker struct {
	client *redis.Client
}

func RedisChecker(client *redis.Client) contracts.HealthChecker {
	return redisChecker{client: client}
}

func (redisChecker) Name() string { return "redis" }

func (c redisChecker) Check(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}
