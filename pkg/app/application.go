package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"travelbook/pkg/config"
	"travelbook/pkg/contracts"
	"travelbook/pkg/middleware"
	"travelbook/pkg/scheduler"

	"github.com/julienschmidt/httprouter"
)

const (
	documentsPrefix = "/api/v1/documents"
	webhookPrefix   = "/api/v1/payments/webhook"
)

type Application struct {
	cfg              *config.Config
	server           *http.Server
	idempotencyStore *middleware.InMemoryIdempotencyStore
	rateLimiter      middleware.RateLimiter
	scheduler        *scheduler.Scheduler
	healthHandler    http.Handler
	appHttpHandler   http.Handler
	closers          []func() error
}

func NewApplication() *Application {
	return &Application{}
}

// SetApp builds the HTTP server around handlers. The verifier resolves bearer
// tokens into callers. Checkers back the readiness endpoint.
func (a *Application) SetApp(cfg *config.Config, verifier middleware.TokenVerifier, checkers []contracts.HealthChecker, handlers ...contracts.Handler) error {
	a.cfg = cfg

	trusted, err := cfg.TrustedProxyPrefixes()
	if err != nil {
		return err
	}
	clientAddress := middleware.ClientAddress(trusted)

	sched, err := scheduler.New(cfg.Log)
	if err != nil {
		return fmt.Errorf("failed to create scheduler: %w", err)
	}
	a.scheduler = sched

	a.setHealthHandler(cfg, checkers, clientAddress)
	if err := a.setAppHandler(cfg, verifier, handlers, clientAddress); err != nil {
		return err
	}
	a.setAppServer()
	return nil
}

// AddJob registers a periodic job that starts with Run.
func (a *Application) AddJob(job scheduler.Job) error {
	return a.scheduler.Add(job)
}

// OnShutdown registers fn to run after the server has stopped.
func (a *Application) OnShutdown(fn func() error) {
	a.closers = append(a.closers, fn)
}

func (a *Application) Handler() http.Handler {
	return a.server.Handler
}

func (a *Application) setHealthHandler(cfg *config.Config, checkers []contracts.HealthChecker, clientAddress func(http.Handler) http.Handler) {
	healthRouter := httprouter.New()
	NewHealthHandler(checkers, cfg.Log).RegisterRoutes(healthRouter)

	var healthHTTPHandler http.Handler = healthRouter
	healthHTTPHandler = middleware.RequestLogging(cfg.Log)(healthHTTPHandler)
	healthHTTPHandler = clientAddress(healthHTTPHandler)
	healthHTTPHandler = middleware.Recovery(cfg.Log)(healthHTTPHandler)
	a.healthHandler = healthHTTPHandler
	cfg.Log.Info("Health endpoints configured with minimal middleware (Recovery + Logging only)")
}

func (a *Application) setAppHandler(cfg *config.Config, verifier middleware.TokenVerifier, handlers []contracts.Handler, clientAddress func(http.Handler) http.Handler) error {
	appRouter := httprouter.New()
	for _, h := range handlers {
		h.RegisterRoutes(appRouter)
	}

	a.idempotencyStore = middleware.NewInMemoryIdempotencyStore(cfg.IdempotencyTTL)
	if err := a.setRateLimiter(cfg); err != nil {
		return err
	}

	var appHttpHandler http.Handler = appRouter
	appHttpHandler = middleware.Idempotency(a.idempotencyStore, "Idempotency-Key")(appHttpHandler)
	appHttpHandler = middleware.RequestTimeout(cfg.RequestTimeout, cfg.Log)(appHttpHandler)
	appHttpHandler = middleware.RateLimit(a.rateLimiter, rateRules(cfg), cfg.RateLimitDefault, cfg.Log)(appHttpHandler)
	appHttpHandler = middleware.Authenticate(verifier, cfg.Log)(appHttpHandler)
	appHttpHandler = middleware.ContentTypeValidation(cfg.Log, documentsPrefix, webhookPrefix)(appHttpHandler)
	appHttpHandler = middleware.MaxRequestSize(int64(cfg.MaxRequestSize), documentsPrefix)(appHttpHandler)
	appHttpHandler = middleware.RequestLogging(cfg.Log)(appHttpHandler)
	appHttpHandler = clientAddress(appHttpHandler)
	appHttpHandler = middleware.Recovery(cfg.Log)(appHttpHandler)
	a.appHttpHandler = appHttpHandler
	cfg.Log.Info("Application endpoints configured with full security middleware stack")
	return nil
}

func (a *Application) setRateLimiter(cfg *config.Config) error {
	if cfg.UsesRedis() {
		if cfg.Client == nil || cfg.Client.Redis == nil {
			return errors.New("redis rate limiting requires a connected Redis client")
		}
		a.rateLimiter = middleware.NewTokenBucketLimiter(cfg.Client.Redis, cfg.RateLimitWindow)
		cfg.Log.Info("Rate limiting backed by Redis", "window", cfg.RateLimitWindow)
		return nil
	}

	limiter := middleware.NewSlidingWindowLimiter(cfg.RateLimitWindow)
	a.rateLimiter = limiter
	cfg.Log.Info("Rate limiting kept in memory", "window", cfg.RateLimitWindow)

	return a.scheduler.Add(scheduler.Job{
		Name:     "rate-limiter-cleanup",
		Interval: cfg.RateLimitWindow,
		Run: func(context.Context) error {
			if removed := limiter.Cleanup(); removed > 0 {
				cfg.Log.Debug("Rate limiter keys expired", "removed", removed, "remaining", limiter.Len())
			}
			return nil
		},
	})
}

// rateRules gives each limited route its own per-caller bucket.
func rateRules(cfg *config.Config) []middleware.RateRule {
	return []middleware.RateRule{
		{Name: "step", Method: http.MethodPost, Prefix: "/api/v1/bookings/step/", Limit: cfg.RateLimitStep},
		{Name: "confirm", Method: http.MethodPost, Prefix: "/api/v1/bookings/confirm", Limit: cfg.RateLimitConfirm},
		{Name: "payment-intent", Method: http.MethodPost, Prefix: "/api/v1/bookings/create-payment-intent", Limit: cfg.RateLimitPayment},
		{Name: "pay", Method: http.MethodPost, Prefix: "/api/v1/bookings/pay", Limit: cfg.RateLimitPayment},
		{Name: "cancel", Method: http.MethodPost, Prefix: "/api/v1/bookings/cancel", Limit: cfg.RateLimitPayment},
		{Name: "auth", Method: http.MethodPost, Prefix: "/api/v1/auth/", Limit: cfg.RateLimitAuth},
	}
}

func (a *Application) setAppServer() {
	mux := http.NewServeMux()
	mux.Handle("/health", a.healthHandler)
	mux.Handle("/ready", a.healthHandler)
	mux.Handle("/", a.appHttpHandler)

	a.server = &http.Server{
		Addr:         ":" + a.cfg.Port,
		Handler:      mux,
		ReadTimeout:  a.cfg.ReadTimeout,
		WriteTimeout: a.cfg.WriteTimeout,
		IdleTimeout:  a.cfg.IdleTimeout,
	}

	a.cfg.Log.Info("HTTP server configured", "port", a.cfg.Port)
}

func (a *Application) Run() {
	serverErrors := make(chan error, 1)

	a.scheduler.Start()

	go func() {
		a.cfg.Log.Info("Starting HTTP server", "address", a.server.Addr)
		serverErrors <- a.server.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		a.cfg.Log.Fatal("HTTP server failed", "error", err)

	case sig := <-shutdown:
		a.cfg.Log.Info("Shutdown signal received", "signal", sig)
		a.gracefulShutdown()
	}
}

func (a *Application) gracefulShutdown() {
	a.cfg.Log.Info("Starting graceful shutdown...")

	a.cfg.Log.Info("Stopping background workers...")
	if err := a.scheduler.Shutdown(); err != nil {
		a.cfg.Log.Error("Scheduler shutdown failed", "error", err)
	}
	a.idempotencyStore.Stop()
	a.cfg.Log.Info("Background workers stopped")

	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()

	if err := a.server.Shutdown(ctx); err != nil {
		a.cfg.Log.Error("Server shutdown failed", "error", err)
		if err := a.server.Close(); err != nil {
			a.cfg.Log.Fatal("Could not stop server gracefully", "error", err)
		}
	}

	for _, closeFn := range a.closers {
		if err := closeFn(); err != nil {
			a.cfg.Log.Error("Shutdown hook failed", "error", err)
		}
	}

	a.cfg.Log.Info("Server stopped gracefully")
}
