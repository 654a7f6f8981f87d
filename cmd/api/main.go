package main

import (
	"context"
	"time"

	authhandler "travelbook/internal/auth/handler"
	authrepo "travelbook/internal/auth/repository"
	authservice "travelbook/internal/auth/service"
	authvalidator "travelbook/internal/auth/validator"
	bookinghandler "travelbook/internal/bookings/handler"
	bookingrepo "travelbook/internal/bookings/repository"
	bookingservice "travelbook/internal/bookings/service"
	bookingvalidator "travelbook/internal/bookings/validator"
	dochandler "travelbook/internal/documents/handler"
	docservice "travelbook/internal/documents/service"
	"travelbook/internal/documents/storage"
	"travelbook/internal/payments/gateway"
	paymenthandler "travelbook/internal/payments/handler"
	weatherhandler "travelbook/internal/weather/handler"
	weatherservice "travelbook/internal/weather/service"
	"travelbook/pkg/app"
	"travelbook/pkg/config"
	"travelbook/pkg/contracts"
	"travelbook/pkg/events"
	"travelbook/pkg/scheduler"
	"travelbook/pkg/token"
)

const ServiceName = "travelbook-api"

type services struct {
	bookings  bookingservice.BookingService
	auth      authservice.AuthService
	documents docservice.DocumentService
	weather   weatherservice.WeatherService
	issuer    *token.Issuer
	publisher events.Publisher
}

func main() {
	cfg := config.Load(ServiceName)
	cfg.Log.Info("Starting Travelbook API")

	var checkers []contracts.HealthChecker
	if cfg.UsesMongo() {
		cfg.SetMongo()
		checkers = append(checkers, app.MongoChecker(cfg.Client.Mongo))
	}
	if cfg.UsesRedis() {
		cfg.SetRedis()
		if cfg.Client.Redis == nil {
			cfg.Log.Warn("Redis unavailable, falling back to in-memory rate limiting")
			cfg.RateLimitBackend = config.RateLimitMemory
		} else {
			checkers = append(checkers, app.RedisChecker(cfg.Client.Redis))
		}
	}

	svc := initServices(cfg)

	serverApp := app.NewApplication()
	err := serverApp.SetApp(cfg, svc.issuer, checkers,
		bookinghandler.NewBookingHandler(svc.bookings, cfg.Log),
		paymenthandler.NewWebhookHandler(svc.bookings, cfg.StripeWebhookSecret, cfg.Log),
		authhandler.NewAuthHandler(svc.auth, cfg.Log),
		dochandler.NewDocumentHandler(svc.documents, cfg.MaxUploadSize, cfg.Log),
		weatherhandler.NewWeatherHandler(svc.weather, cfg.Log),
	)
	if err != nil {
		cfg.Log.Fatal("Failed to configure application", "error", err)
	}

	if err := serverApp.AddJob(scheduler.Job{
		Name:           "password-reset-purge",
		Interval:       cfg.ResetPurgeInterval,
		Timeout:        time.Minute,
		RunImmediately: true,
		Run: func(ctx context.Context) error {
			_, err := svc.auth.PurgeResets(ctx)
			return err
		},
	}); err != nil {
		cfg.Log.Fatal("Failed to schedule password reset purge", "error", err)
	}

	serverApp.OnShutdown(svc.publisher.Close)
	serverApp.OnShutdown(func() error {
		cfg.GracefulShutdown()
		return nil
	})
	serverApp.Run()
}

func initServices(cfg *config.Config) services {
	stores := bookingrepo.NewStores(cfg)

	publisher, err := events.NewPublisher(cfg)
	if err != nil {
		cfg.Log.Fatal("Failed to create event publisher", "error", err, "broker", cfg.EventsBroker)
	}

	bookingService := bookingservice.NewBookingService(
		stores.Bookings,
		stores.Payments,
		stores.Transactions,
		gateway.New(cfg),
		publisher,
		bookingvalidator.NewBookingValidator(cfg.Log),
		cfg,
	)
	cfg.Log.Info("Booking service initialized", "storage", cfg.StorageBackend, "payment_provider", cfg.PaymentProvider)

	issuer := token.NewIssuer(cfg.JWTSecret, cfg.JWTIssuer, cfg.JWTTTL)
	authStores := authrepo.NewStores(cfg)
	authService := authservice.NewAuthService(
		authStores.Users,
		authStores.Resets,
		issuer,
		authvalidator.NewAuthValidator(cfg.Log),
		cfg,
	)
	cfg.Log.Info("Auth service initialized")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	store, err := storage.New(ctx, cfg)
	if err != nil {
		cfg.Log.Fatal("Failed to initialize document storage", "error", err, "backend", cfg.DocumentBackend)
	}
	cfg.Log.Info("Document service initialized", "backend", cfg.DocumentBackend)

	return services{
		bookings:  bookingService,
		auth:      authService,
		documents: docservice.NewDocumentService(store, cfg),
		weather:   weatherservice.NewWeatherService(cfg),
		issuer:    issuer,
		publisher: publisher,
	}
}
