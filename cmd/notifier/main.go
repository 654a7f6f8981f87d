package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	bookingrepo "travelbook/internal/bookings/repository"
	bookingservice "travelbook/internal/bookings/service"
	bookingvalidator "travelbook/internal/bookings/validator"
	docservice "travelbook/internal/documents/service"
	"travelbook/internal/documents/storage"
	"travelbook/internal/notifier"
	"travelbook/internal/payments/gateway"
	"travelbook/pkg/config"
	"travelbook/pkg/events"
)

const ServiceName = "travelbook-notifier"

func main() {
	cfg := config.Load(ServiceName)
	cfg.Log.Info("Starting Travelbook notifier", "broker", cfg.EventsBroker)

	if cfg.UsesMongo() {
		cfg.SetMongo()
	} else {
		cfg.Log.Warn("Notifier is using in-memory storage and will not see bookings made by the API")
	}

	n := initNotifier(cfg)

	subscriber, err := events.NewSubscriber(cfg)
	if err != nil {
		cfg.Log.Fatal("Failed to create event subscriber", "error", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runErr := subscriber.Run(ctx, n.Handle)
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		cfg.Log.Error("Subscriber stopped with error", "error", runErr)
	}

	gracefulShutdown(cfg, subscriber)
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		os.Exit(1)
	}
}

func initNotifier(cfg *config.Config) *notifier.Notifier {
	stores := bookingrepo.NewStores(cfg)

	// Payments are only read here, so nothing is published back.
	bookings := bookingservice.NewBookingService(
		stores.Bookings,
		stores.Payments,
		stores.Transactions,
		gateway.New(cfg),
		events.NewLogPublisher(cfg.Log),
		bookingvalidator.NewBookingValidator(cfg.Log),
		cfg,
	)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	store, err := storage.New(ctx, cfg)
	if err != nil {
		cfg.Log.Fatal("Failed to initialize document storage", "error", err, "backend", cfg.DocumentBackend)
	}

	return notifier.New(stores.Bookings, bookings, docservice.NewDocumentService(store, cfg), cfg.Log)
}

func gracefulShutdown(cfg *config.Config, subscriber events.Subscriber) {
	cfg.Log.Info("Starting graceful shutdown...")
	if err := subscriber.Close(); err != nil {
		cfg.Log.Error("Failed to close subscriber", "error", err)
	}
	cfg.GracefulShutdown()
	cfg.Log.Info("Notifier stopped gracefully")
}
