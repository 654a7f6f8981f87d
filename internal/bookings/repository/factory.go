package repository

import (
	"travelbook/pkg/config"
	mongotx "travelbook/pkg/db/mongo"
)

// Stores groups the booking persistence for the configured backend.
type Stores struct {
	Bookings     BookingRepository
	Payments     PaymentRepository
	Transactions mongotx.TransactionManager
}

// NewStores selects the implementation from cfg.StorageBackend. The Mongo
// client must already be connected when the backend is mongo.
func NewStores(cfg *config.Config) Stores {
	if cfg.StorageBackend == config.StorageMemory {
		return Stores{
			Bookings:     NewMemoryBookingRepository(),
			Payments:     NewMemoryPaymentRepository(),
			Transactions: mongotx.NewNoopTransactionManager(),
		}
	}
	return Stores{
		Bookings:     NewMongoBookingRepository(cfg),
		Payments:     NewMongoPaymentRepository(cfg),
		Transactions: mongotx.NewTransactionManager(cfg.Client.Mongo),
	}
}
