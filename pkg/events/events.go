// Package events carries booking lifecycle events from the API to the
// notifier over Kafka or RabbitMQ.
package events

import (
	"context"
	"errors"
	"time"

	"travelbook/pkg/model"

	"github.com/google/uuid"
)

const (
	TypeBookingConfirmed = "booking.confirmed"
	TypeBookingCancelled = "booking.cancelled"
	TypePaymentRecorded  = "booking.payment_recorded"

	SchemaVersion = "1"
)

type Event struct {
	ID            string              `json:"id"`
	Type          string              `json:"type"`
	BookingID     string              `json:"booking_id"`
	OwnerID       string              `json:"owner_id,omitempty"`
	Status        model.BookingStatus `json:"status"`
	Total         float64             `json:"total"`
	PaymentID     string              `json:"payment_id,omitempty"`
	TxnRef        string              `json:"txn_ref,omitempty"`
	CorrelationID string              `json:"correlation_id,omitempty"`
	OccurredAt    time.Time           `json:"occurred_at"`
}

// ForBooking snapshots the booking into a new event of the given type.
func ForBooking(eventType string, b *model.Booking) Event {
	return Event{
		ID:         uuid.New().String(),
		Type:       eventType,
		BookingID:  b.ID,
		OwnerID:    b.OwnerID,
		Status:     b.Status,
		Total:      b.TotalAmount,
		OccurredAt: time.Now().UTC(),
	}
}

func (e Event) WithPayment(p *model.Payment) Event {
	e.PaymentID = p.ID
	e.TxnRef = p.TxnRef
	return e
}

type Publisher interface {
	Publish(ctx context.Context, ev Event) error
	Close() error
}

type Handler func(ctx context.Context, ev Event) error

type Subscriber interface {
	// Run blocks, delivering events to handler until ctx is cancelled.
	Run(ctx context.Context, handler Handler) error
	Close() error
}

type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks a handler error as not worth retrying.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

func IsPermanent(err error) bool {
	var p *permanentError
	return errors.As(err, &p)
}
