// Package notifier reacts to booking lifecycle events. Recorded payments
// get a PDF receipt in the booking owner's document folder.
package notifier

import (
	"context"
	"errors"
	"fmt"

	bookingserrors "travelbook/internal/bookings/errors"
	"travelbook/internal/bookings/repository"
	apperrors "travelbook/pkg/errors"
	"travelbook/pkg/events"
	"travelbook/pkg/logger"
	"travelbook/pkg/model"
)

type PaymentLookup interface {
	GetPayment(ctx context.Context, paymentID string) (*model.Payment, error)
}

type ReceiptSaver interface {
	SaveReceipt(ctx context.Context, booking *model.Booking, payment *model.Payment) (*model.Document, error)
}

type Notifier struct {
	bookings repository.BookingRepository
	payments PaymentLookup
	receipts ReceiptSaver
	log      *logger.Logger
}

func New(bookings repository.BookingRepository, payments PaymentLookup, receipts ReceiptSaver, log *logger.Logger) *Notifier {
	return &Notifier{
		bookings: bookings,
		payments: payments,
		receipts: receipts,
		log:      log,
	}
}

// Handle is an events.Handler. Errors wrapped with events.Permanent are not
// retried by the subscriber.
func (n *Notifier) Handle(ctx context.Context, ev events.Event) error {
	switch ev.Type {
	case events.TypePaymentRecorded:
		return n.paymentRecorded(ctx, ev)
	case events.TypeBookingConfirmed, events.TypeBookingCancelled:
		n.log.Info("Booking event received",
			"event_id", ev.ID,
			"event_type", ev.Type,
			"booking_id", ev.BookingID,
			"owner_id", ev.OwnerID,
			"status", ev.Status,
			"total", ev.Total,
		)
		return nil
	default:
		n.log.Warn("Ignoring unknown booking event", "event_id", ev.ID, "event_type", ev.Type)
		return nil
	}
}

func (n *Notifier) paymentRecorded(ctx context.Context, ev events.Event) error {
	if ev.BookingID == "" || ev.PaymentID == "" {
		return events.Permanent(fmt.Errorf("event %s is missing booking or payment id", ev.ID))
	}

	booking, err := n.bookings.FindByID(ctx, ev.BookingID)
	if err != nil {
		if errors.Is(err, bookingserrors.ErrNotFound) || errors.Is(err, bookingserrors.ErrInvalidID) {
			return events.Permanent(fmt.Errorf("booking %s not found: %w", ev.BookingID, err))
		}
		return fmt.Errorf("failed to load booking %s: %w", ev.BookingID, err)
	}

	payment, err := n.payments.GetPayment(ctx, ev.PaymentID)
	if err != nil {
		if apperrors.HasCode(err, apperrors.CodeNotFound) {
			return events.Permanent(err)
		}
		return fmt.Errorf("failed to load payment %s: %w", ev.PaymentID, err)
	}
	if payment.BookingID != booking.ID {
		return events.Permanent(fmt.Errorf("payment %s belongs to booking %s, not %s", payment.ID, payment.BookingID, booking.ID))
	}

	if !booking.IsOwned() {
		n.log.Warn("Skipping receipt for unowned booking", "booking_id", booking.ID, "payment_id", payment.ID)
		return nil
	}

	doc, err := n.receipts.SaveReceipt(ctx, booking, payment)
	if err != nil {
		return fmt.Errorf("failed to save receipt for booking %s: %w", booking.ID, err)
	}

	n.log.Info("Receipt ready",
		"event_id", ev.ID,
		"booking_id", booking.ID,
		"payment_id", payment.ID,
		"user_id", booking.OwnerID,
		"document", doc.Name,
	)
	return nil
}
