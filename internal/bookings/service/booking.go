package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	bookingserrors "travelbook/internal/bookings/errors"
	"travelbook/internal/bookings/pricing"
	"travelbook/internal/bookings/repository"
	"travelbook/internal/bookings/validator"
	"travelbook/internal/payments/gateway"
	"travelbook/pkg/config"
	mongotx "travelbook/pkg/db/mongo"
	apperrors "travelbook/pkg/errors"
	"travelbook/pkg/events"
	"travelbook/pkg/model"
)

const maxUpdateAttempts = 3

// errNoChange lets a mutation skip the write when the booking already has
// the requested state.
var errNoChange = errors.New("no change")

type BookingService interface {
	SaveStep(ctx context.Context, caller model.Caller, step int, bookingID string, data json.RawMessage) (*model.StepResult, error)
	Confirm(ctx context.Context, caller model.Caller, bookingID string) (*model.StepResult, error)
	CreatePaymentIntent(ctx context.Context, caller model.Caller, bookingID string) (*model.PaymentIntentResult, error)
	ConfirmPayment(ctx context.Context, caller model.Caller, bookingID, paymentIntentID string) (*model.PaymentResult, error)
	Cancel(ctx context.Context, caller model.Caller, bookingID string) (*model.Booking, error)
	Get(ctx context.Context, caller model.Caller, bookingID string) (*model.Booking, error)
	List(ctx context.Context, caller model.Caller, status string, limit int, offset int64) ([]*model.Booking, int64, error)
	Delete(ctx context.Context, caller model.Caller, bookingID string) error
	// ReconcileIntent records a payment reported by the processor outside
	// of a client request. Already recorded intents are ignored.
	ReconcileIntent(ctx context.Context, intent *gateway.Intent) error
	GetPayment(ctx context.Context, paymentID string) (*model.Payment, error)
}

type bookingService struct {
	repo      repository.BookingRepository
	payments  repository.PaymentRepository
	txManager mongotx.TransactionManager
	gateway   gateway.Gateway
	publisher events.Publisher
	validator *validator.BookingValidator
	cfg       *config.Config
	now       func() time.Time
}

func NewBookingService(
	repo repository.BookingRepository,
	payments repository.PaymentRepository,
	txManager mongotx.TransactionManager,
	gw gateway.Gateway,
	publisher events.Publisher,
	validator *validator.BookingValidator,
	cfg *config.Config,
) BookingService {
	return &bookingService{
		repo:      repo,
		payments:  payments,
		txManager: txManager,
		gateway:   gw,
		publisher: publisher,
		validator: validator,
		cfg:       cfg,
		now:       func() time.Time { return time.Now().UTC().Truncate(time.Millisecond) },
	}
}

func (s *bookingService) SaveStep(ctx context.Context, caller model.Caller, step int, bookingID string, raw json.RawMessage) (*model.StepResult, error) {
	if err := s.validator.ValidateStep(step); err != nil {
		return nil, s.invalid(err)
	}
	data, err := s.validator.DecodeStepData(raw)
	if err != nil {
		return nil, s.invalid(err)
	}
	st := model.Step(step)

	if bookingID == "" {
		now := s.now()
		booking := &model.Booking{
			OwnerID:   caller.UserID,
			Status:    model.BookingDraft,
			CreatedAt: now,
			UpdatedAt: now,
		}
		booking.SetSlot(st, data)
		total, err := pricing.ComputeTotal(booking)
		if err != nil {
			return nil, s.invalid(err)
		}
		booking.TotalAmount = total

		if err := s.repo.Create(ctx, booking); err != nil {
			s.cfg.Log.Error("Failed to create booking", "error", err)
			return nil, apperrors.Internal("Failed to create booking", err)
		}

		s.cfg.Log.Info("Booking draft created",
			"booking_id", booking.ID,
			"step", step,
			"anonymous", !caller.Authenticated(),
		)
		return &model.StepResult{BookingID: booking.ID, Total: booking.TotalAmount, NextURL: st.NextURL(booking.ID)}, nil
	}

	if err := s.validator.ValidateBookingID(bookingID); err != nil {
		return nil, s.invalid(err)
	}

	booking, err := s.mutate(ctx, bookingID, func(b *model.Booking) error {
		if err := s.claim(b, caller); err != nil {
			return err
		}
		if b.Status == model.BookingConfirmed || b.Status == model.BookingCancelled {
			return apperrors.Conflict(fmt.Sprintf("Booking is %s and can no longer be edited", b.Status))
		}
		b.SetSlot(st, data)
		total, err := pricing.ComputeTotal(b)
		if err != nil {
			return s.invalid(err)
		}
		b.TotalAmount = total
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &model.StepResult{BookingID: booking.ID, Total: booking.TotalAmount, NextURL: st.NextURL(booking.ID)}, nil
}

func (s *bookingService) Confirm(ctx context.Context, caller model.Caller, bookingID string) (*model.StepResult, error) {
	if err := s.authorize(caller, bookingID); err != nil {
		return nil, err
	}

	var transitioned bool
	booking, err := s.mutate(ctx, bookingID, func(b *model.Booking) error {
		transitioned = false
		bound := !b.IsOwned()
		if err := s.claim(b, caller); err != nil {
			return err
		}

		switch b.Status {
		case model.BookingConfirmed, model.BookingCancelled:
			return apperrors.Conflict(fmt.Sprintf("Booking is %s and cannot be confirmed again", b.Status))
		}

		total, err := pricing.ComputeTotal(b)
		if err != nil {
			return s.invalid(err)
		}
		if b.Status == model.BookingInProgress && total == b.TotalAmount && !bound {
			return errNoChange
		}

		transitioned = b.Status != model.BookingInProgress
		b.Status = model.BookingInProgress
		b.TotalAmount = total
		return nil
	})
	if err != nil {
		return nil, err
	}

	if transitioned {
		s.cfg.Log.Info("Booking confirmed", "booking_id", booking.ID, "owner_id", booking.OwnerID, "total", booking.TotalAmount)
		s.publish(ctx, events.ForBooking(events.TypeBookingConfirmed, booking))
	}

	return &model.StepResult{
		BookingID: booking.ID,
		Total:     booking.TotalAmount,
		NextURL:   model.CheckoutURL(booking.ID),
	}, nil
}

func (s *bookingService) CreatePaymentIntent(ctx context.Context, caller model.Caller, bookingID string) (*model.PaymentIntentResult, error) {
	if err := s.authorize(caller, bookingID); err != nil {
		return nil, err
	}

	booking, err := s.mutate(ctx, bookingID, func(b *model.Booking) error {
		bound := !b.IsOwned()
		if err := s.claim(b, caller); err != nil {
			return err
		}

		switch b.Status {
		case model.BookingConfirmed:
			return apperrors.Conflict("Booking is already paid")
		case model.BookingCancelled:
			return apperrors.Conflict("Booking is cancelled")
		}

		total, err := pricing.ComputeTotal(b)
		if err != nil {
			return s.invalid(err)
		}
		if total == b.TotalAmount && !bound {
			return errNoChange
		}
		b.TotalAmount = total
		return nil
	})
	if err != nil {
		return nil, err
	}

	amount := pricing.ToMinorUnits(booking.TotalAmount)
	if amount <= 0 {
		return nil, apperrors.InvalidInput("Booking total must be greater than zero")
	}

	intent, err := s.gateway.CreateIntent(ctx, gateway.IntentRequest{
		AmountMinor: amount,
		Currency:    s.cfg.PaymentCurrency,
		BookingID:   booking.ID,
		MethodTypes: s.cfg.PaymentMethodTypes,
	})
	if err != nil {
		s.cfg.Log.Error("Failed to create payment intent",
			"booking_id", booking.ID,
			"provider", s.gateway.Name(),
			"error", err,
		)
		return nil, apperrors.ProviderError(err)
	}

	s.cfg.Log.Info("Payment intent created",
		"booking_id", booking.ID,
		"payment_intent_id", intent.ID,
		"amount_minor", amount,
	)

	return &model.PaymentIntentResult{
		ClientSecret:    intent.ClientSecret,
		PaymentIntentID: intent.ID,
	}, nil
}

func (s *bookingService) ConfirmPayment(ctx context.Context, caller model.Caller, bookingID, paymentIntentID string) (*model.PaymentResult, error) {
	if err := s.authorize(caller, bookingID); err != nil {
		return nil, err
	}
	if err := s.validator.ValidatePaymentIntentID(paymentIntentID); err != nil {
		return nil, s.invalid(err)
	}

	booking, err := s.load(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if !booking.AccessibleBy(caller) {
		return nil, apperrors.OwnershipViolation("Booking", bookingID)
	}
	if booking.Status == model.BookingCancelled {
		return nil, apperrors.Conflict("Booking is cancelled")
	}

	existing, err := s.existingPayment(ctx, bookingID, paymentIntentID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return paymentResult(existing), nil
	}

	intent, err := s.gateway.RetrieveIntent(ctx, paymentIntentID)
	if err != nil {
		s.cfg.Log.Error("Failed to retrieve payment intent", "booking_id", bookingID, "payment_intent_id", paymentIntentID, "error", err)
		return nil, apperrors.ProviderError(err)
	}
	if owner := intent.BookingID(); owner != "" && owner != bookingID {
		return nil, apperrors.InvalidInput("Payment intent does not belong to this booking")
	}

	switch intent.Status {
	case gateway.StatusRequiresConfirmation:
		intent, err = s.gateway.ConfirmIntent(ctx, paymentIntentID)
		if err != nil {
			s.cfg.Log.Error("Failed to confirm payment intent", "booking_id", bookingID, "payment_intent_id", paymentIntentID, "error", err)
			return nil, apperrors.ProviderError(err)
		}
	case gateway.StatusSucceeded:
	default:
		return nil, apperrors.PaymentNotReady(intent.Status)
	}

	if intent.Status != gateway.StatusSucceeded {
		s.cfg.Log.Warn("Payment did not succeed", "booking_id", bookingID, "payment_intent_id", intent.ID, "status", intent.Status)
		return nil, apperrors.PaymentFailed(intent.Status)
	}

	payment, err := s.recordPayment(ctx, bookingID, intent, caller)
	if err != nil {
		return nil, err
	}
	return paymentResult(payment), nil
}

func (s *bookingService) ReconcileIntent(ctx context.Context, intent *gateway.Intent) error {
	if intent.Status != gateway.StatusSucceeded {
		s.cfg.Log.Debug("Ignoring payment intent that has not succeeded", "payment_intent_id", intent.ID, "status", intent.Status)
		return nil
	}

	bookingID := intent.BookingID()
	if bookingID == "" {
		s.cfg.Log.Warn("Payment intent carries no booking_id metadata", "payment_intent_id", intent.ID)
		return nil
	}

	existing, err := s.existingPayment(ctx, bookingID, intent.ID)
	if err != nil {
		return err
	}
	if existing != nil {
		s.cfg.Log.Debug("Payment intent already recorded", "payment_intent_id", intent.ID, "payment_id", existing.ID)
		return nil
	}

	_, err = s.recordPayment(ctx, bookingID, intent, model.Anonymous())
	return err
}

func (s *bookingService) Cancel(ctx context.Context, caller model.Caller, bookingID string) (*model.Booking, error) {
	if err := s.authorize(caller, bookingID); err != nil {
		return nil, err
	}

	var transitioned bool
	booking, err := s.mutate(ctx, bookingID, func(b *model.Booking) error {
		transitioned = false
		bound := !b.IsOwned()
		if err := s.claim(b, caller); err != nil {
			return err
		}
		if b.Status == model.BookingCancelled {
			if bound {
				return nil
			}
			return errNoChange
		}

		now := s.now()
		b.Status = model.BookingCancelled
		if b.CancelledAt == nil {
			b.CancelledAt = &now
		}
		transitioned = true
		return nil
	})
	if err != nil {
		return nil, err
	}

	if transitioned {
		s.cfg.Log.Info("Booking cancelled", "booking_id", booking.ID, "owner_id", booking.OwnerID)
		s.publish(ctx, events.ForBooking(events.TypeBookingCancelled, booking))
	}
	return booking, nil
}

func (s *bookingService) Get(ctx context.Context, caller model.Caller, bookingID string) (*model.Booking, error) {
	if err := s.authorize(caller, bookingID); err != nil {
		return nil, err
	}

	booking, err := s.load(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if !booking.AccessibleBy(caller) {
		return nil, apperrors.OwnershipViolation("Booking", bookingID)
	}
	return booking, nil
}

func (s *bookingService) List(ctx context.Context, caller model.Caller, status string, limit int, offset int64) ([]*model.Booking, int64, error) {
	if !caller.Authenticated() {
		return nil, 0, apperrors.Unauthorized("Authentication required")
	}
	if err := s.validator.ValidateStatus(status); err != nil {
		return nil, 0, s.invalid(err)
	}

	limit = config.NormalizePaginationLimit(limit)
	offset = config.NormalizeOffset(offset)
	st := model.BookingStatus(status)

	bookings, err := s.repo.FindByOwner(ctx, caller.UserID, st, limit, offset)
	if err != nil {
		s.cfg.Log.Error("Failed to list bookings", "owner_id", caller.UserID, "error", err)
		return nil, 0, apperrors.Internal("Failed to list bookings", err)
	}

	total, err := s.repo.CountByOwner(ctx, caller.UserID, st)
	if err != nil {
		s.cfg.Log.Error("Failed to count bookings", "owner_id", caller.UserID, "error", err)
		return nil, 0, apperrors.Internal("Failed to count bookings", err)
	}

	if bookings == nil {
		bookings = []*model.Booking{}
	}
	return bookings, total, nil
}

func (s *bookingService) Delete(ctx context.Context, caller model.Caller, bookingID string) error {
	if err := s.authorize(caller, bookingID); err != nil {
		return err
	}

	booking, err := s.load(ctx, bookingID)
	if err != nil {
		return err
	}
	if !booking.AccessibleBy(caller) {
		return apperrors.OwnershipViolation("Booking", bookingID)
	}

	age := s.now().Sub(booking.CreatedAt)
	if booking.Status != model.BookingCancelled && age >= s.cfg.BookingDeleteWindow {
		return apperrors.Forbidden(fmt.Sprintf(
			"Booking can only be deleted when cancelled or within %s of creation",
			s.cfg.BookingDeleteWindow,
		))
	}

	if err := s.repo.Delete(ctx, bookingID); err != nil {
		return s.repoError(err, bookingID, "Failed to delete booking")
	}

	s.cfg.Log.Info("Booking deleted", "booking_id", bookingID, "status", booking.Status)
	return nil
}

func (s *bookingService) GetPayment(ctx context.Context, paymentID string) (*model.Payment, error) {
	payment, err := s.payments.FindByID(ctx, paymentID)
	if err != nil {
		if errors.Is(err, bookingserrors.ErrPaymentNotFound) {
			return nil, apperrors.NotFoundWithID("Payment", paymentID)
		}
		return nil, apperrors.Internal("Failed to get payment", err)
	}
	return payment, nil
}

// recordPayment stores the Payment and confirms the booking in one
// transaction. The charged amount must equal the booking total.
func (s *bookingService) recordPayment(ctx context.Context, bookingID string, intent *gateway.Intent, caller model.Caller) (*model.Payment, error) {
	for attempt := 1; attempt <= maxUpdateAttempts; attempt++ {
		booking, err := s.load(ctx, bookingID)
		if err != nil {
			return nil, err
		}
		switch booking.Status {
		case model.BookingCancelled:
			return nil, apperrors.Conflict("Booking is cancelled")
		case model.BookingConfirmed:
			existing, err := s.existingPayment(ctx, bookingID, intent.ID)
			if err != nil {
				return nil, err
			}
			if existing != nil {
				return existing, nil
			}
			return nil, apperrors.Conflict("Booking is already paid")
		}

		total, err := pricing.ComputeTotal(booking)
		if err != nil {
			return nil, s.invalid(err)
		}
		expected := pricing.ToMinorUnits(total)
		if intent.Amount != expected {
			s.cfg.Log.Warn("Payment amount mismatch",
				"booking_id", bookingID,
				"payment_intent_id", intent.ID,
				"expected_minor", expected,
				"charged_minor", intent.Amount,
			)
			return nil, apperrors.AmountMismatch(expected, intent.Amount)
		}

		now := s.now()
		currency := intent.Currency
		if currency == "" {
			currency = s.cfg.PaymentCurrency
		}
		payment := &model.Payment{
			BookingID:   bookingID,
			Amount:      total,
			AmountMinor: expected,
			Currency:    currency,
			Provider:    s.gateway.Name(),
			TxnRef:      intent.ID,
			Status:      model.PaymentSuccess,
			CreatedAt:   now,
		}

		err = s.txManager.ExecuteTransaction(ctx, func(txCtx context.Context) error {
			if err := s.payments.Create(txCtx, payment); err != nil {
				return err
			}

			if !booking.IsOwned() && caller.Authenticated() {
				booking.OwnerID = caller.UserID
			}
			booking.Status = model.BookingConfirmed
			booking.TotalAmount = total
			booking.UpdatedAt = now
			if booking.ConfirmedAt == nil {
				booking.ConfirmedAt = &now
			}
			return s.repo.Update(txCtx, booking)
		})

		switch {
		case err == nil:
			s.cfg.Log.Info("Payment recorded",
				"booking_id", bookingID,
				"payment_id", payment.ID,
				"txn_ref", payment.TxnRef,
				"amount", payment.Amount,
			)
			s.publish(ctx, events.ForBooking(events.TypePaymentRecorded, booking).WithPayment(payment))
			return payment, nil

		case errors.Is(err, bookingserrors.ErrDuplicateTxnRef):
			existing, findErr := s.existingPayment(ctx, bookingID, intent.ID)
			if findErr != nil {
				return nil, findErr
			}
			if existing != nil {
				return existing, nil
			}

		case errors.Is(err, bookingserrors.ErrVersionConflict):
			s.cfg.Log.Debug("Booking changed while recording payment, retrying", "booking_id", bookingID, "attempt", attempt)

		default:
			return nil, s.repoError(err, bookingID, "Failed to record payment")
		}
	}

	return nil, apperrors.Conflict("Booking was modified concurrently, please retry")
}

// existingPayment returns the Payment already recorded for txnRef, making
// sure the booking reflects it. A txnRef recorded for another booking is a
// conflict.
func (s *bookingService) existingPayment(ctx context.Context, bookingID, txnRef string) (*model.Payment, error) {
	payment, err := s.payments.FindByTxnRef(ctx, txnRef)
	if err != nil {
		if errors.Is(err, bookingserrors.ErrPaymentNotFound) {
			return nil, nil
		}
		return nil, apperrors.Internal("Failed to look up payment", err)
	}
	if payment.BookingID != bookingID {
		return nil, apperrors.Conflict("Payment intent was already used for another booking")
	}

	_, err = s.mutate(ctx, bookingID, func(b *model.Booking) error {
		if b.Status == model.BookingConfirmed || b.Status == model.BookingCancelled {
			return errNoChange
		}
		now := s.now()
		b.Status = model.BookingConfirmed
		if b.ConfirmedAt == nil {
			b.ConfirmedAt = &now
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return payment, nil
}

// mutate loads the booking, applies fn and writes it back. When another
// writer got there first the whole read-modify-write is repeated.
func (s *bookingService) mutate(ctx context.Context, bookingID string, fn func(b *model.Booking) error) (*model.Booking, error) {
	for attempt := 1; attempt <= maxUpdateAttempts; attempt++ {
		booking, err := s.load(ctx, bookingID)
		if err != nil {
			return nil, err
		}

		if err := fn(booking); err != nil {
			if errors.Is(err, errNoChange) {
				return booking, nil
			}
			return nil, err
		}

		booking.UpdatedAt = s.now()
		err = s.repo.Update(ctx, booking)
		if err == nil {
			return booking, nil
		}
		if !errors.Is(err, bookingserrors.ErrVersionConflict) {
			return nil, s.repoError(err, bookingID, "Failed to update booking")
		}

		s.cfg.Log.Debug("Booking version conflict, retrying", "booking_id", bookingID, "attempt", attempt)
	}

	s.cfg.Log.Warn("Booking update gave up after repeated version conflicts", "booking_id", bookingID)
	return nil, apperrors.Conflict("Booking was modified concurrently, please retry")
}

func (s *bookingService) load(ctx context.Context, bookingID string) (*model.Booking, error) {
	booking, err := s.repo.FindByID(ctx, bookingID)
	if err != nil {
		return nil, s.repoError(err, bookingID, "Failed to get booking")
	}
	return booking, nil
}

// claim enforces ownership and binds an unowned booking to an
// authenticated caller.
func (s *bookingService) claim(b *model.Booking, caller model.Caller) error {
	if !b.AccessibleBy(caller) {
		s.cfg.Log.Warn("Booking ownership violation", "booking_id", b.ID, "caller", caller.UserID)
		return apperrors.OwnershipViolation("Booking", b.ID)
	}
	if !b.IsOwned() && caller.Authenticated() {
		b.OwnerID = caller.UserID
	}
	return nil
}

func (s *bookingService) authorize(caller model.Caller, bookingID string) error {
	if !caller.Authenticated() {
		return apperrors.Unauthorized("Authentication required")
	}
	if err := s.validator.ValidateBookingID(bookingID); err != nil {
		return s.invalid(err)
	}
	return nil
}

func (s *bookingService) invalid(err error) error {
	s.cfg.Log.Warn("Booking request validation failed", "error", err)
	return apperrors.InvalidInput(err.Error()).WithDetails(map[string]any{"errors": err})
}

func (s *bookingService) repoError(err error, bookingID, message string) error {
	switch {
	case errors.Is(err, bookingserrors.ErrNotFound), errors.Is(err, bookingserrors.ErrInvalidID):
		return apperrors.NotFoundWithID("Booking", bookingID)
	case errors.Is(err, bookingserrors.ErrVersionConflict):
		return apperrors.Conflict("Booking was modified concurrently, please retry")
	case apperrors.IsAppError(err):
		return err
	}
	s.cfg.Log.Error(message, "booking_id", bookingID, "error", err)
	return apperrors.Internal(message, err)
}

func (s *bookingService) publish(ctx context.Context, ev events.Event) {
	if err := s.publisher.Publish(context.WithoutCancel(ctx), ev); err != nil {
		s.cfg.Log.Error("Failed to publish booking event",
			"event_type", ev.Type,
			"booking_id", ev.BookingID,
			"error", err,
		)
	}
}

func paymentResult(p *model.Payment) *model.PaymentResult {
	return &model.PaymentResult{
		PaymentID: p.ID,
		TxnRef:    p.TxnRef,
		BookingID: p.BookingID,
		NextURL:   model.DashboardURL(p.BookingID),
	}
}
