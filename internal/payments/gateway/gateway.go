// Package gateway talks to the payment processor. Amounts are always in
// minor units.
package gateway

import (
	"context"
	"errors"
	"fmt"

	"travelbook/pkg/config"
)

const (
	StatusRequiresPaymentMethod = "requires_payment_method"
	StatusRequiresConfirmation  = "requires_confirmation"
	StatusRequiresAction        = "requires_action"
	StatusProcessing            = "processing"
	StatusSucceeded             = "succeeded"
	StatusCanceled              = "canceled"

	MetadataBookingID = "booking_id"
)

var ErrIntentNotFound = errors.New("payment intent not found")

// Intent is the processor-neutral view of a payment intent.
type Intent struct {
	ID           string
	ClientSecret string
	Status       string
	Amount       int64
	Currency     string
	Metadata     map[string]string
}

func (i *Intent) BookingID() string {
	return i.Metadata[MetadataBookingID]
}

type IntentRequest struct {
	AmountMinor int64
	Currency    string
	BookingID   string
	MethodTypes []string
}

// IdempotencyKey identifies a create request for one booking, amount and
// currency, so a repeated request yields the intent created the first time.
func (r IntentRequest) IdempotencyKey() string {
	return fmt.Sprintf("booking-%s-%d-%s", r.BookingID, r.AmountMinor, r.Currency)
}

type Gateway interface {
	Name() string
	CreateIntent(ctx context.Context, req IntentRequest) (*Intent, error)
	RetrieveIntent(ctx context.Context, id string) (*Intent, error)
	ConfirmIntent(ctx context.Context, id string) (*Intent, error)
}

// New returns the gateway selected by cfg.PaymentProvider.
func New(cfg *config.Config) Gateway {
	if cfg.PaymentProvider == config.PaymentStripe {
		return NewStripeGateway(cfg.StripeSecretKey)
	}
	return NewSandboxGateway()
}
