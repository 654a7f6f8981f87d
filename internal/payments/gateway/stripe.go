package gateway

import (
	"context"

	"github.com/stripe/stripe-go/v82"
)

type stripeGateway struct {
	sc *stripe.Client
}

// NewStripeGateway builds a client that makes a single attempt per call.
// Processor failures surface to the caller instead of being retried.
func NewStripeGateway(secretKey string) Gateway {
	return NewStripeGatewayWithClient(newStripeClient(secretKey, nil))
}

func newStripeClient(secretKey string, url *string) *stripe.Client {
	backends := stripe.NewBackendsWithConfig(&stripe.BackendConfig{
		MaxNetworkRetries: stripe.Int64(0),
		URL:               url,
	})
	return stripe.NewClient(secretKey, stripe.WithBackends(backends))
}

// NewStripeGatewayWithClient is used when the caller builds the client,
// for example with custom backends.
func NewStripeGatewayWithClient(sc *stripe.Client) Gateway {
	return &stripeGateway{sc: sc}
}

func (g *stripeGateway) Name() string {
	return "stripe"
}

func (g *stripeGateway) CreateIntent(ctx context.Context, req IntentRequest) (*Intent, error) {
	params := &stripe.PaymentIntentCreateParams{
		Amount:             stripe.Int64(req.AmountMinor),
		Currency:           stripe.String(req.Currency),
		PaymentMethodTypes: stripe.StringSlice(req.MethodTypes),
	}
	params.AddMetadata(MetadataBookingID, req.BookingID)
	params.SetIdempotencyKey(req.IdempotencyKey())

	pi, err := g.sc.V1PaymentIntents.Create(ctx, params)
	if err != nil {
		return nil, err
	}
	return FromStripe(pi), nil
}

func (g *stripeGateway) RetrieveIntent(ctx context.Context, id string) (*Intent, error) {
	pi, err := g.sc.V1PaymentIntents.Retrieve(ctx, id, &stripe.PaymentIntentRetrieveParams{})
	if err != nil {
		return nil, err
	}
	return FromStripe(pi), nil
}

func (g *stripeGateway) ConfirmIntent(ctx context.Context, id string) (*Intent, error) {
	pi, err := g.sc.V1PaymentIntents.Confirm(ctx, id, &stripe.PaymentIntentConfirmParams{})
	if err != nil {
		return nil, err
	}
	return FromStripe(pi), nil
}

// FromStripe converts a Stripe PaymentIntent, including the ones decoded
// from webhook events.
func FromStripe(pi *stripe.PaymentIntent) *Intent {
	return &Intent{
		ID:           pi.ID,
		ClientSecret: pi.ClientSecret,
		Status:       string(pi.Status),
		Amount:       pi.Amount,
		Currency:     string(pi.Currency),
		Metadata:     pi.Metadata,
	}
}
