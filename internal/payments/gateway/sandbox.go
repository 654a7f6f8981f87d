package gateway

import (
	"context"
	"fmt"
	"maps"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// SandboxGateway is an in-process processor for development. Intents are
// created in requires_confirmation and succeed when confirmed.
type SandboxGateway struct {
	mu      sync.Mutex
	intents map[string]*Intent
}

func NewSandboxGateway() *SandboxGateway {
	return &SandboxGateway{intents: map[string]*Intent{}}
}

func (g *SandboxGateway) Name() string {
	return "sandbox"
}

func (g *SandboxGateway) CreateIntent(_ context.Context, req IntentRequest) (*Intent, error) {
	if req.AmountMinor <= 0 {
		return nil, fmt.Errorf("amount must be positive, got %d", req.AmountMinor)
	}

	id := "pi_sandbox_" + strings.ReplaceAll(uuid.NewString(), "-", "")
	intent := &Intent{
		ID:           id,
		ClientSecret: id + "_secret_" + uuid.NewString()[:8],
		Status:       StatusRequiresConfirmation,
		Amount:       req.AmountMinor,
		Currency:     req.Currency,
		Metadata:     map[string]string{MetadataBookingID: req.BookingID},
	}

	g.mu.Lock()
	g.intents[id] = intent
	g.mu.Unlock()

	return copyIntent(intent), nil
}

func (g *SandboxGateway) RetrieveIntent(_ context.Context, id string) (*Intent, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	intent, ok := g.intents[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrIntentNotFound, id)
	}
	return copyIntent(intent), nil
}

func (g *SandboxGateway) ConfirmIntent(_ context.Context, id string) (*Intent, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	intent, ok := g.intents[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrIntentNotFound, id)
	}
	if intent.Status != StatusRequiresConfirmation {
		return nil, fmt.Errorf("intent %s cannot be confirmed in status %s", id, intent.Status)
	}
	intent.Status = StatusSucceeded
	return copyIntent(intent), nil
}

// SetStatus forces an intent into a status, for exercising declined or
// pending payments.
func (g *SandboxGateway) SetStatus(id, status string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	intent, ok := g.intents[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrIntentNotFound, id)
	}
	intent.Status = status
	return nil
}

func copyIntent(i *Intent) *Intent {
	c := *i
	c.Metadata = maps.Clone(i.Metadata)
	return &c
}
