package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"travelbook/internal/payments/gateway"
	apperrors "travelbook/pkg/errors"
	httputil "travelbook/pkg/http"
	"travelbook/pkg/logger"

	"github.com/julienschmidt/httprouter"
	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/webhook"
)

const WebhookPath = "/api/v1/payments/webhook"

const maxWebhookBody = 65536

type IntentReconciler interface {
	ReconcileIntent(ctx context.Context, intent *gateway.Intent) error
}

type WebhookHandler struct {
	reconciler IntentReconciler
	secret     string
	log        *logger.Logger
}

func NewWebhookHandler(reconciler IntentReconciler, secret string, log *logger.Logger) *WebhookHandler {
	return &WebhookHandler{
		reconciler: reconciler,
		secret:     secret,
		log:        log,
	}
}

type webhookResponse struct {
	Received bool `json:"received"`
}

// Handle verifies the Stripe-Signature header and records succeeded
// payment intents. Client-side failures such as an amount mismatch are
// acknowledged so Stripe stops redelivering; server failures are not.
func (h *WebhookHandler) Handle(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	if h.secret == "" {
		h.writeError(w, apperrors.Unavailable("Stripe webhook"))
		return
	}

	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBody))
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			h.writeError(w, apperrors.PayloadTooLarge(maxErr.Limit))
			return
		}
		h.writeError(w, apperrors.InvalidInput("failed to read webhook body"))
		return
	}

	event, err := webhook.ConstructEvent(payload, r.Header.Get("Stripe-Signature"), h.secret)
	if err != nil {
		h.log.Warn("Rejected Stripe webhook", "error", err)
		h.writeError(w, apperrors.InvalidInput("invalid webhook signature"))
		return
	}

	h.log.Info("Stripe event received", "event_id", event.ID, "type", event.Type)

	switch event.Type {
	case stripe.EventTypePaymentIntentSucceeded:
		var pi stripe.PaymentIntent
		if err := json.Unmarshal(event.Data.Raw, &pi); err != nil {
			h.log.Error("Failed to parse PaymentIntent from event", "event_id", event.ID, "error", err)
			h.writeError(w, apperrors.InvalidInput("invalid payment intent payload"))
			return
		}

		if err := h.reconciler.ReconcileIntent(r.Context(), gateway.FromStripe(&pi)); err != nil {
			appErr := apperrors.AsAppError(err)
			if appErr.StatusCode() >= http.StatusInternalServerError {
				h.log.Error("Failed to reconcile payment intent", "event_id", event.ID, "payment_intent_id", pi.ID, "error", err)
				h.writeError(w, appErr)
				return
			}
			h.log.Warn("Payment intent not recorded", "event_id", event.ID, "payment_intent_id", pi.ID, "code", appErr.Code, "error", err)
		}
	default:
		h.log.Debug("Ignoring Stripe event", "type", event.Type)
	}

	if err := httputil.WriteSuccess(w, webhookResponse{Received: true}); err != nil {
		h.log.Error("failed to write success response", "handler", "Webhook", "operation", "WriteSuccess", "error", err)
	}
}

func (h *WebhookHandler) writeError(w http.ResponseWriter, err error) {
	if writeErr := httputil.WriteError(w, err); writeErr != nil {
		h.log.Error("failed to write error response", "handler", "Webhook", "operation", "WriteError", "error", writeErr)
	}
}

func (h *WebhookHandler) RegisterRoutes(router *httprouter.Router) {
	router.POST(WebhookPath, h.Handle)
}
