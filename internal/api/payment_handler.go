package api

import (
	"context"
	"errors"
	"io"
	"net/http"

	"consult-intake/internal/common/logger"
	"consult-intake/internal/common/payment"
	"consult-intake/internal/intake/reconciliation"
	"consult-intake/internal/intake/webhook"
)

// SignatureHeader carries the provider's webhook signature.
const SignatureHeader = "Stripe-Signature"

type Reconciler interface {
	Reconcile(ctx context.Context, consultationID string) *reconciliation.Outcome
}

type WebhookProcessor interface {
	Handle(ctx context.Context, payload []byte, signature string) (*webhook.Result, error)
}

type PaymentHandler struct {
	reconciler Reconciler
	webhooks   WebhookProcessor
	logger     logger.Logger
}

func NewPaymentHandler(reconciler Reconciler, webhooks WebhookProcessor, log logger.Logger) *PaymentHandler {
	return &PaymentHandler{
		reconciler: reconciler,
		webhooks:   webhooks,
		logger:     log.WithFields(map[string]interface{}{"component": "payment-api"}),
	}
}

type webhookResponse struct {
	Received       bool              `json:"received"`
	Type           payment.EventType `json:"type"`
	ConsultationID string            `json:"consultationId,omitempty"`
	Transitioned   bool              `json:"transitioned"`
}

// Return runs reconciliation for the user coming back from checkout. Business
// outcomes, including failures, are always 200.
func (h *PaymentHandler) Return(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("consultation_id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing_consultation_id", "consultation_id is required")
		return
	}
	writeJSON(w, http.StatusOK, h.reconciler.Reconcile(r.Context(), id))
}

// Webhook hands the raw signed body to the webhook collaborator. Store
// failures answer 500 so the provider redelivers.
func (h *PaymentHandler) Webhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(r.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			badBody(w, err)
			return
		}
		writeError(w, http.StatusBadRequest, "invalid_body", "unreadable request body")
		return
	}

	res, err := h.webhooks.Handle(r.Context(), payload, r.Header.Get(SignatureHeader))
	if err != nil {
		if webhook.IsInvalid(err) {
			writeError(w, http.StatusBadRequest, "invalid_event", "payment event rejected")
			return
		}
		logger.FromContext(r.Context(), h.logger).Error("Webhook processing failed", map[string]interface{}{"error": err})
		writeError(w, http.StatusInternalServerError, "processing_failed", "payment event not processed")
		return
	}
	writeJSON(w, http.StatusOK, webhookResponse{
		Received:       true,
		Type:           res.EventType,
		ConsultationID: res.ConsultationID,
		Transitioned:   res.Transitioned,
	})
}
