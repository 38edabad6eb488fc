// Package webhook applies verified payment provider events to the record store.
package webhook

import (
	"context"

	apperrors "consult-intake/internal/common/errors"
	"consult-intake/internal/common/logger"
	"consult-intake/internal/common/metrics"
	"consult-intake/internal/common/payment"
	"consult-intake/internal/models"
	"consult-intake/internal/notification"
)

// Records is the slice of the record store the webhook needs.
type Records interface {
	MarkPaid(ctx context.Context, id string, paymentRef *string, via models.ConfirmedVia) (bool, error)
}

// Result describes what a delivery did. Replays and ignored types are not errors.
type Result struct {
	EventType      payment.EventType `json:"eventType"`
	ConsultationID string            `json:"consultationId,omitempty"`
	Transitioned   bool              `json:"transitioned"`
}

type Service struct {
	gateway    payment.Gateway
	records    Records
	dispatcher notification.Dispatcher
	logger     logger.Logger
}

func NewService(gateway payment.Gateway, records Records, dispatcher notification.Dispatcher, log logger.Logger) *Service {
	return &Service{
		gateway:    gateway,
		records:    records,
		dispatcher: dispatcher,
		logger:     log.WithFields(map[string]interface{}{"component": "payment-webhook"}),
	}
}

// Handle verifies payload and, for a completed checkout, flips the correlated
// record from pending to done. The notification is dispatched only when this
// delivery performed the flip.
func (s *Service) Handle(ctx context.Context, payload []byte, signature string) (*Result, error) {
	log := logger.FromContext(ctx, s.logger)

	event, err := s.gateway.ParseEvent(payload, signature)
	if err != nil {
		metrics.PaymentWebhookEvents.WithLabelValues("unknown", "invalid").Inc()
		log.Warn("Rejected payment event", map[string]interface{}{"error": err})
		return nil, apperrors.NewPaymentEventInvalidError(err.Error())
	}
	log = log.WithFields(map[string]interface{}{
		"eventId":        event.ID,
		"providerType":   event.ProviderType,
		"consultationId": event.CorrelationID,
	})
	res := &Result{EventType: event.Type, ConsultationID: event.CorrelationID}

	switch event.Type {
	case payment.EventCompleted:
	case payment.EventFailed:
		metrics.PaymentWebhookEvents.WithLabelValues(string(event.Type), "recorded").Inc()
		log.Warn("Payment failed", nil)
		return res, nil
	default:
		metrics.PaymentWebhookEvents.WithLabelValues(string(event.Type), "ignored").Inc()
		log.Debug("Ignoring payment event", nil)
		return res, nil
	}

	if event.CorrelationID == "" {
		metrics.PaymentWebhookEvents.WithLabelValues(string(event.Type), "invalid").Inc()
		return nil, apperrors.NewPaymentEventInvalidError("completed event carries no consultation id")
	}

	var ref *string
	if event.PaymentReference != "" {
		ref = &event.PaymentReference
	}
	flipped, err := s.records.MarkPaid(ctx, event.CorrelationID, ref, models.ViaWebhook)
	if err != nil {
		metrics.PaymentWebhookEvents.WithLabelValues(string(event.Type), "error").Inc()
		log.Error("Failed to mark consultation paid", map[string]interface{}{"error": err})
		return nil, apperrors.NewRecordUpdateFailedError(event.CorrelationID, err)
	}
	res.Transitioned = flipped
	if !flipped {
		metrics.PaymentWebhookEvents.WithLabelValues(string(event.Type), "replay").Inc()
		log.Info("Consultation already paid or unknown, nothing to do", nil)
		return res, nil
	}

	metrics.PaymentWebhookEvents.WithLabelValues(string(event.Type), "applied").Inc()
	log.Info("Consultation marked paid", map[string]interface{}{"confirmedVia": string(models.ViaWebhook)})
	if s.dispatcher != nil {
		if err := s.dispatcher.Dispatch(ctx, event.CorrelationID, models.ViaWebhook); err != nil {
			log.Error("Notification dispatch failed", map[string]interface{}{"error": err})
		}
	}
	return res, nil
}

// IsInvalid reports whether err came from a bad signature or payload.
func IsInvalid(err error) bool {
	return apperrors.HasCode(err, apperrors.ErrCodePaymentEventInvalid)
}
