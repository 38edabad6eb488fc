// Package submission hands a completed wizard record to the record store and
// the payment provider, in that order.
package submission

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"consult-intake/internal/common/config"
	apperrors "consult-intake/internal/common/errors"
	"consult-intake/internal/common/logger"
	"consult-intake/internal/common/metrics"
	"consult-intake/internal/common/observability"
	"consult-intake/internal/common/payment"
	"consult-intake/internal/intake/steps"
	"consult-intake/internal/intake/wizard"
	"consult-intake/internal/models"
)

// UserMessage is the single retryable message shown for any submission failure.
const UserMessage = "Une erreur s'est produite. Veuillez réessayer."

// RecordInserter is the slice of the record store submission needs.
type RecordInserter interface {
	Insert(ctx context.Context, c *models.Consultation) (string, error)
}

type Service struct {
	table   *steps.Table
	records RecordInserter
	gateway payment.Gateway
	cfg     config.PaymentConfig
	obs     *observability.Observability
	logger  logger.Logger
}

func NewService(table *steps.Table, records RecordInserter, gateway payment.Gateway, cfg config.PaymentConfig, obs *observability.Observability, log logger.Logger) *Service {
	return &Service{
		table:   table,
		records: records,
		gateway: gateway,
		cfg:     cfg,
		obs:     obs,
		logger:  log.WithFields(map[string]interface{}{"component": "submission"}),
	}
}

// Submit persists rec as a pending consultation and opens a checkout session
// correlated by the new record's id. A record-store failure aborts before the
// provider is contacted. A provider failure leaves the pending record without
// a payment reference.
func (s *Service) Submit(ctx context.Context, rec models.FormRecord) (*wizard.Handoff, error) {
	start := time.Now()
	ctx, span := s.obs.StartSpan(ctx, "submission.submit")
	defer span.End()
	log := logger.FromContext(ctx, s.logger)

	result := "success"
	defer func() {
		metrics.Submissions.WithLabelValues(result).Inc()
		s.obs.RecordSubmission(ctx, time.Since(start), result)
	}()

	c, err := s.table.Assemble(rec)
	if err != nil {
		result = "incomplete"
		span.SetStatus(codes.Error, err.Error())
		log.Error("Completed record is missing steps", map[string]interface{}{"error": err})
		return nil, apperrors.NewRecordInsertFailedError(err)
	}

	id, err := s.records.Insert(ctx, c)
	if err != nil {
		result = "insert_failed"
		span.SetStatus(codes.Error, err.Error())
		log.Error("Failed to insert consultation", map[string]interface{}{"error": err})
		return nil, apperrors.NewRecordInsertFailedError(err)
	}
	span.SetAttributes(attribute.String("consultation.id", id))
	log = log.WithFields(map[string]interface{}{"consultationId": id})

	session, err := s.gateway.CreateSession(ctx, payment.SessionRequest{
		CorrelationID: id,
		AmountCents:   s.cfg.AmountCents,
		Currency:      s.cfg.Currency,
		ProductName:   s.cfg.ProductName,
		CustomerEmail: c.Email,
		SuccessURL:    s.cfg.SuccessURL,
		CancelURL:     s.cfg.CancelURL,
	})
	if err != nil {
		result = "session_failed"
		span.SetStatus(codes.Error, err.Error())
		log.Error("Failed to create payment session, record left pending", map[string]interface{}{"error": err})
		return nil, apperrors.NewPaymentSessionFailedError(id, err)
	}

	log.Info("Consultation submitted", map[string]interface{}{
		"checkoutSessionId": session.ID,
		"numeroDossier":     models.NumeroDossierFor(id),
	})
	return &wizard.Handoff{ConsultationID: id, RedirectURL: session.RedirectURL}, nil
}
