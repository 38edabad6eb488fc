// Package reconciliation confirms a consultation's payment when the user is
// sent back from the hosted checkout page.
package reconciliation

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"consult-intake/internal/common/config"
	"consult-intake/internal/common/logger"
	"consult-intake/internal/common/metrics"
	"consult-intake/internal/common/observability"
	"consult-intake/internal/models"
	"consult-intake/internal/notification"
	"consult-intake/internal/repository"
)

type State string

const (
	StateChecking  State = "checking"
	StateConfirmed State = "confirmed"
	StateFailed    State = "failed"
)

// Path tells which branch produced the terminal state.
type Path string

const (
	PathWebhook      Path = "webhook"
	PathFallback     Path = "fallback"
	PathNotFound     Path = "not_found"
	PathUpdateFailed Path = "update_failed"
	PathLookupFailed Path = "lookup_failed"
	PathCancelled    Path = "cancelled"
)

type Outcome struct {
	State          State  `json:"state"`
	Path           Path   `json:"path"`
	ConsultationID string `json:"consultationId"`
	SupportEmail   string `json:"supportEmail,omitempty"`
}

// Records is the slice of the record store reconciliation needs.
type Records interface {
	FindByID(ctx context.Context, id string) (*models.SubmittedRecord, error)
	MarkPaid(ctx context.Context, id string, paymentRef *string, via models.ConfirmedVia) (bool, error)
}

// WaitFunc blocks for d or until ctx is done.
type WaitFunc func(ctx context.Context, d time.Duration) error

type Service struct {
	records      Records
	dispatcher   notification.Dispatcher
	grace        time.Duration
	supportEmail string
	wait         WaitFunc
	obs          *observability.Observability
	logger       logger.Logger
}

type Option func(*Service)

// WithWait replaces the grace-period timer.
func WithWait(w WaitFunc) Option {
	return func(s *Service) { s.wait = w }
}

func NewService(records Records, dispatcher notification.Dispatcher, cfg config.ReconciliationConfig, supportEmail string, obs *observability.Observability, log logger.Logger, opts ...Option) *Service {
	s := &Service{
		records:      records,
		dispatcher:   dispatcher,
		grace:        config.GetDuration(cfg.GracePeriod),
		supportEmail: supportEmail,
		wait:         wait,
		obs:          obs,
		logger:       log.WithFields(map[string]interface{}{"component": "reconciliation"}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func wait(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Reconcile runs the single-shot check for consultationID: read, wait the
// grace period, re-read, then at most one guarded fallback update. It never
// returns an error; failures are terminal outcomes carrying the support email.
func (s *Service) Reconcile(ctx context.Context, consultationID string) *Outcome {
	start := time.Now()
	ctx, span := s.obs.StartSpan(ctx, "reconciliation.reconcile", attribute.String("consultation.id", consultationID))
	defer span.End()
	log := logger.FromContext(ctx, s.logger).WithFields(map[string]interface{}{"consultationId": consultationID})

	out := s.reconcile(ctx, consultationID, log)
	if out.State == StateFailed {
		out.SupportEmail = s.supportEmail
	}

	span.SetAttributes(attribute.String("reconciliation.state", string(out.State)), attribute.String("reconciliation.path", string(out.Path)))
	metrics.ReconciliationOutcomes.WithLabelValues(string(out.State), string(out.Path)).Inc()
	s.obs.RecordReconciliation(ctx, time.Since(start), string(out.State), string(out.Path))
	log.Info("Reconciliation finished", map[string]interface{}{
		"state": string(out.State),
		"path":  string(out.Path),
	})
	return out
}

func (s *Service) reconcile(ctx context.Context, id string, log logger.Logger) *Outcome {
	result := func(state State, path Path) *Outcome {
		return &Outcome{State: state, Path: path, ConsultationID: id}
	}

	rec, path := s.read(ctx, id, log)
	if rec == nil {
		return result(StateFailed, path)
	}
	if rec.IsPaid() {
		return result(StateConfirmed, PathWebhook)
	}

	if err := s.wait(ctx, s.grace); err != nil {
		log.Warn("Grace period interrupted", map[string]interface{}{"error": err})
		return result(StateFailed, PathCancelled)
	}

	rec, path = s.read(ctx, id, log)
	if rec == nil {
		return result(StateFailed, path)
	}
	if rec.IsPaid() {
		return result(StateConfirmed, PathWebhook)
	}

	flipped, err := s.records.MarkPaid(ctx, id, nil, models.ViaFallback)
	if err != nil {
		log.Error("Fallback update failed", map[string]interface{}{"error": err})
		return result(StateFailed, PathUpdateFailed)
	}
	if flipped {
		s.dispatch(ctx, id, log)
		return result(StateConfirmed, PathFallback)
	}

	// Zero rows: either a webhook won the race or the row went away.
	rec, path = s.read(ctx, id, log)
	switch {
	case rec == nil:
		return result(StateFailed, path)
	case rec.IsPaid():
		return result(StateConfirmed, PathWebhook)
	default:
		return result(StateFailed, PathUpdateFailed)
	}
}

func (s *Service) read(ctx context.Context, id string, log logger.Logger) (*models.SubmittedRecord, Path) {
	rec, err := s.records.FindByID(ctx, id)
	switch {
	case err == nil:
		return rec, ""
	case errors.Is(err, repository.ErrNotFound):
		log.Warn("Consultation not found", nil)
		return nil, PathNotFound
	default:
		log.Error("Consultation lookup failed", map[string]interface{}{"error": err})
		return nil, PathLookupFailed
	}
}

func (s *Service) dispatch(ctx context.Context, id string, log logger.Logger) {
	if s.dispatcher == nil {
		return
	}
	if err := s.dispatcher.Dispatch(ctx, id, models.ViaFallback); err != nil {
		log.Error("Notification dispatch failed after fallback confirmation", map[string]interface{}{"error": err})
	}
}
