// Package notification starts the post-payment work for a paid consultation:
// the ops email, the support index entry and the risk alert.
package notification

import (
	"context"
	"fmt"

	"consult-intake/internal/common/logger"
	"consult-intake/internal/common/metrics"
	"consult-intake/internal/models"
)

// Dispatcher hands a paid consultation to the notification tasks.
type Dispatcher interface {
	Dispatch(ctx context.Context, consultationID string, via models.ConfirmedVia) error
}

// ProcessStarter creates a workflow instance; camunda.Client implements it.
type ProcessStarter interface {
	CreateProcessInstance(ctx context.Context, processID string, variables map[string]interface{}) (int64, error)
}

// ProcessDispatcher starts one BPMN process instance per paid consultation.
// The job workers pick the tasks up from the broker.
type ProcessDispatcher struct {
	starter   ProcessStarter
	processID string
	logger    logger.Logger
}

func NewProcessDispatcher(starter ProcessStarter, processID string, log logger.Logger) *ProcessDispatcher {
	return &ProcessDispatcher{
		starter:   starter,
		processID: processID,
		logger:    log.WithFields(map[string]interface{}{"component": "process-dispatcher"}),
	}
}

func (d *ProcessDispatcher) Dispatch(ctx context.Context, consultationID string, via models.ConfirmedVia) error {
	req := models.NotificationRequest{ConsultationID: consultationID, ConfirmedVia: string(via)}
	key, err := d.starter.CreateProcessInstance(ctx, d.processID, map[string]interface{}{
		"consultationId": req.ConsultationID,
		"confirmedVia":   req.ConfirmedVia,
	})
	if err != nil {
		metrics.NotificationDispatches.WithLabelValues("process", "error").Inc()
		return fmt.Errorf("start %s for %s: %w", d.processID, consultationID, err)
	}
	metrics.NotificationDispatches.WithLabelValues("process", "started").Inc()
	logger.FromContext(ctx, d.logger).Info("Notification process started", map[string]interface{}{
		"consultationId":     consultationID,
		"processInstanceKey": key,
	})
	return nil
}

// Task is one notification step that can run without the workflow engine.
type Task interface {
	Name() string
	Run(ctx context.Context, req models.NotificationRequest) error
}

// InlineDispatcher runs every task in order in the calling goroutine. A
// failing task is logged and the remaining tasks still run; the first error
// is returned.
type InlineDispatcher struct {
	tasks  []Task
	logger logger.Logger
}

func NewInlineDispatcher(log logger.Logger, tasks ...Task) *InlineDispatcher {
	return &InlineDispatcher{
		tasks:  tasks,
		logger: log.WithFields(map[string]interface{}{"component": "inline-dispatcher"}),
	}
}

func (d *InlineDispatcher) Dispatch(ctx context.Context, consultationID string, via models.ConfirmedVia) error {
	req := models.NotificationRequest{ConsultationID: consultationID, ConfirmedVia: string(via)}
	log := logger.FromContext(ctx, d.logger).WithFields(map[string]interface{}{"consultationId": consultationID})

	var firstErr error
	for _, task := range d.tasks {
		if err := task.Run(ctx, req); err != nil {
			log.Error("Notification task failed", map[string]interface{}{"task": task.Name(), "error": err})
			if firstErr == nil {
				firstErr = fmt.Errorf("%s: %w", task.Name(), err)
			}
			continue
		}
		log.Debug("Notification task done", map[string]interface{}{"task": task.Name()})
	}

	result := "ok"
	if firstErr != nil {
		result = "error"
	}
	metrics.NotificationDispatches.WithLabelValues("inline", result).Inc()
	return firstErr
}

// Detached runs Dispatch on a context that survives the caller's cancellation,
// so an HTTP response is not held back by the notification tasks.
type Detached struct {
	next   Dispatcher
	logger logger.Logger
}

func NewDetached(next Dispatcher, log logger.Logger) *Detached {
	return &Detached{next: next, logger: log}
}

func (d *Detached) Dispatch(ctx context.Context, consultationID string, via models.ConfirmedVia) error {
	bg := context.WithoutCancel(ctx)
	go func() {
		if err := d.next.Dispatch(bg, consultationID, via); err != nil {
			logger.FromContext(bg, d.logger).Error("Detached notification dispatch failed", map[string]interface{}{
				"consultationId": consultationID,
				"error":          err,
			})
		}
	}()
	return nil
}
