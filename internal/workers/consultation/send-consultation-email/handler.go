// internal/workers/consultation/send-consultation-email/handler.go
package sendconsultationemail

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"

	apperrors "consult-intake/internal/common/errors"
	"consult-intake/internal/common/logger"
	"consult-intake/internal/common/metrics"
	"consult-intake/internal/models"
	"consult-intake/internal/notification/render"
	"consult-intake/internal/repository"
)

const (
	TaskType = "send-consultation-email"
)

// SESService is the part of the SES client the worker uses.
type SESService interface {
	SendRawEmail(ctx context.Context, params *ses.SendRawEmailInput, optFns ...func(*ses.Options)) (*ses.SendRawEmailOutput, error)
}

type Records interface {
	FindByID(ctx context.Context, id string) (*models.SubmittedRecord, error)
	MarkConfirmationSent(ctx context.Context, id string) error
}

type Handler struct {
	config       *Config
	records      Records
	sesClient    SESService
	errorHandler *apperrors.ErrorHandler
	logger       logger.Logger
	now          func() time.Time
}

func NewHandler(config *Config, records Records, sesClient SESService, log logger.Logger) *Handler {
	log = log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:       config,
		records:      records,
		sesClient:    sesClient,
		errorHandler: apperrors.NewErrorHandler(log),
		logger:       log,
		now:          time.Now,
	}
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) error {
	start := time.Now()
	h.logger.Info("processing job", map[string]interface{}{
		"jobKey":      job.Key,
		"workflowKey": job.ProcessInstanceKey,
	})

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	var input Input
	if err := json.Unmarshal([]byte(job.Variables), &input); err != nil {
		return h.fail(ctx, client, job, apperrors.NewInvalidJobInputError(fmt.Sprintf("parse input: %v", err)))
	}

	output, err := h.execute(ctx, &input)
	if err != nil {
		return h.fail(ctx, client, job, err)
	}

	metrics.WorkerJobDuration.WithLabelValues(TaskType).Observe(time.Since(start).Seconds())
	return h.completeJob(ctx, client, job, output)
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	return h.execute(ctx, input)
}

// Name and Run let the in-process dispatcher drive the handler without a broker.
func (h *Handler) Name() string { return TaskType }

func (h *Handler) Run(ctx context.Context, req models.NotificationRequest) error {
	_, err := h.execute(ctx, &Input{ConsultationID: req.ConsultationID, ConfirmedVia: req.ConfirmedVia})
	return err
}

func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	if input.ConsultationID == "" {
		return nil, apperrors.NewInvalidJobInputError("consultationId is required")
	}
	out := &Output{ConsultationID: input.ConsultationID}
	log := logger.FromContext(ctx, h.logger).WithFields(map[string]interface{}{"consultationId": input.ConsultationID})

	if !h.config.Enabled {
		out.EmailStatus = StatusDisabled
		return out, nil
	}

	rec, err := h.records.FindByID(ctx, input.ConsultationID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.NewRecordNotFoundError(input.ConsultationID)
	}
	if err != nil {
		return nil, apperrors.NewRecordQueryFailedError("find", err)
	}
	if !rec.IsPaid() {
		return nil, apperrors.NewInvalidJobInputError("consultation is not paid: " + input.ConsultationID)
	}
	if rec.ConfirmationSent {
		log.Info("Confirmation already sent, skipping", nil)
		out.EmailStatus = StatusAlreadySent
		return out, nil
	}

	opsID, err := h.sendOpsEmail(ctx, rec)
	if err != nil {
		return nil, apperrors.NewNotificationSendFailedError("email", err)
	}
	out.OpsMessageID = opsID

	// A failed patient copy does not fail the job.
	if patientID, err := h.sendPatientEmail(ctx, rec); err != nil {
		log.Warn("Patient confirmation email failed", map[string]interface{}{"error": err})
	} else {
		out.PatientMessageID = patientID
	}

	if err := h.records.MarkConfirmationSent(ctx, rec.ID); err != nil {
		return nil, apperrors.NewRecordUpdateFailedError(rec.ID, err)
	}

	out.EmailStatus = StatusSent
	out.SentAt = h.now().UTC().Format(time.RFC3339)
	log.Info("Consultation email sent", map[string]interface{}{
		"numeroDossier": rec.NumeroDossier,
		"opsMessageId":  opsID,
	})
	return out, nil
}

func (h *Handler) sendOpsEmail(ctx context.Context, rec *models.SubmittedRecord) (string, error) {
	email, err := render.Render(rec)
	if err != nil {
		return "", err
	}
	return h.send(ctx, models.EmailMessage{
		From:     h.config.FromEmail,
		To:       []string{h.config.OpsRecipient},
		Subject:  "Nouvelle demande – " + rec.NomPrenom,
		TextBody: email.Text,
		HTMLBody: email.HTML,
		Attachments: []models.Attachment{{
			Filename:    fmt.Sprintf("consultation-%s.csv", rec.NumeroDossier),
			ContentType: "text/csv",
			Data:        email.CSV,
		}},
	})
}

func (h *Handler) sendPatientEmail(ctx context.Context, rec *models.SubmittedRecord) (string, error) {
	body := fmt.Sprintf(`Bonjour,

Nous avons bien reçu votre demande et votre paiement.
Numéro de dossier : %s

Un médecin va étudier votre demande. Pour toute question, écrivez-nous à %s en rappelant votre numéro de dossier.

L'équipe Consult-Chrono`, rec.NumeroDossier, h.config.SupportEmail)

	return h.send(ctx, models.EmailMessage{
		From:     h.config.FromEmail,
		To:       []string{rec.Email},
		Subject:  "Confirmation de votre demande " + rec.NumeroDossier,
		TextBody: body,
	})
}

func (h *Handler) send(ctx context.Context, msg models.EmailMessage) (string, error) {
	raw, err := buildRawMessage(msg)
	if err != nil {
		return "", fmt.Errorf("build message: %w", err)
	}
	resp, err := h.sesClient.SendRawEmail(ctx, &ses.SendRawEmailInput{
		RawMessage:   &types.RawMessage{Data: raw},
		Source:       aws.String(msg.From),
		Destinations: msg.To,
	})
	if err != nil {
		return "", err
	}
	return aws.ToString(resp.MessageId), nil
}

func (h *Handler) completeJob(ctx context.Context, client worker.JobClient, job entities.Job, output *Output) error {
	cmd, err := client.NewCompleteJobCommand().
		JobKey(job.Key).
		VariablesFromObject(output)
	if err != nil {
		h.logger.Error("failed to create complete job command", map[string]interface{}{"error": err})
		return err
	}
	if _, err := cmd.Send(ctx); err != nil {
		h.logger.Error("failed to send complete job command", map[string]interface{}{"error": err})
		return err
	}
	metrics.WorkerJobsCompleted.WithLabelValues(TaskType).Inc()
	return nil
}

func (h *Handler) fail(ctx context.Context, client worker.JobClient, job entities.Job, err error) error {
	metrics.WorkerJobsFailed.WithLabelValues(TaskType, string(apperrors.Normalize(err).Code)).Inc()
	h.errorHandler.HandleJobError(ctx, client, job, err)
	return err
}
