// internal/workers/consultation/alert-risk-factors/handler.go
package alertriskfactors

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sns/types"
	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"

	apperrors "consult-intake/internal/common/errors"
	"consult-intake/internal/common/logger"
	"consult-intake/internal/common/metrics"
	"consult-intake/internal/models"
	"consult-intake/internal/repository"
)

const (
	TaskType = "alert-risk-factors"
)

type SNSService interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

type Records interface {
	FindByID(ctx context.Context, id string) (*models.SubmittedRecord, error)
}

type Handler struct {
	config       *Config
	records      Records
	snsClient    SNSService
	errorHandler *apperrors.ErrorHandler
	logger       logger.Logger
}

func NewHandler(config *Config, records Records, snsClient SNSService, log logger.Logger) *Handler {
	log = log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:       config,
		records:      records,
		snsClient:    snsClient,
		errorHandler: apperrors.NewErrorHandler(log),
		logger:       log,
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

func (h *Handler) Name() string { return TaskType }

func (h *Handler) Run(ctx context.Context, req models.NotificationRequest) error {
	_, err := h.execute(ctx, &Input{ConsultationID: req.ConsultationID})
	return err
}

func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	if input.ConsultationID == "" {
		return nil, apperrors.NewInvalidJobInputError("consultationId is required")
	}
	out := &Output{ConsultationID: input.ConsultationID}
	if !h.config.Enabled {
		return out, nil
	}

	rec, err := h.records.FindByID(ctx, input.ConsultationID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.NewRecordNotFoundError(input.ConsultationID)
	}
	if err != nil {
		return nil, apperrors.NewRecordQueryFailedError("find", err)
	}
	if !rec.FacteursRisque {
		return out, nil
	}

	alert := Alert{
		ConsultationID: rec.ID,
		NumeroDossier:  rec.NumeroDossier,
		NomPrenom:      rec.NomPrenom,
		Maladie:        rec.MaladiePresumee,
		RiskFactors:    rec.FacteursRisqueDetails,
	}
	if rec.ConfirmedVia != nil {
		alert.ConfirmedVia = string(*rec.ConfirmedVia)
	}
	body, err := json.Marshal(alert)
	if err != nil {
		return nil, apperrors.NewAlertPublishFailedError(err)
	}

	resp, err := h.snsClient.Publish(ctx, &sns.PublishInput{
		TopicArn: aws.String(h.config.TopicARN),
		Subject:  aws.String("Facteurs de risque – " + rec.NumeroDossier),
		Message:  aws.String(string(body)),
		MessageAttributes: map[string]types.MessageAttributeValue{
			"numeroDossier": {DataType: aws.String("String"), StringValue: aws.String(rec.NumeroDossier)},
		},
	})
	if err != nil {
		return nil, apperrors.NewAlertPublishFailedError(err)
	}

	h.logger.Warn("Risk factors reported", map[string]interface{}{
		"consultationId": rec.ID,
		"riskFactors":    len(rec.FacteursRisqueDetails),
	})
	out.Published = true
	out.MessageID = aws.ToString(resp.MessageId)
	return out, nil
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
