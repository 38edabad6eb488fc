package main

import (
	"context"
	"time"

	"go.uber.org/zap"

	"consult-intake/internal/api"
	awsclient "consult-intake/internal/common/aws"
	"consult-intake/internal/common/camunda"
	"consult-intake/internal/common/config"
	"consult-intake/internal/common/database"
	"consult-intake/internal/common/logger"
	"consult-intake/internal/notification"
	"consult-intake/internal/repository"
	arf "consult-intake/internal/workers/consultation/alert-risk-factors"
	ic "consult-intake/internal/workers/consultation/index-consultation"
	sce "consult-intake/internal/workers/consultation/send-consultation-email"
)

// workerHandler is what both the broker and the in-process dispatcher drive.
type workerHandler interface {
	camunda.JobHandler
	notification.Task
}

// notifications owns the dispatcher and, with Camunda enabled, the broker
// connection and its job workers.
type notifications struct {
	dispatcher notification.Dispatcher
	client     *camunda.Client
	workers    []*camunda.Worker
	log        *zap.Logger
}

func newNotifications(ctx context.Context, cfg *config.Config, repo *repository.ConsultationRepository, es *database.ElasticsearchClient, zapLog *zap.Logger, log logger.Logger) (*notifications, error) {
	awsCfg, err := awsclient.LoadConfig(ctx, cfg.Notifications.AWSRegion)
	if err != nil {
		return nil, err
	}

	var indexer ic.Indexer
	if es != nil {
		indexer = es
	}
	handlers := map[string]workerHandler{
		sce.TaskType: sce.NewHandler(sce.LoadConfig(cfg), repo, awsclient.NewSESClient(awsCfg), log),
		ic.TaskType:  ic.NewHandler(ic.LoadConfig(cfg), repo, indexer, log),
		arf.TaskType: arf.NewHandler(arf.LoadConfig(cfg), repo, awsclient.NewSNSClient(awsCfg), log),
	}
	order := []string{sce.TaskType, ic.TaskType, arf.TaskType}

	n := &notifications{log: zapLog}

	if !cfg.Camunda.Enabled {
		var tasks []notification.Task
		for _, taskType := range order {
			if !config.IsWorkerEnabled(cfg, taskType) {
				zapLog.Info("worker disabled", zap.String("taskType", taskType))
				continue
			}
			tasks = append(tasks, handlers[taskType])
		}
		n.dispatcher = notification.NewInlineDispatcher(log, tasks...)
		zapLog.Info("Camunda disabled, notification tasks run in process", zap.Int("tasks", len(tasks)))
		return n, nil
	}

	err = retryWithBackoff(func() error {
		var err error
		n.client, err = camunda.Connect(ctx, cfg.Camunda, log)
		return err
	}, 10, 2*time.Second, zapLog, "Zeebe client initialization")
	if err != nil {
		return nil, err
	}
	zapLog.Info("Zeebe client connected successfully")

	for _, taskType := range order {
		if !config.IsWorkerEnabled(cfg, taskType) {
			zapLog.Info("worker disabled", zap.String("taskType", taskType))
			continue
		}
		wcfg := config.GetWorkerConfig(cfg, taskType)
		n.workers = append(n.workers, camunda.NewWorker(n.client.Zeebe(), taskType, wcfg, handlers[taskType], log))
	}
	zapLog.Info("Workers registered", zap.Int("count", len(n.workers)))

	n.dispatcher = notification.NewProcessDispatcher(n.client, cfg.Camunda.ProcessID, log)
	return n, nil
}

func (n *notifications) Dispatcher() notification.Dispatcher {
	return n.dispatcher
}

// HealthCheck is nil when no broker is in use.
func (n *notifications) HealthCheck() api.Check {
	if n.client == nil {
		return nil
	}
	return n.client.HealthCheck
}

func (n *notifications) Close() {
	for _, w := range n.workers {
		w.Stop()
	}
	if n.client != nil {
		if err := n.client.Close(); err != nil {
			n.log.Error("Error closing Zeebe client", zap.Error(err))
		}
	}
}
