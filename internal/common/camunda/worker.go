// internal/common/camunda/worker.go
package camunda

import (
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/camunda/zeebe/clients/go/v8/pkg/zbc"

	"consult-intake/internal/common/config"
	"consult-intake/internal/common/logger"
	"consult-intake/internal/common/metrics"
)

// JobHandler must return an error (required by Zeebe client)
type JobHandler interface {
	Handle(client worker.JobClient, job entities.Job) error
}

// Worker is one open job subscription. Closing it leaves the shared client open.
type Worker struct {
	worker   worker.JobWorker
	logger   logger.Logger
	taskType string
}

// NewWorker opens a job worker for taskType using the per-worker settings.
func NewWorker(zb zbc.Client, taskType string, cfg config.WorkerConfig, handler JobHandler, log logger.Logger) *Worker {
	log = log.WithFields(map[string]interface{}{"taskType": taskType})

	jobWorker := zb.NewJobWorker().
		JobType(taskType).
		Handler(func(client worker.JobClient, job entities.Job) {
			metrics.WorkerJobsActive.WithLabelValues(taskType).Inc()
			defer metrics.WorkerJobsActive.WithLabelValues(taskType).Dec()

			if err := handler.Handle(client, job); err != nil {
				log.Error("Handler returned error", map[string]interface{}{"jobKey": job.Key, "error": err})
			}
		}).
		MaxJobsActive(cfg.MaxJobsActive).
		Timeout(config.GetDuration(cfg.Timeout) + 5*time.Second).
		Name("consult-intake").
		Open()

	log.Info("Worker started", map[string]interface{}{"maxJobsActive": cfg.MaxJobsActive})
	return &Worker{worker: jobWorker, logger: log, taskType: taskType}
}

func (w *Worker) TaskType() string {
	return w.taskType
}

func (w *Worker) Stop() {
	w.logger.Info("Stopping worker", nil)
	w.worker.Close()
	w.worker.AwaitClose()
}
