package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Job worker metrics.
var (
	WorkerJobsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_completed_total",
			Help: "Total number of jobs completed by worker",
		},
		[]string{"task_type"},
	)

	WorkerJobsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_failed_total",
			Help: "Total number of jobs failed by worker",
		},
		[]string{"task_type", "error_code"},
	)

	WorkerJobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "worker_job_duration_seconds",
			Help: "Duration of job processing in seconds",
		},
		[]string{"task_type"},
	)

	WorkerJobsActive = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "worker_jobs_active",
			Help: "Number of active jobs per worker",
		},
		[]string{"task_type"},
	)
)

// Intake metrics.
var (
	WizardStepTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wizard_step_transitions_total",
			Help: "Wizard transitions by direction (next, prev) and result",
		},
		[]string{"direction", "result"},
	)

	DraftStoreErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "draft_store_errors_total",
			Help: "Draft slot operations that failed and were swallowed",
		},
		[]string{"op"},
	)

	DraftsDiscarded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "draft_snapshots_discarded_total",
			Help: "Draft snapshots dropped on load",
		},
		[]string{"reason"},
	)

	Submissions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "submissions_total",
			Help: "Final-step submissions by result",
		},
		[]string{"result"},
	)

	ReconciliationOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reconciliation_outcomes_total",
			Help: "Payment return reconciliations by terminal state and path",
		},
		[]string{"state", "path"},
	)

	PaymentWebhookEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_webhook_events_total",
			Help: "Payment provider events by type and result",
		},
		[]string{"type", "result"},
	)

	NotificationDispatches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notification_dispatches_total",
			Help: "Paid-consultation notification dispatches by mode and result",
		},
		[]string{"mode", "result"},
	)
)
