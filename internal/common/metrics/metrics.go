package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

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

	OrderOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "order_operations_total",
			Help: "Coordinator operations by family, operation and outcome code",
		},
		[]string{"family", "operation", "outcome"},
	)

	OrphanedApplications = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "order_orphaned_applications_total",
			Help: "Applications left without an owning order after a conflicting create",
		},
		[]string{"family"},
	)

	CompensatedApplications = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "order_compensated_applications_total",
			Help: "Orphaned applications removed by a compensating delete",
		},
		[]string{"family"},
	)

	NotificationsDispatched = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifications_dispatched_total",
			Help: "Notifications handed to the transport by channel and outcome",
		},
		[]string{"channel", "outcome"},
	)

	UserCacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "user_cache_lookups_total",
			Help: "User directory cache lookups by result",
		},
		[]string{"result"},
	)
)
