package metrics

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/prometheus/client_golang/prometheus"
	"gorm.io/gorm"
)

const (
	SyncJobReasonDeadlineExceeded     = "deadline_exceeded"
	SyncJobReasonDBLockTimeout        = "db_lock_timeout"
	SyncJobReasonSerializationFailure = "serialization_failure"
	SyncJobReasonUniqueViolation      = "unique_violation"
	SyncJobReasonUpstream             = "upstream"
	SyncJobReasonLockHeld             = "lock_held"
	SyncJobReasonUnknown              = "unknown"
)

const (
	SyncJobCustomers         = "sync_customers"
	SyncJobContractsAndBills = "sync_contracts_bills"
)

// ReasonedError lets callers outside this package assign their own
// low-cardinality reason to an error.
type ReasonedError interface {
	error
	MetricReason() string
}

// SyncMetrics captures snapshot refresh health signals.
type SyncMetrics struct {
	jobRuns        *prometheus.CounterVec
	jobDuration    *prometheus.HistogramVec
	jobTimeouts    *prometheus.CounterVec
	jobErrors      *prometheus.CounterVec
	rowsStored     *prometheus.CounterVec
	runLoopLag     prometheus.Observer
	lastSuccess    *prometheus.GaugeVec
	reportDuration *prometheus.HistogramVec
}

var (
	syncMetricsOnce sync.Once
	syncMetrics     *SyncMetrics
)

// Sync returns the singleton sync metrics registry.
func Sync() *SyncMetrics {
	return SyncWithConfig(Config{})
}

// SyncWithConfig returns the singleton sync metrics registry using config labels.
func SyncWithConfig(cfg Config) *SyncMetrics {
	syncMetricsOnce.Do(func() {
		syncMetrics = newSyncMetrics(prometheus.DefaultRegisterer, cfg)
	})
	return syncMetrics
}

// ResetSyncMetricsForTest resets the sync metrics singleton for tests.
func ResetSyncMetricsForTest() {
	syncMetricsOnce = sync.Once{}
	syncMetrics = nil
}

func newSyncMetrics(registerer prometheus.Registerer, cfg Config) *SyncMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	serviceName := strings.TrimSpace(cfg.ServiceName)
	if serviceName == "" {
		serviceName = "delinquency"
	}
	environment := strings.TrimSpace(cfg.Environment)
	if environment == "" {
		environment = "unknown"
	}
	constLabels := prometheus.Labels{
		"service": serviceName,
		"env":     environment,
	}

	jobRuns := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "delinquency_sync_job_runs_total",
		Help:        "Snapshot sync job runs by name.",
		ConstLabels: constLabels,
	}, []string{"job"})
	jobDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:        "delinquency_sync_job_duration_seconds",
		Help:        "Snapshot sync job latency.",
		Buckets:     []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20, 30, 60, 120, 300, 600, 1800},
		ConstLabels: constLabels,
	}, []string{"job"})
	jobTimeouts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "delinquency_sync_job_timeouts_total",
		Help:        "Snapshot sync job timeouts.",
		ConstLabels: constLabels,
	}, []string{"job"})
	jobErrors := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "delinquency_sync_job_errors_total",
		Help:        "Snapshot sync job errors by low-cardinality reason.",
		ConstLabels: constLabels,
	}, []string{"job", "reason"})
	rowsStored := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "delinquency_sync_rows_stored_total",
		Help:        "ERP rows written to the local snapshot.",
		ConstLabels: constLabels,
	}, []string{"job", "resource"})
	runLoopLag := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:        "delinquency_sync_runloop_lag_seconds",
		Help:        "Sync run loop lag beyond the configured interval.",
		Buckets:     []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		ConstLabels: constLabels,
	})
	lastSuccess := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name:        "delinquency_sync_last_success_timestamp_seconds",
		Help:        "Unix time of the last successful sync job.",
		ConstLabels: constLabels,
	}, []string{"job"})
	reportDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:        "delinquency_report_build_duration_seconds",
		Help:        "Time spent loading the snapshot and building a report.",
		Buckets:     []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		ConstLabels: constLabels,
	}, []string{"view"})

	registerer.MustRegister(
		jobRuns,
		jobDuration,
		jobTimeouts,
		jobErrors,
		rowsStored,
		runLoopLag,
		lastSuccess,
		reportDuration,
	)

	return &SyncMetrics{
		jobRuns:        jobRuns,
		jobDuration:    jobDuration,
		jobTimeouts:    jobTimeouts,
		jobErrors:      jobErrors,
		rowsStored:     rowsStored,
		runLoopLag:     runLoopLag,
		lastSuccess:    lastSuccess,
		reportDuration: reportDuration,
	}
}

// IncJobRun increments the run counter for a job.
func (m *SyncMetrics) IncJobRun(job string) {
	if m == nil {
		return
	}
	m.jobRuns.WithLabelValues(job).Inc()
}

// ObserveJobDuration records job execution time.
func (m *SyncMetrics) ObserveJobDuration(job string, duration time.Duration) {
	if m == nil {
		return
	}
	m.jobDuration.WithLabelValues(job).Observe(duration.Seconds())
}

// IncJobTimeout increments the timeout counter for a job.
func (m *SyncMetrics) IncJobTimeout(job string) {
	if m == nil {
		return
	}
	m.jobTimeouts.WithLabelValues(job).Inc()
}

// IncJobError increments the error counter using the error's reason.
func (m *SyncMetrics) IncJobError(job string, err error) {
	if m == nil || err == nil {
		return
	}
	m.jobErrors.WithLabelValues(job, ClassifySyncJobReason(err)).Inc()
}

// AddRowsStored increments stored row counts for a resource.
func (m *SyncMetrics) AddRowsStored(job, resource string, count int) {
	if m == nil || count <= 0 {
		return
	}
	m.rowsStored.WithLabelValues(job, resource).Add(float64(count))
}

// MarkSuccess records the completion time of a successful job.
func (m *SyncMetrics) MarkSuccess(job string, at time.Time) {
	if m == nil {
		return
	}
	m.lastSuccess.WithLabelValues(job).Set(float64(at.Unix()))
}

// ObserveRunLoopLag records lag between the scheduled tick and actual run start.
func (m *SyncMetrics) ObserveRunLoopLag(duration time.Duration) {
	if m == nil {
		return
	}
	m.runLoopLag.Observe(max(duration, 0).Seconds())
}

// ObserveReportBuild records how long a report took to build.
func (m *SyncMetrics) ObserveReportBuild(view string, duration time.Duration) {
	if m == nil {
		return
	}
	m.reportDuration.WithLabelValues(view).Observe(duration.Seconds())
}

// ClassifySyncJobReason maps sync job errors to low-cardinality reasons.
func ClassifySyncJobReason(err error) string {
	if err == nil {
		return SyncJobReasonUnknown
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return SyncJobReasonDeadlineExceeded
	}
	var reasoned ReasonedError
	if errors.As(err, &reasoned) {
		if reason := strings.TrimSpace(reasoned.MetricReason()); reason != "" {
			return reason
		}
	}
	if hasPGCode(err, "55P03") {
		return SyncJobReasonDBLockTimeout
	}
	if hasPGCode(err, "40001") {
		return SyncJobReasonSerializationFailure
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) || hasPGCode(err, "23505") {
		return SyncJobReasonUniqueViolation
	}
	return SyncJobReasonUnknown
}

// IsSyncErrorRetryable reports whether a sync error is worth retrying on the next tick.
func IsSyncErrorRetryable(err error) bool {
	if err == nil {
		return false
	}
	switch ClassifySyncJobReason(err) {
	case SyncJobReasonDeadlineExceeded, SyncJobReasonUpstream, SyncJobReasonDBLockTimeout, SyncJobReasonSerializationFailure:
		return true
	default:
		return false
	}
}

func hasPGCode(err error, code string) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == code
	}
	return false
}
