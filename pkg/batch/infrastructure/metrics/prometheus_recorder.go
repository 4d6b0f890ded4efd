package metrics

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/push"

	model "github.com/tigerroll/deltaloader/pkg/batch/core/domain/model"
	metrics "github.com/tigerroll/deltaloader/pkg/batch/core/metrics"
	logger "github.com/tigerroll/deltaloader/pkg/batch/support/util/logger"
)

// pushJobName is the Pushgateway job label of every push.
const pushJobName = "deltaloader"

// PrometheusRecorder is a Prometheus implementation of the metrics.MetricRecorder interface.
// A run is short-lived, so Flush pushes the registry to a Pushgateway when one is configured.
type PrometheusRecorder struct {
	registry       *prometheus.Registry
	pushgatewayURL string

	mu    sync.Mutex
	jobID string // grouping key of the next push

	// Run Metrics
	runDurationSeconds *prometheus.HistogramVec
	runStatusCounter   *prometheus.CounterVec
	candidateFolders   *prometheus.GaugeVec
	pendingFolders     *prometheus.GaugeVec

	// Folder Metrics
	folderDurationSeconds *prometheus.HistogramVec
	folderAppliedCounter  *prometheus.CounterVec
	failureCounter        *prometheus.CounterVec
	watermarkAdvances     *prometheus.CounterVec
	lastSuccessTimestamp  *prometheus.GaugeVec

	// Generic operation timing
	operationDurationSeconds *prometheus.HistogramVec
}

// NewPrometheusRecorder creates a new instance of PrometheusRecorder with a private registry.
// An empty pushgatewayURL disables pushing.
func NewPrometheusRecorder(pushgatewayURL string) *PrometheusRecorder {
	registry := prometheus.NewRegistry()

	// Register Go standard metrics and process/OS metrics.
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	r := &PrometheusRecorder{
		registry:       registry,
		pushgatewayURL: pushgatewayURL,
		runDurationSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "deltaloader_run_duration_seconds",
			Help:    "Duration of ingestion runs.",
			Buckets: prometheus.DefBuckets,
		}, []string{"job_id", "status"}),
		runStatusCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "deltaloader_runs_total",
			Help: "Total number of ingestion runs by status.",
		}, []string{"job_id", "status"}),
		candidateFolders: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "deltaloader_candidate_folders",
			Help: "Staging folders listed by the last run.",
		}, []string{"job_id"}),
		pendingFolders: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "deltaloader_pending_folders",
			Help: "Staging folders newer than the watermark at the start of the last run.",
		}, []string{"job_id"}),
		folderDurationSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "deltaloader_folder_apply_duration_seconds",
			Help:    "Time spent writing one staging folder to the table, manifest included.",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 12),
		}, []string{"job_id", "policy"}),
		folderAppliedCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "deltaloader_folders_applied_total",
			Help: "Total staging folders written to the table.",
		}, []string{"job_id", "policy"}),
		failureCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "deltaloader_failures_total",
			Help: "Total failures by phase.",
		}, []string{"job_id", "phase"}),
		watermarkAdvances: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "deltaloader_watermark_advances_total",
			Help: "Total successful watermark writes.",
		}, []string{"job_id"}),
		lastSuccessTimestamp: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "deltaloader_last_success_timestamp_seconds",
			Help: "Unix time of the last successful run.",
		}, []string{"job_id"}),
		operationDurationSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "deltaloader_operation_duration_seconds",
			Help:    "Duration of individual operations (listing, watermark reads and writes).",
			Buckets: prometheus.DefBuckets,
		}, []string{"operation", "status"}),
	}

	// Register all metrics with the registry.
	registry.MustRegister(
		r.runDurationSeconds,
		r.runStatusCounter,
		r.candidateFolders,
		r.pendingFolders,
		r.folderDurationSeconds,
		r.folderAppliedCounter,
		r.failureCounter,
		r.watermarkAdvances,
		r.lastSuccessTimestamp,
		r.operationDurationSeconds,
	)

	return r
}

// GetRegistry returns the Prometheus registry.
func (r *PrometheusRecorder) GetRegistry() *prometheus.Registry {
	return r.registry
}

// RecordRunStart records the start of a run.
func (r *PrometheusRecorder) RecordRunStart(ctx context.Context, jobID string) {
	r.mu.Lock()
	r.jobID = jobID
	r.mu.Unlock()
	r.runStatusCounter.WithLabelValues(jobID, "started").Inc()
	logger.Debugf("Metrics: run for job '%s' started.", jobID)
}

// RecordRunEnd records the end of a run.
func (r *PrometheusRecorder) RecordRunEnd(ctx context.Context, report *model.RunReport) {
	if report == nil {
		return
	}
	status := "completed"
	if !report.Succeeded() {
		status = "failed"
	}
	duration := report.Duration().Seconds()
	r.runDurationSeconds.WithLabelValues(report.JobID, status).Observe(duration)
	r.runStatusCounter.WithLabelValues(report.JobID, status).Inc()
	if report.Succeeded() {
		r.lastSuccessTimestamp.WithLabelValues(report.JobID).Set(float64(report.EndTime.Unix()))
	}
	logger.Debugf("Metrics: run for job '%s' ended (%s). Duration: %.3fs", report.JobID, status, duration)
}

// RecordCandidates records the listed and pending folder counts.
func (r *PrometheusRecorder) RecordCandidates(ctx context.Context, jobID string, candidates, pending int) {
	r.candidateFolders.WithLabelValues(jobID).Set(float64(candidates))
	r.pendingFolders.WithLabelValues(jobID).Set(float64(pending))
}

// RecordFolderApplied records a folder written to the table.
func (r *PrometheusRecorder) RecordFolderApplied(ctx context.Context, jobID, policy string, duration time.Duration) {
	r.folderAppliedCounter.WithLabelValues(jobID, policy).Inc()
	r.folderDurationSeconds.WithLabelValues(jobID, policy).Observe(duration.Seconds())
}

// RecordFailure records a failed phase.
func (r *PrometheusRecorder) RecordFailure(ctx context.Context, jobID, phase string) {
	r.failureCounter.WithLabelValues(jobID, phase).Inc()
}

// RecordWatermarkAdvance records a successful watermark write.
func (r *PrometheusRecorder) RecordWatermarkAdvance(ctx context.Context, jobID string) {
	r.watermarkAdvances.WithLabelValues(jobID).Inc()
}

// RecordDuration records the execution time of a specific operation.
// Only the "status" tag becomes a label; it defaults to "success".
func (r *PrometheusRecorder) RecordDuration(ctx context.Context, name string, duration time.Duration, tags map[string]string) {
	status := tags["status"]
	if status == "" {
		status = "success"
	}
	r.operationDurationSeconds.WithLabelValues(name, status).Observe(duration.Seconds())
}

// Flush pushes the registry to the Pushgateway, grouped by job id.
func (r *PrometheusRecorder) Flush(ctx context.Context) error {
	if r.pushgatewayURL == "" {
		return nil
	}
	r.mu.Lock()
	jobID := r.jobID
	r.mu.Unlock()

	pusher := push.New(r.pushgatewayURL, pushJobName).Gatherer(r.registry)
	if jobID != "" {
		pusher = pusher.Grouping("job_id", jobID)
	}
	if err := pusher.PushContext(ctx); err != nil {
		return fmt.Errorf("push metrics to %s: %w", r.pushgatewayURL, err)
	}
	logger.Debugf("Metrics: pushed to %s.", r.pushgatewayURL)
	return nil
}

var _ metrics.MetricRecorder = (*PrometheusRecorder)(nil)
