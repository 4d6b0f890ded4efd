package metrics

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	model "github.com/tigerroll/deltaloader/pkg/batch/core/domain/model"
	metrics "github.com/tigerroll/deltaloader/pkg/batch/core/metrics"
)

// instrumentationName scopes every meter and tracer created by the loader.
const instrumentationName = "github.com/tigerroll/deltaloader"

// flusher is implemented by SDK meter providers.
type flusher interface {
	ForceFlush(ctx context.Context) error
}

// OTelRecorder implements metrics.MetricRecorder with OpenTelemetry instruments.
type OTelRecorder struct {
	provider metric.MeterProvider

	runs              metric.Int64Counter
	runDuration       metric.Float64Histogram
	candidates        metric.Int64Gauge
	pending           metric.Int64Gauge
	foldersApplied    metric.Int64Counter
	folderDuration    metric.Float64Histogram
	failures          metric.Int64Counter
	watermarkAdvances metric.Int64Counter
	operationDuration metric.Float64Histogram
}

// NewOTelRecorder creates the instruments on a meter of provider.
func NewOTelRecorder(provider metric.MeterProvider) (*OTelRecorder, error) {
	meter := provider.Meter(instrumentationName)
	r := &OTelRecorder{provider: provider}

	var err error
	if r.runs, err = meter.Int64Counter("deltaloader.runs",
		metric.WithDescription("Ingestion runs by status.")); err != nil {
		return nil, err
	}
	if r.runDuration, err = meter.Float64Histogram("deltaloader.run.duration",
		metric.WithDescription("Duration of ingestion runs."), metric.WithUnit("s")); err != nil {
		return nil, err
	}
	if r.candidates, err = meter.Int64Gauge("deltaloader.folders.candidate",
		metric.WithDescription("Staging folders listed by the last run.")); err != nil {
		return nil, err
	}
	if r.pending, err = meter.Int64Gauge("deltaloader.folders.pending",
		metric.WithDescription("Staging folders newer than the watermark.")); err != nil {
		return nil, err
	}
	if r.foldersApplied, err = meter.Int64Counter("deltaloader.folders.applied",
		metric.WithDescription("Staging folders written to the table.")); err != nil {
		return nil, err
	}
	if r.folderDuration, err = meter.Float64Histogram("deltaloader.folder.duration",
		metric.WithDescription("Time spent writing one staging folder."), metric.WithUnit("s")); err != nil {
		return nil, err
	}
	if r.failures, err = meter.Int64Counter("deltaloader.failures",
		metric.WithDescription("Failures by phase.")); err != nil {
		return nil, err
	}
	if r.watermarkAdvances, err = meter.Int64Counter("deltaloader.watermark.advances",
		metric.WithDescription("Successful watermark writes.")); err != nil {
		return nil, err
	}
	if r.operationDuration, err = meter.Float64Histogram("deltaloader.operation.duration",
		metric.WithDescription("Duration of individual operations."), metric.WithUnit("s")); err != nil {
		return nil, err
	}
	return r, nil
}

func jobAttr(jobID string) attribute.KeyValue {
	return attribute.String("job.id", jobID)
}

func (r *OTelRecorder) RecordRunStart(ctx context.Context, jobID string) {
	r.runs.Add(ctx, 1, metric.WithAttributes(jobAttr(jobID), attribute.String("status", "started")))
}

func (r *OTelRecorder) RecordRunEnd(ctx context.Context, report *model.RunReport) {
	if report == nil {
		return
	}
	status := "completed"
	if !report.Succeeded() {
		status = "failed"
	}
	attrs := metric.WithAttributes(jobAttr(report.JobID), attribute.String("status", status))
	r.runs.Add(ctx, 1, attrs)
	r.runDuration.Record(ctx, report.Duration().Seconds(), attrs)
}

func (r *OTelRecorder) RecordCandidates(ctx context.Context, jobID string, candidates, pending int) {
	r.candidates.Record(ctx, int64(candidates), metric.WithAttributes(jobAttr(jobID)))
	r.pending.Record(ctx, int64(pending), metric.WithAttributes(jobAttr(jobID)))
}

func (r *OTelRecorder) RecordFolderApplied(ctx context.Context, jobID, policy string, duration time.Duration) {
	attrs := metric.WithAttributes(jobAttr(jobID), attribute.String("policy", policy))
	r.foldersApplied.Add(ctx, 1, attrs)
	r.folderDuration.Record(ctx, duration.Seconds(), attrs)
}

func (r *OTelRecorder) RecordFailure(ctx context.Context, jobID, phase string) {
	r.failures.Add(ctx, 1, metric.WithAttributes(jobAttr(jobID), attribute.String("phase", phase)))
}

func (r *OTelRecorder) RecordWatermarkAdvance(ctx context.Context, jobID string) {
	r.watermarkAdvances.Add(ctx, 1, metric.WithAttributes(jobAttr(jobID)))
}

// RecordDuration records the operation duration with every tag as an attribute.
func (r *OTelRecorder) RecordDuration(ctx context.Context, name string, duration time.Duration, tags map[string]string) {
	attrs := make([]attribute.KeyValue, 0, len(tags)+1)
	attrs = append(attrs, attribute.String("operation", name))
	for k, v := range tags {
		attrs = append(attrs, attribute.String(k, v))
	}
	r.operationDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
}

// Flush forces the periodic reader to export now.
func (r *OTelRecorder) Flush(ctx context.Context) error {
	if f, ok := r.provider.(flusher); ok {
		return f.ForceFlush(ctx)
	}
	return nil
}

var _ metrics.MetricRecorder = (*OTelRecorder)(nil)
