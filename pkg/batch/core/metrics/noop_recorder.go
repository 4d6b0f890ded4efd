package metrics

import (
	"context"
	"time"

	"github.com/tigerroll/deltaloader/pkg/batch/core/domain/model"
)

// NoOpMetricRecorder is an implementation of MetricRecorder that does nothing.
// It is used when metrics are disabled or during testing.
type NoOpMetricRecorder struct{}

// NewNoOpMetricRecorder creates a new instance of NoOpMetricRecorder.
func NewNoOpMetricRecorder() MetricRecorder {
	return &NoOpMetricRecorder{}
}

func (r *NoOpMetricRecorder) RecordRunStart(ctx context.Context, jobID string)             {}
func (r *NoOpMetricRecorder) RecordRunEnd(ctx context.Context, report *model.RunReport)    {}
func (r *NoOpMetricRecorder) RecordCandidates(ctx context.Context, jobID string, c, p int) {}
func (r *NoOpMetricRecorder) RecordFailure(ctx context.Context, jobID, phase string)       {}
func (r *NoOpMetricRecorder) RecordWatermarkAdvance(ctx context.Context, jobID string)     {}
func (r *NoOpMetricRecorder) RecordFolderApplied(ctx context.Context, jobID, policy string, duration time.Duration) {
}
func (r *NoOpMetricRecorder) RecordDuration(ctx context.Context, name string, duration time.Duration, tags map[string]string) {
}

// Flush does nothing.
func (r *NoOpMetricRecorder) Flush(ctx context.Context) error { return nil }

var _ MetricRecorder = (*NoOpMetricRecorder)(nil)

// --- NoOpTracer ---

// NoOpTracer is an implementation of Tracer that does nothing.
type NoOpTracer struct{}

// NewNoOpTracer creates a new instance of NoOpTracer.
func NewNoOpTracer() Tracer {
	return &NoOpTracer{}
}

// StartRunSpan returns ctx unchanged.
func (t *NoOpTracer) StartRunSpan(ctx context.Context, jobID string) (context.Context, func()) {
	return ctx, func() {}
}

// StartFolderSpan returns ctx unchanged.
func (t *NoOpTracer) StartFolderSpan(ctx context.Context, folder string) (context.Context, func()) {
	return ctx, func() {}
}

// RecordError does nothing.
func (t *NoOpTracer) RecordError(ctx context.Context, phase string, err error) {}

// RecordEvent does nothing.
func (t *NoOpTracer) RecordEvent(ctx context.Context, name string, attributes map[string]interface{}) {
}

var _ Tracer = (*NoOpTracer)(nil)
