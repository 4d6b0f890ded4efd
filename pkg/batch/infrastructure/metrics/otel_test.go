package metrics

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	model "github.com/tigerroll/deltaloader/pkg/batch/core/domain/model"
)

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Aggregation {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	out := map[string]metricdata.Aggregation{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			out[m.Name] = m.Data
		}
	}
	return out
}

func sumOf(t *testing.T, agg metricdata.Aggregation) int64 {
	t.Helper()
	sum, ok := agg.(metricdata.Sum[int64])
	require.True(t, ok, "expected Sum[int64], got %T", agg)
	var total int64
	for _, dp := range sum.DataPoints {
		total += dp.Value
	}
	return total
}

func TestOTelRecorder_Instruments(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	r, err := NewOTelRecorder(provider)
	require.NoError(t, err)
	ctx := context.Background()

	r.RecordRunStart(ctx, "job")
	r.RecordCandidates(ctx, "job", 3, 1)
	r.RecordFolderApplied(ctx, "job", "append", time.Second)
	r.RecordWatermarkAdvance(ctx, "job")
	r.RecordFailure(ctx, "job", "manifest")
	r.RecordDuration(ctx, "get_watermark", time.Millisecond, map[string]string{"backend": "memory"})
	r.RecordRunEnd(ctx, &model.RunReport{JobID: "job", StartTime: time.Now(), EndTime: time.Now()})

	data := collect(t, reader)
	assert.Equal(t, int64(2), sumOf(t, data["deltaloader.runs"]))
	assert.Equal(t, int64(1), sumOf(t, data["deltaloader.folders.applied"]))
	assert.Equal(t, int64(1), sumOf(t, data["deltaloader.watermark.advances"]))
	assert.Equal(t, int64(1), sumOf(t, data["deltaloader.failures"]))
	assert.Contains(t, data, "deltaloader.folder.duration")
	assert.Contains(t, data, "deltaloader.operation.duration")
	assert.Contains(t, data, "deltaloader.folders.pending")

	assert.NoError(t, r.Flush(ctx))
	assert.NoError(t, provider.Shutdown(ctx))
}

func TestOpenTelemetryTracer_Spans(t *testing.T) {
	sr := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	tracer := NewOpenTelemetryTracer(provider)

	ctx := model.WithRunID(context.Background(), "run-1")
	ctx, endRun := tracer.StartRunSpan(ctx, "job")
	folderCtx, endFolder := tracer.StartFolderSpan(ctx, "staging/2024-01-01/")
	tracer.RecordEvent(folderCtx, "watermark_advanced", map[string]interface{}{"folder": "staging/2024-01-01/", "n": 1})
	endFolder()
	tracer.RecordError(ctx, "write", errors.New("boom"))
	endRun()

	spans := sr.Ended()
	require.Len(t, spans, 2)

	folder, run := spans[0], spans[1]
	assert.Equal(t, "deltaloader.folder", folder.Name())
	assert.Equal(t, run.SpanContext().SpanID(), folder.Parent().SpanID())
	require.Len(t, folder.Events(), 1)
	assert.Equal(t, "watermark_advanced", folder.Events()[0].Name)

	assert.Equal(t, "deltaloader.run", run.Name())
	assert.Equal(t, codes.Error, run.Status().Code)
	assert.Equal(t, "boom", run.Status().Description)
}
