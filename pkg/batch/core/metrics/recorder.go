package metrics

import (
	"context"
	"time"

	"github.com/tigerroll/deltaloader/pkg/batch/core/domain/model"
)

// MetricRecorder is an abstract interface for recording metrics about ingestion runs.
//
// This interface provides a standardized way to record run, folder and watermark events.
// This facilitates integration with different metrics backends (e.g., Prometheus, OpenTelemetry Metrics).
type MetricRecorder interface {
	// RecordRunStart records the start of an invocation.
	//
	// ctx: The context for the operation.
	// jobID: The job identity the run belongs to.
	RecordRunStart(ctx context.Context, jobID string)

	// RecordRunEnd records the end of an invocation.
	//
	// ctx: The context for the operation.
	// report: The final report of the run. A non-empty report.Error marks a failed run.
	RecordRunEnd(ctx context.Context, report *model.RunReport)

	// RecordCandidates records how many folders were listed and how many are pending.
	RecordCandidates(ctx context.Context, jobID string, candidates, pending int)

	// RecordFolderApplied records a folder written to the table.
	//
	// policy: The write policy used (or "create" for the initial write).
	// duration: The time spent in the table writer for this folder.
	RecordFolderApplied(ctx context.Context, jobID, policy string, duration time.Duration)

	// RecordFailure records a failed phase ("watermark", "listing", "write", "manifest", ...).
	RecordFailure(ctx context.Context, jobID, phase string)

	// RecordWatermarkAdvance records a successful watermark write.
	RecordWatermarkAdvance(ctx context.Context, jobID string)

	// RecordDuration records the execution time of a specific operation.
	//
	// ctx: The context for the operation.
	// name: The name of the duration to record (e.g., "list_subfolders").
	// duration: The length of the duration to record.
	// tags: Additional tags to associate with the duration.
	//       Example: `{"backend": "dynamodb", "status": "success"}`
	RecordDuration(ctx context.Context, name string, duration time.Duration, tags map[string]string)

	// Flush pushes or exports buffered metrics. Backends that are scraped return nil.
	Flush(ctx context.Context) error
}
