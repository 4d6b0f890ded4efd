package metrics

import (
	"context"
)

// Tracer is an abstract interface for distributed tracing.
// This interface provides functionality to integrate with tracing systems like OpenTelemetry,
// enabling visualization of a run and the folders it applies.
type Tracer interface {
	// StartRunSpan starts a Span covering one invocation.
	//
	// Returns: A context with the new Span set, and a function to end the Span.
	//          It is recommended to call the returned function in a defer statement.
	StartRunSpan(ctx context.Context, jobID string) (context.Context, func())

	// StartFolderSpan starts a child Span for applying one staging folder.
	StartFolderSpan(ctx context.Context, folder string) (context.Context, func())

	// RecordError records an error in the current Span.
	//
	// ctx: The context with the current Span.
	// phase: The phase where the error occurred (e.g., "listing", "write").
	// err: The error to record.
	RecordError(ctx context.Context, phase string, err error)

	// RecordEvent records an event in the current Span.
	//
	// ctx: The context with the current Span.
	// name: The name of the event (e.g., "watermark_advanced").
	// attributes: Additional attributes to associate with the event.
	RecordEvent(ctx context.Context, name string, attributes map[string]interface{})
}
