// Package ports declares the extension points the ingestion driver calls out to.
package ports

import (
	"context"

	"github.com/tigerroll/deltaloader/pkg/batch/core/domain/model"
)

// RunListenerGroup is the Fx value group run listeners are registered under.
const RunListenerGroup = "run_listeners"

// RunListener observes the lifecycle of ingestion runs.
// Listeners are called synchronously and must not block.
type RunListener interface {
	// BeforeRun is called once the parameters are valid, before the watermark is read.
	BeforeRun(ctx context.Context, params model.JobParameters)
	// AfterFolder is called after a folder was applied and the watermark advanced to it.
	AfterFolder(ctx context.Context, jobID, folder, action string)
	// AfterRun is called with the final report of every run, including rejected ones.
	AfterRun(ctx context.Context, report *model.RunReport)
}
