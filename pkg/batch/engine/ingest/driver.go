// Package ingest sequences one incremental ingestion run: read the watermark, list the staged
// folders, and apply every newer folder in order, advancing the watermark after each one.
package ingest

import (
	"context"
	"fmt"
	"time"

	"github.com/tigerroll/deltaloader/pkg/batch/component/lister"
	"github.com/tigerroll/deltaloader/pkg/batch/component/table"
	"github.com/tigerroll/deltaloader/pkg/batch/core/domain/model"
	"github.com/tigerroll/deltaloader/pkg/batch/core/domain/repository"
	"github.com/tigerroll/deltaloader/pkg/batch/core/metrics"
	"github.com/tigerroll/deltaloader/pkg/batch/core/ports"
	"github.com/tigerroll/deltaloader/pkg/batch/support/util/exception"
	"github.com/tigerroll/deltaloader/pkg/batch/support/util/logger"
)

// Phases reported in errors, metrics and spans.
const (
	PhaseValidate     = "validate"
	PhaseGetWatermark = "get_watermark"
	PhaseList         = "list"
	PhaseWrite        = "write"
	PhasePutWatermark = "put_watermark"
)

// FolderLister enumerates the immediate subfolders of a staging prefix.
type FolderLister interface {
	ListSubfolders(ctx context.Context, bucket, prefix string) ([]string, error)
}

// TableApplier applies one staged folder to the destination table.
type TableApplier interface {
	Apply(ctx context.Context, req table.ApplyRequest) (table.Action, error)
}

// Driver runs ingestion invocations. It holds no per-run state; a single Driver may serve
// several runs as long as no two run for the same job id at once.
type Driver struct {
	store     repository.WatermarkStore
	lister    FolderLister
	writer    TableApplier
	recorder  metrics.MetricRecorder
	tracer    metrics.Tracer
	listeners []ports.RunListener
	now       func() time.Time
}

// NewDriver creates a Driver. recorder and tracer may be nil.
func NewDriver(store repository.WatermarkStore, lister FolderLister, writer TableApplier, recorder metrics.MetricRecorder, tracer metrics.Tracer) *Driver {
	if recorder == nil {
		recorder = metrics.NewNoOpMetricRecorder()
	}
	if tracer == nil {
		tracer = metrics.NewNoOpTracer()
	}
	return &Driver{
		store:    store,
		lister:   lister,
		writer:   writer,
		recorder: recorder,
		tracer:   tracer,
		now:      time.Now,
	}
}

// WithListeners adds run listeners to d and returns it.
func (d *Driver) WithListeners(listeners ...ports.RunListener) *Driver {
	for _, l := range listeners {
		if l != nil {
			d.listeners = append(d.listeners, l)
		}
	}
	return d
}

// Run performs one invocation for params and returns its report. The report is returned even
// when err is non-nil and lists the folders processed before the failure.
//
// Parameters are validated before any I/O. Folders are applied one at a time in ascending
// order; the watermark is written after each successful apply and never for a failed one, so
// a failed or interrupted run resumes at the first folder it did not finish.
func (d *Driver) Run(ctx context.Context, params model.JobParameters) (report *model.RunReport, err error) {
	jobID := params.JobID()
	runID := model.RunIDFrom(ctx)
	if runID == "" {
		runID = model.NewRunID()
		ctx = model.WithRunID(ctx, runID)
	}
	report = &model.RunReport{
		RunID:       runID,
		JobID:       jobID,
		StagingPath: params.StagingPath,
		TablePath:   params.TablePath,
		WritePolicy: params.WritePolicy.String(),
		StartTime:   d.now(),
		Pending:     []string{},
		Processed:   []string{},
	}

	if err := params.Validate(); err != nil {
		return d.finish(ctx, report, exception.Annotate(err, exception.KindConfiguration, PhaseValidate, jobID, ""))
	}

	ctx, endRun := d.tracer.StartRunSpan(ctx, jobID)
	defer endRun()
	d.recorder.RecordRunStart(ctx, jobID)
	for _, l := range d.listeners {
		l.BeforeRun(ctx, params)
	}

	logger.Infof("Staging path: s3://%s/%s", params.StagingBucket, params.StagingPath)
	logger.Infof("Table path: s3://%s/%s", params.TableBucket, params.TablePath)
	logger.Infof("Job id: %s (run %s)", jobID, runID)

	watermark, found, err := d.store.Get(ctx, jobID)
	if err != nil {
		return d.finish(ctx, report, exception.Annotate(err, exception.KindStoreAccess, PhaseGetWatermark, jobID, ""))
	}
	if !found {
		watermark = ""
		logger.Infof("No watermark stored for job %s; every staged folder is new.", jobID)
	} else {
		logger.Infof("Current watermark: %s", watermark)
	}
	report.Watermark = watermark
	report.FinalWatermark = watermark

	listStart := d.now()
	candidates, err := d.lister.ListSubfolders(ctx, params.StagingBucket, lister.NormalizePrefix(params.StagingPath))
	if err != nil {
		return d.finish(ctx, report, exception.Annotate(err, exception.KindListing, PhaseList, jobID, ""))
	}
	d.recorder.RecordDuration(ctx, PhaseList, d.now().Sub(listStart), map[string]string{"job_id": jobID})

	pending := PendingFolders(candidates, watermark)
	report.Candidates = len(candidates)
	logger.Infof("Found %d staged folders, %d newer than the watermark.", len(candidates), len(pending))

	if params.WritePolicy == model.PolicyOverwrite && len(pending) > 1 {
		if !params.OverwriteLatestOnly {
			err := exception.NewConfigurationErrorf(PhaseValidate,
				"write_type overwrite with %d pending folders would keep only the last one; set overwrite_latest_only to apply just %s",
				len(pending), pending[len(pending)-1])
			return d.finish(ctx, report, err.WithJob(jobID))
		}
		report.Skipped = pending[:len(pending)-1]
		pending = pending[len(pending)-1:]
		logger.Warnf("overwrite_latest_only: skipping %d older folders, applying only %s.", len(report.Skipped), pending[0])
	}
	report.Pending = pending
	d.recorder.RecordCandidates(ctx, jobID, len(candidates), len(pending))

	for _, folder := range pending {
		if err := ctx.Err(); err != nil {
			return d.finish(ctx, report, fmt.Errorf("run cancelled before folder %s: %w", folder, err))
		}
		if err := d.processFolder(ctx, params, jobID, folder); err != nil {
			return d.finish(ctx, report, err)
		}
		report.Processed = append(report.Processed, folder)
		report.FinalWatermark = folder
	}

	if len(pending) == 0 {
		logger.Infof("Nothing to do for job %s.", jobID)
	}
	return d.finish(ctx, report, nil)
}

// processFolder applies one folder and advances the watermark to it. Cancelling ctx does not
// interrupt a folder once started; the run stops before the next one.
func (d *Driver) processFolder(ctx context.Context, params model.JobParameters, jobID, folder string) error {
	ctx, endFolder := d.tracer.StartFolderSpan(context.WithoutCancel(ctx), folder)
	defer endFolder()

	logger.Infof("Processing folder: %s", folder)
	start := d.now()
	action, err := d.writer.Apply(ctx, table.ApplyRequest{
		Staging:    model.Location{Bucket: params.StagingBucket, Key: folder},
		Table:      params.Table(),
		Format:     params.StagingFormat,
		Policy:     params.WritePolicy,
		PrimaryKey: params.PrimaryKey,
	})
	if err != nil {
		return exception.Annotate(err, exception.KindWrite, PhaseWrite, jobID, folder)
	}
	d.recorder.RecordFolderApplied(ctx, jobID, string(action), d.now().Sub(start))

	if err := d.store.Put(ctx, jobID, folder); err != nil {
		return exception.Annotate(err, exception.KindStoreAccess, PhasePutWatermark, jobID, folder)
	}
	d.recorder.RecordWatermarkAdvance(ctx, jobID)
	d.tracer.RecordEvent(ctx, "watermark_advanced", map[string]interface{}{"job_id": jobID, "folder": folder})
	for _, l := range d.listeners {
		l.AfterFolder(ctx, jobID, folder, string(action))
	}
	logger.Infof("Watermark advanced to %s.", folder)
	return nil
}

// finish stamps the report and records the outcome.
func (d *Driver) finish(ctx context.Context, report *model.RunReport, err error) (*model.RunReport, error) {
	report.EndTime = d.now()
	if err != nil {
		report.Error = err.Error()
		phase := "run"
		if le, ok := exception.AsLoaderError(err); ok {
			phase = le.Phase
		}
		d.recorder.RecordFailure(ctx, report.JobID, phase)
		d.tracer.RecordError(ctx, phase, err)
		logger.Errorf("Job %s failed: %v", report.JobID, err)
	} else {
		logger.Infof("Job %s finished: %d folders processed, watermark %q.", report.JobID, len(report.Processed), report.FinalWatermark)
	}
	d.recorder.RecordRunEnd(ctx, report)
	for _, l := range d.listeners {
		l.AfterRun(ctx, report)
	}
	return report, err
}
