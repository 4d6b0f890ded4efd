package logging

import (
	"context"

	"github.com/tigerroll/deltaloader/pkg/batch/core/domain/model"
	"github.com/tigerroll/deltaloader/pkg/batch/core/ports"
	"github.com/tigerroll/deltaloader/pkg/batch/support/util/logger"
	"github.com/tigerroll/deltaloader/pkg/batch/support/util/serialization"
)

// LoggingRunListener writes the run lifecycle to the log.
type LoggingRunListener struct{}

func NewLoggingRunListener() ports.RunListener {
	return &LoggingRunListener{}
}

func (l *LoggingRunListener) BeforeRun(ctx context.Context, params model.JobParameters) {
	logger.Infof("RunListener: BeforeRun - JobID: %s, RunID: %s, Format: %s, WriteType: %s",
		params.JobID(), model.RunIDFrom(ctx), params.StagingFormat, params.WritePolicy)
}

func (l *LoggingRunListener) AfterFolder(ctx context.Context, jobID, folder, action string) {
	logger.Debugf("RunListener: AfterFolder - JobID: %s, Folder: %s, Action: %s", jobID, folder, action)
}

func (l *LoggingRunListener) AfterRun(ctx context.Context, report *model.RunReport) {
	logger.Infof("RunListener: AfterRun - JobID: %s, RunID: %s, Processed: %d/%d, Duration: %s",
		report.JobID, report.RunID, len(report.Processed), len(report.Pending), report.Duration())
	if data, err := serialization.MarshalRunReport(report); err == nil {
		logger.Debugf("RunListener: report %s", data)
	}
}

var _ ports.RunListener = (*LoggingRunListener)(nil)
