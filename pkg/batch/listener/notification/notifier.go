package notification

import (
	"context"
	"fmt"

	"github.com/tigerroll/deltaloader/pkg/batch/core/domain/model"
	"github.com/tigerroll/deltaloader/pkg/batch/core/ports"
	"github.com/tigerroll/deltaloader/pkg/batch/support/util/logger"
)

// LogNotifier is a Notifier that only logs notifications.
type LogNotifier struct{}

// NewLogNotifier creates a new instance of LogNotifier.
func NewLogNotifier() ports.Notifier {
	logger.Debugf("Notification: Initializing log notifier.")
	return &LogNotifier{}
}

// NotifyRunCompletion notifies of run completion.
func (n *LogNotifier) NotifyRunCompletion(ctx context.Context, report *model.RunReport) {
	if report.Succeeded() {
		logger.Infof("%s", completionMessage(report))
	} else {
		logger.Warnf("%s", completionMessage(report))
	}
}

func completionMessage(report *model.RunReport) string {
	if report.Succeeded() {
		return fmt.Sprintf(
			"Run Notification: job %s (run %s) succeeded. Folders: %d, Watermark: %q, Duration: %s",
			report.JobID, report.RunID, len(report.Processed), report.FinalWatermark, report.Duration())
	}
	return fmt.Sprintf(
		"Run Notification: job %s (run %s) failed after %d of %d folders. Watermark: %q, Error: %s",
		report.JobID, report.RunID, len(report.Processed), len(report.Pending), report.FinalWatermark, report.Error)
}

var _ ports.Notifier = (*LogNotifier)(nil)

// NotificationListener is a RunListener that hands every finished run to a Notifier.
type NotificationListener struct {
	notifier ports.Notifier
}

// NewNotificationListener creates a new instance of NotificationListener.
func NewNotificationListener(notifier ports.Notifier) ports.RunListener {
	return &NotificationListener{notifier: notifier}
}

// BeforeRun does nothing.
func (l *NotificationListener) BeforeRun(ctx context.Context, params model.JobParameters) {}

// AfterFolder does nothing.
func (l *NotificationListener) AfterFolder(ctx context.Context, jobID, folder, action string) {}

// AfterRun sends the notification.
func (l *NotificationListener) AfterRun(ctx context.Context, report *model.RunReport) {
	l.notifier.NotifyRunCompletion(ctx, report)
}

var _ ports.RunListener = (*NotificationListener)(nil)
