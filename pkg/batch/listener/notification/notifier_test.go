package notification

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/tigerroll/deltaloader/pkg/batch/core/domain/model"
)

type recordingNotifier struct {
	reports []*model.RunReport
}

func (n *recordingNotifier) NotifyRunCompletion(ctx context.Context, report *model.RunReport) {
	n.reports = append(n.reports, report)
}

func TestNotificationListener_ForwardsFinishedRuns(t *testing.T) {
	notifier := &recordingNotifier{}
	listener := NewNotificationListener(notifier)
	report := &model.RunReport{JobID: "job"}

	listener.BeforeRun(context.Background(), model.JobParameters{})
	listener.AfterFolder(context.Background(), "job", "f1", "append")
	listener.AfterRun(context.Background(), report)

	assert.Equal(t, []*model.RunReport{report}, notifier.reports)
}

func TestCompletionMessage(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	ok := &model.RunReport{
		JobID: "job", RunID: "run", Processed: []string{"f1", "f2"}, FinalWatermark: "f2",
		StartTime: start, EndTime: start.Add(3 * time.Second),
	}
	assert.Equal(t, `Run Notification: job job (run run) succeeded. Folders: 2, Watermark: "f2", Duration: 3s`, completionMessage(ok))

	failed := &model.RunReport{
		JobID: "job", RunID: "run", Pending: []string{"f1", "f2"}, Processed: []string{"f1"},
		FinalWatermark: "f1", Error: "boom",
	}
	assert.Equal(t, `Run Notification: job job (run run) failed after 1 of 2 folders. Watermark: "f1", Error: boom`, completionMessage(failed))

	NewLogNotifier().NotifyRunCompletion(context.Background(), failed)
}
