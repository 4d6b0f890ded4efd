package ingest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tigerroll/deltaloader/pkg/batch/component/table"
	"github.com/tigerroll/deltaloader/pkg/batch/core/domain/model"
	"github.com/tigerroll/deltaloader/pkg/batch/core/metrics"
	"github.com/tigerroll/deltaloader/pkg/batch/infrastructure/repository/inmemory"
	"github.com/tigerroll/deltaloader/pkg/batch/support/util/exception"
)

type fakeLister struct {
	folders []string
	err     error
	calls   int
	prefix  string
}

func (l *fakeLister) ListSubfolders(ctx context.Context, bucket, prefix string) ([]string, error) {
	l.calls++
	l.prefix = prefix
	return l.folders, l.err
}

type fakeWriter struct {
	applied []string
	failOn  map[string]error
	cancel  context.CancelFunc
	ctxErrs []error
}

func (w *fakeWriter) Apply(ctx context.Context, req table.ApplyRequest) (table.Action, error) {
	if err := w.failOn[req.Staging.Key]; err != nil {
		return "", err
	}
	w.applied = append(w.applied, req.Staging.Key)
	if w.cancel != nil {
		w.cancel()
	}
	w.ctxErrs = append(w.ctxErrs, ctx.Err())
	return table.Action(req.Policy), nil
}

type failingStore struct {
	getErr, putErr error
}

func (s failingStore) Get(ctx context.Context, jobID string) (string, bool, error) {
	return "", false, s.getErr
}

func (s failingStore) Put(ctx context.Context, jobID, folder string) error {
	return s.putErr
}

func params(policy model.WritePolicy) model.JobParameters {
	return model.JobParameters{
		StagingBucket: "staging",
		StagingPath:   "incoming/orders",
		TableBucket:   "lake",
		TablePath:     "tables/orders",
		StagingFormat: model.FormatParquet,
		WritePolicy:   policy,
		PrimaryKey:    "id",
	}
}

func watermarkOf(t *testing.T, store *inmemory.InMemoryWatermarkStore, p model.JobParameters) (string, bool) {
	t.Helper()
	folder, found, err := store.Get(context.Background(), p.JobID())
	require.NoError(t, err)
	return folder, found
}

func TestRun_ProcessesInAscendingOrder(t *testing.T) {
	store := inmemory.NewInMemoryWatermarkStore(model.DefaultJobType)
	lister := &fakeLister{folders: []string{"2024-01-01", "2024-01-03", "2024-01-02"}}
	writer := &fakeWriter{}
	p := params(model.PolicyMerge)

	report, err := NewDriver(store, lister, writer, nil, nil).Run(context.Background(), p)
	require.NoError(t, err)

	assert.Equal(t, []string{"2024-01-01", "2024-01-02", "2024-01-03"}, writer.applied)
	assert.Equal(t, "incoming/orders/", lister.prefix)
	wm, found := watermarkOf(t, store, p)
	assert.True(t, found)
	assert.Equal(t, "2024-01-03", wm)

	assert.Equal(t, p.JobID(), report.JobID)
	assert.Equal(t, "", report.Watermark)
	assert.Equal(t, "2024-01-03", report.FinalWatermark)
	assert.Equal(t, 3, report.Candidates)
	assert.Equal(t, writer.applied, report.Processed)
	assert.True(t, report.Succeeded())
	assert.NotEmpty(t, report.RunID)
}

func TestRun_WatermarkFiltering(t *testing.T) {
	store := inmemory.NewInMemoryWatermarkStore(model.DefaultJobType)
	p := params(model.PolicyAppend)
	require.NoError(t, store.Put(context.Background(), p.JobID(), "2024-01-02"))
	writer := &fakeWriter{}

	_, err := NewDriver(store, &fakeLister{folders: []string{"2024-01-01", "2024-01-02", "2024-01-03"}}, writer, nil, nil).
		Run(context.Background(), p)
	require.NoError(t, err)
	assert.Equal(t, []string{"2024-01-03"}, writer.applied)
}

func TestRun_IdempotentResumption(t *testing.T) {
	store := inmemory.NewInMemoryWatermarkStore(model.DefaultJobType)
	lister := &fakeLister{folders: []string{"a/2024-01-01/", "a/2024-01-02/"}}
	writer := &fakeWriter{}
	driver := NewDriver(store, lister, writer, nil, nil)
	p := params(model.PolicyMerge)

	_, err := driver.Run(context.Background(), p)
	require.NoError(t, err)
	first, _ := watermarkOf(t, store, p)

	report, err := driver.Run(context.Background(), p)
	require.NoError(t, err)
	second, _ := watermarkOf(t, store, p)

	assert.Len(t, writer.applied, 2, "second run writes nothing")
	assert.Equal(t, first, second)
	assert.Empty(t, report.Processed)
	assert.Empty(t, report.Pending)
}

func TestRun_PartialFailureCheckpoint(t *testing.T) {
	store := inmemory.NewInMemoryWatermarkStore(model.DefaultJobType)
	lister := &fakeLister{folders: []string{"f1", "f2", "f3"}}
	writer := &fakeWriter{failOn: map[string]error{"f2": exception.NewWriteError("write", "merge failed", errors.New("boom"))}}
	driver := NewDriver(store, lister, writer, nil, nil)
	p := params(model.PolicyMerge)

	report, err := driver.Run(context.Background(), p)
	require.Error(t, err)
	assert.ErrorIs(t, err, exception.ErrWrite)
	le, ok := exception.AsLoaderError(err)
	require.True(t, ok)
	assert.Equal(t, p.JobID(), le.JobID)
	assert.Equal(t, "f2", le.Folder)

	wm, _ := watermarkOf(t, store, p)
	assert.Equal(t, "f1", wm)
	assert.Equal(t, []string{"f1"}, report.Processed)
	assert.False(t, report.Succeeded())

	// The retry starts at the failed folder.
	writer.failOn = nil
	writer.applied = nil
	_, err = driver.Run(context.Background(), p)
	require.NoError(t, err)
	assert.Equal(t, []string{"f2", "f3"}, writer.applied)
	wm, _ = watermarkOf(t, store, p)
	assert.Equal(t, "f3", wm)
}

func TestRun_PlainWriterErrorBecomesWriteError(t *testing.T) {
	store := inmemory.NewInMemoryWatermarkStore(model.DefaultJobType)
	writer := &fakeWriter{failOn: map[string]error{"f1": errors.New("engine crashed")}}

	_, err := NewDriver(store, &fakeLister{folders: []string{"f1"}}, writer, nil, nil).Run(context.Background(), params(model.PolicyAppend))
	assert.ErrorIs(t, err, exception.ErrWrite)
	_, found := watermarkOf(t, store, params(model.PolicyAppend))
	assert.False(t, found)
}

func TestRun_MergeWithoutKeyFailsBeforeAnyCall(t *testing.T) {
	lister := &fakeLister{folders: []string{"f1"}}
	writer := &fakeWriter{}
	p := params(model.PolicyMerge)
	p.PrimaryKey = ""

	_, err := NewDriver(failingStore{getErr: errors.New("must not be called")}, lister, writer, nil, nil).Run(context.Background(), p)
	require.Error(t, err)
	assert.ErrorIs(t, err, exception.ErrConfiguration)
	assert.Zero(t, lister.calls)
	assert.Empty(t, writer.applied)
}

func TestRun_UnknownPolicyFailsBeforeAnyCall(t *testing.T) {
	lister := &fakeLister{}
	_, err := NewDriver(inmemory.NewInMemoryWatermarkStore(model.DefaultJobType), lister, &fakeWriter{}, nil, nil).
		Run(context.Background(), params("replace"))
	assert.ErrorIs(t, err, exception.ErrConfiguration)
	assert.Zero(t, lister.calls)
}

func TestRun_AbsentWatermarkTreatsAllAsNew(t *testing.T) {
	writer := &fakeWriter{}
	report, err := NewDriver(inmemory.NewInMemoryWatermarkStore(model.DefaultJobType), &fakeLister{folders: []string{"", "x", "b"}}, writer, nil, nil).
		Run(context.Background(), params(model.PolicyAppend))
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "x"}, writer.applied, "the empty name is never greater than the empty watermark")
	assert.Equal(t, "", report.Watermark)
}

func TestRun_StoreReadFailure(t *testing.T) {
	lister := &fakeLister{folders: []string{"f1"}}
	_, err := NewDriver(failingStore{getErr: exception.NewStoreAccessError("get", "throttled", nil)}, lister, &fakeWriter{}, nil, nil).
		Run(context.Background(), params(model.PolicyAppend))
	assert.ErrorIs(t, err, exception.ErrStoreAccess)
	assert.Zero(t, lister.calls)
}

func TestRun_StoreWriteFailureStopsTheRun(t *testing.T) {
	writer := &fakeWriter{}
	_, err := NewDriver(failingStore{putErr: errors.New("timeout")}, &fakeLister{folders: []string{"f1", "f2"}}, writer, nil, nil).
		Run(context.Background(), params(model.PolicyAppend))
	require.Error(t, err)
	assert.ErrorIs(t, err, exception.ErrStoreAccess)
	le, _ := exception.AsLoaderError(err)
	assert.Equal(t, PhasePutWatermark, le.Phase)
	assert.Equal(t, []string{"f1"}, writer.applied)
}

func TestRun_ListingFailure(t *testing.T) {
	writer := &fakeWriter{}
	_, err := NewDriver(inmemory.NewInMemoryWatermarkStore(model.DefaultJobType), &fakeLister{err: errors.New("access denied")}, writer, nil, nil).
		Run(context.Background(), params(model.PolicyAppend))
	assert.ErrorIs(t, err, exception.ErrListing)
	assert.Empty(t, writer.applied)
}

func TestRun_OverwriteWithSeveralPendingFoldersIsRejected(t *testing.T) {
	store := inmemory.NewInMemoryWatermarkStore(model.DefaultJobType)
	writer := &fakeWriter{}
	_, err := NewDriver(store, &fakeLister{folders: []string{"f1", "f2"}}, writer, nil, nil).
		Run(context.Background(), params(model.PolicyOverwrite))
	require.Error(t, err)
	assert.ErrorIs(t, err, exception.ErrConfiguration)
	assert.Contains(t, err.Error(), "overwrite_latest_only")
	assert.Empty(t, writer.applied)
	_, found := watermarkOf(t, store, params(model.PolicyOverwrite))
	assert.False(t, found)
}

func TestRun_OverwriteLatestOnlyAppliesNewest(t *testing.T) {
	store := inmemory.NewInMemoryWatermarkStore(model.DefaultJobType)
	writer := &fakeWriter{}
	p := params(model.PolicyOverwrite)
	p.OverwriteLatestOnly = true

	report, err := NewDriver(store, &fakeLister{folders: []string{"f3", "f1", "f2"}}, writer, nil, nil).Run(context.Background(), p)
	require.NoError(t, err)
	assert.Equal(t, []string{"f3"}, writer.applied)
	assert.Equal(t, []string{"f1", "f2"}, report.Skipped)
	wm, _ := watermarkOf(t, store, p)
	assert.Equal(t, "f3", wm)
}

func TestRun_OverwriteWithOnePendingFolder(t *testing.T) {
	writer := &fakeWriter{}
	_, err := NewDriver(inmemory.NewInMemoryWatermarkStore(model.DefaultJobType), &fakeLister{folders: []string{"f1"}}, writer, nil, nil).
		Run(context.Background(), params(model.PolicyOverwrite))
	require.NoError(t, err)
	assert.Equal(t, []string{"f1"}, writer.applied)
}

func TestRun_CancellationStopsBetweenFolders(t *testing.T) {
	store := inmemory.NewInMemoryWatermarkStore(model.DefaultJobType)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	writer := &fakeWriter{cancel: cancel}
	p := params(model.PolicyAppend)

	_, err := NewDriver(store, &fakeLister{folders: []string{"f1", "f2"}}, writer, nil, nil).Run(ctx, p)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, []string{"f1"}, writer.applied)
	assert.Equal(t, []error{nil}, writer.ctxErrs, "the folder in flight keeps a live context")
	wm, _ := watermarkOf(t, store, p)
	assert.Equal(t, "f1", wm)
}

func TestRun_KeepsRunIDFromContext(t *testing.T) {
	ctx := model.WithRunID(context.Background(), "run-1")
	report, err := NewDriver(inmemory.NewInMemoryWatermarkStore(model.DefaultJobType), &fakeLister{}, &fakeWriter{}, nil, nil).
		Run(ctx, params(model.PolicyAppend))
	require.NoError(t, err)
	assert.Equal(t, "run-1", report.RunID)
}

type spyRecorder struct {
	metrics.NoOpMetricRecorder
	candidates, pending int
	applied             []string
	advances            int
	failures            []string
	ended               *model.RunReport
}

func (r *spyRecorder) RecordCandidates(ctx context.Context, jobID string, c, p int) {
	r.candidates, r.pending = c, p
}

func (r *spyRecorder) RecordFolderApplied(ctx context.Context, jobID, policy string, d time.Duration) {
	r.applied = append(r.applied, policy)
}

func (r *spyRecorder) RecordWatermarkAdvance(ctx context.Context, jobID string) { r.advances++ }

func (r *spyRecorder) RecordFailure(ctx context.Context, jobID, phase string) {
	r.failures = append(r.failures, phase)
}

func (r *spyRecorder) RecordRunEnd(ctx context.Context, report *model.RunReport) { r.ended = report }

type spyTracer struct {
	metrics.NoOpTracer
	folders []string
	errors  []string
}

func (t *spyTracer) StartFolderSpan(ctx context.Context, folder string) (context.Context, func()) {
	t.folders = append(t.folders, folder)
	return ctx, func() {}
}

func (t *spyTracer) RecordError(ctx context.Context, phase string, err error) {
	t.errors = append(t.errors, phase)
}

func TestRun_RecordsMetricsAndSpans(t *testing.T) {
	recorder := &spyRecorder{}
	tracer := &spyTracer{}
	writer := &fakeWriter{failOn: map[string]error{"f3": errors.New("boom")}}

	report, err := NewDriver(inmemory.NewInMemoryWatermarkStore(model.DefaultJobType), &fakeLister{folders: []string{"f1", "f2", "f3", "f2"}}, writer, recorder, tracer).
		Run(context.Background(), params(model.PolicyAppend))
	require.Error(t, err)

	assert.Equal(t, 4, recorder.candidates)
	assert.Equal(t, 3, recorder.pending)
	assert.Equal(t, []string{"append", "append"}, recorder.applied)
	assert.Equal(t, 2, recorder.advances)
	assert.Equal(t, []string{PhaseWrite}, recorder.failures)
	assert.Same(t, report, recorder.ended)
	assert.Equal(t, []string{"f1", "f2", "f3"}, tracer.folders)
	assert.Equal(t, []string{PhaseWrite}, tracer.errors)
}

type spyListener struct {
	started []string
	folders []string
	reports []*model.RunReport
}

func (l *spyListener) BeforeRun(ctx context.Context, p model.JobParameters) {
	l.started = append(l.started, p.JobID())
}

func (l *spyListener) AfterFolder(ctx context.Context, jobID, folder, action string) {
	l.folders = append(l.folders, folder+":"+action)
}

func (l *spyListener) AfterRun(ctx context.Context, report *model.RunReport) {
	l.reports = append(l.reports, report)
}

func TestRun_NotifiesListeners(t *testing.T) {
	listener := &spyListener{}
	p := params(model.PolicyAppend)
	writer := &fakeWriter{failOn: map[string]error{"f2": errors.New("boom")}}

	report, err := NewDriver(inmemory.NewInMemoryWatermarkStore(model.DefaultJobType), &fakeLister{folders: []string{"f2", "f1"}}, writer, nil, nil).
		WithListeners(listener, nil).
		Run(context.Background(), p)
	require.Error(t, err)

	assert.Equal(t, []string{p.JobID()}, listener.started)
	assert.Equal(t, []string{"f1:append"}, listener.folders)
	require.Len(t, listener.reports, 1)
	assert.Same(t, report, listener.reports[0])
}

func TestRun_ListenersSeeRejectedRuns(t *testing.T) {
	listener := &spyListener{}
	p := params(model.PolicyMerge)
	p.PrimaryKey = ""

	_, err := NewDriver(inmemory.NewInMemoryWatermarkStore(model.DefaultJobType), &fakeLister{}, &fakeWriter{}, nil, nil).
		WithListeners(listener).
		Run(context.Background(), p)
	require.Error(t, err)

	assert.Empty(t, listener.started)
	require.Len(t, listener.reports, 1)
	assert.NotEmpty(t, listener.reports[0].Error)
}
