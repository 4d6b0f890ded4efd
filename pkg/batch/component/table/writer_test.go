package table

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tigerroll/deltaloader/pkg/batch/core/domain/model"
	"github.com/tigerroll/deltaloader/pkg/batch/support/util/exception"
)

type fakeEngine struct {
	exists      bool
	existsErr   error
	writeErr    error
	manifestErr error
	calls       []string
}

func (e *fakeEngine) TableExists(ctx context.Context, table model.Location) (bool, error) {
	e.calls = append(e.calls, "exists")
	return e.exists, e.existsErr
}

func (e *fakeEngine) write(op string) error {
	e.calls = append(e.calls, op)
	if e.writeErr != nil {
		return e.writeErr
	}
	e.exists = true
	return nil
}

func (e *fakeEngine) Create(ctx context.Context, req ApplyRequest) error { return e.write("create") }
func (e *fakeEngine) Append(ctx context.Context, req ApplyRequest) error { return e.write("append") }
func (e *fakeEngine) Overwrite(ctx context.Context, req ApplyRequest) error {
	return e.write("overwrite")
}
func (e *fakeEngine) Merge(ctx context.Context, req ApplyRequest) error { return e.write("merge") }

func (e *fakeEngine) GenerateManifest(ctx context.Context, table model.Location) error {
	e.calls = append(e.calls, "manifest")
	return e.manifestErr
}

type fakeProbe struct {
	has bool
	err error
}

func (p fakeProbe) HasColumn(ctx context.Context, staging model.Location, format model.StagingFormat, column string) (bool, error) {
	return p.has, p.err
}

func request(policy model.WritePolicy, key string) ApplyRequest {
	return ApplyRequest{
		Staging:    model.Location{Bucket: "staging", Key: "in/2024-01-01/"},
		Table:      model.Location{Bucket: "lake", Key: "tables/events"},
		Format:     model.FormatParquet,
		Policy:     policy,
		PrimaryKey: key,
	}
}

func TestApply_FirstWriteCreatesRegardlessOfPolicy(t *testing.T) {
	for _, policy := range []model.WritePolicy{model.PolicyAppend, model.PolicyOverwrite, model.PolicyMerge} {
		t.Run(string(policy), func(t *testing.T) {
			engine := &fakeEngine{}
			action, err := NewWriter(engine, nil).Apply(context.Background(), request(policy, "id"))
			require.NoError(t, err)
			assert.Equal(t, ActionCreate, action)
			assert.Equal(t, []string{"exists", "create", "manifest"}, engine.calls)
		})
	}
}

func TestApply_ExistingTableFollowsPolicy(t *testing.T) {
	cases := map[model.WritePolicy]Action{
		model.PolicyAppend:    ActionAppend,
		model.PolicyOverwrite: ActionOverwrite,
		model.PolicyMerge:     ActionMerge,
	}
	for policy, want := range cases {
		t.Run(string(policy), func(t *testing.T) {
			engine := &fakeEngine{exists: true}
			action, err := NewWriter(engine, fakeProbe{has: true}).Apply(context.Background(), request(policy, "id"))
			require.NoError(t, err)
			assert.Equal(t, want, action)
			assert.Equal(t, []string{"exists", string(want), "manifest"}, engine.calls)
		})
	}
}

func TestApply_InvalidPolicyTouchesNothing(t *testing.T) {
	engine := &fakeEngine{exists: true}
	_, err := NewWriter(engine, nil).Apply(context.Background(), request("upsert", "id"))
	require.Error(t, err)
	assert.ErrorIs(t, err, exception.ErrConfiguration)
	assert.Empty(t, engine.calls)
}

func TestApply_MergeWithoutKeyTouchesNothing(t *testing.T) {
	engine := &fakeEngine{exists: true}
	_, err := NewWriter(engine, nil).Apply(context.Background(), request(model.PolicyMerge, ""))
	assert.ErrorIs(t, err, exception.ErrConfiguration)
	assert.Empty(t, engine.calls)
}

func TestApply_ManifestFailureFailsTheBatch(t *testing.T) {
	engine := &fakeEngine{exists: true, manifestErr: errors.New("list files failed")}
	_, err := NewWriter(engine, nil).Apply(context.Background(), request(model.PolicyAppend, ""))
	require.Error(t, err)
	assert.ErrorIs(t, err, exception.ErrWrite)

	le, ok := exception.AsLoaderError(err)
	require.True(t, ok)
	assert.Equal(t, "manifest", le.Phase)
	assert.Equal(t, "in/2024-01-01/", le.Folder)
	assert.Equal(t, []string{"exists", "append", "manifest"}, engine.calls)
}

func TestApply_WriteFailureSkipsManifest(t *testing.T) {
	engine := &fakeEngine{exists: true, writeErr: errors.New("disk full")}
	_, err := NewWriter(engine, nil).Apply(context.Background(), request(model.PolicyOverwrite, ""))
	assert.ErrorIs(t, err, exception.ErrWrite)
	assert.Equal(t, []string{"exists", "overwrite"}, engine.calls)
}

func TestApply_ExistenceCheckFailure(t *testing.T) {
	engine := &fakeEngine{existsErr: errors.New("catalog unreachable")}
	_, err := NewWriter(engine, nil).Apply(context.Background(), request(model.PolicyAppend, ""))
	assert.ErrorIs(t, err, exception.ErrWrite)
	assert.Equal(t, []string{"exists"}, engine.calls)
}

func TestApply_MergeKeyMissingFromStagedData(t *testing.T) {
	engine := &fakeEngine{exists: true}
	_, err := NewWriter(engine, fakeProbe{has: false}).Apply(context.Background(), request(model.PolicyMerge, "order_id"))
	require.Error(t, err)
	assert.ErrorIs(t, err, exception.ErrWrite)
	assert.Contains(t, err.Error(), "order_id")
	assert.Equal(t, []string{"exists"}, engine.calls)
}

func TestApply_MergeKeyProbeError(t *testing.T) {
	engine := &fakeEngine{exists: true}
	_, err := NewWriter(engine, fakeProbe{err: errors.New("access denied")}).Apply(context.Background(), request(model.PolicyMerge, "id"))
	assert.ErrorIs(t, err, exception.ErrWrite)
	assert.Equal(t, []string{"exists"}, engine.calls)
}

func TestApply_CreateSkipsMergeKeyProbe(t *testing.T) {
	engine := &fakeEngine{}
	action, err := NewWriter(engine, fakeProbe{has: false}).Apply(context.Background(), request(model.PolicyMerge, "id"))
	require.NoError(t, err)
	assert.Equal(t, ActionCreate, action)
}
