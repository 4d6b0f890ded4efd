package inmemory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tigerroll/deltaloader/pkg/batch/core/domain/model"
)

func TestInMemoryWatermarkStore_GetAbsent(t *testing.T) {
	s := NewInMemoryWatermarkStore("")

	folder, found, err := s.Get(context.Background(), "job")
	require.NoError(t, err)
	assert.False(t, found)
	assert.Empty(t, folder)

	rec, err := s.GetRecord(context.Background(), "job")
	require.NoError(t, err)
	assert.Nil(t, rec)
}

func TestInMemoryWatermarkStore_PutOverwrites(t *testing.T) {
	s := NewInMemoryWatermarkStore("delta-loader")
	fixed := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	s.now = func() time.Time { return fixed }
	ctx := model.WithRunID(context.Background(), "run-1")

	require.NoError(t, s.Put(ctx, "job", "staging/2024-01-02/"))
	require.NoError(t, s.Put(ctx, "job", "staging/2024-01-01/"))

	folder, found, err := s.Get(ctx, "job")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "staging/2024-01-01/", folder, "Put must not compare against the stored value")

	rec, err := s.GetRecord(ctx, "job")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, "delta-loader", rec.JobType)
	assert.Equal(t, "job", rec.JobName)
	assert.Equal(t, "run-1", rec.RunID)
	assert.Equal(t, fixed, rec.UpdatedAt)

	rec.LastFolder = "mutated"
	folder, _, _ = s.Get(ctx, "job")
	assert.Equal(t, "staging/2024-01-01/", folder)
}
