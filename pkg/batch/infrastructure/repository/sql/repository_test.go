package sql

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tigerroll/deltaloader/pkg/batch/adapter/database"
	gormadapter "github.com/tigerroll/deltaloader/pkg/batch/adapter/database/gorm"
	"github.com/tigerroll/deltaloader/pkg/batch/adapter/database/gorm/sqlite"
	"github.com/tigerroll/deltaloader/pkg/batch/component/tasklet/migration"
	"github.com/tigerroll/deltaloader/pkg/batch/component/tasklet/migration/filesystem"
	"github.com/tigerroll/deltaloader/pkg/batch/core/config"
	"github.com/tigerroll/deltaloader/pkg/batch/core/domain/model"
	"github.com/tigerroll/deltaloader/pkg/batch/support/util/exception"
)

func newSQLiteConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.NewConfig()
	cfg.Loader.AdapterConfigs = map[string]interface{}{
		"database": map[string]interface{}{
			"watermark": map[string]interface{}{
				"type":     "sqlite",
				"database": filepath.Join(t.TempDir(), "watermark.db"),
			},
		},
	}
	return cfg
}

func newResolver(t *testing.T, cfg *config.Config, migrate bool) *gormadapter.GormDBConnectionResolver {
	t.Helper()
	provider := sqlite.NewProvider(cfg)
	resolver := gormadapter.NewResolver(cfg, provider)
	t.Cleanup(func() { _ = resolver.CloseAll() })

	if migrate {
		tasklet := migration.NewMigrationTasklet(cfg, []database.DBProvider{provider},
			migration.NewMigratorProvider(), filesystem.ProvideWatermarkMigrationsFS(), "watermark")
		require.NoError(t, tasklet.Execute(context.Background()))
	}
	return resolver
}

func TestSQLWatermarkStore_RoundTrip(t *testing.T) {
	cfg := newSQLiteConfig(t)
	store := NewSQLWatermarkStore(newResolver(t, cfg, true), "watermark", "", "")
	fixed := time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return fixed }
	ctx := model.WithRunID(context.Background(), "run-42")

	folder, found, err := store.Get(ctx, "abc")
	require.NoError(t, err)
	assert.False(t, found)
	assert.Empty(t, folder)

	require.NoError(t, store.Put(ctx, "abc", "staging/2024-01-02/"))
	require.NoError(t, store.Put(ctx, "abc", "staging/2024-01-03/"))
	require.NoError(t, store.Put(ctx, "other", "staging/2023-12-31/"))

	folder, found, err = store.Get(ctx, "abc")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "staging/2024-01-03/", folder)

	rec, err := store.GetRecord(ctx, "abc")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, model.DefaultJobType, rec.JobType)
	assert.Equal(t, "abc", rec.JobName)
	assert.Equal(t, "run-42", rec.RunID)
	assert.True(t, fixed.Equal(rec.UpdatedAt))

	folder, _, err = store.Get(ctx, "other")
	require.NoError(t, err)
	assert.Equal(t, "staging/2023-12-31/", folder)
}

func TestSQLWatermarkStore_JobTypeScopesRecords(t *testing.T) {
	cfg := newSQLiteConfig(t)
	resolver := newResolver(t, cfg, true)
	loader := NewSQLWatermarkStore(resolver, "watermark", DefaultTableName, "delta-loader")
	other := NewSQLWatermarkStore(resolver, "watermark", DefaultTableName, "other-loader")
	ctx := context.Background()

	require.NoError(t, loader.Put(ctx, "job", "a/"))

	_, found, err := other.Get(ctx, "job")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestSQLWatermarkStore_MissingTableIsStoreAccessError(t *testing.T) {
	cfg := newSQLiteConfig(t)
	store := NewSQLWatermarkStore(newResolver(t, cfg, false), "watermark", "", "")

	_, _, err := store.Get(context.Background(), "abc")
	require.Error(t, err)
	assert.ErrorIs(t, err, exception.ErrStoreAccess)
	assert.Contains(t, err.Error(), "auto_migrate")

	err = store.Put(context.Background(), "abc", "x/")
	require.Error(t, err)
	assert.Equal(t, exception.KindStoreAccess, exception.KindOf(err))
}

func TestSQLWatermarkStore_UnknownConnection(t *testing.T) {
	cfg := newSQLiteConfig(t)
	store := NewSQLWatermarkStore(newResolver(t, cfg, false), "missing", "", "")

	_, _, err := store.Get(context.Background(), "abc")
	require.Error(t, err)
	assert.ErrorIs(t, err, exception.ErrStoreAccess)
}
