package repository

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx/fxtest"

	"github.com/tigerroll/deltaloader/pkg/batch/adapter/database"
	gormadapter "github.com/tigerroll/deltaloader/pkg/batch/adapter/database/gorm"
	"github.com/tigerroll/deltaloader/pkg/batch/adapter/database/gorm/sqlite"
	"github.com/tigerroll/deltaloader/pkg/batch/component/tasklet/migration"
	"github.com/tigerroll/deltaloader/pkg/batch/component/tasklet/migration/filesystem"
	"github.com/tigerroll/deltaloader/pkg/batch/core/config"
	"github.com/tigerroll/deltaloader/pkg/batch/infrastructure/repository/dynamodb"
	"github.com/tigerroll/deltaloader/pkg/batch/infrastructure/repository/inmemory"
	"github.com/tigerroll/deltaloader/pkg/batch/support/util/exception"
)

func TestNewWatermarkStore_Memory(t *testing.T) {
	cfg := config.NewConfig()
	cfg.Loader.Watermark.Backend = config.WatermarkBackendMemory

	store, err := NewWatermarkStore(StoreParams{Lifecycle: fxtest.NewLifecycle(t), Config: cfg})
	require.NoError(t, err)
	assert.IsType(t, &inmemory.InMemoryWatermarkStore{}, store)

	inspector, err := NewWatermarkInspector(store)
	require.NoError(t, err)
	assert.NotNil(t, inspector)
}

func TestNewWatermarkStore_DynamoDB(t *testing.T) {
	cfg := config.NewConfig()
	cfg.Loader.Watermark.Region = "us-east-1"

	store, err := NewWatermarkStore(StoreParams{Lifecycle: fxtest.NewLifecycle(t), Config: cfg})
	require.NoError(t, err)
	assert.IsType(t, &dynamodb.DynamoDBWatermarkStore{}, store)
}

func TestNewWatermarkStore_UnknownBackend(t *testing.T) {
	cfg := config.NewConfig()
	cfg.Loader.Watermark.Backend = "redis"

	_, err := NewWatermarkStore(StoreParams{Lifecycle: fxtest.NewLifecycle(t), Config: cfg})
	require.Error(t, err)
	assert.ErrorIs(t, err, exception.ErrConfiguration)
}

func TestNewWatermarkStore_SQLWithoutResolver(t *testing.T) {
	cfg := config.NewConfig()
	cfg.Loader.Watermark.Backend = config.WatermarkBackendSQL

	_, err := NewWatermarkStore(StoreParams{Lifecycle: fxtest.NewLifecycle(t), Config: cfg})
	require.Error(t, err)
	assert.ErrorIs(t, err, exception.ErrConfiguration)
}

func TestNewWatermarkStore_SQLAutoMigratesOnStart(t *testing.T) {
	cfg := config.NewConfig()
	cfg.Loader.Watermark.Backend = config.WatermarkBackendSQL
	cfg.Loader.AdapterConfigs = map[string]interface{}{
		"database": map[string]interface{}{
			"watermark": map[string]interface{}{
				"type":     "sqlite",
				"database": filepath.Join(t.TempDir(), "wm.db"),
			},
		},
	}
	provider := sqlite.NewProvider(cfg)
	resolver := gormadapter.NewResolver(cfg, provider)
	defer resolver.CloseAll()

	lc := fxtest.NewLifecycle(t)
	store, err := NewWatermarkStore(StoreParams{
		Lifecycle:        lc,
		Config:           cfg,
		DBResolver:       resolver,
		DBProviders:      []database.DBProvider{provider},
		MigratorProvider: migration.NewMigratorProvider(),
		MigrationFS:      filesystem.ProvideWatermarkMigrationsFS(),
	})
	require.NoError(t, err)

	lc.RequireStart()
	defer lc.RequireStop()

	ctx := context.Background()
	require.NoError(t, store.Put(ctx, "job", "2024-01-01/"))
	folder, found, err := store.Get(ctx, "job")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "2024-01-01/", folder)
}
