// Package repository selects and wires the watermark store backend named by
// loader.watermark.backend.
package repository

import (
	"context"
	"io/fs"
	"strings"

	"go.uber.org/fx"

	"github.com/tigerroll/deltaloader/pkg/batch/adapter/database"
	"github.com/tigerroll/deltaloader/pkg/batch/component/tasklet/migration"
	"github.com/tigerroll/deltaloader/pkg/batch/core/config"
	domain "github.com/tigerroll/deltaloader/pkg/batch/core/domain/repository"
	"github.com/tigerroll/deltaloader/pkg/batch/infrastructure/repository/dynamodb"
	"github.com/tigerroll/deltaloader/pkg/batch/infrastructure/repository/inmemory"
	sqlstore "github.com/tigerroll/deltaloader/pkg/batch/infrastructure/repository/sql"
	"github.com/tigerroll/deltaloader/pkg/batch/support/util/awsconfig"
	"github.com/tigerroll/deltaloader/pkg/batch/support/util/exception"
	"github.com/tigerroll/deltaloader/pkg/batch/support/util/logger"
)

// StoreParams are the Fx inputs of NewWatermarkStore. Only the SQL backend needs the
// database collaborators.
type StoreParams struct {
	fx.In
	Lifecycle        fx.Lifecycle
	Config           *config.Config
	DBResolver       database.DBConnectionResolver `optional:"true"`
	DBProviders      []database.DBProvider         `group:"db_providers"`
	MigratorProvider migration.MigratorProvider    `optional:"true"`
	MigrationFS      fs.FS                         `name:"watermarkMigrationsFS" optional:"true"`
}

// NewWatermarkStore builds the configured backend. With the SQL backend and auto_migrate
// enabled, the schema migration runs when the application starts.
func NewWatermarkStore(p StoreParams) (domain.WatermarkStore, error) {
	wc := p.Config.Loader.Watermark
	jobType := p.Config.Loader.Job.JobType

	switch strings.ToLower(wc.Backend) {
	case config.WatermarkBackendMemory:
		logger.Warnf("Watermark backend is 'memory': progress is lost when the process exits.")
		return inmemory.NewInMemoryWatermarkStore(jobType), nil

	case config.WatermarkBackendDynamoDB, "":
		client, err := dynamodb.NewClient(awsconfig.SessionOptions{
			Region:   wc.Region,
			Endpoint: wc.Endpoint,
		})
		if err != nil {
			return nil, err
		}
		logger.Infof("Watermark backend: DynamoDB table '%s'.", wc.Table)
		return dynamodb.NewDynamoDBWatermarkStore(client, wc.Table, jobType), nil

	case config.WatermarkBackendSQL:
		if p.DBResolver == nil {
			return nil, exception.NewConfigurationErrorf("config", "watermark backend 'sql' requires a database resolver")
		}
		store := sqlstore.NewSQLWatermarkStore(p.DBResolver, wc.DatabaseRef, wc.Table, jobType)
		if wc.AutoMigrate {
			if p.MigratorProvider == nil || p.MigrationFS == nil {
				return nil, exception.NewConfigurationErrorf("config", "watermark.auto_migrate requires the migration module")
			}
			if wc.Table != "" && wc.Table != sqlstore.DefaultTableName {
				logger.Warnf("Migrations create '%s' but watermark.table is '%s'; create that table yourself.", sqlstore.DefaultTableName, wc.Table)
			}
			tasklet := migration.NewMigrationTasklet(p.Config, p.DBProviders, p.MigratorProvider, p.MigrationFS, wc.DatabaseRef)
			p.Lifecycle.Append(fx.Hook{
				OnStart: func(ctx context.Context) error {
					return tasklet.Execute(ctx)
				},
			})
		}
		logger.Infof("Watermark backend: SQL connection '%s', table '%s'.", wc.DatabaseRef, wc.Table)
		return store, nil

	default:
		return nil, exception.NewConfigurationErrorf("config", "unknown watermark backend '%s' (expected dynamodb, sql or memory)", wc.Backend)
	}
}

// NewWatermarkInspector exposes the full-record view of the configured store.
func NewWatermarkInspector(store domain.WatermarkStore) (domain.WatermarkInspector, error) {
	inspector, ok := store.(domain.WatermarkInspector)
	if !ok {
		return nil, exception.NewConfigurationErrorf("config", "watermark store %T cannot return records", store)
	}
	return inspector, nil
}

// Module provides domain.WatermarkStore and domain.WatermarkInspector.
var Module = fx.Options(
	fx.Provide(NewWatermarkStore),
	fx.Provide(NewWatermarkInspector),
)
