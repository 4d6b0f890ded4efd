// Package app assembles the loader's dependency graph and runs single invocations on it.
package app

import (
	"context"
	"os"
	"strings"

	"go.uber.org/fx"

	"github.com/tigerroll/deltaloader/pkg/batch/adapter/database/gorm"
	"github.com/tigerroll/deltaloader/pkg/batch/adapter/database/gorm/mysql"
	"github.com/tigerroll/deltaloader/pkg/batch/adapter/database/gorm/postgres"
	"github.com/tigerroll/deltaloader/pkg/batch/adapter/database/gorm/sqlite"
	"github.com/tigerroll/deltaloader/pkg/batch/adapter/storage"
	"github.com/tigerroll/deltaloader/pkg/batch/adapter/storage/gcs"
	"github.com/tigerroll/deltaloader/pkg/batch/adapter/storage/local"
	"github.com/tigerroll/deltaloader/pkg/batch/adapter/storage/s3"
	"github.com/tigerroll/deltaloader/pkg/batch/component/lister"
	"github.com/tigerroll/deltaloader/pkg/batch/component/table"
	"github.com/tigerroll/deltaloader/pkg/batch/component/table/duckdb"
	"github.com/tigerroll/deltaloader/pkg/batch/component/tasklet/migration"
	config "github.com/tigerroll/deltaloader/pkg/batch/core/config"
	"github.com/tigerroll/deltaloader/pkg/batch/core/domain/model"
	"github.com/tigerroll/deltaloader/pkg/batch/core/domain/repository"
	coreMetrics "github.com/tigerroll/deltaloader/pkg/batch/core/metrics"
	"github.com/tigerroll/deltaloader/pkg/batch/engine/ingest"
	"github.com/tigerroll/deltaloader/pkg/batch/infrastructure/metrics"
	watermark "github.com/tigerroll/deltaloader/pkg/batch/infrastructure/repository"
	"github.com/tigerroll/deltaloader/pkg/batch/listener"
	"github.com/tigerroll/deltaloader/pkg/batch/support/util/exception"
	"github.com/tigerroll/deltaloader/pkg/batch/support/util/logger"
)

// DBProviderModules maps the names accepted in DB_ADAPTORS to their provider modules.
var DBProviderModules = map[string]fx.Option{
	"postgres": postgres.Module,
	"mysql":    mysql.Module,
	"sqlite":   sqlite.Module,
}

// dbProviderOptions selects the DB providers named in the comma-separated DB_ADAPTORS
// environment variable. All of them are registered when it is unset.
func dbProviderOptions() []fx.Option {
	adaptors := os.Getenv("DB_ADAPTORS")
	if adaptors == "" {
		adaptors = "postgres,mysql,sqlite"
	}
	options := make([]fx.Option, 0, len(DBProviderModules))
	for _, name := range strings.Split(adaptors, ",") {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		if module, ok := DBProviderModules[name]; ok {
			options = append(options, module)
			logger.Debugf("DB Provider '%s' selected and registered.", name)
		} else {
			logger.Warnf("DB Provider '%s' is configured but not recognized/supported. Skipping.", name)
		}
	}
	return options
}

// infrastructure is the part of the graph shared by every command.
func infrastructure(cfg *config.Config) fx.Option {
	return fx.Options(
		fx.Supply(cfg),
		logger.Module,

		storage.Module,
		local.Module,
		s3.Module,
		gcs.Module,

		fx.Options(dbProviderOptions()...),
		gorm.Module,
		migration.Module,
		watermark.Module,
		metrics.Module,
	)
}

// Run builds the graph for cfg, runs one invocation for params, then stops the graph so that
// metrics are flushed and connections closed. The report is returned whenever the run started.
func Run(ctx context.Context, cfg *config.Config, params model.JobParameters) (*model.RunReport, error) {
	var (
		driver   *ingest.Driver
		recorder coreMetrics.MetricRecorder
	)
	app := fx.New(
		infrastructure(cfg),
		lister.Module,
		duckdb.Module,
		table.Module,
		ingest.Module,
		listener.Module,
		fx.Populate(&driver, &recorder),
	)
	if err := start(ctx, app); err != nil {
		return nil, err
	}
	defer stop(app)

	report, runErr := driver.Run(ctx, params)
	if err := recorder.Flush(context.Background()); err != nil {
		logger.Warnf("Failed to flush metrics: %v", err)
	}
	return report, runErr
}

// Status returns the stored watermark record of a job, or nil when none exists.
func Status(ctx context.Context, cfg *config.Config, jobID string) (*model.WatermarkRecord, error) {
	var inspector repository.WatermarkInspector
	app := fx.New(
		infrastructure(cfg),
		fx.Populate(&inspector),
	)
	if err := start(ctx, app); err != nil {
		return nil, err
	}
	defer stop(app)

	record, err := inspector.GetRecord(ctx, jobID)
	if err != nil {
		return nil, exception.Annotate(err, exception.KindStoreAccess, "status", jobID, "")
	}
	return record, nil
}

// start starts the graph. Construction failures that are not already classified are
// reported as configuration errors.
func start(ctx context.Context, app *fx.App) error {
	if err := app.Err(); err != nil {
		return classify(err)
	}
	startCtx, cancel := context.WithTimeout(ctx, app.StartTimeout())
	defer cancel()
	if err := app.Start(startCtx); err != nil {
		return classify(err)
	}
	return nil
}

func stop(app *fx.App) {
	stopCtx, cancel := context.WithTimeout(context.Background(), app.StopTimeout())
	defer cancel()
	if err := app.Stop(stopCtx); err != nil {
		logger.Warnf("Application shutdown reported errors: %v", err)
	}
}

func classify(err error) error {
	if _, ok := exception.AsLoaderError(err); ok {
		return err
	}
	return exception.NewConfigurationError("startup", "failed to assemble the application", err)
}
