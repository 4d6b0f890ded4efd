package migration

import (
	"context"
	"fmt"
	"io/fs"

	"github.com/tigerroll/deltaloader/pkg/batch/adapter/database"
	dbconfig "github.com/tigerroll/deltaloader/pkg/batch/adapter/database/config"
	config "github.com/tigerroll/deltaloader/pkg/batch/core/config"
	"github.com/tigerroll/deltaloader/pkg/batch/support/util/exception"
	"github.com/tigerroll/deltaloader/pkg/batch/support/util/logger"
)

const migrationPhase = "migration"

// MigrationTasklet brings the schema of one named database connection up to date.
//
// The migration directory inside the filesystem is the database type ("sqlite",
// "postgres", "mysql") unless MigrationDir is set. golang-migrate closes the
// connection it ran on, so the tasklet re-establishes the connection through the
// provider before and after migrating.
type MigrationTasklet struct {
	cfg              *config.Config
	providers        map[string]database.DBProvider
	migratorProvider MigratorProvider
	migrationFS      fs.FS

	// DBRef is the name of the connection under adapter.database.
	DBRef string
	// MigrationDir overrides the directory inside the migration filesystem.
	MigrationDir string
	// Command is "up" (default) or "down".
	Command string
}

// NewMigrationTasklet creates a tasklet migrating the connection named dbRef.
func NewMigrationTasklet(
	cfg *config.Config,
	providers []database.DBProvider,
	migratorProvider MigratorProvider,
	migrationFS fs.FS,
	dbRef string,
) *MigrationTasklet {
	byType := make(map[string]database.DBProvider, len(providers))
	for _, p := range providers {
		byType[p.Type()] = p
	}
	return &MigrationTasklet{
		cfg:              cfg,
		providers:        byType,
		migratorProvider: migratorProvider,
		migrationFS:      migrationFS,
		DBRef:            dbRef,
		Command:          "up",
	}
}

// Execute runs the migration and returns a StoreAccessError on failure.
func (t *MigrationTasklet) Execute(ctx context.Context) error {
	dbConfig, err := dbconfig.Lookup(t.cfg, t.DBRef)
	if err != nil {
		return exception.NewConfigurationError(migrationPhase, fmt.Sprintf("cannot resolve database '%s'", t.DBRef), err)
	}

	provider, ok := t.providers[dbConfig.Type]
	if !ok {
		return exception.NewConfigurationErrorf(migrationPhase, "DBProvider for type '%s' not found", dbConfig.Type)
	}

	dbConn, err := provider.ForceReconnect(t.DBRef)
	if err != nil {
		return exception.NewStoreAccessError(migrationPhase, fmt.Sprintf("failed to connect to database '%s' before migration", t.DBRef), err)
	}

	migrationDir := t.MigrationDir
	if migrationDir == "" {
		migrationDir = dbConn.Type()
		logger.Debugf("Using DB type '%s' as migration directory.", migrationDir)
	}

	logger.Infof("Starting database migration '%s' for DB connection '%s' (dir: %s).", t.Command, t.DBRef, migrationDir)

	migrator := t.migratorProvider.NewMigrator(dbConn)
	switch t.Command {
	case "", "up":
		err = migrator.Up(ctx, t.migrationFS, migrationDir, WatermarkMigrationsTable)
	case "down":
		err = migrator.Down(ctx, t.migrationFS, migrationDir, WatermarkMigrationsTable)
	default:
		return exception.NewConfigurationErrorf(migrationPhase, "unknown migration command: %s", t.Command)
	}
	if err != nil {
		return exception.NewStoreAccessError(migrationPhase, fmt.Sprintf("migration '%s' failed for '%s'", t.Command, t.DBRef), err)
	}

	if _, err := provider.ForceReconnect(t.DBRef); err != nil {
		return exception.NewStoreAccessError(migrationPhase, fmt.Sprintf("failed to reconnect database '%s' after migration", t.DBRef), err)
	}
	logger.Infof("Database migration for '%s' completed.", t.DBRef)
	return nil
}
