// Package database defines the relational connection contracts used by the SQL watermark store.
package database

import (
	"context"
	"database/sql"
	"errors"

	dbconfig "github.com/tigerroll/deltaloader/pkg/batch/adapter/database/config"
	coreAdapter "github.com/tigerroll/deltaloader/pkg/batch/core/adapter"
)

// ErrRecordNotFound is returned by ExecuteQueryFirst when no row matches.
var ErrRecordNotFound = errors.New("record not found")

// DBExecutor is an interface that defines common write and read operations for a database.
type DBExecutor interface {
	// ExecuteUpsert performs an UPSERT operation (INSERT ... ON CONFLICT DO UPDATE).
	// model: The target model struct or slice.
	// tableName: The name of the table to operate on.
	// conflictColumns: List of column names used to detect conflicts.
	// updateColumns: List of column names to update on conflict (DO NOTHING if nil or empty).
	ExecuteUpsert(ctx context.Context, model interface{}, tableName string, conflictColumns []string, updateColumns []string) (rowsAffected int64, err error)

	// ExecuteQueryFirst loads the first row matching query into target.
	// It returns ErrRecordNotFound when nothing matches.
	ExecuteQueryFirst(ctx context.Context, target interface{}, tableName string, query map[string]interface{}) error

	// Count counts the number of records matching the query.
	Count(ctx context.Context, tableName string, query map[string]interface{}) (int64, error)
}

// DBConnection represents an abstraction of a database connection.
type DBConnection interface {
	coreAdapter.ResourceConnection // Embeds Type(), Name(), Close()
	DBExecutor                     // Embeds ExecuteUpsert, ExecuteQueryFirst, Count

	// IsTableNotExistError checks if the given error indicates that a table does not exist.
	IsTableNotExistError(err error) bool
	// RefreshConnection pings the database.
	RefreshConnection(ctx context.Context) error
	// Config returns the database configuration associated with this connection.
	Config() dbconfig.DatabaseConfig
	// GetSQLDB returns the underlying *sql.DB connection.
	GetSQLDB() (*sql.DB, error)
}

// DBConnectionResolver resolves named database connections, reconnecting when a pooled
// connection no longer answers.
type DBConnectionResolver interface {
	coreAdapter.ResourceConnectionResolver

	// ResolveDBConnection resolves a database connection instance by name.
	ResolveDBConnection(ctx context.Context, name string) (DBConnection, error)
}

// DBProvider is responsible for providing database connections of one type.
type DBProvider interface {
	// GetConnection retrieves a database connection with the specified name.
	GetConnection(name string) (DBConnection, error)
	// CloseAll closes all connections managed by this provider.
	CloseAll() error
	// Type returns the database type handled by this provider (e.g., "sqlite", "postgres").
	Type() string
	// ForceReconnect forces the closure and re-establishment of an existing connection with the specified name.
	ForceReconnect(name string) (DBConnection, error)
}

// DBProviderGroup is the Fx value group collecting every DBProvider implementation.
const DBProviderGroup = "db_providers"
