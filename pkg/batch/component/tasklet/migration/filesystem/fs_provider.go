// Package filesystem embeds the schema migrations of the SQL watermark store.
package filesystem

import (
	"embed"
	"io/fs"

	"github.com/tigerroll/deltaloader/pkg/batch/support/util/logger"
)

//go:embed resource
var rawWatermarkMigrationFS embed.FS

// ProvideWatermarkMigrationsFS returns the embedded migrations with one directory per
// database type ("sqlite", "postgres", "mysql") at the root.
func ProvideWatermarkMigrationsFS() fs.FS {
	subFS, err := fs.Sub(rawWatermarkMigrationFS, "resource")
	if err != nil {
		// This should not happen if 'resource' exists.
		logger.Fatalf("Failed to create subdirectory for watermark migration FS: %v", err)
	}
	return subFS
}
