// Package migration runs golang-migrate schema migrations against a named database connection.
package migration

import (
	"go.uber.org/fx"

	"github.com/tigerroll/deltaloader/pkg/batch/component/tasklet/migration/filesystem"
)

// Module provides the MigratorProvider and the embedded watermark migrations.
var Module = fx.Options(
	fx.Provide(NewMigratorProvider),
	filesystem.Module,
)
