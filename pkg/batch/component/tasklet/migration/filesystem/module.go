package filesystem

import (
	"go.uber.org/fx"
)

// WatermarkMigrationsFSTag is the Fx tag for the embedded watermark migrations filesystem.
const WatermarkMigrationsFSTag = `name:"watermarkMigrationsFS"`

// Module provides the embedded migrations filesystem.
var Module = fx.Options(
	fx.Provide(fx.Annotate(
		ProvideWatermarkMigrationsFS,
		fx.ResultTags(WatermarkMigrationsFSTag),
	)),
)
