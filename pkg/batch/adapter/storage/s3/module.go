package s3

import (
	"go.uber.org/fx"
)

// Module is the Fx module for the S3 storage adapter.
var Module = fx.Options(
	fx.Provide(fx.Annotate(
		NewS3Provider,
		fx.ResultTags(`group:"storage_providers"`),
	)),
)
