package local

import (
	"go.uber.org/fx"
)

// Module is the Fx module for the local storage adapter.
// It contributes the LocalProvider to the "storage_providers" group.
var Module = fx.Options(
	fx.Provide(fx.Annotate(
		NewLocalProvider,
		fx.ResultTags(`group:"storage_providers"`),
	)),
)
