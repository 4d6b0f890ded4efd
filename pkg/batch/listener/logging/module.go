package logging

import (
	"go.uber.org/fx"

	"github.com/tigerroll/deltaloader/pkg/batch/core/ports"
)

// Module registers the logging run listener.
var Module = fx.Provide(fx.Annotate(
	NewLoggingRunListener,
	fx.ResultTags(`group:"`+ports.RunListenerGroup+`"`),
))
