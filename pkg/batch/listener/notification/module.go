package notification

import (
	"go.uber.org/fx"

	"github.com/tigerroll/deltaloader/pkg/batch/core/ports"
)

// Module provides notification-related components.
var Module = fx.Options(
	// 1. Provides a concrete implementation of Notifier.
	fx.Provide(NewLogNotifier),

	// 2. Registers the listener with the driver.
	fx.Provide(fx.Annotate(
		NewNotificationListener,
		fx.ResultTags(`group:"`+ports.RunListenerGroup+`"`),
	)),
)
