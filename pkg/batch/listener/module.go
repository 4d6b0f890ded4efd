// Package listener aggregates the run listeners shipped with the loader.
package listener

import (
	"go.uber.org/fx"

	"github.com/tigerroll/deltaloader/pkg/batch/listener/logging"
	"github.com/tigerroll/deltaloader/pkg/batch/listener/notification"
)

// Module aggregates all listener modules.
var Module = fx.Options(
	logging.Module,
	notification.Module,
)
