package ports

import (
	"context"

	"github.com/tigerroll/deltaloader/pkg/batch/core/domain/model"
)

// Notifier is an abstract interface for notifying external systems about run results.
type Notifier interface {
	// NotifyRunCompletion notifies about the end of a run, successful or not.
	NotifyRunCompletion(ctx context.Context, report *model.RunReport)
}
