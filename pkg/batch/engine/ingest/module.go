package ingest

import (
	"go.uber.org/fx"

	"github.com/tigerroll/deltaloader/pkg/batch/component/lister"
	"github.com/tigerroll/deltaloader/pkg/batch/component/table"
	"github.com/tigerroll/deltaloader/pkg/batch/core/domain/repository"
	"github.com/tigerroll/deltaloader/pkg/batch/core/metrics"
	"github.com/tigerroll/deltaloader/pkg/batch/core/ports"
)

// DriverParams are the collaborators of the Driver built by the application graph.
type DriverParams struct {
	fx.In
	Store    repository.WatermarkStore
	Lister   *lister.ObjectLister
	Writer   *table.Writer
	Recorder metrics.MetricRecorder
	Tracer   metrics.Tracer
	// Listeners are the run listeners registered in the graph, possibly none.
	Listeners []ports.RunListener `group:"run_listeners"`
}

// NewConfiguredDriver wires the Driver from the graph.
func NewConfiguredDriver(p DriverParams) *Driver {
	return NewDriver(p.Store, p.Lister, p.Writer, p.Recorder, p.Tracer).WithListeners(p.Listeners...)
}

// Module provides the Driver.
var Module = fx.Options(
	fx.Provide(NewConfiguredDriver),
)
