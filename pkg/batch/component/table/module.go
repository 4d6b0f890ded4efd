package table

import (
	"context"
	"fmt"

	"go.uber.org/fx"

	"github.com/tigerroll/deltaloader/pkg/batch/adapter/storage"
	config "github.com/tigerroll/deltaloader/pkg/batch/core/config"
	"github.com/tigerroll/deltaloader/pkg/batch/support/util/exception"
)

// NewConfiguredWriter builds the Writer. When loader.job.validate_merge_key is set the merge
// key is checked against the staged parquet schema through the staging connection.
func NewConfiguredWriter(cfg *config.Config, engine Engine, resolver storage.StorageConnectionResolver) (*Writer, error) {
	if !cfg.Loader.Job.ValidateMergeKey {
		return NewWriter(engine, nil), nil
	}
	name := cfg.Loader.Storage.StagingRef
	conn, err := resolver.ResolveStorageConnection(context.Background(), name)
	if err != nil {
		return nil, exception.NewConfigurationError("config", fmt.Sprintf("cannot resolve staging storage '%s'", name), err)
	}
	return NewWriter(engine, NewParquetKeyProbe(conn)), nil
}

// Module provides the Writer. An Engine must be provided by an engine module.
var Module = fx.Options(
	fx.Provide(NewConfiguredWriter),
)
