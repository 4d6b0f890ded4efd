package lister

import (
	"context"
	"fmt"

	"go.uber.org/fx"

	"github.com/tigerroll/deltaloader/pkg/batch/adapter/storage"
	config "github.com/tigerroll/deltaloader/pkg/batch/core/config"
	"github.com/tigerroll/deltaloader/pkg/batch/support/util/exception"
)

// NewStagingLister resolves the staging storage connection (loader.storage.staging_ref).
func NewStagingLister(cfg *config.Config, resolver storage.StorageConnectionResolver) (*ObjectLister, error) {
	name := cfg.Loader.Storage.StagingRef
	conn, err := resolver.ResolveStorageConnection(context.Background(), name)
	if err != nil {
		return nil, exception.NewConfigurationError("config", fmt.Sprintf("cannot resolve staging storage '%s'", name), err)
	}
	return NewObjectLister(conn), nil
}

// Module provides the staging ObjectLister.
var Module = fx.Options(
	fx.Provide(NewStagingLister),
)
