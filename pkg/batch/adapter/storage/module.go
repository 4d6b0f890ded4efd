package storage

import (
	"context"

	"go.uber.org/fx"

	coreConfig "github.com/tigerroll/deltaloader/pkg/batch/core/config"
	"github.com/tigerroll/deltaloader/pkg/batch/support/util/logger"
)

// ProvidersParams collects every StorageProvider registered in the "storage_providers" group.
type ProvidersParams struct {
	fx.In
	Providers []StorageProvider `group:"storage_providers"`
	Config    *coreConfig.Config
	Lifecycle fx.Lifecycle
}

// NewStorageConnectionResolver builds the resolver and closes every provider on shutdown.
func NewStorageConnectionResolver(p ProvidersParams) StorageConnectionResolver {
	providers := make(map[string]StorageProvider, len(p.Providers))
	for _, provider := range p.Providers {
		providers[provider.Type()] = provider
	}
	resolver := NewDefaultConnectionResolver(providers, p.Config)
	p.Lifecycle.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			logger.Debugf("Closing storage connections.")
			return resolver.CloseAll()
		},
	})
	return resolver
}

// Module provides the StorageConnectionResolver. Backend modules (local, s3, gcs) contribute
// providers to the "storage_providers" group.
var Module = fx.Options(
	fx.Provide(NewStorageConnectionResolver),
)
