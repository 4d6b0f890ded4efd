package storage

import (
	"context"
	"fmt"

	"github.com/hashicorp/go-multierror"

	storageConfig "github.com/tigerroll/deltaloader/pkg/batch/adapter/storage/config"
	coreAdapter "github.com/tigerroll/deltaloader/pkg/batch/core/adapter"
	coreConfig "github.com/tigerroll/deltaloader/pkg/batch/core/config"
	"github.com/tigerroll/deltaloader/pkg/batch/support/util/logger"
)

// DefaultConnectionResolver dispatches named connections to the provider registered for the
// connection's configured type.
type DefaultConnectionResolver struct {
	providers map[string]StorageProvider
	cfg       *coreConfig.Config
}

// Verify that DefaultConnectionResolver implements StorageConnectionResolver.
var _ StorageConnectionResolver = (*DefaultConnectionResolver)(nil)

// NewDefaultConnectionResolver creates a resolver over providers keyed by their Type().
func NewDefaultConnectionResolver(providers map[string]StorageProvider, cfg *coreConfig.Config) *DefaultConnectionResolver {
	return &DefaultConnectionResolver{providers: providers, cfg: cfg}
}

// ResolveConnection resolves a generic resource connection by name.
func (r *DefaultConnectionResolver) ResolveConnection(ctx context.Context, name string) (coreAdapter.ResourceConnection, error) {
	return r.ResolveStorageConnection(ctx, name)
}

// ResolveStorageConnection looks up the connection's type in configuration and asks the
// matching provider for it.
func (r *DefaultConnectionResolver) ResolveStorageConnection(ctx context.Context, name string) (StorageConnection, error) {
	sc, err := storageConfig.Lookup(r.cfg, name)
	if err != nil {
		return nil, err
	}

	provider, ok := r.providers[sc.Type]
	if !ok {
		return nil, fmt.Errorf("no storage provider found for type '%s' (connection '%s')", sc.Type, name)
	}

	conn, err := provider.GetConnection(name)
	if err != nil {
		return nil, fmt.Errorf("failed to get storage connection '%s' from provider '%s': %w", name, sc.Type, err)
	}
	logger.Debugf("Resolved storage connection '%s' (type: %s).", name, sc.Type)
	return conn, nil
}

// CloseAll closes every provider and aggregates the failures.
func (r *DefaultConnectionResolver) CloseAll() error {
	var result *multierror.Error
	for typ, p := range r.providers {
		if err := p.CloseAll(); err != nil {
			result = multierror.Append(result, fmt.Errorf("storage provider '%s': %w", typ, err))
		}
	}
	return result.ErrorOrNil()
}
