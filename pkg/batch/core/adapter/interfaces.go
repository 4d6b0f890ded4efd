// Package adapter defines the contracts shared by every resource adapter (storage, database).
package adapter

import (
	"context"
)

// ResourceConnection represents a generic connection to any resource (e.g., database, storage).
type ResourceConnection interface {
	// Close closes the resource connection.
	Close() error
	// Type returns the type of the resource (e.g., "mysql", "s3").
	Type() string
	// Name returns the connection name (e.g., "staging", "watermark").
	Name() string
}

// ResourceProvider is responsible for providing resource connections based on configuration.
type ResourceProvider interface {
	// GetConnection retrieves a resource connection with the specified name.
	GetConnection(name string) (ResourceConnection, error)
	// CloseAll closes all connections managed by this provider.
	CloseAll() error
	// Type returns the type of resource handled by this provider (e.g., "s3", "sqlite").
	Type() string
}

// ResourceConnectionResolver resolves named connections to live instances.
type ResourceConnectionResolver interface {
	// ResolveConnection resolves a resource connection instance by name.
	// The returned connection is valid; implementations re-establish it if necessary.
	ResolveConnection(ctx context.Context, name string) (ResourceConnection, error)
}
