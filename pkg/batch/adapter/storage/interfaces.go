// Package storage defines the common interfaces for object storage adapters.
// These interfaces abstract storage operations, allowing the loader to list staging folders
// and publish manifests on different backends (S3, GCS, local file system) through one API.
package storage

import (
	"context"
	"io"
	"time"

	coreAdapter "github.com/tigerroll/deltaloader/pkg/batch/core/adapter"
)

// ObjectInfo describes one stored object.
type ObjectInfo struct {
	Key          string
	LastModified time.Time
	Size         int64
}

// StorageExecutor defines generic storage operations.
type StorageExecutor interface {
	// Upload uploads data to the specified bucket and object name.
	// 'data' is the stream of data to upload. 'contentType' is the MIME type of the data.
	Upload(ctx context.Context, bucket, objectName string, data io.Reader, contentType string) error
	// Download downloads data from the specified bucket and object name.
	// It returns a ReadCloser which must be closed by the caller after use.
	Download(ctx context.Context, bucket, objectName string) (io.ReadCloser, error)
	// ListObjects lists every object whose key starts with prefix, across all pages.
	// The 'fn' callback is called for each object; a non-nil return stops the listing and is
	// returned to the caller.
	ListObjects(ctx context.Context, bucket, prefix string, fn func(obj ObjectInfo) error) error
	// ListPrefixes lists the common prefixes directly below prefix using delimiter, across all
	// pages. Each returned prefix is a full key ending with the delimiter.
	ListPrefixes(ctx context.Context, bucket, prefix, delimiter string, fn func(prefix string) error) error
	// DeleteObject deletes the specified object from the bucket.
	DeleteObject(ctx context.Context, bucket, objectName string) error
}

// StorageConnection represents a generic data storage connection.
type StorageConnection interface {
	coreAdapter.ResourceConnection // Inherits Close(), Type(), Name()
	StorageExecutor                // Inherits Upload(), Download(), ListObjects(), ListPrefixes(), DeleteObject()
}

// StorageProvider manages the acquisition and lifecycle of storage connections of one type.
type StorageProvider interface {
	// GetConnection retrieves a StorageConnection with the specified name.
	GetConnection(name string) (StorageConnection, error)
	// CloseAll closes all connections managed by this provider.
	CloseAll() error
	// Type returns the storage type handled by this provider (e.g., "s3", "gcs", "local").
	Type() string
	// ForceReconnect forces the closure and re-establishment of an existing connection with the specified name.
	ForceReconnect(name string) (StorageConnection, error)
}

// StorageConnectionResolver resolves named storage connections.
type StorageConnectionResolver interface {
	coreAdapter.ResourceConnectionResolver

	// ResolveStorageConnection resolves a StorageConnection instance by name.
	ResolveStorageConnection(ctx context.Context, name string) (StorageConnection, error)
}
