// Package lister enumerates staging folders and newly arrived objects on an object store.
package lister

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/tigerroll/deltaloader/pkg/batch/adapter/storage"
	"github.com/tigerroll/deltaloader/pkg/batch/support/util/exception"
	"github.com/tigerroll/deltaloader/pkg/batch/support/util/logger"
)

const (
	phase     = "list"
	delimiter = "/"
)

// ObjectLister lists staging data through a storage connection. Pagination is consumed
// entirely by the connection, so results are either complete or an error.
type ObjectLister struct {
	executor storage.StorageExecutor
}

// NewObjectLister creates a lister over executor.
func NewObjectLister(executor storage.StorageExecutor) *ObjectLister {
	return &ObjectLister{executor: executor}
}

// NormalizePrefix makes a non-empty prefix end with the delimiter so that only children of
// the prefix match, never siblings sharing its leading characters.
func NormalizePrefix(prefix string) string {
	prefix = strings.TrimLeft(prefix, delimiter)
	if prefix != "" && !strings.HasSuffix(prefix, delimiter) {
		prefix += delimiter
	}
	return prefix
}

// ListSubfolders returns the immediate child prefixes of prefix in bucket, de-duplicated, in
// the order the store returned them. Each entry is a full key ending with "/". A prefix with
// no children yields an empty, non-nil slice.
func (l *ObjectLister) ListSubfolders(ctx context.Context, bucket, prefix string) ([]string, error) {
	prefix = NormalizePrefix(prefix)
	logger.Debugf("Listing subfolders of %s/%s", bucket, prefix)

	seen := make(map[string]struct{})
	folders := make([]string, 0)
	err := l.executor.ListPrefixes(ctx, bucket, prefix, delimiter, func(p string) error {
		if p == "" || p == prefix {
			return nil
		}
		if _, dup := seen[p]; dup {
			return nil
		}
		seen[p] = struct{}{}
		folders = append(folders, p)
		return nil
	})
	if err != nil {
		return nil, exception.NewListingError(phase, fmt.Sprintf("failed to list subfolders of %s/%s", bucket, prefix), err)
	}

	logger.Debugf("Found %d subfolders under %s/%s", len(folders), bucket, prefix)
	return folders, nil
}

// ListNewObjects returns every object under prefix whose modification time is strictly after
// since. The zero time returns all objects.
func (l *ObjectLister) ListNewObjects(ctx context.Context, bucket, prefix string, since time.Time) ([]storage.ObjectInfo, error) {
	prefix = NormalizePrefix(prefix)

	objects := make([]storage.ObjectInfo, 0)
	err := l.executor.ListObjects(ctx, bucket, prefix, func(obj storage.ObjectInfo) error {
		if obj.LastModified.After(since) {
			objects = append(objects, obj)
		}
		return nil
	})
	if err != nil {
		return nil, exception.NewListingError(phase, fmt.Sprintf("failed to list objects of %s/%s", bucket, prefix), err)
	}
	return objects, nil
}
