package duckdb

import (
	"path/filepath"

	storageConfig "github.com/tigerroll/deltaloader/pkg/batch/adapter/storage/config"
	"github.com/tigerroll/deltaloader/pkg/batch/core/domain/model"
)

// PathResolver renders a storage location as a path DuckDB can read from or write to.
type PathResolver func(loc model.Location) string

// NewPathResolver picks the rendering for a storage connection type: s3:// for "s3",
// gs:// for "gcs", and a file system path under base_dir for "local".
func NewPathResolver(cfg storageConfig.StorageConfig) PathResolver {
	switch cfg.Type {
	case "gcs":
		return func(loc model.Location) string { return loc.URI("gs") }
	case "local":
		base := cfg.BaseDir
		return func(loc model.Location) string {
			return filepath.Join(base, loc.Bucket, filepath.FromSlash(loc.Key))
		}
	default:
		return func(loc model.Location) string { return loc.URI("s3") }
	}
}
