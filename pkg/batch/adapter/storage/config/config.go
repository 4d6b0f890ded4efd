// Package config holds the typed configuration of a single storage connection.
package config

import (
	"fmt"

	coreConfig "github.com/tigerroll/deltaloader/pkg/batch/core/config"
	"github.com/tigerroll/deltaloader/pkg/batch/support/util/configbinder"
)

// StorageConfig holds configuration for a single storage connection.
type StorageConfig struct {
	Type            string `yaml:"type"`             // Type of storage ("s3", "gcs", "local").
	BucketName      string `yaml:"bucket_name"`      // Default bucket name when an operation passes none.
	CredentialsFile string `yaml:"credentials_file"` // Path to credentials file (service account key for GCS).
	BaseDir         string `yaml:"base_dir"`         // Base directory for local file system operations.
	ProjectID       string `yaml:"project_id"`       // GCS project.
	Region          string `yaml:"region"`           // S3 region.
	Endpoint        string `yaml:"endpoint"`         // S3-compatible endpoint (MinIO, LocalStack); empty uses AWS.
	ForcePathStyle  bool   `yaml:"force_path_style"` // Path-style addressing, required by most S3-compatible stores.
	AccessKeyID     string `yaml:"access_key_id"`    // Static credentials; the environment and default chain apply when empty.
	SecretAccessKey string `yaml:"secret_access_key"`
	SessionToken    string `yaml:"session_token"`
	MaxRetries      int    `yaml:"max_retries"` // SDK retry count; 0 keeps the SDK default.
	PageSize        int    `yaml:"page_size"`   // Listing page size; 0 keeps the backend default.
}

// DatasourcesConfig holds a map of named storage configurations.
type DatasourcesConfig map[string]StorageConfig

// Lookup decodes the storage connection called name from cfg's adapter.storage section.
func Lookup(cfg *coreConfig.Config, name string) (StorageConfig, error) {
	section := cfg.AdapterSection("storage")
	if section == nil {
		return StorageConfig{}, fmt.Errorf("no 'adapter.storage' configuration found")
	}
	raw, ok := section[name]
	if !ok {
		return StorageConfig{}, fmt.Errorf("storage configuration for name '%s' not found", name)
	}
	props, ok := raw.(map[string]interface{})
	if !ok {
		return StorageConfig{}, fmt.Errorf("invalid storage configuration format for '%s': expected a mapping", name)
	}
	var sc StorageConfig
	if err := configbinder.BindProperties(props, &sc); err != nil {
		return StorageConfig{}, fmt.Errorf("failed to decode storage config for '%s': %w", name, err)
	}
	return sc, nil
}
