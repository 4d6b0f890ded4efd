// Package config provides structures and utilities for managing application configuration.
package config

// EmbeddedConfig holds the content of the configuration file, typically passed from main.go.
// This is used when loading configuration from an embedded source (e.g., a compiled binary).
type EmbeddedConfig []byte

// LogLevel defines the logging level for the application.
type LogLevel string

const (
	LogLevelDebug LogLevel = "DEBUG"
	LogLevelInfo  LogLevel = "INFO"
	LogLevelWarn  LogLevel = "WARN"
	LogLevelError LogLevel = "ERROR"
)

// Watermark backends.
const (
	WatermarkBackendDynamoDB = "dynamodb"
	WatermarkBackendSQL      = "sql"
	WatermarkBackendMemory   = "memory"
)

// Metrics backends.
const (
	MetricsBackendNone       = "none"
	MetricsBackendPrometheus = "prometheus"
	MetricsBackendOTLP       = "otlp"
)

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	// Level is the logging level (e.g., "INFO", "DEBUG").
	Level string `yaml:"level"`
}

// SystemConfig holds system-wide settings.
type SystemConfig struct {
	// Timezone is the application timezone (e.g., "UTC", "Asia/Tokyo").
	Timezone string `yaml:"timezone"`
	// Logging is the logging configuration.
	Logging LoggingConfig `yaml:"logging"`
}

// JobConfig holds defaults for a single ingestion invocation. Command line flags win over these.
type JobConfig struct {
	// JobType is the partition value stored with every watermark record.
	JobType string `yaml:"job_type"`
	// StagingFormat is the file format of staged folders ("parquet", "csv", "json").
	StagingFormat string `yaml:"staging_format"`
	// WriteType is the write policy ("append", "overwrite", "merge").
	WriteType string `yaml:"write_type"`
	// PrimaryKey is the merge key column.
	PrimaryKey string `yaml:"primary_key"`
	// OverwriteLatestOnly lets an overwrite run with several pending folders apply only the newest.
	OverwriteLatestOnly bool `yaml:"overwrite_latest_only"`
	// ValidateMergeKey enables the parquet footer probe before a merge.
	ValidateMergeKey bool `yaml:"validate_merge_key"`
}

// WatermarkConfig selects and configures the watermark store.
type WatermarkConfig struct {
	Backend     string `yaml:"backend"`
	Table       string `yaml:"table"`
	Region      string `yaml:"region"`
	Endpoint    string `yaml:"endpoint"`
	DatabaseRef string `yaml:"database_ref"`
	AutoMigrate bool   `yaml:"auto_migrate"`
}

// StorageConfig names the storage connections (keys of adapter.storage) used for each side.
type StorageConfig struct {
	StagingRef string `yaml:"staging_ref"`
	TableRef   string `yaml:"table_ref"`
}

// TableS3Config holds the object store settings handed to the table engine.
type TableS3Config struct {
	Region   string `yaml:"region"`
	Endpoint string `yaml:"endpoint"`
	URLStyle string `yaml:"url_style"`
	UseSSL   bool   `yaml:"use_ssl"`
}

// TableConfig configures the table engine.
type TableConfig struct {
	// Engine selects the table engine implementation. Only "duckdb" is built in.
	Engine string `yaml:"engine"`
	// Catalog is the alias the DuckLake catalog is attached as.
	Catalog string `yaml:"catalog"`
	// Schema is the schema tables are created in.
	Schema string `yaml:"schema"`
	// CatalogPath is the DuckLake metadata location (e.g., "metadata.ducklake" or "postgres:...").
	CatalogPath string `yaml:"catalog_path"`
	// ManifestDir is the directory under the table path that receives the manifest.
	ManifestDir string `yaml:"manifest_dir"`
	// S3 holds object store access settings for the engine.
	S3 TableS3Config `yaml:"s3"`
}

// MetricsConfig selects the metrics backend.
type MetricsConfig struct {
	Backend        string `yaml:"backend"`
	PushgatewayURL string `yaml:"pushgateway_url"`
	OTLPEndpoint   string `yaml:"otlp_endpoint"`
	OTLPProtocol   string `yaml:"otlp_protocol"`
	Insecure       bool   `yaml:"insecure"`
}

// TracingConfig configures span export.
type TracingConfig struct {
	Enabled      bool   `yaml:"enabled"`
	OTLPEndpoint string `yaml:"otlp_endpoint"`
	OTLPProtocol string `yaml:"otlp_protocol"`
	Insecure     bool   `yaml:"insecure"`
	ServiceName  string `yaml:"service_name"`
}

// SecurityConfig holds security-related settings.
type SecurityConfig struct {
	// MaskedKeys lists configuration keys whose values are masked whenever they are logged.
	MaskedKeys []string `yaml:"masked_keys"`
}

// LoaderConfig holds all configuration under the "loader" top-level key.
type LoaderConfig struct {
	System    SystemConfig    `yaml:"system"`
	Job       JobConfig       `yaml:"job"`
	Watermark WatermarkConfig `yaml:"watermark"`
	Storage   StorageConfig   `yaml:"storage"`
	Table     TableConfig     `yaml:"table"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Tracing   TracingConfig   `yaml:"tracing"`
	Security  SecurityConfig  `yaml:"security"`
	// AdapterConfigs holds untyped connection configurations keyed by adapter kind
	// ("storage", "database") and then by connection name.
	AdapterConfigs map[string]interface{} `yaml:"adapter"`
}

// Config is the root structure for the entire application configuration.
type Config struct {
	Loader LoaderConfig `yaml:"loader"`
	// EmbeddedConfig holds configuration loaded from an embedded source, not from YAML.
	EmbeddedConfig EmbeddedConfig `yaml:"-"`
}

// NewConfig returns a new instance of Config with default values.
func NewConfig() *Config {
	return &Config{
		Loader: LoaderConfig{
			System: SystemConfig{
				Timezone: "UTC",
				Logging:  LoggingConfig{Level: string(LogLevelInfo)},
			},
			Job: JobConfig{
				JobType:          "delta-loader",
				StagingFormat:    "parquet",
				WriteType:        "merge",
				ValidateMergeKey: true,
			},
			Watermark: WatermarkConfig{
				Backend:     WatermarkBackendDynamoDB,
				Table:       "job_watermarks",
				DatabaseRef: "watermark",
				AutoMigrate: true,
			},
			Storage: StorageConfig{
				StagingRef: "staging",
				TableRef:   "table",
			},
			Table: TableConfig{
				Engine:      "duckdb",
				Catalog:     "lake",
				Schema:      "main",
				CatalogPath: "metadata.ducklake",
				ManifestDir: "_symlink_format_manifest",
				S3: TableS3Config{
					URLStyle: "vhost",
					UseSSL:   true,
				},
			},
			Metrics: MetricsConfig{
				Backend:      MetricsBackendNone,
				OTLPProtocol: "grpc",
			},
			Tracing: TracingConfig{
				OTLPProtocol: "grpc",
				ServiceName:  "deltaloader",
			},
			Security: SecurityConfig{
				MaskedKeys: []string{"password", "secret_access_key", "session_token", "credentials_json"},
			},
			AdapterConfigs: map[string]interface{}{},
		},
	}
}

// AdapterSection returns the named-connection map for an adapter kind ("storage" or "database").
// It returns nil when the section is absent or not a map.
func (c *Config) AdapterSection(kind string) map[string]interface{} {
	if c == nil || c.Loader.AdapterConfigs == nil {
		return nil
	}
	raw, ok := c.Loader.AdapterConfigs[kind]
	if !ok {
		return nil
	}
	return toStringMap(raw)
}

// toStringMap normalizes YAML-decoded maps, which may be map[string]interface{} or
// map[interface{}]interface{} depending on the decoder.
func toStringMap(raw interface{}) map[string]interface{} {
	switch m := raw.(type) {
	case map[string]interface{}:
		return m
	case map[interface{}]interface{}:
		out := make(map[string]interface{}, len(m))
		for k, v := range m {
			if ks, ok := k.(string); ok {
				out[ks] = v
			}
		}
		return out
	default:
		return nil
	}
}
