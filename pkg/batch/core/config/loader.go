package config

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/tigerroll/deltaloader/pkg/batch/support/util/exception"
	"github.com/tigerroll/deltaloader/pkg/batch/support/util/logger"

	"go.uber.org/fx"
)

const phase = "config"

// ConfigParams defines the dependencies for NewConfigProvider.
type ConfigParams struct {
	fx.In
	EmbeddedConfig EmbeddedConfig      // EmbeddedConfig contains the raw bytes of the bundled configuration file.
	Expander       EnvironmentExpander `optional:"true"`
	EnvFilePath    string              `name:"envFilePath" optional:"true"`    // EnvFilePath is the path to the .env file, if any.
	ConfigFilePath string              `name:"configFilePath" optional:"true"` // ConfigFilePath is a user YAML file layered over the embedded one.
	LogLevel       string              `name:"logLevel" optional:"true"`       // LogLevel overrides loader.system.logging.level when set.
}

// LoadOptions controls LoadConfig.
type LoadOptions struct {
	EnvFilePath    string
	ConfigFilePath string
	Expander       EnvironmentExpander
}

// LoadConfig loads configuration in the following order, later sources winning:
//
//  1. defaults from NewConfig()
//  2. the embedded YAML
//  3. the optional user YAML file
//  4. environment variables named after the yaml tags (e.g. LOADER_WATERMARK_BACKEND)
//
// A .env file is loaded into the process environment before anything else.
func LoadConfig(embeddedConfig EmbeddedConfig, opts LoadOptions) (*Config, error) {
	if opts.EnvFilePath != "" {
		if err := godotenv.Load(opts.EnvFilePath); err != nil {
			logger.Warnf(".env file (%s) not found or could not be loaded: %v", opts.EnvFilePath, err)
		}
	} else {
		if err := godotenv.Load(); err != nil {
			logger.Debugf(".env file not found or could not be loaded: %v", err)
		}
	}

	expander := opts.Expander
	if expander == nil {
		expander = NewOsEnvironmentExpander()
	}

	cfg := NewConfig()

	if len(embeddedConfig) > 0 {
		if err := applyYAML(cfg, embeddedConfig, expander); err != nil {
			return nil, exception.NewConfigurationError(phase, "failed to unmarshal embedded config", err)
		}
	}

	if opts.ConfigFilePath != "" {
		data, err := os.ReadFile(opts.ConfigFilePath)
		if err != nil {
			return nil, exception.NewConfigurationError(phase, fmt.Sprintf("failed to read config file %s", opts.ConfigFilePath), err)
		}
		if err := applyYAML(cfg, data, expander); err != nil {
			return nil, exception.NewConfigurationError(phase, fmt.Sprintf("failed to unmarshal config file %s", opts.ConfigFilePath), err)
		}
	}

	if err := loadStructFromEnv(reflect.ValueOf(cfg).Elem(), ""); err != nil {
		return nil, exception.NewConfigurationError(phase, "failed to load config from environment variables", err)
	}
	if err := loadAdapterConfigsFromEnv(cfg, "LOADER_ADAPTER_"); err != nil {
		return nil, exception.NewConfigurationError(phase, "failed to load adapter config from environment variables", err)
	}
	return cfg, nil
}

// NewConfigProvider is an Fx provider that loads and provides *Config.
// It also applies the configured (or overridden) log level.
func NewConfigProvider(params ConfigParams) (*Config, error) {
	cfg, err := LoadConfig(params.EmbeddedConfig, LoadOptions{
		EnvFilePath:    params.EnvFilePath,
		ConfigFilePath: params.ConfigFilePath,
		Expander:       params.Expander,
	})
	if err != nil {
		return nil, err
	}
	if params.LogLevel != "" {
		cfg.Loader.System.Logging.Level = params.LogLevel
	}

	logger.SetLogLevel(cfg.Loader.System.Logging.Level)
	logger.Debugf("Log level set to: %s", cfg.Loader.System.Logging.Level)
	return cfg, nil
}

// applyYAML unmarshals data on top of cfg. Typed sections keep values the layer does not
// mention; adapter connection maps are merged key by key.
func applyYAML(cfg *Config, data []byte, expander EnvironmentExpander) error {
	expanded, err := expander.Expand(data)
	if err != nil {
		return err
	}
	previous := cfg.Loader.AdapterConfigs
	cfg.Loader.AdapterConfigs = nil
	if err := yaml.Unmarshal(expanded, cfg); err != nil {
		cfg.Loader.AdapterConfigs = previous
		return err
	}
	cfg.Loader.AdapterConfigs = mergeMaps(previous, cfg.Loader.AdapterConfigs)
	return nil
}

// mergeMaps performs a deep merge of source into dest and returns dest.
// Nested maps are merged recursively; any other source value replaces the destination value.
func mergeMaps(dest, source map[string]interface{}) map[string]interface{} {
	if dest == nil {
		dest = make(map[string]interface{}, len(source))
	}
	for key, value := range source {
		srcMap := toStringMap(value)
		if srcMap == nil {
			dest[key] = value
			continue
		}
		dstMap := toStringMap(dest[key])
		if dstMap == nil {
			dstMap = make(map[string]interface{}, len(srcMap))
		}
		dest[key] = mergeMaps(dstMap, srcMap)
	}
	return dest
}

// loadStructFromEnv recursively loads configuration values into a struct from environment variables.
// It uses the "yaml" tag to determine the environment variable name.
//
// Parameters:
//
//	val: The reflect.Value of the struct to populate.
//	prefix: The prefix for environment variable names (e.g., "LOADER_JOB_").
func loadStructFromEnv(val reflect.Value, prefix string) error {
	typ := val.Type()
	for i := 0; i < typ.NumField(); i++ {
		field := val.Field(i)
		fieldType := typ.Field(i)
		yamlTag := fieldType.Tag.Get("yaml")
		if yamlTag == "" || yamlTag == "-" {
			continue
		}
		envVarName := strings.ToUpper(prefix + yamlTag)

		if field.Kind() == reflect.Struct {
			if err := loadStructFromEnv(field, envVarName+"_"); err != nil {
				return err
			}
			continue
		}

		envValue, exists := os.LookupEnv(envVarName)
		if !exists {
			continue
		}
		if err := setField(field, envValue); err != nil {
			return fmt.Errorf("failed to set field '%s' from env var '%s': %w", fieldType.Name, envVarName, err)
		}
	}
	return nil
}

// loadAdapterConfigsFromEnv overrides untyped adapter connection settings from variables shaped
// like <prefix><KIND>_<NAME>_<FIELD>, e.g. LOADER_ADAPTER_STORAGE_STAGING_REGION=eu-west-1 sets
// adapter.storage.staging.region. Kind and name are lowercased; the remaining parts form the field.
func loadAdapterConfigsFromEnv(cfg *Config, prefix string) error {
	for _, env := range os.Environ() {
		if !strings.HasPrefix(env, prefix) {
			continue
		}
		parts := strings.SplitN(strings.TrimPrefix(env, prefix), "=", 2)
		if len(parts) != 2 {
			continue
		}
		keyParts := strings.Split(parts[0], "_")
		if len(keyParts) < 3 {
			continue
		}
		kind := strings.ToLower(keyParts[0])
		name := strings.ToLower(keyParts[1])
		field := strings.ToLower(strings.Join(keyParts[2:], "_"))

		if cfg.Loader.AdapterConfigs == nil {
			cfg.Loader.AdapterConfigs = map[string]interface{}{}
		}
		section := toStringMap(cfg.Loader.AdapterConfigs[kind])
		if section == nil {
			section = map[string]interface{}{}
		}
		conn := toStringMap(section[name])
		if conn == nil {
			conn = map[string]interface{}{}
		}
		conn[field] = parts[1]
		section[name] = conn
		cfg.Loader.AdapterConfigs[kind] = section
	}
	return nil
}

// setField sets the value of a reflect.Value field based on its kind.
// It handles string, int, float, bool and comma separated string slices.
func setField(field reflect.Value, value string) error {
	if !field.CanSet() {
		return nil
	}
	switch field.Kind() {
	case reflect.String:
		field.SetString(value)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		intValue, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return err
		}
		field.SetInt(intValue)
	case reflect.Float64, reflect.Float32:
		floatValue, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return err
		}
		field.SetFloat(floatValue)
	case reflect.Bool:
		boolValue, err := strconv.ParseBool(value)
		if err != nil {
			return err
		}
		field.SetBool(boolValue)
	case reflect.Slice:
		if field.Type().Elem().Kind() != reflect.String {
			return nil
		}
		var items []string
		for _, item := range strings.Split(value, ",") {
			if item = strings.TrimSpace(item); item != "" {
				items = append(items, item)
			}
		}
		field.Set(reflect.ValueOf(items))
	}
	return nil
}
