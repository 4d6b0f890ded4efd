// Package config holds the typed configuration of a single database connection.
package config

import (
	"fmt"

	coreConfig "github.com/tigerroll/deltaloader/pkg/batch/core/config"
	"github.com/tigerroll/deltaloader/pkg/batch/support/util/configbinder"
)

// PoolConfig holds database connection pool settings.
type PoolConfig struct {
	MaxOpenConns           int `yaml:"max_open_conns"`
	MaxIdleConns           int `yaml:"max_idle_conns"`
	ConnMaxLifetimeMinutes int `yaml:"conn_max_lifetime_minutes"`
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	Type     string     `yaml:"type"`             // Database type ("postgres", "mysql", "sqlite").
	Host     string     `yaml:"host"`             // Database host address.
	Port     int        `yaml:"port"`             // Database port number.
	Database string     `yaml:"database"`         // Database name, or the file path for SQLite.
	User     string     `yaml:"user"`             // Database user.
	Password string     `yaml:"password"`         // Database password.
	Schema   string     `yaml:"schema,omitempty"` // Schema name for PostgreSQL.
	Sslmode  string     `yaml:"sslmode"`          // SSL mode for the connection.
	Pool     PoolConfig `yaml:"pool"`             // Connection pool settings.
}

// Lookup decodes the database connection called name from cfg's adapter.database section.
func Lookup(cfg *coreConfig.Config, name string) (DatabaseConfig, error) {
	section := cfg.AdapterSection("database")
	if section == nil {
		return DatabaseConfig{}, fmt.Errorf("no 'adapter.database' configuration found")
	}
	raw, ok := section[name]
	if !ok {
		return DatabaseConfig{}, fmt.Errorf("database configuration '%s' not found under 'adapter.database' configs", name)
	}
	props, ok := raw.(map[string]interface{})
	if !ok {
		return DatabaseConfig{}, fmt.Errorf("invalid database configuration format for '%s': expected a mapping but got %T", name, raw)
	}
	var dc DatabaseConfig
	if err := configbinder.BindProperties(props, &dc); err != nil {
		return DatabaseConfig{}, fmt.Errorf("failed to decode database config for '%s': %w", name, err)
	}
	return dc, nil
}
