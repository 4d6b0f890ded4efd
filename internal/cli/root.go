// Package cli implements the deltaloader command line.
package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tigerroll/deltaloader/internal/app"
	config "github.com/tigerroll/deltaloader/pkg/batch/core/config"
	"github.com/tigerroll/deltaloader/pkg/batch/core/domain/model"
	"github.com/tigerroll/deltaloader/pkg/batch/support/util/logger"
	"github.com/tigerroll/deltaloader/pkg/batch/support/util/serialization"
)

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// Runner executes commands against the assembled application.
type Runner interface {
	Run(ctx context.Context, cfg *config.Config, params model.JobParameters) (*model.RunReport, error)
	Status(ctx context.Context, cfg *config.Config, jobID string) (*model.WatermarkRecord, error)
}

type appRunner struct{}

func (appRunner) Run(ctx context.Context, cfg *config.Config, params model.JobParameters) (*model.RunReport, error) {
	return app.Run(ctx, cfg, params)
}

func (appRunner) Status(ctx context.Context, cfg *config.Config, jobID string) (*model.WatermarkRecord, error) {
	return app.Status(ctx, cfg, jobID)
}

// DefaultRunner runs commands on the real dependency graph.
var DefaultRunner Runner = appRunner{}

// RootOptions holds global flags for all commands.
type RootOptions struct {
	ConfigFile string
	EnvFile    string
	LogLevel   string
	Format     string // "json" | "text"

	embedded config.EmbeddedConfig
	runner   Runner
}

// NewRootCommand creates the deltaloader command. embedded is the bundled configuration.
func NewRootCommand(embedded config.EmbeddedConfig, runner Runner) *cobra.Command {
	opts := &RootOptions{embedded: embedded, runner: runner}

	cmd := newIngestCommand(opts)
	cmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		if !isValidFormat(opts.Format) {
			return &ExitError{Code: ExitConfiguration, Message: fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats)}
		}
		return nil
	}

	cmd.PersistentFlags().StringVar(&opts.ConfigFile, "config", "", "YAML file layered over the bundled configuration")
	cmd.PersistentFlags().StringVar(&opts.EnvFile, "env-file", os.Getenv("ENV_FILE_PATH"), ".env file loaded before the configuration (default .env)")
	cmd.PersistentFlags().StringVar(&opts.LogLevel, "log-level", "", "log level override (DEBUG, INFO, WARN, ERROR)")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "report format (json|text)")

	cmd.AddCommand(newStatusCommand(opts))
	return cmd
}

// loadConfig loads the configuration and applies the log level.
func (o *RootOptions) loadConfig() (*config.Config, error) {
	cfg, err := config.NewConfigProvider(config.ConfigParams{
		EmbeddedConfig: o.embedded,
		EnvFilePath:    o.EnvFile,
		ConfigFilePath: o.ConfigFile,
		LogLevel:       o.LogLevel,
	})
	if err != nil {
		return nil, WrapExitError("failed to load configuration", err)
	}
	if data, err := serialization.MarshalMasked(cfg.Loader.AdapterConfigs, cfg.Loader.Security.MaskedKeys); err == nil {
		logger.Debugf("Adapter configuration: %s", data)
	}
	return cfg, nil
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}
