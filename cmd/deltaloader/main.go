// Command deltaloader loads newly staged folders into a DuckLake table and checkpoints
// progress in a per-job watermark.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	_ "embed"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/mattn/go-sqlite3"

	"github.com/tigerroll/deltaloader/internal/cli"
	config "github.com/tigerroll/deltaloader/pkg/batch/core/config"
	"github.com/tigerroll/deltaloader/pkg/batch/support/util/logger"
)

// embeddedConfig is the bundled application configuration.
//
//go:embed resources/application.yaml
var embeddedConfig []byte

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Signal handling for graceful shutdown (e.g., Ctrl+C)
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		logger.Warnf("Received signal '%v'. Stopping after the current folder...", sig)
		cancel()
		sig = <-sigChan
		logger.Errorf("Received signal '%v' again. Exiting without waiting for the current folder.", sig)
		os.Exit(cli.ExitFailure)
	}()

	cmd := cli.NewRootCommand(config.EmbeddedConfig(embeddedConfig), cli.DefaultRunner)
	err := cmd.ExecuteContext(ctx)
	if err != nil {
		var exitErr *cli.ExitError
		if errors.As(err, &exitErr) {
			logger.Errorf("%v", err)
		} else {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
	}
	os.Exit(cli.GetExitCode(err))
}
