// Command invoicectl is the operator tool for the invoice approval service:
// manual extraction retries, extraction reports and user provisioning.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path"

	"github.com/google/subcommands"
	"go.uber.org/zap"

	"github.com/garyjia/invoice-approval/internal/config"
	"github.com/garyjia/invoice-approval/internal/container"
	"github.com/garyjia/invoice-approval/pkg/utils"
)

var configPath = flag.String("config", os.Getenv("CONFIG_PATH"), "path to the YAML config file")

// commands lists every subcommand registered with the commander
var commands = []subcommands.Command{
	&reprocessCmd{},
	&retryFailedCmd{},
	&checkFailedCmd{},
	&checkCompletedCmd{},
	&addUserCmd{},
}

func main() {
	commander := subcommands.NewCommander(flag.CommandLine, path.Base(os.Args[0]))
	commander.Register(commander.HelpCommand(), "")
	commander.Register(commander.FlagsCommand(), "")

	for _, c := range commands {
		commander.Register(c, "")
	}

	flag.Parse()
	os.Exit(int(commander.Execute(context.Background())))
}

// withContainer starts the application without background workers, so every
// extraction a command triggers runs synchronously, and closes it afterwards.
func withContainer(ctx context.Context, fn func(c *container.Container) error) error {
	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}

	// commands print their own output; the log only carries warnings
	level := "warn"
	if cfg.Logger.Level == "debug" {
		level = "debug"
	}
	logger, err := utils.NewLogger(utils.LoggerConfig{Level: level, OutputPath: "stderr", Format: "console"})
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer logger.Sync()

	c, err := container.NewContainer(cfg, logger, container.WithoutWorkers())
	if err != nil {
		return err
	}
	if err := c.Start(ctx); err != nil {
		_ = c.Close()
		return err
	}
	defer func() {
		if err := c.Close(); err != nil {
			logger.Warn("Failed to close container", zap.Error(err))
		}
	}()

	return fn(c)
}

func exitStatus(err error) subcommands.ExitStatus {
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}
