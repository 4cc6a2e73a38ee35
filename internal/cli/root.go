// Package cli implements the prospectscanner command line.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"ProspectScanner/internal/app"
	"ProspectScanner/internal/config"
	"ProspectScanner/internal/logging"
)

type rootOptions struct {
	configPath string
	logLevel   string
	envFile    string
}

// Execute runs the root command until it finishes or the process is interrupted.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return NewRootCommand().ExecuteContext(ctx)
}

// NewRootCommand assembles the command tree.
func NewRootCommand() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:           "prospectscanner",
		Short:         "Discover, crawl and score donor prospects",
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}
	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "YAML config file (default $PROSPECT_SCANNER_CONFIG)")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "override logging.level (debug, info, warn, error)")
	root.PersistentFlags().StringVar(&opts.envFile, "env-file", ".env", "dotenv file loaded before configuration")

	root.AddCommand(
		newServeCommand(opts),
		newCampaignCommand(opts),
		newCrawlCommand(opts),
		newScoreCommand(opts),
		newListCommand(opts),
		newExportCommand(opts),
		newMigrateCommand(opts),
		newScheduleCommand(opts),
	)
	return root
}

// loadConfig reads .env, then the YAML file and environment overrides.
func (o *rootOptions) loadConfig() (config.Config, error) {
	if o.envFile != "" {
		if err := godotenv.Load(o.envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return config.Config{}, fmt.Errorf("load %s: %w", o.envFile, err)
		}
	}
	cfg := config.LoadFile(o.configPath)
	if o.logLevel != "" {
		cfg.Logging.Level = o.logLevel
	}
	return cfg, nil
}

func (o *rootOptions) logger(cfg config.Config) *slog.Logger {
	return logging.New(cfg.Logging.Level, cfg.Logging.Format)
}

// withApp builds the application for one command and closes it afterwards.
func (o *rootOptions) withApp(cmd *cobra.Command, run func(ctx context.Context, a *app.Application) error) error {
	cfg, err := o.loadConfig()
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	a, err := app.New(ctx, cfg, o.logger(cfg))
	if err != nil {
		return err
	}
	defer a.Close()
	return run(ctx, a)
}
