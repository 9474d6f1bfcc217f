// Package cmd provides the kiosc_backend commands.
package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/SscSPs/kiosc_finance_app/internal/adapters/remote"
	"github.com/SscSPs/kiosc_finance_app/internal/adapters/workbook/xlsx"
	portssvc "github.com/SscSPs/kiosc_finance_app/internal/core/ports/services"
	"github.com/SscSPs/kiosc_finance_app/internal/core/services"
	"github.com/SscSPs/kiosc_finance_app/internal/middleware"
	"github.com/SscSPs/kiosc_finance_app/internal/platform/config"
	"github.com/spf13/cobra"
)

var (
	cfgFile string
	debug   bool
)

var rootCmd = &cobra.Command{
	Use:   "kiosc_backend",
	Short: "KIOSC finance records backed by a shared Excel workbook",
	Long: `kiosc_backend serves the finance API and manages the workbook that is the
system of record for users, suppliers, expenses, journals and budgets.

Example:
  kiosc_backend serve
  kiosc_backend template --out KIOSC_Finance_Template.xlsx
  kiosc_backend export --out backup.xlsx
  kiosc_backend token --user-id 1 --username admin`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() error {
	err := rootCmd.Execute()
	if err != nil {
		slog.Error("Command failed", slog.String("error", err.Error()))
	}
	return err
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "env file to load (default is .env)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")

	rootCmd.AddCommand(serveCmd, templateCmd, exportCmd, filesCmd, tokenCmd)
}

// setup loads the configuration and installs the JSON logger as the default.
func setup() (*config.Config, *slog.Logger, error) {
	cfg, err := config.LoadConfig(cfgFile)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel(cfg.LogLevel)}))
	slog.SetDefault(logger)
	return cfg, logger, nil
}

func logLevel(configured string) slog.Level {
	if debug {
		return slog.LevelDebug
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(configured)); err != nil {
		return slog.LevelInfo
	}
	return level
}

// openServices connects the configured remote store and builds the service container.
func openServices(ctx context.Context, cfg *config.Config, observers services.Observers) (*portssvc.ServiceContainer, error) {
	store, err := remote.Open(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s remote store: %w", cfg.RemoteDriver, err)
	}
	return services.NewServiceContainer(cfg, store, xlsx.NewCodec(), observers), nil
}

// commandContext bounds a one-shot command by the remote timeout and attaches the logger.
func commandContext(parent context.Context, cfg *config.Config, logger *slog.Logger) (context.Context, context.CancelFunc) {
	timeout := cfg.RemoteTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	ctx, cancel := context.WithTimeout(parent, timeout)
	return middleware.WithLogger(ctx, logger), cancel
}
