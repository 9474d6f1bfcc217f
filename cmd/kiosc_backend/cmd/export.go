package cmd

import (
	"fmt"
	"log/slog"
	"os"

	portssvc "github.com/SscSPs/kiosc_finance_app/internal/core/ports/services"
	"github.com/SscSPs/kiosc_finance_app/internal/core/services"
	"github.com/spf13/cobra"
)

var (
	exportOut           string
	exportAllowDefaults bool
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Download the remote workbook to a local file",
	Long: `Load the workbook from the remote store, reconcile it and write a local copy.
Fails when the remote workbook cannot be read unless --allow-defaults is set.`,
	RunE: runExport,
}

func init() {
	exportCmd.Flags().StringVar(&exportOut, "out", "", "output file (default is the configured workbook name)")
	exportCmd.Flags().BoolVar(&exportAllowDefaults, "allow-defaults", false, "write the default dataset when the remote workbook is unavailable")
}

func runExport(cmd *cobra.Command, args []string) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	ctx, cancel := commandContext(cmd.Context(), cfg, logger)
	defer cancel()

	container, err := openServices(ctx, cfg, services.Observers{})
	if err != nil {
		return err
	}
	result, err := container.Sync.Load(ctx)
	if err != nil {
		return err
	}
	if result.Source != portssvc.SourceRemote && !exportAllowDefaults {
		return fmt.Errorf("remote workbook unavailable: %s", result.FallbackReason)
	}

	data, err := container.Sync.Export(ctx)
	if err != nil {
		return err
	}
	out := exportOut
	if out == "" {
		out = cfg.WorkbookFilename
	}
	if err := os.WriteFile(out, data, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", out, err)
	}

	logger.Info("Workbook exported",
		slog.String("file", out),
		slog.String("source", string(result.Source)),
		slog.Int("bytes", len(data)))
	return nil
}
