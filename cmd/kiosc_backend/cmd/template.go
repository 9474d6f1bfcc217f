package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/SscSPs/kiosc_finance_app/internal/adapters/workbook/xlsx"
	"github.com/SscSPs/kiosc_finance_app/internal/core/services"
	"github.com/spf13/cobra"
)

var templateOut string

var templateCmd = &cobra.Command{
	Use:   "template",
	Short: "Write a workbook holding the default dataset",
	Long: `Write a workbook holding the default dataset. Upload it to the remote
data directory under the configured name to bootstrap a new deployment.`,
	RunE: runTemplate,
}

func init() {
	templateCmd.Flags().StringVar(&templateOut, "out", "KIOSC_Finance_Template.xlsx", "output file")
}

func runTemplate(cmd *cobra.Command, args []string) error {
	_, logger, err := setup()
	if err != nil {
		return err
	}

	ds, err := services.NewDataInitializer().DefaultDataset(cmd.Context())
	if err != nil {
		return err
	}
	data, err := xlsx.NewCodec().Encode(ds)
	if err != nil {
		return fmt.Errorf("encoding template: %w", err)
	}
	if err := os.WriteFile(templateOut, data, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", templateOut, err)
	}

	logger.Info("Template written", slog.String("file", templateOut), slog.Int("bytes", len(data)))
	return nil
}
