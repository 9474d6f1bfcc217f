package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/SscSPs/kiosc_finance_app/internal/core/services"
	"github.com/spf13/cobra"
)

var filesCmd = &cobra.Command{
	Use:   "files",
	Short: "List the workbooks in the remote data directory",
	RunE:  runFiles,
}

func runFiles(cmd *cobra.Command, args []string) error {
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
	files, err := container.Sync.ListRemoteFiles(ctx)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tSIZE\tREVISION\tMODIFIED")
	for _, f := range files {
		modified := ""
		if !f.ModifiedAt.IsZero() {
			modified = f.ModifiedAt.Format("2006-01-02 15:04")
		}
		fmt.Fprintf(w, "%s\t%d\t%s\t%s\n", f.Name, f.Size, f.Revision, modified)
	}
	return w.Flush()
}
