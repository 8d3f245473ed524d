package audit

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/devicehub/devicehub/internal/usecase"
)

func ExportCommand(open Opener) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export audit log entries as CSV",
		Long: `Write matching audit log entries to admin-logs-YYYY-MM-DD.csv.

The search term matches action, performer, target and details, case-insensitively.`,
		Example: `  devicehubctl audit export --dir /tmp
  devicehubctl audit export --search alice --stdout`,
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")
			search, _ := cmd.Flags().GetString("search")
			limit, _ := cmd.Flags().GetInt("limit")
			toStdout, _ := cmd.Flags().GetBool("stdout")

			filter, err := filterFromFlags(cmd)
			if err != nil {
				return err
			}

			svc, clock, cleanup, err := open(cmd.Context())
			if err != nil {
				return err
			}
			defer cleanup()

			page := svc.ExportView(cmd.Context(), filter, search, limit)
			warnIfNotRemote(cmd, page)

			if toStdout {
				return usecase.ExportCSV(cmd.OutOrStdout(), page.Entries)
			}

			if err := os.MkdirAll(dir, 0o755); err != nil {
				return fmt.Errorf("failed to create export directory: %w", err)
			}
			path := filepath.Join(dir, usecase.ExportFilename(clock.Now()))
			f, err := os.Create(path)
			if err != nil {
				return fmt.Errorf("failed to create export file: %w", err)
			}
			if err := usecase.ExportCSV(f, page.Entries); err != nil {
				f.Close()
				return fmt.Errorf("failed to write export: %w", err)
			}
			if err := f.Close(); err != nil {
				return fmt.Errorf("failed to write export: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Exported %d entries to %s\n", len(page.Entries), path)
			return nil
		},
	}

	addFilterFlags(cmd)
	cmd.Flags().String("dir", ".", "Directory to write the CSV file into")
	cmd.Flags().String("search", "", "Free-text search term")
	cmd.Flags().Int("limit", 10000, "Maximum number of entries to consider")
	cmd.Flags().Bool("stdout", false, "Write CSV to stdout instead of a file")

	return cmd
}
