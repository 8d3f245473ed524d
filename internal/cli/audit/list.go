package audit

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/devicehub/devicehub/internal/domain"
)

func ListCommand(open Opener) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List audit log entries",
		Long:  `List audit log entries, newest first.`,
		Example: `  devicehubctl audit list --limit 20
  devicehubctl audit list --action device_start --from 2024-01-01 -o json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			limit, _ := cmd.Flags().GetInt("limit")
			offset, _ := cmd.Flags().GetInt("offset")
			output, _ := cmd.Flags().GetString("output")
			if output != "table" && output != "json" {
				return fmt.Errorf("unsupported output format %q (use table or json)", output)
			}

			filter, err := filterFromFlags(cmd)
			if err != nil {
				return err
			}

			svc, _, cleanup, err := open(cmd.Context())
			if err != nil {
				return err
			}
			defer cleanup()

			page := svc.Fetch(cmd.Context(), limit, offset, filter)
			warnIfNotRemote(cmd, page)

			if output == "json" {
				return printEntriesJSON(cmd, page.Entries)
			}
			printEntriesTable(cmd, page.Entries)
			return nil
		},
	}

	addFilterFlags(cmd)
	cmd.Flags().Int("limit", 50, "Maximum number of entries")
	cmd.Flags().Int("offset", 0, "Number of entries to skip")
	cmd.Flags().StringP("output", "o", "table", "Output format: table or json")

	return cmd
}

func printEntriesJSON(cmd *cobra.Command, entries []domain.AuditLogEntry) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(entries)
}

func printEntriesTable(cmd *cobra.Command, entries []domain.AuditLogEntry) {
	if len(entries) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No audit entries found.")
		return
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, "TIMESTAMP\tACTION\tPERFORMED BY\tTARGET\tIP")
	fmt.Fprintln(w, "---------\t------\t------------\t------\t--")
	for _, e := range entries {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			e.Timestamp,
			e.Action,
			e.PerformedBy,
			orDash(e.TargetUserID),
			orDash(e.IPAddress),
		)
	}
	w.Flush()
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
