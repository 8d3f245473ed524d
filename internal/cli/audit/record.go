package audit

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/devicehub/devicehub/internal/domain"
)

func RecordCommand(open Opener) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "record <action>",
		Short: "Append an audit log entry",
		Long: `Append an entry to the audit log. The entry lands in the admin_logs
table when it exists and in the local fallback store otherwise.`,
		Example: `  devicehubctl audit record maintenance_window --details '{"minutes":30}'`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			details, _ := cmd.Flags().GetString("details")
			target, _ := cmd.Flags().GetString("target")
			by, _ := cmd.Flags().GetString("by")

			if !json.Valid([]byte(details)) {
				return fmt.Errorf("--details must be valid JSON")
			}

			svc, _, cleanup, err := open(cmd.Context())
			if err != nil {
				return err
			}
			defer cleanup()

			outcome := svc.Record(cmd.Context(), domain.AuditLogEntry{
				Action:       args[0],
				Details:      json.RawMessage(details),
				PerformedBy:  by,
				TargetUserID: target,
			})

			switch outcome.Store {
			case domain.StoreNone:
				return fmt.Errorf("entry was not persisted: %v", outcome.Err)
			case domain.StoreFallback:
				if outcome.Err != nil {
					fmt.Fprintf(cmd.ErrOrStderr(), "Warning: audit table write failed: %v\n", outcome.Err)
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Recorded %q to %s store.\n", args[0], outcome.Store)
			return nil
		},
	}

	cmd.Flags().String("details", "{}", "JSON details object")
	cmd.Flags().String("target", "", "Target user id")
	cmd.Flags().String("by", domain.SystemActor, "Actor recorded as performer")

	return cmd
}
