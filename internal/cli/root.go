// Package cli implements the devicehubctl command tree.
package cli

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/devicehub/devicehub/internal/cli/audit"
)

// NewRootCommand builds the command tree. A nil opener reads the environment.
func NewRootCommand(open audit.Opener) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "devicehubctl",
		Short: "Operator tooling for the DeviceHub dashboard",
		Long: `devicehubctl works against the same database and fallback store as the
DeviceHub server. Configuration is read from the environment and .env.

Quick start:
  devicehubctl migrate up                # Create the schema
  devicehubctl audit list                # Newest audit entries
  devicehubctl audit export --dir /tmp   # CSV export for today
  devicehubctl audit record backup_run   # Append an entry`,
		SilenceUsage: true,
	}

	cmd.AddCommand(audit.NewCommand(open))
	cmd.AddCommand(newMigrateCommand())

	return cmd
}

// Execute runs the command tree and exits non-zero on failure
func Execute() {
	if err := NewRootCommand(nil).Execute(); err != nil {
		os.Exit(1)
	}
}
