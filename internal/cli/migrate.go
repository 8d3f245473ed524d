package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/devicehub/devicehub/internal/adapter/persistence"
	"github.com/devicehub/devicehub/internal/app"
	"github.com/devicehub/devicehub/internal/config"
	"github.com/devicehub/devicehub/internal/infra/logger"
)

func newMigrateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the Postgres schema",
		Long: `Create or drop the devices, device_data and admin_logs tables.

The dashboard runs without admin_logs; audit entries go to the fallback
store until "migrate up" has been applied.`,
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			migrator, cleanup, err := openMigrator(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			applied, err := migrator.Up(cmd.Context())
			for _, v := range applied {
				fmt.Fprintf(cmd.OutOrStdout(), "Applied %03d\n", v)
			}
			if err != nil {
				return err
			}
			if len(applied) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "Schema is up to date.")
			}
			return nil
		},
	})

	down := &cobra.Command{
		Use:   "down",
		Short: "Revert applied migrations, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			steps, _ := cmd.Flags().GetInt("steps")

			migrator, cleanup, err := openMigrator(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			reverted, err := migrator.Down(cmd.Context(), steps)
			for _, v := range reverted {
				fmt.Fprintf(cmd.OutOrStdout(), "Reverted %03d\n", v)
			}
			return err
		},
	}
	down.Flags().Int("steps", 1, "Number of migrations to revert (0 reverts all)")
	cmd.AddCommand(down)

	return cmd
}

func openMigrator(cmd *cobra.Command) (*persistence.Migrator, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}

	log := logger.NewStructuredLogger(logger.LoggerConfig{
		Level:       cfg.Logging.Level,
		Format:      "text",
		ServiceName: "devicehubctl",
		Output:      os.Stderr,
	})

	db, err := app.OpenDatabase(cmd.Context(), cfg, log)
	if err != nil {
		return nil, nil, err
	}
	migrator, err := persistence.NewMigrator(db, log)
	if err != nil {
		db.Close()
		return nil, nil, err
	}
	return migrator, func() { db.Close() }, nil
}
