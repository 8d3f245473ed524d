package audit

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/devicehub/devicehub/internal/app"
	"github.com/devicehub/devicehub/internal/config"
	"github.com/devicehub/devicehub/internal/domain"
	"github.com/devicehub/devicehub/internal/infra/logger"
	"github.com/devicehub/devicehub/internal/ports"
)

// Service is the part of the audit log service the CLI drives
type Service interface {
	Record(ctx context.Context, entry domain.AuditLogEntry) domain.RecordOutcome
	Fetch(ctx context.Context, limit, offset int, filter domain.AuditLogFilter) domain.AuditLogPage
	ExportView(ctx context.Context, filter domain.AuditLogFilter, search string, limit int) domain.AuditLogPage
}

// Opener builds a Service for one command invocation. The returned func
// releases its connections.
type Opener func(ctx context.Context) (Service, ports.Clock, func(), error)

// NewCommand returns the audit command group. A nil opener uses the
// environment configuration.
func NewCommand(open Opener) *cobra.Command {
	if open == nil {
		open = OpenFromConfig
	}

	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Inspect and record admin audit log entries",
		Long: `Read, export and append admin audit log entries.

Entries are read from the admin_logs table when it exists and from the
local fallback store otherwise, exactly as the dashboard server does.`,
	}

	cmd.AddCommand(ListCommand(open))
	cmd.AddCommand(ExportCommand(open))
	cmd.AddCommand(RecordCommand(open))

	return cmd
}

// OpenFromConfig wires the audit service from the environment
func OpenFromConfig(ctx context.Context) (Service, ports.Clock, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, nil, fmt.Errorf("invalid config: %w", err)
	}

	log := logger.NewStructuredLogger(logger.LoggerConfig{
		Level:       cfg.Logging.Level,
		Format:      "text",
		ServiceName: "devicehubctl",
		Output:      os.Stderr,
	})

	db, err := app.OpenDatabase(ctx, cfg, log)
	if err != nil {
		return nil, nil, nil, err
	}
	fallback, closer, err := app.OpenFallback(ctx, cfg)
	if err != nil {
		db.Close()
		return nil, nil, nil, err
	}

	cleanup := func() {
		closer.Close()
		db.Close()
	}
	return app.NewAuditLogService(cfg, db, fallback, log), ports.SystemClock{}, cleanup, nil
}

func addFilterFlags(cmd *cobra.Command) {
	cmd.Flags().String("action", "", "Only entries with this action")
	cmd.Flags().String("performed-by", "", "Only entries performed by this actor")
	cmd.Flags().String("target", "", "Only entries targeting this user id")
	cmd.Flags().String("from", "", "Only entries at or after this RFC 3339 timestamp or YYYY-MM-DD date")
	cmd.Flags().String("to", "", "Only entries at or before this RFC 3339 timestamp or YYYY-MM-DD date")
}

func filterFromFlags(cmd *cobra.Command) (domain.AuditLogFilter, error) {
	action, _ := cmd.Flags().GetString("action")
	performedBy, _ := cmd.Flags().GetString("performed-by")
	target, _ := cmd.Flags().GetString("target")
	from, _ := cmd.Flags().GetString("from")
	to, _ := cmd.Flags().GetString("to")
	filter, err := domain.AuditLogFilter{
		Action:       action,
		PerformedBy:  performedBy,
		TargetUserID: target,
		FromDate:     from,
		ToDate:       to,
	}.Normalize()
	if err != nil {
		return filter, fmt.Errorf("invalid filter: %w", err)
	}
	return filter, nil
}

// warnIfNotRemote tells the operator when results did not come from the table
func warnIfNotRemote(cmd *cobra.Command, page domain.AuditLogPage) {
	switch page.Status {
	case domain.ReadStatusDegraded:
		fmt.Fprintf(cmd.ErrOrStderr(), "Warning: audit table unavailable (%s); showing unfiltered fallback entries.\n", page.Reason)
	case domain.ReadStatusEmpty:
		fmt.Fprintf(cmd.ErrOrStderr(), "Warning: no audit store available (%s).\n", page.Reason)
	default:
		if page.Source == domain.StoreFallback {
			fmt.Fprintln(cmd.ErrOrStderr(), "Note: audit table not found; reading from fallback store.")
		}
	}
}
