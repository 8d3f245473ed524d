package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"

	"github.com/devicehub/devicehub/internal/domain"
	"github.com/devicehub/devicehub/internal/ports"
)

// AuditLogTable is the remote table backing the admin audit trail
const AuditLogTable = "admin_logs"

// undefinedTable is the Postgres SQLSTATE for "relation does not exist"
const undefinedTable pq.ErrorCode = "42P01"

// PostgresAuditRepository implements AuditLogRepository and ExistenceChecker
type PostgresAuditRepository struct {
	db *sql.DB
}

var (
	_ ports.AuditLogRepository = (*PostgresAuditRepository)(nil)
	_ ports.ExistenceChecker   = (*PostgresAuditRepository)(nil)
)

// NewPostgresAuditRepository creates a new PostgreSQL audit repository
func NewPostgresAuditRepository(db *sql.DB) *PostgresAuditRepository {
	return &PostgresAuditRepository{db: db}
}

// TableExists fetches at most one row to learn whether admin_logs is provisioned.
// Only an undefined-table error answers false; other errors answer true and are returned.
func (r *PostgresAuditRepository) TableExists(ctx context.Context) (bool, error) {
	var id int64
	err := r.db.QueryRowContext(ctx, `SELECT id FROM `+AuditLogTable+` LIMIT 1`).Scan(&id)
	switch {
	case err == nil, errors.Is(err, sql.ErrNoRows):
		return true, nil
	case IsUndefinedTable(err):
		return false, nil
	default:
		return true, fmt.Errorf("failed to probe %s: %w", AuditLogTable, err)
	}
}

// IsUndefinedTable reports whether err is Postgres' "relation does not exist"
func IsUndefinedTable(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == undefinedTable
	}
	return false
}

// Insert appends one entry
func (r *PostgresAuditRepository) Insert(ctx context.Context, entry domain.AuditLogEntry) error {
	query := `
		INSERT INTO ` + AuditLogTable + ` (action, details, performed_by, target_user_id, ip_address, "timestamp")
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	// lib/pq sends []byte as bytea, which jsonb rejects
	details := string(entry.Details)
	if details == "" {
		details = "null"
	}

	_, err := r.db.ExecContext(ctx, query,
		entry.Action,
		details,
		entry.PerformedBy,
		nullString(entry.TargetUserID),
		nullString(entry.IPAddress),
		entry.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("failed to insert audit log: %w", err)
	}
	return nil
}

// List retrieves entries matching filter, newest first
func (r *PostgresAuditRepository) List(ctx context.Context, filter domain.AuditLogFilter, limit, offset int) ([]domain.AuditLogEntry, error) {
	query, args := buildAuditListQuery(filter, limit, offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit logs: %w", err)
	}
	defer rows.Close()

	entries := []domain.AuditLogEntry{}
	for rows.Next() {
		var (
			entry        domain.AuditLogEntry
			details      []byte
			targetUserID sql.NullString
			ipAddress    sql.NullString
			ts           time.Time
		)
		if err := rows.Scan(&entry.Action, &details, &entry.PerformedBy, &targetUserID, &ipAddress, &ts); err != nil {
			return nil, fmt.Errorf("failed to scan audit log: %w", err)
		}
		entry.Details = details
		entry.TargetUserID = targetUserID.String
		entry.IPAddress = ipAddress.String
		entry.Timestamp = domain.FormatTimestamp(ts)
		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating audit logs: %w", err)
	}
	return entries, nil
}

// buildAuditListQuery renders the filtered, ordered, windowed select
func buildAuditListQuery(filter domain.AuditLogFilter, limit, offset int) (string, []interface{}) {
	query := `SELECT action, details, performed_by, target_user_id, ip_address, "timestamp" FROM ` + AuditLogTable

	var conditions []string
	var args []interface{}
	argIndex := 1

	add := func(cond string, value interface{}) {
		conditions = append(conditions, fmt.Sprintf(cond, argIndex))
		args = append(args, value)
		argIndex++
	}

	if filter.Action != "" {
		add("action = $%d", filter.Action)
	}
	if filter.PerformedBy != "" {
		add("performed_by = $%d", filter.PerformedBy)
	}
	if filter.TargetUserID != "" {
		add("target_user_id = $%d", filter.TargetUserID)
	}
	if filter.FromDate != "" {
		add(`"timestamp" >= $%d`, filter.FromDate)
	}
	if filter.ToDate != "" {
		add(`"timestamp" <= $%d`, filter.ToDate)
	}

	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}

	query += ` ORDER BY "timestamp" DESC`
	query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", argIndex, argIndex+1)
	args = append(args, limit, offset)

	return query, args
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
