package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/devicehub/devicehub/internal/domain"
	"github.com/devicehub/devicehub/internal/ports"
)

// PostgresDeviceRepository implements DeviceRepository using PostgreSQL
type PostgresDeviceRepository struct {
	db *sql.DB
}

var _ ports.DeviceRepository = (*PostgresDeviceRepository)(nil)

// NewPostgresDeviceRepository creates a new PostgreSQL device repository
func NewPostgresDeviceRepository(db *sql.DB) *PostgresDeviceRepository {
	return &PostgresDeviceRepository{db: db}
}

const deviceColumns = `id, name, status, repo_url, check_interval, auto_update, last_seen, created_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanDevice(row rowScanner) (*domain.Device, error) {
	var (
		device   domain.Device
		repoURL  sql.NullString
		lastSeen sql.NullTime
	)
	if err := row.Scan(
		&device.ID,
		&device.Name,
		&device.Status,
		&repoURL,
		&device.CheckInterval,
		&device.AutoUpdate,
		&lastSeen,
		&device.CreatedAt,
	); err != nil {
		return nil, err
	}
	if repoURL.Valid {
		device.RepoURL = &repoURL.String
	}
	if lastSeen.Valid {
		device.LastSeen = &lastSeen.Time
	}
	return &device, nil
}

// List returns all devices ordered by name
func (r *PostgresDeviceRepository) List(ctx context.Context) ([]*domain.Device, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+deviceColumns+` FROM devices ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to query devices: %w", err)
	}
	defer rows.Close()

	devices := []*domain.Device{}
	for rows.Next() {
		device, err := scanDevice(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan device: %w", err)
		}
		devices = append(devices, device)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating devices: %w", err)
	}
	return devices, nil
}

// FindByID retrieves a device by its ID
func (r *PostgresDeviceRepository) FindByID(ctx context.Context, id string) (*domain.Device, error) {
	device, err := scanDevice(r.db.QueryRowContext(ctx, `SELECT `+deviceColumns+` FROM devices WHERE id = $1`, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, domain.ErrDeviceNotFound
		}
		return nil, fmt.Errorf("failed to find device: %w", err)
	}
	return device, nil
}

// UpdateStatus sets status and last_seen
func (r *PostgresDeviceRepository) UpdateStatus(ctx context.Context, id string, status domain.DeviceStatus) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE devices SET status = $2, last_seen = $3 WHERE id = $1`,
		id, string(status), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to update device status: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return domain.ErrDeviceNotFound
	}
	return nil
}

// MarkAllOffline resets every device to OFFLINE
func (r *PostgresDeviceRepository) MarkAllOffline(ctx context.Context) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`UPDATE devices SET status = $1 WHERE status <> $1`, string(domain.DeviceStatusOffline))
	if err != nil {
		return 0, fmt.Errorf("failed to mark devices offline: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n, nil
}

// PostgresReadingRepository implements ReadingRepository over device_data
type PostgresReadingRepository struct {
	db *sql.DB
}

var _ ports.ReadingRepository = (*PostgresReadingRepository)(nil)

// NewPostgresReadingRepository creates a new PostgreSQL reading repository
func NewPostgresReadingRepository(db *sql.DB) *PostgresReadingRepository {
	return &PostgresReadingRepository{db: db}
}

// Append stores one reading and fills in its ID
func (r *PostgresReadingRepository) Append(ctx context.Context, reading *domain.Reading) error {
	query := `
		INSERT INTO device_data (device_id, data_type, payload, "timestamp")
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`
	payload := string(reading.Payload)
	if payload == "" {
		payload = "{}"
	}
	err := r.db.QueryRowContext(ctx, query,
		reading.DeviceID,
		reading.DataType,
		payload,
		reading.Timestamp,
	).Scan(&reading.ID)
	if err != nil {
		return fmt.Errorf("failed to insert reading: %w", err)
	}
	return nil
}

// ListSince returns readings of dataType newer than since, oldest first
func (r *PostgresReadingRepository) ListSince(ctx context.Context, dataType string, since time.Time) ([]*domain.Reading, error) {
	query := `
		SELECT id, device_id, data_type, payload, "timestamp"
		FROM device_data
		WHERE data_type = $1 AND "timestamp" > $2
		ORDER BY "timestamp" ASC, id ASC
	`
	return r.queryReadings(ctx, query, dataType, since)
}

// ListDeviceSince returns one device's readings of dataType newer than since, oldest first
func (r *PostgresReadingRepository) ListDeviceSince(ctx context.Context, deviceID, dataType string, since time.Time) ([]*domain.Reading, error) {
	query := `
		SELECT id, device_id, data_type, payload, "timestamp"
		FROM device_data
		WHERE device_id = $1 AND data_type = $2 AND "timestamp" > $3
		ORDER BY "timestamp" ASC, id ASC
	`
	return r.queryReadings(ctx, query, deviceID, dataType, since)
}

func (r *PostgresReadingRepository) queryReadings(ctx context.Context, query string, args ...interface{}) ([]*domain.Reading, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query readings: %w", err)
	}
	defer rows.Close()

	readings := []*domain.Reading{}
	for rows.Next() {
		var (
			reading domain.Reading
			payload []byte
		)
		if err := rows.Scan(&reading.ID, &reading.DeviceID, &reading.DataType, &payload, &reading.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan reading: %w", err)
		}
		reading.Payload = payload
		readings = append(readings, &reading)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating readings: %w", err)
	}
	return readings, nil
}
