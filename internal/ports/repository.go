package ports

import (
	"context"
	"time"

	"github.com/devicehub/devicehub/internal/domain"
)

// AuditLogRepository is the remote admin_logs table
type AuditLogRepository interface {
	// Insert appends one entry
	Insert(ctx context.Context, entry domain.AuditLogEntry) error

	// List returns entries matching filter, newest first, in the [offset, offset+limit) window
	List(ctx context.Context, filter domain.AuditLogFilter, limit, offset int) ([]domain.AuditLogEntry, error)
}

// ExistenceChecker reports whether the remote audit table is usable.
// A non-nil error with true means the table is assumed to exist despite an
// unclassified failure.
type ExistenceChecker interface {
	TableExists(ctx context.Context) (bool, error)
}

// ExistenceCheckerFunc adapts a function to ExistenceChecker
type ExistenceCheckerFunc func(ctx context.Context) (bool, error)

// TableExists calls f(ctx)
func (f ExistenceCheckerFunc) TableExists(ctx context.Context) (bool, error) {
	return f(ctx)
}

// FallbackStore is the process-local durable list of audit entries
type FallbackStore interface {
	// Load returns the whole list in insertion order
	Load(ctx context.Context) ([]domain.AuditLogEntry, error)

	// Save replaces the whole list
	Save(ctx context.Context, entries []domain.AuditLogEntry) error
}

// DeviceRepository defines the interface for device persistence
type DeviceRepository interface {
	// List returns all devices
	List(ctx context.Context) ([]*domain.Device, error)

	// FindByID returns domain.ErrDeviceNotFound when the row is missing
	FindByID(ctx context.Context, id string) (*domain.Device, error)

	// UpdateStatus sets the connection status of a device
	UpdateStatus(ctx context.Context, id string, status domain.DeviceStatus) error

	// MarkAllOffline sets every device OFFLINE and returns how many rows changed
	MarkAllOffline(ctx context.Context) (int64, error)
}

// ReadingRepository defines the interface for device_data persistence
type ReadingRepository interface {
	// Append stores one reading
	Append(ctx context.Context, reading *domain.Reading) error

	// ListSince returns readings of dataType newer than since, oldest first
	ListSince(ctx context.Context, dataType string, since time.Time) ([]*domain.Reading, error)

	// ListDeviceSince is ListSince restricted to one device
	ListDeviceSince(ctx context.Context, deviceID, dataType string, since time.Time) ([]*domain.Reading, error)
}
