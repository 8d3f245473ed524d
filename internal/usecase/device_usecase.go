package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/devicehub/devicehub/internal/domain"
	"github.com/devicehub/devicehub/internal/infra/logger"
	"github.com/devicehub/devicehub/internal/infra/metrics"
	"github.com/devicehub/devicehub/internal/ports"
)

// DefaultRecentMinutes is the analytics window used when none is given
const DefaultRecentMinutes = 30

// AuditRecorder records admin actions
type AuditRecorder interface {
	Record(ctx context.Context, entry domain.AuditLogEntry) domain.RecordOutcome
}

// DeviceStatusView is a device row plus whether its controller is running
type DeviceStatusView struct {
	*domain.Device
	Running bool `json:"running"`
}

// DeviceUseCase handles device control, telemetry and logs
type DeviceUseCase struct {
	devices  ports.DeviceRepository
	readings ports.ReadingRepository
	audit    AuditRecorder
	logbook  *domain.DeviceLogBook
	clock    ports.Clock
	logger   logger.Logger

	mu      sync.Mutex
	running map[string]time.Time
}

// NewDeviceUseCase creates a new device use case
func NewDeviceUseCase(
	devices ports.DeviceRepository,
	readings ports.ReadingRepository,
	audit AuditRecorder,
	clock ports.Clock,
	log logger.Logger,
) *DeviceUseCase {
	if clock == nil {
		clock = ports.SystemClock{}
	}
	return &DeviceUseCase{
		devices:  devices,
		readings: readings,
		audit:    audit,
		logbook:  domain.NewDeviceLogBook(domain.MaxDeviceLogLines),
		clock:    clock,
		logger:   log.WithFields(map[string]interface{}{"component": "devices"}),
		running:  make(map[string]time.Time),
	}
}

// ListDevices returns every device
func (uc *DeviceUseCase) ListDevices(ctx context.Context) ([]*domain.Device, error) {
	devices, err := uc.devices.List(ctx)
	if err != nil {
		uc.logger.Error(ctx, "Failed to list devices", err, nil)
		return nil, domain.ErrDatabaseError("list devices", err)
	}
	return devices, nil
}

// GetDevice returns one device
func (uc *DeviceUseCase) GetDevice(ctx context.Context, id string) (*domain.Device, error) {
	id, err := domain.ValidateDeviceID(id)
	if err != nil {
		return nil, err
	}
	device, err := uc.devices.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrDeviceNotFound) {
			return nil, domain.ErrDeviceNotFoundID(id)
		}
		uc.logger.Error(ctx, "Failed to get device", err, map[string]interface{}{"device_id": id})
		return nil, domain.ErrDatabaseError("get device", err)
	}
	return device, nil
}

// DeviceStatus returns the device and whether it is running, by registry or log heuristic
func (uc *DeviceUseCase) DeviceStatus(ctx context.Context, id string) (*DeviceStatusView, error) {
	device, err := uc.GetDevice(ctx, id)
	if err != nil {
		return nil, err
	}
	return &DeviceStatusView{
		Device:  device,
		Running: uc.IsRunning(device.ID) || domain.InferRunning(uc.logbook.Lines(device.ID)),
	}, nil
}

// IsRunning reports whether a controller for id is registered
func (uc *DeviceUseCase) IsRunning(id string) bool {
	uc.mu.Lock()
	defer uc.mu.Unlock()
	_, ok := uc.running[id]
	return ok
}

// UpdateStatus changes a device's status and appends a status log line
func (uc *DeviceUseCase) UpdateStatus(ctx context.Context, id, status, details string) (domain.DeviceLogLine, error) {
	id, err := domain.ValidateDeviceID(id)
	if err != nil {
		return domain.DeviceLogLine{}, err
	}
	st := domain.DeviceStatus(strings.ToUpper(strings.TrimSpace(status)))
	if !st.IsValid() {
		return domain.DeviceLogLine{}, domain.ErrInvalidDeviceStatus(status)
	}
	if len(details) > domain.MaxDeviceLogMessage {
		details = details[:domain.MaxDeviceLogMessage]
	}

	if err := uc.devices.UpdateStatus(ctx, id, st); err != nil {
		if errors.Is(err, domain.ErrDeviceNotFound) {
			return domain.DeviceLogLine{}, domain.ErrDeviceNotFoundID(id)
		}
		uc.logger.Error(ctx, "Failed to update device status", err, map[string]interface{}{
			"device_id": id,
			"status":    st,
		})
		return domain.DeviceLogLine{}, domain.ErrDatabaseError("update device status", err)
	}

	line := uc.logbook.Add(id, domain.StatusLogMessage(st, details), uc.clock.Now())
	uc.logger.Info(ctx, "Updated device status", map[string]interface{}{
		"device_id": id,
		"status":    st,
		"details":   details,
	})
	return line, nil
}

// Start registers a controller for the device and marks it ONLINE
func (uc *DeviceUseCase) Start(ctx context.Context, id string) (domain.ControlResult, error) {
	id, err := domain.ValidateDeviceID(id)
	if err != nil {
		return "", err
	}

	result, err := uc.transition(ctx, id, true)
	if err != nil {
		metrics.DeviceActions.WithLabelValues("start", "error").Inc()
		return "", err
	}
	metrics.DeviceActions.WithLabelValues("start", string(result)).Inc()
	if result == domain.ControlStarted {
		uc.recordAction(ctx, "device_start", id)
	}
	return result, nil
}

// Stop unregisters the device's controller and marks it OFFLINE
func (uc *DeviceUseCase) Stop(ctx context.Context, id string) (domain.ControlResult, error) {
	id, err := domain.ValidateDeviceID(id)
	if err != nil {
		return "", err
	}

	result, err := uc.transition(ctx, id, false)
	if err != nil {
		metrics.DeviceActions.WithLabelValues("stop", "error").Inc()
		return "", err
	}
	metrics.DeviceActions.WithLabelValues("stop", string(result)).Inc()
	if result == domain.ControlStopped {
		uc.recordAction(ctx, "device_stop", id)
	}
	return result, nil
}

// transition flips the registry entry for id under the lock, updating the device row first
func (uc *DeviceUseCase) transition(ctx context.Context, id string, start bool) (domain.ControlResult, error) {
	uc.mu.Lock()
	defer uc.mu.Unlock()

	_, running := uc.running[id]
	switch {
	case start && running:
		return domain.ControlAlreadyRunning, nil
	case !start && !running:
		return domain.ControlNotRunning, nil
	case start:
		if _, err := uc.UpdateStatus(ctx, id, string(domain.DeviceStatusOnline), "Device monitoring started"); err != nil {
			return "", err
		}
		uc.running[id] = uc.clock.Now()
		return domain.ControlStarted, nil
	default:
		if _, err := uc.UpdateStatus(ctx, id, string(domain.DeviceStatusOffline), "Device monitoring stopped"); err != nil {
			return "", err
		}
		delete(uc.running, id)
		return domain.ControlStopped, nil
	}
}

// DeviceLogs returns the device's log lines, oldest first
func (uc *DeviceUseCase) DeviceLogs(ctx context.Context, id string) ([]domain.DeviceLogLine, error) {
	id, err := domain.ValidateDeviceID(id)
	if err != nil {
		return nil, err
	}
	return uc.logbook.Lines(id), nil
}

// AppendReading stores one telemetry sample for a device
func (uc *DeviceUseCase) AppendReading(ctx context.Context, id, dataType string, payload json.RawMessage) (*domain.Reading, error) {
	id, err := domain.ValidateDeviceID(id)
	if err != nil {
		return nil, err
	}
	dataType = strings.TrimSpace(dataType)
	if dataType == "" {
		return nil, domain.ErrMissingField("data_type")
	}
	if len(payload) == 0 {
		payload = json.RawMessage("{}")
	}
	if !json.Valid(payload) {
		return nil, domain.ErrInvalidRequest("payload must be valid JSON")
	}

	reading := &domain.Reading{
		DeviceID:  id,
		DataType:  dataType,
		Payload:   payload,
		Timestamp: uc.clock.Now().UTC(),
	}
	if err := uc.readings.Append(ctx, reading); err != nil {
		metrics.DeviceActions.WithLabelValues("reading", "error").Inc()
		uc.logger.Error(ctx, "Failed to store device reading", err, map[string]interface{}{
			"device_id": id,
			"data_type": dataType,
		})
		return nil, domain.ErrDatabaseError("append reading", err)
	}
	metrics.DeviceActions.WithLabelValues("reading", "ok").Inc()
	return reading, nil
}

// RecentAnalytics summarizes status readings of every device over the last
// minutes, overall and per device
func (uc *DeviceUseCase) RecentAnalytics(ctx context.Context, minutes int) (*domain.DeviceAnalytics, error) {
	since := uc.analyticsSince(minutes)

	readings, err := uc.readings.ListSince(ctx, domain.StatusDataType, since)
	if err != nil {
		uc.logger.Error(ctx, "Failed to get recent readings", err, map[string]interface{}{"minutes": minutes})
		return nil, domain.ErrDatabaseError("recent readings", err)
	}

	result := analyticsFor(readings)
	grouped := make(map[string][]*domain.Reading)
	for _, r := range readings {
		grouped[r.DeviceID] = append(grouped[r.DeviceID], r)
	}
	for id, series := range grouped {
		if a, ok := domain.ComputeStatusAnalytics(series); ok {
			if result.Devices == nil {
				result.Devices = make(map[string]domain.StatusAnalytics)
			}
			result.Devices[id] = a
		}
	}
	return result, nil
}

// DeviceAnalytics summarizes one device's status readings over the last minutes
func (uc *DeviceUseCase) DeviceAnalytics(ctx context.Context, id string, minutes int) (*domain.DeviceAnalytics, error) {
	id, err := domain.ValidateDeviceID(id)
	if err != nil {
		return nil, err
	}
	since := uc.analyticsSince(minutes)

	readings, err := uc.readings.ListDeviceSince(ctx, id, domain.StatusDataType, since)
	if err != nil {
		uc.logger.Error(ctx, "Failed to get device readings", err, map[string]interface{}{
			"device_id": id,
			"minutes":   minutes,
		})
		return nil, domain.ErrDatabaseError("device readings", err)
	}
	return analyticsFor(readings), nil
}

func (uc *DeviceUseCase) analyticsSince(minutes int) time.Time {
	if minutes <= 0 {
		minutes = DefaultRecentMinutes
	}
	return uc.clock.Now().Add(-time.Duration(minutes) * time.Minute)
}

func analyticsFor(readings []*domain.Reading) *domain.DeviceAnalytics {
	if readings == nil {
		readings = []*domain.Reading{}
	}
	result := &domain.DeviceAnalytics{StatusData: readings}
	if a, ok := domain.ComputeStatusAnalytics(readings); ok {
		result.Analytics = &a
	}
	return result
}

// MarkAllOffline resets every device to OFFLINE and clears the controller registry
func (uc *DeviceUseCase) MarkAllOffline(ctx context.Context) error {
	n, err := uc.devices.MarkAllOffline(ctx)
	if err != nil {
		uc.logger.Error(ctx, "Failed to mark devices offline", err, nil)
		return domain.ErrDatabaseError("mark devices offline", err)
	}

	uc.mu.Lock()
	uc.running = make(map[string]time.Time)
	uc.mu.Unlock()

	uc.logger.Info(ctx, "Marked devices offline", map[string]interface{}{"count": n})
	return nil
}

func (uc *DeviceUseCase) recordAction(ctx context.Context, action, deviceID string) {
	if uc.audit == nil {
		return
	}
	actor := domain.ActorFromContext(ctx)
	entry, err := domain.NewAuditLogEntry(action, map[string]string{"deviceId": deviceID}, actor.Name(), uc.clock.Now())
	if err != nil {
		uc.logger.Error(ctx, "Failed to build audit entry", err, map[string]interface{}{"action": action})
		return
	}
	entry.IPAddress = actor.IPAddress
	uc.audit.Record(ctx, entry)
}
