package domain

import (
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// DeviceStatus represents the connection status of a device
type DeviceStatus string

const (
	DeviceStatusOnline   DeviceStatus = "ONLINE"
	DeviceStatusOffline  DeviceStatus = "OFFLINE"
	DeviceStatusError    DeviceStatus = "ERROR"
	DeviceStatusUpdating DeviceStatus = "UPDATING"
)

// IsValid checks if the status is one of the known values
func (s DeviceStatus) IsValid() bool {
	switch s {
	case DeviceStatusOnline, DeviceStatusOffline, DeviceStatusError, DeviceStatusUpdating:
		return true
	}
	return false
}

const (
	// MaxDeviceLogLines is the number of log lines kept per device
	MaxDeviceLogLines = 100
	// MaxDeviceLogMessage caps a single log line
	MaxDeviceLogMessage = 500
)

// Device represents a registered IoT device
type Device struct {
	ID            string       `json:"id"`
	Name          string       `json:"name"`
	Status        DeviceStatus `json:"status"`
	RepoURL       *string      `json:"repo_url,omitempty"`
	CheckInterval int          `json:"check_interval"`
	AutoUpdate    bool         `json:"auto_update"`
	LastSeen      *time.Time   `json:"last_seen,omitempty"`
	CreatedAt     time.Time    `json:"created_at"`
}

// Reading is one telemetry sample stored in device_data
type Reading struct {
	ID        int64           `json:"id,omitempty"`
	DeviceID  string          `json:"device_id"`
	DataType  string          `json:"data_type"`
	Payload   json.RawMessage `json:"payload"`
	Timestamp time.Time       `json:"timestamp"`
}

// DeviceLogLine is a free-text log line attached to a device
type DeviceLogLine struct {
	Timestamp string `json:"timestamp"`
	Message   string `json:"message"`
}

// ControlResult is the outcome of a start or stop request
type ControlResult string

const (
	ControlStarted        ControlResult = "started"
	ControlAlreadyRunning ControlResult = "already_running"
	ControlStopped        ControlResult = "stopped"
	ControlNotRunning     ControlResult = "not_running"
)

// ValidateDeviceID checks the id is a UUID and returns it lower-cased
func ValidateDeviceID(id string) (string, error) {
	parsed, err := uuid.Parse(strings.TrimSpace(id))
	if err != nil {
		return "", ErrInvalidDeviceID(id)
	}
	return parsed.String(), nil
}

// StatusLogMessage renders the log line recorded on a status change
func StatusLogMessage(status DeviceStatus, details string) string {
	msg := "Status changed to " + string(status)
	if details != "" {
		msg += ": " + details
	}
	return msg
}

var (
	runningMarkers = []string{"status changed to online", "monitoring started", "started", "running"}
	stoppedMarkers = []string{"status changed to offline", "status changed to error", "monitoring stopped", "stopped", "offline", "error"}
)

// InferRunning guesses whether a device controller is running from its log tail.
// The newest line carrying a marker decides; no marker means not running.
func InferRunning(lines []DeviceLogLine) bool {
	for i := len(lines) - 1; i >= 0; i-- {
		msg := strings.ToLower(lines[i].Message)
		// stop markers win on a mixed line ("OFFLINE: Server restarted")
		for _, m := range stoppedMarkers {
			if strings.Contains(msg, m) {
				return false
			}
		}
		for _, m := range runningMarkers {
			if strings.Contains(msg, m) {
				return true
			}
		}
	}
	return false
}

// DeviceLogBook keeps the latest log lines per device in memory
type DeviceLogBook struct {
	mu    sync.RWMutex
	lines map[string][]DeviceLogLine
	max   int
}

// NewDeviceLogBook creates a log book keeping up to max lines per device
func NewDeviceLogBook(max int) *DeviceLogBook {
	if max <= 0 {
		max = MaxDeviceLogLines
	}
	return &DeviceLogBook{lines: make(map[string][]DeviceLogLine), max: max}
}

// Add appends a line, truncating the message and evicting the oldest lines
func (b *DeviceLogBook) Add(deviceID, message string, now time.Time) DeviceLogLine {
	if len(message) > MaxDeviceLogMessage {
		message = message[:MaxDeviceLogMessage]
	}
	line := DeviceLogLine{Timestamp: FormatTimestamp(now), Message: message}

	b.mu.Lock()
	defer b.mu.Unlock()
	lines := append(b.lines[deviceID], line)
	if len(lines) > b.max {
		lines = lines[len(lines)-b.max:]
	}
	b.lines[deviceID] = lines
	return line
}

// Lines returns a copy of the device's lines, oldest first
func (b *DeviceLogBook) Lines(deviceID string) []DeviceLogLine {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]DeviceLogLine, len(b.lines[deviceID]))
	copy(out, b.lines[deviceID])
	return out
}
