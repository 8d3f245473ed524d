package http

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/devicehub/devicehub/internal/domain"
	"github.com/devicehub/devicehub/internal/usecase"
)

// DeviceUseCase defines the behavior the device handler depends on
type DeviceUseCase interface {
	ListDevices(ctx context.Context) ([]*domain.Device, error)
	DeviceStatus(ctx context.Context, id string) (*usecase.DeviceStatusView, error)
	Start(ctx context.Context, id string) (domain.ControlResult, error)
	Stop(ctx context.Context, id string) (domain.ControlResult, error)
	UpdateStatus(ctx context.Context, id, status, details string) (domain.DeviceLogLine, error)
	AppendReading(ctx context.Context, id, dataType string, payload json.RawMessage) (*domain.Reading, error)
	DeviceLogs(ctx context.Context, id string) ([]domain.DeviceLogLine, error)
	RecentAnalytics(ctx context.Context, minutes int) (*domain.DeviceAnalytics, error)
	DeviceAnalytics(ctx context.Context, id string, minutes int) (*domain.DeviceAnalytics, error)
}

// DeviceHandler handles HTTP requests for devices
type DeviceHandler struct {
	devices DeviceUseCase
}

// NewDeviceHandler creates a new device handler
func NewDeviceHandler(devices DeviceUseCase) *DeviceHandler {
	return &DeviceHandler{devices: devices}
}

// RegisterRoutes registers device routes
func (h *DeviceHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/api/devices", h.ListDevices).Methods("GET")
	router.HandleFunc("/api/devices/{id}/status", h.GetStatus).Methods("GET")
	router.HandleFunc("/api/devices/{id}/start", h.Start).Methods("POST")
	router.HandleFunc("/api/devices/{id}/stop", h.Stop).Methods("POST")
	router.HandleFunc("/api/devices/{id}/connection", h.UpdateConnection).Methods("POST")
	router.HandleFunc("/api/devices/{id}/readings", h.AppendReading).Methods("POST")
	router.HandleFunc("/api/devices/{id}/logs", h.GetLogs).Methods("GET")
	router.HandleFunc("/api/analytics/recent", h.RecentAnalytics).Methods("GET")
	router.HandleFunc("/api/analytics/device/{id}", h.DeviceAnalytics).Methods("GET")
}

// ListDevices handles GET /api/devices
func (h *DeviceHandler) ListDevices(w http.ResponseWriter, r *http.Request) {
	devices, err := h.devices.ListDevices(r.Context())
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, "Devices retrieved successfully", devices)
}

// GetStatus handles GET /api/devices/{id}/status
func (h *DeviceHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	view, err := h.devices.DeviceStatus(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, "Device status retrieved successfully", view)
}

// Start handles POST /api/devices/{id}/start
func (h *DeviceHandler) Start(w http.ResponseWriter, r *http.Request) {
	result, err := h.devices.Start(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, "Device start processed", map[string]domain.ControlResult{"status": result})
}

// Stop handles POST /api/devices/{id}/stop
func (h *DeviceHandler) Stop(w http.ResponseWriter, r *http.Request) {
	result, err := h.devices.Stop(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, "Device stop processed", map[string]domain.ControlResult{"status": result})
}

// UpdateConnectionRequest is the body of POST /api/devices/{id}/connection
type UpdateConnectionRequest struct {
	Status  string `json:"status"`
	Details string `json:"details"`
}

// UpdateConnection handles POST /api/devices/{id}/connection
func (h *DeviceHandler) UpdateConnection(w http.ResponseWriter, r *http.Request) {
	var req UpdateConnectionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorResponse(w, http.StatusBadRequest, string(domain.ErrCodeInvalidRequest), "Invalid request body")
		return
	}
	if req.Status == "" {
		writeAppError(w, domain.ErrMissingField("status"))
		return
	}

	line, err := h.devices.UpdateStatus(r.Context(), mux.Vars(r)["id"], req.Status, req.Details)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, "Device status updated", line)
}

// AppendReadingRequest is the body of POST /api/devices/{id}/readings
type AppendReadingRequest struct {
	DataType string          `json:"data_type"`
	Payload  json.RawMessage `json:"payload"`
}

// AppendReading handles POST /api/devices/{id}/readings
func (h *DeviceHandler) AppendReading(w http.ResponseWriter, r *http.Request) {
	var req AppendReadingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorResponse(w, http.StatusBadRequest, string(domain.ErrCodeInvalidRequest), "Invalid request body")
		return
	}

	reading, err := h.devices.AppendReading(r.Context(), mux.Vars(r)["id"], req.DataType, req.Payload)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeSuccess(w, http.StatusCreated, "Reading stored", reading)
}

// GetLogs handles GET /api/devices/{id}/logs
func (h *DeviceHandler) GetLogs(w http.ResponseWriter, r *http.Request) {
	lines, err := h.devices.DeviceLogs(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, "Device logs retrieved successfully", lines)
}

// RecentAnalytics handles GET /api/analytics/recent
func (h *DeviceHandler) RecentAnalytics(w http.ResponseWriter, r *http.Request) {
	minutes, ok := minutesParam(w, r)
	if !ok {
		return
	}

	result, err := h.devices.RecentAnalytics(r.Context(), minutes)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeAnalytics(w, result)
}

// DeviceAnalytics handles GET /api/analytics/device/{id}
func (h *DeviceHandler) DeviceAnalytics(w http.ResponseWriter, r *http.Request) {
	minutes, ok := minutesParam(w, r)
	if !ok {
		return
	}

	result, err := h.devices.DeviceAnalytics(r.Context(), mux.Vars(r)["id"], minutes)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeAnalytics(w, result)
}

func minutesParam(w http.ResponseWriter, r *http.Request) (int, bool) {
	raw := r.URL.Query().Get("minutes")
	if raw == "" {
		return usecase.DefaultRecentMinutes, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		writeAppError(w, domain.ErrInvalidRequest("minutes must be a positive integer"))
		return 0, false
	}
	return n, true
}

func writeAnalytics(w http.ResponseWriter, result *domain.DeviceAnalytics) {
	if result.Analytics == nil {
		writeSuccess(w, http.StatusOK, "No data available", result)
		return
	}
	writeSuccess(w, http.StatusOK, "Analytics retrieved successfully", result)
}
