package http

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"github.com/devicehub/devicehub/internal/domain"
	"github.com/devicehub/devicehub/internal/ports"
	"github.com/devicehub/devicehub/internal/usecase"
)

// AuditLogUseCase defines the behavior the audit handler depends on
type AuditLogUseCase interface {
	Record(ctx context.Context, entry domain.AuditLogEntry) domain.RecordOutcome
	Fetch(ctx context.Context, limit, offset int, filter domain.AuditLogFilter) domain.AuditLogPage
	ExportView(ctx context.Context, filter domain.AuditLogFilter, search string, limit int) domain.AuditLogPage
}

// AuditHandlerConfig holds paging limits for the audit endpoints
type AuditHandlerConfig struct {
	DefaultPageSize int
	MaxPageSize     int
	ExportLimit     int
}

// AuditHandler handles HTTP requests for the admin audit log
type AuditHandler struct {
	audit  AuditLogUseCase
	clock  ports.Clock
	config AuditHandlerConfig
}

// NewAuditHandler creates a new audit handler
func NewAuditHandler(audit AuditLogUseCase, clock ports.Clock, config AuditHandlerConfig) *AuditHandler {
	if clock == nil {
		clock = ports.SystemClock{}
	}
	if config.DefaultPageSize <= 0 {
		config.DefaultPageSize = 50
	}
	if config.MaxPageSize < config.DefaultPageSize {
		config.MaxPageSize = config.DefaultPageSize
	}
	if config.ExportLimit <= 0 {
		config.ExportLimit = 10000
	}
	return &AuditHandler{audit: audit, clock: clock, config: config}
}

// RegisterRoutes registers audit routes
func (h *AuditHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/api/admin/logs", h.ListLogs).Methods("GET")
	router.HandleFunc("/api/admin/logs", h.CreateLog).Methods("POST")
	router.HandleFunc("/api/admin/logs/export", h.ExportLogs).Methods("GET")
}

// AuditLogsResponse is a page of entries plus the window that was requested
type AuditLogsResponse struct {
	domain.AuditLogPage
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
}

// CreateAuditLogRequest is the body of POST /api/admin/logs
type CreateAuditLogRequest struct {
	Action       string          `json:"action"`
	Details      json.RawMessage `json:"details"`
	TargetUserID string          `json:"target_user_id"`
}

// ListLogs handles GET /api/admin/logs
func (h *AuditHandler) ListLogs(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	limit, ok := h.intParam(w, q.Get("limit"), "limit", h.config.DefaultPageSize)
	if !ok {
		return
	}
	if limit > h.config.MaxPageSize {
		limit = h.config.MaxPageSize
	}
	offset, ok := h.intParam(w, q.Get("offset"), "offset", 0)
	if !ok {
		return
	}

	filter, err := filterFromQuery(r)
	if err != nil {
		writeAppError(w, err)
		return
	}

	page := h.audit.Fetch(r.Context(), limit, offset, filter)

	message := "Audit logs retrieved successfully"
	switch page.Status {
	case domain.ReadStatusDegraded:
		message = "Audit logs served from fallback store"
	case domain.ReadStatusEmpty:
		message = "Audit logs unavailable"
	}
	writeSuccess(w, http.StatusOK, message, AuditLogsResponse{AuditLogPage: page, Limit: limit, Offset: offset})
}

// CreateLog handles POST /api/admin/logs
func (h *AuditHandler) CreateLog(w http.ResponseWriter, r *http.Request) {
	var req CreateAuditLogRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorResponse(w, http.StatusBadRequest, string(domain.ErrCodeInvalidRequest), "Invalid request body")
		return
	}
	req.Action = strings.TrimSpace(req.Action)
	if req.Action == "" {
		writeAppError(w, domain.ErrMissingField("action"))
		return
	}
	if len(req.Details) == 0 || string(req.Details) == "null" {
		req.Details = json.RawMessage("{}")
	}

	actor := domain.ActorFromContext(r.Context())
	outcome := h.audit.Record(r.Context(), domain.AuditLogEntry{
		Action:       req.Action,
		Details:      req.Details,
		PerformedBy:  actor.Name(),
		TargetUserID: strings.TrimSpace(req.TargetUserID),
		IPAddress:    actor.IPAddress,
	})

	data := map[string]interface{}{"store": outcome.Store}
	if outcome.Store == domain.StoreNone {
		writeSuccess(w, http.StatusAccepted, "Audit entry could not be persisted", data)
		return
	}
	writeSuccess(w, http.StatusCreated, "Audit entry recorded", data)
}

// ExportLogs handles GET /api/admin/logs/export
func (h *AuditHandler) ExportLogs(w http.ResponseWriter, r *http.Request) {
	filter, err := filterFromQuery(r)
	if err != nil {
		writeAppError(w, err)
		return
	}

	page := h.audit.ExportView(r.Context(), filter, r.URL.Query().Get("search"), h.config.ExportLimit)

	w.Header().Set("Content-Type", usecase.ExportContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+usecase.ExportFilename(h.clock.Now())+`"`)
	w.Header().Set("X-Audit-Source", string(page.Source))
	w.Header().Set("X-Audit-Status", string(page.Status))
	w.WriteHeader(http.StatusOK)
	_ = usecase.ExportCSV(w, page.Entries)
}

func (h *AuditHandler) intParam(w http.ResponseWriter, raw, name string, def int) (int, bool) {
	if raw == "" {
		return def, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		writeAppError(w, domain.ErrInvalidRequest(name+" must be a non-negative integer"))
		return 0, false
	}
	return n, true
}

// filterFromQuery reads the filter params; date bounds come back normalized
func filterFromQuery(r *http.Request) (domain.AuditLogFilter, error) {
	q := r.URL.Query()
	return domain.AuditLogFilter{
		Action:       strings.TrimSpace(q.Get("action")),
		PerformedBy:  strings.TrimSpace(q.Get("performed_by")),
		TargetUserID: strings.TrimSpace(q.Get("target_user_id")),
		FromDate:     q.Get("from"),
		ToDate:       q.Get("to"),
	}.Normalize()
}
