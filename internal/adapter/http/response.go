package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/devicehub/devicehub/internal/domain"
)

// Envelope is the JSON body of every API response
type Envelope struct {
	Status  bool        `json:"status"`
	Message string      `json:"message"`
	Data    interface{} `json:"data"`
	Code    string      `json:"code,omitempty"`
}

func writeJSON(w http.ResponseWriter, statusCode int, env Envelope) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(env)
}

func writeSuccess(w http.ResponseWriter, statusCode int, message string, data interface{}) {
	writeJSON(w, statusCode, Envelope{Status: true, Message: message, Data: data})
}

func writeErrorResponse(w http.ResponseWriter, statusCode int, code, message string) {
	writeJSON(w, statusCode, Envelope{Status: false, Message: message, Code: code})
}

// writeAppError maps err to its status and code; unknown errors become a generic 500
func writeAppError(w http.ResponseWriter, err error) {
	var appErr *domain.AppError
	if errors.As(err, &appErr) {
		message := appErr.Message
		if appErr.Details != "" {
			message += ": " + appErr.Details
		}
		writeErrorResponse(w, domain.GetHTTPStatusCode(err), string(appErr.Code), message)
		return
	}
	writeErrorResponse(w, http.StatusInternalServerError, string(domain.ErrCodeInternalServerError), "Internal server error")
}
