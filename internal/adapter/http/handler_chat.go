package http

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/devicehub/devicehub/internal/domain"
	"github.com/devicehub/devicehub/internal/usecase"
)

// ChatUseCase defines the behavior the chat handler depends on
type ChatUseCase interface {
	Chat(ctx context.Context, req usecase.ChatRequest) (*domain.ChatReply, error)
}

// ChatHandler proxies dashboard chat to the completion provider
type ChatHandler struct {
	chat ChatUseCase
}

// NewChatHandler creates a new chat handler
func NewChatHandler(chat ChatUseCase) *ChatHandler {
	return &ChatHandler{chat: chat}
}

// RegisterRoutes registers chat routes
func (h *ChatHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/api/chat", h.Chat).Methods("POST")
}

// Chat handles POST /api/chat
func (h *ChatHandler) Chat(w http.ResponseWriter, r *http.Request) {
	var req usecase.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorResponse(w, http.StatusBadRequest, string(domain.ErrCodeInvalidRequest), "Invalid request body")
		return
	}

	reply, err := h.chat.Chat(r.Context(), req)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, "Chat reply generated", reply)
}
