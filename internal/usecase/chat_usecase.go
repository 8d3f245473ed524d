package usecase

import (
	"context"
	"errors"
	"strings"

	"github.com/devicehub/devicehub/internal/domain"
	"github.com/devicehub/devicehub/internal/infra/logger"
	"github.com/devicehub/devicehub/internal/infra/metrics"
	"github.com/devicehub/devicehub/internal/ports"
)

// ChatRequest is a new user turn plus the prior conversation
type ChatRequest struct {
	Message string               `json:"message"`
	History []domain.ChatMessage `json:"history"`
}

// ChatUseCase forwards conversations to the configured completion provider
type ChatUseCase struct {
	provider ports.ChatCompletionProvider
	logger   logger.Logger
}

// NewChatUseCase creates a new chat use case
func NewChatUseCase(provider ports.ChatCompletionProvider, log logger.Logger) *ChatUseCase {
	return &ChatUseCase{
		provider: provider,
		logger:   log.WithFields(map[string]interface{}{"component": "chat", "provider": provider.Provider()}),
	}
}

// Chat appends the user turn, asks the provider, and returns the reply with the extended history
func (uc *ChatUseCase) Chat(ctx context.Context, req ChatRequest) (*domain.ChatReply, error) {
	message := strings.TrimSpace(req.Message)
	if message == "" {
		return nil, domain.ErrMissingField("message")
	}

	history := make([]domain.ChatMessage, 0, len(req.History)+2)
	for _, m := range req.History {
		switch m.Role {
		case domain.ChatRoleSystem, domain.ChatRoleUser, domain.ChatRoleAssistant:
			history = append(history, m)
		default:
			return nil, domain.ErrInvalidRequest("unknown chat role: " + string(m.Role))
		}
	}
	history = append(history, domain.ChatMessage{Role: domain.ChatRoleUser, Content: message})

	reply, err := uc.provider.Complete(ctx, history)
	if err != nil {
		metrics.ChatRequests.WithLabelValues(chatOutcome(err)).Inc()
		uc.logger.Error(ctx, "Chat completion failed", err, map[string]interface{}{"turns": len(history)})
		return nil, err
	}
	metrics.ChatRequests.WithLabelValues("ok").Inc()

	history = append(history, domain.ChatMessage{Role: domain.ChatRoleAssistant, Content: reply})
	return &domain.ChatReply{Message: reply, History: history}, nil
}

func chatOutcome(err error) string {
	var appErr *domain.AppError
	if errors.As(err, &appErr) {
		return string(appErr.Code)
	}
	return "error"
}
