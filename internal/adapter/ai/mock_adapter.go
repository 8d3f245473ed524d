package ai

import (
	"context"
	"fmt"
	"strings"

	"github.com/devicehub/devicehub/internal/domain"
	"github.com/devicehub/devicehub/internal/ports"
)

// MockChatProvider answers with a deterministic canned reply for local development
type MockChatProvider struct{}

var _ ports.ChatCompletionProvider = MockChatProvider{}

// NewMockChatProvider creates a new mock chat provider
func NewMockChatProvider() MockChatProvider {
	return MockChatProvider{}
}

// Provider returns the current provider type
func (MockChatProvider) Provider() string {
	return "mock"
}

// Complete echoes the last user turn
func (MockChatProvider) Complete(ctx context.Context, messages []domain.ChatMessage) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	last := ""
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == domain.ChatRoleUser {
			last = strings.TrimSpace(messages[i].Content)
			break
		}
	}
	if last == "" {
		return "How can I help with your devices today?", nil
	}
	return fmt.Sprintf("[mock] You asked: %q. Connect an OpenAI key for real answers.", last), nil
}

// NewChatProvider picks the provider named in config
func NewChatProvider(config ports.ChatConfig) (ports.ChatCompletionProvider, error) {
	switch config.Provider {
	case "openai":
		if config.APIKey == "" {
			return nil, domain.ErrConfigurationError("OPENAI_API_KEY")
		}
		return NewOpenAIAdapter(config), nil
	case "mock", "":
		return NewMockChatProvider(), nil
	default:
		return nil, fmt.Errorf("unsupported chat provider: %s", config.Provider)
	}
}
