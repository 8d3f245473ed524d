package ports

import (
	"context"
	"time"

	"github.com/devicehub/devicehub/internal/domain"
)

// IPResolver looks up the public address of this process
type IPResolver interface {
	PublicIP(ctx context.Context) (string, error)
}

// ChatCompletionProvider forwards a conversation to a completions API
type ChatCompletionProvider interface {
	// Complete returns the assistant reply for messages
	Complete(ctx context.Context, messages []domain.ChatMessage) (string, error)

	// Provider returns the provider name
	Provider() string
}

// Clock abstracts time for deterministic tests
type Clock interface {
	Now() time.Time
}

// SystemClock is the wall clock
type SystemClock struct{}

// Now returns time.Now()
func (SystemClock) Now() time.Time { return time.Now() }

// ChatConfig represents chat completion configuration
type ChatConfig struct {
	Provider    string
	APIKey      string
	BaseURL     string
	Model       string
	MaxTokens   int
	Temperature float64
	TimeoutMs   int
}
