package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/devicehub/devicehub/internal/domain"
	"github.com/devicehub/devicehub/internal/ports"
)

const (
	defaultBaseURL     = "https://api.openai.com/v1"
	defaultModel       = "gpt-4"
	defaultMaxTokens   = 1000
	defaultTemperature = 0.7
)

// OpenAIAdapter forwards conversations to the OpenAI chat completions API
type OpenAIAdapter struct {
	apiKey      string
	baseURL     string
	model       string
	maxTokens   int
	temperature float64
	httpClient  *http.Client
}

var _ ports.ChatCompletionProvider = (*OpenAIAdapter)(nil)

// NewOpenAIAdapter creates a new OpenAI adapter
func NewOpenAIAdapter(config ports.ChatConfig) *OpenAIAdapter {
	client := &http.Client{
		Timeout: time.Duration(config.TimeoutMs) * time.Millisecond,
	}

	adapter := &OpenAIAdapter{
		apiKey:      config.APIKey,
		baseURL:     strings.TrimRight(config.BaseURL, "/"),
		model:       config.Model,
		maxTokens:   config.MaxTokens,
		temperature: config.Temperature,
		httpClient:  client,
	}
	if adapter.baseURL == "" {
		adapter.baseURL = defaultBaseURL
	}
	if adapter.model == "" {
		adapter.model = defaultModel
	}
	if adapter.maxTokens <= 0 {
		adapter.maxTokens = defaultMaxTokens
	}
	if adapter.temperature == 0 {
		adapter.temperature = defaultTemperature
	}
	return adapter
}

// Provider returns the current provider type
func (o *OpenAIAdapter) Provider() string {
	return "openai"
}

type chatCompletionRequest struct {
	Model            string               `json:"model"`
	Messages         []domain.ChatMessage `json:"messages"`
	MaxTokens        int                  `json:"max_tokens"`
	Temperature      float64              `json:"temperature"`
	TopP             float64              `json:"top_p"`
	FrequencyPenalty float64              `json:"frequency_penalty"`
	PresencePenalty  float64              `json:"presence_penalty"`
}

// Complete sends messages and returns the first choice's content.
// A 429 maps to ErrChatRateLimited, other non-200 statuses to ErrChatUpstreamStatus,
// and transport failures to ErrChatTransport.
func (o *OpenAIAdapter) Complete(ctx context.Context, messages []domain.ChatMessage) (string, error) {
	jsonBody, err := json.Marshal(chatCompletionRequest{
		Model:       o.model,
		Messages:    messages,
		MaxTokens:   o.maxTokens,
		Temperature: o.temperature,
		TopP:        1,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/chat/completions", bytes.NewBuffer(jsonBody))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+o.apiKey)

	resp, err := o.httpClient.Do(req)
	if err != nil {
		return "", domain.ErrChatTransport(fmt.Errorf("failed to call OpenAI API: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return "", domain.ErrChatRateLimited(fmt.Errorf("OpenAI API error: %d - %s", resp.StatusCode, string(body)))
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return "", domain.ErrChatUpstreamStatus(resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var response struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}

	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return "", domain.ErrChatTransport(fmt.Errorf("failed to decode response: %w", err))
	}

	if len(response.Choices) == 0 {
		return "", domain.ErrChatUpstreamStatus(http.StatusBadGateway, "no choices in response")
	}

	return response.Choices[0].Message.Content, nil
}
