package openai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strings"

	"github.com/nexxia-ai/pentagon/ai"
	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/shared"
)

const (
	OpenAIBaseURL     = "https://api.openai.com/v1"
	DeepSeekBaseURL   = "https://api.deepseek.com/v1"
	OpenRouterBaseURL = "https://openrouter.ai/api/v1"
)

func init() {
	registerStandardProviders()
}

func registerStandardProviders() {
	providers := []struct {
		name         string
		defaultModel string
		baseURL      string
		apiKeyName   string
	}{
		{"openai", "gpt-4o", OpenAIBaseURL, "OPENAI_API_KEY"},
		{"deepseek", "deepseek-chat", DeepSeekBaseURL, "DEEPSEEK_API_KEY"},
		{"openrouter", "deepseek/deepseek-chat-v3.1", OpenRouterBaseURL, "OPENROUTER_API_KEY"},
	}

	for _, p := range providers {
		name, keyName := p.name, p.apiKeyName
		_ = ai.RegisterProvider(ai.ProviderInfo{
			Name:         name,
			DefaultModel: p.defaultModel,
			BaseURL:      p.baseURL,
			APIKeyName:   keyName,
			NewModel: func(modelName, apiKey, baseURL string) *ai.Model {
				if apiKey == "" {
					apiKey = os.Getenv(keyName)
					if apiKey == "" {
						slog.Error("api key is not set", "provider", name, "env", keyName)
					}
				}
				m := NewModel(modelName, apiKey, baseURL)
				m.Provider = name
				return m
			},
		})
	}
}

// NewModel returns a model speaking the OpenAI chat completions protocol at baseURL.
func NewModel(modelName string, apiKey string, baseURL string) *ai.Model {
	if baseURL == "" {
		baseURL = OpenAIBaseURL
	}

	model := &ai.Model{
		Provider:   "openai",
		ModelName:  modelName,
		APIKey:     apiKey,
		BaseURL:    baseURL,
		Parameters: map[string]any{},
	}
	model.SetCallFunc(openaiGenerate)
	return model
}

func openaiGenerate(ctx context.Context, model *ai.Model, messages []ai.Message) (ai.AIMessage, error) {
	client := createClient(model)

	chatMsgs, err := toChatMessages(messages)
	if err != nil {
		return ai.AIMessage{}, fmt.Errorf("failed to convert messages: %w", err)
	}

	params := openai.ChatCompletionNewParams{
		Model:    shared.ChatModel(model.ModelName),
		Messages: chatMsgs,
	}
	if model.Temperature != nil {
		params.Temperature = openai.Opt(*model.Temperature)
	}
	if model.MaxTokens != nil {
		params.MaxTokens = openai.Opt(int64(*model.MaxTokens))
	}
	if model.TopP != nil {
		params.TopP = openai.Opt(*model.TopP)
	}

	resp, err := client.Chat.Completions.New(ctx, params)
	if err != nil {
		return ai.AIMessage{}, classifyError(err)
	}
	if len(resp.Choices) == 0 {
		return ai.AIMessage{}, fmt.Errorf("%w: no choices in response %s", ai.ErrEmptyResult, resp.ID)
	}
	return fromChatResponse(resp), nil
}

func createClient(model *ai.Model) openai.Client {
	opts := []option.RequestOption{
		option.WithAPIKey(model.APIKey),
		// ai.Model owns retries
		option.WithMaxRetries(0),
	}

	if model.BaseURL != "" && model.BaseURL != OpenAIBaseURL {
		opts = append(opts, option.WithBaseURL(model.BaseURL))
	}

	return openai.NewClient(opts...)
}

// classifyError wraps rate limiting, server side and network failures in ai.ErrTemporary.
func classifyError(err error) error {
	if err == nil {
		return nil
	}

	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		if apiErr.StatusCode >= http.StatusInternalServerError || apiErr.StatusCode == http.StatusTooManyRequests {
			return fmt.Errorf("%w: %v", ai.ErrTemporary, err)
		}
		return err
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return fmt.Errorf("%w: %v", ai.ErrTemporary, err)
	}

	errStr := err.Error()
	if strings.Contains(errStr, "connection refused") ||
		strings.Contains(errStr, "connection reset") ||
		strings.Contains(errStr, "EOF") {
		return fmt.Errorf("%w: %v", ai.ErrTemporary, err)
	}

	return err
}
