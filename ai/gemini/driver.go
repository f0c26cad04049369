// Package gemini adapts Google's Gemini API to ai.Model.
package gemini

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
	"google.golang.org/genai"
)

const DefaultModel = "gemini-2.5-flash"

func init() {
	_ = ai.RegisterProvider(ai.ProviderInfo{
		Name:         "gemini",
		DefaultModel: DefaultModel,
		APIKeyName:   "GOOGLE_API_KEY",
		NewModel: func(modelName, apiKey, baseURL string) *ai.Model {
			if apiKey == "" {
				apiKey = os.Getenv("GOOGLE_API_KEY")
				if apiKey == "" {
					slog.Error("GOOGLE_API_KEY is not set")
				}
			}
			return NewModel(modelName, apiKey, baseURL)
		},
	})
}

// NewModel returns a Gemini backed model. baseURL is only set for tests and proxies.
func NewModel(modelName, apiKey, baseURL string) *ai.Model {
	if modelName == "" {
		modelName = DefaultModel
	}
	model := &ai.Model{
		Provider:   "gemini",
		ModelName:  modelName,
		APIKey:     apiKey,
		BaseURL:    baseURL,
		Parameters: map[string]any{},
	}
	model.SetCallFunc(geminiGenerate)
	return model
}

func geminiGenerate(ctx context.Context, model *ai.Model, messages []ai.Message) (ai.AIMessage, error) {
	cfg := &genai.ClientConfig{
		APIKey:  model.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if model.BaseURL != "" {
		cfg.HTTPOptions = genai.HTTPOptions{BaseURL: model.BaseURL}
	}
	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return ai.AIMessage{}, fmt.Errorf("failed to create GenAI client: %w", err)
	}

	system, contents := toContents(messages)
	genCfg := &genai.GenerateContentConfig{}
	if system != "" {
		genCfg.SystemInstruction = genai.NewContentFromText(system, genai.RoleUser)
	}
	if model.Temperature != nil {
		genCfg.Temperature = genai.Ptr(float32(*model.Temperature))
	}
	if model.TopP != nil {
		genCfg.TopP = genai.Ptr(float32(*model.TopP))
	}
	if model.MaxTokens != nil {
		genCfg.MaxOutputTokens = int32(*model.MaxTokens)
	}

	resp, err := client.Models.GenerateContent(ctx, model.ModelName, contents, genCfg)
	if err != nil {
		return ai.AIMessage{}, classifyError(err)
	}

	text := resp.Text()
	if text == "" {
		return ai.AIMessage{}, fmt.Errorf("%w: gemini returned no text", ai.ErrEmptyResult)
	}

	msg := ai.AIMessage{
		Role:     ai.AssistantRole,
		Content:  text,
		Response: ai.Response{Model: model.ModelName},
	}
	if resp.UsageMetadata != nil {
		msg.Response.Usage = ai.Usage{
			PromptTokens:     int(resp.UsageMetadata.PromptTokenCount),
			CompletionTokens: int(resp.UsageMetadata.CandidatesTokenCount),
			TotalTokens:      int(resp.UsageMetadata.TotalTokenCount),
		}
	}
	return msg, nil
}

// toContents splits system messages out as the system instruction; Gemini has no system role in contents.
func toContents(messages []ai.Message) (string, []*genai.Content) {
	var system []string
	contents := make([]*genai.Content, 0, len(messages))
	for _, msg := range messages {
		role, content := msg.Value()
		switch role {
		case ai.SystemRole:
			system = append(system, content)
		case ai.AssistantRole:
			contents = append(contents, genai.NewContentFromText(content, genai.RoleModel))
		default:
			contents = append(contents, genai.NewContentFromText(content, genai.RoleUser))
		}
	}
	return strings.Join(system, "\n\n"), contents
}

func classifyError(err error) error {
	code := 0
	var apiErr genai.APIError
	var apiErrPtr *genai.APIError
	switch {
	case errors.As(err, &apiErr):
		code = apiErr.Code
	case errors.As(err, &apiErrPtr):
		code = apiErrPtr.Code
	}
	if code != 0 {
		if code >= http.StatusInternalServerError || code == http.StatusTooManyRequests {
			return fmt.Errorf("%w: %v", ai.ErrTemporary, err)
		}
		return err
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return fmt.Errorf("%w: %v", ai.ErrTemporary, err)
	}
	return err
}
