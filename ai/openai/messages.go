package openai

import (
	"fmt"
	"strings"

	"github.com/nexxia-ai/pentagon/ai"
	"github.com/openai/openai-go/v3"
)

func toChatMessages(msgs []ai.Message) ([]openai.ChatCompletionMessageParamUnion, error) {
	result := make([]openai.ChatCompletionMessageParamUnion, 0, len(msgs))
	for _, msg := range msgs {
		switch m := msg.(type) {
		case ai.SystemMessage:
			result = append(result, openai.SystemMessage(m.Content))
		case ai.UserMessage:
			result = append(result, openai.UserMessage(m.Content))
		case ai.AIMessage:
			result = append(result, openai.AssistantMessage(m.Content))
		default:
			return nil, fmt.Errorf("unsupported message type: %T", msg)
		}
	}
	return result, nil
}

func fromChatResponse(resp *openai.ChatCompletion) ai.AIMessage {
	if resp == nil || len(resp.Choices) == 0 {
		return ai.AIMessage{}
	}

	content, think := extractThinkTags(resp.Choices[0].Message.Content)
	return ai.AIMessage{
		Role:    ai.AssistantRole,
		Content: content,
		Think:   think,
		Response: ai.Response{
			ID:      resp.ID,
			Created: resp.Created,
			Model:   string(resp.Model),
			Usage: ai.Usage{
				PromptTokens:     int(resp.Usage.PromptTokens),
				CompletionTokens: int(resp.Usage.CompletionTokens),
				TotalTokens:      int(resp.Usage.TotalTokens),
			},
		},
	}
}

// extractThinkTags strips a leading <think>...</think> block some reasoning models emit.
func extractThinkTags(content string) (cleaned string, think string) {
	const startTag, endTag = "<think>", "</think>"

	start := strings.Index(content, startTag)
	if start == -1 {
		return content, ""
	}
	end := strings.Index(content[start:], endTag)
	if end == -1 {
		return content, ""
	}
	end += start + len(endTag)

	think = content[start+len(startTag) : end-len(endTag)]
	cleaned = content[:start] + content[end:]
	return strings.TrimSpace(cleaned), strings.TrimSpace(think)
}
