package pentagon

import (
	"context"
	"fmt"

	"github.com/nexxia-ai/pentagon/ai"
)

// Executor performs one stage: a single generation given a persona and the stage input.
// Implementations must be safe for concurrent use when the pipeline serves concurrent runs.
type Executor interface {
	RunStage(ctx context.Context, persona, input string) (string, error)
}

// ExecutorFunc adapts a function to Executor.
type ExecutorFunc func(ctx context.Context, persona, input string) (string, error)

func (f ExecutorFunc) RunStage(ctx context.Context, persona, input string) (string, error) {
	return f(ctx, persona, input)
}

// ModelExecutor runs stages against an ai.Model. Retries and per-attempt timeouts
// are configured on the model.
type ModelExecutor struct {
	Model *ai.Model
}

func NewModelExecutor(model *ai.Model) *ModelExecutor {
	return &ModelExecutor{Model: model}
}

func (e *ModelExecutor) RunStage(ctx context.Context, persona, input string) (string, error) {
	if e == nil || e.Model == nil {
		return "", ErrNoExecutor
	}
	resp, err := e.Model.Call(ctx, ai.Prompt(persona, input))
	if err != nil {
		return "", fmt.Errorf("%s/%s: %w", e.Model.Provider, e.Model.ModelName, err)
	}
	return resp.Content, nil
}
