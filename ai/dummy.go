package ai

import (
	"context"
)

// NewDummyModel is useful for testing purposes. It allows you to mock the model's response.
func NewDummyModel(responseFunc func(ctx context.Context, messages []Message) (AIMessage, error)) *Model {
	return &Model{
		Provider:  "dummy",
		ModelName: "dummy",
		callFunc: func(ctx context.Context, model *Model, messages []Message) (AIMessage, error) {
			return responseFunc(ctx, messages)
		},
	}
}
