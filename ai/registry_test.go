package ai

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterProviderAndNew(t *testing.T) {
	mockFactory := func(modelName, apiKey, baseURL string) *Model {
		m := &Model{Provider: "testprovider", ModelName: modelName, APIKey: apiKey, BaseURL: baseURL}
		m.SetCallFunc(func(ctx context.Context, model *Model, messages []Message) (AIMessage, error) {
			return AIMessage{Role: AssistantRole, Content: "test"}, nil
		})
		return m
	}

	err := RegisterProvider(ProviderInfo{
		Name:         "testprovider",
		DefaultModel: "test-default",
		BaseURL:      "https://api.test.com",
		NewModel:     mockFactory,
	})
	require.NoError(t, err)

	model, err := New("testprovider", "", "test-api-key", "")
	require.NoError(t, err)
	assert.Equal(t, "test-default", model.ModelName)
	assert.Equal(t, "test-api-key", model.APIKey)
	assert.Equal(t, "https://api.test.com", model.BaseURL)

	model, err = New("testprovider", "other", "", "https://override")
	require.NoError(t, err)
	assert.Equal(t, "other", model.ModelName)
	assert.Equal(t, "https://override", model.BaseURL)

	resp, err := model.Call(context.Background(), Prompt("s", "u"))
	require.NoError(t, err)
	assert.Equal(t, "test", resp.Content)

	_, ok := Lookup("testprovider")
	assert.True(t, ok)

	names := []string{}
	for _, p := range Providers() {
		names = append(names, p.Name)
	}
	assert.Contains(t, names, "testprovider")
}

func TestRegisterProviderErrors(t *testing.T) {
	err := RegisterProvider(ProviderInfo{})
	assert.ErrorIs(t, err, ErrEmptyProviderName)

	info := ProviderInfo{Name: "duplicate", NewModel: func(m, k, u string) *Model { return &Model{} }}
	require.NoError(t, RegisterProvider(info))
	err = RegisterProvider(info)
	assert.True(t, errors.Is(err, ErrProviderAlreadyExists))
}

func TestNewUnknownProvider(t *testing.T) {
	_, err := New("does-not-exist", "m", "", "")
	assert.ErrorIs(t, err, ErrProviderNotFound)
}

func TestNewWithoutModelName(t *testing.T) {
	require.NoError(t, RegisterProvider(ProviderInfo{
		Name:     "nodefault",
		NewModel: func(m, k, u string) *Model { return &Model{ModelName: m} },
	}))
	_, err := New("nodefault", "", "", "")
	assert.ErrorIs(t, err, ErrEmptyModelName)
}
