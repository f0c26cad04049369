package ai

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

var (
	ErrProviderNotFound      = errors.New("provider not found")
	ErrProviderAlreadyExists = errors.New("provider already registered")
	ErrEmptyProviderName     = errors.New("provider name cannot be empty")
	ErrEmptyModelName        = errors.New("model name cannot be empty")
)

// ModelFactoryFunc builds a Model for a provider. An empty baseURL selects the provider default.
type ModelFactoryFunc func(modelName, apiKey, baseURL string) *Model

type ProviderInfo struct {
	Name         string
	DefaultModel string
	BaseURL      string
	APIKeyName   string
	NewModel     ModelFactoryFunc
}

type providerRegistry struct {
	mu        sync.RWMutex
	providers map[string]ProviderInfo
}

var defaultRegistry = &providerRegistry{
	providers: make(map[string]ProviderInfo),
}

// RegisterProvider makes a provider available to New. Drivers call it from init.
func RegisterProvider(info ProviderInfo) error {
	if info.Name == "" {
		return ErrEmptyProviderName
	}

	defaultRegistry.mu.Lock()
	defer defaultRegistry.mu.Unlock()

	if _, exists := defaultRegistry.providers[info.Name]; exists {
		return fmt.Errorf("%w: %s", ErrProviderAlreadyExists, info.Name)
	}
	defaultRegistry.providers[info.Name] = info
	return nil
}

// New builds a model for the named provider. An empty modelName falls back to the provider's default model.
func New(provider, modelName, apiKey, baseURL string) (*Model, error) {
	defaultRegistry.mu.RLock()
	info, exists := defaultRegistry.providers[provider]
	defaultRegistry.mu.RUnlock()

	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrProviderNotFound, provider)
	}
	if modelName == "" {
		modelName = info.DefaultModel
	}
	if modelName == "" {
		return nil, ErrEmptyModelName
	}
	if baseURL == "" {
		baseURL = info.BaseURL
	}
	return info.NewModel(modelName, apiKey, baseURL), nil
}

// Lookup returns the registration for a provider.
func Lookup(provider string) (ProviderInfo, bool) {
	defaultRegistry.mu.RLock()
	defer defaultRegistry.mu.RUnlock()
	info, ok := defaultRegistry.providers[provider]
	return info, ok
}

// Providers returns all registered providers sorted by name.
func Providers() []ProviderInfo {
	defaultRegistry.mu.RLock()
	defer defaultRegistry.mu.RUnlock()

	result := make([]ProviderInfo, 0, len(defaultRegistry.providers))
	for _, info := range defaultRegistry.providers {
		result = append(result, info)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result
}
