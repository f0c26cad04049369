package ai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
)

var (
	// ErrTemporary marks provider failures worth retrying (rate limits, 5xx, network).
	ErrTemporary   = errors.New("temporary model error")
	ErrEmptyResult = errors.New("model returned no content")
)

type StatusError struct {
	StatusCode   int
	Status       string
	ErrorMessage string
}

func (e StatusError) Error() string {
	return fmt.Sprintf("status: %s, code: %d, error: %s", e.Status, e.StatusCode, e.ErrorMessage)
}

// CallFunc is the provider specific implementation of a single model attempt.
type CallFunc func(ctx context.Context, model *Model, messages []Message) (AIMessage, error)

// Model represents a generic model container that uses function variables for provider-specific logic
type Model struct {
	Provider  string
	ModelName string
	APIKey    string
	BaseURL   string

	callFunc CallFunc

	// Options pointer variables - use nil to represent option not set
	Temperature *float64
	MaxTokens   *int
	TopP        *float64

	// MaxAttempts is the total number of attempts for one Call. Zero or nil means a single attempt.
	MaxAttempts *int
	// Timeout bounds each attempt. Nil means the caller's context is the only limit.
	Timeout *time.Duration
	// InitialBackoff is the delay before the second attempt; later delays grow exponentially.
	InitialBackoff time.Duration

	Parameters map[string]any // additional non-standard parameters for the model

	Logger *slog.Logger
}

// Call makes a single logical call to the model. Temporary failures are retried
// with exponential backoff up to MaxAttempts attempts; any other error is returned
// immediately.
func (m *Model) Call(ctx context.Context, messages []Message) (AIMessage, error) {
	if m.callFunc == nil {
		return AIMessage{}, fmt.Errorf("model %s has no provider implementation", m.ModelName)
	}

	attempts := 1
	if m.MaxAttempts != nil && *m.MaxAttempts > 1 {
		attempts = *m.MaxAttempts
	}

	var response AIMessage
	attempt := 0
	operation := func() error {
		attempt++
		resp, err := m.callOnce(ctx, messages)
		if err != nil {
			if !errors.Is(err, ErrTemporary) {
				return backoff.Permanent(err)
			}
			return err
		}
		response = resp
		return nil
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = m.initialBackoff()
	policy.MaxElapsedTime = 0
	retry := backoff.WithContext(backoff.WithMaxRetries(policy, uint64(attempts-1)), ctx)

	err := backoff.RetryNotify(operation, retry, func(err error, delay time.Duration) {
		m.logger().Warn("model call failed, retrying",
			"model", m.ModelName,
			"attempt", attempt,
			"max_attempts", attempts,
			"delay", delay,
			"error", err)
	})
	if err != nil {
		return AIMessage{}, err
	}
	return response, nil
}

func (m *Model) callOnce(ctx context.Context, messages []Message) (AIMessage, error) {
	attemptCtx := ctx
	if m.Timeout != nil && *m.Timeout > 0 {
		var cancel context.CancelFunc
		attemptCtx, cancel = context.WithTimeout(ctx, *m.Timeout)
		defer cancel()
	}
	resp, err := m.callFunc(attemptCtx, m, messages)
	if err != nil && ctx.Err() == nil && attemptCtx.Err() != nil && !errors.Is(err, ErrTemporary) {
		// the attempt deadline fired while the caller's context is still live
		return AIMessage{}, fmt.Errorf("%w: attempt timed out: %v", ErrTemporary, err)
	}
	return resp, err
}

func (m *Model) initialBackoff() time.Duration {
	if m.InitialBackoff > 0 {
		return m.InitialBackoff
	}
	return 500 * time.Millisecond
}

func (m *Model) logger() *slog.Logger {
	if m.Logger != nil {
		return m.Logger
	}
	return slog.Default()
}

// WithTemperature sets the temperature for the model and returns the model for chaining
func (m *Model) WithTemperature(temperature float64) *Model {
	m.Temperature = &temperature
	return m
}

// WithMaxTokens sets the maximum tokens for the model and returns the model for chaining
func (m *Model) WithMaxTokens(maxTokens int) *Model {
	m.MaxTokens = &maxTokens
	return m
}

// WithTopP sets the top_p parameter for the model and returns the model for chaining
func (m *Model) WithTopP(topP float64) *Model {
	m.TopP = &topP
	return m
}

// WithMaxAttempts sets the total number of attempts per call
func (m *Model) WithMaxAttempts(attempts int) *Model {
	m.MaxAttempts = &attempts
	return m
}

// WithTimeout bounds every attempt by d
func (m *Model) WithTimeout(d time.Duration) *Model {
	m.Timeout = &d
	return m
}

func (m *Model) WithParameter(name string, value any) *Model {
	if m.Parameters == nil {
		m.Parameters = map[string]any{}
	}
	m.Parameters[name] = value
	return m
}

// SetCallFunc sets the provider implementation. Drivers call this from their constructors.
func (m *Model) SetCallFunc(callFunc CallFunc) {
	m.callFunc = callFunc
}
