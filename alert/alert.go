// Package alert delivers fire-and-forget security notifications for blocked runs.
package alert

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

// Alert describes one blocked run.
type Alert struct {
	RunID     string    `json:"run_id"`
	Requester string    `json:"requester,omitempty"`
	Phrase    string    `json:"phrase,omitempty"`
	Reason    string    `json:"reason"`
	At        time.Time `json:"at"`
}

// Alerter delivers alerts. Callers treat delivery errors as non-fatal.
type Alerter interface {
	Alert(ctx context.Context, a Alert) error
}

// Func adapts a function to Alerter.
type Func func(ctx context.Context, a Alert) error

func (f Func) Alert(ctx context.Context, a Alert) error { return f(ctx, a) }

// Nop drops every alert.
type Nop struct{}

func (Nop) Alert(context.Context, Alert) error { return nil }

// Log writes alerts to a slog logger.
type Log struct {
	Logger *slog.Logger
}

func (l Log) Alert(ctx context.Context, a Alert) error {
	logger := l.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.WarnContext(ctx, "security alert",
		"run", a.RunID,
		"requester", a.Requester,
		"phrase", a.Phrase,
		"reason", a.Reason)
	return nil
}

// Webhook POSTs the alert as JSON.
type Webhook struct {
	URL     string
	Timeout time.Duration
	Client  *http.Client
}

func NewWebhook(url string, timeout time.Duration) *Webhook {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Webhook{URL: url, Timeout: timeout, Client: &http.Client{}}
}

func (w *Webhook) Alert(ctx context.Context, a Alert) error {
	body, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("marshal alert: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, w.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build alert request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	client := w.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("deliver alert: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("deliver alert: webhook returned %s", resp.Status)
	}
	return nil
}

// Multi fans an alert out to several alerters and joins their errors.
type Multi []Alerter

func (m Multi) Alert(ctx context.Context, a Alert) error {
	var errs []error
	for _, alerter := range m {
		if alerter == nil {
			continue
		}
		if err := alerter.Alert(ctx, a); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
