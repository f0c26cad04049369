// Package knowledge keeps the append-only log of accepted work products.
package knowledge

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	ErrEmptyTitle   = errors.New("knowledge entry title is empty")
	ErrEmptyContent = errors.New("knowledge entry content is empty")
)

// Entry is one accepted artifact. Entries are never edited once appended.
type Entry struct {
	ID        string    `json:"id,omitempty"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at,omitempty"`
}

// NewEntry creates an entry with a generated id and timestamp.
func NewEntry(title, content string) Entry {
	return Entry{
		ID:        uuid.New().String(),
		Title:     title,
		Content:   content,
		CreatedAt: time.Now().UTC(),
	}
}

func (e Entry) Validate() error {
	if strings.TrimSpace(e.Title) == "" {
		return ErrEmptyTitle
	}
	if strings.TrimSpace(e.Content) == "" {
		return ErrEmptyContent
	}
	return nil
}

// Log is an ordered, append-only collection of entries.
type Log interface {
	// Append stores e and returns it with any missing id or timestamp filled in.
	Append(ctx context.Context, e Entry) (Entry, error)
	// All returns every entry in append order.
	All(ctx context.Context) ([]Entry, error)
	Close() error
}

// Context renders entries as "title: content" lines for prompting.
func Context(entries []Entry) string {
	lines := make([]string, 0, len(entries))
	for _, e := range entries {
		lines = append(lines, e.Title+": "+e.Content)
	}
	return strings.Join(lines, "\n")
}

func fill(e Entry) Entry {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	return e
}
