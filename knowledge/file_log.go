package knowledge

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// FileLog stores the log as a JSON array. The whole file is rewritten through a
// temporary file and rename on every append, under a mutex.
type FileLog struct {
	mutex    sync.RWMutex
	entries  []Entry
	filePath string
}

// OpenFileLog loads the log at path. A missing or empty file is an empty log.
func OpenFileLog(path string) (*FileLog, error) {
	l := &FileLog{filePath: path}
	if err := l.load(); err != nil {
		return nil, err
	}
	return l, nil
}

func (l *FileLog) Path() string {
	return l.filePath
}

func (l *FileLog) load() error {
	data, err := os.ReadFile(l.filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read knowledge file: %w", err)
	}
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, &l.entries); err != nil {
		return fmt.Errorf("failed to parse knowledge file: %w", err)
	}
	return nil
}

func (l *FileLog) Append(ctx context.Context, e Entry) (Entry, error) {
	if err := e.Validate(); err != nil {
		return Entry{}, fmt.Errorf("invalid knowledge entry: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return Entry{}, err
	}
	e = fill(e)

	l.mutex.Lock()
	defer l.mutex.Unlock()

	next := make([]Entry, len(l.entries), len(l.entries)+1)
	copy(next, l.entries)
	next = append(next, e)
	if err := l.saveData(next); err != nil {
		return Entry{}, err
	}
	l.entries = next
	return e, nil
}

func (l *FileLog) All(ctx context.Context) ([]Entry, error) {
	l.mutex.RLock()
	defer l.mutex.RUnlock()

	entries := make([]Entry, len(l.entries))
	copy(entries, l.entries)
	return entries, nil
}

func (l *FileLog) Close() error { return nil }

// saveData writes the provided entries to the JSON file atomically
func (l *FileLog) saveData(entries []Entry) error {
	dir := filepath.Dir(l.filePath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create knowledge directory: %w", err)
	}

	tempFile := l.filePath + ".tmp"
	file, err := os.Create(tempFile)
	if err != nil {
		return fmt.Errorf("failed to create temporary file: %w", err)
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "    ")
	encoder.SetEscapeHTML(false)
	if err := encoder.Encode(entries); err != nil {
		os.Remove(tempFile)
		return fmt.Errorf("failed to encode knowledge data: %w", err)
	}

	if err := file.Close(); err != nil {
		os.Remove(tempFile)
		return fmt.Errorf("failed to close temporary file: %w", err)
	}

	if err := os.Rename(tempFile, l.filePath); err != nil {
		os.Remove(tempFile)
		return fmt.Errorf("failed to rename temporary file: %w", err)
	}
	return nil
}
