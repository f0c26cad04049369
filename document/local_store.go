package document

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// LocalStore archives uploaded documents as files under one directory, grouped by case.
type LocalStore struct {
	dir string
}

// NewLocalStore creates a new LocalStore
func NewLocalStore(dir string) *LocalStore {
	// remove the trailing slash
	dir = strings.TrimSuffix(dir, string(os.PathSeparator))
	return &LocalStore{dir: dir}
}

// Dir returns the root directory of the store
func (ls *LocalStore) Dir() string {
	return ls.dir
}

// Save writes the document under <dir>/<caseID>/<filename> and returns the path.
func (ls *LocalStore) Save(ctx context.Context, caseID string, doc *Document) (string, error) {
	if doc == nil {
		return "", fmt.Errorf("document cannot be nil")
	}
	name := filepath.Base(doc.Filename)
	if name == "" || name == "." || name == string(os.PathSeparator) {
		return "", fmt.Errorf("invalid filename: %q", doc.Filename)
	}
	caseDir := filepath.Join(ls.dir, filepath.Base(caseID))
	if err := os.MkdirAll(caseDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create directory: %w", err)
	}
	path := filepath.Join(caseDir, name)
	if err := os.WriteFile(path, doc.Data, 0644); err != nil {
		return "", fmt.Errorf("failed to write content: %w", err)
	}
	return path, nil
}

// Open loads an archived document
func (ls *LocalStore) Open(ctx context.Context, caseID, filename string) (*Document, error) {
	return Load(filepath.Join(ls.dir, filepath.Base(caseID), filepath.Base(filename)))
}

// List returns the filenames archived for a case
func (ls *LocalStore) List(ctx context.Context, caseID string) ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(ls.dir, filepath.Base(caseID)))
	if err != nil {
		if os.IsNotExist(err) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("failed to read directory: %w", err)
	}

	var names []string
	for _, entry := range entries {
		if !entry.IsDir() {
			names = append(names, entry.Name())
		}
	}
	return names, nil
}

// Delete removes every archived document of a case
func (ls *LocalStore) Delete(ctx context.Context, caseID string) error {
	if err := os.RemoveAll(filepath.Join(ls.dir, filepath.Base(caseID))); err != nil {
		return fmt.Errorf("failed to delete case documents: %w", err)
	}
	return nil
}
