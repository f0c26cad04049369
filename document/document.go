package document

import (
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Kind selects the extractor for a document.
type Kind string

const (
	KindPDF     Kind = "pdf"
	KindDOCX    Kind = "docx"
	KindText    Kind = "text"
	KindUnknown Kind = "unknown"
)

// Document is an uploaded attachment. Data holds the raw bytes as received.
type Document struct {
	id        string
	Filename  string
	MimeType  string
	Data      []byte
	CreatedAt time.Time
}

// ID is fixed when the document is created. Documents built as literals derive
// it from the filename on each call.
func (d *Document) ID() string {
	if d.id != "" {
		return d.id
	}
	return documentID(d.Filename)
}

func documentID(filename string) string {
	return fmt.Sprintf("doc_%s", filepath.Base(filename))
}

func (d *Document) Size() int64 {
	return int64(len(d.Data))
}

// Kind derives the document kind from the MIME type, falling back to the file extension.
func (d *Document) Kind() Kind {
	mimeType := d.MimeType
	if i := strings.Index(mimeType, ";"); i >= 0 {
		mimeType = mimeType[:i]
	}
	switch {
	case mimeType == "application/pdf":
		return KindPDF
	case mimeType == "application/vnd.openxmlformats-officedocument.wordprocessingml.document":
		return KindDOCX
	case strings.HasPrefix(mimeType, "text/"):
		return KindText
	}

	switch strings.ToLower(filepath.Ext(d.Filename)) {
	case ".pdf":
		return KindPDF
	case ".docx":
		return KindDOCX
	case ".txt", ".md", ".markdown", ".csv":
		return KindText
	}
	return KindUnknown
}

// NewDocument wraps uploaded bytes. The MIME type is guessed from the filename.
func NewDocument(filename string, data []byte) *Document {
	return &Document{
		id:        documentID(filename),
		Filename:  filename,
		MimeType:  mime.TypeByExtension(filepath.Ext(filename)),
		Data:      data,
		CreatedAt: time.Now(),
	}
}

// Load reads a document from disk.
func Load(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read document %s: %w", path, err)
	}
	return NewDocument(filepath.Base(path), data), nil
}
