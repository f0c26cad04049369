package document

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/fumiama/go-docx"
	"github.com/ledongthuc/pdf"
)

var (
	ErrUnsupportedKind = errors.New("unsupported document type")
	ErrEmptyDocument   = errors.New("document is empty")
)

// ExtractFunc turns raw document bytes into plain text.
type ExtractFunc func(data []byte) (string, error)

var extractors = map[Kind]ExtractFunc{
	KindPDF:  extractPDF,
	KindDOCX: extractDOCX,
	KindText: extractText,
}

// ExtractText returns the document's plain text or the reason it could not be read.
func ExtractText(doc *Document) (string, error) {
	if doc == nil || len(doc.Data) == 0 {
		return "", ErrEmptyDocument
	}

	fn, ok := extractors[doc.Kind()]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedKind, doc.Filename)
	}
	return fn(doc.Data)
}

// Extract never fails: an unreadable document yields an inline error marker so one
// bad attachment cannot abort a batch.
func Extract(doc *Document) string {
	text, err := ExtractText(doc)
	if err != nil {
		return fmt.Sprintf("Error reading %s: %v", kindLabel(doc), err)
	}
	return text
}

func kindLabel(doc *Document) string {
	if doc == nil {
		return "document"
	}
	switch doc.Kind() {
	case KindPDF:
		return "PDF"
	case KindDOCX:
		return "DOCX"
	case KindText:
		return "text"
	}
	return "document"
}

func extractPDF(data []byte) (text string, err error) {
	// the pdf reader panics on some malformed cross reference tables
	defer func() {
		if r := recover(); r != nil {
			text, err = "", fmt.Errorf("malformed pdf: %v", r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", err
	}
	plain, err := reader.GetPlainText()
	if err != nil {
		return "", err
	}
	b, err := io.ReadAll(plain)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func extractDOCX(data []byte) (string, error) {
	doc, err := docx.Parse(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	for _, item := range doc.Document.Body.Items {
		s, ok := item.(fmt.Stringer)
		if !ok {
			continue
		}
		line := s.String()
		if line == "" {
			continue
		}
		sb.WriteString(line)
		sb.WriteString("\n")
	}
	return sb.String(), nil
}

func extractText(data []byte) (string, error) {
	if !utf8.Valid(data) {
		return "", fmt.Errorf("text is not valid UTF-8")
	}
	return string(data), nil
}
