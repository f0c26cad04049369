package document

import "strings"

// BuildContext concatenates the extracted text of every document, each section
// headed by its source filename. Error markers are kept inline.
func BuildContext(docs []*Document) string {
	var sb strings.Builder
	for _, doc := range docs {
		if doc == nil {
			continue
		}
		sb.WriteString("\n--- FILENAME: ")
		sb.WriteString(doc.Filename)
		sb.WriteString(" ---\n")
		sb.WriteString(Extract(doc))
	}
	return sb.String()
}
