package document

import (
	"fmt"
	"path/filepath"
	"strings"
)

// NormalizeText converts a flat text file (txt, markdown) into a Document.
// The title is derived from the file name.
func NormalizeText(source, content string) (Document, error) {
	if strings.TrimSpace(content) == "" {
		return Document{}, fmt.Errorf("%w: %s", ErrEmptyDocument, source)
	}

	return Document{
		Content: content,
		Metadata: Metadata{
			Source:   source,
			Title:    titleFromName(filepath.Base(source)),
			FileType: "text",
		},
	}, nil
}
