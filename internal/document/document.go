// Package document normalizes heterogeneous source documents into uniform
// text units for chunking and indexing.
package document

import (
	"strings"
	"unicode"
)

// Metadata describes the provenance of a normalized document.
type Metadata struct {
	// Source uniquely identifies where the document came from.
	Source   string
	Title    string
	URL      string
	FileType string
	// Pages is the page count for paginated documents, zero otherwise.
	Pages int
}

// Document is a normalized unit of text with provenance metadata.
// Documents are immutable once created.
type Document struct {
	Content  string
	Metadata Metadata
}

// Map flattens metadata into a string map for storage alongside vectors.
func (m Metadata) Map() map[string]string {
	out := map[string]string{
		"source":    m.Source,
		"file_type": m.FileType,
	}
	if m.Title != "" {
		out["title"] = m.Title
	}
	if m.URL != "" {
		out["url"] = m.URL
	}
	return out
}

// titleFromName derives a display title from a file name: the extension is
// dropped and separators become spaces, with each word title-cased.
func titleFromName(name string) string {
	if i := strings.LastIndex(name, "."); i > 0 {
		name = name[:i]
	}
	name = strings.NewReplacer("_", " ", "-", " ").Replace(name)
	return titleCase(name)
}

// titleCase upper-cases the first letter of every word.
func titleCase(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	prevSpace := true
	for _, r := range s {
		if prevSpace {
			b.WriteRune(unicode.ToUpper(r))
		} else {
			b.WriteRune(r)
		}
		prevSpace = unicode.IsSpace(r)
	}
	return b.String()
}
