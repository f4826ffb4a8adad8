package document

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"
)

// NormalizePDF converts a paginated PDF into a single Document. Per-page
// text is concatenated with a separating blank line and the page count is
// recorded in metadata.
func NormalizePDF(source string, r io.ReaderAt, size int64) (Document, error) {
	reader, err := pdf.NewReader(r, size)
	if err != nil {
		return Document{}, fmt.Errorf("opening pdf %s: %w", source, err)
	}

	numPages := reader.NumPage()
	pages := make([]string, 0, numPages)
	for i := 1; i <= numPages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			// A single unreadable page should not discard the rest.
			continue
		}
		if strings.TrimSpace(text) == "" {
			continue
		}
		pages = append(pages, strings.TrimSpace(text))
	}

	if len(pages) == 0 {
		return Document{}, fmt.Errorf("%w: %s", ErrEmptyDocument, source)
	}

	return Document{
		Content: strings.Join(pages, "\n\n"),
		Metadata: Metadata{
			Source:   source,
			Title:    titleFromName(filepath.Base(source)),
			FileType: "pdf",
			Pages:    numPages,
		},
	}, nil
}
