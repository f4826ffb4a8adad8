package document

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
)

// Loader walks a directory tree and normalizes every supported document.
type Loader struct {
	logger *zap.Logger
}

// NewLoader creates a Loader. A nil logger defaults to a no-op logger.
func NewLoader(logger *zap.Logger) *Loader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Loader{logger: logger}
}

// LoadDir recursively loads all supported documents (.json, .txt, .md, .pdf)
// under dir. A malformed individual document is logged and skipped; it never
// aborts the rest of the corpus.
func (l *Loader) LoadDir(dir string) ([]Document, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("reading docs dir: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("docs path %s is not a directory", dir)
	}

	var docs []Document
	walkErr := filepath.WalkDir(dir, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			l.logger.Warn("skipping unreadable path", zap.String("path", path), zap.Error(err))
			return nil
		}
		if entry.IsDir() {
			return nil
		}

		doc, ok, err := l.loadFile(path)
		if err != nil {
			l.logger.Warn("skipping malformed document", zap.String("path", path), zap.Error(err))
			return nil
		}
		if ok {
			docs = append(docs, doc)
		}
		return nil
	})
	if walkErr != nil {
		return nil, fmt.Errorf("walking docs dir: %w", walkErr)
	}

	l.logger.Info("loaded documents", zap.String("dir", dir), zap.Int("count", len(docs)))
	return docs, nil
}

// loadFile normalizes a single file. ok is false for unsupported extensions.
func (l *Loader) loadFile(path string) (Document, bool, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		data, err := os.ReadFile(path)
		if err != nil {
			return Document{}, false, err
		}
		doc, err := NormalizeJSON(path, data)
		return doc, err == nil, err
	case ".txt", ".md":
		data, err := os.ReadFile(path)
		if err != nil {
			return Document{}, false, err
		}
		doc, err := NormalizeText(path, string(data))
		return doc, err == nil, err
	case ".pdf":
		f, err := os.Open(path)
		if err != nil {
			return Document{}, false, err
		}
		defer f.Close()
		info, err := f.Stat()
		if err != nil {
			return Document{}, false, err
		}
		doc, err := NormalizePDF(path, f, info.Size())
		return doc, err == nil, err
	default:
		return Document{}, false, nil
	}
}
