package vectorstore

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// manifestFile sits next to the persisted collection data.
const manifestFile = "manifest.json"

// Manifest records the signature an index was built with. An index is only
// reusable by a pipeline whose embedding model and chunking parameters match.
type Manifest struct {
	Provider     string    `json:"provider"`
	Model        string    `json:"model"`
	Dimension    int       `json:"dimension"`
	Metric       string    `json:"metric"`
	ChunkSize    int       `json:"chunk_size"`
	ChunkOverlap int       `json:"chunk_overlap"`
	Documents    int       `json:"documents"`
	Chunks       int       `json:"chunks"`
	BuiltAt      time.Time `json:"built_at"`
}

// CompatibleWith reports whether an index built under m can serve a pipeline
// wanting the given signature. Dimension is ignored when the wanted
// signature has not observed one yet (zero).
func (m Manifest) CompatibleWith(want Manifest) bool {
	if m.Provider != want.Provider || m.Model != want.Model {
		return false
	}
	if m.Metric != want.Metric {
		return false
	}
	if m.ChunkSize != want.ChunkSize || m.ChunkOverlap != want.ChunkOverlap {
		return false
	}
	if want.Dimension != 0 && m.Dimension != want.Dimension {
		return false
	}
	return true
}

// WriteManifest persists the manifest into the storage directory.
func WriteManifest(dir string, m Manifest) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding manifest: %w", err)
	}
	path := filepath.Join(dir, manifestFile)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing manifest: %w", err)
	}
	return nil
}

// RemoveManifest deletes the manifest from the storage directory. A missing
// manifest is not an error.
func RemoveManifest(dir string) error {
	if err := os.Remove(filepath.Join(dir, manifestFile)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing manifest: %w", err)
	}
	return nil
}

// ReadManifest loads the manifest from the storage directory. The error
// satisfies os.IsNotExist checks when no index has been built there.
func ReadManifest(dir string) (Manifest, error) {
	data, err := os.ReadFile(filepath.Join(dir, manifestFile))
	if err != nil {
		return Manifest{}, err
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return Manifest{}, fmt.Errorf("decoding manifest: %w", err)
	}
	return m, nil
}
