package ingest_test

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/ragify/internal/ingest"
	"github.com/fyrsmithlabs/ragify/internal/vectorstore"
)

// countingEmbedder is a deterministic embedder that counts document
// embedding calls, so tests can prove when re-embedding happened.
type countingEmbedder struct {
	dim           int
	documentCalls int
	textsEmbedded int
}

func (e *countingEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	e.documentCalls++
	e.textsEmbedded += len(texts)
	out := make([][]float32, len(texts))
	for i, text := range texts {
		out[i] = e.embed(text)
	}
	return out, nil
}

func (e *countingEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	return e.embed(text), nil
}

func (e *countingEmbedder) embed(text string) []float32 {
	vec := make([]float32, e.dim)
	hash := 0
	for _, c := range text {
		hash = (hash*131 + int(c)) % 10007
	}
	var sumSq float64
	for i := range vec {
		vec[i] = float32((hash+i*13)%101) / 101.0
		sumSq += float64(vec[i]) * float64(vec[i])
	}
	norm := float32(1.0 / math.Sqrt(sumSq))
	for i := range vec {
		vec[i] *= norm
	}
	return vec
}

func writeDocs(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	files := map[string]string{
		"product.json": `{"title": "T", "description": "D", "requirements": [{"title": "R1", "content": "C1"}]}`,
		"faq.txt":      "Shipping takes three to five business days.",
	}
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o600))
	}
	return dir
}

func newBuilder(t *testing.T, docsDir, storageDir string, embedder *countingEmbedder) *ingest.Builder {
	t.Helper()
	builder, err := ingest.NewBuilder(ingest.BuilderConfig{
		DocsDir:           docsDir,
		ChunkSize:         1000,
		ChunkOverlap:      200,
		EmbeddingProvider: "openai",
		EmbeddingModel:    "text-embedding-3-large",
		Store: vectorstore.Config{
			Path:       storageDir,
			Collection: "build_test",
		},
	}, embedder, zap.NewNop())
	require.NoError(t, err)
	return builder
}

func TestBuildOrLoadBuildsAndPersists(t *testing.T) {
	docsDir := writeDocs(t)
	storageDir := t.TempDir()
	embedder := &countingEmbedder{dim: 24}
	ctx := context.Background()

	store, manifest, err := newBuilder(t, docsDir, storageDir, embedder).BuildOrLoad(ctx, false)
	require.NoError(t, err)

	assert.Equal(t, 2, manifest.Documents)
	assert.GreaterOrEqual(t, manifest.Chunks, 2)
	assert.Equal(t, 24, manifest.Dimension)
	assert.Equal(t, "cosine", manifest.Metric)
	assert.Equal(t, store.Count(), manifest.Chunks)
	assert.Equal(t, 1, embedder.documentCalls)

	// The manifest is durable.
	onDisk, err := vectorstore.ReadManifest(storageDir)
	require.NoError(t, err)
	assert.Equal(t, manifest.Chunks, onDisk.Chunks)
}

func TestBuildOrLoadIsIdempotent(t *testing.T) {
	docsDir := writeDocs(t)
	storageDir := t.TempDir()
	embedder := &countingEmbedder{dim: 24}
	ctx := context.Background()

	store, _, err := newBuilder(t, docsDir, storageDir, embedder).BuildOrLoad(ctx, false)
	require.NoError(t, err)

	first, err := store.Search(ctx, "C1", 2)
	require.NoError(t, err)
	require.NotEmpty(t, first)

	embedsAfterBuild := embedder.textsEmbedded

	// Second call reuses the index: no document re-embedding.
	store2, _, err := newBuilder(t, docsDir, storageDir, embedder).BuildOrLoad(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, embedsAfterBuild, embedder.textsEmbedded)

	// Retrieval results are identical across the reuse.
	second, err := store2.Search(ctx, "C1", 2)
	require.NoError(t, err)
	require.Len(t, second, len(first))
	for i := range first {
		assert.Equal(t, first[i].Content, second[i].Content)
		assert.Equal(t, first[i].Score, second[i].Score)
	}
}

func TestBuildOrLoadForceRebuilds(t *testing.T) {
	docsDir := writeDocs(t)
	storageDir := t.TempDir()
	embedder := &countingEmbedder{dim: 24}
	ctx := context.Background()

	_, _, err := newBuilder(t, docsDir, storageDir, embedder).BuildOrLoad(ctx, false)
	require.NoError(t, err)
	require.Equal(t, 1, embedder.documentCalls)

	_, _, err = newBuilder(t, docsDir, storageDir, embedder).BuildOrLoad(ctx, true)
	require.NoError(t, err)
	assert.Equal(t, 2, embedder.documentCalls)
}

func TestBuildOrLoadRebuildsIncompatibleIndex(t *testing.T) {
	docsDir := writeDocs(t)
	storageDir := t.TempDir()
	embedder := &countingEmbedder{dim: 24}
	ctx := context.Background()

	_, _, err := newBuilder(t, docsDir, storageDir, embedder).BuildOrLoad(ctx, false)
	require.NoError(t, err)

	// Same location, different embedding model: the old index cannot serve.
	other, err := ingest.NewBuilder(ingest.BuilderConfig{
		DocsDir:           docsDir,
		ChunkSize:         1000,
		ChunkOverlap:      200,
		EmbeddingProvider: "openai",
		EmbeddingModel:    "text-embedding-3-small",
		Store: vectorstore.Config{
			Path:       storageDir,
			Collection: "build_test",
		},
	}, embedder, zap.NewNop())
	require.NoError(t, err)

	_, manifest, err := other.BuildOrLoad(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, "text-embedding-3-small", manifest.Model)
	assert.Equal(t, 2, embedder.documentCalls)
}

// brokenEmbedder simulates an unreachable embedding backend.
type brokenEmbedder struct{}

func (brokenEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	return nil, errors.New("embedding backend unreachable")
}

func (brokenEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	return nil, errors.New("embedding backend unreachable")
}

func TestBuildOrLoadFailedRebuildLeavesNoStaleManifest(t *testing.T) {
	docsDir := writeDocs(t)
	storageDir := t.TempDir()
	embedder := &countingEmbedder{dim: 24}
	ctx := context.Background()

	_, _, err := newBuilder(t, docsDir, storageDir, embedder).BuildOrLoad(ctx, false)
	require.NoError(t, err)

	// A forced rebuild with a dead backend fails after the collection is
	// cleared. The old manifest must not survive to vouch for the
	// now-empty index.
	broken, err := ingest.NewBuilder(ingest.BuilderConfig{
		DocsDir:           docsDir,
		ChunkSize:         1000,
		ChunkOverlap:      200,
		EmbeddingProvider: "openai",
		EmbeddingModel:    "text-embedding-3-large",
		Store: vectorstore.Config{
			Path:       storageDir,
			Collection: "build_test",
		},
	}, brokenEmbedder{}, zap.NewNop())
	require.NoError(t, err)

	_, _, err = broken.BuildOrLoad(ctx, true)
	require.Error(t, err)

	_, readErr := vectorstore.ReadManifest(storageDir)
	require.Error(t, readErr, "failed rebuild must not leave a manifest behind")

	// The next non-forced call sees no usable index and rebuilds it in
	// full instead of serving the emptied collection.
	store, manifest, err := newBuilder(t, docsDir, storageDir, embedder).BuildOrLoad(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, 2, embedder.documentCalls)
	assert.Greater(t, store.Count(), 0)
	assert.Equal(t, store.Count(), manifest.Chunks)
}

func TestBuildOrLoadEmptyCorpus(t *testing.T) {
	embedder := &countingEmbedder{dim: 24}
	builder := newBuilder(t, t.TempDir(), t.TempDir(), embedder)

	_, _, err := builder.BuildOrLoad(context.Background(), false)
	require.ErrorIs(t, err, ingest.ErrNoDocuments)
}

func TestBuildEndToEndScenario(t *testing.T) {
	// One structured record; its flattened chunk must be retrievable by a
	// question matching the requirement content, with the record's title.
	docsDir := t.TempDir()
	record := `{"title": "T", "description": "D", "requirements": [{"title": "R1", "content": "C1"}]}`
	require.NoError(t, os.WriteFile(filepath.Join(docsDir, "record.json"), []byte(record), 0o600))

	embedder := &countingEmbedder{dim: 24}
	store, _, err := newBuilder(t, docsDir, t.TempDir(), embedder).BuildOrLoad(context.Background(), false)
	require.NoError(t, err)

	results, err := store.Search(context.Background(), "C1", 1)
	require.NoError(t, err)
	require.Len(t, results, 1)

	assert.Contains(t, results[0].Content, "Title: T")
	assert.Contains(t, results[0].Content, "Description: D")
	assert.Contains(t, results[0].Content, "R1: C1")
	assert.Equal(t, "T", results[0].Metadata["title"])
}
