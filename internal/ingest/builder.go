package ingest

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/tmc/langchaingo/embeddings"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/ragify/internal/document"
	"github.com/fyrsmithlabs/ragify/internal/vectorstore"
)

// ErrNoDocuments indicates a build found nothing to index.
var ErrNoDocuments = errors.New("no documents to index")

// metric is the similarity metric the underlying store uses. Recorded in the
// manifest so a future store swap invalidates old indexes.
const metric = "cosine"

// BuilderConfig configures an index build.
type BuilderConfig struct {
	// DocsDir is scanned recursively for source documents.
	DocsDir string

	ChunkSize    int
	ChunkOverlap int

	// Signature identifies the embedding model the index is tied to.
	EmbeddingProvider string
	EmbeddingModel    string

	Store vectorstore.Config
}

// Builder drives normalize -> chunk -> embed -> persist, and knows when a
// previous build can be reused instead.
type Builder struct {
	config   BuilderConfig
	embedder embeddings.Embedder
	logger   *zap.Logger
}

// NewBuilder creates a Builder.
func NewBuilder(config BuilderConfig, embedder embeddings.Embedder, logger *zap.Logger) (*Builder, error) {
	if embedder == nil {
		return nil, errors.New("embedder is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if _, err := NewChunker(config.ChunkSize, config.ChunkOverlap); err != nil {
		return nil, err
	}
	return &Builder{config: config, embedder: embedder, logger: logger}, nil
}

// signature is the manifest this builder would stamp on a fresh index.
func (b *Builder) signature() vectorstore.Manifest {
	return vectorstore.Manifest{
		Provider:     b.config.EmbeddingProvider,
		Model:        b.config.EmbeddingModel,
		Metric:       metric,
		ChunkSize:    b.config.ChunkSize,
		ChunkOverlap: b.config.ChunkOverlap,
	}
}

// BuildOrLoad returns a ready vector store.
//
// When force is false and a compatible index already exists at the storage
// path, it is loaded as-is: no documents are read and nothing is
// re-embedded. Otherwise the corpus is rebuilt wholesale and the old index
// replaced. Per-document normalization failures are skipped inside the
// loader; an embedder failure aborts the build.
func (b *Builder) BuildOrLoad(ctx context.Context, force bool) (*vectorstore.Store, vectorstore.Manifest, error) {
	if !force {
		existing, err := vectorstore.ReadManifest(b.config.Store.Path)
		if err == nil && existing.CompatibleWith(b.signature()) {
			store, err := vectorstore.Open(b.config.Store, b.embedder, b.logger)
			if err != nil {
				return nil, vectorstore.Manifest{}, err
			}
			b.logger.Info("reusing existing index",
				zap.String("path", b.config.Store.Path),
				zap.Int("chunks", existing.Chunks),
				zap.Time("built_at", existing.BuiltAt),
			)
			return store, existing, nil
		}
		if err == nil {
			b.logger.Warn("existing index is incompatible, rebuilding",
				zap.String("have_model", existing.Provider+"/"+existing.Model),
				zap.String("want_model", b.config.EmbeddingProvider+"/"+b.config.EmbeddingModel),
			)
		}
	}

	store, err := vectorstore.Open(b.config.Store, b.embedder, b.logger)
	if err != nil {
		return nil, vectorstore.Manifest{}, err
	}

	// Drop the old manifest before touching the collection. A rebuild that
	// fails partway must read as an absent index on the next call, never as
	// the previous one.
	if err := vectorstore.RemoveManifest(b.config.Store.Path); err != nil {
		return nil, vectorstore.Manifest{}, err
	}

	if store.Count() > 0 {
		if err := store.Reset(ctx); err != nil {
			return nil, vectorstore.Manifest{}, err
		}
	}

	docs, err := document.NewLoader(b.logger).LoadDir(b.config.DocsDir)
	if err != nil {
		return nil, vectorstore.Manifest{}, err
	}
	if len(docs) == 0 {
		return nil, vectorstore.Manifest{}, fmt.Errorf("%w: %s", ErrNoDocuments, b.config.DocsDir)
	}

	chunker, err := NewChunker(b.config.ChunkSize, b.config.ChunkOverlap)
	if err != nil {
		return nil, vectorstore.Manifest{}, err
	}
	chunks, err := chunker.Split(docs)
	if err != nil {
		return nil, vectorstore.Manifest{}, err
	}
	if len(chunks) == 0 {
		return nil, vectorstore.Manifest{}, fmt.Errorf("%w: %s", ErrNoDocuments, b.config.DocsDir)
	}

	vdocs := make([]vectorstore.Document, len(chunks))
	for i, chunk := range chunks {
		meta := chunk.Metadata.Map()
		meta["ordinal"] = strconv.Itoa(chunk.Ordinal)
		vdocs[i] = vectorstore.Document{
			ID:       uuid.NewString(),
			Content:  chunk.Content,
			Metadata: meta,
		}
	}

	if err := store.Add(ctx, vdocs); err != nil {
		return nil, vectorstore.Manifest{}, fmt.Errorf("indexing chunks: %w", err)
	}

	manifest := b.signature()
	manifest.Dimension = store.Dimension()
	manifest.Documents = len(docs)
	manifest.Chunks = len(chunks)
	manifest.BuiltAt = time.Now().UTC()

	if err := vectorstore.WriteManifest(b.config.Store.Path, manifest); err != nil {
		return nil, vectorstore.Manifest{}, err
	}

	b.logger.Info("index built",
		zap.Int("documents", manifest.Documents),
		zap.Int("chunks", manifest.Chunks),
		zap.Int("dimension", manifest.Dimension),
		zap.String("path", b.config.Store.Path),
	)

	return store, manifest, nil
}
