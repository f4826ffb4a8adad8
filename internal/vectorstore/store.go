// Package vectorstore provides the persistent vector index backing retrieval.
//
// The index is built on chromem-go, an embeddable pure-Go vector database
// with gob persistence and exact cosine-similarity search. An index is tied
// to exactly one embedding model; the manifest records that signature so a
// later open can tell a compatible index from a stale one.
package vectorstore

import (
	"context"
	"errors"
	"fmt"
	"os"

	chromem "github.com/philippgille/chromem-go"
	"github.com/tmc/langchaingo/embeddings"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("ragify.vectorstore")

var (
	// ErrInvalidConfig indicates invalid store configuration.
	ErrInvalidConfig = errors.New("invalid vector store configuration")

	// ErrEmptyDocuments indicates an Add call with nothing to add.
	ErrEmptyDocuments = errors.New("empty or nil documents")

	// ErrEmbeddingFailed indicates the embedder rejected the batch.
	ErrEmbeddingFailed = errors.New("embedding failed")
)

// Config holds configuration for the persistent store.
type Config struct {
	// Path is the directory for persistent storage.
	Path string

	// Collection is the collection name holding the corpus.
	Collection string

	// Compress enables gzip compression for stored data.
	Compress bool
}

// Validate validates the configuration.
func (c Config) Validate() error {
	if c.Path == "" {
		return fmt.Errorf("%w: path required", ErrInvalidConfig)
	}
	if c.Collection == "" {
		return fmt.Errorf("%w: collection required", ErrInvalidConfig)
	}
	return nil
}

// Document is a chunk of text to index, with string metadata.
type Document struct {
	ID       string
	Content  string
	Metadata map[string]string
}

// Result is a single search hit. Embedding is populated only by
// SearchWithVectors.
type Result struct {
	ID        string
	Content   string
	Score     float32
	Metadata  map[string]string
	Embedding []float32
}

// Store is a persistent vector index over one collection.
// It is safe for concurrent readers once built.
type Store struct {
	db         *chromem.DB
	collection *chromem.Collection
	embedder   embeddings.Embedder
	config     Config
	logger     *zap.Logger
	dimension  int
}

// Open opens (or creates) the persistent store at config.Path.
func Open(config Config, embedder embeddings.Embedder, logger *zap.Logger) (*Store, error) {
	if embedder == nil {
		return nil, fmt.Errorf("%w: embedder is required", ErrInvalidConfig)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	if err := os.MkdirAll(config.Path, 0o755); err != nil {
		return nil, fmt.Errorf("creating storage directory %s: %w", config.Path, err)
	}

	db, err := chromem.NewPersistentDB(config.Path, config.Compress)
	if err != nil {
		return nil, fmt.Errorf("opening chromem DB: %w", err)
	}

	s := &Store{
		db:       db,
		embedder: embedder,
		config:   config,
		logger:   logger,
	}

	s.collection, err = db.GetOrCreateCollection(config.Collection, nil, s.embeddingFunc())
	if err != nil {
		return nil, fmt.Errorf("opening collection %s: %w", config.Collection, err)
	}

	logger.Info("vector store opened",
		zap.String("path", config.Path),
		zap.String("collection", config.Collection),
		zap.Int("documents", s.collection.Count()),
	)

	return s, nil
}

// embeddingFunc adapts the langchaingo embedder to chromem's callback.
func (s *Store) embeddingFunc() chromem.EmbeddingFunc {
	return func(ctx context.Context, text string) ([]float32, error) {
		return s.embedder.EmbedQuery(ctx, text)
	}
}

// Add embeds and stores the given documents.
func (s *Store) Add(ctx context.Context, docs []Document) error {
	ctx, span := tracer.Start(ctx, "Store.Add")
	defer span.End()
	span.SetAttributes(attribute.Int("document_count", len(docs)))

	if len(docs) == 0 {
		return ErrEmptyDocuments
	}

	texts := make([]string, len(docs))
	for i, doc := range docs {
		texts[i] = doc.Content
	}

	vectors, err := s.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("%w: %v", ErrEmbeddingFailed, err)
	}
	if len(vectors) != len(docs) {
		return fmt.Errorf("%w: got %d vectors for %d documents", ErrEmbeddingFailed, len(vectors), len(docs))
	}
	s.dimension = len(vectors[0])

	chromemDocs := make([]chromem.Document, len(docs))
	for i, doc := range docs {
		chromemDocs[i] = chromem.Document{
			ID:        doc.ID,
			Content:   doc.Content,
			Metadata:  doc.Metadata,
			Embedding: vectors[i],
		}
	}

	// Concurrency 1: embeddings are already computed above.
	if err := s.collection.AddDocuments(ctx, chromemDocs, 1); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("adding documents: %w", err)
	}

	span.SetStatus(codes.Ok, "")
	s.logger.Debug("added documents",
		zap.String("collection", s.config.Collection),
		zap.Int("count", len(docs)),
	)
	return nil
}

// Search returns up to k results for the query, ordered by descending
// similarity.
func (s *Store) Search(ctx context.Context, query string, k int) ([]Result, error) {
	ctx, span := tracer.Start(ctx, "Store.Search")
	defer span.End()
	span.SetAttributes(attribute.Int("k", k))

	if query == "" {
		return nil, errors.New("query cannot be empty")
	}
	if k <= 0 {
		return nil, fmt.Errorf("k must be positive, got %d", k)
	}

	// chromem requires nResults <= document count.
	count := s.collection.Count()
	if count == 0 {
		return []Result{}, nil
	}
	if k > count {
		k = count
	}

	hits, err := s.collection.Query(ctx, query, k, nil, nil)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("querying collection: %w", err)
	}

	results := make([]Result, len(hits))
	for i, h := range hits {
		results[i] = Result{
			ID:       h.ID,
			Content:  h.Content,
			Score:    h.Similarity,
			Metadata: h.Metadata,
		}
	}

	span.SetAttributes(attribute.Int("results", len(results)))
	span.SetStatus(codes.Ok, "")
	return results, nil
}

// SearchWithVectors returns up to k results including document embeddings,
// along with the query embedding. Used by diversity-aware selection.
func (s *Store) SearchWithVectors(ctx context.Context, query string, k int) ([]Result, []float32, error) {
	ctx, span := tracer.Start(ctx, "Store.SearchWithVectors")
	defer span.End()
	span.SetAttributes(attribute.Int("k", k))

	if query == "" {
		return nil, nil, errors.New("query cannot be empty")
	}
	if k <= 0 {
		return nil, nil, fmt.Errorf("k must be positive, got %d", k)
	}

	queryVec, err := s.embedder.EmbedQuery(ctx, query)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, nil, fmt.Errorf("%w: %v", ErrEmbeddingFailed, err)
	}

	count := s.collection.Count()
	if count == 0 {
		return []Result{}, queryVec, nil
	}
	if k > count {
		k = count
	}

	hits, err := s.collection.QueryEmbedding(ctx, queryVec, k, nil, nil)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, nil, fmt.Errorf("querying collection: %w", err)
	}

	results := make([]Result, len(hits))
	for i, h := range hits {
		results[i] = Result{
			ID:        h.ID,
			Content:   h.Content,
			Score:     h.Similarity,
			Metadata:  h.Metadata,
			Embedding: h.Embedding,
		}
	}

	span.SetAttributes(attribute.Int("results", len(results)))
	span.SetStatus(codes.Ok, "")
	return results, queryVec, nil
}

// Count returns the number of indexed documents.
func (s *Store) Count() int {
	return s.collection.Count()
}

// Dimension returns the embedding dimensionality observed by the last Add,
// or zero if nothing has been added through this handle.
func (s *Store) Dimension() int {
	return s.dimension
}

// Reset drops and recreates the collection, discarding all indexed
// documents. Used for forced rebuilds.
func (s *Store) Reset(ctx context.Context) error {
	_, span := tracer.Start(ctx, "Store.Reset")
	defer span.End()

	if err := s.db.DeleteCollection(s.config.Collection); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("deleting collection %s: %w", s.config.Collection, err)
	}

	collection, err := s.db.GetOrCreateCollection(s.config.Collection, nil, s.embeddingFunc())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("recreating collection %s: %w", s.config.Collection, err)
	}
	s.collection = collection
	s.dimension = 0

	span.SetStatus(codes.Ok, "")
	s.logger.Info("vector store reset", zap.String("collection", s.config.Collection))
	return nil
}
