package pipeline

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/ragify/internal/config"
	"github.com/fyrsmithlabs/ragify/internal/ingest"
	"github.com/fyrsmithlabs/ragify/internal/provider"
	"github.com/fyrsmithlabs/ragify/internal/retrieval"
	"github.com/fyrsmithlabs/ragify/internal/rewrite"
	"github.com/fyrsmithlabs/ragify/internal/vectorstore"
)

// Factory builds complete pipelines from configuration. It is the BuildFunc
// behind the service's cache.
type Factory struct {
	cfg      *config.Config
	registry *provider.Registry
	logger   *zap.Logger
}

// NewFactory creates a Factory.
func NewFactory(cfg *config.Config, registry *provider.Registry, logger *zap.Logger) *Factory {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Factory{cfg: cfg, registry: registry, logger: logger}
}

// Registry exposes the provider registry, which also serves as the cache's
// key Defaulter.
func (f *Factory) Registry() *provider.Registry {
	return f.registry
}

// DefaultKey is the key for the configured model selection.
func (f *Factory) DefaultKey() Key {
	return Key{
		LLMProvider:       f.cfg.Models.LLMProvider,
		LLMModel:          f.cfg.Models.LLMModel,
		EmbeddingProvider: f.cfg.Models.EmbeddingProvider,
		EmbeddingModel:    f.cfg.Models.EmbeddingModel,
	}
}

// Build assembles a pipeline for key: embedding client, index (built or
// loaded), retriever, generator, and rewriter.
func (f *Factory) Build(ctx context.Context, key Key) (*Pipeline, error) {
	embedder, err := f.registry.Embedder(ctx, key.EmbeddingProvider, key.EmbeddingModel)
	if err != nil {
		return nil, fmt.Errorf("embedding provider: %w", err)
	}

	builder, err := ingest.NewBuilder(ingest.BuilderConfig{
		DocsDir:           f.cfg.Documents.DocsDir,
		ChunkSize:         f.cfg.Documents.ChunkSize,
		ChunkOverlap:      f.cfg.Documents.ChunkOverlap,
		EmbeddingProvider: provider.Normalize(key.EmbeddingProvider),
		EmbeddingModel:    key.EmbeddingModel,
		Store: vectorstore.Config{
			Path:       f.cfg.Storage.Path,
			Collection: f.cfg.Storage.Collection,
			Compress:   f.cfg.Storage.Compress,
		},
	}, embedder, f.logger)
	if err != nil {
		return nil, err
	}

	store, _, err := builder.BuildOrLoad(ctx, false)
	if err != nil {
		return nil, fmt.Errorf("index: %w", err)
	}

	retriever, err := retrieval.New(store, retrieval.Config{
		SearchType: f.cfg.Retrieval.SearchType,
		TopK:       f.cfg.Retrieval.TopK,
		FetchK:     f.cfg.Retrieval.FetchK,
		Diversity:  f.cfg.Retrieval.Diversity,
	}, f.logger)
	if err != nil {
		return nil, err
	}

	generator, err := f.registry.Generator(ctx, key.LLMProvider, key.LLMModel, f.cfg.Models.Temperature)
	if err != nil {
		return nil, fmt.Errorf("llm provider: %w", err)
	}

	rewriter := rewrite.New(generator, f.cfg.Prompts.RewriteTemplate, f.logger)

	f.logger.Info("pipeline assembled",
		zap.String("llm", provider.Normalize(key.LLMProvider)+"/"+key.LLMModel),
		zap.String("embedding", provider.Normalize(key.EmbeddingProvider)+"/"+key.EmbeddingModel),
	)

	return New(retriever, generator, rewriter, Options{
		AnswerTemplate: f.cfg.Prompts.AnswerTemplate,
		HistoryLength:  f.cfg.Chat.HistoryLength,
		Timeout:        f.cfg.Models.RequestTimeout,
	}, f.logger)
}
