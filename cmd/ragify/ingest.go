package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/ragify/internal/config"
	"github.com/fyrsmithlabs/ragify/internal/ingest"
	"github.com/fyrsmithlabs/ragify/internal/logging"
	"github.com/fyrsmithlabs/ragify/internal/provider"
	"github.com/fyrsmithlabs/ragify/internal/vectorstore"
)

var ingestFlags struct {
	force    bool
	provider string
	model    string
	docs     string
	output   string
}

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Build the vector index from the document directory",
	Long: `Build the vector index. An existing index built with the same embedding
model and chunking settings is left untouched unless --force is given.

Examples:
  # Build or reuse the index
  ragify ingest --config config.yaml

  # Rebuild from scratch with a specific model
  ragify ingest --force --provider openai --model text-embedding-3-small`,
	RunE: runIngest,
}

func init() {
	ingestCmd.Flags().BoolVar(&ingestFlags.force, "force", false, "rebuild even if a compatible index exists")
	ingestCmd.Flags().StringVar(&ingestFlags.provider, "provider", "", "embedding provider (overrides config)")
	ingestCmd.Flags().StringVar(&ingestFlags.model, "model", "", "embedding model (overrides config)")
	ingestCmd.Flags().StringVar(&ingestFlags.docs, "docs", "", "document directory (overrides config)")
	ingestCmd.Flags().StringVar(&ingestFlags.output, "output", "", "index storage directory (overrides config)")
}

func runIngest(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if ingestFlags.provider != "" {
		cfg.Models.EmbeddingProvider = ingestFlags.provider
	}
	if ingestFlags.model != "" {
		cfg.Models.EmbeddingModel = ingestFlags.model
	}
	if ingestFlags.docs != "" {
		cfg.Documents.DocsDir = ingestFlags.docs
	}
	if ingestFlags.output != "" {
		cfg.Storage.Path = ingestFlags.output
	}

	logger, err := logging.New(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	registry := provider.NewRegistry(cfg.Models, logger)
	embeddingProvider := provider.Normalize(cfg.Models.EmbeddingProvider)
	embeddingModel := cfg.Models.EmbeddingModel
	if embeddingModel == "" {
		embeddingModel = registry.DefaultEmbeddingModel(embeddingProvider)
	}

	embedder, err := registry.Embedder(ctx, embeddingProvider, embeddingModel)
	if err != nil {
		return err
	}

	builder, err := ingest.NewBuilder(ingest.BuilderConfig{
		DocsDir:           cfg.Documents.DocsDir,
		ChunkSize:         cfg.Documents.ChunkSize,
		ChunkOverlap:      cfg.Documents.ChunkOverlap,
		EmbeddingProvider: embeddingProvider,
		EmbeddingModel:    embeddingModel,
		Store: vectorstore.Config{
			Path:       cfg.Storage.Path,
			Collection: cfg.Storage.Collection,
			Compress:   cfg.Storage.Compress,
		},
	}, embedder, logger)
	if err != nil {
		return err
	}

	_, manifest, err := builder.BuildOrLoad(ctx, ingestFlags.force)
	if err != nil {
		return err
	}

	fmt.Printf("Index ready at %s\n", cfg.Storage.Path)
	fmt.Printf("  Embedding:  %s/%s (%d dimensions)\n", manifest.Provider, manifest.Model, manifest.Dimension)
	fmt.Printf("  Documents:  %d\n", manifest.Documents)
	fmt.Printf("  Chunks:     %d\n", manifest.Chunks)
	fmt.Printf("  Built at:   %s\n", manifest.BuiltAt.Format("2006-01-02 15:04:05 MST"))
	return nil
}
