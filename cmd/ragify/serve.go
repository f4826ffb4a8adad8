package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/ragify/internal/config"
	"github.com/fyrsmithlabs/ragify/internal/httpapi"
	"github.com/fyrsmithlabs/ragify/internal/logging"
	"github.com/fyrsmithlabs/ragify/internal/pipeline"
	"github.com/fyrsmithlabs/ragify/internal/provider"
	"github.com/fyrsmithlabs/ragify/internal/telemetry"
)

var serveFlags struct {
	port              int
	llmProvider       string
	llmModel          string
	embeddingProvider string
	embeddingModel    string
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the question answering server",
	Long: `Start the HTTP server. The index is built (or loaded) lazily on the first
request that needs it.

Examples:
  # Serve with config.yaml
  ragify serve --config config.yaml

  # Override models from the command line
  ragify serve --llm-provider ollama --llm-model llama3`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().IntVar(&serveFlags.port, "port", 0, "listen port (overrides config)")
	serveCmd.Flags().StringVar(&serveFlags.llmProvider, "llm-provider", "", "generation provider: openai, vertexai, ollama")
	serveCmd.Flags().StringVar(&serveFlags.llmModel, "llm-model", "", "generation model")
	serveCmd.Flags().StringVar(&serveFlags.embeddingProvider, "embedding-provider", "", "embedding provider: openai, vertexai, ollama")
	serveCmd.Flags().StringVar(&serveFlags.embeddingModel, "embedding-model", "", "embedding model")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if serveFlags.port != 0 {
		cfg.Server.Port = serveFlags.port
	}
	if serveFlags.llmProvider != "" {
		cfg.Models.LLMProvider = serveFlags.llmProvider
	}
	if serveFlags.llmModel != "" {
		cfg.Models.LLMModel = serveFlags.llmModel
	}
	if serveFlags.embeddingProvider != "" {
		cfg.Models.EmbeddingProvider = serveFlags.embeddingProvider
	}
	if serveFlags.embeddingModel != "" {
		cfg.Models.EmbeddingModel = serveFlags.embeddingModel
	}

	logger, err := logging.New(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tel, err := telemetry.New(ctx, cfg.Telemetry)
	if err != nil {
		return fmt.Errorf("initializing telemetry: %w", err)
	}
	defer func() {
		if err := tel.Shutdown(context.Background()); err != nil {
			logger.Warn("telemetry shutdown", zap.Error(err))
		}
	}()

	registry := provider.NewRegistry(cfg.Models, logger)
	factory := pipeline.NewFactory(cfg, registry, logger)
	cache := pipeline.NewCache(registry, factory.Build)

	srv, err := httpapi.NewServer(cfg, registry, cache, factory.DefaultKey(), logger)
	if err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutdown signal received")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
