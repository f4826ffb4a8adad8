// Package provider constructs language model and embedding clients for the
// closed set of supported backends.
package provider

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/googleai"
	"github.com/tmc/langchaingo/llms/googleai/vertex"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/ragify/internal/config"
)

// Supported provider names.
const (
	OpenAI   = "openai"
	VertexAI = "vertexai"
	Ollama   = "ollama"
)

var (
	// ErrUnsupportedProvider indicates a provider name outside the supported set.
	ErrUnsupportedProvider = errors.New("unsupported provider")
	// ErrMissingCredentials indicates a provider selected without the
	// credentials it requires.
	ErrMissingCredentials = errors.New("missing provider credentials")
)

// Built-in model defaults, used when neither the call nor the configuration
// names a model.
var defaultLLMModels = map[string]string{
	OpenAI:   "gpt-4o-mini",
	VertexAI: "gemini-pro",
	Ollama:   "llama3",
}

var defaultEmbeddingModels = map[string]string{
	OpenAI:   "text-embedding-3-large",
	VertexAI: "textembedding-gecko@latest",
	Ollama:   "nomic-embed-text",
}

// Generator produces a completion for a single prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Info describes one supported provider for discovery endpoints.
type Info struct {
	Name                  string `json:"name"`
	DefaultLLMModel       string `json:"default_llm_model"`
	DefaultEmbeddingModel string `json:"default_embedding_model"`
	Configured            bool   `json:"configured"`
}

// Registry builds provider clients from configuration. It holds no client
// state itself; callers cache the pipelines they assemble from it.
type Registry struct {
	cfg    config.ModelsConfig
	logger *zap.Logger
}

// NewRegistry creates a Registry.
func NewRegistry(cfg config.ModelsConfig, logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{cfg: cfg, logger: logger}
}

// Normalize lowercases and trims a provider name.
func Normalize(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// DefaultLLMModel resolves the generation model for a provider: configured
// per-provider model first, then the built-in default.
func (r *Registry) DefaultLLMModel(name string) string {
	switch Normalize(name) {
	case OpenAI:
		if r.cfg.OpenAI.LLMModel != "" {
			return r.cfg.OpenAI.LLMModel
		}
	case VertexAI:
		if r.cfg.VertexAI.LLMModel != "" {
			return r.cfg.VertexAI.LLMModel
		}
	case Ollama:
		if r.cfg.Ollama.LLMModel != "" {
			return r.cfg.Ollama.LLMModel
		}
	}
	return defaultLLMModels[Normalize(name)]
}

// DefaultEmbeddingModel resolves the embedding model for a provider.
func (r *Registry) DefaultEmbeddingModel(name string) string {
	switch Normalize(name) {
	case OpenAI:
		if r.cfg.OpenAI.EmbeddingModel != "" {
			return r.cfg.OpenAI.EmbeddingModel
		}
	case VertexAI:
		if r.cfg.VertexAI.EmbeddingModel != "" {
			return r.cfg.VertexAI.EmbeddingModel
		}
	case Ollama:
		if r.cfg.Ollama.EmbeddingModel != "" {
			return r.cfg.Ollama.EmbeddingModel
		}
	}
	return defaultEmbeddingModels[Normalize(name)]
}

// Embedder returns an embedding client for the provider. An empty model
// selects the provider default.
func (r *Registry) Embedder(ctx context.Context, name, model string) (embeddings.Embedder, error) {
	name = Normalize(name)
	if model == "" {
		model = r.DefaultEmbeddingModel(name)
	}

	switch name {
	case OpenAI:
		llm, err := r.openAIClient(model, true)
		if err != nil {
			return nil, err
		}
		return embeddings.NewEmbedder(llm)
	case VertexAI:
		llm, err := r.vertexClient(ctx, "", model)
		if err != nil {
			return nil, err
		}
		return embeddings.NewEmbedder(llm)
	case Ollama:
		llm, err := ollama.New(
			ollama.WithModel(model),
			ollama.WithServerURL(r.cfg.Ollama.ServerURL),
		)
		if err != nil {
			return nil, fmt.Errorf("ollama embedder: %w", err)
		}
		return embeddings.NewEmbedder(llm)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedProvider, name)
	}
}

// Generator returns a text generation client for the provider. An empty model
// selects the provider default.
func (r *Registry) Generator(ctx context.Context, name, model string, temperature float64) (Generator, error) {
	name = Normalize(name)
	if model == "" {
		model = r.DefaultLLMModel(name)
	}

	var (
		llm llms.Model
		err error
	)
	switch name {
	case OpenAI:
		llm, err = r.openAIClient(model, false)
	case VertexAI:
		llm, err = r.vertexClient(ctx, model, "")
	case Ollama:
		llm, err = ollama.New(
			ollama.WithModel(model),
			ollama.WithServerURL(r.cfg.Ollama.ServerURL),
		)
		if err != nil {
			err = fmt.Errorf("ollama client: %w", err)
		}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedProvider, name)
	}
	if err != nil {
		return nil, err
	}

	r.logger.Debug("generator ready",
		zap.String("provider", name),
		zap.String("model", model),
		zap.Float64("temperature", temperature),
	)
	return &llmGenerator{llm: llm, temperature: temperature}, nil
}

// Providers lists the supported providers and whether each has the
// credentials it needs.
func (r *Registry) Providers() []Info {
	return []Info{
		{
			Name:                  OpenAI,
			DefaultLLMModel:       r.DefaultLLMModel(OpenAI),
			DefaultEmbeddingModel: r.DefaultEmbeddingModel(OpenAI),
			Configured:            r.openAIKey() != "",
		},
		{
			Name:                  VertexAI,
			DefaultLLMModel:       r.DefaultLLMModel(VertexAI),
			DefaultEmbeddingModel: r.DefaultEmbeddingModel(VertexAI),
			Configured:            r.cfg.VertexAI.Project != "",
		},
		{
			Name:                  Ollama,
			DefaultLLMModel:       r.DefaultLLMModel(Ollama),
			DefaultEmbeddingModel: r.DefaultEmbeddingModel(Ollama),
			Configured:            r.cfg.Ollama.ServerURL != "",
		},
	}
}

func (r *Registry) openAIKey() string {
	if r.cfg.OpenAI.APIKey.IsSet() {
		return r.cfg.OpenAI.APIKey.Value()
	}
	return os.Getenv("OPENAI_API_KEY")
}

func (r *Registry) openAIClient(model string, embedding bool) (*openai.LLM, error) {
	key := r.openAIKey()
	if key == "" {
		return nil, fmt.Errorf("%w: openai requires an API key (models.openai.api_key or OPENAI_API_KEY)", ErrMissingCredentials)
	}

	opts := []openai.Option{openai.WithToken(key)}
	if embedding {
		opts = append(opts, openai.WithEmbeddingModel(model))
	} else {
		opts = append(opts, openai.WithModel(model))
	}
	if r.cfg.OpenAI.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(r.cfg.OpenAI.BaseURL))
	}

	llm, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("openai client: %w", err)
	}
	return llm, nil
}

func (r *Registry) vertexClient(ctx context.Context, llmModel, embeddingModel string) (*vertex.Vertex, error) {
	if r.cfg.VertexAI.Project == "" {
		return nil, fmt.Errorf("%w: vertexai requires models.vertexai.project", ErrMissingCredentials)
	}

	opts := []googleai.Option{
		googleai.WithCloudProject(r.cfg.VertexAI.Project),
		googleai.WithCloudLocation(r.cfg.VertexAI.Region),
	}
	if llmModel != "" {
		opts = append(opts, googleai.WithDefaultModel(llmModel))
	}
	if embeddingModel != "" {
		opts = append(opts, googleai.WithDefaultEmbeddingModel(embeddingModel))
	}
	if r.cfg.VertexAI.CredentialsFile != "" {
		opts = append(opts, googleai.WithCredentialsFile(r.cfg.VertexAI.CredentialsFile))
	}

	llm, err := vertex.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("vertexai client: %w", err)
	}
	return llm, nil
}

type llmGenerator struct {
	llm         llms.Model
	temperature float64
}

func (g *llmGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, g.llm, prompt,
		llms.WithTemperature(g.temperature),
	)
}
