package provider

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/ragify/internal/config"
)

func TestNormalize(t *testing.T) {
	assert.Equal(t, "openai", Normalize("  OpenAI "))
	assert.Equal(t, "vertexai", Normalize("VERTEXAI"))
}

func TestUnsupportedProvider(t *testing.T) {
	registry := NewRegistry(config.ModelsConfig{}, nil)
	ctx := context.Background()

	_, err := registry.Embedder(ctx, "anthropic", "")
	require.ErrorIs(t, err, ErrUnsupportedProvider)

	_, err = registry.Generator(ctx, "cohere", "", 0)
	require.ErrorIs(t, err, ErrUnsupportedProvider)
}

func TestOpenAIRequiresKey(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	registry := NewRegistry(config.ModelsConfig{}, nil)
	ctx := context.Background()

	_, err := registry.Embedder(ctx, "openai", "")
	require.ErrorIs(t, err, ErrMissingCredentials)

	_, err = registry.Generator(ctx, "openai", "", 0.2)
	require.ErrorIs(t, err, ErrMissingCredentials)
}

func TestOpenAIKeyFromEnv(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-test")
	registry := NewRegistry(config.ModelsConfig{}, nil)

	gen, err := registry.Generator(context.Background(), "openai", "", 0.2)
	require.NoError(t, err)
	assert.NotNil(t, gen)
}

func TestOpenAIKeyFromConfig(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	cfg := config.ModelsConfig{}
	cfg.OpenAI.APIKey = config.Secret("sk-from-config")
	registry := NewRegistry(cfg, nil)

	_, err := registry.Embedder(context.Background(), "openai", "text-embedding-3-small")
	require.NoError(t, err)
}

func TestVertexAIRequiresProject(t *testing.T) {
	registry := NewRegistry(config.ModelsConfig{}, nil)

	_, err := registry.Generator(context.Background(), "vertexai", "", 0)
	require.ErrorIs(t, err, ErrMissingCredentials)
}

func TestOllamaNeedsNoCredentials(t *testing.T) {
	cfg := config.ModelsConfig{}
	cfg.Ollama.ServerURL = "http://localhost:11434"
	registry := NewRegistry(cfg, nil)

	gen, err := registry.Generator(context.Background(), "ollama", "", 0)
	require.NoError(t, err)
	assert.NotNil(t, gen)

	emb, err := registry.Embedder(context.Background(), "ollama", "")
	require.NoError(t, err)
	assert.NotNil(t, emb)
}

func TestDefaultModels(t *testing.T) {
	registry := NewRegistry(config.ModelsConfig{}, nil)

	assert.Equal(t, "gpt-4o-mini", registry.DefaultLLMModel("openai"))
	assert.Equal(t, "text-embedding-3-large", registry.DefaultEmbeddingModel("OpenAI"))
	assert.Equal(t, "gemini-pro", registry.DefaultLLMModel("vertexai"))
	assert.Equal(t, "llama3", registry.DefaultLLMModel("ollama"))
	assert.Equal(t, "nomic-embed-text", registry.DefaultEmbeddingModel("ollama"))
}

func TestConfiguredModelOverridesBuiltIn(t *testing.T) {
	cfg := config.ModelsConfig{}
	cfg.OpenAI.LLMModel = "gpt-4o"
	cfg.Ollama.EmbeddingModel = "mxbai-embed-large"
	registry := NewRegistry(cfg, nil)

	assert.Equal(t, "gpt-4o", registry.DefaultLLMModel("openai"))
	assert.Equal(t, "mxbai-embed-large", registry.DefaultEmbeddingModel("ollama"))
}

func TestProviders(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	cfg := config.ModelsConfig{}
	cfg.Ollama.ServerURL = "http://localhost:11434"
	registry := NewRegistry(cfg, nil)

	infos := registry.Providers()
	require.Len(t, infos, 3)

	byName := map[string]Info{}
	for _, info := range infos {
		byName[info.Name] = info
	}
	assert.False(t, byName["openai"].Configured)
	assert.False(t, byName["vertexai"].Configured)
	assert.True(t, byName["ollama"].Configured)
	assert.Equal(t, "gpt-4o-mini", byName["openai"].DefaultLLMModel)
}
