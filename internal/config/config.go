// Package config provides configuration loading for ragify.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ErrInvalidConfig indicates a configuration value that fails validation.
var ErrInvalidConfig = errors.New("invalid configuration")

// Secret wraps strings that should be redacted in logs and serialization.
// Use Value() to access the actual secret value.
type Secret string

// String implements fmt.Stringer. Always returns a redacted value.
func (s Secret) String() string {
	if s == "" {
		return ""
	}
	return "[REDACTED]"
}

// Value returns the actual secret value. Use sparingly.
func (s Secret) Value() string {
	return string(s)
}

// IsSet returns true if the secret has a non-empty value.
func (s Secret) IsSet() bool {
	return s != ""
}

// MarshalJSON implements json.Marshaler. Always returns a redacted value.
func (s Secret) MarshalJSON() ([]byte, error) {
	if s == "" {
		return json.Marshal("")
	}
	return json.Marshal("[REDACTED]")
}

// Config is the root configuration for ragify.
//
// Values are loaded from a YAML file with environment variable overrides,
// then defaulted and validated. Config values are plain data; components
// receive the sections they need at construction time and never mutate them.
type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Logging   LoggingConfig   `koanf:"logging"`
	Telemetry TelemetryConfig `koanf:"telemetry"`
	Models    ModelsConfig    `koanf:"models"`
	Documents DocumentsConfig `koanf:"documents"`
	Retrieval RetrievalConfig `koanf:"retrieval"`
	Prompts   PromptsConfig   `koanf:"prompts"`
	Storage   StorageConfig   `koanf:"storage"`
	Chat      ChatConfig      `koanf:"chat"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// LoggingConfig holds logger settings.
type LoggingConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `koanf:"level"`
	// Format is json or console.
	Format string `koanf:"format"`
}

// TelemetryConfig holds OpenTelemetry settings.
type TelemetryConfig struct {
	Enabled        bool   `koanf:"enabled"`
	ServiceName    string `koanf:"service_name"`
	ServiceVersion string `koanf:"service_version"`
	// Endpoint is the OTLP HTTP endpoint (host:port). Empty disables export.
	Endpoint string `koanf:"endpoint"`
	Insecure bool   `koanf:"insecure"`
}

// ModelsConfig holds model provider selection and per-provider settings.
type ModelsConfig struct {
	LLMProvider       string  `koanf:"llm_provider"`
	LLMModel          string  `koanf:"llm_model"`
	EmbeddingProvider string  `koanf:"embedding_provider"`
	EmbeddingModel    string  `koanf:"embedding_model"`
	Temperature       float64 `koanf:"temperature"`

	// RequestTimeout bounds each embedding or generation call.
	RequestTimeout time.Duration `koanf:"request_timeout"`

	OpenAI   OpenAIConfig   `koanf:"openai"`
	VertexAI VertexAIConfig `koanf:"vertexai"`
	Ollama   OllamaConfig   `koanf:"ollama"`
}

// OpenAIConfig holds OpenAI provider settings.
type OpenAIConfig struct {
	// APIKey falls back to the OPENAI_API_KEY environment variable.
	APIKey         Secret `koanf:"api_key"`
	BaseURL        string `koanf:"base_url"`
	LLMModel       string `koanf:"llm_model"`
	EmbeddingModel string `koanf:"embedding_model"`
}

// VertexAIConfig holds Google Cloud Vertex AI provider settings.
type VertexAIConfig struct {
	Project string `koanf:"project"`
	Region  string `koanf:"region"`
	// CredentialsFile is an optional service account JSON path.
	// When empty, application default credentials are used.
	CredentialsFile string `koanf:"credentials_file"`
	LLMModel        string `koanf:"llm_model"`
	EmbeddingModel  string `koanf:"embedding_model"`
}

// OllamaConfig holds local Ollama provider settings.
type OllamaConfig struct {
	ServerURL      string `koanf:"server_url"`
	LLMModel       string `koanf:"llm_model"`
	EmbeddingModel string `koanf:"embedding_model"`
}

// DocumentsConfig holds ingestion settings.
type DocumentsConfig struct {
	// DocsDir is the directory scanned for source documents.
	DocsDir      string `koanf:"docs_dir"`
	ChunkSize    int    `koanf:"chunk_size"`
	ChunkOverlap int    `koanf:"chunk_overlap"`
}

// RetrievalConfig holds retriever settings.
type RetrievalConfig struct {
	// SearchType is "similarity" or "mmr".
	SearchType string `koanf:"search_type"`
	TopK       int    `koanf:"top_k"`
	// FetchK is the candidate pool size for MMR. Defaults to 4*TopK.
	FetchK int `koanf:"fetch_k"`
	// Diversity trades relevance against result diversity for MMR search.
	// 0 is pure relevance, 1 is pure diversity.
	Diversity float64 `koanf:"diversity"`
}

// PromptsConfig holds the prompt templates.
//
// Templates use Go template syntax. The answer template receives
// {{.context}} and {{.question}}; the rewrite template receives
// {{.history}} and {{.question}}. An empty rewrite template disables
// history-aware query rewriting.
type PromptsConfig struct {
	AnswerTemplate  string `koanf:"answer_template"`
	RewriteTemplate string `koanf:"rewrite_template"`
}

// StorageConfig holds vector index persistence settings.
type StorageConfig struct {
	// Path is the directory for the persisted index.
	Path       string `koanf:"path"`
	Collection string `koanf:"collection"`
	Compress   bool   `koanf:"compress"`
}

// ChatConfig holds conversation handling settings.
type ChatConfig struct {
	// HistoryLength is the number of most recent turns kept when composing prompts.
	HistoryLength int `koanf:"history_length"`
}

// DefaultAnswerTemplate is used when prompts.answer_template is not configured.
const DefaultAnswerTemplate = `Answer the question using only the context below. If the context does not contain the answer, say so.

Context:
{{.context}}

Question: {{.question}}

Answer:`

// applyDefaults sets default values for missing configuration fields.
func applyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 5000
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = 10 * time.Second
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}

	if cfg.Telemetry.ServiceName == "" {
		cfg.Telemetry.ServiceName = "ragify"
	}

	if cfg.Models.LLMProvider == "" {
		cfg.Models.LLMProvider = "openai"
	}
	if cfg.Models.EmbeddingProvider == "" {
		cfg.Models.EmbeddingProvider = "openai"
	}
	if cfg.Models.RequestTimeout == 0 {
		cfg.Models.RequestTimeout = 60 * time.Second
	}
	if cfg.Models.VertexAI.Region == "" {
		cfg.Models.VertexAI.Region = "us-central1"
	}
	if cfg.Models.Ollama.ServerURL == "" {
		cfg.Models.Ollama.ServerURL = "http://localhost:11434"
	}

	if cfg.Documents.DocsDir == "" {
		cfg.Documents.DocsDir = "docs"
	}
	if cfg.Documents.ChunkSize == 0 {
		cfg.Documents.ChunkSize = 1000
	}
	if cfg.Documents.ChunkOverlap == 0 {
		cfg.Documents.ChunkOverlap = 200
	}

	if cfg.Retrieval.SearchType == "" {
		cfg.Retrieval.SearchType = "similarity"
	}
	if cfg.Retrieval.TopK == 0 {
		cfg.Retrieval.TopK = 4
	}
	if cfg.Retrieval.FetchK == 0 {
		cfg.Retrieval.FetchK = 4 * cfg.Retrieval.TopK
	}

	if cfg.Prompts.AnswerTemplate == "" {
		cfg.Prompts.AnswerTemplate = DefaultAnswerTemplate
	}

	if cfg.Storage.Path == "" {
		cfg.Storage.Path = "storage"
	}
	if cfg.Storage.Collection == "" {
		cfg.Storage.Collection = "ragify_docs"
	}

	if cfg.Chat.HistoryLength == 0 {
		cfg.Chat.HistoryLength = 5
	}
}

// Validate checks the configuration for invalid values.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("%w: server port %d out of range", ErrInvalidConfig, c.Server.Port)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("%w: unknown log level %q", ErrInvalidConfig, c.Logging.Level)
	}
	switch c.Logging.Format {
	case "json", "console":
	default:
		return fmt.Errorf("%w: unknown log format %q", ErrInvalidConfig, c.Logging.Format)
	}
	if c.Documents.ChunkSize <= 0 {
		return fmt.Errorf("%w: chunk size must be positive", ErrInvalidConfig)
	}
	if c.Documents.ChunkOverlap < 0 || c.Documents.ChunkOverlap >= c.Documents.ChunkSize {
		return fmt.Errorf("%w: chunk overlap %d must be in [0, chunk size)", ErrInvalidConfig, c.Documents.ChunkOverlap)
	}
	switch c.Retrieval.SearchType {
	case "similarity", "mmr":
	default:
		return fmt.Errorf("%w: unknown search type %q", ErrInvalidConfig, c.Retrieval.SearchType)
	}
	if c.Retrieval.TopK <= 0 {
		return fmt.Errorf("%w: top_k must be positive", ErrInvalidConfig)
	}
	if c.Retrieval.Diversity < 0 || c.Retrieval.Diversity > 1 {
		return fmt.Errorf("%w: diversity %v must be in [0,1]", ErrInvalidConfig, c.Retrieval.Diversity)
	}
	if c.Models.Temperature < 0 || c.Models.Temperature > 2 {
		return fmt.Errorf("%w: temperature %v must be in [0,2]", ErrInvalidConfig, c.Models.Temperature)
	}
	if c.Chat.HistoryLength < 0 {
		return fmt.Errorf("%w: history length cannot be negative", ErrInvalidConfig)
	}
	return nil
}
