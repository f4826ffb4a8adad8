package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

// envPrefix namespaces ragify environment overrides.
const envPrefix = "RAGIFY_"

// Load loads configuration from an optional YAML file, then overrides with
// environment variables, applies defaults, and validates.
//
// Configuration precedence (highest to lowest):
//  1. Environment variables (RAGIFY_RETRIEVAL_TOP_K, RAGIFY_SERVER_PORT, ...)
//  2. YAML config file
//  3. Defaults
//
// An empty configPath skips the file and loads defaults plus environment
// overrides. A configPath pointing at a missing file is an error: a caller
// asking for a specific file should learn it is not there.
//
// Environment overrides are coerced by unmarshalling into the typed Config
// struct. A value that does not parse as the field's type (for example
// RAGIFY_RETRIEVAL_TOP_K=abc) fails the load; string shape is never used to
// guess a type.
func Load(configPath string) (*Config, error) {
	k := koanf.New(".")

	if configPath != "" {
		content, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := k.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", configPath, err)
		}
	}

	if err := k.Load(env.Provider(envPrefix, ".", envToPath), nil); err != nil {
		return nil, fmt.Errorf("loading environment overrides: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}

	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// providerSections are the subsections under models that environment
// overrides can reach a level deeper.
var providerSections = map[string]bool{
	"openai":   true,
	"vertexai": true,
	"ollama":   true,
}

// envToPath maps an environment variable to a config path by stripping the
// prefix, lowercasing, and splitting on the first underscore. Under models,
// a known provider subsection consumes one more segment:
//
//	RAGIFY_SERVER_PORT             -> server.port
//	RAGIFY_RETRIEVAL_TOP_K         -> retrieval.top_k
//	RAGIFY_MODELS_LLM_PROVIDER     -> models.llm_provider
//	RAGIFY_MODELS_VERTEXAI_PROJECT -> models.vertexai.project
func envToPath(s string) string {
	lower := strings.ToLower(strings.TrimPrefix(s, envPrefix))
	section, rest, ok := strings.Cut(lower, "_")
	if !ok {
		return lower
	}
	if section == "models" {
		if sub, field, ok := strings.Cut(rest, "_"); ok && providerSections[sub] {
			return section + "." + sub + "." + field
		}
	}
	return section + "." + rest
}
