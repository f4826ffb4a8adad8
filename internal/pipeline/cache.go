package pipeline

import (
	"context"
	"sync"

	"github.com/fyrsmithlabs/ragify/internal/provider"
)

// Defaulter resolves blank model names to provider defaults so cache keys
// compare canonically.
type Defaulter interface {
	DefaultLLMModel(provider string) string
	DefaultEmbeddingModel(provider string) string
}

// Key identifies a pipeline by its model choices.
type Key struct {
	LLMProvider       string
	LLMModel          string
	EmbeddingProvider string
	EmbeddingModel    string
}

func (k Key) normalize(d Defaulter) Key {
	k.LLMProvider = provider.Normalize(k.LLMProvider)
	k.EmbeddingProvider = provider.Normalize(k.EmbeddingProvider)
	if d != nil {
		if k.LLMModel == "" {
			k.LLMModel = d.DefaultLLMModel(k.LLMProvider)
		}
		if k.EmbeddingModel == "" {
			k.EmbeddingModel = d.DefaultEmbeddingModel(k.EmbeddingProvider)
		}
	}
	return k
}

// BuildFunc assembles a pipeline for a normalized key.
type BuildFunc func(ctx context.Context, key Key) (*Pipeline, error)

// Cache holds one pipeline per model combination for the process lifetime.
//
// Construction happens under the cache lock: concurrent requests for the same
// key wait for one build instead of racing duplicate index loads and client
// constructions. A failed build is not cached; the next request retries.
type Cache struct {
	mu       sync.Mutex
	defaults Defaulter
	build    BuildFunc
	entries  map[Key]*Pipeline
}

// NewCache creates a Cache.
func NewCache(defaults Defaulter, build BuildFunc) *Cache {
	return &Cache{
		defaults: defaults,
		build:    build,
		entries:  make(map[Key]*Pipeline),
	}
}

// GetOrCreate returns the pipeline for key, building it on first use.
// Keys are normalized before lookup, so equivalent spellings share one entry.
func (c *Cache) GetOrCreate(ctx context.Context, key Key) (*Pipeline, error) {
	key = key.normalize(c.defaults)

	c.mu.Lock()
	defer c.mu.Unlock()

	if p, ok := c.entries[key]; ok {
		return p, nil
	}

	p, err := c.build(ctx, key)
	if err != nil {
		return nil, err
	}
	c.entries[key] = p
	return p, nil
}

// Len reports the number of cached pipelines.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
