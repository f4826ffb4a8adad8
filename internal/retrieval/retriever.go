// Package retrieval selects the most useful indexed chunks for a query,
// by plain similarity or by maximal marginal relevance.
package retrieval

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/ragify/internal/vectorstore"
)

// ErrInvalidConfig indicates retriever settings that fail validation.
var ErrInvalidConfig = errors.New("invalid retrieval configuration")

// Search strategies.
const (
	SearchSimilarity = "similarity"
	SearchMMR        = "mmr"
)

// Searcher is the slice of the vector store the retriever needs.
type Searcher interface {
	Search(ctx context.Context, query string, k int) ([]vectorstore.Result, error)
	SearchWithVectors(ctx context.Context, query string, k int) ([]vectorstore.Result, []float32, error)
}

// Config holds retriever settings.
type Config struct {
	// SearchType is "similarity" or "mmr".
	SearchType string
	// TopK is the number of results returned.
	TopK int
	// FetchK is the MMR candidate pool size. Defaults to 4*TopK.
	FetchK int
	// Diversity trades relevance against diversity for MMR search:
	// 0 is pure relevance, 1 is pure diversity.
	Diversity float64
}

// ApplyDefaults fills unset values.
func (c *Config) ApplyDefaults() {
	if c.SearchType == "" {
		c.SearchType = SearchSimilarity
	}
	if c.TopK == 0 {
		c.TopK = 4
	}
	if c.FetchK == 0 {
		c.FetchK = 4 * c.TopK
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	switch c.SearchType {
	case SearchSimilarity, SearchMMR:
	default:
		return fmt.Errorf("%w: unknown search type %q", ErrInvalidConfig, c.SearchType)
	}
	if c.TopK <= 0 {
		return fmt.Errorf("%w: top_k must be positive", ErrInvalidConfig)
	}
	if c.FetchK < c.TopK {
		return fmt.Errorf("%w: fetch_k %d below top_k %d", ErrInvalidConfig, c.FetchK, c.TopK)
	}
	if c.Diversity < 0 || c.Diversity > 1 {
		return fmt.Errorf("%w: diversity %v must be in [0,1]", ErrInvalidConfig, c.Diversity)
	}
	return nil
}

// Retriever answers queries against a vector store.
type Retriever struct {
	store  Searcher
	config Config
	logger *zap.Logger
}

// New creates a Retriever.
func New(store Searcher, config Config, logger *zap.Logger) (*Retriever, error) {
	if store == nil {
		return nil, fmt.Errorf("%w: store is required", ErrInvalidConfig)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	config.ApplyDefaults()
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &Retriever{store: store, config: config, logger: logger}, nil
}

// Search returns at most TopK results ordered by descending relevance.
func (r *Retriever) Search(ctx context.Context, query string) ([]vectorstore.Result, error) {
	if r.config.SearchType == SearchMMR {
		return r.searchMMR(ctx, query)
	}
	return r.store.Search(ctx, query, r.config.TopK)
}

func (r *Retriever) searchMMR(ctx context.Context, query string) ([]vectorstore.Result, error) {
	candidates, queryVec, err := r.store.SearchWithVectors(ctx, query, r.config.FetchK)
	if err != nil {
		return nil, err
	}
	if len(candidates) <= r.config.TopK {
		return candidates, nil
	}

	lambda := 1 - r.config.Diversity
	picked := maximalMarginalRelevance(queryVec, candidates, r.config.TopK, lambda)

	r.logger.Debug("mmr selection",
		zap.Int("candidates", len(candidates)),
		zap.Int("selected", len(picked)),
		zap.Float64("lambda", lambda),
	)
	return picked, nil
}
