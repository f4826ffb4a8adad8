// Package pipeline assembles retrieval, rewriting, and generation into a
// question-answering flow, and caches assembled pipelines per model choice.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/tmc/langchaingo/prompts"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/ragify/internal/provider"
	"github.com/fyrsmithlabs/ragify/internal/rewrite"
	"github.com/fyrsmithlabs/ragify/internal/vectorstore"
)

var tracer = otel.Tracer("ragify.pipeline")

var (
	// ErrRetrieval indicates the retrieval stage failed. Retrieval failures
	// are fatal: answering without context is worse than refusing.
	ErrRetrieval = errors.New("retrieval failed")
	// ErrSynthesis indicates generation failed, fallback included.
	ErrSynthesis = errors.New("answer synthesis failed")
)

// snippetLength bounds the context excerpt attached to each source.
const snippetLength = 200

// Retriever is the retrieval stage seen by the pipeline.
type Retriever interface {
	Search(ctx context.Context, query string) ([]vectorstore.Result, error)
}

// Source attributes part of an answer to an indexed document.
type Source struct {
	Source  string `json:"source"`
	Title   string `json:"title,omitempty"`
	URL     string `json:"url,omitempty"`
	Snippet string `json:"snippet"`
}

// Answer is a generated answer with its supporting sources.
type Answer struct {
	Answer  string   `json:"answer"`
	Sources []Source `json:"sources"`
}

// Options configures a Pipeline.
type Options struct {
	// AnswerTemplate receives {{.context}} and {{.question}}.
	AnswerTemplate string
	// HistoryLength is the number of most recent turns composed into the
	// prompt. Zero keeps history out of generation entirely.
	HistoryLength int
	// Timeout bounds each generation call. Zero means no bound beyond the
	// caller's context.
	Timeout time.Duration
}

// Pipeline answers questions over an indexed corpus.
type Pipeline struct {
	retriever Retriever
	generator provider.Generator
	rewriter  *rewrite.Rewriter
	opts      Options
	logger    *zap.Logger
}

// New creates a Pipeline. The rewriter may be nil, which disables
// history-aware query rewriting.
func New(retriever Retriever, generator provider.Generator, rewriter *rewrite.Rewriter, opts Options, logger *zap.Logger) (*Pipeline, error) {
	if retriever == nil {
		return nil, errors.New("retriever is required")
	}
	if generator == nil {
		return nil, errors.New("generator is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{
		retriever: retriever,
		generator: generator,
		rewriter:  rewriter,
		opts:      opts,
		logger:    logger,
	}, nil
}

// Answer runs the question through rewrite, retrieval, and generation.
//
// The rewritten question is used for retrieval only; the prompt always
// carries the user's original question. When the primary generation fails, a
// minimal prompt over the same retrieved context is tried once before giving
// up with ErrSynthesis.
func (p *Pipeline) Answer(ctx context.Context, question string, history []rewrite.Turn) (*Answer, error) {
	ctx, span := tracer.Start(ctx, "pipeline.answer")
	defer span.End()

	history = trimHistory(history, p.opts.HistoryLength)

	query := question
	if p.rewriter != nil {
		query = p.rewriter.Rewrite(ctx, question, history)
	}
	span.SetAttributes(attribute.Bool("query.rewritten", query != question))

	results, err := p.retriever.Search(ctx, query)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "retrieval failed")
		return nil, fmt.Errorf("%w: %v", ErrRetrieval, err)
	}
	span.SetAttributes(attribute.Int("retrieval.results", len(results)))

	contextText := joinChunks(results)

	prompt, err := p.composePrompt(question, contextText, history)
	if err != nil {
		// A broken template still has the fallback path.
		p.logger.Warn("answer template failed, using fallback prompt", zap.Error(err))
		prompt = fallbackPrompt(question, contextText)
	}

	text, err := p.generate(ctx, prompt)
	if err != nil {
		p.logger.Warn("generation failed, retrying with fallback prompt", zap.Error(err))
		text, err = p.generate(ctx, fallbackPrompt(question, contextText))
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "synthesis failed")
			return nil, fmt.Errorf("%w: %v", ErrSynthesis, err)
		}
	}

	span.SetStatus(codes.Ok, "")
	return &Answer{
		Answer:  strings.TrimSpace(text),
		Sources: sourcesFrom(results),
	}, nil
}

func (p *Pipeline) generate(ctx context.Context, prompt string) (string, error) {
	if p.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.opts.Timeout)
		defer cancel()
	}
	return p.generator.Generate(ctx, prompt)
}

func (p *Pipeline) composePrompt(question, contextText string, history []rewrite.Turn) (string, error) {
	tmpl := prompts.NewPromptTemplate(p.opts.AnswerTemplate, []string{"context", "question"})
	body, err := tmpl.Format(map[string]any{
		"context":  contextText,
		"question": question,
	})
	if err != nil {
		return "", err
	}
	if len(history) == 0 {
		return body, nil
	}
	return "Previous conversation:\n" + rewrite.FormatHistory(history) + "\n\n" + body, nil
}

// fallbackPrompt is the last-resort stuff prompt, independent of configured
// templates and conversation history.
func fallbackPrompt(question, contextText string) string {
	return "Use the following context to answer the question.\n\nContext:\n" +
		contextText + "\n\nQuestion: " + question + "\n\nAnswer:"
}

func trimHistory(history []rewrite.Turn, max int) []rewrite.Turn {
	if max <= 0 || len(history) == 0 {
		return nil
	}
	if len(history) > max {
		return history[len(history)-max:]
	}
	return history
}

func joinChunks(results []vectorstore.Result) string {
	parts := make([]string, len(results))
	for i, r := range results {
		parts[i] = r.Content
	}
	return strings.Join(parts, "\n\n")
}

func sourcesFrom(results []vectorstore.Result) []Source {
	sources := make([]Source, 0, len(results))
	for _, r := range results {
		// Truncation counts characters, not bytes, so a multi-byte rune is
		// never split at the boundary.
		snippet := r.Content
		if runes := []rune(snippet); len(runes) > snippetLength {
			snippet = string(runes[:snippetLength]) + "..."
		}
		sources = append(sources, Source{
			Source:  r.Metadata["source"],
			Title:   r.Metadata["title"],
			URL:     r.Metadata["url"],
			Snippet: snippet,
		})
	}
	return sources
}
