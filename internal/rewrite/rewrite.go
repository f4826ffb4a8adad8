// Package rewrite makes follow-up questions self-contained by rewriting them
// against the conversation history.
package rewrite

import (
	"context"
	"strings"

	"github.com/tmc/langchaingo/prompts"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/ragify/internal/provider"
)

// Conversation roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Turn is one prior exchange in the conversation.
type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Rewriter rewrites questions using a language model. Rewriting is strictly
// best-effort: any failure falls back to the original question so retrieval
// can still proceed.
type Rewriter struct {
	gen      provider.Generator
	template string
	logger   *zap.Logger
}

// New creates a Rewriter. An empty template disables rewriting entirely.
func New(gen provider.Generator, template string, logger *zap.Logger) *Rewriter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Rewriter{gen: gen, template: template, logger: logger}
}

// Rewrite returns a standalone form of question. With no history, no template,
// or no generator it returns the question unchanged without a model call.
func (r *Rewriter) Rewrite(ctx context.Context, question string, history []Turn) string {
	if len(history) == 0 || r.template == "" || r.gen == nil {
		return question
	}

	tmpl := prompts.NewPromptTemplate(r.template, []string{"history", "question"})
	prompt, err := tmpl.Format(map[string]any{
		"history":  FormatHistory(history),
		"question": question,
	})
	if err != nil {
		r.logger.Warn("rewrite prompt failed, using original question", zap.Error(err))
		return question
	}

	rewritten, err := r.gen.Generate(ctx, prompt)
	if err != nil {
		r.logger.Warn("query rewrite failed, using original question", zap.Error(err))
		return question
	}

	rewritten = strings.TrimSpace(rewritten)
	if rewritten == "" {
		return question
	}

	r.logger.Debug("query rewritten",
		zap.String("original", question),
		zap.String("rewritten", rewritten),
	)
	return rewritten
}

// FormatHistory renders turns as alternating "User:"/"Assistant:" lines.
func FormatHistory(history []Turn) string {
	var b strings.Builder
	for i, turn := range history {
		if i > 0 {
			b.WriteString("\n")
		}
		switch turn.Role {
		case RoleAssistant:
			b.WriteString("Assistant: ")
		default:
			b.WriteString("User: ")
		}
		b.WriteString(turn.Content)
	}
	return b.String()
}
