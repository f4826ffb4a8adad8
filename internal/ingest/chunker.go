// Package ingest turns normalized documents into an indexed corpus:
// recursive chunking, embedding, and idempotent index builds.
package ingest

import (
	"errors"
	"fmt"

	"github.com/tmc/langchaingo/textsplitter"

	"github.com/fyrsmithlabs/ragify/internal/document"
)

// ErrInvalidChunking indicates chunk size/overlap values that cannot make
// progress.
var ErrInvalidChunking = errors.New("invalid chunking parameters")

// Chunk is a bounded-length slice of a document's text, the atomic retrieval
// unit. Ordinal preserves the chunk's position within its source document.
type Chunk struct {
	Content  string
	Metadata document.Metadata
	Ordinal  int
}

// Chunker splits documents into overlapping chunks. Splitting is recursive:
// paragraph boundaries are preferred over sentence boundaries over words,
// falling back to a hard cut only when nothing smaller fits.
type Chunker struct {
	splitter textsplitter.RecursiveCharacter
	size     int
	overlap  int
}

// NewChunker creates a Chunker. Overlap must be non-negative and strictly
// smaller than size, otherwise a split could fail to make progress.
func NewChunker(size, overlap int) (*Chunker, error) {
	if size <= 0 {
		return nil, fmt.Errorf("%w: chunk size must be positive", ErrInvalidChunking)
	}
	if overlap < 0 || overlap >= size {
		return nil, fmt.Errorf("%w: overlap %d must be in [0, %d)", ErrInvalidChunking, overlap, size)
	}

	return &Chunker{
		splitter: textsplitter.NewRecursiveCharacter(
			textsplitter.WithChunkSize(size),
			textsplitter.WithChunkOverlap(overlap),
		),
		size:    size,
		overlap: overlap,
	}, nil
}

// Split chunks every document, carrying source metadata onto each chunk.
// Chunks from the same document keep their relative order.
func (c *Chunker) Split(docs []document.Document) ([]Chunk, error) {
	var chunks []Chunk
	for _, doc := range docs {
		parts, err := c.splitter.SplitText(doc.Content)
		if err != nil {
			return nil, fmt.Errorf("splitting %s: %w", doc.Metadata.Source, err)
		}
		for i, part := range parts {
			chunks = append(chunks, Chunk{
				Content:  part,
				Metadata: doc.Metadata,
				Ordinal:  i,
			})
		}
	}
	return chunks, nil
}
