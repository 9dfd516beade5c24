// Package keyword provides BM25 keyword search over corpus chunks.
package keyword

import (
	"context"

	"github.com/hyperjump/copilot/internal/models"
)

// KeywordIndex defines keyword indexing and search over chunks.
type KeywordIndex interface {
	IndexChunks(ctx context.Context, chunks []*models.DocumentChunk) error
	Search(ctx context.Context, query string, limit int) ([]Result, error)
	DocCount() (uint64, error)
	Reset(ctx context.Context) error
	Close() error
}

// Result is a single keyword hit. Score is raw BM25 and has no fixed range.
type Result struct {
	ID    string
	Score float64
}
