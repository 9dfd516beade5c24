// Package vector stores chunk embeddings and answers nearest-neighbour queries.
package vector

import (
	"context"
	"errors"
)

// ErrDimensionMismatch is returned when a vector does not match the index dimensions.
var ErrDimensionMismatch = errors.New("vector dimension mismatch")

// VectorIndex defines vector storage and similarity search.
type VectorIndex interface {
	Add(ctx context.Context, ids []string, vectors [][]float32) error
	Search(ctx context.Context, query []float32, k int) ([]Result, error)
	Reset()
	Save(path string) error
	Load(path string) error
	Size() int
	Dimensions() int
	Close() error
}

// Result is a single search hit. ID is the chunk ID; Score is the raw inner product,
// which equals cosine similarity for unit vectors.
type Result struct {
	ID    string
	Score float64
}
