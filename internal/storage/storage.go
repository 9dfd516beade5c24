// Package storage persists ingested documents, their chunks and the index manifest.
package storage

import (
	"context"
	"errors"

	"github.com/hyperjump/copilot/internal/models"
)

// ErrNotFound is returned when a document, chunk or metadata key does not exist.
var ErrNotFound = errors.New("not found")

// Storage defines document and chunk persistence operations.
type Storage interface {
	// Document operations
	CreateDocument(ctx context.Context, doc *models.Document) error
	GetDocument(ctx context.Context, id string) (*models.Document, error)
	ListDocuments(ctx context.Context, offset, limit int) ([]*models.Document, error)

	// Chunk operations
	GetChunk(ctx context.Context, id string) (*models.DocumentChunk, error)
	GetChunksByDocumentID(ctx context.Context, docID string) ([]*models.DocumentChunk, error)
	BatchCreateChunks(ctx context.Context, chunks []*models.DocumentChunk) error

	// Index manifest
	SetMeta(ctx context.Context, key, value string) error
	GetMeta(ctx context.Context, key string) (string, error)

	// Reset removes every document, chunk and metadata entry.
	Reset(ctx context.Context) error

	// Stats
	CountDocuments(ctx context.Context) (int64, error)
	CountChunks(ctx context.Context) (int64, error)

	Close() error
}
