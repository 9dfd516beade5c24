// Package models defines the documents, passages and responses passed between
// ingestion, retrieval, the answer pipeline and the HTTP API.
package models

import "time"

// Document is a corpus file that has been ingested. Source is the path-like identifier
// (e.g. "corpus/sop/sop_phishing.md") that every chunk of the document carries.
type Document struct {
	ID        string    `json:"id" db:"id"`
	Source    string    `json:"source" db:"source"`
	Title     string    `json:"title" db:"title"`
	Content   string    `json:"-" db:"content"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// DocumentChunk is one overlapping slice of a document, the unit that is embedded and retrieved.
type DocumentChunk struct {
	ID         string    `json:"id" db:"id"`
	DocumentID string    `json:"document_id" db:"document_id"`
	Source     string    `json:"source" db:"source"`
	Content    string    `json:"content" db:"content"`
	ChunkIndex int       `json:"chunk_index" db:"chunk_index"`
	Embedding  []float32 `json:"-" db:"-"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}

// Passage returns the retrievable view of the chunk.
func (c *DocumentChunk) Passage() Passage {
	return Passage{ChunkID: c.ID, Source: c.Source, Content: c.Content}
}
