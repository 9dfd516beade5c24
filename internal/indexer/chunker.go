// Package indexer builds the retrieval indices from a corpus directory.
package indexer

import (
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/textsplitter"

	"github.com/hyperjump/copilot/internal/models"
)

// Default chunking, in characters.
const (
	DefaultChunkSize    = 800
	DefaultChunkOverlap = 120
)

// Chunker splits document text into overlapping chunks, preferring paragraph, then line,
// then word boundaries.
type Chunker struct {
	splitter textsplitter.RecursiveCharacter
}

// NewChunker creates a chunker with the given size and overlap in characters.
func NewChunker(chunkSize, chunkOverlap int) *Chunker {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	if chunkOverlap < 0 || chunkOverlap >= chunkSize {
		chunkOverlap = 0
	}
	return &Chunker{splitter: textsplitter.NewRecursiveCharacter(
		textsplitter.WithChunkSize(chunkSize),
		textsplitter.WithChunkOverlap(chunkOverlap),
	)}
}

// Chunk splits doc into chunks that carry the document's source. Blank segments are dropped
// and chunk indexes stay contiguous.
func (c *Chunker) Chunk(doc *models.Document) ([]*models.DocumentChunk, error) {
	segments, err := c.splitter.SplitText(doc.Content)
	if err != nil {
		return nil, fmt.Errorf("split %s: %w", doc.Source, err)
	}
	chunks := make([]*models.DocumentChunk, 0, len(segments))
	for _, seg := range segments {
		seg = strings.TrimSpace(seg)
		if seg == "" {
			continue
		}
		chunks = append(chunks, &models.DocumentChunk{
			ID:         fmt.Sprintf("%s_%d", doc.ID, len(chunks)),
			DocumentID: doc.ID,
			Source:     doc.Source,
			Content:    seg,
			ChunkIndex: len(chunks),
		})
	}
	return chunks, nil
}
