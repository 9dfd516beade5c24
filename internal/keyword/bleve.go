package keyword

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	"github.com/blevesearch/bleve/v2/mapping"

	"github.com/hyperjump/copilot/internal/models"
)

const (
	batchSize   = 500
	sourceBoost = 2.0
)

// pathSeparators are replaced with spaces before a source path is indexed; the unicode
// tokenizer would otherwise keep "sop_phishing.md" as one token.
var pathSeparators = strings.NewReplacer("/", " ", "_", " ", ".", " ", "-", " ")

type chunkDoc struct {
	Content string `json:"content"`
	Source  string `json:"source"`
}

// BleveIndex implements KeywordIndex using Bleve.
type BleveIndex struct {
	index bleve.Index
}

func newMapping() mapping.IndexMapping {
	im := bleve.NewIndexMapping()

	docMapping := bleve.NewDocumentMapping()
	// Standard analyzer lowercases and tokenizes without stemming, so "OTP" matches "otp"
	// and Indonesian terms are not mangled by an English stemmer.
	text := bleve.NewTextFieldMapping()
	text.Analyzer = standard.Name
	text.Store = false
	docMapping.AddFieldMappingsAt("content", text)

	src := bleve.NewTextFieldMapping()
	src.Analyzer = standard.Name
	docMapping.AddFieldMappingsAt("source", src)

	im.DefaultMapping = docMapping
	return im
}

// NewBleveIndex opens the index at path, or creates it if the path does not exist.
func NewBleveIndex(path string) (*BleveIndex, error) {
	if _, err := os.Stat(path); err == nil {
		index, err := bleve.Open(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open Bleve index: %w", err)
		}
		return &BleveIndex{index: index}, nil
	}
	index, err := bleve.New(path, newMapping())
	if err != nil {
		return nil, fmt.Errorf("failed to create Bleve index: %w", err)
	}
	return &BleveIndex{index: index}, nil
}

// RecreateBleveIndex removes any index at path and creates an empty one.
func RecreateBleveIndex(path string) (*BleveIndex, error) {
	if err := os.RemoveAll(path); err != nil {
		return nil, fmt.Errorf("failed to remove Bleve index: %w", err)
	}
	return NewBleveIndex(path)
}

// NewMemBleveIndex creates an index that lives only in memory.
func NewMemBleveIndex() (*BleveIndex, error) {
	index, err := bleve.NewMemOnly(newMapping())
	if err != nil {
		return nil, fmt.Errorf("failed to create Bleve index: %w", err)
	}
	return &BleveIndex{index: index}, nil
}

// IndexChunks indexes chunks by chunk ID in batches.
func (b *BleveIndex) IndexChunks(ctx context.Context, chunks []*models.DocumentChunk) error {
	batch := b.index.NewBatch()
	for _, c := range chunks {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := batch.Index(c.ID, chunkDoc{Content: c.Content, Source: pathSeparators.Replace(c.Source)}); err != nil {
			return fmt.Errorf("index chunk %s: %w", c.ID, err)
		}
		if batch.Size() >= batchSize {
			if err := b.index.Batch(batch); err != nil {
				return fmt.Errorf("Bleve batch failed: %w", err)
			}
			batch.Reset()
		}
	}
	if batch.Size() > 0 {
		if err := b.index.Batch(batch); err != nil {
			return fmt.Errorf("Bleve batch failed: %w", err)
		}
	}
	return nil
}

// Search matches query against chunk content and source path and returns up to limit
// hits by descending BM25 score. Source matches are boosted.
func (b *BleveIndex) Search(_ context.Context, query string, limit int) ([]Result, error) {
	if strings.TrimSpace(query) == "" || limit <= 0 {
		return nil, nil
	}

	content := bleve.NewMatchQuery(query)
	content.SetField("content")
	source := bleve.NewMatchQuery(query)
	source.SetField("source")
	source.SetBoost(sourceBoost)
	q := bleve.NewDisjunctionQuery(content, source)

	req := bleve.NewSearchRequest(q)
	req.Size = limit
	results, err := b.index.Search(req)
	if err != nil {
		return nil, fmt.Errorf("Bleve search failed: %w", err)
	}
	out := make([]Result, len(results.Hits))
	for i, hit := range results.Hits {
		out[i] = Result{ID: hit.ID, Score: hit.Score}
	}
	return out, nil
}

// Reset deletes every indexed chunk.
func (b *BleveIndex) Reset(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		req := bleve.NewSearchRequest(bleve.NewMatchAllQuery())
		req.Size = batchSize
		results, err := b.index.Search(req)
		if err != nil {
			return fmt.Errorf("Bleve search failed: %w", err)
		}
		if len(results.Hits) == 0 {
			return nil
		}
		batch := b.index.NewBatch()
		for _, hit := range results.Hits {
			batch.Delete(hit.ID)
		}
		if err := b.index.Batch(batch); err != nil {
			return fmt.Errorf("Bleve batch failed: %w", err)
		}
	}
}

// DocCount returns the number of indexed chunks.
func (b *BleveIndex) DocCount() (uint64, error) {
	return b.index.DocCount()
}

// Close closes the Bleve index.
func (b *BleveIndex) Close() error {
	return b.index.Close()
}
