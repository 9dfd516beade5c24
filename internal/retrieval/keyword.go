package retrieval

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/hyperjump/copilot/internal/keyword"
	"github.com/hyperjump/copilot/internal/models"
	"github.com/hyperjump/copilot/internal/storage"
)

// KeywordRetriever ranks chunks by BM25. BM25 has no fixed range, so every passage
// carries models.NoScore and the relevance gate trusts the ranking.
type KeywordRetriever struct {
	index keyword.KeywordIndex
	store storage.Storage
	opts  options
}

// NewKeywordRetriever returns a retriever over a keyword index.
func NewKeywordRetriever(index keyword.KeywordIndex, store storage.Storage, opts ...Option) *KeywordRetriever {
	return &KeywordRetriever{index: index, store: store, opts: newOptions(opts)}
}

// Retrieve returns up to k passages in BM25 order.
func (r *KeywordRetriever) Retrieve(ctx context.Context, query string, k int) (models.RetrievalResult, error) {
	k = r.opts.clampK(k)
	n, err := r.index.DocCount()
	if err != nil {
		return nil, fmt.Errorf("%w: keyword index: %w", ErrUnavailable, err)
	}
	if n == 0 {
		return nil, fmt.Errorf("%w: keyword index is empty, run ingest first", ErrUnavailable)
	}

	hits, err := r.index.Search(ctx, query, k)
	if err != nil {
		return nil, fmt.Errorf("%w: keyword search: %w", ErrUnavailable, err)
	}

	result := make(models.RetrievalResult, 0, len(hits))
	for _, hit := range hits {
		chunk, err := r.store.GetChunk(ctx, hit.ID)
		if errors.Is(err, storage.ErrNotFound) {
			r.opts.logger.Warn("indexed chunk missing from storage", zap.String("chunk_id", hit.ID))
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("%w: load chunk: %w", ErrUnavailable, err)
		}
		result = append(result, models.ScoredPassage{Passage: chunk.Passage(), Score: models.NoScore})
	}

	if len(hits) > 0 && len(result) == 0 {
		return nil, fmt.Errorf("%w: keyword index and storage out of sync, restart after ingest", ErrUnavailable)
	}

	r.opts.logger.Debug("keyword retrieval",
		zap.Int("k", k),
		zap.Int("hits", len(result)),
	)
	return result, nil
}
