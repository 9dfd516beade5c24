package server

import (
	"context"
	"errors"
	"fmt"

	"github.com/hyperjump/copilot/internal/embedding"
	"github.com/hyperjump/copilot/internal/storage"
	"github.com/hyperjump/copilot/internal/vector"
)

// Status summarizes the loaded index and the gate configuration.
type Status struct {
	Documents       int64               `json:"documents"`
	Chunks          int64               `json:"chunks"`
	VectorIndexSize int                 `json:"vector_index_size"`
	Backend         string              `json:"retrieval_backend"`
	Relevance       string              `json:"relevance"`
	Threshold       float64             `json:"min_relevance"`
	Embedding       embedding.Manifest  `json:"embedding"`
	IndexedWith     *embedding.Manifest `json:"indexed_with,omitempty"`
	Generator       string              `json:"generation_model"`
	Disk            storage.Footprint   `json:"disk"`
}

// IndexReporter computes Status from the live index handles.
type IndexReporter struct {
	Storage   storage.Storage
	Index     vector.VectorIndex
	Manifest  embedding.Manifest
	Backend   string
	Relevance string
	Threshold float64
	Generator string
	// Paths names the on-disk artifacts measured for the disk footprint.
	Paths map[string]string
}

// Status implements StatusReporter.
func (r *IndexReporter) Status(ctx context.Context) (*Status, error) {
	docs, err := r.Storage.CountDocuments(ctx)
	if err != nil {
		return nil, fmt.Errorf("count documents: %w", err)
	}
	chunks, err := r.Storage.CountChunks(ctx)
	if err != nil {
		return nil, fmt.Errorf("count chunks: %w", err)
	}
	disk, err := storage.MeasureFootprint(r.Paths)
	if err != nil {
		return nil, fmt.Errorf("measure disk usage: %w", err)
	}

	st := &Status{
		Documents: docs,
		Chunks:    chunks,
		Backend:   r.Backend,
		Relevance: r.Relevance,
		Threshold: r.Threshold,
		Embedding: r.Manifest,
		Generator: r.Generator,
		Disk:      disk,
	}
	if r.Index != nil {
		st.VectorIndexSize = r.Index.Size()
	}

	indexed, err := ReadManifest(ctx, r.Storage)
	switch {
	case err == nil:
		st.IndexedWith = &indexed
	case !errors.Is(err, storage.ErrNotFound):
		return nil, err
	}
	return st, nil
}

// ReadManifest loads the manifest written at ingestion.
func ReadManifest(ctx context.Context, s storage.Storage) (embedding.Manifest, error) {
	entries := make(map[string]string, 3)
	for _, key := range []string{embedding.MetaProvider, embedding.MetaModel, embedding.MetaDimensions} {
		v, err := s.GetMeta(ctx, key)
		if err != nil {
			return embedding.Manifest{}, err
		}
		entries[key] = v
	}
	return embedding.ManifestFromEntries(entries)
}
