// Package embedding turns text into unit-length vectors for the vector index.
package embedding

import (
	"context"
	"fmt"
	"strconv"
)

// Embedder produces vector embeddings for text.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
	Close() error
}

// Manifest identifies the embedding space an index was built in. Queries embedded in a
// different space still return results, only worse ones, so the manifest is stored with
// the index and compared at startup.
type Manifest struct {
	Provider   string `json:"provider"`
	Model      string `json:"model"`
	Dimensions int    `json:"dimensions"`
}

// Manifest metadata keys.
const (
	MetaProvider   = "embedding.provider"
	MetaModel      = "embedding.model"
	MetaDimensions = "embedding.dimensions"
)

// Entries returns the manifest as metadata key/value pairs.
func (m Manifest) Entries() map[string]string {
	return map[string]string{
		MetaProvider:   m.Provider,
		MetaModel:      m.Model,
		MetaDimensions: strconv.Itoa(m.Dimensions),
	}
}

// ManifestFromEntries rebuilds a manifest from metadata written by Entries.
func ManifestFromEntries(entries map[string]string) (Manifest, error) {
	dims, err := strconv.Atoi(entries[MetaDimensions])
	if err != nil {
		return Manifest{}, fmt.Errorf("invalid %s: %w", MetaDimensions, err)
	}
	return Manifest{
		Provider:   entries[MetaProvider],
		Model:      entries[MetaModel],
		Dimensions: dims,
	}, nil
}

// Mismatch describes how other differs from m, or returns "" when they match.
func (m Manifest) Mismatch(other Manifest) string {
	switch {
	case m.Provider != other.Provider:
		return fmt.Sprintf("provider %q != %q", m.Provider, other.Provider)
	case m.Model != other.Model:
		return fmt.Sprintf("model %q != %q", m.Model, other.Model)
	case m.Dimensions != other.Dimensions:
		return fmt.Sprintf("dimensions %d != %d", m.Dimensions, other.Dimensions)
	}
	return ""
}

func embedEach(ctx context.Context, e Embedder, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		emb, err := e.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		out[i] = emb
	}
	return out, nil
}
