package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/hyperjump/copilot/internal/config"
	"github.com/hyperjump/copilot/internal/embedding"
	"github.com/hyperjump/copilot/internal/gate"
	"github.com/hyperjump/copilot/internal/generation"
	"github.com/hyperjump/copilot/internal/guard"
	"github.com/hyperjump/copilot/internal/indexer"
	"github.com/hyperjump/copilot/internal/keyword"
	"github.com/hyperjump/copilot/internal/metrics"
	"github.com/hyperjump/copilot/internal/pipeline"
	"github.com/hyperjump/copilot/internal/prompt"
	"github.com/hyperjump/copilot/internal/retrieval"
	"github.com/hyperjump/copilot/internal/server"
	"github.com/hyperjump/copilot/internal/storage"
	"github.com/hyperjump/copilot/internal/vector"
)

// mode selects which components a command needs.
type mode int

const (
	modeServe mode = iota
	modeIngest
	modeStatus
)

// Components holds initialized services.
type Components struct {
	Storage      storage.Storage
	Embedder     embedding.Embedder
	Manifest     embedding.Manifest
	VectorIndex  *vector.MemoryIndex
	KeywordIndex *keyword.BleveIndex
	Generator    *generation.OllamaGenerator
	Pipeline     *pipeline.Pipeline
	Indexer      *indexer.Indexer
	Registry     *prometheus.Registry
	Reporter     *server.IndexReporter
}

// Close releases every opened resource.
func (c *Components) Close() {
	if c.Storage != nil {
		_ = c.Storage.Close()
	}
	if c.Embedder != nil {
		_ = c.Embedder.Close()
	}
	if c.VectorIndex != nil {
		_ = c.VectorIndex.Close()
	}
	if c.KeywordIndex != nil {
		_ = c.KeywordIndex.Close()
	}
}

func embeddingConfig(cfg *config.Config) embedding.Config {
	return embedding.Config{
		Provider:   cfg.Embedding.Provider,
		Model:      cfg.Embedding.Model,
		Dimensions: cfg.Embedding.Dimensions,
		CacheSize:  cfg.Embedding.CacheSize,
		ONNX: embedding.ONNXConfig{
			ModelPath:   cfg.Embedding.ModelPath,
			VocabPath:   cfg.Embedding.VocabPath,
			LibraryPath: cfg.Embedding.LibraryPath,
			MaxTokens:   cfg.Embedding.MaxTokens,
		},
		Ollama: embedding.OllamaConfig{
			ServerURL: cfg.Embedding.OllamaURL,
			BatchSize: cfg.Embedding.BatchSize,
		},
	}
}

// initializeComponents opens what m needs. Serving loads the persisted vector index and
// only opens Bleve for the keyword backend, so status and ask do not contend for its lock.
func initializeComponents(cfg *config.Config, logger *zap.Logger, m mode) (_ *Components, err error) {
	c := &Components{}
	defer func() {
		if err != nil {
			c.Close()
		}
	}()

	if c.Storage, err = storage.NewSQLiteStorage(cfg.Storage.DatabasePath); err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	keywordBackend := cfg.Retrieval.Backend == "keyword"
	if m == modeIngest || (m == modeServe && keywordBackend) {
		if c.KeywordIndex, err = keyword.NewBleveIndex(cfg.Storage.BleveIndexPath); err != nil {
			return nil, fmt.Errorf("failed to initialize keyword index: %w", err)
		}
	}

	if m == modeIngest || (m == modeServe && !keywordBackend) {
		if c.Embedder, c.Manifest, err = embedding.New(embeddingConfig(cfg)); err != nil {
			return nil, fmt.Errorf("failed to initialize embedder: %w", err)
		}
		logger.Info("embedder initialized",
			zap.String("provider", c.Manifest.Provider),
			zap.String("model", c.Manifest.Model),
			zap.Int("dimensions", c.Manifest.Dimensions))
	} else {
		c.Manifest = embedding.Manifest{Provider: cfg.Embedding.Provider, Model: cfg.Embedding.Model, Dimensions: cfg.Embedding.Dimensions}
	}

	if c.VectorIndex, err = vector.NewMemoryIndex(c.Manifest.Dimensions); err != nil {
		return nil, fmt.Errorf("failed to initialize vector index: %w", err)
	}
	if m != modeIngest {
		if loadErr := c.VectorIndex.Load(cfg.Storage.VectorIndexPath); loadErr != nil {
			logger.Warn("vector index not loaded; run ingest", zap.String("path", cfg.Storage.VectorIndexPath), zap.Error(loadErr))
		}
		checkManifest(c.Storage, c.Manifest, logger)
	}

	c.Reporter = &server.IndexReporter{
		Storage:   c.Storage,
		Index:     c.VectorIndex,
		Manifest:  c.Manifest,
		Backend:   cfg.Retrieval.Backend,
		Relevance: cfg.Retrieval.Relevance,
		Threshold: cfg.Retrieval.Threshold(),
		Generator: cfg.Generation.Model,
		Paths: map[string]string{
			"database": cfg.Storage.DatabasePath,
			"vectors":  cfg.Storage.VectorIndexPath,
			"keyword":  cfg.Storage.BleveIndexPath,
		},
	}

	switch m {
	case modeIngest:
		c.Indexer = indexer.NewIndexer(c.Storage, c.Embedder, c.Manifest, c.VectorIndex, c.KeywordIndex,
			indexer.WithLogger(logger),
			indexer.WithChunker(indexer.NewChunker(cfg.Ingest.ChunkSize, cfg.Ingest.ChunkOverlap)),
			indexer.WithVectorPath(cfg.Storage.VectorIndexPath),
		)
	case modeServe:
		if err := c.buildPipeline(cfg, logger); err != nil {
			return nil, err
		}
	}
	return c, nil
}

func (c *Components) buildPipeline(cfg *config.Config, logger *zap.Logger) error {
	retrievalOpts := []retrieval.Option{
		retrieval.WithLogger(logger),
		retrieval.WithTopK(cfg.Retrieval.DefaultTopK, cfg.Retrieval.MaxTopK),
	}
	var r retrieval.Retriever
	if cfg.Retrieval.Backend == "keyword" {
		r = retrieval.NewKeywordRetriever(c.KeywordIndex, c.Storage, retrievalOpts...)
	} else {
		relevance, err := retrieval.ParseRelevance(cfg.Retrieval.Relevance)
		if err != nil {
			return err
		}
		r = retrieval.NewVectorRetriever(c.Embedder, c.VectorIndex, c.Storage, relevance, retrievalOpts...)
	}

	c.Registry = prometheus.NewRegistry()
	c.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m, err := metrics.New(c.Registry)
	if err != nil {
		return fmt.Errorf("failed to register metrics: %w", err)
	}

	c.Generator = generation.NewOllamaGenerator(generation.OllamaConfig{
		BaseURL: cfg.Generation.BaseURL,
		Model:   cfg.Generation.Model,
		Timeout: cfg.Generation.Timeout,
	}, logger)

	c.Pipeline = pipeline.New(r, gate.New(cfg.Retrieval.Threshold()), c.Generator,
		pipeline.WithLogger(logger),
		pipeline.WithMetrics(m),
		pipeline.WithDetector(guard.NewDetector(cfg.Guard.ExtraKeywords...)),
		pipeline.WithComposer(prompt.NewComposer(cfg.Policy.PassageChars)),
		pipeline.WithRefusalCitations(cfg.Policy.RefusalCitations...),
		pipeline.WithPreviewChars(cfg.Policy.PreviewChars),
	)
	return nil
}

// checkManifest warns when the index was built with a different embedding space.
// Queries still run; results from a mismatched space are unreliable.
func checkManifest(store storage.Storage, want embedding.Manifest, logger *zap.Logger) {
	got, err := server.ReadManifest(context.Background(), store)
	if errors.Is(err, storage.ErrNotFound) {
		return
	}
	if err != nil {
		logger.Warn("failed to read index manifest", zap.Error(err))
		return
	}
	if msg := want.Mismatch(got); msg != "" {
		logger.Warn("index was built with a different embedding model; re-run ingest",
			zap.String("mismatch", msg))
	}
}
