package indexer

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hyperjump/copilot/internal/embedding"
	"github.com/hyperjump/copilot/internal/extract"
	"github.com/hyperjump/copilot/internal/keyword"
	"github.com/hyperjump/copilot/internal/models"
	"github.com/hyperjump/copilot/internal/storage"
	"github.com/hyperjump/copilot/internal/vector"
	"github.com/hyperjump/copilot/pkg/utils"
)

// ErrEmptyCorpus is returned when a build finds no indexable text.
var ErrEmptyCorpus = errors.New("corpus contains no indexable documents")

// Metadata keys written by a build, next to the embedding manifest.
const (
	MetaCorpus  = "ingest.corpus"
	MetaBuiltAt = "ingest.built_at"
)

// Report summarizes one build.
type Report struct {
	Documents int
	Chunks    int
	Skipped   []string
	Elapsed   time.Duration
}

// Indexer indexes a corpus into storage, the keyword index and the vector index.
type Indexer struct {
	storage      storage.Storage
	embedder     embedding.Embedder
	manifest     embedding.Manifest
	vectorIndex  vector.VectorIndex
	keywordIndex keyword.KeywordIndex
	chunker      *Chunker
	extractor    *extract.Extractor
	vectorPath   string
	logger       *zap.Logger
}

// IndexerOption configures an Indexer.
type IndexerOption func(*Indexer)

// WithLogger sets a logger for progress output.
func WithLogger(l *zap.Logger) IndexerOption {
	return func(idx *Indexer) { idx.logger = l }
}

// WithChunker replaces the default 800/120 chunker.
func WithChunker(c *Chunker) IndexerOption {
	return func(idx *Indexer) { idx.chunker = c }
}

// WithVectorPath persists the vector index to path after every build.
func WithVectorPath(path string) IndexerOption {
	return func(idx *Indexer) { idx.vectorPath = path }
}

// NewIndexer creates an indexer with the given dependencies. manifest is written to storage
// so the server can detect an index built with a different embedding model.
func NewIndexer(
	storage storage.Storage,
	embedder embedding.Embedder,
	manifest embedding.Manifest,
	vectorIndex vector.VectorIndex,
	keywordIndex keyword.KeywordIndex,
	opts ...IndexerOption,
) *Indexer {
	idx := &Indexer{
		storage:      storage,
		embedder:     embedder,
		manifest:     manifest,
		vectorIndex:  vectorIndex,
		keywordIndex: keywordIndex,
		chunker:      NewChunker(DefaultChunkSize, DefaultChunkOverlap),
		extractor:    extract.NewExtractor(),
	}
	for _, opt := range opts {
		opt(idx)
	}
	idx.logger = utils.OrNop(idx.logger)
	return idx
}

// Build rebuilds every index from the files under dir whose extension is in exts. Each
// chunk's source is the corpus-relative path prefixed with the corpus directory name,
// e.g. "corpus/sop/sop_phishing.md". Files that cannot be extracted are skipped and listed
// in the report.
func (idx *Indexer) Build(ctx context.Context, dir string, exts []string) (*Report, error) {
	start := time.Now()
	root, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("absolute path: %w", err)
	}
	files, err := idx.collect(root, exts)
	if err != nil {
		return nil, err
	}

	if err := idx.reset(ctx); err != nil {
		return nil, err
	}

	report := &Report{}
	for _, path := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		source := SourcePath(root, path)
		n, err := idx.indexFile(ctx, path, source)
		switch {
		case errors.Is(err, errSkip):
			idx.logger.Warn("skipping file", zap.String("source", source), zap.Error(err))
			report.Skipped = append(report.Skipped, source)
			continue
		case err != nil:
			return nil, fmt.Errorf("index %s: %w", source, err)
		}
		report.Documents++
		report.Chunks += n
		idx.logger.Debug("indexed file", zap.String("source", source), zap.Int("chunks", n))
	}
	if report.Documents == 0 {
		return nil, fmt.Errorf("%w: %s", ErrEmptyCorpus, root)
	}

	if err := idx.writeMeta(ctx, root); err != nil {
		return nil, err
	}
	if err := idx.vectorIndex.Save(idx.vectorPath); err != nil {
		return nil, fmt.Errorf("save vector index: %w", err)
	}
	report.Elapsed = time.Since(start)
	idx.logger.Info("corpus indexed",
		zap.String("corpus", root),
		zap.Int("documents", report.Documents),
		zap.Int("chunks", report.Chunks),
		zap.Int("skipped", len(report.Skipped)),
		zap.Duration("elapsed", report.Elapsed),
	)
	return report, nil
}

var errSkip = errors.New("not indexable")

func (idx *Indexer) indexFile(ctx context.Context, path, source string) (int, error) {
	text, err := idx.extractor.Extract(path)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", errSkip, err)
	}
	text = Preprocess(text)
	if text == "" {
		return 0, fmt.Errorf("%w: empty", errSkip)
	}

	doc := &models.Document{
		ID:      uuid.New().String(),
		Source:  source,
		Title:   filepath.Base(path),
		Content: text,
	}
	chunks, err := idx.chunker.Chunk(doc)
	if err != nil {
		return 0, err
	}
	if len(chunks) == 0 {
		return 0, fmt.Errorf("%w: no chunks", errSkip)
	}
	if err := idx.storage.CreateDocument(ctx, doc); err != nil {
		return 0, fmt.Errorf("failed to store document: %w", err)
	}

	texts := make([]string, len(chunks))
	ids := make([]string, len(chunks))
	for i, ch := range chunks {
		texts[i] = ch.Content
		ids[i] = ch.ID
	}
	embeddings, err := idx.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return 0, fmt.Errorf("failed to generate embeddings: %w", err)
	}
	for i := range chunks {
		chunks[i].Embedding = embeddings[i]
	}
	if err := idx.storage.BatchCreateChunks(ctx, chunks); err != nil {
		return 0, fmt.Errorf("failed to store chunks: %w", err)
	}
	if err := idx.vectorIndex.Add(ctx, ids, embeddings); err != nil {
		return 0, fmt.Errorf("failed to index vectors: %w", err)
	}
	if err := idx.keywordIndex.IndexChunks(ctx, chunks); err != nil {
		return 0, fmt.Errorf("failed to index keywords: %w", err)
	}
	return len(chunks), nil
}

func (idx *Indexer) reset(ctx context.Context) error {
	if err := idx.storage.Reset(ctx); err != nil {
		return fmt.Errorf("reset storage: %w", err)
	}
	if err := idx.keywordIndex.Reset(ctx); err != nil {
		return fmt.Errorf("reset keyword index: %w", err)
	}
	idx.vectorIndex.Reset()
	return nil
}

func (idx *Indexer) writeMeta(ctx context.Context, root string) error {
	entries := idx.manifest.Entries()
	entries[MetaCorpus] = root
	entries[MetaBuiltAt] = time.Now().UTC().Format(time.RFC3339)
	for k, v := range entries {
		if err := idx.storage.SetMeta(ctx, k, v); err != nil {
			return fmt.Errorf("write %s: %w", k, err)
		}
	}
	return nil
}

// collect returns the regular files under root with an allowed extension, sorted so that
// builds are reproducible.
func (idx *Indexer) collect(root string, exts []string) ([]string, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("stat corpus: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("not a directory: %s", root)
	}
	var files []string
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() {
			if path != root && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() || !ExtensionAllowed(filepath.Ext(path), exts) || !idx.extractor.Supported(filepath.Ext(path)) {
			return nil
		}
		files = append(files, path)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk corpus: %w", err)
	}
	sort.Strings(files)
	return files, nil
}

// SourcePath returns the citation path for a corpus file: the corpus directory name joined
// with the file's path relative to it, using forward slashes.
func SourcePath(root, path string) string {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		rel = filepath.Base(path)
	}
	return filepath.ToSlash(filepath.Join(filepath.Base(root), rel))
}

// ExtensionAllowed reports whether ext is in allowed, ignoring case and the leading dot.
// An empty allow list allows everything.
func ExtensionAllowed(ext string, allowed []string) bool {
	if len(allowed) == 0 {
		return true
	}
	extNorm := strings.ToLower(strings.TrimPrefix(ext, "."))
	for _, a := range allowed {
		if strings.ToLower(strings.TrimPrefix(a, ".")) == extNorm {
			return true
		}
	}
	return false
}
