package indexer

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/hyperjump/copilot/internal/embedding"
	"github.com/hyperjump/copilot/internal/keyword"
	"github.com/hyperjump/copilot/internal/storage"
	"github.com/hyperjump/copilot/internal/vector"
)

const dims = 64

type fixture struct {
	indexer  *Indexer
	store    *storage.SQLiteStorage
	vectors  *vector.MemoryIndex
	keywords *keyword.BleveIndex
	corpus   string
	vecPath  string
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
}

func newFixture(t *testing.T, embedDims int) *fixture {
	t.Helper()
	dir := t.TempDir()
	corpus := filepath.Join(dir, "corpus")
	writeFile(t, filepath.Join(corpus, "sop", "sop_phishing.md"),
		"# Phishing\n\nForward the suspicious email to the security team.\n\nDo not click any link.")
	writeFile(t, filepath.Join(corpus, "policy_pii_handling.md"),
		"# PII handling\n\nNever ask a customer for an OTP, PIN or password.")
	writeFile(t, filepath.Join(corpus, "empty.md"), "  \n\n ")
	writeFile(t, filepath.Join(corpus, "notes.txt"), "not part of the corpus")
	writeFile(t, filepath.Join(corpus, ".drafts", "draft.md"), "hidden draft")

	store, err := storage.NewSQLiteStorage(filepath.Join(dir, "copilot.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = store.Close() })
	vecIndex, err := vector.NewMemoryIndex(dims)
	if err != nil {
		t.Fatal(err)
	}
	kwIndex, err := keyword.NewMemBleveIndex()
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = kwIndex.Close() })

	vecPath := filepath.Join(dir, "vectors.bin")
	manifest := embedding.Manifest{Provider: "mock", Model: "mock", Dimensions: embedDims}
	idx := NewIndexer(store, embedding.NewMockEmbedder(embedDims), manifest, vecIndex, kwIndex,
		WithChunker(NewChunker(40, 5)), WithVectorPath(vecPath))
	return &fixture{indexer: idx, store: store, vectors: vecIndex, keywords: kwIndex, corpus: corpus, vecPath: vecPath}
}

func TestBuild(t *testing.T) {
	f := newFixture(t, dims)
	ctx := context.Background()

	report, err := f.indexer.Build(ctx, f.corpus, []string{".md"})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if report.Documents != 2 {
		t.Errorf("documents = %d, want 2", report.Documents)
	}
	if len(report.Skipped) != 1 || report.Skipped[0] != "corpus/empty.md" {
		t.Errorf("skipped = %v", report.Skipped)
	}
	chunks, _ := f.store.CountChunks(ctx)
	if int(chunks) != report.Chunks || f.vectors.Size() != report.Chunks {
		t.Errorf("chunks: report=%d storage=%d vectors=%d", report.Chunks, chunks, f.vectors.Size())
	}
	if n, _ := f.keywords.DocCount(); int(n) != report.Chunks {
		t.Errorf("keyword docs = %d, want %d", n, report.Chunks)
	}

	results, err := f.keywords.Search(ctx, "phishing", 4)
	if err != nil || len(results) == 0 {
		t.Fatalf("keyword search: %v, %d hits", err, len(results))
	}
	chunk, err := f.store.GetChunk(ctx, results[0].ID)
	if err != nil {
		t.Fatal(err)
	}
	if chunk.Source != "corpus/sop/sop_phishing.md" {
		t.Errorf("source = %s", chunk.Source)
	}

	if v, err := f.store.GetMeta(ctx, embedding.MetaProvider); err != nil || v != "mock" {
		t.Errorf("manifest provider = %q, %v", v, err)
	}
	if _, err := os.Stat(f.vecPath); err != nil {
		t.Errorf("vector index not saved: %v", err)
	}
	loaded, _ := vector.NewMemoryIndex(dims)
	if err := loaded.Load(f.vecPath); err != nil || loaded.Size() != report.Chunks {
		t.Errorf("reloaded size = %d, %v", loaded.Size(), err)
	}
}

func TestBuild_RebuildReplaces(t *testing.T) {
	f := newFixture(t, dims)
	ctx := context.Background()
	first, err := f.indexer.Build(ctx, f.corpus, []string{".md"})
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Remove(filepath.Join(f.corpus, "policy_pii_handling.md")); err != nil {
		t.Fatal(err)
	}
	second, err := f.indexer.Build(ctx, f.corpus, []string{".md"})
	if err != nil {
		t.Fatal(err)
	}
	if second.Documents != 1 || second.Chunks >= first.Chunks {
		t.Errorf("rebuild: first=%+v second=%+v", first, second)
	}
	docs, _ := f.store.CountDocuments(ctx)
	if docs != 1 || f.vectors.Size() != second.Chunks {
		t.Errorf("stale data after rebuild: docs=%d vectors=%d", docs, f.vectors.Size())
	}
}

func TestBuild_AllExtensions(t *testing.T) {
	f := newFixture(t, dims)
	report, err := f.indexer.Build(context.Background(), f.corpus, nil)
	if err != nil {
		t.Fatal(err)
	}
	if report.Documents != 3 {
		t.Errorf("documents = %d, want 3 (md + txt)", report.Documents)
	}
}

func TestBuild_Errors(t *testing.T) {
	ctx := context.Background()

	f := newFixture(t, dims)
	if _, err := f.indexer.Build(ctx, filepath.Join(f.corpus, "missing"), nil); err == nil {
		t.Error("expected error for missing corpus")
	}
	if _, err := f.indexer.Build(ctx, f.corpus, []string{".pdf"}); !errors.Is(err, ErrEmptyCorpus) {
		t.Errorf("err = %v, want ErrEmptyCorpus", err)
	}

	mismatched := newFixture(t, dims/2)
	if _, err := mismatched.indexer.Build(ctx, mismatched.corpus, []string{".md"}); !errors.Is(err, vector.ErrDimensionMismatch) {
		t.Errorf("err = %v, want ErrDimensionMismatch", err)
	}
}

func TestSourcePath(t *testing.T) {
	root := filepath.Join("srv", "kb", "corpus")
	tests := []struct {
		path string
		want string
	}{
		{filepath.Join(root, "policy_pii_handling.md"), "corpus/policy_pii_handling.md"},
		{filepath.Join(root, "sop", "sop_phishing.md"), "corpus/sop/sop_phishing.md"},
	}
	for _, tt := range tests {
		if got := SourcePath(root, tt.path); got != tt.want {
			t.Errorf("SourcePath(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}
}

func TestExtensionAllowed(t *testing.T) {
	tests := []struct {
		ext     string
		allowed []string
		want    bool
	}{
		{".md", []string{".md"}, true},
		{".MD", []string{"md"}, true},
		{".txt", []string{".md"}, false},
		{"", []string{".md"}, false},
		{".pdf", nil, true},
	}
	for _, tt := range tests {
		if got := ExtensionAllowed(tt.ext, tt.allowed); got != tt.want {
			t.Errorf("ExtensionAllowed(%q, %v) = %v, want %v", tt.ext, tt.allowed, got, tt.want)
		}
	}
}
