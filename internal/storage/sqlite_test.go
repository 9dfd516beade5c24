package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/hyperjump/copilot/internal/models"
)

func newTestStorage(t *testing.T) *SQLiteStorage {
	t.Helper()
	store, err := NewSQLiteStorage(filepath.Join(t.TempDir(), "sub", "test.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestSQLiteStorage_Documents(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	doc := &models.Document{ID: "doc1", Source: "corpus/sop/sop_phishing.md", Title: "Phishing", Content: "body"}
	if err := store.CreateDocument(ctx, doc); err != nil {
		t.Fatal(err)
	}
	if doc.CreatedAt.IsZero() {
		t.Error("CreatedAt should be set")
	}

	got, err := store.GetDocument(ctx, "doc1")
	if err != nil {
		t.Fatal(err)
	}
	if got.Source != doc.Source || got.Content != "body" {
		t.Errorf("got %+v", got)
	}

	dup := &models.Document{ID: "doc2", Source: doc.Source, Content: "x"}
	if err := store.CreateDocument(ctx, dup); err == nil {
		t.Error("expected unique source violation")
	}

	if _, err := store.GetDocument(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	list, err := store.ListDocuments(ctx, 0, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 1 {
		t.Errorf("expected 1 doc, got %d", len(list))
	}
}

func TestSQLiteStorage_Chunks(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	if err := store.CreateDocument(ctx, &models.Document{ID: "d", Source: "corpus/a.md", Content: "x"}); err != nil {
		t.Fatal(err)
	}
	chunks := []*models.DocumentChunk{
		{ID: "c1", DocumentID: "d", Source: "corpus/a.md", Content: "one", ChunkIndex: 0},
		{ID: "c0", DocumentID: "d", Source: "corpus/a.md", Content: "two", ChunkIndex: 1},
	}
	if err := store.BatchCreateChunks(ctx, chunks); err != nil {
		t.Fatal(err)
	}

	got, err := store.GetChunk(ctx, "c0")
	if err != nil {
		t.Fatal(err)
	}
	if got.Source != "corpus/a.md" || got.Content != "two" {
		t.Errorf("got %+v", got)
	}
	if p := got.Passage(); p.ChunkID != "c0" || p.Source != "corpus/a.md" {
		t.Errorf("Passage() = %+v", p)
	}

	byDoc, err := store.GetChunksByDocumentID(ctx, "d")
	if err != nil {
		t.Fatal(err)
	}
	if len(byDoc) != 2 || byDoc[0].ID != "c1" {
		t.Errorf("chunks not ordered by index: %+v", byDoc)
	}

	if _, err := store.GetChunk(ctx, "nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	n, err := store.CountChunks(ctx)
	if err != nil || n != 2 {
		t.Errorf("CountChunks = %d, %v", n, err)
	}
	n, err = store.CountDocuments(ctx)
	if err != nil || n != 1 {
		t.Errorf("CountDocuments = %d, %v", n, err)
	}
}

func TestSQLiteStorage_MetaAndReset(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	if _, err := store.GetMeta(ctx, "embedding.model"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if err := store.SetMeta(ctx, "embedding.model", "a"); err != nil {
		t.Fatal(err)
	}
	if err := store.SetMeta(ctx, "embedding.model", "b"); err != nil {
		t.Fatal(err)
	}
	v, err := store.GetMeta(ctx, "embedding.model")
	if err != nil || v != "b" {
		t.Errorf("GetMeta = %q, %v", v, err)
	}

	if err := store.CreateDocument(ctx, &models.Document{ID: "d", Source: "s", Content: "x"}); err != nil {
		t.Fatal(err)
	}
	if err := store.BatchCreateChunks(ctx, []*models.DocumentChunk{{ID: "c", DocumentID: "d", Source: "s", Content: "x"}}); err != nil {
		t.Fatal(err)
	}
	if err := store.Reset(ctx); err != nil {
		t.Fatal(err)
	}
	for _, count := range []func(context.Context) (int64, error){store.CountDocuments, store.CountChunks} {
		n, err := count(ctx)
		if err != nil || n != 0 {
			t.Errorf("after reset: %d, %v", n, err)
		}
	}
	if _, err := store.GetMeta(ctx, "embedding.model"); !errors.Is(err, ErrNotFound) {
		t.Errorf("meta should be cleared, got %v", err)
	}
}
