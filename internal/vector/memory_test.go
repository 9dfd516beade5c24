package vector

import (
	"context"
	"encoding/binary"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestMemoryIndex_AddSearch(t *testing.T) {
	idx, err := NewMemoryIndex(3)
	if err != nil {
		t.Fatal(err)
	}
	defer idx.Close()
	ctx := context.Background()

	vecs := [][]float32{
		{0, 1, 0},
		{0.9, 0.1, 0},
		{1, 0, 0},
	}
	if err := idx.Add(ctx, []string{"c", "b", "a"}, vecs); err != nil {
		t.Fatal(err)
	}
	if idx.Size() != 3 || idx.Dimensions() != 3 {
		t.Errorf("Size=%d Dimensions=%d", idx.Size(), idx.Dimensions())
	}

	results, err := idx.Search(ctx, []float32{1, 0, 0}, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].ID != "a" || results[1].ID != "b" {
		t.Errorf("unexpected order: %+v", results)
	}
	if results[0].Score < results[1].Score {
		t.Error("results not sorted by score")
	}

	all, _ := idx.Search(ctx, []float32{1, 0, 0}, 50)
	if len(all) != 3 {
		t.Errorf("k above size should return all, got %d", len(all))
	}
}

func TestMemoryIndex_Errors(t *testing.T) {
	if _, err := NewMemoryIndex(0); err == nil {
		t.Error("expected error for zero dimensions")
	}
	idx, _ := NewMemoryIndex(2)
	ctx := context.Background()

	if err := idx.Add(ctx, []string{"x"}, [][]float32{{1, 0, 0}}); !errors.Is(err, ErrDimensionMismatch) {
		t.Errorf("expected ErrDimensionMismatch, got %v", err)
	}
	if err := idx.Add(ctx, []string{"x", "y"}, [][]float32{{1, 0}}); err == nil {
		t.Error("expected length mismatch error")
	}
	if _, err := idx.Search(ctx, []float32{1}, 1); !errors.Is(err, ErrDimensionMismatch) {
		t.Errorf("expected ErrDimensionMismatch, got %v", err)
	}
	res, err := idx.Search(ctx, []float32{1, 0}, 3)
	if err != nil || len(res) != 0 {
		t.Errorf("empty index search = %v, %v", res, err)
	}
}

func TestMemoryIndex_SaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "vectors.bin")
	ctx := context.Background()

	idx, _ := NewMemoryIndex(2)
	_ = idx.Add(ctx, []string{"chunk-α", "chunk-b"}, [][]float32{{0.6, 0.8}, {1, 0}})
	if err := idx.Save(path); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Error("temp file should be renamed away")
	}

	loaded, _ := NewMemoryIndex(2)
	if err := loaded.Load(path); err != nil {
		t.Fatal(err)
	}
	if loaded.Size() != 2 {
		t.Fatalf("loaded size = %d", loaded.Size())
	}
	res, _ := loaded.Search(ctx, []float32{0.6, 0.8}, 1)
	if res[0].ID != "chunk-α" {
		t.Errorf("got %s", res[0].ID)
	}

	wrong, _ := NewMemoryIndex(3)
	if err := wrong.Load(path); !errors.Is(err, ErrDimensionMismatch) {
		t.Errorf("expected ErrDimensionMismatch, got %v", err)
	}

	missing, _ := NewMemoryIndex(2)
	if err := missing.Load(filepath.Join(t.TempDir(), "none.bin")); err != nil {
		t.Errorf("missing file should not error: %v", err)
	}
	if missing.Size() != 0 {
		t.Error("missing file should leave index empty")
	}

	garbage := filepath.Join(t.TempDir(), "garbage.bin")
	_ = os.WriteFile(garbage, []byte("nope nope nope"), 0644)
	if err := missing.Load(garbage); err == nil {
		t.Error("expected error for bad magic")
	}
}

func TestMemoryIndex_LoadCorruptCounts(t *testing.T) {
	header := func(dims, count uint32) []byte {
		b := append([]byte(nil), magic[:]...)
		b = binary.LittleEndian.AppendUint32(b, dims)
		return binary.LittleEndian.AppendUint32(b, count)
	}
	tests := []struct {
		name string
		data []byte
	}{
		{"count beyond file size", header(2, 0xFFFFFFFF)},
		{"truncated entry", append(header(2, 1), 0, 0)},
		{"oversized id length", append(append(header(2, 1), 0xFF, 0xFF, 0xFF, 0x7F), make([]byte, 8)...)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "vectors.bin")
			if err := os.WriteFile(path, tt.data, 0644); err != nil {
				t.Fatal(err)
			}
			idx, _ := NewMemoryIndex(2)
			if err := idx.Load(path); err == nil {
				t.Error("expected error for corrupt index file")
			}
			if idx.Size() != 0 {
				t.Errorf("size = %d after failed load", idx.Size())
			}
		})
	}
}

func TestMemoryIndex_Reset(t *testing.T) {
	idx, _ := NewMemoryIndex(2)
	_ = idx.Add(context.Background(), []string{"x", "y"}, [][]float32{{1, 0}, {0, 1}})
	idx.Reset()
	if idx.Size() != 0 {
		t.Errorf("expected size 0, got %d", idx.Size())
	}
}
