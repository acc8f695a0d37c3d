package kb

import (
	"context"
	"path/filepath"
	"testing"
)

func testKBStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(filepath.Join(t.TempDir(), "kb.db"))
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestEmbeddingRoundTrip(t *testing.T) {
	orig := []float32{0.25, -1.5, 3.0, 0}
	blob := encodeEmbedding(orig)
	if len(blob) != 16 {
		t.Fatalf("blob length = %d, want 16", len(blob))
	}

	got, err := decodeEmbedding(blob)
	if err != nil {
		t.Fatalf("decodeEmbedding: %v", err)
	}
	for i := range orig {
		if got[i] != orig[i] {
			t.Errorf("element %d = %v, want %v", i, got[i], orig[i])
		}
	}
}

func TestDecodeEmbedding_Invalid(t *testing.T) {
	if _, err := decodeEmbedding(nil); err == nil {
		t.Error("empty blob should error")
	}
	if _, err := decodeEmbedding([]byte{1, 2, 3}); err == nil {
		t.Error("misaligned blob should error")
	}
}

func TestStoreSearch(t *testing.T) {
	s := testKBStore(t)
	ctx := context.Background()

	add := func(content string, emb []float32) {
		t.Helper()
		if err := s.Add(ctx, Passage{Source: "policies.md", Content: content}, emb); err != nil {
			t.Fatalf("Add: %v", err)
		}
	}
	add("Returns accepted within 30 days.", []float32{1, 0, 0})
	add("Suppliers ship on Tuesdays.", []float32{0, 1, 0})
	add("Warehouse opens at 8am.", []float32{0, 0, 1})

	got, err := s.Search(ctx, []float32{0.9, 0.1, 0}, 2)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d passages, want 2", len(got))
	}
	if got[0].Content != "Returns accepted within 30 days." {
		t.Errorf("best match = %q", got[0].Content)
	}
	if got[0].Score <= got[1].Score {
		t.Errorf("results not ordered by score: %v, %v", got[0].Score, got[1].Score)
	}
}

func TestStoreDeleteBySource(t *testing.T) {
	s := testKBStore(t)
	ctx := context.Background()

	s.Add(ctx, Passage{Source: "a.md", Content: "alpha"}, []float32{1})
	s.Add(ctx, Passage{Source: "b.md", Content: "beta"}, []float32{1})

	if err := s.DeleteBySource(ctx, "a.md"); err != nil {
		t.Fatalf("DeleteBySource: %v", err)
	}

	n, err := s.Count()
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if n != 1 {
		t.Errorf("Count = %d, want 1", n)
	}
}
