package vectorindex

import (
	"context"
	"math"
	"testing"
)

func TestCosineSimilarity(t *testing.T) {
	tests := []struct {
		name string
		a, b []float32
		want float64
	}{
		{"identical", []float32{1, 0, 0}, []float32{1, 0, 0}, 1.0},
		{"orthogonal", []float32{1, 0, 0}, []float32{0, 1, 0}, 0.0},
		{"opposite", []float32{1, 0, 0}, []float32{-1, 0, 0}, -1.0},
		{"scaled", []float32{2, 0, 0}, []float32{5, 0, 0}, 1.0},
		{"zero vector", []float32{0, 0, 0}, []float32{1, 0, 0}, 0.0},
		{"length mismatch", []float32{1, 0}, []float32{1, 0, 0}, 0.0},
	}
	for _, tt := range tests {
		got := CosineSimilarity(tt.a, tt.b)
		if math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("%s: got %.6f want %.6f", tt.name, got, tt.want)
		}
	}
}

func TestMemoryIndexQueryOrderAndTopK(t *testing.T) {
	ctx := context.Background()
	idx := NewMemoryIndex(3)

	recs := []Record{
		{ID: "a", Vector: []float32{1, 0, 0}, Metadata: Metadata{SpeakerName: "Alice"}},
		{ID: "b", Vector: []float32{0, 1, 0}, Metadata: Metadata{SpeakerName: "Bob"}},
		{ID: "c", Vector: []float32{0.9, 0.1, 0}, Metadata: Metadata{SpeakerName: "Alice"}},
	}
	for _, r := range recs {
		if err := idx.Upsert(ctx, r); err != nil {
			t.Fatalf("Upsert(%s) failed: %v", r.ID, err)
		}
	}

	got, err := idx.Query(ctx, []float32{0.95, 0.05, 0}, 2, nil)
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 matches, got %d", len(got))
	}
	if got[0].ID != "c" {
		t.Errorf("top match: got %s want c", got[0].ID)
	}
	if got[0].Score < got[1].Score {
		t.Errorf("matches not sorted by score: %.4f < %.4f", got[0].Score, got[1].Score)
	}
}

func TestMemoryIndexFilter(t *testing.T) {
	ctx := context.Background()
	idx := NewMemoryIndex(3)

	_ = idx.Upsert(ctx, Record{ID: "a", Vector: []float32{1, 0, 0}, Metadata: Metadata{SpeakerName: "Alice"}})
	_ = idx.Upsert(ctx, Record{ID: "b", Vector: []float32{1, 0, 0}, Metadata: Metadata{SpeakerName: "Bob"}})

	got, err := idx.Query(ctx, []float32{1, 0, 0}, 10, &Filter{SpeakerName: "Bob"})
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if len(got) != 1 || got[0].ID != "b" {
		t.Fatalf("filtered query: got %+v, want only b", got)
	}
}

func TestMemoryIndexUpsertFetchDelete(t *testing.T) {
	ctx := context.Background()
	idx := NewMemoryIndex(3)

	if err := idx.Upsert(ctx, Record{ID: "a", Vector: []float32{1, 2}}); err == nil {
		t.Error("expected dimension error on upsert")
	}

	rec := Record{ID: "a", Vector: []float32{1, 2, 3}, Metadata: Metadata{SpeakerName: "Alice", AutoUpdated: true}}
	if err := idx.Upsert(ctx, rec); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}

	got, err := idx.Fetch(ctx, "a", "missing")
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if len(got) != 1 || got[0].Metadata.SpeakerName != "Alice" || !got[0].Metadata.AutoUpdated {
		t.Fatalf("Fetch returned %+v", got)
	}

	if err := idx.Delete(ctx, "a"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if idx.Len() != 0 {
		t.Errorf("expected empty index after delete, len=%d", idx.Len())
	}
}
