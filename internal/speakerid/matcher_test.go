package speakerid

import (
	"context"
	"errors"
	"testing"

	"github.com/banddude/voiceid/internal/vectorindex"
)

func TestMatchSegmentShortClipSkipped(t *testing.T) {
	ctx := context.Background()
	emb := &failingEmbedder{}
	idx := &spyIndex{Index: vectorindex.NewMemoryIndex(3)}
	m := NewMatcher(emb, idx, quietLogger())

	res := m.MatchSegment(ctx, testClip(500), 0.40)

	if res.Matched() || res.Score != 0 {
		t.Errorf("expected null result for 500ms clip, got %+v", res)
	}
	if emb.calls.Load() != 0 {
		t.Errorf("embedder must not be called for short clips, got %d calls", emb.calls.Load())
	}
	if idx.queries.Load() != 0 {
		t.Errorf("index must not be queried for short clips, got %d queries", idx.queries.Load())
	}
}

func TestMatchSegmentAccepted(t *testing.T) {
	ctx := context.Background()
	mem := vectorindex.NewMemoryIndex(3)
	refAlice(mem)

	emb := &durEmbedder{byDur: map[int64][]float32{2000: vecWithCos(0.55)}}
	m := NewMatcher(emb, mem, quietLogger())

	res := m.MatchSegment(ctx, testClip(2000), 0.40)

	if res.SpeakerName != "Alice" {
		t.Fatalf("expected Alice, got %q", res.SpeakerName)
	}
	if !almostEqual(res.Score, 0.55) {
		t.Errorf("score: got %.4f want 0.55", res.Score)
	}
	if res.ReferenceID == "" {
		t.Error("expected reference id on accepted match")
	}
	if res.Embedding == nil {
		t.Error("expected embedding on accepted match")
	}
}

func TestMatchSegmentBelowThreshold(t *testing.T) {
	ctx := context.Background()
	mem := vectorindex.NewMemoryIndex(3)
	refAlice(mem)

	emb := &durEmbedder{byDur: map[int64][]float32{2000: vecWithCos(0.30)}}
	m := NewMatcher(emb, mem, quietLogger())

	res := m.MatchSegment(ctx, testClip(2000), 0.40)

	if res.Matched() {
		t.Fatalf("expected null match, got %q", res.SpeakerName)
	}
	// score still reports the top-1 similarity
	if !almostEqual(res.Score, 0.30) {
		t.Errorf("score: got %.4f want 0.30", res.Score)
	}
}

func TestMatchThresholdMonotonic(t *testing.T) {
	ctx := context.Background()
	mem := vectorindex.NewMemoryIndex(3)
	refAlice(mem)

	emb := &durEmbedder{byDur: map[int64][]float32{2000: vecWithCos(0.55)}}
	m := NewMatcher(emb, mem, quietLogger())

	matchedAt := func(threshold float64) bool {
		return m.MatchSegment(ctx, testClip(2000), threshold).Matched()
	}

	prev := true
	for _, thr := range []float64{0.10, 0.40, 0.55, 0.56, 0.90} {
		got := matchedAt(thr)
		if got && !prev {
			t.Fatalf("raising threshold to %.2f turned a null match into an accepted one", thr)
		}
		prev = got
	}
}

func TestMatchSegmentEmbedderFailureDegrades(t *testing.T) {
	ctx := context.Background()
	mem := vectorindex.NewMemoryIndex(3)
	refAlice(mem)

	m := NewMatcher(&failingEmbedder{}, mem, quietLogger())
	res := m.MatchSegment(ctx, testClip(2000), 0.40)

	if res.Matched() || res.Score != 0 {
		t.Errorf("expected null result with score 0 after embedder failure, got %+v", res)
	}
}

func TestMatchSegmentIndexFailureDegrades(t *testing.T) {
	ctx := context.Background()
	idx := &spyIndex{
		Index:    vectorindex.NewMemoryIndex(3),
		queryErr: errors.New("index down"),
	}

	emb := &durEmbedder{byDur: map[int64][]float32{2000: vecWithCos(0.55)}}
	m := NewMatcher(emb, idx, quietLogger())

	res := m.MatchSegment(ctx, testClip(2000), 0.40)
	if res.Matched() || res.Score != 0 {
		t.Errorf("expected null result with score 0 after index failure, got %+v", res)
	}
}

func TestMatchSegmentEmptyIndex(t *testing.T) {
	ctx := context.Background()
	emb := &durEmbedder{byDur: map[int64][]float32{2000: vecWithCos(0.55)}}
	m := NewMatcher(emb, vectorindex.NewMemoryIndex(3), quietLogger())

	res := m.MatchSegment(ctx, testClip(2000), 0.40)
	if res.Matched() {
		t.Errorf("expected null match against empty index, got %q", res.SpeakerName)
	}
}
