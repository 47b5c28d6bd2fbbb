package speakerid

import (
	"context"
	"testing"

	"github.com/banddude/voiceid/internal/models"
	"github.com/banddude/voiceid/internal/providers/embed"
	"github.com/banddude/voiceid/internal/vectorindex"
)

func placeholderUtterances(convID string) []*models.Utterance {
	// three Speaker_A utterances, individually unconvincing
	return []*models.Utterance{
		{ID: "u1", ConversationID: convID, Ordinal: 0, StartMS: 0, EndMS: 800, Speaker: "Speaker_A", Confidence: 0.9},
		{ID: "u2", ConversationID: convID, Ordinal: 1, StartMS: 1000, EndMS: 1900, Speaker: "Speaker_A", Confidence: 0.8},
		{ID: "u3", ConversationID: convID, Ordinal: 2, StartMS: 2500, EndMS: 3000, Speaker: "Speaker_A", Confidence: 0.7},
	}
}

func newAggregator(emb embed.Provider, idx vectorindex.Index) *Aggregator {
	log := quietLogger()
	matcher := NewMatcher(emb, idx, log)
	return NewAggregator(matcher, NewEnroller(idx, log), log)
}

func TestResolveUnknownsBackPropagation(t *testing.T) {
	ctx := context.Background()
	mem := vectorindex.NewMemoryIndex(3)
	refAlice(mem)

	// combined clip duration 800+900+500 = 2200ms scores 0.62
	emb := &durEmbedder{byDur: map[int64][]float32{2200: vecWithCos(0.62)}}
	agg := newAggregator(emb, mem)

	utts := placeholderUtterances("conv1")
	fullAudio := testClip(4000)

	got := agg.ResolveUnknowns(ctx, utts, fullAudio, 0.40, 0.50)

	for i, u := range got {
		if u.Speaker != "Alice" {
			t.Errorf("utterance %d: speaker %q want Alice", i, u.Speaker)
		}
		if !almostEqual(u.Confidence, 0.62) {
			t.Errorf("utterance %d: confidence %.4f want 0.62", i, u.Confidence)
		}
		if !u.CombinedIdentification {
			t.Errorf("utterance %d: not marked aggregation-resolved", i)
		}
	}
	if got[0].EmbeddingID == "" || got[0].EmbeddingID != got[1].EmbeddingID || got[1].EmbeddingID != got[2].EmbeddingID {
		t.Errorf("members must share one reference id, got %q %q %q",
			got[0].EmbeddingID, got[1].EmbeddingID, got[2].EmbeddingID)
	}

	// 0.62 >= autoUpdateThreshold and below the duplicate bar: enrolled
	if mem.Len() != 2 {
		t.Errorf("expected aggregate embedding to be enrolled, index len=%d want 2", mem.Len())
	}
	if emb.calls.Load() != 1 {
		t.Errorf("expected exactly one aggregate embedding call, got %d", emb.calls.Load())
	}
}

func TestResolveUnknownsBelowThresholdKeepsPlaceholder(t *testing.T) {
	ctx := context.Background()
	mem := vectorindex.NewMemoryIndex(3)
	refAlice(mem)

	emb := &durEmbedder{byDur: map[int64][]float32{2200: vecWithCos(0.25)}}
	agg := newAggregator(emb, mem)

	utts := placeholderUtterances("conv1")
	agg.ResolveUnknowns(ctx, utts, testClip(4000), 0.40, 0.50)

	for i, u := range utts {
		if u.Speaker != "Speaker_A" {
			t.Errorf("utterance %d: placeholder replaced with %q", i, u.Speaker)
		}
		if u.CombinedIdentification {
			t.Errorf("utterance %d: wrongly marked aggregation-resolved", i)
		}
	}
	if mem.Len() != 1 {
		t.Errorf("no enrollment expected, index len=%d want 1", mem.Len())
	}
}

func TestResolveUnknownsNoPlaceholdersIsNoop(t *testing.T) {
	ctx := context.Background()
	emb := &failingEmbedder{}
	agg := newAggregator(emb, vectorindex.NewMemoryIndex(3))

	utts := []*models.Utterance{
		{ID: "u1", StartMS: 0, EndMS: 900, Speaker: "Alice", Confidence: 0.61, EmbeddingID: "ref1"},
		{ID: "u2", StartMS: 1000, EndMS: 2000, Speaker: "Bob", Confidence: 0.55, EmbeddingID: "ref2"},
	}
	before := make([]models.Utterance, len(utts))
	for i, u := range utts {
		before[i] = *u
	}

	got := agg.ResolveUnknowns(ctx, utts, testClip(3000), 0.40, 0.50)

	if emb.calls.Load() != 0 {
		t.Errorf("no embedding expected on a fully resolved list, got %d calls", emb.calls.Load())
	}
	for i, u := range got {
		if *u != before[i] {
			t.Errorf("utterance %d changed: %+v -> %+v", i, before[i], *u)
		}
	}
}

func TestResolveUnknownsMatchBelowAutoUpdateDoesNotEnroll(t *testing.T) {
	ctx := context.Background()
	mem := vectorindex.NewMemoryIndex(3)
	refAlice(mem)

	// above matchThreshold 0.40, below autoUpdateThreshold 0.50
	emb := &durEmbedder{byDur: map[int64][]float32{2200: vecWithCos(0.45)}}
	agg := newAggregator(emb, mem)

	utts := placeholderUtterances("conv1")
	agg.ResolveUnknowns(ctx, utts, testClip(4000), 0.40, 0.50)

	if utts[0].Speaker != "Alice" {
		t.Fatalf("expected match at 0.45, got %q", utts[0].Speaker)
	}
	if mem.Len() != 1 {
		t.Errorf("no enrollment below auto-update threshold, index len=%d want 1", mem.Len())
	}
}
