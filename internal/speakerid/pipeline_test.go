package speakerid

import (
	"context"
	"errors"
	"testing"

	"github.com/banddude/voiceid/internal/models"
	"github.com/banddude/voiceid/internal/utils"
	"github.com/banddude/voiceid/internal/vectorindex"
)

// Conversation: one long clearly-Alice utterance, one too-short utterance and
// two mid-length ones all diarized as Speaker_A. Individually the Speaker_A
// clips stay unidentified; their concatenation resolves the group.
func pipelineScenario() ([]*models.Utterance, []byte, *durEmbedder) {
	utts := []*models.Utterance{
		{ID: "u0", ConversationID: "conv1", Ordinal: 0, StartMS: 0, EndMS: 2000, Speaker: "Speaker_B", Confidence: 0.91},
		{ID: "u1", ConversationID: "conv1", Ordinal: 1, StartMS: 2000, EndMS: 2500, Speaker: "Speaker_A", Confidence: 0.82},
		{ID: "u2", ConversationID: "conv1", Ordinal: 2, StartMS: 2500, EndMS: 3300, Speaker: "Speaker_A", Confidence: 0.77},
		{ID: "u3", ConversationID: "conv1", Ordinal: 3, StartMS: 3300, EndMS: 4200, Speaker: "Speaker_A", Confidence: 0.85},
	}
	emb := &durEmbedder{byDur: map[int64][]float32{
		2000: vecWithCos(0.55), // u0 -> Alice
		800:  vecWithCos(0.30), // u2, individually below threshold
		900:  vecWithCos(0.25), // u3, individually below threshold
		2200: vecWithCosAlt(0.62), // combined Speaker_A group (500+800+900)
	}}
	return utts, testClip(5000), emb
}

func TestPipelineProcess(t *testing.T) {
	ctx := context.Background()
	mem := vectorindex.NewMemoryIndex(3)
	refAlice(mem)

	utts, fullAudio, emb := pipelineScenario()
	p := New(emb, mem, quietLogger(), Config{MatchThreshold: 0.40, AutoUpdateThreshold: 0.50, Workers: 2})

	var stages []string
	err := p.Process(ctx, utts, fullAudio, func(s string) { stages = append(stages, s) })
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}

	wantStages := []string{models.StageIngested, models.StageIndividuallyMatched, models.StageAggregated}
	if len(stages) != len(wantStages) {
		t.Fatalf("stages: got %v want %v", stages, wantStages)
	}
	for i := range wantStages {
		if stages[i] != wantStages[i] {
			t.Fatalf("stage %d: got %q want %q", i, stages[i], wantStages[i])
		}
	}

	// u0 matched individually
	if utts[0].Speaker != "Alice" || !almostEqual(utts[0].Confidence, 0.55) {
		t.Errorf("u0: got %q/%.4f want Alice/0.55", utts[0].Speaker, utts[0].Confidence)
	}
	if utts[0].CombinedIdentification {
		t.Error("u0 must not be marked aggregation-resolved")
	}

	// the Speaker_A group, short clip included, resolved by aggregation
	for _, u := range utts[1:] {
		if u.Speaker != "Alice" {
			t.Errorf("%s: got %q want Alice", u.ID, u.Speaker)
		}
		if !almostEqual(u.Confidence, 0.62) {
			t.Errorf("%s: confidence %.4f want 0.62", u.ID, u.Confidence)
		}
		if !u.CombinedIdentification {
			t.Errorf("%s: not marked aggregation-resolved", u.ID)
		}
	}

	// two auto-updates: u0's 0.55 match and the 0.62 aggregate
	if mem.Len() != 3 {
		t.Errorf("reference set: len=%d want 3", mem.Len())
	}
}

func TestPipelineShortUtteranceNeverEmbedded(t *testing.T) {
	ctx := context.Background()
	mem := vectorindex.NewMemoryIndex(3)

	emb := &failingEmbedder{}
	p := New(emb, mem, quietLogger(), Config{})

	utts := []*models.Utterance{
		{ID: "u0", ConversationID: "conv1", StartMS: 0, EndMS: 500, Speaker: "Speaker_A", Confidence: 0.8},
	}
	// the short clip is skipped individually; the aggregate pass embeds once
	err := p.Process(ctx, utts, testClip(1000), nil)
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}
	if emb.calls.Load() != 1 {
		t.Errorf("expected only the aggregate embedding attempt, got %d calls", emb.calls.Load())
	}
	if utts[0].Speaker != "Speaker_A" {
		t.Errorf("placeholder must survive, got %q", utts[0].Speaker)
	}
}

func TestPipelineUnreachableIndexIsFatal(t *testing.T) {
	ctx := context.Background()
	idx := &spyIndex{
		Index:   vectorindex.NewMemoryIndex(3),
		pingErr: errors.New("connection refused"),
	}

	utts, fullAudio, emb := pipelineScenario()
	p := New(emb, idx, quietLogger(), Config{})

	var stages []string
	err := p.Process(ctx, utts, fullAudio, func(s string) { stages = append(stages, s) })
	if err == nil {
		t.Fatal("expected fatal error when index is unreachable")
	}
	if !utils.IsCode(err, utils.CodeUnavailable) {
		t.Errorf("expected UNAVAILABLE, got %v", err)
	}
	if len(stages) != 0 {
		t.Errorf("no stage must be reported on fatal start, got %v", stages)
	}
	// nothing was touched
	if utts[0].Speaker != "Speaker_B" {
		t.Errorf("utterances must be untouched on fatal start, got %q", utts[0].Speaker)
	}
}

func TestPipelineDegradesOnEmbeddingFailures(t *testing.T) {
	ctx := context.Background()
	mem := vectorindex.NewMemoryIndex(3)
	refAlice(mem)

	p := New(&failingEmbedder{}, mem, quietLogger(), Config{})

	utts, fullAudio, _ := pipelineScenario()
	err := p.Process(ctx, utts, fullAudio, nil)
	if err != nil {
		t.Fatalf("utterance-level failures must not abort the conversation: %v", err)
	}
	for _, u := range utts {
		if !IsPlaceholder(u.Speaker) {
			t.Errorf("%s: expected placeholder after failures, got %q", u.ID, u.Speaker)
		}
	}
}

func TestPipelineSortsByStartMS(t *testing.T) {
	ctx := context.Background()
	mem := vectorindex.NewMemoryIndex(3)

	p := New(&failingEmbedder{}, mem, quietLogger(), Config{})

	utts := []*models.Utterance{
		{ID: "b", ConversationID: "conv1", StartMS: 2000, EndMS: 2600, Speaker: "Speaker_A", Confidence: 0.8},
		{ID: "a", ConversationID: "conv1", StartMS: 0, EndMS: 600, Speaker: "Speaker_A", Confidence: 0.8},
	}
	if err := p.Process(ctx, utts, testClip(3000), nil); err != nil {
		t.Fatalf("Process failed: %v", err)
	}
	if utts[0].ID != "a" || utts[1].ID != "b" {
		t.Errorf("utterances not in startMs order: %s, %s", utts[0].ID, utts[1].ID)
	}
}

func TestIsPlaceholder(t *testing.T) {
	cases := []struct {
		label string
		want  bool
	}{
		{"Speaker_A", true},
		{"Speaker_12", true},
		{"Alice", false},
		{"", false},
		{"speaker_A", false},
	}
	for _, c := range cases {
		if got := IsPlaceholder(c.label); got != c.want {
			t.Errorf("IsPlaceholder(%q) = %v want %v", c.label, got, c.want)
		}
	}
}
