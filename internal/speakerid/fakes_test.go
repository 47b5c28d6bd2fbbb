package speakerid

import (
	"context"
	"errors"
	"io"
	"math"
	"sync/atomic"

	"github.com/sirupsen/logrus"

	"github.com/banddude/voiceid/internal/audio"
	"github.com/banddude/voiceid/internal/vectorindex"
)

var testWAVFormat = audio.Format{Channels: 1, SampleRate: 16000, BitsPerSample: 16}

func testClip(durationMS int64) []byte {
	return audio.Encode(testWAVFormat, make([]byte, durationMS*16000*2/1000))
}

// vecWithCos builds a unit vector whose cosine similarity with the canonical
// reference direction [1,0,0] is exactly c.
func vecWithCos(c float64) []float32 {
	return []float32{float32(c), float32(math.Sqrt(1 - c*c)), 0}
}

// vecWithCosAlt is vecWithCos rotated out of plane: same similarity to the
// reference direction, far from vecWithCos vectors.
func vecWithCosAlt(c float64) []float32 {
	return []float32{float32(c), 0, float32(math.Sqrt(1 - c*c))}
}

// refAlice enrolls one reference vector along [1,0,0] for "Alice".
func refAlice(idx *vectorindex.MemoryIndex) {
	_ = idx.Upsert(context.Background(), vectorindex.Record{
		ID:       "speaker_Alice_ref00001",
		Vector:   []float32{1, 0, 0},
		Metadata: vectorindex.Metadata{SpeakerName: "Alice"},
	})
}

// durEmbedder maps a clip's duration to a fixed embedding, making test
// scenarios deterministic: each utterance (and each combined group) gets a
// distinct duration. Counters are atomic; the pipeline embeds from a worker
// pool.
type durEmbedder struct {
	byDur map[int64][]float32
	calls atomic.Int64
}

func (e *durEmbedder) Embed(ctx context.Context, clip []byte) ([]float32, error) {
	e.calls.Add(1)
	d, err := audio.DurationMS(clip)
	if err != nil {
		return nil, err
	}
	v, ok := e.byDur[d]
	if !ok {
		return nil, errors.New("no embedding configured for this clip")
	}
	return v, nil
}

type failingEmbedder struct{ calls atomic.Int64 }

func (e *failingEmbedder) Embed(ctx context.Context, clip []byte) ([]float32, error) {
	e.calls.Add(1)
	return nil, io.ErrUnexpectedEOF
}

// spyIndex wraps an Index, counting queries and optionally injecting
// failures.
type spyIndex struct {
	vectorindex.Index
	queries  atomic.Int64
	queryErr error
	pingErr  error
}

func (s *spyIndex) Query(ctx context.Context, vector []float32, topK int, filter *vectorindex.Filter) ([]vectorindex.Match, error) {
	s.queries.Add(1)
	if s.queryErr != nil {
		return nil, s.queryErr
	}
	return s.Index.Query(ctx, vector, topK, filter)
}

func (s *spyIndex) Ping(ctx context.Context) error {
	if s.pingErr != nil {
		return s.pingErr
	}
	return s.Index.Ping(ctx)
}

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-3
}
