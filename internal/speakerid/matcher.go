package speakerid

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/banddude/voiceid/internal/audio"
	"github.com/banddude/voiceid/internal/providers/embed"
	"github.com/banddude/voiceid/internal/vectorindex"
)

// Matcher classifies a single clip against the reference set. It only reads
// the index; enrollment is the Enroller's job.
type Matcher struct {
	embedder embed.Provider
	index    vectorindex.Index
	log      *logrus.Logger
}

func NewMatcher(embedder embed.Provider, index vectorindex.Index, log *logrus.Logger) *Matcher {
	if log == nil {
		log = logrus.New()
	}
	return &Matcher{embedder: embedder, index: index, log: log}
}

// MatchSegment matches one utterance clip. Clips under the minimum duration
// return a null result without touching the embedding service; transient
// embedding or index failures degrade to a null result with score 0 so one
// flaky utterance never fails a conversation.
func (m *Matcher) MatchSegment(ctx context.Context, clip []byte, threshold float64) MatchResult {
	durMS, err := audio.DurationMS(clip)
	if err != nil {
		m.log.WithError(err).Warn("segment match: unreadable clip")
		return MatchResult{}
	}
	if durMS < MinSegmentMS {
		m.log.WithField("duration_ms", durMS).Debug("segment match: clip below minimum, skipping")
		return MatchResult{}
	}
	return m.matchClip(ctx, clip, threshold, durMS < ShortSampleMS)
}

func (m *Matcher) matchClip(ctx context.Context, clip []byte, threshold float64, shortEligible bool) MatchResult {
	emb, err := m.embedder.Embed(ctx, clip)
	if err != nil {
		m.log.WithError(err).Warn("segment match: embedding failed")
		return MatchResult{}
	}

	topK := 1
	if shortEligible {
		topK = 2
	}
	matches, err := m.index.Query(ctx, emb, topK, nil)
	if err != nil {
		m.log.WithError(err).Warn("segment match: index query failed")
		return MatchResult{}
	}
	if len(matches) == 0 {
		return MatchResult{Embedding: emb}
	}

	top := matches[0]
	if shortEligible && len(matches) > 1 {
		m.log.WithFields(logrus.Fields{
			"top":             top.Metadata.SpeakerName,
			"top_score":       top.Score,
			"runner_up":       matches[1].Metadata.SpeakerName,
			"runner_up_score": matches[1].Score,
		}).Debug("segment match: short sample candidates")
	}

	if top.Score >= threshold {
		return MatchResult{
			SpeakerName: top.Metadata.SpeakerName,
			Score:       top.Score,
			ReferenceID: top.ID,
			Embedding:   emb,
		}
	}
	return MatchResult{Score: top.Score, Embedding: emb}
}
