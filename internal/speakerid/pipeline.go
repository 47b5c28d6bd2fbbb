package speakerid

import (
	"context"
	"sort"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/banddude/voiceid/internal/audio"
	"github.com/banddude/voiceid/internal/models"
	"github.com/banddude/voiceid/internal/providers/embed"
	"github.com/banddude/voiceid/internal/storage"
	"github.com/banddude/voiceid/internal/utils"
	"github.com/banddude/voiceid/internal/vectorindex"
)

// StageFunc observes pipeline stage transitions (models.Stage* values).
type StageFunc func(stage string)

// Pipeline runs the identification stages for one conversation, strictly in
// order: ingested -> individually matched -> aggregated. Finalization
// (persistence) belongs to the caller, which must treat the utterance list as
// all-or-nothing: either every utterance comes back resolved or the
// conversation failed.
type Pipeline struct {
	cfg      Config
	matcher  *Matcher
	agg      *Aggregator
	enroller *Enroller
	index    vectorindex.Index
	log      *logrus.Logger
}

func New(embedder embed.Provider, index vectorindex.Index, log *logrus.Logger, cfg Config) *Pipeline {
	if log == nil {
		log = logrus.New()
	}
	cfg = cfg.withDefaults()

	enroller := NewEnroller(index, log)
	matcher := NewMatcher(embedder, index, log)
	return &Pipeline{
		cfg:      cfg,
		matcher:  matcher,
		agg:      NewAggregator(matcher, enroller, log),
		enroller: enroller,
		index:    index,
		log:      log,
	}
}

func (p *Pipeline) Config() Config { return p.cfg }

// Matcher exposes single-segment matching for callers outside a conversation
// run (ad-hoc identification).
func (p *Pipeline) Matcher() *Matcher { return p.matcher }

// Enroller exposes the gatekeeper for manual enrollment paths.
func (p *Pipeline) Enroller() *Enroller { return p.enroller }

// ResolveUnknowns re-runs only the aggregation stage over an utterance list.
func (p *Pipeline) ResolveUnknowns(ctx context.Context, utterances []*models.Utterance, fullAudio []byte) []*models.Utterance {
	return p.agg.ResolveUnknowns(ctx, utterances, fullAudio, p.cfg.MatchThreshold, p.cfg.AutoUpdateThreshold)
}

// Process identifies every utterance of one conversation in place. Utterances
// arrive with provisional placeholder labels and the diarizer's confidence;
// a stable name assigned here never regresses back to a placeholder.
// Utterance-level failures degrade that utterance to unidentified; only an
// unreachable index (or cancellation) fails the whole conversation.
func (p *Pipeline) Process(ctx context.Context, utterances []*models.Utterance, fullAudio []byte, onStage StageFunc) error {
	const op = "Pipeline.Process"

	if onStage == nil {
		onStage = func(string) {}
	}

	if err := p.index.Ping(ctx); err != nil {
		return utils.E(utils.CodeUnavailable, op, "similarity index unreachable", err)
	}

	// processing and storage order is non-decreasing startMs, always
	sort.SliceStable(utterances, func(i, j int) bool { return utterances[i].StartMS < utterances[j].StartMS })
	onStage(models.StageIngested)

	p.matchIndividually(ctx, utterances, fullAudio)
	if err := ctx.Err(); err != nil {
		return utils.E(utils.CodeTimeout, op, "conversation processing interrupted", err)
	}
	onStage(models.StageIndividuallyMatched)

	p.agg.ResolveUnknowns(ctx, utterances, fullAudio, p.cfg.MatchThreshold, p.cfg.AutoUpdateThreshold)
	if err := ctx.Err(); err != nil {
		return utils.E(utils.CodeTimeout, op, "conversation processing interrupted", err)
	}
	onStage(models.StageAggregated)

	return nil
}

// matchIndividually runs segment matching across a bounded worker pool; the
// matches have no data dependency on each other and are network-bound.
func (p *Pipeline) matchIndividually(ctx context.Context, utterances []*models.Utterance, fullAudio []byte) {
	sem := make(chan struct{}, p.cfg.Workers)
	var wg sync.WaitGroup

	for _, u := range utterances {
		if u.DurationMS() < MinSegmentMS {
			// keep the diarizer's placeholder and confidence
			p.log.WithFields(logrus.Fields{
				"ordinal":     u.Ordinal,
				"duration_ms": u.DurationMS(),
			}).Debug("skipping short utterance")
			continue
		}

		wg.Add(1)
		sem <- struct{}{}
		go func(u *models.Utterance) {
			defer wg.Done()
			defer func() { <-sem }()
			p.matchOne(ctx, u, fullAudio)
		}(u)
	}
	wg.Wait()
}

func (p *Pipeline) matchOne(ctx context.Context, u *models.Utterance, fullAudio []byte) {
	clip, err := audio.Slice(fullAudio, u.StartMS, u.EndMS)
	if err != nil {
		p.log.WithError(err).WithField("ordinal", u.Ordinal).Warn("failed to slice utterance clip")
		return
	}

	res := p.matcher.MatchSegment(ctx, clip, p.cfg.MatchThreshold)
	if !res.Matched() {
		return
	}

	u.Speaker = res.SpeakerName
	u.Confidence = res.Score
	u.EmbeddingID = res.ReferenceID

	if res.Score >= p.cfg.AutoUpdateThreshold && res.Embedding != nil {
		if _, err := p.enroller.MaybeEnroll(ctx, res.Embedding, res.SpeakerName, sourceFor(u), res.Score, p.cfg.AutoUpdateThreshold); err != nil {
			p.log.WithError(err).WithField("speaker", res.SpeakerName).Warn("auto-update failed")
		}
	}
}

func sourceFor(u *models.Utterance) string {
	if u.AudioPath != "" {
		return u.AudioPath
	}
	return storage.UtterancePath(u.ConversationID, u.Ordinal)
}
