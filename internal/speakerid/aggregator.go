package speakerid

import (
	"context"
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/banddude/voiceid/internal/audio"
	"github.com/banddude/voiceid/internal/models"
	"github.com/banddude/voiceid/internal/storage"
)

// Aggregator recovers identities that individual matching missed: several
// short, low-information clips from one undetermined speaker concatenate into
// a longer, more discriminative sample.
type Aggregator struct {
	matcher  *Matcher
	enroller *Enroller
	log      *logrus.Logger
}

func NewAggregator(matcher *Matcher, enroller *Enroller, log *logrus.Logger) *Aggregator {
	if log == nil {
		log = logrus.New()
	}
	return &Aggregator{matcher: matcher, enroller: enroller, log: log}
}

// ResolveUnknowns groups utterances still carrying a placeholder label,
// re-matches each group's concatenated audio, and back-propagates a confident
// result to every member. Utterances are mutated in place; groups that stay
// below the match threshold keep their placeholder (novel speakers are not
// invented here, that is manual enrollment's job). A second call on a fully
// resolved list is a no-op.
func (a *Aggregator) ResolveUnknowns(ctx context.Context, utterances []*models.Utterance, fullAudio []byte, matchThreshold, autoUpdateThreshold float64) []*models.Utterance {
	groups := make(map[string][]*models.Utterance)
	for _, u := range utterances {
		if IsPlaceholder(u.Speaker) {
			groups[u.Speaker] = append(groups[u.Speaker], u)
		}
	}
	if len(groups) == 0 {
		return utterances
	}

	labels := make([]string, 0, len(groups))
	for l := range groups {
		labels = append(labels, l)
	}
	sort.Strings(labels)

	a.log.WithField("groups", len(labels)).Info("aggregating unknown speakers")

	for _, label := range labels {
		a.resolveGroup(ctx, label, groups[label], fullAudio, matchThreshold, autoUpdateThreshold)
	}
	return utterances
}

func (a *Aggregator) resolveGroup(ctx context.Context, label string, members []*models.Utterance, fullAudio []byte, matchThreshold, autoUpdateThreshold float64) {
	log := a.log.WithFields(logrus.Fields{
		"placeholder": label,
		"utterances":  len(members),
	})

	sort.SliceStable(members, func(i, j int) bool { return members[i].StartMS < members[j].StartMS })

	clips := make([][]byte, 0, len(members))
	for _, u := range members {
		clip, err := audio.Slice(fullAudio, u.StartMS, u.EndMS)
		if err != nil {
			log.WithError(err).Warn("aggregate: failed to slice member clip, keeping placeholder")
			return
		}
		clips = append(clips, clip)
	}

	combined, err := audio.Concat(clips...)
	if err != nil {
		log.WithError(err).Warn("aggregate: failed to combine clips, keeping placeholder")
		return
	}

	res := a.matcher.matchClip(ctx, combined, matchThreshold, false)
	if !res.Matched() {
		log.WithField("score", res.Score).Info("aggregate: no confident match, keeping placeholder")
		return
	}

	log.WithFields(logrus.Fields{
		"speaker": res.SpeakerName,
		"score":   res.Score,
	}).Info("aggregate: group identified")

	for _, u := range members {
		u.Speaker = res.SpeakerName
		u.Confidence = res.Score
		u.EmbeddingID = res.ReferenceID
		u.CombinedIdentification = true
	}

	if res.Score >= autoUpdateThreshold && res.Embedding != nil {
		source := storage.CombinedPath(members[0].ConversationID, label)
		if _, err := a.enroller.MaybeEnroll(ctx, res.Embedding, res.SpeakerName, source, res.Score, autoUpdateThreshold); err != nil {
			log.WithError(err).Warn("aggregate: auto-update failed")
		}
	}
}
