package services

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/banddude/voiceid/internal/cache"
	"github.com/banddude/voiceid/internal/models"
	pgrepo "github.com/banddude/voiceid/internal/repositories/postgres"
	"github.com/banddude/voiceid/internal/speakerid"
	"github.com/banddude/voiceid/internal/utils"
)

// referenceIndex is the slice of the similarity index the speaker service
// needs for name administration.
type referenceIndex interface {
	ListSpeakers(ctx context.Context) (map[string]int, error)
	RenameSpeaker(ctx context.Context, from, to string) (int64, error)
	DeleteBySpeaker(ctx context.Context, speakerName string) (int64, error)
}

type SpeakerSummary struct {
	models.Speaker
	EmbeddingCount int `json:"embedding_count"`
}

type SpeakerService interface {
	List(ctx context.Context) ([]SpeakerSummary, error)
	Create(ctx context.Context, name, description string) (*models.Speaker, error)
	Rename(ctx context.Context, from, to string) (int64, error)
	Delete(ctx context.Context, name string) error
	ReassignUtterance(ctx context.Context, utteranceID, speakerName string) error
	ReassignAll(ctx context.Context, from, to string) (int64, error)
}

type speakerService struct {
	speakers   pgrepo.SpeakerRepo
	utterances pgrepo.UtteranceRepo
	refs       referenceIndex
	cache      cache.Cache
}

func NewSpeakerService(speakers pgrepo.SpeakerRepo, utterances pgrepo.UtteranceRepo, refs referenceIndex, c cache.Cache) SpeakerService {
	return &speakerService{speakers: speakers, utterances: utterances, refs: refs, cache: c}
}

// List merges the speaker rows with live embedding counts. A speaker enrolled
// only through auto-update may exist in the index before a row does; those
// show up too.
func (s *speakerService) List(ctx context.Context) ([]SpeakerSummary, error) {
	const op = "SpeakerService.List"

	key := cache.SpeakerListKey()
	var cached []SpeakerSummary
	if hit, err := s.cache.GetJSON(ctx, key, &cached); err == nil && hit {
		return cached, nil
	}

	rows, err := s.speakers.List(ctx)
	if err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to list speakers", err)
	}
	counts, err := s.refs.ListSpeakers(ctx)
	if err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to count reference embeddings", err)
	}

	out := make([]SpeakerSummary, 0, len(rows))
	seen := make(map[string]bool, len(rows))
	for _, sp := range rows {
		seen[sp.Name] = true
		out = append(out, SpeakerSummary{Speaker: sp, EmbeddingCount: counts[sp.Name]})
	}
	for name, n := range counts {
		if !seen[name] {
			out = append(out, SpeakerSummary{
				Speaker:        models.Speaker{Name: name},
				EmbeddingCount: n,
			})
		}
	}

	_ = s.cache.SetJSON(ctx, key, out, listCacheTTL)
	return out, nil
}

func (s *speakerService) Create(ctx context.Context, name, description string) (*models.Speaker, error) {
	const op = "SpeakerService.Create"

	if name == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "speaker name is required", nil)
	}
	if speakerid.IsPlaceholder(name) {
		return nil, utils.E(utils.CodeInvalidArgument, op, "speaker name must not use the unknown-speaker prefix", nil)
	}

	row := &models.Speaker{
		ID:          uuid.NewString(),
		Name:        name,
		Description: description,
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.speakers.Upsert(ctx, row); err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to create speaker", err)
	}

	_ = s.cache.Del(ctx, cache.SpeakerListKey())
	return row, nil
}

// Rename moves a speaker to a new name everywhere: the speaker row, every
// utterance attributed to them, and every reference embedding. Returns the
// number of utterances touched.
func (s *speakerService) Rename(ctx context.Context, from, to string) (int64, error) {
	const op = "SpeakerService.Rename"

	if from == "" || to == "" {
		return 0, utils.E(utils.CodeInvalidArgument, op, "both speaker names are required", nil)
	}
	if speakerid.IsPlaceholder(to) {
		return 0, utils.E(utils.CodeInvalidArgument, op, "new name must not use the unknown-speaker prefix", nil)
	}
	if from == to {
		return 0, nil
	}

	if err := s.speakers.Rename(ctx, from, to); err != nil && !errors.Is(err, utils.ErrNotFound) {
		return 0, utils.E(utils.CodeInternal, op, "failed to rename speaker", err)
	}
	if _, err := s.refs.RenameSpeaker(ctx, from, to); err != nil {
		return 0, utils.E(utils.CodeInternal, op, "failed to rename reference embeddings", err)
	}
	n, err := s.utterances.ReassignSpeaker(ctx, from, to)
	if err != nil {
		return 0, utils.E(utils.CodeInternal, op, "failed to reassign utterances", err)
	}

	_ = s.cache.Del(ctx, cache.SpeakerListKey())
	s.invalidateConversationLists(ctx)
	return n, nil
}

// Delete removes the speaker row and all their reference embeddings.
// Utterances keep the name for the transcript record.
func (s *speakerService) Delete(ctx context.Context, name string) error {
	const op = "SpeakerService.Delete"

	if name == "" {
		return utils.E(utils.CodeInvalidArgument, op, "speaker name is required", nil)
	}

	if _, err := s.refs.DeleteBySpeaker(ctx, name); err != nil {
		return utils.E(utils.CodeInternal, op, "failed to delete reference embeddings", err)
	}
	if err := s.speakers.Delete(ctx, name); err != nil {
		return utils.E(utils.CodeInternal, op, "failed to delete speaker", err)
	}

	_ = s.cache.Del(ctx, cache.SpeakerListKey())
	return nil
}

// ReassignUtterance sets the speaker of one utterance by hand. The target
// speaker row is created if missing so the correction shows up in listings.
func (s *speakerService) ReassignUtterance(ctx context.Context, utteranceID, speakerName string) error {
	const op = "SpeakerService.ReassignUtterance"

	if utteranceID == "" || speakerName == "" {
		return utils.E(utils.CodeInvalidArgument, op, "utterance id and speaker name are required", nil)
	}

	if !speakerid.IsPlaceholder(speakerName) {
		row := &models.Speaker{
			ID:        uuid.NewString(),
			Name:      speakerName,
			CreatedAt: time.Now().UTC(),
		}
		if err := s.speakers.Upsert(ctx, row); err != nil {
			return utils.E(utils.CodeInternal, op, "failed to upsert speaker", err)
		}
	}

	if err := s.utterances.UpdateSpeaker(ctx, utteranceID, speakerName); err != nil {
		if errors.Is(err, utils.ErrNotFound) {
			return utils.E(utils.CodeNotFound, op, "utterance not found", err)
		}
		return utils.E(utils.CodeInternal, op, "failed to reassign utterance", err)
	}

	_ = s.cache.Del(ctx, cache.SpeakerListKey())
	return nil
}

// ReassignAll moves every utterance attributed to one speaker onto another,
// existing speaker. Unlike Rename this merges transcripts only; reference
// embeddings stay with their original identity.
func (s *speakerService) ReassignAll(ctx context.Context, from, to string) (int64, error) {
	const op = "SpeakerService.ReassignAll"

	if from == "" || to == "" {
		return 0, utils.E(utils.CodeInvalidArgument, op, "both speaker names are required", nil)
	}
	if speakerid.IsPlaceholder(to) {
		return 0, utils.E(utils.CodeInvalidArgument, op, "target must not use the unknown-speaker prefix", nil)
	}
	if from == to {
		return 0, nil
	}

	row := &models.Speaker{
		ID:        uuid.NewString(),
		Name:      to,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.speakers.Upsert(ctx, row); err != nil {
		return 0, utils.E(utils.CodeInternal, op, "failed to upsert target speaker", err)
	}

	n, err := s.utterances.ReassignSpeaker(ctx, from, to)
	if err != nil {
		return 0, utils.E(utils.CodeInternal, op, "failed to reassign utterances", err)
	}

	_ = s.cache.Del(ctx, cache.SpeakerListKey())
	s.invalidateConversationLists(ctx)
	return n, nil
}

func (s *speakerService) invalidateConversationLists(ctx context.Context) {
	_ = s.cache.DelPrefix(ctx, "conversations:list:")
}
