package services

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/banddude/voiceid/internal/audio"
	"github.com/banddude/voiceid/internal/cache"
	"github.com/banddude/voiceid/internal/models"
	"github.com/banddude/voiceid/internal/providers/embed"
	pgrepo "github.com/banddude/voiceid/internal/repositories/postgres"
	"github.com/banddude/voiceid/internal/speakerid"
	"github.com/banddude/voiceid/internal/utils"
	"github.com/banddude/voiceid/internal/vectorindex"
)

// embeddingIndex is the slice of the similarity index the reference service
// needs for embedding administration.
type embeddingIndex interface {
	ListBySpeaker(ctx context.Context, speakerName string) ([]vectorindex.Record, error)
	Delete(ctx context.Context, ids ...string) error
	DeleteBySpeaker(ctx context.Context, speakerName string) (int64, error)
}

type EnrollResult struct {
	ReferenceID   string `json:"reference_id"`
	Added         bool   `json:"added"`
	IsShortSample bool   `json:"is_short_sample"`
}

type ReferenceService interface {
	Enroll(ctx context.Context, speakerName, sourceLabel string, wav []byte) (*EnrollResult, error)
	ListBySpeaker(ctx context.Context, speakerName string) ([]vectorindex.Record, error)
	DeleteEmbedding(ctx context.Context, id string) error
	DeleteBySpeaker(ctx context.Context, speakerName string) (int64, error)
}

type referenceService struct {
	embedder embed.Provider
	enroller *speakerid.Enroller
	index    embeddingIndex
	speakers pgrepo.SpeakerRepo
	cache    cache.Cache
}

func NewReferenceService(
	embedder embed.Provider,
	enroller *speakerid.Enroller,
	index embeddingIndex,
	speakers pgrepo.SpeakerRepo,
	c cache.Cache,
) ReferenceService {
	return &referenceService{
		embedder: embedder,
		enroller: enroller,
		index:    index,
		speakers: speakers,
		cache:    c,
	}
}

// Enroll adds a voice sample for a speaker by hand. Samples shorter than a
// second are accepted but flagged, matching how the matcher treats short
// segments; samples below the embedding floor are rejected outright.
func (s *referenceService) Enroll(ctx context.Context, speakerName, sourceLabel string, wav []byte) (*EnrollResult, error) {
	const op = "ReferenceService.Enroll"

	if speakerName == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "speaker name is required", nil)
	}
	if speakerid.IsPlaceholder(speakerName) {
		return nil, utils.E(utils.CodeInvalidArgument, op, "speaker name must not use the unknown-speaker prefix", nil)
	}

	durMS, err := audio.DurationMS(wav)
	if err != nil {
		return nil, utils.E(utils.CodeInvalidArgument, op, "audio must be PCM WAV", err)
	}
	if durMS < speakerid.MinSegmentMS {
		return nil, utils.E(utils.CodeInvalidArgument, op, "sample too short to embed reliably", nil)
	}
	isShort := durMS < speakerid.ShortSampleMS

	vec, err := s.embedder.Embed(ctx, wav)
	if err != nil {
		return nil, utils.E(utils.CodeUnavailable, op, "failed to embed sample", err)
	}

	id, added, err := s.enroller.Enroll(ctx, vec, speakerName, sourceLabel, isShort)
	if err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to enroll sample", err)
	}

	if added {
		row := &models.Speaker{
			ID:        uuid.NewString(),
			Name:      speakerName,
			CreatedAt: time.Now().UTC(),
		}
		if err := s.speakers.Upsert(ctx, row); err != nil {
			return nil, utils.E(utils.CodeInternal, op, "failed to upsert speaker", err)
		}
		_ = s.cache.Del(ctx, cache.SpeakerListKey())
	}

	return &EnrollResult{ReferenceID: id, Added: added, IsShortSample: isShort}, nil
}

func (s *referenceService) ListBySpeaker(ctx context.Context, speakerName string) ([]vectorindex.Record, error) {
	const op = "ReferenceService.ListBySpeaker"

	if speakerName == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "speaker name is required", nil)
	}
	recs, err := s.index.ListBySpeaker(ctx, speakerName)
	if err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to list reference embeddings", err)
	}
	return recs, nil
}

func (s *referenceService) DeleteEmbedding(ctx context.Context, id string) error {
	const op = "ReferenceService.DeleteEmbedding"

	if id == "" {
		return utils.E(utils.CodeInvalidArgument, op, "embedding id is required", nil)
	}
	if err := s.index.Delete(ctx, id); err != nil {
		return utils.E(utils.CodeInternal, op, "failed to delete reference embedding", err)
	}
	_ = s.cache.Del(ctx, cache.SpeakerListKey())
	return nil
}

// DeleteBySpeaker wipes a speaker's whole reference set, returning how many
// embeddings were removed. The speaker row survives; they can be re-enrolled.
func (s *referenceService) DeleteBySpeaker(ctx context.Context, speakerName string) (int64, error) {
	const op = "ReferenceService.DeleteBySpeaker"

	if speakerName == "" {
		return 0, utils.E(utils.CodeInvalidArgument, op, "speaker name is required", nil)
	}
	n, err := s.index.DeleteBySpeaker(ctx, speakerName)
	if err != nil {
		return 0, utils.E(utils.CodeInternal, op, "failed to delete reference embeddings", err)
	}
	_ = s.cache.Del(ctx, cache.SpeakerListKey())
	return n, nil
}
