package services

import (
	"bytes"
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/banddude/voiceid/internal/audio"
	"github.com/banddude/voiceid/internal/cache"
	"github.com/banddude/voiceid/internal/models"
	mongorepo "github.com/banddude/voiceid/internal/repositories/mongo"
	pgrepo "github.com/banddude/voiceid/internal/repositories/postgres"
	"github.com/banddude/voiceid/internal/storage"
	"github.com/banddude/voiceid/internal/utils"
)

// PipelineStream is the redis stream upload events are enqueued on; the
// identification worker pool consumes it.
const PipelineStream = "conversations:stream"

const listCacheTTL = 30 * time.Second

type ConversationDetail struct {
	Conversation models.Conversation `json:"conversation"`
	Utterances   []models.Utterance  `json:"utterances"`
}

type ConversationService interface {
	Upload(ctx context.Context, displayName, fileName string, wav []byte) (*models.Conversation, error)
	List(ctx context.Context, limit, offset int) ([]models.Conversation, error)
	Get(ctx context.Context, id string) (*ConversationDetail, error)
	Rename(ctx context.Context, id, displayName string) (*models.Conversation, error)
	Delete(ctx context.Context, id string) error
	AudioURL(ctx context.Context, id string, ttl time.Duration) (string, error)
	UtteranceAudioURL(ctx context.Context, utteranceID string, ttl time.Duration) (string, error)
	Status(ctx context.Context, id string) (*models.ProcessingJob, error)
}

type conversationService struct {
	convos     pgrepo.ConversationRepo
	utterances pgrepo.UtteranceRepo
	jobs       mongorepo.JobRepository
	store      storage.Store
	cache      cache.Cache
	rdb        *redis.Client
}

func NewConversationService(
	convos pgrepo.ConversationRepo,
	utterances pgrepo.UtteranceRepo,
	jobs mongorepo.JobRepository,
	store storage.Store,
	c cache.Cache,
	rdb *redis.Client,
) ConversationService {
	return &conversationService{
		convos:     convos,
		utterances: utterances,
		jobs:       jobs,
		store:      store,
		cache:      c,
		rdb:        rdb,
	}
}

// Upload stores the recording, creates the conversation row and its processing
// job, and enqueues the conversation for identification. The returned row is
// immediately visible; utterances appear once the pipeline finalizes.
func (s *conversationService) Upload(ctx context.Context, displayName, fileName string, wav []byte) (*models.Conversation, error) {
	const op = "ConversationService.Upload"

	if len(wav) == 0 {
		return nil, utils.E(utils.CodeInvalidArgument, op, "audio file is required", nil)
	}

	durMS, err := audio.DurationMS(wav)
	if err != nil {
		return nil, utils.E(utils.CodeInvalidArgument, op, "audio must be PCM WAV", err)
	}

	id := uuid.NewString()
	if displayName == "" {
		displayName = fileName
	}

	key := storage.ConversationAudioPath(id, "original.wav")
	storedPath, err := s.store.Upload(ctx, key, "audio/wav", bytes.NewReader(wav))
	if err != nil {
		return nil, utils.E(utils.CodeUnavailable, op, "failed to store audio", err)
	}

	now := time.Now().UTC()
	row := &models.Conversation{
		ID:              id,
		DisplayName:     displayName,
		OriginalAudio:   fileName,
		AudioPath:       storedPath,
		DurationSeconds: float64(durMS) / 1000.0,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := s.convos.Insert(ctx, row); err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to insert conversation", err)
	}

	job := &models.ProcessingJob{
		ConversationID: id,
		Stage:          models.StageIngested,
	}
	if err := s.jobs.Create(ctx, job); err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to create processing job", err)
	}

	err = s.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: PipelineStream,
		Values: map[string]any{
			"conversation_id": id,
			"audio_path":      storedPath,
		},
	}).Err()
	if err != nil {
		return nil, utils.E(utils.CodeUnavailable, op, "failed to enqueue conversation", err)
	}

	s.invalidateLists(ctx)
	return row, nil
}

func (s *conversationService) List(ctx context.Context, limit, offset int) ([]models.Conversation, error) {
	const op = "ConversationService.List"

	if limit <= 0 {
		limit = 50
	}

	key := cache.ConversationListKey(limit, offset)
	var cached []models.Conversation
	if hit, err := s.cache.GetJSON(ctx, key, &cached); err == nil && hit {
		return cached, nil
	}

	rows, err := s.convos.List(ctx, limit, offset)
	if err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to list conversations", err)
	}

	_ = s.cache.SetJSON(ctx, key, rows, listCacheTTL)
	return rows, nil
}

func (s *conversationService) Get(ctx context.Context, id string) (*ConversationDetail, error) {
	const op = "ConversationService.Get"

	if id == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "conversation id is required", nil)
	}

	conv, err := s.convos.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, utils.ErrNotFound) {
			return nil, utils.E(utils.CodeNotFound, op, "conversation not found", err)
		}
		return nil, utils.E(utils.CodeInternal, op, "failed to get conversation", err)
	}

	utts, err := s.utterances.ListByConversation(ctx, id)
	if err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to list utterances", err)
	}

	return &ConversationDetail{Conversation: *conv, Utterances: utts}, nil
}

func (s *conversationService) Rename(ctx context.Context, id, displayName string) (*models.Conversation, error) {
	const op = "ConversationService.Rename"

	if id == "" || displayName == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "conversation id and display_name are required", nil)
	}

	conv, err := s.convos.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, utils.ErrNotFound) {
			return nil, utils.E(utils.CodeNotFound, op, "conversation not found", err)
		}
		return nil, utils.E(utils.CodeInternal, op, "failed to get conversation", err)
	}

	conv.DisplayName = displayName
	conv.UpdatedAt = time.Now().UTC()
	if err := s.convos.Update(ctx, conv); err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to rename conversation", err)
	}

	s.invalidateLists(ctx)
	return conv, nil
}

// Delete removes the conversation row, its utterances, and every stored clip
// whose path was recorded on a row.
func (s *conversationService) Delete(ctx context.Context, id string) error {
	const op = "ConversationService.Delete"

	if id == "" {
		return utils.E(utils.CodeInvalidArgument, op, "conversation id is required", nil)
	}

	conv, err := s.convos.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, utils.ErrNotFound) {
			return utils.E(utils.CodeNotFound, op, "conversation not found", err)
		}
		return utils.E(utils.CodeInternal, op, "failed to get conversation", err)
	}

	utts, err := s.utterances.ListByConversation(ctx, id)
	if err != nil {
		return utils.E(utils.CodeInternal, op, "failed to list utterances", err)
	}
	for _, u := range utts {
		if u.AudioPath != "" {
			_ = s.store.Delete(ctx, u.AudioPath)
		}
	}
	if conv.AudioPath != "" {
		_ = s.store.Delete(ctx, conv.AudioPath)
	}

	if err := s.utterances.DeleteByConversation(ctx, id); err != nil {
		return utils.E(utils.CodeInternal, op, "failed to delete utterances", err)
	}
	if err := s.convos.Delete(ctx, id); err != nil {
		return utils.E(utils.CodeInternal, op, "failed to delete conversation", err)
	}

	s.invalidateLists(ctx)
	return nil
}

func (s *conversationService) AudioURL(ctx context.Context, id string, ttl time.Duration) (string, error) {
	const op = "ConversationService.AudioURL"

	conv, err := s.convos.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, utils.ErrNotFound) {
			return "", utils.E(utils.CodeNotFound, op, "conversation not found", err)
		}
		return "", utils.E(utils.CodeInternal, op, "failed to get conversation", err)
	}
	if conv.AudioPath == "" {
		return "", utils.E(utils.CodeNotFound, op, "conversation has no stored audio", nil)
	}

	url, err := s.store.SignedGetURL(ctx, conv.AudioPath, ttl)
	if err != nil {
		return "", utils.E(utils.CodeUnavailable, op, "failed to sign audio url", err)
	}
	return url, nil
}

func (s *conversationService) UtteranceAudioURL(ctx context.Context, utteranceID string, ttl time.Duration) (string, error) {
	const op = "ConversationService.UtteranceAudioURL"

	u, err := s.utterances.GetByID(ctx, utteranceID)
	if err != nil {
		if errors.Is(err, utils.ErrNotFound) {
			return "", utils.E(utils.CodeNotFound, op, "utterance not found", err)
		}
		return "", utils.E(utils.CodeInternal, op, "failed to get utterance", err)
	}
	if u.AudioPath == "" {
		return "", utils.E(utils.CodeNotFound, op, "utterance has no stored clip", nil)
	}

	url, err := s.store.SignedGetURL(ctx, u.AudioPath, ttl)
	if err != nil {
		return "", utils.E(utils.CodeUnavailable, op, "failed to sign clip url", err)
	}
	return url, nil
}

func (s *conversationService) Status(ctx context.Context, id string) (*models.ProcessingJob, error) {
	const op = "ConversationService.Status"

	if id == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "conversation id is required", nil)
	}

	job, err := s.jobs.GetLatestByConversation(ctx, id)
	if err != nil {
		if errors.Is(err, utils.ErrNotFound) {
			return nil, utils.E(utils.CodeNotFound, op, "no processing job for conversation", err)
		}
		return nil, utils.E(utils.CodeInternal, op, "failed to get processing job", err)
	}
	return job, nil
}

func (s *conversationService) invalidateLists(ctx context.Context) {
	_ = s.cache.DelPrefix(ctx, "conversations:list:")
}
