package workers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/banddude/voiceid/internal/audio"
	"github.com/banddude/voiceid/internal/cache"
	"github.com/banddude/voiceid/internal/models"
	"github.com/banddude/voiceid/internal/providers/diarize"
	"github.com/banddude/voiceid/internal/providers/llm"
	mongorepo "github.com/banddude/voiceid/internal/repositories/mongo"
	pgrepo "github.com/banddude/voiceid/internal/repositories/postgres"
	"github.com/banddude/voiceid/internal/speakerid"
	"github.com/banddude/voiceid/internal/storage"
)

// PipelineWorkerPool consumes uploaded conversations off the redis stream and
// runs each one through diarization, identification, and persistence. A
// conversation is finalized all-or-nothing: rows land only after every stage
// succeeded, otherwise the job is marked failed and nothing is written.
type PipelineWorkerPool struct {
	Redis      *redis.Client
	NumWorkers int

	Jobs       mongorepo.JobRepository
	Convos     pgrepo.ConversationRepo
	Utterances pgrepo.UtteranceRepo
	Speakers   pgrepo.SpeakerRepo

	Store    storage.Store
	Diarizer diarize.Provider
	Pipeline *speakerid.Pipeline
	LLM      llm.Provider // optional, used for display-name suggestions
	Cache    cache.Cache

	Logger *logrus.Logger

	Stream         string
	Group          string
	ConsumerPrefix string
}

func (p *PipelineWorkerPool) Start(ctx context.Context) error {
	if p.Redis == nil || p.Jobs == nil || p.Convos == nil || p.Utterances == nil ||
		p.Speakers == nil || p.Store == nil || p.Diarizer == nil || p.Pipeline == nil {
		return errors.New("PipelineWorkerPool missing dependency")
	}
	if p.Stream == "" {
		p.Stream = "conversations:stream"
	}
	if p.Group == "" {
		p.Group = "pipeline-workers"
	}
	if p.ConsumerPrefix == "" {
		p.ConsumerPrefix = "c"
	}
	if p.NumWorkers <= 0 {
		p.NumWorkers = 2
	}
	if p.Logger == nil {
		p.Logger = logrus.New()
	}

	_ = p.Redis.XGroupCreateMkStream(ctx, p.Stream, p.Group, "0").Err() // ignore BUSYGROUP

	for i := 0; i < p.NumWorkers; i++ {
		consumer := p.ConsumerPrefix + "-" + strconv.Itoa(i+1)
		go p.runConsumer(ctx, consumer)
	}
	return nil
}

func (p *PipelineWorkerPool) runConsumer(ctx context.Context, consumer string) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		res, err := p.Redis.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    p.Group,
			Consumer: consumer,
			Streams:  []string{p.Stream, ">"},
			Count:    1,
			Block:    5 * time.Second,
		}).Result()

		if err != nil {
			if err == redis.Nil {
				continue
			}
			time.Sleep(500 * time.Millisecond)
			continue
		}

		for _, stream := range res {
			for _, msg := range stream.Messages {
				p.handleMsg(ctx, msg)
				_ = p.Redis.XAck(ctx, p.Stream, p.Group, msg.ID).Err()
			}
		}
	}
}

func (p *PipelineWorkerPool) handleMsg(ctx context.Context, msg redis.XMessage) {
	getStr := func(k string) string {
		v, ok := msg.Values[k]
		if !ok || v == nil {
			return ""
		}
		s, _ := v.(string)
		return s
	}

	conversationID := getStr("conversation_id")
	if conversationID == "" {
		return
	}
	audioPath := getStr("audio_path")

	log := p.Logger.WithFields(logrus.Fields{
		"redis_id":        msg.ID,
		"conversation_id": conversationID,
	})

	fail := func(msg string, err error) {
		if err != nil {
			log.WithError(err).Error(msg)
		} else {
			log.Error(msg)
		}
		_ = p.Jobs.SetFailed(ctx, conversationID, msg)
		p.publishStatus(ctx, conversationID, models.StageFailed, msg)
	}

	if audioPath == "" {
		conv, err := p.Convos.GetByID(ctx, conversationID)
		if err != nil {
			fail("conversation row missing", err)
			return
		}
		audioPath = conv.AudioPath
	}

	wav, err := p.Store.Download(ctx, audioPath)
	if err != nil {
		fail("failed to download conversation audio", err)
		return
	}

	segments, err := p.Diarizer.Transcribe(ctx, wav)
	if err != nil {
		fail("diarization failed", err)
		return
	}
	if len(segments) == 0 {
		fail("no speech found in conversation", nil)
		return
	}

	utterances := utterancesFromSegments(conversationID, segments)

	onStage := func(stage string) {
		if err := p.Jobs.SetStage(ctx, conversationID, stage); err != nil {
			log.WithError(err).Warn("failed to record job stage")
		}
		p.publishStatus(ctx, conversationID, stage, "")
	}

	if err := p.Pipeline.Process(ctx, utterances, wav, onStage); err != nil {
		fail("identification pipeline failed", err)
		return
	}

	if err := p.finalize(ctx, conversationID, wav, utterances); err != nil {
		fail("failed to finalize conversation", err)
		return
	}

	onStage(models.StageFinalized)
	log.WithField("utterances", len(utterances)).Info("conversation finalized")
}

func utterancesFromSegments(conversationID string, segments []diarize.Segment) []*models.Utterance {
	now := time.Now().UTC()
	out := make([]*models.Utterance, 0, len(segments))
	for i, seg := range segments {
		out = append(out, &models.Utterance{
			ID:             uuid.NewString(),
			ConversationID: conversationID,
			Ordinal:        i,
			StartMS:        seg.StartMS,
			EndMS:          seg.EndMS,
			Text:           seg.Text,
			Speaker:        speakerid.Placeholder(seg.Label),
			Confidence:     seg.Confidence,
			AudioPath:      storage.UtterancePath(conversationID, i),
			CreatedAt:      now,
		})
	}
	return out
}

func (p *PipelineWorkerPool) finalize(ctx context.Context, conversationID string, wav []byte, utterances []*models.Utterance) error {
	for _, u := range utterances {
		clip, err := audio.Slice(wav, u.StartMS, u.EndMS)
		if err != nil {
			return err
		}
		stored, err := p.Store.Upload(ctx, u.AudioPath, "audio/wav", bytes.NewReader(clip))
		if err != nil {
			return err
		}
		u.AudioPath = stored
	}

	if err := p.Utterances.InsertBatch(ctx, utterances); err != nil {
		return err
	}

	matched := 0
	names := make(map[string]bool)
	for _, u := range utterances {
		if speakerid.IsPlaceholder(u.Speaker) {
			continue
		}
		matched++
		names[u.Speaker] = true
	}

	participants := make([]string, 0, len(names))
	for name := range names {
		participants = append(participants, name)
		row := &models.Speaker{
			ID:        uuid.NewString(),
			Name:      name,
			CreatedAt: time.Now().UTC(),
		}
		if err := p.Speakers.Upsert(ctx, row); err != nil {
			return err
		}
	}
	sort.Strings(participants)

	conv, err := p.Convos.GetByID(ctx, conversationID)
	if err != nil {
		return err
	}
	conv.Participants = pq.StringArray(participants)
	conv.UpdatedAt = time.Now().UTC()

	if title := p.suggestTitle(ctx, utterances); title != "" {
		conv.DisplayName = title
	}

	if err := p.Convos.Update(ctx, conv); err != nil {
		return err
	}

	if err := p.Jobs.SetCounts(ctx, conversationID, len(utterances), matched); err != nil {
		p.Logger.WithError(err).Warn("failed to record job counts")
	}

	if p.Cache != nil {
		_ = p.Cache.DelPrefix(ctx, "conversations:list:")
	}
	return nil
}

// suggestTitle asks the language model for a short conversation title from
// the opening lines of the transcript. Best effort only.
func (p *PipelineWorkerPool) suggestTitle(ctx context.Context, utterances []*models.Utterance) string {
	if p.LLM == nil {
		return ""
	}

	var b bytes.Buffer
	b.WriteString("Suggest a short title (at most six words) for this conversation. Reply with the title only.\n\n")
	for i, u := range utterances {
		if i >= 10 || u.Text == "" {
			break
		}
		b.WriteString(u.Speaker)
		b.WriteString(": ")
		b.WriteString(u.Text)
		b.WriteByte('\n')
	}

	title, err := p.LLM.Complete(ctx, b.String())
	if err != nil {
		p.Logger.WithError(err).Warn("title suggestion failed")
		return ""
	}
	title = strings.TrimSpace(strings.Trim(strings.TrimSpace(title), `"`))
	if len(title) > 120 {
		title = title[:120]
	}
	return title
}

func (p *PipelineWorkerPool) publishStatus(ctx context.Context, conversationID, stage, message string) {
	payload, _ := json.Marshal(map[string]any{
		"type":            "stage",
		"conversation_id": conversationID,
		"stage":           stage,
		"message":         message,
	})
	_ = p.Redis.Publish(ctx, "conversation:"+conversationID+":status", string(payload)).Err()
}
