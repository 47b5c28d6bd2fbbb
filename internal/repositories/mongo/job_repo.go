package mongo

import (
	"context"
	"errors"
	"time"

	"github.com/banddude/voiceid/internal/models"
	"github.com/banddude/voiceid/internal/utils"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Jobs expire a week after their last update; the TTL index on expires_at
// does the reaping.
const jobRetention = 7 * 24 * time.Hour

type JobRepository interface {
	Create(ctx context.Context, job *models.ProcessingJob) error
	GetLatestByConversation(ctx context.Context, conversationID string) (*models.ProcessingJob, error)
	SetStage(ctx context.Context, conversationID, stage string) error
	SetCounts(ctx context.Context, conversationID string, utterances, matched int) error
	SetFailed(ctx context.Context, conversationID, errMsg string) error
}

type jobRepo struct {
	col *mongo.Collection
}

func NewJobRepo(db *mongo.Database) JobRepository {
	return &jobRepo{col: db.Collection("processing_jobs")}
}

func (r *jobRepo) Create(ctx context.Context, job *models.ProcessingJob) error {
	now := time.Now().UTC()
	if job.CreatedAt.IsZero() {
		job.CreatedAt = now
	}
	job.UpdatedAt = now
	job.ExpiresAt = now.Add(jobRetention)
	_, err := r.col.InsertOne(ctx, job)
	return err
}

func (r *jobRepo) GetLatestByConversation(ctx context.Context, conversationID string) (*models.ProcessingJob, error) {
	var job models.ProcessingJob
	opts := options.FindOne().SetSort(bson.M{"created_at": -1})
	err := r.col.FindOne(ctx, bson.M{"conversation_id": conversationID}, opts).Decode(&job)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, utils.ErrNotFound
	}
	return &job, err
}

func (r *jobRepo) SetStage(ctx context.Context, conversationID, stage string) error {
	return r.update(ctx, conversationID, bson.M{"stage": stage})
}

func (r *jobRepo) SetCounts(ctx context.Context, conversationID string, utterances, matched int) error {
	return r.update(ctx, conversationID, bson.M{
		"utterance_count": utterances,
		"matched_count":   matched,
	})
}

func (r *jobRepo) SetFailed(ctx context.Context, conversationID, errMsg string) error {
	return r.update(ctx, conversationID, bson.M{
		"stage": models.StageFailed,
		"error": errMsg,
	})
}

func (r *jobRepo) update(ctx context.Context, conversationID string, set bson.M) error {
	now := time.Now().UTC()
	set["updated_at"] = now
	set["expires_at"] = now.Add(jobRetention)
	_, err := r.col.UpdateOne(ctx,
		bson.M{"conversation_id": conversationID},
		bson.M{"$set": set},
	)
	return err
}
