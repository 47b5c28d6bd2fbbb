package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	StageIngested            = "ingested"
	StageIndividuallyMatched = "individually_matched"
	StageAggregated          = "aggregated"
	StageFinalized           = "finalized"
	StageFailed              = "failed"
)

// ProcessingJob tracks one pipeline run over a conversation.
type ProcessingJob struct {
	ID             primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	ConversationID string             `bson:"conversation_id" json:"conversation_id"`

	Stage string `bson:"stage" json:"stage"`
	Error string `bson:"error,omitempty" json:"error,omitempty"`

	UtteranceCount int `bson:"utterance_count,omitempty" json:"utterance_count,omitempty"`
	MatchedCount   int `bson:"matched_count,omitempty" json:"matched_count,omitempty"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`

	ExpiresAt time.Time `bson:"expires_at" json:"expires_at"` // for TTL index
}
