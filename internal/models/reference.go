package models

import (
	"time"

	"github.com/pgvector/pgvector-go"
)

// ReferenceEmbedding is one enrolled voice sample in the similarity index.
// Rows are append-only: the pipeline adds and reads, never mutates a vector.
type ReferenceEmbedding struct {
	ID          string `gorm:"column:id;type:text;primaryKey" json:"id"`
	SpeakerName string `gorm:"column:speaker_name;type:text;index" json:"speaker_name"`
	SourceFile  string `gorm:"column:source_file;type:text" json:"source_file"`

	IsShortSample bool    `gorm:"column:is_short_sample" json:"is_short_sample"`
	AutoUpdated   bool    `gorm:"column:auto_updated" json:"auto_updated"`
	Confidence    float64 `gorm:"column:confidence;type:double precision" json:"confidence"`

	Embedding pgvector.Vector `gorm:"column:embedding;type:vector(192)" json:"-"`

	CreatedAt time.Time `gorm:"column:created_at;type:timestamptz" json:"created_at"`
}

func (ReferenceEmbedding) TableName() string { return "reference_embeddings" }
