package models

import (
	"time"

	"github.com/lib/pq"
	"gorm.io/datatypes"
)

type Conversation struct {
	ID            string `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	DisplayName   string `gorm:"column:display_name;type:text" json:"display_name"`
	OriginalAudio string `gorm:"column:original_audio;type:text" json:"original_audio"`

	// Object-storage key of the full recording, recorded at upload time.
	AudioPath string `gorm:"column:audio_path;type:text" json:"audio_path"`

	DurationSeconds float64 `gorm:"column:duration_seconds;type:double precision" json:"duration_seconds"`

	// Resolved speaker names present in the conversation, filled at finalize.
	Participants pq.StringArray `gorm:"column:participants;type:text[]" json:"participants"`

	Metadata datatypes.JSON `gorm:"column:metadata;type:jsonb" json:"metadata,omitempty"`

	CreatedAt time.Time `gorm:"column:created_at;type:timestamptz" json:"created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at;type:timestamptz" json:"updated_at"`
}

func (Conversation) TableName() string { return "conversations" }
