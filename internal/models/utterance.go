package models

import "time"

// Utterance is one diarized speech segment. Speaker, Confidence and EmbeddingID
// start as the diarizer's provisional values and are refined in place by the
// identification pipeline before the row is ever persisted. A stable speaker
// name never regresses back to a Speaker_* placeholder.
type Utterance struct {
	ID             string `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	ConversationID string `gorm:"column:conversation_id;type:uuid;index" json:"conversation_id"`

	Ordinal int   `gorm:"column:ordinal;type:integer" json:"ordinal"`
	StartMS int64 `gorm:"column:start_ms;type:bigint" json:"start_ms"`
	EndMS   int64 `gorm:"column:end_ms;type:bigint" json:"end_ms"`

	Text       string  `gorm:"column:text;type:text" json:"text"`
	Speaker    string  `gorm:"column:speaker;type:text;index" json:"speaker"`
	Confidence float64 `gorm:"column:confidence;type:double precision" json:"confidence"`

	// ID of the matched reference embedding, empty when unidentified.
	EmbeddingID string `gorm:"column:embedding_id;type:text" json:"embedding_id,omitempty"`

	// Object-storage key of the utterance clip, recorded at write time.
	AudioPath string `gorm:"column:audio_path;type:text" json:"audio_path"`

	// Set when the speaker was resolved by combining this utterance with other
	// same-placeholder utterances rather than by its own clip.
	CombinedIdentification bool `gorm:"column:combined_identification" json:"combined_identification"`

	CreatedAt time.Time `gorm:"column:created_at;type:timestamptz" json:"created_at"`
}

func (Utterance) TableName() string { return "utterances" }

func (u *Utterance) DurationMS() int64 { return u.EndMS - u.StartMS }
