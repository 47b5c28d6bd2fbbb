// Package speakerid resolves diarized utterances to persistent speaker
// identities by voice-embedding similarity against the reference set, and
// decides when a confident observation should grow that reference set.
package speakerid

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

const (
	// MinSegmentMS is a fixed policy floor, not a tunable: embeddings from
	// clips shorter than this are too unreliable to match individually.
	MinSegmentMS = 700

	// ShortSampleMS marks a clip as a short sample; short-but-eligible clips
	// get a runner-up in the index query for diagnostic visibility.
	ShortSampleMS = 1000

	// DuplicateSimilarityThreshold guards auto-enrollment: candidates this
	// close to an existing reference vector are absorbed, not inserted.
	DuplicateSimilarityThreshold = 0.92

	// PlaceholderPrefix marks diarizer-local labels not yet resolved to a
	// stable identity.
	PlaceholderPrefix = "Speaker_"

	DefaultMatchThreshold      = 0.40
	DefaultAutoUpdateThreshold = 0.50
)

// MatchResult is the outcome of matching one clip against the reference set.
// SpeakerName is empty when no reference crossed the threshold; Score still
// carries the top-1 similarity in that case, and 0 after a transient failure.
type MatchResult struct {
	SpeakerName string
	Score       float64
	ReferenceID string
	Embedding   []float32
}

func (r MatchResult) Matched() bool { return r.SpeakerName != "" }

// IsPlaceholder reports whether a speaker label is a diarizer-local
// placeholder rather than a stable identity.
func IsPlaceholder(label string) bool {
	return strings.HasPrefix(label, PlaceholderPrefix)
}

// Placeholder builds the placeholder label for a diarizer-local tag.
func Placeholder(localLabel string) string {
	return PlaceholderPrefix + localLabel
}

// NewReferenceID builds a fresh reference-embedding id for a speaker.
func NewReferenceID(speakerName string) string {
	hex := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return fmt.Sprintf("speaker_%s_%s", strings.ReplaceAll(speakerName, " ", "_"), hex)
}

// Config carries the pipeline tunables. The match and auto-update thresholds
// are independent: no relationship between them (or the duplicate guard) is
// assumed or derived.
type Config struct {
	MatchThreshold      float64
	AutoUpdateThreshold float64
	Workers             int
}

func (c Config) withDefaults() Config {
	if c.MatchThreshold <= 0 {
		c.MatchThreshold = DefaultMatchThreshold
	}
	if c.AutoUpdateThreshold <= 0 {
		c.AutoUpdateThreshold = DefaultAutoUpdateThreshold
	}
	if c.Workers <= 0 {
		c.Workers = 4
	}
	return c
}
