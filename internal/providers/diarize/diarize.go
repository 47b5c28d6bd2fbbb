package diarize

import "context"

// Segment is one speaker turn from the diarizing transcriber. Label is the
// diarizer's conversation-local speaker tag (e.g. "1", "A"), not a stable
// identity.
type Segment struct {
	Label      string
	StartMS    int64
	EndMS      int64
	Text       string
	Confidence float64
}

// Provider transcribes audio and splits it into per-speaker-turn segments.
type Provider interface {
	Transcribe(ctx context.Context, audio []byte) ([]Segment, error)
	Close() error
}
