// Package vectorindex is the similarity index over enrolled speaker
// embeddings: nearest-neighbor queries by cosine similarity with typed
// metadata. Backed by pgvector in production and by an in-memory index in
// tests and local development.
package vectorindex

import (
	"context"
	"time"
)

// Dim is the embedding dimensionality fixed by the embedding service.
const Dim = 192

// Metadata is the fixed metadata shape attached to every reference vector.
// SpeakerName is the only filterable attribute.
type Metadata struct {
	SpeakerName   string  `json:"speaker_name"`
	SourceFile    string  `json:"source_file"`
	IsShortSample bool    `json:"is_short_sample"`
	AutoUpdated   bool    `json:"auto_updated"`
	Confidence    float64 `json:"confidence"`
}

type Record struct {
	ID        string    `json:"id"`
	Vector    []float32 `json:"vector"`
	Metadata  Metadata  `json:"metadata"`
	CreatedAt time.Time `json:"created_at"`
}

// Match is one query result. Score is cosine similarity in [-1, 1], higher is
// more similar.
type Match struct {
	ID       string   `json:"id"`
	Score    float64  `json:"score"`
	Metadata Metadata `json:"metadata"`
}

type Filter struct {
	SpeakerName string
}

type Index interface {
	// Query returns up to topK nearest records, best first.
	Query(ctx context.Context, vector []float32, topK int, filter *Filter) ([]Match, error)
	Upsert(ctx context.Context, rec Record) error
	Delete(ctx context.Context, ids ...string) error
	Fetch(ctx context.Context, ids ...string) ([]Record, error)

	// Ping reports whether the index is reachable; the pipeline refuses to
	// start a conversation when it is not.
	Ping(ctx context.Context) error
}
