package vectorindex

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"
)

// MemoryIndex is an in-process Index for tests and single-node development.
// The dimension is configurable so tests can use small vectors.
type MemoryIndex struct {
	mu   sync.RWMutex
	dim  int
	recs map[string]Record
}

func NewMemoryIndex(dim int) *MemoryIndex {
	if dim <= 0 {
		dim = Dim
	}
	return &MemoryIndex{dim: dim, recs: make(map[string]Record)}
}

func (m *MemoryIndex) Query(ctx context.Context, vector []float32, topK int, filter *Filter) ([]Match, error) {
	if len(vector) != m.dim {
		return nil, fmt.Errorf("vectorindex: query vector has %d dims, want %d", len(vector), m.dim)
	}
	if topK <= 0 {
		topK = 1
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	matches := make([]Match, 0, len(m.recs))
	for _, r := range m.recs {
		if filter != nil && filter.SpeakerName != "" && r.Metadata.SpeakerName != filter.SpeakerName {
			continue
		}
		matches = append(matches, Match{
			ID:       r.ID,
			Score:    CosineSimilarity(vector, r.Vector),
			Metadata: r.Metadata,
		})
	}

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		return matches[i].ID < matches[j].ID
	})
	if len(matches) > topK {
		matches = matches[:topK]
	}
	return matches, nil
}

func (m *MemoryIndex) Upsert(ctx context.Context, rec Record) error {
	if len(rec.Vector) != m.dim {
		return fmt.Errorf("vectorindex: vector has %d dims, want %d", len(rec.Vector), m.dim)
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	v := make([]float32, len(rec.Vector))
	copy(v, rec.Vector)
	rec.Vector = v

	m.mu.Lock()
	m.recs[rec.ID] = rec
	m.mu.Unlock()
	return nil
}

func (m *MemoryIndex) Delete(ctx context.Context, ids ...string) error {
	m.mu.Lock()
	for _, id := range ids {
		delete(m.recs, id)
	}
	m.mu.Unlock()
	return nil
}

func (m *MemoryIndex) Fetch(ctx context.Context, ids ...string) ([]Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]Record, 0, len(ids))
	for _, id := range ids {
		if r, ok := m.recs[id]; ok {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *MemoryIndex) Ping(ctx context.Context) error { return nil }

func (m *MemoryIndex) ListSpeakers(ctx context.Context) (map[string]int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(map[string]int)
	for _, r := range m.recs {
		out[r.Metadata.SpeakerName]++
	}
	return out, nil
}

func (m *MemoryIndex) ListBySpeaker(ctx context.Context, speakerName string) ([]Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []Record
	for _, r := range m.recs {
		if r.Metadata.SpeakerName == speakerName {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MemoryIndex) RenameSpeaker(ctx context.Context, from, to string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var n int64
	for id, r := range m.recs {
		if r.Metadata.SpeakerName == from {
			r.Metadata.SpeakerName = to
			m.recs[id] = r
			n++
		}
	}
	return n, nil
}

func (m *MemoryIndex) DeleteBySpeaker(ctx context.Context, speakerName string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var n int64
	for id, r := range m.recs {
		if r.Metadata.SpeakerName == speakerName {
			delete(m.recs, id)
			n++
		}
	}
	return n, nil
}

func (m *MemoryIndex) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.recs)
}

// CosineSimilarity returns the cosine of the angle between a and b, 0 when
// either vector is zero.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
