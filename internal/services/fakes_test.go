package services

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/banddude/voiceid/internal/audio"
	"github.com/banddude/voiceid/internal/models"
	"github.com/banddude/voiceid/internal/utils"
)

var testWAVFormat = audio.Format{Channels: 1, SampleRate: 16000, BitsPerSample: 16}

func testClip(durationMS int64) []byte {
	return audio.Encode(testWAVFormat, make([]byte, durationMS*16000*2/1000))
}

func unitVec(c float64) []float32 {
	return []float32{float32(c), float32(math.Sqrt(1 - c*c)), 0}
}

// durEmbedder maps a clip's duration to a fixed embedding so scenarios are
// deterministic.
type durEmbedder struct {
	byDur map[int64][]float32
	calls int
}

func (e *durEmbedder) Embed(ctx context.Context, clip []byte) ([]float32, error) {
	e.calls++
	d, err := audio.DurationMS(clip)
	if err != nil {
		return nil, err
	}
	v, ok := e.byDur[d]
	if !ok {
		return nil, errors.New("no embedding configured for this clip")
	}
	return v, nil
}

type fakeCache struct {
	mu   sync.Mutex
	vals map[string][]byte
}

func newFakeCache() *fakeCache {
	return &fakeCache{vals: make(map[string][]byte)}
}

func (c *fakeCache) GetJSON(ctx context.Context, key string, dst any) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	b, ok := c.vals[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(b, dst)
}

func (c *fakeCache) SetJSON(ctx context.Context, key string, val any, ttl time.Duration) error {
	b, err := json.Marshal(val)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.vals[key] = b
	c.mu.Unlock()
	return nil
}

func (c *fakeCache) Del(ctx context.Context, keys ...string) error {
	c.mu.Lock()
	for _, k := range keys {
		delete(c.vals, k)
	}
	c.mu.Unlock()
	return nil
}

func (c *fakeCache) DelPrefix(ctx context.Context, prefix string) error {
	c.mu.Lock()
	for k := range c.vals {
		if strings.HasPrefix(k, prefix) {
			delete(c.vals, k)
		}
	}
	c.mu.Unlock()
	return nil
}

type fakeSpeakerRepo struct {
	rows map[string]*models.Speaker
}

func newFakeSpeakerRepo() *fakeSpeakerRepo {
	return &fakeSpeakerRepo{rows: make(map[string]*models.Speaker)}
}

func (r *fakeSpeakerRepo) Upsert(ctx context.Context, speaker *models.Speaker) error {
	if existing, ok := r.rows[speaker.Name]; ok {
		*speaker = *existing
		return nil
	}
	cp := *speaker
	r.rows[speaker.Name] = &cp
	return nil
}

func (r *fakeSpeakerRepo) GetByName(ctx context.Context, name string) (*models.Speaker, error) {
	if sp, ok := r.rows[name]; ok {
		cp := *sp
		return &cp, nil
	}
	return nil, utils.ErrNotFound
}

func (r *fakeSpeakerRepo) List(ctx context.Context) ([]models.Speaker, error) {
	out := make([]models.Speaker, 0, len(r.rows))
	for _, sp := range r.rows {
		out = append(out, *sp)
	}
	return out, nil
}

func (r *fakeSpeakerRepo) Rename(ctx context.Context, from, to string) error {
	sp, ok := r.rows[from]
	if !ok {
		return utils.ErrNotFound
	}
	delete(r.rows, from)
	sp.Name = to
	r.rows[to] = sp
	return nil
}

func (r *fakeSpeakerRepo) Delete(ctx context.Context, name string) error {
	delete(r.rows, name)
	return nil
}

type fakeUtteranceRepo struct {
	rows []*models.Utterance
}

func (r *fakeUtteranceRepo) InsertBatch(ctx context.Context, rows []*models.Utterance) error {
	r.rows = append(r.rows, rows...)
	return nil
}

func (r *fakeUtteranceRepo) GetByID(ctx context.Context, id string) (*models.Utterance, error) {
	for _, u := range r.rows {
		if u.ID == id {
			return u, nil
		}
	}
	return nil, utils.ErrNotFound
}

func (r *fakeUtteranceRepo) ListByConversation(ctx context.Context, conversationID string) ([]models.Utterance, error) {
	var out []models.Utterance
	for _, u := range r.rows {
		if u.ConversationID == conversationID {
			out = append(out, *u)
		}
	}
	return out, nil
}

func (r *fakeUtteranceRepo) UpdateSpeaker(ctx context.Context, id, speaker string) error {
	for _, u := range r.rows {
		if u.ID == id {
			u.Speaker = speaker
			return nil
		}
	}
	return utils.ErrNotFound
}

func (r *fakeUtteranceRepo) ReassignSpeaker(ctx context.Context, from, to string) (int64, error) {
	var n int64
	for _, u := range r.rows {
		if u.Speaker == from {
			u.Speaker = to
			n++
		}
	}
	return n, nil
}

func (r *fakeUtteranceRepo) DeleteByConversation(ctx context.Context, conversationID string) error {
	kept := r.rows[:0]
	for _, u := range r.rows {
		if u.ConversationID != conversationID {
			kept = append(kept, u)
		}
	}
	r.rows = kept
	return nil
}

type fakeUserRepo struct {
	rows map[string]*models.User // by email
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{rows: make(map[string]*models.User)}
}

func (r *fakeUserRepo) Insert(ctx context.Context, user *models.User) error {
	r.rows[user.Email] = user
	return nil
}

func (r *fakeUserRepo) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	if u, ok := r.rows[email]; ok {
		return u, nil
	}
	return nil, utils.ErrNotFound
}

func (r *fakeUserRepo) GetByID(ctx context.Context, id string) (*models.User, error) {
	for _, u := range r.rows {
		if u.ID == id {
			return u, nil
		}
	}
	return nil, utils.ErrNotFound
}
