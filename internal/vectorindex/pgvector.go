package vectorindex

import (
	"context"
	"fmt"
	"time"

	"github.com/pgvector/pgvector-go"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/banddude/voiceid/internal/models"
)

// PGIndex serves similarity queries from the reference_embeddings table using
// the pgvector cosine-distance operator.
type PGIndex struct {
	db *gorm.DB
}

func NewPGIndex(db *gorm.DB) *PGIndex {
	return &PGIndex{db: db}
}

type pgMatch struct {
	models.ReferenceEmbedding
	Score float64 `gorm:"column:score"`
}

func (x *PGIndex) Query(ctx context.Context, vector []float32, topK int, filter *Filter) ([]Match, error) {
	if len(vector) != Dim {
		return nil, fmt.Errorf("vectorindex: query vector has %d dims, want %d", len(vector), Dim)
	}
	if topK <= 0 {
		topK = 1
	}

	v := pgvector.NewVector(vector)
	q := x.db.WithContext(ctx).
		Model(&models.ReferenceEmbedding{}).
		// cosine similarity = 1 - cosine distance
		Select("*, 1 - (embedding <=> ?) AS score", v).
		Clauses(clause.OrderBy{
			Expression: clause.Expr{SQL: "embedding <=> ?", Vars: []interface{}{v}},
		}).
		Limit(topK)
	if filter != nil && filter.SpeakerName != "" {
		q = q.Where("speaker_name = ?", filter.SpeakerName)
	}

	var rows []pgMatch
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}

	out := make([]Match, 0, len(rows))
	for _, r := range rows {
		out = append(out, Match{
			ID:       r.ID,
			Score:    r.Score,
			Metadata: metadataOf(r.ReferenceEmbedding),
		})
	}
	return out, nil
}

func (x *PGIndex) Upsert(ctx context.Context, rec Record) error {
	if len(rec.Vector) != Dim {
		return fmt.Errorf("vectorindex: vector has %d dims, want %d", len(rec.Vector), Dim)
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	row := models.ReferenceEmbedding{
		ID:            rec.ID,
		SpeakerName:   rec.Metadata.SpeakerName,
		SourceFile:    rec.Metadata.SourceFile,
		IsShortSample: rec.Metadata.IsShortSample,
		AutoUpdated:   rec.Metadata.AutoUpdated,
		Confidence:    rec.Metadata.Confidence,
		Embedding:     pgvector.NewVector(rec.Vector),
		CreatedAt:     rec.CreatedAt,
	}
	return x.db.WithContext(ctx).Save(&row).Error
}

func (x *PGIndex) Delete(ctx context.Context, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	return x.db.WithContext(ctx).Delete(&models.ReferenceEmbedding{}, "id IN ?", ids).Error
}

func (x *PGIndex) Fetch(ctx context.Context, ids ...string) ([]Record, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	var rows []models.ReferenceEmbedding
	if err := x.db.WithContext(ctx).Where("id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, err
	}

	out := make([]Record, 0, len(rows))
	for _, r := range rows {
		out = append(out, Record{
			ID:        r.ID,
			Vector:    r.Embedding.Slice(),
			Metadata:  metadataOf(r),
			CreatedAt: r.CreatedAt,
		})
	}
	return out, nil
}

func (x *PGIndex) Ping(ctx context.Context) error {
	sqlDB, err := x.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// ListSpeakers returns enrolled speaker names with their embedding counts.
func (x *PGIndex) ListSpeakers(ctx context.Context) (map[string]int, error) {
	var rows []struct {
		SpeakerName string
		N           int
	}
	err := x.db.WithContext(ctx).
		Model(&models.ReferenceEmbedding{}).
		Select("speaker_name, count(*) AS n").
		Group("speaker_name").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	out := make(map[string]int, len(rows))
	for _, r := range rows {
		out[r.SpeakerName] = r.N
	}
	return out, nil
}

// ListBySpeaker returns every reference embedding enrolled under a name.
func (x *PGIndex) ListBySpeaker(ctx context.Context, speakerName string) ([]Record, error) {
	var rows []models.ReferenceEmbedding
	err := x.db.WithContext(ctx).
		Where("speaker_name = ?", speakerName).
		Order("created_at ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	out := make([]Record, 0, len(rows))
	for _, r := range rows {
		out = append(out, Record{
			ID:        r.ID,
			Vector:    r.Embedding.Slice(),
			Metadata:  metadataOf(r),
			CreatedAt: r.CreatedAt,
		})
	}
	return out, nil
}

// RenameSpeaker moves every embedding enrolled under from to the new name.
// Reference IDs keep their original name fragment; the name column is
// authoritative.
func (x *PGIndex) RenameSpeaker(ctx context.Context, from, to string) (int64, error) {
	res := x.db.WithContext(ctx).
		Model(&models.ReferenceEmbedding{}).
		Where("speaker_name = ?", from).
		Update("speaker_name", to)
	return res.RowsAffected, res.Error
}

// DeleteBySpeaker removes every reference embedding enrolled under a name and
// returns how many were removed.
func (x *PGIndex) DeleteBySpeaker(ctx context.Context, speakerName string) (int64, error) {
	res := x.db.WithContext(ctx).Delete(&models.ReferenceEmbedding{}, "speaker_name = ?", speakerName)
	return res.RowsAffected, res.Error
}

func metadataOf(r models.ReferenceEmbedding) Metadata {
	return Metadata{
		SpeakerName:   r.SpeakerName,
		SourceFile:    r.SourceFile,
		IsShortSample: r.IsShortSample,
		AutoUpdated:   r.AutoUpdated,
		Confidence:    r.Confidence,
	}
}
