package postgres

import (
	"context"
	"errors"

	"github.com/banddude/voiceid/internal/models"
	"github.com/banddude/voiceid/internal/utils"
	"gorm.io/gorm"
)

type UtteranceRepo interface {
	InsertBatch(ctx context.Context, rows []*models.Utterance) error
	GetByID(ctx context.Context, id string) (*models.Utterance, error)
	ListByConversation(ctx context.Context, conversationID string) ([]models.Utterance, error)
	UpdateSpeaker(ctx context.Context, id, speaker string) error
	ReassignSpeaker(ctx context.Context, from, to string) (int64, error)
	DeleteByConversation(ctx context.Context, conversationID string) error
}

type utteranceRepo struct {
	db *gorm.DB
}

func NewUtteranceRepo(db *gorm.DB) UtteranceRepo {
	return &utteranceRepo{db: db}
}

func (r *utteranceRepo) InsertBatch(ctx context.Context, rows []*models.Utterance) error {
	if len(rows) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(rows).Error
}

func (r *utteranceRepo) GetByID(ctx context.Context, id string) (*models.Utterance, error) {
	var row models.Utterance
	err := r.db.WithContext(ctx).Where("id = ?", id).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, utils.ErrNotFound
	}
	return &row, err
}

func (r *utteranceRepo) ListByConversation(ctx context.Context, conversationID string) ([]models.Utterance, error) {
	var rows []models.Utterance
	err := r.db.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Order("start_ms ASC").
		Find(&rows).Error
	return rows, err
}

func (r *utteranceRepo) UpdateSpeaker(ctx context.Context, id, speaker string) error {
	res := r.db.WithContext(ctx).
		Model(&models.Utterance{}).
		Where("id = ?", id).
		Update("speaker", speaker)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return utils.ErrNotFound
	}
	return nil
}

// ReassignSpeaker renames a speaker across every utterance, returning the
// number of rows touched.
func (r *utteranceRepo) ReassignSpeaker(ctx context.Context, from, to string) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Utterance{}).
		Where("speaker = ?", from).
		Update("speaker", to)
	return res.RowsAffected, res.Error
}

func (r *utteranceRepo) DeleteByConversation(ctx context.Context, conversationID string) error {
	return r.db.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Delete(&models.Utterance{}).Error
}
