package postgres

import (
	"context"
	"errors"

	"github.com/banddude/voiceid/internal/models"
	"github.com/banddude/voiceid/internal/utils"
	"gorm.io/gorm"
)

type SpeakerRepo interface {
	Upsert(ctx context.Context, speaker *models.Speaker) error
	GetByName(ctx context.Context, name string) (*models.Speaker, error)
	List(ctx context.Context) ([]models.Speaker, error)
	Rename(ctx context.Context, from, to string) error
	Delete(ctx context.Context, name string) error
}

type speakerRepo struct {
	db *gorm.DB
}

func NewSpeakerRepo(db *gorm.DB) SpeakerRepo {
	return &speakerRepo{db: db}
}

// Upsert inserts the speaker or leaves an existing row of the same name
// untouched. Names are the natural key.
func (r *speakerRepo) Upsert(ctx context.Context, speaker *models.Speaker) error {
	return r.db.WithContext(ctx).
		Where(models.Speaker{Name: speaker.Name}).
		FirstOrCreate(speaker).Error
}

func (r *speakerRepo) GetByName(ctx context.Context, name string) (*models.Speaker, error) {
	var row models.Speaker
	err := r.db.WithContext(ctx).Where("name = ?", name).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, utils.ErrNotFound
	}
	return &row, err
}

func (r *speakerRepo) List(ctx context.Context) ([]models.Speaker, error) {
	var rows []models.Speaker
	err := r.db.WithContext(ctx).Order("name ASC").Find(&rows).Error
	return rows, err
}

func (r *speakerRepo) Rename(ctx context.Context, from, to string) error {
	res := r.db.WithContext(ctx).
		Model(&models.Speaker{}).
		Where("name = ?", from).
		Update("name", to)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return utils.ErrNotFound
	}
	return nil
}

func (r *speakerRepo) Delete(ctx context.Context, name string) error {
	return r.db.WithContext(ctx).Where("name = ?", name).Delete(&models.Speaker{}).Error
}
