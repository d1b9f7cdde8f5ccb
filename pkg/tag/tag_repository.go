package tag

import (
	"context"

	"foodgram-backend/entities"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type (
	TagRepository interface {
		CreateTag(ctx context.Context, tag *entities.Tag) error
		GetTags(ctx context.Context) ([]*entities.Tag, error)
		GetTagByID(ctx context.Context, id string) (*entities.Tag, error)
		GetTagsByIDs(ctx context.Context, ids []uuid.UUID) ([]*entities.Tag, error)
		TagExists(ctx context.Context, name, color, slug string) (bool, error)
	}

	tagRepository struct {
		db *gorm.DB
	}
)

func NewTagRepository(db *gorm.DB) TagRepository {
	return &tagRepository{db: db}
}

func (r *tagRepository) CreateTag(ctx context.Context, tag *entities.Tag) error {
	return r.db.WithContext(ctx).Create(tag).Error
}

func (r *tagRepository) GetTags(ctx context.Context) ([]*entities.Tag, error) {
	var tags []*entities.Tag
	if err := r.db.WithContext(ctx).
		Order("name ASC").
		Find(&tags).Error; err != nil {
		return nil, err
	}
	return tags, nil
}

func (r *tagRepository) GetTagByID(ctx context.Context, id string) (*entities.Tag, error) {
	var tag entities.Tag
	if err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&tag).Error; err != nil {
		return nil, err
	}
	return &tag, nil
}

func (r *tagRepository) GetTagsByIDs(ctx context.Context, ids []uuid.UUID) ([]*entities.Tag, error) {
	var tags []*entities.Tag
	if err := r.db.WithContext(ctx).
		Where("id IN ?", ids).
		Find(&tags).Error; err != nil {
		return nil, err
	}
	return tags, nil
}

func (r *tagRepository) TagExists(ctx context.Context, name, color, slug string) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&entities.Tag{}).
		Where("name = ? OR color = ? OR slug = ?", name, color, slug).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}
