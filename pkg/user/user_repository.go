package user

import (
	"context"

	"foodgram-backend/entities"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type (
	UserRepository interface {
		CreateUser(ctx context.Context, user *entities.User) error
		GetUserByEmail(ctx context.Context, email string) (*entities.User, error)
		GetUserByID(ctx context.Context, id string) (*entities.User, error)
		GetUserWithRecipes(ctx context.Context, id string) (*entities.User, error)
		UpdateUser(ctx context.Context, user *entities.User) error
		GetUsers(ctx context.Context, page, limit int) ([]*entities.User, int64, error)
		EmailExists(ctx context.Context, email string) (bool, error)

		IsSubscribed(ctx context.Context, userID, authorID string) (bool, error)
		AddFollow(ctx context.Context, follow *entities.Follow) error
		RemoveFollow(ctx context.Context, userID, authorID string) error
		GetSubscriptions(ctx context.Context, userID string, page, limit int) ([]*entities.User, int64, error)
		SubscribedAuthorIDs(ctx context.Context, userID string, authorIDs []uuid.UUID) ([]uuid.UUID, error)
		RecipeCounts(ctx context.Context, authorIDs []uuid.UUID) (map[uuid.UUID]int64, error)
	}

	userRepository struct {
		db *gorm.DB
	}
)

func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) CreateUser(ctx context.Context, user *entities.User) error {
	return r.db.WithContext(ctx).Create(user).Error
}

func (r *userRepository) GetUserByEmail(ctx context.Context, email string) (*entities.User, error) {
	var user entities.User
	if err := r.db.WithContext(ctx).
		Where("email = ?", email).
		First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepository) GetUserByID(ctx context.Context, id string) (*entities.User, error) {
	var user entities.User
	if err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepository) GetUserWithRecipes(ctx context.Context, id string) (*entities.User, error) {
	var user entities.User
	if err := r.db.WithContext(ctx).
		Preload("Recipes", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at DESC")
		}).
		Where("id = ?", id).
		First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepository) UpdateUser(ctx context.Context, user *entities.User) error {
	return r.db.WithContext(ctx).Save(user).Error
}

func (r *userRepository) GetUsers(ctx context.Context, page, limit int) ([]*entities.User, int64, error) {
	var users []*entities.User
	var count int64
	offset := (page - 1) * limit

	if err := r.db.WithContext(ctx).
		Model(&entities.User{}).
		Count(&count).Error; err != nil {
		return nil, 0, err
	}

	if err := r.db.WithContext(ctx).
		Order("username ASC").
		Offset(offset).
		Limit(limit).
		Find(&users).Error; err != nil {
		return nil, 0, err
	}

	return users, count, nil
}

func (r *userRepository) EmailExists(ctx context.Context, email string) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&entities.User{}).
		Where("email = ?", email).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *userRepository) IsSubscribed(ctx context.Context, userID, authorID string) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&entities.Follow{}).
		Where("user_id = ? AND author_id = ?", userID, authorID).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *userRepository) AddFollow(ctx context.Context, follow *entities.Follow) error {
	return r.db.WithContext(ctx).Create(follow).Error
}

func (r *userRepository) RemoveFollow(ctx context.Context, userID, authorID string) error {
	return r.db.WithContext(ctx).
		Where("user_id = ? AND author_id = ?", userID, authorID).
		Delete(&entities.Follow{}).Error
}

func (r *userRepository) GetSubscriptions(ctx context.Context, userID string, page, limit int) ([]*entities.User, int64, error) {
	var authors []*entities.User
	var count int64
	offset := (page - 1) * limit

	if err := r.db.WithContext(ctx).
		Model(&entities.User{}).
		Joins("JOIN follows ON follows.author_id = users.id").
		Where("follows.user_id = ?", userID).
		Count(&count).Error; err != nil {
		return nil, 0, err
	}

	if err := r.db.WithContext(ctx).
		Preload("Recipes", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at DESC")
		}).
		Joins("JOIN follows ON follows.author_id = users.id").
		Where("follows.user_id = ?", userID).
		Order("users.username ASC").
		Offset(offset).
		Limit(limit).
		Find(&authors).Error; err != nil {
		return nil, 0, err
	}

	return authors, count, nil
}

// SubscribedAuthorIDs returns, in one query, which of the given authors the
// user follows. Used to annotate listings without per-row lookups.
func (r *userRepository) SubscribedAuthorIDs(ctx context.Context, userID string, authorIDs []uuid.UUID) ([]uuid.UUID, error) {
	if len(authorIDs) == 0 {
		return nil, nil
	}

	var ids []uuid.UUID
	if err := r.db.WithContext(ctx).
		Model(&entities.Follow{}).
		Where("user_id = ? AND author_id IN ?", userID, authorIDs).
		Pluck("author_id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}

func (r *userRepository) RecipeCounts(ctx context.Context, authorIDs []uuid.UUID) (map[uuid.UUID]int64, error) {
	counts := make(map[uuid.UUID]int64, len(authorIDs))
	if len(authorIDs) == 0 {
		return counts, nil
	}

	var rows []struct {
		AuthorID uuid.UUID
		Total    int64
	}
	if err := r.db.WithContext(ctx).
		Model(&entities.Recipe{}).
		Select("author_id, COUNT(*) AS total").
		Where("author_id IN ?", authorIDs).
		Group("author_id").
		Scan(&rows).Error; err != nil {
		return nil, err
	}

	for _, row := range rows {
		counts[row.AuthorID] = row.Total
	}
	return counts, nil
}
