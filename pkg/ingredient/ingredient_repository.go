package ingredient

import (
	"context"
	"strings"

	"foodgram-backend/entities"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type (
	IngredientRepository interface {
		CreateIngredient(ctx context.Context, ingredient *entities.Ingredient) error
		GetIngredients(ctx context.Context, name string) ([]*entities.Ingredient, error)
		GetIngredientByID(ctx context.Context, id string) (*entities.Ingredient, error)
		GetIngredientsByIDs(ctx context.Context, ids []uuid.UUID) ([]*entities.Ingredient, error)
	}

	ingredientRepository struct {
		db *gorm.DB
	}
)

func NewIngredientRepository(db *gorm.DB) IngredientRepository {
	return &ingredientRepository{db: db}
}

func (r *ingredientRepository) CreateIngredient(ctx context.Context, ingredient *entities.Ingredient) error {
	return r.db.WithContext(ctx).Create(ingredient).Error
}

func (r *ingredientRepository) GetIngredients(ctx context.Context, name string) ([]*entities.Ingredient, error) {
	var ingredients []*entities.Ingredient

	query := r.db.WithContext(ctx).Order("name ASC")
	if name != "" {
		// Case-insensitive substring match, portable across drivers.
		query = query.Where("LOWER(name) LIKE ?", "%"+strings.ToLower(name)+"%")
	}

	if err := query.Find(&ingredients).Error; err != nil {
		return nil, err
	}
	return ingredients, nil
}

func (r *ingredientRepository) GetIngredientByID(ctx context.Context, id string) (*entities.Ingredient, error) {
	var ingredient entities.Ingredient
	if err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&ingredient).Error; err != nil {
		return nil, err
	}
	return &ingredient, nil
}

func (r *ingredientRepository) GetIngredientsByIDs(ctx context.Context, ids []uuid.UUID) ([]*entities.Ingredient, error) {
	var ingredients []*entities.Ingredient
	if err := r.db.WithContext(ctx).
		Where("id IN ?", ids).
		Find(&ingredients).Error; err != nil {
		return nil, err
	}
	return ingredients, nil
}
