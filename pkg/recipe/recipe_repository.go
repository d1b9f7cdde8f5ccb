package recipe

import (
	"context"

	"foodgram-backend/domain"
	"foodgram-backend/entities"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type (
	RecipeRepository interface {
		CreateRecipe(ctx context.Context, recipe *entities.Recipe, tags []*entities.Tag, amounts []*entities.IngredientInRecipe) error
		UpdateRecipe(ctx context.Context, recipe *entities.Recipe, tags []*entities.Tag, amounts []*entities.IngredientInRecipe) error
		DeleteRecipe(ctx context.Context, recipe *entities.Recipe) error
		GetRecipeByID(ctx context.Context, id string) (*entities.Recipe, error)
		GetRecipes(ctx context.Context, filter domain.RecipeFilter, page, limit int) ([]*entities.Recipe, int64, error)

		FavoriteRecipeIDs(ctx context.Context, userID string, recipeIDs []uuid.UUID) ([]uuid.UUID, error)
		ShoppingRecipeIDs(ctx context.Context, userID string, recipeIDs []uuid.UUID) ([]uuid.UUID, error)

		IsFavorited(ctx context.Context, userID, recipeID string) (bool, error)
		AddFavorite(ctx context.Context, favorite *entities.Favorite) error
		RemoveFavorite(ctx context.Context, userID, recipeID string) error

		IsInShoppingCart(ctx context.Context, userID, recipeID string) (bool, error)
		AddShopping(ctx context.Context, shopping *entities.Shopping) error
		RemoveShopping(ctx context.Context, userID, recipeID string) error

		ShoppingList(ctx context.Context, userID string) ([]domain.ShoppingListItem, error)
	}

	recipeRepository struct {
		db *gorm.DB
	}
)

func NewRecipeRepository(db *gorm.DB) RecipeRepository {
	return &recipeRepository{db: db}
}

// CreateRecipe persists the recipe together with its tag links and
// ingredient amounts in one transaction, so a failing insert rolls
// back the whole mutation.
func (r *recipeRepository) CreateRecipe(ctx context.Context, recipe *entities.Recipe, tags []*entities.Tag, amounts []*entities.IngredientInRecipe) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Create(recipe).Error; err != nil {
			return err
		}
		if err := tx.Model(recipe).Association("Tags").Append(tags); err != nil {
			return err
		}
		for _, amount := range amounts {
			amount.RecipeID = recipe.ID
		}
		return tx.Create(&amounts).Error
	})
}

// UpdateRecipe replaces the recipe's tag and ingredient sets wholesale:
// the stored associations are dropped and the payload's set is applied.
func (r *recipeRepository) UpdateRecipe(ctx context.Context, recipe *entities.Recipe, tags []*entities.Tag, amounts []*entities.IngredientInRecipe) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("recipe_id = ?", recipe.ID).
			Delete(&entities.IngredientInRecipe{}).Error; err != nil {
			return err
		}
		if err := tx.Model(recipe).Association("Tags").Clear(); err != nil {
			return err
		}
		if err := tx.Omit(clause.Associations).Save(recipe).Error; err != nil {
			return err
		}
		if err := tx.Model(recipe).Association("Tags").Append(tags); err != nil {
			return err
		}
		for _, amount := range amounts {
			amount.RecipeID = recipe.ID
		}
		return tx.Create(&amounts).Error
	})
}

func (r *recipeRepository) DeleteRecipe(ctx context.Context, recipe *entities.Recipe) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("recipe_id = ?", recipe.ID).
			Delete(&entities.IngredientInRecipe{}).Error; err != nil {
			return err
		}
		if err := tx.Where("recipe_id = ?", recipe.ID).
			Delete(&entities.Favorite{}).Error; err != nil {
			return err
		}
		if err := tx.Where("recipe_id = ?", recipe.ID).
			Delete(&entities.Shopping{}).Error; err != nil {
			return err
		}
		if err := tx.Model(recipe).Association("Tags").Clear(); err != nil {
			return err
		}
		return tx.Delete(recipe).Error
	})
}

func (r *recipeRepository) GetRecipeByID(ctx context.Context, id string) (*entities.Recipe, error) {
	var recipe entities.Recipe
	if err := r.db.WithContext(ctx).
		Preload("Tags").
		Preload("Author").
		Preload("Amounts.Ingredient").
		Where("id = ?", id).
		First(&recipe).Error; err != nil {
		return nil, err
	}
	return &recipe, nil
}

func (r *recipeRepository) filteredQuery(ctx context.Context, filter domain.RecipeFilter) *gorm.DB {
	query := r.db.WithContext(ctx).Model(&entities.Recipe{})

	if len(filter.Tags) > 0 {
		// OR within the slug set, AND against the other filters.
		query = query.Where("recipes.id IN (?)",
			r.db.Model(&entities.Tag{}).
				Select("recipe_tags.recipe_id").
				Joins("JOIN recipe_tags ON recipe_tags.tag_id = tags.id").
				Where("tags.slug IN ?", filter.Tags),
		)
	}
	if filter.Author != "" {
		query = query.Where("recipes.author_id = ?", filter.Author)
	}
	if filter.IsFavorited {
		query = query.Where("recipes.id IN (?)",
			r.db.Model(&entities.Favorite{}).
				Select("recipe_id").
				Where("user_id = ?", filter.UserID),
		)
	}
	if filter.IsInShoppingCart {
		query = query.Where("recipes.id IN (?)",
			r.db.Model(&entities.Shopping{}).
				Select("recipe_id").
				Where("user_id = ?", filter.UserID),
		)
	}

	return query
}

func (r *recipeRepository) GetRecipes(ctx context.Context, filter domain.RecipeFilter, page, limit int) ([]*entities.Recipe, int64, error) {
	var recipes []*entities.Recipe
	var count int64
	offset := (page - 1) * limit

	if err := r.filteredQuery(ctx, filter).Count(&count).Error; err != nil {
		return nil, 0, err
	}

	if err := r.filteredQuery(ctx, filter).
		Preload("Tags").
		Preload("Author").
		Preload("Amounts.Ingredient").
		Order("recipes.created_at DESC").
		Offset(offset).
		Limit(limit).
		Find(&recipes).Error; err != nil {
		return nil, 0, err
	}

	return recipes, count, nil
}

// FavoriteRecipeIDs returns which of the given recipes the user
// favorited, in one query, for listing annotation.
func (r *recipeRepository) FavoriteRecipeIDs(ctx context.Context, userID string, recipeIDs []uuid.UUID) ([]uuid.UUID, error) {
	if len(recipeIDs) == 0 {
		return nil, nil
	}

	var ids []uuid.UUID
	if err := r.db.WithContext(ctx).
		Model(&entities.Favorite{}).
		Where("user_id = ? AND recipe_id IN ?", userID, recipeIDs).
		Pluck("recipe_id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}

func (r *recipeRepository) ShoppingRecipeIDs(ctx context.Context, userID string, recipeIDs []uuid.UUID) ([]uuid.UUID, error) {
	if len(recipeIDs) == 0 {
		return nil, nil
	}

	var ids []uuid.UUID
	if err := r.db.WithContext(ctx).
		Model(&entities.Shopping{}).
		Where("user_id = ? AND recipe_id IN ?", userID, recipeIDs).
		Pluck("recipe_id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}

func (r *recipeRepository) IsFavorited(ctx context.Context, userID, recipeID string) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&entities.Favorite{}).
		Where("user_id = ? AND recipe_id = ?", userID, recipeID).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *recipeRepository) AddFavorite(ctx context.Context, favorite *entities.Favorite) error {
	return r.db.WithContext(ctx).Create(favorite).Error
}

func (r *recipeRepository) RemoveFavorite(ctx context.Context, userID, recipeID string) error {
	return r.db.WithContext(ctx).
		Where("user_id = ? AND recipe_id = ?", userID, recipeID).
		Delete(&entities.Favorite{}).Error
}

func (r *recipeRepository) IsInShoppingCart(ctx context.Context, userID, recipeID string) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&entities.Shopping{}).
		Where("user_id = ? AND recipe_id = ?", userID, recipeID).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *recipeRepository) AddShopping(ctx context.Context, shopping *entities.Shopping) error {
	return r.db.WithContext(ctx).Create(shopping).Error
}

func (r *recipeRepository) RemoveShopping(ctx context.Context, userID, recipeID string) error {
	return r.db.WithContext(ctx).
		Where("user_id = ? AND recipe_id = ?", userID, recipeID).
		Delete(&entities.Shopping{}).Error
}

// ShoppingList aggregates ingredient amounts across every recipe in the
// user's cart, grouped by ingredient name and unit.
func (r *recipeRepository) ShoppingList(ctx context.Context, userID string) ([]domain.ShoppingListItem, error) {
	var items []domain.ShoppingListItem
	if err := r.db.WithContext(ctx).
		Model(&entities.IngredientInRecipe{}).
		Select("ingredients.name AS name, ingredients.measurement_unit AS measurement_unit, SUM(ingredient_in_recipes.amount) AS amount").
		Joins("JOIN shoppings ON shoppings.recipe_id = ingredient_in_recipes.recipe_id").
		Joins("JOIN ingredients ON ingredients.id = ingredient_in_recipes.ingredient_id").
		Where("shoppings.user_id = ?", userID).
		Group("ingredients.name, ingredients.measurement_unit").
		Order("ingredients.name ASC").
		Scan(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}
