package domain

import (
	"errors"
)

var (
	MessageSuccessGetRecipes      = "success get recipes"
	MessageSuccessGetRecipeDetail = "success get recipe detail"
	MessageSuccessCreateRecipe    = "recipe created successfully"
	MessageSuccessUpdateRecipe    = "recipe updated successfully"
	MessageSuccessDeleteRecipe    = "recipe deleted successfully"
	MessageSuccessAddFavorite     = "recipe added to favorites"
	MessageSuccessAddShoppingCart = "recipe added to shopping cart"
	MessageSuccessGetShoppingList = "success get shopping list"

	MessageFailedGetRecipes      = "failed to get recipes"
	MessageFailedGetRecipeDetail = "failed to get recipe detail"
	MessageFailedCreateRecipe    = "failed to create recipe"
	MessageFailedUpdateRecipe    = "failed to update recipe"
	MessageFailedDeleteRecipe    = "failed to delete recipe"
	MessageFailedFavorite        = "failed to update favorites"
	MessageFailedShoppingCart    = "failed to update shopping cart"
	MessageFailedShoppingList    = "failed to build shopping list"

	ErrRecipeNotFound      = errors.New("recipe not found")
	ErrNotRecipeOwner      = errors.New("only the author can modify this recipe")
	ErrNoIngredients       = errors.New("you didn't add any ingredients to recipe")
	ErrDuplicateIngredient = errors.New("ingredients must not be repeated")
	ErrInvalidAmount       = errors.New("amount of ingredients can't be less than 1")
	ErrNoTags              = errors.New("you didn't add any tags to recipe")
	ErrDuplicateTag        = errors.New("tags must not be repeated")
	ErrInvalidCookingTime  = errors.New("cooking time can't be less than 1")
	ErrInvalidImage        = errors.New("image must be a valid base64 payload")

	ErrAlreadyFavorited      = errors.New("the recipe is already in your favorite list")
	ErrNotFavorited          = errors.New("the recipe isn't in your favorite list")
	ErrAlreadyInShoppingCart = errors.New("the recipe is already in your shopping list")
	ErrNotInShoppingCart     = errors.New("the recipe isn't in your shopping list")
)

type (
	IngredientAmountRequest struct {
		ID     string `json:"id" validate:"required,uuid"`
		Amount int    `json:"amount" validate:"required,min=1"`
	}

	CreateRecipeRequest struct {
		Name        string                    `json:"name" validate:"required,max=200"`
		Text        string                    `json:"text" validate:"required"`
		Image       string                    `json:"image" validate:"required"`
		CookingTime int                       `json:"cooking_time" validate:"required,min=1"`
		Tags        []string                  `json:"tags" validate:"required,min=1,dive,uuid"`
		Ingredients []IngredientAmountRequest `json:"ingredients" validate:"required,min=1,dive"`
	}

	// UpdateRecipeRequest replaces the tag and ingredient sets wholesale.
	UpdateRecipeRequest struct {
		Name        string                    `json:"name" validate:"required,max=200"`
		Text        string                    `json:"text" validate:"required"`
		Image       string                    `json:"image,omitempty"`
		CookingTime int                       `json:"cooking_time" validate:"required,min=1"`
		Tags        []string                  `json:"tags" validate:"required,min=1,dive,uuid"`
		Ingredients []IngredientAmountRequest `json:"ingredients" validate:"required,min=1,dive"`
	}

	IngredientInRecipeResponse struct {
		ID              string `json:"id"`
		Name            string `json:"name"`
		MeasurementUnit string `json:"measurement_unit"`
		Amount          int    `json:"amount"`
	}

	RecipeResponse struct {
		ID               string                       `json:"id"`
		Name             string                       `json:"name"`
		Tags             []TagResponse                `json:"tags"`
		Author           UserResponse                 `json:"author"`
		Ingredients      []IngredientInRecipeResponse `json:"ingredients"`
		Image            string                       `json:"image"`
		Text             string                       `json:"text"`
		CookingTime      int                          `json:"cooking_time"`
		IsFavorited      bool                         `json:"is_favorited"`
		IsInShoppingCart bool                         `json:"is_in_shopping_cart"`
	}

	ShortRecipeResponse struct {
		ID          string `json:"id"`
		Name        string `json:"name"`
		Image       string `json:"image"`
		CookingTime int    `json:"cooking_time"`
	}

	// RecipeFilter narrows recipe listings; filters compose with AND,
	// tag slugs match with OR semantics within the set.
	RecipeFilter struct {
		Tags             []string
		Author           string
		IsFavorited      bool
		IsInShoppingCart bool
		UserID           string
	}

	ShoppingListItem struct {
		Name            string `json:"name"`
		MeasurementUnit string `json:"measurement_unit"`
		Amount          int    `json:"amount"`
	}
)
