package entities

import (
	"time"

	"github.com/google/uuid"
)

type Recipe struct {
	ID          uuid.UUID `gorm:"type:uuid;primary_key" json:"id"`
	AuthorID    uuid.UUID `json:"author_id"`
	Name        string    `gorm:"size:200" json:"name"`
	ImageURL    string    `json:"image_url,omitempty"`
	Text        string    `gorm:"type:text" json:"text"`
	CookingTime int       `json:"cooking_time"` // minutes, >= 1

	Author  *User                 `gorm:"foreignKey:AuthorID;constraint:OnDelete:CASCADE"`
	Tags    []*Tag                `gorm:"many2many:recipe_tags"`
	Amounts []*IngredientInRecipe `gorm:"foreignKey:RecipeID"`
	Timestamp
}

type IngredientInRecipe struct {
	ID           uuid.UUID `gorm:"type:uuid;primary_key" json:"id"`
	RecipeID     uuid.UUID `gorm:"uniqueIndex:idx_recipe_ingredient" json:"recipe_id"`
	IngredientID uuid.UUID `gorm:"uniqueIndex:idx_recipe_ingredient" json:"ingredient_id"`
	Amount       int       `json:"amount"` // >= 1

	Recipe     *Recipe     `gorm:"foreignKey:RecipeID;constraint:OnDelete:CASCADE"`
	Ingredient *Ingredient `gorm:"foreignKey:IngredientID;constraint:OnDelete:CASCADE"`
}

type Favorite struct {
	ID        uuid.UUID `gorm:"type:uuid;primary_key" json:"id"`
	UserID    uuid.UUID `gorm:"uniqueIndex:idx_favorite_pair" json:"user_id"`
	RecipeID  uuid.UUID `gorm:"uniqueIndex:idx_favorite_pair" json:"recipe_id"`
	CreatedAt time.Time `gorm:"type:timestamp" json:"created_at"`

	User   *User   `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE"`
	Recipe *Recipe `gorm:"foreignKey:RecipeID;constraint:OnDelete:CASCADE"`
}

type Shopping struct {
	ID        uuid.UUID `gorm:"type:uuid;primary_key" json:"id"`
	UserID    uuid.UUID `gorm:"uniqueIndex:idx_shopping_pair" json:"user_id"`
	RecipeID  uuid.UUID `gorm:"uniqueIndex:idx_shopping_pair" json:"recipe_id"`
	CreatedAt time.Time `gorm:"type:timestamp" json:"created_at"`

	User   *User   `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE"`
	Recipe *Recipe `gorm:"foreignKey:RecipeID;constraint:OnDelete:CASCADE"`
}
