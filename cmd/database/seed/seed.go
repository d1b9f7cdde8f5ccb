package seed

import (
	"encoding/json"
	"fmt"
	"os"

	"foodgram-backend/entities"
	"foodgram-backend/internal/utils"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type (
	tagFixture struct {
		Name  string `json:"name"`
		Color string `json:"color"`
		Slug  string `json:"slug"`
	}

	ingredientFixture struct {
		Name            string `json:"name"`
		MeasurementUnit string `json:"measurement_unit"`
	}
)

// Seed loads the tag and ingredient fixtures named in the config.
// Rows that already exist are left untouched, so reruns are safe.
func Seed(db *gorm.DB) error {
	if err := seedTags(db, utils.GetConfig("TAGS_FIXTURE")); err != nil {
		return err
	}
	return seedIngredients(db, utils.GetConfig("INGREDIENTS_FIXTURE"))
}

func seedTags(db *gorm.DB, path string) error {
	if path == "" {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read tags fixture: %w", err)
	}

	var fixtures []tagFixture
	if err := json.Unmarshal(data, &fixtures); err != nil {
		return fmt.Errorf("parse tags fixture: %w", err)
	}

	for _, f := range fixtures {
		tag := entities.Tag{
			ID:    uuid.New(),
			Name:  f.Name,
			Color: f.Color,
			Slug:  f.Slug,
		}
		if err := db.Where("slug = ?", f.Slug).FirstOrCreate(&tag).Error; err != nil {
			return fmt.Errorf("seed tag %q: %w", f.Slug, err)
		}
	}
	return nil
}

func seedIngredients(db *gorm.DB, path string) error {
	if path == "" {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read ingredients fixture: %w", err)
	}

	var fixtures []ingredientFixture
	if err := json.Unmarshal(data, &fixtures); err != nil {
		return fmt.Errorf("parse ingredients fixture: %w", err)
	}

	for _, f := range fixtures {
		ingredient := entities.Ingredient{
			ID:              uuid.New(),
			Name:            f.Name,
			MeasurementUnit: f.MeasurementUnit,
		}
		if err := db.Where("name = ?", f.Name).FirstOrCreate(&ingredient).Error; err != nil {
			return fmt.Errorf("seed ingredient %q: %w", f.Name, err)
		}
	}
	return nil
}
