package migration

import (
	"fmt"
	"log"

	"foodgram-backend/entities"

	"gorm.io/gorm"
)

func Migrate(db *gorm.DB) error {
	db.Exec("CREATE EXTENSION IF NOT EXISTS \"uuid-ossp\";")

	if err := db.AutoMigrate(&entities.User{}); err != nil {
		log.Fatalf("Error migrating user database: %v", err)
		return err
	}
	if err := db.AutoMigrate(&entities.Follow{}); err != nil {
		log.Fatalf("Error migrating follow database: %v", err)
		return err
	}
	if err := db.AutoMigrate(&entities.Tag{}); err != nil {
		log.Fatalf("Error migrating tag database: %v", err)
		return err
	}
	if err := db.AutoMigrate(&entities.Ingredient{}); err != nil {
		log.Fatalf("Error migrating ingredient database: %v", err)
		return err
	}
	if err := db.AutoMigrate(&entities.Recipe{}); err != nil {
		log.Fatalf("Error migrating recipe database: %v", err)
		return err
	}
	if err := db.AutoMigrate(&entities.IngredientInRecipe{}); err != nil {
		log.Fatalf("Error migrating ingredient in recipe database: %v", err)
		return err
	}
	if err := db.AutoMigrate(&entities.Favorite{}); err != nil {
		log.Fatalf("Error migrating favorite database: %v", err)
		return err
	}
	if err := db.AutoMigrate(&entities.Shopping{}); err != nil {
		log.Fatalf("Error migrating shopping database: %v", err)
		return err
	}

	fmt.Println("Database migration complete")
	return nil
}
