package main

import (
	"fmt"
	"log"

	"foodgram-backend/cmd/config"
	migration "foodgram-backend/cmd/database/migrate"
	"foodgram-backend/cmd/database/seed"
	"foodgram-backend/internal/utils"
)

func main() {
	utils.LoadConfig()

	db, err := config.ConnectDB()
	if err != nil {
		log.Fatalf("error connecting database: %v", err)
	}

	if err := migration.Migrate(db); err != nil {
		log.Fatalf("error migrating database: %v", err)
	}
	if err := seed.Seed(db); err != nil {
		log.Fatalf("error seeding database: %v", err)
	}

	app, err := config.NewApp(db)
	if err != nil {
		log.Fatalf("error creating app: %v", err)
	}

	port := utils.GetConfig("APP_PORT")
	if port == "" {
		port = "8080"
	}
	if err := app.Listen(fmt.Sprintf(":%s", port)); err != nil {
		log.Fatalf("error starting server: %v", err)
	}
}
