package config

import (
	"os"
	"time"

	"foodgram-backend/internal/api/handlers"
	"foodgram-backend/internal/api/routes"
	"foodgram-backend/internal/middleware"
	"foodgram-backend/internal/utils"
	"foodgram-backend/internal/utils/storage"
	"foodgram-backend/pkg/ingredient"
	"foodgram-backend/pkg/jwt"
	"foodgram-backend/pkg/recipe"
	"foodgram-backend/pkg/tag"
	"foodgram-backend/pkg/user"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"gorm.io/gorm"
)

func NewApp(db *gorm.DB) (*fiber.App, error) {
	utils.InitValidator()
	app := fiber.New(fiber.Config{
		EnablePrintRoutes: true,
	})
	middlewares := middleware.NewMiddleware()
	validator := utils.Validate

	// setting up logging and limiter
	err := os.MkdirAll("./logs", os.ModePerm)
	if err != nil {
		log.Fatalf("error creating logs directory: %v", err)
	}
	file, err := os.OpenFile(
		"./logs/app.log",
		os.O_RDWR|os.O_CREATE|os.O_APPEND,
		0666,
	)
	if err != nil {
		log.Fatalf("error opening file: %v", err)
	}
	app.Use(logger.New(logger.Config{
		TimeFormat: "2006-01-02 15:04:05",
		Output:     file,
	}))

	app.Use(limiter.New(limiter.Config{
		Max:        10,
		Expiration: 1 * time.Second,
	}))

	// utils
	s3 := storage.NewAwsS3()

	// Repository
	userRepository := user.NewUserRepository(db)
	tagRepository := tag.NewTagRepository(db)
	ingredientRepository := ingredient.NewIngredientRepository(db)
	recipeRepository := recipe.NewRecipeRepository(db)

	// Service
	jwtService := jwt.NewJWTService()
	userService := user.NewUserService(userRepository, jwtService)
	tagService := tag.NewTagService(tagRepository)
	ingredientService := ingredient.NewIngredientService(ingredientRepository)
	recipeService := recipe.NewRecipeService(
		recipeRepository,
		tagRepository,
		ingredientRepository,
		userRepository,
		s3,
	)

	// Handler
	userHandler := handlers.NewUserHandler(userService, validator)
	tagHandler := handlers.NewTagHandler(tagService, validator)
	ingredientHandler := handlers.NewIngredientHandler(ingredientService, validator)
	recipeHandler := handlers.NewRecipeHandler(recipeService, validator)

	// routes
	routesConfig := routes.Config{
		App:               app,
		UserHandler:       userHandler,
		TagHandler:        tagHandler,
		IngredientHandler: ingredientHandler,
		RecipeHandler:     recipeHandler,
		Middleware:        middlewares,
		JWTService:        jwtService,
	}
	routesConfig.Setup()
	return app, nil
}
