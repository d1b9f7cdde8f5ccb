package routes

import (
	"foodgram-backend/internal/api/handlers"
	"foodgram-backend/internal/middleware"
	"foodgram-backend/pkg/jwt"

	"github.com/gofiber/fiber/v2"
)

type Config struct {
	App               *fiber.App
	UserHandler       handlers.UserHandler
	TagHandler        handlers.TagHandler
	IngredientHandler handlers.IngredientHandler
	RecipeHandler     handlers.RecipeHandler
	Middleware        middleware.Middleware
	JWTService        jwt.JWTService
}

func (c *Config) Setup() {
	c.App.Use(c.Middleware.CORSMiddleware())
	c.Users()
	c.Tags()
	c.Ingredients()
	c.Recipes()
	c.GuestRoute()
}

func (c *Config) Users() {
	auth := c.Middleware.AuthMiddleware(c.JWTService)
	optional := c.Middleware.OptionalAuthMiddleware(c.JWTService)

	users := c.App.Group("/api/v1/users")
	{
		users.Post("/register", c.UserHandler.Register)
		users.Post("/login", c.UserHandler.Login)
		users.Post("/forget", c.UserHandler.ForgotPassword)
		users.Post("/reset", c.UserHandler.ResetPassword)

		users.Get("/me", auth, c.UserHandler.Me)
		users.Patch("/update", auth, c.UserHandler.UpdateUser)
		users.Get("/subscriptions", auth, c.UserHandler.GetSubscriptions)

		users.Get("/", optional, c.UserHandler.GetUsers)
		users.Get("/:id", optional, c.UserHandler.GetUserDetail)
		users.Get("/:id/subscribe", auth, c.UserHandler.Subscribe)
		users.Delete("/:id/subscribe", auth, c.UserHandler.Unsubscribe)
	}
}

func (c *Config) Tags() {
	auth := c.Middleware.AuthMiddleware(c.JWTService)

	tags := c.App.Group("/api/v1/tags")
	{
		tags.Get("/", c.TagHandler.GetTags)
		tags.Post("/", auth, c.TagHandler.CreateTag)
		tags.Get("/:id", c.TagHandler.GetTagDetail)
	}
}

func (c *Config) Ingredients() {
	auth := c.Middleware.AuthMiddleware(c.JWTService)

	ingredients := c.App.Group("/api/v1/ingredients")
	{
		ingredients.Get("/", c.IngredientHandler.GetIngredients)
		ingredients.Post("/", auth, c.IngredientHandler.CreateIngredient)
		ingredients.Get("/:id", c.IngredientHandler.GetIngredientDetail)
	}
}

func (c *Config) Recipes() {
	auth := c.Middleware.AuthMiddleware(c.JWTService)
	optional := c.Middleware.OptionalAuthMiddleware(c.JWTService)

	recipes := c.App.Group("/api/v1/recipes")
	{
		recipes.Get("/", optional, c.RecipeHandler.GetRecipes)
		recipes.Post("/", auth, c.RecipeHandler.CreateRecipe)

		// registered before the :id routes so "download_shopping_cart"
		// is not captured as a recipe id
		recipes.Get("/download_shopping_cart", auth, c.RecipeHandler.DownloadShoppingCart)

		recipes.Get("/:id", optional, c.RecipeHandler.GetRecipeDetail)
		recipes.Patch("/:id", auth, c.RecipeHandler.UpdateRecipe)
		recipes.Delete("/:id", auth, c.RecipeHandler.DeleteRecipe)

		recipes.Get("/:id/favorite", auth, c.RecipeHandler.AddFavorite)
		recipes.Delete("/:id/favorite", auth, c.RecipeHandler.RemoveFavorite)
		recipes.Get("/:id/shopping_cart", auth, c.RecipeHandler.AddToShoppingCart)
		recipes.Delete("/:id/shopping_cart", auth, c.RecipeHandler.RemoveFromShoppingCart)
	}
}

func (c *Config) GuestRoute() {
	c.App.Get("/api/ping", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"message": "pong"})
	})
}
