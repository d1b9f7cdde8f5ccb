package handlers

import (
	"errors"

	"foodgram-backend/domain"
	"foodgram-backend/internal/api/presenters"
	"foodgram-backend/pkg/recipe"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

type (
	RecipeHandler interface {
		GetRecipes(c *fiber.Ctx) error
		GetRecipeDetail(c *fiber.Ctx) error
		CreateRecipe(c *fiber.Ctx) error
		UpdateRecipe(c *fiber.Ctx) error
		DeleteRecipe(c *fiber.Ctx) error

		AddFavorite(c *fiber.Ctx) error
		RemoveFavorite(c *fiber.Ctx) error
		AddToShoppingCart(c *fiber.Ctx) error
		RemoveFromShoppingCart(c *fiber.Ctx) error
		DownloadShoppingCart(c *fiber.Ctx) error
	}

	recipeHandler struct {
		recipeService recipe.RecipeService
		validator     *validator.Validate
	}
)

func NewRecipeHandler(recipeService recipe.RecipeService, validator *validator.Validate) RecipeHandler {
	return &recipeHandler{
		recipeService: recipeService,
		validator:     validator,
	}
}

func parseRecipeFilter(c *fiber.Ctx) domain.RecipeFilter {
	filter := domain.RecipeFilter{
		Author:           c.Query("author"),
		IsFavorited:      c.QueryBool("is_favorited", false),
		IsInShoppingCart: c.QueryBool("is_in_shopping_cart", false),
	}
	for _, slug := range c.Context().QueryArgs().PeekMulti("tags") {
		filter.Tags = append(filter.Tags, string(slug))
	}
	return filter
}

// payloadStatus keeps broken tag and ingredient references in the 400
// range: on create and update they are payload mistakes, not lookups.
func payloadStatus(err error) int {
	if errors.Is(err, domain.ErrTagNotFound) || errors.Is(err, domain.ErrIngredientNotFound) {
		return fiber.StatusBadRequest
	}
	return statusForError(err)
}

func (h *recipeHandler) GetRecipes(c *fiber.Ctx) error {
	page, limit := parsePagination(c)

	recipes, count, err := h.recipeService.GetRecipes(c.Context(), parseRecipeFilter(c), currentUserID(c), page, limit)
	if err != nil {
		return presenters.ErrorResponse(c, statusForError(err), domain.MessageFailedGetRecipes, err)
	}

	return presenters.SuccessResponse(c, fiber.Map{
		"recipes":    recipes,
		"pagination": paginationMap(page, limit, count),
	}, fiber.StatusOK, domain.MessageSuccessGetRecipes)
}

func (h *recipeHandler) GetRecipeDetail(c *fiber.Ctx) error {
	res, err := h.recipeService.GetRecipeDetail(c.Context(), c.Params("id"), currentUserID(c))
	if err != nil {
		return presenters.ErrorResponse(c, statusForError(err), domain.MessageFailedGetRecipeDetail, err)
	}
	return presenters.SuccessResponse(c, res, fiber.StatusOK, domain.MessageSuccessGetRecipeDetail)
}

func (h *recipeHandler) CreateRecipe(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)

	req := new(domain.CreateRecipeRequest)
	if err := c.BodyParser(req); err != nil {
		return presenters.ErrorResponse(c, fiber.StatusBadRequest, domain.MessageFailedBodyRequest, err)
	}
	if err := h.validator.Struct(req); err != nil {
		return presenters.ErrorResponse(c, fiber.StatusBadRequest, domain.MessageFailedCreateRecipe, err)
	}

	res, err := h.recipeService.CreateRecipe(c.Context(), *req, userID)
	if err != nil {
		return presenters.ErrorResponse(c, payloadStatus(err), domain.MessageFailedCreateRecipe, err)
	}
	return presenters.SuccessResponse(c, res, fiber.StatusCreated, domain.MessageSuccessCreateRecipe)
}

func (h *recipeHandler) UpdateRecipe(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)

	req := new(domain.UpdateRecipeRequest)
	if err := c.BodyParser(req); err != nil {
		return presenters.ErrorResponse(c, fiber.StatusBadRequest, domain.MessageFailedBodyRequest, err)
	}
	if err := h.validator.Struct(req); err != nil {
		return presenters.ErrorResponse(c, fiber.StatusBadRequest, domain.MessageFailedUpdateRecipe, err)
	}

	res, err := h.recipeService.UpdateRecipe(c.Context(), c.Params("id"), *req, userID)
	if err != nil {
		if errors.Is(err, domain.ErrRecipeNotFound) {
			return presenters.ErrorResponse(c, fiber.StatusNotFound, domain.MessageFailedUpdateRecipe, err)
		}
		return presenters.ErrorResponse(c, payloadStatus(err), domain.MessageFailedUpdateRecipe, err)
	}
	return presenters.SuccessResponse(c, res, fiber.StatusOK, domain.MessageSuccessUpdateRecipe)
}

func (h *recipeHandler) DeleteRecipe(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)

	if err := h.recipeService.DeleteRecipe(c.Context(), c.Params("id"), userID); err != nil {
		return presenters.ErrorResponse(c, statusForError(err), domain.MessageFailedDeleteRecipe, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *recipeHandler) AddFavorite(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)

	res, err := h.recipeService.AddFavorite(c.Context(), c.Params("id"), userID)
	if err != nil {
		return presenters.ErrorResponse(c, statusForError(err), domain.MessageFailedFavorite, err)
	}
	return presenters.SuccessResponse(c, res, fiber.StatusCreated, domain.MessageSuccessAddFavorite)
}

func (h *recipeHandler) RemoveFavorite(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)

	if err := h.recipeService.RemoveFavorite(c.Context(), c.Params("id"), userID); err != nil {
		return presenters.ErrorResponse(c, statusForError(err), domain.MessageFailedFavorite, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *recipeHandler) AddToShoppingCart(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)

	res, err := h.recipeService.AddToShoppingCart(c.Context(), c.Params("id"), userID)
	if err != nil {
		return presenters.ErrorResponse(c, statusForError(err), domain.MessageFailedShoppingCart, err)
	}
	return presenters.SuccessResponse(c, res, fiber.StatusCreated, domain.MessageSuccessAddShoppingCart)
}

func (h *recipeHandler) RemoveFromShoppingCart(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)

	if err := h.recipeService.RemoveFromShoppingCart(c.Context(), c.Params("id"), userID); err != nil {
		return presenters.ErrorResponse(c, statusForError(err), domain.MessageFailedShoppingCart, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *recipeHandler) DownloadShoppingCart(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)

	body, err := h.recipeService.DownloadShoppingCart(c.Context(), userID)
	if err != nil {
		return presenters.ErrorResponse(c, statusForError(err), domain.MessageFailedShoppingList, err)
	}

	c.Set(fiber.HeaderContentType, "text/plain; charset=utf-8")
	c.Set(fiber.HeaderContentDisposition, `attachment; filename="shopping_list.txt"`)
	return c.SendString(body)
}
