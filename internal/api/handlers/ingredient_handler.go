package handlers

import (
	"foodgram-backend/domain"
	"foodgram-backend/internal/api/presenters"
	"foodgram-backend/pkg/ingredient"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

type (
	IngredientHandler interface {
		GetIngredients(c *fiber.Ctx) error
		GetIngredientDetail(c *fiber.Ctx) error
		CreateIngredient(c *fiber.Ctx) error
	}

	ingredientHandler struct {
		ingredientService ingredient.IngredientService
		validator         *validator.Validate
	}
)

func NewIngredientHandler(ingredientService ingredient.IngredientService, validator *validator.Validate) IngredientHandler {
	return &ingredientHandler{
		ingredientService: ingredientService,
		validator:         validator,
	}
}

func (h *ingredientHandler) GetIngredients(c *fiber.Ctx) error {
	res, err := h.ingredientService.GetIngredients(c.Context(), c.Query("name"))
	if err != nil {
		return presenters.ErrorResponse(c, statusForError(err), domain.MessageFailedGetIngredients, err)
	}
	return presenters.SuccessResponse(c, res, fiber.StatusOK, domain.MessageSuccessGetIngredients)
}

func (h *ingredientHandler) GetIngredientDetail(c *fiber.Ctx) error {
	res, err := h.ingredientService.GetIngredientDetail(c.Context(), c.Params("id"))
	if err != nil {
		return presenters.ErrorResponse(c, statusForError(err), domain.MessageFailedGetIngredientDetail, err)
	}
	return presenters.SuccessResponse(c, res, fiber.StatusOK, domain.MessageSuccessGetIngredientDetail)
}

func (h *ingredientHandler) CreateIngredient(c *fiber.Ctx) error {
	if !isAdmin(c) {
		return presenters.ErrorResponse(c, fiber.StatusForbidden, domain.MessageFailedCreateIngredient, domain.ErrAdminOnly)
	}

	req := new(domain.CreateIngredientRequest)
	if err := c.BodyParser(req); err != nil {
		return presenters.ErrorResponse(c, fiber.StatusBadRequest, domain.MessageFailedBodyRequest, err)
	}
	if err := h.validator.Struct(req); err != nil {
		return presenters.ErrorResponse(c, fiber.StatusBadRequest, domain.MessageFailedCreateIngredient, err)
	}

	res, err := h.ingredientService.CreateIngredient(c.Context(), *req)
	if err != nil {
		return presenters.ErrorResponse(c, statusForError(err), domain.MessageFailedCreateIngredient, err)
	}
	return presenters.SuccessResponse(c, res, fiber.StatusCreated, domain.MessageSuccessCreateIngredient)
}
