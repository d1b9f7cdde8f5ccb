package handlers

import (
	"foodgram-backend/domain"
	"foodgram-backend/internal/api/presenters"
	"foodgram-backend/pkg/tag"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

type (
	TagHandler interface {
		GetTags(c *fiber.Ctx) error
		GetTagDetail(c *fiber.Ctx) error
		CreateTag(c *fiber.Ctx) error
	}

	tagHandler struct {
		tagService tag.TagService
		validator  *validator.Validate
	}
)

func NewTagHandler(tagService tag.TagService, validator *validator.Validate) TagHandler {
	return &tagHandler{
		tagService: tagService,
		validator:  validator,
	}
}

func (h *tagHandler) GetTags(c *fiber.Ctx) error {
	res, err := h.tagService.GetTags(c.Context())
	if err != nil {
		return presenters.ErrorResponse(c, statusForError(err), domain.MessageFailedGetTags, err)
	}
	return presenters.SuccessResponse(c, res, fiber.StatusOK, domain.MessageSuccessGetTags)
}

func (h *tagHandler) GetTagDetail(c *fiber.Ctx) error {
	res, err := h.tagService.GetTagDetail(c.Context(), c.Params("id"))
	if err != nil {
		return presenters.ErrorResponse(c, statusForError(err), domain.MessageFailedGetTagDetail, err)
	}
	return presenters.SuccessResponse(c, res, fiber.StatusOK, domain.MessageSuccessGetTagDetail)
}

func (h *tagHandler) CreateTag(c *fiber.Ctx) error {
	if !isAdmin(c) {
		return presenters.ErrorResponse(c, fiber.StatusForbidden, domain.MessageFailedCreateTag, domain.ErrAdminOnly)
	}

	req := new(domain.CreateTagRequest)
	if err := c.BodyParser(req); err != nil {
		return presenters.ErrorResponse(c, fiber.StatusBadRequest, domain.MessageFailedBodyRequest, err)
	}
	if err := h.validator.Struct(req); err != nil {
		return presenters.ErrorResponse(c, fiber.StatusBadRequest, domain.MessageFailedCreateTag, err)
	}

	res, err := h.tagService.CreateTag(c.Context(), *req)
	if err != nil {
		return presenters.ErrorResponse(c, statusForError(err), domain.MessageFailedCreateTag, err)
	}
	return presenters.SuccessResponse(c, res, fiber.StatusCreated, domain.MessageSuccessCreateTag)
}
