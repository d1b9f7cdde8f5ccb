package handlers

import (
	"errors"
	"strconv"

	"foodgram-backend/domain"

	"github.com/gofiber/fiber/v2"
)

// currentUserID returns the acting user, or "" for anonymous requests
// passed through the optional auth middleware.
func currentUserID(c *fiber.Ctx) string {
	if userID, ok := c.Locals("user_id").(string); ok {
		return userID
	}
	return ""
}

func isAdmin(c *fiber.Ctx) bool {
	role, ok := c.Locals("role").(string)
	return ok && role == domain.RoleAdmin
}

func parsePagination(c *fiber.Ctx) (int, int) {
	page, err := strconv.Atoi(c.Query("page", "1"))
	if err != nil || page < 1 {
		page = 1
	}

	limit, err := strconv.Atoi(c.Query("limit", "6"))
	if err != nil || limit < 1 {
		limit = 6
	}

	return page, limit
}

func paginationMap(page, limit int, count int64) fiber.Map {
	return fiber.Map{
		"page":        page,
		"limit":       limit,
		"total":       count,
		"total_pages": (count + int64(limit) - 1) / int64(limit),
	}
}

// statusForError maps domain errors to HTTP statuses: missing resources
// to 404, ownership violations to 403, everything else to 400.
func statusForError(err error) int {
	switch {
	case errors.Is(err, domain.ErrRecipeNotFound),
		errors.Is(err, domain.ErrUserNotFound),
		errors.Is(err, domain.ErrTagNotFound),
		errors.Is(err, domain.ErrIngredientNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, domain.ErrNotRecipeOwner),
		errors.Is(err, domain.ErrAdminOnly):
		return fiber.StatusForbidden
	default:
		return fiber.StatusBadRequest
	}
}
