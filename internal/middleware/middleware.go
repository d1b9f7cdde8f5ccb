package middleware

import (
	"strings"

	"foodgram-backend/domain"
	"foodgram-backend/internal/api/presenters"
	"foodgram-backend/pkg/jwt"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
)

type (
	Middleware interface {
		CORSMiddleware() fiber.Handler
		AuthMiddleware(jwtService jwt.JWTService) fiber.Handler
		OptionalAuthMiddleware(jwtService jwt.JWTService) fiber.Handler
	}

	middleware struct{}
)

func NewMiddleware() Middleware {
	return &middleware{}
}

func (m *middleware) CORSMiddleware() fiber.Handler {
	return cors.New(cors.Config{
		AllowMethods: "GET,POST,PUT,PATCH,DELETE,OPTIONS",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
	})
}

func bearerToken(c *fiber.Ctx) string {
	header := c.Get("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		return ""
	}
	return strings.TrimPrefix(header, "Bearer ")
}

func (m *middleware) AuthMiddleware(jwtService jwt.JWTService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token := bearerToken(c)
		if token == "" {
			return presenters.ErrorResponse(
				c, fiber.StatusUnauthorized,
				domain.MessageFailedGetToken, domain.ErrTokenNotFound,
			)
		}

		userID, role, err := jwtService.GetUserIDByToken(token)
		if err != nil {
			return presenters.ErrorResponse(
				c, fiber.StatusUnauthorized,
				domain.MessageFailedTokenInvalid, err,
			)
		}

		c.Locals("user_id", userID)
		c.Locals("role", role)
		return c.Next()
	}
}

// OptionalAuthMiddleware sets the acting identity when a valid token is
// present and lets anonymous requests through untouched.
func (m *middleware) OptionalAuthMiddleware(jwtService jwt.JWTService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token := bearerToken(c)
		if token != "" {
			if userID, role, err := jwtService.GetUserIDByToken(token); err == nil {
				c.Locals("user_id", userID)
				c.Locals("role", role)
			}
		}
		return c.Next()
	}
}
