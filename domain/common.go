package domain

import (
	"errors"
	"os"
)

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

var (
	MessageFailedBodyRequest    = "failed to process request body"
	MessageFailedProcessRequest = "failed to process request"
	MessageFailedGetToken       = "failed to get token"
	MessageFailedTokenInvalid   = "failed to token invalid"

	JwtSecret = os.Getenv("JWT_SECRET")

	ErrParseUUID     = errors.New("failed to parse UUID")
	ErrAdminOnly     = errors.New("admin access required")
	ErrTokenNotFound = errors.New("failed to token not found")
	ErrTokenExpired  = errors.New("token expired")
	ErrTokenInvalid  = errors.New("token invalid")
)
