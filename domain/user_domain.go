package domain

import (
	"errors"
)

var (
	MessageSuccessRegister         = "user registered successfully"
	MessageSuccessLogin            = "login success"
	MessageSuccessGetMe            = "success get current user"
	MessageSuccessGetUsers         = "success get users"
	MessageSuccessGetUserDetail    = "success get user detail"
	MessageSuccessUpdateUser       = "user updated successfully"
	MessageSuccessForgotPassword   = "reset password email sent"
	MessageSuccessResetPassword    = "password reset successfully"
	MessageSuccessSubscribe        = "subscribed to author successfully"
	MessageSuccessGetSubscriptions = "success get subscriptions"

	MessageFailedRegister         = "failed to register user"
	MessageFailedLogin            = "failed to login"
	MessageFailedGetMe            = "failed to get current user"
	MessageFailedGetUsers         = "failed to get users"
	MessageFailedGetUserDetail    = "failed to get user detail"
	MessageFailedUpdateUser       = "failed to update user"
	MessageFailedForgotPassword   = "failed to send reset password email"
	MessageFailedResetPassword    = "failed to reset password"
	MessageFailedSubscribe        = "failed to subscribe"
	MessageFailedUnsubscribe      = "failed to unsubscribe"
	MessageFailedGetSubscriptions = "failed to get subscriptions"

	ErrUserNotFound       = errors.New("user not found")
	ErrEmailAlreadyExists = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("wrong email or password")
	ErrSelfSubscribe      = errors.New("you can't subscribe to yourself")
	ErrAlreadySubscribed  = errors.New("you are already subscribed to this author")
	ErrNotSubscribed      = errors.New("you aren't subscribed to this author")
)

type (
	RegisterRequest struct {
		Email     string `json:"email" validate:"required,email,max=254"`
		Username  string `json:"username" validate:"required,max=150"`
		FirstName string `json:"first_name" validate:"required,max=150"`
		LastName  string `json:"last_name" validate:"required,max=150"`
		Password  string `json:"password" validate:"required,min=8,max=150"`
	}

	LoginRequest struct {
		Email    string `json:"email" validate:"required,email"`
		Password string `json:"password" validate:"required"`
	}

	LoginResponse struct {
		Token string       `json:"token"`
		User  UserResponse `json:"user"`
	}

	UpdateUserRequest struct {
		Username  string `json:"username,omitempty" validate:"omitempty,max=150"`
		FirstName string `json:"first_name,omitempty" validate:"omitempty,max=150"`
		LastName  string `json:"last_name,omitempty" validate:"omitempty,max=150"`
	}

	ForgotPasswordRequest struct {
		Email string `json:"email" validate:"required,email"`
	}

	ResetPasswordRequest struct {
		Token       string `json:"token" validate:"required"`
		NewPassword string `json:"new_password" validate:"required,min=8,max=150"`
	}

	UserResponse struct {
		ID           string `json:"id"`
		Email        string `json:"email"`
		Username     string `json:"username"`
		FirstName    string `json:"first_name"`
		LastName     string `json:"last_name"`
		IsSubscribed bool   `json:"is_subscribed"`
	}

	SubscriptionResponse struct {
		UserResponse
		Recipes      []ShortRecipeResponse `json:"recipes"`
		RecipesCount int                   `json:"recipes_count"`
	}
)
