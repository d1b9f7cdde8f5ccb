package user

import (
	"context"
	"errors"
	"fmt"
	"time"

	"foodgram-backend/domain"
	"foodgram-backend/entities"
	"foodgram-backend/internal/utils/mailing"
	"foodgram-backend/pkg/jwt"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

type (
	UserService interface {
		Register(ctx context.Context, req domain.RegisterRequest) (domain.UserResponse, error)
		Login(ctx context.Context, req domain.LoginRequest) (domain.LoginResponse, error)
		Me(ctx context.Context, userID string) (domain.UserResponse, error)
		GetUsers(ctx context.Context, currentUserID string, page, limit int) ([]domain.UserResponse, int64, error)
		GetUserDetail(ctx context.Context, id, currentUserID string) (domain.UserResponse, error)
		UpdateUser(ctx context.Context, userID string, req domain.UpdateUserRequest) (domain.UserResponse, error)
		ForgotPassword(ctx context.Context, req domain.ForgotPasswordRequest) error
		ResetPassword(ctx context.Context, req domain.ResetPasswordRequest) error

		Subscribe(ctx context.Context, userID, authorID string) (domain.SubscriptionResponse, error)
		Unsubscribe(ctx context.Context, userID, authorID string) error
		GetSubscriptions(ctx context.Context, userID string, page, limit int) ([]domain.SubscriptionResponse, int64, error)
	}

	userService struct {
		userRepository UserRepository
		jwtService     jwt.JWTService
	}
)

func NewUserService(userRepository UserRepository, jwtService jwt.JWTService) UserService {
	return &userService{
		userRepository: userRepository,
		jwtService:     jwtService,
	}
}

func toUserResponse(user *entities.User, isSubscribed bool) domain.UserResponse {
	return domain.UserResponse{
		ID:           user.ID.String(),
		Email:        user.Email,
		Username:     user.Username,
		FirstName:    user.FirstName,
		LastName:     user.LastName,
		IsSubscribed: isSubscribed,
	}
}

func toShortRecipes(recipes []*entities.Recipe) []domain.ShortRecipeResponse {
	result := make([]domain.ShortRecipeResponse, 0, len(recipes))
	for _, recipe := range recipes {
		result = append(result, domain.ShortRecipeResponse{
			ID:          recipe.ID.String(),
			Name:        recipe.Name,
			Image:       recipe.ImageURL,
			CookingTime: recipe.CookingTime,
		})
	}
	return result
}

func (s *userService) Register(ctx context.Context, req domain.RegisterRequest) (domain.UserResponse, error) {
	exists, err := s.userRepository.EmailExists(ctx, req.Email)
	if err != nil {
		return domain.UserResponse{}, err
	}
	if exists {
		return domain.UserResponse{}, domain.ErrEmailAlreadyExists
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return domain.UserResponse{}, err
	}

	user := &entities.User{
		ID:        uuid.New(),
		Email:     req.Email,
		Username:  req.Username,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Password:  string(hashed),
		Role:      domain.RoleUser,
	}
	if err := s.userRepository.CreateUser(ctx, user); err != nil {
		return domain.UserResponse{}, err
	}

	return toUserResponse(user, false), nil
}

func (s *userService) Login(ctx context.Context, req domain.LoginRequest) (domain.LoginResponse, error) {
	user, err := s.userRepository.GetUserByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.LoginResponse{}, domain.ErrInvalidCredentials
		}
		return domain.LoginResponse{}, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		return domain.LoginResponse{}, domain.ErrInvalidCredentials
	}

	token := s.jwtService.GenerateTokenUser(user.ID.String(), user.Role)
	return domain.LoginResponse{
		Token: token,
		User:  toUserResponse(user, false),
	}, nil
}

func (s *userService) Me(ctx context.Context, userID string) (domain.UserResponse, error) {
	user, err := s.userRepository.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.UserResponse{}, domain.ErrUserNotFound
		}
		return domain.UserResponse{}, err
	}
	return toUserResponse(user, false), nil
}

func (s *userService) GetUsers(ctx context.Context, currentUserID string, page, limit int) ([]domain.UserResponse, int64, error) {
	users, count, err := s.userRepository.GetUsers(ctx, page, limit)
	if err != nil {
		return nil, 0, err
	}

	subscribed := make(map[uuid.UUID]bool)
	if currentUserID != "" {
		ids := make([]uuid.UUID, 0, len(users))
		for _, user := range users {
			ids = append(ids, user.ID)
		}
		followed, err := s.userRepository.SubscribedAuthorIDs(ctx, currentUserID, ids)
		if err != nil {
			return nil, 0, err
		}
		for _, id := range followed {
			subscribed[id] = true
		}
	}

	result := make([]domain.UserResponse, 0, len(users))
	for _, user := range users {
		result = append(result, toUserResponse(user, subscribed[user.ID]))
	}
	return result, count, nil
}

func (s *userService) GetUserDetail(ctx context.Context, id, currentUserID string) (domain.UserResponse, error) {
	if _, err := uuid.Parse(id); err != nil {
		return domain.UserResponse{}, domain.ErrUserNotFound
	}

	user, err := s.userRepository.GetUserByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.UserResponse{}, domain.ErrUserNotFound
		}
		return domain.UserResponse{}, err
	}

	isSubscribed := false
	if currentUserID != "" && currentUserID != id {
		isSubscribed, err = s.userRepository.IsSubscribed(ctx, currentUserID, id)
		if err != nil {
			return domain.UserResponse{}, err
		}
	}
	return toUserResponse(user, isSubscribed), nil
}

func (s *userService) UpdateUser(ctx context.Context, userID string, req domain.UpdateUserRequest) (domain.UserResponse, error) {
	user, err := s.userRepository.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.UserResponse{}, domain.ErrUserNotFound
		}
		return domain.UserResponse{}, err
	}

	if req.Username != "" {
		user.Username = req.Username
	}
	if req.FirstName != "" {
		user.FirstName = req.FirstName
	}
	if req.LastName != "" {
		user.LastName = req.LastName
	}

	if err := s.userRepository.UpdateUser(ctx, user); err != nil {
		return domain.UserResponse{}, err
	}
	return toUserResponse(user, false), nil
}

func (s *userService) ForgotPassword(ctx context.Context, req domain.ForgotPasswordRequest) error {
	user, err := s.userRepository.GetUserByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.ErrUserNotFound
		}
		return err
	}

	token, err := s.jwtService.GenerateTokenResetPassword(
		map[string]any{"user_id": user.ID.String()},
		15*time.Minute,
	)
	if err != nil {
		return err
	}

	link := fmt.Sprintf("%s/reset-password?token=%s", mailing.LoadMailConfig().AppURL, token)
	body := fmt.Sprintf(
		"<p>Hi %s,</p><p>Follow <a href=%q>this link</a> to reset your password. The link expires in 15 minutes.</p>",
		user.FirstName, link,
	)
	return mailing.SendMail(user.Email, "Reset your password", body)
}

func (s *userService) ResetPassword(ctx context.Context, req domain.ResetPasswordRequest) error {
	claims, err := s.jwtService.ValidateTokenResetPassword(req.Token)
	if err != nil {
		return err
	}

	userID, ok := claims["user_id"].(string)
	if !ok {
		return domain.ErrTokenInvalid
	}

	user, err := s.userRepository.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.ErrUserNotFound
		}
		return err
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	user.Password = string(hashed)

	return s.userRepository.UpdateUser(ctx, user)
}

func (s *userService) Subscribe(ctx context.Context, userID, authorID string) (domain.SubscriptionResponse, error) {
	if _, err := uuid.Parse(authorID); err != nil {
		return domain.SubscriptionResponse{}, domain.ErrUserNotFound
	}
	if userID == authorID {
		return domain.SubscriptionResponse{}, domain.ErrSelfSubscribe
	}

	author, err := s.userRepository.GetUserWithRecipes(ctx, authorID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.SubscriptionResponse{}, domain.ErrUserNotFound
		}
		return domain.SubscriptionResponse{}, err
	}

	subscribed, err := s.userRepository.IsSubscribed(ctx, userID, authorID)
	if err != nil {
		return domain.SubscriptionResponse{}, err
	}
	if subscribed {
		return domain.SubscriptionResponse{}, domain.ErrAlreadySubscribed
	}

	userUUID, err := uuid.Parse(userID)
	if err != nil {
		return domain.SubscriptionResponse{}, domain.ErrParseUUID
	}

	follow := &entities.Follow{
		ID:       uuid.New(),
		UserID:   userUUID,
		AuthorID: author.ID,
	}
	if err := s.userRepository.AddFollow(ctx, follow); err != nil {
		return domain.SubscriptionResponse{}, err
	}

	return domain.SubscriptionResponse{
		UserResponse: toUserResponse(author, true),
		Recipes:      toShortRecipes(author.Recipes),
		RecipesCount: len(author.Recipes),
	}, nil
}

func (s *userService) Unsubscribe(ctx context.Context, userID, authorID string) error {
	if _, err := uuid.Parse(authorID); err != nil {
		return domain.ErrUserNotFound
	}

	if _, err := s.userRepository.GetUserByID(ctx, authorID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.ErrUserNotFound
		}
		return err
	}

	subscribed, err := s.userRepository.IsSubscribed(ctx, userID, authorID)
	if err != nil {
		return err
	}
	if !subscribed {
		return domain.ErrNotSubscribed
	}

	return s.userRepository.RemoveFollow(ctx, userID, authorID)
}

func (s *userService) GetSubscriptions(ctx context.Context, userID string, page, limit int) ([]domain.SubscriptionResponse, int64, error) {
	authors, count, err := s.userRepository.GetSubscriptions(ctx, userID, page, limit)
	if err != nil {
		return nil, 0, err
	}

	ids := make([]uuid.UUID, 0, len(authors))
	for _, author := range authors {
		ids = append(ids, author.ID)
	}
	recipeCounts, err := s.userRepository.RecipeCounts(ctx, ids)
	if err != nil {
		return nil, 0, err
	}

	result := make([]domain.SubscriptionResponse, 0, len(authors))
	for _, author := range authors {
		result = append(result, domain.SubscriptionResponse{
			UserResponse: toUserResponse(author, true),
			Recipes:      toShortRecipes(author.Recipes),
			RecipesCount: int(recipeCounts[author.ID]),
		})
	}
	return result, count, nil
}
