package recipe

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"foodgram-backend/domain"
	"foodgram-backend/entities"
	"foodgram-backend/internal/utils/storage"
	"foodgram-backend/pkg/ingredient"
	"foodgram-backend/pkg/tag"
	"foodgram-backend/pkg/user"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type (
	RecipeService interface {
		GetRecipes(ctx context.Context, filter domain.RecipeFilter, currentUserID string, page, limit int) ([]domain.RecipeResponse, int64, error)
		GetRecipeDetail(ctx context.Context, recipeID, currentUserID string) (domain.RecipeResponse, error)
		CreateRecipe(ctx context.Context, req domain.CreateRecipeRequest, userID string) (domain.RecipeResponse, error)
		UpdateRecipe(ctx context.Context, recipeID string, req domain.UpdateRecipeRequest, userID string) (domain.RecipeResponse, error)
		DeleteRecipe(ctx context.Context, recipeID, userID string) error

		AddFavorite(ctx context.Context, recipeID, userID string) (domain.ShortRecipeResponse, error)
		RemoveFavorite(ctx context.Context, recipeID, userID string) error
		AddToShoppingCart(ctx context.Context, recipeID, userID string) (domain.ShortRecipeResponse, error)
		RemoveFromShoppingCart(ctx context.Context, recipeID, userID string) error
		DownloadShoppingCart(ctx context.Context, userID string) (string, error)
	}

	recipeService struct {
		recipeRepository     RecipeRepository
		tagRepository        tag.TagRepository
		ingredientRepository ingredient.IngredientRepository
		userRepository       user.UserRepository
		awsS3                storage.AwsS3
	}
)

func NewRecipeService(
	recipeRepository RecipeRepository,
	tagRepository tag.TagRepository,
	ingredientRepository ingredient.IngredientRepository,
	userRepository user.UserRepository,
	awsS3 storage.AwsS3,
) RecipeService {
	return &recipeService{
		recipeRepository:     recipeRepository,
		tagRepository:        tagRepository,
		ingredientRepository: ingredientRepository,
		userRepository:       userRepository,
		awsS3:                awsS3,
	}
}

// parseTagIDs rejects empty and repeated tag sets before hitting the
// database.
func parseTagIDs(tagIDs []string) ([]uuid.UUID, error) {
	if len(tagIDs) == 0 {
		return nil, domain.ErrNoTags
	}

	seen := make(map[uuid.UUID]bool, len(tagIDs))
	ids := make([]uuid.UUID, 0, len(tagIDs))
	for _, raw := range tagIDs {
		id, err := uuid.Parse(raw)
		if err != nil {
			return nil, domain.ErrTagNotFound
		}
		if seen[id] {
			return nil, domain.ErrDuplicateTag
		}
		seen[id] = true
		ids = append(ids, id)
	}
	return ids, nil
}

func parseIngredientAmounts(ingredients []domain.IngredientAmountRequest) ([]uuid.UUID, error) {
	if len(ingredients) == 0 {
		return nil, domain.ErrNoIngredients
	}

	seen := make(map[uuid.UUID]bool, len(ingredients))
	ids := make([]uuid.UUID, 0, len(ingredients))
	for _, item := range ingredients {
		if item.Amount < 1 {
			return nil, domain.ErrInvalidAmount
		}
		id, err := uuid.Parse(item.ID)
		if err != nil {
			return nil, domain.ErrIngredientNotFound
		}
		if seen[id] {
			return nil, domain.ErrDuplicateIngredient
		}
		seen[id] = true
		ids = append(ids, id)
	}
	return ids, nil
}

// resolvePayload validates the nested tag and ingredient sets and loads
// the referenced rows. Nothing is written if any reference is unknown.
func (s *recipeService) resolvePayload(ctx context.Context, cookingTime int, tagIDs []string, ingredients []domain.IngredientAmountRequest) ([]*entities.Tag, []*entities.IngredientInRecipe, error) {
	if cookingTime < 1 {
		return nil, nil, domain.ErrInvalidCookingTime
	}

	parsedTags, err := parseTagIDs(tagIDs)
	if err != nil {
		return nil, nil, err
	}
	parsedIngredients, err := parseIngredientAmounts(ingredients)
	if err != nil {
		return nil, nil, err
	}

	tags, err := s.tagRepository.GetTagsByIDs(ctx, parsedTags)
	if err != nil {
		return nil, nil, err
	}
	if len(tags) != len(parsedTags) {
		return nil, nil, domain.ErrTagNotFound
	}

	rows, err := s.ingredientRepository.GetIngredientsByIDs(ctx, parsedIngredients)
	if err != nil {
		return nil, nil, err
	}
	if len(rows) != len(parsedIngredients) {
		return nil, nil, domain.ErrIngredientNotFound
	}

	amounts := make([]*entities.IngredientInRecipe, 0, len(ingredients))
	for _, item := range ingredients {
		amounts = append(amounts, &entities.IngredientInRecipe{
			ID:           uuid.New(),
			IngredientID: uuid.MustParse(item.ID),
			Amount:       item.Amount,
		})
	}
	return tags, amounts, nil
}

func (s *recipeService) uploadImage(recipeID uuid.UUID, payload string) (string, error) {
	objectKey, err := s.awsS3.UploadBase64(fmt.Sprintf("recipe-%s", recipeID), payload, "recipes")
	if err != nil {
		return "", domain.ErrInvalidImage
	}
	return s.awsS3.GetPublicLinkKey(objectKey), nil
}

func toIngredientInRecipeResponses(amounts []*entities.IngredientInRecipe) []domain.IngredientInRecipeResponse {
	result := make([]domain.IngredientInRecipeResponse, 0, len(amounts))
	for _, amount := range amounts {
		item := domain.IngredientInRecipeResponse{
			ID:     amount.IngredientID.String(),
			Amount: amount.Amount,
		}
		if amount.Ingredient != nil {
			item.Name = amount.Ingredient.Name
			item.MeasurementUnit = amount.Ingredient.MeasurementUnit
		}
		result = append(result, item)
	}
	return result
}

func toTagResponses(tags []*entities.Tag) []domain.TagResponse {
	result := make([]domain.TagResponse, 0, len(tags))
	for _, t := range tags {
		result = append(result, domain.TagResponse{
			ID:    t.ID.String(),
			Name:  t.Name,
			Color: t.Color,
			Slug:  t.Slug,
		})
	}
	return result
}

func toRecipeResponse(recipe *entities.Recipe, favorited, inCart, authorSubscribed bool) domain.RecipeResponse {
	response := domain.RecipeResponse{
		ID:               recipe.ID.String(),
		Name:             recipe.Name,
		Tags:             toTagResponses(recipe.Tags),
		Ingredients:      toIngredientInRecipeResponses(recipe.Amounts),
		Image:            recipe.ImageURL,
		Text:             recipe.Text,
		CookingTime:      recipe.CookingTime,
		IsFavorited:      favorited,
		IsInShoppingCart: inCart,
	}
	if recipe.Author != nil {
		response.Author = domain.UserResponse{
			ID:           recipe.Author.ID.String(),
			Email:        recipe.Author.Email,
			Username:     recipe.Author.Username,
			FirstName:    recipe.Author.FirstName,
			LastName:     recipe.Author.LastName,
			IsSubscribed: authorSubscribed,
		}
	}
	return response
}

func toShortRecipeResponse(recipe *entities.Recipe) domain.ShortRecipeResponse {
	return domain.ShortRecipeResponse{
		ID:          recipe.ID.String(),
		Name:        recipe.Name,
		Image:       recipe.ImageURL,
		CookingTime: recipe.CookingTime,
	}
}

func (s *recipeService) GetRecipes(ctx context.Context, filter domain.RecipeFilter, currentUserID string, page, limit int) ([]domain.RecipeResponse, int64, error) {
	// Relation filters from an anonymous visitor match nothing.
	if currentUserID == "" && (filter.IsFavorited || filter.IsInShoppingCart) {
		return []domain.RecipeResponse{}, 0, nil
	}
	filter.UserID = currentUserID

	recipes, count, err := s.recipeRepository.GetRecipes(ctx, filter, page, limit)
	if err != nil {
		return nil, 0, err
	}

	favorited := make(map[uuid.UUID]bool)
	inCart := make(map[uuid.UUID]bool)
	subscribed := make(map[uuid.UUID]bool)
	if currentUserID != "" {
		recipeIDs := make([]uuid.UUID, 0, len(recipes))
		authorIDs := make([]uuid.UUID, 0, len(recipes))
		seenAuthors := make(map[uuid.UUID]bool)
		for _, recipe := range recipes {
			recipeIDs = append(recipeIDs, recipe.ID)
			if !seenAuthors[recipe.AuthorID] {
				seenAuthors[recipe.AuthorID] = true
				authorIDs = append(authorIDs, recipe.AuthorID)
			}
		}

		favoriteIDs, err := s.recipeRepository.FavoriteRecipeIDs(ctx, currentUserID, recipeIDs)
		if err != nil {
			return nil, 0, err
		}
		for _, id := range favoriteIDs {
			favorited[id] = true
		}

		shoppingIDs, err := s.recipeRepository.ShoppingRecipeIDs(ctx, currentUserID, recipeIDs)
		if err != nil {
			return nil, 0, err
		}
		for _, id := range shoppingIDs {
			inCart[id] = true
		}

		followedIDs, err := s.userRepository.SubscribedAuthorIDs(ctx, currentUserID, authorIDs)
		if err != nil {
			return nil, 0, err
		}
		for _, id := range followedIDs {
			subscribed[id] = true
		}
	}

	result := make([]domain.RecipeResponse, 0, len(recipes))
	for _, recipe := range recipes {
		result = append(result, toRecipeResponse(
			recipe,
			favorited[recipe.ID],
			inCart[recipe.ID],
			subscribed[recipe.AuthorID],
		))
	}
	return result, count, nil
}

func (s *recipeService) getRecipe(ctx context.Context, recipeID string) (*entities.Recipe, error) {
	if _, err := uuid.Parse(recipeID); err != nil {
		return nil, domain.ErrRecipeNotFound
	}

	recipe, err := s.recipeRepository.GetRecipeByID(ctx, recipeID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrRecipeNotFound
		}
		return nil, err
	}
	return recipe, nil
}

func (s *recipeService) GetRecipeDetail(ctx context.Context, recipeID, currentUserID string) (domain.RecipeResponse, error) {
	recipe, err := s.getRecipe(ctx, recipeID)
	if err != nil {
		return domain.RecipeResponse{}, err
	}

	favorited, inCart, authorSubscribed := false, false, false
	if currentUserID != "" {
		if favorited, err = s.recipeRepository.IsFavorited(ctx, currentUserID, recipeID); err != nil {
			return domain.RecipeResponse{}, err
		}
		if inCart, err = s.recipeRepository.IsInShoppingCart(ctx, currentUserID, recipeID); err != nil {
			return domain.RecipeResponse{}, err
		}
		if currentUserID != recipe.AuthorID.String() {
			if authorSubscribed, err = s.userRepository.IsSubscribed(ctx, currentUserID, recipe.AuthorID.String()); err != nil {
				return domain.RecipeResponse{}, err
			}
		}
	}
	return toRecipeResponse(recipe, favorited, inCart, authorSubscribed), nil
}

func (s *recipeService) CreateRecipe(ctx context.Context, req domain.CreateRecipeRequest, userID string) (domain.RecipeResponse, error) {
	userUUID, err := uuid.Parse(userID)
	if err != nil {
		return domain.RecipeResponse{}, domain.ErrParseUUID
	}

	tags, amounts, err := s.resolvePayload(ctx, req.CookingTime, req.Tags, req.Ingredients)
	if err != nil {
		return domain.RecipeResponse{}, err
	}

	recipeID := uuid.New()
	imageURL, err := s.uploadImage(recipeID, req.Image)
	if err != nil {
		return domain.RecipeResponse{}, err
	}

	recipe := &entities.Recipe{
		ID:          recipeID,
		AuthorID:    userUUID,
		Name:        req.Name,
		ImageURL:    imageURL,
		Text:        req.Text,
		CookingTime: req.CookingTime,
	}
	if err := s.recipeRepository.CreateRecipe(ctx, recipe, tags, amounts); err != nil {
		return domain.RecipeResponse{}, err
	}

	return s.GetRecipeDetail(ctx, recipeID.String(), userID)
}

func (s *recipeService) UpdateRecipe(ctx context.Context, recipeID string, req domain.UpdateRecipeRequest, userID string) (domain.RecipeResponse, error) {
	recipe, err := s.getRecipe(ctx, recipeID)
	if err != nil {
		return domain.RecipeResponse{}, err
	}
	if recipe.AuthorID.String() != userID {
		return domain.RecipeResponse{}, domain.ErrNotRecipeOwner
	}

	tags, amounts, err := s.resolvePayload(ctx, req.CookingTime, req.Tags, req.Ingredients)
	if err != nil {
		return domain.RecipeResponse{}, err
	}

	if req.Image != "" {
		imageURL, err := s.uploadImage(recipe.ID, req.Image)
		if err != nil {
			return domain.RecipeResponse{}, err
		}
		if oldKey := s.awsS3.GetObjectKeyFromLink(recipe.ImageURL); oldKey != "" {
			_ = s.awsS3.DeleteFile(oldKey)
		}
		recipe.ImageURL = imageURL
	}

	recipe.Name = req.Name
	recipe.Text = req.Text
	recipe.CookingTime = req.CookingTime

	if err := s.recipeRepository.UpdateRecipe(ctx, recipe, tags, amounts); err != nil {
		return domain.RecipeResponse{}, err
	}
	return s.GetRecipeDetail(ctx, recipeID, userID)
}

func (s *recipeService) DeleteRecipe(ctx context.Context, recipeID, userID string) error {
	recipe, err := s.getRecipe(ctx, recipeID)
	if err != nil {
		return err
	}
	if recipe.AuthorID.String() != userID {
		return domain.ErrNotRecipeOwner
	}

	if err := s.recipeRepository.DeleteRecipe(ctx, recipe); err != nil {
		return err
	}
	if objectKey := s.awsS3.GetObjectKeyFromLink(recipe.ImageURL); objectKey != "" {
		_ = s.awsS3.DeleteFile(objectKey)
	}
	return nil
}

func (s *recipeService) AddFavorite(ctx context.Context, recipeID, userID string) (domain.ShortRecipeResponse, error) {
	recipe, err := s.getRecipe(ctx, recipeID)
	if err != nil {
		return domain.ShortRecipeResponse{}, err
	}

	favorited, err := s.recipeRepository.IsFavorited(ctx, userID, recipeID)
	if err != nil {
		return domain.ShortRecipeResponse{}, err
	}
	if favorited {
		return domain.ShortRecipeResponse{}, domain.ErrAlreadyFavorited
	}

	userUUID, err := uuid.Parse(userID)
	if err != nil {
		return domain.ShortRecipeResponse{}, domain.ErrParseUUID
	}

	favorite := &entities.Favorite{
		ID:       uuid.New(),
		UserID:   userUUID,
		RecipeID: recipe.ID,
	}
	if err := s.recipeRepository.AddFavorite(ctx, favorite); err != nil {
		return domain.ShortRecipeResponse{}, err
	}
	return toShortRecipeResponse(recipe), nil
}

func (s *recipeService) RemoveFavorite(ctx context.Context, recipeID, userID string) error {
	if _, err := s.getRecipe(ctx, recipeID); err != nil {
		return err
	}

	favorited, err := s.recipeRepository.IsFavorited(ctx, userID, recipeID)
	if err != nil {
		return err
	}
	if !favorited {
		return domain.ErrNotFavorited
	}
	return s.recipeRepository.RemoveFavorite(ctx, userID, recipeID)
}

func (s *recipeService) AddToShoppingCart(ctx context.Context, recipeID, userID string) (domain.ShortRecipeResponse, error) {
	recipe, err := s.getRecipe(ctx, recipeID)
	if err != nil {
		return domain.ShortRecipeResponse{}, err
	}

	inCart, err := s.recipeRepository.IsInShoppingCart(ctx, userID, recipeID)
	if err != nil {
		return domain.ShortRecipeResponse{}, err
	}
	if inCart {
		return domain.ShortRecipeResponse{}, domain.ErrAlreadyInShoppingCart
	}

	userUUID, err := uuid.Parse(userID)
	if err != nil {
		return domain.ShortRecipeResponse{}, domain.ErrParseUUID
	}

	shopping := &entities.Shopping{
		ID:       uuid.New(),
		UserID:   userUUID,
		RecipeID: recipe.ID,
	}
	if err := s.recipeRepository.AddShopping(ctx, shopping); err != nil {
		return domain.ShortRecipeResponse{}, err
	}
	return toShortRecipeResponse(recipe), nil
}

func (s *recipeService) RemoveFromShoppingCart(ctx context.Context, recipeID, userID string) error {
	if _, err := s.getRecipe(ctx, recipeID); err != nil {
		return err
	}

	inCart, err := s.recipeRepository.IsInShoppingCart(ctx, userID, recipeID)
	if err != nil {
		return err
	}
	if !inCart {
		return domain.ErrNotInShoppingCart
	}
	return s.recipeRepository.RemoveShopping(ctx, userID, recipeID)
}

// DownloadShoppingCart renders the aggregated cart as plain text, one
// ingredient per line.
func (s *recipeService) DownloadShoppingCart(ctx context.Context, userID string) (string, error) {
	items, err := s.recipeRepository.ShoppingList(ctx, userID)
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	for _, item := range items {
		fmt.Fprintf(&sb, "%s - %d %s;\n", item.Name, item.Amount, item.MeasurementUnit)
	}
	return sb.String(), nil
}
