package ingredient

import (
	"context"
	"errors"

	"foodgram-backend/domain"
	"foodgram-backend/entities"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type (
	IngredientService interface {
		GetIngredients(ctx context.Context, name string) ([]domain.IngredientResponse, error)
		GetIngredientDetail(ctx context.Context, id string) (domain.IngredientResponse, error)
		CreateIngredient(ctx context.Context, req domain.CreateIngredientRequest) (domain.IngredientResponse, error)
	}

	ingredientService struct {
		ingredientRepository IngredientRepository
	}
)

func NewIngredientService(ingredientRepository IngredientRepository) IngredientService {
	return &ingredientService{ingredientRepository: ingredientRepository}
}

func toIngredientResponse(ingredient *entities.Ingredient) domain.IngredientResponse {
	return domain.IngredientResponse{
		ID:              ingredient.ID.String(),
		Name:            ingredient.Name,
		MeasurementUnit: ingredient.MeasurementUnit,
	}
}

func (s *ingredientService) GetIngredients(ctx context.Context, name string) ([]domain.IngredientResponse, error) {
	ingredients, err := s.ingredientRepository.GetIngredients(ctx, name)
	if err != nil {
		return nil, err
	}

	result := make([]domain.IngredientResponse, 0, len(ingredients))
	for _, ing := range ingredients {
		result = append(result, toIngredientResponse(ing))
	}
	return result, nil
}

func (s *ingredientService) GetIngredientDetail(ctx context.Context, id string) (domain.IngredientResponse, error) {
	if _, err := uuid.Parse(id); err != nil {
		return domain.IngredientResponse{}, domain.ErrIngredientNotFound
	}

	ingredient, err := s.ingredientRepository.GetIngredientByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.IngredientResponse{}, domain.ErrIngredientNotFound
		}
		return domain.IngredientResponse{}, err
	}
	return toIngredientResponse(ingredient), nil
}

func (s *ingredientService) CreateIngredient(ctx context.Context, req domain.CreateIngredientRequest) (domain.IngredientResponse, error) {
	ingredient := &entities.Ingredient{
		ID:              uuid.New(),
		Name:            req.Name,
		MeasurementUnit: req.MeasurementUnit,
	}
	if err := s.ingredientRepository.CreateIngredient(ctx, ingredient); err != nil {
		return domain.IngredientResponse{}, err
	}
	return toIngredientResponse(ingredient), nil
}
