package tag

import (
	"context"
	"errors"
	"regexp"

	"foodgram-backend/domain"
	"foodgram-backend/entities"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Tag colors are stored as HEX codes, short or long form.
var hexColorPattern = regexp.MustCompile(`^#(?:[0-9a-fA-F]{3}){1,2}$`)

type (
	TagService interface {
		GetTags(ctx context.Context) ([]domain.TagResponse, error)
		GetTagDetail(ctx context.Context, id string) (domain.TagResponse, error)
		CreateTag(ctx context.Context, req domain.CreateTagRequest) (domain.TagResponse, error)
	}

	tagService struct {
		tagRepository TagRepository
	}
)

func NewTagService(tagRepository TagRepository) TagService {
	return &tagService{tagRepository: tagRepository}
}

func toTagResponse(tag *entities.Tag) domain.TagResponse {
	return domain.TagResponse{
		ID:    tag.ID.String(),
		Name:  tag.Name,
		Color: tag.Color,
		Slug:  tag.Slug,
	}
}

func (s *tagService) GetTags(ctx context.Context) ([]domain.TagResponse, error) {
	tags, err := s.tagRepository.GetTags(ctx)
	if err != nil {
		return nil, err
	}

	result := make([]domain.TagResponse, 0, len(tags))
	for _, tag := range tags {
		result = append(result, toTagResponse(tag))
	}
	return result, nil
}

func (s *tagService) GetTagDetail(ctx context.Context, id string) (domain.TagResponse, error) {
	if _, err := uuid.Parse(id); err != nil {
		return domain.TagResponse{}, domain.ErrTagNotFound
	}

	tag, err := s.tagRepository.GetTagByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.TagResponse{}, domain.ErrTagNotFound
		}
		return domain.TagResponse{}, err
	}
	return toTagResponse(tag), nil
}

func (s *tagService) CreateTag(ctx context.Context, req domain.CreateTagRequest) (domain.TagResponse, error) {
	if !hexColorPattern.MatchString(req.Color) {
		return domain.TagResponse{}, domain.ErrInvalidColor
	}

	exists, err := s.tagRepository.TagExists(ctx, req.Name, req.Color, req.Slug)
	if err != nil {
		return domain.TagResponse{}, err
	}
	if exists {
		return domain.TagResponse{}, domain.ErrTagAlreadyExists
	}

	tag := &entities.Tag{
		ID:    uuid.New(),
		Name:  req.Name,
		Color: req.Color,
		Slug:  req.Slug,
	}
	if err := s.tagRepository.CreateTag(ctx, tag); err != nil {
		return domain.TagResponse{}, err
	}
	return toTagResponse(tag), nil
}
