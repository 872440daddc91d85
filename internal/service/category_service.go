package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/uec-api/internal/models"
	appErrors "github.com/noah-isme/uec-api/pkg/errors"
)

const categoryCacheKey = "uec:categories"

type categoryRepository interface {
	List(ctx context.Context) ([]models.ActivityCategory, error)
	FindByID(ctx context.Context, id string) (*models.ActivityCategory, error)
	Create(ctx context.Context, category *models.ActivityCategory) error
	Update(ctx context.Context, category *models.ActivityCategory) error
	Delete(ctx context.Context, id string) error
}

// CategoryRequest describes category create/update payload.
type CategoryRequest struct {
	Name        string  `json:"name" validate:"required"`
	Description *string `json:"description,omitempty"`
}

// CategoryService manages the category lookup table.
type CategoryService struct {
	repo      categoryRepository
	cache     *CacheService
	validator *validator.Validate
	logger    *zap.Logger
}

// NewCategoryService constructs CategoryService.
func NewCategoryService(repo categoryRepository, cache *CacheService, validate *validator.Validate, logger *zap.Logger) *CategoryService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CategoryService{repo: repo, cache: cache, validator: validate, logger: logger}
}

// List returns all categories. The list is small and read-mostly, so it is
// served from cache when possible. The second return value reports a cache hit.
func (s *CategoryService) List(ctx context.Context) ([]models.ActivityCategory, bool, error) {
	var cached []models.ActivityCategory
	if hit, err := s.cache.Get(ctx, categoryCacheKey, &cached); err == nil && hit {
		return cached, true, nil
	}

	categories, err := s.repo.List(ctx)
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list categories")
	}
	_ = s.cache.Set(ctx, categoryCacheKey, categories, 0)
	return categories, false, nil
}

// Get returns a category by ID.
func (s *CategoryService) Get(ctx context.Context, id string) (*models.ActivityCategory, error) {
	category, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "category not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load category")
	}
	return category, nil
}

// Create registers a new category.
func (s *CategoryService) Create(ctx context.Context, req CategoryRequest) (*models.ActivityCategory, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid category payload")
	}
	category := &models.ActivityCategory{Name: req.Name, Description: req.Description}
	if err := s.repo.Create(ctx, category); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create category")
	}
	_ = s.cache.Invalidate(ctx, categoryCacheKey)
	return category, nil
}

// Update edits a category.
func (s *CategoryService) Update(ctx context.Context, id string, req CategoryRequest) (*models.ActivityCategory, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid category payload")
	}
	category, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	category.Name = req.Name
	category.Description = req.Description
	if err := s.repo.Update(ctx, category); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update category")
	}
	_ = s.cache.Invalidate(ctx, categoryCacheKey)
	return category, nil
}

// Delete removes a category with no activities.
func (s *CategoryService) Delete(ctx context.Context, id string) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Clone(appErrors.ErrConflict, "category is referenced by activities")
	}
	_ = s.cache.Invalidate(ctx, categoryCacheKey)
	return nil
}
