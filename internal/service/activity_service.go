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

type activityRepository interface {
	List(ctx context.Context, filter models.ActivityFilter) ([]models.ActivityDetail, int, error)
	FindByID(ctx context.Context, id string) (*models.Activity, error)
	FindDetailByID(ctx context.Context, id string) (*models.ActivityDetail, error)
	ExistsByCode(ctx context.Context, code, excludeID string) (bool, error)
	Create(ctx context.Context, activity *models.Activity) error
	Update(ctx context.Context, activity *models.Activity) error
	Delete(ctx context.Context, id string) error
}

type activityCategoryReader interface {
	FindByID(ctx context.Context, id string) (*models.ActivityCategory, error)
}

// ActivityRequest describes activity create/update payload. MaxCapacity is
// the capacity template applied to new schedules of the activity.
type ActivityRequest struct {
	Code        string `json:"code" validate:"required"`
	Name        string `json:"name" validate:"required"`
	Description string `json:"description"`
	CategoryID  string `json:"category_id" validate:"required"`
	MaxCapacity int    `json:"max_capacity" validate:"required,gt=0"`
}

// ActivityService manages the activity catalog.
type ActivityService struct {
	repo       activityRepository
	categories activityCategoryReader
	cache      *CacheService
	validator  *validator.Validate
	logger     *zap.Logger
}

// NewActivityService constructs ActivityService.
func NewActivityService(repo activityRepository, categories activityCategoryReader, cache *CacheService, validate *validator.Validate, logger *zap.Logger) *ActivityService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ActivityService{repo: repo, categories: categories, cache: cache, validator: validate, logger: logger}
}

// List returns activities with pagination metadata.
func (s *ActivityService) List(ctx context.Context, filter models.ActivityFilter) ([]models.ActivityDetail, *models.Pagination, error) {
	activities, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list activities")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	return activities, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Get returns an activity with its category name.
func (s *ActivityService) Get(ctx context.Context, id string) (*models.ActivityDetail, error) {
	activity, err := s.repo.FindDetailByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "activity not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load activity")
	}
	return activity, nil
}

// Create adds an activity to the catalog.
func (s *ActivityService) Create(ctx context.Context, req ActivityRequest) (*models.Activity, error) {
	if err := s.validate(ctx, req, ""); err != nil {
		return nil, err
	}
	activity := &models.Activity{
		Code:        req.Code,
		Name:        req.Name,
		Description: req.Description,
		CategoryID:  req.CategoryID,
		MaxCapacity: req.MaxCapacity,
	}
	if err := s.repo.Create(ctx, activity); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create activity")
	}
	s.invalidateCatalog(ctx)
	return activity, nil
}

// Update edits an activity.
func (s *ActivityService) Update(ctx context.Context, id string, req ActivityRequest) (*models.Activity, error) {
	if err := s.validate(ctx, req, id); err != nil {
		return nil, err
	}
	activity, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "activity not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load activity")
	}
	activity.Code = req.Code
	activity.Name = req.Name
	activity.Description = req.Description
	activity.CategoryID = req.CategoryID
	activity.MaxCapacity = req.MaxCapacity
	if err := s.repo.Update(ctx, activity); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update activity")
	}
	s.invalidateCatalog(ctx)
	return activity, nil
}

// Delete removes an activity with no schedules.
func (s *ActivityService) Delete(ctx context.Context, id string) error {
	if _, err := s.repo.FindByID(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "activity not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load activity")
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Clone(appErrors.ErrConflict, "activity has schedules")
	}
	s.invalidateCatalog(ctx)
	return nil
}

func (s *ActivityService) validate(ctx context.Context, req ActivityRequest, excludeID string) error {
	if err := s.validator.Struct(req); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid activity payload")
	}
	if _, err := s.categories.FindByID(ctx, req.CategoryID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrValidation, "category does not exist")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load category")
	}
	exists, err := s.repo.ExistsByCode(ctx, req.Code, excludeID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to validate activity code")
	}
	if exists {
		return appErrors.Clone(appErrors.ErrConflict, "activity code already in use")
	}
	return nil
}

func (s *ActivityService) invalidateCatalog(ctx context.Context) {
	_ = s.cache.Invalidate(ctx, scheduleCachePattern)
}
