package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/uec-api/internal/models"
	appErrors "github.com/noah-isme/uec-api/pkg/errors"
)

const scheduleCachePattern = "uec:schedules*"

type scheduleRepository interface {
	List(ctx context.Context, filter models.ScheduleFilter) ([]models.ScheduleDetail, error)
	ListAvailable(ctx context.Context, semesterID string) ([]models.ScheduleDetail, error)
	FindByID(ctx context.Context, id string) (*models.ActivitySchedule, error)
	FindDetailByID(ctx context.Context, id string) (*models.ScheduleDetail, error)
	Create(ctx context.Context, schedule *models.ActivitySchedule) error
	Update(ctx context.Context, schedule *models.ActivitySchedule) error
	Delete(ctx context.Context, id string) error
}

type currentSemesterReader interface {
	FindCurrent(ctx context.Context) (*models.Semester, error)
}

type scheduleActivityReader interface {
	FindByID(ctx context.Context, id string) (*models.Activity, error)
}

type teacherQualificationReader interface {
	ListActivityIDs(ctx context.Context, teacherID string) ([]string, error)
}

// ScheduleRequest describes schedule create/update payload. MaxCapacity zero
// means inherit the activity's capacity template.
type ScheduleRequest struct {
	ActivityID  string `json:"activity_id" validate:"required"`
	TeacherID   string `json:"teacher_id" validate:"required"`
	SemesterID  string `json:"semester_id" validate:"required"`
	DayOfWeek   int    `json:"day_of_week" validate:"min=0,max=6"`
	StartTime   string `json:"start_time" validate:"required"`
	EndTime     string `json:"end_time" validate:"required"`
	Location    string `json:"location" validate:"required"`
	MaxCapacity int    `json:"max_capacity" validate:"min=0"`
}

// ScheduleService serves schedule browsing and administration. Browsing
// always ranks open schedules before full ones, least filled first, so the
// catalog steers students toward sections with room.
type ScheduleService struct {
	repo        scheduleRepository
	semesters   currentSemesterReader
	activities  scheduleActivityReader
	teacherActs teacherQualificationReader
	cache       *CacheService
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewScheduleService constructs ScheduleService.
func NewScheduleService(repo scheduleRepository, semesters currentSemesterReader, activities scheduleActivityReader, teacherActs teacherQualificationReader, cache *CacheService, validate *validator.Validate, logger *zap.Logger) *ScheduleService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ScheduleService{repo: repo, semesters: semesters, activities: activities, teacherActs: teacherActs, cache: cache, validator: validate, logger: logger}
}

// Browse returns the current semester's schedules matching the filter, ranked
// by availability: full schedules last, the rest by ascending fill ratio.
// Ties keep the repository order (day, then start time). Results without a
// search term are cached.
func (s *ScheduleService) Browse(ctx context.Context, filter models.ScheduleFilter) ([]models.ScheduleDetail, *models.Pagination, bool, error) {
	if filter.SemesterID == "" {
		semester, err := s.semesters.FindCurrent(ctx)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, nil, false, appErrors.Clone(appErrors.ErrNotFound, "no current semester configured")
			}
			return nil, nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve current semester")
		}
		filter.SemesterID = semester.ID
	}

	cacheable := s.cache.Enabled() && filter.Search == ""
	key := browseCacheKey(filter)
	if cacheable {
		var cached browseResult
		if hit, _ := s.cache.Get(ctx, key, &cached); hit {
			return cached.Schedules, cached.Pagination, true, nil
		}
	}

	schedules, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list schedules")
	}

	// Ranking runs over the whole filtered set before the page is cut, so
	// open sections always precede full ones regardless of page boundaries.
	rankByAvailability(schedules)

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 50
	}
	pagination := &models.Pagination{Page: page, PageSize: size, TotalCount: len(schedules)}
	schedules = slicePage(schedules, page, size)

	if cacheable {
		_ = s.cache.Set(ctx, key, browseResult{Schedules: schedules, Pagination: pagination}, 0)
	}
	return schedules, pagination, false, nil
}

func slicePage(schedules []models.ScheduleDetail, page, size int) []models.ScheduleDetail {
	start := (page - 1) * size
	if start >= len(schedules) {
		return []models.ScheduleDetail{}
	}
	end := start + size
	if end > len(schedules) {
		end = len(schedules)
	}
	return schedules[start:end]
}

// Available returns current-semester schedules that still have open seats,
// ranked the same way as Browse.
func (s *ScheduleService) Available(ctx context.Context) ([]models.ScheduleDetail, error) {
	semester, err := s.semesters.FindCurrent(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "no current semester configured")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve current semester")
	}
	schedules, err := s.repo.ListAvailable(ctx, semester.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list available schedules")
	}
	rankByAvailability(schedules)
	return schedules, nil
}

// Get returns one schedule with its activity, category and teacher context.
func (s *ScheduleService) Get(ctx context.Context, id string) (*models.ScheduleDetail, error) {
	detail, err := s.repo.FindDetailByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "schedule not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load schedule")
	}
	return detail, nil
}

// Create adds a schedule after validating the day, the time range and the
// teacher's qualification for the activity.
func (s *ScheduleService) Create(ctx context.Context, req ScheduleRequest) (*models.ActivitySchedule, error) {
	activity, err := s.validateSchedule(ctx, req)
	if err != nil {
		return nil, err
	}
	capacity := req.MaxCapacity
	if capacity <= 0 {
		capacity = activity.MaxCapacity
	}
	schedule := &models.ActivitySchedule{
		ActivityID:  req.ActivityID,
		TeacherID:   req.TeacherID,
		SemesterID:  req.SemesterID,
		DayOfWeek:   req.DayOfWeek,
		StartTime:   req.StartTime,
		EndTime:     req.EndTime,
		Location:    req.Location,
		MaxCapacity: capacity,
	}
	if err := s.repo.Create(ctx, schedule); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create schedule")
	}
	s.invalidate(ctx)
	return schedule, nil
}

// Update edits a schedule. Capacity may not drop below the current enrollment
// count.
func (s *ScheduleService) Update(ctx context.Context, id string, req ScheduleRequest) (*models.ActivitySchedule, error) {
	activity, err := s.validateSchedule(ctx, req)
	if err != nil {
		return nil, err
	}
	schedule, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "schedule not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load schedule")
	}
	capacity := req.MaxCapacity
	if capacity <= 0 {
		capacity = activity.MaxCapacity
	}
	if capacity < schedule.EnrolledStudents {
		return nil, appErrors.Clone(appErrors.ErrConflict, fmt.Sprintf("capacity %d is below current enrollment %d", capacity, schedule.EnrolledStudents))
	}
	schedule.ActivityID = req.ActivityID
	schedule.TeacherID = req.TeacherID
	schedule.DayOfWeek = req.DayOfWeek
	schedule.StartTime = req.StartTime
	schedule.EndTime = req.EndTime
	schedule.Location = req.Location
	schedule.MaxCapacity = capacity
	if err := s.repo.Update(ctx, schedule); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update schedule")
	}
	s.invalidate(ctx)
	return schedule, nil
}

// Delete removes a schedule with no enrolled students.
func (s *ScheduleService) Delete(ctx context.Context, id string) error {
	schedule, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "schedule not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load schedule")
	}
	if schedule.EnrolledStudents > 0 {
		return appErrors.Clone(appErrors.ErrConflict, "schedule has enrolled students")
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete schedule")
	}
	s.invalidate(ctx)
	return nil
}

func (s *ScheduleService) validateSchedule(ctx context.Context, req ScheduleRequest) (*models.Activity, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid schedule payload")
	}
	if !validTimeRange(req.StartTime, req.EndTime) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "start time must precede end time")
	}
	activity, err := s.activities.FindByID(ctx, req.ActivityID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrValidation, "activity does not exist")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load activity")
	}
	qualified, err := s.teacherActs.ListActivityIDs(ctx, req.TeacherID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load teacher qualifications")
	}
	found := false
	for _, activityID := range qualified {
		if activityID == req.ActivityID {
			found = true
			break
		}
	}
	if !found {
		return nil, appErrors.Clone(appErrors.ErrTeacherNotQualified, "")
	}
	return activity, nil
}

func (s *ScheduleService) invalidate(ctx context.Context) {
	_ = s.cache.Invalidate(ctx, scheduleCachePattern)
}

type browseResult struct {
	Schedules  []models.ScheduleDetail `json:"schedules"`
	Pagination *models.Pagination      `json:"pagination"`
}

func browseCacheKey(filter models.ScheduleFilter) string {
	day := "all"
	if filter.DayOfWeek != nil {
		day = fmt.Sprintf("%d", *filter.DayOfWeek)
	}
	category := filter.CategoryID
	if category == "" {
		category = "all"
	}
	return fmt.Sprintf("uec:schedules:%s:%s:%s:%d:%d", filter.SemesterID, category, day, filter.Page, filter.PageSize)
}

// rankByAvailability orders schedules for browsing: those with open seats
// first by ascending fill ratio, full ones last. The sort is stable so equal
// ratios keep their day/time order.
func rankByAvailability(schedules []models.ScheduleDetail) {
	sort.SliceStable(schedules, func(i, j int) bool {
		a, b := schedules[i], schedules[j]
		if a.IsFull() != b.IsFull() {
			return !a.IsFull()
		}
		return a.FillRatio() < b.FillRatio()
	})
}
