package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/uec-api/internal/models"
	"github.com/noah-isme/uec-api/internal/repository"
	appErrors "github.com/noah-isme/uec-api/pkg/errors"
)

type ratingRepository interface {
	FindByEnrollment(ctx context.Context, enrollmentID string) (*models.ActivityRating, error)
	ExistsForEnrollment(ctx context.Context, enrollmentID string) (bool, error)
	Create(ctx context.Context, rating *models.ActivityRating) error
	ListByStudent(ctx context.Context, studentID string) ([]models.RatingDetail, error)
}

type ratingEnrollmentReader interface {
	FindByID(ctx context.Context, id string) (*models.Enrollment, error)
	List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, int, error)
}

type semesterReader interface {
	FindByID(ctx context.Context, id string) (*models.Semester, error)
}

// RatingRequest is the payload for submitting a rating. Both star values are
// on a 1 to 5 scale.
type RatingRequest struct {
	EnrollmentID   string  `json:"enrollment_id" validate:"required"`
	ActivityRating int     `json:"activity_rating" validate:"required"`
	TeacherRating  int     `json:"teacher_rating" validate:"required"`
	Comment        *string `json:"comment"`
}

// RatingService implements the write-once rating workflow: a student rates a
// completed enrollment exactly once, while the semester's rating window is
// open.
type RatingService struct {
	repo        ratingRepository
	enrollments ratingEnrollmentReader
	semesters   semesterReader
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewRatingService constructs RatingService.
func NewRatingService(repo ratingRepository, enrollments ratingEnrollmentReader, semesters semesterReader, validate *validator.Validate, logger *zap.Logger) *RatingService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RatingService{repo: repo, enrollments: enrollments, semesters: semesters, validator: validate, logger: logger}
}

// Ratable returns the student's completed enrollments that have no rating
// yet.
func (s *RatingService) Ratable(ctx context.Context, studentID string) ([]models.EnrollmentDetail, error) {
	completed := true
	enrollments, _, err := s.enrollments.List(ctx, models.EnrollmentFilter{
		StudentID: studentID,
		Completed: &completed,
		PageSize:  100,
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list enrollments")
	}
	ratable := make([]models.EnrollmentDetail, 0, len(enrollments))
	for _, enrollment := range enrollments {
		rated, err := s.repo.ExistsForEnrollment(ctx, enrollment.ID)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check rating")
		}
		if !rated {
			ratable = append(ratable, enrollment)
		}
	}
	return ratable, nil
}

// Submit records the student's rating for a completed enrollment. A second
// submission for the same enrollment is rejected, also under concurrency: the
// repository surfaces the unique constraint violation and it maps to the same
// already-rated error.
func (s *RatingService) Submit(ctx context.Context, studentID string, req RatingRequest) (*models.ActivityRating, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid rating payload")
	}
	if req.ActivityRating < 1 || req.ActivityRating > 5 || req.TeacherRating < 1 || req.TeacherRating > 5 {
		return nil, appErrors.Clone(appErrors.ErrInvalidRating, "")
	}

	enrollment, err := s.enrollments.FindByID(ctx, req.EnrollmentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
	}
	if enrollment.StudentID != studentID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "enrollment belongs to another student")
	}
	if !enrollment.Completed {
		return nil, appErrors.Clone(appErrors.ErrNotCompleted, "")
	}

	semester, err := s.semesters.FindByID(ctx, enrollment.SemesterID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "semester not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load semester")
	}
	if !semester.RatingOpen {
		return nil, appErrors.Clone(appErrors.ErrRatingClosed, "")
	}

	rated, err := s.repo.ExistsForEnrollment(ctx, enrollment.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check rating")
	}
	if rated {
		return nil, appErrors.Clone(appErrors.ErrAlreadyRated, "")
	}

	rating := &models.ActivityRating{
		EnrollmentID:   enrollment.ID,
		ActivityRating: req.ActivityRating,
		TeacherRating:  req.TeacherRating,
		Comment:        req.Comment,
	}
	if err := s.repo.Create(ctx, rating); err != nil {
		if errors.Is(err, repository.ErrRatingExists) {
			return nil, appErrors.Clone(appErrors.ErrAlreadyRated, "")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to submit rating")
	}
	return rating, nil
}

// ByStudent returns the student's submitted ratings, most recent first.
func (s *RatingService) ByStudent(ctx context.Context, studentID string) ([]models.RatingDetail, error) {
	ratings, err := s.repo.ListByStudent(ctx, studentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list ratings")
	}
	return ratings, nil
}
