package service

import (
	"context"
	"database/sql"
	"errors"

	"go.uber.org/zap"

	"github.com/noah-isme/uec-api/internal/models"
	appErrors "github.com/noah-isme/uec-api/pkg/errors"
)

type enrollmentRepository interface {
	List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, int, error)
	FindByID(ctx context.Context, id string) (*models.Enrollment, error)
	FindDetailByID(ctx context.Context, id string) (*models.EnrollmentDetail, error)
	ExistsActiveForSemester(ctx context.Context, studentID, semesterID string) (bool, error)
	CreateWithCapacityCheck(ctx context.Context, enrollment *models.Enrollment) (bool, error)
	Delete(ctx context.Context, id, scheduleID string) error
	SetAttendance(ctx context.Context, id string, attended bool) error
	SetCompleted(ctx context.Context, id string, completed bool) error
}

type enrollmentScheduleReader interface {
	FindByID(ctx context.Context, id string) (*models.ActivitySchedule, error)
}

type enrollmentRatingReader interface {
	FindByEnrollment(ctx context.Context, enrollmentID string) (*models.ActivityRating, error)
}

// EnrollmentService enforces the enrollment rules: the enrollment window must
// be open, the schedule must have room, and a student holds at most one
// enrollment per semester. The capacity rule is re-checked inside the
// enrollment transaction, so the pre-checks here only exist to give precise
// error codes.
type EnrollmentService struct {
	repo      enrollmentRepository
	schedules enrollmentScheduleReader
	semesters currentSemesterReader
	ratings   enrollmentRatingReader
	cache     *CacheService
	metrics   *MetricsService
	logger    *zap.Logger
}

// NewEnrollmentService constructs EnrollmentService.
func NewEnrollmentService(repo enrollmentRepository, schedules enrollmentScheduleReader, semesters currentSemesterReader, ratings enrollmentRatingReader, cache *CacheService, metrics *MetricsService, logger *zap.Logger) *EnrollmentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EnrollmentService{repo: repo, schedules: schedules, semesters: semesters, ratings: ratings, cache: cache, metrics: metrics, logger: logger}
}

// Enroll registers the student into the schedule. On success the seat is
// claimed and the enrollment persisted atomically; on a full schedule nothing
// is written.
func (s *EnrollmentService) Enroll(ctx context.Context, studentID, scheduleID string) (*models.EnrollmentDetail, error) {
	semester, err := s.semesters.FindCurrent(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "no current semester configured")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve current semester")
	}
	if !semester.EnrollmentOpen {
		s.recordEnrollment("rejected_closed")
		return nil, appErrors.Clone(appErrors.ErrEnrollmentClosed, "")
	}

	schedule, err := s.schedules.FindByID(ctx, scheduleID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "schedule not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load schedule")
	}
	if schedule.SemesterID != semester.ID {
		return nil, appErrors.Clone(appErrors.ErrValidation, "schedule does not belong to the current semester")
	}
	if schedule.IsFull() {
		s.recordEnrollment("rejected_full")
		return nil, appErrors.Clone(appErrors.ErrScheduleFull, "")
	}

	exists, err := s.repo.ExistsActiveForSemester(ctx, studentID, semester.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check existing enrollment")
	}
	if exists {
		s.recordEnrollment("rejected_duplicate")
		return nil, appErrors.Clone(appErrors.ErrAlreadyEnrolled, "")
	}

	enrollment := &models.Enrollment{
		StudentID:  studentID,
		ScheduleID: scheduleID,
		SemesterID: semester.ID,
	}
	ok, err := s.repo.CreateWithCapacityCheck(ctx, enrollment)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to enroll")
	}
	if !ok {
		s.recordEnrollment("rejected_full")
		return nil, appErrors.Clone(appErrors.ErrScheduleFull, "")
	}
	s.recordEnrollment("enrolled")
	s.invalidateSchedules(ctx)

	detail, err := s.repo.FindDetailByID(ctx, enrollment.ID)
	if err != nil {
		s.logger.Warn("failed to load enrollment detail after enroll", zap.String("enrollment_id", enrollment.ID), zap.Error(err))
		return &models.EnrollmentDetail{Enrollment: *enrollment}, nil
	}
	return detail, nil
}

// History returns the student's enrollments across all semesters, including
// any submitted ratings.
func (s *EnrollmentService) History(ctx context.Context, studentID string, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, *models.Pagination, error) {
	filter.StudentID = studentID
	enrollments, pagination, err := s.list(ctx, filter)
	if err != nil {
		return nil, nil, err
	}
	s.attachRatings(ctx, enrollments)
	return enrollments, pagination, nil
}

// List returns enrollments matching the filter, for administrative views.
func (s *EnrollmentService) List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, *models.Pagination, error) {
	return s.list(ctx, filter)
}

func (s *EnrollmentService) list(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, *models.Pagination, error) {
	enrollments, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list enrollments")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	return enrollments, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Unenroll removes the student's own, not yet completed enrollment while the
// enrollment window is still open, releasing the seat.
func (s *EnrollmentService) Unenroll(ctx context.Context, studentID, enrollmentID string) error {
	enrollment, err := s.findEnrollment(ctx, enrollmentID)
	if err != nil {
		return err
	}
	if enrollment.StudentID != studentID {
		return appErrors.Clone(appErrors.ErrForbidden, "enrollment belongs to another student")
	}
	if enrollment.Completed {
		return appErrors.Clone(appErrors.ErrPreconditionFailed, "completed enrollments cannot be removed")
	}
	semester, err := s.semesters.FindCurrent(ctx)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve current semester")
	}
	if semester == nil || semester.ID != enrollment.SemesterID || !semester.EnrollmentOpen {
		return appErrors.Clone(appErrors.ErrEnrollmentClosed, "enrollment changes are closed for this semester")
	}
	if err := s.repo.Delete(ctx, enrollment.ID, enrollment.ScheduleID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to unenroll")
	}
	s.invalidateSchedules(ctx)
	return nil
}

// SetAttendance records whether the student attended.
func (s *EnrollmentService) SetAttendance(ctx context.Context, enrollmentID string, attended bool) (*models.EnrollmentDetail, error) {
	if _, err := s.findEnrollment(ctx, enrollmentID); err != nil {
		return nil, err
	}
	if err := s.repo.SetAttendance(ctx, enrollmentID, attended); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to set attendance")
	}
	return s.detail(ctx, enrollmentID)
}

// SetCompleted marks the enrollment completed, which makes it eligible for
// rating.
func (s *EnrollmentService) SetCompleted(ctx context.Context, enrollmentID string, completed bool) (*models.EnrollmentDetail, error) {
	if _, err := s.findEnrollment(ctx, enrollmentID); err != nil {
		return nil, err
	}
	if err := s.repo.SetCompleted(ctx, enrollmentID, completed); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to set completion")
	}
	return s.detail(ctx, enrollmentID)
}

func (s *EnrollmentService) findEnrollment(ctx context.Context, id string) (*models.Enrollment, error) {
	enrollment, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
	}
	return enrollment, nil
}

func (s *EnrollmentService) detail(ctx context.Context, id string) (*models.EnrollmentDetail, error) {
	detail, err := s.repo.FindDetailByID(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
	}
	return detail, nil
}

// attachRatings enriches completed enrollments with their submitted rating.
// A missing rating is not an error; lookup failures degrade to an unenriched
// row.
func (s *EnrollmentService) attachRatings(ctx context.Context, enrollments []models.EnrollmentDetail) {
	if s.ratings == nil {
		return
	}
	for i := range enrollments {
		if !enrollments[i].Completed {
			continue
		}
		rating, err := s.ratings.FindByEnrollment(ctx, enrollments[i].ID)
		if err != nil {
			if !errors.Is(err, sql.ErrNoRows) {
				s.logger.Warn("failed to load rating for enrollment", zap.String("enrollment_id", enrollments[i].ID), zap.Error(err))
			}
			continue
		}
		enrollments[i].Rating = rating
	}
}

func (s *EnrollmentService) recordEnrollment(outcome string) {
	if s.metrics != nil {
		s.metrics.RecordEnrollment(outcome)
	}
}

func (s *EnrollmentService) invalidateSchedules(ctx context.Context) {
	_ = s.cache.Invalidate(ctx, scheduleCachePattern)
}
