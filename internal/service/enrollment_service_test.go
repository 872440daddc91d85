package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/uec-api/internal/models"
	appErrors "github.com/noah-isme/uec-api/pkg/errors"
)

type stubSemesters struct {
	current   *models.Semester
	semesters map[string]*models.Semester
}

func (s *stubSemesters) FindCurrent(ctx context.Context) (*models.Semester, error) {
	if s.current == nil {
		return nil, sql.ErrNoRows
	}
	cp := *s.current
	return &cp, nil
}

func (s *stubSemesters) FindByID(ctx context.Context, id string) (*models.Semester, error) {
	if sem, ok := s.semesters[id]; ok {
		cp := *sem
		return &cp, nil
	}
	return nil, sql.ErrNoRows
}

type stubSchedules struct {
	schedules map[string]*models.ActivitySchedule
}

func (s *stubSchedules) FindByID(ctx context.Context, id string) (*models.ActivitySchedule, error) {
	if schedule, ok := s.schedules[id]; ok {
		cp := *schedule
		return &cp, nil
	}
	return nil, sql.ErrNoRows
}

type mockEnrollmentRepo struct {
	enrollments  map[string]*models.Enrollment
	bySemester   map[string]string // studentID+semesterID -> enrollment ID
	claimSucceed bool
	created      []*models.Enrollment
	deleted      []string
	completedSet map[string]bool
	listResult   []models.EnrollmentDetail
}

func (m *mockEnrollmentRepo) List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, int, error) {
	return m.listResult, len(m.listResult), nil
}

func (m *mockEnrollmentRepo) FindByID(ctx context.Context, id string) (*models.Enrollment, error) {
	if enrollment, ok := m.enrollments[id]; ok {
		cp := *enrollment
		return &cp, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockEnrollmentRepo) FindDetailByID(ctx context.Context, id string) (*models.EnrollmentDetail, error) {
	if enrollment, ok := m.enrollments[id]; ok {
		return &models.EnrollmentDetail{Enrollment: *enrollment}, nil
	}
	for _, created := range m.created {
		if created.ID == id {
			return &models.EnrollmentDetail{Enrollment: *created}, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockEnrollmentRepo) ExistsActiveForSemester(ctx context.Context, studentID, semesterID string) (bool, error) {
	_, ok := m.bySemester[studentID+"/"+semesterID]
	return ok, nil
}

func (m *mockEnrollmentRepo) CreateWithCapacityCheck(ctx context.Context, enrollment *models.Enrollment) (bool, error) {
	if !m.claimSucceed {
		return false, nil
	}
	if enrollment.ID == "" {
		enrollment.ID = "enr-new"
	}
	enrollment.EnrollmentDate = time.Now().UTC()
	cp := *enrollment
	m.created = append(m.created, &cp)
	return true, nil
}

func (m *mockEnrollmentRepo) Delete(ctx context.Context, id, scheduleID string) error {
	m.deleted = append(m.deleted, id)
	delete(m.enrollments, id)
	return nil
}

func (m *mockEnrollmentRepo) SetAttendance(ctx context.Context, id string, attended bool) error {
	if enrollment, ok := m.enrollments[id]; ok {
		enrollment.Attended = attended
	}
	return nil
}

func (m *mockEnrollmentRepo) SetCompleted(ctx context.Context, id string, completed bool) error {
	if m.completedSet == nil {
		m.completedSet = make(map[string]bool)
	}
	m.completedSet[id] = completed
	if enrollment, ok := m.enrollments[id]; ok {
		enrollment.Completed = completed
	}
	return nil
}

func openSemester() *models.Semester {
	return &models.Semester{ID: "sem-1", Name: "2025-1", EnrollmentOpen: true, IsCurrent: true}
}

func TestEnrollmentServiceEnroll(t *testing.T) {
	repo := &mockEnrollmentRepo{claimSucceed: true}
	schedules := &stubSchedules{schedules: map[string]*models.ActivitySchedule{
		"sch-1": {ID: "sch-1", SemesterID: "sem-1", EnrolledStudents: 5, MaxCapacity: 20},
	}}
	svc := NewEnrollmentService(repo, schedules, &stubSemesters{current: openSemester()}, nil, nil, nil, zap.NewNop())

	enrollment, err := svc.Enroll(context.Background(), "stu-1", "sch-1")
	require.NoError(t, err)
	assert.Equal(t, "stu-1", enrollment.StudentID)
	assert.Equal(t, "sem-1", enrollment.SemesterID)
	require.Len(t, repo.created, 1)
}

func TestEnrollmentServiceEnrollClosedWindow(t *testing.T) {
	semester := openSemester()
	semester.EnrollmentOpen = false
	repo := &mockEnrollmentRepo{claimSucceed: true}
	schedules := &stubSchedules{schedules: map[string]*models.ActivitySchedule{
		"sch-1": {ID: "sch-1", SemesterID: "sem-1", EnrolledStudents: 5, MaxCapacity: 20},
	}}
	svc := NewEnrollmentService(repo, schedules, &stubSemesters{current: semester}, nil, nil, nil, zap.NewNop())

	_, err := svc.Enroll(context.Background(), "stu-1", "sch-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrEnrollmentClosed.Code, appErrors.FromError(err).Code)
	assert.Empty(t, repo.created)
}

func TestEnrollmentServiceEnrollFullSchedule(t *testing.T) {
	repo := &mockEnrollmentRepo{claimSucceed: true}
	schedules := &stubSchedules{schedules: map[string]*models.ActivitySchedule{
		"sch-1": {ID: "sch-1", SemesterID: "sem-1", EnrolledStudents: 20, MaxCapacity: 20},
	}}
	svc := NewEnrollmentService(repo, schedules, &stubSemesters{current: openSemester()}, nil, nil, nil, zap.NewNop())

	_, err := svc.Enroll(context.Background(), "stu-1", "sch-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrScheduleFull.Code, appErrors.FromError(err).Code)
	assert.Empty(t, repo.created)
}

func TestEnrollmentServiceEnrollLosesRaceForLastSeat(t *testing.T) {
	// The schedule still shows a free seat at pre-check time, but the
	// commit-time conditional update finds none left. Nothing is written.
	repo := &mockEnrollmentRepo{claimSucceed: false}
	schedules := &stubSchedules{schedules: map[string]*models.ActivitySchedule{
		"sch-1": {ID: "sch-1", SemesterID: "sem-1", EnrolledStudents: 19, MaxCapacity: 20},
	}}
	svc := NewEnrollmentService(repo, schedules, &stubSemesters{current: openSemester()}, nil, nil, nil, zap.NewNop())

	_, err := svc.Enroll(context.Background(), "stu-1", "sch-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrScheduleFull.Code, appErrors.FromError(err).Code)
	assert.Empty(t, repo.created)
}

func TestEnrollmentServiceEnrollDuplicateSemester(t *testing.T) {
	repo := &mockEnrollmentRepo{
		claimSucceed: true,
		bySemester:   map[string]string{"stu-1/sem-1": "enr-1"},
	}
	schedules := &stubSchedules{schedules: map[string]*models.ActivitySchedule{
		"sch-2": {ID: "sch-2", SemesterID: "sem-1", EnrolledStudents: 0, MaxCapacity: 10},
	}}
	svc := NewEnrollmentService(repo, schedules, &stubSemesters{current: openSemester()}, nil, nil, nil, zap.NewNop())

	_, err := svc.Enroll(context.Background(), "stu-1", "sch-2")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrAlreadyEnrolled.Code, appErrors.FromError(err).Code)
	assert.Empty(t, repo.created)
}

func TestEnrollmentServiceEnrollWrongSemesterSchedule(t *testing.T) {
	repo := &mockEnrollmentRepo{claimSucceed: true}
	schedules := &stubSchedules{schedules: map[string]*models.ActivitySchedule{
		"sch-old": {ID: "sch-old", SemesterID: "sem-0", EnrolledStudents: 0, MaxCapacity: 10},
	}}
	svc := NewEnrollmentService(repo, schedules, &stubSemesters{current: openSemester()}, nil, nil, nil, zap.NewNop())

	_, err := svc.Enroll(context.Background(), "stu-1", "sch-old")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestEnrollmentServiceUnenroll(t *testing.T) {
	repo := &mockEnrollmentRepo{
		enrollments: map[string]*models.Enrollment{
			"enr-1": {ID: "enr-1", StudentID: "stu-1", ScheduleID: "sch-1", SemesterID: "sem-1"},
		},
	}
	svc := NewEnrollmentService(repo, &stubSchedules{}, &stubSemesters{current: openSemester()}, nil, nil, nil, zap.NewNop())

	err := svc.Unenroll(context.Background(), "stu-1", "enr-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"enr-1"}, repo.deleted)
}

func TestEnrollmentServiceUnenrollForeignEnrollment(t *testing.T) {
	repo := &mockEnrollmentRepo{
		enrollments: map[string]*models.Enrollment{
			"enr-1": {ID: "enr-1", StudentID: "stu-2", ScheduleID: "sch-1", SemesterID: "sem-1"},
		},
	}
	svc := NewEnrollmentService(repo, &stubSchedules{}, &stubSemesters{current: openSemester()}, nil, nil, nil, zap.NewNop())

	err := svc.Unenroll(context.Background(), "stu-1", "enr-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
	assert.Empty(t, repo.deleted)
}

func TestEnrollmentServiceUnenrollCompleted(t *testing.T) {
	repo := &mockEnrollmentRepo{
		enrollments: map[string]*models.Enrollment{
			"enr-1": {ID: "enr-1", StudentID: "stu-1", ScheduleID: "sch-1", SemesterID: "sem-1", Completed: true},
		},
	}
	svc := NewEnrollmentService(repo, &stubSchedules{}, &stubSemesters{current: openSemester()}, nil, nil, nil, zap.NewNop())

	err := svc.Unenroll(context.Background(), "stu-1", "enr-1")
	require.Error(t, err)
	assert.Empty(t, repo.deleted)
}

func TestEnrollmentServiceSetCompleted(t *testing.T) {
	repo := &mockEnrollmentRepo{
		enrollments: map[string]*models.Enrollment{
			"enr-1": {ID: "enr-1", StudentID: "stu-1", ScheduleID: "sch-1", SemesterID: "sem-1"},
		},
	}
	svc := NewEnrollmentService(repo, &stubSchedules{}, &stubSemesters{current: openSemester()}, nil, nil, nil, zap.NewNop())

	enrollment, err := svc.SetCompleted(context.Background(), "enr-1", true)
	require.NoError(t, err)
	assert.True(t, enrollment.Completed)
	assert.True(t, repo.completedSet["enr-1"])
}

func TestEnrollmentServiceEnrollNoCurrentSemester(t *testing.T) {
	svc := NewEnrollmentService(&mockEnrollmentRepo{}, &stubSchedules{}, &stubSemesters{}, nil, nil, nil, zap.NewNop())

	_, err := svc.Enroll(context.Background(), "stu-1", "sch-1")
	require.Error(t, err)
	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, appErrors.ErrNotFound.Code, appErr.Code)
}

func TestEnrollmentServiceHistoryAttachesRatings(t *testing.T) {
	repo := &mockEnrollmentRepo{
		listResult: []models.EnrollmentDetail{
			{Enrollment: models.Enrollment{ID: "enr-1", StudentID: "stu-1", SemesterID: "sem-0", Completed: true}},
			{Enrollment: models.Enrollment{ID: "enr-2", StudentID: "stu-1", SemesterID: "sem-1"}},
		},
	}
	ratings := &mockRatingRepo{ratings: map[string]*models.ActivityRating{
		"enr-1": {ID: "rat-1", EnrollmentID: "enr-1", ActivityRating: 5, TeacherRating: 4},
	}}
	svc := NewEnrollmentService(repo, &stubSchedules{}, &stubSemesters{current: openSemester()}, ratings, nil, nil, zap.NewNop())

	enrollments, pagination, err := svc.History(context.Background(), "stu-1", models.EnrollmentFilter{})
	require.NoError(t, err)
	require.Len(t, enrollments, 2)
	require.NotNil(t, enrollments[0].Rating)
	assert.Equal(t, "rat-1", enrollments[0].Rating.ID)
	assert.Nil(t, enrollments[1].Rating)
	assert.Equal(t, 2, pagination.TotalCount)
}
