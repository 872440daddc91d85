package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/uec-api/internal/models"
	appErrors "github.com/noah-isme/uec-api/pkg/errors"
)

type mockScheduleRepo struct {
	listResult  []models.ScheduleDetail
	listFilter  models.ScheduleFilter
	schedules   map[string]*models.ActivitySchedule
	created     []*models.ActivitySchedule
	updated     []*models.ActivitySchedule
	deleted     []string
	listErr     error
	availResult []models.ScheduleDetail
}

func (m *mockScheduleRepo) List(ctx context.Context, filter models.ScheduleFilter) ([]models.ScheduleDetail, error) {
	m.listFilter = filter
	if m.listErr != nil {
		return nil, m.listErr
	}
	return m.listResult, nil
}

func (m *mockScheduleRepo) ListAvailable(ctx context.Context, semesterID string) ([]models.ScheduleDetail, error) {
	return m.availResult, nil
}

func (m *mockScheduleRepo) FindByID(ctx context.Context, id string) (*models.ActivitySchedule, error) {
	if schedule, ok := m.schedules[id]; ok {
		cp := *schedule
		return &cp, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockScheduleRepo) FindDetailByID(ctx context.Context, id string) (*models.ScheduleDetail, error) {
	if schedule, ok := m.schedules[id]; ok {
		return &models.ScheduleDetail{ActivitySchedule: *schedule}, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockScheduleRepo) Create(ctx context.Context, schedule *models.ActivitySchedule) error {
	if schedule.ID == "" {
		schedule.ID = "sch-new"
	}
	cp := *schedule
	m.created = append(m.created, &cp)
	return nil
}

func (m *mockScheduleRepo) Update(ctx context.Context, schedule *models.ActivitySchedule) error {
	cp := *schedule
	m.updated = append(m.updated, &cp)
	return nil
}

func (m *mockScheduleRepo) Delete(ctx context.Context, id string) error {
	m.deleted = append(m.deleted, id)
	return nil
}

type stubActivities struct {
	activities map[string]*models.Activity
}

func (s *stubActivities) FindByID(ctx context.Context, id string) (*models.Activity, error) {
	if activity, ok := s.activities[id]; ok {
		cp := *activity
		return &cp, nil
	}
	return nil, sql.ErrNoRows
}

type stubTeacherActs struct {
	qualifications map[string][]string
}

func (s *stubTeacherActs) ListActivityIDs(ctx context.Context, teacherID string) ([]string, error) {
	return s.qualifications[teacherID], nil
}

func detail(id string, enrolled, capacity int) models.ScheduleDetail {
	return models.ScheduleDetail{
		ActivitySchedule: models.ActivitySchedule{
			ID:               id,
			SemesterID:       "sem-1",
			EnrolledStudents: enrolled,
			MaxCapacity:      capacity,
		},
	}
}

func scheduleFixture(repo *mockScheduleRepo) *ScheduleService {
	semesters := &stubSemesters{current: openSemester()}
	activities := &stubActivities{activities: map[string]*models.Activity{
		"act-1": {ID: "act-1", Code: "DEP-101", Name: "Futbol", CategoryID: "cat-1", MaxCapacity: 25},
	}}
	teacherActs := &stubTeacherActs{qualifications: map[string][]string{
		"teacher-1": {"act-1"},
	}}
	return NewScheduleService(repo, semesters, activities, teacherActs, nil, nil, zap.NewNop())
}

func TestRankByAvailability(t *testing.T) {
	// A is 20/25 (0.80), B is full, C is 5/20 (0.25). Expected order: C, A, B.
	schedules := []models.ScheduleDetail{
		detail("A", 20, 25),
		detail("B", 25, 25),
		detail("C", 5, 20),
	}

	rankByAvailability(schedules)

	require.Len(t, schedules, 3)
	assert.Equal(t, "C", schedules[0].ID)
	assert.Equal(t, "A", schedules[1].ID)
	assert.Equal(t, "B", schedules[2].ID)
}

func TestRankByAvailabilityStableTies(t *testing.T) {
	// Equal fill ratios keep their incoming (day/time) order.
	schedules := []models.ScheduleDetail{
		detail("first", 10, 20),
		detail("second", 5, 10),
		detail("third", 1, 2),
	}

	rankByAvailability(schedules)

	assert.Equal(t, "first", schedules[0].ID)
	assert.Equal(t, "second", schedules[1].ID)
	assert.Equal(t, "third", schedules[2].ID)
}

func TestRankByAvailabilityZeroCapacityTreatedAsFull(t *testing.T) {
	schedules := []models.ScheduleDetail{
		detail("broken", 0, 0),
		detail("open", 1, 10),
	}

	rankByAvailability(schedules)

	assert.Equal(t, "open", schedules[0].ID)
	assert.Equal(t, "broken", schedules[1].ID)
}

func TestScheduleServiceBrowseRanksAndScopesToCurrentSemester(t *testing.T) {
	repo := &mockScheduleRepo{listResult: []models.ScheduleDetail{
		detail("A", 20, 25),
		detail("B", 25, 25),
		detail("C", 5, 20),
	}}
	svc := scheduleFixture(repo)

	schedules, pagination, cacheHit, err := svc.Browse(context.Background(), models.ScheduleFilter{})
	require.NoError(t, err)
	assert.False(t, cacheHit)
	assert.Equal(t, "sem-1", repo.listFilter.SemesterID)
	require.Len(t, schedules, 3)
	assert.Equal(t, "C", schedules[0].ID)
	assert.Equal(t, "B", schedules[2].ID)
	assert.Equal(t, 3, pagination.TotalCount)
}

func TestScheduleServiceBrowseRanksAcrossPages(t *testing.T) {
	// B is full and listed second by day/time. With PageSize 2 the open
	// sections must fill page 1 and B must land on page 2.
	repo := &mockScheduleRepo{listResult: []models.ScheduleDetail{
		detail("A", 20, 25),
		detail("B", 25, 25),
		detail("C", 5, 20),
	}}
	svc := scheduleFixture(repo)

	page1, pagination, _, err := svc.Browse(context.Background(), models.ScheduleFilter{Page: 1, PageSize: 2})
	require.NoError(t, err)
	require.Len(t, page1, 2)
	assert.Equal(t, "C", page1[0].ID)
	assert.Equal(t, "A", page1[1].ID)
	assert.Equal(t, 3, pagination.TotalCount)

	page2, _, _, err := svc.Browse(context.Background(), models.ScheduleFilter{Page: 2, PageSize: 2})
	require.NoError(t, err)
	require.Len(t, page2, 1)
	assert.Equal(t, "B", page2[0].ID)
}

func TestScheduleServiceBrowsePageBeyondRange(t *testing.T) {
	repo := &mockScheduleRepo{listResult: []models.ScheduleDetail{
		detail("A", 20, 25),
	}}
	svc := scheduleFixture(repo)

	schedules, pagination, _, err := svc.Browse(context.Background(), models.ScheduleFilter{Page: 5, PageSize: 10})
	require.NoError(t, err)
	assert.Empty(t, schedules)
	assert.Equal(t, 1, pagination.TotalCount)
}

func TestScheduleServiceBrowsePassesFiltersThrough(t *testing.T) {
	repo := &mockScheduleRepo{}
	svc := scheduleFixture(repo)

	day := 1
	_, _, _, err := svc.Browse(context.Background(), models.ScheduleFilter{
		Search:     "Futbol",
		CategoryID: "cat-1",
		DayOfWeek:  &day,
	})
	require.NoError(t, err)
	assert.Equal(t, "Futbol", repo.listFilter.Search)
	assert.Equal(t, "cat-1", repo.listFilter.CategoryID)
	require.NotNil(t, repo.listFilter.DayOfWeek)
	assert.Equal(t, 1, *repo.listFilter.DayOfWeek)
}

func TestScheduleServiceCreateInheritsActivityCapacity(t *testing.T) {
	repo := &mockScheduleRepo{}
	svc := scheduleFixture(repo)

	schedule, err := svc.Create(context.Background(), ScheduleRequest{
		ActivityID: "act-1",
		TeacherID:  "teacher-1",
		SemesterID: "sem-1",
		DayOfWeek:  1,
		StartTime:  "16:00",
		EndTime:    "18:00",
		Location:   "Cancha principal",
	})
	require.NoError(t, err)
	assert.Equal(t, 25, schedule.MaxCapacity)
	require.Len(t, repo.created, 1)
}

func TestScheduleServiceCreateUnqualifiedTeacher(t *testing.T) {
	repo := &mockScheduleRepo{}
	svc := scheduleFixture(repo)

	_, err := svc.Create(context.Background(), ScheduleRequest{
		ActivityID: "act-1",
		TeacherID:  "teacher-9",
		SemesterID: "sem-1",
		DayOfWeek:  1,
		StartTime:  "16:00",
		EndTime:    "18:00",
		Location:   "Cancha principal",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrTeacherNotQualified.Code, appErrors.FromError(err).Code)
	assert.Empty(t, repo.created)
}

func TestScheduleServiceCreateInvertedTimeRange(t *testing.T) {
	repo := &mockScheduleRepo{}
	svc := scheduleFixture(repo)

	_, err := svc.Create(context.Background(), ScheduleRequest{
		ActivityID: "act-1",
		TeacherID:  "teacher-1",
		SemesterID: "sem-1",
		DayOfWeek:  1,
		StartTime:  "18:00",
		EndTime:    "16:00",
		Location:   "Cancha principal",
	})
	require.Error(t, err)
	assert.Empty(t, repo.created)
}

func TestScheduleServiceUpdateCapacityBelowEnrollment(t *testing.T) {
	repo := &mockScheduleRepo{schedules: map[string]*models.ActivitySchedule{
		"sch-1": {ID: "sch-1", ActivityID: "act-1", TeacherID: "teacher-1", SemesterID: "sem-1", EnrolledStudents: 18, MaxCapacity: 25},
	}}
	svc := scheduleFixture(repo)

	_, err := svc.Update(context.Background(), "sch-1", ScheduleRequest{
		ActivityID:  "act-1",
		TeacherID:   "teacher-1",
		SemesterID:  "sem-1",
		DayOfWeek:   1,
		StartTime:   "16:00",
		EndTime:     "18:00",
		Location:    "Cancha principal",
		MaxCapacity: 10,
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
	assert.Empty(t, repo.updated)
}

func TestScheduleServiceDeleteWithEnrollments(t *testing.T) {
	repo := &mockScheduleRepo{schedules: map[string]*models.ActivitySchedule{
		"sch-1": {ID: "sch-1", EnrolledStudents: 3, MaxCapacity: 25},
	}}
	svc := scheduleFixture(repo)

	err := svc.Delete(context.Background(), "sch-1")
	require.Error(t, err)
	assert.Empty(t, repo.deleted)
}
