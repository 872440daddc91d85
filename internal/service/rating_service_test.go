package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/uec-api/internal/models"
	"github.com/noah-isme/uec-api/internal/repository"
	appErrors "github.com/noah-isme/uec-api/pkg/errors"
)

type mockRatingRepo struct {
	ratings      map[string]*models.ActivityRating // keyed by enrollment ID
	createErr    error
	listByStuErr error
}

func (m *mockRatingRepo) FindByEnrollment(ctx context.Context, enrollmentID string) (*models.ActivityRating, error) {
	if rating, ok := m.ratings[enrollmentID]; ok {
		cp := *rating
		return &cp, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockRatingRepo) ExistsForEnrollment(ctx context.Context, enrollmentID string) (bool, error) {
	_, ok := m.ratings[enrollmentID]
	return ok, nil
}

func (m *mockRatingRepo) Create(ctx context.Context, rating *models.ActivityRating) error {
	if m.createErr != nil {
		return m.createErr
	}
	if m.ratings == nil {
		m.ratings = make(map[string]*models.ActivityRating)
	}
	if rating.ID == "" {
		rating.ID = "rat-new"
	}
	cp := *rating
	m.ratings[rating.EnrollmentID] = &cp
	return nil
}

func (m *mockRatingRepo) ListByStudent(ctx context.Context, studentID string) ([]models.RatingDetail, error) {
	if m.listByStuErr != nil {
		return nil, m.listByStuErr
	}
	var details []models.RatingDetail
	for _, rating := range m.ratings {
		details = append(details, models.RatingDetail{ActivityRating: *rating})
	}
	return details, nil
}

func ratingFixture() (*mockRatingRepo, *mockEnrollmentRepo, *stubSemesters) {
	ratings := &mockRatingRepo{}
	enrollments := &mockEnrollmentRepo{
		enrollments: map[string]*models.Enrollment{
			"enr-1": {ID: "enr-1", StudentID: "stu-1", ScheduleID: "sch-1", SemesterID: "sem-1", Completed: true},
		},
	}
	semesters := &stubSemesters{semesters: map[string]*models.Semester{
		"sem-1": {ID: "sem-1", Name: "2025-1", RatingOpen: true},
	}}
	return ratings, enrollments, semesters
}

func TestRatingServiceSubmit(t *testing.T) {
	ratings, enrollments, semesters := ratingFixture()
	svc := NewRatingService(ratings, enrollments, semesters, nil, zap.NewNop())

	rating, err := svc.Submit(context.Background(), "stu-1", RatingRequest{
		EnrollmentID:   "enr-1",
		ActivityRating: 5,
		TeacherRating:  4,
	})
	require.NoError(t, err)
	assert.Equal(t, 5, rating.ActivityRating)
	assert.Len(t, ratings.ratings, 1)
}

func TestRatingServiceSubmitTwiceIsRejected(t *testing.T) {
	ratings, enrollments, semesters := ratingFixture()
	svc := NewRatingService(ratings, enrollments, semesters, nil, zap.NewNop())

	first, err := svc.Submit(context.Background(), "stu-1", RatingRequest{
		EnrollmentID:   "enr-1",
		ActivityRating: 5,
		TeacherRating:  5,
	})
	require.NoError(t, err)

	_, err = svc.Submit(context.Background(), "stu-1", RatingRequest{
		EnrollmentID:   "enr-1",
		ActivityRating: 1,
		TeacherRating:  1,
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrAlreadyRated.Code, appErrors.FromError(err).Code)

	// The first submission wins and stays untouched.
	stored := ratings.ratings["enr-1"]
	require.NotNil(t, stored)
	assert.Equal(t, first.ID, stored.ID)
	assert.Equal(t, 5, stored.ActivityRating)
}

func TestRatingServiceSubmitConcurrentDuplicate(t *testing.T) {
	// The pre-check passes but the unique constraint catches the race.
	ratings, enrollments, semesters := ratingFixture()
	ratings.createErr = repository.ErrRatingExists
	svc := NewRatingService(ratings, enrollments, semesters, nil, zap.NewNop())

	_, err := svc.Submit(context.Background(), "stu-1", RatingRequest{
		EnrollmentID:   "enr-1",
		ActivityRating: 3,
		TeacherRating:  3,
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrAlreadyRated.Code, appErrors.FromError(err).Code)
}

func TestRatingServiceSubmitStarsOutOfRange(t *testing.T) {
	ratings, enrollments, semesters := ratingFixture()
	svc := NewRatingService(ratings, enrollments, semesters, nil, zap.NewNop())

	for _, stars := range []int{-1, 0, 6} {
		_, err := svc.Submit(context.Background(), "stu-1", RatingRequest{
			EnrollmentID:   "enr-1",
			ActivityRating: stars,
			TeacherRating:  3,
		})
		require.Error(t, err)
	}
	assert.Empty(t, ratings.ratings)
}

func TestRatingServiceSubmitNotCompleted(t *testing.T) {
	ratings, enrollments, semesters := ratingFixture()
	enrollments.enrollments["enr-1"].Completed = false
	svc := NewRatingService(ratings, enrollments, semesters, nil, zap.NewNop())

	_, err := svc.Submit(context.Background(), "stu-1", RatingRequest{
		EnrollmentID:   "enr-1",
		ActivityRating: 4,
		TeacherRating:  4,
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotCompleted.Code, appErrors.FromError(err).Code)
}

func TestRatingServiceSubmitRatingWindowClosed(t *testing.T) {
	ratings, enrollments, semesters := ratingFixture()
	semesters.semesters["sem-1"].RatingOpen = false
	svc := NewRatingService(ratings, enrollments, semesters, nil, zap.NewNop())

	_, err := svc.Submit(context.Background(), "stu-1", RatingRequest{
		EnrollmentID:   "enr-1",
		ActivityRating: 4,
		TeacherRating:  4,
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrRatingClosed.Code, appErrors.FromError(err).Code)
}

func TestRatingServiceSubmitForeignEnrollment(t *testing.T) {
	ratings, enrollments, semesters := ratingFixture()
	svc := NewRatingService(ratings, enrollments, semesters, nil, zap.NewNop())

	_, err := svc.Submit(context.Background(), "stu-2", RatingRequest{
		EnrollmentID:   "enr-1",
		ActivityRating: 4,
		TeacherRating:  4,
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestRatingServiceRatableExcludesRated(t *testing.T) {
	ratings, enrollments, semesters := ratingFixture()
	enrollments.listResult = []models.EnrollmentDetail{
		{Enrollment: models.Enrollment{ID: "enr-1", StudentID: "stu-1", Completed: true}},
		{Enrollment: models.Enrollment{ID: "enr-2", StudentID: "stu-1", Completed: true}},
	}
	ratings.ratings = map[string]*models.ActivityRating{
		"enr-1": {ID: "rat-1", EnrollmentID: "enr-1", ActivityRating: 5, TeacherRating: 5},
	}
	svc := NewRatingService(ratings, enrollments, semesters, nil, zap.NewNop())

	ratable, err := svc.Ratable(context.Background(), "stu-1")
	require.NoError(t, err)
	require.Len(t, ratable, 1)
	assert.Equal(t, "enr-2", ratable[0].ID)
}
