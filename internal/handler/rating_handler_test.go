package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/uec-api/internal/middleware"
	"github.com/noah-isme/uec-api/internal/models"
	"github.com/noah-isme/uec-api/internal/service"
)

type ratingRepoStub struct {
	rated   map[string]bool
	created []*models.ActivityRating
}

func (m *ratingRepoStub) FindByEnrollment(ctx context.Context, enrollmentID string) (*models.ActivityRating, error) {
	return nil, nil
}

func (m *ratingRepoStub) ExistsForEnrollment(ctx context.Context, enrollmentID string) (bool, error) {
	return m.rated[enrollmentID], nil
}

func (m *ratingRepoStub) Create(ctx context.Context, rating *models.ActivityRating) error {
	m.created = append(m.created, rating)
	return nil
}

func (m *ratingRepoStub) ListByStudent(ctx context.Context, studentID string) ([]models.RatingDetail, error) {
	return nil, nil
}

type enrollmentReaderStub struct {
	enrollments map[string]*models.Enrollment
}

func (m *enrollmentReaderStub) FindByID(ctx context.Context, id string) (*models.Enrollment, error) {
	if e, ok := m.enrollments[id]; ok {
		return e, nil
	}
	return nil, assert.AnError
}

func (m *enrollmentReaderStub) List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, int, error) {
	return nil, 0, nil
}

type semesterReaderStub struct {
	semesters map[string]*models.Semester
}

func (m *semesterReaderStub) FindByID(ctx context.Context, id string) (*models.Semester, error) {
	if s, ok := m.semesters[id]; ok {
		return s, nil
	}
	return nil, assert.AnError
}

func ratingHandlerFixture(rated bool) (*RatingHandler, *ratingRepoStub) {
	repo := &ratingRepoStub{rated: map[string]bool{}}
	if rated {
		repo.rated["enr-1"] = true
	}
	enrollments := &enrollmentReaderStub{enrollments: map[string]*models.Enrollment{
		"enr-1": {ID: "enr-1", StudentID: "stu-1", ScheduleID: "sch-1", SemesterID: "sem-1", Completed: true},
	}}
	semesters := &semesterReaderStub{semesters: map[string]*models.Semester{
		"sem-1": {ID: "sem-1", Name: "2024-2", RatingOpen: true},
	}}
	svc := service.NewRatingService(repo, enrollments, semesters, nil, nil)
	return NewRatingHandler(svc), repo
}

func submitRating(t *testing.T, handler *RatingHandler, userID string, payload service.RatingRequest) *httptest.ResponseRecorder {
	t.Helper()
	gin.SetMode(gin.TestMode)
	body, err := json.Marshal(payload)
	require.NoError(t, err)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodPost, "/ratings", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: userID, Role: models.RoleStudent})

	handler.Submit(c)
	return w
}

func TestRatingHandlerSubmit(t *testing.T) {
	handler, repo := ratingHandlerFixture(false)

	w := submitRating(t, handler, "stu-1", service.RatingRequest{
		EnrollmentID:   "enr-1",
		ActivityRating: 5,
		TeacherRating:  4,
	})
	require.Equal(t, http.StatusCreated, w.Code)
	require.Len(t, repo.created, 1)
	assert.Equal(t, "enr-1", repo.created[0].EnrollmentID)
}

func TestRatingHandlerSubmitAlreadyRated(t *testing.T) {
	handler, repo := ratingHandlerFixture(true)

	w := submitRating(t, handler, "stu-1", service.RatingRequest{
		EnrollmentID:   "enr-1",
		ActivityRating: 3,
		TeacherRating:  3,
	})
	require.Equal(t, http.StatusConflict, w.Code)
	assert.Empty(t, repo.created)
}

func TestRatingHandlerSubmitForeignEnrollment(t *testing.T) {
	handler, repo := ratingHandlerFixture(false)

	w := submitRating(t, handler, "stu-2", service.RatingRequest{
		EnrollmentID:   "enr-1",
		ActivityRating: 4,
		TeacherRating:  4,
	})
	require.Equal(t, http.StatusForbidden, w.Code)
	assert.Empty(t, repo.created)
}

func TestRatingHandlerSubmitInvalidBody(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler, _ := ratingHandlerFixture(false)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodPost, "/ratings", bytes.NewBufferString(`{"enrollment_id":`))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "stu-1", Role: models.RoleStudent})

	handler.Submit(c)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRatingHandlerSubmitUnauthenticated(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler, _ := ratingHandlerFixture(false)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodPost, "/ratings", bytes.NewBufferString(`{}`))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req

	handler.Submit(c)
	require.Equal(t, http.StatusUnauthorized, w.Code)
}
