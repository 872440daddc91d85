package service

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/uec-api/internal/models"
	appErrors "github.com/noah-isme/uec-api/pkg/errors"
)

type exportEnrollmentsStub struct {
	all       []models.EnrollmentDetail
	pageSizes []int
}

func (s *exportEnrollmentsStub) List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, int, error) {
	s.pageSizes = append(s.pageSizes, filter.PageSize)
	start := (filter.Page - 1) * filter.PageSize
	if start >= len(s.all) {
		return nil, len(s.all), nil
	}
	end := start + filter.PageSize
	if end > len(s.all) {
		end = len(s.all)
	}
	return s.all[start:end], len(s.all), nil
}

type exportSchedulesStub struct {
	detail *models.ScheduleDetail
}

func (s *exportSchedulesStub) FindDetailByID(ctx context.Context, id string) (*models.ScheduleDetail, error) {
	if s.detail == nil {
		return nil, sql.ErrNoRows
	}
	return s.detail, nil
}

type exportRatingsStub struct {
	rated map[string]bool
}

func (s *exportRatingsStub) ExistsForEnrollment(ctx context.Context, enrollmentID string) (bool, error) {
	return s.rated[enrollmentID], nil
}

type exportUsersStub struct {
	users map[string]*models.User
}

func (s *exportUsersStub) FindByID(ctx context.Context, id string) (*models.User, error) {
	if user, ok := s.users[id]; ok {
		return user, nil
	}
	return nil, sql.ErrNoRows
}

func rosterEnrollments(count int) []models.EnrollmentDetail {
	enrollments := make([]models.EnrollmentDetail, 0, count)
	for i := 0; i < count; i++ {
		enrollments = append(enrollments, models.EnrollmentDetail{
			Enrollment: models.Enrollment{
				ID:             fmt.Sprintf("enr-%d", i+1),
				StudentID:      fmt.Sprintf("stu-%d", i+1),
				ScheduleID:     "sch-1",
				EnrollmentDate: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
			},
		})
	}
	return enrollments
}

func exportFixture(enrollments *exportEnrollmentsStub) *ExportService {
	schedules := &exportSchedulesStub{detail: &models.ScheduleDetail{
		ActivitySchedule: models.ActivitySchedule{ID: "sch-1", MaxCapacity: 150},
		ActivityName:     "Futbol",
		ActivityCode:     "DEP-101",
	}}
	return NewExportService(enrollments, schedules, &exportRatingsStub{}, &exportUsersStub{}, true, zap.NewNop())
}

func TestExportServiceRosterCSV(t *testing.T) {
	enrollments := &exportEnrollmentsStub{all: rosterEnrollments(2)}
	svc := NewExportService(enrollments,
		&exportSchedulesStub{detail: &models.ScheduleDetail{
			ActivitySchedule: models.ActivitySchedule{ID: "sch-1"},
			ActivityName:     "Futbol",
			ActivityCode:     "DEP-101",
		}},
		&exportRatingsStub{rated: map[string]bool{"enr-1": true}},
		&exportUsersStub{users: map[string]*models.User{
			"stu-1": {ID: "stu-1", FullName: "Maria Lopez"},
		}},
		true, zap.NewNop())

	result, err := svc.Roster(context.Background(), "sch-1", FormatCSV)
	require.NoError(t, err)
	assert.Equal(t, "text/csv", result.ContentType)
	assert.Equal(t, "roster-DEP-101.csv", result.Filename)
	assert.True(t, bytes.HasPrefix(result.Content, []byte{0xEF, 0xBB, 0xBF}))
	assert.Contains(t, string(result.Content), "Maria Lopez,2026-03-01,false,false,true")
	// stu-2 has no user record, so the roster falls back to the ID.
	assert.Contains(t, string(result.Content), "stu-2,2026-03-01,false,false,false")
}

func TestExportServiceRosterPagesThroughLargeSchedules(t *testing.T) {
	// 230 enrollments span three batches; every one must reach the document.
	enrollments := &exportEnrollmentsStub{all: rosterEnrollments(230)}
	svc := exportFixture(enrollments)

	result, err := svc.Roster(context.Background(), "sch-1", FormatCSV)
	require.NoError(t, err)
	assert.Equal(t, []int{100, 100, 100}, enrollments.pageSizes)
	lines := bytes.Count(result.Content, []byte("\n"))
	assert.Equal(t, 231, lines)
	assert.Contains(t, string(result.Content), "stu-230,")
}

func TestExportServiceRosterPDF(t *testing.T) {
	enrollments := &exportEnrollmentsStub{all: rosterEnrollments(3)}
	svc := exportFixture(enrollments)

	result, err := svc.Roster(context.Background(), "sch-1", FormatPDF)
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", result.ContentType)
	assert.Equal(t, "roster-DEP-101.pdf", result.Filename)
	assert.True(t, bytes.HasPrefix(result.Content, []byte("%PDF")))
}

func TestExportServiceRosterUnknownFormat(t *testing.T) {
	svc := exportFixture(&exportEnrollmentsStub{})

	_, err := svc.Roster(context.Background(), "sch-1", "xlsx")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestExportServiceRosterDisabled(t *testing.T) {
	svc := NewExportService(&exportEnrollmentsStub{}, &exportSchedulesStub{}, &exportRatingsStub{}, &exportUsersStub{}, false, zap.NewNop())

	_, err := svc.Roster(context.Background(), "sch-1", FormatCSV)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}
