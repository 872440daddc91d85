package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/uec-api/internal/models"
)

func TestRatingRepositoryCreate(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewRatingRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO activity_ratings")).
		WithArgs(sqlmock.AnyArg(), "enr-1", 5, 4, nil, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	rating := &models.ActivityRating{EnrollmentID: "enr-1", ActivityRating: 5, TeacherRating: 4}
	require.NoError(t, repo.Create(context.Background(), rating))
	require.NotEmpty(t, rating.ID)
	require.False(t, rating.SubmittedDate.IsZero())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRatingRepositoryCreateDuplicateEnrollment(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewRatingRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO activity_ratings")).
		WillReturnError(&pq.Error{Code: "23505"})

	rating := &models.ActivityRating{EnrollmentID: "enr-1", ActivityRating: 5, TeacherRating: 4}
	err := repo.Create(context.Background(), rating)
	require.ErrorIs(t, err, ErrRatingExists)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRatingRepositoryExistsForEnrollment(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewRatingRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM activity_ratings WHERE enrollment_id = $1")).
		WithArgs("enr-1").
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}).AddRow(1))

	exists, err := repo.ExistsForEnrollment(context.Background(), "enr-1")
	require.NoError(t, err)
	require.True(t, exists)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRatingRepositoryListByStudent(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewRatingRepository(db)

	rows := sqlmock.NewRows([]string{"id", "enrollment_id", "activity_rating", "teacher_rating", "comment", "submitted_date", "activity_name", "teacher_name", "semester_name"}).
		AddRow("rat-1", "enr-1", 5, 4, nil, time.Now(), "Futbol", "Carlos Mendoza", "2024-2")
	mock.ExpectQuery("SELECT r.id, r.enrollment_id").
		WithArgs("stu-1").
		WillReturnRows(rows)

	ratings, err := repo.ListByStudent(context.Background(), "stu-1")
	require.NoError(t, err)
	require.Len(t, ratings, 1)
	require.Equal(t, "Futbol", ratings[0].ActivityName)
	require.NoError(t, mock.ExpectationsWereMet())
}
