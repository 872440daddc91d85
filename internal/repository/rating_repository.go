package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/uec-api/internal/models"
)

// ErrRatingExists is returned when the unique enrollment constraint rejects a
// second rating at commit time.
var ErrRatingExists = errors.New("rating already exists for enrollment")

// RatingRepository handles persistence of activity ratings.
type RatingRepository struct {
	db *sqlx.DB
}

// NewRatingRepository constructs the repository.
func NewRatingRepository(db *sqlx.DB) *RatingRepository {
	return &RatingRepository{db: db}
}

// FindByEnrollment returns the rating attached to an enrollment.
func (r *RatingRepository) FindByEnrollment(ctx context.Context, enrollmentID string) (*models.ActivityRating, error) {
	const query = `SELECT id, enrollment_id, activity_rating, teacher_rating, comment, submitted_date
        FROM activity_ratings WHERE enrollment_id = $1`
	var rating models.ActivityRating
	if err := r.db.GetContext(ctx, &rating, query, enrollmentID); err != nil {
		return nil, err
	}
	return &rating, nil
}

// ExistsForEnrollment reports whether the enrollment has been rated.
func (r *RatingRepository) ExistsForEnrollment(ctx context.Context, enrollmentID string) (bool, error) {
	const query = `SELECT 1 FROM activity_ratings WHERE enrollment_id = $1 LIMIT 1`
	var exists int
	if err := r.db.GetContext(ctx, &exists, query, enrollmentID); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check rating: %w", err)
	}
	return true, nil
}

// Create persists a rating. Ratings are write-once: the unique constraint on
// enrollment_id turns a concurrent double-submit into ErrRatingExists.
func (r *RatingRepository) Create(ctx context.Context, rating *models.ActivityRating) error {
	if rating.ID == "" {
		rating.ID = uuid.NewString()
	}
	if rating.SubmittedDate.IsZero() {
		rating.SubmittedDate = time.Now().UTC()
	}
	const query = `INSERT INTO activity_ratings (id, enrollment_id, activity_rating, teacher_rating, comment, submitted_date)
        VALUES (:id, :enrollment_id, :activity_rating, :teacher_rating, :comment, :submitted_date)`
	if _, err := r.db.NamedExecContext(ctx, query, rating); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" {
			return ErrRatingExists
		}
		return fmt.Errorf("create rating: %w", err)
	}
	return nil
}

// ListByStudent returns the student's submitted ratings with context.
func (r *RatingRepository) ListByStudent(ctx context.Context, studentID string) ([]models.RatingDetail, error) {
	const query = `SELECT r.id, r.enrollment_id, r.activity_rating, r.teacher_rating, r.comment, r.submitted_date,
        COALESCE(a.name, '') AS activity_name, COALESCE(t.full_name, '') AS teacher_name,
        COALESCE(sem.name, '') AS semester_name
        FROM activity_ratings r
        INNER JOIN enrollments e ON e.id = r.enrollment_id
        LEFT JOIN activity_schedules s ON s.id = e.schedule_id
        LEFT JOIN activities a ON a.id = s.activity_id
        LEFT JOIN teachers t ON t.id = s.teacher_id
        LEFT JOIN semesters sem ON sem.id = e.semester_id
        WHERE e.student_id = $1
        ORDER BY r.submitted_date DESC`
	var ratings []models.RatingDetail
	if err := r.db.SelectContext(ctx, &ratings, query, studentID); err != nil {
		return nil, fmt.Errorf("list student ratings: %w", err)
	}
	return ratings, nil
}
