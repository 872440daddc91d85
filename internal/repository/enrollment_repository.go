package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/uec-api/internal/models"
)

// EnrollmentRepository handles persistence of enrollments and owns the
// capacity-checked enrollment transaction.
type EnrollmentRepository struct {
	db *sqlx.DB
}

// NewEnrollmentRepository constructs the repository.
func NewEnrollmentRepository(db *sqlx.DB) *EnrollmentRepository {
	return &EnrollmentRepository{db: db}
}

const enrollmentDetailSelect = `SELECT e.id, e.student_id, e.schedule_id, e.semester_id, e.enrollment_date, e.attended, e.completed,
        COALESCE(a.name, '') AS activity_name, COALESCE(a.code, '') AS activity_code,
        COALESCE(t.full_name, '') AS teacher_name, COALESCE(sem.name, '') AS semester_name,
        COALESCE(s.day_of_week, 0) AS day_of_week, COALESCE(s.start_time, '') AS start_time,
        COALESCE(s.end_time, '') AS end_time, COALESCE(s.location, '') AS location`

const enrollmentDetailJoins = `FROM enrollments e
LEFT JOIN activity_schedules s ON s.id = e.schedule_id
LEFT JOIN activities a ON a.id = s.activity_id
LEFT JOIN teachers t ON t.id = s.teacher_id
LEFT JOIN semesters sem ON sem.id = e.semester_id`

// List returns enrollment details filtered by the provided criteria.
func (r *EnrollmentRepository) List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, int, error) {
	var conditions []string
	var args []interface{}

	if filter.StudentID != "" {
		conditions = append(conditions, fmt.Sprintf("e.student_id = $%d", len(args)+1))
		args = append(args, filter.StudentID)
	}
	if filter.ScheduleID != "" {
		conditions = append(conditions, fmt.Sprintf("e.schedule_id = $%d", len(args)+1))
		args = append(args, filter.ScheduleID)
	}
	if filter.SemesterID != "" {
		conditions = append(conditions, fmt.Sprintf("e.semester_id = $%d", len(args)+1))
		args = append(args, filter.SemesterID)
	}
	if filter.Completed != nil {
		conditions = append(conditions, fmt.Sprintf("e.completed = $%d", len(args)+1))
		args = append(args, *filter.Completed)
	}

	clause := ""
	if len(conditions) > 0 {
		clause = " WHERE " + strings.Join(conditions, " AND ")
	}

	allowedSorts := map[string]string{
		"enrollment_date": "e.enrollment_date",
		"semester_name":   "sem.name",
		"activity_name":   "a.name",
	}
	orderBy := allowedSorts[filter.SortBy]
	if orderBy == "" {
		orderBy = "e.enrollment_date"
	}
	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "DESC"
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf(`%s %s ORDER BY %s %s LIMIT %d OFFSET %d`,
		enrollmentDetailSelect, enrollmentDetailJoins+clause, orderBy, order, size, offset)

	var enrollments []models.EnrollmentDetail
	if err := r.db.SelectContext(ctx, &enrollments, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list enrollments: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", enrollmentDetailJoins+clause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count enrollments: %w", err)
	}
	return enrollments, total, nil
}

// FindByID returns an enrollment by its ID.
func (r *EnrollmentRepository) FindByID(ctx context.Context, id string) (*models.Enrollment, error) {
	const query = `SELECT id, student_id, schedule_id, semester_id, enrollment_date, attended, completed FROM enrollments WHERE id = $1`
	var enrollment models.Enrollment
	if err := r.db.GetContext(ctx, &enrollment, query, id); err != nil {
		return nil, err
	}
	return &enrollment, nil
}

// FindDetailByID returns an enrollment with contextual info.
func (r *EnrollmentRepository) FindDetailByID(ctx context.Context, id string) (*models.EnrollmentDetail, error) {
	query := fmt.Sprintf(`%s %s WHERE e.id = $1`, enrollmentDetailSelect, enrollmentDetailJoins)
	var detail models.EnrollmentDetail
	if err := r.db.GetContext(ctx, &detail, query, id); err != nil {
		return nil, err
	}
	return &detail, nil
}

// ExistsActiveForSemester reports whether the student already holds an
// enrollment for the semester. One activity per student per semester.
func (r *EnrollmentRepository) ExistsActiveForSemester(ctx context.Context, studentID, semesterID string) (bool, error) {
	const query = `SELECT 1 FROM enrollments WHERE student_id = $1 AND semester_id = $2 LIMIT 1`
	var exists int
	if err := r.db.GetContext(ctx, &exists, query, studentID, semesterID); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check active enrollment: %w", err)
	}
	return true, nil
}

// CreateWithCapacityCheck inserts the enrollment and claims a seat in one
// transaction. The seat increment is conditional on remaining capacity, so
// the fullness check observed at render time is re-verified at commit time;
// two racing attempts on the last seat cannot both succeed. Returns false
// without writing anything when the schedule is already full.
func (r *EnrollmentRepository) CreateWithCapacityCheck(ctx context.Context, enrollment *models.Enrollment) (bool, error) {
	if enrollment.ID == "" {
		enrollment.ID = uuid.NewString()
	}
	if enrollment.EnrollmentDate.IsZero() {
		enrollment.EnrollmentDate = time.Now().UTC()
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin enrollment: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	result, err := tx.ExecContext(ctx,
		`UPDATE activity_schedules SET enrolled_students = enrolled_students + 1, updated_at = $2
         WHERE id = $1 AND enrolled_students < max_capacity`,
		enrollment.ScheduleID, time.Now().UTC())
	if err != nil {
		return false, fmt.Errorf("claim seat: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("claim seat result: %w", err)
	}
	if affected == 0 {
		return false, nil
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO enrollments (id, student_id, schedule_id, semester_id, enrollment_date, attended, completed)
         VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		enrollment.ID, enrollment.StudentID, enrollment.ScheduleID, enrollment.SemesterID,
		enrollment.EnrollmentDate, enrollment.Attended, enrollment.Completed); err != nil {
		return false, fmt.Errorf("create enrollment: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit enrollment: %w", err)
	}
	return true, nil
}

// Delete removes an enrollment and releases the claimed seat in the same
// transaction.
func (r *EnrollmentRepository) Delete(ctx context.Context, id, scheduleID string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin unenroll: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, `DELETE FROM enrollments WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete enrollment: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE activity_schedules SET enrolled_students = enrolled_students - 1, updated_at = $2
         WHERE id = $1 AND enrolled_students > 0`, scheduleID, time.Now().UTC()); err != nil {
		return fmt.Errorf("release seat: %w", err)
	}
	return tx.Commit()
}

// SetAttendance marks whether the student attended.
func (r *EnrollmentRepository) SetAttendance(ctx context.Context, id string, attended bool) error {
	if _, err := r.db.ExecContext(ctx, `UPDATE enrollments SET attended = $2 WHERE id = $1`, id, attended); err != nil {
		return fmt.Errorf("set attendance: %w", err)
	}
	return nil
}

// SetCompleted marks the enrollment as completed, making it ratable.
func (r *EnrollmentRepository) SetCompleted(ctx context.Context, id string, completed bool) error {
	if _, err := r.db.ExecContext(ctx, `UPDATE enrollments SET completed = $2 WHERE id = $1`, id, completed); err != nil {
		return fmt.Errorf("set completed: %w", err)
	}
	return nil
}
