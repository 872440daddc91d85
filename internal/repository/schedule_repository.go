package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/uec-api/internal/models"
)

// ScheduleRepository handles persistence of activity schedules.
type ScheduleRepository struct {
	db *sqlx.DB
}

// NewScheduleRepository constructs the repository.
func NewScheduleRepository(db *sqlx.DB) *ScheduleRepository {
	return &ScheduleRepository{db: db}
}

const scheduleDetailColumns = `s.id, s.activity_id, s.teacher_id, s.semester_id, s.day_of_week, s.start_time, s.end_time,
        s.location, s.enrolled_students, s.max_capacity, s.created_at, s.updated_at,
        COALESCE(a.name, '') AS activity_name, COALESCE(a.code, '') AS activity_code,
        COALESCE(a.description, '') AS activity_description,
        COALESCE(a.category_id, '') AS category_id, COALESCE(c.name, '') AS category_name,
        COALESCE(t.full_name, '') AS teacher_name`

const scheduleDetailJoins = `FROM activity_schedules s
LEFT JOIN activities a ON a.id = s.activity_id
LEFT JOIN activity_categories c ON c.id = a.category_id
LEFT JOIN teachers t ON t.id = s.teacher_id`

// List returns all schedule details matching the filter, ordered by day and
// start time. Search matches activity name, code, description and teacher
// name case-insensitively. Pagination happens in the service after the
// availability ranking, so no LIMIT is applied here.
func (r *ScheduleRepository) List(ctx context.Context, filter models.ScheduleFilter) ([]models.ScheduleDetail, error) {
	var conditions []string
	var args []interface{}

	if filter.SemesterID != "" {
		conditions = append(conditions, fmt.Sprintf("s.semester_id = $%d", len(args)+1))
		args = append(args, filter.SemesterID)
	}
	if filter.ActivityID != "" {
		conditions = append(conditions, fmt.Sprintf("s.activity_id = $%d", len(args)+1))
		args = append(args, filter.ActivityID)
	}
	if filter.TeacherID != "" {
		conditions = append(conditions, fmt.Sprintf("s.teacher_id = $%d", len(args)+1))
		args = append(args, filter.TeacherID)
	}
	if filter.CategoryID != "" {
		conditions = append(conditions, fmt.Sprintf("a.category_id = $%d", len(args)+1))
		args = append(args, filter.CategoryID)
	}
	if filter.DayOfWeek != nil {
		conditions = append(conditions, fmt.Sprintf("s.day_of_week = $%d", len(args)+1))
		args = append(args, *filter.DayOfWeek)
	}
	if filter.Search != "" {
		n := len(args) + 1
		conditions = append(conditions, fmt.Sprintf("(a.name ILIKE $%d OR a.code ILIKE $%d OR a.description ILIKE $%d OR t.full_name ILIKE $%d)", n, n, n, n))
		args = append(args, "%"+filter.Search+"%")
	}

	clause := ""
	if len(conditions) > 0 {
		clause = " WHERE " + strings.Join(conditions, " AND ")
	}

	query := fmt.Sprintf(`SELECT %s %s ORDER BY s.day_of_week ASC, s.start_time ASC`,
		scheduleDetailColumns, scheduleDetailJoins+clause)

	var schedules []models.ScheduleDetail
	if err := r.db.SelectContext(ctx, &schedules, query, args...); err != nil {
		return nil, fmt.Errorf("list schedules: %w", err)
	}
	return schedules, nil
}

// ListAvailable returns the semester's schedules that still have room.
func (r *ScheduleRepository) ListAvailable(ctx context.Context, semesterID string) ([]models.ScheduleDetail, error) {
	query := fmt.Sprintf(`SELECT %s %s WHERE s.semester_id = $1 AND s.enrolled_students < s.max_capacity
        ORDER BY s.day_of_week ASC, s.start_time ASC`, scheduleDetailColumns, scheduleDetailJoins)
	var schedules []models.ScheduleDetail
	if err := r.db.SelectContext(ctx, &schedules, query, semesterID); err != nil {
		return nil, fmt.Errorf("list available schedules: %w", err)
	}
	return schedules, nil
}

// FindByID returns a schedule by its ID.
func (r *ScheduleRepository) FindByID(ctx context.Context, id string) (*models.ActivitySchedule, error) {
	const query = `SELECT id, activity_id, teacher_id, semester_id, day_of_week, start_time, end_time, location,
        enrolled_students, max_capacity, created_at, updated_at FROM activity_schedules WHERE id = $1`
	var schedule models.ActivitySchedule
	if err := r.db.GetContext(ctx, &schedule, query, id); err != nil {
		return nil, err
	}
	return &schedule, nil
}

// FindDetailByID returns a schedule with contextual info.
func (r *ScheduleRepository) FindDetailByID(ctx context.Context, id string) (*models.ScheduleDetail, error) {
	query := fmt.Sprintf(`SELECT %s %s WHERE s.id = $1`, scheduleDetailColumns, scheduleDetailJoins)
	var detail models.ScheduleDetail
	if err := r.db.GetContext(ctx, &detail, query, id); err != nil {
		return nil, err
	}
	return &detail, nil
}

// Create persists a new schedule record.
func (r *ScheduleRepository) Create(ctx context.Context, schedule *models.ActivitySchedule) error {
	if schedule.ID == "" {
		schedule.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	schedule.CreatedAt = now
	schedule.UpdatedAt = now
	const query = `INSERT INTO activity_schedules (id, activity_id, teacher_id, semester_id, day_of_week, start_time, end_time,
        location, enrolled_students, max_capacity, created_at, updated_at)
        VALUES (:id, :activity_id, :teacher_id, :semester_id, :day_of_week, :start_time, :end_time,
        :location, :enrolled_students, :max_capacity, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, schedule); err != nil {
		return fmt.Errorf("create schedule: %w", err)
	}
	return nil
}

// Update persists schedule changes. The enrolled_students counter is owned by
// the enrollment transaction and never written here.
func (r *ScheduleRepository) Update(ctx context.Context, schedule *models.ActivitySchedule) error {
	schedule.UpdatedAt = time.Now().UTC()
	const query = `UPDATE activity_schedules SET activity_id = :activity_id, teacher_id = :teacher_id,
        day_of_week = :day_of_week, start_time = :start_time, end_time = :end_time, location = :location,
        max_capacity = :max_capacity, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, schedule); err != nil {
		return fmt.Errorf("update schedule: %w", err)
	}
	return nil
}

// Delete removes a schedule with no enrollments.
func (r *ScheduleRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM activity_schedules WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete schedule: %w", err)
	}
	return nil
}
