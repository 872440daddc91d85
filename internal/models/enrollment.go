package models

import "time"

// Enrollment captures a student's registration into an activity schedule for
// a semester. A student holds at most one active enrollment per semester.
type Enrollment struct {
	ID             string    `db:"id" json:"id"`
	StudentID      string    `db:"student_id" json:"student_id"`
	ScheduleID     string    `db:"schedule_id" json:"schedule_id"`
	SemesterID     string    `db:"semester_id" json:"semester_id"`
	EnrollmentDate time.Time `db:"enrollment_date" json:"enrollment_date"`
	Attended       bool      `db:"attended" json:"attended"`
	Completed      bool      `db:"completed" json:"completed"`
}

// Ratable reports whether the enrollment is eligible for rating: completed
// and not yet rated. The rating presence is checked by the caller.
func (e Enrollment) Ratable(hasRating bool) bool {
	return e.Completed && !hasRating
}

// EnrollmentDetail enriches Enrollment with schedule, activity, teacher and
// semester context plus the attached rating when present.
type EnrollmentDetail struct {
	Enrollment
	ActivityName string          `db:"activity_name" json:"activity_name"`
	ActivityCode string          `db:"activity_code" json:"activity_code"`
	TeacherName  string          `db:"teacher_name" json:"teacher_name"`
	SemesterName string          `db:"semester_name" json:"semester_name"`
	DayOfWeek    int             `db:"day_of_week" json:"day_of_week"`
	StartTime    string          `db:"start_time" json:"start_time"`
	EndTime      string          `db:"end_time" json:"end_time"`
	Location     string          `db:"location" json:"location"`
	Rating       *ActivityRating `db:"-" json:"rating,omitempty"`
}

// EnrollmentFilter provides filters for listing enrollments.
type EnrollmentFilter struct {
	StudentID  string
	ScheduleID string
	SemesterID string
	Completed  *bool
	Page       int
	PageSize   int
	SortBy     string
	SortOrder  string
}
