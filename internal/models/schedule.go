package models

import "time"

// ActivitySchedule is a concrete day/time/location offering of an activity in
// one semester. It is the unit students enroll into and exclusively owns the
// enrolled_students counter. Invariant: 0 <= EnrolledStudents <= MaxCapacity.
type ActivitySchedule struct {
	ID               string    `db:"id" json:"id"`
	ActivityID       string    `db:"activity_id" json:"activity_id"`
	TeacherID        string    `db:"teacher_id" json:"teacher_id"`
	SemesterID       string    `db:"semester_id" json:"semester_id"`
	DayOfWeek        int       `db:"day_of_week" json:"day_of_week"`
	StartTime        string    `db:"start_time" json:"start_time"`
	EndTime          string    `db:"end_time" json:"end_time"`
	Location         string    `db:"location" json:"location"`
	EnrolledStudents int       `db:"enrolled_students" json:"enrolled_students"`
	MaxCapacity      int       `db:"max_capacity" json:"max_capacity"`
	CreatedAt        time.Time `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time `db:"updated_at" json:"updated_at"`
}

// IsFull reports whether the schedule has no remaining seats.
func (s ActivitySchedule) IsFull() bool {
	return s.EnrolledStudents >= s.MaxCapacity
}

// FillRatio returns enrolled/capacity, the primary availability ranking key.
func (s ActivitySchedule) FillRatio() float64 {
	if s.MaxCapacity <= 0 {
		return 1
	}
	return float64(s.EnrolledStudents) / float64(s.MaxCapacity)
}

// AvailableSpots returns the number of open seats, never negative.
func (s ActivitySchedule) AvailableSpots() int {
	if spots := s.MaxCapacity - s.EnrolledStudents; spots > 0 {
		return spots
	}
	return 0
}

// ScheduleDetail enriches a schedule with activity, category and teacher info
// for listing and search.
type ScheduleDetail struct {
	ActivitySchedule
	ActivityName        string `db:"activity_name" json:"activity_name"`
	ActivityCode        string `db:"activity_code" json:"activity_code"`
	ActivityDescription string `db:"activity_description" json:"activity_description"`
	CategoryID          string `db:"category_id" json:"category_id"`
	CategoryName        string `db:"category_name" json:"category_name"`
	TeacherName         string `db:"teacher_name" json:"teacher_name"`
}

// ScheduleFilter describes query params for browsing schedules. CategoryID
// and DayOfWeek are "all" when unset; the three filters compose with AND.
type ScheduleFilter struct {
	SemesterID string
	ActivityID string
	TeacherID  string
	CategoryID string
	DayOfWeek  *int
	Search     string
	Page       int
	PageSize   int
}
