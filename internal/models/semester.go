package models

import "time"

// Semester models an academic term window. Exactly one semester is current at
// a time; its flags gate when students may enroll and rate.
type Semester struct {
	ID             string    `db:"id" json:"id"`
	Name           string    `db:"name" json:"name"`
	StartDate      time.Time `db:"start_date" json:"start_date"`
	EndDate        time.Time `db:"end_date" json:"end_date"`
	EnrollmentOpen bool      `db:"enrollment_open" json:"enrollment_open"`
	RatingOpen     bool      `db:"rating_open" json:"rating_open"`
	IsCurrent      bool      `db:"is_current" json:"is_current"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time `db:"updated_at" json:"updated_at"`
}

// SemesterFilter defines filters supported by list endpoints.
type SemesterFilter struct {
	IsCurrent *bool
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
