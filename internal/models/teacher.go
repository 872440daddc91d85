package models

import "time"

// Teacher represents an instructor record. ActivityIDs is the set of
// activities the teacher is qualified to run, loaded from the
// teacher_activities join table.
type Teacher struct {
	ID          string    `db:"id" json:"id"`
	FullName    string    `db:"full_name" json:"full_name"`
	Email       string    `db:"email" json:"email"`
	Department  *string   `db:"department" json:"department,omitempty"`
	Active      bool      `db:"active" json:"active"`
	ActivityIDs []string  `db:"-" json:"activity_ids"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// TeacherFilter captures filtering options for listing teachers.
type TeacherFilter struct {
	Search    string
	Active    *bool
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
