package models

import "time"

// ActivityRating is a student's write-once review of a completed enrollment.
// Exactly one rating may exist per enrollment.
type ActivityRating struct {
	ID             string    `db:"id" json:"id"`
	EnrollmentID   string    `db:"enrollment_id" json:"enrollment_id"`
	ActivityRating int       `db:"activity_rating" json:"activity_rating"`
	TeacherRating  int       `db:"teacher_rating" json:"teacher_rating"`
	Comment        *string   `db:"comment" json:"comment,omitempty"`
	SubmittedDate  time.Time `db:"submitted_date" json:"submitted_date"`
}

// RatingDetail pairs a rating with the enrollment context it reviews.
type RatingDetail struct {
	ActivityRating
	ActivityName string `db:"activity_name" json:"activity_name"`
	TeacherName  string `db:"teacher_name" json:"teacher_name"`
	SemesterName string `db:"semester_name" json:"semester_name"`
}
