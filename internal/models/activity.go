package models

import "time"

// Activity is a complementary activity in the catalog. MaxCapacity is the
// nominal capacity template applied when schedules are created from it.
type Activity struct {
	ID          string    `db:"id" json:"id"`
	Code        string    `db:"code" json:"code"`
	Name        string    `db:"name" json:"name"`
	Description string    `db:"description" json:"description"`
	CategoryID  string    `db:"category_id" json:"category_id"`
	MaxCapacity int       `db:"max_capacity" json:"max_capacity"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// ActivityDetail enriches Activity with its category name.
type ActivityDetail struct {
	Activity
	CategoryName string `db:"category_name" json:"category_name"`
}

// ActivityFilter captures filtering options for listing activities.
type ActivityFilter struct {
	Search     string
	CategoryID string
	Page       int
	PageSize   int
	SortBy     string
	SortOrder  string
}
