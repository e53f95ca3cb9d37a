package models

import "time"

// CourseStatus gates whether new enrollments may reference a course.
type CourseStatus string

// Possible course statuses.
const (
	CourseStatusActive   CourseStatus = "active"
	CourseStatusInactive CourseStatus = "inactive"
)

// Course supplies the tuition fee schedule consumed by the payment
// calculation: Fee is the monthly base tuition and FeeFine the flat
// late-payment penalty. Both are nullable; absent values are treated as zero
// when computing amounts due.
type Course struct {
	ID          string       `db:"id" json:"id"`
	Name        string       `db:"name" json:"name"`
	Description string       `db:"description" json:"description"`
	CenterID    string       `db:"center_id" json:"center_id"`
	Fee         *float64     `db:"fee" json:"fee,omitempty"`
	FeeFine     *float64     `db:"fee_fine" json:"fee_fine,omitempty"`
	Status      CourseStatus `db:"status" json:"status"`
	CreatedAt   time.Time    `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time    `db:"updated_at" json:"updated_at"`
}

// Grade is a level within a course (e.g. "Iniciação", "1ª Classe").
type Grade struct {
	ID       string `db:"id" json:"id"`
	Name     string `db:"name" json:"name"`
	CourseID string `db:"course_id" json:"course_id"`
}

// CourseFilter captures filtering criteria for listing courses.
type CourseFilter struct {
	CenterID string
	Status   CourseStatus
	Search   string
	Page     int
	PageSize int
}
