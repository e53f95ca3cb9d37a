package models

import "time"

// EnrollmentStatus represents the lifecycle of an enrollment.
type EnrollmentStatus string

// Possible enrollment statuses. An enrollment starts at pending (or enrolled
// for scholarship students), moves to completed when its confirmation payment
// is recorded, and may be dropped by an administrator. Dropped and completed
// are terminal.
const (
	EnrollmentStatusEnrolled  EnrollmentStatus = "enrolled"
	EnrollmentStatusCompleted EnrollmentStatus = "completed"
	EnrollmentStatusDropped   EnrollmentStatus = "dropped"
	EnrollmentStatusPending   EnrollmentStatus = "pending"
)

// Terminal reports whether no further workflow transition applies.
func (s EnrollmentStatus) Terminal() bool {
	return s == EnrollmentStatusCompleted || s == EnrollmentStatusDropped
}

// Enrollment captures a student's registration to a class for a school year.
type Enrollment struct {
	ID           string           `db:"id" json:"id"`
	StudentID    string           `db:"student_id" json:"student_id"`
	ClassID      string           `db:"class_id" json:"class_id"`
	SchoolYearID string           `db:"school_year_id" json:"school_year_id"`
	CenterID     string           `db:"center_id" json:"center_id"`
	EnrolledAt   time.Time        `db:"enrolled_at" json:"enrolled_at"`
	Status       EnrollmentStatus `db:"status" json:"status"`
	Scholarship  bool             `db:"scholarship" json:"scholarship"`
}

// EnrollmentDetail enriches Enrollment with student, class, and course info,
// including the tuition fee schedule the payment calculation reads from.
type EnrollmentDetail struct {
	Enrollment
	StudentName    string   `db:"student_name" json:"student_name"`
	ClassName      string   `db:"class_name" json:"class_name"`
	CourseID       string   `db:"course_id" json:"course_id"`
	CourseName     string   `db:"course_name" json:"course_name"`
	GradeName      string   `db:"grade_name" json:"grade_name"`
	SchoolYearName string   `db:"school_year_name" json:"school_year_name"`
	CourseFee      *float64 `db:"course_fee" json:"course_fee,omitempty"`
	CourseFeeFine  *float64 `db:"course_fee_fine" json:"course_fee_fine,omitempty"`
}

// EnrollmentFilter provides filters for listing enrollments.
type EnrollmentFilter struct {
	StudentID    string
	ClassID      string
	SchoolYearID string
	CenterID     string
	Status       EnrollmentStatus
	Page         int
	PageSize     int
	SortBy       string
	SortOrder    string
}
