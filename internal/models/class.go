package models

import "time"

// ClassPeriod identifies the daily slot a class runs in.
type ClassPeriod string

// Possible class periods.
const (
	ClassPeriodMorning   ClassPeriod = "manhã"
	ClassPeriodAfternoon ClassPeriod = "tarde"
	ClassPeriodEvening   ClassPeriod = "noite"
)

// Class groups enrollments under a course and grade at a center.
type Class struct {
	ID           string      `db:"id" json:"id"`
	Name         string      `db:"name" json:"name"`
	CourseID     string      `db:"course_id" json:"course_id"`
	GradeID      string      `db:"grade_id" json:"grade_id"`
	TeacherName  string      `db:"teacher_name" json:"teacher_name"`
	Period       ClassPeriod `db:"period" json:"period"`
	CenterID     string      `db:"center_id" json:"center_id"`
	SchoolYearID string      `db:"school_year_id" json:"school_year_id"`
	CreatedAt    time.Time   `db:"created_at" json:"created_at"`
}

// ClassDetail enriches Class with course and grade names.
type ClassDetail struct {
	Class
	CourseName string `db:"course_name" json:"course_name"`
	GradeName  string `db:"grade_name" json:"grade_name"`
}

// ClassFilter captures filtering criteria for listing classes.
type ClassFilter struct {
	CourseID     string
	CenterID     string
	SchoolYearID string
	Period       ClassPeriod
	Page         int
	PageSize     int
}
