package models

import (
	"strings"
	"time"
)

// GradePoints maps the fixed letter set to grade-point values.
var GradePoints = map[string]float64{
	"A": 10.0,
	"B": 9.0,
	"C": 8.0,
	"D": 7.0,
	"F": 0.0,
}

// NormalizeGrade uppercases a raw grade and reports whether it belongs to the letter set.
func NormalizeGrade(raw string) (string, bool) {
	grade := strings.ToUpper(strings.TrimSpace(raw))
	_, ok := GradePoints[grade]
	return grade, ok
}

// Enrollment links a student to a course. Both the internal ids and the
// human-facing numbers are stored; the numbers act as a materialized join
// cache refreshed at write time.
type Enrollment struct {
	ID            string      `db:"id" json:"id"`
	StudentID     string      `db:"student_id" json:"student_id"`
	CourseID      string      `db:"course_id" json:"course_id"`
	StudentRollNo int         `db:"student_roll_no" json:"student_roll_no"`
	CourseNo      int         `db:"course_no" json:"course_no"`
	Grade         *string     `db:"grade" json:"grade,omitempty"`
	EnrolledAt    time.Time   `db:"enrolled_at" json:"enrolled_at"`
	Attendance    []time.Time `db:"-" json:"attendance,omitempty"`
	CreatedAt     time.Time   `db:"created_at" json:"created_at"`
}

// EnrollmentDetail enriches Enrollment with student and course info.
type EnrollmentDetail struct {
	Enrollment
	StudentName string `db:"student_name" json:"student_name"`
	CourseTitle string `db:"course_title" json:"course_title"`
}

// EnrollmentFilter provides filters for listing enrollments.
type EnrollmentFilter struct {
	StudentRollNo *int
	CourseNo      *int
	Page          int
	PageSize      int
	SortBy        string
	SortOrder     string
}
