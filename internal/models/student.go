package models

import "time"

// Student represents a learner registered in the directory.
type Student struct {
	ID           string    `db:"id" json:"id"`
	RollNo       int       `db:"roll_no" json:"roll_no"`
	Name         string    `db:"name" json:"name"`
	Email        string    `db:"email" json:"email"`
	EnrollmentNo string    `db:"enrollment_no" json:"enrollment_no"`
	Phone        string    `db:"phone" json:"phone"`
	DOB          time.Time `db:"dob" json:"dob"`
	Year         int       `db:"year" json:"year"`
	Department   string    `db:"department" json:"department"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// StudentFilter encapsulates allowed search parameters for listing students.
type StudentFilter struct {
	Search     string
	Department string
	Year       *int
	Page       int
	PageSize   int
	SortBy     string
	SortOrder  string
}
