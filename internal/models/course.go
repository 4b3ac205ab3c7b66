package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// Schedule describes the weekly meeting slots for a course.
type Schedule struct {
	Days      []string `json:"days"`
	StartTime string   `json:"start_time"`
	EndTime   string   `json:"end_time"`
}

// Value marshals the schedule to JSON for persistence.
func (s Schedule) Value() (driver.Value, error) {
	if s.Days == nil {
		s.Days = []string{}
	}
	data, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("marshal schedule: %w", err)
	}
	return data, nil
}

// Scan unmarshals JSON payloads into the schedule struct.
func (s *Schedule) Scan(value interface{}) error {
	if value == nil {
		*s = Schedule{}
		return nil
	}
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("unsupported type %T for Schedule", value)
	}
	if len(data) == 0 {
		*s = Schedule{}
		return nil
	}
	if err := json.Unmarshal(data, s); err != nil {
		return fmt.Errorf("unmarshal schedule: %w", err)
	}
	return nil
}

// Course represents an offered course. MaxStudents is fixed at creation.
type Course struct {
	ID          string    `db:"id" json:"id"`
	CourseNo    int       `db:"course_no" json:"course_no"`
	Title       string    `db:"title" json:"title"`
	Instructor  string    `db:"instructor" json:"instructor"`
	Semester    int       `db:"semester" json:"semester"`
	Credits     int       `db:"credits" json:"credits"`
	Schedule    Schedule  `db:"schedule" json:"schedule"`
	MaxStudents int       `db:"max_students" json:"max_students"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// CourseFilter encapsulates allowed search parameters for listing courses.
type CourseFilter struct {
	Search    string
	Semester  *int
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
