package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/sce-api/internal/models"
)

// ErrDuplicatePair signals the unique (student_roll_no, course_no) index
// rejected an insert. The index is the store-level backstop for the
// uniqueness invariant under concurrent enrolls.
var ErrDuplicatePair = errors.New("enrollment pair already exists")

// EnrollmentRepository handles persistence of enrollments and their
// attendance sets.
type EnrollmentRepository struct {
	db *sqlx.DB
}

// NewEnrollmentRepository constructs the repository.
func NewEnrollmentRepository(db *sqlx.DB) *EnrollmentRepository {
	return &EnrollmentRepository{db: db}
}

// List returns enrollments with student/course context.
func (r *EnrollmentRepository) List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, int, error) {
	base := `FROM enrollments e
LEFT JOIN students s ON s.id = e.student_id
LEFT JOIN courses c ON c.id = e.course_id`
	var conditions []string
	var args []interface{}

	if filter.StudentRollNo != nil {
		conditions = append(conditions, fmt.Sprintf("e.student_roll_no = $%d", len(args)+1))
		args = append(args, *filter.StudentRollNo)
	}
	if filter.CourseNo != nil {
		conditions = append(conditions, fmt.Sprintf("e.course_no = $%d", len(args)+1))
		args = append(args, *filter.CourseNo)
	}

	clause := ""
	if len(conditions) > 0 {
		clause = " WHERE " + strings.Join(conditions, " AND ")
	}

	allowedSorts := map[string]string{
		"enrolled_at":  "e.enrolled_at",
		"student_name": "s.name",
		"course_title": "c.title",
	}
	sortBy := filter.SortBy
	if sortBy == "" {
		sortBy = "enrolled_at"
	}
	orderBy := allowedSorts[sortBy]
	if orderBy == "" {
		orderBy = "e.enrolled_at"
	}
	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "DESC"
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf(`SELECT e.id, e.student_id, e.course_id, e.student_roll_no, e.course_no, e.grade, e.enrolled_at, e.created_at,
        s.name AS student_name, c.title AS course_title
        %s ORDER BY %s %s LIMIT %d OFFSET %d`, base+clause, orderBy, order, size, offset)

	var enrollments []models.EnrollmentDetail
	if err := r.db.SelectContext(ctx, &enrollments, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list enrollments: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base+clause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count enrollments: %w", err)
	}
	return enrollments, total, nil
}

// FindByPair returns the enrollment keyed by the (roll number, course number) pair.
func (r *EnrollmentRepository) FindByPair(ctx context.Context, studentRollNo, courseNo int) (*models.Enrollment, error) {
	const query = `SELECT id, student_id, course_id, student_roll_no, course_no, grade, enrolled_at, created_at
FROM enrollments WHERE student_roll_no = $1 AND course_no = $2`
	var enrollment models.Enrollment
	if err := r.db.GetContext(ctx, &enrollment, query, studentRollNo, courseNo); err != nil {
		return nil, err
	}
	return &enrollment, nil
}

// ExistsPair checks whether an enrollment exists for the pair, optionally excluding a record by id.
func (r *EnrollmentRepository) ExistsPair(ctx context.Context, studentRollNo, courseNo int, excludeID string) (bool, error) {
	query := "SELECT 1 FROM enrollments WHERE student_roll_no = $1 AND course_no = $2"
	args := []interface{}{studentRollNo, courseNo}
	if excludeID != "" {
		query += fmt.Sprintf(" AND id <> $%d", len(args)+1)
		args = append(args, excludeID)
	}
	query += " LIMIT 1"
	var exists int
	if err := r.db.GetContext(ctx, &exists, query, args...); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check enrollment pair: %w", err)
	}
	return true, nil
}

// CountByCourse returns the number of enrollments referencing a course number.
func (r *EnrollmentRepository) CountByCourse(ctx context.Context, courseNo int) (int, error) {
	const query = `SELECT COUNT(*) FROM enrollments WHERE course_no = $1`
	var count int
	if err := r.db.GetContext(ctx, &count, query, courseNo); err != nil {
		return 0, fmt.Errorf("count course enrollments: %w", err)
	}
	return count, nil
}

// Create persists a new enrollment record and its initial attendance dates.
func (r *EnrollmentRepository) Create(ctx context.Context, enrollment *models.Enrollment) error {
	if enrollment.ID == "" {
		enrollment.ID = uuid.NewString()
	}
	if enrollment.CreatedAt.IsZero() {
		enrollment.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO enrollments (id, student_id, course_id, student_roll_no, course_no, grade, enrolled_at, created_at)
        VALUES (:id, :student_id, :course_id, :student_roll_no, :course_no, :grade, :enrolled_at, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, enrollment); err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicatePair
		}
		return fmt.Errorf("create enrollment: %w", err)
	}
	if err := r.insertAttendance(ctx, enrollment.ID, enrollment.Attendance); err != nil {
		return err
	}
	return nil
}

// Replace updates an enrollment row in place and rewrites its attendance set.
func (r *EnrollmentRepository) Replace(ctx context.Context, enrollment *models.Enrollment) error {
	const query = `UPDATE enrollments SET student_id = :student_id, course_id = :course_id,
        student_roll_no = :student_roll_no, course_no = :course_no, grade = :grade, enrolled_at = :enrolled_at
        WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, enrollment); err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicatePair
		}
		return fmt.Errorf("replace enrollment: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, `DELETE FROM enrollment_attendance WHERE enrollment_id = $1`, enrollment.ID); err != nil {
		return fmt.Errorf("clear attendance: %w", err)
	}
	return r.insertAttendance(ctx, enrollment.ID, enrollment.Attendance)
}

// DeleteByPair removes the enrollment for the pair, reporting whether a row was deleted.
func (r *EnrollmentRepository) DeleteByPair(ctx context.Context, studentRollNo, courseNo int) (bool, error) {
	const query = `DELETE FROM enrollments WHERE student_roll_no = $1 AND course_no = $2`
	res, err := r.db.ExecContext(ctx, query, studentRollNo, courseNo)
	if err != nil {
		return false, fmt.Errorf("delete enrollment: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete enrollment result: %w", err)
	}
	return affected > 0, nil
}

// MarkAttendance adds a calendar date to the enrollment's attendance set.
// A single conditional insert keeps the lookup and the set update atomic;
// the returned bool conflates "enrollment missing" with "date already present".
func (r *EnrollmentRepository) MarkAttendance(ctx context.Context, studentRollNo, courseNo int, date time.Time) (bool, error) {
	const query = `INSERT INTO enrollment_attendance (enrollment_id, attended_on)
        SELECT id, $3 FROM enrollments WHERE student_roll_no = $1 AND course_no = $2
        ON CONFLICT (enrollment_id, attended_on) DO NOTHING`
	res, err := r.db.ExecContext(ctx, query, studentRollNo, courseNo, date)
	if err != nil {
		return false, fmt.Errorf("mark attendance: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("mark attendance result: %w", err)
	}
	return affected > 0, nil
}

// ListAttendance returns the recorded dates for the pair, oldest first.
// A missing enrollment yields an empty slice.
func (r *EnrollmentRepository) ListAttendance(ctx context.Context, studentRollNo, courseNo int) ([]time.Time, error) {
	const query = `SELECT a.attended_on FROM enrollment_attendance a
        JOIN enrollments e ON e.id = a.enrollment_id
        WHERE e.student_roll_no = $1 AND e.course_no = $2
        ORDER BY a.attended_on ASC`
	var dates []time.Time
	if err := r.db.SelectContext(ctx, &dates, query, studentRollNo, courseNo); err != nil {
		return nil, fmt.Errorf("list attendance: %w", err)
	}
	return dates, nil
}

// ListByRollNo returns all enrollments for a student roll number.
func (r *EnrollmentRepository) ListByRollNo(ctx context.Context, studentRollNo int) ([]models.Enrollment, error) {
	const query = `SELECT id, student_id, course_id, student_roll_no, course_no, grade, enrolled_at, created_at
FROM enrollments WHERE student_roll_no = $1`
	var enrollments []models.Enrollment
	if err := r.db.SelectContext(ctx, &enrollments, query, studentRollNo); err != nil {
		return nil, fmt.Errorf("list student enrollments: %w", err)
	}
	return enrollments, nil
}

// ListByCourseNo returns all enrollments for a course number.
func (r *EnrollmentRepository) ListByCourseNo(ctx context.Context, courseNo int) ([]models.Enrollment, error) {
	const query = `SELECT id, student_id, course_id, student_roll_no, course_no, grade, enrolled_at, created_at
FROM enrollments WHERE course_no = $1`
	var enrollments []models.Enrollment
	if err := r.db.SelectContext(ctx, &enrollments, query, courseNo); err != nil {
		return nil, fmt.Errorf("list course enrollments: %w", err)
	}
	return enrollments, nil
}

// UpdateGrade sets the grade for the pair, reporting whether a row matched.
func (r *EnrollmentRepository) UpdateGrade(ctx context.Context, studentRollNo, courseNo int, grade string) (bool, error) {
	const query = `UPDATE enrollments SET grade = $3 WHERE student_roll_no = $1 AND course_no = $2`
	res, err := r.db.ExecContext(ctx, query, studentRollNo, courseNo, grade)
	if err != nil {
		return false, fmt.Errorf("update grade: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("update grade result: %w", err)
	}
	return affected > 0, nil
}

func (r *EnrollmentRepository) insertAttendance(ctx context.Context, enrollmentID string, dates []time.Time) error {
	const query = `INSERT INTO enrollment_attendance (enrollment_id, attended_on)
        VALUES ($1, $2) ON CONFLICT (enrollment_id, attended_on) DO NOTHING`
	for _, date := range dates {
		if _, err := r.db.ExecContext(ctx, query, enrollmentID, date); err != nil {
			return fmt.Errorf("insert attendance: %w", err)
		}
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}
