package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sce-api/internal/models"
)

// CourseRepository manages persistence for course records.
type CourseRepository struct {
	db *sqlx.DB
}

// NewCourseRepository constructs a CourseRepository.
func NewCourseRepository(db *sqlx.DB) *CourseRepository {
	return &CourseRepository{db: db}
}

const courseColumns = `id, course_no, title, instructor, semester, credits, schedule, max_students, created_at, updated_at`

// List returns courses matching the provided filters.
func (r *CourseRepository) List(ctx context.Context, filter models.CourseFilter) ([]models.Course, int, error) {
	base := "FROM courses c"
	conditions := []string{"1=1"}
	var args []interface{}

	if filter.Semester != nil {
		conditions = append(conditions, fmt.Sprintf("c.semester = $%d", len(args)+1))
		args = append(args, *filter.Semester)
	}
	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(LOWER(c.title) LIKE $%d OR LOWER(c.instructor) LIKE $%d)", len(args)+1, len(args)+1))
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
	}

	base = fmt.Sprintf("%s WHERE %s", base, strings.Join(conditions, " AND "))

	allowedSorts := map[string]string{
		"title":      "c.title",
		"course_no":  "c.course_no",
		"created_at": "c.created_at",
	}
	sortBy := filter.SortBy
	if sortBy == "" {
		sortBy = "created_at"
	}
	column, ok := allowedSorts[sortBy]
	if !ok {
		column = "c.created_at"
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

	query := fmt.Sprintf(`SELECT c.id, c.course_no, c.title, c.instructor, c.semester, c.credits, c.schedule, c.max_students, c.created_at, c.updated_at
        %s ORDER BY %s %s LIMIT %d OFFSET %d`, base, column, order, size, offset)

	var courses []models.Course
	if err := r.db.SelectContext(ctx, &courses, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list courses: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count courses: %w", err)
	}
	return courses, total, nil
}

// FindByID fetches a course by internal id.
func (r *CourseRepository) FindByID(ctx context.Context, id string) (*models.Course, error) {
	query := fmt.Sprintf(`SELECT %s FROM courses WHERE id = $1`, courseColumns)
	var course models.Course
	if err := r.db.GetContext(ctx, &course, query, id); err != nil {
		return nil, err
	}
	return &course, nil
}

// FindByCourseNo fetches a course by the human-facing course number.
func (r *CourseRepository) FindByCourseNo(ctx context.Context, courseNo int) (*models.Course, error) {
	query := fmt.Sprintf(`SELECT %s FROM courses WHERE course_no = $1`, courseColumns)
	var course models.Course
	if err := r.db.GetContext(ctx, &course, query, courseNo); err != nil {
		return nil, err
	}
	return &course, nil
}

// ExistsByCourseNo reports whether a course number is already taken.
func (r *CourseRepository) ExistsByCourseNo(ctx context.Context, courseNo int) (bool, error) {
	const query = "SELECT 1 FROM courses WHERE course_no = $1 LIMIT 1"
	var exists int
	if err := r.db.GetContext(ctx, &exists, query, courseNo); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check course number: %w", err)
	}
	return true, nil
}

// Create inserts a new course record.
func (r *CourseRepository) Create(ctx context.Context, course *models.Course) error {
	if course.ID == "" {
		course.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if course.CreatedAt.IsZero() {
		course.CreatedAt = now
	}
	course.UpdatedAt = now
	const query = `INSERT INTO courses (id, course_no, title, instructor, semester, credits, schedule, max_students, created_at, updated_at)
        VALUES (:id, :course_no, :title, :instructor, :semester, :credits, :schedule, :max_students, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, course); err != nil {
		return fmt.Errorf("create course: %w", err)
	}
	return nil
}

// Update modifies an existing course. Course number and max capacity are
// immutable and excluded from the statement.
func (r *CourseRepository) Update(ctx context.Context, course *models.Course) error {
	course.UpdatedAt = time.Now().UTC()
	const query = `UPDATE courses SET title = :title, instructor = :instructor, semester = :semester,
        credits = :credits, schedule = :schedule, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, course); err != nil {
		return fmt.Errorf("update course: %w", err)
	}
	return nil
}

// Delete removes a course by internal id, reporting whether a row was deleted.
func (r *CourseRepository) Delete(ctx context.Context, id string) (bool, error) {
	const query = `DELETE FROM courses WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return false, fmt.Errorf("delete course: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete course result: %w", err)
	}
	return affected > 0, nil
}
