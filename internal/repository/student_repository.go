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

// StudentRepository manages persistence for student records.
type StudentRepository struct {
	db *sqlx.DB
}

// NewStudentRepository constructs a StudentRepository.
func NewStudentRepository(db *sqlx.DB) *StudentRepository {
	return &StudentRepository{db: db}
}

const studentColumns = `id, roll_no, name, email, enrollment_no, phone, dob, year, department, created_at, updated_at`

// List returns students matching the provided filters.
func (r *StudentRepository) List(ctx context.Context, filter models.StudentFilter) ([]models.Student, int, error) {
	base := "FROM students s"
	conditions := []string{"1=1"}
	var args []interface{}

	if filter.Department != "" {
		conditions = append(conditions, fmt.Sprintf("s.department = $%d", len(args)+1))
		args = append(args, filter.Department)
	}
	if filter.Year != nil {
		conditions = append(conditions, fmt.Sprintf("s.year = $%d", len(args)+1))
		args = append(args, *filter.Year)
	}
	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(LOWER(s.name) LIKE $%d OR LOWER(s.email) LIKE $%d)", len(args)+1, len(args)+1))
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
	}

	base = fmt.Sprintf("%s WHERE %s", base, strings.Join(conditions, " AND "))

	allowedSorts := map[string]string{
		"name":       "s.name",
		"roll_no":    "s.roll_no",
		"created_at": "s.created_at",
	}
	sortBy := filter.SortBy
	if sortBy == "" {
		sortBy = "created_at"
	}
	column, ok := allowedSorts[sortBy]
	if !ok {
		column = "s.created_at"
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

	query := fmt.Sprintf(`SELECT s.id, s.roll_no, s.name, s.email, s.enrollment_no, s.phone, s.dob, s.year, s.department, s.created_at, s.updated_at
        %s ORDER BY %s %s LIMIT %d OFFSET %d`, base, column, order, size, offset)

	var students []models.Student
	if err := r.db.SelectContext(ctx, &students, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list students: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count students: %w", err)
	}
	return students, total, nil
}

// FindByID fetches a student by internal id.
func (r *StudentRepository) FindByID(ctx context.Context, id string) (*models.Student, error) {
	query := fmt.Sprintf(`SELECT %s FROM students WHERE id = $1`, studentColumns)
	var student models.Student
	if err := r.db.GetContext(ctx, &student, query, id); err != nil {
		return nil, err
	}
	return &student, nil
}

// FindByRollNo fetches a student by the human-facing roll number.
func (r *StudentRepository) FindByRollNo(ctx context.Context, rollNo int) (*models.Student, error) {
	query := fmt.Sprintf(`SELECT %s FROM students WHERE roll_no = $1`, studentColumns)
	var student models.Student
	if err := r.db.GetContext(ctx, &student, query, rollNo); err != nil {
		return nil, err
	}
	return &student, nil
}

// FindByIDIn bulk-loads students by internal id.
func (r *StudentRepository) FindByIDIn(ctx context.Context, ids []string) ([]models.Student, error) {
	if len(ids) == 0 {
		return []models.Student{}, nil
	}
	placeholders := make([]string, len(ids))
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args[i] = id
	}
	query := fmt.Sprintf("SELECT %s FROM students WHERE id IN (%s)", studentColumns, strings.Join(placeholders, ","))
	var students []models.Student
	if err := r.db.SelectContext(ctx, &students, query, args...); err != nil {
		return nil, fmt.Errorf("bulk load students: %w", err)
	}
	return students, nil
}

// ExistsByRollNo reports whether a roll number is already taken.
func (r *StudentRepository) ExistsByRollNo(ctx context.Context, rollNo int) (bool, error) {
	const query = "SELECT 1 FROM students WHERE roll_no = $1 LIMIT 1"
	var exists int
	if err := r.db.GetContext(ctx, &exists, query, rollNo); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check roll number: %w", err)
	}
	return true, nil
}

// Create inserts a new student record.
func (r *StudentRepository) Create(ctx context.Context, student *models.Student) error {
	if student.ID == "" {
		student.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if student.CreatedAt.IsZero() {
		student.CreatedAt = now
	}
	student.UpdatedAt = now
	const query = `INSERT INTO students (id, roll_no, name, email, enrollment_no, phone, dob, year, department, created_at, updated_at)
        VALUES (:id, :roll_no, :name, :email, :enrollment_no, :phone, :dob, :year, :department, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, student); err != nil {
		return fmt.Errorf("create student: %w", err)
	}
	return nil
}

// Update modifies an existing student. The roll number is immutable and not part of the statement.
func (r *StudentRepository) Update(ctx context.Context, student *models.Student) error {
	student.UpdatedAt = time.Now().UTC()
	const query = `UPDATE students SET name = :name, email = :email, enrollment_no = :enrollment_no, phone = :phone,
        dob = :dob, year = :year, department = :department, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, student); err != nil {
		return fmt.Errorf("update student: %w", err)
	}
	return nil
}

// Delete removes a student by internal id, reporting whether a row was deleted.
func (r *StudentRepository) Delete(ctx context.Context, id string) (bool, error) {
	const query = `DELETE FROM students WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return false, fmt.Errorf("delete student: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete student result: %w", err)
	}
	return affected > 0, nil
}
