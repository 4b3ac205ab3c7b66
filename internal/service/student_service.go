package service

import (
	"context"
	"database/sql"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/sce-api/internal/models"
	"github.com/noah-isme/sce-api/pkg/config"
	appErrors "github.com/noah-isme/sce-api/pkg/errors"
)

type studentRepository interface {
	List(ctx context.Context, filter models.StudentFilter) ([]models.Student, int, error)
	FindByID(ctx context.Context, id string) (*models.Student, error)
	FindByRollNo(ctx context.Context, rollNo int) (*models.Student, error)
	ExistsByRollNo(ctx context.Context, rollNo int) (bool, error)
	Create(ctx context.Context, student *models.Student) error
	Update(ctx context.Context, student *models.Student) error
	Delete(ctx context.Context, id string) (bool, error)
}

// CreateStudentRequest holds payload for registering students. The roll
// number is allocated server-side.
type CreateStudentRequest struct {
	Name         string    `json:"name" validate:"required"`
	Email        string    `json:"email" validate:"required,email"`
	EnrollmentNo string    `json:"enrollment_no"`
	Phone        string    `json:"phone"`
	DOB          time.Time `json:"dob"`
	Year         int       `json:"year" validate:"min=0"`
	Department   string    `json:"department"`
}

// UpdateStudentRequest holds payload for updating students. The roll number
// is immutable and absent from the payload.
type UpdateStudentRequest struct {
	Name         string    `json:"name" validate:"required"`
	Email        string    `json:"email" validate:"required,email"`
	EnrollmentNo string    `json:"enrollment_no"`
	Phone        string    `json:"phone"`
	DOB          time.Time `json:"dob"`
	Year         int       `json:"year" validate:"min=0"`
	Department   string    `json:"department"`
}

// StudentService handles student use-cases.
type StudentService struct {
	repo      studentRepository
	numbers   config.NumbersConfig
	validator *validator.Validate
	logger    *zap.Logger
}

// NewStudentService constructs the student service.
func NewStudentService(repo studentRepository, numbers config.NumbersConfig, validate *validator.Validate, logger *zap.Logger) *StudentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StudentService{repo: repo, numbers: numbers, validator: validate, logger: logger}
}

// List returns students and pagination metadata.
func (s *StudentService) List(ctx context.Context, filter models.StudentFilter) ([]models.Student, *models.Pagination, error) {
	students, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list students")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	pagination := &models.Pagination{Page: page, PageSize: size, TotalCount: total}
	return students, pagination, nil
}

// Get returns a student by internal id.
func (s *StudentService) Get(ctx context.Context, id string) (*models.Student, error) {
	student, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	return student, nil
}

// GetByRollNo returns a student by the human-facing roll number.
func (s *StudentService) GetByRollNo(ctx context.Context, rollNo int) (*models.Student, error) {
	student, err := s.repo.FindByRollNo(ctx, rollNo)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	return student, nil
}

// Create registers a new student with a freshly allocated roll number.
func (s *StudentService) Create(ctx context.Context, req CreateStudentRequest) (*models.Student, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid student payload")
	}
	rollNo, err := allocateNumber(ctx, s.numbers.Min, s.numbers.Max, s.repo.ExistsByRollNo)
	if err != nil {
		return nil, appErrors.FromError(err)
	}
	student := &models.Student{
		RollNo:       rollNo,
		Name:         req.Name,
		Email:        req.Email,
		EnrollmentNo: req.EnrollmentNo,
		Phone:        req.Phone,
		DOB:          req.DOB,
		Year:         req.Year,
		Department:   req.Department,
	}
	if err := s.repo.Create(ctx, student); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create student")
	}
	s.logger.Info("student registered", zap.String("id", student.ID), zap.Int("roll_no", student.RollNo))
	return student, nil
}

// Update modifies an existing student record. The roll number never changes.
func (s *StudentService) Update(ctx context.Context, id string, req UpdateStudentRequest) (*models.Student, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid student payload")
	}
	student, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	student.Name = req.Name
	student.Email = req.Email
	student.EnrollmentNo = req.EnrollmentNo
	student.Phone = req.Phone
	student.DOB = req.DOB
	student.Year = req.Year
	student.Department = req.Department
	if err := s.repo.Update(ctx, student); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update student")
	}
	return student, nil
}

// Delete removes a student by internal id.
func (s *StudentService) Delete(ctx context.Context, id string) error {
	deleted, err := s.repo.Delete(ctx, id)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete student")
	}
	if !deleted {
		return appErrors.Clone(appErrors.ErrNotFound, "student not found")
	}
	return nil
}
