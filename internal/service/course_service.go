package service

import (
	"context"
	"database/sql"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/sce-api/internal/models"
	"github.com/noah-isme/sce-api/pkg/config"
	appErrors "github.com/noah-isme/sce-api/pkg/errors"
)

type courseRepository interface {
	List(ctx context.Context, filter models.CourseFilter) ([]models.Course, int, error)
	FindByID(ctx context.Context, id string) (*models.Course, error)
	FindByCourseNo(ctx context.Context, courseNo int) (*models.Course, error)
	ExistsByCourseNo(ctx context.Context, courseNo int) (bool, error)
	Create(ctx context.Context, course *models.Course) error
	Update(ctx context.Context, course *models.Course) error
	Delete(ctx context.Context, id string) (bool, error)
}

// CreateCourseRequest holds payload for offering a course. The course
// number is allocated server-side.
type CreateCourseRequest struct {
	Title       string          `json:"title" validate:"required"`
	Instructor  string          `json:"instructor" validate:"required"`
	Semester    int             `json:"semester" validate:"min=0"`
	Credits     int             `json:"credits" validate:"min=0"`
	Schedule    models.Schedule `json:"schedule"`
	MaxStudents int             `json:"max_students" validate:"required,min=1,max=10"`
}

// UpdateCourseRequest holds payload for updating a course. The course number
// is immutable and absent from the payload; a max_students value that differs
// from the stored capacity is rejected rather than silently dropped.
type UpdateCourseRequest struct {
	Title       string          `json:"title" validate:"required"`
	Instructor  string          `json:"instructor" validate:"required"`
	Semester    int             `json:"semester" validate:"min=0"`
	Credits     int             `json:"credits" validate:"min=0"`
	Schedule    models.Schedule `json:"schedule"`
	MaxStudents *int            `json:"max_students,omitempty"`
}

// CourseService handles course use-cases.
type CourseService struct {
	repo      courseRepository
	numbers   config.NumbersConfig
	validator *validator.Validate
	logger    *zap.Logger
}

// NewCourseService constructs the course service.
func NewCourseService(repo courseRepository, numbers config.NumbersConfig, validate *validator.Validate, logger *zap.Logger) *CourseService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CourseService{repo: repo, numbers: numbers, validator: validate, logger: logger}
}

// List returns courses and pagination metadata.
func (s *CourseService) List(ctx context.Context, filter models.CourseFilter) ([]models.Course, *models.Pagination, error) {
	courses, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list courses")
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
	return courses, pagination, nil
}

// Get returns a course by internal id.
func (s *CourseService) Get(ctx context.Context, id string) (*models.Course, error) {
	course, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}
	return course, nil
}

// GetByCourseNo returns a course by the human-facing course number.
func (s *CourseService) GetByCourseNo(ctx context.Context, courseNo int) (*models.Course, error) {
	course, err := s.repo.FindByCourseNo(ctx, courseNo)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}
	return course, nil
}

// Create offers a new course with a freshly allocated course number.
func (s *CourseService) Create(ctx context.Context, req CreateCourseRequest) (*models.Course, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid course payload")
	}
	courseNo, err := allocateNumber(ctx, s.numbers.Min, s.numbers.Max, s.repo.ExistsByCourseNo)
	if err != nil {
		return nil, appErrors.FromError(err)
	}
	course := &models.Course{
		CourseNo:    courseNo,
		Title:       req.Title,
		Instructor:  req.Instructor,
		Semester:    req.Semester,
		Credits:     req.Credits,
		Schedule:    req.Schedule,
		MaxStudents: req.MaxStudents,
	}
	if err := s.repo.Create(ctx, course); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create course")
	}
	s.logger.Info("course offered", zap.String("id", course.ID), zap.Int("course_no", course.CourseNo))
	return course, nil
}

// Update modifies an existing course. Course number and capacity stay as created.
func (s *CourseService) Update(ctx context.Context, id string, req UpdateCourseRequest) (*models.Course, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid course payload")
	}
	course, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}
	if req.MaxStudents != nil && *req.MaxStudents != course.MaxStudents {
		return nil, appErrors.Clone(appErrors.ErrValidation, "max_students cannot be changed after creation")
	}
	course.Title = req.Title
	course.Instructor = req.Instructor
	course.Semester = req.Semester
	course.Credits = req.Credits
	course.Schedule = req.Schedule
	if err := s.repo.Update(ctx, course); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update course")
	}
	return course, nil
}

// Delete removes a course by internal id.
func (s *CourseService) Delete(ctx context.Context, id string) error {
	deleted, err := s.repo.Delete(ctx, id)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete course")
	}
	if !deleted {
		return appErrors.Clone(appErrors.ErrNotFound, "course not found")
	}
	return nil
}
