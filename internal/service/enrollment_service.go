package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/sce-api/internal/models"
	"github.com/noah-isme/sce-api/internal/repository"
	"github.com/noah-isme/sce-api/pkg/config"
	appErrors "github.com/noah-isme/sce-api/pkg/errors"
)

type enrollmentStore interface {
	List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, int, error)
	FindByPair(ctx context.Context, studentRollNo, courseNo int) (*models.Enrollment, error)
	ExistsPair(ctx context.Context, studentRollNo, courseNo int, excludeID string) (bool, error)
	CountByCourse(ctx context.Context, courseNo int) (int, error)
	Create(ctx context.Context, enrollment *models.Enrollment) error
	Replace(ctx context.Context, enrollment *models.Enrollment) error
	DeleteByPair(ctx context.Context, studentRollNo, courseNo int) (bool, error)
	MarkAttendance(ctx context.Context, studentRollNo, courseNo int, date time.Time) (bool, error)
	ListAttendance(ctx context.Context, studentRollNo, courseNo int) ([]time.Time, error)
	ListByRollNo(ctx context.Context, studentRollNo int) ([]models.Enrollment, error)
	ListByCourseNo(ctx context.Context, courseNo int) ([]models.Enrollment, error)
	UpdateGrade(ctx context.Context, studentRollNo, courseNo int, grade string) (bool, error)
}

type studentDirectory interface {
	FindByRollNo(ctx context.Context, rollNo int) (*models.Student, error)
	FindByIDIn(ctx context.Context, ids []string) ([]models.Student, error)
}

type courseDirectory interface {
	FindByCourseNo(ctx context.Context, courseNo int) (*models.Course, error)
}

type readCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// EnrollRequest describes an enrollment creation payload. EnrolledAt defaults
// to the current day when absent and is immutable afterwards.
type EnrollRequest struct {
	StudentRollNo int         `json:"student_roll_no" validate:"required,min=1"`
	CourseNo      int         `json:"course_no" validate:"required,min=1"`
	Grade         *string     `json:"grade,omitempty"`
	Attendance    []time.Time `json:"attendance,omitempty"`
	EnrolledAt    *time.Time  `json:"enrolled_at,omitempty"`
}

// UpdateEnrollmentRequest carries the replacement state for an existing enrollment.
type UpdateEnrollmentRequest struct {
	StudentRollNo int         `json:"student_roll_no" validate:"required,min=1"`
	CourseNo      int         `json:"course_no" validate:"required,min=1"`
	Grade         *string     `json:"grade,omitempty"`
	Attendance    []time.Time `json:"attendance,omitempty"`
}

// StudentGPA summarises a student's grade point average. GPA is nil when the
// student has no graded enrollments.
type StudentGPA struct {
	StudentRollNo int      `json:"student_roll_no"`
	GPA           *float64 `json:"gpa"`
	TotalCourses  int      `json:"total_courses"`
	GradedCourses int      `json:"graded_courses"`
}

// EnrollmentService orchestrates enrollment workflows: the uniqueness and
// capacity checks, attendance sets, grades and GPA.
type EnrollmentService struct {
	repo      enrollmentStore
	students  studentDirectory
	courses   courseDirectory
	cache     readCache
	cacheCfg  config.CacheConfig
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
}

// NewEnrollmentService constructs EnrollmentService. The cache is optional.
func NewEnrollmentService(repo enrollmentStore, students studentDirectory, courses courseDirectory, cache readCache, cacheCfg config.CacheConfig, validate *validator.Validate, logger *zap.Logger) *EnrollmentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EnrollmentService{
		repo:      repo,
		students:  students,
		courses:   courses,
		cache:     cache,
		cacheCfg:  cacheCfg,
		validator: validate,
		logger:    logger,
	}
}

// WithMetrics enables cache hit/miss accounting. Safe to skip in tests.
func (s *EnrollmentService) WithMetrics(metrics *MetricsService) *EnrollmentService {
	s.metrics = metrics
	return s
}

// List returns enrollments with pagination metadata.
func (s *EnrollmentService) List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, *models.Pagination, error) {
	enrollments, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list enrollments")
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
	return enrollments, pagination, nil
}

// Get returns a single enrollment with its attendance set loaded.
func (s *EnrollmentService) Get(ctx context.Context, studentRollNo, courseNo int) (*models.EnrollmentDetail, error) {
	enrollment, err := s.repo.FindByPair(ctx, studentRollNo, courseNo)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
	}
	attendance, err := s.repo.ListAttendance(ctx, studentRollNo, courseNo)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load attendance")
	}
	enrollment.Attendance = attendance

	detail := &models.EnrollmentDetail{Enrollment: *enrollment}
	if student, err := s.students.FindByRollNo(ctx, studentRollNo); err == nil {
		detail.StudentName = student.Name
	}
	if course, err := s.courses.FindByCourseNo(ctx, courseNo); err == nil {
		detail.CourseTitle = course.Title
	}
	return detail, nil
}

// Enroll registers a student into a course. The student must exist, then the
// course, then the pair must be new, then the course must have a free seat;
// checks run in that order so the caller sees the first failing condition.
func (s *EnrollmentService) Enroll(ctx context.Context, req EnrollRequest) (*models.EnrollmentDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid enrollment payload")
	}
	student, err := s.students.FindByRollNo(ctx, req.StudentRollNo)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	course, err := s.courses.FindByCourseNo(ctx, req.CourseNo)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}
	exists, err := s.repo.ExistsPair(ctx, req.StudentRollNo, req.CourseNo, "")
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to validate enrollment")
	}
	if exists {
		return nil, appErrors.ErrDuplicateEnrollment
	}
	count, err := s.repo.CountByCourse(ctx, req.CourseNo)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count enrollments")
	}
	if count >= course.MaxStudents {
		return nil, appErrors.ErrCourseFull
	}

	grade, err := normalizeGradePtr(req.Grade)
	if err != nil {
		return nil, err
	}

	enrolledAt := time.Now().UTC()
	if req.EnrolledAt != nil {
		enrolledAt = req.EnrolledAt.UTC()
	}
	enrollment := &models.Enrollment{
		StudentID:     student.ID,
		CourseID:      course.ID,
		StudentRollNo: student.RollNo,
		CourseNo:      course.CourseNo,
		Grade:         grade,
		EnrolledAt:    enrolledAt,
		Attendance:    normalizeAttendance(req.Attendance),
	}
	if err := s.repo.Create(ctx, enrollment); err != nil {
		if errors.Is(err, repository.ErrDuplicatePair) {
			return nil, appErrors.ErrDuplicateEnrollment
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create enrollment")
	}

	s.invalidate(ctx, student.RollNo, course.CourseNo)
	return &models.EnrollmentDetail{Enrollment: *enrollment, StudentName: student.Name, CourseTitle: course.Title}, nil
}

// Update replaces the enrollment identified by the pair with the request
// state, re-validating references and invariants when the pair moves.
func (s *EnrollmentService) Update(ctx context.Context, studentRollNo, courseNo int, req UpdateEnrollmentRequest) (*models.EnrollmentDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid enrollment payload")
	}
	current, err := s.repo.FindByPair(ctx, studentRollNo, courseNo)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
	}

	student, err := s.students.FindByRollNo(ctx, req.StudentRollNo)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	course, err := s.courses.FindByCourseNo(ctx, req.CourseNo)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}

	pairChanged := req.StudentRollNo != studentRollNo || req.CourseNo != courseNo
	if pairChanged {
		exists, err := s.repo.ExistsPair(ctx, req.StudentRollNo, req.CourseNo, current.ID)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to validate enrollment")
		}
		if exists {
			return nil, appErrors.ErrDuplicateEnrollment
		}
		// Capacity is re-checked on any pair change, even when only the
		// student moves within the same course.
		count, err := s.repo.CountByCourse(ctx, req.CourseNo)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count enrollments")
		}
		if count >= course.MaxStudents {
			return nil, appErrors.ErrCourseFull
		}
	}

	grade, err := normalizeGradePtr(req.Grade)
	if err != nil {
		return nil, err
	}

	updated := &models.Enrollment{
		ID:            current.ID,
		StudentID:     student.ID,
		CourseID:      course.ID,
		StudentRollNo: student.RollNo,
		CourseNo:      course.CourseNo,
		Grade:         grade,
		EnrolledAt:    current.EnrolledAt,
		Attendance:    normalizeAttendance(req.Attendance),
		CreatedAt:     current.CreatedAt,
	}
	if err := s.repo.Replace(ctx, updated); err != nil {
		if errors.Is(err, repository.ErrDuplicatePair) {
			return nil, appErrors.ErrDuplicateEnrollment
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update enrollment")
	}

	s.invalidate(ctx, studentRollNo, courseNo)
	if pairChanged {
		s.invalidate(ctx, student.RollNo, course.CourseNo)
	}
	return &models.EnrollmentDetail{Enrollment: *updated, StudentName: student.Name, CourseTitle: course.Title}, nil
}

// Unenroll removes the enrollment for the pair.
func (s *EnrollmentService) Unenroll(ctx context.Context, studentRollNo, courseNo int) error {
	deleted, err := s.repo.DeleteByPair(ctx, studentRollNo, courseNo)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete enrollment")
	}
	if !deleted {
		return appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
	}
	s.invalidate(ctx, studentRollNo, courseNo)
	return nil
}

// MarkAttendance records a calendar day in the enrollment's attendance set.
// The returned flag is false both when the enrollment does not exist and
// when the day was already recorded.
func (s *EnrollmentService) MarkAttendance(ctx context.Context, studentRollNo, courseNo int, date time.Time) (bool, error) {
	if date.IsZero() {
		date = time.Now().UTC()
	}
	marked, err := s.repo.MarkAttendance(ctx, studentRollNo, courseNo, truncateToDay(date))
	if err != nil {
		return false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to mark attendance")
	}
	return marked, nil
}

// GetAttendance returns the recorded days for the enrollment, oldest first.
// A missing enrollment yields an empty set, same as one with no attendance.
func (s *EnrollmentService) GetAttendance(ctx context.Context, studentRollNo, courseNo int) ([]time.Time, error) {
	dates, err := s.repo.ListAttendance(ctx, studentRollNo, courseNo)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load attendance")
	}
	if dates == nil {
		dates = []time.Time{}
	}
	return dates, nil
}

// GetGPA computes the grade point average over the student's graded
// enrollments. GPA is nil when no enrollment carries a grade.
func (s *EnrollmentService) GetGPA(ctx context.Context, studentRollNo int) (*StudentGPA, error) {
	if s.cacheEnabled() {
		var cached StudentGPA
		if err := s.cache.Get(ctx, gpaCacheKey(studentRollNo), &cached); err == nil {
			s.metrics.RecordCacheOperation(true)
			return &cached, nil
		}
		s.metrics.RecordCacheOperation(false)
	}

	if _, err := s.students.FindByRollNo(ctx, studentRollNo); err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	enrollments, err := s.repo.ListByRollNo(ctx, studentRollNo)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollments")
	}

	result := &StudentGPA{StudentRollNo: studentRollNo, TotalCourses: len(enrollments)}
	var sum float64
	for _, enrollment := range enrollments {
		if enrollment.Grade == nil {
			continue
		}
		points, ok := models.GradePoints[*enrollment.Grade]
		if !ok {
			s.logger.Warn("unknown grade stored", zap.String("enrollment_id", enrollment.ID), zap.String("grade", *enrollment.Grade))
			continue
		}
		sum += points
		result.GradedCourses++
	}
	if result.GradedCourses > 0 {
		gpa := sum / float64(result.GradedCourses)
		result.GPA = &gpa
	}

	if s.cacheEnabled() {
		if err := s.cache.Set(ctx, gpaCacheKey(studentRollNo), result, s.cacheCfg.GPATTL); err != nil {
			s.logger.Warn("failed to cache gpa", zap.Int("roll_no", studentRollNo), zap.Error(err))
		}
	}
	return result, nil
}

// UpdateGrade validates and stores a grade for the enrollment. An invalid
// letter leaves the stored grade untouched.
func (s *EnrollmentService) UpdateGrade(ctx context.Context, studentRollNo, courseNo int, rawGrade string) error {
	grade, ok := models.NormalizeGrade(rawGrade)
	if !ok {
		return appErrors.Clone(appErrors.ErrInvalidGrade, fmt.Sprintf("invalid grade %q: must be one of A, B, C, D, F", rawGrade))
	}
	updated, err := s.repo.UpdateGrade(ctx, studentRollNo, courseNo, grade)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update grade")
	}
	if !updated {
		return appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
	}
	s.invalidate(ctx, studentRollNo, courseNo)
	return nil
}

// StudentsByCourse returns the students enrolled in a course, in enrollment order.
func (s *EnrollmentService) StudentsByCourse(ctx context.Context, courseNo int) ([]models.Student, error) {
	if s.cacheEnabled() {
		var cached []models.Student
		if err := s.cache.Get(ctx, rosterCacheKey(courseNo), &cached); err == nil {
			s.metrics.RecordCacheOperation(true)
			return cached, nil
		}
		s.metrics.RecordCacheOperation(false)
	}

	if _, err := s.courses.FindByCourseNo(ctx, courseNo); err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}
	enrollments, err := s.repo.ListByCourseNo(ctx, courseNo)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollments")
	}

	ids := make([]string, 0, len(enrollments))
	for _, enrollment := range enrollments {
		ids = append(ids, enrollment.StudentID)
	}
	loaded, err := s.students.FindByIDIn(ctx, ids)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load students")
	}
	byID := make(map[string]models.Student, len(loaded))
	for _, student := range loaded {
		byID[student.ID] = student
	}
	students := make([]models.Student, 0, len(enrollments))
	for _, enrollment := range enrollments {
		if student, ok := byID[enrollment.StudentID]; ok {
			students = append(students, student)
		}
	}

	if s.cacheEnabled() {
		if err := s.cache.Set(ctx, rosterCacheKey(courseNo), students, s.cacheCfg.RosterTTL); err != nil {
			s.logger.Warn("failed to cache roster", zap.Int("course_no", courseNo), zap.Error(err))
		}
	}
	return students, nil
}

func (s *EnrollmentService) cacheEnabled() bool {
	return s.cache != nil && s.cacheCfg.Enabled
}

func (s *EnrollmentService) invalidate(ctx context.Context, studentRollNo, courseNo int) {
	if !s.cacheEnabled() {
		return
	}
	if err := s.cache.Delete(ctx, gpaCacheKey(studentRollNo)); err != nil {
		s.logger.Warn("failed to invalidate gpa cache", zap.Int("roll_no", studentRollNo), zap.Error(err))
	}
	if err := s.cache.Delete(ctx, rosterCacheKey(courseNo)); err != nil {
		s.logger.Warn("failed to invalidate roster cache", zap.Int("course_no", courseNo), zap.Error(err))
	}
}

func gpaCacheKey(studentRollNo int) string {
	return fmt.Sprintf("gpa:%d", studentRollNo)
}

func rosterCacheKey(courseNo int) string {
	return fmt.Sprintf("roster:%d", courseNo)
}

func normalizeGradePtr(raw *string) (*string, error) {
	if raw == nil {
		return nil, nil
	}
	grade, ok := models.NormalizeGrade(*raw)
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrInvalidGrade, fmt.Sprintf("invalid grade %q: must be one of A, B, C, D, F", *raw))
	}
	return &grade, nil
}

// normalizeAttendance truncates every timestamp to its UTC day and drops
// duplicates while keeping first-seen order.
func normalizeAttendance(dates []time.Time) []time.Time {
	if len(dates) == 0 {
		return nil
	}
	seen := make(map[time.Time]struct{}, len(dates))
	out := make([]time.Time, 0, len(dates))
	for _, date := range dates {
		day := truncateToDay(date)
		if _, ok := seen[day]; ok {
			continue
		}
		seen[day] = struct{}{}
		out = append(out, day)
	}
	return out
}

func truncateToDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
