package service

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sce-api/internal/models"
	"github.com/noah-isme/sce-api/internal/repository"
	"github.com/noah-isme/sce-api/pkg/config"
	appErrors "github.com/noah-isme/sce-api/pkg/errors"
)

type pairKey struct {
	rollNo   int
	courseNo int
}

type mockEnrollmentStore struct {
	enrollments map[pairKey]models.Enrollment
	attendance  map[pairKey][]time.Time
	nextID      int
}

func newMockEnrollmentStore() *mockEnrollmentStore {
	return &mockEnrollmentStore{
		enrollments: make(map[pairKey]models.Enrollment),
		attendance:  make(map[pairKey][]time.Time),
	}
}

func (m *mockEnrollmentStore) List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, int, error) {
	var details []models.EnrollmentDetail
	for _, e := range m.enrollments {
		details = append(details, models.EnrollmentDetail{Enrollment: e})
	}
	return details, len(details), nil
}

func (m *mockEnrollmentStore) FindByPair(ctx context.Context, rollNo, courseNo int) (*models.Enrollment, error) {
	if e, ok := m.enrollments[pairKey{rollNo, courseNo}]; ok {
		return &e, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockEnrollmentStore) ExistsPair(ctx context.Context, rollNo, courseNo int, excludeID string) (bool, error) {
	e, ok := m.enrollments[pairKey{rollNo, courseNo}]
	if !ok {
		return false, nil
	}
	if excludeID != "" && e.ID == excludeID {
		return false, nil
	}
	return true, nil
}

func (m *mockEnrollmentStore) CountByCourse(ctx context.Context, courseNo int) (int, error) {
	count := 0
	for key := range m.enrollments {
		if key.courseNo == courseNo {
			count++
		}
	}
	return count, nil
}

func (m *mockEnrollmentStore) Create(ctx context.Context, enrollment *models.Enrollment) error {
	key := pairKey{enrollment.StudentRollNo, enrollment.CourseNo}
	if _, ok := m.enrollments[key]; ok {
		return repository.ErrDuplicatePair
	}
	m.nextID++
	if enrollment.ID == "" {
		enrollment.ID = fmt.Sprintf("enr-%d", m.nextID)
	}
	m.enrollments[key] = *enrollment
	m.attendance[key] = append([]time.Time(nil), enrollment.Attendance...)
	return nil
}

func (m *mockEnrollmentStore) Replace(ctx context.Context, enrollment *models.Enrollment) error {
	for key, e := range m.enrollments {
		if e.ID == enrollment.ID {
			delete(m.enrollments, key)
			delete(m.attendance, key)
			break
		}
	}
	key := pairKey{enrollment.StudentRollNo, enrollment.CourseNo}
	m.enrollments[key] = *enrollment
	m.attendance[key] = append([]time.Time(nil), enrollment.Attendance...)
	return nil
}

func (m *mockEnrollmentStore) DeleteByPair(ctx context.Context, rollNo, courseNo int) (bool, error) {
	key := pairKey{rollNo, courseNo}
	if _, ok := m.enrollments[key]; !ok {
		return false, nil
	}
	delete(m.enrollments, key)
	delete(m.attendance, key)
	return true, nil
}

func (m *mockEnrollmentStore) MarkAttendance(ctx context.Context, rollNo, courseNo int, date time.Time) (bool, error) {
	key := pairKey{rollNo, courseNo}
	if _, ok := m.enrollments[key]; !ok {
		return false, nil
	}
	for _, d := range m.attendance[key] {
		if d.Equal(date) {
			return false, nil
		}
	}
	m.attendance[key] = append(m.attendance[key], date)
	return true, nil
}

func (m *mockEnrollmentStore) ListAttendance(ctx context.Context, rollNo, courseNo int) ([]time.Time, error) {
	return append([]time.Time(nil), m.attendance[pairKey{rollNo, courseNo}]...), nil
}

func (m *mockEnrollmentStore) ListByRollNo(ctx context.Context, rollNo int) ([]models.Enrollment, error) {
	var list []models.Enrollment
	for key, e := range m.enrollments {
		if key.rollNo == rollNo {
			list = append(list, e)
		}
	}
	return list, nil
}

func (m *mockEnrollmentStore) ListByCourseNo(ctx context.Context, courseNo int) ([]models.Enrollment, error) {
	var list []models.Enrollment
	for key, e := range m.enrollments {
		if key.courseNo == courseNo {
			list = append(list, e)
		}
	}
	return list, nil
}

func (m *mockEnrollmentStore) UpdateGrade(ctx context.Context, rollNo, courseNo int, grade string) (bool, error) {
	key := pairKey{rollNo, courseNo}
	e, ok := m.enrollments[key]
	if !ok {
		return false, nil
	}
	e.Grade = &grade
	m.enrollments[key] = e
	return true, nil
}

type mockStudentDir struct {
	students map[int]models.Student
}

func (m *mockStudentDir) FindByRollNo(ctx context.Context, rollNo int) (*models.Student, error) {
	if s, ok := m.students[rollNo]; ok {
		return &s, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockStudentDir) FindByIDIn(ctx context.Context, ids []string) ([]models.Student, error) {
	want := make(map[string]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	var out []models.Student
	for _, s := range m.students {
		if want[s.ID] {
			out = append(out, s)
		}
	}
	return out, nil
}

type mockCourseDir struct {
	courses map[int]models.Course
}

func (m *mockCourseDir) FindByCourseNo(ctx context.Context, courseNo int) (*models.Course, error) {
	if c, ok := m.courses[courseNo]; ok {
		return &c, nil
	}
	return nil, sql.ErrNoRows
}

func newTestEnrollmentService() (*EnrollmentService, *mockEnrollmentStore, *mockStudentDir, *mockCourseDir) {
	store := newMockEnrollmentStore()
	students := &mockStudentDir{students: map[int]models.Student{
		5:  {ID: "stu-5", RollNo: 5, Name: "Asha Rao"},
		9:  {ID: "stu-9", RollNo: 9, Name: "Dev Patel"},
		12: {ID: "stu-12", RollNo: 12, Name: "Mira Shah"},
	}}
	courses := &mockCourseDir{courses: map[int]models.Course{
		7:  {ID: "crs-7", CourseNo: 7, Title: "Linear Algebra", MaxStudents: 1},
		20: {ID: "crs-20", CourseNo: 20, Title: "Thermodynamics", MaxStudents: 5},
		21: {ID: "crs-21", CourseNo: 21, Title: "Optics", MaxStudents: 5},
	}}
	svc := NewEnrollmentService(store, students, courses, nil, config.CacheConfig{}, nil, nil)
	return svc, store, students, courses
}

func TestEnrollHappyPath(t *testing.T) {
	svc, store, _, _ := newTestEnrollmentService()

	detail, err := svc.Enroll(context.Background(), EnrollRequest{StudentRollNo: 5, CourseNo: 7})
	require.NoError(t, err)
	assert.Equal(t, 5, detail.StudentRollNo)
	assert.Equal(t, 7, detail.CourseNo)
	assert.Equal(t, "Asha Rao", detail.StudentName)
	assert.Equal(t, "Linear Algebra", detail.CourseTitle)
	assert.Nil(t, detail.Grade)
	assert.Len(t, store.enrollments, 1)
}

func TestCachedReadsSurviveUnreachableRedis(t *testing.T) {
	store := newMockEnrollmentStore()
	students := &mockStudentDir{students: map[int]models.Student{
		5: {ID: "stu-5", RollNo: 5, Name: "Asha Rao"},
	}}
	courses := &mockCourseDir{courses: map[int]models.Course{
		7: {ID: "crs-7", CourseNo: 7, Title: "Linear Algebra", MaxStudents: 1},
	}}
	// A nil *CacheRepository is what the wiring produces when Redis is down
	// at boot; reads must fall through to the store instead of panicking.
	var cache *repository.CacheRepository
	svc := NewEnrollmentService(store, students, courses, cache, config.CacheConfig{Enabled: true, GPATTL: time.Minute, RosterTTL: time.Minute}, nil, nil)
	ctx := context.Background()

	grade := "A"
	_, err := svc.Enroll(ctx, EnrollRequest{StudentRollNo: 5, CourseNo: 7, Grade: &grade})
	require.NoError(t, err)

	gpa, err := svc.GetGPA(ctx, 5)
	require.NoError(t, err)
	require.NotNil(t, gpa.GPA)
	assert.InDelta(t, 10.0, *gpa.GPA, 0.001)

	roster, err := svc.StudentsByCourse(ctx, 7)
	require.NoError(t, err)
	assert.Len(t, roster, 1)
}

func TestGetReturnsDetailWithAttendance(t *testing.T) {
	svc, _, _, _ := newTestEnrollmentService()
	ctx := context.Background()

	_, err := svc.Enroll(ctx, EnrollRequest{StudentRollNo: 5, CourseNo: 7})
	require.NoError(t, err)
	_, err = svc.MarkAttendance(ctx, 5, 7, time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	detail, err := svc.Get(ctx, 5, 7)
	require.NoError(t, err)
	assert.Equal(t, "Asha Rao", detail.StudentName)
	assert.Equal(t, "Linear Algebra", detail.CourseTitle)
	assert.Len(t, detail.Attendance, 1)
}

func TestGetMissingEnrollment(t *testing.T) {
	svc, _, _, _ := newTestEnrollmentService()

	_, err := svc.Get(context.Background(), 5, 7)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErr.Code)
}

func TestEnrollHonorsSuppliedEnrollmentDate(t *testing.T) {
	svc, _, _, _ := newTestEnrollmentService()

	enrolledAt := time.Date(2026, 2, 10, 15, 30, 0, 0, time.UTC)
	detail, err := svc.Enroll(context.Background(), EnrollRequest{StudentRollNo: 5, CourseNo: 7, EnrolledAt: &enrolledAt})
	require.NoError(t, err)
	assert.Equal(t, enrolledAt, detail.EnrolledAt)
}

func TestEnrollUnknownStudent(t *testing.T) {
	svc, _, _, _ := newTestEnrollmentService()

	_, err := svc.Enroll(context.Background(), EnrollRequest{StudentRollNo: 99, CourseNo: 7})
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErr.Code)
	assert.Equal(t, "student not found", appErr.Message)
}

func TestEnrollUnknownCourse(t *testing.T) {
	svc, _, _, _ := newTestEnrollmentService()

	_, err := svc.Enroll(context.Background(), EnrollRequest{StudentRollNo: 5, CourseNo: 99})
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErr.Code)
	assert.Equal(t, "course not found", appErr.Message)
}

func TestEnrollDuplicatePair(t *testing.T) {
	svc, _, _, _ := newTestEnrollmentService()

	_, err := svc.Enroll(context.Background(), EnrollRequest{StudentRollNo: 5, CourseNo: 7})
	require.NoError(t, err)

	_, err = svc.Enroll(context.Background(), EnrollRequest{StudentRollNo: 5, CourseNo: 7})
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrDuplicateEnrollment.Code, appErr.Code)
}

func TestEnrollCourseFull(t *testing.T) {
	svc, _, _, _ := newTestEnrollmentService()

	_, err := svc.Enroll(context.Background(), EnrollRequest{StudentRollNo: 5, CourseNo: 7})
	require.NoError(t, err)

	_, err = svc.Enroll(context.Background(), EnrollRequest{StudentRollNo: 9, CourseNo: 7})
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrCourseFull.Code, appErr.Code)

	err = svc.Unenroll(context.Background(), 5, 7)
	require.NoError(t, err)

	_, err = svc.Enroll(context.Background(), EnrollRequest{StudentRollNo: 9, CourseNo: 7})
	require.NoError(t, err)
}

func TestEnrollDuplicateCheckedBeforeCapacity(t *testing.T) {
	svc, _, _, _ := newTestEnrollmentService()

	_, err := svc.Enroll(context.Background(), EnrollRequest{StudentRollNo: 5, CourseNo: 7})
	require.NoError(t, err)

	// The course is also full; the duplicate must win.
	_, err = svc.Enroll(context.Background(), EnrollRequest{StudentRollNo: 5, CourseNo: 7})
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrDuplicateEnrollment.Code, appErr.Code)
}

func TestEnrollNormalizesGradeAndAttendance(t *testing.T) {
	svc, store, _, _ := newTestEnrollmentService()

	grade := "b"
	morning := time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)
	afternoon := time.Date(2026, 3, 14, 15, 0, 0, 0, time.UTC)
	detail, err := svc.Enroll(context.Background(), EnrollRequest{
		StudentRollNo: 5,
		CourseNo:      20,
		Grade:         &grade,
		Attendance:    []time.Time{morning, afternoon},
	})
	require.NoError(t, err)
	require.NotNil(t, detail.Grade)
	assert.Equal(t, "B", *detail.Grade)

	dates := store.attendance[pairKey{5, 20}]
	require.Len(t, dates, 1)
	assert.Equal(t, time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC), dates[0])
}

func TestEnrollRejectsInvalidGrade(t *testing.T) {
	svc, store, _, _ := newTestEnrollmentService()

	grade := "E"
	_, err := svc.Enroll(context.Background(), EnrollRequest{StudentRollNo: 5, CourseNo: 20, Grade: &grade})
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrInvalidGrade.Code, appErr.Code)
	assert.Empty(t, store.enrollments)
}

func TestUnenrollMissing(t *testing.T) {
	svc, _, _, _ := newTestEnrollmentService()

	err := svc.Unenroll(context.Background(), 5, 7)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErr.Code)
}

func TestUpdateMovesPairAndChecksCapacity(t *testing.T) {
	svc, store, _, _ := newTestEnrollmentService()

	_, err := svc.Enroll(context.Background(), EnrollRequest{StudentRollNo: 5, CourseNo: 20})
	require.NoError(t, err)
	_, err = svc.Enroll(context.Background(), EnrollRequest{StudentRollNo: 9, CourseNo: 7})
	require.NoError(t, err)

	// Course 7 has capacity 1 and is already full.
	_, err = svc.Update(context.Background(), 5, 20, UpdateEnrollmentRequest{StudentRollNo: 5, CourseNo: 7})
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrCourseFull.Code, appErr.Code)

	detail, err := svc.Update(context.Background(), 5, 20, UpdateEnrollmentRequest{StudentRollNo: 5, CourseNo: 21})
	require.NoError(t, err)
	assert.Equal(t, 21, detail.CourseNo)
	_, stillOld := store.enrollments[pairKey{5, 20}]
	assert.False(t, stillOld)
}

func TestUpdateStudentSwapWithinFullCourseRejected(t *testing.T) {
	svc, store, _, _ := newTestEnrollmentService()

	_, err := svc.Enroll(context.Background(), EnrollRequest{StudentRollNo: 9, CourseNo: 7})
	require.NoError(t, err)

	// Course 7 is at capacity; handing the seat to another student counts
	// the occupied seat and fails, matching the enroll-path capacity rule.
	_, err = svc.Update(context.Background(), 9, 7, UpdateEnrollmentRequest{StudentRollNo: 12, CourseNo: 7})
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrCourseFull.Code, appErr.Code)

	_, keptOld := store.enrollments[pairKey{9, 7}]
	assert.True(t, keptOld)
}

func TestUpdateSamePairKeepsGrade(t *testing.T) {
	svc, _, _, _ := newTestEnrollmentService()

	_, err := svc.Enroll(context.Background(), EnrollRequest{StudentRollNo: 5, CourseNo: 20})
	require.NoError(t, err)

	grade := "a"
	detail, err := svc.Update(context.Background(), 5, 20, UpdateEnrollmentRequest{StudentRollNo: 5, CourseNo: 20, Grade: &grade})
	require.NoError(t, err)
	require.NotNil(t, detail.Grade)
	assert.Equal(t, "A", *detail.Grade)
}

func TestMarkAttendanceIdempotentPerDay(t *testing.T) {
	svc, _, _, _ := newTestEnrollmentService()

	_, err := svc.Enroll(context.Background(), EnrollRequest{StudentRollNo: 5, CourseNo: 20})
	require.NoError(t, err)

	day := time.Date(2026, 3, 14, 11, 45, 0, 0, time.UTC)
	marked, err := svc.MarkAttendance(context.Background(), 5, 20, day)
	require.NoError(t, err)
	assert.True(t, marked)

	later := time.Date(2026, 3, 14, 18, 0, 0, 0, time.UTC)
	marked, err = svc.MarkAttendance(context.Background(), 5, 20, later)
	require.NoError(t, err)
	assert.False(t, marked)

	dates, err := svc.GetAttendance(context.Background(), 5, 20)
	require.NoError(t, err)
	require.Len(t, dates, 1)
}

func TestMarkAttendanceMissingEnrollment(t *testing.T) {
	svc, _, _, _ := newTestEnrollmentService()

	marked, err := svc.MarkAttendance(context.Background(), 5, 20, time.Now())
	require.NoError(t, err)
	assert.False(t, marked)
}

func TestGetAttendanceMissingEnrollmentYieldsEmptySet(t *testing.T) {
	svc, _, _, _ := newTestEnrollmentService()

	dates, err := svc.GetAttendance(context.Background(), 5, 20)
	require.NoError(t, err)
	assert.Empty(t, dates)
}

func TestGPAAveragesGradedEnrollments(t *testing.T) {
	svc, _, _, _ := newTestEnrollmentService()
	ctx := context.Background()

	for _, tc := range []struct {
		courseNo int
		grade    string
	}{{7, "A"}, {20, "B"}, {21, "F"}} {
		grade := tc.grade
		_, err := svc.Enroll(ctx, EnrollRequest{StudentRollNo: 5, CourseNo: tc.courseNo, Grade: &grade})
		require.NoError(t, err)
	}

	result, err := svc.GetGPA(ctx, 5)
	require.NoError(t, err)
	require.NotNil(t, result.GPA)
	assert.InDelta(t, (10.0+9.0+0.0)/3.0, *result.GPA, 1e-9)
	assert.Equal(t, 3, result.TotalCourses)
	assert.Equal(t, 3, result.GradedCourses)
}

func TestGPAIgnoresUngraded(t *testing.T) {
	svc, _, _, _ := newTestEnrollmentService()
	ctx := context.Background()

	lower := "b"
	_, err := svc.Enroll(ctx, EnrollRequest{StudentRollNo: 5, CourseNo: 20, Grade: &lower})
	require.NoError(t, err)
	fail := "F"
	_, err = svc.Enroll(ctx, EnrollRequest{StudentRollNo: 5, CourseNo: 21, Grade: &fail})
	require.NoError(t, err)
	_, err = svc.Enroll(ctx, EnrollRequest{StudentRollNo: 5, CourseNo: 7})
	require.NoError(t, err)

	result, err := svc.GetGPA(ctx, 5)
	require.NoError(t, err)
	require.NotNil(t, result.GPA)
	assert.InDelta(t, 4.5, *result.GPA, 1e-9)
	assert.Equal(t, 3, result.TotalCourses)
	assert.Equal(t, 2, result.GradedCourses)
}

func TestGPANilWithoutGrades(t *testing.T) {
	svc, _, _, _ := newTestEnrollmentService()
	ctx := context.Background()

	result, err := svc.GetGPA(ctx, 5)
	require.NoError(t, err)
	assert.Nil(t, result.GPA)
	assert.Equal(t, 0, result.TotalCourses)

	_, err = svc.Enroll(ctx, EnrollRequest{StudentRollNo: 5, CourseNo: 20})
	require.NoError(t, err)

	result, err = svc.GetGPA(ctx, 5)
	require.NoError(t, err)
	assert.Nil(t, result.GPA)
	assert.Equal(t, 1, result.TotalCourses)
}

func TestGPAUnknownStudent(t *testing.T) {
	svc, _, _, _ := newTestEnrollmentService()

	_, err := svc.GetGPA(context.Background(), 99)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErr.Code)
}

func TestUpdateGradeValidatesBeforeStore(t *testing.T) {
	svc, store, _, _ := newTestEnrollmentService()
	ctx := context.Background()

	grade := "A"
	_, err := svc.Enroll(ctx, EnrollRequest{StudentRollNo: 5, CourseNo: 20, Grade: &grade})
	require.NoError(t, err)

	err = svc.UpdateGrade(ctx, 5, 20, "X")
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrInvalidGrade.Code, appErr.Code)
	stored := store.enrollments[pairKey{5, 20}]
	require.NotNil(t, stored.Grade)
	assert.Equal(t, "A", *stored.Grade)

	err = svc.UpdateGrade(ctx, 5, 20, "c")
	require.NoError(t, err)
	stored = store.enrollments[pairKey{5, 20}]
	assert.Equal(t, "C", *stored.Grade)
}

func TestUpdateGradeMissingEnrollment(t *testing.T) {
	svc, _, _, _ := newTestEnrollmentService()

	err := svc.UpdateGrade(context.Background(), 5, 20, "A")
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErr.Code)
}

func TestStudentsByCourseReturnsRoster(t *testing.T) {
	svc, _, _, _ := newTestEnrollmentService()
	ctx := context.Background()

	for _, rollNo := range []int{12, 5, 9} {
		_, err := svc.Enroll(ctx, EnrollRequest{StudentRollNo: rollNo, CourseNo: 20})
		require.NoError(t, err)
	}

	students, err := svc.StudentsByCourse(ctx, 20)
	require.NoError(t, err)
	require.Len(t, students, 3)
}

func TestStudentsByCourseUnknownCourse(t *testing.T) {
	svc, _, _, _ := newTestEnrollmentService()

	_, err := svc.StudentsByCourse(context.Background(), 99)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErr.Code)
}
