package service

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sce-api/internal/models"
	"github.com/noah-isme/sce-api/pkg/storage"
)

type mockExportSources struct {
	enrollments []models.Enrollment
	students    map[string]models.Student
	byRollNo    map[int]models.Student
	courses     map[int]models.Course
}

func (m *mockExportSources) ListByCourseNo(ctx context.Context, courseNo int) ([]models.Enrollment, error) {
	var out []models.Enrollment
	for _, e := range m.enrollments {
		if e.CourseNo == courseNo {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *mockExportSources) ListByRollNo(ctx context.Context, studentRollNo int) ([]models.Enrollment, error) {
	var out []models.Enrollment
	for _, e := range m.enrollments {
		if e.StudentRollNo == studentRollNo {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *mockExportSources) FindByRollNo(ctx context.Context, rollNo int) (*models.Student, error) {
	student, ok := m.byRollNo[rollNo]
	if !ok {
		return nil, errStudentMissing
	}
	return &student, nil
}

func (m *mockExportSources) FindByIDIn(ctx context.Context, ids []string) ([]models.Student, error) {
	var out []models.Student
	for _, id := range ids {
		if student, ok := m.students[id]; ok {
			out = append(out, student)
		}
	}
	return out, nil
}

func (m *mockExportSources) FindByCourseNo(ctx context.Context, courseNo int) (*models.Course, error) {
	course, ok := m.courses[courseNo]
	if !ok {
		return nil, errCourseMissing
	}
	return &course, nil
}

var (
	errStudentMissing = &mockNotFound{"student"}
	errCourseMissing  = &mockNotFound{"course"}
)

type mockNotFound struct{ what string }

func (e *mockNotFound) Error() string { return e.what + " not found" }

func newTestExportService(t *testing.T) (*ExportService, *mockExportSources) {
	t.Helper()
	gradeA := "A"
	sources := &mockExportSources{
		enrollments: []models.Enrollment{
			{ID: "enr-1", StudentID: "stu-5", StudentRollNo: 5, CourseNo: 7, Grade: &gradeA, EnrolledAt: time.Date(2026, 2, 10, 0, 0, 0, 0, time.UTC)},
			{ID: "enr-2", StudentID: "stu-9", StudentRollNo: 9, CourseNo: 7, EnrolledAt: time.Date(2026, 2, 11, 0, 0, 0, 0, time.UTC)},
		},
		students: map[string]models.Student{
			"stu-5": {ID: "stu-5", RollNo: 5, Name: "Asha Rao", Email: "asha@example.edu", Department: "Physics"},
			"stu-9": {ID: "stu-9", RollNo: 9, Name: "Dev Patel", Email: "dev@example.edu", Department: "Math"},
		},
		byRollNo: map[int]models.Student{
			5: {ID: "stu-5", RollNo: 5, Name: "Asha Rao", Email: "asha@example.edu", Department: "Physics"},
		},
		courses: map[int]models.Course{
			7: {ID: "crs-7", CourseNo: 7, Title: "Linear Algebra", Instructor: "Prof. Iyer", Credits: 4, MaxStudents: 30},
		},
	}
	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	signer := storage.NewSignedURLSigner("test-secret", time.Hour)
	svc := NewExportService(sources, sources, sources, store, signer, ExportConfig{APIPrefix: "/api/v1", ResultTTL: time.Hour}, nil)
	return svc, sources
}

func TestExportServiceGeneratesRosterCSV(t *testing.T) {
	svc, _ := newTestExportService(t)
	courseNo := 7
	job := &models.ReportJob{
		ID:     "job-1",
		Type:   models.ReportTypeRoster,
		Params: models.ReportJobParams{CourseNo: &courseNo, Format: models.ReportFormatCSV},
	}

	result, err := svc.Generate(context.Background(), job)
	require.NoError(t, err)
	require.Equal(t, models.ReportFormatCSV, result.Format)
	require.True(t, strings.HasPrefix(result.URL, "/api/v1/reports/download/"))

	jobID, relPath, _, err := svc.ParseToken(result.Token, false)
	require.NoError(t, err)
	require.Equal(t, "job-1", jobID)
	require.Equal(t, result.RelativePath, relPath)

	file, err := svc.Open(relPath)
	require.NoError(t, err)
	defer file.Close()
	content, err := io.ReadAll(file)
	require.NoError(t, err)

	body := string(content)
	require.Contains(t, body, "Roll No")
	require.Contains(t, body, "Asha Rao")
	require.Contains(t, body, "Dev Patel")
	require.Contains(t, body, "A")
}

func TestExportServiceGeneratesTranscriptCSV(t *testing.T) {
	svc, _ := newTestExportService(t)
	rollNo := 5
	job := &models.ReportJob{
		ID:     "job-2",
		Type:   models.ReportTypeTranscript,
		Params: models.ReportJobParams{StudentRollNo: &rollNo, Format: models.ReportFormatCSV},
	}

	result, err := svc.Generate(context.Background(), job)
	require.NoError(t, err)

	file, err := svc.Open(result.RelativePath)
	require.NoError(t, err)
	defer file.Close()
	content, err := io.ReadAll(file)
	require.NoError(t, err)

	body := string(content)
	require.Contains(t, body, "Linear Algebra")
	require.Contains(t, body, "10.0")
}

func TestExportServiceGeneratesRosterPDF(t *testing.T) {
	svc, _ := newTestExportService(t)
	courseNo := 7
	job := &models.ReportJob{
		ID:     "job-3",
		Type:   models.ReportTypeRoster,
		Params: models.ReportJobParams{CourseNo: &courseNo, Format: models.ReportFormatPDF},
	}

	result, err := svc.Generate(context.Background(), job)
	require.NoError(t, err)
	require.Equal(t, models.ReportFormatPDF, result.Format)

	file, err := svc.Open(result.RelativePath)
	require.NoError(t, err)
	defer file.Close()
	header := make([]byte, 4)
	_, err = file.Read(header)
	require.NoError(t, err)
	require.Equal(t, "%PDF", string(header))
}

func TestExportServiceRejectsRosterWithoutCourse(t *testing.T) {
	svc, _ := newTestExportService(t)
	job := &models.ReportJob{
		ID:     "job-4",
		Type:   models.ReportTypeRoster,
		Params: models.ReportJobParams{Format: models.ReportFormatCSV},
	}

	_, err := svc.Generate(context.Background(), job)
	require.Error(t, err)
	require.Contains(t, err.Error(), "course number")
}

func TestExportServiceRejectsUnknownFormat(t *testing.T) {
	svc, _ := newTestExportService(t)
	courseNo := 7
	job := &models.ReportJob{
		ID:     "job-5",
		Type:   models.ReportTypeRoster,
		Params: models.ReportJobParams{CourseNo: &courseNo, Format: models.ReportFormat("xlsx")},
	}

	_, err := svc.Generate(context.Background(), job)
	require.Error(t, err)
}
