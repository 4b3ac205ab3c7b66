package service

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/sce-api/internal/models"
	"github.com/noah-isme/sce-api/pkg/export"
	"github.com/noah-isme/sce-api/pkg/storage"
)

type reportEnrollmentSource interface {
	ListByCourseNo(ctx context.Context, courseNo int) ([]models.Enrollment, error)
	ListByRollNo(ctx context.Context, studentRollNo int) ([]models.Enrollment, error)
}

type reportStudentSource interface {
	FindByRollNo(ctx context.Context, rollNo int) (*models.Student, error)
	FindByIDIn(ctx context.Context, ids []string) ([]models.Student, error)
}

type reportCourseSource interface {
	FindByCourseNo(ctx context.Context, courseNo int) (*models.Course, error)
}

type fileStorage interface {
	Save(filename string, data []byte) (string, error)
	Open(filename string) (*os.File, error)
	Delete(filename string) error
	CleanupOlderThan(ttl time.Duration) ([]string, error)
}

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type pdfRenderer interface {
	Render(data export.Dataset, title string) ([]byte, error)
}

// ExportConfig tunes export behaviour.
type ExportConfig struct {
	APIPrefix string
	ResultTTL time.Duration
}

// ExportResult captures successful generation metadata.
type ExportResult struct {
	RelativePath string
	Token        string
	URL          string
	Format       models.ReportFormat
	ExpiresAt    time.Time
}

// ExportService builds report datasets and persists rendered files.
type ExportService struct {
	enrollments reportEnrollmentSource
	students    reportStudentSource
	courses     reportCourseSource
	storage     fileStorage
	csv         csvRenderer
	pdf         pdfRenderer
	signer      *storage.SignedURLSigner
	logger      *zap.Logger
	cfg         ExportConfig
}

// NewExportService constructs an ExportService.
func NewExportService(enrollments reportEnrollmentSource, students reportStudentSource, courses reportCourseSource, store fileStorage, signer *storage.SignedURLSigner, cfg ExportConfig, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = 24 * time.Hour
	}
	return &ExportService{
		enrollments: enrollments,
		students:    students,
		courses:     courses,
		storage:     store,
		csv:         export.NewCSVExporter(),
		pdf:         export.NewPDFExporter(),
		signer:      signer,
		logger:      logger,
		cfg:         cfg,
	}
}

// Generate builds the dataset for the job and stores the rendered export.
func (s *ExportService) Generate(ctx context.Context, job *models.ReportJob) (*ExportResult, error) {
	if job == nil {
		return nil, fmt.Errorf("job nil")
	}
	dataset, title, err := s.buildDataset(ctx, job)
	if err != nil {
		return nil, err
	}

	var payload []byte
	switch job.Params.Format {
	case models.ReportFormatCSV:
		payload, err = s.csv.Render(dataset)
	case models.ReportFormatPDF:
		payload, err = s.pdf.Render(dataset, title)
	default:
		err = fmt.Errorf("unsupported format %s", job.Params.Format)
	}
	if err != nil {
		return nil, err
	}

	relPath, err := s.storage.Save(s.buildFilename(job), payload)
	if err != nil {
		return nil, err
	}

	token, expiresAt, err := s.signer.Generate(job.ID, relPath)
	if err != nil {
		return nil, err
	}
	prefix := strings.TrimRight(s.cfg.APIPrefix, "/")
	if prefix == "" {
		prefix = "/api/v1"
	}

	return &ExportResult{
		RelativePath: relPath,
		Token:        token,
		URL:          fmt.Sprintf("%s/reports/download/%s", prefix, token),
		Format:       job.Params.Format,
		ExpiresAt:    expiresAt,
	}, nil
}

// ParseToken validates download token metadata.
func (s *ExportService) ParseToken(token string, allowExpired bool) (jobID, relPath string, expiresAt time.Time, err error) {
	return s.signer.Parse(token, allowExpired)
}

// Open returns a handle to the stored file.
func (s *ExportService) Open(relPath string) (*os.File, error) {
	return s.storage.Open(relPath)
}

// Delete removes a stored export file.
func (s *ExportService) Delete(relPath string) error {
	return s.storage.Delete(relPath)
}

// Cleanup removes files older than ttl, defaulting to the configured ResultTTL.
func (s *ExportService) Cleanup(ttl time.Duration) ([]string, error) {
	if ttl <= 0 {
		ttl = s.cfg.ResultTTL
	}
	return s.storage.CleanupOlderThan(ttl)
}

func (s *ExportService) buildFilename(job *models.ReportJob) string {
	timestamp := time.Now().UTC().Format("20060102_150405")
	subject := "na"
	switch {
	case job.Params.CourseNo != nil:
		subject = strconv.Itoa(*job.Params.CourseNo)
	case job.Params.StudentRollNo != nil:
		subject = strconv.Itoa(*job.Params.StudentRollNo)
	}
	return fmt.Sprintf("%s_%s_%s.%s", job.Type, subject, timestamp, job.Params.Format)
}

func (s *ExportService) buildDataset(ctx context.Context, job *models.ReportJob) (export.Dataset, string, error) {
	switch job.Type {
	case models.ReportTypeRoster:
		return s.buildRosterDataset(ctx, job.Params)
	case models.ReportTypeTranscript:
		return s.buildTranscriptDataset(ctx, job.Params)
	default:
		return export.Dataset{}, "", fmt.Errorf("unsupported report type %s", job.Type)
	}
}

func (s *ExportService) buildRosterDataset(ctx context.Context, params models.ReportJobParams) (export.Dataset, string, error) {
	if params.CourseNo == nil {
		return export.Dataset{}, "", fmt.Errorf("roster report requires a course number")
	}
	course, err := s.courses.FindByCourseNo(ctx, *params.CourseNo)
	if err != nil {
		return export.Dataset{}, "", fmt.Errorf("load course %d: %w", *params.CourseNo, err)
	}
	enrollments, err := s.enrollments.ListByCourseNo(ctx, course.CourseNo)
	if err != nil {
		return export.Dataset{}, "", fmt.Errorf("list course enrollments: %w", err)
	}

	ids := make([]string, 0, len(enrollments))
	for _, e := range enrollments {
		ids = append(ids, e.StudentID)
	}
	students, err := s.students.FindByIDIn(ctx, ids)
	if err != nil {
		return export.Dataset{}, "", fmt.Errorf("load students: %w", err)
	}
	byID := make(map[string]models.Student, len(students))
	for _, st := range students {
		byID[st.ID] = st
	}

	dataset := export.Dataset{
		Headers: []string{"Roll No", "Name", "Email", "Department", "Grade", "Enrolled At"},
	}
	for _, e := range enrollments {
		student := byID[e.StudentID]
		grade := ""
		if e.Grade != nil {
			grade = *e.Grade
		}
		dataset.Rows = append(dataset.Rows, map[string]string{
			"Roll No":     strconv.Itoa(e.StudentRollNo),
			"Name":        student.Name,
			"Email":       student.Email,
			"Department":  student.Department,
			"Grade":       grade,
			"Enrolled At": e.EnrolledAt.UTC().Format("2006-01-02"),
		})
	}
	title := fmt.Sprintf("Roster: %s (course %d)", course.Title, course.CourseNo)
	return dataset, title, nil
}

func (s *ExportService) buildTranscriptDataset(ctx context.Context, params models.ReportJobParams) (export.Dataset, string, error) {
	if params.StudentRollNo == nil {
		return export.Dataset{}, "", fmt.Errorf("transcript report requires a student roll number")
	}
	student, err := s.students.FindByRollNo(ctx, *params.StudentRollNo)
	if err != nil {
		return export.Dataset{}, "", fmt.Errorf("load student %d: %w", *params.StudentRollNo, err)
	}
	enrollments, err := s.enrollments.ListByRollNo(ctx, student.RollNo)
	if err != nil {
		return export.Dataset{}, "", fmt.Errorf("list student enrollments: %w", err)
	}

	dataset := export.Dataset{
		Headers: []string{"Course No", "Title", "Instructor", "Credits", "Grade", "Points"},
	}
	var sum float64
	graded := 0
	for _, e := range enrollments {
		row := map[string]string{
			"Course No":  strconv.Itoa(e.CourseNo),
			"Title":      "",
			"Instructor": "",
			"Credits":    "",
			"Grade":      "",
			"Points":     "",
		}
		if course, err := s.courses.FindByCourseNo(ctx, e.CourseNo); err == nil {
			row["Title"] = course.Title
			row["Instructor"] = course.Instructor
			row["Credits"] = strconv.Itoa(course.Credits)
		}
		if e.Grade != nil {
			row["Grade"] = *e.Grade
			if points, ok := models.GradePoints[*e.Grade]; ok {
				row["Points"] = strconv.FormatFloat(points, 'f', 1, 64)
				sum += points
				graded++
			}
		}
		dataset.Rows = append(dataset.Rows, row)
	}

	title := fmt.Sprintf("Transcript: %s (roll %d)", student.Name, student.RollNo)
	if graded > 0 {
		title = fmt.Sprintf("%s, GPA %.2f", title, sum/float64(graded))
	}
	return dataset, title, nil
}
