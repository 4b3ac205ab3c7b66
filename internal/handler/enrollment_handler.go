package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sce-api/internal/models"
	"github.com/noah-isme/sce-api/internal/service"
	appErrors "github.com/noah-isme/sce-api/pkg/errors"
	"github.com/noah-isme/sce-api/pkg/response"
)

// EnrollmentHandler exposes enrollment endpoints.
type EnrollmentHandler struct {
	enrollments *service.EnrollmentService
	metrics     *service.MetricsService
}

// NewEnrollmentHandler constructs EnrollmentHandler.
func NewEnrollmentHandler(enrollments *service.EnrollmentService, metrics *service.MetricsService) *EnrollmentHandler {
	return &EnrollmentHandler{enrollments: enrollments, metrics: metrics}
}

// pairFromQuery reads the studentRollNo/courseNo query pair shared by most
// enrollment routes.
func pairFromQuery(c *gin.Context) (int, int, error) {
	rollNo, err := strconv.Atoi(c.Query("studentRollNo"))
	if err != nil {
		return 0, 0, appErrors.Clone(appErrors.ErrValidation, "studentRollNo must be an integer")
	}
	courseNo, err := strconv.Atoi(c.Query("courseNo"))
	if err != nil {
		return 0, 0, appErrors.Clone(appErrors.ErrValidation, "courseNo must be an integer")
	}
	return rollNo, courseNo, nil
}

// List godoc
// @Summary List enrollments
// @Tags Enrollments
// @Produce json
// @Param studentRollNo query int false "Filter by student roll number"
// @Param courseNo query int false "Filter by course number"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /enrollments [get]
func (h *EnrollmentHandler) List(c *gin.Context) {
	var filter models.EnrollmentFilter
	if raw := c.Query("studentRollNo"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil {
			filter.StudentRollNo = &v
		}
	}
	if raw := c.Query("courseNo"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil {
			filter.CourseNo = &v
		}
	}
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("limit", "20")); err == nil {
		filter.PageSize = size
	}
	filter.SortBy = c.Query("sort")
	filter.SortOrder = c.Query("order")

	enrollments, pagination, err := h.enrollments.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, enrollments, pagination)
}

// Get godoc
// @Summary Get a single enrollment with attendance
// @Tags Enrollments
// @Produce json
// @Param studentRollNo query int true "Student roll number"
// @Param courseNo query int true "Course number"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /enrollments/detail [get]
func (h *EnrollmentHandler) Get(c *gin.Context) {
	rollNo, courseNo, err := pairFromQuery(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	enrollment, err := h.enrollments.Get(c.Request.Context(), rollNo, courseNo)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, enrollment, nil)
}

// Enroll godoc
// @Summary Enroll a student in a course
// @Tags Enrollments
// @Accept json
// @Produce json
// @Param request body service.EnrollRequest true "Enrollment"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /enrollments [post]
func (h *EnrollmentHandler) Enroll(c *gin.Context) {
	var req service.EnrollRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	enrollment, err := h.enrollments.Enroll(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	h.metrics.RecordEnrollmentOperation("enroll")
	response.Created(c, enrollment)
}

// Unenroll godoc
// @Summary Remove a student from a course
// @Tags Enrollments
// @Produce json
// @Param studentRollNo query int true "Student roll number"
// @Param courseNo query int true "Course number"
// @Success 204
// @Router /enrollments/unenroll [delete]
func (h *EnrollmentHandler) Unenroll(c *gin.Context) {
	rollNo, courseNo, err := pairFromQuery(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	if err := h.enrollments.Unenroll(c.Request.Context(), rollNo, courseNo); err != nil {
		response.Error(c, err)
		return
	}
	h.metrics.RecordEnrollmentOperation("unenroll")
	response.NoContent(c)
}

// Update godoc
// @Summary Update an enrollment
// @Tags Enrollments
// @Accept json
// @Produce json
// @Param studentRollNo query int true "Student roll number"
// @Param courseNo query int true "Course number"
// @Param request body service.UpdateEnrollmentRequest true "New enrollment state"
// @Success 200 {object} response.Envelope
// @Router /enrollments/update [put]
func (h *EnrollmentHandler) Update(c *gin.Context) {
	rollNo, courseNo, err := pairFromQuery(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	var req service.UpdateEnrollmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	enrollment, err := h.enrollments.Update(c.Request.Context(), rollNo, courseNo, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	h.metrics.RecordEnrollmentOperation("update")
	response.JSON(c, http.StatusOK, enrollment, nil)
}

// MarkAttendance godoc
// @Summary Mark attendance for a day
// @Tags Enrollments
// @Produce json
// @Param studentRollNo query int true "Student roll number"
// @Param courseNo query int true "Course number"
// @Param date query string false "Date (YYYY-MM-DD), defaults to today"
// @Success 200 {object} response.Envelope
// @Router /enrollments/attendance [post]
func (h *EnrollmentHandler) MarkAttendance(c *gin.Context) {
	rollNo, courseNo, err := pairFromQuery(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	var date time.Time
	if raw := c.Query("date"); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "date must be formatted as YYYY-MM-DD"))
			return
		}
		date = parsed
	}
	marked, err := h.enrollments.MarkAttendance(c.Request.Context(), rollNo, courseNo, date)
	if err != nil {
		response.Error(c, err)
		return
	}
	h.metrics.RecordEnrollmentOperation("mark_attendance")
	response.JSON(c, http.StatusOK, gin.H{"marked": marked}, nil)
}

// GetAttendance godoc
// @Summary List attendance dates for an enrollment
// @Tags Enrollments
// @Produce json
// @Param studentRollNo query int true "Student roll number"
// @Param courseNo query int true "Course number"
// @Success 200 {object} response.Envelope
// @Router /enrollments/attendance [get]
func (h *EnrollmentHandler) GetAttendance(c *gin.Context) {
	rollNo, courseNo, err := pairFromQuery(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	dates, err := h.enrollments.GetAttendance(c.Request.Context(), rollNo, courseNo)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dates, nil)
}

// GetGPA godoc
// @Summary Compute a student's GPA
// @Tags Enrollments
// @Produce json
// @Param studentRollNo path int true "Student roll number"
// @Success 200 {object} response.Envelope
// @Router /enrollments/gpa/{studentRollNo} [get]
func (h *EnrollmentHandler) GetGPA(c *gin.Context) {
	rollNo, err := strconv.Atoi(c.Param("studentRollNo"))
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "studentRollNo must be an integer"))
		return
	}
	gpa, err := h.enrollments.GetGPA(c.Request.Context(), rollNo)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gpa, nil)
}

// UpdateGradeRequest carries the new grade for an enrollment.
type UpdateGradeRequest struct {
	Grade string `json:"grade" validate:"required"`
}

// UpdateGrade godoc
// @Summary Set the grade for an enrollment
// @Tags Enrollments
// @Accept json
// @Produce json
// @Param studentRollNo query int true "Student roll number"
// @Param courseNo query int true "Course number"
// @Param request body UpdateGradeRequest true "Grade"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /enrollments/grade [put]
func (h *EnrollmentHandler) UpdateGrade(c *gin.Context) {
	rollNo, courseNo, err := pairFromQuery(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	var req UpdateGradeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	if err := h.enrollments.UpdateGrade(c.Request.Context(), rollNo, courseNo, req.Grade); err != nil {
		response.Error(c, err)
		return
	}
	h.metrics.RecordEnrollmentOperation("update_grade")
	response.JSON(c, http.StatusOK, gin.H{"updated": true}, nil)
}

// StudentsByCourse godoc
// @Summary List students enrolled in a course
// @Tags Enrollments
// @Produce json
// @Param courseNo path int true "Course number"
// @Success 200 {object} response.Envelope
// @Router /enrollments/students/{courseNo} [get]
func (h *EnrollmentHandler) StudentsByCourse(c *gin.Context) {
	courseNo, err := strconv.Atoi(c.Param("courseNo"))
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "courseNo must be an integer"))
		return
	}
	students, err := h.enrollments.StudentsByCourse(c.Request.Context(), courseNo)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, students, nil)
}
