package handler

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

func newGinContext(method, path string, body []byte) (*gin.Context, *httptest.ResponseRecorder) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(method, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	return c, w
}

func decodeErrorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var envelope struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	return envelope.Error.Code
}

func TestEnrollmentHandlerUnenrollRejectsMissingPair(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := NewEnrollmentHandler(nil, nil)

	c, w := newGinContext(http.MethodDelete, "/enrollments/unenroll", nil)
	h.Unenroll(c)

	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Equal(t, "VALIDATION_ERROR", decodeErrorCode(t, w))
}

func TestEnrollmentHandlerUnenrollRejectsNonNumericCourse(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := NewEnrollmentHandler(nil, nil)

	c, w := newGinContext(http.MethodDelete, "/enrollments/unenroll?studentRollNo=5&courseNo=seven", nil)
	h.Unenroll(c)

	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestEnrollmentHandlerMarkAttendanceRejectsBadDate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := NewEnrollmentHandler(nil, nil)

	c, w := newGinContext(http.MethodPost, "/enrollments/attendance?studentRollNo=5&courseNo=7&date=03-01-2026", nil)
	h.MarkAttendance(c)

	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Equal(t, "VALIDATION_ERROR", decodeErrorCode(t, w))
}

func TestEnrollmentHandlerGetGPARejectsNonNumericRoll(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := NewEnrollmentHandler(nil, nil)

	c, w := newGinContext(http.MethodGet, "/enrollments/gpa/abc", nil)
	c.Params = gin.Params{{Key: "studentRollNo", Value: "abc"}}
	h.GetGPA(c)

	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestEnrollmentHandlerUpdateGradeRejectsMalformedBody(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := NewEnrollmentHandler(nil, nil)

	c, w := newGinContext(http.MethodPut, "/enrollments/grade?studentRollNo=5&courseNo=7", []byte("{not json"))
	h.UpdateGrade(c)

	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Equal(t, "VALIDATION_ERROR", decodeErrorCode(t, w))
}
