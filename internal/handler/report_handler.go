package handler

import (
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sce-api/internal/models"
	"github.com/noah-isme/sce-api/internal/service"
	appErrors "github.com/noah-isme/sce-api/pkg/errors"
	"github.com/noah-isme/sce-api/pkg/response"
)

// ReportHandler exposes asynchronous report endpoints.
type ReportHandler struct {
	reports *service.ReportService
	metrics *service.MetricsService
}

// NewReportHandler constructs ReportHandler.
func NewReportHandler(reports *service.ReportService, metrics *service.MetricsService) *ReportHandler {
	return &ReportHandler{reports: reports, metrics: metrics}
}

// Create godoc
// @Summary Queue a report job
// @Tags Reports
// @Accept json
// @Produce json
// @Param request body service.ReportRequest true "Report parameters"
// @Success 202 {object} response.Envelope
// @Router /reports [post]
func (h *ReportHandler) Create(c *gin.Context) {
	var req service.ReportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	actorID := ""
	if claims := claimsFromContext(c); claims != nil {
		actorID = claims.UserID
	}
	job, err := h.reports.CreateJob(c.Request.Context(), req, actorID)
	if err != nil {
		response.Error(c, err)
		return
	}
	h.metrics.RecordReportJob("queued")
	response.JSON(c, http.StatusAccepted, job, nil)
}

// Status godoc
// @Summary Get report job status
// @Tags Reports
// @Produce json
// @Param id path string true "Job ID"
// @Success 200 {object} response.Envelope
// @Router /reports/{id} [get]
func (h *ReportHandler) Status(c *gin.Context) {
	status, err := h.reports.GetStatus(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, status, nil)
}

// Download godoc
// @Summary Download a finished report via signed token
// @Tags Reports
// @Produce octet-stream
// @Param token path string true "Signed download token"
// @Success 200
// @Failure 404 {object} response.Envelope
// @Router /reports/download/{token} [get]
func (h *ReportHandler) Download(c *gin.Context) {
	download, err := h.reports.ResolveDownload(c.Request.Context(), c.Param("token"))
	if err != nil {
		response.Error(c, err)
		return
	}
	defer download.File.Close()

	contentType := "application/octet-stream"
	switch download.Format {
	case models.ReportFormatCSV:
		contentType = "text/csv"
	case models.ReportFormatPDF:
		contentType = "application/pdf"
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", download.Filename))
	c.Header("Content-Type", contentType)
	c.Status(http.StatusOK)
	if _, err := io.Copy(c.Writer, download.File); err != nil {
		// Headers are already written, nothing useful left to send.
		_ = c.Error(err)
	}
}
