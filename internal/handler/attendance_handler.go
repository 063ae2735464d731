package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/muhammedrifadkp/CDC-Attendance-sub001/internal/service"
	appErrors "github.com/muhammedrifadkp/CDC-Attendance-sub001/pkg/errors"
	"github.com/muhammedrifadkp/CDC-Attendance-sub001/pkg/response"
)

// AttendanceHandler exposes the attendance ledger endpoints.
type AttendanceHandler struct {
	service *service.AttendanceService
	exports *service.ExportService
}

// NewAttendanceHandler constructs an attendance handler.
func NewAttendanceHandler(svc *service.AttendanceService, exports *service.ExportService) *AttendanceHandler {
	return &AttendanceHandler{service: svc, exports: exports}
}

// Mark godoc
// @Summary Mark one student's attendance for a day
// @Tags Attendance
// @Accept json
// @Produce json
// @Param payload body service.MarkAttendanceRequest true "Attendance payload"
// @Success 200 {object} response.Envelope
// @Router /attendance [post]
func (h *AttendanceHandler) Mark(c *gin.Context) {
	var req service.MarkAttendanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	record, created, err := h.service.Mark(c.Request.Context(), principalFromContext(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	response.JSON(c, status, record, nil, map[string]interface{}{"created": created})
}

// BulkMark godoc
// @Summary Mark a whole batch for one day
// @Tags Attendance
// @Accept json
// @Produce json
// @Param payload body service.BulkMarkRequest true "Bulk payload"
// @Success 200 {object} response.Envelope
// @Router /attendance/bulk [post]
func (h *AttendanceHandler) BulkMark(c *gin.Context) {
	var req service.BulkMarkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	result, err := h.service.BulkMark(c.Request.Context(), principalFromContext(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// BatchView godoc
// @Summary Roster paired with one day's records
// @Tags Attendance
// @Produce json
// @Param id path string true "Batch ID"
// @Param date query string true "Day (YYYY-MM-DD)"
// @Success 200 {object} response.Envelope
// @Router /attendance/batch/{id} [get]
func (h *AttendanceHandler) BatchView(c *gin.Context) {
	date, ok := parseDate(c.Query("date"))
	if !ok {
		date = time.Now()
	}
	rows, err := h.service.BatchView(c.Request.Context(), c.Param("id"), date)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, rows, nil)
}

// History godoc
// @Summary One student's attendance history
// @Tags Attendance
// @Produce json
// @Param id path string true "Student ID"
// @Param from query string false "Range start (YYYY-MM-DD)"
// @Param to query string false "Range end (YYYY-MM-DD)"
// @Success 200 {object} response.Envelope
// @Router /attendance/student/{id} [get]
func (h *AttendanceHandler) History(c *gin.Context) {
	records, err := h.service.History(c.Request.Context(), c.Param("id"),
		parseDatePtr(c.Query("from")), parseDatePtr(c.Query("to")))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, records, nil)
}

// Stats godoc
// @Summary Aggregate a batch's attendance over a range
// @Tags Attendance
// @Produce json
// @Param id path string true "Batch ID"
// @Param from query string false "Range start (YYYY-MM-DD)"
// @Param to query string false "Range end (YYYY-MM-DD)"
// @Success 200 {object} response.Envelope
// @Router /attendance/batch/{id}/stats [get]
func (h *AttendanceHandler) Stats(c *gin.Context) {
	stats, err := h.service.Stats(c.Request.Context(), c.Param("id"),
		parseDatePtr(c.Query("from")), parseDatePtr(c.Query("to")))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, stats, nil)
}

// Trend godoc
// @Summary Per-day rollup for a batch
// @Tags Attendance
// @Produce json
// @Param id path string true "Batch ID"
// @Param from query string true "Range start (YYYY-MM-DD)"
// @Param to query string true "Range end (YYYY-MM-DD)"
// @Success 200 {object} response.Envelope
// @Router /attendance/batch/{id}/trend [get]
func (h *AttendanceHandler) Trend(c *gin.Context) {
	from, okFrom := parseDate(c.Query("from"))
	to, okTo := parseDate(c.Query("to"))
	if !okFrom || !okTo {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "from and to are required"))
		return
	}
	points, err := h.service.Trend(c.Request.Context(), c.Param("id"), from, to)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, points, nil)
}

// TodaySummary godoc
// @Summary Centre-wide histogram for today
// @Tags Attendance
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /attendance/today [get]
func (h *AttendanceHandler) TodaySummary(c *gin.Context) {
	summary, err := h.service.TodaySummary(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, summary, nil)
}

// Export godoc
// @Summary Download the attendance sheet for a batch
// @Tags Attendance
// @Produce text/csv
// @Param batch_id query string true "Batch ID"
// @Param format query string false "csv or pdf"
// @Success 200 {file} binary
// @Router /attendance/export [get]
func (h *AttendanceHandler) Export(c *gin.Context) {
	batchID := c.Query("batch_id")
	if batchID == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "batch_id is required"))
		return
	}
	format := service.ExportFormat(c.DefaultQuery("format", "csv"))
	result, err := h.exports.AttendanceSheet(c.Request.Context(), principalFromContext(c), batchID, format)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="`+result.FileName+`"`)
	c.Data(http.StatusOK, result.ContentType, result.Data)
}
