package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/muhammedrifadkp/CDC-Attendance-sub001/internal/service"
	"github.com/muhammedrifadkp/CDC-Attendance-sub001/pkg/response"
)

// DashboardHandler exposes the admin summary endpoints.
type DashboardHandler struct {
	service *service.DashboardService
}

// NewDashboardHandler constructs a dashboard handler.
func NewDashboardHandler(svc *service.DashboardService) *DashboardHandler {
	return &DashboardHandler{service: svc}
}

// Summary godoc
// @Summary Admin landing summary
// @Tags Dashboard
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /dashboard/summary [get]
func (h *DashboardHandler) Summary(c *gin.Context) {
	dashboard, err := h.service.AdminSummary(c.Request.Context(), principalFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dashboard, nil)
}

// AttendanceAnalytics godoc
// @Summary Ranged attendance rollup for reports
// @Tags Dashboard
// @Produce json
// @Param from query string true "Range start (YYYY-MM-DD)"
// @Param to query string true "Range end (YYYY-MM-DD)"
// @Param department_id query string false "Scope to department"
// @Success 200 {object} response.Envelope
// @Router /dashboard/attendance-analytics [get]
func (h *DashboardHandler) AttendanceAnalytics(c *gin.Context) {
	to, okTo := parseDate(c.Query("to"))
	if !okTo {
		to = time.Now()
	}
	from, okFrom := parseDate(c.Query("from"))
	if !okFrom {
		from = to.AddDate(0, 0, -30)
	}
	analytics, err := h.service.AttendanceAnalytics(c.Request.Context(), principalFromContext(c), c.Query("department_id"), from, to)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, analytics, nil)
}
