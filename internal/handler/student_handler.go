package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/muhammedrifadkp/CDC-Attendance-sub001/internal/models"
	"github.com/muhammedrifadkp/CDC-Attendance-sub001/internal/service"
	appErrors "github.com/muhammedrifadkp/CDC-Attendance-sub001/pkg/errors"
	"github.com/muhammedrifadkp/CDC-Attendance-sub001/pkg/response"
)

// StudentHandler exposes student admission and lifecycle endpoints.
type StudentHandler struct {
	service *service.StudentService
}

// NewStudentHandler constructs a student handler.
func NewStudentHandler(svc *service.StudentService) *StudentHandler {
	return &StudentHandler{service: svc}
}

func studentFilterFromQuery(c *gin.Context) models.StudentFilter {
	var filter models.StudentFilter
	filter.DepartmentID = c.Query("department_id")
	filter.CourseID = c.Query("course_id")
	filter.BatchID = c.Query("batch_id")
	filter.Search = strings.TrimSpace(c.Query("search"))
	if raw := c.Query("active"); raw != "" {
		active := raw == "true"
		filter.Active = &active
	}
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("limit", "20")); err == nil {
		filter.PageSize = size
	}
	return filter
}

// List godoc
// @Summary List students
// @Tags Students
// @Produce json
// @Param department_id query string false "Filter by department"
// @Param course_id query string false "Filter by course"
// @Param batch_id query string false "Filter by batch"
// @Param search query string false "Search keyword"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /students [get]
func (h *StudentHandler) List(c *gin.Context) {
	students, pagination, err := h.service.List(c.Request.Context(), studentFilterFromQuery(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, students, pagination)
}

// Overview godoc
// @Summary Students joined with their hierarchy names
// @Tags Students
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /students/overview [get]
func (h *StudentHandler) Overview(c *gin.Context) {
	overview, err := h.service.Overview(c.Request.Context(), studentFilterFromQuery(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, overview, nil)
}

// NextRollNumber godoc
// @Summary Suggest the next free roll number for a batch
// @Tags Students
// @Produce json
// @Param batch_id query string true "Batch ID"
// @Success 200 {object} response.Envelope
// @Router /students/next-roll-number [get]
func (h *StudentHandler) NextRollNumber(c *gin.Context) {
	batchID := c.Query("batch_id")
	if batchID == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "batch_id is required"))
		return
	}
	roll, err := h.service.NextRollNumber(c.Request.Context(), batchID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"roll_no": roll}, nil)
}

// Get godoc
// @Summary Get student detail
// @Tags Students
// @Produce json
// @Param id path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Router /students/{id} [get]
func (h *StudentHandler) Get(c *gin.Context) {
	student, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, student, nil)
}

// Stats godoc
// @Summary Per-student attendance and fee stats
// @Tags Students
// @Produce json
// @Param id path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Router /students/{id}/stats [get]
func (h *StudentHandler) Stats(c *gin.Context) {
	stats, err := h.service.Stats(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, stats, nil)
}

// Create godoc
// @Summary Admit a student into a batch
// @Tags Students
// @Accept json
// @Produce json
// @Param payload body service.CreateStudentRequest true "Student payload"
// @Success 201 {object} response.Envelope
// @Router /students [post]
func (h *StudentHandler) Create(c *gin.Context) {
	var req service.CreateStudentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	student, err := h.service.Admit(c.Request.Context(), principalFromContext(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, student)
}

// Update godoc
// @Summary Update student
// @Tags Students
// @Accept json
// @Produce json
// @Param id path string true "Student ID"
// @Param payload body service.UpdateStudentRequest true "Student payload"
// @Success 200 {object} response.Envelope
// @Router /students/{id} [put]
func (h *StudentHandler) Update(c *gin.Context) {
	var req service.UpdateStudentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	student, err := h.service.Update(c.Request.Context(), principalFromContext(c), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, student, nil)
}

// Delete godoc
// @Summary Delete student and their records
// @Tags Students
// @Produce json
// @Param id path string true "Student ID"
// @Success 204
// @Router /students/{id} [delete]
func (h *StudentHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), principalFromContext(c), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
