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

// CourseHandler exposes course CRUD endpoints.
type CourseHandler struct {
	service *service.CourseService
}

// NewCourseHandler constructs a course handler.
func NewCourseHandler(svc *service.CourseService) *CourseHandler {
	return &CourseHandler{service: svc}
}

// List godoc
// @Summary List courses
// @Tags Courses
// @Produce json
// @Param department_id query string false "Filter by department"
// @Param active query bool false "Filter by active flag"
// @Param search query string false "Search keyword"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /courses [get]
func (h *CourseHandler) List(c *gin.Context) {
	var filter models.CourseFilter
	filter.DepartmentID = c.Query("department_id")
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

	courses, pagination, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, courses, pagination)
}

// Get godoc
// @Summary Get course detail
// @Tags Courses
// @Produce json
// @Param id path string true "Course ID"
// @Success 200 {object} response.Envelope
// @Router /courses/{id} [get]
func (h *CourseHandler) Get(c *gin.Context) {
	course, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, course, nil)
}

// Overview godoc
// @Summary Course with dependent counts
// @Tags Courses
// @Produce json
// @Param id path string true "Course ID"
// @Success 200 {object} response.Envelope
// @Router /courses/{id}/overview [get]
func (h *CourseHandler) Overview(c *gin.Context) {
	overview, err := h.service.Overview(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, overview, nil)
}

// Create godoc
// @Summary Create course
// @Tags Courses
// @Accept json
// @Produce json
// @Param payload body service.CreateCourseRequest true "Course payload"
// @Success 201 {object} response.Envelope
// @Router /courses [post]
func (h *CourseHandler) Create(c *gin.Context) {
	var req service.CreateCourseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	course, err := h.service.Create(c.Request.Context(), principalFromContext(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, course)
}

// Update godoc
// @Summary Update course
// @Tags Courses
// @Accept json
// @Produce json
// @Param id path string true "Course ID"
// @Param payload body service.UpdateCourseRequest true "Course payload"
// @Success 200 {object} response.Envelope
// @Router /courses/{id} [put]
func (h *CourseHandler) Update(c *gin.Context) {
	var req service.UpdateCourseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	course, err := h.service.Update(c.Request.Context(), principalFromContext(c), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, course, nil)
}

// Delete godoc
// @Summary Delete course
// @Tags Courses
// @Produce json
// @Param id path string true "Course ID"
// @Success 204
// @Router /courses/{id} [delete]
func (h *CourseHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), principalFromContext(c), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
