package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/muhammedrifadkp/CDC-Attendance-sub001/internal/models"
	"github.com/muhammedrifadkp/CDC-Attendance-sub001/internal/service"
	appErrors "github.com/muhammedrifadkp/CDC-Attendance-sub001/pkg/errors"
	"github.com/muhammedrifadkp/CDC-Attendance-sub001/pkg/response"
)

// BatchHandler exposes batch CRUD and lifecycle endpoints.
type BatchHandler struct {
	service  *service.BatchService
	students *service.StudentService
}

// NewBatchHandler constructs a batch handler.
func NewBatchHandler(svc *service.BatchService, students *service.StudentService) *BatchHandler {
	return &BatchHandler{service: svc, students: students}
}

// List godoc
// @Summary List batches visible to the caller
// @Tags Batches
// @Produce json
// @Param course_id query string false "Filter by course"
// @Param department_id query string false "Filter by department"
// @Param finished query bool false "Filter by finished flag"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /batches [get]
func (h *BatchHandler) List(c *gin.Context) {
	var filter models.BatchFilter
	filter.CourseID = c.Query("course_id")
	filter.DepartmentID = c.Query("department_id")
	if raw := c.Query("finished"); raw != "" {
		finished := raw == "true"
		filter.Finished = &finished
	}
	if raw := c.Query("archived"); raw != "" {
		archived := raw == "true"
		filter.Archived = &archived
	}
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("limit", "20")); err == nil {
		filter.PageSize = size
	}

	batches, pagination, err := h.service.List(c.Request.Context(), principalFromContext(c), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, batches, pagination)
}

// Get godoc
// @Summary Get batch detail
// @Tags Batches
// @Produce json
// @Param id path string true "Batch ID"
// @Success 200 {object} response.Envelope
// @Router /batches/{id} [get]
func (h *BatchHandler) Get(c *gin.Context) {
	batch, err := h.service.Get(c.Request.Context(), principalFromContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, batch, nil)
}

// Overview godoc
// @Summary Batch with roster count and course naming
// @Tags Batches
// @Produce json
// @Param id path string true "Batch ID"
// @Success 200 {object} response.Envelope
// @Router /batches/{id}/overview [get]
func (h *BatchHandler) Overview(c *gin.Context) {
	overview, err := h.service.Overview(c.Request.Context(), principalFromContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, overview, nil)
}

// Roster godoc
// @Summary Students enrolled in a batch
// @Tags Batches
// @Produce json
// @Param id path string true "Batch ID"
// @Success 200 {object} response.Envelope
// @Router /batches/{id}/students [get]
func (h *BatchHandler) Roster(c *gin.Context) {
	roster, err := h.students.Roster(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, roster, nil)
}

// Create godoc
// @Summary Create batch
// @Tags Batches
// @Accept json
// @Produce json
// @Param payload body service.CreateBatchRequest true "Batch payload"
// @Success 201 {object} response.Envelope
// @Router /batches [post]
func (h *BatchHandler) Create(c *gin.Context) {
	var req service.CreateBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	batch, err := h.service.Create(c.Request.Context(), principalFromContext(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, batch)
}

// Update godoc
// @Summary Update batch
// @Tags Batches
// @Accept json
// @Produce json
// @Param id path string true "Batch ID"
// @Param payload body service.UpdateBatchRequest true "Batch payload"
// @Success 200 {object} response.Envelope
// @Router /batches/{id} [put]
func (h *BatchHandler) Update(c *gin.Context) {
	var req service.UpdateBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	batch, err := h.service.Update(c.Request.Context(), principalFromContext(c), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, batch, nil)
}

// ToggleFinished godoc
// @Summary Flip the batch finished flag
// @Tags Batches
// @Produce json
// @Param id path string true "Batch ID"
// @Success 200 {object} response.Envelope
// @Router /batches/{id}/finished [patch]
func (h *BatchHandler) ToggleFinished(c *gin.Context) {
	batch, err := h.service.ToggleFinished(c.Request.Context(), principalFromContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, batch, nil)
}

// Delete godoc
// @Summary Delete batch and its dependents
// @Tags Batches
// @Produce json
// @Param id path string true "Batch ID"
// @Success 204
// @Router /batches/{id} [delete]
func (h *BatchHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), principalFromContext(c), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
