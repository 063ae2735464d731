package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/muhammedrifadkp/CDC-Attendance-sub001/internal/service"
	appErrors "github.com/muhammedrifadkp/CDC-Attendance-sub001/pkg/errors"
	"github.com/muhammedrifadkp/CDC-Attendance-sub001/pkg/response"
)

// DepartmentHandler exposes department CRUD endpoints.
type DepartmentHandler struct {
	service *service.DepartmentService
}

// NewDepartmentHandler constructs a department handler.
func NewDepartmentHandler(svc *service.DepartmentService) *DepartmentHandler {
	return &DepartmentHandler{service: svc}
}

// List godoc
// @Summary List departments
// @Tags Departments
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /departments [get]
func (h *DepartmentHandler) List(c *gin.Context) {
	departments, err := h.service.List(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, departments, nil)
}

// Overview godoc
// @Summary Departments with dependent counts
// @Tags Departments
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /departments/overview [get]
func (h *DepartmentHandler) Overview(c *gin.Context) {
	overview, err := h.service.Overview(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, overview, nil)
}

// Get godoc
// @Summary Get department detail
// @Tags Departments
// @Produce json
// @Param id path string true "Department ID"
// @Success 200 {object} response.Envelope
// @Router /departments/{id} [get]
func (h *DepartmentHandler) Get(c *gin.Context) {
	department, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, department, nil)
}

// Create godoc
// @Summary Create department
// @Tags Departments
// @Accept json
// @Produce json
// @Param payload body service.CreateDepartmentRequest true "Department payload"
// @Success 201 {object} response.Envelope
// @Router /departments [post]
func (h *DepartmentHandler) Create(c *gin.Context) {
	var req service.CreateDepartmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	department, err := h.service.Create(c.Request.Context(), principalFromContext(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, department)
}

// Update godoc
// @Summary Update department
// @Tags Departments
// @Accept json
// @Produce json
// @Param id path string true "Department ID"
// @Param payload body service.UpdateDepartmentRequest true "Department payload"
// @Success 200 {object} response.Envelope
// @Router /departments/{id} [put]
func (h *DepartmentHandler) Update(c *gin.Context) {
	var req service.UpdateDepartmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	department, err := h.service.Update(c.Request.Context(), principalFromContext(c), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, department, nil)
}

// Delete godoc
// @Summary Delete department
// @Tags Departments
// @Produce json
// @Param id path string true "Department ID"
// @Success 204
// @Router /departments/{id} [delete]
func (h *DepartmentHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), principalFromContext(c), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
