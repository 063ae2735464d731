package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/muhammedrifadkp/CDC-Attendance-sub001/internal/models"
	"github.com/muhammedrifadkp/CDC-Attendance-sub001/internal/service"
	appErrors "github.com/muhammedrifadkp/CDC-Attendance-sub001/pkg/errors"
	"github.com/muhammedrifadkp/CDC-Attendance-sub001/pkg/response"
)

// LabHandler exposes lab machine and booking endpoints.
type LabHandler struct {
	service *service.LabService
}

// NewLabHandler constructs a lab handler.
func NewLabHandler(svc *service.LabService) *LabHandler {
	return &LabHandler{service: svc}
}

// ListPCs godoc
// @Summary Lab machine grid
// @Tags Lab
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /lab/pcs [get]
func (h *LabHandler) ListPCs(c *gin.Context) {
	pcs, err := h.service.ListPCs(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, pcs, nil)
}

// ListPCsByRow godoc
// @Summary Lab machines grouped by row
// @Tags Lab
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /lab/pcs/by-row [get]
func (h *LabHandler) ListPCsByRow(c *gin.Context) {
	grouped, err := h.service.PCsByRow(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, grouped, nil)
}

// CreatePC godoc
// @Summary Register a lab machine
// @Tags Lab
// @Accept json
// @Produce json
// @Param payload body service.CreatePCRequest true "PC payload"
// @Success 201 {object} response.Envelope
// @Router /lab/pcs [post]
func (h *LabHandler) CreatePC(c *gin.Context) {
	var req service.CreatePCRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	pc, err := h.service.CreatePC(c.Request.Context(), principalFromContext(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, pc)
}

// UpdatePC godoc
// @Summary Update a lab machine
// @Tags Lab
// @Accept json
// @Produce json
// @Param id path string true "PC ID"
// @Param payload body service.UpdatePCRequest true "PC payload"
// @Success 200 {object} response.Envelope
// @Router /lab/pcs/{id} [put]
func (h *LabHandler) UpdatePC(c *gin.Context) {
	var req service.UpdatePCRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	pc, err := h.service.UpdatePC(c.Request.Context(), principalFromContext(c), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, pc, nil)
}

// DeletePC godoc
// @Summary Remove a lab machine
// @Tags Lab
// @Produce json
// @Param id path string true "PC ID"
// @Success 204
// @Router /lab/pcs/{id} [delete]
func (h *LabHandler) DeletePC(c *gin.Context) {
	if err := h.service.DeletePC(c.Request.Context(), principalFromContext(c), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Book godoc
// @Summary Reserve a machine slot
// @Tags Lab
// @Accept json
// @Produce json
// @Param payload body service.CreateBookingRequest true "Booking payload"
// @Success 201 {object} response.Envelope
// @Router /lab/bookings [post]
func (h *LabHandler) Book(c *gin.Context) {
	var req service.CreateBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	booking, err := h.service.Book(c.Request.Context(), principalFromContext(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, booking)
}

// ListBookings godoc
// @Summary List bookings
// @Tags Lab
// @Produce json
// @Param date query string false "Day (YYYY-MM-DD)"
// @Param time_slot query string false "Slot"
// @Param pc_id query string false "Machine"
// @Param student_id query string false "Student"
// @Param batch_id query string false "Batch"
// @Param status query string false "Status"
// @Success 200 {object} response.Envelope
// @Router /lab/bookings [get]
func (h *LabHandler) ListBookings(c *gin.Context) {
	var filter models.BookingFilter
	filter.Date = parseDatePtr(c.Query("date"))
	if raw := c.Query("time_slot"); raw != "" {
		slot := models.TimeSlot(raw)
		filter.TimeSlot = &slot
	}
	filter.PCID = c.Query("pc_id")
	filter.StudentID = c.Query("student_id")
	filter.BatchID = c.Query("batch_id")
	if raw := c.Query("status"); raw != "" {
		status := models.BookingStatus(raw)
		filter.Status = &status
	}
	bookings, err := h.service.ListBookings(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, bookings, nil)
}

// UpdateBookingStatus godoc
// @Summary Change a booking's status
// @Tags Lab
// @Accept json
// @Produce json
// @Param id path string true "Booking ID"
// @Success 200 {object} response.Envelope
// @Router /lab/bookings/{id}/status [patch]
func (h *LabHandler) UpdateBookingStatus(c *gin.Context) {
	var req struct {
		Status models.BookingStatus `json:"status"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	booking, err := h.service.UpdateBookingStatus(c.Request.Context(), principalFromContext(c), c.Param("id"), req.Status)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, booking, nil)
}

// ClearBookings godoc
// @Summary Bulk delete bookings for a day
// @Tags Lab
// @Accept json
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /lab/bookings/clear [post]
func (h *LabHandler) ClearBookings(c *gin.Context) {
	var req struct {
		Date      time.Time         `json:"date" binding:"required"`
		TimeSlots []models.TimeSlot `json:"time_slots,omitempty"`
		PCIDs     []string          `json:"pc_ids,omitempty"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	cleared, err := h.service.ClearBookings(c.Request.Context(), principalFromContext(c), models.BookingClearFilter{
		Date:      req.Date,
		TimeSlots: req.TimeSlots,
		PCIDs:     req.PCIDs,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"cleared_count": cleared}, nil)
}

// Availability godoc
// @Summary Free capacity for a day
// @Tags Lab
// @Produce json
// @Param date query string false "Day (YYYY-MM-DD)"
// @Success 200 {object} response.Envelope
// @Router /lab/availability [get]
func (h *LabHandler) Availability(c *gin.Context) {
	date, ok := parseDate(c.Query("date"))
	if !ok {
		date = time.Now()
	}
	availability, err := h.service.Availability(c.Request.Context(), date)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, availability, nil)
}

// BookingsWithAttendance godoc
// @Summary Bookings joined with same-day attendance
// @Tags Lab
// @Produce json
// @Param date query string false "Day (YYYY-MM-DD)"
// @Success 200 {object} response.Envelope
// @Router /lab/bookings/attendance [get]
func (h *LabHandler) BookingsWithAttendance(c *gin.Context) {
	date, ok := parseDate(c.Query("date"))
	if !ok {
		date = time.Now()
	}
	rows, err := h.service.BookingsWithAttendance(c.Request.Context(), date)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, rows, nil)
}

// ApplyPrevious godoc
// @Summary Clone one day's live bookings onto a later day
// @Tags Lab
// @Accept json
// @Produce json
// @Param payload body service.ApplyPreviousRequest true "Source and target dates"
// @Success 200 {object} response.Envelope
// @Router /lab/bookings/apply-previous [post]
func (h *LabHandler) ApplyPrevious(c *gin.Context) {
	var req service.ApplyPreviousRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	result, err := h.service.ApplyPrevious(c.Request.Context(), principalFromContext(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}
