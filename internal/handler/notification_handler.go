package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/muhammedrifadkp/CDC-Attendance-sub001/internal/service"
	appErrors "github.com/muhammedrifadkp/CDC-Attendance-sub001/pkg/errors"
	"github.com/muhammedrifadkp/CDC-Attendance-sub001/pkg/response"
)

// NotificationHandler exposes broadcast and inbox endpoints.
type NotificationHandler struct {
	service *service.NotificationService
}

// NewNotificationHandler constructs a notification handler.
func NewNotificationHandler(svc *service.NotificationService) *NotificationHandler {
	return &NotificationHandler{service: svc}
}

// Create godoc
// @Summary Create a broadcast and optionally dispatch email
// @Tags Notifications
// @Accept json
// @Produce json
// @Param payload body service.CreateNotificationRequest true "Notification payload"
// @Success 201 {object} response.Envelope
// @Router /notifications [post]
func (h *NotificationHandler) Create(c *gin.Context) {
	var req service.CreateNotificationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	notification, err := h.service.Create(c.Request.Context(), principalFromContext(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, notification)
}

// ListAll godoc
// @Summary Admin view of every broadcast
// @Tags Notifications
// @Produce json
// @Param include_expired query bool false "Include expired"
// @Success 200 {object} response.Envelope
// @Router /notifications [get]
func (h *NotificationHandler) ListAll(c *gin.Context) {
	includeExpired := c.Query("include_expired") == "true"
	items, err := h.service.ListAll(c.Request.Context(), principalFromContext(c), includeExpired)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, nil)
}

// Inbox godoc
// @Summary The caller's live notifications
// @Tags Notifications
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /notifications/inbox [get]
func (h *NotificationHandler) Inbox(c *gin.Context) {
	items, err := h.service.Inbox(c.Request.Context(), principalFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, nil)
}

// MarkRead godoc
// @Summary Record a read receipt
// @Tags Notifications
// @Produce json
// @Param id path string true "Notification ID"
// @Success 204
// @Router /notifications/{id}/read [post]
func (h *NotificationHandler) MarkRead(c *gin.Context) {
	if err := h.service.MarkRead(c.Request.Context(), principalFromContext(c), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Delete godoc
// @Summary Retire a broadcast
// @Tags Notifications
// @Produce json
// @Param id path string true "Notification ID"
// @Success 204
// @Router /notifications/{id} [delete]
func (h *NotificationHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), principalFromContext(c), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// PruneExpired godoc
// @Summary Physically remove expired broadcasts
// @Tags Notifications
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /notifications/prune [post]
func (h *NotificationHandler) PruneExpired(c *gin.Context) {
	n, err := h.service.PruneExpired(c.Request.Context(), principalFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"deleted_count": n}, nil)
}
