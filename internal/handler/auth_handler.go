package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/muhammedrifadkp/CDC-Attendance-sub001/internal/models"
	"github.com/muhammedrifadkp/CDC-Attendance-sub001/internal/service"
	appErrors "github.com/muhammedrifadkp/CDC-Attendance-sub001/pkg/errors"
	"github.com/muhammedrifadkp/CDC-Attendance-sub001/pkg/response"
)

// AuthHandler exposes authentication endpoints.
type AuthHandler struct {
	service *service.AuthService
}

// NewAuthHandler constructs an auth handler.
func NewAuthHandler(svc *service.AuthService) *AuthHandler {
	return &AuthHandler{service: svc}
}

// Login godoc
// @Summary Authenticate with email and password
// @Tags Auth
// @Accept json
// @Produce json
// @Param payload body models.LoginRequest true "Credentials"
// @Success 200 {object} response.Envelope
// @Router /auth/login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	var req models.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	result, err := h.service.Login(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Profile godoc
// @Summary Current user profile
// @Tags Auth
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /auth/profile [get]
func (h *AuthHandler) Profile(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	info, err := h.service.Me(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, info, nil)
}
