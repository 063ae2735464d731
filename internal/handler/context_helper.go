package handler

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/muhammedrifadkp/CDC-Attendance-sub001/internal/middleware"
	"github.com/muhammedrifadkp/CDC-Attendance-sub001/internal/models"
)

func claimsFromContext(c *gin.Context) *models.JWTClaims {
	value, exists := c.Get(middleware.ContextUserKey)
	if !exists {
		return nil
	}
	claims, ok := value.(*models.JWTClaims)
	if !ok {
		return nil
	}
	return claims
}

func principalFromContext(c *gin.Context) models.Principal {
	claims := claimsFromContext(c)
	if claims == nil {
		return models.Principal{}
	}
	return claims.Principal()
}

// parseDate reads a YYYY-MM-DD query value; ok is false when absent or malformed.
func parseDate(raw string) (time.Time, bool) {
	if raw == "" {
		return time.Time{}, false
	}
	t, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

func parseDatePtr(raw string) *time.Time {
	if t, ok := parseDate(raw); ok {
		return &t
	}
	return nil
}
