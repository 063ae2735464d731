package response

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/muhammedrifadkp/CDC-Attendance-sub001/internal/models"
	appErrors "github.com/muhammedrifadkp/CDC-Attendance-sub001/pkg/errors"
)

// Envelope is the wire contract for every JSON response: exactly one of
// Data or Error is set.
type Envelope struct {
	Data       interface{}            `json:"data,omitempty"`
	Error      *appErrors.Error       `json:"error,omitempty"`
	Pagination *models.Pagination     `json:"pagination,omitempty"`
	Meta       map[string]interface{} `json:"meta,omitempty"`
}

func write(c *gin.Context, status int, envelope Envelope) {
	c.Header("Cache-Control", "no-store")
	c.JSON(status, envelope)
}

// JSON sends a success envelope with optional pagination and meta.
func JSON(c *gin.Context, status int, data interface{}, pagination *models.Pagination, meta ...map[string]interface{}) {
	envelope := Envelope{Data: data, Pagination: pagination}
	if len(meta) > 0 {
		envelope.Meta = meta[0]
	}
	write(c, status, envelope)
}

// Created sends a 201 envelope.
func Created(c *gin.Context, data interface{}) {
	JSON(c, http.StatusCreated, data, nil)
}

// NoContent sends a bare 204.
func NoContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}

// Error maps any error onto the envelope through the typed error taxonomy.
func Error(c *gin.Context, err error) {
	appErr := appErrors.FromError(err)
	write(c, appErr.Status, Envelope{Error: appErr})
}
