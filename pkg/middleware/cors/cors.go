package cors

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const (
	allowHeaders = "Authorization, Content-Type, X-Requested-With, X-Request-ID"
	allowMethods = "GET, POST, PUT, PATCH, DELETE, OPTIONS"
)

// New returns a CORS middleware restricted to the configured origins. An
// empty list allows any origin, which is the local-development default.
func New(origins []string) gin.HandlerFunc {
	allowed := make(map[string]bool, len(origins))
	for _, o := range origins {
		allowed[normalize(o)] = true
	}

	return func(c *gin.Context) {
		h := c.Writer.Header()
		switch origin := c.GetHeader("Origin"); {
		case origin == "" && len(allowed) == 0:
			h.Set("Access-Control-Allow-Origin", "*")
		case origin != "" && (len(allowed) == 0 || allowed[normalize(origin)]):
			h.Set("Access-Control-Allow-Origin", origin)
		}
		h.Set("Vary", "Origin")
		h.Set("Access-Control-Allow-Credentials", "true")
		h.Set("Access-Control-Allow-Headers", allowHeaders)
		h.Set("Access-Control-Allow-Methods", allowMethods)
		h.Set("Access-Control-Max-Age", "600")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

func normalize(origin string) string {
	return strings.ToLower(strings.TrimRight(origin, "/"))
}
