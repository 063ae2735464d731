package logger

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/muhammedrifadkp/CDC-Attendance-sub001/pkg/config"
	"github.com/muhammedrifadkp/CDC-Attendance-sub001/pkg/middleware/requestid"
)

// New builds the process logger: JSON in production, console elsewhere,
// level and format overridable from config.
func New(cfg *config.Config) (*zap.Logger, error) {
	base := zap.NewDevelopmentConfig()
	if cfg.Env == config.EnvProduction {
		base = zap.NewProductionConfig()
	}
	if cfg.Log.Format != "" {
		base.Encoding = cfg.Log.Format
	}
	if cfg.Log.Level != "" {
		if lvl, err := zapcore.ParseLevel(cfg.Log.Level); err == nil {
			base.Level = zap.NewAtomicLevelAt(lvl)
		}
	}
	base.EncoderConfig.TimeKey = "timestamp"
	base.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	return base.Build()
}

// GinMiddleware logs one line per request; 5xx responses log at error level.
func GinMiddleware(l *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		started := time.Now()
		c.Next()

		status := c.Writer.Status()
		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", status),
			zap.Duration("latency", time.Since(started)),
			zap.String("ip", c.ClientIP()),
		}
		if id := requestid.Value(c); id != "" {
			fields = append(fields, zap.String("request_id", id))
		}
		if status >= 500 {
			l.Error("http_request", fields...)
			return
		}
		l.Info("http_request", fields...)
	}
}
