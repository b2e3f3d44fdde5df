package logger

import (
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	headerRequestID = "X-Request-Id"

	ginKeyLogger = "logger"
	ginKeyAttrs  = "log_attrs"
)

// AddAttrs attaches key/value pairs to the request's summary line. Handlers
// use it to report who called and what the sync produced.
func AddAttrs(c *gin.Context, kv ...any) {
	prev, _ := c.Get(ginKeyAttrs)
	attrs, _ := prev.([]any)
	c.Set(ginKeyAttrs, append(attrs, kv...))
}

// Middleware tags each request with an X-Request-Id, stores a request-scoped
// logger on both the gin and request contexts, and logs one summary line
// carrying any attributes added with AddAttrs. Paths listed in quiet log at
// debug.
func Middleware(l *slog.Logger, quiet ...string) gin.HandlerFunc {
	quietSet := make(map[string]bool, len(quiet))
	for _, p := range quiet {
		quietSet[p] = true
	}

	return func(c *gin.Context) {
		start := time.Now()

		rid := c.GetHeader(headerRequestID)
		if rid == "" {
			rid = uuid.NewString()
		}
		c.Writer.Header().Set(headerRequestID, rid)

		reqLogger := l.With("request_id", rid)
		c.Set(ginKeyLogger, reqLogger)
		c.Request = c.Request.WithContext(With(c.Request.Context(), reqLogger))

		c.Next()

		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		status := c.Writer.Status()
		attrs := []any{
			"method", c.Request.Method,
			"path", path,
			"status", status,
			"duration_ms", float64(time.Since(start).Milliseconds()),
		}
		if extra, ok := c.Get(ginKeyAttrs); ok {
			if kv, ok := extra.([]any); ok {
				attrs = append(attrs, kv...)
			}
		}

		switch {
		case len(c.Errors) > 0:
			attrs = append(attrs, "errors", c.Errors.String())
			reqLogger.Error("request", attrs...)
		case status >= 500:
			reqLogger.Warn("request", attrs...)
		case quietSet[path]:
			reqLogger.Debug("request", attrs...)
		default:
			reqLogger.Info("request", attrs...)
		}
	}
}

// FromGin pulls the request-scoped logger from Gin context.
func FromGin(c *gin.Context) *slog.Logger {
	if v, ok := c.Get(ginKeyLogger); ok {
		if l, ok := v.(*slog.Logger); ok && l != nil {
			return l
		}
	}
	return slog.Default()
}
