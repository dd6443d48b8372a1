package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/hedspi/phone-assistant/internal/platform/ctxutil"
	"github.com/hedspi/phone-assistant/internal/platform/logger"
)

// RequestLogger writes one line per request, at error level for 5xx and warn
// for 4xx. Probe and scrape paths are logged at debug.
func RequestLogger(log *logger.Logger) gin.HandlerFunc {
	if log == nil {
		return func(c *gin.Context) { c.Next() }
	}
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}
		reqLog := log.With(traceFields(c)...)
		status := c.Writer.Status()
		kv := []interface{}{
			"method", c.Request.Method,
			"route", route,
			"status", status,
			"bytes", c.Writer.Size(),
			"duration_ms", time.Since(start).Milliseconds(),
		}
		if errs := c.Errors.ByType(gin.ErrorTypeAny); len(errs) > 0 {
			kv = append(kv, "errors", errs.String())
		}

		switch {
		case status >= 500:
			reqLog.Error("request failed", kv...)
		case status >= 400:
			reqLog.Warn("request rejected", kv...)
		case route == "/" || route == "/metrics":
			reqLog.Debug("request served", kv...)
		default:
			reqLog.Info("request served", kv...)
		}
	}
}

func traceFields(c *gin.Context) []interface{} {
	td := ctxutil.GetTraceData(c.Request.Context())
	if td == nil {
		return nil
	}
	var out []interface{}
	for _, f := range [...]struct{ key, val string }{
		{"trace_id", td.TraceID},
		{"request_id", td.RequestID},
		{"session_id", td.SessionID},
	} {
		if f.val != "" {
			out = append(out, f.key, f.val)
		}
	}
	return out
}
