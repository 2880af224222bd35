package middleware

import (
	"bytes"
	"io"
	"net/http"
	"regexp"

	"github.com/gin-gonic/gin"
	"github.com/huangang/taskforge/pkg/logger"
)

const auditBodyLimit = 2000

var sensitiveJSONField = regexp.MustCompile(`(?i)("(?:password|refresh_token|access_token|token|secret)"\s*:\s*)"(?:[^"\\]|\\.)*"`)

// AuditLog writes one log line per mutating request: who did what to which
// route, and how it ended. Credentials in the body are masked.
func AuditLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		switch c.Request.Method {
		case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		default:
			c.Next()
			return
		}

		var body string
		if c.Request.Body != nil {
			// Only the logged prefix is buffered; the handler still reads the
			// whole stream.
			raw, err := io.ReadAll(io.LimitReader(c.Request.Body, auditBodyLimit+1))
			if err != nil {
				l := logger.For(c)
				l.Warn().Err(err).Msg("[Audit] failed to read request body")
			}
			c.Request.Body = io.NopCloser(io.MultiReader(bytes.NewReader(raw), c.Request.Body))
			body = auditBody(raw)
		}

		c.Next()

		status := c.Writer.Status()
		l := logger.For(c)
		event := l.Info()
		if status >= 400 {
			event = l.Warn()
		}
		event.
			Bool("audit", true).
			Str("method", c.Request.Method).
			Str("route", c.FullPath()).
			Str("path", c.Request.URL.Path).
			Int("status", status).
			Str("body", body).
			Msg("[Audit] " + auditAction(c.Request.Method))
	}
}

func auditBody(raw []byte) string {
	if len(raw) > auditBodyLimit {
		raw = append(raw[:auditBodyLimit:auditBodyLimit], "...[truncated]"...)
	}
	return maskSensitiveFields(string(raw))
}

func maskSensitiveFields(body string) string {
	return sensitiveJSONField.ReplaceAllString(body, `$1"***"`)
}

func auditAction(method string) string {
	switch method {
	case http.MethodPost:
		return "create"
	case http.MethodPut, http.MethodPatch:
		return "update"
	case http.MethodDelete:
		return "delete"
	}
	return method
}
