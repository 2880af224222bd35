package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/huangang/taskforge/internal/metrics"
)

// Metrics serves the Prometheus registry.
// GET /metrics
func Metrics(m *metrics.Metrics) gin.HandlerFunc {
	return gin.WrapH(m.Handler())
}
