package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/akademos/academy-api/internal/service"
)

// MetricsHandler exposes the Prometheus scrape endpoint.
type MetricsHandler struct {
	service *service.MetricsService
}

// NewMetricsHandler creates a new handler.
func NewMetricsHandler(svc *service.MetricsService) *MetricsHandler {
	return &MetricsHandler{service: svc}
}

// Prometheus godoc
// @Summary Prometheus metrics
// @Description Expose metrics in Prometheus text format
// @Tags Observability
// @Produce plain
// @Success 200 {string} string
// @Router /metrics [get]
func (h *MetricsHandler) Prometheus(c *gin.Context) {
	h.service.Handler().ServeHTTP(c.Writer, c.Request)
}
