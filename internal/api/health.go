package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"rpg-nexus/backend/pkg/health"
)

// HealthHandler exposes liveness and component health endpoints
type HealthHandler struct {
	checker *health.Checker
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(checker *health.Checker) *HealthHandler {
	return &HealthHandler{checker: checker}
}

// Live is a bare liveness probe
func (h *HealthHandler) Live(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Health reports per-component status
func (h *HealthHandler) Health(c *gin.Context) {
	gin.WrapF(h.checker.HTTPHandler())(c)
}
